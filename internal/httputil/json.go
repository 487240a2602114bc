package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxBodyBytes = 1_048_576

// BodyError is a request body that could not be decoded.
type BodyError struct {
	msg string
}

func (e *BodyError) Error() string {
	return e.msg
}

func bodyErrorf(format string, args ...any) error {
	return &BodyError{msg: fmt.Sprintf(format, args...)}
}

// ReadJSON decodes a single JSON value into dst, rejecting unknown fields and
// bodies over 1MB.
func ReadJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return bodyErrorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return bodyErrorf("body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return bodyErrorf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return bodyErrorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return bodyErrorf("body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return bodyErrorf("body contains unknown key %s", strings.TrimPrefix(err.Error(), "json: unknown field "))
		case errors.As(err, &maxBytesError):
			return bodyErrorf("body must not be larger than %d bytes", maxBodyBytes)
		default:
			return bodyErrorf("%s", err.Error())
		}
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return bodyErrorf("body must only contain a single JSON value")
	}
	return nil
}

func WriteJSON(w http.ResponseWriter, status int, data any) error {
	js, err := json.Marshal(data)
	if err != nil {
		return err
	}
	js = append(js, '\n')

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(js)
	return err
}
