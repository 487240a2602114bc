package httputil

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/AdamBeresnev/tourney/internal/service"
)

type ErrorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Code  string `json:"code,omitempty"`
}

func errorJSON(w http.ResponseWriter, status int, body ErrorBody) {
	if err := WriteJSON(w, status, body); err != nil {
		slog.Error("Failed to write error response", "error", err)
	}
}

func InternalServerError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	errorJSON(w, http.StatusInternalServerError, ErrorBody{Error: "Internal Server Error"})
}

func BadRequest(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("bad request", "message", msg, "error", err)
	} else {
		slog.Warn("bad request", "message", msg)
	}
	errorJSON(w, http.StatusBadRequest, ErrorBody{Error: msg})
}

func NotFound(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("not found", "message", msg, "error", err)
	} else {
		slog.Warn("not found", "message", msg)
	}
	errorJSON(w, http.StatusNotFound, ErrorBody{Error: msg, Kind: string(service.KindNotFound)})
}

func StatusFor(kind service.Kind) int {
	switch kind {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindInvalidState, service.KindConflict:
		return http.StatusConflict
	case service.KindValidation:
		return http.StatusUnprocessableEntity
	case service.KindUnauthenticated:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// ServiceError writes err as {error, kind, code}. Anything that is not a typed
// service failure is logged and hidden behind a generic 500.
func ServiceError(w http.ResponseWriter, msg string, err error) {
	serviceErr, ok := service.AsError(err)
	if !ok {
		InternalServerError(w, msg, err)
		return
	}

	status := StatusFor(serviceErr.Kind)
	slog.Warn(msg, "status", status, "code", serviceErr.Code, "error", err)
	errorJSON(w, status, ErrorBody{
		// The wrapped message carries the detail added by the service
		Error: err.Error(),
		Kind:  string(serviceErr.Kind),
		Code:  serviceErr.Code,
	})
}

// IsMalformedBody reports whether err came from ReadJSON rejecting the request body.
func IsMalformedBody(err error) bool {
	var bodyErr *BodyError
	return errors.As(err, &bodyErr)
}
