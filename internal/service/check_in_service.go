package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/AdamBeresnev/tourney/internal/bracket"
	"github.com/AdamBeresnev/tourney/internal/store"
	"github.com/jmoiron/sqlx"
)

const (
	codeCharset     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength      = 6
	maxCodeAttempts = 10
)

type CheckInService struct {
	store  *store.TournamentStore
	window time.Duration
}

func NewCheckInService(store *store.TournamentStore, window time.Duration) *CheckInService {
	return &CheckInService{store: store, window: window}
}

func randomCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", err
		}
		code[i] = codeCharset[num.Int64()]
	}
	return string(code), nil
}

// normalizeCode upper-cases and trims a submitted code. It returns false when
// the result cannot be a code at all.
func normalizeCode(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != codeLength {
		return "", false
	}
	for _, c := range code {
		if !strings.ContainsRune(codeCharset, c) {
			return "", false
		}
	}
	return code, true
}

// GenerateCode assigns the team a code no other team in the tournament holds.
func (s *CheckInService) GenerateCode(ctx context.Context, tx *sqlx.Tx, team *bracket.Team) error {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			return fmt.Errorf("failed to generate check-in code: %w", err)
		}

		taken, err := s.store.CheckInCodeExistsTx(ctx, tx, team.TournamentID, code)
		if err != nil {
			return fmt.Errorf("failed to check code uniqueness: %w", err)
		}
		if !taken {
			team.CheckInCode = &code
			return nil
		}
	}
	return fmt.Errorf("failed to find a free check-in code after %d attempts", maxCodeAttempts)
}

// CheckIn marks the team holding code as ready. The code is checked before the
// window so an unknown code is always reported as such. Repeating a successful
// check-in changes nothing.
func (s *CheckInService) CheckIn(ctx context.Context, tx *sqlx.Tx, t *bracket.Tournament, code string, now time.Time) (*bracket.Team, error) {
	normalized, ok := normalizeCode(code)
	if !ok {
		return nil, ErrInvalidCode
	}

	team, err := s.store.GetTeamByCodeTx(ctx, tx, t.ID, normalized)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCode
		}
		return nil, fmt.Errorf("failed to look up check-in code: %w", err)
	}
	if team.ApprovalStatus != bracket.ApprovalApproved {
		return nil, ErrInvalidCode
	}

	if t.Phase != bracket.PhaseCheckInOpen || !t.CheckInOpen(now, s.window) {
		return nil, ErrCheckInClosed
	}

	if team.IsCheckedIn {
		return team, nil
	}

	checkedInAt := now
	team.CheckedInAt = &checkedInAt
	changed, err := s.store.MarkCheckedIn(ctx, tx, team)
	if err != nil {
		return nil, fmt.Errorf("failed to check in team: %w", err)
	}
	if !changed {
		// A concurrent submission got there first
		return s.store.GetTeamTx(ctx, tx, team.ID)
	}

	team.IsCheckedIn = true
	return team, nil
}
