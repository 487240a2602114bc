package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AdamBeresnev/tourney/internal/bracket"
	"github.com/AdamBeresnev/tourney/internal/store"
	"github.com/AdamBeresnev/tourney/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type MatchService struct {
	store *store.TournamentStore
}

func NewMatchService(store *store.TournamentStore) *MatchService {
	return &MatchService{store: store}
}

// Progress is what a reported result changed: the match itself, the next round
// match that received the winner, or the champion when the final was decided.
type Progress struct {
	Match    *bracket.Match
	Next     *bracket.Match
	Champion *uuid.UUID
}

func (s *MatchService) GetMatch(ctx context.Context, id uuid.UUID) (*bracket.Match, error) {
	match, err := s.store.GetMatch(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return match, nil
}

func (s *MatchService) GetMatches(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Match, error) {
	return s.store.GetMatches(ctx, tournamentID)
}

// ReportResult records the scores of a match and writes the winner into the
// match it feeds, all inside tx. Correcting a completed match is only allowed
// while the next match has no result of its own.
func (s *MatchService) ReportResult(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID, score1, score2 int, now time.Time) (*Progress, error) {
	match, err := s.store.GetMatchTx(ctx, tx, matchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}

	if !match.HasBothTeams() {
		return nil, ErrTeamsNotAssigned
	}
	if score1 < 0 || score2 < 0 || score1 == score2 {
		return nil, ErrInvalidScore
	}

	var nextMatch *bracket.Match
	if match.NextMatchID != nil {
		nextMatch, err = s.store.GetMatchTx(ctx, tx, *match.NextMatchID)
		if err != nil {
			return nil, fmt.Errorf("failed to get next match: %w", err)
		}
		if match.Status == bracket.MatchCompleted && nextMatch.HasResult() {
			return nil, ErrDownstreamAlreadyStarted
		}
	}

	winnerID := *match.Team1ID
	if score2 > score1 {
		winnerID = *match.Team2ID
	}

	match.Score1 = utils.Ptr(score1)
	match.Score2 = utils.Ptr(score2)
	match.Status = bracket.MatchCompleted
	match.WinnerTeamID = &winnerID
	match.CompletedAt = utils.Ptr(now)

	if err := s.store.UpdateMatch(ctx, tx, match); err != nil {
		return nil, fmt.Errorf("failed to update match: %w", err)
	}

	progress := &Progress{Match: match}

	if nextMatch != nil && match.NextSlot != nil {
		nextMatch.SetTeam(*match.NextSlot, &winnerID)
		if err := s.store.UpdateMatch(ctx, tx, nextMatch); err != nil {
			return nil, fmt.Errorf("failed to update next match: %w", err)
		}
		progress.Next = nextMatch
	} else {
		// No next match means this was the final
		progress.Champion = &winnerID
	}

	return progress, nil
}
