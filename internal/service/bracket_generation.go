package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/AdamBeresnev/tourney/internal/bracket"
	"github.com/AdamBeresnev/tourney/internal/store"
	"github.com/AdamBeresnev/tourney/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type BracketGeneration struct {
	store *store.TournamentStore
}

func NewBracketService(store *store.TournamentStore) *BracketGeneration {
	return &BracketGeneration{store: store}
}

// Generate builds and stores the whole single elimination bracket for the
// tournament's qualified teams inside tx. The caller owns the phase change.
func (s *BracketGeneration) Generate(ctx context.Context, tx *sqlx.Tx, t *bracket.Tournament, now time.Time) ([]bracket.Match, int, error) {
	existing, err := s.store.CountMatchesTx(ctx, tx, t.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count matches: %w", err)
	}
	if existing > 0 {
		return nil, 0, ErrBracketAlreadyGenerated
	}

	approved := bracket.ApprovalApproved
	teams, err := s.store.GetTeamsTx(ctx, tx, t.ID, store.TeamFilter{Status: &approved})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get approved teams: %w", err)
	}

	var qualified []bracket.Team
	for _, team := range teams {
		if team.Qualified() {
			qualified = append(qualified, team)
		}
	}
	if len(qualified) < 2 {
		return nil, 0, ErrInsufficientTeams
	}

	bracketSize := calcBracketSize(len(qualified))
	if t.BracketSize != nil && *t.BracketSize < bracketSize {
		return nil, 0, fmt.Errorf("%w: %d qualified teams do not fit a bracket of %d", ErrCapacityExceeded, len(qualified), *t.BracketSize)
	}

	seeded := orderBySeed(qualified)
	matches := s.GenerateSingleElimBracket(t.ID, bracketSize, now)
	placeTeams(matches, seeded, bracketSize, now)

	if err := s.store.CreateMatches(ctx, tx, matches); err != nil {
		return nil, 0, fmt.Errorf("failed to create matches: %w", err)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].RoundNumber != matches[j].RoundNumber {
			return matches[i].RoundNumber < matches[j].RoundNumber
		}
		return matches[i].Slot < matches[j].Slot
	})
	return matches, bracketSize, nil
}

// Generate bracket structure for single elimination. Every match links to the
// match its winner feeds and the team slot it lands in.
func (s *BracketGeneration) GenerateSingleElimBracket(tournamentID uuid.UUID, bracketSize int, now time.Time) []bracket.Match {
	var matches []bracket.Match

	totalRounds := int(math.Log2(float64(bracketSize)))

	nextRoundMatchIDs := make(map[int]uuid.UUID)

	// Significantly easier to start from the last round and work backwards
	for r := totalRounds; r >= 1; r-- {
		matchesInCurrentRound := bracketSize >> r
		currentRoundMatchIDs := make(map[int]uuid.UUID)

		for slot := 0; slot < matchesInCurrentRound; slot++ {
			matchID := uuid.New()

			m := bracket.Match{
				ID:           matchID,
				TournamentID: tournamentID,
				RoundNumber:  r,
				Slot:         slot,
				Status:       bracket.MatchPending,
				CreatedAt:    now,
			}

			if r < totalRounds {
				parentID := nextRoundMatchIDs[slot/2]
				m.NextMatchID = &parentID

				// Even slots feed team 1, odd slots feed team 2
				if slot%2 == 0 {
					m.NextSlot = utils.Ptr(1)
				} else {
					m.NextSlot = utils.Ptr(2)
				}
			}

			matches = append(matches, m)
			currentRoundMatchIDs[slot] = matchID
		}
		nextRoundMatchIDs = currentRoundMatchIDs
	}

	return matches
}

// placeTeams fills round 1 from the seeding sequence and resolves byes: a match
// with a single team is completed on the spot and its team moves into round 2.
func placeTeams(matches []bracket.Match, seeded []bracket.Team, bracketSize int, now time.Time) {
	matchMap := make(map[uuid.UUID]*bracket.Match)
	round1Matches := make(map[int]*bracket.Match)
	for i := range matches {
		matchMap[matches[i].ID] = &matches[i]
		if matches[i].RoundNumber == 1 {
			round1Matches[matches[i].Slot] = &matches[i]
		}
	}

	for slot, pair := range generateRound1Pairs(bracketSize) {
		match := round1Matches[slot]
		if pair[0] < len(seeded) {
			match.SetTeam(1, utils.Ptr(seeded[pair[0]].ID))
		}
		if pair[1] < len(seeded) {
			match.SetTeam(2, utils.Ptr(seeded[pair[1]].ID))
		}

		var lone *uuid.UUID
		switch {
		case match.Team1ID != nil && match.Team2ID == nil:
			lone = match.Team1ID
		case match.Team1ID == nil && match.Team2ID != nil:
			lone = match.Team2ID
		default:
			continue
		}

		match.Status = bracket.MatchCompleted
		match.WinnerTeamID = lone
		match.IsBye = true
		match.CompletedAt = utils.Ptr(now)

		if match.NextMatchID != nil && match.NextSlot != nil {
			if nextMatch, ok := matchMap[*match.NextMatchID]; ok {
				nextMatch.SetTeam(*match.NextSlot, lone)
			}
		}
	}
}
