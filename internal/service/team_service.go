package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AdamBeresnev/tourney/internal/bracket"
	"github.com/AdamBeresnev/tourney/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const maxTeamNameLength = 50

type TeamInput struct {
	Name        string `json:"name"`
	CaptainName string `json:"captainName"`
	CaptainRank string `json:"captainRank"`
	DuoName     string `json:"duoName"`
	DuoRank     string `json:"duoRank"`
}

func (in *TeamInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.CaptainName = strings.TrimSpace(in.CaptainName)
	in.CaptainRank = strings.TrimSpace(in.CaptainRank)
	in.DuoName = strings.TrimSpace(in.DuoName)
	in.DuoRank = strings.TrimSpace(in.DuoRank)

	if in.Name == "" {
		return invalidInput("team name is required")
	}
	if len(in.Name) > maxTeamNameLength {
		return invalidInput(fmt.Sprintf("team name '%s' exceeds %d characters", in.Name, maxTeamNameLength))
	}
	if in.CaptainName == "" {
		return invalidInput("captain name is required")
	}
	return nil
}

type TeamService struct {
	store   *store.TournamentStore
	checkIn *CheckInService
}

func NewTeamService(store *store.TournamentStore, checkIn *CheckInService) *TeamService {
	return &TeamService{store: store, checkIn: checkIn}
}

// Register creates a pending team. The caller has already applied any due
// phase change, so registrationOpen reflects the clock.
func (s *TeamService) Register(ctx context.Context, tx *sqlx.Tx, t *bracket.Tournament, input TeamInput, registeredBy *uuid.UUID, now time.Time, window time.Duration) (*bracket.Team, error) {
	if err := input.normalize(); err != nil {
		return nil, err
	}
	if !t.RegistrationOpen(now, window) {
		return nil, ErrRegistrationClosed
	}

	active, err := s.store.CountActiveTeamsTx(ctx, tx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count teams: %w", err)
	}
	if active >= t.MaxTeams {
		return nil, ErrCapacityExceeded
	}

	nameKey := strings.ToLower(input.Name)
	taken, err := s.store.TeamNameTakenTx(ctx, tx, t.ID, nameKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check team name: %w", err)
	}
	if taken {
		return nil, ErrDuplicateTeam
	}

	seq, err := s.store.NextRegistrationSeqTx(ctx, tx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get registration sequence: %w", err)
	}

	team := &bracket.Team{
		ID:              uuid.New(),
		TournamentID:    t.ID,
		Name:            input.Name,
		NameKey:         nameKey,
		CaptainName:     input.CaptainName,
		CaptainRank:     input.CaptainRank,
		DuoName:         input.DuoName,
		DuoRank:         input.DuoRank,
		RegistrationSeq: seq,
		ApprovalStatus:  bracket.ApprovalPending,
		RegisteredBy:    registeredBy,
		CreatedAt:       now,
	}
	if err := s.store.CreateTeam(ctx, tx, team); err != nil {
		return nil, fmt.Errorf("failed to create team: %w", err)
	}
	return team, nil
}

// SetApproval moves a team between approval states. Rejected is terminal and
// nothing can go back to pending. Approving issues the check-in code, and
// rejecting an approved team withdraws its check-in.
func (s *TeamService) SetApproval(ctx context.Context, tx *sqlx.Tx, t *bracket.Tournament, teamID uuid.UUID, status bracket.ApprovalStatus) (*bracket.Team, bool, error) {
	if !status.Valid() {
		return nil, false, invalidInput(fmt.Sprintf("unknown approval status %q", status))
	}

	team, err := s.getTeamTx(ctx, tx, t.ID, teamID)
	if err != nil {
		return nil, false, err
	}

	if team.ApprovalStatus == status {
		return team, false, nil
	}
	if team.ApprovalStatus == bracket.ApprovalRejected || status == bracket.ApprovalPending {
		return nil, false, ErrInvalidTransition
	}
	if t.Phase.HasBracket() {
		return nil, false, fmt.Errorf("%w: approvals are frozen once the bracket exists", ErrInvalidPhase)
	}

	switch status {
	case bracket.ApprovalApproved:
		if team.CheckInCode == nil {
			if err := s.checkIn.GenerateCode(ctx, tx, team); err != nil {
				return nil, false, err
			}
		}
	case bracket.ApprovalRejected:
		team.IsCheckedIn = false
		team.CheckedInAt = nil
		team.CheckInCode = nil
	}
	team.ApprovalStatus = status

	if err := s.store.UpdateTeamTx(ctx, tx, team); err != nil {
		return nil, false, fmt.Errorf("failed to update team: %w", err)
	}
	return team, true, nil
}

// SetSeed overrides registration order for bracket placement. A nil seed clears it.
func (s *TeamService) SetSeed(ctx context.Context, tx *sqlx.Tx, t *bracket.Tournament, teamID uuid.UUID, seed *int) (*bracket.Team, error) {
	if seed != nil && *seed < 1 {
		return nil, invalidInput("seed must be a positive number")
	}
	if t.Phase.HasBracket() {
		return nil, fmt.Errorf("%w: seeds are frozen once the bracket exists", ErrInvalidPhase)
	}

	team, err := s.getTeamTx(ctx, tx, t.ID, teamID)
	if err != nil {
		return nil, err
	}

	team.Seed = seed
	if err := s.store.UpdateTeamTx(ctx, tx, team); err != nil {
		return nil, fmt.Errorf("failed to update team: %w", err)
	}
	return team, nil
}

func (s *TeamService) List(ctx context.Context, tournamentID uuid.UUID, filter store.TeamFilter) ([]bracket.Team, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, invalidInput(fmt.Sprintf("unknown approval status %q", *filter.Status))
	}
	return s.store.GetTeams(ctx, tournamentID, filter)
}

func (s *TeamService) Get(ctx context.Context, tournamentID, teamID uuid.UUID) (*bracket.Team, error) {
	team, err := s.store.GetTeam(ctx, teamID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	if team.TournamentID != tournamentID {
		return nil, ErrTeamNotFound
	}
	return team, nil
}

func (s *TeamService) getTeamTx(ctx context.Context, tx *sqlx.Tx, tournamentID, teamID uuid.UUID) (*bracket.Team, error) {
	team, err := s.store.GetTeamTx(ctx, tx, teamID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	if team.TournamentID != tournamentID {
		return nil, ErrTeamNotFound
	}
	return team, nil
}
