package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AdamBeresnev/tourney/internal/bracket"
	"github.com/AdamBeresnev/tourney/internal/lock"
	"github.com/AdamBeresnev/tourney/internal/store"
	"github.com/AdamBeresnev/tourney/internal/stream"
	users "github.com/AdamBeresnev/tourney/internal/user"
	"github.com/AdamBeresnev/tourney/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultCheckInWindow = 60 * time.Minute
	maxTournamentName    = 100
)

type Options struct {
	CheckInWindow time.Duration
	LockTimeout   time.Duration
	// Host the web client is served from, needed by some stream embeds
	StreamParent string
	Now          func() time.Time
}

// TournamentService owns the tournament phase machine. Every write runs under
// the tournament's guard and inside one transaction, and applies any due
// registration -> check-in edge before doing its own work.
type TournamentService struct {
	db           *sqlx.DB
	store        *store.TournamentStore
	locks        *lock.Registry
	now          func() time.Time
	window       time.Duration
	streamParent string

	teams    *TeamService
	checkIn  *CheckInService
	brackets *BracketGeneration
	matches  *MatchService
}

func NewTournamentService(db *sqlx.DB, store *store.TournamentStore, opts Options) *TournamentService {
	if opts.CheckInWindow <= 0 {
		opts.CheckInWindow = DefaultCheckInWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	checkIn := NewCheckInService(store, opts.CheckInWindow)
	return &TournamentService{
		db:           db,
		store:        store,
		locks:        lock.NewRegistry(opts.LockTimeout),
		now:          opts.Now,
		window:       opts.CheckInWindow,
		streamParent: opts.StreamParent,
		teams:        NewTeamService(store, checkIn),
		checkIn:      checkIn,
		brackets:     NewBracketService(store),
		matches:      NewMatchService(store),
	}
}

// TournamentView is a tournament plus the fields derived from the clock.
type TournamentView struct {
	bracket.Tournament
	RegistrationOpen bool       `json:"registrationOpen"`
	CheckInOpen      bool       `json:"checkInOpen"`
	CheckInOpensAt   *time.Time `json:"checkInOpensAt"`
	StreamEmbedURL   *string    `json:"streamEmbedUrl"`
	StreamEmbedType  string     `json:"streamEmbedType"`
}

type TournamentData struct {
	Tournament  *TournamentView
	Teams       []bracket.Team
	Matches     []bracket.Match
	NextMatchID *uuid.UUID
}

type CreateTournamentInput struct {
	Name        string     `json:"name"`
	StartsAt    *time.Time `json:"startsAt"`
	MaxTeams    int        `json:"maxTeams"`
	BracketSize *int       `json:"bracketSize"`
	PrizePool   string     `json:"prizePool"`
	StreamURL   string     `json:"streamUrl"`
}

// UpdateTournamentInput only touches the fields that are set. Start time, team
// limit and bracket size are locked once the tournament leaves draft.
type UpdateTournamentInput struct {
	Name        *string    `json:"name"`
	StartsAt    *time.Time `json:"startsAt"`
	MaxTeams    *int       `json:"maxTeams"`
	BracketSize *int       `json:"bracketSize"`
	PrizePool   *string    `json:"prizePool"`
	StreamURL   *string    `json:"streamUrl"`
}

func (s *TournamentService) view(t *bracket.Tournament) *TournamentView {
	now := s.now()
	v := &TournamentView{
		Tournament:       *t,
		RegistrationOpen: t.RegistrationOpen(now, s.window),
		CheckInOpen:      t.CheckInOpen(now, s.window),
		CheckInOpensAt:   t.CheckInOpensAt(s.window),
	}

	embed := stream.GetEmbedInfo(t.StreamURL, s.streamParent)
	v.StreamEmbedType = embed.Type.String()
	if embed.Type != stream.EmbedTypeNone {
		v.StreamEmbedURL = &embed.URL
	}
	return v
}

func requireUser(ctx context.Context) (*users.User, error) {
	user := users.FromContext(ctx)
	if user == nil {
		return nil, ErrNotAuthenticated
	}
	return user, nil
}

func requireAdmin(ctx context.Context) error {
	user, err := requireUser(ctx)
	if err != nil {
		return err
	}
	if !user.IsAdmin() {
		return ErrAdminRequired
	}
	return nil
}

func validateBracketSize(size *int) error {
	if size == nil {
		return nil
	}
	if *size < 2 || !isPowerOfTwo(*size) {
		return invalidInput("bracket size must be a power of two of at least 2")
	}
	return nil
}

// withTournament runs fn under the tournament's guard inside a single
// transaction. Check-ins take the guard shared, everything else exclusive.
func (s *TournamentService) withTournament(ctx context.Context, id uuid.UUID, exclusive bool, fn func(tx *sqlx.Tx, t *bracket.Tournament) error) error {
	acquire := s.locks.Shared
	if exclusive {
		acquire = s.locks.Exclusive
	}
	release, err := acquire(ctx, id)
	if err != nil {
		if errors.Is(err, lock.ErrBusy) {
			return ErrTournamentBusy
		}
		return err
	}
	defer release()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	t, err := s.store.GetTournamentTx(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTournamentNotFound
		}
		return fmt.Errorf("failed to get tournament: %w", err)
	}

	if err := s.syncPhase(ctx, tx, t); err != nil {
		return err
	}

	if err := fn(tx, t); err != nil {
		return err
	}

	return tx.Commit()
}

// syncPhase applies the clock driven registration -> check-in edge.
func (s *TournamentService) syncPhase(ctx context.Context, tx *sqlx.Tx, t *bracket.Tournament) error {
	if !t.DueForCheckIn(s.now(), s.window) {
		return nil
	}
	return s.setPhase(ctx, tx, t, bracket.PhaseCheckInOpen)
}

func (s *TournamentService) setPhase(ctx context.Context, tx *sqlx.Tx, t *bracket.Tournament, phase bracket.Phase) error {
	from := t.Phase
	t.Phase = phase
	t.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateTournamentTx(ctx, tx, t); err != nil {
		return fmt.Errorf("failed to update tournament phase: %w", err)
	}
	slog.Info("Tournament phase changed", "tournament_id", t.ID, "from", from, "phase", phase)
	return nil
}

func (s *TournamentService) CreateTournament(ctx context.Context, input CreateTournamentInput) (*TournamentView, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, ErrAdminRequired
	}

	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, invalidInput("tournament name is required")
	}
	if len(input.Name) > maxTournamentName {
		return nil, invalidInput(fmt.Sprintf("tournament name exceeds %d characters", maxTournamentName))
	}
	if input.MaxTeams < 0 {
		return nil, invalidInput("max teams cannot be negative")
	}
	if err := validateBracketSize(input.BracketSize); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	t := &bracket.Tournament{
		ID:          uuid.New(),
		OwnerID:     user.ID,
		Name:        input.Name,
		StartsAt:    input.StartsAt,
		MaxTeams:    input.MaxTeams,
		BracketSize: input.BracketSize,
		Phase:       bracket.PhaseDraft,
		PrizePool:   strings.TrimSpace(input.PrizePool),
		StreamURL:   utils.StringOrNil(input.StreamURL),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.store.CreateTournament(ctx, tx, t); err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.Info("Tournament created", "tournament_id", t.ID, "phase", t.Phase)
	return s.view(t), nil
}

func (s *TournamentService) UpdateTournament(ctx context.Context, id uuid.UUID, input UpdateTournamentInput) (*TournamentView, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	var updated *bracket.Tournament
	err := s.withTournament(ctx, id, true, func(tx *sqlx.Tx, t *bracket.Tournament) error {
		if input.StartsAt != nil || input.MaxTeams != nil || input.BracketSize != nil {
			if t.Phase != bracket.PhaseDraft {
				return fmt.Errorf("%w: start time, team limit and bracket size are fixed after draft", ErrInvalidPhase)
			}
		}

		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" || len(name) > maxTournamentName {
				return invalidInput("tournament name must be between 1 and 100 characters")
			}
			t.Name = name
		}
		if input.StartsAt != nil {
			t.StartsAt = input.StartsAt
		}
		if input.MaxTeams != nil {
			if *input.MaxTeams < 0 {
				return invalidInput("max teams cannot be negative")
			}
			t.MaxTeams = *input.MaxTeams
		}
		if input.BracketSize != nil {
			if err := validateBracketSize(input.BracketSize); err != nil {
				return err
			}
			t.BracketSize = input.BracketSize
		}
		if input.PrizePool != nil {
			t.PrizePool = strings.TrimSpace(*input.PrizePool)
		}
		if input.StreamURL != nil {
			t.StreamURL = utils.StringOrNil(*input.StreamURL)
		}

		t.UpdatedAt = s.now().UTC()
		if err := s.store.UpdateTournamentTx(ctx, tx, t); err != nil {
			return fmt.Errorf("failed to update tournament: %w", err)
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.view(updated), nil
}

func (s *TournamentService) OpenRegistration(ctx context.Context, id uuid.UUID) (*TournamentView, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	var updated *bracket.Tournament
	err := s.withTournament(ctx, id, true, func(tx *sqlx.Tx, t *bracket.Tournament) error {
		updated = t
		switch t.Phase {
		case bracket.PhaseRegistrationOpen:
			return nil
		case bracket.PhaseDraft:
		default:
			return fmt.Errorf("%w: registration can only be opened from draft", ErrInvalidPhase)
		}

		if t.StartsAt == nil {
			return invalidInput("a start time is required before registration opens")
		}
		if !t.StartsAt.After(s.now()) {
			return invalidInput("start time must be in the future")
		}
		if t.MaxTeams <= 0 {
			return invalidInput("max teams must be greater than zero")
		}

		if err := s.setPhase(ctx, tx, t, bracket.PhaseRegistrationOpen); err != nil {
			return err
		}
		// A start time inside the check-in window skips straight to check-in
		return s.syncPhase(ctx, tx, t)
	})
	if err != nil {
		return nil, err
	}
	return s.view(updated), nil
}

// CloseRegistration moves the tournament to check-in ahead of the clock.
func (s *TournamentService) CloseRegistration(ctx context.Context, id uuid.UUID) (*TournamentView, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	var updated *bracket.Tournament
	err := s.withTournament(ctx, id, true, func(tx *sqlx.Tx, t *bracket.Tournament) error {
		updated = t
		switch t.Phase {
		case bracket.PhaseCheckInOpen:
			return nil
		case bracket.PhaseRegistrationOpen:
			return s.setPhase(ctx, tx, t, bracket.PhaseCheckInOpen)
		default:
			return fmt.Errorf("%w: registration is not open", ErrInvalidPhase)
		}
	})
	if err != nil {
		return nil, err
	}
	return s.view(updated), nil
}

func (s *TournamentService) DeleteTournament(ctx context.Context, id uuid.UUID) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}

	err := s.withTournament(ctx, id, true, func(tx *sqlx.Tx, t *bracket.Tournament) error {
		if err := s.store.DeleteTournamentTx(ctx, tx, t.ID); err != nil {
			return fmt.Errorf("failed to delete tournament: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.locks.Forget(id)
	slog.Info("Tournament deleted", "tournament_id", id)
	return nil
}

func (s *TournamentService) GetTournament(ctx context.Context, id uuid.UUID) (*TournamentView, error) {
	t, err := s.store.GetTournament(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament: %w", err)
	}
	return s.view(t), nil
}

func (s *TournamentService) ListTournaments(ctx context.Context) ([]TournamentView, error) {
	tournaments, err := s.store.ListTournaments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}

	views := make([]TournamentView, 0, len(tournaments))
	for i := range tournaments {
		views = append(views, *s.view(&tournaments[i]))
	}
	return views, nil
}

// GetTournamentData loads everything a bracket page needs. Teams and matches
// are read side by side.
func (s *TournamentService) GetTournamentData(ctx context.Context, id uuid.UUID) (*TournamentData, error) {
	tournament, err := s.GetTournament(ctx, id)
	if err != nil {
		return nil, err
	}

	var teams []bracket.Team
	var matches []bracket.Match

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		teams, err = s.store.GetTeams(gctx, id, store.TeamFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		matches, err = s.store.GetMatches(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load tournament data: %w", err)
	}

	var nextMatchID *uuid.UUID
	for _, m := range matches {
		if m.Status == bracket.MatchInProgress {
			nextMatchID = utils.Ptr(m.ID)
			break
		}
	}

	return &TournamentData{
		Tournament:  tournament,
		Teams:       teams,
		Matches:     matches,
		NextMatchID: nextMatchID,
	}, nil
}

// AdvanceDuePhases moves every tournament whose check-in window has begun out
// of registration. Busy tournaments are left for the next run.
func (s *TournamentService) AdvanceDuePhases(ctx context.Context) (int, error) {
	open, err := s.store.ListTournamentsByPhase(ctx, bracket.PhaseRegistrationOpen)
	if err != nil {
		return 0, fmt.Errorf("failed to list open tournaments: %w", err)
	}

	advanced := 0
	now := s.now()
	for i := range open {
		if !open[i].DueForCheckIn(now, s.window) {
			continue
		}

		var moved bool
		err := s.withTournament(ctx, open[i].ID, true, func(tx *sqlx.Tx, t *bracket.Tournament) error {
			moved = t.Phase == bracket.PhaseCheckInOpen
			return nil
		})
		switch {
		case errors.Is(err, ErrTournamentBusy), errors.Is(err, ErrTournamentNotFound):
			slog.Warn("Skipping phase advance", "tournament_id", open[i].ID, "error", err)
			continue
		case err != nil:
			return advanced, err
		}
		if moved {
			advanced++
		}
	}
	return advanced, nil
}

func (s *TournamentService) RegisterTeam(ctx context.Context, tournamentID uuid.UUID, input TeamInput) (*bracket.Team, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	var team *bracket.Team
	err = s.withTournament(ctx, tournamentID, true, func(tx *sqlx.Tx, t *bracket.Tournament) error {
		var err error
		team, err = s.teams.Register(ctx, tx, t, input, &user.ID, s.now().UTC(), s.window)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Team registered", "tournament_id", tournamentID, "team_id", team.ID)
	return team, nil
}

func (s *TournamentService) SetApproval(ctx context.Context, tournamentID, teamID uuid.UUID, status bracket.ApprovalStatus) (*bracket.Team, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	var team *bracket.Team
	var changed bool
	err := s.withTournament(ctx, tournamentID, true, func(tx *sqlx.Tx, t *bracket.Tournament) error {
		var err error
		team, changed, err = s.teams.SetApproval(ctx, tx, t, teamID, status)
		return err
	})
	if err != nil {
		return nil, err
	}

	if changed {
		slog.Info("Team approval changed", "tournament_id", tournamentID, "team_id", teamID, "status", status)
	}
	return team, nil
}

func (s *TournamentService) SetSeed(ctx context.Context, tournamentID, teamID uuid.UUID, seed *int) (*bracket.Team, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	var team *bracket.Team
	err := s.withTournament(ctx, tournamentID, true, func(tx *sqlx.Tx, t *bracket.Tournament) error {
		var err error
		team, err = s.teams.SetSeed(ctx, tx, t, teamID, seed)
		return err
	})
	return team, err
}

func (s *TournamentService) ListTeams(ctx context.Context, tournamentID uuid.UUID, filter store.TeamFilter) ([]bracket.Team, error) {
	if _, err := s.GetTournament(ctx, tournamentID); err != nil {
		return nil, err
	}
	return s.teams.List(ctx, tournamentID, filter)
}

func (s *TournamentService) GetTeam(ctx context.Context, tournamentID, teamID uuid.UUID) (*bracket.Team, error) {
	return s.teams.Get(ctx, tournamentID, teamID)
}

// GetCheckInCode hands a team's code to an admin or to the user who registered it.
func (s *TournamentService) GetCheckInCode(ctx context.Context, tournamentID, teamID uuid.UUID) (string, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return "", err
	}

	team, err := s.teams.Get(ctx, tournamentID, teamID)
	if err != nil {
		return "", err
	}

	registrant := team.RegisteredBy != nil && *team.RegisteredBy == user.ID
	if !user.IsAdmin() && !registrant {
		return "", ErrAdminRequired
	}
	if team.CheckInCode == nil {
		return "", ErrCodeNotIssued
	}
	return *team.CheckInCode, nil
}

// CheckIn only takes the guard shared so teams checking in at the same time
// do not queue behind each other.
func (s *TournamentService) CheckIn(ctx context.Context, tournamentID uuid.UUID, code string) (*bracket.Team, error) {
	var team *bracket.Team
	err := s.withTournament(ctx, tournamentID, false, func(tx *sqlx.Tx, t *bracket.Tournament) error {
		var err error
		team, err = s.checkIn.CheckIn(ctx, tx, t, code, s.now().UTC())
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Team checked in", "tournament_id", tournamentID, "team_id", team.ID)
	return team, nil
}

func (s *TournamentService) GenerateBracket(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Match, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	var matches []bracket.Match
	err := s.withTournament(ctx, tournamentID, true, func(tx *sqlx.Tx, t *bracket.Tournament) error {
		if t.Phase.HasBracket() {
			return ErrBracketAlreadyGenerated
		}
		if t.Phase != bracket.PhaseCheckInOpen {
			return fmt.Errorf("%w: bracket can only be generated during check-in", ErrInvalidPhase)
		}

		generated, size, err := s.brackets.Generate(ctx, tx, t, s.now().UTC())
		if err != nil {
			return err
		}

		t.BracketSize = &size
		if err := s.setPhase(ctx, tx, t, bracket.PhaseBracketGenerated); err != nil {
			return err
		}
		matches = generated
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Bracket generated", "tournament_id", tournamentID, "matches", len(matches))
	return matches, nil
}

func (s *TournamentService) GetMatches(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Match, error) {
	if _, err := s.GetTournament(ctx, tournamentID); err != nil {
		return nil, err
	}
	return s.matches.GetMatches(ctx, tournamentID)
}

func (s *TournamentService) GetMatch(ctx context.Context, matchID uuid.UUID) (*bracket.Match, error) {
	return s.matches.GetMatch(ctx, matchID)
}

// ReportResult records a match result and drives the tournament forward: the
// first result starts it and the final's result completes it.
func (s *TournamentService) ReportResult(ctx context.Context, matchID uuid.UUID, score1, score2 int) (*Progress, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	match, err := s.matches.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}

	var progress *Progress
	err = s.withTournament(ctx, match.TournamentID, true, func(tx *sqlx.Tx, t *bracket.Tournament) error {
		if !t.Phase.HasBracket() {
			return fmt.Errorf("%w: bracket has not been generated", ErrInvalidPhase)
		}

		var err error
		progress, err = s.matches.ReportResult(ctx, tx, matchID, score1, score2, s.now().UTC())
		if err != nil {
			return err
		}

		if progress.Champion != nil {
			t.WinnerTeamID = progress.Champion
			if t.Phase == bracket.PhaseCompleted {
				// Corrected final
				t.UpdatedAt = s.now().UTC()
				return s.store.UpdateTournamentTx(ctx, tx, t)
			}
			return s.setPhase(ctx, tx, t, bracket.PhaseCompleted)
		}
		if t.Phase == bracket.PhaseBracketGenerated {
			return s.setPhase(ctx, tx, t, bracket.PhaseInProgress)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Match result reported", "tournament_id", match.TournamentID, "match_id", matchID, "score1", score1, "score2", score2)
	return progress, nil
}
