package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/AdamBeresnev/tourney/internal/bracket"
	"github.com/AdamBeresnev/tourney/internal/db/dbtest"
	"github.com/AdamBeresnev/tourney/internal/store"
	users "github.com/AdamBeresnev/tourney/internal/user"
	"github.com/AdamBeresnev/tourney/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	db     *sqlx.DB
	store  *store.TournamentStore
	svc    *TournamentService
	clock  *testClock
	start  time.Time
	admin  context.Context
	player context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	database := dbtest.New(t)
	tournamentStore := store.NewTournamentStore(database)
	clock := &testClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}

	svc := NewTournamentService(database, tournamentStore, Options{
		CheckInWindow: time.Hour,
		LockTimeout:   200 * time.Millisecond,
		StreamParent:  "example.com",
		Now:           clock.Now,
	})

	admin := &users.User{ID: uuid.New(), Username: "admin", Role: users.RoleAdmin}
	player := &users.User{ID: uuid.New(), Username: "player", Role: users.RolePlayer}

	return &fixture{
		db:     database,
		store:  tournamentStore,
		svc:    svc,
		clock:  clock,
		start:  clock.Now().Add(3 * time.Hour),
		admin:  users.WithUser(context.Background(), admin),
		player: users.WithUser(context.Background(), player),
	}
}

// startTime is three hours after the initial clock, so registration is open
// and check-in begins two hours in.
func (f *fixture) startTime() time.Time {
	return f.start
}

func (f *fixture) openTournament(t *testing.T, maxTeams int) *TournamentView {
	t.Helper()

	created, err := f.svc.CreateTournament(f.admin, CreateTournamentInput{
		Name:     "Spring Cup",
		StartsAt: utils.Ptr(f.startTime()),
		MaxTeams: maxTeams,
	})
	require.NoError(t, err)

	opened, err := f.svc.OpenRegistration(f.admin, created.ID)
	require.NoError(t, err)
	require.Equal(t, bracket.PhaseRegistrationOpen, opened.Phase)
	return opened
}

func (f *fixture) register(t *testing.T, tournamentID uuid.UUID, name string) *bracket.Team {
	t.Helper()

	team, err := f.svc.RegisterTeam(f.player, tournamentID, TeamInput{Name: name, CaptainName: name + " captain"})
	require.NoError(t, err)
	return team
}

func (f *fixture) approve(t *testing.T, tournamentID uuid.UUID, team *bracket.Team) string {
	t.Helper()

	approved, err := f.svc.SetApproval(f.admin, tournamentID, team.ID, bracket.ApprovalApproved)
	require.NoError(t, err)
	require.NotNil(t, approved.CheckInCode)
	return *approved.CheckInCode
}

// openCheckIn moves the clock into the check-in window.
func (f *fixture) openCheckIn() {
	f.clock.Set(f.startTime().Add(-30 * time.Minute))
}

// qualifiedTournament returns a tournament in check-in whose named teams are
// approved and checked in, in registration order.
func (f *fixture) qualifiedTournament(t *testing.T, names ...string) (*TournamentView, []*bracket.Team) {
	t.Helper()

	tournament := f.openTournament(t, len(names)+4)

	var teams []*bracket.Team
	var codes []string
	for _, name := range names {
		team := f.register(t, tournament.ID, name)
		codes = append(codes, f.approve(t, tournament.ID, team))
		teams = append(teams, team)
	}

	f.openCheckIn()
	for _, code := range codes {
		_, err := f.svc.CheckIn(context.Background(), tournament.ID, code)
		require.NoError(t, err)
	}
	return tournament, teams
}

func teamNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("Team %d", i+1)
	}
	return names
}

func findMatch(t *testing.T, matches []bracket.Match, round, slot int) bracket.Match {
	t.Helper()
	for _, m := range matches {
		if m.RoundNumber == round && m.Slot == slot {
			return m
		}
	}
	require.FailNowf(t, "match not found", "round %d slot %d", round, slot)
	return bracket.Match{}
}
