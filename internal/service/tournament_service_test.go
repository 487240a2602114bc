package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/AdamBeresnev/tourney/internal/bracket"
	"github.com/AdamBeresnev/tourney/internal/store"
	"github.com/AdamBeresnev/tourney/internal/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTournament(t *testing.T) {
	f := newFixture(t)

	created, err := f.svc.CreateTournament(f.admin, CreateTournamentInput{
		Name:      " Spring Cup ",
		StartsAt:  utils.Ptr(f.startTime()),
		MaxTeams:  16,
		PrizePool: "$500",
	})
	require.NoError(t, err)
	assert.Equal(t, "Spring Cup", created.Name)
	assert.Equal(t, bracket.PhaseDraft, created.Phase)
	assert.False(t, created.RegistrationOpen)
	assert.False(t, created.CheckInOpen)
	require.NotNil(t, created.CheckInOpensAt)
	assert.Equal(t, f.startTime().Add(-time.Hour), *created.CheckInOpensAt)

	stored, err := f.svc.GetTournament(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, stored.ID)
	assert.Equal(t, "$500", stored.PrizePool)

	list, err := f.svc.ListTournaments(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreateTournamentValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		ctx   context.Context
		input CreateTournamentInput
		want  error
	}{
		{"anonymous", context.Background(), CreateTournamentInput{Name: "Cup"}, ErrNotAuthenticated},
		{"player", f.player, CreateTournamentInput{Name: "Cup"}, ErrAdminRequired},
		{"blank name", f.admin, CreateTournamentInput{Name: "   "}, ErrInvalidInput},
		{"long name", f.admin, CreateTournamentInput{Name: strings.Repeat("n", 101)}, ErrInvalidInput},
		{"negative max teams", f.admin, CreateTournamentInput{Name: "Cup", MaxTeams: -1}, ErrInvalidInput},
		{"bracket size not a power of two", f.admin, CreateTournamentInput{Name: "Cup", BracketSize: utils.Ptr(6)}, ErrInvalidInput},
		{"bracket size too small", f.admin, CreateTournamentInput{Name: "Cup", BracketSize: utils.Ptr(1)}, ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateTournament(tt.ctx, tt.input)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOpenRegistration(t *testing.T) {
	f := newFixture(t)

	noStart, err := f.svc.CreateTournament(f.admin, CreateTournamentInput{Name: "No start", MaxTeams: 4})
	require.NoError(t, err)
	_, err = f.svc.OpenRegistration(f.admin, noStart.ID)
	assert.ErrorIs(t, err, ErrInvalidInput)

	past, err := f.svc.CreateTournament(f.admin, CreateTournamentInput{Name: "Past", StartsAt: utils.Ptr(f.clock.Now().Add(-time.Minute)), MaxTeams: 4})
	require.NoError(t, err)
	_, err = f.svc.OpenRegistration(f.admin, past.ID)
	assert.ErrorIs(t, err, ErrInvalidInput)

	noTeams, err := f.svc.CreateTournament(f.admin, CreateTournamentInput{Name: "Empty", StartsAt: utils.Ptr(f.startTime())})
	require.NoError(t, err)
	_, err = f.svc.OpenRegistration(f.admin, noTeams.ID)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.OpenRegistration(f.player, noTeams.ID)
	assert.ErrorIs(t, err, ErrAdminRequired)

	_, err = f.svc.OpenRegistration(f.admin, uuid.New())
	assert.ErrorIs(t, err, ErrTournamentNotFound)

	opened := f.openTournament(t, 4)
	assert.True(t, opened.RegistrationOpen)

	again, err := f.svc.OpenRegistration(f.admin, opened.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.PhaseRegistrationOpen, again.Phase)
}

func TestOpenRegistrationInsideWindowSkipsToCheckIn(t *testing.T) {
	f := newFixture(t)

	soon, err := f.svc.CreateTournament(f.admin, CreateTournamentInput{
		Name:     "Soon",
		StartsAt: utils.Ptr(f.clock.Now().Add(30 * time.Minute)),
		MaxTeams: 4,
	})
	require.NoError(t, err)

	opened, err := f.svc.OpenRegistration(f.admin, soon.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.PhaseCheckInOpen, opened.Phase)
	assert.False(t, opened.RegistrationOpen)
	assert.True(t, opened.CheckInOpen)
}

func TestUpdateTournament(t *testing.T) {
	f := newFixture(t)

	created, err := f.svc.CreateTournament(f.admin, CreateTournamentInput{Name: "Cup", MaxTeams: 4})
	require.NoError(t, err)

	updated, err := f.svc.UpdateTournament(f.admin, created.ID, UpdateTournamentInput{
		StartsAt:  utils.Ptr(f.startTime()),
		MaxTeams:  utils.Ptr(8),
		StreamURL: utils.Ptr("https://www.twitch.tv/spring_cup"),
	})
	require.NoError(t, err)
	assert.Equal(t, 8, updated.MaxTeams)
	assert.Equal(t, "Cup", updated.Name, "unset fields are kept")
	assert.Equal(t, "twitch", updated.StreamEmbedType)
	require.NotNil(t, updated.StreamEmbedURL)
	assert.Equal(t, "https://player.twitch.tv/?channel=spring_cup&parent=example.com", *updated.StreamEmbedURL)

	_, err = f.svc.OpenRegistration(f.admin, created.ID)
	require.NoError(t, err)

	_, err = f.svc.UpdateTournament(f.admin, created.ID, UpdateTournamentInput{MaxTeams: utils.Ptr(16)})
	assert.ErrorIs(t, err, ErrInvalidPhase)
	_, err = f.svc.UpdateTournament(f.admin, created.ID, UpdateTournamentInput{StartsAt: utils.Ptr(f.startTime().Add(time.Hour))})
	assert.ErrorIs(t, err, ErrInvalidPhase)

	renamed, err := f.svc.UpdateTournament(f.admin, created.ID, UpdateTournamentInput{Name: utils.Ptr("Summer Cup"), StreamURL: utils.Ptr("")})
	require.NoError(t, err)
	assert.Equal(t, "Summer Cup", renamed.Name)
	assert.Nil(t, renamed.StreamURL)
	assert.Nil(t, renamed.StreamEmbedURL)

	_, err = f.svc.UpdateTournament(f.admin, created.ID, UpdateTournamentInput{Name: utils.Ptr(" ")})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCloseRegistration(t *testing.T) {
	f := newFixture(t)
	tournament := f.openTournament(t, 4)

	closed, err := f.svc.CloseRegistration(f.admin, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.PhaseCheckInOpen, closed.Phase)

	again, err := f.svc.CloseRegistration(f.admin, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.PhaseCheckInOpen, again.Phase)

	_, err = f.svc.RegisterTeam(f.player, tournament.ID, TeamInput{Name: "Late", CaptainName: "L"})
	assert.ErrorIs(t, err, ErrRegistrationClosed)

	draft, err := f.svc.CreateTournament(f.admin, CreateTournamentInput{Name: "Draft"})
	require.NoError(t, err)
	_, err = f.svc.CloseRegistration(f.admin, draft.ID)
	assert.ErrorIs(t, err, ErrInvalidPhase)
}

func TestAdvanceDuePhases(t *testing.T) {
	f := newFixture(t)

	early := f.openTournament(t, 4)
	late, err := f.svc.CreateTournament(f.admin, CreateTournamentInput{
		Name:     "Late",
		StartsAt: utils.Ptr(f.startTime().Add(6 * time.Hour)),
		MaxTeams: 4,
	})
	require.NoError(t, err)
	_, err = f.svc.OpenRegistration(f.admin, late.ID)
	require.NoError(t, err)

	n, err := f.svc.AdvanceDuePhases(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	f.openCheckIn()
	n, err = f.svc.AdvanceDuePhases(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.svc.GetTournament(context.Background(), early.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.PhaseCheckInOpen, got.Phase)

	got, err = f.svc.GetTournament(context.Background(), late.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.PhaseRegistrationOpen, got.Phase)

	n, err = f.svc.AdvanceDuePhases(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "already advanced")
}

func TestAdvanceDuePhasesSkipsBusyTournament(t *testing.T) {
	f := newFixture(t)
	tournament := f.openTournament(t, 4)
	f.openCheckIn()

	release, err := f.svc.locks.Exclusive(context.Background(), tournament.ID)
	require.NoError(t, err)

	n, err := f.svc.AdvanceDuePhases(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	release()
	n, err = f.svc.AdvanceDuePhases(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWritesFailWhileTournamentBusy(t *testing.T) {
	f := newFixture(t)
	tournament := f.openTournament(t, 4)

	release, err := f.svc.locks.Exclusive(context.Background(), tournament.ID)
	require.NoError(t, err)
	defer release()

	_, err = f.svc.RegisterTeam(f.player, tournament.ID, TeamInput{Name: "A", CaptainName: "A"})
	assert.ErrorIs(t, err, ErrTournamentBusy)

	_, err = f.svc.CheckIn(context.Background(), tournament.ID, "ABCDEF")
	assert.ErrorIs(t, err, ErrTournamentBusy)

	// Reads do not take the guard
	_, err = f.svc.GetTournament(context.Background(), tournament.ID)
	assert.NoError(t, err)
}

func TestDeleteTournamentCascades(t *testing.T) {
	f := newFixture(t)
	tournament, _ := f.qualifiedTournament(t, "A", "B", "C")
	_, err := f.svc.GenerateBracket(f.admin, tournament.ID)
	require.NoError(t, err)

	require.ErrorIs(t, f.svc.DeleteTournament(f.player, tournament.ID), ErrAdminRequired)
	require.NoError(t, f.svc.DeleteTournament(f.admin, tournament.ID))

	_, err = f.svc.GetTournament(context.Background(), tournament.ID)
	assert.ErrorIs(t, err, ErrTournamentNotFound)

	var teams, matches int
	require.NoError(t, f.db.Get(&teams, "SELECT COUNT(*) FROM teams WHERE tournament_id = ?", tournament.ID))
	require.NoError(t, f.db.Get(&matches, "SELECT COUNT(*) FROM matches WHERE tournament_id = ?", tournament.ID))
	assert.Zero(t, teams)
	assert.Zero(t, matches)

	assert.ErrorIs(t, f.svc.DeleteTournament(f.admin, tournament.ID), ErrTournamentNotFound)
}

func TestTournamentRunsToCompletion(t *testing.T) {
	f := newFixture(t)
	tournament, teams := f.qualifiedTournament(t, "A", "B", "C", "D")

	matches, err := f.svc.GenerateBracket(f.admin, tournament.ID)
	require.NoError(t, err)

	generated, err := f.svc.GetTournament(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.PhaseBracketGenerated, generated.Phase)
	require.NotNil(t, generated.BracketSize)
	assert.Equal(t, 4, *generated.BracketSize)

	data, err := f.svc.GetTournamentData(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Len(t, data.Teams, 4)
	assert.Len(t, data.Matches, 3)
	require.NotNil(t, data.NextMatchID)
	assert.Equal(t, findMatch(t, matches, 1, 0).ID, *data.NextMatchID)

	semi1 := findMatch(t, matches, 1, 0)
	_, err = f.svc.ReportResult(f.admin, semi1.ID, 2, 0)
	require.NoError(t, err)

	running, err := f.svc.GetTournament(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.PhaseInProgress, running.Phase)

	semi2 := findMatch(t, matches, 1, 1)
	_, err = f.svc.ReportResult(f.admin, semi2.ID, 0, 2)
	require.NoError(t, err)

	final := findMatch(t, matches, 2, 0)
	progress, err := f.svc.ReportResult(f.admin, final.ID, 3, 1)
	require.NoError(t, err)
	require.NotNil(t, progress.Champion)
	assert.Equal(t, teams[0].ID, *progress.Champion)

	done, err := f.svc.GetTournament(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.PhaseCompleted, done.Phase)
	require.NotNil(t, done.WinnerTeamID)
	assert.Equal(t, teams[0].ID, *done.WinnerTeamID)

	data, err = f.svc.GetTournamentData(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Nil(t, data.NextMatchID)
}

func TestListTeamsUnknownTournament(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetMatches(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrTournamentNotFound)

	_, err = f.svc.GetTournamentData(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrTournamentNotFound)

	_, err = f.svc.ListTeams(context.Background(), uuid.New(), store.TeamFilter{})
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}
