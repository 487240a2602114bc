package service

import (
	"context"
	"testing"

	"github.com/AdamBeresnev/tourney/internal/bracket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportResultScenario(t *testing.T) {
	f := newFixture(t)
	tournament, teams := f.qualifiedTournament(t, "A", "B", "C", "D")
	a, c := teams[0], teams[2]

	matches, err := f.svc.GenerateBracket(f.admin, tournament.ID)
	require.NoError(t, err)
	first := findMatch(t, matches, 1, 0)
	second := findMatch(t, matches, 1, 1)
	final := findMatch(t, matches, 2, 0)

	// A 13-5 D
	progress, err := f.svc.ReportResult(f.admin, first.ID, 13, 5)
	require.NoError(t, err)
	assert.Equal(t, a.ID, *progress.Match.WinnerTeamID)
	assert.Equal(t, bracket.MatchCompleted, progress.Match.Status)
	require.NotNil(t, progress.Next)
	assert.Equal(t, final.ID, progress.Next.ID)
	assert.Equal(t, a.ID, *progress.Next.Team1ID)
	assert.Nil(t, progress.Champion)

	view, err := f.svc.GetTournament(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.PhaseInProgress, view.Phase)

	// B 10-12 C
	progress, err = f.svc.ReportResult(f.admin, second.ID, 10, 12)
	require.NoError(t, err)
	assert.Equal(t, c.ID, *progress.Match.WinnerTeamID)
	assert.Equal(t, c.ID, *progress.Next.Team2ID)
	assert.Equal(t, bracket.MatchInProgress, progress.Next.Status)

	// A 13-7 C
	progress, err = f.svc.ReportResult(f.admin, final.ID, 13, 7)
	require.NoError(t, err)
	require.NotNil(t, progress.Champion)
	assert.Equal(t, a.ID, *progress.Champion)
	assert.Nil(t, progress.Next)

	view, err = f.svc.GetTournament(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.PhaseCompleted, view.Phase)
	require.NotNil(t, view.WinnerTeamID)
	assert.Equal(t, a.ID, *view.WinnerTeamID)

	stored, err := f.svc.GetMatches(context.Background(), tournament.ID)
	require.NoError(t, err)
	for _, m := range stored {
		assert.Equal(t, bracket.MatchCompleted, m.Status)
		require.NotNil(t, m.WinnerTeamID)
		assert.True(t, *m.WinnerTeamID == *m.Team1ID || *m.WinnerTeamID == *m.Team2ID)
		assert.NotEqual(t, *m.Score1, *m.Score2)
	}
}

func TestReportResultValidation(t *testing.T) {
	f := newFixture(t)
	tournament, _ := f.qualifiedTournament(t, "A", "B", "C")

	matches, err := f.svc.GenerateBracket(f.admin, tournament.ID)
	require.NoError(t, err)
	bye := findMatch(t, matches, 1, 0)
	played := findMatch(t, matches, 1, 1)
	final := findMatch(t, matches, 2, 0)

	tests := []struct {
		name    string
		matchID uuid.UUID
		score1  int
		score2  int
		want    error
	}{
		{"unknown match", uuid.New(), 1, 0, ErrMatchNotFound},
		{"tie", played.ID, 7, 7, ErrInvalidScore},
		{"negative", played.ID, -1, 3, ErrInvalidScore},
		{"final waiting on a team", final.ID, 13, 2, ErrTeamsNotAssigned},
		{"bye", bye.ID, 13, 0, ErrTeamsNotAssigned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ReportResult(f.admin, tt.matchID, tt.score1, tt.score2)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err = f.svc.ReportResult(f.player, played.ID, 13, 2)
	assert.ErrorIs(t, err, ErrAdminRequired)

	view, err := f.svc.GetTournament(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.PhaseBracketGenerated, view.Phase, "failed reports change nothing")
}

func TestReportResultCorrection(t *testing.T) {
	f := newFixture(t)
	tournament, teams := f.qualifiedTournament(t, "A", "B", "C", "D")
	a, d := teams[0], teams[3]

	matches, err := f.svc.GenerateBracket(f.admin, tournament.ID)
	require.NoError(t, err)
	first := findMatch(t, matches, 1, 0)
	second := findMatch(t, matches, 1, 1)
	final := findMatch(t, matches, 2, 0)

	_, err = f.svc.ReportResult(f.admin, first.ID, 13, 5)
	require.NoError(t, err)

	// Flip the result while the final has not been played
	progress, err := f.svc.ReportResult(f.admin, first.ID, 5, 13)
	require.NoError(t, err)
	assert.Equal(t, d.ID, *progress.Match.WinnerTeamID)
	assert.Equal(t, d.ID, *progress.Next.Team1ID)

	_, err = f.svc.ReportResult(f.admin, second.ID, 13, 11)
	require.NoError(t, err)
	_, err = f.svc.ReportResult(f.admin, final.ID, 13, 9)
	require.NoError(t, err)

	_, err = f.svc.ReportResult(f.admin, first.ID, 13, 5)
	assert.ErrorIs(t, err, ErrDownstreamAlreadyStarted)

	stored, err := f.svc.GetMatch(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, *stored.WinnerTeamID)
	assert.NotEqual(t, a.ID, *stored.WinnerTeamID)
}

func TestCorrectFinalAfterCompletion(t *testing.T) {
	f := newFixture(t)
	tournament, teams := f.qualifiedTournament(t, "A", "B")

	matches, err := f.svc.GenerateBracket(f.admin, tournament.ID)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	final := matches[0]

	_, err = f.svc.ReportResult(f.admin, final.ID, 13, 9)
	require.NoError(t, err)

	progress, err := f.svc.ReportResult(f.admin, final.ID, 9, 13)
	require.NoError(t, err)
	assert.Equal(t, teams[1].ID, *progress.Champion)

	view, err := f.svc.GetTournament(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.PhaseCompleted, view.Phase)
	assert.Equal(t, teams[1].ID, *view.WinnerTeamID)
}

func TestMatchSetTeamStatus(t *testing.T) {
	m := bracket.Match{Status: bracket.MatchPending}
	a, b := uuid.New(), uuid.New()

	m.SetTeam(2, &b)
	assert.Equal(t, bracket.MatchPending, m.Status)

	m.SetTeam(1, &a)
	assert.Equal(t, bracket.MatchInProgress, m.Status)

	m.Status = bracket.MatchCompleted
	m.SetTeam(1, &b)
	assert.Equal(t, bracket.MatchCompleted, m.Status)
}
