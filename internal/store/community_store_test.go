package store

import (
	"context"
	"testing"
	"time"

	"github.com/AdamBeresnev/tourney/internal/db/dbtest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatMessages(t *testing.T) {
	db := dbtest.New(t)
	tournament := createTestTournament(t, db, NewTournamentStore(db))
	community := NewCommunityStore(db)

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, body := range []string{"one", "two", "three"} {
		require.NoError(t, community.AppendMessage(context.Background(), &ChatMessage{
			ID:           uuid.New(),
			TournamentID: tournament.ID,
			UserID:       uuid.New(),
			Username:     "p",
			Body:         body,
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}))
	}

	latest, err := community.ListMessages(context.Background(), tournament.ID, time.Time{}, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "two", latest[0].Body)
	assert.Equal(t, "three", latest[1].Body)

	since, err := community.ListMessages(context.Background(), tournament.ID, base, 10)
	require.NoError(t, err)
	assert.Len(t, since, 2)
}

func TestAppendReport(t *testing.T) {
	db := dbtest.New(t)
	community := NewCommunityStore(db)

	report := &Report{
		ID:         uuid.New(),
		ReporterID: uuid.New(),
		TargetType: "chat_message",
		TargetID:   uuid.NewString(),
		Reason:     "spam",
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, community.AppendReport(context.Background(), report))

	var reason string
	require.NoError(t, db.Get(&reason, "SELECT reason FROM reports WHERE id = ?", report.ID))
	assert.Equal(t, "spam", reason)
}
