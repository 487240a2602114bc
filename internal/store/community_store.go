package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type ChatMessage struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournamentId"`
	UserID       uuid.UUID `db:"user_id" json:"userId"`
	Username     string    `db:"username" json:"username"`
	Body         string    `db:"body" json:"body"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

type Report struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ReporterID uuid.UUID `db:"reporter_id" json:"reporterId"`
	TargetType string    `db:"target_type" json:"targetType"`
	TargetID   string    `db:"target_id" json:"targetId"`
	Reason     string    `db:"reason" json:"reason"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// CommunityStore backs the chat feed and content-report intake. Both are
// append-only and live outside the tournament lifecycle.
type CommunityStore struct {
	db *sqlx.DB
}

func NewCommunityStore(db *sqlx.DB) *CommunityStore {
	return &CommunityStore{db: db}
}

func (s *CommunityStore) AppendMessage(ctx context.Context, msg *ChatMessage) error {
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO chat_messages (id, tournament_id, user_id, username, body, created_at)
		VALUES (:id, :tournament_id, :user_id, :username, :body, :created_at)`, msg)
	return err
}

// ListMessages returns up to limit messages newer than since, oldest first.
func (s *CommunityStore) ListMessages(ctx context.Context, tournamentID uuid.UUID, since time.Time, limit int) ([]ChatMessage, error) {
	messages := []ChatMessage{}
	err := s.db.SelectContext(ctx, &messages, `SELECT * FROM (
			SELECT * FROM chat_messages WHERE tournament_id = ? AND created_at > ?
			ORDER BY created_at DESC LIMIT ?
		) ORDER BY created_at ASC`, tournamentID, since, limit)
	return messages, err
}

func (s *CommunityStore) AppendReport(ctx context.Context, report *Report) error {
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO reports (id, reporter_id, target_type, target_id, reason, created_at)
		VALUES (:id, :reporter_id, :target_type, :target_id, :reason, :created_at)`, report)
	return err
}
