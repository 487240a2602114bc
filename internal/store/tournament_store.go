package store

import (
	"context"

	"github.com/AdamBeresnev/tourney/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type TournamentStore struct {
	db *sqlx.DB
}

func NewTournamentStore(db *sqlx.DB) *TournamentStore {
	return &TournamentStore{db: db}
}

const (
	createTournamentQuery = `INSERT INTO tournaments (id, owner_id, name, starts_at, max_teams, bracket_size, phase, prize_pool, stream_url, winner_team_id, created_at, updated_at)
		VALUES (:id, :owner_id, :name, :starts_at, :max_teams, :bracket_size, :phase, :prize_pool, :stream_url, :winner_team_id, :created_at, :updated_at)`
	updateTournamentQuery = `UPDATE tournaments SET
		name = :name,
		starts_at = :starts_at,
		max_teams = :max_teams,
		bracket_size = :bracket_size,
		phase = :phase,
		prize_pool = :prize_pool,
		stream_url = :stream_url,
		winner_team_id = :winner_team_id,
		updated_at = :updated_at
		WHERE id = :id`
)

func (s *TournamentStore) CreateTournament(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament) error {
	_, err := tx.NamedExecContext(ctx, createTournamentQuery, tournament)
	return err
}

func (s *TournamentStore) UpdateTournamentTx(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament) error {
	_, err := tx.NamedExecContext(ctx, updateTournamentQuery, tournament)
	return err
}

func (s *TournamentStore) DeleteTournamentTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM tournaments WHERE id = ?", id)
	return err
}

func (s *TournamentStore) GetTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	return getTournament(ctx, s.db, id)
}

func (s *TournamentStore) GetTournamentTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Tournament, error) {
	return getTournament(ctx, tx, id)
}

func getTournament(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (*bracket.Tournament, error) {
	var tournament bracket.Tournament
	if err := sqlx.GetContext(ctx, q, &tournament, "SELECT * FROM tournaments WHERE id = ?", id); err != nil {
		return nil, err
	}
	return &tournament, nil
}

func (s *TournamentStore) ListTournaments(ctx context.Context) ([]bracket.Tournament, error) {
	tournaments := []bracket.Tournament{}
	err := s.db.SelectContext(ctx, &tournaments, "SELECT * FROM tournaments ORDER BY starts_at IS NULL, starts_at ASC, created_at DESC")
	return tournaments, err
}

func (s *TournamentStore) ListTournamentsByPhase(ctx context.Context, phase bracket.Phase) ([]bracket.Tournament, error) {
	tournaments := []bracket.Tournament{}
	err := s.db.SelectContext(ctx, &tournaments, "SELECT * FROM tournaments WHERE phase = ? ORDER BY starts_at ASC", phase)
	return tournaments, err
}
