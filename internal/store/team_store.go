package store

import (
	"context"
	"strings"

	"github.com/AdamBeresnev/tourney/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// TeamFilter narrows a team listing. Zero values match everything.
type TeamFilter struct {
	Status *bracket.ApprovalStatus
	// Case-insensitive substring of the team name or the captain name
	Query string
}

const (
	createTeamQuery = `INSERT INTO teams (id, tournament_id, name, name_key, captain_name, captain_rank, duo_name, duo_rank, seed, registration_seq, approval_status, is_checked_in, check_in_code, checked_in_at, registered_by, created_at)
		VALUES (:id, :tournament_id, :name, :name_key, :captain_name, :captain_rank, :duo_name, :duo_rank, :seed, :registration_seq, :approval_status, :is_checked_in, :check_in_code, :checked_in_at, :registered_by, :created_at)`
	updateTeamQuery = `UPDATE teams SET
		seed = :seed,
		approval_status = :approval_status,
		is_checked_in = :is_checked_in,
		check_in_code = :check_in_code,
		checked_in_at = :checked_in_at
		WHERE id = :id`
	// Only the first submission flips the flag, so repeated check-ins keep the original timestamp
	checkInTeamQuery = `UPDATE teams SET is_checked_in = 1, checked_in_at = ? WHERE id = ? AND is_checked_in = 0`
)

func (s *TournamentStore) CreateTeam(ctx context.Context, tx *sqlx.Tx, team *bracket.Team) error {
	_, err := tx.NamedExecContext(ctx, createTeamQuery, team)
	return err
}

func (s *TournamentStore) UpdateTeamTx(ctx context.Context, tx *sqlx.Tx, team *bracket.Team) error {
	_, err := tx.NamedExecContext(ctx, updateTeamQuery, team)
	return err
}

// MarkCheckedIn returns false when the team was already checked in.
func (s *TournamentStore) MarkCheckedIn(ctx context.Context, tx *sqlx.Tx, team *bracket.Team) (bool, error) {
	res, err := tx.ExecContext(ctx, checkInTeamQuery, team.CheckedInAt, team.ID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *TournamentStore) GetTeam(ctx context.Context, id uuid.UUID) (*bracket.Team, error) {
	return getTeam(ctx, s.db, id)
}

func (s *TournamentStore) GetTeamTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Team, error) {
	return getTeam(ctx, tx, id)
}

func getTeam(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (*bracket.Team, error) {
	var team bracket.Team
	if err := sqlx.GetContext(ctx, q, &team, "SELECT * FROM teams WHERE id = ?", id); err != nil {
		return nil, err
	}
	return &team, nil
}

func (s *TournamentStore) GetTeamByCodeTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, code string) (*bracket.Team, error) {
	var team bracket.Team
	err := tx.GetContext(ctx, &team, "SELECT * FROM teams WHERE tournament_id = ? AND check_in_code = ?", tournamentID, code)
	if err != nil {
		return nil, err
	}
	return &team, nil
}

func (s *TournamentStore) CheckInCodeExistsTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, code string) (bool, error) {
	var exists bool
	err := tx.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM teams WHERE tournament_id = ? AND check_in_code = ?)", tournamentID, code)
	return exists, err
}

func (s *TournamentStore) TeamNameTakenTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, nameKey string) (bool, error) {
	var exists bool
	err := tx.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM teams WHERE tournament_id = ? AND name_key = ?)", tournamentID, nameKey)
	return exists, err
}

// CountActiveTeamsTx counts pending and approved teams, the ones holding a spot.
func (s *TournamentStore) CountActiveTeamsTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) (int, error) {
	var count int
	err := tx.GetContext(ctx, &count, "SELECT COUNT(*) FROM teams WHERE tournament_id = ? AND approval_status IN (?, ?)",
		tournamentID, bracket.ApprovalPending, bracket.ApprovalApproved)
	return count, err
}

func (s *TournamentStore) NextRegistrationSeqTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) (int, error) {
	var seq int
	err := tx.GetContext(ctx, &seq, "SELECT COALESCE(MAX(registration_seq), 0) + 1 FROM teams WHERE tournament_id = ?", tournamentID)
	return seq, err
}

func (s *TournamentStore) GetTeams(ctx context.Context, tournamentID uuid.UUID, filter TeamFilter) ([]bracket.Team, error) {
	return getTeams(ctx, s.db, tournamentID, filter)
}

func (s *TournamentStore) GetTeamsTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, filter TeamFilter) ([]bracket.Team, error) {
	return getTeams(ctx, tx, tournamentID, filter)
}

func getTeams(ctx context.Context, q sqlx.QueryerContext, tournamentID uuid.UUID, filter TeamFilter) ([]bracket.Team, error) {
	query := "SELECT * FROM teams WHERE tournament_id = ?"
	args := []interface{}{tournamentID}

	if filter.Status != nil {
		query += " AND approval_status = ?"
		args = append(args, *filter.Status)
	}
	if term := strings.ToLower(strings.TrimSpace(filter.Query)); term != "" {
		pattern := "%" + escapeLike(term) + "%"
		query += ` AND (name_key LIKE ? ESCAPE '\' OR LOWER(captain_name) LIKE ? ESCAPE '\')`
		args = append(args, pattern, pattern)
	}
	query += " ORDER BY registration_seq ASC"

	teams := []bracket.Team{}
	err := sqlx.SelectContext(ctx, q, &teams, query, args...)
	return teams, err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
