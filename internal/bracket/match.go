package bracket

import (
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchPending    MatchStatus = "pending"
	MatchInProgress MatchStatus = "in_progress"
	MatchCompleted  MatchStatus = "completed"
)

type Match struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournamentId"`

	// Position in the bracket; round 1 is the earliest and slots start at 0
	RoundNumber int `db:"round_number" json:"round"`
	Slot        int `db:"slot" json:"slot"`

	Team1ID *uuid.UUID `db:"team_1_id" json:"team1Id"`
	Team2ID *uuid.UUID `db:"team_2_id" json:"team2Id"`

	Score1 *int        `db:"score_1" json:"score1"`
	Score2 *int        `db:"score_2" json:"score2"`
	Status MatchStatus `db:"status" json:"status"`

	WinnerTeamID *uuid.UUID `db:"winner_team_id" json:"winnerTeamId"`
	IsBye        bool       `db:"is_bye" json:"isBye"`

	NextMatchID *uuid.UUID `db:"next_match_id" json:"nextMatchId"`
	NextSlot    *int       `db:"next_slot" json:"nextSlot"`

	CompletedAt *time.Time `db:"completed_at" json:"completedAt"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
}

func (m *Match) HasBothTeams() bool {
	return m.Team1ID != nil && m.Team2ID != nil
}

// HasResult is true once scores were reported. Byes complete without one.
func (m *Match) HasResult() bool {
	return m.Score1 != nil && m.Score2 != nil
}

func (m *Match) IsWinner(slot int) bool {
	if m.Status != MatchCompleted || m.WinnerTeamID == nil {
		return false
	}
	switch slot {
	case 1:
		return m.Team1ID != nil && *m.Team1ID == *m.WinnerTeamID
	case 2:
		return m.Team2ID != nil && *m.Team2ID == *m.WinnerTeamID
	}
	return false
}

func (m *Match) IsLoser(slot int) bool {
	return m.Status == MatchCompleted && m.WinnerTeamID != nil && !m.IsWinner(slot)
}

// SetTeam writes a team into slot 1 or 2 and refreshes the ready status.
func (m *Match) SetTeam(slot int, teamID *uuid.UUID) {
	if slot == 1 {
		m.Team1ID = teamID
	} else {
		m.Team2ID = teamID
	}
	if m.Status == MatchCompleted {
		return
	}
	if m.HasBothTeams() {
		m.Status = MatchInProgress
	} else {
		m.Status = MatchPending
	}
}
