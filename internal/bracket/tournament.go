package bracket

import (
	"time"

	"github.com/google/uuid"
)

type Phase string

const (
	PhaseDraft            Phase = "draft"
	PhaseRegistrationOpen Phase = "registration_open"
	PhaseCheckInOpen      Phase = "check_in_open"
	PhaseBracketGenerated Phase = "bracket_generated"
	PhaseInProgress       Phase = "in_progress"
	PhaseCompleted        Phase = "completed"
)

var phaseOrder = map[Phase]int{
	PhaseDraft:            0,
	PhaseRegistrationOpen: 1,
	PhaseCheckInOpen:      2,
	PhaseBracketGenerated: 3,
	PhaseInProgress:       4,
	PhaseCompleted:        5,
}

// AtLeast reports whether p is the same phase as other or a later one.
func (p Phase) AtLeast(other Phase) bool {
	return phaseOrder[p] >= phaseOrder[other]
}

// HasBracket is true once matches exist for the tournament.
func (p Phase) HasBracket() bool {
	return p.AtLeast(PhaseBracketGenerated)
}

type Tournament struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	OwnerID      uuid.UUID  `db:"owner_id" json:"ownerId"`
	Name         string     `db:"name" json:"name"`
	StartsAt     *time.Time `db:"starts_at" json:"startsAt"`
	MaxTeams     int        `db:"max_teams" json:"maxTeams"`
	BracketSize  *int       `db:"bracket_size" json:"bracketSize"`
	Phase        Phase      `db:"phase" json:"phase"`
	PrizePool    string     `db:"prize_pool" json:"prizePool"`
	StreamURL    *string    `db:"stream_url" json:"streamUrl"`
	WinnerTeamID *uuid.UUID `db:"winner_team_id" json:"winnerTeamId"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

// CheckInOpensAt is the start of the check-in window, or nil when no start time is set.
func (t *Tournament) CheckInOpensAt(window time.Duration) *time.Time {
	if t.StartsAt == nil {
		return nil
	}
	opens := t.StartsAt.Add(-window)
	return &opens
}

// RegistrationOpen is derived from the phase and the clock: registration closes
// automatically once the check-in window begins.
func (t *Tournament) RegistrationOpen(now time.Time, window time.Duration) bool {
	if t.Phase != PhaseRegistrationOpen {
		return false
	}
	opens := t.CheckInOpensAt(window)
	return opens != nil && now.Before(*opens)
}

// CheckInOpen is true while now is within [start - window, start) and the
// tournament has not moved past check-in. A registration_open tournament whose
// window has begun counts as open since the phase edge is applied lazily.
func (t *Tournament) CheckInOpen(now time.Time, window time.Duration) bool {
	if t.Phase != PhaseCheckInOpen && t.Phase != PhaseRegistrationOpen {
		return false
	}
	opens := t.CheckInOpensAt(window)
	if opens == nil {
		return false
	}
	return !now.Before(*opens) && now.Before(*t.StartsAt)
}

// DueForCheckIn reports whether the automatic registration -> check-in edge should fire.
func (t *Tournament) DueForCheckIn(now time.Time, window time.Duration) bool {
	if t.Phase != PhaseRegistrationOpen {
		return false
	}
	opens := t.CheckInOpensAt(window)
	return opens != nil && !now.Before(*opens)
}

// Rounds is log2 of the generated bracket size, 0 before generation.
func (t *Tournament) Rounds() int {
	if t.BracketSize == nil {
		return 0
	}
	rounds := 0
	for size := *t.BracketSize; size > 1; size >>= 1 {
		rounds++
	}
	return rounds
}
