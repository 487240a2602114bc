package bracket

import (
	"time"

	"github.com/google/uuid"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	}
	return false
}

type Team struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournamentId"`
	Name         string    `db:"name" json:"name"`
	// Lowercased name backing the per-tournament uniqueness constraint
	NameKey string `db:"name_key" json:"-"`

	CaptainName string `db:"captain_name" json:"captainName"`
	CaptainRank string `db:"captain_rank" json:"captainRank"`
	DuoName     string `db:"duo_name" json:"duoName"`
	DuoRank     string `db:"duo_rank" json:"duoRank"`

	Seed            *int `db:"seed" json:"seed"`
	RegistrationSeq int  `db:"registration_seq" json:"registrationSeq"`

	ApprovalStatus ApprovalStatus `db:"approval_status" json:"approvalStatus"`
	IsCheckedIn    bool           `db:"is_checked_in" json:"isCheckedIn"`
	CheckInCode    *string        `db:"check_in_code" json:"-"`
	CheckedInAt    *time.Time     `db:"checked_in_at" json:"checkedInAt"`

	RegisteredBy *uuid.UUID `db:"registered_by" json:"registeredBy"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
}

func (t *Team) Qualified() bool {
	return t.ApprovalStatus == ApprovalApproved && t.IsCheckedIn
}
