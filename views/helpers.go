package views

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/tourney/internal/bracket"
	users "github.com/AdamBeresnev/tourney/internal/user"
	"github.com/google/uuid"
)

func GetUser(ctx context.Context) *users.User {
	return users.FromContext(ctx)
}

// RoundLabel names a round counting back from the final.
func RoundLabel(round, totalRounds int) string {
	switch totalRounds - round {
	case 0:
		return "Final"
	case 1:
		return "Semifinals"
	case 2:
		return "Quarterfinals"
	default:
		return fmt.Sprintf("Round %d", round)
	}
}

func teamName(teams map[uuid.UUID]bracket.Team, id *uuid.UUID) string {
	if id == nil {
		return "TBD"
	}
	if team, ok := teams[*id]; ok {
		return team.Name
	}
	return "Unknown team"
}

func score(s *int) string {
	if s == nil {
		return "-"
	}
	return fmt.Sprint(*s)
}

func matchClass(m bracket.Match) string {
	class := "match " + string(m.Status)
	if m.IsBye {
		class += " bye"
	}
	return class
}

type teamSlot struct {
	Slot  string
	Class string
	Name  string
	Score string
}

func matchSlots(m bracket.Match, teams map[uuid.UUID]bracket.Team) []teamSlot {
	slots := make([]teamSlot, 0, 2)
	for _, slot := range []int{1, 2} {
		teamID, s := m.Team1ID, m.Score1
		if slot == 2 {
			teamID, s = m.Team2ID, m.Score2
		}

		class := "team"
		if m.IsWinner(slot) {
			class += " winner"
		} else if m.IsLoser(slot) && teamID != nil {
			class += " loser"
		}
		name := teamName(teams, teamID)
		if m.IsBye && teamID == nil {
			name = "BYE"
		}
		slots = append(slots, teamSlot{
			Slot:  fmt.Sprint(slot),
			Class: class,
			Name:  name,
			Score: score(s),
		})
	}
	return slots
}
