package views

import (
	"sort"

	"github.com/AdamBeresnev/tourney/internal/bracket"
	"github.com/google/uuid"
)

type BracketData struct {
	Rounds    map[int][]bracket.Match
	RoundNums []int
	TeamMap   map[uuid.UUID]bracket.Team
}

func PrepareBracketData(teams []bracket.Team, matches []bracket.Match) BracketData {
	teamMap := make(map[uuid.UUID]bracket.Team)
	for _, t := range teams {
		teamMap[t.ID] = t
	}

	rounds := make(map[int][]bracket.Match)
	var roundNums []int

	for _, m := range matches {
		if _, exists := rounds[m.RoundNumber]; !exists {
			roundNums = append(roundNums, m.RoundNumber)
		}
		rounds[m.RoundNumber] = append(rounds[m.RoundNumber], m)
	}

	sort.Ints(roundNums)
	sortRounds(rounds, roundNums)

	return BracketData{
		Rounds:    rounds,
		RoundNums: roundNums,
		TeamMap:   teamMap,
	}
}

func sortRounds(rounds map[int][]bracket.Match, roundNums []int) {
	for _, r := range roundNums {
		sort.Slice(rounds[r], func(i, j int) bool {
			return rounds[r][i].Slot < rounds[r][j].Slot
		})
	}
}
