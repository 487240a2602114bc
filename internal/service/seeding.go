package service

import (
	"math"
	"sort"

	"github.com/AdamBeresnev/tourney/internal/bracket"
)

// Gets the nearest power of 2 while rounding up, so with input 5 it returns 8 and so on
func calcBracketSize(count int) int {
	if count <= 0 {
		return 0
	}

	// Log2 -> Ceil -> 2^^log2 to round up
	log2 := math.Ceil(math.Log2(float64(count)))
	return int(math.Pow(2, log2))
}

func isPowerOfTwo(n int) bool {
	return n >= 2 && n&(n-1) == 0
}

// generateRound1Pairs returns the zero-based seed indexes meeting in each round 1
// slot. Every seed s is paired with (size-1)-s and the halves are interleaved,
// which yields 1v8, 4v5, 2v7, 3v6 for eight teams: seeds 1 and 2 sit in opposite
// halves and can only meet in the final.
func generateRound1Pairs(bracketSize int) [][2]int {
	if bracketSize == 0 {
		return [][2]int{}
	}

	rounds := []int{0}
	for len(rounds) < bracketSize {
		var nextRound []int
		currentCount := len(rounds) * 2

		for _, seed := range rounds {
			nextRound = append(nextRound, seed)
			nextRound = append(nextRound, (currentCount-1)-seed)
		}
		rounds = nextRound
	}

	pairs := make([][2]int, 0, len(rounds)/2)
	for i := 0; i < len(rounds); i += 2 {
		matchup := [2]int{rounds[i], rounds[i+1]}
		pairs = append(pairs, matchup)
	}

	return pairs
}

// orderBySeed puts explicitly seeded teams first, lowest seed value first, and
// the rest in registration order. The position in the result is the team's seed.
func orderBySeed(teams []bracket.Team) []bracket.Team {
	ordered := make([]bracket.Team, len(teams))
	copy(ordered, teams)

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		switch {
		case a.Seed != nil && b.Seed != nil:
			if *a.Seed != *b.Seed {
				return *a.Seed < *b.Seed
			}
			return a.RegistrationSeq < b.RegistrationSeq
		case a.Seed != nil:
			return true
		case b.Seed != nil:
			return false
		default:
			return a.RegistrationSeq < b.RegistrationSeq
		}
	})
	return ordered
}
