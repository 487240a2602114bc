package service

import (
	"testing"

	"github.com/AdamBeresnev/tourney/internal/bracket"
	"github.com/AdamBeresnev/tourney/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRound1SeedOrder(t *testing.T) {
	testCases := []struct {
		name        string
		bracketSize int
		expected    [][2]int
	}{
		{
			name:        "2 teams",
			bracketSize: 2,
			expected:    [][2]int{{0, 1}},
		},
		{
			name:        "4 teams",
			bracketSize: 4,
			expected:    [][2]int{{0, 3}, {1, 2}},
		},
		{
			name:        "8 teams",
			bracketSize: 8,
			expected:    [][2]int{{0, 7}, {3, 4}, {1, 6}, {2, 5}},
		},
		{
			name:        "Empty bracket",
			bracketSize: 0,
			expected:    [][2]int{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			actual := generateRound1Pairs(tc.bracketSize)
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestRound1PairsCoverEverySeedOnce(t *testing.T) {
	for _, size := range []int{2, 4, 8, 16, 32, 64} {
		seen := make(map[int]bool)
		for _, pair := range generateRound1Pairs(size) {
			assert.Equal(t, size-1, pair[0]+pair[1], "size %d: seeds in a pair add up to size-1", size)
			seen[pair[0]] = true
			seen[pair[1]] = true
		}
		assert.Len(t, seen, size)
	}
}

// The two top seeds start in opposite halves, so their paths only join in the final.
func TestTopSeedsMeetOnlyInFinal(t *testing.T) {
	for _, size := range []int{4, 8, 16, 32} {
		slotOf := make(map[int]int)
		for slot, pair := range generateRound1Pairs(size) {
			slotOf[pair[0]] = slot
			slotOf[pair[1]] = slot
		}

		rounds := 0
		for s := size; s > 1; s >>= 1 {
			rounds++
		}

		// A round 1 slot s feeds slot s>>k of round k+1
		for r := 1; r < rounds; r++ {
			assert.NotEqual(t, slotOf[0]>>(r-1), slotOf[1]>>(r-1), "size %d: seeds 1 and 2 meet in round %d", size, r)
		}
		assert.Equal(t, slotOf[0]>>(rounds-1), slotOf[1]>>(rounds-1))
	}
}

func TestCalcBracketSize(t *testing.T) {
	tests := []struct {
		count int
		want  int
	}{
		{0, 0},
		{2, 2},
		{3, 4},
		{4, 4},
		{5, 8},
		{9, 16},
		{16, 16},
		{17, 32},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, calcBracketSize(tt.count), "count %d", tt.count)
	}
}

func TestOrderBySeed(t *testing.T) {
	teams := []bracket.Team{
		{Name: "first", RegistrationSeq: 1},
		{Name: "second", RegistrationSeq: 2, Seed: utils.Ptr(2)},
		{Name: "third", RegistrationSeq: 3},
		{Name: "fourth", RegistrationSeq: 4, Seed: utils.Ptr(1)},
	}

	ordered := orderBySeed(teams)
	require.Len(t, ordered, 4)

	var names []string
	for _, team := range ordered {
		names = append(names, team.Name)
	}
	assert.Equal(t, []string{"fourth", "second", "first", "third"}, names)
	assert.Equal(t, "first", teams[0].Name, "input is left untouched")
}
