package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFinalSettlement_RanksAndZeroSum(t *testing.T) {
	points := [4]int{32000, 18000, 28000, 22000}
	res, err := FinalSettlement(points, 25000, DefaultUma)
	assert.NoError(t, err)

	assert.Equal(t, 1, res[0].Rank)
	assert.Equal(t, 4, res[1].Rank)
	assert.Equal(t, 2, res[2].Rank)
	assert.Equal(t, 3, res[3].Rank)

	assert.Equal(t, 32000-25000+15000, res[0].Settlement)

	sum := 0
	for _, r := range res {
		sum += r.Settlement
	}
	assert.Equal(t, 0, sum)
}

func TestFinalSettlement_TieGoesToLowerSeat(t *testing.T) {
	points := [4]int{25000, 25000, 25000, 25000}
	res, err := FinalSettlement(points, 25000, DefaultUma)
	assert.NoError(t, err)

	for seat, r := range res {
		assert.Equal(t, seat+1, r.Rank, "seat %d", seat)
	}
}

func TestFinalSettlement_RejectsNonZeroUma(t *testing.T) {
	_, err := FinalSettlement([4]int{25000, 25000, 25000, 25000}, 25000, [4]int{10, 0, 0, 0})
	assert.ErrorIs(t, err, ErrInvalidScore)
}

func TestNotenPayments(t *testing.T) {
	cases := []struct {
		name   string
		tenpai [4]bool
		want   [4]int
	}{
		{"none", [4]bool{}, [4]int{}},
		{"all", [4]bool{true, true, true, true}, [4]int{}},
		{"one tenpai", [4]bool{true, false, false, false}, [4]int{3000, -1000, -1000, -1000}},
		{"two tenpai", [4]bool{true, true, false, false}, [4]int{1500, 1500, -1500, -1500}},
		{"three tenpai", [4]bool{true, true, true, false}, [4]int{1000, 1000, 1000, -3000}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NotenPayments(tc.tenpai)
			assert.Equal(t, tc.want, got)
			sum := 0
			for _, d := range got {
				sum += d
			}
			assert.Zero(t, sum)
		})
	}
}
