package score

import (
	"errors"
	"fmt"
	"sort"
)

const (
	// RiichiStickValue is the escrow value of one declared riichi.
	RiichiStickValue = 1000
	// NotenBappuTotal is the pool exchanged between noten and tenpai seats on
	// an exhaustive draw.
	NotenBappuTotal = 3000
)

// ErrInvalidScore marks a han/fu combination the rules cannot produce.
var ErrInvalidScore = errors.New("invalid score input")

// DefaultUma is the placement bonus table indexed by rank-1. It must sum to
// zero for settlements to be zero-sum.
var DefaultUma = [4]int{15000, 5000, -5000, -15000}

// SeatResult is one seat's line in the final settlement.
type SeatResult struct {
	Seat        int `json:"seat"`
	FinalPoints int `json:"finalPoints"`
	Rank        int `json:"rank"`
	Uma         int `json:"uma"`
	Settlement  int `json:"settlement"`
}

// FinalSettlement ranks the four seats by final points (ties go to the lower
// seat index) and applies the uma table.
//
//	settlement = (finalPoints - basePoints) + uma[rank-1]
func FinalSettlement(points [4]int, basePoints int, uma [4]int) ([4]SeatResult, error) {
	if s := uma[0] + uma[1] + uma[2] + uma[3]; s != 0 {
		return [4]SeatResult{}, fmt.Errorf("%w: uma table sums to %d", ErrInvalidScore, s)
	}

	order := []int{0, 1, 2, 3}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if points[a] != points[b] {
			return points[a] > points[b]
		}
		return a < b
	})

	var out [4]SeatResult
	for rank, seat := range order {
		out[seat] = SeatResult{
			Seat:        seat,
			FinalPoints: points[seat],
			Rank:        rank + 1,
			Uma:         uma[rank],
			Settlement:  points[seat] - basePoints + uma[rank],
		}
	}
	return out, nil
}

// NotenPayments returns per-seat deltas for an exhaustive draw given which of
// the four seats are tenpai. With zero or four tenpai seats nothing moves.
// Receipts always equal payments exactly.
func NotenPayments(tenpai [4]bool) [4]int {
	n := 0
	for _, t := range tenpai {
		if t {
			n++
		}
	}
	var deltas [4]int
	if n == 0 || n == 4 {
		return deltas
	}
	gain := NotenBappuTotal / n
	loss := NotenBappuTotal / (4 - n)
	for i, t := range tenpai {
		if t {
			deltas[i] = gain
		} else {
			deltas[i] = -loss
		}
	}
	return deltas
}
