package score

import (
	"fmt"
	"math"
)

// PaymentBreakdown is the result of one han/fu calculation.
// Kyotaku is informational only: the escrowed sticks are transferred by the
// match engine, never folded into the payments here.
type PaymentBreakdown struct {
	Han   int    `json:"han"`
	Fu    int    `json:"fu"`
	Label string `json:"label,omitempty"` // mangan / haneman / baiman / sanbaiman / yakuman

	// Ron: single payment by the discarder.
	RonPayment int `json:"ronPayment,omitempty"`
	// Tsumo: what the dealer pays (0 when the winner is the dealer) and what
	// each non-dealer pays.
	TsumoDealerPayment    int `json:"tsumoDealerPayment,omitempty"`
	TsumoNonDealerPayment int `json:"tsumoNonDealerPayment,omitempty"`

	// Total received by the winner from payments alone.
	Total   int `json:"total"`
	Kyotaku int `json:"kyotaku"` // escrowed stick value, credited by the engine
}

var validFu = map[int]bool{
	20: true, 25: true, 30: true, 40: true, 50: true, 60: true,
	70: true, 80: true, 90: true, 100: true, 110: true,
}

// Calculate maps a scored hand to its payment breakdown. Pure: no state, no
// I/O, safe for previews.
//
// han 1-13; fu must be one of the standard steps and meaningful for the han
// (20 fu exists only as pinfu tsumo, 25 fu only from two han up). From five
// han the fu is ignored and the capped bands apply. All payments round up to
// the next 100. Each honba adds 300, split the same way as the base score.
func Calculate(han, fu int, isDealer, isTsumo bool, honba, kyotakuSticks int) (PaymentBreakdown, error) {
	if han < 1 || han > 13 {
		return PaymentBreakdown{}, fmt.Errorf("%w: han %d out of range", ErrInvalidScore, han)
	}
	if honba < 0 || kyotakuSticks < 0 {
		return PaymentBreakdown{}, fmt.Errorf("%w: negative honba/kyotaku", ErrInvalidScore)
	}
	if han < 5 {
		if !validFu[fu] {
			return PaymentBreakdown{}, fmt.Errorf("%w: fu %d is not a valid step", ErrInvalidScore, fu)
		}
		if fu == 20 && (!isTsumo || han < 2) {
			return PaymentBreakdown{}, fmt.Errorf("%w: 20 fu is only reachable as pinfu tsumo", ErrInvalidScore)
		}
		if fu == 25 && han < 2 {
			return PaymentBreakdown{}, fmt.Errorf("%w: 25 fu requires at least 2 han", ErrInvalidScore)
		}
	}

	base, label := basePoints(han, fu)

	b := PaymentBreakdown{
		Han:     han,
		Fu:      fu,
		Label:   label,
		Kyotaku: kyotakuSticks * RiichiStickValue,
	}

	if isTsumo {
		if isDealer {
			each := roundUp100(base*2) + honba*100
			b.TsumoNonDealerPayment = each
			b.Total = each * 3
		} else {
			b.TsumoDealerPayment = roundUp100(base*2) + honba*100
			b.TsumoNonDealerPayment = roundUp100(base) + honba*100
			b.Total = b.TsumoDealerPayment + b.TsumoNonDealerPayment*2
		}
	} else {
		mult := 4
		if isDealer {
			mult = 6
		}
		b.RonPayment = roundUp100(base*mult) + honba*300
		b.Total = b.RonPayment
	}
	return b, nil
}

// basePoints returns the pre-multiplier base for a han/fu pair, applying the
// capped score bands.
func basePoints(han, fu int) (int, string) {
	switch {
	case han >= 13:
		return 8000, "yakuman"
	case han >= 11:
		return 6000, "sanbaiman"
	case han >= 8:
		return 4000, "baiman"
	case han >= 6:
		return 3000, "haneman"
	case han == 5:
		return 2000, "mangan"
	}
	base := fu * (1 << uint(2+han))
	if base > 2000 {
		// 4 han 40 fu and up land on mangan.
		return 2000, "mangan"
	}
	return base, ""
}

func roundUp100(v int) int {
	return int(math.Ceil(float64(v)/100.0)) * 100
}
