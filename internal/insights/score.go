package insights

import (
	"github.com/shopspring/decimal"

	"subledger/internal/core"
)

// OverPriceThreshold is the monthly-equivalent cost above which an active
// subscription counts as expensive.
var OverPriceThreshold = decimal.NewFromInt(3000)

const (
	inactiveWeight  = 30
	duplicatePoints = 10
	duplicateCap    = 30
	overPricePoints = 7
	overPriceCap    = 20
	activeAllowance = 8
	crowdPoints     = 2
	crowdCap        = 20
)

// Penalties itemizes the deductions behind a score.
type Penalties struct {
	Inactive   int
	Duplicates int
	OverPrice  int
	TooMany    int
}

type Score struct {
	Value     int
	Rank      string
	Penalties Penalties
}

// SavingsScore rates a ledger from 0 to 100. It depends only on the set of
// records, never on their order.
func SavingsScore(subs []core.Subscription, r Resolver) Score {
	var active, inactive, expensive int
	for _, s := range subs {
		if !s.Active {
			inactive++
			continue
		}
		active++
		if s.Monthly().GreaterThan(OverPriceThreshold) {
			expensive++
		}
	}
	total := active + inactive
	if total == 0 {
		total = 1
	}

	var p Penalties
	p.Inactive = int(decimal.NewFromInt(int64(inactive * inactiveWeight)).
		Div(decimal.NewFromInt(int64(total))).Round(0).IntPart())
	p.Duplicates = min(len(DuplicateCategories(subs, r))*duplicatePoints, duplicateCap)
	p.OverPrice = min(expensive*overPricePoints, overPriceCap)
	p.TooMany = min(max(active-activeAllowance, 0)*crowdPoints, crowdCap)

	v := 100 - p.Inactive - p.Duplicates - p.OverPrice - p.TooMany
	v = max(0, min(100, v))
	return Score{Value: v, Rank: Rank(v), Penalties: p}
}

// Rank maps a score to its letter grade.
func Rank(score int) string {
	switch {
	case score >= 90:
		return "S"
	case score >= 75:
		return "A"
	case score >= 55:
		return "B"
	case score >= 35:
		return "C"
	default:
		return "D"
	}
}
