package portfolio

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	severeConcentration   = decimal.NewFromInt(60)
	moderateConcentration = decimal.NewFromInt(40)
	mildConcentration     = decimal.NewFromInt(30)
	dominantPosition      = decimal.NewFromInt(40)
)

// Analysis is the diversification verdict for a valuation.
type Analysis struct {
	Score           int
	Warnings        []string
	Recommendations []string
}

// Analyze applies the diversification rules to v. Returns nil when v has no
// priced holdings.
//
// Score starts at 100. Per sector: >60% costs 30, >40% costs 15, >30% costs 5.
// Fewer than 5 positions costs 20, fewer than 10 costs 10. Three or more
// sectors earn 5, five or more earn 10. The result is clamped to [0, 100].
func Analyze(v *Valuation) *Analysis {
	if v == nil || len(v.Holdings) == 0 {
		return nil
	}

	a := &Analysis{}
	score := 100

	for _, s := range v.Sectors {
		pct := s.Percentage
		switch {
		case pct.GreaterThan(severeConcentration):
			score -= 30
			a.Warnings = append(a.Warnings, fmt.Sprintf("❌ %s: %s%% - HIGHLY CONCENTRATED!", s.Sector, pct.StringFixed(1)))
			a.Recommendations = append(a.Recommendations, fmt.Sprintf("Reduce %s exposure to below 60%%", s.Sector))
		case pct.GreaterThan(moderateConcentration):
			score -= 15
			a.Warnings = append(a.Warnings, fmt.Sprintf("⚠️ %s: %s%% - High concentration", s.Sector, pct.StringFixed(1)))
			a.Recommendations = append(a.Recommendations, fmt.Sprintf("Consider reducing %s exposure", s.Sector))
		case pct.GreaterThan(mildConcentration):
			score -= 5
		}
	}

	if _, ok := v.SectorPercentage("Bonds"); !ok {
		a.Recommendations = append(a.Recommendations, "Add bonds (TLT, AGG) for stability and lower volatility")
	}
	if _, ok := v.SectorPercentage("Commodities"); !ok {
		a.Recommendations = append(a.Recommendations, "Add commodities (GLD) as inflation hedge")
	}

	n := len(v.Holdings)
	switch {
	case n < 5:
		score -= 20
		a.Warnings = append(a.Warnings, fmt.Sprintf("⚠️ Only %d positions - Low diversification", n))
		a.Recommendations = append(a.Recommendations, "Consider adding more positions (target: 10-15)")
	case n < 10:
		score -= 10
	}

	if n > 1 && v.TotalValue.IsPositive() {
		largest := v.Holdings[0]
		pct := largest.Value.Div(v.TotalValue).Mul(hundred)
		if pct.GreaterThan(dominantPosition) {
			a.Warnings = append(a.Warnings, fmt.Sprintf("⚠️ %s is %s%% of portfolio", largest.Symbol, pct.StringFixed(1)))
			a.Recommendations = append(a.Recommendations, fmt.Sprintf("Consider reducing %s position", largest.Symbol))
		}
	}

	switch sectors := len(v.Sectors); {
	case sectors >= 5:
		score += 10
	case sectors >= 3:
		score += 5
	}

	a.Score = max(0, min(100, score))
	return a
}
