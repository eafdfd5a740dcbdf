package portfolio

import (
	"context"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PriceLookup resolves a symbol to its current price.
type PriceLookup interface {
	Price(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Holding is one position marked to market.
type Holding struct {
	Symbol          string
	Sector          string
	Shares          decimal.Decimal
	CostBasis       decimal.Decimal
	Price           decimal.Decimal
	Value           decimal.Decimal
	Cost            decimal.Decimal
	UnrealizedPL    decimal.Decimal
	UnrealizedPLPct decimal.Decimal
}

// SectorWeight is a sector's share of total value.
type SectorWeight struct {
	Sector     string
	Value      decimal.Decimal
	Percentage decimal.Decimal
}

// Valuation is a portfolio marked to market. Holdings are ordered by value
// descending, sectors by percentage descending.
type Valuation struct {
	TotalValue decimal.Decimal
	TotalCost  decimal.Decimal
	TotalPL    decimal.Decimal
	TotalPLPct decimal.Decimal
	Holdings   []Holding
	Sectors    []SectorWeight
	Skipped    []string
}

// SectorPercentage returns the named sector's share, and whether it is held.
func (v *Valuation) SectorPercentage(sector string) (decimal.Decimal, bool) {
	for _, s := range v.Sectors {
		if s.Sector == sector {
			return s.Percentage, true
		}
	}
	return decimal.Zero, false
}

// Valuate prices chatID's holdings. Symbols whose lookup fails are skipped and
// listed in Skipped. Returns nil when the chat holds nothing.
func (l *Ledger) Valuate(ctx context.Context, chatID int64, prices PriceLookup) *Valuation {
	positions := l.Positions(chatID)
	if len(positions) == 0 {
		return nil
	}

	v := &Valuation{}
	sectorValue := make(map[string]decimal.Decimal)

	for _, p := range positions {
		price, err := prices.Price(ctx, p.Symbol)
		if err != nil {
			log.Warn().Err(err).Str("symbol", p.Symbol).Msg("Could not get price for valuation")
			v.Skipped = append(v.Skipped, p.Symbol)
			continue
		}
		h := MarkToMarket(p, price, l.sectors.Sector(p.Symbol))

		v.TotalValue = v.TotalValue.Add(h.Value)
		v.TotalCost = v.TotalCost.Add(h.Cost)
		sectorValue[h.Sector] = sectorValue[h.Sector].Add(h.Value)
		v.Holdings = append(v.Holdings, h)
	}

	v.TotalPL = v.TotalValue.Sub(v.TotalCost)
	if v.TotalCost.IsPositive() {
		v.TotalPLPct = v.TotalPL.Div(v.TotalCost).Mul(hundred)
	}

	for sector, value := range sectorValue {
		pct := decimal.Zero
		if v.TotalValue.IsPositive() {
			pct = value.Div(v.TotalValue).Mul(hundred)
		}
		v.Sectors = append(v.Sectors, SectorWeight{Sector: sector, Value: value, Percentage: pct})
	}

	sort.SliceStable(v.Holdings, func(i, j int) bool {
		return v.Holdings[i].Value.GreaterThan(v.Holdings[j].Value)
	})
	sort.Slice(v.Sectors, func(i, j int) bool {
		if v.Sectors[i].Percentage.Equal(v.Sectors[j].Percentage) {
			return v.Sectors[i].Sector < v.Sectors[j].Sector
		}
		return v.Sectors[i].Percentage.GreaterThan(v.Sectors[j].Percentage)
	})
	return v
}

// MarkToMarket values one position at price.
func MarkToMarket(p Position, price decimal.Decimal, sector string) Holding {
	h := Holding{
		Symbol:    p.Symbol,
		Sector:    sector,
		Shares:    p.Shares,
		CostBasis: p.CostBasis,
		Price:     price,
		Value:     p.Shares.Mul(price),
		Cost:      p.Shares.Mul(p.CostBasis),
	}
	h.UnrealizedPL = h.Value.Sub(h.Cost)
	if h.Cost.IsPositive() {
		h.UnrealizedPLPct = h.UnrealizedPL.Div(h.Cost).Mul(hundred)
	}
	return h
}
