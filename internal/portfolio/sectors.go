package portfolio

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// OtherSector is used for symbols missing from the table.
const OtherSector = "Other"

var defaultSectors = map[string][]string{
	"Technology": {"AAPL", "MSFT", "GOOGL", "GOOG", "META", "NVDA", "AMD", "INTC",
		"ORCL", "CRM", "ADBE", "CSCO", "AVGO", "QCOM", "TXN", "SHOP"},
	"Automotive":  {"TSLA", "F", "GM", "RIVN", "LCID", "NIO"},
	"Finance":     {"JPM", "BAC", "WFC", "C", "GS", "MS", "V", "MA", "PYPL", "SQ", "BLK", "CBA.AX", "WBC.AX", "NAB.AX", "ANZ.AX"},
	"Healthcare":  {"JNJ", "UNH", "PFE", "ABBV", "TMO", "ABT", "CVS", "MRK", "LLY", "AMGN", "CSL.AX"},
	"Consumer":    {"AMZN", "WMT", "HD", "NKE", "MCD", "SBUX", "TGT", "COST", "LOW", "DIS", "NFLX", "WES.AX", "WOW.AX"},
	"Energy":      {"XOM", "CVX", "COP", "SLB", "EOG", "PSX", "MPC", "WDS.AX"},
	"Commodities": {"GLD", "SLV", "GDX", "USO", "UNG", "DBA"},
	"Bonds":       {"TLT", "SHY", "AGG", "BND", "LQD", "HYG", "GOVT"},
	"Mining":      {"BHP.AX", "RIO.AX", "FMG.AX"},
	"Telecom":     {"TLS.AX"},
}

// Sectors maps symbols to sector labels.
type Sectors struct {
	bySymbol map[string]string
}

// DefaultSectors returns the built-in table.
func DefaultSectors() *Sectors {
	s := &Sectors{bySymbol: make(map[string]string)}
	for sector, symbols := range defaultSectors {
		for _, sym := range symbols {
			s.bySymbol[sym] = sector
		}
	}
	return s
}

// LoadSectors returns the built-in table overlaid with a YAML file of
// `SYMBOL: Sector` pairs. An empty path yields the defaults.
func LoadSectors(path string) (*Sectors, error) {
	s := DefaultSectors()
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sector file: %w", err)
	}

	var overrides map[string]string
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse sector file: %w", err)
	}
	for sym, sector := range overrides {
		sector = strings.TrimSpace(sector)
		if sector == "" {
			continue
		}
		s.bySymbol[strings.ToUpper(strings.TrimSpace(sym))] = sector
	}
	return s, nil
}

// Sector returns the label for symbol, or OtherSector.
func (s *Sectors) Sector(symbol string) string {
	if sector, ok := s.bySymbol[strings.ToUpper(symbol)]; ok {
		return sector
	}
	return OtherSector
}
