// Package quotes fetches stock prices and intraday volume from the Yahoo
// Finance chart and quote endpoints.
package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	DefaultQuery1URL = "https://query1.finance.yahoo.com"
	DefaultQuery2URL = "https://query2.finance.yahoo.com"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

var (
	// ErrPriceUnavailable is returned once every lookup strategy has missed.
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrVolumeUnavailable is returned when the chart carries no volume series.
	ErrVolumeUnavailable = errors.New("volume unavailable")

	errNoData = errors.New("no usable data")
)

// VolumeStats is the latest intraday volume bar against the session average.
type VolumeStats struct {
	Current float64
	Average float64
}

// Ratio returns Current/Average, or zero when there is no average.
func (v VolumeStats) Ratio() float64 {
	if v.Average <= 0 {
		return 0
	}
	return v.Current / v.Average
}

// lookup is one way of getting a price. Strategies are tried in order.
type lookup struct {
	name  string
	fetch func(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Client fetches quotes over HTTP.
type Client struct {
	http       *resty.Client
	query1     string
	query2     string
	strategies []lookup
}

// NewClient creates a client. Empty base URLs fall back to the public hosts.
func NewClient(query1URL, query2URL string) *Client {
	if query1URL == "" {
		query1URL = DefaultQuery1URL
	}
	if query2URL == "" {
		query2URL = DefaultQuery2URL
	}

	c := &Client{
		http: resty.New().
			SetTimeout(10*time.Second).
			SetHeader("User-Agent", userAgent).
			SetHeader("Accept", "application/json"),
		query1: strings.TrimRight(query1URL, "/"),
		query2: strings.TrimRight(query2URL, "/"),
	}
	c.strategies = []lookup{
		{name: "chart", fetch: c.chartPrice},
		{name: "quote", fetch: c.quotePrice},
		{name: "chart-query2", fetch: c.chartQuery2Price},
	}
	return c
}

// Price returns the latest price for symbol. The first strategy that yields a
// positive price wins.
func (c *Client) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return decimal.Zero, fmt.Errorf("%w: empty symbol", ErrPriceUnavailable)
	}

	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return decimal.Zero, err
		}
		price, err := s.fetch(ctx, symbol)
		if err != nil {
			log.Debug().Err(err).Str("symbol", symbol).Str("source", s.name).Msg("Price lookup missed")
			continue
		}
		log.Debug().Str("symbol", symbol).Str("source", s.name).Str("price", price.StringFixed(2)).Msg("📈 Got price")
		return price, nil
	}

	log.Warn().Str("symbol", symbol).Msg("All price lookups failed")
	return decimal.Zero, fmt.Errorf("%w: %s", ErrPriceUnavailable, symbol)
}

// Volume returns the latest intraday volume bar and the average over the
// session so far.
func (c *Client) Volume(ctx context.Context, symbol string) (VolumeStats, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	var chart chartResponse
	err := c.getJSON(ctx, c.query1+"/v8/finance/chart/{symbol}", symbol,
		map[string]string{"interval": "5m", "range": "1d"}, &chart)
	if err != nil {
		return VolumeStats{}, fmt.Errorf("%w: %s: %v", ErrVolumeUnavailable, symbol, err)
	}

	q := chart.firstQuote()
	if q == nil {
		return VolumeStats{}, fmt.Errorf("%w: %s", ErrVolumeUnavailable, symbol)
	}

	var sum float64
	var n int
	var last float64
	for _, v := range q.Volume {
		if v == nil {
			continue
		}
		sum += *v
		last = *v
		n++
	}
	if n == 0 {
		return VolumeStats{}, fmt.Errorf("%w: %s", ErrVolumeUnavailable, symbol)
	}
	return VolumeStats{Current: last, Average: sum / float64(n)}, nil
}

func (c *Client) chartPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var chart chartResponse
	if err := c.getJSON(ctx, c.query1+"/v8/finance/chart/{symbol}", symbol, nil, &chart); err != nil {
		return decimal.Zero, err
	}
	if p := chart.metaPrice(); p > 0 {
		return decimal.NewFromFloat(p), nil
	}
	if q := chart.firstQuote(); q != nil {
		for i := len(q.Close) - 1; i >= 0; i-- {
			if q.Close[i] != nil && *q.Close[i] > 0 {
				return decimal.NewFromFloat(*q.Close[i]), nil
			}
		}
	}
	return decimal.Zero, errNoData
}

func (c *Client) quotePrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var resp quoteResponse
	if err := c.getJSON(ctx, c.query1+"/v7/finance/quote", "", map[string]string{"symbols": symbol}, &resp); err != nil {
		return decimal.Zero, err
	}
	if len(resp.QuoteResponse.Result) == 0 {
		return decimal.Zero, errNoData
	}
	r := resp.QuoteResponse.Result[0]
	for _, p := range []*float64{r.RegularMarketPrice, r.CurrentPrice, r.Ask, r.Bid} {
		if p != nil && *p > 0 {
			return decimal.NewFromFloat(*p), nil
		}
	}
	return decimal.Zero, errNoData
}

func (c *Client) chartQuery2Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var chart chartResponse
	err := c.getJSON(ctx, c.query2+"/v8/finance/chart/{symbol}", symbol,
		map[string]string{"interval": "1d", "range": "1d"}, &chart)
	if err != nil {
		return decimal.Zero, err
	}
	if p := chart.metaPrice(); p > 0 {
		return decimal.NewFromFloat(p), nil
	}
	return decimal.Zero, errNoData
}

func (c *Client) getJSON(ctx context.Context, url, symbol string, query map[string]string, out any) error {
	req := c.http.R().SetContext(ctx)
	if symbol != "" {
		req.SetPathParam("symbol", symbol)
	}
	if len(query) > 0 {
		req.SetQueryParams(query)
	}

	resp, err := req.Get(url)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode())
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
