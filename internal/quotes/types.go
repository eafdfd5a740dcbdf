package quotes

// chartResponse is the subset of /v8/finance/chart we read. Every field is
// optional upstream; pointers distinguish null from zero.
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		RegularMarketPrice *float64 `json:"regularMarketPrice"`
	} `json:"meta"`
	Indicators struct {
		Quote []chartQuote `json:"quote"`
	} `json:"indicators"`
}

type chartQuote struct {
	Close  []*float64 `json:"close"`
	Volume []*float64 `json:"volume"`
}

func (c *chartResponse) metaPrice() float64 {
	if len(c.Chart.Result) == 0 || c.Chart.Result[0].Meta.RegularMarketPrice == nil {
		return 0
	}
	return *c.Chart.Result[0].Meta.RegularMarketPrice
}

func (c *chartResponse) firstQuote() *chartQuote {
	if len(c.Chart.Result) == 0 || len(c.Chart.Result[0].Indicators.Quote) == 0 {
		return nil
	}
	return &c.Chart.Result[0].Indicators.Quote[0]
}

// quoteResponse is the subset of /v7/finance/quote we read.
type quoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			RegularMarketPrice *float64 `json:"regularMarketPrice"`
			CurrentPrice       *float64 `json:"currentPrice"`
			Ask                *float64 `json:"ask"`
			Bid                *float64 `json:"bid"`
		} `json:"result"`
	} `json:"quoteResponse"`
}
