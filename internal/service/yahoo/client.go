package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	drepo "ZoneScan/internal/domain/repository"
	xhttp "ZoneScan/pkg/http"
)

// DefaultBaseURL is the public Yahoo Finance query host.
const DefaultBaseURL = "https://query1.finance.yahoo.com"

// ErrNoData is returned when the provider knows nothing about the ticker or range.
var ErrNoData = drepo.ErrNoData

// Client implements MarketData using the Yahoo Finance chart API.
type Client struct {
	baseURL string
	http    *xhttp.Client
}

// New creates a Yahoo Finance market-data client.
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		http: xhttp.NewClient(
			xhttp.WithTimeout(timeout),
			xhttp.WithUserAgent("Mozilla/5.0"),
		),
	}
}

// chartResponse is the response structure from the chart endpoint.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Historical fetches bars for ticker in [from, to) at the given interval.
func (c *Client) Historical(ctx context.Context, ticker string, from, to time.Time, interval drepo.TimeFrame) ([]drepo.Bar, error) {
	var chart chartResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/v8/finance/chart/" + url.PathEscape(ticker),
		QueryParams: map[string][]string{
			"period1":  {strconv.FormatInt(from.Unix(), 10)},
			"period2":  {strconv.FormatInt(to.Unix(), 10)},
			"interval": {string(interval)},
			"events":   {"history"},
		},
	}, &chart)
	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, ErrNoData
		}
		return nil, fmt.Errorf("yahoo fetch %s: %w", ticker, err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s: %s", drepo.ErrRejected, chart.Chart.Error.Code, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, ErrNoData
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	bars := make([]drepo.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		o, h := at(quote.Open, i), at(quote.High, i)
		l, cl := at(quote.Low, i), at(quote.Close, i)
		if o == 0 || h == 0 || l == 0 || cl == 0 {
			continue // null bars (holidays, halts)
		}
		bars = append(bars, drepo.Bar{
			Timestamp: time.Unix(ts, 0),
			Open:      o,
			High:      h,
			Low:       l,
			Close:     cl,
			Volume:    int64(at(quote.Volume, i)),
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}

func at(xs []*float64, i int) float64 {
	if i >= len(xs) || xs[i] == nil {
		return 0
	}
	return *xs[i]
}

var _ drepo.MarketData = (*Client)(nil)
