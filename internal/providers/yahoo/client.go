// Package yahoo provides a keyless Yahoo Finance provider supporting
// quote, history, search, and trending lookups.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/marketd/internal/common"
	"github.com/bobmcallan/marketd/internal/interfaces"
	"github.com/bobmcallan/marketd/internal/models"
	"github.com/bobmcallan/marketd/internal/ratelimit"
)

const (
	DefaultBaseURL = "https://query1.finance.yahoo.com"
	DefaultTimeout = 15 * time.Second
)

// Client implements the StockDataProvider interface against Yahoo Finance.
// No API key is required, so the client is available whenever its rate
// budget has headroom.
type Client struct {
	baseURL    string
	priority   int
	region     string
	httpClient *http.Client
	logger     *common.Logger
	tracker    *ratelimit.Tracker
	limiter    *rate.Limiter
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("yahoo API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithRegion sets the market region used for trending lookups
func WithRegion(region string) ClientOption {
	return func(c *Client) {
		c.region = region
	}
}

// NewClient creates a new Yahoo Finance provider with the given fallback
// priority and minute/day call budgets.
func NewClient(priority, maxPerMinute, maxPerDay int, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		priority: priority,
		region:   "US",
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger:  common.NewSilentLogger(),
		tracker: ratelimit.NewTracker(maxPerMinute, maxPerDay),
		limiter: rate.NewLimiter(rate.Limit(5), 5),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name returns the stable provider name.
func (c *Client) Name() string { return "yahoo" }

// Priority returns the fallback rank.
func (c *Client) Priority() int { return c.priority }

// Available reports whether the rate budget has headroom.
func (c *Client) Available() bool {
	return c.tracker.CanMakeCall()
}

// Status returns the provider's current rate budget.
func (c *Client) Status() models.ProviderStatus {
	minuteUsed, dayUsed, maxMin, maxDay := c.tracker.Stats()
	return models.ProviderStatus{
		Priority:     c.priority,
		Available:    c.Available(),
		MinuteUsed:   minuteUsed,
		DayUsed:      dayUsed,
		MaxPerMinute: maxMin,
		MaxPerDay:    maxDay,
	}
}

// get performs a paced GET request, recording the attempt against the rate
// budget before the call is made.
func (c *Client) get(ctx context.Context, path string, params url.Values, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("url", c.baseURL+path).Msg("Yahoo API request")

	// The attempt counts whether or not it succeeds.
	c.tracker.RecordCall()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol                     string  `json:"symbol"`
			ShortName                  string  `json:"shortName"`
			RegularMarketPrice         float64 `json:"regularMarketPrice"`
			RegularMarketOpen          float64 `json:"regularMarketOpen"`
			RegularMarketDayHigh       float64 `json:"regularMarketDayHigh"`
			RegularMarketDayLow        float64 `json:"regularMarketDayLow"`
			RegularMarketPreviousClose float64 `json:"regularMarketPreviousClose"`
			RegularMarketChange        float64 `json:"regularMarketChange"`
			RegularMarketChangePct     float64 `json:"regularMarketChangePercent"`
			RegularMarketVolume        int64   `json:"regularMarketVolume"`
			RegularMarketTime          int64   `json:"regularMarketTime"`
		} `json:"result"`
	} `json:"quoteResponse"`
}

// GetQuote returns a quote for the symbol, or nil when Yahoo has no data.
func (c *Client) GetQuote(ctx context.Context, symbol string) *models.Quote {
	if !c.Available() {
		return nil
	}

	params := url.Values{}
	params.Set("symbols", symbol)

	var resp quoteResponse
	if err := c.get(ctx, "/v7/finance/quote", params, &resp); err != nil {
		c.logger.Warn().Str("symbol", symbol).Err(err).Msg("Yahoo quote failed")
		return nil
	}

	if len(resp.QuoteResponse.Result) == 0 {
		return nil
	}

	r := resp.QuoteResponse.Result[0]
	if r.RegularMarketPrice == 0 {
		return nil
	}

	return &models.Quote{
		Symbol:        strings.ToUpper(r.Symbol),
		Name:          r.ShortName,
		Price:         r.RegularMarketPrice,
		Open:          r.RegularMarketOpen,
		High:          r.RegularMarketDayHigh,
		Low:           r.RegularMarketDayLow,
		PreviousClose: r.RegularMarketPreviousClose,
		Change:        r.RegularMarketChange,
		ChangePct:     r.RegularMarketChangePct,
		Volume:        r.RegularMarketVolume,
		Timestamp:     time.Unix(r.RegularMarketTime, 0).UTC(),
		Source:        c.Name(),
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []int64   `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
	} `json:"chart"`
}

// GetHistory returns daily bars covering the period, most recent first.
// Yahoo's range names match the period enum directly.
func (c *Client) GetHistory(ctx context.Context, symbol string, period models.HistoryPeriod) *models.HistorySeries {
	if !c.Available() {
		return nil
	}

	params := url.Values{}
	params.Set("range", string(period))
	params.Set("interval", "1d")

	var resp chartResponse
	if err := c.get(ctx, "/v8/finance/chart/"+url.PathEscape(symbol), params, &resp); err != nil {
		c.logger.Warn().Str("symbol", symbol).Str("period", string(period)).Err(err).Msg("Yahoo history failed")
		return nil
	}

	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil
	}

	r := resp.Chart.Result[0]
	q := r.Indicators.Quote[0]

	var adj []float64
	if len(r.Indicators.AdjClose) > 0 {
		adj = r.Indicators.AdjClose[0].AdjClose
	}

	bars := make([]models.HistoryBar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		// Yahoo returns ragged indicator arrays on partial data; drop any
		// row missing a field rather than trusting the timestamp count.
		if i >= len(q.Open) || i >= len(q.High) || i >= len(q.Low) || i >= len(q.Close) || i >= len(q.Volume) {
			continue
		}
		if q.Close[i] == 0 {
			continue
		}
		bar := models.HistoryBar{
			Date:   time.Unix(ts, 0).UTC().Truncate(24 * time.Hour),
			Open:   q.Open[i],
			High:   q.High[i],
			Low:    q.Low[i],
			Close:  q.Close[i],
			Volume: q.Volume[i],
		}
		if i < len(adj) {
			bar.AdjClose = adj[i]
		}
		bars = append(bars, bar)
	}

	if len(bars) == 0 {
		return nil
	}

	// Chart data arrives oldest first; callers expect most recent first.
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}

	return &models.HistorySeries{
		Symbol: strings.ToUpper(symbol),
		Period: period,
		Bars:   bars,
		Source: c.Name(),
	}
}

type searchResponse struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		ShortName string `json:"shortname"`
		LongName  string `json:"longname"`
		Exchange  string `json:"exchange"`
		QuoteType string `json:"quoteType"`
	} `json:"quotes"`
}

// Search returns symbol matches for the query. Never nil.
func (c *Client) Search(ctx context.Context, query string) []models.SearchResult {
	if !c.Available() {
		return []models.SearchResult{}
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("quotesCount", "10")
	params.Set("newsCount", "0")

	var resp searchResponse
	if err := c.get(ctx, "/v1/finance/search", params, &resp); err != nil {
		c.logger.Warn().Str("query", query).Err(err).Msg("Yahoo search failed")
		return []models.SearchResult{}
	}

	results := make([]models.SearchResult, 0, len(resp.Quotes))
	for _, q := range resp.Quotes {
		if q.Symbol == "" {
			continue
		}
		desc := q.LongName
		if desc == "" {
			desc = q.ShortName
		}
		results = append(results, models.SearchResult{
			Symbol:      strings.ToUpper(q.Symbol),
			Description: desc,
			Exchange:    q.Exchange,
			Type:        q.QuoteType,
		})
	}
	return results
}

type trendingResponse struct {
	Finance struct {
		Result []struct {
			Quotes []struct {
				Symbol    string `json:"symbol"`
				ShortName string `json:"shortName"`
			} `json:"quotes"`
		} `json:"result"`
	} `json:"finance"`
}

// GetTrending returns up to count trending symbols for the client's region.
func (c *Client) GetTrending(ctx context.Context, count int) []models.TrendingStock {
	if !c.Available() {
		return []models.TrendingStock{}
	}

	params := url.Values{}
	params.Set("count", fmt.Sprintf("%d", count))

	var resp trendingResponse
	if err := c.get(ctx, "/v1/finance/trending/"+url.PathEscape(c.region), params, &resp); err != nil {
		c.logger.Warn().Err(err).Msg("Yahoo trending failed")
		return []models.TrendingStock{}
	}

	if len(resp.Finance.Result) == 0 {
		return []models.TrendingStock{}
	}

	quotes := resp.Finance.Result[0].Quotes
	trending := make([]models.TrendingStock, 0, count)
	for _, q := range quotes {
		if q.Symbol == "" {
			continue
		}
		trending = append(trending, models.TrendingStock{
			Symbol: strings.ToUpper(q.Symbol),
			Name:   q.ShortName,
		})
		if len(trending) >= count {
			break
		}
	}
	return trending
}

// ListSymbols is unsupported: Yahoo has no exchange listing endpoint.
func (c *Client) ListSymbols(_ context.Context, _ string) []models.SymbolRecord {
	return []models.SymbolRecord{}
}

// Ensure Client implements StockDataProvider
var _ interfaces.StockDataProvider = (*Client)(nil)
