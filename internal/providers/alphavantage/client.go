// Package alphavantage provides an Alpha Vantage provider supporting
// quote, history, and symbol search. Trending is unsupported.
package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/marketd/internal/common"
	"github.com/bobmcallan/marketd/internal/interfaces"
	"github.com/bobmcallan/marketd/internal/models"
	"github.com/bobmcallan/marketd/internal/ratelimit"
)

const (
	DefaultBaseURL = "https://www.alphavantage.co"
	DefaultTimeout = 30 * time.Second
)

// Client implements the StockDataProvider interface against Alpha Vantage.
// An absent API key forces Available() == false permanently.
type Client struct {
	baseURL    string
	apiKey     string
	priority   int
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
	return fmt.Sprintf("alphavantage API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
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

// NewClient creates a new Alpha Vantage provider.
func NewClient(apiKey string, priority, maxPerMinute, maxPerDay int, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		apiKey:   apiKey,
		priority: priority,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger:  common.NewSilentLogger(),
		tracker: ratelimit.NewTracker(maxPerMinute, maxPerDay),
		limiter: rate.NewLimiter(rate.Limit(1), 1),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name returns the stable provider name.
func (c *Client) Name() string { return "alphavantage" }

// Priority returns the fallback rank.
func (c *Client) Priority() int { return c.priority }

// Available reports whether credentials exist and the rate budget has
// headroom.
func (c *Client) Available() bool {
	return c.apiKey != "" && c.tracker.CanMakeCall()
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

// get performs a paced, authenticated GET request, recording the attempt
// against the rate budget before the call is made.
func (c *Client) get(ctx context.Context, params url.Values, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	params.Set("apikey", c.apiKey)
	reqURL := fmt.Sprintf("%s/query?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("function", params.Get("function")).Msg("Alpha Vantage API request")

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
			Endpoint:   params.Get("function"),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// parseFloat handles Alpha Vantage's string-typed numbers, tolerating
// empty and percent-suffixed values.
func parseFloat(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	if s == "" || s == "N/A" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

type globalQuoteResponse struct {
	GlobalQuote struct {
		Symbol        string `json:"01. symbol"`
		Open          string `json:"02. open"`
		High          string `json:"03. high"`
		Low           string `json:"04. low"`
		Price         string `json:"05. price"`
		Volume        string `json:"06. volume"`
		LatestDay     string `json:"07. latest trading day"`
		PreviousClose string `json:"08. previous close"`
		Change        string `json:"09. change"`
		ChangePct     string `json:"10. change percent"`
	} `json:"Global Quote"`
}

// GetQuote returns a quote for the symbol, or nil when Alpha Vantage has
// no data (it answers unknown symbols with an empty Global Quote object).
func (c *Client) GetQuote(ctx context.Context, symbol string) *models.Quote {
	if !c.Available() {
		return nil
	}

	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", strings.ToUpper(symbol))

	var resp globalQuoteResponse
	if err := c.get(ctx, params, &resp); err != nil {
		c.logger.Warn().Str("symbol", symbol).Err(err).Msg("Alpha Vantage quote failed")
		return nil
	}

	g := resp.GlobalQuote
	if g.Symbol == "" || g.Price == "" {
		return nil
	}

	ts, _ := time.Parse("2006-01-02", g.LatestDay)

	return &models.Quote{
		Symbol:        strings.ToUpper(g.Symbol),
		Price:         parseFloat(g.Price),
		Open:          parseFloat(g.Open),
		High:          parseFloat(g.High),
		Low:           parseFloat(g.Low),
		PreviousClose: parseFloat(g.PreviousClose),
		Change:        parseFloat(g.Change),
		ChangePct:     parseFloat(g.ChangePct),
		Volume:        int64(parseFloat(g.Volume)),
		Timestamp:     ts,
		Source:        c.Name(),
	}
}

type dailySeriesResponse struct {
	Series map[string]struct {
		Open     string `json:"1. open"`
		High     string `json:"2. high"`
		Low      string `json:"3. low"`
		Close    string `json:"4. close"`
		AdjClose string `json:"5. adjusted close"`
		Volume   string `json:"6. volume"`
	} `json:"Time Series (Daily)"`
}

// GetHistory returns daily bars covering the period, most recent first.
// Alpha Vantage has no range parameter, so the series is fetched whole
// and trimmed to the period locally.
func (c *Client) GetHistory(ctx context.Context, symbol string, period models.HistoryPeriod) *models.HistorySeries {
	if !c.Available() {
		return nil
	}

	params := url.Values{}
	params.Set("function", "TIME_SERIES_DAILY_ADJUSTED")
	params.Set("symbol", strings.ToUpper(symbol))
	outputSize := "compact" // last 100 bars
	start := period.Start(time.Now())
	if time.Since(start) > 100*24*time.Hour {
		outputSize = "full"
	}
	params.Set("outputsize", outputSize)

	var resp dailySeriesResponse
	if err := c.get(ctx, params, &resp); err != nil {
		c.logger.Warn().Str("symbol", symbol).Str("period", string(period)).Err(err).Msg("Alpha Vantage history failed")
		return nil
	}

	if len(resp.Series) == 0 {
		return nil
	}

	bars := make([]models.HistoryBar, 0, len(resp.Series))
	for date, v := range resp.Series {
		d, err := time.Parse("2006-01-02", date)
		if err != nil || d.Before(start) {
			continue
		}
		bars = append(bars, models.HistoryBar{
			Date:     d,
			Open:     parseFloat(v.Open),
			High:     parseFloat(v.High),
			Low:      parseFloat(v.Low),
			Close:    parseFloat(v.Close),
			AdjClose: parseFloat(v.AdjClose),
			Volume:   int64(parseFloat(v.Volume)),
		})
	}

	if len(bars) == 0 {
		return nil
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Date.After(bars[j].Date)
	})

	return &models.HistorySeries{
		Symbol: strings.ToUpper(symbol),
		Period: period,
		Bars:   bars,
		Source: c.Name(),
	}
}

type symbolSearchResponse struct {
	BestMatches []struct {
		Symbol string `json:"1. symbol"`
		Name   string `json:"2. name"`
		Type   string `json:"3. type"`
		Region string `json:"4. region"`
	} `json:"bestMatches"`
}

// Search returns symbol matches for the query. Never nil.
func (c *Client) Search(ctx context.Context, query string) []models.SearchResult {
	if !c.Available() {
		return []models.SearchResult{}
	}

	params := url.Values{}
	params.Set("function", "SYMBOL_SEARCH")
	params.Set("keywords", query)

	var resp symbolSearchResponse
	if err := c.get(ctx, params, &resp); err != nil {
		c.logger.Warn().Str("query", query).Err(err).Msg("Alpha Vantage search failed")
		return []models.SearchResult{}
	}

	results := make([]models.SearchResult, 0, len(resp.BestMatches))
	for _, m := range resp.BestMatches {
		if m.Symbol == "" {
			continue
		}
		results = append(results, models.SearchResult{
			Symbol:      strings.ToUpper(m.Symbol),
			Description: m.Name,
			Exchange:    m.Region,
			Type:        m.Type,
		})
	}
	return results
}

// GetTrending is unsupported.
func (c *Client) GetTrending(_ context.Context, _ int) []models.TrendingStock {
	return []models.TrendingStock{}
}

// ListSymbols is unsupported.
func (c *Client) ListSymbols(_ context.Context, _ string) []models.SymbolRecord {
	return []models.SymbolRecord{}
}

// Ensure Client implements StockDataProvider
var _ interfaces.StockDataProvider = (*Client)(nil)
