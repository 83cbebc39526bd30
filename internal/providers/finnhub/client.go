// Package finnhub provides a Finnhub provider supporting quote, search,
// and exchange symbol listings. History and trending are unsupported.
package finnhub

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
	DefaultBaseURL = "https://finnhub.io/api/v1"
	DefaultTimeout = 15 * time.Second
)

// Client implements the StockDataProvider interface against Finnhub.
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
	return fmt.Sprintf("finnhub API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
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

// NewClient creates a new Finnhub provider.
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
		limiter: rate.NewLimiter(rate.Limit(10), 10),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name returns the stable provider name.
func (c *Client) Name() string { return "finnhub" }

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
func (c *Client) get(ctx context.Context, path string, params url.Values, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("token", c.apiKey)

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("Finnhub API request")

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
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	ChangePct     float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PreviousClose float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

// GetQuote returns a quote for the symbol, or nil when Finnhub has no data.
// Finnhub reports unknown symbols as an all-zero quote.
func (c *Client) GetQuote(ctx context.Context, symbol string) *models.Quote {
	if !c.Available() {
		return nil
	}

	params := url.Values{}
	params.Set("symbol", strings.ToUpper(symbol))

	var resp quoteResponse
	if err := c.get(ctx, "/quote", params, &resp); err != nil {
		c.logger.Warn().Str("symbol", symbol).Err(err).Msg("Finnhub quote failed")
		return nil
	}

	if resp.Current == 0 && resp.Timestamp == 0 {
		return nil
	}

	return &models.Quote{
		Symbol:        strings.ToUpper(symbol),
		Price:         resp.Current,
		Open:          resp.Open,
		High:          resp.High,
		Low:           resp.Low,
		PreviousClose: resp.PreviousClose,
		Change:        resp.Change,
		ChangePct:     resp.ChangePct,
		Timestamp:     time.Unix(resp.Timestamp, 0).UTC(),
		Source:        c.Name(),
	}
}

// GetHistory is unsupported on the free Finnhub tier.
func (c *Client) GetHistory(_ context.Context, _ string, _ models.HistoryPeriod) *models.HistorySeries {
	return nil
}

type searchResponse struct {
	Result []struct {
		Symbol      string `json:"symbol"`
		Description string `json:"description"`
		Type        string `json:"type"`
	} `json:"result"`
}

// Search returns symbol matches for the query. Never nil.
func (c *Client) Search(ctx context.Context, query string) []models.SearchResult {
	if !c.Available() {
		return []models.SearchResult{}
	}

	params := url.Values{}
	params.Set("q", query)

	var resp searchResponse
	if err := c.get(ctx, "/search", params, &resp); err != nil {
		c.logger.Warn().Str("query", query).Err(err).Msg("Finnhub search failed")
		return []models.SearchResult{}
	}

	results := make([]models.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		if r.Symbol == "" {
			continue
		}
		results = append(results, models.SearchResult{
			Symbol:      strings.ToUpper(r.Symbol),
			Description: r.Description,
			Type:        r.Type,
		})
	}
	return results
}

// GetTrending is unsupported.
func (c *Client) GetTrending(_ context.Context, _ int) []models.TrendingStock {
	return []models.TrendingStock{}
}

type symbolResponse struct {
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	Type        string `json:"type"`
	MIC         string `json:"mic"`
}

// ListSymbols returns the tradable-symbol listing for an exchange code
// (e.g. "US"), used to build the symbol universe.
func (c *Client) ListSymbols(ctx context.Context, exchange string) []models.SymbolRecord {
	if !c.Available() {
		return []models.SymbolRecord{}
	}

	params := url.Values{}
	params.Set("exchange", exchange)

	var resp []symbolResponse
	if err := c.get(ctx, "/stock/symbol", params, &resp); err != nil {
		c.logger.Warn().Str("exchange", exchange).Err(err).Msg("Finnhub symbol listing failed")
		return []models.SymbolRecord{}
	}

	records := make([]models.SymbolRecord, 0, len(resp))
	for _, r := range resp {
		if r.Symbol == "" {
			continue
		}
		records = append(records, models.SymbolRecord{
			Symbol:      strings.ToUpper(r.Symbol),
			Description: r.Description,
			Exchange:    r.MIC,
			Type:        r.Type,
			IsActive:    true,
		})
	}
	return records
}

// Ensure Client implements StockDataProvider
var _ interfaces.StockDataProvider = (*Client)(nil)
