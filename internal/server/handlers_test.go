package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/marketd/internal/common"
	"github.com/bobmcallan/marketd/internal/models"
)

// mockService is a scriptable MarketDataService.
type mockService struct {
	quote       *models.Quote
	series      *models.HistorySeries
	results     []models.SearchResult
	trending    []models.TrendingStock
	status      map[string]models.ProviderStatus
	invalidated []string
}

func (m *mockService) GetQuote(_ context.Context, _ string) *models.Quote { return m.quote }

func (m *mockService) GetHistory(_ context.Context, _ string, _ models.HistoryPeriod) *models.HistorySeries {
	return m.series
}

func (m *mockService) Search(_ context.Context, _ string, limit int) []models.SearchResult {
	if len(m.results) > limit {
		return m.results[:limit]
	}
	if m.results == nil {
		return []models.SearchResult{}
	}
	return m.results
}

func (m *mockService) GetTrending(_ context.Context, _ int) []models.TrendingStock {
	if m.trending == nil {
		return []models.TrendingStock{}
	}
	return m.trending
}

func (m *mockService) Invalidate(symbol string) {
	m.invalidated = append(m.invalidated, symbol)
}

func (m *mockService) ProviderStatus() map[string]models.ProviderStatus {
	if m.status == nil {
		return map[string]models.ProviderStatus{}
	}
	return m.status
}

func newTestServer(service *mockService) *Server {
	config := common.DefaultConfig()
	return NewServer(config, service, nil, common.NewSilentLogger())
}

func doGet(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(&mockService{})

	rec := doGet(t, s, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestQuoteEndpoint(t *testing.T) {
	svc := &mockService{quote: &models.Quote{Symbol: "AAPL", Price: 190.5, Timestamp: time.Now()}}
	s := newTestServer(svc)

	rec := doGet(t, s, "/api/quote/AAPL")
	require.Equal(t, http.StatusOK, rec.Code)

	var quote models.Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quote))
	assert.Equal(t, "AAPL", quote.Symbol)
	assert.Equal(t, 190.5, quote.Price)
}

func TestQuoteEndpointNotFound(t *testing.T) {
	s := newTestServer(&mockService{})

	rec := doGet(t, s, "/api/quote/ZZZZ")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "ZZZZ")
}

func TestHistoryEndpoint(t *testing.T) {
	svc := &mockService{series: &models.HistorySeries{
		Symbol: "AAPL",
		Period: models.Period1Mo,
		Bars:   []models.HistoryBar{{Date: time.Now(), Close: 190}},
	}}
	s := newTestServer(svc)

	rec := doGet(t, s, "/api/history/AAPL?period=1mo")
	require.Equal(t, http.StatusOK, rec.Code)

	var series models.HistorySeries
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &series))
	assert.Len(t, series.Bars, 1)
}

func TestHistoryEndpointInvalidPeriod(t *testing.T) {
	s := newTestServer(&mockService{})

	rec := doGet(t, s, "/api/history/AAPL?period=7w")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchEndpoint(t *testing.T) {
	svc := &mockService{results: []models.SearchResult{
		{Symbol: "AAPL", Description: "Apple Inc"},
	}}
	s := newTestServer(svc)

	rec := doGet(t, s, "/api/search?q=apple")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count   int                   `json:"count"`
		Results []models.SearchResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "AAPL", body.Results[0].Symbol)
}

func TestSearchEndpointQueryTooShort(t *testing.T) {
	s := newTestServer(&mockService{})

	rec := doGet(t, s, "/api/search?q=a")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrendingEndpoint(t *testing.T) {
	svc := &mockService{trending: []models.TrendingStock{{Symbol: "NVDA", Name: "NVIDIA"}}}
	s := newTestServer(svc)

	rec := doGet(t, s, "/api/trending?count=5")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count    int                    `json:"count"`
		Trending []models.TrendingStock `json:"trending"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
}

func TestInvalidateEndpoint(t *testing.T) {
	svc := &mockService{}
	s := newTestServer(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/invalidate/aapl", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"aapl"}, svc.invalidated)
}

func TestInvalidateEndpointRequiresPost(t *testing.T) {
	s := newTestServer(&mockService{})

	rec := doGet(t, s, "/api/invalidate/AAPL")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStatusEndpoint(t *testing.T) {
	svc := &mockService{status: map[string]models.ProviderStatus{
		"yahoo": {Priority: 1, Available: true},
	}}
	s := newTestServer(svc)

	rec := doGet(t, s, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Providers map[string]models.ProviderStatus `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Providers["yahoo"].Available)
}

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	s := newTestServer(&mockService{})

	rec := doGet(t, s, "/api/nope")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
