package alphavantage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-key", 3, 5, 500, WithBaseURL(srv.URL))
}

func TestParseFloat(t *testing.T) {
	assert.Equal(t, 190.5, parseFloat("190.5000"))
	assert.Equal(t, 0.85, parseFloat("0.85%"))
	assert.Equal(t, 0.0, parseFloat(""))
	assert.Equal(t, 0.0, parseFloat("N/A"))
	assert.Equal(t, 0.0, parseFloat("garbage"))
}

func TestGetQuote(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		w.Write([]byte(`{"Global Quote":{
			"01. symbol":"AAPL","02. open":"189.0000","03. high":"191.2000",
			"04. low":"188.4000","05. price":"190.5000","06. volume":"51000000",
			"07. latest trading day":"2025-06-02","08. previous close":"188.9000",
			"09. change":"1.6000","10. change percent":"0.8470%"}}`))
	}))

	quote := client.GetQuote(context.Background(), "AAPL")
	require.NotNil(t, quote)
	assert.Equal(t, "AAPL", quote.Symbol)
	assert.Equal(t, 190.5, quote.Price)
	assert.Equal(t, 0.847, quote.ChangePct)
	assert.Equal(t, int64(51000000), quote.Volume)
	assert.Equal(t, "alphavantage", quote.Source)
}

func TestGetQuoteUnknownSymbol(t *testing.T) {
	// Alpha Vantage answers unknown symbols with an empty object.
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Global Quote":{}}`))
	}))

	assert.Nil(t, client.GetQuote(context.Background(), "ZZZZ"))
}

func TestAvailableRequiresAPIKey(t *testing.T) {
	client := NewClient("", 3, 5, 500)
	assert.False(t, client.Available())

	assert.Nil(t, client.GetQuote(context.Background(), "AAPL"))
	assert.Empty(t, client.Search(context.Background(), "apple"))
}

func TestSearch(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SYMBOL_SEARCH", r.URL.Query().Get("function"))
		w.Write([]byte(`{"bestMatches":[
			{"1. symbol":"AAPL","2. name":"Apple Inc","3. type":"Equity","4. region":"United States"}]}`))
	}))

	results := client.Search(context.Background(), "apple")
	require.Len(t, results, 1)
	assert.Equal(t, "AAPL", results[0].Symbol)
	assert.Equal(t, "Apple Inc", results[0].Description)
}
