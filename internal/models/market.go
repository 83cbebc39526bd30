// Package models defines data structures for marketd
package models

import (
	"fmt"
	"time"
)

// Quote holds a price snapshot for a single symbol
type Quote struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name,omitempty"`
	Price         float64   `json:"price"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	PreviousClose float64   `json:"previous_close"`
	Change        float64   `json:"change"`
	ChangePct     float64   `json:"change_p"`
	Volume        int64     `json:"volume"`
	Timestamp     time.Time `json:"timestamp"`
	Source        string    `json:"source,omitempty"` // provider that served the quote
}

// HistoryPeriod is the closed set of lookback windows callers may request
type HistoryPeriod string

const (
	Period1D  HistoryPeriod = "1d"
	Period5D  HistoryPeriod = "5d"
	Period1Mo HistoryPeriod = "1mo"
	Period3Mo HistoryPeriod = "3mo"
	Period6Mo HistoryPeriod = "6mo"
	Period1Y  HistoryPeriod = "1y"
	Period2Y  HistoryPeriod = "2y"
	Period5Y  HistoryPeriod = "5y"
	Period10Y HistoryPeriod = "10y"
	PeriodYTD HistoryPeriod = "ytd"
)

// AllPeriods lists every valid history period, used for cache invalidation.
var AllPeriods = []HistoryPeriod{
	Period1D, Period5D, Period1Mo, Period3Mo, Period6Mo,
	Period1Y, Period2Y, Period5Y, Period10Y, PeriodYTD,
}

// ParsePeriod validates a period string from an untrusted caller.
func ParsePeriod(s string) (HistoryPeriod, error) {
	for _, p := range AllPeriods {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("invalid history period: %q", s)
}

// Start returns the inclusive start date of the period ending at now.
func (p HistoryPeriod) Start(now time.Time) time.Time {
	switch p {
	case Period1D:
		return now.AddDate(0, 0, -1)
	case Period5D:
		return now.AddDate(0, 0, -7) // calendar week covers 5 trading days
	case Period1Mo:
		return now.AddDate(0, -1, 0)
	case Period3Mo:
		return now.AddDate(0, -3, 0)
	case Period6Mo:
		return now.AddDate(0, -6, 0)
	case Period1Y:
		return now.AddDate(-1, 0, 0)
	case Period2Y:
		return now.AddDate(-2, 0, 0)
	case Period5Y:
		return now.AddDate(-5, 0, 0)
	case Period10Y:
		return now.AddDate(-10, 0, 0)
	case PeriodYTD:
		return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
	default:
		return now.AddDate(-1, 0, 0)
	}
}

// HistoryBar represents a single day's OHLCV data
type HistoryBar struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adjusted_close"`
	Volume   int64     `json:"volume"`
}

// HistorySeries holds historical bars for a symbol, most recent first
type HistorySeries struct {
	Symbol string        `json:"symbol"`
	Period HistoryPeriod `json:"period"`
	Bars   []HistoryBar  `json:"bars"`
	Source string        `json:"source,omitempty"` // provider or "datastore"
}

// SearchResult is a single symbol search hit
type SearchResult struct {
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	Exchange    string `json:"exchange,omitempty"`
	Type        string `json:"type,omitempty"`
	Rank        int    `json:"-"` // 1 = exact, 2 = prefix, 3 = contains
}

// TrendingStock is one entry in a provider's trending list
type TrendingStock struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// SymbolRecord is one entry in the tradable-symbol universe
type SymbolRecord struct {
	Symbol      string `json:"symbol"` // uppercase, unique key
	Description string `json:"description"`
	Exchange    string `json:"exchange"`
	Type        string `json:"type"`
	IsActive    bool   `json:"is_active"`
}

// ProviderStatus reports one provider's availability and rate budget
type ProviderStatus struct {
	Priority     int  `json:"priority"`
	Available    bool `json:"available"`
	MinuteUsed   int  `json:"minute_used"`
	DayUsed      int  `json:"day_used"`
	MaxPerMinute int  `json:"max_per_minute"`
	MaxPerDay    int  `json:"max_per_day"`
}

// LoadReport summarizes a bulk history load
type LoadReport struct {
	RecordsInserted int      `json:"records_inserted"`
	Errors          []string `json:"errors,omitempty"`
}
