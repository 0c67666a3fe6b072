package marketdata

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
)

const overviewCacheKey = "overview"

// ErrNoData marks symbols the quote API has no data for.
var ErrNoData = errors.New("no data available")

// indexEntry pairs a display name with its quote symbol. The set matches the
// market overview the assistant's get_market_overview tool reports on.
type indexEntry struct {
	Name   string
	Symbol string
}

var marketIndices = []indexEntry{
	{"S&P 500", "^GSPC"},
	{"NASDAQ", "^IXIC"},
	{"NVIDIA", "NVDA"},
	{"Russell 2000", "^RUT"},
	{"Bitcoin", "BTC-USD"},
	{"Ethereum", "ETH-USD"},
	{"Crude Oil", "CL=F"},
	{"Gold", "GC=F"},
	{"Silver", "SI=F"},
	{"FTSE 100", "^FTSE"},
	{"DAX", "^GDAXI"},
	{"Nikkei 225", "^N225"},
	{"Hang Seng", "^HSI"},
	{"S&P/TSX Composite", "^GSPTSE"},
	{"Euro Stoxx 50", "^STOXX50E"},
	{"CAC 40", "^FCHI"},
	{"ASX 200", "^AXJO"},
	{"Bovespa", "^BVSP"},
	{"Sensex", "^BSESN"},
	{"Swiss Market Index", "^SSMI"},
	{"KOSPI", "^KS11"},
	{"Nifty 50", "^NSEI"},
	{"Jakarta Composite", "^JKSE"},
	{"Straits Times", "^STI"},
}

// StockData is the stock snapshot handed to the assistant's get_stock_data
// tool and to API clients. JSON keys follow the tool contract.
type StockData struct {
	Symbol           string   `json:"symbol"`
	CurrentPrice     float64  `json:"current_price"`
	CompanyName      string   `json:"company_name"`
	MarketCap        *int64   `json:"market_cap"`
	PERatio          *float64 `json:"pe_ratio"`
	FiftyTwoWeekHigh *float64 `json:"52_week_high"`
	FiftyTwoWeekLow  *float64 `json:"52_week_low"`
	Volume           *int64   `json:"volume"`
}

// IndexSnapshot is one market overview row. Either the numeric fields or
// Error is set; a failing symbol never fails the whole overview.
type IndexSnapshot struct {
	Current       *float64 `json:"current,omitempty"`
	Change        *float64 `json:"change,omitempty"`
	ChangePercent *float64 `json:"change_percent,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// Service caches quote lookups for a configurable TTL so repeated questions
// about the same symbol don't hammer the quote API.
type Service struct {
	client   *Client
	quotes   *expirable.LRU[string, StockData]
	overview *expirable.LRU[string, map[string]IndexSnapshot]
}

func NewService(client *Client, cacheTTL time.Duration) *Service {
	return &Service{
		client:   client,
		quotes:   expirable.NewLRU[string, StockData](256, nil, cacheTTL),
		overview: expirable.NewLRU[string, map[string]IndexSnapshot](1, nil, cacheTTL),
	}
}

// StockData returns the current snapshot for a single symbol.
func (s *Service) StockData(ctx context.Context, symbol string) (*StockData, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}

	if cached, ok := s.quotes.Get(symbol); ok {
		return &cached, nil
	}

	quotes, err := s.client.Quotes(ctx, []string{symbol})
	if err != nil {
		return nil, fmt.Errorf("could not fetch data for %s: %w", symbol, err)
	}

	quote := findQuote(quotes, symbol)
	if quote == nil || quote.RegularMarketPrice == nil {
		return nil, fmt.Errorf("%w for %s", ErrNoData, symbol)
	}

	data := StockData{
		Symbol:           symbol,
		CurrentPrice:     round2(*quote.RegularMarketPrice),
		CompanyName:      quote.companyName(symbol),
		MarketCap:        quote.MarketCap,
		PERatio:          quote.TrailingPE,
		FiftyTwoWeekHigh: quote.FiftyTwoWeekHigh,
		FiftyTwoWeekLow:  quote.FiftyTwoWeekLow,
		Volume:           quote.RegularMarketVolume,
	}

	s.quotes.Add(symbol, data)
	return &data, nil
}

// MarketOverview returns a snapshot of the major indices, keyed by display
// name.
func (s *Service) MarketOverview(ctx context.Context) (map[string]IndexSnapshot, error) {
	if cached, ok := s.overview.Get(overviewCacheKey); ok {
		return cached, nil
	}

	symbols := make([]string, 0, len(marketIndices))
	for _, idx := range marketIndices {
		symbols = append(symbols, idx.Symbol)
	}

	quotes, err := s.client.Quotes(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch market overview: %w", err)
	}

	results := make(map[string]IndexSnapshot, len(marketIndices))
	for _, idx := range marketIndices {
		quote := findQuote(quotes, idx.Symbol)
		if quote == nil || quote.RegularMarketPrice == nil {
			log.Debug().Str("symbol", idx.Symbol).Msg("No quote data for overview entry")
			results[idx.Name] = IndexSnapshot{Error: fmt.Sprintf("%s for %s", ErrNoData.Error(), idx.Symbol)}
			continue
		}

		snapshot := IndexSnapshot{
			Current: ptr(round2(*quote.RegularMarketPrice)),
		}
		if quote.RegularMarketChange != nil {
			snapshot.Change = ptr(round2(*quote.RegularMarketChange))
		}
		if quote.RegularMarketChangePercent != nil {
			snapshot.ChangePercent = ptr(round2(*quote.RegularMarketChangePercent))
		}
		results[idx.Name] = snapshot
	}

	s.overview.Add(overviewCacheKey, results)
	return results, nil
}

func (q *Quote) companyName(fallback string) string {
	if q.LongName != "" {
		return q.LongName
	}
	if q.ShortName != "" {
		return q.ShortName
	}
	return fallback
}

func findQuote(quotes []Quote, symbol string) *Quote {
	for i := range quotes {
		if strings.EqualFold(quotes[i].Symbol, symbol) {
			return &quotes[i]
		}
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func ptr(v float64) *float64 {
	return &v
}
