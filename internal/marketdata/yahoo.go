// Package marketdata fetches quotes from the Yahoo Finance quote API, the same
// source the bot's function tools are described against.
package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

type Client struct {
	http *resty.Client
}

func NewClient(baseURL string) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetHeader("User-Agent", "financial-chatbot/1.0").
		SetTimeout(15 * time.Second)

	return &Client{http: httpClient}
}

// Quote is a single symbol snapshot from the v7 quote endpoint. Pointer fields
// distinguish "absent" from zero; Yahoo omits fundamentals for indices and
// futures.
type Quote struct {
	Symbol                     string   `json:"symbol"`
	LongName                   string   `json:"longName,omitempty"`
	ShortName                  string   `json:"shortName,omitempty"`
	RegularMarketPrice         *float64 `json:"regularMarketPrice,omitempty"`
	RegularMarketChange        *float64 `json:"regularMarketChange,omitempty"`
	RegularMarketChangePercent *float64 `json:"regularMarketChangePercent,omitempty"`
	RegularMarketVolume        *int64   `json:"regularMarketVolume,omitempty"`
	MarketCap                  *int64   `json:"marketCap,omitempty"`
	TrailingPE                 *float64 `json:"trailingPE,omitempty"`
	FiftyTwoWeekHigh           *float64 `json:"fiftyTwoWeekHigh,omitempty"`
	FiftyTwoWeekLow            *float64 `json:"fiftyTwoWeekLow,omitempty"`
}

type quoteAPIError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []Quote        `json:"result"`
		Error  *quoteAPIError `json:"error"`
	} `json:"quoteResponse"`
}

// Quotes fetches snapshots for the given symbols in a single batch request.
func (c *Client) Quotes(ctx context.Context, symbols []string) ([]Quote, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	var result quoteResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("symbols", strings.Join(symbols, ",")).
		SetResult(&result).
		Get("/v7/finance/quote")
	if err != nil {
		return nil, fmt.Errorf("failed to query quote API: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("quote API error (status %d): %s", resp.StatusCode(), resp.String())
	}
	if apiErr := result.QuoteResponse.Error; apiErr != nil {
		return nil, fmt.Errorf("quote API error: %s (%s)", apiErr.Description, apiErr.Code)
	}

	return result.QuoteResponse.Result, nil
}
