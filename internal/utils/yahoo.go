package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"stock-assistant/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// MarketQuote is the current snapshot Yahoo reports for one symbol.
// Price and PreviousClose are nil when the endpoint has no value for them.
type MarketQuote struct {
	Symbol        string
	Price         *decimal.Decimal
	PreviousClose *decimal.Decimal
	LongName      string
}

type QuoteAPI interface {
	GetQuote(ctx context.Context, symbol string) (*MarketQuote, error)
	GetDailyCloses(ctx context.Context, symbol string) ([]models.DailyClose, error)
}

// yahooChartResponse mirrors the v8 chart endpoint payload.
type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				LongName           string  `json:"longName"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"previousClose"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type YahooClient struct {
	httpClient   *http.Client
	limiter      *rate.Limiter
	marketSuffix string
}

// NewYahooClient returns a chart-API client that qualifies every symbol
// with marketSuffix (e.g. ".TW" for TWSE tickers).
func NewYahooClient(marketSuffix string) QuoteAPI {
	return &YahooClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter:      rate.NewLimiter(5, 1),
		marketSuffix: marketSuffix,
	}
}

func (c *YahooClient) GetQuote(ctx context.Context, symbol string) (*MarketQuote, error) {
	resp, err := c.fetchChart(ctx, symbol, "1d")
	if err != nil {
		return nil, err
	}

	meta := resp.Chart.Result[0].Meta
	quote := &MarketQuote{
		Symbol:   symbol,
		LongName: meta.LongName,
	}
	if meta.RegularMarketPrice != 0 {
		price := decimal.NewFromFloat(meta.RegularMarketPrice)
		quote.Price = &price
	}
	previousClose := meta.PreviousClose
	if previousClose == 0 {
		previousClose = meta.ChartPreviousClose
	}
	if previousClose != 0 {
		prev := decimal.NewFromFloat(previousClose)
		quote.PreviousClose = &prev
	}
	return quote, nil
}

func (c *YahooClient) GetDailyCloses(ctx context.Context, symbol string) ([]models.DailyClose, error) {
	resp, err := c.fetchChart(ctx, symbol, "1y")
	if err != nil {
		return nil, err
	}

	result := resp.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, nil
	}

	quote := result.Indicators.Quote[0]
	var closes []models.DailyClose
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == 0 {
			continue
		}
		closes = append(closes, models.DailyClose{
			Date:  time.Unix(ts, 0),
			Close: decimal.NewFromFloat(quote.Close[i]),
		})
	}
	return closes, nil
}

func (c *YahooClient) fetchChart(ctx context.Context, symbol, chartRange string) (*yahooChartResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	chartURL := fmt.Sprintf("https://query1.finance.yahoo.com/v8/finance/chart/%s?interval=1d&range=%s",
		url.PathEscape(symbol+c.marketSuffix), chartRange)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, chartURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create chart request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call chart endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chart endpoint returned status %d for %s", resp.StatusCode, symbol)
	}

	var chartResp yahooChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chartResp); err != nil {
		return nil, fmt.Errorf("failed to decode chart response: %w", err)
	}
	if chartResp.Chart.Error != nil {
		return nil, fmt.Errorf("chart endpoint error for %s: %s", symbol, chartResp.Chart.Error.Description)
	}
	if len(chartResp.Chart.Result) == 0 {
		return nil, fmt.Errorf("no chart data for %s", symbol)
	}
	return &chartResp, nil
}
