package stock

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"stock-assistant/internal/models"
	"stock-assistant/internal/utils"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

//go:embed market.yaml
var marketYAML []byte

// MarketConfig describes the exchange the tracked symbols trade on.
type MarketConfig struct {
	Timezone     string `yaml:"timezone"`
	SessionOpen  string `yaml:"session_open"`  // "HH:MM"
	SessionClose string `yaml:"session_close"` // "HH:MM", inclusive
	SymbolSuffix string `yaml:"symbol_suffix"`
}

// LoadMarketConfig reads the embedded exchange settings.
func LoadMarketConfig() (MarketConfig, error) {
	var cfg MarketConfig
	if err := yaml.Unmarshal(marketYAML, &cfg); err != nil {
		return cfg, fmt.Errorf("error parsing market yaml: %w", err)
	}
	return cfg, nil
}

type StockAPI interface {
	// CurrentQuote returns the price to report for symbol at the given
	// wall-clock time. Price is nil before the market opens or when the
	// upstream has no data; the session tag is set either way.
	CurrentQuote(ctx context.Context, now time.Time, symbol string) models.Quote

	// TrailingAverages returns the 30-day and 365-day average closes,
	// each nil when the series has no data for its window.
	TrailingAverages(ctx context.Context, now time.Time, symbol string) models.AverageWindow

	// DisplayName returns the symbol's listed name, "unknown" if unavailable.
	DisplayName(ctx context.Context, symbol string) string

	Location() *time.Location
	SessionOpen() string
}

type stockService struct {
	logger   *logrus.Entry
	quotes   utils.QuoteAPI
	cfg      MarketConfig
	location *time.Location
	openMin  int
	closeMin int
}

func NewStockService(logger *logrus.Entry, quotes utils.QuoteAPI, cfg MarketConfig) (StockAPI, error) {
	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid market timezone %q: %w", cfg.Timezone, err)
	}

	openMin, err := minutesOfDay(cfg.SessionOpen)
	if err != nil {
		return nil, fmt.Errorf("invalid session open %q: %w", cfg.SessionOpen, err)
	}
	closeMin, err := minutesOfDay(cfg.SessionClose)
	if err != nil {
		return nil, fmt.Errorf("invalid session close %q: %w", cfg.SessionClose, err)
	}

	return &stockService{
		logger:   logger,
		quotes:   quotes,
		cfg:      cfg,
		location: location,
		openMin:  openMin,
		closeMin: closeMin,
	}, nil
}

func minutesOfDay(hhmm string) (int, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func (s *stockService) Location() *time.Location {
	return s.location
}

func (s *stockService) SessionOpen() string {
	return s.cfg.SessionOpen
}

func (s *stockService) CurrentQuote(ctx context.Context, now time.Time, symbol string) models.Quote {
	local := now.In(s.location)
	minute := local.Hour()*60 + local.Minute()

	quote := models.Quote{Symbol: symbol}
	switch {
	case minute < s.openMin:
		quote.Tag = models.SessionPreMarket
		return quote
	case minute <= s.closeMin:
		quote.Tag = models.SessionLive
	default:
		quote.Tag = models.SessionClosed
	}

	marketQuote, err := s.quotes.GetQuote(ctx, symbol)
	if err != nil {
		s.logger.WithError(err).WithField("symbol", symbol).Warn("Failed to fetch quote")
		return quote
	}

	if quote.Tag == models.SessionLive {
		quote.Price = marketQuote.Price
	} else {
		quote.Price = marketQuote.PreviousClose
	}
	return quote
}

func (s *stockService) TrailingAverages(ctx context.Context, now time.Time, symbol string) models.AverageWindow {
	averages := models.AverageWindow{Symbol: symbol}

	closes, err := s.quotes.GetDailyCloses(ctx, symbol)
	if err != nil {
		s.logger.WithError(err).WithField("symbol", symbol).Warn("Failed to fetch daily closes")
		return averages
	}
	if len(closes) == 0 {
		return averages
	}

	monthStart := now.AddDate(0, 0, -30)

	var yearValues, monthValues []decimal.Decimal
	for _, dailyClose := range closes {
		yearValues = append(yearValues, dailyClose.Close)
		if !dailyClose.Date.Before(monthStart) {
			monthValues = append(monthValues, dailyClose.Close)
		}
	}

	yearAvg := meanOf(yearValues)
	averages.YearAvg = &yearAvg
	if len(monthValues) > 0 {
		monthAvg := meanOf(monthValues)
		averages.MonthAvg = &monthAvg
	}
	return averages
}

func meanOf(values []decimal.Decimal) decimal.Decimal {
	return decimal.Avg(values[0], values[1:]...).Round(2)
}

func (s *stockService) DisplayName(ctx context.Context, symbol string) string {
	marketQuote, err := s.quotes.GetQuote(ctx, symbol)
	if err != nil {
		s.logger.WithError(err).WithField("symbol", symbol).Warn("Failed to fetch display name")
		return "unknown"
	}
	if marketQuote.LongName == "" {
		return "unknown"
	}
	return marketQuote.LongName
}
