package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// ComparePrice labels the percent change of current against a baseline
// average. A missing or zero baseline cannot be compared.
func ComparePrice(base *decimal.Decimal, current decimal.Decimal) string {
	if base == nil || base.IsZero() {
		return "cannot compare"
	}
	change := current.Sub(*base).Div(*base).Mul(oneHundred).Round(2)
	if change.IsPositive() {
		return fmt.Sprintf("⬆️ up %s%%", change.String())
	}
	return fmt.Sprintf("⬇️ down %s%%", change.Abs().String())
}

// FormatStockBlock renders the per-symbol section of a daily report.
// The caller guarantees quote.Price is non-nil.
func FormatStockBlock(symbol, name string, quote Quote, averages AverageWindow) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📌 %s %s\n", symbol, name))
	sb.WriteString(fmt.Sprintf("price: %s (%s)\n\n", quote.Price.String(), quote.Tag.Label()))
	sb.WriteString("📊 price comparison\n")
	sb.WriteString(fmt.Sprintf("- vs 1-month avg: %s\n", ComparePrice(averages.MonthAvg, *quote.Price)))
	sb.WriteString(fmt.Sprintf("- vs 1-year avg: %s", ComparePrice(averages.YearAvg, *quote.Price)))
	return sb.String()
}

// MarketNotOpenLine replaces a symbol's block when no price exists yet for
// the session.
func MarketNotOpenLine(symbol, sessionOpen string) string {
	return fmt.Sprintf("%s: ❗ market not yet open, set your notify time after %s", symbol, sessionOpen)
}

// AveragesUnavailableLine replaces a symbol's block when the historical
// series came back empty.
func AveragesUnavailableLine(symbol string) string {
	return fmt.Sprintf("%s: averages unavailable", symbol)
}

// FormatWatchlist renders the /list reply, newest first.
func FormatWatchlist(symbols []string) string {
	var sb strings.Builder
	sb.WriteString("📋 tracked stocks:")
	for _, symbol := range symbols {
		sb.WriteString(fmt.Sprintf("\n- %s", symbol))
	}
	return sb.String()
}
