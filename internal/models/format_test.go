package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func TestComparePrice(t *testing.T) {
	t.Run("up", func(t *testing.T) {
		got := ComparePrice(dec(100), decimal.NewFromInt(110))
		if got != "⬆️ up 10%" {
			t.Errorf("Expected '⬆️ up 10%%', got '%s'", got)
		}
	})

	t.Run("down", func(t *testing.T) {
		got := ComparePrice(dec(100), decimal.NewFromInt(90))
		if got != "⬇️ down 10%" {
			t.Errorf("Expected '⬇️ down 10%%', got '%s'", got)
		}
	})

	t.Run("zero change counts as down", func(t *testing.T) {
		got := ComparePrice(dec(100), decimal.NewFromInt(100))
		if got != "⬇️ down 0%" {
			t.Errorf("Expected '⬇️ down 0%%', got '%s'", got)
		}
	})

	t.Run("zero baseline", func(t *testing.T) {
		got := ComparePrice(dec(0), decimal.NewFromInt(50))
		if got != "cannot compare" {
			t.Errorf("Expected 'cannot compare', got '%s'", got)
		}
	})

	t.Run("missing baseline", func(t *testing.T) {
		got := ComparePrice(nil, decimal.NewFromInt(50))
		if got != "cannot compare" {
			t.Errorf("Expected 'cannot compare', got '%s'", got)
		}
	})

	t.Run("rounded to two decimals", func(t *testing.T) {
		base := decimal.NewFromInt(3)
		got := ComparePrice(&base, decimal.NewFromInt(100))
		if got != "⬆️ up 3233.33%" {
			t.Errorf("Expected '⬆️ up 3233.33%%', got '%s'", got)
		}
	})
}

func TestFormatStockBlock(t *testing.T) {
	price := decimal.NewFromInt(110)
	quote := Quote{Symbol: "2330", Price: &price, Tag: SessionLive}
	averages := AverageWindow{Symbol: "2330", MonthAvg: dec(100), YearAvg: dec(88)}

	expected := "📌 2330 TSMC\n" +
		"price: 110 (📈 live price)\n\n" +
		"📊 price comparison\n" +
		"- vs 1-month avg: ⬆️ up 10%\n" +
		"- vs 1-year avg: ⬆️ up 25%"

	if got := FormatStockBlock("2330", "TSMC", quote, averages); got != expected {
		t.Errorf("Block format mismatch.\nExpected:\n%s\nGot:\n%s", expected, got)
	}
}

func TestFormatStockBlockWithoutMonthAverage(t *testing.T) {
	price := decimal.NewFromInt(50)
	quote := Quote{Symbol: "2317", Price: &price, Tag: SessionClosed}
	averages := AverageWindow{Symbol: "2317", YearAvg: dec(100)}

	expected := "📌 2317 unknown\n" +
		"price: 50 (📉 last close)\n\n" +
		"📊 price comparison\n" +
		"- vs 1-month avg: cannot compare\n" +
		"- vs 1-year avg: ⬇️ down 50%"

	if got := FormatStockBlock("2317", "unknown", quote, averages); got != expected {
		t.Errorf("Block format mismatch.\nExpected:\n%s\nGot:\n%s", expected, got)
	}
}

func TestFormatWatchlist(t *testing.T) {
	expected := "📋 tracked stocks:\n- 2330\n- 2317"
	if got := FormatWatchlist([]string{"2330", "2317"}); got != expected {
		t.Errorf("Watchlist format mismatch.\nExpected:\n%s\nGot:\n%s", expected, got)
	}
}
