package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SessionTag says which market session a quoted price belongs to.
type SessionTag string

const (
	SessionPreMarket SessionTag = "pre-market"
	SessionLive      SessionTag = "live"
	SessionClosed    SessionTag = "closed"
)

func (t SessionTag) Label() string {
	switch t {
	case SessionLive:
		return "📈 live price"
	case SessionClosed:
		return "📉 last close"
	default:
		return "❗ market not open"
	}
}

// Quote is the current price of one symbol. Price is nil when no price is
// available for the session (before open, or upstream returned nothing).
type Quote struct {
	Symbol string
	Price  *decimal.Decimal
	Tag    SessionTag
}

// AverageWindow holds the trailing average closes of one symbol. Either
// average is nil when the upstream series has no data for that window.
type AverageWindow struct {
	Symbol   string
	MonthAvg *decimal.Decimal // trailing 30 days
	YearAvg  *decimal.Decimal // trailing 365 days
}

// DailyClose is one day of the historical close series.
type DailyClose struct {
	Date  time.Time
	Close decimal.Decimal
}
