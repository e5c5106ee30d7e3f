package orderflow

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side identifies the aggressor or resting side of an order or trade
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the other side
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// QuoteAction identifies the lifecycle event carried by a quote message
type QuoteAction string

const (
	QuoteActionAdd    QuoteAction = "add"
	QuoteActionModify QuoteAction = "modify"
	QuoteActionCancel QuoteAction = "cancel"
)

// BookLevel is one price level of an order book snapshot. Levels are
// immutable once a snapshot is built.
type BookLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Orders   int             `json:"orders"`
}

// OrderBookSnapshot is a point-in-time view of bid/ask depth for one
// instrument. Bids are sorted descending by price, asks ascending.
type OrderBookSnapshot struct {
	Symbol    string          `json:"symbol"`
	Exchange  string          `json:"exchange"`
	Bids      []BookLevel     `json:"bids"`
	Asks      []BookLevel     `json:"asks"`
	Timestamp time.Time       `json:"timestamp"`
	Sequence  uint64          `json:"sequence,omitempty"`
}

// Key returns the per-instrument history key used by all detectors
func (s *OrderBookSnapshot) Key() string {
	return s.Exchange + ":" + s.Symbol
}

// BestBid returns the top bid level, or nil if the bid side is empty
func (s *OrderBookSnapshot) BestBid() *BookLevel {
	if len(s.Bids) == 0 {
		return nil
	}
	return &s.Bids[0]
}

// BestAsk returns the top ask level, or nil if the ask side is empty
func (s *OrderBookSnapshot) BestAsk() *BookLevel {
	if len(s.Asks) == 0 {
		return nil
	}
	return &s.Asks[0]
}

// Spread returns best ask minus best bid, or zero if either side is empty
func (s *OrderBookSnapshot) Spread() decimal.Decimal {
	if len(s.Bids) == 0 || len(s.Asks) == 0 {
		return decimal.Zero
	}
	return s.Asks[0].Price.Sub(s.Bids[0].Price)
}

// MidPrice returns the midpoint of the best bid and ask. If one side is
// empty the surviving side's best price is returned; an empty book yields
// zero.
func (s *OrderBookSnapshot) MidPrice() decimal.Decimal {
	switch {
	case len(s.Bids) > 0 && len(s.Asks) > 0:
		return s.Bids[0].Price.Add(s.Asks[0].Price).Div(decimal.NewFromInt(2))
	case len(s.Bids) > 0:
		return s.Bids[0].Price
	case len(s.Asks) > 0:
		return s.Asks[0].Price
	default:
		return decimal.Zero
	}
}

// Depth sums displayed quantity over the top n levels of one side.
// n <= 0 sums the whole side.
func (s *OrderBookSnapshot) Depth(side Side, n int) decimal.Decimal {
	levels := s.Bids
	if side == SideSell {
		levels = s.Asks
	}
	if n <= 0 || n > len(levels) {
		n = len(levels)
	}
	total := decimal.Zero
	for i := 0; i < n; i++ {
		total = total.Add(levels[i].Quantity)
	}
	return total
}

// DepthWithin sums displayed quantity on one side within pct (fractional,
// e.g. 0.01 for 1%) of the mid price.
func (s *OrderBookSnapshot) DepthWithin(side Side, pct float64) decimal.Decimal {
	mid := s.MidPrice()
	if mid.IsZero() {
		return decimal.Zero
	}
	band := mid.Mul(decimal.NewFromFloat(pct))
	levels := s.Bids
	if side == SideSell {
		levels = s.Asks
	}
	total := decimal.Zero
	for _, lvl := range levels {
		if lvl.Price.Sub(mid).Abs().GreaterThan(band) {
			break
		}
		total = total.Add(lvl.Quantity)
	}
	return total
}

// Trade is a single execution event. Trades are consumed by detectors and
// discarded; only derived statistics persist.
type Trade struct {
	Timestamp  time.Time       `json:"timestamp"`
	Symbol     string          `json:"symbol"`
	Exchange   string          `json:"exchange"`
	Price      decimal.Decimal `json:"price"`
	Volume     decimal.Decimal `json:"volume"`
	Side       Side            `json:"side,omitempty"`
	Aggressive bool            `json:"aggressive,omitempty"`
}

// Notional returns price x volume
func (t *Trade) Notional() decimal.Decimal {
	return t.Price.Mul(t.Volume)
}

// Key returns the per-instrument history key
func (t *Trade) Key() string {
	return t.Exchange + ":" + t.Symbol
}

// QuoteMessage is one order-lifecycle event from the quote stream. The
// spoofing, stuffing and HFT detectors reconstruct order lifecycles from
// add/modify/cancel sequences sharing a MessageID.
type QuoteMessage struct {
	Timestamp  time.Time       `json:"timestamp"`
	Symbol     string          `json:"symbol"`
	Exchange   string          `json:"exchange"`
	MessageID  string          `json:"message_id"`
	Action     QuoteAction     `json:"action"`
	Price      decimal.Decimal `json:"price"`
	Size       decimal.Decimal `json:"size"`
	Side       Side            `json:"side"`
	Aggressive bool            `json:"aggressive,omitempty"`
}

// Key returns the per-instrument history key
func (q *QuoteMessage) Key() string {
	return q.Exchange + ":" + q.Symbol
}

// instrumentKey builds the history key from explicit parts
func instrumentKey(exchange, symbol string) string {
	return exchange + ":" + symbol
}
