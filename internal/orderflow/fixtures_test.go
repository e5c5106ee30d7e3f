package orderflow

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	testSymbol   = "BTC-USDT"
	testExchange = "binance"
)

var testBase = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

// level builds one book level from floats
func level(price, qty float64) BookLevel {
	return BookLevel{
		Price:    decimal.NewFromFloat(price),
		Quantity: decimal.NewFromFloat(qty),
		Orders:   1,
	}
}

// book builds a snapshot; bids must be passed best-first descending,
// asks best-first ascending
func book(ts time.Time, bids, asks []BookLevel) *OrderBookSnapshot {
	return &OrderBookSnapshot{
		Symbol:    testSymbol,
		Exchange:  testExchange,
		Bids:      bids,
		Asks:      asks,
		Timestamp: ts,
	}
}

// uniformSide builds n levels starting at best, stepped by step, all with
// the same quantity
func uniformSide(best, step float64, n int, qty float64) []BookLevel {
	levels := make([]BookLevel, n)
	for i := 0; i < n; i++ {
		levels[i] = level(best+step*float64(i), qty)
	}
	return levels
}

// trade builds one execution
func trade(ts time.Time, price, volume float64, side Side) *Trade {
	return &Trade{
		Timestamp: ts,
		Symbol:    testSymbol,
		Exchange:  testExchange,
		Price:     decimal.NewFromFloat(price),
		Volume:    decimal.NewFromFloat(volume),
		Side:      side,
	}
}

// quote builds one quote message
func quote(ts time.Time, id string, action QuoteAction, price, size float64, side Side) *QuoteMessage {
	return &QuoteMessage{
		Timestamp: ts,
		Symbol:    testSymbol,
		Exchange:  testExchange,
		MessageID: id,
		Action:    action,
		Price:     decimal.NewFromFloat(price),
		Size:      decimal.NewFromFloat(size),
		Side:      side,
	}
}
