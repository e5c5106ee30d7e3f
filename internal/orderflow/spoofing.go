package orderflow

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =======================
// SPOOFING DETECTOR
// =======================

// SpoofingPatternType labels the spoofing tactic that was matched
type SpoofingPatternType string

const (
	SpoofingLayering         SpoofingPatternType = "layering"
	SpoofingMomentumIgnition SpoofingPatternType = "momentum_ignition"
	SpoofingFlash            SpoofingPatternType = "flash"
)

// SpoofingEvent reports orders placed with no apparent intent to execute:
// they appear, distort the book, and vanish
type SpoofingEvent struct {
	Symbol      string              `json:"symbol"`
	Exchange    string              `json:"exchange"`
	Timestamp   time.Time           `json:"timestamp"`
	PatternType SpoofingPatternType `json:"pattern_type"`
	Side        Side                `json:"side"`
	Prices      []decimal.Decimal   `json:"prices"`
	PeakSize    decimal.Decimal     `json:"peak_size"`
	Confidence  float64             `json:"confidence"`
}

// SpoofingDetector maintains a short snapshot history per instrument and
// matches layering, momentum-ignition and flash-order patterns over
// order-book deltas. Not goroutine-safe; callers serialize per key.
type SpoofingDetector struct {
	config    SpoofingConfig
	logger    *zap.SugaredLogger
	snapshots *keyedRings[OrderBookSnapshot]
	events    *keyedRings[SpoofingEvent]
}

// NewSpoofingDetector creates a new spoofing detector
func NewSpoofingDetector(config SpoofingConfig, logger *zap.SugaredLogger) *SpoofingDetector {
	return &SpoofingDetector{
		config:    config,
		logger:    logger,
		snapshots: newKeyedRings[OrderBookSnapshot](config.HistorySize),
		events:    newKeyedRings[SpoofingEvent](config.HistorySize),
	}
}

// Update appends a snapshot and runs all three pattern matchers against
// the recent history. Returns any events detected on this tick, possibly
// none. Requires at least three snapshots.
func (d *SpoofingDetector) Update(snap *OrderBookSnapshot) []SpoofingEvent {
	if snap == nil {
		return nil
	}
	hist := d.snapshots.get(snap.Key())
	hist.Push(*snap)
	if hist.Len() < 3 {
		return nil // insufficient history
	}

	var events []SpoofingEvent
	for _, side := range []Side{SideBuy, SideSell} {
		if e := d.detectLayering(hist, side); e != nil {
			events = append(events, *e)
		}
		if e := d.detectMomentumIgnition(hist, side); e != nil {
			events = append(events, *e)
		}
		if e := d.detectFlash(hist, side); e != nil {
			events = append(events, *e)
		}
	}
	for i := range events {
		events[i].Symbol = snap.Symbol
		events[i].Exchange = snap.Exchange
		d.events.get(snap.Key()).Push(events[i])
	}
	return events
}

// sideLevels returns the requested side of a snapshot
func sideLevels(s *OrderBookSnapshot, side Side) []BookLevel {
	if side == SideBuy {
		return s.Bids
	}
	return s.Asks
}

// baselineSize estimates the typical level size of one side, excluding
// the top of book
func (d *SpoofingDetector) baselineSize(levels []BookLevel) decimal.Decimal {
	if len(levels) < 2 {
		return decimal.Zero
	}
	n := len(levels)
	if d.config.InspectLevels > 0 && n > d.config.InspectLevels {
		n = d.config.InspectLevels
	}
	total := decimal.Zero
	count := 0
	for i := 1; i < n; i++ {
		total = total.Add(levels[i].Quantity)
		count++
	}
	if count == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(count)))
}

// detectLayering looks for >= MinLayers outsized levels beyond level 1
// that were present in the previous snapshot and have since vanished
func (d *SpoofingDetector) detectLayering(hist *ring[OrderBookSnapshot], side Side) *SpoofingEvent {
	current := hist.At(hist.Len() - 1)
	earlier := hist.At(hist.Len() - 2)

	earlierLevels := sideLevels(&earlier, side)
	baseline := d.baselineSize(sideLevels(&current, side))
	if baseline.IsZero() {
		baseline = d.baselineSize(earlierLevels)
	}
	if baseline.IsZero() {
		return nil
	}

	threshold := baseline.Mul(decimal.NewFromFloat(d.config.MinSpoofSizeRatio))
	var vanished []decimal.Decimal
	peak := decimal.Zero

	n := len(earlierLevels)
	if d.config.InspectLevels > 0 && n > d.config.InspectLevels {
		n = d.config.InspectLevels
	}
	for i := 1; i < n; i++ { // beyond level 1
		lvl := earlierLevels[i]
		if lvl.Quantity.LessThan(threshold) {
			continue
		}
		if levelStillPresent(sideLevels(&current, side), lvl) {
			continue
		}
		vanished = append(vanished, lvl.Price)
		if lvl.Quantity.GreaterThan(peak) {
			peak = lvl.Quantity
		}
	}
	if len(vanished) < d.config.MinLayers {
		return nil
	}

	confidence := d.config.LayeringConfidence
	if len(vanished) > d.config.MinLayers {
		confidence += 0.05 * float64(len(vanished)-d.config.MinLayers)
	}
	return &SpoofingEvent{
		Timestamp:   current.Timestamp,
		PatternType: SpoofingLayering,
		Side:        side,
		Prices:      vanished,
		PeakSize:    peak,
		Confidence:  clamp(confidence, 0, 1),
	}
}

// levelStillPresent reports whether a level survives with a meaningful
// share of its earlier quantity
func levelStillPresent(levels []BookLevel, earlier BookLevel) bool {
	for _, lvl := range levels {
		if lvl.Price.Equal(earlier.Price) {
			// Considered vanished when under a quarter of original size
			return lvl.Quantity.GreaterThan(earlier.Quantity.Div(decimal.NewFromInt(4)))
		}
	}
	return false
}

// detectMomentumIgnition looks for an outsized top-of-book order that
// coincides with a multi-pip mid move and then disappears
func (d *SpoofingDetector) detectMomentumIgnition(hist *ring[OrderBookSnapshot], side Side) *SpoofingEvent {
	current := hist.At(hist.Len() - 1)
	prev := hist.At(hist.Len() - 2)
	earlier := hist.At(hist.Len() - 3)

	earlierLevels := sideLevels(&earlier, side)
	if len(earlierLevels) == 0 {
		return nil
	}
	top := earlierLevels[0]

	baseline := d.baselineSize(earlierLevels)
	if baseline.IsZero() || top.Quantity.LessThan(baseline.Mul(decimal.NewFromFloat(d.config.MinSpoofSizeRatio))) {
		return nil
	}

	// Mid must have moved at least IgnitionMovePips in the order's favor
	earlierMid := earlier.MidPrice()
	prevMid := prev.MidPrice()
	if earlierMid.IsZero() || prevMid.IsZero() || d.config.TickSize.IsZero() {
		return nil
	}
	movePips := prevMid.Sub(earlierMid).Div(d.config.TickSize).InexactFloat64()
	if side == SideSell {
		movePips = -movePips
	}
	if movePips < d.config.IgnitionMovePips {
		return nil
	}

	// And the outsized order must have disappeared
	if levelStillPresent(sideLevels(&current, side), top) {
		return nil
	}

	confidence := d.config.IgnitionConfidence
	if movePips >= 2*d.config.IgnitionMovePips {
		confidence += 0.1
	}
	return &SpoofingEvent{
		Timestamp:   current.Timestamp,
		PatternType: SpoofingMomentumIgnition,
		Side:        side,
		Prices:      []decimal.Decimal{top.Price},
		PeakSize:    top.Quantity,
		Confidence:  clamp(confidence, 0, 1),
	}
}

// detectFlash looks for an outsized order visible in exactly one snapshot
// and absent in its immediate neighbors
func (d *SpoofingDetector) detectFlash(hist *ring[OrderBookSnapshot], side Side) *SpoofingEvent {
	current := hist.At(hist.Len() - 1)
	middle := hist.At(hist.Len() - 2)
	before := hist.At(hist.Len() - 3)

	middleLevels := sideLevels(&middle, side)
	baseline := d.baselineSize(middleLevels)
	if baseline.IsZero() {
		return nil
	}
	threshold := baseline.Mul(decimal.NewFromFloat(d.config.MinSpoofSizeRatio))

	n := len(middleLevels)
	if d.config.InspectLevels > 0 && n > d.config.InspectLevels {
		n = d.config.InspectLevels
	}
	for i := 0; i < n; i++ {
		lvl := middleLevels[i]
		if lvl.Quantity.LessThan(threshold) {
			continue
		}
		inBefore := levelExists(sideLevels(&before, side), lvl.Price)
		inCurrent := levelExists(sideLevels(&current, side), lvl.Price)
		if inBefore || inCurrent {
			continue
		}
		return &SpoofingEvent{
			Timestamp:   current.Timestamp,
			PatternType: SpoofingFlash,
			Side:        side,
			Prices:      []decimal.Decimal{lvl.Price},
			PeakSize:    lvl.Quantity,
			Confidence:  d.config.FlashConfidence,
		}
	}
	return nil
}

// levelExists reports whether any level rests at the given price
func levelExists(levels []BookLevel, price decimal.Decimal) bool {
	for _, lvl := range levels {
		if lvl.Price.Equal(price) {
			return true
		}
	}
	return false
}

// RecentEvents returns up to limit most recent spoofing events
func (d *SpoofingDetector) RecentEvents(exchange, symbol string, limit int) []SpoofingEvent {
	items := d.events.get(instrumentKey(exchange, symbol)).Items()
	if limit > 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}
	return items
}

// EventsSince counts retained events newer than the cutoff
func (d *SpoofingDetector) EventsSince(exchange, symbol string, cutoff time.Time) int {
	items := d.events.get(instrumentKey(exchange, symbol)).Items()
	count := 0
	for _, e := range items {
		if e.Timestamp.After(cutoff) {
			count++
		}
	}
	return count
}
