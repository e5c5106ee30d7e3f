package orderflow

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =======================
// ABSORPTION DETECTOR
// =======================

// AbsorptionStrength buckets the absorption rate (volume per second)
type AbsorptionStrength string

const (
	AbsorptionWeak     AbsorptionStrength = "weak"
	AbsorptionModerate AbsorptionStrength = "moderate"
	AbsorptionStrong   AbsorptionStrength = "strong"
	AbsorptionExtreme  AbsorptionStrength = "extreme"
)

// AbsorptionPatternType classifies a cluster of absorption events
type AbsorptionPatternType string

const (
	AbsorptionAccumulation AbsorptionPatternType = "accumulation"
	AbsorptionDistribution AbsorptionPatternType = "distribution"
	AbsorptionSupport      AbsorptionPatternType = "support"
	AbsorptionResistance   AbsorptionPatternType = "resistance"
)

// AbsorptionEvent reports high volume executing at a price level without
// the price moving, indicating a large passive counterparty
type AbsorptionEvent struct {
	Symbol         string             `json:"symbol"`
	Exchange       string             `json:"exchange"`
	Timestamp      time.Time          `json:"timestamp"`
	Side           Side               `json:"side"`
	Price          decimal.Decimal    `json:"price"`
	VolumeAbsorbed decimal.Decimal    `json:"volume_absorbed"`
	PriceMovement  float64            `json:"price_movement"`
	Duration       time.Duration      `json:"duration"`
	AbsorptionRate float64            `json:"absorption_rate"`
	Strength       AbsorptionStrength `json:"strength"`
	Confidence     float64            `json:"confidence"`
}

// AbsorptionPattern is a cluster of absorption events within the pattern
// window, classified by which side absorbed the flow
type AbsorptionPattern struct {
	Symbol      string                `json:"symbol"`
	Exchange    string                `json:"exchange"`
	PatternType AbsorptionPatternType `json:"pattern_type"`
	EventCount  int                   `json:"event_count"`
	TotalVolume decimal.Decimal       `json:"total_volume"`
	WindowStart time.Time             `json:"window_start"`
	WindowEnd   time.Time             `json:"window_end"`
	Confidence  float64               `json:"confidence"`
}

// AbsorptionPatternDetector compares order-book snapshots a fixed number
// of steps apart and flags volume depletion at stable prices. Not
// goroutine-safe; callers serialize per key.
type AbsorptionPatternDetector struct {
	config    AbsorptionConfig
	logger    *zap.SugaredLogger
	snapshots *keyedRings[OrderBookSnapshot]
	events    *keyedRings[AbsorptionEvent]
}

// NewAbsorptionPatternDetector creates a new absorption pattern detector
func NewAbsorptionPatternDetector(config AbsorptionConfig, logger *zap.SugaredLogger) *AbsorptionPatternDetector {
	return &AbsorptionPatternDetector{
		config:    config,
		logger:    logger,
		snapshots: newKeyedRings[OrderBookSnapshot](config.HistorySize),
		events:    newKeyedRings[AbsorptionEvent](config.HistorySize),
	}
}

// Update appends a snapshot and compares it against the snapshot
// LookbackSteps back. Returns an absorption event when enough volume was
// depleted from a top level while the mid price held still, or nil.
func (d *AbsorptionPatternDetector) Update(snap *OrderBookSnapshot) *AbsorptionEvent {
	if snap == nil {
		return nil
	}
	hist := d.snapshots.get(snap.Key())
	hist.Push(*snap)

	if hist.Len() <= d.config.LookbackSteps {
		return nil // insufficient history
	}

	initial := hist.At(hist.Len() - 1 - d.config.LookbackSteps)
	elapsed := snap.Timestamp.Sub(initial.Timestamp)
	if elapsed < d.config.MinDuration {
		return nil
	}

	initialMid := initial.MidPrice()
	currentMid := snap.MidPrice()
	if initialMid.IsZero() || currentMid.IsZero() {
		return nil
	}
	priceMove := currentMid.Sub(initialMid).Abs().Div(initialMid).InexactFloat64()
	if priceMove > d.config.MaxPriceMovement {
		return nil
	}

	// Largest depletion across the top 3 levels of either side wins
	bidVol, bidPrice := depletionAt(initial.Bids, snap.Bids)
	askVol, askPrice := depletionAt(initial.Asks, snap.Asks)

	side, absorbed, price := SideBuy, bidVol, bidPrice
	if askVol.GreaterThan(bidVol) {
		side, absorbed, price = SideSell, askVol, askPrice
	}
	if absorbed.LessThan(d.config.MinVolumeThreshold) {
		return nil
	}

	rate := absorbed.InexactFloat64() / elapsed.Seconds()
	event := &AbsorptionEvent{
		Symbol:         snap.Symbol,
		Exchange:       snap.Exchange,
		Timestamp:      snap.Timestamp,
		Side:           side,
		Price:          price,
		VolumeAbsorbed: absorbed,
		PriceMovement:  priceMove,
		Duration:       elapsed,
		AbsorptionRate: rate,
		Strength:       classifyAbsorptionStrength(rate),
	}
	event.Confidence = d.eventConfidence(event)

	d.events.get(snap.Key()).Push(*event)
	return event
}

// depletionAt returns the largest quantity drop across the top 3 levels,
// matching levels by price, and the price where it occurred
func depletionAt(initial, current []BookLevel) (decimal.Decimal, decimal.Decimal) {
	best := decimal.Zero
	bestPrice := decimal.Zero
	n := 3
	if n > len(initial) {
		n = len(initial)
	}
	for i := 0; i < n; i++ {
		init := initial[i]
		remaining := decimal.Zero
		for _, cur := range current {
			if cur.Price.Equal(init.Price) {
				remaining = cur.Quantity
				break
			}
		}
		drop := init.Quantity.Sub(remaining)
		if drop.GreaterThan(best) {
			best = drop
			bestPrice = init.Price
		}
	}
	return best, bestPrice
}

// classifyAbsorptionStrength buckets the absorption rate in volume/second
func classifyAbsorptionStrength(rate float64) AbsorptionStrength {
	switch {
	case rate >= 100:
		return AbsorptionExtreme
	case rate >= 50:
		return AbsorptionStrong
	case rate >= 10:
		return AbsorptionModerate
	default:
		return AbsorptionWeak
	}
}

// eventConfidence scales with strength and how little the price moved
func (d *AbsorptionPatternDetector) eventConfidence(e *AbsorptionEvent) float64 {
	strengthScore := map[AbsorptionStrength]float64{
		AbsorptionWeak:     0.4,
		AbsorptionModerate: 0.6,
		AbsorptionStrong:   0.8,
		AbsorptionExtreme:  0.95,
	}[e.Strength]

	stability := 1.0
	if d.config.MaxPriceMovement > 0 {
		stability = 1 - e.PriceMovement/d.config.MaxPriceMovement
	}
	return clamp((strengthScore+stability)/2, 0, 1)
}

// DetectPattern clusters recent absorption events within the pattern
// window and classifies them. Requires MinEventsForPattern events; fewer
// returns nil.
func (d *AbsorptionPatternDetector) DetectPattern(exchange, symbol string) *AbsorptionPattern {
	events := d.events.get(instrumentKey(exchange, symbol)).Items()
	if len(events) == 0 {
		return nil
	}

	cutoff := events[len(events)-1].Timestamp.Add(-d.config.PatternWindow)
	var recent []AbsorptionEvent
	for _, e := range events {
		if !e.Timestamp.Before(cutoff) {
			recent = append(recent, e)
		}
	}
	if len(recent) < d.config.MinEventsForPattern {
		return nil
	}

	var bidCount, askCount int
	total := decimal.Zero
	rates := make([]float64, 0, len(recent))
	strengthSum := 0.0
	for _, e := range recent {
		if e.Side == SideBuy {
			bidCount++
		} else {
			askCount++
		}
		total = total.Add(e.VolumeAbsorbed)
		rates = append(rates, e.AbsorptionRate)
		strengthSum += e.Confidence
	}

	// Rate consistency: steady absorption is a stronger tell than bursts
	consistency := clamp(1-coefficientOfVariation(rates), 0, 1)
	confidence := clamp((strengthSum/float64(len(recent))+consistency)/2, 0, 1)

	return &AbsorptionPattern{
		Symbol:      symbol,
		Exchange:    exchange,
		PatternType: classifyAbsorptionPattern(bidCount, askCount),
		EventCount:  len(recent),
		TotalVolume: total,
		WindowStart: recent[0].Timestamp,
		WindowEnd:   recent[len(recent)-1].Timestamp,
		Confidence:  confidence,
	}
}

// classifyAbsorptionPattern maps the side mix of events to a pattern type.
// Bid-side absorption means sell flow is being absorbed by passive buyers.
func classifyAbsorptionPattern(bidCount, askCount int) AbsorptionPatternType {
	total := bidCount + askCount
	if total == 0 {
		return AbsorptionSupport
	}
	bidRatio := float64(bidCount) / float64(total)
	switch {
	case bidRatio >= 0.8:
		return AbsorptionAccumulation
	case bidRatio <= 0.2:
		return AbsorptionDistribution
	case bidRatio >= 0.5:
		return AbsorptionSupport
	default:
		return AbsorptionResistance
	}
}

// RecentEvents returns up to limit most recent absorption events
func (d *AbsorptionPatternDetector) RecentEvents(exchange, symbol string, limit int) []AbsorptionEvent {
	items := d.events.get(instrumentKey(exchange, symbol)).Items()
	if limit > 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}
	return items
}
