package orderflow

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =======================
// HIDDEN LIQUIDITY SCANNER
// =======================

// HiddenLiquidityType labels the detection method that produced a signal
type HiddenLiquidityType string

const (
	HiddenExcessExecution   HiddenLiquidityType = "excess_execution"
	HiddenPriceImprovement  HiddenLiquidityType = "price_improvement"
	HiddenRapidRefill       HiddenLiquidityType = "rapid_refill"
	HiddenDarkPoolSignature HiddenLiquidityType = "dark_pool_signature"
)

// HiddenLiquiditySignal reports evidence of non-displayed liquidity at or
// near a price level
type HiddenLiquiditySignal struct {
	Symbol        string              `json:"symbol"`
	Exchange      string              `json:"exchange"`
	Timestamp     time.Time           `json:"timestamp"`
	Type          HiddenLiquidityType `json:"type"`
	Price         decimal.Decimal     `json:"price"`
	ExecutedSize  decimal.Decimal     `json:"executed_size"`
	DisplayedSize decimal.Decimal     `json:"displayed_size"`
	Side          Side                `json:"side"`
	Confidence    float64             `json:"confidence"`
}

// levelExecution records one execution for refill analysis
type levelExecution struct {
	timestamp time.Time
	size      decimal.Decimal
}

// hiddenState holds per-instrument book context and execution history
type hiddenState struct {
	book        *OrderBookSnapshot
	trades      *ring[Trade]
	avgSize     float64
	sizeSamples int
	byLevel     map[string][]levelExecution
}

// HiddenLiquidityScanner infers non-displayed liquidity from executions
// that exceed, improve on, or rapidly refill the visible book. Not
// goroutine-safe.
type HiddenLiquidityScanner struct {
	config  HiddenLiquidityConfig
	logger  *zap.SugaredLogger
	state   map[string]*hiddenState
	signals *keyedRings[HiddenLiquiditySignal]
}

// NewHiddenLiquidityScanner creates a new hidden liquidity scanner
func NewHiddenLiquidityScanner(config HiddenLiquidityConfig, logger *zap.SugaredLogger) *HiddenLiquidityScanner {
	return &HiddenLiquidityScanner{
		config:  config,
		logger:  logger,
		state:   make(map[string]*hiddenState),
		signals: newKeyedRings[HiddenLiquiditySignal](config.HistorySize),
	}
}

func (s *HiddenLiquidityScanner) stateFor(key string) *hiddenState {
	st, ok := s.state[key]
	if !ok {
		st = &hiddenState{
			trades:  newRing[Trade](s.config.HistorySize),
			byLevel: make(map[string][]levelExecution),
		}
		s.state[key] = st
	}
	return st
}

// UpdateBook refreshes the displayed-liquidity context used by all four
// detection methods
func (s *HiddenLiquidityScanner) UpdateBook(snap *OrderBookSnapshot) {
	if snap == nil {
		return
	}
	s.stateFor(snap.Key()).book = snap
}

// ProcessTrade checks an execution against the current book and returns
// the strongest signal it produces, or nil
func (s *HiddenLiquidityScanner) ProcessTrade(t *Trade) *HiddenLiquiditySignal {
	if t == nil {
		return nil
	}
	st := s.stateFor(t.Key())
	st.trades.Push(*t)

	// Rolling average size feeds the dark-pool signature check
	size := t.Volume.InexactFloat64()
	st.sizeSamples++
	st.avgSize += (size - st.avgSize) / float64(st.sizeSamples)

	s.recordLevelExecution(st, t)

	var best *HiddenLiquiditySignal
	for _, sig := range []*HiddenLiquiditySignal{
		s.checkExcessExecution(st, t),
		s.checkPriceImprovement(st, t),
		s.checkRapidRefill(st, t),
		s.checkSignature(st, t),
	} {
		if sig != nil && (best == nil || sig.Confidence > best.Confidence) {
			best = sig
		}
	}
	if best != nil {
		s.signals.get(t.Key()).Push(*best)
		s.logger.Debugw("hidden liquidity signal",
			"symbol", t.Symbol, "type", best.Type,
			"price", best.Price, "confidence", best.Confidence)
	}
	return best
}

// recordLevelExecution appends to the per-level history and prunes
// entries older than the refill window
func (s *HiddenLiquidityScanner) recordLevelExecution(st *hiddenState, t *Trade) {
	level := t.Price.String()
	execs := st.byLevel[level]
	cutoff := t.Timestamp.Add(-s.config.RefillWindow)
	kept := execs[:0]
	for _, e := range execs {
		if !e.timestamp.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	st.byLevel[level] = append(kept, levelExecution{timestamp: t.Timestamp, size: t.Volume})

	// Drop stale levels so the map stays bounded
	if len(st.byLevel) > s.config.HistorySize {
		for lvl, es := range st.byLevel {
			if len(es) == 0 || es[len(es)-1].timestamp.Before(cutoff) {
				delete(st.byLevel, lvl)
			}
		}
	}
}

// displayedAt returns the visible quantity at the trade price, falling
// back to the largest nearby level when the price sits between levels
func (s *HiddenLiquidityScanner) displayedAt(book *OrderBookSnapshot, price decimal.Decimal, side Side) decimal.Decimal {
	levels := book.Asks
	if side == SideBuy {
		levels = book.Bids
	}
	nearby := decimal.Zero
	tol := s.config.TickSize.Mul(decimal.NewFromInt(2))
	for _, lvl := range levels {
		if lvl.Price.Equal(price) {
			return lvl.Quantity
		}
		if lvl.Price.Sub(price).Abs().LessThanOrEqual(tol) && lvl.Quantity.GreaterThan(nearby) {
			nearby = lvl.Quantity
		}
	}
	return nearby
}

// checkExcessExecution fires when the executed size exceeds the displayed
// size at (or near) the price by the configured ratio
func (s *HiddenLiquidityScanner) checkExcessExecution(st *hiddenState, t *Trade) *HiddenLiquiditySignal {
	if st.book == nil {
		return nil
	}
	displayed := s.displayedAt(st.book, t.Price, t.Side)
	if displayed.IsZero() {
		return nil
	}
	ratio := t.Volume.Div(displayed).InexactFloat64()
	if ratio <= s.config.ExcessExecutionRatio {
		return nil
	}
	return &HiddenLiquiditySignal{
		Symbol:        t.Symbol,
		Exchange:      t.Exchange,
		Timestamp:     t.Timestamp,
		Type:          HiddenExcessExecution,
		Price:         t.Price,
		ExecutedSize:  t.Volume,
		DisplayedSize: displayed,
		Side:          t.Side,
		Confidence:    clamp(0.5+0.1*(ratio-s.config.ExcessExecutionRatio), 0, 0.95),
	}
}

// checkPriceImprovement fires when an execution beats the best visible
// price by the configured number of pips
func (s *HiddenLiquidityScanner) checkPriceImprovement(st *hiddenState, t *Trade) *HiddenLiquiditySignal {
	if st.book == nil {
		return nil
	}
	threshold := s.config.TickSize.Mul(decimal.NewFromFloat(s.config.ImprovementPips))

	var improvement decimal.Decimal
	if t.Side == SideBuy {
		// A buy filling below the best ask got improved
		ask := st.book.BestAsk()
		if ask == nil {
			return nil
		}
		improvement = ask.Price.Sub(t.Price)
	} else {
		bid := st.book.BestBid()
		if bid == nil {
			return nil
		}
		improvement = t.Price.Sub(bid.Price)
	}
	if improvement.LessThan(threshold) {
		return nil
	}
	pips := improvement.Div(s.config.TickSize).InexactFloat64()
	return &HiddenLiquiditySignal{
		Symbol:       t.Symbol,
		Exchange:     t.Exchange,
		Timestamp:    t.Timestamp,
		Type:         HiddenPriceImprovement,
		Price:        t.Price,
		ExecutedSize: t.Volume,
		Side:         t.Side,
		Confidence:   clamp(0.5+0.1*pips, 0, 0.9),
	}
}

// checkRapidRefill fires when the same level keeps absorbing executions
// inside the refill window with short gaps between fills
func (s *HiddenLiquidityScanner) checkRapidRefill(st *hiddenState, t *Trade) *HiddenLiquiditySignal {
	execs := st.byLevel[t.Price.String()]
	if len(execs) < s.config.RefillMinExecutions {
		return nil
	}
	shortGaps := 0
	total := decimal.Zero
	for i, e := range execs {
		total = total.Add(e.size)
		if i > 0 && e.timestamp.Sub(execs[i-1].timestamp) < s.config.RefillMaxGap {
			shortGaps++
		}
	}
	if shortGaps < s.config.RefillMinGaps {
		return nil
	}
	return &HiddenLiquiditySignal{
		Symbol:       t.Symbol,
		Exchange:     t.Exchange,
		Timestamp:    t.Timestamp,
		Type:         HiddenRapidRefill,
		Price:        t.Price,
		ExecutedSize: total,
		Side:         t.Side,
		Confidence:   clamp(0.5+0.1*float64(len(execs)-s.config.RefillMinExecutions), 0, 0.9),
	}
}

// checkSignature fires on prints matching the dark-pool profile: well
// above the rolling average size and either a round lot or a midpoint
// execution. The composite confidence must clear SignatureConfidence.
func (s *HiddenLiquidityScanner) checkSignature(st *hiddenState, t *Trade) *HiddenLiquiditySignal {
	if st.sizeSamples < 10 || st.avgSize == 0 {
		return nil
	}
	ratio := t.Volume.InexactFloat64() / st.avgSize
	if ratio < s.config.SignatureSizeRatio {
		return nil
	}

	roundLot := t.Volume.Mod(s.config.SignatureRoundLot).IsZero()
	midpoint := false
	if st.book != nil {
		if mid := st.book.MidPrice(); !mid.IsZero() {
			midpoint = t.Price.Sub(mid).Abs().LessThan(s.config.TickSize)
		}
	}
	if !roundLot && !midpoint {
		return nil
	}

	confidence := 0.5 + 0.1*clamp(ratio/s.config.SignatureSizeRatio-1, 0, 2)
	if roundLot {
		confidence += 0.1
	}
	if midpoint {
		confidence += 0.15
	}
	confidence = clamp(confidence, 0, 1)
	if confidence < s.config.SignatureConfidence {
		return nil
	}
	return &HiddenLiquiditySignal{
		Symbol:       t.Symbol,
		Exchange:     t.Exchange,
		Timestamp:    t.Timestamp,
		Type:         HiddenDarkPoolSignature,
		Price:        t.Price,
		ExecutedSize: t.Volume,
		Side:         t.Side,
		Confidence:   confidence,
	}
}

// RecentSignals returns up to limit of an instrument's most recent
// signals, newest first
func (s *HiddenLiquidityScanner) RecentSignals(exchange, symbol string, limit int) []HiddenLiquiditySignal {
	items := s.signals.get(instrumentKey(exchange, symbol)).Items()
	out := make([]HiddenLiquiditySignal, 0, limit)
	for i := len(items) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, items[i])
	}
	return out
}
