package orderflow

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =======================
// DARK POOL SCANNER
// =======================

// DarkPoolHeuristic names the rule that flagged a print
type DarkPoolHeuristic string

const (
	DarkPoolVolumeSpike    DarkPoolHeuristic = "volume_spike"
	DarkPoolPriceDeviation DarkPoolHeuristic = "price_deviation"
	DarkPoolTimePattern    DarkPoolHeuristic = "time_pattern"
	DarkPoolSizeAnomaly    DarkPoolHeuristic = "size_anomaly"
)

// PrintDirection is the inferred direction of a flagged print. Size-only
// evidence cannot infer direction and yields DirectionUnknown with a
// decayed confidence rather than a randomized guess.
type PrintDirection string

const (
	DirectionBuy     PrintDirection = "buy"
	DirectionSell    PrintDirection = "sell"
	DirectionUnknown PrintDirection = "unknown"
)

// DarkPoolPrint is one trade (or one-minute notional bucket) flagged as
// likely off-exchange or institutionally sourced
type DarkPoolPrint struct {
	Symbol     string            `json:"symbol"`
	Exchange   string            `json:"exchange"`
	Timestamp  time.Time         `json:"timestamp"`
	Price      decimal.Decimal   `json:"price"`
	Volume     decimal.Decimal   `json:"volume"`
	Notional   decimal.Decimal   `json:"notional"`
	Heuristic  DarkPoolHeuristic `json:"heuristic"`
	Direction  PrintDirection    `json:"direction"`
	Confidence float64           `json:"confidence"`
}

// DarkPoolFlow summarizes recent flagged prints for one instrument
type DarkPoolFlow struct {
	Symbol        string          `json:"symbol"`
	Exchange      string          `json:"exchange"`
	PrintCount    int             `json:"print_count"`
	BuyNotional   decimal.Decimal `json:"buy_notional"`
	SellNotional  decimal.Decimal `json:"sell_notional"`
	UnknownCount  int             `json:"unknown_count"`
	NetBias       float64         `json:"net_bias"` // [-1,1], buy minus sell share
	AvgConfidence float64         `json:"avg_confidence"`
}

// darkPoolState tracks per-instrument reference values
type darkPoolState struct {
	marketPrice   decimal.Decimal
	avgPrintSize  decimal.Decimal
	printSamples  int64
	bucketStart   time.Time
	bucketNotional decimal.Decimal
	bucketVolume  decimal.Decimal
	bucketTrades  int
}

// DarkPoolActivityScanner applies four independent heuristics to trade
// batches: one-minute notional spikes, price deviation from the tracked
// market price, prints inside the close window, and size anomalies
// against the rolling average print size. All classification is
// deterministic. Not goroutine-safe; callers serialize per key.
type DarkPoolActivityScanner struct {
	config DarkPoolConfig
	logger *zap.SugaredLogger
	state  map[string]*darkPoolState
	prints *keyedRings[DarkPoolPrint]
}

// NewDarkPoolActivityScanner creates a new dark pool activity scanner
func NewDarkPoolActivityScanner(config DarkPoolConfig, logger *zap.SugaredLogger) *DarkPoolActivityScanner {
	return &DarkPoolActivityScanner{
		config: config,
		logger: logger,
		state:  make(map[string]*darkPoolState),
		prints: newKeyedRings[DarkPoolPrint](config.HistorySize),
	}
}

// UpdateMarketPrice refreshes the reference price used by the
// price-deviation heuristic, normally the book mid
func (s *DarkPoolActivityScanner) UpdateMarketPrice(exchange, symbol string, price decimal.Decimal) {
	if price.IsZero() {
		return
	}
	s.stateFor(instrumentKey(exchange, symbol)).marketPrice = price
}

func (s *DarkPoolActivityScanner) stateFor(key string) *darkPoolState {
	st, ok := s.state[key]
	if !ok {
		st = &darkPoolState{}
		s.state[key] = st
	}
	return st
}

// ProcessTrades runs all four heuristics over a trade batch and returns
// the flagged prints, oldest first. Zero-volume trades are skipped.
func (s *DarkPoolActivityScanner) ProcessTrades(trades []Trade) []DarkPoolPrint {
	var flagged []DarkPoolPrint
	for i := range trades {
		t := &trades[i]
		if t.Volume.LessThanOrEqual(decimal.Zero) || t.Price.IsZero() {
			continue
		}
		key := t.Key()
		st := s.stateFor(key)

		if p := s.checkVolumeSpike(st, t); p != nil {
			flagged = append(flagged, *p)
		}
		if p := s.checkPriceDeviation(st, t); p != nil {
			flagged = append(flagged, *p)
		}
		if p := s.checkTimePattern(st, t); p != nil {
			flagged = append(flagged, *p)
		}
		if p := s.checkSizeAnomaly(st, t); p != nil {
			flagged = append(flagged, *p)
		}

		s.updateRollingAverage(st, t)
	}
	for i := range flagged {
		s.prints.get(instrumentKey(flagged[i].Exchange, flagged[i].Symbol)).Push(flagged[i])
	}
	return flagged
}

// checkVolumeSpike accumulates one-minute notional buckets; when a bucket
// exceeds MinPrintSize it is flagged once on rollover
func (s *DarkPoolActivityScanner) checkVolumeSpike(st *darkPoolState, t *Trade) *DarkPoolPrint {
	if st.bucketStart.IsZero() || t.Timestamp.Sub(st.bucketStart) >= s.config.BucketInterval {
		var flagged *DarkPoolPrint
		if st.bucketTrades > 0 && st.bucketNotional.GreaterThanOrEqual(s.config.MinPrintSize) {
			flagged = &DarkPoolPrint{
				Symbol:     t.Symbol,
				Exchange:   t.Exchange,
				Timestamp:  st.bucketStart,
				Price:      t.Price,
				Volume:     st.bucketVolume,
				Notional:   st.bucketNotional,
				Heuristic:  DarkPoolVolumeSpike,
				Direction:  s.inferDirection(st, t),
				Confidence: s.notionalConfidence(st.bucketNotional),
			}
		}
		st.bucketStart = t.Timestamp
		st.bucketNotional = decimal.Zero
		st.bucketVolume = decimal.Zero
		st.bucketTrades = 0
		if flagged != nil {
			st.bucketNotional = t.Notional()
			st.bucketVolume = t.Volume
			st.bucketTrades = 1
			return flagged
		}
	}
	st.bucketNotional = st.bucketNotional.Add(t.Notional())
	st.bucketVolume = st.bucketVolume.Add(t.Volume)
	st.bucketTrades++
	return nil
}

// checkPriceDeviation flags single trades printing away from the tracked
// market price
func (s *DarkPoolActivityScanner) checkPriceDeviation(st *darkPoolState, t *Trade) *DarkPoolPrint {
	if st.marketPrice.IsZero() {
		return nil
	}
	dev := t.Price.Sub(st.marketPrice).Div(st.marketPrice).InexactFloat64()
	if math.Abs(dev) < s.config.PriceDeviationPct {
		return nil
	}
	direction := DirectionSell
	if dev > 0 {
		direction = DirectionBuy
	}
	return &DarkPoolPrint{
		Symbol:     t.Symbol,
		Exchange:   t.Exchange,
		Timestamp:  t.Timestamp,
		Price:      t.Price,
		Volume:     t.Volume,
		Notional:   t.Notional(),
		Heuristic:  DarkPoolPriceDeviation,
		Direction:  direction,
		Confidence: clamp(math.Abs(dev)/(2*s.config.PriceDeviationPct), 0, 1),
	}
}

// checkTimePattern flags prints landing inside the configured close window
func (s *DarkPoolActivityScanner) checkTimePattern(st *darkPoolState, t *Trade) *DarkPoolPrint {
	if !inClockWindow(t.Timestamp, s.config.CloseWindowStart, s.config.CloseWindowEnd) {
		return nil
	}
	// Close-window prints only matter at institutional size
	if t.Notional().LessThan(s.config.MinPrintSize.Div(decimal.NewFromInt(10))) {
		return nil
	}
	return &DarkPoolPrint{
		Symbol:     t.Symbol,
		Exchange:   t.Exchange,
		Timestamp:  t.Timestamp,
		Price:      t.Price,
		Volume:     t.Volume,
		Notional:   t.Notional(),
		Heuristic:  DarkPoolTimePattern,
		Direction:  s.inferDirection(st, t),
		Confidence: 0.5,
	}
}

// checkSizeAnomaly flags prints far above the rolling average print size
func (s *DarkPoolActivityScanner) checkSizeAnomaly(st *darkPoolState, t *Trade) *DarkPoolPrint {
	if st.printSamples < 10 || st.avgPrintSize.IsZero() {
		return nil // not enough baseline
	}
	mult := t.Notional().Div(st.avgPrintSize).InexactFloat64()
	if mult < s.config.SizeAnomalyMultiplier {
		return nil
	}
	direction := s.inferDirection(st, t)
	confidence := clamp(mult/(2*s.config.SizeAnomalyMultiplier), 0, 1)
	if direction == DirectionUnknown {
		confidence *= s.config.SizeOnlyConfidenceDecay
	}
	return &DarkPoolPrint{
		Symbol:     t.Symbol,
		Exchange:   t.Exchange,
		Timestamp:  t.Timestamp,
		Price:      t.Price,
		Volume:     t.Volume,
		Notional:   t.Notional(),
		Heuristic:  DarkPoolSizeAnomaly,
		Direction:  direction,
		Confidence: confidence,
	}
}

// inferDirection derives direction from the explicit trade side when
// present, else from the price-vs-market sign. With no usable evidence
// the direction is unknown rather than randomized.
func (s *DarkPoolActivityScanner) inferDirection(st *darkPoolState, t *Trade) PrintDirection {
	switch t.Side {
	case SideBuy:
		return DirectionBuy
	case SideSell:
		return DirectionSell
	}
	if !st.marketPrice.IsZero() {
		cmp := t.Price.Cmp(st.marketPrice)
		if cmp > 0 {
			return DirectionBuy
		}
		if cmp < 0 {
			return DirectionSell
		}
	}
	return DirectionUnknown
}

// updateRollingAverage feeds the size-anomaly baseline
func (s *DarkPoolActivityScanner) updateRollingAverage(st *darkPoolState, t *Trade) {
	st.printSamples++
	n := decimal.NewFromInt(st.printSamples)
	// incremental mean: avg += (x - avg) / n
	st.avgPrintSize = st.avgPrintSize.Add(t.Notional().Sub(st.avgPrintSize).Div(n))
}

// notionalConfidence scales bucket notional onto [0.5, 1]
func (s *DarkPoolActivityScanner) notionalConfidence(notional decimal.Decimal) float64 {
	if s.config.MinPrintSize.IsZero() {
		return 0.5
	}
	ratio := notional.Div(s.config.MinPrintSize).InexactFloat64()
	return clamp(0.5+(ratio-1)*0.25, 0.5, 1)
}

// FlowSummary aggregates the retained prints for one instrument.
// Returns nil when nothing has been flagged.
func (s *DarkPoolActivityScanner) FlowSummary(exchange, symbol string) *DarkPoolFlow {
	prints := s.prints.get(instrumentKey(exchange, symbol)).Items()
	if len(prints) == 0 {
		return nil
	}

	flow := &DarkPoolFlow{
		Symbol:       symbol,
		Exchange:     exchange,
		PrintCount:   len(prints),
		BuyNotional:  decimal.Zero,
		SellNotional: decimal.Zero,
	}
	confSum := 0.0
	for _, p := range prints {
		confSum += p.Confidence
		switch p.Direction {
		case DirectionBuy:
			flow.BuyNotional = flow.BuyNotional.Add(p.Notional)
		case DirectionSell:
			flow.SellNotional = flow.SellNotional.Add(p.Notional)
		default:
			flow.UnknownCount++
		}
	}
	flow.AvgConfidence = confSum / float64(len(prints))

	total := flow.BuyNotional.Add(flow.SellNotional)
	if !total.IsZero() {
		flow.NetBias = flow.BuyNotional.Sub(flow.SellNotional).Div(total).InexactFloat64()
	}
	return flow
}

// inClockWindow reports whether ts falls inside the [start, end] wall
// clock window, both "HH:MM" in UTC. Malformed bounds disable the window.
func inClockWindow(ts time.Time, start, end string) bool {
	st, err1 := time.Parse("15:04", start)
	en, err2 := time.Parse("15:04", end)
	if err1 != nil || err2 != nil {
		return false
	}
	minutes := ts.UTC().Hour()*60 + ts.UTC().Minute()
	startMin := st.Hour()*60 + st.Minute()
	endMin := en.Hour()*60 + en.Minute()
	if startMin <= endMin {
		return minutes >= startMin && minutes <= endMin
	}
	return minutes >= startMin || minutes <= endMin
}
