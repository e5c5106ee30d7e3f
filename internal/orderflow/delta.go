package orderflow

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =======================
// CUMULATIVE DELTA
// =======================

// DivergenceType labels a price / cumulative-delta divergence
type DivergenceType string

const (
	DivergenceBullish DivergenceType = "bullish"
	DivergenceBearish DivergenceType = "bearish"
)

// DeltaBar aggregates buy/sell volume over one bar interval. Cumulative
// delta persists across bars.
type DeltaBar struct {
	Symbol          string          `json:"symbol"`
	Exchange        string          `json:"exchange"`
	Start           time.Time       `json:"start"`
	End             time.Time       `json:"end"`
	OpenPrice       decimal.Decimal `json:"open_price"`
	ClosePrice      decimal.Decimal `json:"close_price"`
	BuyVolume       decimal.Decimal `json:"buy_volume"`
	SellVolume      decimal.Decimal `json:"sell_volume"`
	Delta           decimal.Decimal `json:"delta"`
	CumulativeDelta decimal.Decimal `json:"cumulative_delta"`
	TradeCount      int             `json:"trade_count"`
}

// DeltaDivergence is emitted when price trend and cumulative delta trend
// disagree beyond the configured threshold
type DeltaDivergence struct {
	Symbol        string          `json:"symbol"`
	Exchange      string          `json:"exchange"`
	Timestamp     time.Time       `json:"timestamp"`
	Type          DivergenceType  `json:"type"`
	PriceSlope    float64         `json:"price_slope"`
	DeltaSlope    float64         `json:"delta_slope"`
	SlopeDiff     float64         `json:"slope_diff"`
	LookbackBars  int             `json:"lookback_bars"`
	CurrentDelta  decimal.Decimal `json:"current_delta"`
	Confidence    float64         `json:"confidence"`
}

// deltaState is the in-progress bar plus the running cumulative total
type deltaState struct {
	open      bool
	barStart  time.Time
	openPx    decimal.Decimal
	closePx   decimal.Decimal
	buyVol    decimal.Decimal
	sellVol   decimal.Decimal
	trades    int
	barVolume decimal.Decimal
	cumDelta  decimal.Decimal
}

// CumulativeDeltaCalculator builds time or volume bars of signed volume
// and detects divergence between the price trend and the cumulative delta
// trend. Not goroutine-safe; callers serialize per key.
type CumulativeDeltaCalculator struct {
	config DeltaConfig
	logger *zap.SugaredLogger
	state  map[string]*deltaState
	bars   *keyedRings[DeltaBar]
}

// NewCumulativeDeltaCalculator creates a new cumulative delta calculator
func NewCumulativeDeltaCalculator(config DeltaConfig, logger *zap.SugaredLogger) *CumulativeDeltaCalculator {
	return &CumulativeDeltaCalculator{
		config: config,
		logger: logger,
		state:  make(map[string]*deltaState),
		bars:   newKeyedRings[DeltaBar](config.HistorySize),
	}
}

// ProcessTrade accumulates one trade into the current bar and returns the
// completed bar when the trade rolls the bar over, nil otherwise.
// Zero-volume trades are ignored.
func (c *CumulativeDeltaCalculator) ProcessTrade(trade *Trade) *DeltaBar {
	if trade == nil || trade.Volume.LessThanOrEqual(decimal.Zero) || trade.Price.IsZero() {
		return nil
	}
	key := trade.Key()
	st, ok := c.state[key]
	if !ok {
		st = &deltaState{}
		c.state[key] = st
	}

	var completed *DeltaBar
	if st.open && c.barFull(st, trade) {
		completed = c.closeBar(key, st, trade)
	}
	if !st.open {
		st.open = true
		st.barStart = trade.Timestamp
		st.openPx = trade.Price
		st.buyVol, st.sellVol = decimal.Zero, decimal.Zero
		st.barVolume = decimal.Zero
		st.trades = 0
	}

	buy, sell := classifyTradeVolume(trade)
	st.buyVol = st.buyVol.Add(buy)
	st.sellVol = st.sellVol.Add(sell)
	st.barVolume = st.barVolume.Add(trade.Volume)
	st.closePx = trade.Price
	st.trades++

	return completed
}

// barFull reports whether the incoming trade should roll the current bar
func (c *CumulativeDeltaCalculator) barFull(st *deltaState, trade *Trade) bool {
	if c.config.BarMode == DeltaBarVolume {
		return st.barVolume.GreaterThanOrEqual(c.config.BarVolume)
	}
	return trade.Timestamp.Sub(st.barStart) >= c.config.BarInterval
}

// closeBar finalizes the in-progress bar, pushes it to history and resets
func (c *CumulativeDeltaCalculator) closeBar(key string, st *deltaState, trade *Trade) *DeltaBar {
	delta := st.buyVol.Sub(st.sellVol)
	st.cumDelta = st.cumDelta.Add(delta)

	bar := DeltaBar{
		Symbol:          trade.Symbol,
		Exchange:        trade.Exchange,
		Start:           st.barStart,
		End:             trade.Timestamp,
		OpenPrice:       st.openPx,
		ClosePrice:      st.closePx,
		BuyVolume:       st.buyVol,
		SellVolume:      st.sellVol,
		Delta:           delta,
		CumulativeDelta: st.cumDelta,
		TradeCount:      st.trades,
	}
	c.bars.get(key).Push(bar)
	st.open = false
	return &bar
}

// classifyTradeVolume splits a trade's volume into buy and sell
// components. Direction heuristics in priority order: explicit side,
// aggressor flag, else neutral 50/50. A sideless aggressive trade is
// attributed entirely to the buy side: feeds that flag aggression
// without a side report taker activity, and the taker convention here
// is buy-initiated. Feeds where that does not hold should set Side.
func classifyTradeVolume(trade *Trade) (buy, sell decimal.Decimal) {
	switch trade.Side {
	case SideBuy:
		return trade.Volume, decimal.Zero
	case SideSell:
		return decimal.Zero, trade.Volume
	}
	if trade.Aggressive {
		return trade.Volume, decimal.Zero
	}
	half := trade.Volume.Div(decimal.NewFromInt(2))
	return half, half
}

// CumulativeDelta returns the running delta including the open bar
func (c *CumulativeDeltaCalculator) CumulativeDelta(exchange, symbol string) decimal.Decimal {
	st, ok := c.state[instrumentKey(exchange, symbol)]
	if !ok {
		return decimal.Zero
	}
	running := st.cumDelta
	if st.open {
		running = running.Add(st.buyVol.Sub(st.sellVol))
	}
	return running
}

// DetectDivergence compares least-squares slopes of bar close price and
// cumulative delta over the lookback window. Returns nil with fewer than
// LookbackBars completed bars.
func (c *CumulativeDeltaCalculator) DetectDivergence(exchange, symbol string) *DeltaDivergence {
	bars := c.bars.get(instrumentKey(exchange, symbol)).Items()
	if len(bars) < c.config.LookbackBars {
		return nil
	}
	window := bars[len(bars)-c.config.LookbackBars:]

	prices := make([]float64, len(window))
	deltas := make([]float64, len(window))
	for i, b := range window {
		prices[i] = b.ClosePrice.InexactFloat64()
		deltas[i] = b.CumulativeDelta.InexactFloat64()
	}

	priceSlope := normalizedSlope(prices)
	deltaSlope := normalizedSlope(deltas)
	diff := math.Abs(priceSlope - deltaSlope)

	if diff < c.config.DivergenceThreshold {
		return nil
	}

	var divType DivergenceType
	switch {
	case priceSlope < 0 && deltaSlope > 0:
		divType = DivergenceBullish
	case priceSlope > 0 && deltaSlope < 0:
		divType = DivergenceBearish
	default:
		return nil // slopes differ in magnitude but agree in sign
	}

	last := window[len(window)-1]
	return &DeltaDivergence{
		Symbol:       symbol,
		Exchange:     exchange,
		Timestamp:    last.End,
		Type:         divType,
		PriceSlope:   priceSlope,
		DeltaSlope:   deltaSlope,
		SlopeDiff:    diff,
		LookbackBars: c.config.LookbackBars,
		CurrentDelta: last.CumulativeDelta,
		Confidence:   clamp(diff/(2*c.config.DivergenceThreshold), 0, 1),
	}
}

// normalizedSlope returns the regression slope scaled by the mean
// magnitude of the series, so price and delta slopes are comparable
func normalizedSlope(xs []float64) float64 {
	slope := regressionSlope(xs)
	scale := 0.0
	for _, x := range xs {
		scale += math.Abs(x)
	}
	scale /= float64(len(xs))
	if scale == 0 {
		return 0
	}
	return slope / scale * float64(len(xs))
}

// RecentBars returns up to limit most recent completed bars
func (c *CumulativeDeltaCalculator) RecentBars(exchange, symbol string, limit int) []DeltaBar {
	items := c.bars.get(instrumentKey(exchange, symbol)).Items()
	if limit > 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}
	return items
}
