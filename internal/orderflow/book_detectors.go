package orderflow

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =======================
// IMBALANCE DETECTOR
// =======================

// ImbalanceStrength buckets the magnitude of a bid/ask volume imbalance
type ImbalanceStrength string

const (
	ImbalanceWeak     ImbalanceStrength = "weak"
	ImbalanceModerate ImbalanceStrength = "moderate"
	ImbalanceStrong   ImbalanceStrength = "strong"
	ImbalanceExtreme  ImbalanceStrength = "extreme"
)

// ImbalanceSignal reports a bid/ask volume imbalance over the top book levels
type ImbalanceSignal struct {
	Symbol        string            `json:"symbol"`
	Exchange      string            `json:"exchange"`
	Timestamp     time.Time         `json:"timestamp"`
	BidVolume     decimal.Decimal   `json:"bid_volume"`
	AskVolume     decimal.Decimal   `json:"ask_volume"`
	Ratio         float64           `json:"ratio"`
	WeightedRatio float64           `json:"weighted_ratio"`
	Direction     Side              `json:"direction"`
	Strength      ImbalanceStrength `json:"strength"`
	Confidence    float64           `json:"confidence"`
}

// ImbalanceDetector analyzes bid/ask volume ratios over the top N book
// levels. An imbalance is flagged when the ratio exceeds the weak
// threshold on either side. Not goroutine-safe; callers serialize per key.
type ImbalanceDetector struct {
	config  ImbalanceConfig
	logger  *zap.SugaredLogger
	history *keyedRings[ImbalanceSignal]
}

// NewImbalanceDetector creates a new imbalance detector
func NewImbalanceDetector(config ImbalanceConfig, logger *zap.SugaredLogger) *ImbalanceDetector {
	return &ImbalanceDetector{
		config:  config,
		logger:  logger,
		history: newKeyedRings[ImbalanceSignal](config.HistorySize),
	}
}

// Update analyzes a snapshot and returns a signal when the top-of-book
// volume ratio is imbalanced. An empty or one-sided book returns nil.
func (d *ImbalanceDetector) Update(snap *OrderBookSnapshot) *ImbalanceSignal {
	if snap == nil || len(snap.Bids) == 0 || len(snap.Asks) == 0 {
		return nil
	}

	bidVolume := snap.Depth(SideBuy, d.config.TopLevels)
	askVolume := snap.Depth(SideSell, d.config.TopLevels)
	if bidVolume.IsZero() && askVolume.IsZero() {
		return nil
	}

	ratio := volumeRatio(bidVolume, askVolume)
	weighted := d.weightedRatio(snap)

	// Flagged when the book leans harder than the weak threshold either way
	dominant := math.Max(ratio, safeInverse(ratio))
	if dominant < d.config.WeakThreshold {
		return nil
	}

	direction := SideBuy
	if ratio < 1 {
		direction = SideSell
	}

	signal := &ImbalanceSignal{
		Symbol:        snap.Symbol,
		Exchange:      snap.Exchange,
		Timestamp:     snap.Timestamp,
		BidVolume:     bidVolume,
		AskVolume:     askVolume,
		Ratio:         ratio,
		WeightedRatio: weighted,
		Direction:     direction,
		Strength:      d.classifyStrength(dominant),
		Confidence:    d.confidence(dominant),
	}

	d.history.get(snap.Key()).Push(*signal)
	return signal
}

// classifyStrength buckets the dominant ratio into strength labels
func (d *ImbalanceDetector) classifyStrength(dominant float64) ImbalanceStrength {
	switch {
	case dominant >= d.config.ExtremeThreshold:
		return ImbalanceExtreme
	case dominant >= d.config.StrongThreshold:
		return ImbalanceStrong
	case dominant >= d.config.ModerateThreshold:
		return ImbalanceModerate
	default:
		return ImbalanceWeak
	}
}

// confidence maps the dominant ratio onto [0,1], saturating at the
// extreme threshold
func (d *ImbalanceDetector) confidence(dominant float64) float64 {
	span := d.config.ExtremeThreshold - d.config.WeakThreshold
	if span <= 0 {
		return 1
	}
	return clamp((dominant-d.config.WeakThreshold)/span*0.5+0.5, 0, 1)
}

// weightedRatio recomputes the bid/ask ratio with each level's volume
// decayed by its distance from mid: weight = 1/(1+|price-mid|/mid)
func (d *ImbalanceDetector) weightedRatio(snap *OrderBookSnapshot) float64 {
	mid := snap.MidPrice()
	if mid.IsZero() {
		return 1
	}
	midF := mid.InexactFloat64()

	weigh := func(levels []BookLevel) float64 {
		total := 0.0
		n := d.config.TopLevels
		if n <= 0 || n > len(levels) {
			n = len(levels)
		}
		for i := 0; i < n; i++ {
			dist := math.Abs(levels[i].Price.InexactFloat64()-midF) / midF
			total += levels[i].Quantity.InexactFloat64() / (1 + dist)
		}
		return total
	}

	bid := weigh(snap.Bids)
	ask := weigh(snap.Asks)
	if ask == 0 {
		if bid == 0 {
			return 1
		}
		return math.Inf(1)
	}
	return bid / ask
}

// RecentSignals returns up to limit most recent signals for an instrument
func (d *ImbalanceDetector) RecentSignals(exchange, symbol string, limit int) []ImbalanceSignal {
	items := d.history.get(instrumentKey(exchange, symbol)).Items()
	if limit > 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}
	return items
}

// volumeRatio returns bid/ask with division-by-zero mapped to +Inf when
// only bids rest, and 0 when only asks rest
func volumeRatio(bidVolume, askVolume decimal.Decimal) float64 {
	if askVolume.IsZero() {
		if bidVolume.IsZero() {
			return 1
		}
		return math.Inf(1)
	}
	return bidVolume.Div(askVolume).InexactFloat64()
}

// safeInverse returns 1/x, tolerating zero and +Inf
func safeInverse(x float64) float64 {
	if x == 0 {
		return math.Inf(1)
	}
	if math.IsInf(x, 1) {
		return 0
	}
	return 1 / x
}

// =======================
// LIQUIDITY VOID DETECTOR
// =======================

// VoidSeverity grades a liquidity void by the width of the price gap
type VoidSeverity string

const (
	VoidMinor    VoidSeverity = "minor"
	VoidModerate VoidSeverity = "moderate"
	VoidSevere   VoidSeverity = "severe"
	VoidCritical VoidSeverity = "critical"
)

// LiquidityVoid is a price gap between adjacent book levels with enough
// resting volume on the nearer level to make the gap meaningful
type LiquidityVoid struct {
	Side       Side            `json:"side"`
	StartPrice decimal.Decimal `json:"start_price"`
	EndPrice   decimal.Decimal `json:"end_price"`
	GapPercent float64         `json:"gap_percent"`
	NearVolume decimal.Decimal `json:"near_volume"`
	Severity   VoidSeverity    `json:"severity"`
}

// LiquidityProfile summarizes the void structure and overall liquidity
// health of one snapshot
type LiquidityProfile struct {
	Symbol         string          `json:"symbol"`
	Exchange       string          `json:"exchange"`
	Timestamp      time.Time       `json:"timestamp"`
	Voids          []LiquidityVoid `json:"voids"`
	BidDepth       decimal.Decimal `json:"bid_depth"`
	AskDepth       decimal.Decimal `json:"ask_depth"`
	SpreadPercent  float64         `json:"spread_percent"`
	LiquidityScore float64         `json:"liquidity_score"`
	Confidence     float64         `json:"confidence"`
}

// LiquidityVoidDetector walks consecutive book levels looking for price
// gaps that would cause slippage if crossed. Not goroutine-safe.
type LiquidityVoidDetector struct {
	config  LiquidityVoidConfig
	logger  *zap.SugaredLogger
	history *keyedRings[LiquidityProfile]
}

// NewLiquidityVoidDetector creates a new liquidity void detector
func NewLiquidityVoidDetector(config LiquidityVoidConfig, logger *zap.SugaredLogger) *LiquidityVoidDetector {
	return &LiquidityVoidDetector{
		config:  config,
		logger:  logger,
		history: newKeyedRings[LiquidityProfile](config.HistorySize),
	}
}

// Analyze inspects one snapshot and returns its liquidity profile.
// A book with fewer than two levels on both sides returns nil.
func (d *LiquidityVoidDetector) Analyze(snap *OrderBookSnapshot) *LiquidityProfile {
	if snap == nil || (len(snap.Bids) < 2 && len(snap.Asks) < 2) {
		return nil
	}
	mid := snap.MidPrice()
	if mid.IsZero() {
		return nil
	}

	var voids []LiquidityVoid
	voids = append(voids, d.scanSide(snap.Bids, SideBuy, mid)...)
	voids = append(voids, d.scanSide(snap.Asks, SideSell, mid)...)

	bidDepth := snap.Depth(SideBuy, d.config.MaxLevels)
	askDepth := snap.Depth(SideSell, d.config.MaxLevels)

	spreadPct := 0.0
	if !mid.IsZero() {
		spreadPct = snap.Spread().Div(mid).InexactFloat64()
	}

	profile := &LiquidityProfile{
		Symbol:        snap.Symbol,
		Exchange:      snap.Exchange,
		Timestamp:     snap.Timestamp,
		Voids:         voids,
		BidDepth:      bidDepth,
		AskDepth:      askDepth,
		SpreadPercent: spreadPct,
	}
	profile.LiquidityScore = d.scoreLiquidity(profile)
	profile.Confidence = clamp(float64(len(snap.Bids)+len(snap.Asks))/20.0, 0.3, 1)

	d.history.get(snap.Key()).Push(*profile)
	return profile
}

// scanSide walks adjacent levels on one side collecting qualifying gaps
func (d *LiquidityVoidDetector) scanSide(levels []BookLevel, side Side, mid decimal.Decimal) []LiquidityVoid {
	var voids []LiquidityVoid
	midF := mid.InexactFloat64()
	if midF == 0 {
		return nil
	}

	n := len(levels)
	if d.config.MaxLevels > 0 && n > d.config.MaxLevels {
		n = d.config.MaxLevels
	}
	for i := 1; i < n; i++ {
		near, far := levels[i-1], levels[i]
		gap := far.Price.Sub(near.Price).Abs().InexactFloat64()
		gapPct := gap / midF

		if gapPct < d.config.MinGapPercentage {
			continue
		}
		// A gap behind thin resting volume is noise, not a void
		if near.Quantity.LessThanOrEqual(d.config.MinVolumeThreshold) {
			continue
		}

		voids = append(voids, LiquidityVoid{
			Side:       side,
			StartPrice: near.Price,
			EndPrice:   far.Price,
			GapPercent: gapPct,
			NearVolume: near.Quantity,
			Severity:   classifyVoidSeverity(gapPct),
		})
	}
	return voids
}

// classifyVoidSeverity buckets the gap percentage into severity tiers
func classifyVoidSeverity(gapPct float64) VoidSeverity {
	switch {
	case gapPct >= 0.02:
		return VoidCritical
	case gapPct >= 0.01:
		return VoidSevere
	case gapPct >= 0.005:
		return VoidModerate
	default:
		return VoidMinor
	}
}

// scoreLiquidity starts at 100 and penalizes void count, severe/critical
// voids, bid/ask depth imbalance and spread width, with a depth bonus.
// Result is clamped to [0, 100].
func (d *LiquidityVoidDetector) scoreLiquidity(p *LiquidityProfile) float64 {
	score := 100.0

	score -= 2 * float64(len(p.Voids))
	for _, v := range p.Voids {
		if v.Severity == VoidSevere || v.Severity == VoidCritical {
			score -= 8
		}
	}

	// Depth imbalance penalty, up to 15 points
	total := p.BidDepth.Add(p.AskDepth)
	if !total.IsZero() {
		imbalance := p.BidDepth.Sub(p.AskDepth).Abs().Div(total).InexactFloat64()
		score -= imbalance * 15
	}

	// Spread penalty, up to 15 points at a 1% spread
	score -= clamp(p.SpreadPercent/0.01, 0, 1) * 15

	// Depth bonus, up to 10 points
	depthF := total.InexactFloat64()
	score += clamp(depthF/10000.0, 0, 1) * 10

	return clamp(score, 0, 100)
}

// RecentProfiles returns up to limit most recent profiles for an instrument
func (d *LiquidityVoidDetector) RecentProfiles(exchange, symbol string, limit int) []LiquidityProfile {
	items := d.history.get(instrumentKey(exchange, symbol)).Items()
	if limit > 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}
	return items
}
