package orderflow

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =======================
// ICEBERG DETECTOR
// =======================

// IcebergPatternType classifies how an iceberg order is being worked
type IcebergPatternType string

const (
	IcebergClassic       IcebergPatternType = "classic"
	IcebergAdaptive      IcebergPatternType = "adaptive"
	IcebergInstitutional IcebergPatternType = "institutional"
)

// IcebergSignal reports a repeated-slice execution pattern at one price
// cluster, the footprint of a large order split into small visible slices
type IcebergSignal struct {
	Symbol                   string             `json:"symbol"`
	Exchange                 string             `json:"exchange"`
	Timestamp                time.Time          `json:"timestamp"`
	Price                    decimal.Decimal    `json:"price"`
	Side                     Side               `json:"side"`
	SliceCount               int                `json:"slice_count"`
	TotalVolume              decimal.Decimal    `json:"total_volume"`
	AvgSliceSize             decimal.Decimal    `json:"avg_slice_size"`
	PatternType              IcebergPatternType `json:"pattern_type"`
	Confidence               float64            `json:"confidence"`
	InstitutionalProbability float64            `json:"institutional_probability"`
}

// IcebergDetector clusters trades by price within a tick tolerance and
// looks for repeated same-side slices. Not goroutine-safe; callers
// serialize per key.
type IcebergDetector struct {
	config IcebergConfig
	logger *zap.SugaredLogger
	trades *keyedRings[Trade]
}

// NewIcebergDetector creates a new iceberg detector
func NewIcebergDetector(config IcebergConfig, logger *zap.SugaredLogger) *IcebergDetector {
	return &IcebergDetector{
		config: config,
		logger: logger,
		trades: newKeyedRings[Trade](config.HistorySize),
	}
}

// ProcessTrade appends a trade and re-evaluates the price cluster it
// belongs to. Returns a signal when the cluster qualifies as an iceberg,
// nil otherwise.
func (d *IcebergDetector) ProcessTrade(trade *Trade) *IcebergSignal {
	if trade == nil || trade.Volume.LessThanOrEqual(decimal.Zero) || trade.Price.IsZero() {
		return nil
	}
	hist := d.trades.get(trade.Key())
	hist.Push(*trade)

	cluster := d.clusterAt(hist, trade)
	if len(cluster) < d.config.MinSlices {
		return nil
	}
	return d.evaluateCluster(trade, cluster)
}

// clusterAt collects in-window trades within PriceClusterPips ticks of
// the reference trade's price, oldest first
func (d *IcebergDetector) clusterAt(hist *ring[Trade], ref *Trade) []Trade {
	tolerance := d.config.TickSize.Mul(decimal.NewFromInt(int64(d.config.PriceClusterPips)))
	cutoff := ref.Timestamp.Add(-d.config.Window)

	var cluster []Trade
	for i := 0; i < hist.Len(); i++ {
		t := hist.At(i)
		if t.Timestamp.Before(cutoff) {
			continue
		}
		if t.Price.Sub(ref.Price).Abs().LessThanOrEqual(tolerance) {
			cluster = append(cluster, t)
		}
	}
	return cluster
}

// evaluateCluster classifies a qualifying price cluster
func (d *IcebergDetector) evaluateCluster(ref *Trade, cluster []Trade) *IcebergSignal {
	sizes := make([]float64, len(cluster))
	gaps := make([]float64, 0, len(cluster)-1)
	total := decimal.Zero
	sameSide := 0
	var minPx, maxPx decimal.Decimal

	for i, t := range cluster {
		sizes[i] = t.Volume.InexactFloat64()
		total = total.Add(t.Volume)
		if t.Side == ref.Side {
			sameSide++
		}
		if i == 0 {
			minPx, maxPx = t.Price, t.Price
		} else {
			if t.Price.LessThan(minPx) {
				minPx = t.Price
			}
			if t.Price.GreaterThan(maxPx) {
				maxPx = t.Price
			}
			gaps = append(gaps, t.Timestamp.Sub(cluster[i-1].Timestamp).Seconds())
		}
	}

	sizeCV := coefficientOfVariation(sizes)
	gapCV := coefficientOfVariation(gaps)
	sideRatio := float64(sameSide) / float64(len(cluster))
	driftPips := 0.0
	if !d.config.TickSize.IsZero() {
		driftPips = maxPx.Sub(minPx).Div(d.config.TickSize).InexactFloat64()
	}

	patternType, ok := d.classifyPattern(ref, cluster, sizeCV, gapCV, sideRatio, driftPips)
	if !ok {
		return nil
	}

	avgSlice := total.Div(decimal.NewFromInt(int64(len(cluster))))
	signal := &IcebergSignal{
		Symbol:       ref.Symbol,
		Exchange:     ref.Exchange,
		Timestamp:    ref.Timestamp,
		Price:        ref.Price,
		Side:         ref.Side,
		SliceCount:   len(cluster),
		TotalVolume:  total,
		AvgSliceSize: avgSlice,
		PatternType:  patternType,
	}
	signal.Confidence = d.confidence(signal, sizeCV, gapCV, sideRatio, driftPips)
	signal.InstitutionalProbability = d.institutionalProbability(signal, driftPips)
	return signal
}

// classifyPattern applies the classic, adaptive and round-number rules in
// order of specificity
func (d *IcebergDetector) classifyPattern(ref *Trade, cluster []Trade, sizeCV, gapCV, sideRatio, driftPips float64) (IcebergPatternType, bool) {
	// Institutional round-number: price sits on a round tick with a tight
	// drift and enough slices
	if d.isRoundPrice(ref.Price) &&
		driftPips < d.config.RoundMaxDriftPips &&
		len(cluster) >= d.config.RoundMinSlices {
		return IcebergInstitutional, true
	}

	// Classic: uniform slice sizes, consistent side, tight price drift
	if sizeCV < d.config.ClassicSizeCV &&
		sideRatio > d.config.ClassicSideRatio &&
		driftPips < d.config.ClassicMaxDriftPips {
		return IcebergClassic, true
	}

	// Adaptive: regular cadence, very consistent side, slices above the
	// dynamic large-volume percentile
	if gapCV < d.config.AdaptiveGapCV &&
		sideRatio > d.config.AdaptiveSideRatio &&
		d.aboveLargePercentile(ref.Key(), cluster) {
		return IcebergAdaptive, true
	}

	return "", false
}

// isRoundPrice reports whether price lands on a 10-tick boundary
func (d *IcebergDetector) isRoundPrice(price decimal.Decimal) bool {
	if d.config.TickSize.IsZero() {
		return false
	}
	ticks := price.Div(d.config.TickSize)
	return ticks.Mod(decimal.NewFromInt(10)).IsZero()
}

// aboveLargePercentile checks whether the cluster's mean slice exceeds
// the configured percentile of all retained trade sizes for the key
func (d *IcebergDetector) aboveLargePercentile(key string, cluster []Trade) bool {
	all := d.trades.get(key).Items()
	if len(all) < 4 {
		return false
	}
	sizes := make([]float64, len(all))
	for i, t := range all {
		sizes[i] = t.Volume.InexactFloat64()
	}
	sort.Float64s(sizes)
	idx := int(float64(len(sizes)-1) * d.config.LargeVolumePercentile)
	threshold := sizes[idx]

	clusterSizes := make([]float64, len(cluster))
	for i, t := range cluster {
		clusterSizes[i] = t.Volume.InexactFloat64()
	}
	return mean(clusterSizes) >= threshold
}

// confidence is an additive point score from sub-conditions, capped at 1
func (d *IcebergDetector) confidence(sig *IcebergSignal, sizeCV, gapCV, sideRatio, driftPips float64) float64 {
	score := 0.3 // base: cluster met the slice minimum
	if sig.SliceCount >= d.config.MinSlices*2 {
		score += 0.15
	}
	if sizeCV < d.config.ClassicSizeCV {
		score += 0.2
	}
	if gapCV < d.config.AdaptiveGapCV {
		score += 0.1
	}
	if sideRatio > d.config.ClassicSideRatio {
		score += 0.15
	}
	if driftPips < d.config.ClassicMaxDriftPips {
		score += 0.1
	}
	return clamp(score, 0, 1)
}

// institutionalProbability is a separate additive score favoring round
// prices, many slices and tight drift
func (d *IcebergDetector) institutionalProbability(sig *IcebergSignal, driftPips float64) float64 {
	score := 0.0
	if sig.PatternType == IcebergInstitutional {
		score += 0.4
	}
	if d.isRoundPrice(sig.Price) {
		score += 0.2
	}
	if sig.SliceCount >= d.config.RoundMinSlices {
		score += 0.2
	}
	if driftPips < d.config.RoundMaxDriftPips {
		score += 0.2
	}
	return clamp(score, 0, 1)
}
