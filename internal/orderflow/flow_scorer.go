package orderflow

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fluxtrade/orderflow/pkg/metrics"
)

// =======================
// ORDER FLOW SCORER
// =======================

// SignalStrength maps the composite score onto a directional trading
// signal
type SignalStrength string

const (
	SignalStrongBuy  SignalStrength = "strong_buy"
	SignalBuy        SignalStrength = "buy"
	SignalNeutral    SignalStrength = "neutral"
	SignalSell       SignalStrength = "sell"
	SignalStrongSell SignalStrength = "strong_sell"
)

// OrderFlowScore is the signed composite of the directional indicators
type OrderFlowScore struct {
	Symbol          string         `json:"symbol"`
	Exchange        string         `json:"exchange"`
	Timestamp       time.Time      `json:"timestamp"`
	ImbalanceScore  float64        `json:"imbalance_score"`
	AbsorptionScore float64        `json:"absorption_score"`
	LiquidityScore  float64        `json:"liquidity_score"`
	DeltaScore      float64        `json:"delta_score"`
	DarkPoolScore   float64        `json:"darkpool_score"`
	CompositeScore  float64        `json:"composite_score"`
	Signal          SignalStrength `json:"signal"`
	Confidence      float64        `json:"confidence"`
	IndicatorCount  int            `json:"indicator_count"`
}

// TradingOpportunity is emitted when a confident non-neutral signal
// appears
type TradingOpportunity struct {
	ID          string          `json:"id"`
	Symbol      string          `json:"symbol"`
	Exchange    string          `json:"exchange"`
	Timestamp   time.Time       `json:"timestamp"`
	Direction   Side            `json:"direction"`
	Signal      SignalStrength  `json:"signal"`
	EntryPrice  decimal.Decimal `json:"entry_price"`
	StopLoss    decimal.Decimal `json:"stop_loss"`
	TargetPrice decimal.Decimal `json:"target_price"`
	RiskReward  float64         `json:"risk_reward"`
	Confidence  float64         `json:"confidence"`
}

// OrderFlowScorer aggregates the five directional indicators into a
// signed composite score and emits trading opportunities. It owns an
// independent detector set so its windows are decoupled from the
// microstructure scorer's. A single mutex serializes updates.
type OrderFlowScorer struct {
	config FlowScorerConfig
	logger *zap.SugaredLogger

	mu sync.Mutex

	imbalance  *ImbalanceDetector
	absorption *AbsorptionPatternDetector
	voids      *LiquidityVoidDetector
	delta      *CumulativeDeltaCalculator
	darkpool   *DarkPoolActivityScanner

	scores        *keyedRings[OrderFlowScore]
	opportunities *keyedRings[TradingOpportunity]
}

// NewOrderFlowScorer creates a scorer with default detector
// configurations
func NewOrderFlowScorer(config FlowScorerConfig, logger *zap.SugaredLogger) *OrderFlowScorer {
	return &OrderFlowScorer{
		config:        config,
		logger:        logger,
		imbalance:     NewImbalanceDetector(DefaultImbalanceConfig(), logger),
		absorption:    NewAbsorptionPatternDetector(DefaultAbsorptionConfig(), logger),
		voids:         NewLiquidityVoidDetector(DefaultLiquidityVoidConfig(), logger),
		delta:         NewCumulativeDeltaCalculator(DefaultDeltaConfig(), logger),
		darkpool:      NewDarkPoolActivityScanner(DefaultDarkPoolConfig(), logger),
		scores:        newKeyedRings[OrderFlowScore](config.OpportunityHistory),
		opportunities: newKeyedRings[TradingOpportunity](config.OpportunityHistory),
	}
}

// CalculateScore runs one scoring tick over the book and trade inputs.
// Any subset of indicators may be unavailable; the composite renormalizes
// over the weights of those present.
func (s *OrderFlowScorer) CalculateScore(ts time.Time, book *OrderBookSnapshot, trades []Trade) *OrderFlowScore {
	if book == nil || book.Symbol == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := book.Key()

	imbalanceSig := s.imbalance.Update(book)
	s.absorption.Update(book)
	profile := s.voids.Analyze(book)
	if mid := book.MidPrice(); !mid.IsZero() {
		s.darkpool.UpdateMarketPrice(book.Exchange, book.Symbol, mid)
	}
	for i := range trades {
		s.delta.ProcessTrade(&trades[i])
	}
	s.darkpool.ProcessTrades(trades)

	pattern := s.absorption.DetectPattern(book.Exchange, book.Symbol)
	divergence := s.delta.DetectDivergence(book.Exchange, book.Symbol)
	flow := s.darkpool.FlowSummary(book.Exchange, book.Symbol)

	score := &OrderFlowScore{
		Symbol:    book.Symbol,
		Exchange:  book.Exchange,
		Timestamp: ts,
	}

	type indicator struct {
		value     float64
		weight    float64
		available bool
	}
	indicators := []indicator{
		{s.imbalanceComponent(imbalanceSig), s.config.ImbalanceWeight, imbalanceSig != nil},
		{s.absorptionComponent(pattern), s.config.AbsorptionWeight, pattern != nil},
		{s.liquidityComponent(profile), s.config.LiquidityWeight, profile != nil},
		{s.deltaComponent(divergence, book.Exchange, book.Symbol), s.config.DeltaWeight, divergence != nil || !s.delta.CumulativeDelta(book.Exchange, book.Symbol).IsZero()},
		{s.darkPoolComponent(flow), s.config.DarkPoolWeight, flow != nil && flow.PrintCount > 0},
	}
	score.ImbalanceScore = indicators[0].value
	score.AbsorptionScore = indicators[1].value
	score.LiquidityScore = indicators[2].value
	score.DeltaScore = indicators[3].value
	score.DarkPoolScore = indicators[4].value

	var weighted, totalWeight float64
	var positives, negatives int
	for _, ind := range indicators {
		if !ind.available {
			continue
		}
		score.IndicatorCount++
		weighted += ind.value * ind.weight
		totalWeight += ind.weight
		if ind.value > 0 {
			positives++
		} else if ind.value < 0 {
			negatives++
		}
	}
	if totalWeight > 0 {
		score.CompositeScore = clamp(weighted/totalWeight, -100, 100)
	}
	score.Signal = classifySignal(score.CompositeScore)
	score.Confidence = s.agreementConfidence(positives, negatives, score.IndicatorCount)

	s.scores.get(key).Push(*score)

	if opp := s.maybeOpportunity(score, book); opp != nil {
		s.opportunities.get(key).Push(*opp)
		metrics.OpportunitiesEmitted.WithLabelValues(string(opp.Signal)).Inc()
		s.logger.Infow("trading opportunity",
			"symbol", book.Symbol, "direction", opp.Direction,
			"signal", opp.Signal, "confidence", opp.Confidence,
			"risk_reward", opp.RiskReward)
	}
	return score
}

// imbalanceComponent signs the imbalance confidence by its direction
func (s *OrderFlowScorer) imbalanceComponent(sig *ImbalanceSignal) float64 {
	if sig == nil {
		return 0
	}
	v := sig.Confidence * 100
	if sig.Direction == SideSell {
		v = -v
	}
	return v
}

// absorptionComponent treats accumulation and support as bullish,
// distribution and resistance as bearish
func (s *OrderFlowScorer) absorptionComponent(pattern *AbsorptionPattern) float64 {
	if pattern == nil {
		return 0
	}
	v := pattern.Confidence * 100
	switch pattern.PatternType {
	case AbsorptionAccumulation, AbsorptionSupport:
		return v
	case AbsorptionDistribution, AbsorptionResistance:
		return -v
	}
	return 0
}

// liquidityComponent signs depth imbalance: more bid depth than ask
// depth is bullish
func (s *OrderFlowScorer) liquidityComponent(profile *LiquidityProfile) float64 {
	if profile == nil {
		return 0
	}
	total := profile.BidDepth.Add(profile.AskDepth)
	if total.IsZero() {
		return 0
	}
	skew := profile.BidDepth.Sub(profile.AskDepth).Div(total).InexactFloat64()
	return clamp(skew*100, -100, 100)
}

// deltaComponent prefers a confirmed divergence; otherwise it falls back
// to the sign of the cumulative delta
func (s *OrderFlowScorer) deltaComponent(divergence *DeltaDivergence, exchange, symbol string) float64 {
	if divergence != nil {
		v := divergence.Confidence * 100
		if divergence.Type == DivergenceBearish {
			v = -v
		}
		return v
	}
	cum := s.delta.CumulativeDelta(exchange, symbol)
	switch {
	case cum.IsPositive():
		return 25
	case cum.IsNegative():
		return -25
	}
	return 0
}

// darkPoolComponent scales the net institutional bias by its average
// confidence
func (s *OrderFlowScorer) darkPoolComponent(flow *DarkPoolFlow) float64 {
	if flow == nil || flow.PrintCount == 0 {
		return 0
	}
	return clamp(flow.NetBias*100*flow.AvgConfidence, -100, 100)
}

// classifySignal maps the composite onto the five-step signal scale
func classifySignal(composite float64) SignalStrength {
	switch {
	case composite >= 50:
		return SignalStrongBuy
	case composite >= 20:
		return SignalBuy
	case composite >= -20:
		return SignalNeutral
	case composite >= -50:
		return SignalSell
	default:
		return SignalStrongSell
	}
}

// agreementConfidence rewards indicators agreeing on sign, boosted by
// how many indicators contributed
func (s *OrderFlowScorer) agreementConfidence(positives, negatives, available int) float64 {
	if available == 0 {
		return 0
	}
	agree := float64(max(positives, negatives)) / float64(available)
	boost := 0.5 + 0.1*float64(available)
	return clamp(agree*boost, 0, 1)
}

// maybeOpportunity builds a TradingOpportunity when confidence clears
// the minimum and the signal is directional
func (s *OrderFlowScorer) maybeOpportunity(score *OrderFlowScore, book *OrderBookSnapshot) *TradingOpportunity {
	if score.Confidence < s.config.MinConfidence || score.Signal == SignalNeutral {
		return nil
	}
	mid := book.MidPrice()
	if mid.IsZero() {
		return nil
	}

	direction := SideBuy
	if score.CompositeScore < 0 {
		direction = SideSell
	}

	entryOff := decimal.NewFromFloat(s.config.EntryOffsetPct)
	stopOff := decimal.NewFromFloat(s.config.StopOffsetPct)
	targetOff := decimal.NewFromFloat(s.config.TargetOffsetPct)
	one := decimal.NewFromInt(1)

	var entry, stop, target decimal.Decimal
	if direction == SideBuy {
		entry = mid.Mul(one.Sub(entryOff))
		stop = mid.Mul(one.Sub(stopOff))
		target = mid.Mul(one.Add(targetOff))
	} else {
		entry = mid.Mul(one.Add(entryOff))
		stop = mid.Mul(one.Add(stopOff))
		target = mid.Mul(one.Sub(targetOff))
	}

	risk := entry.Sub(stop).Abs()
	reward := target.Sub(entry).Abs()
	rr := 0.0
	if !risk.IsZero() {
		rr = reward.Div(risk).InexactFloat64()
	}

	return &TradingOpportunity{
		ID:          uuid.New().String(),
		Symbol:      score.Symbol,
		Exchange:    score.Exchange,
		Timestamp:   score.Timestamp,
		Direction:   direction,
		Signal:      score.Signal,
		EntryPrice:  entry,
		StopLoss:    stop,
		TargetPrice: target,
		RiskReward:  rr,
		Confidence:  score.Confidence,
	}
}

// LatestScore returns the most recent flow score for an instrument
func (s *OrderFlowScorer) LatestScore(exchange, symbol string) (OrderFlowScore, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scores.get(instrumentKey(exchange, symbol)).Last()
}

// GetRecentOpportunities returns up to limit opportunities for an
// instrument, newest first
func (s *OrderFlowScorer) GetRecentOpportunities(exchange, symbol string, limit int) []TradingOpportunity {
	s.mu.Lock()
	defer s.mu.Unlock()
	hist := s.opportunities.get(instrumentKey(exchange, symbol))
	out := make([]TradingOpportunity, 0, limit)
	for i := hist.Len() - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, hist.At(i))
	}
	return out
}
