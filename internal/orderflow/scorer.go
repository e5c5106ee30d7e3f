package orderflow

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fluxtrade/orderflow/pkg/metrics"
)

// =======================
// MICROSTRUCTURE SCORER
// =======================

// MarketQuality is the categorical grade derived from the overall score
type MarketQuality string

const (
	QualityExcellent MarketQuality = "excellent"
	QualityGood      MarketQuality = "good"
	QualityFair      MarketQuality = "fair"
	QualityPoor      MarketQuality = "poor"
)

// MicrostructureScore is the composite output of one scoring tick
type MicrostructureScore struct {
	Symbol                string        `json:"symbol"`
	Exchange              string        `json:"exchange"`
	Timestamp             time.Time     `json:"timestamp"`
	LiquidityScore        float64       `json:"liquidity_score"`
	StabilityScore        float64       `json:"stability_score"`
	FairnessScore         float64       `json:"fairness_score"`
	EfficiencyScore       float64       `json:"efficiency_score"`
	OverallScore          float64       `json:"overall_score"`
	ManipulationRisk      float64       `json:"manipulation_risk"`
	InstitutionalPresence float64       `json:"institutional_presence"`
	MarketQuality         MarketQuality `json:"market_quality"`
	Insights              []string      `json:"insights"`
}

// AlertType distinguishes the condition that raised an alert
type AlertType string

const (
	AlertManipulationRisk AlertType = "manipulation_risk"
	AlertPoorQuality      AlertType = "poor_quality"
	AlertInstitutional    AlertType = "institutional_activity"
)

// Alert is one entry in the bounded alert queue
type Alert struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Symbol       string    `json:"symbol"`
	Exchange     string    `json:"exchange"`
	Type         AlertType `json:"type"`
	Severity     string    `json:"severity"`
	Message      string    `json:"message"`
	Value        float64   `json:"value"`
	Acknowledged bool      `json:"acknowledged"`
}

// TradingRecommendations summarizes whether and how to trade given the
// latest score
type TradingRecommendations struct {
	Symbol               string   `json:"symbol"`
	Exchange             string   `json:"exchange"`
	CanTrade             bool     `json:"can_trade"`
	PreferredStyle       string   `json:"preferred_style"`
	SizeRecommendation   string   `json:"size_recommendation"`
	TimingRecommendation string   `json:"timing_recommendation"`
	Warnings             []string `json:"warnings"`
}

// MicrostructureScorer fans market data out to the full detector set and
// aggregates their outputs into a weighted market quality score with
// manipulation risk and institutional presence estimates. A single mutex
// serializes updates so concurrent feeders are safe; detector state for
// different instruments is fully independent.
type MicrostructureScorer struct {
	config ScorerConfig
	logger *zap.SugaredLogger

	mu sync.Mutex

	imbalance  *ImbalanceDetector
	voids      *LiquidityVoidDetector
	absorption *AbsorptionPatternDetector
	delta      *CumulativeDeltaCalculator
	darkpool   *DarkPoolActivityScanner
	iceberg    *IcebergDetector
	spoofing   *SpoofingDetector
	hft        *HFTActivityDetector
	stuffing   *QuoteStuffingIdentifier
	hidden     *HiddenLiquidityScanner
	makers     *MarketMakerAnalyzer

	icebergs  *keyedRings[IcebergSignal]
	hiddenSig *keyedRings[HiddenLiquiditySignal]
	hftSigs   *keyedRings[HFTSignature]
	scores    *keyedRings[MicrostructureScore]

	alerts     []Alert
	lastScores map[string]MicrostructureScore
}

// ScorerOption overrides one detector configuration
type ScorerOption func(*scorerConfigs)

type scorerConfigs struct {
	imbalance  ImbalanceConfig
	voids      LiquidityVoidConfig
	absorption AbsorptionConfig
	delta      DeltaConfig
	darkpool   DarkPoolConfig
	iceberg    IcebergConfig
	spoofing   SpoofingConfig
	hft        HFTConfig
	stuffing   StuffingConfig
	hidden     HiddenLiquidityConfig
	makers     MarketMakerConfig
}

func defaultScorerConfigs() scorerConfigs {
	return scorerConfigs{
		imbalance:  DefaultImbalanceConfig(),
		voids:      DefaultLiquidityVoidConfig(),
		absorption: DefaultAbsorptionConfig(),
		delta:      DefaultDeltaConfig(),
		darkpool:   DefaultDarkPoolConfig(),
		iceberg:    DefaultIcebergConfig(),
		spoofing:   DefaultSpoofingConfig(),
		hft:        DefaultHFTConfig(),
		stuffing:   DefaultStuffingConfig(),
		hidden:     DefaultHiddenLiquidityConfig(),
		makers:     DefaultMarketMakerConfig(),
	}
}

// WithImbalanceConfig overrides the imbalance detector configuration
func WithImbalanceConfig(c ImbalanceConfig) ScorerOption {
	return func(sc *scorerConfigs) { sc.imbalance = c }
}

// WithAbsorptionConfig overrides the absorption detector configuration
func WithAbsorptionConfig(c AbsorptionConfig) ScorerOption {
	return func(sc *scorerConfigs) { sc.absorption = c }
}

// WithDeltaConfig overrides the delta calculator configuration
func WithDeltaConfig(c DeltaConfig) ScorerOption {
	return func(sc *scorerConfigs) { sc.delta = c }
}

// WithIcebergConfig overrides the iceberg detector configuration
func WithIcebergConfig(c IcebergConfig) ScorerOption {
	return func(sc *scorerConfigs) { sc.iceberg = c }
}

// WithSpoofingConfig overrides the spoofing detector configuration
func WithSpoofingConfig(c SpoofingConfig) ScorerOption {
	return func(sc *scorerConfigs) { sc.spoofing = c }
}

// WithHFTConfig overrides the HFT detector configuration
func WithHFTConfig(c HFTConfig) ScorerOption {
	return func(sc *scorerConfigs) { sc.hft = c }
}

// WithStuffingConfig overrides the quote stuffing configuration
func WithStuffingConfig(c StuffingConfig) ScorerOption {
	return func(sc *scorerConfigs) { sc.stuffing = c }
}

// WithHiddenLiquidityConfig overrides the hidden liquidity configuration
func WithHiddenLiquidityConfig(c HiddenLiquidityConfig) ScorerOption {
	return func(sc *scorerConfigs) { sc.hidden = c }
}

// NewMicrostructureScorer creates a scorer owning a full detector set
func NewMicrostructureScorer(config ScorerConfig, logger *zap.SugaredLogger, opts ...ScorerOption) *MicrostructureScorer {
	dc := defaultScorerConfigs()
	for _, opt := range opts {
		opt(&dc)
	}
	return &MicrostructureScorer{
		config:     config,
		logger:     logger,
		imbalance:  NewImbalanceDetector(dc.imbalance, logger),
		voids:      NewLiquidityVoidDetector(dc.voids, logger),
		absorption: NewAbsorptionPatternDetector(dc.absorption, logger),
		delta:      NewCumulativeDeltaCalculator(dc.delta, logger),
		darkpool:   NewDarkPoolActivityScanner(dc.darkpool, logger),
		iceberg:    NewIcebergDetector(dc.iceberg, logger),
		spoofing:   NewSpoofingDetector(dc.spoofing, logger),
		hft:        NewHFTActivityDetector(dc.hft, logger),
		stuffing:   NewQuoteStuffingIdentifier(dc.stuffing, logger),
		hidden:     NewHiddenLiquidityScanner(dc.hidden, logger),
		makers:     NewMarketMakerAnalyzer(dc.makers, logger),
		icebergs:   newKeyedRings[IcebergSignal](config.ScoreHistory),
		hiddenSig:  newKeyedRings[HiddenLiquiditySignal](config.ScoreHistory),
		hftSigs:    newKeyedRings[HFTSignature](config.ScoreHistory),
		scores:     newKeyedRings[MicrostructureScore](config.ScoreHistory),
		lastScores: make(map[string]MicrostructureScore),
	}
}

// UpdateMarketData runs one scoring tick: it feeds the book, trades and
// quotes to every detector and aggregates the results. Any subset of
// detectors may return nothing; the composite is still produced.
func (s *MicrostructureScorer) UpdateMarketData(ts time.Time, book *OrderBookSnapshot, trades []Trade, quotes []QuoteMessage) *MicrostructureScore {
	if book == nil || book.Symbol == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := book.Key()

	// Book-driven detectors
	imbalanceSig := s.imbalance.Update(book)
	profile := s.voids.Analyze(book)
	s.absorption.Update(book)
	spoofEvents := s.spoofing.Update(book)
	for range spoofEvents {
		metrics.DetectorSignals.WithLabelValues("spoofing", book.Symbol).Inc()
	}
	s.hidden.UpdateBook(book)
	s.makers.UpdateBook(book)
	if mid := book.MidPrice(); !mid.IsZero() {
		s.darkpool.UpdateMarketPrice(book.Exchange, book.Symbol, mid)
	}

	// Trade-driven detectors
	for i := range trades {
		t := &trades[i]
		s.delta.ProcessTrade(t)
		if sig := s.iceberg.ProcessTrade(t); sig != nil {
			s.icebergs.get(key).Push(*sig)
			metrics.DetectorSignals.WithLabelValues("iceberg", book.Symbol).Inc()
		}
		if sig := s.hidden.ProcessTrade(t); sig != nil {
			s.hiddenSig.get(key).Push(*sig)
			metrics.DetectorSignals.WithLabelValues("hidden_liquidity", book.Symbol).Inc()
		}
		s.hft.ProcessTrade(t)
	}
	s.darkpool.ProcessTrades(trades)

	// Quote-driven detectors
	for i := range quotes {
		q := &quotes[i]
		s.hft.ProcessQuote(q)
		s.stuffing.ProcessQuote(q)
		s.makers.ProcessQuote(q)
	}
	if sig := s.hft.Analyze(book.Exchange, book.Symbol); sig != nil {
		s.hftSigs.get(key).Push(*sig)
		metrics.DetectorSignals.WithLabelValues("hft", book.Symbol).Inc()
	}

	score := s.aggregate(ts, book, imbalanceSig, profile, spoofEvents)
	s.scores.get(key).Push(*score)
	s.lastScores[key] = *score
	s.raiseAlerts(score)

	s.logger.Debugw("microstructure score",
		"symbol", book.Symbol, "exchange", book.Exchange,
		"overall", score.OverallScore, "quality", score.MarketQuality,
		"manipulation_risk", score.ManipulationRisk)
	return score
}

// aggregate computes the four component scores, the risk estimates and
// the weighted overall score
func (s *MicrostructureScorer) aggregate(ts time.Time, book *OrderBookSnapshot, imbalanceSig *ImbalanceSignal, profile *LiquidityProfile, spoofEvents []SpoofingEvent) *MicrostructureScore {
	key := book.Key()
	windowCutoff := ts.Add(-5 * time.Minute)

	spoofCount := s.spoofing.EventsSince(book.Exchange, book.Symbol, windowCutoff)
	stuffingActive := s.stuffing.Active(book.Exchange, book.Symbol, ts)
	twoSided := s.makers.TwoSidedMakers(book.Exchange, book.Symbol, ts)
	divergence := s.delta.DetectDivergence(book.Exchange, book.Symbol)
	absorptionPattern := s.absorption.DetectPattern(book.Exchange, book.Symbol)
	flow := s.darkpool.FlowSummary(book.Exchange, book.Symbol)

	predatory := false
	if hist := s.hftSigs.get(key); hist.Len() > 0 {
		if sig, ok := hist.Last(); ok && sig.Archetype == HFTPredatory && ts.Sub(sig.Timestamp) < time.Minute {
			predatory = true
		}
	}

	score := &MicrostructureScore{
		Symbol:    book.Symbol,
		Exchange:  book.Exchange,
		Timestamp: ts,
	}

	score.LiquidityScore = s.liquidityScore(profile)
	score.StabilityScore = s.stabilityScore(imbalanceSig, divergence, absorptionPattern)
	score.FairnessScore = s.fairnessScore(spoofCount, stuffingActive, twoSided, predatory)
	score.EfficiencyScore = s.efficiencyScore(profile, divergence, key, ts)

	score.ManipulationRisk = s.manipulationRisk(spoofCount, stuffingActive, predatory)
	score.InstitutionalPresence = s.institutionalPresence(key, flow, ts)

	weighted := s.config.LiquidityWeight*score.LiquidityScore +
		s.config.StabilityWeight*score.StabilityScore +
		s.config.FairnessWeight*score.FairnessScore +
		s.config.EfficiencyWeight*score.EfficiencyScore
	score.OverallScore = clamp(weighted*(1-score.ManipulationRisk/200), 0, 100)

	switch {
	case score.OverallScore >= 80:
		score.MarketQuality = QualityExcellent
	case score.OverallScore >= 60:
		score.MarketQuality = QualityGood
	case score.OverallScore >= 40:
		score.MarketQuality = QualityFair
	default:
		score.MarketQuality = QualityPoor
	}

	score.Insights = s.buildInsights(score, imbalanceSig, divergence, absorptionPattern, flow, spoofCount, stuffingActive)
	return score
}

// liquidityScore passes through the void detector's 0-100 profile score,
// falling back to a neutral 50 when no profile is available
func (s *MicrostructureScorer) liquidityScore(profile *LiquidityProfile) float64 {
	if profile == nil {
		return 50
	}
	return clamp(profile.LiquidityScore, 0, 100)
}

// stabilityScore starts at 70 and adjusts for imbalance pressure, delta
// divergence and confirmed absorption
func (s *MicrostructureScorer) stabilityScore(imbalanceSig *ImbalanceSignal, divergence *DeltaDivergence, pattern *AbsorptionPattern) float64 {
	score := 70.0
	if imbalanceSig != nil {
		switch imbalanceSig.Strength {
		case ImbalanceExtreme:
			score -= 25
		case ImbalanceStrong:
			score -= 15
		case ImbalanceModerate:
			score -= 5
		}
	} else {
		score += 15
	}
	if divergence != nil {
		score -= 15 * divergence.Confidence
	}
	if pattern != nil {
		// Absorbed volume at stable prices means standing liquidity
		score += 10 * pattern.Confidence
	}
	return clamp(score, 0, 100)
}

// fairnessScore starts at 80; spoofing above ten events this window is
// -30, active quote stuffing -20, healthy two-sided quoting +10
func (s *MicrostructureScorer) fairnessScore(spoofCount int, stuffingActive bool, twoSided int, predatory bool) float64 {
	score := 80.0
	if spoofCount > 10 {
		score -= 30
	} else if spoofCount > 0 {
		score -= 3 * float64(spoofCount)
	}
	if stuffingActive {
		score -= 20
	}
	if twoSided >= 1 {
		score += 10
	}
	if predatory {
		score -= 15
	}
	return clamp(score, 0, 100)
}

// efficiencyScore reflects how cheaply the instrument trades: spread
// cost, price-flow alignment and recent price improvement
func (s *MicrostructureScorer) efficiencyScore(profile *LiquidityProfile, divergence *DeltaDivergence, key string, ts time.Time) float64 {
	score := 60.0
	if profile != nil {
		switch {
		case profile.SpreadPercent <= 0.0005:
			score += 20
		case profile.SpreadPercent <= 0.001:
			score += 10
		case profile.SpreadPercent >= 0.005:
			score -= 20
		}
	}
	if divergence != nil {
		score -= 10 * divergence.Confidence
	}
	hist := s.hiddenSig.get(key)
	for i := hist.Len() - 1; i >= 0; i-- {
		sig := hist.At(i)
		if ts.Sub(sig.Timestamp) > 5*time.Minute {
			break
		}
		if sig.Type == HiddenPriceImprovement {
			score += 10
			break
		}
	}
	return clamp(score, 0, 100)
}

// manipulationRisk scores 0-100 from adversarial signals only
func (s *MicrostructureScorer) manipulationRisk(spoofCount int, stuffingActive bool, predatory bool) float64 {
	risk := 15.0 * float64(spoofCount)
	if risk > 60 {
		risk = 60
	}
	if stuffingActive {
		risk += 25
	}
	if predatory {
		risk += 20
	}
	return clamp(risk, 0, 100)
}

// institutionalPresence scores 0-100 from iceberg, dark-pool and hidden
// liquidity evidence in the recent window
func (s *MicrostructureScorer) institutionalPresence(key string, flow *DarkPoolFlow, ts time.Time) float64 {
	presence := 0.0
	cutoff := ts.Add(-5 * time.Minute)

	icebergs := s.icebergs.get(key)
	for i := icebergs.Len() - 1; i >= 0; i-- {
		sig := icebergs.At(i)
		if sig.Timestamp.Before(cutoff) {
			break
		}
		presence += 25 * sig.InstitutionalProbability
	}
	if flow != nil && flow.PrintCount > 0 {
		presence += clamp(10*float64(flow.PrintCount), 0, 30) * flow.AvgConfidence
	}
	hiddens := s.hiddenSig.get(key)
	for i := hiddens.Len() - 1; i >= 0; i-- {
		sig := hiddens.At(i)
		if sig.Timestamp.Before(cutoff) {
			break
		}
		presence += 10 * sig.Confidence
	}
	return clamp(presence, 0, 100)
}

// buildInsights ranks human-readable observations, most significant
// first
func (s *MicrostructureScorer) buildInsights(score *MicrostructureScore, imbalanceSig *ImbalanceSignal, divergence *DeltaDivergence, pattern *AbsorptionPattern, flow *DarkPoolFlow, spoofCount int, stuffingActive bool) []string {
	type rankedInsight struct {
		rank int
		text string
	}
	var ranked []rankedInsight

	if score.ManipulationRisk > 60 {
		ranked = append(ranked, rankedInsight{100, fmt.Sprintf("elevated manipulation risk (%.0f/100)", score.ManipulationRisk)})
	}
	if spoofCount > 0 {
		ranked = append(ranked, rankedInsight{90, fmt.Sprintf("%d spoofing events in the last 5 minutes", spoofCount)})
	}
	if stuffingActive {
		ranked = append(ranked, rankedInsight{85, "quote stuffing currently active"})
	}
	if score.InstitutionalPresence > 50 {
		ranked = append(ranked, rankedInsight{80, fmt.Sprintf("institutional activity detected (%.0f/100)", score.InstitutionalPresence)})
	}
	if divergence != nil {
		ranked = append(ranked, rankedInsight{70, fmt.Sprintf("%s delta divergence (confidence %.2f)", divergence.Type, divergence.Confidence)})
	}
	if imbalanceSig != nil && (imbalanceSig.Strength == ImbalanceStrong || imbalanceSig.Strength == ImbalanceExtreme) {
		ranked = append(ranked, rankedInsight{60, fmt.Sprintf("%s book imbalance toward %s (ratio %.1f)", imbalanceSig.Strength, imbalanceSig.Direction, imbalanceSig.Ratio)})
	}
	if pattern != nil {
		ranked = append(ranked, rankedInsight{50, fmt.Sprintf("%s absorption pattern over %d events", pattern.PatternType, pattern.EventCount)})
	}
	if flow != nil && flow.PrintCount > 0 {
		ranked = append(ranked, rankedInsight{40, fmt.Sprintf("%d dark pool prints, net bias %.2f", flow.PrintCount, flow.NetBias)})
	}
	if score.LiquidityScore < 40 {
		ranked = append(ranked, rankedInsight{30, fmt.Sprintf("thin liquidity (score %.0f/100)", score.LiquidityScore)})
	}

	sort.Slice(ranked, func(i, j int) bool { return ranked[i].rank > ranked[j].rank })
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.text
	}
	return out
}

// raiseAlerts appends to the bounded alert queue on threshold breaches
func (s *MicrostructureScorer) raiseAlerts(score *MicrostructureScore) {
	push := func(t AlertType, severity, msg string, value float64) {
		metrics.AlertsRaised.WithLabelValues(string(t)).Inc()
		s.alerts = append(s.alerts, Alert{
			ID:        uuid.New().String(),
			Timestamp: score.Timestamp,
			Symbol:    score.Symbol,
			Exchange:  score.Exchange,
			Type:      t,
			Severity:  severity,
			Message:   msg,
			Value:     value,
		})
		if len(s.alerts) > s.config.AlertQueueSize {
			s.alerts = s.alerts[len(s.alerts)-s.config.AlertQueueSize:]
		}
	}

	if score.ManipulationRisk > s.config.ManipulationAlertThreshold {
		push(AlertManipulationRisk, "high",
			fmt.Sprintf("manipulation risk %.0f exceeds threshold", score.ManipulationRisk),
			score.ManipulationRisk)
	}
	if score.OverallScore < s.config.QualityAlertThreshold {
		push(AlertPoorQuality, "medium",
			fmt.Sprintf("market quality degraded to %.0f", score.OverallScore),
			score.OverallScore)
	}
	if score.InstitutionalPresence > s.config.InstitutionalAlertThreshold {
		push(AlertInstitutional, "info",
			fmt.Sprintf("institutional presence %.0f exceeds threshold", score.InstitutionalPresence),
			score.InstitutionalPresence)
	}
}

// Alerts returns up to limit queued alerts, newest first
func (s *MicrostructureScorer) Alerts(limit int) []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.alerts) {
		limit = len(s.alerts)
	}
	out := make([]Alert, 0, limit)
	for i := len(s.alerts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.alerts[i])
	}
	return out
}

// AcknowledgeAlert marks one queued alert as acknowledged
func (s *MicrostructureScorer) AcknowledgeAlert(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		if s.alerts[i].ID == id {
			s.alerts[i].Acknowledged = true
			return true
		}
	}
	return false
}

// LatestScore returns the most recent score for an instrument
func (s *MicrostructureScorer) LatestScore(exchange, symbol string) (MicrostructureScore, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	score, ok := s.lastScores[instrumentKey(exchange, symbol)]
	return score, ok
}

// ScoreHistory returns up to limit recent scores, newest first
func (s *MicrostructureScorer) ScoreHistory(exchange, symbol string, limit int) []MicrostructureScore {
	s.mu.Lock()
	defer s.mu.Unlock()
	hist := s.scores.get(instrumentKey(exchange, symbol))
	out := make([]MicrostructureScore, 0, limit)
	for i := hist.Len() - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, hist.At(i))
	}
	return out
}

// GetTradingRecommendations translates the latest score into actionable
// guidance for the caller's execution layer
func (s *MicrostructureScorer) GetTradingRecommendations(exchange, symbol string) *TradingRecommendations {
	s.mu.Lock()
	defer s.mu.Unlock()

	score, ok := s.lastScores[instrumentKey(exchange, symbol)]
	if !ok {
		return &TradingRecommendations{
			Symbol:   symbol,
			Exchange: exchange,
			CanTrade: false,
			Warnings: []string{"no market data scored yet"},
		}
	}

	rec := &TradingRecommendations{
		Symbol:   symbol,
		Exchange: exchange,
		CanTrade: score.OverallScore >= 40 && score.ManipulationRisk <= 60,
	}

	switch {
	case score.MarketQuality == QualityExcellent:
		rec.PreferredStyle = "passive"
		rec.SizeRecommendation = "full"
		rec.TimingRecommendation = "immediate"
	case score.MarketQuality == QualityGood:
		rec.PreferredStyle = "passive"
		rec.SizeRecommendation = "normal"
		rec.TimingRecommendation = "immediate"
	case score.MarketQuality == QualityFair:
		rec.PreferredStyle = "aggressive"
		rec.SizeRecommendation = "reduced"
		rec.TimingRecommendation = "patient"
	default:
		rec.PreferredStyle = "aggressive"
		rec.SizeRecommendation = "minimal"
		rec.TimingRecommendation = "wait for improvement"
	}

	if score.ManipulationRisk > 40 {
		rec.Warnings = append(rec.Warnings, fmt.Sprintf("manipulation risk %.0f/100", score.ManipulationRisk))
	}
	if score.InstitutionalPresence > 60 {
		rec.Warnings = append(rec.Warnings, "large institutional flow present, expect hidden size")
	}
	if score.LiquidityScore < 40 {
		rec.Warnings = append(rec.Warnings, "thin book, split large orders")
		rec.SizeRecommendation = "reduced"
	}
	if !rec.CanTrade {
		rec.Warnings = append(rec.Warnings, "conditions unsuitable for trading")
	}
	return rec
}
