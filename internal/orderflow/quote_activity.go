package orderflow

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =======================
// HFT ACTIVITY DETECTOR
// =======================

// HFTArchetype classifies the dominant strategy behind detected
// high-frequency activity
type HFTArchetype string

const (
	HFTMarketMaking HFTArchetype = "market_making"
	HFTArbitrage    HFTArchetype = "arbitrage"
	HFTMomentum     HFTArchetype = "momentum"
	HFTPredatory    HFTArchetype = "predatory"
)

// HFTSignature summarizes one analysis window's message-level behavior
type HFTSignature struct {
	Symbol            string        `json:"symbol"`
	Exchange          string        `json:"exchange"`
	Timestamp         time.Time     `json:"timestamp"`
	MessageRate       float64       `json:"message_rate"`
	CancelRatio       float64       `json:"cancel_ratio"`
	AvgQuoteLifetime  time.Duration `json:"avg_quote_lifetime"`
	ParticipationRate float64       `json:"participation_rate"`
	AggressionScore   float64       `json:"aggression_score"`
	MicroVolatility   float64       `json:"micro_volatility"`
	Archetype         HFTArchetype  `json:"archetype"`
	Confidence        float64       `json:"confidence"`
}

// quoteLifecycle tracks one order from add to cancel/modify
type quoteLifecycle struct {
	added    time.Time
	price    decimal.Decimal
	side     Side
	resolved bool
	lifetime time.Duration
}

// hftState is per-instrument rolling quote/trade context
type hftState struct {
	quotes     *ring[QuoteMessage]
	lifecycles map[string]*quoteLifecycle
	lifetimes  *ring[time.Duration]
	trades     *ring[Trade]
}

// HFTActivityDetector classifies high-frequency activity from message
// rate, cancel ratio, quote lifetime, participation and aggression over a
// one-second analysis window. Not goroutine-safe.
type HFTActivityDetector struct {
	config HFTConfig
	logger *zap.SugaredLogger
	state  map[string]*hftState
}

// NewHFTActivityDetector creates a new HFT activity detector
func NewHFTActivityDetector(config HFTConfig, logger *zap.SugaredLogger) *HFTActivityDetector {
	return &HFTActivityDetector{
		config: config,
		logger: logger,
		state:  make(map[string]*hftState),
	}
}

func (d *HFTActivityDetector) stateFor(key string) *hftState {
	st, ok := d.state[key]
	if !ok {
		st = &hftState{
			quotes:     newRing[QuoteMessage](d.config.HistorySize),
			lifecycles: make(map[string]*quoteLifecycle),
			lifetimes:  newRing[time.Duration](d.config.HistorySize / 4),
			trades:     newRing[Trade](d.config.HistorySize / 4),
		}
		d.state[key] = st
	}
	return st
}

// ProcessQuote ingests one quote message, updating lifecycle tracking
func (d *HFTActivityDetector) ProcessQuote(q *QuoteMessage) {
	if q == nil {
		return
	}
	st := d.stateFor(q.Key())
	st.quotes.Push(*q)

	switch q.Action {
	case QuoteActionAdd:
		st.lifecycles[q.MessageID] = &quoteLifecycle{added: q.Timestamp, price: q.Price, side: q.Side}
	case QuoteActionCancel, QuoteActionModify:
		if lc, ok := st.lifecycles[q.MessageID]; ok && !lc.resolved {
			lc.resolved = true
			lc.lifetime = q.Timestamp.Sub(lc.added)
			st.lifetimes.Push(lc.lifetime)
			delete(st.lifecycles, q.MessageID)
		}
	}

	// Lifecycle map stays bounded even when adds never resolve
	if len(st.lifecycles) > d.config.HistorySize {
		cutoff := q.Timestamp.Add(-10 * d.config.AnalysisWindow)
		for id, lc := range st.lifecycles {
			if lc.added.Before(cutoff) {
				delete(st.lifecycles, id)
			}
		}
	}
}

// ProcessTrade feeds the participation and aggression metrics
func (d *HFTActivityDetector) ProcessTrade(t *Trade) {
	if t == nil {
		return
	}
	d.stateFor(t.Key()).trades.Push(*t)
}

// Analyze evaluates the trailing analysis window and returns a signature
// when HFT activity is present: rate >= MinMessageRate AND (cancel ratio
// >= threshold OR quote life <= MaxQuoteLifetime) AND participation >=
// MinParticipation. Returns nil otherwise.
func (d *HFTActivityDetector) Analyze(exchange, symbol string) *HFTSignature {
	st, ok := d.state[instrumentKey(exchange, symbol)]
	if !ok || st.quotes.Len() < 2 {
		return nil
	}

	last, _ := st.quotes.Last()
	cutoff := last.Timestamp.Add(-d.config.AnalysisWindow)

	var msgs, cancels, modifies, adds int
	var bidQuotes, askQuotes int
	prices := make([]float64, 0, 64)
	for i := 0; i < st.quotes.Len(); i++ {
		q := st.quotes.At(i)
		if q.Timestamp.Before(cutoff) {
			continue
		}
		msgs++
		switch q.Action {
		case QuoteActionCancel:
			cancels++
		case QuoteActionModify:
			modifies++
		case QuoteActionAdd:
			adds++
		}
		if q.Side == SideBuy {
			bidQuotes++
		} else {
			askQuotes++
		}
		if !q.Price.IsZero() {
			prices = append(prices, q.Price.InexactFloat64())
		}
	}
	if msgs < 2 {
		return nil
	}

	rate := float64(msgs) / d.config.AnalysisWindow.Seconds()
	cancelRatio := float64(cancels+modifies) / float64(msgs)
	avgLife := d.avgQuoteLifetime(st)

	// Participation and aggression from the trade tape
	var windowTrades, aggressive int
	for i := 0; i < st.trades.Len(); i++ {
		t := st.trades.At(i)
		if t.Timestamp.Before(cutoff) {
			continue
		}
		windowTrades++
		if t.Aggressive {
			aggressive++
		}
	}
	participation := 0.0
	if msgs > 0 {
		participation = float64(windowTrades) / float64(msgs)
	}
	aggression := 0.0
	if windowTrades > 0 {
		aggression = float64(aggressive) / float64(windowTrades)
	}

	microVol := 0.0
	if m := mean(prices); m != 0 {
		microVol = stddev(prices) / m
	}

	if rate < d.config.MinMessageRate {
		return nil
	}
	if cancelRatio < d.config.CancelRatioThreshold && (avgLife <= 0 || avgLife > d.config.MaxQuoteLifetime) {
		return nil
	}
	if participation < d.config.MinParticipation {
		return nil
	}

	sig := &HFTSignature{
		Symbol:            symbol,
		Exchange:          exchange,
		Timestamp:         last.Timestamp,
		MessageRate:       rate,
		CancelRatio:       cancelRatio,
		AvgQuoteLifetime:  avgLife,
		ParticipationRate: participation,
		AggressionScore:   aggression,
		MicroVolatility:   microVol,
	}
	sig.Archetype = d.classifyArchetype(sig, bidQuotes, askQuotes, windowTrades, msgs)
	sig.Confidence = d.signatureConfidence(sig)
	return sig
}

// avgQuoteLifetime averages retained resolved lifecycles
func (d *HFTActivityDetector) avgQuoteLifetime(st *hftState) time.Duration {
	if st.lifetimes.Len() == 0 {
		return 0
	}
	var total time.Duration
	for i := 0; i < st.lifetimes.Len(); i++ {
		total += st.lifetimes.At(i)
	}
	return total / time.Duration(st.lifetimes.Len())
}

// classifyArchetype maps the signature onto one of four strategy
// archetypes
func (d *HFTActivityDetector) classifyArchetype(sig *HFTSignature, bidQuotes, askQuotes, trades, msgs int) HFTArchetype {
	twoSided := bidQuotes > 0 && askQuotes > 0 &&
		float64(min(bidQuotes, askQuotes))/float64(max(bidQuotes, askQuotes)) > 0.3

	quoteToTrade := float64(msgs)
	if trades > 0 {
		quoteToTrade = float64(msgs) / float64(trades)
	}

	switch {
	// Predatory: extreme rate, vanishing quotes, excessive quote-to-trade
	case sig.MessageRate >= 5*d.config.MinMessageRate &&
		sig.AvgQuoteLifetime > 0 && sig.AvgQuoteLifetime <= d.config.MaxQuoteLifetime/2 &&
		quoteToTrade >= 20:
		return HFTPredatory
	// Market making: passive, high cancel ratio, quoting both sides
	case sig.AggressionScore < 0.3 && sig.CancelRatio >= d.config.CancelRatioThreshold && twoSided:
		return HFTMarketMaking
	// Momentum: directional aggression with volatility, keeps its quotes
	case sig.CancelRatio < d.config.CancelRatioThreshold && sig.MicroVolatility > 0.0005 && sig.AggressionScore >= 0.5:
		return HFTMomentum
	default:
		return HFTArbitrage
	}
}

// signatureConfidence scales with how far past the gates the window is
func (d *HFTActivityDetector) signatureConfidence(sig *HFTSignature) float64 {
	score := 0.5
	if sig.MessageRate >= 2*d.config.MinMessageRate {
		score += 0.15
	}
	if sig.CancelRatio >= d.config.CancelRatioThreshold {
		score += 0.15
	}
	if sig.AvgQuoteLifetime > 0 && sig.AvgQuoteLifetime <= d.config.MaxQuoteLifetime {
		score += 0.1
	}
	if sig.ParticipationRate >= 2*d.config.MinParticipation {
		score += 0.1
	}
	return clamp(score, 0, 1)
}

// =======================
// QUOTE STUFFING
// =======================

// StuffingPatternType labels the message-rate anomaly that was matched
type StuffingPatternType string

const (
	StuffingBurst       StuffingPatternType = "burst"
	StuffingSustained   StuffingPatternType = "sustained"
	StuffingOscillating StuffingPatternType = "oscillating"
)

// StuffingSeverity grades a stuffing event by peak rate and duration
type StuffingSeverity string

const (
	StuffingLow     StuffingSeverity = "low"
	StuffingMedium  StuffingSeverity = "medium"
	StuffingHigh    StuffingSeverity = "high"
	StuffingExtreme StuffingSeverity = "extreme"
)

// QuoteStuffingEvent reports a message-rate anomaly consistent with
// deliberate feed degradation
type QuoteStuffingEvent struct {
	Symbol      string              `json:"symbol"`
	Exchange    string              `json:"exchange"`
	Timestamp   time.Time           `json:"timestamp"`
	PatternType StuffingPatternType `json:"pattern_type"`
	PeakRate    float64             `json:"peak_rate"`
	Duration    time.Duration       `json:"duration"`
	PriceLevels int                 `json:"price_levels"`
	Severity    StuffingSeverity    `json:"severity"`
	Confidence  float64             `json:"confidence"`
}

// QuoteStuffingIdentifier detects burst, sustained and oscillating
// message-rate anomalies over per-instrument quote streams. Not
// goroutine-safe; callers serialize per key.
type QuoteStuffingIdentifier struct {
	config     StuffingConfig
	logger     *zap.SugaredLogger
	quotes     *keyedRings[QuoteMessage]
	lastEvents map[string]QuoteStuffingEvent
}

// NewQuoteStuffingIdentifier creates a new quote stuffing identifier
func NewQuoteStuffingIdentifier(config StuffingConfig, logger *zap.SugaredLogger) *QuoteStuffingIdentifier {
	return &QuoteStuffingIdentifier{
		config:     config,
		logger:     logger,
		quotes:     newKeyedRings[QuoteMessage](config.HistorySize),
		lastEvents: make(map[string]QuoteStuffingEvent),
	}
}

// ProcessQuote appends a message and checks the three stuffing patterns.
// Returns an event when one fires, nil otherwise.
func (d *QuoteStuffingIdentifier) ProcessQuote(q *QuoteMessage) *QuoteStuffingEvent {
	if q == nil {
		return nil
	}
	key := q.Key()
	hist := d.quotes.get(key)
	hist.Push(*q)
	if hist.Len() < 10 {
		return nil // insufficient history
	}

	if e := d.detectBurst(hist, q); e != nil {
		d.lastEvents[key] = *e
		return e
	}
	if e := d.detectSustained(hist, q); e != nil {
		d.lastEvents[key] = *e
		return e
	}
	if e := d.detectOscillating(hist, q); e != nil {
		d.lastEvents[key] = *e
		return e
	}
	return nil
}

// countSince counts messages at or after the cutoff, walking backwards
func countSince(hist *ring[QuoteMessage], cutoff time.Time) int {
	count := 0
	for i := hist.Len() - 1; i >= 0; i-- {
		if hist.At(i).Timestamp.Before(cutoff) {
			break
		}
		count++
	}
	return count
}

// detectBurst fires when the burst-window rate exceeds BurstRate
func (d *QuoteStuffingIdentifier) detectBurst(hist *ring[QuoteMessage], q *QuoteMessage) *QuoteStuffingEvent {
	window := d.config.BurstWindow
	count := countSince(hist, q.Timestamp.Add(-window))
	rate := float64(count) / window.Seconds()
	if rate < d.config.BurstRate {
		return nil
	}
	return d.buildEvent(q, StuffingBurst, rate, window, 0)
}

// detectSustained fires when the sustained-window rate holds across at
// least SustainedFraction of the sub-buckets
func (d *QuoteStuffingIdentifier) detectSustained(hist *ring[QuoteMessage], q *QuoteMessage) *QuoteStuffingEvent {
	window := d.config.SustainedWindow
	cutoff := q.Timestamp.Add(-window)
	total := countSince(hist, cutoff)
	rate := float64(total) / window.Seconds()
	if rate < d.config.SustainedRate {
		return nil
	}

	// Confirm the rate is sustained, not one burst inside the window
	buckets := make([]int, d.config.SustainedBuckets)
	bucketLen := window / time.Duration(d.config.SustainedBuckets)
	for i := hist.Len() - 1; i >= 0; i-- {
		msg := hist.At(i)
		if msg.Timestamp.Before(cutoff) {
			break
		}
		idx := int(msg.Timestamp.Sub(cutoff) / bucketLen)
		if idx >= len(buckets) {
			idx = len(buckets) - 1
		}
		buckets[idx]++
	}
	perBucketMin := d.config.SustainedRate * bucketLen.Seconds() / 2
	active := 0
	for _, c := range buckets {
		if float64(c) >= perBucketMin {
			active++
		}
	}
	if float64(active)/float64(len(buckets)) < d.config.SustainedFraction {
		return nil
	}
	return d.buildEvent(q, StuffingSustained, rate, window, 0)
}

// detectOscillating fires when nearly all recent messages concentrate on
// two price levels
func (d *QuoteStuffingIdentifier) detectOscillating(hist *ring[QuoteMessage], q *QuoteMessage) *QuoteStuffingEvent {
	window := d.config.OscillatingWindow
	cutoff := q.Timestamp.Add(-window)

	levelCounts := make(map[string]int)
	total := 0
	for i := hist.Len() - 1; i >= 0; i-- {
		msg := hist.At(i)
		if msg.Timestamp.Before(cutoff) {
			break
		}
		levelCounts[msg.Price.String()]++
		total++
	}
	if total < 20 || len(levelCounts) < 2 {
		return nil
	}

	// Sum the two busiest levels
	first, second := 0, 0
	for _, c := range levelCounts {
		if c > first {
			first, second = c, first
		} else if c > second {
			second = c
		}
	}
	concentration := float64(first+second) / float64(total)
	if concentration < d.config.OscillatingFraction {
		return nil
	}
	rate := float64(total) / window.Seconds()
	return d.buildEvent(q, StuffingOscillating, rate, window, d.config.OscillatingLevels)
}

// buildEvent grades severity by peak-rate x duration-ms against a
// four-tier table
func (d *QuoteStuffingIdentifier) buildEvent(q *QuoteMessage, pattern StuffingPatternType, rate float64, duration time.Duration, levels int) *QuoteStuffingEvent {
	intensity := rate * float64(duration.Milliseconds())
	var severity StuffingSeverity
	switch {
	case intensity >= 200000:
		severity = StuffingExtreme
	case intensity >= 100000:
		severity = StuffingHigh
	case intensity >= 50000:
		severity = StuffingMedium
	default:
		severity = StuffingLow
	}

	confidence := 0.6
	switch severity {
	case StuffingMedium:
		confidence = 0.7
	case StuffingHigh:
		confidence = 0.85
	case StuffingExtreme:
		confidence = 0.95
	}

	return &QuoteStuffingEvent{
		Symbol:      q.Symbol,
		Exchange:    q.Exchange,
		Timestamp:   q.Timestamp,
		PatternType: pattern,
		PeakRate:    rate,
		Duration:    duration,
		PriceLevels: levels,
		Severity:    severity,
		Confidence:  confidence,
	}
}

// Active reports whether a stuffing event fired within the last window
// for the instrument
func (d *QuoteStuffingIdentifier) Active(exchange, symbol string, now time.Time) bool {
	e, ok := d.lastEvents[instrumentKey(exchange, symbol)]
	if !ok {
		return false
	}
	return now.Sub(e.Timestamp) <= d.config.OscillatingWindow
}
