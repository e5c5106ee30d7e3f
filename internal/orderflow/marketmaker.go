package orderflow

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =======================
// MARKET MAKER ANALYZER
// =======================

// MakerStrategy classifies a maker's dominant quoting style
type MakerStrategy string

const (
	MakerAggressive MakerStrategy = "aggressive"
	MakerDefensive  MakerStrategy = "defensive"
	MakerAdaptive   MakerStrategy = "adaptive"
	MakerPassive    MakerStrategy = "passive"
)

// InventoryStyle classifies how a maker manages its position
type InventoryStyle string

const (
	InventoryDirectional   InventoryStyle = "directional"
	InventoryOpportunistic InventoryStyle = "opportunistic"
	InventoryBalanced      InventoryStyle = "balanced"
)

// MakerActionType describes how a quote relates to the prevailing best
// price
type MakerActionType string

const (
	ActionImprove MakerActionType = "improve"
	ActionFade    MakerActionType = "fade"
	ActionHold    MakerActionType = "hold"
)

// MarketMakerAction is one classified quote from a tracked maker
type MarketMakerAction struct {
	MakerID   string          `json:"maker_id"`
	Timestamp time.Time       `json:"timestamp"`
	Action    MakerActionType `json:"action"`
	Side      Side            `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Size      decimal.Decimal `json:"size"`
}

// MarketMakerProfile aggregates the observed behavior of one recurring
// liquidity provider
type MarketMakerProfile struct {
	MakerID           string          `json:"maker_id"`
	Symbol            string          `json:"symbol"`
	Exchange          string          `json:"exchange"`
	FirstSeen         time.Time       `json:"first_seen"`
	LastSeen          time.Time       `json:"last_seen"`
	QuoteCount        int             `json:"quote_count"`
	BidVolume         decimal.Decimal `json:"bid_volume"`
	AskVolume         decimal.Decimal `json:"ask_volume"`
	AvgSpread         float64         `json:"avg_spread"`
	SpreadVolatility  float64         `json:"spread_volatility"`
	ImproveCount      int             `json:"improve_count"`
	FadeCount         int             `json:"fade_count"`
	Strategy          MakerStrategy   `json:"strategy"`
	InventoryStyle    InventoryStyle  `json:"inventory_style"`
	InventoryPressure float64         `json:"inventory_pressure"`
}

// makerState is the mutable accumulator behind a profile
type makerState struct {
	profile     MarketMakerProfile
	spreads     *ring[float64]
	pressures   *ring[float64]
	lastSide    Side
	lastBidSize decimal.Decimal
	lastAskSize decimal.Decimal
}

// mmInstrumentState tracks all makers plus book context for one
// instrument
type mmInstrumentState struct {
	book   *OrderBookSnapshot
	makers map[string]*makerState
}

// MarketMakerAnalyzer identifies recurring two-sided quoters by quote ID
// or behavioral signature and profiles their strategy and inventory
// style. Not goroutine-safe.
type MarketMakerAnalyzer struct {
	config  MarketMakerConfig
	logger  *zap.SugaredLogger
	state   map[string]*mmInstrumentState
	actions *ring[MarketMakerAction]
}

// NewMarketMakerAnalyzer creates a new market maker analyzer
func NewMarketMakerAnalyzer(config MarketMakerConfig, logger *zap.SugaredLogger) *MarketMakerAnalyzer {
	return &MarketMakerAnalyzer{
		config:  config,
		logger:  logger,
		state:   make(map[string]*mmInstrumentState),
		actions: newRing[MarketMakerAction](config.HistorySize),
	}
}

func (a *MarketMakerAnalyzer) stateFor(key string) *mmInstrumentState {
	st, ok := a.state[key]
	if !ok {
		st = &mmInstrumentState{makers: make(map[string]*makerState)}
		a.state[key] = st
	}
	return st
}

// UpdateBook refreshes the best-price context used to classify quote
// actions
func (a *MarketMakerAnalyzer) UpdateBook(snap *OrderBookSnapshot) {
	if snap == nil {
		return
	}
	a.stateFor(snap.Key()).book = snap
}

// ProcessQuote attributes a quote to a maker and updates that maker's
// profile. Returns the classified action, or nil for cancels.
func (a *MarketMakerAnalyzer) ProcessQuote(q *QuoteMessage) *MarketMakerAction {
	if q == nil || q.Action == QuoteActionCancel {
		return nil
	}
	st := a.stateFor(q.Key())
	makerID := a.identifyMaker(st, q)

	ms, ok := st.makers[makerID]
	if !ok {
		ms = &makerState{
			profile: MarketMakerProfile{
				MakerID:   makerID,
				Symbol:    q.Symbol,
				Exchange:  q.Exchange,
				FirstSeen: q.Timestamp,
			},
			spreads:   newRing[float64](a.config.HistorySize / 4),
			pressures: newRing[float64](a.config.HistorySize / 4),
		}
		st.makers[makerID] = ms
	}

	p := &ms.profile
	p.LastSeen = q.Timestamp
	p.QuoteCount++
	if q.Side == SideBuy {
		p.BidVolume = p.BidVolume.Add(q.Size)
		ms.lastBidSize = q.Size
	} else {
		p.AskVolume = p.AskVolume.Add(q.Size)
		ms.lastAskSize = q.Size
	}
	ms.lastSide = q.Side

	if st.book != nil {
		if spread := st.book.Spread(); !spread.IsZero() {
			ms.spreads.Push(spread.InexactFloat64())
		}
	}
	ms.pressures.Push(a.inventoryPressure(ms))

	actionType := a.classifyAction(st, q)
	switch actionType {
	case ActionImprove:
		p.ImproveCount++
	case ActionFade:
		p.FadeCount++
	}

	a.refreshClassification(ms)

	action := &MarketMakerAction{
		MakerID:   makerID,
		Timestamp: q.Timestamp,
		Action:    actionType,
		Side:      q.Side,
		Price:     q.Price,
		Size:      q.Size,
	}
	a.actions.Push(*action)
	return action
}

// identifyMaker keys a quote to a maker: explicit quote IDs when the feed
// carries them, otherwise a behavioral signature built from spread
// distance, size ratio and size roundness
func (a *MarketMakerAnalyzer) identifyMaker(st *mmInstrumentState, q *QuoteMessage) string {
	if q.MessageID != "" {
		// Feed-assigned IDs are per-order; the participant prefix (when
		// present, "participant-order") is stable across orders
		for i := 0; i < len(q.MessageID); i++ {
			if q.MessageID[i] == '-' {
				return q.MessageID[:i]
			}
		}
	}
	return a.signature(st, q)
}

// signature buckets a quote into a behavioral fingerprint
func (a *MarketMakerAnalyzer) signature(st *mmInstrumentState, q *QuoteMessage) string {
	spreadBucket := 0
	if st.book != nil {
		mid := st.book.MidPrice()
		if !mid.IsZero() {
			dist := q.Price.Sub(mid).Abs().Div(mid).InexactFloat64()
			spreadBucket = int(dist / (a.config.SignatureSpreadTol / 100))
		}
	}
	sizeBucket := 0
	if !q.Size.IsZero() {
		sizeBucket = int(q.Size.InexactFloat64() / (1 + a.config.SignatureSizeTol*q.Size.InexactFloat64()))
	}
	rounded := q.Size.Mod(decimal.NewFromInt(100)).IsZero()
	return fmt.Sprintf("sig:%d:%d:%t", spreadBucket, sizeBucket, rounded)
}

// classifyAction compares the quote against the prevailing best price on
// its side
func (a *MarketMakerAnalyzer) classifyAction(st *mmInstrumentState, q *QuoteMessage) MakerActionType {
	if st.book == nil {
		return ActionHold
	}
	if q.Side == SideBuy {
		best := st.book.BestBid()
		if best == nil {
			return ActionHold
		}
		switch {
		case q.Price.GreaterThan(best.Price):
			return ActionImprove
		case q.Price.LessThan(best.Price):
			return ActionFade
		}
	} else {
		best := st.book.BestAsk()
		if best == nil {
			return ActionHold
		}
		switch {
		case q.Price.LessThan(best.Price):
			return ActionImprove
		case q.Price.GreaterThan(best.Price):
			return ActionFade
		}
	}
	return ActionHold
}

// inventoryPressure estimates position bias from cumulative quoted
// volume, blended with the instantaneous quote skew
func (a *MarketMakerAnalyzer) inventoryPressure(ms *makerState) float64 {
	p := &ms.profile
	total := p.BidVolume.Add(p.AskVolume)
	cumulative := 0.0
	if !total.IsZero() {
		cumulative = p.AskVolume.Sub(p.BidVolume).Div(total).InexactFloat64()
	}

	instant := 0.0
	instTotal := ms.lastBidSize.Add(ms.lastAskSize)
	if !instTotal.IsZero() {
		instant = ms.lastAskSize.Sub(ms.lastBidSize).Div(instTotal).InexactFloat64()
	}
	return a.config.InventoryBlend*cumulative + (1-a.config.InventoryBlend)*instant
}

// refreshClassification recomputes strategy and inventory style once
// enough quotes accumulated
func (a *MarketMakerAnalyzer) refreshClassification(ms *makerState) {
	p := &ms.profile
	if p.QuoteCount < a.config.MinQuotesForProfile {
		return
	}

	spreads := ms.spreads.Items()
	p.AvgSpread = mean(spreads)
	if p.AvgSpread != 0 {
		p.SpreadVolatility = stddev(spreads) / p.AvgSpread
	}

	improveRatio := 0.0
	if acts := p.ImproveCount + p.FadeCount; acts > 0 {
		improveRatio = float64(p.ImproveCount) / float64(acts)
	}
	switch {
	case improveRatio > 0.6:
		p.Strategy = MakerAggressive
	case p.SpreadVolatility > 0.5:
		p.Strategy = MakerAdaptive
	case improveRatio < 0.3 && p.SpreadVolatility < 0.2:
		p.Strategy = MakerDefensive
	default:
		p.Strategy = MakerPassive
	}

	pressures := ms.pressures.Items()
	p.InventoryPressure = a.inventoryPressure(ms)
	pressureVol := stddev(pressures)
	switch {
	case p.InventoryPressure > 0.4 || p.InventoryPressure < -0.4:
		p.InventoryStyle = InventoryDirectional
	case pressureVol > 0.3:
		p.InventoryStyle = InventoryOpportunistic
	default:
		p.InventoryStyle = InventoryBalanced
	}
}

// Profiles returns the makers tracked for an instrument that have enough
// quotes for classification, pruning those outside the profile window
func (a *MarketMakerAnalyzer) Profiles(exchange, symbol string, now time.Time) []MarketMakerProfile {
	st, ok := a.state[instrumentKey(exchange, symbol)]
	if !ok {
		return nil
	}
	cutoff := now.Add(-a.config.ProfileWindow)
	out := make([]MarketMakerProfile, 0, len(st.makers))
	for id, ms := range st.makers {
		if ms.profile.LastSeen.Before(cutoff) {
			delete(st.makers, id)
			continue
		}
		if ms.profile.QuoteCount >= a.config.MinQuotesForProfile {
			out = append(out, ms.profile)
		}
	}
	return out
}

// TwoSidedMakers counts tracked makers quoting both sides, used by the
// fairness score
func (a *MarketMakerAnalyzer) TwoSidedMakers(exchange, symbol string, now time.Time) int {
	count := 0
	for _, p := range a.Profiles(exchange, symbol, now) {
		if p.BidVolume.IsPositive() && p.AskVolume.IsPositive() {
			count++
		}
	}
	return count
}
