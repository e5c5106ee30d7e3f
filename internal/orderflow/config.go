package orderflow

import (
	"time"

	"github.com/shopspring/decimal"
)

// ImbalanceConfig configures the order-book imbalance detector
type ImbalanceConfig struct {
	TopLevels          int     `json:"top_levels" mapstructure:"top_levels"`
	WeakThreshold      float64 `json:"weak_threshold" mapstructure:"weak_threshold"`
	ModerateThreshold  float64 `json:"moderate_threshold" mapstructure:"moderate_threshold"`
	StrongThreshold    float64 `json:"strong_threshold" mapstructure:"strong_threshold"`
	ExtremeThreshold   float64 `json:"extreme_threshold" mapstructure:"extreme_threshold"`
	HistorySize        int     `json:"history_size" mapstructure:"history_size"`
}

// DefaultImbalanceConfig returns default imbalance detection configuration
func DefaultImbalanceConfig() ImbalanceConfig {
	return ImbalanceConfig{
		TopLevels:         20,
		WeakThreshold:     1.5,
		ModerateThreshold: 2.0,
		StrongThreshold:   3.0,
		ExtremeThreshold:  5.0,
		HistorySize:       200,
	}
}

// AbsorptionConfig configures the absorption pattern detector
type AbsorptionConfig struct {
	LookbackSteps       int             `json:"lookback_steps" mapstructure:"lookback_steps"`
	MinVolumeThreshold  decimal.Decimal `json:"min_volume_threshold" mapstructure:"min_volume_threshold"`
	MaxPriceMovement    float64         `json:"max_price_movement" mapstructure:"max_price_movement"`
	MinDuration         time.Duration   `json:"min_duration" mapstructure:"min_duration"`
	PatternWindow       time.Duration   `json:"pattern_window" mapstructure:"pattern_window"`
	MinEventsForPattern int             `json:"min_events_for_pattern" mapstructure:"min_events_for_pattern"`
	HistorySize         int             `json:"history_size" mapstructure:"history_size"`
}

// DefaultAbsorptionConfig returns default absorption detection configuration
func DefaultAbsorptionConfig() AbsorptionConfig {
	return AbsorptionConfig{
		LookbackSteps:       10,
		MinVolumeThreshold:  decimal.NewFromInt(100),
		MaxPriceMovement:    0.001, // 0.1%
		MinDuration:         10 * time.Second,
		PatternWindow:       5 * time.Minute,
		MinEventsForPattern: 3,
		HistorySize:         200,
	}
}

// LiquidityVoidConfig configures the liquidity void detector
type LiquidityVoidConfig struct {
	MinGapPercentage   float64         `json:"min_gap_percentage" mapstructure:"min_gap_percentage"`
	MinVolumeThreshold decimal.Decimal `json:"min_volume_threshold" mapstructure:"min_volume_threshold"`
	MaxLevels          int             `json:"max_levels" mapstructure:"max_levels"`
	HistorySize        int             `json:"history_size" mapstructure:"history_size"`
}

// DefaultLiquidityVoidConfig returns default liquidity void configuration
func DefaultLiquidityVoidConfig() LiquidityVoidConfig {
	return LiquidityVoidConfig{
		MinGapPercentage:   0.001, // 0.1% of mid
		MinVolumeThreshold: decimal.NewFromInt(10),
		MaxLevels:          50,
		HistorySize:        100,
	}
}

// DeltaBarMode selects how the cumulative delta calculator rolls bars
type DeltaBarMode string

const (
	DeltaBarTime   DeltaBarMode = "time"
	DeltaBarVolume DeltaBarMode = "volume"
)

// DeltaConfig configures the cumulative delta calculator
type DeltaConfig struct {
	BarMode             DeltaBarMode    `json:"bar_mode" mapstructure:"bar_mode"`
	BarInterval         time.Duration   `json:"bar_interval" mapstructure:"bar_interval"`
	BarVolume           decimal.Decimal `json:"bar_volume" mapstructure:"bar_volume"`
	LookbackBars        int             `json:"lookback_bars" mapstructure:"lookback_bars"`
	DivergenceThreshold float64         `json:"divergence_threshold" mapstructure:"divergence_threshold"`
	HistorySize         int             `json:"history_size" mapstructure:"history_size"`
}

// DefaultDeltaConfig returns default cumulative delta configuration
func DefaultDeltaConfig() DeltaConfig {
	return DeltaConfig{
		BarMode:             DeltaBarTime,
		BarInterval:         time.Minute,
		BarVolume:           decimal.NewFromInt(10000),
		LookbackBars:        20,
		DivergenceThreshold: 0.3,
		HistorySize:         500,
	}
}

// DarkPoolConfig configures the dark pool activity scanner
type DarkPoolConfig struct {
	MinPrintSize            decimal.Decimal `json:"min_print_size" mapstructure:"min_print_size"`
	PriceDeviationPct       float64         `json:"price_deviation_pct" mapstructure:"price_deviation_pct"`
	CloseWindowStart        string          `json:"close_window_start" mapstructure:"close_window_start"` // "HH:MM" UTC
	CloseWindowEnd          string          `json:"close_window_end" mapstructure:"close_window_end"`
	SizeAnomalyMultiplier   float64         `json:"size_anomaly_multiplier" mapstructure:"size_anomaly_multiplier"`
	SizeOnlyConfidenceDecay float64         `json:"size_only_confidence_decay" mapstructure:"size_only_confidence_decay"`
	BucketInterval          time.Duration   `json:"bucket_interval" mapstructure:"bucket_interval"`
	HistorySize             int             `json:"history_size" mapstructure:"history_size"`
}

// DefaultDarkPoolConfig returns default dark pool scanning configuration
func DefaultDarkPoolConfig() DarkPoolConfig {
	return DarkPoolConfig{
		MinPrintSize:            decimal.NewFromInt(500000),
		PriceDeviationPct:       0.002, // 0.2%
		CloseWindowStart:        "20:45",
		CloseWindowEnd:          "21:00",
		SizeAnomalyMultiplier:   10,
		SizeOnlyConfidenceDecay: 0.6,
		BucketInterval:          time.Minute,
		HistorySize:             500,
	}
}

// IcebergConfig configures the iceberg order detector
type IcebergConfig struct {
	TickSize             decimal.Decimal `json:"tick_size" mapstructure:"tick_size"`
	PriceClusterPips     int             `json:"price_cluster_pips" mapstructure:"price_cluster_pips"`
	Window               time.Duration   `json:"window" mapstructure:"window"`
	MinSlices            int             `json:"min_slices" mapstructure:"min_slices"`
	ClassicSizeCV        float64         `json:"classic_size_cv" mapstructure:"classic_size_cv"`
	ClassicSideRatio     float64         `json:"classic_side_ratio" mapstructure:"classic_side_ratio"`
	ClassicMaxDriftPips  float64         `json:"classic_max_drift_pips" mapstructure:"classic_max_drift_pips"`
	AdaptiveGapCV        float64         `json:"adaptive_gap_cv" mapstructure:"adaptive_gap_cv"`
	AdaptiveSideRatio    float64         `json:"adaptive_side_ratio" mapstructure:"adaptive_side_ratio"`
	LargeVolumePercentile float64        `json:"large_volume_percentile" mapstructure:"large_volume_percentile"`
	RoundMaxDriftPips    float64         `json:"round_max_drift_pips" mapstructure:"round_max_drift_pips"`
	RoundMinSlices       int             `json:"round_min_slices" mapstructure:"round_min_slices"`
	HistorySize          int             `json:"history_size" mapstructure:"history_size"`
}

// DefaultIcebergConfig returns default iceberg detection configuration
func DefaultIcebergConfig() IcebergConfig {
	return IcebergConfig{
		TickSize:              decimal.NewFromFloat(0.01),
		PriceClusterPips:      2,
		Window:                30 * time.Minute,
		MinSlices:             3,
		ClassicSizeCV:         0.3,
		ClassicSideRatio:      0.8,
		ClassicMaxDriftPips:   5,
		AdaptiveGapCV:         0.5,
		AdaptiveSideRatio:     0.9,
		LargeVolumePercentile: 0.75,
		RoundMaxDriftPips:     3,
		RoundMinSlices:        5,
		HistorySize:           1000,
	}
}

// SpoofingConfig configures the spoofing detector
type SpoofingConfig struct {
	HistorySize           int             `json:"history_size" mapstructure:"history_size"`
	MinSpoofSizeRatio     float64         `json:"min_spoof_size_ratio" mapstructure:"min_spoof_size_ratio"`
	MinLayers             int             `json:"min_layers" mapstructure:"min_layers"`
	TickSize              decimal.Decimal `json:"tick_size" mapstructure:"tick_size"`
	IgnitionMovePips      float64         `json:"ignition_move_pips" mapstructure:"ignition_move_pips"`
	LayeringConfidence    float64         `json:"layering_confidence" mapstructure:"layering_confidence"`
	IgnitionConfidence    float64         `json:"ignition_confidence" mapstructure:"ignition_confidence"`
	FlashConfidence       float64         `json:"flash_confidence" mapstructure:"flash_confidence"`
	InspectLevels         int             `json:"inspect_levels" mapstructure:"inspect_levels"`
}

// DefaultSpoofingConfig returns default spoofing detection configuration
func DefaultSpoofingConfig() SpoofingConfig {
	return SpoofingConfig{
		HistorySize:        60,
		MinSpoofSizeRatio:  3.0,
		MinLayers:          3,
		TickSize:           decimal.NewFromFloat(0.01),
		IgnitionMovePips:   5,
		LayeringConfidence: 0.7,
		IgnitionConfidence: 0.8,
		FlashConfidence:    0.75,
		InspectLevels:      10,
	}
}

// HFTConfig configures the high-frequency trading activity detector
type HFTConfig struct {
	AnalysisWindow       time.Duration `json:"analysis_window" mapstructure:"analysis_window"`
	MinMessageRate       float64       `json:"min_message_rate" mapstructure:"min_message_rate"`
	CancelRatioThreshold float64       `json:"cancel_ratio_threshold" mapstructure:"cancel_ratio_threshold"`
	MaxQuoteLifetime     time.Duration `json:"max_quote_lifetime" mapstructure:"max_quote_lifetime"`
	MinParticipation     float64       `json:"min_participation" mapstructure:"min_participation"`
	HistorySize          int           `json:"history_size" mapstructure:"history_size"`
}

// DefaultHFTConfig returns default HFT detection configuration
func DefaultHFTConfig() HFTConfig {
	return HFTConfig{
		AnalysisWindow:       time.Second,
		MinMessageRate:       10,
		CancelRatioThreshold: 0.7,
		MaxQuoteLifetime:     100 * time.Millisecond,
		MinParticipation:     0.10,
		HistorySize:          2000,
	}
}

// StuffingConfig configures the quote stuffing identifier
type StuffingConfig struct {
	BurstRate          float64       `json:"burst_rate" mapstructure:"burst_rate"`
	BurstWindow        time.Duration `json:"burst_window" mapstructure:"burst_window"`
	SustainedRate      float64       `json:"sustained_rate" mapstructure:"sustained_rate"`
	SustainedWindow    time.Duration `json:"sustained_window" mapstructure:"sustained_window"`
	SustainedBuckets   int           `json:"sustained_buckets" mapstructure:"sustained_buckets"`
	SustainedFraction  float64       `json:"sustained_fraction" mapstructure:"sustained_fraction"`
	OscillatingWindow  time.Duration `json:"oscillating_window" mapstructure:"oscillating_window"`
	OscillatingLevels  int           `json:"oscillating_levels" mapstructure:"oscillating_levels"`
	OscillatingFraction float64      `json:"oscillating_fraction" mapstructure:"oscillating_fraction"`
	HistorySize        int           `json:"history_size" mapstructure:"history_size"`
}

// DefaultStuffingConfig returns default quote stuffing configuration
func DefaultStuffingConfig() StuffingConfig {
	return StuffingConfig{
		BurstRate:           100,
		BurstWindow:         100 * time.Millisecond,
		SustainedRate:       50,
		SustainedWindow:     time.Second,
		SustainedBuckets:    10,
		SustainedFraction:   0.7,
		OscillatingWindow:   2 * time.Second,
		OscillatingLevels:   2,
		OscillatingFraction: 0.8,
		HistorySize:         5000,
	}
}

// HiddenLiquidityConfig configures the hidden liquidity scanner
type HiddenLiquidityConfig struct {
	ExcessExecutionRatio float64         `json:"excess_execution_ratio" mapstructure:"excess_execution_ratio"`
	ImprovementPips      float64         `json:"improvement_pips" mapstructure:"improvement_pips"`
	TickSize             decimal.Decimal `json:"tick_size" mapstructure:"tick_size"`
	RefillWindow         time.Duration   `json:"refill_window" mapstructure:"refill_window"`
	RefillMinExecutions  int             `json:"refill_min_executions" mapstructure:"refill_min_executions"`
	RefillMinGaps        int             `json:"refill_min_gaps" mapstructure:"refill_min_gaps"`
	RefillMaxGap         time.Duration   `json:"refill_max_gap" mapstructure:"refill_max_gap"`
	SignatureSizeRatio   float64         `json:"signature_size_ratio" mapstructure:"signature_size_ratio"`
	SignatureRoundLot    decimal.Decimal `json:"signature_round_lot" mapstructure:"signature_round_lot"`
	SignatureConfidence  float64         `json:"signature_confidence" mapstructure:"signature_confidence"`
	HistorySize          int             `json:"history_size" mapstructure:"history_size"`
}

// DefaultHiddenLiquidityConfig returns default hidden liquidity configuration
func DefaultHiddenLiquidityConfig() HiddenLiquidityConfig {
	return HiddenLiquidityConfig{
		ExcessExecutionRatio: 2.0,
		ImprovementPips:      0.5,
		TickSize:             decimal.NewFromFloat(0.01),
		RefillWindow:         5 * time.Second,
		RefillMinExecutions:  3,
		RefillMinGaps:        2,
		RefillMaxGap:         5 * time.Second,
		SignatureSizeRatio:   3.0,
		SignatureRoundLot:    decimal.NewFromInt(100),
		SignatureConfidence:  0.7,
		HistorySize:          500,
	}
}

// MarketMakerConfig configures the market maker analyzer
type MarketMakerConfig struct {
	MinQuotesForProfile int           `json:"min_quotes_for_profile" mapstructure:"min_quotes_for_profile"`
	SignatureSpreadTol  float64       `json:"signature_spread_tol" mapstructure:"signature_spread_tol"`
	SignatureSizeTol    float64       `json:"signature_size_tol" mapstructure:"signature_size_tol"`
	InventoryBlend      float64       `json:"inventory_blend" mapstructure:"inventory_blend"`
	ProfileWindow       time.Duration `json:"profile_window" mapstructure:"profile_window"`
	HistorySize         int           `json:"history_size" mapstructure:"history_size"`
}

// DefaultMarketMakerConfig returns default market maker analysis configuration
func DefaultMarketMakerConfig() MarketMakerConfig {
	return MarketMakerConfig{
		MinQuotesForProfile: 10,
		SignatureSpreadTol:  0.1,
		SignatureSizeTol:    0.15,
		InventoryBlend:      0.7, // blended 70/30 with instantaneous skew
		ProfileWindow:       10 * time.Minute,
		HistorySize:         1000,
	}
}

// ScorerConfig configures the microstructure scorer's component weights
// and alerting thresholds. The four component weights must sum to 1.0.
type ScorerConfig struct {
	LiquidityWeight  float64 `json:"liquidity_weight" mapstructure:"liquidity_weight"`
	StabilityWeight  float64 `json:"stability_weight" mapstructure:"stability_weight"`
	FairnessWeight   float64 `json:"fairness_weight" mapstructure:"fairness_weight"`
	EfficiencyWeight float64 `json:"efficiency_weight" mapstructure:"efficiency_weight"`

	ManipulationAlertThreshold  float64 `json:"manipulation_alert_threshold" mapstructure:"manipulation_alert_threshold"`
	QualityAlertThreshold       float64 `json:"quality_alert_threshold" mapstructure:"quality_alert_threshold"`
	InstitutionalAlertThreshold float64 `json:"institutional_alert_threshold" mapstructure:"institutional_alert_threshold"`

	AlertQueueSize int `json:"alert_queue_size" mapstructure:"alert_queue_size"`
	ScoreHistory   int `json:"score_history" mapstructure:"score_history"`
}

// DefaultScorerConfig returns default microstructure scorer configuration
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		LiquidityWeight:             0.25,
		StabilityWeight:             0.20,
		FairnessWeight:              0.30,
		EfficiencyWeight:            0.25,
		ManipulationAlertThreshold:  60,
		QualityAlertThreshold:       40,
		InstitutionalAlertThreshold: 80,
		AlertQueueSize:              1000,
		ScoreHistory:                500,
	}
}

// FlowScorerConfig configures the order flow scorer. The five indicator
// weights must sum to 1.0.
type FlowScorerConfig struct {
	ImbalanceWeight  float64 `json:"imbalance_weight" mapstructure:"imbalance_weight"`
	AbsorptionWeight float64 `json:"absorption_weight" mapstructure:"absorption_weight"`
	LiquidityWeight  float64 `json:"liquidity_weight" mapstructure:"liquidity_weight"`
	DeltaWeight      float64 `json:"delta_weight" mapstructure:"delta_weight"`
	DarkPoolWeight   float64 `json:"darkpool_weight" mapstructure:"darkpool_weight"`

	MinConfidence      float64 `json:"min_confidence" mapstructure:"min_confidence"`
	EntryOffsetPct     float64 `json:"entry_offset_pct" mapstructure:"entry_offset_pct"`
	StopOffsetPct      float64 `json:"stop_offset_pct" mapstructure:"stop_offset_pct"`
	TargetOffsetPct    float64 `json:"target_offset_pct" mapstructure:"target_offset_pct"`
	OpportunityHistory int     `json:"opportunity_history" mapstructure:"opportunity_history"`
}

// DefaultFlowScorerConfig returns default order flow scorer configuration
func DefaultFlowScorerConfig() FlowScorerConfig {
	return FlowScorerConfig{
		ImbalanceWeight:    0.25,
		AbsorptionWeight:   0.20,
		LiquidityWeight:    0.20,
		DeltaWeight:        0.20,
		DarkPoolWeight:     0.15,
		MinConfidence:      0.6,
		EntryOffsetPct:     0.005,
		StopOffsetPct:      0.010,
		TargetOffsetPct:    0.015,
		OpportunityHistory: 200,
	}
}
