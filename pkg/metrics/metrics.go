package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ScoringTicks counts scoring passes by scorer (microstructure/orderflow)
var ScoringTicks = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "orderflow_scoring_ticks_total",
		Help: "Total number of scoring ticks processed",
	},
	[]string{"scorer", "symbol"},
)

// ScoringLatency records latency distribution for one scoring tick
var ScoringLatency = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "orderflow_scoring_latency_seconds",
		Help:    "Latency in seconds of one full scoring tick",
		Buckets: prometheus.DefBuckets,
	},
)

// Detector signal metrics
var (
	DetectorSignals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderflow_detector_signals_total",
			Help: "Signals emitted per detector",
		},
		[]string{"detector", "symbol"},
	)

	ManipulationRisk = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orderflow_manipulation_risk",
			Help: "Latest manipulation risk score per instrument",
		},
		[]string{"exchange", "symbol"},
	)

	OverallScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orderflow_overall_score",
			Help: "Latest overall market quality score per instrument",
		},
		[]string{"exchange", "symbol"},
	)

	OpportunitiesEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderflow_opportunities_total",
			Help: "Trading opportunities emitted by signal strength",
		},
		[]string{"signal"},
	)

	AlertsRaised = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderflow_alerts_total",
			Help: "Alerts appended to the queue by type",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(ScoringTicks, ScoringLatency)
	prometheus.MustRegister(DetectorSignals, ManipulationRisk, OverallScore, OpportunitiesEmitted, AlertsRaised)
}
