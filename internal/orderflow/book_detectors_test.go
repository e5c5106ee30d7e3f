package orderflow

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// ImbalanceDetectorTestSuite tests bid/ask imbalance detection
type ImbalanceDetectorTestSuite struct {
	suite.Suite
	logger   *zap.SugaredLogger
	detector *ImbalanceDetector
}

func (suite *ImbalanceDetectorTestSuite) SetupTest() {
	suite.logger = zaptest.NewLogger(suite.T()).Sugar()
	suite.detector = NewImbalanceDetector(DefaultImbalanceConfig(), suite.logger)
}

func TestImbalanceDetectorSuite(t *testing.T) {
	suite.Run(t, new(ImbalanceDetectorTestSuite))
}

func (suite *ImbalanceDetectorTestSuite) TestBalancedBookNoSignal() {
	snap := book(testBase,
		uniformSide(100.00, -0.01, 5, 100),
		uniformSide(100.02, 0.01, 5, 100),
	)
	suite.Nil(suite.detector.Update(snap))
}

func (suite *ImbalanceDetectorTestSuite) TestBidImbalance() {
	snap := book(testBase,
		uniformSide(100.00, -0.01, 5, 300),
		uniformSide(100.02, 0.01, 5, 100),
	)
	sig := suite.detector.Update(snap)
	suite.Require().NotNil(sig)
	suite.Equal(SideBuy, sig.Direction)
	suite.InDelta(3.0, sig.Ratio, 1e-9)
	suite.Equal(ImbalanceStrong, sig.Strength)
	suite.GreaterOrEqual(sig.Confidence, 0.0)
	suite.LessOrEqual(sig.Confidence, 1.0)
}

func (suite *ImbalanceDetectorTestSuite) TestAskImbalance() {
	snap := book(testBase,
		uniformSide(100.00, -0.01, 5, 100),
		uniformSide(100.02, 0.01, 5, 600),
	)
	sig := suite.detector.Update(snap)
	suite.Require().NotNil(sig)
	suite.Equal(SideSell, sig.Direction)
	suite.Equal(ImbalanceExtreme, sig.Strength)
}

// TestMonotonicity verifies that for fixed ask volume, increasing bid
// volume never decreases the ratio or downgrades the strength
func (suite *ImbalanceDetectorTestSuite) TestMonotonicity() {
	rank := map[ImbalanceStrength]int{
		ImbalanceWeak: 0, ImbalanceModerate: 1, ImbalanceStrong: 2, ImbalanceExtreme: 3,
	}
	prevRatio := 0.0
	prevRank := -1
	for _, bidQty := range []float64{150, 200, 300, 500, 900} {
		snap := book(testBase,
			uniformSide(100.00, -0.01, 1, bidQty),
			uniformSide(100.02, 0.01, 1, 100),
		)
		sig := NewImbalanceDetector(DefaultImbalanceConfig(), suite.logger).Update(snap)
		suite.Require().NotNil(sig, "bid qty %f", bidQty)
		suite.GreaterOrEqual(sig.Ratio, prevRatio)
		suite.GreaterOrEqual(rank[sig.Strength], prevRank)
		prevRatio = sig.Ratio
		prevRank = rank[sig.Strength]
	}
}

func (suite *ImbalanceDetectorTestSuite) TestOneSidedBookNoSignal() {
	suite.Nil(suite.detector.Update(book(testBase, uniformSide(100.00, -0.01, 5, 100), nil)))
	suite.Nil(suite.detector.Update(book(testBase, nil, uniformSide(100.02, 0.01, 5, 100))))
	suite.Nil(suite.detector.Update(nil))
}

func (suite *ImbalanceDetectorTestSuite) TestRecentSignals() {
	for i := 0; i < 3; i++ {
		snap := book(testBase,
			uniformSide(100.00, -0.01, 5, 300),
			uniformSide(100.02, 0.01, 5, 100),
		)
		suite.NotNil(suite.detector.Update(snap))
	}
	suite.Len(suite.detector.RecentSignals(testExchange, testSymbol, 2), 2)
}

// LiquidityVoidTestSuite tests gap scanning and liquidity scoring
type LiquidityVoidTestSuite struct {
	suite.Suite
	detector *LiquidityVoidDetector
}

func (suite *LiquidityVoidTestSuite) SetupTest() {
	suite.detector = NewLiquidityVoidDetector(DefaultLiquidityVoidConfig(), zaptest.NewLogger(suite.T()).Sugar())
}

func TestLiquidityVoidSuite(t *testing.T) {
	suite.Run(t, new(LiquidityVoidTestSuite))
}

func (suite *LiquidityVoidTestSuite) TestTightBookNoVoids() {
	profile := suite.detector.Analyze(book(testBase,
		uniformSide(100.00, -0.01, 10, 100),
		uniformSide(100.02, 0.01, 10, 100),
	))
	suite.Require().NotNil(profile)
	suite.Empty(profile.Voids)
	suite.GreaterOrEqual(profile.LiquidityScore, 0.0)
	suite.LessOrEqual(profile.LiquidityScore, 100.0)
}

func (suite *LiquidityVoidTestSuite) TestGapDetected() {
	// 0.6% gap between the first and second ask level
	asks := []BookLevel{level(100.02, 100), level(100.62, 100), level(100.63, 100)}
	profile := suite.detector.Analyze(book(testBase, uniformSide(100.00, -0.01, 3, 100), asks))
	suite.Require().NotNil(profile)
	suite.Require().Len(profile.Voids, 1)
	suite.Equal(SideSell, profile.Voids[0].Side)
	suite.Equal(VoidModerate, profile.Voids[0].Severity)
}

func (suite *LiquidityVoidTestSuite) TestSeverityTiers() {
	cases := []struct {
		gapPct   float64
		severity VoidSeverity
	}{
		{0.002, VoidMinor},
		{0.006, VoidModerate},
		{0.012, VoidSevere},
		{0.025, VoidCritical},
	}
	for _, tc := range cases {
		suite.Equal(tc.severity, classifyVoidSeverity(tc.gapPct), "gap %f", tc.gapPct)
	}
}

func (suite *LiquidityVoidTestSuite) TestThinLevelGapIgnored() {
	// Gap behind a level thinner than the volume threshold is noise
	asks := []BookLevel{level(100.02, 5), level(100.62, 100)}
	profile := suite.detector.Analyze(book(testBase, uniformSide(100.00, -0.01, 3, 100), asks))
	suite.Require().NotNil(profile)
	suite.Empty(profile.Voids)
}

func (suite *LiquidityVoidTestSuite) TestInsufficientLevels() {
	suite.Nil(suite.detector.Analyze(book(testBase, uniformSide(100.00, -0.01, 1, 100), uniformSide(100.02, 0.01, 1, 100))))
	suite.Nil(suite.detector.Analyze(nil))
}

func (suite *LiquidityVoidTestSuite) TestScoreDegradesWithVoids() {
	clean := suite.detector.Analyze(book(testBase,
		uniformSide(100.00, -0.01, 10, 100),
		uniformSide(100.02, 0.01, 10, 100),
	))
	gappy := suite.detector.Analyze(book(testBase,
		[]BookLevel{level(100.00, 100), level(97.90, 100), level(95.80, 100)},
		[]BookLevel{level(100.02, 100), level(102.10, 100), level(104.20, 100)},
	))
	suite.Require().NotNil(clean)
	suite.Require().NotNil(gappy)
	suite.Greater(clean.LiquidityScore, gappy.LiquidityScore)
}
