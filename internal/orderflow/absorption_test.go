package orderflow

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"
)

type AbsorptionTestSuite struct {
	suite.Suite
	detector *AbsorptionPatternDetector
}

func (suite *AbsorptionTestSuite) SetupTest() {
	suite.detector = NewAbsorptionPatternDetector(DefaultAbsorptionConfig(), zaptest.NewLogger(suite.T()).Sugar())
}

func TestAbsorptionSuite(t *testing.T) {
	suite.Run(t, new(AbsorptionTestSuite))
}

// depletionBook fixes the price ladder and varies only the top bid size
func depletionBook(ts time.Time, topBidQty float64) *OrderBookSnapshot {
	bids := []BookLevel{level(100.00, topBidQty), level(99.99, 500), level(99.98, 500)}
	asks := uniformSide(100.02, 0.01, 3, 500)
	return book(ts, bids, asks)
}

// TestDepletionRoundTrip feeds a constant-price sequence with the top bid
// shrinking and expects an absorption event matching the depletion
func (suite *AbsorptionTestSuite) TestDepletionRoundTrip() {
	qty := 1000.0
	var event *AbsorptionEvent
	for i := 0; i <= 10; i++ {
		snap := depletionBook(testBase.Add(time.Duration(i)*2*time.Second), qty)
		event = suite.detector.Update(snap)
		qty -= 80
	}
	suite.Require().NotNil(event)
	suite.Equal(SideBuy, event.Side)
	// 10 steps of 80 depleted between the compared snapshots
	suite.True(event.VolumeAbsorbed.Equal(decimal.NewFromInt(800)),
		"absorbed %s", event.VolumeAbsorbed)
	suite.LessOrEqual(event.PriceMovement, DefaultAbsorptionConfig().MaxPriceMovement)
	suite.True(event.Price.Equal(decimal.NewFromFloat(100.00)))
	suite.GreaterOrEqual(event.Confidence, 0.0)
	suite.LessOrEqual(event.Confidence, 1.0)
}

func (suite *AbsorptionTestSuite) TestInsufficientHistory() {
	for i := 0; i < 10; i++ {
		snap := depletionBook(testBase.Add(time.Duration(i)*2*time.Second), 1000)
		suite.Nil(suite.detector.Update(snap))
	}
}

func (suite *AbsorptionTestSuite) TestPriceMoveSuppressesEvent() {
	// Deplete volume but let the mid run away beyond the allowed movement
	for i := 0; i <= 10; i++ {
		px := 100.00 + float64(i)*0.05
		bids := []BookLevel{level(px, 1000-float64(i)*80), level(px-0.01, 500)}
		asks := []BookLevel{level(px+0.02, 500), level(px+0.03, 500)}
		snap := book(testBase.Add(time.Duration(i)*2*time.Second), bids, asks)
		suite.Nil(suite.detector.Update(snap))
	}
}

func (suite *AbsorptionTestSuite) TestTooFastNoEvent() {
	// Same depletion but compressed under the minimum duration
	for i := 0; i <= 10; i++ {
		snap := depletionBook(testBase.Add(time.Duration(i)*500*time.Millisecond), 1000-float64(i)*80)
		suite.Nil(suite.detector.Update(snap))
	}
}

func (suite *AbsorptionTestSuite) TestAccumulationPattern() {
	// Keep depleting the bid side well past the minimum event count
	qty := 5000.0
	for i := 0; i <= 16; i++ {
		snap := depletionBook(testBase.Add(time.Duration(i)*2*time.Second), qty)
		suite.detector.Update(snap)
		qty -= 100
	}
	pattern := suite.detector.DetectPattern(testExchange, testSymbol)
	suite.Require().NotNil(pattern)
	suite.Equal(AbsorptionAccumulation, pattern.PatternType)
	suite.GreaterOrEqual(pattern.EventCount, DefaultAbsorptionConfig().MinEventsForPattern)
	suite.GreaterOrEqual(pattern.Confidence, 0.0)
	suite.LessOrEqual(pattern.Confidence, 1.0)
}

func (suite *AbsorptionTestSuite) TestNoPatternWithoutEvents() {
	suite.Nil(suite.detector.DetectPattern(testExchange, testSymbol))
}
