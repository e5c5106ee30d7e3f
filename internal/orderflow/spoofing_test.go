package orderflow

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"
)

type SpoofingTestSuite struct {
	suite.Suite
	detector *SpoofingDetector
}

func (suite *SpoofingTestSuite) SetupTest() {
	suite.detector = NewSpoofingDetector(DefaultSpoofingConfig(), zaptest.NewLogger(suite.T()).Sugar())
}

func TestSpoofingSuite(t *testing.T) {
	suite.Run(t, new(SpoofingTestSuite))
}

func quietBook(ts time.Time) *OrderBookSnapshot {
	return book(ts, uniformSide(100.00, -0.01, 6, 100), uniformSide(100.02, 0.01, 6, 100))
}

func (suite *SpoofingTestSuite) TestInsufficientHistory() {
	suite.Nil(suite.detector.Update(quietBook(testBase)))
	suite.Nil(suite.detector.Update(quietBook(testBase.Add(time.Second))))
}

// TestLayering walls up three deep bid levels, pulls them, and expects a
// single layering event on the bid side
func (suite *SpoofingTestSuite) TestLayering() {
	suite.detector.Update(quietBook(testBase))

	layered := quietBook(testBase.Add(time.Second))
	for i := 2; i <= 4; i++ {
		layered.Bids[i].Quantity = decimal.NewFromInt(1000)
	}
	suite.detector.Update(layered)

	events := suite.detector.Update(quietBook(testBase.Add(2 * time.Second)))
	suite.Require().Len(events, 1)
	suite.Equal(SpoofingLayering, events[0].PatternType)
	suite.Equal(SideBuy, events[0].Side)
	suite.Len(events[0].Prices, 3)
	suite.True(events[0].PeakSize.Equal(decimal.NewFromInt(1000)))
	suite.InDelta(0.7, events[0].Confidence, 1e-9)
}

// TestMomentumIgnition places an outsized top bid, moves the mid up ten
// ticks, then pulls the order
func (suite *SpoofingTestSuite) TestMomentumIgnition() {
	ignition := quietBook(testBase)
	ignition.Bids[0].Quantity = decimal.NewFromInt(1000)
	suite.detector.Update(ignition)

	moved := book(testBase.Add(time.Second), uniformSide(100.10, -0.01, 6, 100), uniformSide(100.12, 0.01, 6, 100))
	suite.detector.Update(moved)

	after := book(testBase.Add(2*time.Second), uniformSide(100.10, -0.01, 6, 100), uniformSide(100.12, 0.01, 6, 100))
	events := suite.detector.Update(after)
	suite.Require().Len(events, 1)
	suite.Equal(SpoofingMomentumIgnition, events[0].PatternType)
	suite.Equal(SideBuy, events[0].Side)
	suite.True(events[0].PeakSize.Equal(decimal.NewFromInt(1000)))
	suite.InDelta(0.9, events[0].Confidence, 1e-9) // double the required move
}

// TestFlashOrder shows an outsized ask for exactly one snapshot
func (suite *SpoofingTestSuite) TestFlashOrder() {
	suite.detector.Update(quietBook(testBase))

	flashed := quietBook(testBase.Add(time.Second))
	flashed.Asks = append([]BookLevel{flashed.Asks[0], level(100.025, 1000)}, flashed.Asks[1:]...)
	suite.detector.Update(flashed)

	events := suite.detector.Update(quietBook(testBase.Add(2 * time.Second)))
	suite.Require().Len(events, 1)
	suite.Equal(SpoofingFlash, events[0].PatternType)
	suite.Equal(SideSell, events[0].Side)
	suite.True(events[0].PeakSize.Equal(decimal.NewFromInt(1000)))
	suite.InDelta(0.75, events[0].Confidence, 1e-9)
}

func (suite *SpoofingTestSuite) TestQuietBookNoEvents() {
	for i := 0; i < 5; i++ {
		suite.Empty(suite.detector.Update(quietBook(testBase.Add(time.Duration(i) * time.Second))))
	}
}

func (suite *SpoofingTestSuite) TestEventAccounting() {
	suite.detector.Update(quietBook(testBase))
	layered := quietBook(testBase.Add(time.Second))
	for i := 2; i <= 4; i++ {
		layered.Bids[i].Quantity = decimal.NewFromInt(1000)
	}
	suite.detector.Update(layered)
	suite.detector.Update(quietBook(testBase.Add(2 * time.Second)))

	suite.Len(suite.detector.RecentEvents(testExchange, testSymbol, 10), 1)
	suite.Equal(1, suite.detector.EventsSince(testExchange, testSymbol, testBase))
	suite.Equal(0, suite.detector.EventsSince(testExchange, testSymbol, testBase.Add(time.Minute)))
}
