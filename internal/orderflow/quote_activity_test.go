package orderflow

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"
)

type HFTTestSuite struct {
	suite.Suite
	detector *HFTActivityDetector
}

func (suite *HFTTestSuite) SetupTest() {
	suite.detector = NewHFTActivityDetector(DefaultHFTConfig(), zaptest.NewLogger(suite.T()).Sugar())
}

func TestHFTSuite(t *testing.T) {
	suite.Run(t, new(HFTTestSuite))
}

// feedAddCancelPairs sends n add/cancel pairs with the given lifetime,
// alternating sides, spaced evenly over just under a second
func (suite *HFTTestSuite) feedAddCancelPairs(n int, spacing, lifetime time.Duration) {
	for i := 0; i < n; i++ {
		side := SideBuy
		px := 100.00
		if i%2 == 1 {
			side = SideSell
			px = 100.02
		}
		id := fmt.Sprintf("q%d", i)
		added := testBase.Add(time.Duration(i) * spacing)
		suite.detector.ProcessQuote(quote(added, id, QuoteActionAdd, px, 10, side))
		suite.detector.ProcessQuote(quote(added.Add(lifetime), id, QuoteActionCancel, px, 10, side))
	}
}

func (suite *HFTTestSuite) TestShortLivedQuotes() {
	suite.feedAddCancelPairs(10, 90*time.Millisecond, 50*time.Millisecond)
	for i := 0; i < 3; i++ {
		tr := trade(testBase.Add(time.Duration(i)*300*time.Millisecond), 100.01, 5, SideBuy)
		suite.detector.ProcessTrade(tr)
	}

	sig := suite.detector.Analyze(testExchange, testSymbol)
	suite.Require().NotNil(sig)
	suite.Equal(20.0, sig.MessageRate)
	suite.InDelta(0.5, sig.CancelRatio, 1e-9)
	suite.Equal(50*time.Millisecond, sig.AvgQuoteLifetime)
	suite.InDelta(0.15, sig.ParticipationRate, 1e-9)
	suite.Equal(HFTArbitrage, sig.Archetype)
}

func (suite *HFTTestSuite) TestMarketMakingArchetype() {
	// Mostly cancels on both sides with passive fills
	for i := 0; i < 20; i++ {
		action := QuoteActionCancel
		if i < 4 {
			action = QuoteActionAdd
		}
		side := SideBuy
		if i%2 == 1 {
			side = SideSell
		}
		ts := testBase.Add(time.Duration(i) * 47 * time.Millisecond)
		suite.detector.ProcessQuote(quote(ts, fmt.Sprintf("m%d", i), action, 100.00, 10, side))
	}
	for i := 0; i < 3; i++ {
		suite.detector.ProcessTrade(trade(testBase.Add(time.Duration(i)*300*time.Millisecond), 100.01, 5, SideBuy))
	}

	sig := suite.detector.Analyze(testExchange, testSymbol)
	suite.Require().NotNil(sig)
	suite.Equal(HFTMarketMaking, sig.Archetype)
	suite.InDelta(0.8, sig.CancelRatio, 1e-9)
	suite.InDelta(0.8, sig.Confidence, 1e-9)
	suite.Zero(sig.AggressionScore)
}

func (suite *HFTTestSuite) TestPredatoryArchetype() {
	config := DefaultHFTConfig()
	config.MinParticipation = 0.04
	detector := NewHFTActivityDetector(config, zaptest.NewLogger(suite.T()).Sugar())

	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("p%d", i)
		added := testBase.Add(time.Duration(i) * 19 * time.Millisecond)
		detector.ProcessQuote(quote(added, id, QuoteActionAdd, 100.00, 10, SideBuy))
		detector.ProcessQuote(quote(added.Add(10*time.Millisecond), id, QuoteActionCancel, 100.00, 10, SideBuy))
	}
	for i := 0; i < 4; i++ {
		tr := trade(testBase.Add(time.Duration(i)*200*time.Millisecond), 100.00, 5, SideBuy)
		tr.Aggressive = true
		detector.ProcessTrade(tr)
	}

	sig := detector.Analyze(testExchange, testSymbol)
	suite.Require().NotNil(sig)
	suite.Equal(HFTPredatory, sig.Archetype)
	suite.Equal(10*time.Millisecond, sig.AvgQuoteLifetime)
}

func (suite *HFTTestSuite) TestNoTradesNoSignature() {
	suite.feedAddCancelPairs(10, 90*time.Millisecond, 50*time.Millisecond)
	suite.Nil(suite.detector.Analyze(testExchange, testSymbol))
}

func (suite *HFTTestSuite) TestLowRateNoSignature() {
	suite.feedAddCancelPairs(3, 200*time.Millisecond, 50*time.Millisecond)
	suite.detector.ProcessTrade(trade(testBase.Add(100*time.Millisecond), 100.01, 5, SideBuy))
	suite.Nil(suite.detector.Analyze(testExchange, testSymbol))
}

func (suite *HFTTestSuite) TestUnknownInstrument() {
	suite.Nil(suite.detector.Analyze(testExchange, "ETH-USDT"))
}

type StuffingTestSuite struct {
	suite.Suite
	identifier *QuoteStuffingIdentifier
}

func (suite *StuffingTestSuite) SetupTest() {
	suite.identifier = NewQuoteStuffingIdentifier(DefaultStuffingConfig(), zaptest.NewLogger(suite.T()).Sugar())
}

func TestStuffingSuite(t *testing.T) {
	suite.Run(t, new(StuffingTestSuite))
}

func (suite *StuffingTestSuite) TestBurst() {
	var event *QuoteStuffingEvent
	var last time.Time
	for i := 0; i < 15; i++ {
		last = testBase.Add(time.Duration(i) * 5 * time.Millisecond)
		q := quote(last, fmt.Sprintf("b%d", i), QuoteActionAdd, 100.00, 10, SideBuy)
		if e := suite.identifier.ProcessQuote(q); e != nil {
			event = e
		}
	}
	suite.Require().NotNil(event)
	suite.Equal(StuffingBurst, event.PatternType)
	suite.GreaterOrEqual(event.PeakRate, 100.0)
	suite.Equal(StuffingLow, event.Severity)
	suite.Equal(0.6, event.Confidence)

	suite.True(suite.identifier.Active(testExchange, testSymbol, last))
	suite.False(suite.identifier.Active(testExchange, testSymbol, last.Add(3*time.Second)))
}

func (suite *StuffingTestSuite) TestSustained() {
	var event *QuoteStuffingEvent
	for i := 0; i < 60; i++ {
		ts := testBase.Add(time.Duration(i) * 16 * time.Millisecond)
		q := quote(ts, fmt.Sprintf("s%d", i), QuoteActionModify, 100.00, 10, SideBuy)
		if e := suite.identifier.ProcessQuote(q); e != nil && event == nil {
			event = e
		}
	}
	suite.Require().NotNil(event)
	suite.Equal(StuffingSustained, event.PatternType)
	suite.GreaterOrEqual(event.PeakRate, 50.0)
	suite.Equal(StuffingMedium, event.Severity)
	suite.Equal(0.7, event.Confidence)
}

func (suite *StuffingTestSuite) TestOscillating() {
	var event *QuoteStuffingEvent
	for i := 0; i < 40; i++ {
		px := 100.00
		if i%2 == 1 {
			px = 100.01
		}
		ts := testBase.Add(time.Duration(i) * 90 * time.Millisecond)
		q := quote(ts, fmt.Sprintf("o%d", i), QuoteActionAdd, px, 10, SideBuy)
		if e := suite.identifier.ProcessQuote(q); e != nil {
			event = e
		}
	}
	suite.Require().NotNil(event)
	suite.Equal(StuffingOscillating, event.PatternType)
	suite.Equal(2, event.PriceLevels)
}

func (suite *StuffingTestSuite) TestInsufficientHistory() {
	for i := 0; i < 9; i++ {
		ts := testBase.Add(time.Duration(i) * time.Millisecond)
		suite.Nil(suite.identifier.ProcessQuote(quote(ts, fmt.Sprintf("i%d", i), QuoteActionAdd, 100.00, 10, SideBuy)))
	}
}
