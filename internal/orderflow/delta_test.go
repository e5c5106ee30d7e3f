package orderflow

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"
)

type DeltaTestSuite struct {
	suite.Suite
	calc *CumulativeDeltaCalculator
}

func (suite *DeltaTestSuite) SetupTest() {
	config := DefaultDeltaConfig()
	config.LookbackBars = 5
	suite.calc = NewCumulativeDeltaCalculator(config, zaptest.NewLogger(suite.T()).Sugar())
}

func TestDeltaSuite(t *testing.T) {
	suite.Run(t, new(DeltaTestSuite))
}

// feedBars sends one trade per minute-and-a-second so every trade after
// the first rolls the previous bar
func (suite *DeltaTestSuite) feedBars(prices []float64, side Side) {
	for i, px := range prices {
		ts := testBase.Add(time.Duration(i) * 61 * time.Second)
		suite.calc.ProcessTrade(trade(ts, px, 100, side))
	}
}

func (suite *DeltaTestSuite) TestBarRollover() {
	suite.Nil(suite.calc.ProcessTrade(trade(testBase, 100, 50, SideBuy)))
	suite.Nil(suite.calc.ProcessTrade(trade(testBase.Add(30*time.Second), 100.5, 20, SideSell)))

	bar := suite.calc.ProcessTrade(trade(testBase.Add(61*time.Second), 101, 10, SideBuy))
	suite.Require().NotNil(bar)
	suite.True(bar.BuyVolume.Equal(decimal.NewFromInt(50)))
	suite.True(bar.SellVolume.Equal(decimal.NewFromInt(20)))
	suite.True(bar.Delta.Equal(decimal.NewFromInt(30)))
	suite.True(bar.CumulativeDelta.Equal(decimal.NewFromInt(30)))
	suite.Equal(2, bar.TradeCount)
	suite.True(bar.OpenPrice.Equal(decimal.NewFromInt(100)))
	suite.True(bar.ClosePrice.Equal(decimal.NewFromFloat(100.5)))
}

func (suite *DeltaTestSuite) TestVolumeBars() {
	config := DefaultDeltaConfig()
	config.BarMode = DeltaBarVolume
	config.BarVolume = decimal.NewFromInt(200)
	calc := NewCumulativeDeltaCalculator(config, zaptest.NewLogger(suite.T()).Sugar())

	suite.Nil(calc.ProcessTrade(trade(testBase, 100, 100, SideBuy)))
	suite.Nil(calc.ProcessTrade(trade(testBase.Add(time.Second), 100, 100, SideBuy)))
	bar := calc.ProcessTrade(trade(testBase.Add(2*time.Second), 100, 100, SideBuy))
	suite.Require().NotNil(bar)
	suite.True(bar.BuyVolume.Equal(decimal.NewFromInt(200)))
	suite.Equal(2, bar.TradeCount)
}

func (suite *DeltaTestSuite) TestCumulativeDeltaIncludesOpenBar() {
	suite.calc.ProcessTrade(trade(testBase, 100, 100, SideBuy))
	suite.calc.ProcessTrade(trade(testBase.Add(time.Second), 100, 30, SideSell))
	suite.True(suite.calc.CumulativeDelta(testExchange, testSymbol).Equal(decimal.NewFromInt(70)))
	suite.True(suite.calc.CumulativeDelta(testExchange, "ETH-USDT").IsZero())
}

func (suite *DeltaTestSuite) TestSidelessVolumeSplit() {
	aggressive := trade(testBase, 100, 40, "")
	aggressive.Aggressive = true
	buy, sell := classifyTradeVolume(aggressive)
	suite.True(buy.Equal(decimal.NewFromInt(40)))
	suite.True(sell.IsZero())

	buy, sell = classifyTradeVolume(trade(testBase, 100, 40, ""))
	suite.True(buy.Equal(decimal.NewFromInt(20)))
	suite.True(sell.Equal(decimal.NewFromInt(20)))
}

func (suite *DeltaTestSuite) TestBullishDivergence() {
	// Price grinding lower while every print is a buy: cumulative delta
	// rises against the tape
	suite.feedBars([]float64{100, 99, 98, 97, 96, 95}, SideBuy)

	div := suite.calc.DetectDivergence(testExchange, testSymbol)
	suite.Require().NotNil(div)
	suite.Equal(DivergenceBullish, div.Type)
	suite.Negative(div.PriceSlope)
	suite.Positive(div.DeltaSlope)
	suite.Equal(1.0, div.Confidence)
	suite.True(div.CurrentDelta.Equal(decimal.NewFromInt(500)))
}

func (suite *DeltaTestSuite) TestBearishDivergence() {
	suite.feedBars([]float64{100, 101, 102, 103, 104, 105}, SideSell)

	div := suite.calc.DetectDivergence(testExchange, testSymbol)
	suite.Require().NotNil(div)
	suite.Equal(DivergenceBearish, div.Type)
}

func (suite *DeltaTestSuite) TestAgreeingTrendsNoDivergence() {
	// Rising price on buy flow: slopes share a sign
	suite.feedBars([]float64{100, 101, 102, 103, 104, 105}, SideBuy)
	suite.Nil(suite.calc.DetectDivergence(testExchange, testSymbol))
}

func (suite *DeltaTestSuite) TestInsufficientBars() {
	suite.feedBars([]float64{100, 99, 98}, SideBuy) // only 2 completed bars
	suite.Nil(suite.calc.DetectDivergence(testExchange, testSymbol))
}

func (suite *DeltaTestSuite) TestRecentBarsLimit() {
	suite.feedBars([]float64{100, 99, 98, 97, 96, 95}, SideBuy)
	bars := suite.calc.RecentBars(testExchange, testSymbol, 3)
	suite.Len(bars, 3)
	suite.True(bars[2].ClosePrice.Equal(decimal.NewFromInt(96)))
}
