package orderflow

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"
)

type DarkPoolTestSuite struct {
	suite.Suite
	scanner *DarkPoolActivityScanner
}

func (suite *DarkPoolTestSuite) SetupTest() {
	suite.scanner = NewDarkPoolActivityScanner(DefaultDarkPoolConfig(), zaptest.NewLogger(suite.T()).Sugar())
}

func TestDarkPoolSuite(t *testing.T) {
	suite.Run(t, new(DarkPoolTestSuite))
}

func (suite *DarkPoolTestSuite) TestPriceDeviation() {
	suite.scanner.UpdateMarketPrice(testExchange, testSymbol, decimal.NewFromInt(100))

	prints := suite.scanner.ProcessTrades([]Trade{*trade(testBase, 100.5, 10, "")})
	suite.Require().Len(prints, 1)
	suite.Equal(DarkPoolPriceDeviation, prints[0].Heuristic)
	suite.Equal(DirectionBuy, prints[0].Direction)
	suite.Equal(1.0, prints[0].Confidence) // 0.5% deviation, twice the threshold

	prints = suite.scanner.ProcessTrades([]Trade{*trade(testBase.Add(time.Second), 99, 10, "")})
	suite.Require().Len(prints, 1)
	suite.Equal(DirectionSell, prints[0].Direction)
}

func (suite *DarkPoolTestSuite) TestDeviationBelowThresholdIgnored() {
	suite.scanner.UpdateMarketPrice(testExchange, testSymbol, decimal.NewFromInt(100))
	suite.Empty(suite.scanner.ProcessTrades([]Trade{*trade(testBase, 100.1, 10, "")}))
}

func (suite *DarkPoolTestSuite) TestSizeAnomalyUnknownDirectionDecay() {
	// Ten ordinary prints establish the baseline notional of 10k
	for i := 0; i < 10; i++ {
		suite.Empty(suite.scanner.ProcessTrades([]Trade{*trade(testBase.Add(time.Duration(i)*time.Second), 100, 100, "")}))
	}

	// A sideless print 100x the baseline with no reference price
	prints := suite.scanner.ProcessTrades([]Trade{*trade(testBase.Add(10*time.Second), 100, 10000, "")})
	suite.Require().Len(prints, 1)
	suite.Equal(DarkPoolSizeAnomaly, prints[0].Heuristic)
	suite.Equal(DirectionUnknown, prints[0].Direction)
	suite.InDelta(0.6, prints[0].Confidence, 1e-9)
}

func (suite *DarkPoolTestSuite) TestVolumeSpikeOnBucketRollover() {
	batch := []Trade{
		*trade(testBase, 100, 2000, SideBuy),
		*trade(testBase.Add(10*time.Second), 100, 2000, SideBuy),
		*trade(testBase.Add(20*time.Second), 100, 2000, SideBuy),
	}
	suite.Empty(suite.scanner.ProcessTrades(batch)) // bucket still open

	prints := suite.scanner.ProcessTrades([]Trade{*trade(testBase.Add(61*time.Second), 100, 10, SideBuy)})
	suite.Require().Len(prints, 1)
	suite.Equal(DarkPoolVolumeSpike, prints[0].Heuristic)
	suite.Equal(DirectionBuy, prints[0].Direction)
	suite.True(prints[0].Volume.Equal(decimal.NewFromInt(6000)))
	suite.True(prints[0].Notional.Equal(decimal.NewFromInt(600000)))
	suite.InDelta(0.55, prints[0].Confidence, 1e-9)
	suite.Equal(testBase, prints[0].Timestamp)
}

func (suite *DarkPoolTestSuite) TestCloseWindowPrint() {
	closeTime := time.Date(2025, 6, 2, 20, 50, 0, 0, time.UTC)
	prints := suite.scanner.ProcessTrades([]Trade{*trade(closeTime, 100, 600, SideSell)})
	suite.Require().Len(prints, 1)
	suite.Equal(DarkPoolTimePattern, prints[0].Heuristic)
	suite.Equal(DirectionSell, prints[0].Direction)
	suite.Equal(0.5, prints[0].Confidence)
}

func (suite *DarkPoolTestSuite) TestCloseWindowRequiresSize() {
	closeTime := time.Date(2025, 6, 2, 20, 50, 0, 0, time.UTC)
	suite.Empty(suite.scanner.ProcessTrades([]Trade{*trade(closeTime, 100, 1, SideSell)}))
}

func (suite *DarkPoolTestSuite) TestDeterministicClassification() {
	batch := make([]Trade, 0, 12)
	for i := 0; i < 10; i++ {
		batch = append(batch, *trade(testBase.Add(time.Duration(i)*time.Second), 100, 100, ""))
	}
	batch = append(batch, *trade(testBase.Add(10*time.Second), 100, 10000, ""))
	batch = append(batch, *trade(testBase.Add(11*time.Second), 100.5, 10, ""))

	other := NewDarkPoolActivityScanner(DefaultDarkPoolConfig(), zaptest.NewLogger(suite.T()).Sugar())
	suite.scanner.UpdateMarketPrice(testExchange, testSymbol, decimal.NewFromInt(100))
	other.UpdateMarketPrice(testExchange, testSymbol, decimal.NewFromInt(100))

	suite.Equal(other.ProcessTrades(batch), suite.scanner.ProcessTrades(batch))
}

func (suite *DarkPoolTestSuite) TestFlowSummary() {
	suite.Nil(suite.scanner.FlowSummary(testExchange, testSymbol))

	suite.scanner.UpdateMarketPrice(testExchange, testSymbol, decimal.NewFromInt(100))
	suite.scanner.ProcessTrades([]Trade{
		*trade(testBase, 100.5, 10, ""),
		*trade(testBase.Add(time.Second), 99, 10, ""),
	})

	flow := suite.scanner.FlowSummary(testExchange, testSymbol)
	suite.Require().NotNil(flow)
	suite.Equal(2, flow.PrintCount)
	suite.True(flow.BuyNotional.GreaterThan(decimal.Zero))
	suite.True(flow.SellNotional.GreaterThan(decimal.Zero))
	suite.GreaterOrEqual(flow.NetBias, -1.0)
	suite.LessOrEqual(flow.NetBias, 1.0)
	suite.Positive(flow.AvgConfidence)
}

func TestInClockWindow(t *testing.T) {
	cases := []struct {
		name       string
		hour, min  int
		start, end string
		want       bool
	}{
		{"inside", 20, 50, "20:45", "21:00", true},
		{"outside", 12, 0, "20:45", "21:00", false},
		{"boundary", 21, 0, "20:45", "21:00", true},
		{"wraps midnight", 0, 30, "23:00", "01:00", true},
		{"malformed disables", 20, 50, "", "21:00", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := time.Date(2025, 6, 2, tc.hour, tc.min, 0, 0, time.UTC)
			if got := inClockWindow(ts, tc.start, tc.end); got != tc.want {
				t.Fatalf("inClockWindow(%02d:%02d, %q, %q) = %v, want %v",
					tc.hour, tc.min, tc.start, tc.end, got, tc.want)
			}
		})
	}
}
