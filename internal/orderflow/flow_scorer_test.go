package orderflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"
)

type FlowScorerTestSuite struct {
	suite.Suite
	scorer *OrderFlowScorer
}

func (suite *FlowScorerTestSuite) SetupTest() {
	suite.scorer = NewOrderFlowScorer(DefaultFlowScorerConfig(), zaptest.NewLogger(suite.T()).Sugar())
}

func TestFlowScorerSuite(t *testing.T) {
	suite.Run(t, new(FlowScorerTestSuite))
}

// TestBullishAlignment stacks a bid-heavy book with buy flow and expects
// a strong buy with an emitted opportunity
func (suite *FlowScorerTestSuite) TestBullishAlignment() {
	snap := book(testBase, uniformSide(100.00, -0.01, 3, 500), uniformSide(100.02, 0.01, 3, 100))
	trades := []Trade{
		*trade(testBase, 100.00, 100, SideBuy),
		*trade(testBase.Add(time.Second), 100.00, 100, SideBuy),
	}

	score := suite.scorer.CalculateScore(testBase.Add(time.Second), snap, trades)
	suite.Require().NotNil(score)

	suite.Equal(100.0, score.ImbalanceScore) // 5:1 book, saturated confidence
	suite.InDelta(66.67, score.LiquidityScore, 0.01)
	suite.Equal(25.0, score.DeltaScore) // positive cumulative delta fallback
	suite.Zero(score.AbsorptionScore)
	suite.Zero(score.DarkPoolScore)
	suite.Equal(3, score.IndicatorCount)
	suite.InDelta(66.67, score.CompositeScore, 0.01)
	suite.Equal(SignalStrongBuy, score.Signal)
	suite.InDelta(0.8, score.Confidence, 1e-9)

	opps := suite.scorer.GetRecentOpportunities(testExchange, testSymbol, 5)
	suite.Require().Len(opps, 1)
	opp := opps[0]
	suite.Equal(SideBuy, opp.Direction)
	suite.Equal(SignalStrongBuy, opp.Signal)
	mid := snap.MidPrice()
	suite.True(opp.EntryPrice.LessThan(mid))
	suite.True(opp.StopLoss.LessThan(opp.EntryPrice))
	suite.True(opp.TargetPrice.GreaterThan(mid))
	suite.InDelta(4.0, opp.RiskReward, 1e-9)
	suite.InDelta(0.8, opp.Confidence, 1e-9)
}

func (suite *FlowScorerTestSuite) TestBearishAlignment() {
	snap := book(testBase, uniformSide(100.00, -0.01, 3, 100), uniformSide(100.02, 0.01, 3, 500))
	trades := []Trade{
		*trade(testBase, 100.02, 100, SideSell),
		*trade(testBase.Add(time.Second), 100.02, 100, SideSell),
	}

	score := suite.scorer.CalculateScore(testBase.Add(time.Second), snap, trades)
	suite.Require().NotNil(score)
	suite.Equal(SignalStrongSell, score.Signal)
	suite.Negative(score.CompositeScore)

	opps := suite.scorer.GetRecentOpportunities(testExchange, testSymbol, 5)
	suite.Require().Len(opps, 1)
	suite.Equal(SideSell, opps[0].Direction)
	suite.True(opps[0].EntryPrice.GreaterThan(snap.MidPrice()))
	suite.True(opps[0].TargetPrice.LessThan(opps[0].EntryPrice))
}

// TestQuietMarket produces a neutral signal and no opportunity
func (suite *FlowScorerTestSuite) TestQuietMarket() {
	snap := book(testBase, uniformSide(100.00, -0.01, 3, 100), uniformSide(100.02, 0.01, 3, 100))

	score := suite.scorer.CalculateScore(testBase, snap, nil)
	suite.Require().NotNil(score)
	suite.Equal(SignalNeutral, score.Signal)
	suite.Equal(1, score.IndicatorCount) // only the liquidity profile
	suite.Zero(score.CompositeScore)
	suite.Zero(score.Confidence)
	suite.Empty(suite.scorer.GetRecentOpportunities(testExchange, testSymbol, 5))
}

func (suite *FlowScorerTestSuite) TestNilBook() {
	suite.Nil(suite.scorer.CalculateScore(testBase, nil, nil))
}

func (suite *FlowScorerTestSuite) TestLatestScore() {
	_, ok := suite.scorer.LatestScore(testExchange, testSymbol)
	suite.False(ok)

	snap := book(testBase, uniformSide(100.00, -0.01, 3, 100), uniformSide(100.02, 0.01, 3, 100))
	suite.scorer.CalculateScore(testBase, snap, nil)

	latest, ok := suite.scorer.LatestScore(testExchange, testSymbol)
	suite.True(ok)
	suite.Equal(testBase, latest.Timestamp)
}

func TestClassifySignal(t *testing.T) {
	cases := []struct {
		composite float64
		want      SignalStrength
	}{
		{75, SignalStrongBuy},
		{50, SignalStrongBuy},
		{30, SignalBuy},
		{0, SignalNeutral},
		{-20, SignalNeutral},
		{-30, SignalSell},
		{-50, SignalSell},
		{-75, SignalStrongSell},
	}
	for _, tc := range cases {
		if got := classifySignal(tc.composite); got != tc.want {
			t.Fatalf("classifySignal(%v) = %v, want %v", tc.composite, got, tc.want)
		}
	}
}
