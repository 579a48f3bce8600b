package arbitrage

import (
	"math"

	"github.com/openpredict/crossarb/pkg/types"
)

// Config holds the sizing constraints.
type Config struct {
	// ProfitThreshold is the minimum fractional profit margin.
	ProfitThreshold float64
	// ExpectedSlippage is the expected adverse execution drift.
	ExpectedSlippage float64
	// MaxCost caps per-opportunity spend in tenths of a cent; 0 means
	// uncapped.
	MaxCost int64
}

type candidate struct {
	oppType types.OpportunityType
	curve1  Curve // leg bought on venue 1
	curve2  Curve // leg bought on venue 2
}

// FindOpportunity evaluates both candidate trades for a pair of books
// (YES on venue 1 + NO on venue 2, and the mirror) and returns the sized
// opportunity with the lower cost per share, or nil when neither candidate
// admits a profitable quantity. b1 and b2 must belong to the two markets of
// the pair in canonical order.
func FindOpportunity(pair types.MarketPair, b1, b2 *types.OrderBook, cfg Config) *types.Opportunity {
	candidates := []candidate{
		{
			oppType: types.OppYes1No2,
			curve1:  NewCurve(b1.Yes.Ask),
			curve2:  NewCurve(b2.No.Ask),
		},
		{
			oppType: types.OppYes2No1,
			curve1:  NewCurve(b1.No.Ask),
			curve2:  NewCurve(b2.Yes.Ask),
		},
	}

	var best *types.Opportunity
	for _, c := range candidates {
		SizerEvaluationsTotal.Inc()
		opp := sizeCandidate(c, pair, cfg)
		if opp == nil {
			continue
		}
		// Ties break toward fewer shares: the later candidate must be
		// strictly cheaper per share to displace the first.
		if best == nil || opp.CostPerShare < best.CostPerShare {
			best = opp
		}
	}
	if best != nil {
		OpportunitiesFoundTotal.WithLabelValues(string(best.Type)).Inc()
		OpportunitySharesHistogram.Observe(float64(best.Shares))
	}
	return best
}

func sizeCandidate(c candidate, pair types.MarketPair, cfg Config) *types.Opportunity {
	hi := c.curve1.Depth()
	if d := c.curve2.Depth(); d < hi {
		hi = d
	}
	if hi == 0 {
		return nil
	}

	// Quantities whose marginal prices sum to the unit payout or beyond cost
	// more than the guaranteed revenue; they are inadmissible regardless of
	// thresholds and cap the search from above.
	hi = searchLargest(hi, func(x int64) bool {
		m1, _ := c.curve1.MarginalAt(x)
		m2, _ := c.curve2.MarginalAt(x)
		return m1+m2 < UnitPayout
	})
	if hi == 0 {
		return nil
	}

	margin := (1 + cfg.ExpectedSlippage) * (1 + cfg.ProfitThreshold)
	shares := searchLargest(hi, func(x int64) bool {
		cost, ok := combinedCost(c, x)
		if !ok {
			return false
		}
		required := int64(math.Ceil(float64(cost) * margin))
		return UnitPayout*x >= required
	})

	if cfg.MaxCost > 0 {
		costBound := searchLargest(hi, func(x int64) bool {
			cost, ok := combinedCost(c, x)
			return ok && cost <= cfg.MaxCost
		})
		if costBound < shares {
			shares = costBound
		}
	}

	if shares <= 0 {
		return nil
	}

	totalCost, _ := combinedCost(c, shares)
	maxPrice1, _ := c.curve1.MarginalAt(shares)
	maxPrice2, _ := c.curve2.MarginalAt(shares)

	return &types.Opportunity{
		Type:         c.oppType,
		Shares:       shares,
		TotalCost:    totalCost,
		CostPerShare: totalCost / shares,
		MaxPrice1:    maxPrice1,
		MaxPrice2:    maxPrice2,
		PairKey:      pair.Key(),
	}
}

func combinedCost(c candidate, x int64) (int64, bool) {
	c1, ok := c.curve1.CostOf(x)
	if !ok {
		return 0, false
	}
	c2, ok := c.curve2.CostOf(x)
	if !ok {
		return 0, false
	}
	return c1 + c2, true
}

// searchLargest returns the largest x in [1, hi] satisfying ok, or 0 when
// none does. ok must be monotone: true on a prefix, false after.
func searchLargest(hi int64, ok func(int64) bool) int64 {
	if hi <= 0 || !ok(1) {
		return 0
	}
	lo := int64(1)
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		if ok(mid) {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}
