// Package arbitrage turns pairs of opposing order books into sized
// cross-venue opportunities. All prices are tenths of a cent so the unit
// payout is exactly 1000 and sizing arithmetic stays integral.
package arbitrage

import (
	"sort"

	"github.com/openpredict/crossarb/pkg/types"
)

// UnitPayout is the resolution value of one contract in tenths of a cent.
const UnitPayout = 1000

type curvePoint struct {
	cumQty   int64
	cumCost  int64
	marginal int64
}

// Curve is the cumulative (quantity, cost, marginal price) table built from
// an ascending level sequence. The binary searches in the sizer are only
// sound when the marginal column is non-decreasing, which ascending input
// levels guarantee.
type Curve struct {
	points []curvePoint
}

// NewCurve builds the depth curve from levels sorted ascending by price.
// Levels with non-positive quantity are skipped.
func NewCurve(levels []types.Level) Curve {
	var (
		pts  []curvePoint
		qty  int64
		cost int64
	)
	for _, l := range levels {
		if l.Quantity <= 0 {
			continue
		}
		qty += l.Quantity
		cost += l.Price * l.Quantity
		pts = append(pts, curvePoint{cumQty: qty, cumCost: cost, marginal: l.Price})
	}
	return Curve{points: pts}
}

// Depth returns the total quantity available on the curve.
func (c Curve) Depth() int64 {
	if len(c.points) == 0 {
		return 0
	}
	return c.points[len(c.points)-1].cumQty
}

func (c Curve) pointAt(x int64) (curvePoint, bool) {
	if x <= 0 || x > c.Depth() {
		return curvePoint{}, false
	}
	i := sort.Search(len(c.points), func(i int) bool {
		return c.points[i].cumQty >= x
	})
	return c.points[i], true
}

// CostOf returns the cost of buying the first x contracts off the curve,
// false when x exceeds depth.
func (c Curve) CostOf(x int64) (int64, bool) {
	p, ok := c.pointAt(x)
	if !ok {
		return 0, false
	}
	return p.cumCost - p.marginal*(p.cumQty-x), true
}

// MarginalAt returns the marginal price paid for the x-th contract, the
// worst price a taker of x contracts must accept.
func (c Curve) MarginalAt(x int64) (int64, bool) {
	p, ok := c.pointAt(x)
	if !ok {
		return 0, false
	}
	return p.marginal, true
}
