package types

import "sort"

// Level is one price level of an order book side. Price is in tenths of a
// cent (a unit payout is exactly 1000); Quantity is whole contracts.
type Level struct {
	Price    int64 `json:"price"`
	Quantity int64 `json:"quantity"`
}

// BookSide holds the bid and ask level sequences for one side of a binary
// market, each sorted ascending by price.
type BookSide struct {
	Bid []Level `json:"bid"`
	Ask []Level `json:"ask"`
}

// OrderBook is a snapshot of both sides of a binary market at a moment in
// time. Adapters are the sole site responsible for converting venue-native
// prices to tenths of a cent and fractional sizes to whole contracts.
type OrderBook struct {
	Venue     VenueKind `json:"venue"`
	MarketID  string    `json:"market_id"`
	Timestamp int64     `json:"timestamp"` // epoch milliseconds
	Yes       BookSide  `json:"yes"`
	No        BookSide  `json:"no"`
}

// SortLevels sorts every level sequence ascending by price. Adapters call
// this before handing a book to the sizer; the sizer's binary search is only
// sound on ascending, non-decreasing marginal price curves.
func (b *OrderBook) SortLevels() {
	for _, levels := range [][]Level{b.Yes.Bid, b.Yes.Ask, b.No.Bid, b.No.Ask} {
		sort.Slice(levels, func(i, j int) bool { return levels[i].Price < levels[j].Price })
	}
}

// BestAsk returns the lowest ask of a level sequence, or false when empty.
func BestAsk(levels []Level) (Level, bool) {
	if len(levels) == 0 {
		return Level{}, false
	}
	return levels[0], true
}
