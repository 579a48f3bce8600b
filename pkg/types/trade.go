package types

// Trade is a fill receipt attached to an Order. Trades are append-only.
type Trade struct {
	ID           int64
	OrderID      int64
	VenueTradeID string
	Quantity     int64
	Price        int64 // tenths of a cent
	ExecutedAt   int64 // epoch seconds
}
