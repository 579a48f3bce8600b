package types

import (
	"fmt"

	"github.com/google/uuid"
)

// Side is the outcome side an order trades.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Opposite returns the other outcome side.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// Action is the order direction.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// OrderType distinguishes limit from market orders.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// TimeInForce controls order lifetime at the venue.
type TimeInForce string

const (
	TIFGoodTillCancel TimeInForce = "GTC"
	TIFImmediate      TimeInForce = "IOC"
	TIFFillOrKill     TimeInForce = "FOK"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending         OrderStatus = "pending"
	OrderOpen            OrderStatus = "open"
	OrderPartiallyFilled OrderStatus = "partially_filled"
	OrderExecuted        OrderStatus = "executed"
	OrderCanceled        OrderStatus = "canceled"
	OrderFailed          OrderStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderExecuted, OrderCanceled, OrderFailed:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// step. Terminal states never regress; self-transitions are allowed so
// reconciliation refreshes are no-ops.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	if s == next {
		return true
	}
	if s.Terminal() {
		return false
	}
	switch s {
	case OrderPending:
		return next == OrderOpen || next == OrderFailed
	case OrderOpen:
		return next == OrderPartiallyFilled || next == OrderExecuted || next == OrderCanceled
	case OrderPartiallyFilled:
		return next == OrderExecuted || next == OrderCanceled
	}
	return false
}

// Order is a buy or sell instruction on one venue. Prices are in cents at
// this layer (the venue API boundary); the sizer's tenths-of-cent prices are
// divided by ten and clamped before an Order is constructed.
type Order struct {
	ID            int64       // internal id, assigned by persistence on insert
	ClientOrderID string      // idempotency token sent to the venue
	Venue         VenueKind
	MarketID      string
	Side          Side
	Action        Action
	Type          OrderType
	Size          int64 // contracts
	Price         int64 // limit price, cents
	MaxPrice      int64 // market-buy cap, cents
	TimeInForce   TimeInForce
	VenueOrderID  string // assigned by the venue after placement
	Status        OrderStatus
	FillSize      int64
}

// NewLimitBuyOrder builds a GTC limit buy. Price must be 1..99 cents.
func NewLimitBuyOrder(venue VenueKind, marketID string, side Side, size, price int64) (*Order, error) {
	if price <= 0 || price >= 100 {
		return nil, fmt.Errorf("limit price must be between 1 and 99 cents, got %d", price)
	}
	return &Order{
		ClientOrderID: uuid.NewString(),
		Venue:         venue,
		MarketID:      marketID,
		Side:          side,
		Action:        ActionBuy,
		Type:          OrderTypeLimit,
		Size:          size,
		Price:         price,
		TimeInForce:   TIFGoodTillCancel,
		Status:        OrderPending,
	}, nil
}

// NewMarketBuyOrder builds an IOC market buy capped at maxPrice cents per
// contract. MaxPrice must be 1..100 cents.
func NewMarketBuyOrder(venue VenueKind, marketID string, side Side, size, maxPrice int64) (*Order, error) {
	if maxPrice <= 0 || maxPrice > 100 {
		return nil, fmt.Errorf("max price must be between 1 and 100 cents, got %d", maxPrice)
	}
	return &Order{
		ClientOrderID: uuid.NewString(),
		Venue:         venue,
		MarketID:      marketID,
		Side:          side,
		Action:        ActionBuy,
		Type:          OrderTypeMarket,
		Size:          size,
		MaxPrice:      maxPrice,
		TimeInForce:   TIFImmediate,
		Status:        OrderPending,
	}, nil
}

// SetStatus applies a lifecycle transition, refusing regressions out of
// terminal states.
func (o *Order) SetStatus(next OrderStatus) error {
	if !o.Status.CanTransition(next) {
		return fmt.Errorf("illegal order transition %s -> %s (order %s)", o.Status, next, o.ClientOrderID)
	}
	o.Status = next
	return nil
}
