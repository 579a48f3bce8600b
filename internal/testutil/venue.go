package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/openpredict/crossarb/internal/venue"
	"github.com/openpredict/crossarb/pkg/types"
)

// ScriptedVenue is a programmable venue.Venue. Each behavior has a sane
// default (accept and fill everything); tests override the hooks they care
// about and inspect the recorded calls.
type ScriptedVenue struct {
	VenueKind types.VenueKind

	// Fixtures returned by the read-side methods.
	MarketIDs []string
	Markets   []*types.Market
	Books     map[string]*types.OrderBook
	Balance   float64

	// Optional per-call errors for the read side.
	FindErr  error
	BooksErr error

	// Hooks for the order side. A nil hook uses the default.
	PlaceFunc  func(o *types.Order) error
	CancelFunc func(o *types.Order) error
	StatusFunc func(o *types.Order) ([]*types.Trade, error)

	mu       sync.Mutex
	placed   []*types.Order
	canceled []*types.Order
	nextID   int64
}

var _ venue.Venue = (*ScriptedVenue)(nil)

// Kind returns the configured venue kind.
func (v *ScriptedVenue) Kind() types.VenueKind { return v.VenueKind }

// FindNewMarkets returns the fixture ids.
func (v *ScriptedVenue) FindNewMarkets(_ context.Context, limit int) ([]string, error) {
	if v.FindErr != nil {
		return nil, v.FindErr
	}
	if len(v.MarketIDs) > limit {
		return v.MarketIDs[:limit], nil
	}
	return v.MarketIDs, nil
}

// GetMarkets returns the fixture markets matching the ids.
func (v *ScriptedVenue) GetMarkets(_ context.Context, ids []string) ([]*types.Market, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []*types.Market
	for _, m := range v.Markets {
		if want[m.MarketID] {
			out = append(out, m)
		}
	}
	return out, nil
}

// GetOrderBooks returns the fixture books for the ids.
func (v *ScriptedVenue) GetOrderBooks(_ context.Context, ids []string) ([]*types.OrderBook, error) {
	if v.BooksErr != nil {
		return nil, v.BooksErr
	}
	var out []*types.OrderBook
	for _, id := range ids {
		if b, ok := v.Books[id]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

// GetBalance returns the fixture balance.
func (v *ScriptedVenue) GetBalance(_ context.Context) (float64, error) {
	return v.Balance, nil
}

// PlaceOrder records the order and runs the hook, defaulting to acceptance.
func (v *ScriptedVenue) PlaceOrder(_ context.Context, o *types.Order) error {
	v.mu.Lock()
	v.placed = append(v.placed, o)
	v.nextID++
	id := v.nextID
	v.mu.Unlock()

	if v.PlaceFunc != nil {
		return v.PlaceFunc(o)
	}
	o.VenueOrderID = fmt.Sprintf("%s-order-%d", v.VenueKind, id)
	return o.SetStatus(types.OrderOpen)
}

// CancelOrder records the cancellation and runs the hook.
func (v *ScriptedVenue) CancelOrder(_ context.Context, o *types.Order) error {
	v.mu.Lock()
	v.canceled = append(v.canceled, o)
	v.mu.Unlock()

	if v.CancelFunc != nil {
		return v.CancelFunc(o)
	}
	return venue.AdvanceStatus(o, types.OrderCanceled)
}

// GetOrderStatus runs the hook, defaulting to an immediate full fill.
func (v *ScriptedVenue) GetOrderStatus(_ context.Context, o *types.Order) ([]*types.Trade, error) {
	if v.StatusFunc != nil {
		return v.StatusFunc(o)
	}
	if o.Status.Terminal() {
		return nil, nil
	}
	o.FillSize = o.Size
	if err := venue.AdvanceStatus(o, types.OrderExecuted); err != nil {
		return nil, err
	}
	return []*types.Trade{{
		OrderID:      o.ID,
		VenueTradeID: fmt.Sprintf("fill-%s", o.ClientOrderID),
		Quantity:     o.Size,
		Price:        o.MaxPrice * 10,
	}}, nil
}

// Placed returns the orders passed to PlaceOrder, in call order.
func (v *ScriptedVenue) Placed() []*types.Order {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]*types.Order, len(v.placed))
	copy(out, v.placed)
	return out
}

// Canceled returns the orders passed to CancelOrder, in call order.
func (v *ScriptedVenue) Canceled() []*types.Order {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]*types.Order, len(v.canceled))
	copy(out, v.canceled)
	return out
}
