package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOrderStatusTransitions(t *testing.T) {
	tests := []struct {
		from OrderStatus
		to   OrderStatus
		ok   bool
	}{
		{OrderPending, OrderOpen, true},
		{OrderPending, OrderFailed, true},
		{OrderPending, OrderExecuted, false},
		{OrderPending, OrderCanceled, false},
		{OrderOpen, OrderPartiallyFilled, true},
		{OrderOpen, OrderExecuted, true},
		{OrderOpen, OrderCanceled, true},
		{OrderOpen, OrderFailed, false},
		{OrderOpen, OrderPending, false},
		{OrderPartiallyFilled, OrderExecuted, true},
		{OrderPartiallyFilled, OrderCanceled, true},
		{OrderPartiallyFilled, OrderOpen, false},
		// Terminal states never regress.
		{OrderExecuted, OrderOpen, false},
		{OrderExecuted, OrderCanceled, false},
		{OrderCanceled, OrderOpen, false},
		{OrderFailed, OrderOpen, false},
		// Self-transitions are reconciliation no-ops.
		{OrderExecuted, OrderExecuted, true},
		{OrderOpen, OrderOpen, true},
	}

	for _, tt := range tests {
		require.Equal(t, tt.ok, tt.from.CanTransition(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestSetStatusRejectsIllegalTransition(t *testing.T) {
	o, err := NewMarketBuyOrder(VenueKalshi, "FED-CUT", SideYes, 10, 40)
	require.NoError(t, err)

	require.NoError(t, o.SetStatus(OrderOpen))
	require.NoError(t, o.SetStatus(OrderExecuted))

	err = o.SetStatus(OrderCanceled)
	require.Error(t, err)
	require.Equal(t, OrderExecuted, o.Status)
}

func TestNewLimitBuyOrderValidatesPrice(t *testing.T) {
	_, err := NewLimitBuyOrder(VenueKalshi, "FED-CUT", SideYes, 10, 0)
	require.Error(t, err)
	_, err = NewLimitBuyOrder(VenueKalshi, "FED-CUT", SideYes, 10, 100)
	require.Error(t, err)

	o, err := NewLimitBuyOrder(VenueKalshi, "FED-CUT", SideNo, 10, 55)
	require.NoError(t, err)
	require.Equal(t, OrderPending, o.Status)
	require.Equal(t, TIFGoodTillCancel, o.TimeInForce)
	require.NotEmpty(t, o.ClientOrderID)
}

func TestNewMarketBuyOrderValidatesCap(t *testing.T) {
	_, err := NewMarketBuyOrder(VenuePolymarket, "0xfed", SideYes, 10, 0)
	require.Error(t, err)
	_, err = NewMarketBuyOrder(VenuePolymarket, "0xfed", SideYes, 10, 101)
	require.Error(t, err)

	o, err := NewMarketBuyOrder(VenuePolymarket, "0xfed", SideYes, 10, 100)
	require.NoError(t, err)
	require.Equal(t, TIFImmediate, o.TimeInForce)
	require.Equal(t, OrderTypeMarket, o.Type)
}

func TestSideOpposite(t *testing.T) {
	require.Equal(t, SideNo, SideYes.Opposite())
	require.Equal(t, SideYes, SideNo.Opposite())
}
