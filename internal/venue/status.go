package venue

import "github.com/openpredict/crossarb/pkg/types"

// AdvanceStatus moves an order to the venue-observed target state, passing
// through OPEN when the local copy lags venue truth (an order found EXECUTED
// while locally PENDING was necessarily accepted first). Terminal states
// never regress; an illegal target surfaces as an error.
func AdvanceStatus(o *types.Order, target types.OrderStatus) error {
	if o.Status == target {
		return nil
	}
	if o.Status == types.OrderPending &&
		target != types.OrderOpen && target != types.OrderFailed {
		if err := o.SetStatus(types.OrderOpen); err != nil {
			return err
		}
	}
	return o.SetStatus(target)
}
