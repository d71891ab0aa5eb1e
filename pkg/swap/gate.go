package swap

import (
	"math/big"

	"github.com/YieldCraft-AI/contracts/pkg/util"
)

// Gate validates whether an order may execute given a reported price and the
// current time. It never mutates state, so it is safe to expose to anyone:
// external agents pre-validate here before paying for an execution attempt.
type Gate struct {
	store *Store
	clock util.Clock
}

func NewGate(store *Store, clock util.Clock) *Gate {
	return &Gate{store: store, clock: clock}
}

// CanExecute runs the execution predicate against the current clock.
// The reason string mirrors the boolean for observability.
func (g *Gate) CanExecute(orderID uint64, reportedPrice *big.Int) (bool, string) {
	ord, ok := g.store.GetOrder(orderID)
	if err := evaluate(ord, ok, reportedPrice, g.clock.Now().Unix()); err != nil {
		return false, err.Error()
	}
	return true, "order can be executed"
}

// evaluate is the single source of truth for execution eligibility. Checks
// short-circuit in order: exists, active, not expired, price met. The engine
// re-runs it under its own lock so the check and the state change that
// follows are one indivisible step.
func evaluate(ord *Order, exists bool, reportedPrice *big.Int, now int64) error {
	if !exists || ord == nil {
		return ErrInvalidOrder
	}
	if !ord.IsActive {
		return ErrInvalidOrder
	}
	if ord.Expired(now) {
		return ErrOrderExpired
	}
	if reportedPrice == nil || reportedPrice.Cmp(ord.TriggerPrice) < 0 {
		return ErrPriceNotMet
	}
	return nil
}
