package swap

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Order is a user's conditional-swap request with escrowed native funds.
// AmountIn, MinAmountOut and TriggerPrice are immutable after creation;
// only the lifecycle flags change, and never back to active.
type Order struct {
	ID    uint64         `json:"id"`
	Owner common.Address `json:"owner"`

	TokenOut     common.Address `json:"tokenOut"`
	AmountIn     *big.Int       `json:"amountIn"`     // escrowed tinybars
	MinAmountOut *big.Int       `json:"minAmountOut"` // slippage floor for the swap
	TriggerPrice *big.Int       `json:"triggerPrice"` // execute only when reported price >= trigger

	ExpirationTime int64 `json:"expirationTime"` // unix seconds
	CreatedAt      int64 `json:"createdAt"`

	IsActive   bool `json:"isActive"`
	IsExecuted bool `json:"isExecuted"`
}

// Expired reports whether the order is past its expiration at the given time.
// Expiry is never materialized in storage; an expired order stays IsActive
// until cancelled, it is simply ineligible for execution.
func (o *Order) Expired(now int64) bool {
	return now >= o.ExpirationTime
}

// Status derives the lifecycle state from the flags and the clock.
func (o *Order) Status(now int64) string {
	switch {
	case o.IsExecuted:
		return "executed"
	case o.IsActive && o.Expired(now):
		return "expired"
	case o.IsActive:
		return "active"
	default:
		return "cancelled"
	}
}

// ExecutionReceipt summarizes a successful execution.
type ExecutionReceipt struct {
	OrderID       uint64           `json:"orderId"`
	Owner         common.Address   `json:"owner"`
	TokenOut      common.Address   `json:"tokenOut"`
	AmountIn      *big.Int         `json:"amountIn"`
	Fee           *big.Int         `json:"fee"`
	AmountSwapped *big.Int         `json:"amountSwapped"` // AmountIn - Fee, forwarded to the router
	AmountOut     *big.Int         `json:"amountOut"`
	ReportedPrice *big.Int         `json:"reportedPrice"`
	Path          []common.Address `json:"path"`
	ExecutedAt    int64            `json:"executedAt"`
}

// OrderEvent is published on lifecycle transitions for observers (websocket feed, logs).
type OrderEvent struct {
	Type      string `json:"type"` // order_created | order_cancelled | order_executed | execution_failed
	OrderID   uint64 `json:"orderId"`
	Owner     string `json:"owner"`
	Detail    string `json:"detail,omitempty"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// Notifier receives lifecycle events. Implementations must not call back
// into the engine.
type Notifier interface {
	Publish(ev OrderEvent)
}
