package swap

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// PayoutKind labels an outbound native transfer from the engine's balance.
type PayoutKind string

const (
	PayoutRefund   PayoutKind = "refund"    // cancelled order escrow back to owner
	PayoutSwap     PayoutKind = "swap"      // escrow net of fee forwarded to the router
	PayoutFeeClaim PayoutKind = "fee_claim" // admin fee withdrawal
)

// Payout records a single outbound transfer. Together with the held balance
// these records make the solvency invariant auditable.
type Payout struct {
	Kind      PayoutKind     `json:"kind"`
	OrderID   uint64         `json:"orderId,omitempty"`
	To        common.Address `json:"to"`
	Amount    *big.Int       `json:"amount"`
	Timestamp int64          `json:"timestamp"` // unix milliseconds
}

// PayoutSink receives payout records. The engine stays ledger-agnostic; the
// sink is where an integration wires the actual value transfer.
type PayoutSink interface {
	Record(p Payout)
}

// LogSink writes payouts to the structured log.
type LogSink struct {
	Log *zap.Logger
}

func (s *LogSink) Record(p Payout) {
	s.Log.Info("payout",
		zap.String("kind", string(p.Kind)),
		zap.Uint64("order_id", p.OrderID),
		zap.String("to", p.To.Hex()),
		zap.String("amount", p.Amount.String()),
	)
}
