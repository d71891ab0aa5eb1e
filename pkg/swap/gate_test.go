package swap

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func activeOrder(trigger int64, expiration int64) *Order {
	return &Order{
		ID:             1,
		Owner:          common.HexToAddress("0xAA00000000000000000000000000000000000000"),
		TokenOut:       common.HexToAddress("0x0000000000000000000000000000000000120f46"),
		AmountIn:       big.NewInt(20_000_000),
		MinAmountOut:   big.NewInt(0),
		TriggerPrice:   big.NewInt(trigger),
		ExpirationTime: expiration,
		IsActive:       true,
	}
}

func TestEvaluate(t *testing.T) {
	const now = int64(1_700_000_000)

	cases := []struct {
		name   string
		ord    *Order
		exists bool
		price  *big.Int
		want   error
	}{
		{
			name:   "executable at trigger",
			ord:    activeOrder(100, now+3600),
			exists: true,
			price:  big.NewInt(100),
			want:   nil,
		},
		{
			name:   "executable above trigger",
			ord:    activeOrder(100, now+3600),
			exists: true,
			price:  big.NewInt(101),
			want:   nil,
		},
		{
			name:   "missing order",
			ord:    nil,
			exists: false,
			price:  big.NewInt(100),
			want:   ErrInvalidOrder,
		},
		{
			name: "inactive order",
			ord: func() *Order {
				o := activeOrder(100, now+3600)
				o.IsActive = false
				return o
			}(),
			exists: true,
			price:  big.NewInt(100),
			want:   ErrInvalidOrder,
		},
		{
			name:   "expired exactly at boundary",
			ord:    activeOrder(100, now),
			exists: true,
			price:  big.NewInt(100),
			want:   ErrOrderExpired,
		},
		{
			name:   "price below trigger",
			ord:    activeOrder(100, now+3600),
			exists: true,
			price:  big.NewInt(99),
			want:   ErrPriceNotMet,
		},
		{
			name:   "nil price",
			ord:    activeOrder(100, now+3600),
			exists: true,
			price:  nil,
			want:   ErrPriceNotMet,
		},
		{
			// Expiry is checked before price, so an expired order with a
			// satisfied trigger still reports expiry
			name:   "expired beats price",
			ord:    activeOrder(100, now-1),
			exists: true,
			price:  big.NewInt(1000),
			want:   ErrOrderExpired,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := evaluate(tc.ord, tc.exists, tc.price, now)
			if !errors.Is(err, tc.want) {
				t.Errorf("evaluate() = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestOrderStatus(t *testing.T) {
	const now = int64(1_700_000_000)

	ord := activeOrder(100, now+3600)
	if got := ord.Status(now); got != "active" {
		t.Errorf("status = %s, want active", got)
	}
	if got := ord.Status(now + 7200); got != "expired" {
		t.Errorf("status past expiry = %s, want expired", got)
	}

	ord.IsActive = false
	if got := ord.Status(now); got != "cancelled" {
		t.Errorf("status = %s, want cancelled", got)
	}

	ord.IsExecuted = true
	if got := ord.Status(now); got != "executed" {
		t.Errorf("status = %s, want executed", got)
	}
}
