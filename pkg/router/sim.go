package router

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/YieldCraft-AI/contracts/pkg/util"
)

// SimRouter is an in-memory constant-product venue with the same semantics
// as a UniswapV2-style router: per-hop 0.3% fee, slippage floor, deadline.
// Used for devnet mode and tests; supports failure injection and a swap
// hook so reentrancy behavior can be exercised.
type SimRouter struct {
	mu    sync.Mutex
	whbar common.Address
	pools map[poolKey]*simPool
	clock util.Clock

	failNext error
	// OnSwap, if set, runs after the deadline check and before reserves are
	// touched. Tests use it to simulate a venue calling back into the engine.
	OnSwap func()
}

type poolKey struct {
	a, b common.Address
}

type simPool struct {
	reserveA *big.Int // reserve of key.a
	reserveB *big.Int // reserve of key.b
}

func sortedKey(a, b common.Address) (poolKey, bool) {
	// Canonical ordering so (a,b) and (b,a) hit the same pool.
	if a.Hex() < b.Hex() {
		return poolKey{a, b}, false
	}
	return poolKey{b, a}, true
}

func NewSimRouter(whbar common.Address) *SimRouter {
	return &SimRouter{
		whbar: whbar,
		pools: make(map[poolKey]*simPool),
		clock: util.RealClock{},
	}
}

// SetClock swaps the deadline clock. Callers that drive the engine with an
// injected clock must hand the same clock to the venue, otherwise deadlines
// computed by one are judged by the other.
func (r *SimRouter) SetClock(clock util.Clock) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock = clock
}

// AddPool creates or replaces a liquidity pool between two tokens.
func (r *SimRouter) AddPool(tokenA, tokenB common.Address, reserveA, reserveB *big.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, swapped := sortedKey(tokenA, tokenB)
	if swapped {
		reserveA, reserveB = reserveB, reserveA
	}
	r.pools[key] = &simPool{
		reserveA: new(big.Int).Set(reserveA),
		reserveB: new(big.Int).Set(reserveB),
	}
}

// FailNextSwap makes the next swap call fail with err, then clears.
func (r *SimRouter) FailNextSwap(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNext = err
}

func (r *SimRouter) WrappedNative(ctx context.Context) (common.Address, error) {
	return r.whbar, nil
}

// NativePairReserve returns the WHBAR-side reserve of the direct pair with
// token, zero if the pool does not exist.
func (r *SimRouter) NativePairReserve(ctx context.Context, token common.Address) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, swapped := sortedKey(r.whbar, token)
	pool, ok := r.pools[key]
	if !ok {
		return new(big.Int), nil
	}
	if swapped {
		return new(big.Int).Set(pool.reserveB), nil
	}
	return new(big.Int).Set(pool.reserveA), nil
}

// SwapExactNativeForTokens walks the path applying the constant-product
// formula with a 0.3% fee per hop, updating reserves on success.
func (r *SimRouter) SwapExactNativeForTokens(ctx context.Context, amountIn, minAmountOut *big.Int, path []common.Address, recipient common.Address, deadline int64) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return nil, err
	}
	if len(path) < 2 {
		return nil, fmt.Errorf("INVALID_PATH")
	}
	if path[0] != r.whbar {
		return nil, fmt.Errorf("INVALID_PATH: first hop must be wrapped native")
	}
	if deadline < r.clock.Now().Unix() {
		return nil, fmt.Errorf("EXPIRED")
	}

	if r.OnSwap != nil {
		hook := r.OnSwap
		r.mu.Unlock()
		hook()
		r.mu.Lock()
	}

	// Dry-run all hops first so a mid-path failure leaves reserves untouched.
	amounts := make([]*big.Int, len(path))
	amounts[0] = new(big.Int).Set(amountIn)
	for i := 0; i < len(path)-1; i++ {
		key, swapped := sortedKey(path[i], path[i+1])
		pool, ok := r.pools[key]
		if !ok {
			return nil, fmt.Errorf("INSUFFICIENT_LIQUIDITY: no pair %s/%s", path[i].Hex(), path[i+1].Hex())
		}
		reserveIn, reserveOut := pool.reserveA, pool.reserveB
		if swapped {
			reserveIn, reserveOut = reserveOut, reserveIn
		}
		out := getAmountOut(amounts[i], reserveIn, reserveOut)
		if out.Sign() <= 0 {
			return nil, fmt.Errorf("INSUFFICIENT_LIQUIDITY: pair %s/%s", path[i].Hex(), path[i+1].Hex())
		}
		amounts[i+1] = out
	}

	final := amounts[len(amounts)-1]
	if minAmountOut != nil && final.Cmp(minAmountOut) < 0 {
		return nil, fmt.Errorf("INSUFFICIENT_OUTPUT_AMOUNT: got %s, want >= %s", final, minAmountOut)
	}

	// Commit reserve updates.
	for i := 0; i < len(path)-1; i++ {
		key, swapped := sortedKey(path[i], path[i+1])
		pool := r.pools[key]
		if swapped {
			pool.reserveB.Add(pool.reserveB, amounts[i])
			pool.reserveA.Sub(pool.reserveA, amounts[i+1])
		} else {
			pool.reserveA.Add(pool.reserveA, amounts[i])
			pool.reserveB.Sub(pool.reserveB, amounts[i+1])
		}
	}

	return new(big.Int).Set(final), nil
}

// getAmountOut applies the UniswapV2 formula:
// out = in*997*reserveOut / (reserveIn*1000 + in*997)
func getAmountOut(amountIn, reserveIn, reserveOut *big.Int) *big.Int {
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return new(big.Int)
	}
	inWithFee := new(big.Int).Mul(amountIn, big.NewInt(997))
	numerator := new(big.Int).Mul(inWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, big.NewInt(1000))
	denominator.Add(denominator, inWithFee)
	return numerator.Div(numerator, denominator)
}

var _ Adapter = (*SimRouter)(nil)
