// Package router selects swap routes and delegates execution to an external
// AMM venue. It performs no partial commits: any venue failure propagates
// unchanged to the caller.
package router

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Adapter is the swap venue boundary. Implementations: EVMRouter (live
// UniswapV2-style router over JSON-RPC) and SimRouter (in-memory venue for
// tests and dry runs).
type Adapter interface {
	// SwapExactNativeForTokens swaps amountIn native currency along path,
	// delivering at least minAmountOut of the final token to recipient.
	// The first path element must be the wrapped-native token.
	SwapExactNativeForTokens(ctx context.Context, amountIn, minAmountOut *big.Int, path []common.Address, recipient common.Address, deadline int64) (*big.Int, error)

	// NativePairReserve returns the wrapped-native-side reserve of the
	// direct pair with token, or zero if no pair exists.
	NativePairReserve(ctx context.Context, token common.Address) (*big.Int, error)

	// WrappedNative returns the wrapped-native token the venue routes
	// through.
	WrappedNative(ctx context.Context) (common.Address, error)
}

// Info describes the routing configuration, surfaced read-only to clients.
type Info struct {
	Router              common.Address `json:"router"`
	Factory             common.Address `json:"factory"`
	WrappedNative       common.Address `json:"wrappedNative"`
	Intermediate        common.Address `json:"intermediate"`
	DirectPairThreshold *big.Int       `json:"directPairThreshold"`
}

// PathPreview is the advisory routing answer for a target token.
type PathPreview struct {
	Path        []common.Address `json:"path"`
	Description string           `json:"description"`
	Direct      bool             `json:"direct"`
}

// PathFinder picks a route for native → tokenOut swaps: the direct pair when
// its wrapped-native reserve clears the liquidity threshold, otherwise the
// fixed multi-hop route through the intermediate liquidity token.
type PathFinder struct {
	venue Adapter
	info  Info
}

func NewPathFinder(venue Adapter, info Info) *PathFinder {
	return &PathFinder{venue: venue, info: info}
}

// Info returns the routing configuration.
func (f *PathFinder) Info() Info {
	return f.info
}

// SelectPath returns the route for tokenOut plus a human-readable
// description. Read-only: probing pair reserves does not commit anything.
func (f *PathFinder) SelectPath(ctx context.Context, tokenOut common.Address) ([]common.Address, string, error) {
	if tokenOut == f.info.WrappedNative {
		return nil, "", fmt.Errorf("cannot route wrapped-native to itself")
	}

	reserve, err := f.venue.NativePairReserve(ctx, tokenOut)
	if err != nil {
		return nil, "", fmt.Errorf("failed to probe direct pair: %w", err)
	}

	if reserve != nil && f.info.DirectPairThreshold != nil && reserve.Cmp(f.info.DirectPairThreshold) >= 0 {
		path := []common.Address{f.info.WrappedNative, tokenOut}
		return path, fmt.Sprintf("Direct path: WHBAR -> %s", tokenOut.Hex()), nil
	}

	// Fallback: fixed multi-hop through the high-liquidity bridging token.
	path := []common.Address{f.info.WrappedNative, f.info.Intermediate, tokenOut}
	return path, fmt.Sprintf("Multi-hop path: WHBAR -> USDC -> %s", tokenOut.Hex()), nil
}

// Preview returns the route SelectPath would take, without side effects.
func (f *PathFinder) Preview(ctx context.Context, tokenOut common.Address) (PathPreview, error) {
	path, desc, err := f.SelectPath(ctx, tokenOut)
	if err != nil {
		return PathPreview{}, err
	}
	return PathPreview{
		Path:        path,
		Description: desc,
		Direct:      len(path) == 2,
	}, nil
}
