package router

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	testWHBAR = common.HexToAddress("0x0000000000000000000000000000000000003aD2")
	testUSDC  = common.HexToAddress("0x00000000000000000000000000000000000014F5")
	testSAUCE = common.HexToAddress("0x0000000000000000000000000000000000120f46")
)

func newTestFinder(sim *SimRouter) *PathFinder {
	return NewPathFinder(sim, Info{
		WrappedNative:       testWHBAR,
		Intermediate:        testUSDC,
		DirectPairThreshold: big.NewInt(1_000_000_000), // 10 HBAR
	})
}

func TestSelectPathDirectWhenLiquid(t *testing.T) {
	sim := NewSimRouter(testWHBAR)
	// WHBAR-side reserve exactly at the threshold qualifies
	sim.AddPool(testWHBAR, testSAUCE, big.NewInt(1_000_000_000), big.NewInt(5_000_000_000))

	path, desc, err := newTestFinder(sim).SelectPath(context.Background(), testSAUCE)
	if err != nil {
		t.Fatalf("select path failed: %v", err)
	}
	if len(path) != 2 || path[0] != testWHBAR || path[1] != testSAUCE {
		t.Errorf("path = %v, want [WHBAR, SAUCE]", path)
	}
	if !strings.HasPrefix(desc, "Direct path: WHBAR -> ") {
		t.Errorf("description = %q, want direct-path prefix", desc)
	}
}

func TestSelectPathMultiHopWhenThin(t *testing.T) {
	sim := NewSimRouter(testWHBAR)
	// Direct pair exists but its WHBAR reserve is below the threshold
	sim.AddPool(testWHBAR, testSAUCE, big.NewInt(999_999_999), big.NewInt(5_000_000_000))

	path, desc, err := newTestFinder(sim).SelectPath(context.Background(), testSAUCE)
	if err != nil {
		t.Fatalf("select path failed: %v", err)
	}
	if len(path) != 3 || path[0] != testWHBAR || path[1] != testUSDC || path[2] != testSAUCE {
		t.Errorf("path = %v, want [WHBAR, USDC, SAUCE]", path)
	}
	if !strings.HasPrefix(desc, "Multi-hop path: WHBAR -> USDC -> ") {
		t.Errorf("description = %q, want multi-hop prefix", desc)
	}
}

func TestSelectPathNoDirectPair(t *testing.T) {
	sim := NewSimRouter(testWHBAR)

	path, _, err := newTestFinder(sim).SelectPath(context.Background(), testSAUCE)
	if err != nil {
		t.Fatalf("select path failed: %v", err)
	}
	if len(path) != 3 {
		t.Errorf("path length = %d without a direct pair, want 3", len(path))
	}
}

func TestSelectPathRejectsWrappedNative(t *testing.T) {
	sim := NewSimRouter(testWHBAR)
	if _, _, err := newTestFinder(sim).SelectPath(context.Background(), testWHBAR); err == nil {
		t.Fatal("routing WHBAR to itself should fail")
	}
}

func TestPreview(t *testing.T) {
	sim := NewSimRouter(testWHBAR)
	sim.AddPool(testWHBAR, testSAUCE, big.NewInt(2_000_000_000), big.NewInt(5_000_000_000))

	preview, err := newTestFinder(sim).Preview(context.Background(), testSAUCE)
	if err != nil {
		t.Fatalf("preview failed: %v", err)
	}
	if !preview.Direct {
		t.Error("preview should report a direct route")
	}
	if len(preview.Path) != 2 {
		t.Errorf("preview path length = %d, want 2", len(preview.Path))
	}
}

func TestGetAmountOut(t *testing.T) {
	// 1000 in against 100000/100000 reserves:
	// 1000*997*100000 / (100000*1000 + 1000*997) = 987
	out := getAmountOut(big.NewInt(1000), big.NewInt(100000), big.NewInt(100000))
	if out.Cmp(big.NewInt(987)) != 0 {
		t.Errorf("getAmountOut = %s, want 987", out)
	}

	// Empty reserves produce zero, never a panic
	out = getAmountOut(big.NewInt(1000), big.NewInt(0), big.NewInt(100000))
	if out.Sign() != 0 {
		t.Errorf("getAmountOut with empty reserve = %s, want 0", out)
	}
}

func TestSimSwapMultiHop(t *testing.T) {
	sim := NewSimRouter(testWHBAR)
	sim.AddPool(testWHBAR, testUSDC, big.NewInt(1_000_000_000), big.NewInt(1_000_000_000))
	sim.AddPool(testUSDC, testSAUCE, big.NewInt(1_000_000_000), big.NewInt(1_000_000_000))

	recipient := common.HexToAddress("0xAA00000000000000000000000000000000000000")
	path := []common.Address{testWHBAR, testUSDC, testSAUCE}

	out, err := sim.SwapExactNativeForTokens(context.Background(),
		big.NewInt(1_000_000), big.NewInt(0), path, recipient, 9_999_999_999)
	if err != nil {
		t.Fatalf("swap failed: %v", err)
	}
	// Two hops at 0.3% each against deep, balanced pools
	if out.Sign() <= 0 || out.Cmp(big.NewInt(1_000_000)) >= 0 {
		t.Errorf("amountOut = %s, want between 0 and 1000000", out)
	}
}

func TestSimSwapEnforcesSlippageFloor(t *testing.T) {
	sim := NewSimRouter(testWHBAR)
	sim.AddPool(testWHBAR, testUSDC, big.NewInt(1_000_000_000), big.NewInt(1_000_000_000))

	path := []common.Address{testWHBAR, testUSDC}
	_, err := sim.SwapExactNativeForTokens(context.Background(),
		big.NewInt(1_000_000), big.NewInt(1_000_000), path, common.Address{}, 9_999_999_999)
	if err == nil || !strings.Contains(err.Error(), "INSUFFICIENT_OUTPUT_AMOUNT") {
		t.Fatalf("got %v, want INSUFFICIENT_OUTPUT_AMOUNT", err)
	}

	// Failed swap leaves reserves untouched
	reserve, _ := sim.NativePairReserve(context.Background(), testUSDC)
	if reserve.Cmp(big.NewInt(1_000_000_000)) != 0 {
		t.Errorf("reserve = %s after rejected swap, want 1000000000", reserve)
	}
}

func TestSimSwapValidation(t *testing.T) {
	sim := NewSimRouter(testWHBAR)
	sim.AddPool(testWHBAR, testUSDC, big.NewInt(1_000_000_000), big.NewInt(1_000_000_000))

	// Path must start with the wrapped-native token
	_, err := sim.SwapExactNativeForTokens(context.Background(),
		big.NewInt(1000), big.NewInt(0),
		[]common.Address{testUSDC, testWHBAR}, common.Address{}, 9_999_999_999)
	if err == nil || !strings.Contains(err.Error(), "INVALID_PATH") {
		t.Errorf("got %v, want INVALID_PATH", err)
	}

	// Expired deadline
	_, err = sim.SwapExactNativeForTokens(context.Background(),
		big.NewInt(1000), big.NewInt(0),
		[]common.Address{testWHBAR, testUSDC}, common.Address{}, 1)
	if err == nil || !strings.Contains(err.Error(), "EXPIRED") {
		t.Errorf("got %v, want EXPIRED", err)
	}

	// Missing pair
	_, err = sim.SwapExactNativeForTokens(context.Background(),
		big.NewInt(1000), big.NewInt(0),
		[]common.Address{testWHBAR, testSAUCE}, common.Address{}, 9_999_999_999)
	if err == nil || !strings.Contains(err.Error(), "INSUFFICIENT_LIQUIDITY") {
		t.Errorf("got %v, want INSUFFICIENT_LIQUIDITY", err)
	}
}

type frozenClock struct{ now time.Time }

func (c frozenClock) Now() time.Time { return c.now }

// Deadlines are judged by the venue's injected clock, not wall time, so a
// caller computing deadlines from the same clock always agrees with the
// venue regardless of when the process runs.
func TestSimSwapDeadlineUsesInjectedClock(t *testing.T) {
	const now = int64(1_700_000_000)

	sim := NewSimRouter(testWHBAR)
	sim.SetClock(frozenClock{now: time.Unix(now, 0)})
	sim.AddPool(testWHBAR, testUSDC, big.NewInt(1_000_000_000), big.NewInt(1_000_000_000))
	path := []common.Address{testWHBAR, testUSDC}

	if _, err := sim.SwapExactNativeForTokens(context.Background(),
		big.NewInt(1000), big.NewInt(0), path, common.Address{}, now); err != nil {
		t.Fatalf("swap at deadline boundary failed: %v", err)
	}

	_, err := sim.SwapExactNativeForTokens(context.Background(),
		big.NewInt(1000), big.NewInt(0), path, common.Address{}, now-1)
	if err == nil || !strings.Contains(err.Error(), "EXPIRED") {
		t.Fatalf("got %v, want EXPIRED", err)
	}
}

func TestSimFailureInjection(t *testing.T) {
	sim := NewSimRouter(testWHBAR)
	sim.AddPool(testWHBAR, testUSDC, big.NewInt(1_000_000_000), big.NewInt(1_000_000_000))
	path := []common.Address{testWHBAR, testUSDC}

	injected := errors.New("venue down")
	sim.FailNextSwap(injected)

	_, err := sim.SwapExactNativeForTokens(context.Background(),
		big.NewInt(1000), big.NewInt(0), path, common.Address{}, 9_999_999_999)
	if !errors.Is(err, injected) {
		t.Fatalf("got %v, want injected error", err)
	}

	// Injection clears after one call
	if _, err := sim.SwapExactNativeForTokens(context.Background(),
		big.NewInt(1000), big.NewInt(0), path, common.Address{}, 9_999_999_999); err != nil {
		t.Fatalf("second swap failed: %v", err)
	}
}
