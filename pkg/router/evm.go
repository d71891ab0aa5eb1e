package router

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Minimal ABI fragments for a UniswapV2-style router (SaucerSwap V1), its
// factory and pair contracts.
const routerABIJSON = `[
	{"type":"function","name":"swapExactETHForTokens","stateMutability":"payable","inputs":[{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[{"name":"amounts","type":"uint256[]"}]},
	{"type":"function","name":"getAmountsOut","stateMutability":"view","inputs":[{"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}],"outputs":[{"name":"amounts","type":"uint256[]"}]},
	{"type":"function","name":"WETH","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"factory","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

const factoryABIJSON = `[
	{"type":"function","name":"getPair","stateMutability":"view","inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"}],"outputs":[{"name":"pair","type":"address"}]}
]`

const pairABIJSON = `[
	{"type":"function","name":"getReserves","stateMutability":"view","inputs":[],"outputs":[{"name":"reserve0","type":"uint112"},{"name":"reserve1","type":"uint112"},{"name":"blockTimestampLast","type":"uint32"}]},
	{"type":"function","name":"token0","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

// EVMRouter delegates swaps to an on-chain UniswapV2-style router over
// JSON-RPC. Route probing is read-only eth_call; swap execution submits a
// transaction with the escrowed value attached and waits for inclusion.
type EVMRouter struct {
	client *ethclient.Client
	opts   *bind.TransactOpts

	routerAddr  common.Address
	factoryAddr common.Address
	whbar       common.Address

	routerABI  abi.ABI
	factoryABI abi.ABI
	pairABI    abi.ABI

	bound *bind.BoundContract
}

// DialEVMRouter connects to rpcURL and resolves the router's wrapped-native
// and factory bindings. opts carries the executor's signer; it may be nil
// for read-only use (route previews).
func DialEVMRouter(ctx context.Context, rpcURL string, routerAddr common.Address, opts *bind.TransactOpts) (*EVMRouter, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", rpcURL, err)
	}

	routerABI, err := abi.JSON(strings.NewReader(routerABIJSON))
	if err != nil {
		return nil, fmt.Errorf("router abi: %w", err)
	}
	factoryABI, err := abi.JSON(strings.NewReader(factoryABIJSON))
	if err != nil {
		return nil, fmt.Errorf("factory abi: %w", err)
	}
	pairABI, err := abi.JSON(strings.NewReader(pairABIJSON))
	if err != nil {
		return nil, fmt.Errorf("pair abi: %w", err)
	}

	r := &EVMRouter{
		client:     client,
		opts:       opts,
		routerAddr: routerAddr,
		routerABI:  routerABI,
		factoryABI: factoryABI,
		pairABI:    pairABI,
		bound:      bind.NewBoundContract(routerAddr, routerABI, client, client, client),
	}

	out, err := r.call(ctx, routerAddr, r.routerABI, "WETH")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve wrapped native: %w", err)
	}
	r.whbar = out[0].(common.Address)

	out, err = r.call(ctx, routerAddr, r.routerABI, "factory")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve factory: %w", err)
	}
	r.factoryAddr = out[0].(common.Address)

	return r, nil
}

// Close releases the underlying RPC connection.
func (r *EVMRouter) Close() {
	r.client.Close()
}

// Factory returns the resolved factory address.
func (r *EVMRouter) Factory() common.Address {
	return r.factoryAddr
}

func (r *EVMRouter) WrappedNative(ctx context.Context) (common.Address, error) {
	return r.whbar, nil
}

// NativePairReserve looks up the factory pair for (WHBAR, token) and returns
// the WHBAR-side reserve, zero if the pair does not exist.
func (r *EVMRouter) NativePairReserve(ctx context.Context, token common.Address) (*big.Int, error) {
	out, err := r.call(ctx, r.factoryAddr, r.factoryABI, "getPair", r.whbar, token)
	if err != nil {
		return nil, fmt.Errorf("getPair: %w", err)
	}
	pair := out[0].(common.Address)
	if pair == (common.Address{}) {
		return new(big.Int), nil
	}

	out, err = r.call(ctx, pair, r.pairABI, "getReserves")
	if err != nil {
		return nil, fmt.Errorf("getReserves: %w", err)
	}
	reserve0 := out[0].(*big.Int)
	reserve1 := out[1].(*big.Int)

	out, err = r.call(ctx, pair, r.pairABI, "token0")
	if err != nil {
		return nil, fmt.Errorf("token0: %w", err)
	}
	if out[0].(common.Address) == r.whbar {
		return reserve0, nil
	}
	return reserve1, nil
}

// SwapExactNativeForTokens submits swapExactETHForTokens with amountIn
// attached as value and waits for the transaction to be mined. A reverted
// receipt surfaces as an error; the caller treats it as a failed swap.
func (r *EVMRouter) SwapExactNativeForTokens(ctx context.Context, amountIn, minAmountOut *big.Int, path []common.Address, recipient common.Address, deadline int64) (*big.Int, error) {
	if r.opts == nil {
		return nil, fmt.Errorf("router has no signer configured")
	}

	// Quote before sending so the returned amountOut is meaningful even
	// though the swap's own return value is not observable off-chain.
	quoted, err := r.quoteOut(ctx, amountIn, path)
	if err != nil {
		return nil, err
	}

	opts := *r.opts
	opts.Context = ctx
	opts.Value = amountIn

	tx, err := r.bound.Transact(&opts, "swapExactETHForTokens", minAmountOut, path, recipient, big.NewInt(deadline))
	if err != nil {
		return nil, fmt.Errorf("swapExactETHForTokens: %w", err)
	}

	receipt, err := bind.WaitMined(ctx, r.client, tx)
	if err != nil {
		return nil, fmt.Errorf("wait mined %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("swap reverted: tx %s", tx.Hash().Hex())
	}

	return quoted, nil
}

// quoteOut returns the venue's quote for the final path hop.
func (r *EVMRouter) quoteOut(ctx context.Context, amountIn *big.Int, path []common.Address) (*big.Int, error) {
	out, err := r.call(ctx, r.routerAddr, r.routerABI, "getAmountsOut", amountIn, path)
	if err != nil {
		return nil, fmt.Errorf("getAmountsOut: %w", err)
	}
	amounts := out[0].([]*big.Int)
	if len(amounts) == 0 {
		return nil, fmt.Errorf("getAmountsOut: empty quote")
	}
	return amounts[len(amounts)-1], nil
}

// call packs and performs a read-only contract call.
func (r *EVMRouter) call(ctx context.Context, to common.Address, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	return contractABI.Unpack(method, raw)
}

var _ Adapter = (*EVMRouter)(nil)
