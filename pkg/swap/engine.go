package swap

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/YieldCraft-AI/contracts/pkg/router"
	"github.com/YieldCraft-AI/contracts/pkg/util"
)

// Config is the engine's mutable process-wide configuration. Updates go
// through admin-only setters, never direct field writes.
type Config struct {
	ExecutionFee   *big.Int
	MinOrderAmount *big.Int
	SwapDeadline   time.Duration

	BackendExecutor common.Address
	Admin           common.Address
}

// ContractConfig is the read-only config snapshot surfaced to clients.
type ContractConfig struct {
	ExecutionFee    *big.Int       `json:"executionFee"`
	MinOrderAmount  *big.Int       `json:"minOrderAmount"`
	BackendExecutor common.Address `json:"backendExecutor"`
	NextOrderID     uint64         `json:"nextOrderId"`
	WrappedNative   common.Address `json:"wrappedNativeToken"`
}

// Engine orchestrates the order lifecycle: create and cancel against the
// store and registry, execute through the gate and the router, fee accrual
// against the held balance.
//
// Every mutating operation runs under one mutex and settles as an
// indivisible unit. The single exception is the external swap call during
// execution, which runs outside the lock - but only after the order's
// terminal state has been committed, so a reentrant call from the venue
// observes a non-executable order.
type Engine struct {
	mu sync.Mutex

	cfg      Config
	store    *Store
	registry *TokenRegistry
	gate     *Gate

	venue      router.Adapter
	paths      *router.PathFinder
	associator Associator

	clock   util.Clock
	log     *zap.Logger
	payouts PayoutSink
	notify  Notifier

	// balance is the engine's total native holding: active escrow plus
	// accrued, unwithdrawn fees. Mutated only under mu.
	balance *big.Int

	wrappedNative common.Address
}

// EngineDeps wires the engine's collaborators.
type EngineDeps struct {
	Store      *Store
	Registry   *TokenRegistry
	Venue      router.Adapter
	Paths      *router.PathFinder
	Associator Associator
	Clock      util.Clock
	Log        *zap.Logger
	Payouts    PayoutSink
	Notify     Notifier
}

func NewEngine(cfg Config, deps EngineDeps) (*Engine, error) {
	if cfg.ExecutionFee == nil || cfg.ExecutionFee.Sign() < 0 {
		return nil, fmt.Errorf("execution fee must be non-negative")
	}
	if cfg.MinOrderAmount == nil || cfg.MinOrderAmount.Cmp(cfg.ExecutionFee) <= 0 {
		return nil, fmt.Errorf("min order amount must exceed execution fee")
	}
	if cfg.SwapDeadline <= 0 {
		cfg.SwapDeadline = 5 * time.Minute
	}
	if deps.Clock == nil {
		deps.Clock = util.RealClock{}
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Associator == nil {
		deps.Associator = NoopAssociator{}
	}
	if deps.Payouts == nil {
		deps.Payouts = &LogSink{Log: deps.Log}
	}

	e := &Engine{
		cfg:           cfg,
		store:         deps.Store,
		registry:      deps.Registry,
		gate:          NewGate(deps.Store, deps.Clock),
		venue:         deps.Venue,
		paths:         deps.Paths,
		associator:    deps.Associator,
		clock:         deps.Clock,
		log:           deps.Log,
		payouts:       deps.Payouts,
		notify:        deps.Notify,
		balance:       deps.Store.LoadBalance(),
		wrappedNative: deps.Store.LoadWrappedNative(),
	}
	return e, nil
}

// Gate exposes the read-only execution predicate.
func (e *Engine) Gate() *Gate {
	return e.gate
}

// SetNotifier installs the lifecycle event sink. The API server implements
// Notifier but is constructed after the engine, hence the late binding.
func (e *Engine) SetNotifier(n Notifier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notify = n
}

// CreateOrder escrows deposit and registers a conditional swap. Returns the
// allocated order id. No state is mutated on failure.
func (e *Engine) CreateOrder(owner, tokenOut common.Address, minAmountOut, triggerPrice *big.Int, expirationTime int64, deposit *big.Int) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()

	if !e.registry.IsSwappable(tokenOut) {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedToken, tokenOut.Hex())
	}
	if deposit == nil || deposit.Cmp(e.cfg.MinOrderAmount) < 0 {
		return 0, fmt.Errorf("%w: deposited %s, minimum %s", ErrInsufficientDeposit, bigString(deposit), e.cfg.MinOrderAmount)
	}
	if triggerPrice == nil || triggerPrice.Sign() <= 0 {
		return 0, ErrInvalidTriggerPrice
	}
	if expirationTime <= now.Unix() {
		return 0, fmt.Errorf("%w: expiration %d, now %d", ErrInvalidExpiration, expirationTime, now.Unix())
	}
	if minAmountOut == nil {
		minAmountOut = new(big.Int)
	}

	ord := &Order{
		ID:             e.store.NextOrderID(),
		Owner:          owner,
		TokenOut:       tokenOut,
		AmountIn:       new(big.Int).Set(deposit),
		MinAmountOut:   new(big.Int).Set(minAmountOut),
		TriggerPrice:   new(big.Int).Set(triggerPrice),
		ExpirationTime: expirationTime,
		CreatedAt:      now.Unix(),
		IsActive:       true,
	}

	newBalance := new(big.Int).Add(e.balance, deposit)
	if err := e.store.CreateOrder(ord, newBalance); err != nil {
		return 0, fmt.Errorf("failed to persist order: %w", err)
	}
	e.balance = newBalance

	e.log.Info("order_created",
		zap.Uint64("order_id", ord.ID),
		zap.String("owner", owner.Hex()),
		zap.String("token_out", tokenOut.Hex()),
		zap.String("amount_in", ord.AmountIn.String()),
		zap.String("trigger_price", ord.TriggerPrice.String()),
		zap.Int64("expiration", expirationTime),
	)
	e.publish(OrderEvent{Type: "order_created", OrderID: ord.ID, Owner: owner.Hex()})

	return ord.ID, nil
}

// CancelOrder returns the full escrow to the owner and marks the order
// terminal. Owner-only; only active orders (including lazily-expired ones)
// can be cancelled.
func (e *Engine) CancelOrder(caller common.Address, orderID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ord, ok := e.store.GetOrder(orderID)
	if !ok || !ord.IsActive {
		return ErrInvalidOrder
	}
	if caller != ord.Owner {
		return fmt.Errorf("%w: only the order owner can cancel", ErrUnauthorized)
	}

	ord.IsActive = false
	newBalance := new(big.Int).Sub(e.balance, ord.AmountIn)
	if err := e.store.UpdateOrder(ord, newBalance); err != nil {
		ord.IsActive = true
		return fmt.Errorf("failed to persist cancellation: %w", err)
	}
	e.balance = newBalance

	e.payouts.Record(Payout{
		Kind:      PayoutRefund,
		OrderID:   ord.ID,
		To:        ord.Owner,
		Amount:    new(big.Int).Set(ord.AmountIn),
		Timestamp: e.clock.Now().UnixMilli(),
	})
	e.log.Info("order_cancelled",
		zap.Uint64("order_id", ord.ID),
		zap.String("owner", ord.Owner.Hex()),
		zap.String("refund", ord.AmountIn.String()),
	)
	e.publish(OrderEvent{Type: "order_cancelled", OrderID: ord.ID, Owner: ord.Owner.Hex()})

	return nil
}

// ExecuteOrder settles an order against the swap venue. Executor-only.
//
// The gate predicate re-runs under the engine lock and the terminal state is
// committed BEFORE the venue is invoked; the lock is then released for the
// external call. The full escrow leaves the balance at commit and the fee is
// credited back only after the swap settles. If the venue fails, the whole
// operation rolls back - flags and escrow - and the order is safe to retry.
func (e *Engine) ExecuteOrder(ctx context.Context, caller common.Address, orderID uint64, reportedPrice *big.Int) (*ExecutionReceipt, error) {
	e.mu.Lock()

	if caller != e.cfg.BackendExecutor {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: only the backend executor can execute orders", ErrUnauthorized)
	}

	ord, ok := e.store.GetOrder(orderID)
	if err := evaluate(ord, ok, reportedPrice, e.clock.Now().Unix()); err != nil {
		e.mu.Unlock()
		return nil, err
	}

	fee := new(big.Int).Set(e.cfg.ExecutionFee)
	amountNet := new(big.Int).Sub(ord.AmountIn, fee)
	if amountNet.Sign() <= 0 {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: escrow %s does not cover execution fee %s", ErrInsufficientDeposit, ord.AmountIn, fee)
	}

	// Commit the terminal state before touching the venue. From here until
	// rollback or success, any caller - including a reentrant one - sees an
	// inactive order. The FULL escrow leaves the balance, fee included: the
	// fee accrues only once the swap settles, so a mid-flight withdrawal
	// cannot draw against an execution that may still roll back.
	ord.IsActive = false
	ord.IsExecuted = true
	escrow := new(big.Int).Set(ord.AmountIn)
	committedBalance := new(big.Int).Sub(e.balance, escrow)
	if err := e.store.UpdateOrder(ord, committedBalance); err != nil {
		ord.IsActive = true
		ord.IsExecuted = false
		e.mu.Unlock()
		return nil, fmt.Errorf("failed to commit execution: %w", err)
	}
	e.balance = committedBalance

	deadline := e.clock.Now().Add(e.cfg.SwapDeadline).Unix()
	e.mu.Unlock()

	path, pathDesc, err := e.paths.SelectPath(ctx, ord.TokenOut)
	var amountOut *big.Int
	if err == nil {
		amountOut, err = e.venue.SwapExactNativeForTokens(ctx, amountNet, ord.MinAmountOut, path, ord.Owner, deadline)
	}
	if err != nil {
		e.rollbackExecution(ord, escrow, err)
		return nil, fmt.Errorf("%w: %v", ErrSwapFailed, err)
	}

	e.accrueFee(ord.ID, fee)

	e.payouts.Record(Payout{
		Kind:      PayoutSwap,
		OrderID:   ord.ID,
		To:        ord.Owner,
		Amount:    amountNet,
		Timestamp: e.clock.Now().UnixMilli(),
	})
	e.log.Info("order_executed",
		zap.Uint64("order_id", ord.ID),
		zap.String("owner", ord.Owner.Hex()),
		zap.String("amount_swapped", amountNet.String()),
		zap.String("amount_out", amountOut.String()),
		zap.String("fee", fee.String()),
		zap.String("path", pathDesc),
	)
	e.publish(OrderEvent{Type: "order_executed", OrderID: ord.ID, Owner: ord.Owner.Hex(), Detail: pathDesc})

	return &ExecutionReceipt{
		OrderID:       ord.ID,
		Owner:         ord.Owner,
		TokenOut:      ord.TokenOut,
		AmountIn:      ord.AmountIn,
		Fee:           fee,
		AmountSwapped: amountNet,
		AmountOut:     amountOut,
		ReportedPrice: new(big.Int).Set(reportedPrice),
		Path:          path,
		ExecutedAt:    e.clock.Now().Unix(),
	}, nil
}

// accrueFee credits the execution fee to the held balance after the swap
// settled. Until this point the fee is part of the in-flight escrow and is
// not withdrawable.
func (e *Engine) accrueFee(orderID uint64, fee *big.Int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	newBalance := new(big.Int).Add(e.balance, fee)
	if err := e.store.SaveBalance(newBalance); err != nil {
		// In-memory state is correct; the next successful write repairs
		// the persisted copy.
		e.log.Error("fee_accrual_persist_failed", zap.Uint64("order_id", orderID), zap.Error(err))
	}
	e.balance = newBalance
}

// rollbackExecution restores the order and the escrow after a venue failure.
// The balance is re-credited rather than snapshot-restored: other orders may
// have settled while the swap was in flight.
func (e *Engine) rollbackExecution(ord *Order, escrow *big.Int, cause error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ord.IsActive = true
	ord.IsExecuted = false
	restored := new(big.Int).Add(e.balance, escrow)
	if err := e.store.UpdateOrder(ord, restored); err != nil {
		// Storage failed during rollback; the in-memory state is correct
		// and the next successful write will repair the persisted copy.
		e.log.Error("rollback_persist_failed", zap.Uint64("order_id", ord.ID), zap.Error(err))
	}
	e.balance = restored

	e.log.Warn("order_execution_failed",
		zap.Uint64("order_id", ord.ID),
		zap.String("owner", ord.Owner.Hex()),
		zap.Error(cause),
	)
	e.publish(OrderEvent{Type: "execution_failed", OrderID: ord.ID, Owner: ord.Owner.Hex(), Detail: cause.Error()})
}

// WithdrawableFees computes the fees available for withdrawal as the held
// balance minus the escrow of all active orders. Recomputed, never cached.
func (e *Engine) WithdrawableFees() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return new(big.Int).Sub(e.balance, e.store.ActiveEscrow())
}

// WithdrawFees moves accrued fees out of the engine balance. Admin-only;
// never draws below the active escrow.
func (e *Engine) WithdrawFees(caller, to common.Address, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.cfg.Admin {
		return fmt.Errorf("%w: only the admin can withdraw fees", ErrUnauthorized)
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("withdrawal amount must be positive")
	}

	withdrawable := new(big.Int).Sub(e.balance, e.store.ActiveEscrow())
	if amount.Cmp(withdrawable) > 0 {
		return fmt.Errorf("insufficient withdrawable fees: have %s, need %s", withdrawable, amount)
	}

	newBalance := new(big.Int).Sub(e.balance, amount)
	if err := e.store.SaveBalance(newBalance); err != nil {
		return err
	}
	e.balance = newBalance

	e.payouts.Record(Payout{
		Kind:      PayoutFeeClaim,
		To:        to,
		Amount:    new(big.Int).Set(amount),
		Timestamp: e.clock.Now().UnixMilli(),
	})
	e.log.Info("fees_withdrawn", zap.String("to", to.Hex()), zap.String("amount", amount.String()))

	return nil
}

// InitializeWETH binds the wrapped-native token reported by the swap venue.
// One-time setup; calling again after a successful bind is a no-op success
// so deployment flows can retry freely.
func (e *Engine) InitializeWETH(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.wrappedNative != (common.Address{}) {
		return nil
	}

	addr, err := e.venue.WrappedNative(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve wrapped native: %w", err)
	}
	if err := e.store.SaveWrappedNative(addr); err != nil {
		return err
	}
	e.wrappedNative = addr

	e.log.Info("weth_initialized", zap.String("address", addr.Hex()))
	return nil
}

// AssociateTokens registers and associates a batch of tokens. Admin-only.
// Per-token failures are reported but do not abort the batch: association is
// idempotent and retryable, so setup flows tolerate partial progress.
func (e *Engine) AssociateTokens(ctx context.Context, caller common.Address, tokens []common.Address) error {
	e.mu.Lock()
	if caller != e.cfg.Admin {
		e.mu.Unlock()
		return fmt.Errorf("%w: only the admin can associate tokens", ErrUnauthorized)
	}
	e.mu.Unlock()

	var failed int
	for _, token := range tokens {
		if err := e.registry.Register(token); err != nil {
			e.log.Warn("token_register_failed", zap.String("token", token.Hex()), zap.Error(err))
			failed++
			continue
		}
		// Ledger association is best-effort pass-through.
		if err := e.associator.Associate(ctx, token); err != nil {
			e.log.Warn("token_associate_failed", zap.String("token", token.Hex()), zap.Error(err))
			failed++
			continue
		}
		if err := e.registry.Associate(token); err != nil {
			e.log.Warn("token_associate_failed", zap.String("token", token.Hex()), zap.Error(err))
			failed++
			continue
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d tokens failed to associate", failed, len(tokens))
	}
	return nil
}

// SetExecutionFee updates the flat execution fee. Admin-only.
func (e *Engine) SetExecutionFee(caller common.Address, fee *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.cfg.Admin {
		return fmt.Errorf("%w: only the admin can update the fee", ErrUnauthorized)
	}
	if fee == nil || fee.Sign() < 0 || fee.Cmp(e.cfg.MinOrderAmount) >= 0 {
		return fmt.Errorf("fee must be non-negative and below the minimum order amount")
	}
	e.cfg.ExecutionFee = new(big.Int).Set(fee)
	return nil
}

// SetMinOrderAmount updates the minimum deposit. Admin-only.
func (e *Engine) SetMinOrderAmount(caller common.Address, min *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.cfg.Admin {
		return fmt.Errorf("%w: only the admin can update the minimum", ErrUnauthorized)
	}
	if min == nil || min.Cmp(e.cfg.ExecutionFee) <= 0 {
		return fmt.Errorf("minimum order amount must exceed the execution fee")
	}
	e.cfg.MinOrderAmount = new(big.Int).Set(min)
	return nil
}

// SetBackendExecutor rotates the executor role. Admin-only.
func (e *Engine) SetBackendExecutor(caller, executor common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.cfg.Admin {
		return fmt.Errorf("%w: only the admin can rotate the executor", ErrUnauthorized)
	}
	if executor == (common.Address{}) {
		return fmt.Errorf("executor cannot be the zero address")
	}
	e.cfg.BackendExecutor = executor
	return nil
}

// OrderDetails returns a copy of the order record, terminal orders included.
func (e *Engine) OrderDetails(orderID uint64) (Order, error) {
	ord, ok := e.store.GetOrder(orderID)
	if !ok {
		return Order{}, ErrInvalidOrder
	}
	return *ord, nil
}

// Orders returns copies of all orders, ascending by id.
func (e *Engine) Orders() []Order {
	all := e.store.Orders()
	out := make([]Order, len(all))
	for i, ord := range all {
		out[i] = *ord
	}
	return out
}

// ContractConfig returns the current configuration snapshot.
func (e *Engine) ContractConfig() ContractConfig {
	e.mu.Lock()
	defer e.mu.Unlock()

	return ContractConfig{
		ExecutionFee:    new(big.Int).Set(e.cfg.ExecutionFee),
		MinOrderAmount:  new(big.Int).Set(e.cfg.MinOrderAmount),
		BackendExecutor: e.cfg.BackendExecutor,
		NextOrderID:     e.store.NextOrderID(),
		WrappedNative:   e.wrappedNative,
	}
}

// RouterInfo returns the routing configuration.
func (e *Engine) RouterInfo() router.Info {
	return e.paths.Info()
}

// PreviewPath returns the route the engine would take for tokenOut.
func (e *Engine) PreviewPath(ctx context.Context, tokenOut common.Address) (router.PathPreview, error) {
	return e.paths.Preview(ctx, tokenOut)
}

// SupportedTokens lists the registry contents.
func (e *Engine) SupportedTokens() []TokenInfo {
	return e.registry.List()
}

// ContractBalance returns the total native balance held: active escrow plus
// accrued fees.
func (e *Engine) ContractBalance() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return new(big.Int).Set(e.balance)
}

func (e *Engine) publish(ev OrderEvent) {
	if e.notify == nil {
		return
	}
	ev.Timestamp = e.clock.Now().UnixMilli()
	e.notify.Publish(ev)
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
