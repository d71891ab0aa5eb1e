package api

// Request and response types for the REST endpoints. Amounts and prices
// travel as decimal strings in tinybars/wei so values above 2^53 survive
// JSON.

// ==============================
// Request Types
// ==============================

// CreateOrderRequest creates a conditional swap order. Deposit is the
// escrowed native amount (the value transfer of the on-chain original).
type CreateOrderRequest struct {
	Owner          string `json:"owner"`
	TokenOut       string `json:"tokenOut"`
	MinAmountOut   string `json:"minAmountOut"`
	TriggerPrice   string `json:"triggerPrice"`
	ExpirationTime int64  `json:"expirationTime"` // unix seconds
	Deposit        string `json:"deposit"`
}

type CancelOrderRequest struct {
	Caller  string `json:"caller"`
	OrderID uint64 `json:"orderId"`
}

type ExecuteOrderRequest struct {
	Caller        string `json:"caller"`
	OrderID       uint64 `json:"orderId"`
	ReportedPrice string `json:"reportedPrice"`
}

type AssociateTokensRequest struct {
	Caller string   `json:"caller"`
	Tokens []string `json:"tokens"`
}

type WithdrawFeesRequest struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// ==============================
// Response Types
// ==============================

type CreateOrderResponse struct {
	Status  string `json:"status"`
	OrderID uint64 `json:"orderId"`
}

// OrderInfo mirrors the stored order record plus the derived status.
type OrderInfo struct {
	ID             uint64 `json:"id"`
	Owner          string `json:"owner"`
	TokenOut       string `json:"tokenOut"`
	AmountIn       string `json:"amountIn"`
	MinAmountOut   string `json:"minAmountOut"`
	TriggerPrice   string `json:"triggerPrice"`
	ExpirationTime int64  `json:"expirationTime"`
	CreatedAt      int64  `json:"createdAt"`
	IsActive       bool   `json:"isActive"`
	IsExecuted     bool   `json:"isExecuted"`
	Status         string `json:"status"`
}

// ExecutableInfo is the read-only pre-validation answer.
type ExecutableInfo struct {
	OrderID    uint64 `json:"orderId"`
	CanExecute bool   `json:"canExecute"`
	Reason     string `json:"reason"`
}

type ExecuteOrderResponse struct {
	Status        string   `json:"status"`
	OrderID       uint64   `json:"orderId"`
	AmountSwapped string   `json:"amountSwapped"`
	AmountOut     string   `json:"amountOut"`
	Fee           string   `json:"fee"`
	Path          []string `json:"path"`
}

type ConfigInfo struct {
	ExecutionFee    string `json:"executionFee"`
	MinOrderAmount  string `json:"minOrderAmount"`
	BackendExecutor string `json:"backendExecutor"`
	NextOrderID     uint64 `json:"nextOrderId"`
	WrappedNative   string `json:"wrappedNativeToken"`
}

type RouterInfoResponse struct {
	Router              string `json:"router"`
	Factory             string `json:"factory"`
	WrappedNative       string `json:"wrappedNative"`
	Intermediate        string `json:"intermediate"`
	DirectPairThreshold string `json:"directPairThreshold"`
}

type PathPreviewResponse struct {
	TokenOut    string   `json:"tokenOut"`
	Path        []string `json:"path"`
	Description string   `json:"description"`
	Direct      bool     `json:"direct"`
}

type TokenInfoResponse struct {
	Address    string `json:"address"`
	Associated bool   `json:"associated"`
	AddedAt    int64  `json:"addedAt"`
}

type BalanceResponse struct {
	Balance          string `json:"balance"`
	ActiveEscrow     string `json:"activeEscrow"`
	WithdrawableFees string `json:"withdrawableFees"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}
