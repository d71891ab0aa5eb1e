package api

import (
	"encoding/json"
	"errors"
	"log"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/YieldCraft-AI/contracts/pkg/swap"
)

// Server exposes the engine's public operations over REST and streams
// lifecycle events over WebSocket. Caller identity is an address field in
// the request body; role checks happen in the engine, not here.
type Server struct {
	engine *swap.Engine
	router *mux.Router
	hub    *Hub
}

// NewServer creates a new API server
func NewServer(engine *swap.Engine) *Server {
	s := &Server{
		engine: engine,
		router: mux.NewRouter(),
		hub:    NewHub(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Order lifecycle
	api.HandleFunc("/orders", s.handleCreateOrder).Methods("POST")
	api.HandleFunc("/orders", s.handleListOrders).Methods("GET")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/orders/execute", s.handleExecuteOrder).Methods("POST")
	api.HandleFunc("/orders/{id:[0-9]+}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/orders/{id:[0-9]+}/executable", s.handleCanExecute).Methods("GET")

	// Configuration and routing
	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")
	api.HandleFunc("/router", s.handleGetRouterInfo).Methods("GET")
	api.HandleFunc("/router/path/{token}", s.handleGetPathPreview).Methods("GET")

	// Registry and balance
	api.HandleFunc("/tokens", s.handleGetTokens).Methods("GET")
	api.HandleFunc("/balance", s.handleGetBalance).Methods("GET")

	// Admin
	api.HandleFunc("/admin/tokens/associate", s.handleAssociateTokens).Methods("POST")
	api.HandleFunc("/admin/fees/withdraw", s.handleWithdrawFees).Methods("POST")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start starts the API server
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	handler := c.Handler(s.router)

	log.Printf("[api] server starting on %s", addr)
	return http.ListenAndServe(addr, handler)
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	owner, ok := parseAddress(req.Owner)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid owner address", req.Owner)
		return
	}
	tokenOut, ok := parseAddress(req.TokenOut)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid tokenOut address", req.TokenOut)
		return
	}
	minOut, ok := parseAmount(req.MinAmountOut)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid minAmountOut", req.MinAmountOut)
		return
	}
	trigger, ok := parseAmount(req.TriggerPrice)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid triggerPrice", req.TriggerPrice)
		return
	}
	deposit, ok := parseAmount(req.Deposit)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid deposit", req.Deposit)
		return
	}

	orderID, err := s.engine.CreateOrder(owner, tokenOut, minOut, trigger, req.ExpirationTime, deposit)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, CreateOrderResponse{Status: "created", OrderID: orderID})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	caller, ok := parseAddress(req.Caller)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid caller address", req.Caller)
		return
	}

	if err := s.engine.CancelOrder(caller, req.OrderID); err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, map[string]interface{}{"status": "cancelled", "orderId": req.OrderID})
}

func (s *Server) handleExecuteOrder(w http.ResponseWriter, r *http.Request) {
	var req ExecuteOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	caller, ok := parseAddress(req.Caller)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid caller address", req.Caller)
		return
	}
	price, ok := parseAmount(req.ReportedPrice)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid reportedPrice", req.ReportedPrice)
		return
	}

	receipt, err := s.engine.ExecuteOrder(r.Context(), caller, req.OrderID, price)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	path := make([]string, len(receipt.Path))
	for i, hop := range receipt.Path {
		path[i] = hop.Hex()
	}

	respondJSON(w, ExecuteOrderResponse{
		Status:        "executed",
		OrderID:       receipt.OrderID,
		AmountSwapped: receipt.AmountSwapped.String(),
		AmountOut:     receipt.AmountOut.String(),
		Fee:           receipt.Fee.String(),
		Path:          path,
	})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid order id", "")
		return
	}

	ord, err := s.engine.OrderDetails(orderID)
	if err != nil {
		respondError(w, http.StatusNotFound, "order not found", "")
		return
	}

	respondJSON(w, orderInfo(ord))
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders := s.engine.Orders()
	out := make([]OrderInfo, len(orders))
	for i, ord := range orders {
		out[i] = orderInfo(ord)
	}
	respondJSON(w, out)
}

func (s *Server) handleCanExecute(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid order id", "")
		return
	}

	price, ok := parseAmount(r.URL.Query().Get("price"))
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid price query parameter", "")
		return
	}

	canExec, reason := s.engine.Gate().CanExecute(orderID, price)
	respondJSON(w, ExecutableInfo{OrderID: orderID, CanExecute: canExec, Reason: reason})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.engine.ContractConfig()
	respondJSON(w, ConfigInfo{
		ExecutionFee:    cfg.ExecutionFee.String(),
		MinOrderAmount:  cfg.MinOrderAmount.String(),
		BackendExecutor: cfg.BackendExecutor.Hex(),
		NextOrderID:     cfg.NextOrderID,
		WrappedNative:   cfg.WrappedNative.Hex(),
	})
}

func (s *Server) handleGetRouterInfo(w http.ResponseWriter, r *http.Request) {
	info := s.engine.RouterInfo()
	respondJSON(w, RouterInfoResponse{
		Router:              info.Router.Hex(),
		Factory:             info.Factory.Hex(),
		WrappedNative:       info.WrappedNative.Hex(),
		Intermediate:        info.Intermediate.Hex(),
		DirectPairThreshold: info.DirectPairThreshold.String(),
	})
}

func (s *Server) handleGetPathPreview(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	token, ok := parseAddress(vars["token"])
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid token address", vars["token"])
		return
	}

	preview, err := s.engine.PreviewPath(r.Context(), token)
	if err != nil {
		respondError(w, http.StatusBadGateway, "path preview failed", err.Error())
		return
	}

	path := make([]string, len(preview.Path))
	for i, hop := range preview.Path {
		path[i] = hop.Hex()
	}

	respondJSON(w, PathPreviewResponse{
		TokenOut:    token.Hex(),
		Path:        path,
		Description: preview.Description,
		Direct:      preview.Direct,
	})
}

func (s *Server) handleGetTokens(w http.ResponseWriter, r *http.Request) {
	tokens := s.engine.SupportedTokens()
	out := make([]TokenInfoResponse, len(tokens))
	for i, t := range tokens {
		out[i] = TokenInfoResponse{
			Address:    t.Address.Hex(),
			Associated: t.Associated,
			AddedAt:    t.AddedAt,
		}
	}
	respondJSON(w, out)
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	balance := s.engine.ContractBalance()
	withdrawable := s.engine.WithdrawableFees()
	escrow := new(big.Int).Sub(balance, withdrawable)

	respondJSON(w, BalanceResponse{
		Balance:          balance.String(),
		ActiveEscrow:     escrow.String(),
		WithdrawableFees: withdrawable.String(),
	})
}

func (s *Server) handleAssociateTokens(w http.ResponseWriter, r *http.Request) {
	var req AssociateTokensRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	caller, ok := parseAddress(req.Caller)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid caller address", req.Caller)
		return
	}

	tokens := make([]common.Address, 0, len(req.Tokens))
	for _, t := range req.Tokens {
		addr, ok := parseAddress(t)
		if !ok {
			respondError(w, http.StatusBadRequest, "invalid token address", t)
			return
		}
		tokens = append(tokens, addr)
	}

	// Best-effort: partial failures report but do not roll back progress.
	if err := s.engine.AssociateTokens(r.Context(), caller, tokens); err != nil {
		if errors.Is(err, swap.ErrUnauthorized) {
			respondError(w, http.StatusForbidden, "unauthorized", err.Error())
			return
		}
		respondJSON(w, map[string]string{"status": "partial", "detail": err.Error()})
		return
	}

	respondJSON(w, map[string]string{"status": "associated"})
}

func (s *Server) handleWithdrawFees(w http.ResponseWriter, r *http.Request) {
	var req WithdrawFeesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	caller, ok := parseAddress(req.Caller)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid caller address", req.Caller)
		return
	}
	to, ok := parseAddress(req.To)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid destination address", req.To)
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid amount", req.Amount)
		return
	}

	if err := s.engine.WithdrawFees(caller, to, amount); err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, map[string]string{"status": "withdrawn", "amount": amount.String()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// Publish implements swap.Notifier by broadcasting to all connected clients.
func (s *Server) Publish(ev swap.OrderEvent) {
	s.hub.Broadcast(ev)
}

// ==============================
// Helpers
// ==============================

func orderInfo(ord swap.Order) OrderInfo {
	return OrderInfo{
		ID:             ord.ID,
		Owner:          ord.Owner.Hex(),
		TokenOut:       ord.TokenOut.Hex(),
		AmountIn:       ord.AmountIn.String(),
		MinAmountOut:   ord.MinAmountOut.String(),
		TriggerPrice:   ord.TriggerPrice.String(),
		ExpirationTime: ord.ExpirationTime,
		CreatedAt:      ord.CreatedAt,
		IsActive:       ord.IsActive,
		IsExecuted:     ord.IsExecuted,
		Status:         ord.Status(nowUnix()),
	}
}

func nowUnix() int64 { return time.Now().Unix() }

func parseOrderID(r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	return id, err == nil
}

func parseAddress(s string) (common.Address, bool) {
	if !common.IsHexAddress(s) {
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

func parseAmount(s string) (*big.Int, bool) {
	if s == "" {
		return nil, false
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}

// respondEngineError maps engine error kinds to HTTP statuses.
func respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, swap.ErrUnauthorized):
		respondError(w, http.StatusForbidden, "unauthorized", err.Error())
	case errors.Is(err, swap.ErrInvalidOrder):
		respondError(w, http.StatusNotFound, "invalid order", err.Error())
	case errors.Is(err, swap.ErrOrderExpired),
		errors.Is(err, swap.ErrPriceNotMet):
		respondError(w, http.StatusConflict, "order not executable", err.Error())
	case errors.Is(err, swap.ErrInsufficientDeposit),
		errors.Is(err, swap.ErrUnsupportedToken),
		errors.Is(err, swap.ErrInvalidTriggerPrice),
		errors.Is(err, swap.ErrInvalidExpiration):
		respondError(w, http.StatusBadRequest, "validation failed", err.Error())
	case errors.Is(err, swap.ErrSwapFailed):
		respondError(w, http.StatusBadGateway, "swap failed", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[api] encode error: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := ErrorResponse{Error: message, Detail: detail}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("[api] encode error: %v", err)
	}
}
