package main

import (
	"context"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/YieldCraft-AI/contracts/params"
	"github.com/YieldCraft-AI/contracts/pkg/api"
	"github.com/YieldCraft-AI/contracts/pkg/router"
	"github.com/YieldCraft-AI/contracts/pkg/swap"
	"github.com/YieldCraft-AI/contracts/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Storage ----
	store, err := swap.NewStore(cfg.Node.DBPath)
	if err != nil {
		sugar.Fatalw("store_open_failed", "path", cfg.Node.DBPath, "err", err)
	}
	defer store.Close()

	registry, err := swap.NewTokenRegistry(store, util.RealClock{})
	if err != nil {
		sugar.Fatalw("registry_load_failed", "err", err)
	}

	// ---- Swap venue ----
	var venue router.Adapter
	factory := cfg.Router.FactoryAddress
	switch cfg.Router.Mode {
	case "evm":
		key, err := crypto.HexToECDSA(cfg.Router.PrivateKey)
		if err != nil {
			sugar.Fatalw("invalid_executor_key", "err", err)
		}
		opts, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(cfg.Router.ChainID))
		if err != nil {
			sugar.Fatalw("transactor_init_failed", "err", err)
		}
		evm, err := router.DialEVMRouter(ctx, cfg.Router.RPCURL, cfg.Router.RouterAddress, opts)
		if err != nil {
			sugar.Fatalw("router_dial_failed", "url", cfg.Router.RPCURL, "err", err)
		}
		defer evm.Close()
		venue = evm
		factory = evm.Factory()
		sugar.Infow("router_connected", "mode", "evm", "router", cfg.Router.RouterAddress.Hex(), "factory", factory.Hex())

	default:
		// Devnet: in-memory venue seeded with pools for the configured tokens.
		sim := router.NewSimRouter(cfg.Router.WHBAR)
		sim.AddPool(cfg.Router.WHBAR, cfg.Router.USDC,
			big.NewInt(500_000_000_000), // 5000 HBAR
			big.NewInt(1_000_000_000))
		for _, token := range cfg.Router.SupportedTokens {
			if token == cfg.Router.USDC {
				continue
			}
			sim.AddPool(cfg.Router.USDC, token,
				big.NewInt(800_000_000),
				big.NewInt(2_000_000_000_000))
		}
		venue = sim
		sugar.Infow("router_connected", "mode", "sim")
	}

	paths := router.NewPathFinder(venue, router.Info{
		Router:              cfg.Router.RouterAddress,
		Factory:             factory,
		WrappedNative:       cfg.Router.WHBAR,
		Intermediate:        cfg.Router.USDC,
		DirectPairThreshold: cfg.Router.DirectPairThreshold,
	})

	// ---- Engine ----
	engine, err := swap.NewEngine(swap.Config{
		ExecutionFee:    cfg.Engine.ExecutionFee,
		MinOrderAmount:  cfg.Engine.MinOrderAmount,
		SwapDeadline:    cfg.Engine.SwapDeadline,
		BackendExecutor: cfg.Engine.BackendExecutor,
		Admin:           cfg.Engine.Admin,
	}, swap.EngineDeps{
		Store:    store,
		Registry: registry,
		Venue:    venue,
		Paths:    paths,
		Clock:    util.RealClock{},
		Log:      logger,
	})
	if err != nil {
		sugar.Fatalw("engine_init_failed", "err", err)
	}

	// ---- One-time setup: best-effort, idempotent, retryable ----
	if err := engine.InitializeWETH(ctx); err != nil {
		sugar.Warnw("weth_init_failed", "err", err)
	}
	if len(cfg.Router.SupportedTokens) > 0 {
		if err := engine.AssociateTokens(ctx, cfg.Engine.Admin, cfg.Router.SupportedTokens); err != nil {
			sugar.Warnw("token_association_incomplete", "err", err)
		}
	}

	// ---- API ----
	server := api.NewServer(engine)
	engine.SetNotifier(server)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Node.APIAddr)
	}()

	sugar.Infow("autoswapd_started",
		"api_addr", cfg.Node.APIAddr,
		"executor", cfg.Engine.BackendExecutor.Hex(),
		"next_order_id", engine.ContractConfig().NextOrderID,
	)

	select {
	case <-ctx.Done():
		sugar.Info("shutting down")
	case err := <-errCh:
		sugar.Fatalw("api_server_failed", "err", err)
	}
}
