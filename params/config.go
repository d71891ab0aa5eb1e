package params

import (
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// All native amounts are denominated in tinybars (1 HBAR = 100_000_000 tinybars).

type Engine struct {
	ExecutionFee   *big.Int // flat fee deducted from escrow on execution
	MinOrderAmount *big.Int // minimum deposit accepted at creation
	SwapDeadline   time.Duration

	BackendExecutor common.Address // sole address allowed to execute orders
	Admin           common.Address // fee withdrawal, token association, config updates
}

type Router struct {
	// Mode selects the swap venue implementation: "sim" (in-memory, devnet)
	// or "evm" (JSON-RPC against a live SaucerSwap deployment).
	Mode string

	RPCURL     string
	ChainID    int64
	PrivateKey string // hex ECDSA key for the tx signer (evm mode only)

	RouterAddress  common.Address
	FactoryAddress common.Address
	WHBAR          common.Address
	USDC           common.Address // intermediate hop for multi-hop routes

	// DirectPairThreshold is the minimum WHBAR-side reserve a direct pair
	// must hold before the direct route is preferred over the multi-hop one.
	DirectPairThreshold *big.Int

	SupportedTokens []common.Address
}

type Node struct {
	DBPath  string
	APIAddr string
	LogFile string
}

type Config struct {
	Engine Engine
	Router Router
	Node   Node
}

func Default() Config {
	return Config{
		Engine: Engine{
			ExecutionFee:   big.NewInt(5_000_000),  // 0.05 HBAR
			MinOrderAmount: big.NewInt(10_000_000), // 0.1 HBAR
			SwapDeadline:   5 * time.Minute,
		},
		Router: Router{
			Mode: "sim",
			// SaucerSwap V1 router on Hedera testnet
			RouterAddress:       common.HexToAddress("0x0000000000000000000000000000000000004ac0"),
			WHBAR:               common.HexToAddress("0x0000000000000000000000000000000000003aD2"),
			USDC:                common.HexToAddress("0x00000000000000000000000000000000000014F5"),
			DirectPairThreshold: big.NewInt(1_000_000_000), // 10 HBAR of WHBAR-side liquidity
			SupportedTokens: []common.Address{
				common.HexToAddress("0x00000000000000000000000000000000000014F5"), // USDC
				common.HexToAddress("0x0000000000000000000000000000000000120f46"), // SAUCE
			},
		},
		Node: Node{
			DBPath:  "data/autoswap.db",
			APIAddr: ":8080",
			LogFile: "data/autoswap.log",
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	if v := os.Getenv("EXECUTION_FEE_TINYBAR"); v != "" {
		if fee, ok := new(big.Int).SetString(v, 10); ok {
			cfg.Engine.ExecutionFee = fee
		}
	}
	if v := os.Getenv("MIN_ORDER_TINYBAR"); v != "" {
		if min, ok := new(big.Int).SetString(v, 10); ok {
			cfg.Engine.MinOrderAmount = min
		}
	}
	if v := os.Getenv("SWAP_DEADLINE_SEC"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil {
			cfg.Engine.SwapDeadline = time.Duration(sec) * time.Second
		}
	}
	if v := os.Getenv("BACKEND_EXECUTOR"); common.IsHexAddress(v) {
		cfg.Engine.BackendExecutor = common.HexToAddress(v)
	}
	if v := os.Getenv("ADMIN_ADDRESS"); common.IsHexAddress(v) {
		cfg.Engine.Admin = common.HexToAddress(v)
	}

	if v := os.Getenv("ROUTER_MODE"); v != "" {
		cfg.Router.Mode = v
	}
	if v := os.Getenv("RPC_URL"); v != "" {
		cfg.Router.RPCURL = v
	}
	if v := os.Getenv("CHAIN_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Router.ChainID = id
		}
	}
	if v := os.Getenv("EXECUTOR_PRIVATE_KEY"); v != "" {
		cfg.Router.PrivateKey = v
	}
	if v := os.Getenv("ROUTER_ADDRESS"); common.IsHexAddress(v) {
		cfg.Router.RouterAddress = common.HexToAddress(v)
	}
	if v := os.Getenv("FACTORY_ADDRESS"); common.IsHexAddress(v) {
		cfg.Router.FactoryAddress = common.HexToAddress(v)
	}
	if v := os.Getenv("WHBAR_ADDRESS"); common.IsHexAddress(v) {
		cfg.Router.WHBAR = common.HexToAddress(v)
	}
	if v := os.Getenv("USDC_ADDRESS"); common.IsHexAddress(v) {
		cfg.Router.USDC = common.HexToAddress(v)
	}
	if v := os.Getenv("DIRECT_PAIR_THRESHOLD_TINYBAR"); v != "" {
		if th, ok := new(big.Int).SetString(v, 10); ok {
			cfg.Router.DirectPairThreshold = th
		}
	}

	// Supported tokens from comma-separated list
	// Example: "0x...14F5,0x...120f46"
	if v := os.Getenv("SUPPORTED_TOKENS"); v != "" {
		var tokens []common.Address
		for _, s := range strings.Split(v, ",") {
			s = strings.TrimSpace(s)
			if common.IsHexAddress(s) {
				tokens = append(tokens, common.HexToAddress(s))
			}
		}
		if len(tokens) > 0 {
			cfg.Router.SupportedTokens = tokens
		}
	}

	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Node.DBPath = v
	}
	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.Node.APIAddr = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Node.LogFile = v
	}

	return cfg
}
