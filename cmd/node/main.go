package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/otcer/otcer/params"
	"github.com/otcer/otcer/pkg/api"
	"github.com/otcer/otcer/pkg/asset"
	"github.com/otcer/otcer/pkg/chain"
	"github.com/otcer/otcer/pkg/otc"
	"github.com/otcer/otcer/pkg/registry"
	"github.com/otcer/otcer/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	os.MkdirAll(filepath.Dir(cfg.LogFile), 0755)
	logger, err := util.NewLoggerWithFile(cfg.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.LogFile)

	genesis, err := params.LoadGenesis(cfg.GenesisPath)
	if err != nil {
		sugar.Fatalw("genesis_load_failed", "err", err)
	}
	contractCfg, err := genesis.ContractConfig()
	if err != nil {
		sugar.Fatalw("genesis_invalid", "err", err)
	}

	// ---- Storage and ledger ----
	store, err := chain.OpenStore(cfg.DBPath)
	if err != nil {
		sugar.Fatalw("store_open_failed", "path", cfg.DBPath, "err", err)
	}
	defer store.Close()

	ledger, err := chain.NewLedger(store, sugar)
	if err != nil {
		sugar.Fatalw("ledger_init_failed", "err", err)
	}

	// Seed genesis balances on first boot only: an account that already
	// holds the denom is assumed seeded.
	for _, b := range genesis.Balances {
		if !common.IsHexAddress(b.Address) {
			sugar.Fatalw("genesis_bad_address", "address", b.Address)
		}
		addr := common.HexToAddress(b.Address)
		amt, err := uint256.FromDecimal(b.Amount)
		if err != nil {
			sugar.Fatalw("genesis_bad_amount", "amount", b.Amount, "err", err)
		}
		if !ledger.Balance(addr, b.Denom).IsZero() {
			continue
		}
		if err := ledger.MintCoins(addr, asset.NewCoins(asset.Coin{Denom: b.Denom, Amount: amt})); err != nil {
			sugar.Fatalw("genesis_mint_failed", "err", err)
		}
		sugar.Infow("genesis_balance_seeded", "address", addr.Hex(), "denom", b.Denom, "amount", amt.Dec())
	}

	// ---- Trade engine ----
	positions, err := otc.NewPositionStore(store.DB())
	if err != nil {
		sugar.Fatalw("position_store_failed", "err", err)
	}

	contract, err := otc.NewContract(contractCfg, ledger, positions, util.RealClock{}, sugar)
	if err != nil {
		sugar.Fatalw("contract_init_failed", "err", err)
	}

	// Peer register contract: lifecycle placeholder, instantiation only
	if _, err := registry.Instantiate(registry.InstantiateMsg{Owner: contractCfg.Owner}, sugar); err != nil {
		sugar.Fatalw("registry_init_failed", "err", err)
	}

	// ---- API Server ----
	apiServer := api.NewServer(contract, sugar)
	go func() {
		if err := apiServer.Start(cfg.APIAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sugar.Infow("node_started",
		"db", cfg.DBPath,
		"api", cfg.APIAddr,
		"contract", contract.Address().Hex(),
		"last_position_id", positions.LastID())

	<-ctx.Done()
	sugar.Info("shutting down")
}
