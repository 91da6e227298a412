package params

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/otcer/otcer/pkg/asset"
	"github.com/otcer/otcer/pkg/otc"
)

// Config holds node-level settings. Scalar settings come from the
// environment (optionally via a .env file); the structured instantiation
// config lives in a YAML genesis file, see Genesis.
type Config struct {
	DBPath      string
	APIAddr     string
	LogFile     string
	GenesisPath string
}

func Default() Config {
	return Config{
		DBPath:      "data/otcer.db",
		APIAddr:     ":8080",
		LogFile:     "data/node.log",
		GenesisPath: "genesis.yaml",
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("OTC_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.APIAddr = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("GENESIS_PATH"); v != "" {
		cfg.GenesisPath = v
	}

	return cfg
}

// GenesisAsset declares one asset item in YAML form.
type GenesisAsset struct {
	Kind     string `yaml:"kind"`
	Denom    string `yaml:"denom,omitempty"`
	Contract string `yaml:"contract,omitempty"`
	Amount   string `yaml:"amount,omitempty"`
	TokenID  string `yaml:"token_id,omitempty"`
}

// Asset converts the YAML declaration into an asset.Info.
func (g GenesisAsset) Asset() (asset.Info, error) {
	kind, err := asset.ParseKind(g.Kind)
	if err != nil {
		return asset.Info{}, err
	}

	var info asset.Info
	info.Kind = kind
	info.Denom = g.Denom
	info.TokenID = g.TokenID
	if g.Contract != "" {
		if !common.IsHexAddress(g.Contract) {
			return asset.Info{}, fmt.Errorf("bad contract address %q", g.Contract)
		}
		info.Contract = common.HexToAddress(g.Contract)
	}
	if g.Amount != "" {
		amt, err := uint256.FromDecimal(g.Amount)
		if err != nil {
			return asset.Info{}, fmt.Errorf("bad amount %q: %w", g.Amount, err)
		}
		info.Amount = amt
	}
	if err := info.Validate(); err != nil {
		return asset.Info{}, err
	}
	return info, nil
}

// GenesisBalance seeds a native balance at startup (devnet convenience).
type GenesisBalance struct {
	Address string `yaml:"address"`
	Denom   string `yaml:"denom"`
	Amount  string `yaml:"amount"`
}

// Genesis is the engine's instantiation configuration.
type Genesis struct {
	Owner        string           `yaml:"owner"`
	FeeCollector string           `yaml:"fee_collector"`
	FeeTiming    string           `yaml:"fee_timing"`
	Fee          []GenesisAsset   `yaml:"fee"`
	Balances     []GenesisBalance `yaml:"balances,omitempty"`
}

// DefaultGenesis matches the reference deployment: a flat 100 uluna fee
// charged on creation.
func DefaultGenesis() Genesis {
	return Genesis{
		Owner:        "0x00000000000000000000000000000000000A11CE",
		FeeCollector: "0x00000000000000000000000000000000000Fee00",
		FeeTiming:    string(otc.FeeOnCreate),
		Fee: []GenesisAsset{
			{Kind: "native", Denom: "uluna", Amount: "100"},
		},
	}
}

// LoadGenesis reads and parses the YAML genesis file. A missing file
// yields the default genesis.
func LoadGenesis(path string) (Genesis, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultGenesis(), nil
	}
	if err != nil {
		return Genesis{}, fmt.Errorf("failed to read genesis %s: %w", path, err)
	}

	var g Genesis
	if err := yaml.Unmarshal(data, &g); err != nil {
		return Genesis{}, fmt.Errorf("failed to parse genesis %s: %w", path, err)
	}
	return g, nil
}

// ContractConfig converts the genesis into the engine's instantiation
// config.
func (g Genesis) ContractConfig() (otc.Config, error) {
	if !common.IsHexAddress(g.Owner) {
		return otc.Config{}, fmt.Errorf("bad owner address %q", g.Owner)
	}
	if !common.IsHexAddress(g.FeeCollector) {
		return otc.Config{}, fmt.Errorf("bad fee collector address %q", g.FeeCollector)
	}

	fee := make(asset.Bundle, 0, len(g.Fee))
	for _, item := range g.Fee {
		info, err := item.Asset()
		if err != nil {
			return otc.Config{}, fmt.Errorf("fee schedule: %w", err)
		}
		fee = append(fee, info)
	}

	timing := otc.FeeTiming(g.FeeTiming)
	if g.FeeTiming == "" {
		timing = otc.FeeOnCreate
	}

	return otc.Config{
		Owner:        common.HexToAddress(g.Owner),
		FeeCollector: common.HexToAddress(g.FeeCollector),
		Fee:          fee,
		FeeTiming:    timing,
	}, nil
}
