package params

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/otcer/otcer/pkg/asset"
	"github.com/otcer/otcer/pkg/otc"
)

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("OTC_DB_PATH", "/tmp/override.db")
	t.Setenv("API_ADDR", ":9999")

	cfg := LoadFromEnv("")
	if cfg.DBPath != "/tmp/override.db" {
		t.Errorf("db path = %s, want /tmp/override.db", cfg.DBPath)
	}
	if cfg.APIAddr != ":9999" {
		t.Errorf("api addr = %s, want :9999", cfg.APIAddr)
	}
	// unset vars keep defaults
	if cfg.GenesisPath != Default().GenesisPath {
		t.Errorf("genesis path = %s, want default", cfg.GenesisPath)
	}
}

func TestLoadGenesisMissingFileGivesDefault(t *testing.T) {
	g, err := LoadGenesis(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if g.FeeTiming != string(otc.FeeOnCreate) {
		t.Errorf("fee timing = %s, want create", g.FeeTiming)
	}
	if len(g.Fee) != 1 || g.Fee[0].Denom != "uluna" || g.Fee[0].Amount != "100" {
		t.Errorf("default fee = %+v, want 100 uluna", g.Fee)
	}
}

func TestLoadGenesisFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	content := `
owner: "0x00000000000000000000000000000000000A11CE"
fee_collector: "0x00000000000000000000000000000000000Fee00"
fee_timing: execute
fee:
  - kind: native
    denom: uluna
    amount: "250"
balances:
  - address: "0xAA00000000000000000000000000000000000000"
    denom: uluna
    amount: "1000000"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	g, err := LoadGenesis(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	cfg, err := g.ContractConfig()
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	if cfg.FeeTiming != otc.FeeOnExecute {
		t.Errorf("fee timing = %s, want execute", cfg.FeeTiming)
	}
	if len(cfg.Fee) != 1 || cfg.Fee[0].Amount.Uint64() != 250 {
		t.Errorf("fee = %+v, want 250 uluna", cfg.Fee)
	}
	if len(g.Balances) != 1 || g.Balances[0].Amount != "1000000" {
		t.Errorf("balances = %+v", g.Balances)
	}
}

func TestContractConfigRejectsBadAddresses(t *testing.T) {
	g := DefaultGenesis()
	g.Owner = "not-an-address"
	if _, err := g.ContractConfig(); err == nil {
		t.Error("bad owner accepted")
	}

	g = DefaultGenesis()
	g.FeeCollector = ""
	if _, err := g.ContractConfig(); err == nil {
		t.Error("empty collector accepted")
	}
}

func TestGenesisAssetConversion(t *testing.T) {
	a := GenesisAsset{Kind: "native", Denom: "uluna", Amount: "100"}
	info, err := a.Asset()
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	if info.Kind != asset.Native || info.Amount.Uint64() != 100 {
		t.Errorf("got %+v", info)
	}

	bad := []GenesisAsset{
		{Kind: "imaginary", Denom: "uluna", Amount: "100"},
		{Kind: "native", Denom: "uluna", Amount: "-1"},
		{Kind: "native", Denom: "uluna"},
		{Kind: "fungible", Contract: "0xZZ", Amount: "1"},
	}
	for _, g := range bad {
		if _, err := g.Asset(); err == nil {
			t.Errorf("accepted bad asset %+v", g)
		}
	}
}
