package registry

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

func TestInstantiate(t *testing.T) {
	owner := common.HexToAddress("0x00000000000000000000000000000000000A11CE")

	c, err := Instantiate(InstantiateMsg{Owner: owner}, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("instantiate failed: %v", err)
	}
	if c.Owner() != owner {
		t.Errorf("owner = %s, want %s", c.Owner().Hex(), owner.Hex())
	}

	if _, err := Instantiate(InstantiateMsg{}, zap.NewNop().Sugar()); err == nil {
		t.Error("missing owner accepted")
	}
}

func TestEntryPointsUnavailable(t *testing.T) {
	c, err := Instantiate(InstantiateMsg{Owner: common.HexToAddress("0x1")}, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("instantiate failed: %v", err)
	}

	if err := c.Execute(nil); !errors.Is(err, ErrUnavailable) {
		t.Errorf("execute: got %v, want ErrUnavailable", err)
	}
	if _, err := c.Query(nil); !errors.Is(err, ErrUnavailable) {
		t.Errorf("query: got %v, want ErrUnavailable", err)
	}
	if err := c.Migrate("v2"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("migrate: got %v, want ErrUnavailable", err)
	}
}
