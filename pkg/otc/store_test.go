package otc

import (
	"fmt"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/otcer/otcer/pkg/asset"
	"github.com/otcer/otcer/pkg/chain"
)

type storeEnv struct {
	ledger    *chain.Ledger
	positions *PositionStore
}

func openStoreEnv(t *testing.T, dbPath string) *storeEnv {
	store, err := chain.OpenStore(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})

	ledger, err := chain.NewLedger(store, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("failed to create ledger: %v", err)
	}
	positions, err := NewPositionStore(store.DB())
	if err != nil {
		t.Fatalf("failed to create position store: %v", err)
	}
	return &storeEnv{ledger: ledger, positions: positions}
}

func newStoreEnv(t *testing.T) *storeEnv {
	dbPath := fmt.Sprintf("./tmp_test_store_%s.db", t.Name())
	os.RemoveAll(dbPath)
	t.Cleanup(func() {
		os.RemoveAll(dbPath)
	})
	return openStoreEnv(t, dbPath)
}

// save commits a record the way the engine does: staged into a ledger
// transaction, remembered after the batch lands.
func (e *storeEnv) save(t *testing.T, p *Position) {
	t.Helper()
	err := e.ledger.RunTx(func(tx *chain.Tx) error {
		return e.positions.SaveInTx(tx, p)
	})
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	e.positions.remember(p)
}

func samplePosition(id uint64) *Position {
	return &Position{
		ID:        id,
		Creator:   common.HexToAddress("0xAA00000000000000000000000000000000000000"),
		Offer:     asset.Bundle{asset.NativeAmount("uluna", uint256.NewInt(100))},
		Ask:       asset.Bundle{asset.NativeAmount("uusd", uint256.NewInt(50))},
		Status:    Active,
		CreatedAt: 1700000000000,
	}
}

func TestNextIDMonotonic(t *testing.T) {
	e := newStoreEnv(t)

	var prev uint64
	for i := 0; i < 5; i++ {
		id, err := e.positions.NextID()
		if err != nil {
			t.Fatalf("next id failed: %v", err)
		}
		if id != prev+1 {
			t.Fatalf("id = %d, want %d", id, prev+1)
		}
		prev = id
	}
	if e.positions.LastID() != 5 {
		t.Errorf("last id = %d, want 5", e.positions.LastID())
	}
}

// Allocated ids survive a restart even when the create that allocated them
// failed, so an id is never handed out twice.
func TestNextIDSurvivesReopen(t *testing.T) {
	dbPath := fmt.Sprintf("./tmp_test_store_%s.db", t.Name())
	os.RemoveAll(dbPath)
	t.Cleanup(func() {
		os.RemoveAll(dbPath)
	})

	store, err := chain.OpenStore(dbPath)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	s, err := NewPositionStore(store.DB())
	if err != nil {
		t.Fatalf("store failed: %v", err)
	}

	// three ids allocated, none ever persisted as positions: all burned
	for i := 0; i < 3; i++ {
		if _, err := s.NextID(); err != nil {
			t.Fatalf("next id failed: %v", err)
		}
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	e := openStoreEnv(t, dbPath)
	id, err := e.positions.NextID()
	if err != nil {
		t.Fatalf("next id failed: %v", err)
	}
	if id != 4 {
		t.Errorf("id after reopen = %d, want 4 (burned ids not reused)", id)
	}
}

func TestSaveAndGet(t *testing.T) {
	e := newStoreEnv(t)
	e.save(t, samplePosition(1))

	p, err := e.positions.Get(1)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if p == nil {
		t.Fatal("position not found")
	}
	if p.Status != Active || len(p.Offer) != 1 {
		t.Errorf("unexpected record: %+v", p)
	}

	// absent id is nil without error
	p, err = e.positions.Get(9999)
	if err != nil {
		t.Fatalf("get absent failed: %v", err)
	}
	if p != nil {
		t.Errorf("expected nil for absent id, got %+v", p)
	}
}

// Readers get private copies: mutating a returned record must not leak
// into the store or other readers.
func TestGetReturnsCopy(t *testing.T) {
	e := newStoreEnv(t)
	e.save(t, samplePosition(1))

	p, err := e.positions.Get(1)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	p.Status = Executed
	p.ExecutedAt = 42

	q, err := e.positions.Get(1)
	if err != nil {
		t.Fatalf("second get failed: %v", err)
	}
	if q.Status != Active || q.ExecutedAt != 0 {
		t.Errorf("mutation leaked into the store: %+v", q)
	}
}

// A staged record is discarded with the rest of the transaction when the
// enclosing call fails.
func TestSaveInTxRollsBackWithLedger(t *testing.T) {
	e := newStoreEnv(t)

	err := e.ledger.RunTx(func(tx *chain.Tx) error {
		if err := e.positions.SaveInTx(tx, samplePosition(1)); err != nil {
			return err
		}
		return fmt.Errorf("boom")
	})
	if err == nil {
		t.Fatal("expected error")
	}

	p, err := e.positions.Get(1)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if p != nil {
		t.Errorf("rolled-back record is visible: %+v", p)
	}
}

func TestPositionsSurviveReopen(t *testing.T) {
	dbPath := fmt.Sprintf("./tmp_test_store_%s.db", t.Name())
	os.RemoveAll(dbPath)
	t.Cleanup(func() {
		os.RemoveAll(dbPath)
	})

	store, err := chain.OpenStore(dbPath)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	ledger, err := chain.NewLedger(store, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("ledger failed: %v", err)
	}
	s, err := NewPositionStore(store.DB())
	if err != nil {
		t.Fatalf("store failed: %v", err)
	}

	executed := samplePosition(1)
	executed.Status = Executed
	executed.ExecutedAt = 1700000001000
	err = ledger.RunTx(func(tx *chain.Tx) error {
		return s.SaveInTx(tx, executed)
	})
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	e2 := openStoreEnv(t, dbPath)
	p, err := e2.positions.Get(1)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if p == nil || p.Status != Executed {
		t.Errorf("record lost across reopen: %+v", p)
	}
}

func TestRecentNewestFirst(t *testing.T) {
	e := newStoreEnv(t)

	for i := uint64(1); i <= 5; i++ {
		e.save(t, samplePosition(i))
	}

	out, err := e.positions.Recent(3)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("got %d positions, want 3", len(out))
	}
	for i, want := range []uint64{5, 4, 3} {
		if out[i].ID != want {
			t.Errorf("out[%d].ID = %d, want %d", i, out[i].ID, want)
		}
	}
}
