package chain

import (
	"fmt"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/otcer/otcer/pkg/asset"
)

var (
	alice    = common.HexToAddress("0xAA00000000000000000000000000000000000000")
	bob      = common.HexToAddress("0xBB00000000000000000000000000000000000000")
	escrow   = common.HexToAddress("0xEE00000000000000000000000000000000000000")
	cw20Addr = common.HexToAddress("0x1100000000000000000000000000000000000011")
	cw721    = common.HexToAddress("0x2200000000000000000000000000000000000022")
)

// newTestStore opens a pebble database under a unique path per test to
// avoid lock conflicts.
func newTestStore(t *testing.T) *Store {
	dbPath := fmt.Sprintf("./tmp_test_ledger_%s.db", t.Name())
	os.RemoveAll(dbPath)
	t.Cleanup(func() {
		os.RemoveAll(dbPath)
	})

	store, err := OpenStore(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func newTestLedger(t *testing.T) *Ledger {
	l, err := NewLedger(newTestStore(t), zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("failed to create ledger: %v", err)
	}
	return l
}

func TestMintAndSendCoins(t *testing.T) {
	l := newTestLedger(t)

	if err := l.MintCoins(alice, asset.NewCoins(asset.NewCoin("uluna", 1000))); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	err := l.RunTx(func(tx *Tx) error {
		return tx.sendCoins(alice, bob, asset.NewCoins(asset.NewCoin("uluna", 400)))
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if got := l.Balance(alice, "uluna").Uint64(); got != 600 {
		t.Errorf("alice = %d, want 600", got)
	}
	if got := l.Balance(bob, "uluna").Uint64(); got != 400 {
		t.Errorf("bob = %d, want 400", got)
	}
}

func TestSendCoinsInsufficient(t *testing.T) {
	l := newTestLedger(t)

	if err := l.MintCoins(alice, asset.NewCoins(asset.NewCoin("uluna", 100))); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	err := l.RunTx(func(tx *Tx) error {
		return tx.sendCoins(alice, bob, asset.NewCoins(asset.NewCoin("uluna", 101)))
	})
	if err == nil {
		t.Fatal("expected insufficient funds error")
	}
	if got := l.Balance(alice, "uluna").Uint64(); got != 100 {
		t.Errorf("alice changed after failed tx: %d", got)
	}
}

// A failing transaction must discard every write, including ones made
// before the failing step.
func TestTxRollbackOnError(t *testing.T) {
	l := newTestLedger(t)

	if err := l.MintCoins(alice, asset.NewCoins(asset.NewCoin("uluna", 1000))); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	err := l.RunTx(func(tx *Tx) error {
		if err := tx.sendCoins(alice, bob, asset.NewCoins(asset.NewCoin("uluna", 500))); err != nil {
			return err
		}
		return fmt.Errorf("boom")
	})
	if err == nil {
		t.Fatal("expected error")
	}

	if got := l.Balance(alice, "uluna").Uint64(); got != 1000 {
		t.Errorf("alice = %d, want 1000 (rollback)", got)
	}
	if got := l.Balance(bob, "uluna").Uint64(); got != 0 {
		t.Errorf("bob = %d, want 0 (rollback)", got)
	}
}

func TestCallMovesAttachedFunds(t *testing.T) {
	l := newTestLedger(t)

	if err := l.MintCoins(alice, asset.NewCoins(asset.NewCoin("uluna", 500))); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	attached := asset.NewCoins(asset.NewCoin("uluna", 200))
	err := l.Call(alice, escrow, attached, func(tx *Tx) error {
		// attached coins are in contract custody before the body runs
		if got := tx.balance(balanceKey(escrow, "uluna")).Uint64(); got != 200 {
			return fmt.Errorf("escrow sees %d during call, want 200", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}

	if got := l.Balance(escrow, "uluna").Uint64(); got != 200 {
		t.Errorf("escrow = %d, want 200", got)
	}
}

func TestTokenTransferFromAllowance(t *testing.T) {
	l := newTestLedger(t)

	if err := l.CreateToken(cw20Addr, TokenInfo{Name: "Test Token", Symbol: "TST", Decimals: 6}); err != nil {
		t.Fatalf("create token failed: %v", err)
	}
	if err := l.MintToken(cw20Addr, alice, uint256.NewInt(100)); err != nil {
		t.Fatalf("mint token failed: %v", err)
	}
	if err := l.Approve(cw20Addr, alice, escrow, uint256.NewInt(60)); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	// escrow pulls 60 from alice via transfer-from
	tr := asset.FungibleAmount(cw20Addr, uint256.NewInt(60)).TransferTo(alice, bob)
	if err := l.RunTx(func(tx *Tx) error { return tx.ExecuteAs(escrow, tr) }); err != nil {
		t.Fatalf("transfer-from failed: %v", err)
	}

	if got := l.TokenBalance(cw20Addr, alice).Uint64(); got != 40 {
		t.Errorf("alice token balance = %d, want 40", got)
	}
	if got := l.TokenBalance(cw20Addr, bob).Uint64(); got != 60 {
		t.Errorf("bob token balance = %d, want 60", got)
	}
	if got := l.Allowance(cw20Addr, alice, escrow).Uint64(); got != 0 {
		t.Errorf("allowance = %d, want 0", got)
	}

	// a second pull has no allowance left
	tr2 := asset.FungibleAmount(cw20Addr, uint256.NewInt(1)).TransferTo(alice, bob)
	if err := l.RunTx(func(tx *Tx) error { return tx.ExecuteAs(escrow, tr2) }); err == nil {
		t.Fatal("expected allowance exhaustion")
	}
}

func TestTokenTransferOwnMove(t *testing.T) {
	l := newTestLedger(t)

	if err := l.CreateToken(cw20Addr, TokenInfo{Name: "Test Token", Symbol: "TST", Decimals: 6}); err != nil {
		t.Fatalf("create token failed: %v", err)
	}
	if err := l.MintToken(cw20Addr, alice, uint256.NewInt(10)); err != nil {
		t.Fatalf("mint token failed: %v", err)
	}

	// moving your own balance needs no allowance
	tr := asset.FungibleAmount(cw20Addr, uint256.NewInt(10)).TransferTo(alice, bob)
	if err := l.RunTx(func(tx *Tx) error { return tx.ExecuteAs(alice, tr) }); err != nil {
		t.Fatalf("own transfer failed: %v", err)
	}
	if got := l.TokenBalance(cw20Addr, bob).Uint64(); got != 10 {
		t.Errorf("bob = %d, want 10", got)
	}
}

func TestNFTTransferRequiresApproval(t *testing.T) {
	l := newTestLedger(t)

	if err := l.CreateCollection(cw721, CollectionInfo{Name: "Dragons", Symbol: "DRG"}); err != nil {
		t.Fatalf("create collection failed: %v", err)
	}
	if err := l.MintNFT(cw721, "42", alice); err != nil {
		t.Fatalf("mint nft failed: %v", err)
	}

	// no approval yet: escrow cannot pull the token
	tr := asset.NonFungibleUnit(cw721, "42").TransferTo(alice, bob)
	if err := l.RunTx(func(tx *Tx) error { return tx.ExecuteAs(escrow, tr) }); err == nil {
		t.Fatal("expected approval failure")
	}

	if err := l.ApproveNFT(cw721, alice, escrow, "42"); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if err := l.RunTx(func(tx *Tx) error { return tx.ExecuteAs(escrow, tr) }); err != nil {
		t.Fatalf("approved transfer failed: %v", err)
	}

	owner, ok := l.OwnerOf(cw721, "42")
	if !ok || owner != bob {
		t.Errorf("owner = %s, want %s", owner.Hex(), bob.Hex())
	}

	// approval is consumed by the transfer
	tr2 := asset.NonFungibleUnit(cw721, "42").TransferTo(bob, alice)
	if err := l.RunTx(func(tx *Tx) error { return tx.ExecuteAs(escrow, tr2) }); err == nil {
		t.Fatal("stale approval should not authorize a second transfer")
	}
}

func TestNativeTransferFromOtherRejected(t *testing.T) {
	l := newTestLedger(t)

	if err := l.MintCoins(alice, asset.NewCoins(asset.NewCoin("uluna", 100))); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	// native coins have no allowance mechanism: only the holder moves them
	tr := asset.NativeAmount("uluna", uint256.NewInt(50)).TransferTo(alice, bob)
	if err := l.RunTx(func(tx *Tx) error { return tx.ExecuteAs(escrow, tr) }); err == nil {
		t.Fatal("expected unauthorized native transfer to fail")
	}
}

func TestStatePersistsAcrossReopen(t *testing.T) {
	dbPath := fmt.Sprintf("./tmp_test_ledger_%s.db", t.Name())
	os.RemoveAll(dbPath)
	t.Cleanup(func() {
		os.RemoveAll(dbPath)
	})

	store, err := OpenStore(dbPath)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	l, err := NewLedger(store, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("ledger failed: %v", err)
	}

	if err := l.MintCoins(alice, asset.NewCoins(asset.NewCoin("uluna", 777))); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if err := l.CreateToken(cw20Addr, TokenInfo{Name: "Test Token", Symbol: "TST", Decimals: 6}); err != nil {
		t.Fatalf("create token failed: %v", err)
	}
	if err := l.MintToken(cw20Addr, bob, uint256.NewInt(55)); err != nil {
		t.Fatalf("mint token failed: %v", err)
	}
	if err := l.CreateCollection(cw721, CollectionInfo{Name: "Dragons", Symbol: "DRG"}); err != nil {
		t.Fatalf("create collection failed: %v", err)
	}
	if err := l.MintNFT(cw721, "9", alice); err != nil {
		t.Fatalf("mint nft failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	store2, err := OpenStore(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	t.Cleanup(func() {
		store2.Close()
	})
	l2, err := NewLedger(store2, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("ledger reload failed: %v", err)
	}

	if got := l2.Balance(alice, "uluna").Uint64(); got != 777 {
		t.Errorf("alice = %d after reopen, want 777", got)
	}
	if got := l2.TokenBalance(cw20Addr, bob).Uint64(); got != 55 {
		t.Errorf("bob token = %d after reopen, want 55", got)
	}
	if info, ok := l2.Token(cw20Addr); !ok || info.Symbol != "TST" {
		t.Errorf("token meta lost: %+v %v", info, ok)
	}
	owner, ok := l2.OwnerOf(cw721, "9")
	if !ok || owner != alice {
		t.Errorf("nft owner lost: %s %v", owner.Hex(), ok)
	}
}

func TestContractAddressDeterministic(t *testing.T) {
	a := ContractAddress("otcer")
	b := ContractAddress("otcer")
	if a != b {
		t.Error("same label should map to same address")
	}
	if a == ContractAddress("other") {
		t.Error("different labels should map to different addresses")
	}
	if a == (common.Address{}) {
		t.Error("contract address should not be zero")
	}
}
