package chain

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/otcer/otcer/pkg/asset"
)

// state holds the authoritative in-memory ledger. Amount and address values
// are treated as immutable: every write stores a fresh value, so snapshots
// taken by a Tx overlay stay valid.
type state struct {
	balances     map[string]*uint256.Int
	tokens       map[string]TokenInfo
	tokenBals    map[string]*uint256.Int
	allowances   map[string]*uint256.Int
	collections  map[string]CollectionInfo
	nftOwners    map[string]common.Address
	nftApprovals map[string]common.Address
}

func newState() *state {
	return &state{
		balances:     make(map[string]*uint256.Int),
		tokens:       make(map[string]TokenInfo),
		tokenBals:    make(map[string]*uint256.Int),
		allowances:   make(map[string]*uint256.Int),
		collections:  make(map[string]CollectionInfo),
		nftOwners:    make(map[string]common.Address),
		nftApprovals: make(map[string]common.Address),
	}
}

// Ledger is the host-side asset state machine: native coin balances plus
// fungible and non-fungible token ledgers. All mutation goes through RunTx,
// which buffers writes in an overlay and commits them atomically — a failed
// sub-call discards every write of the enclosing call.
type Ledger struct {
	mu    sync.RWMutex
	log   *zap.SugaredLogger
	store *Store
	base  *state
}

// NewLedger loads existing state from the store.
func NewLedger(store *Store, log *zap.SugaredLogger) (*Ledger, error) {
	st, err := store.loadState()
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger state: %w", err)
	}
	return &Ledger{log: log, store: store, base: st}, nil
}

// RunTx executes fn inside a buffered transaction. If fn returns an error
// nothing persists; otherwise the overlay is committed to memory and pebble
// in one batch.
func (l *Ledger) RunTx(fn func(*Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := newTx(l.base)
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.commit(l.store); err != nil {
		return fmt.Errorf("ledger commit: %w", err)
	}
	return nil
}

// Call runs a contract call: attached native coins move from sender into
// contract custody first, then body runs, all within one transaction.
func (l *Ledger) Call(sender, contract common.Address, attached asset.Coins, body func(*Tx) error) error {
	return l.RunTx(func(tx *Tx) error {
		if err := tx.sendCoins(sender, contract, attached); err != nil {
			return err
		}
		return body(tx)
	})
}

// ---- genesis / admin operations ----

// MintCoins credits native coins out of thin air (genesis and tests only).
func (l *Ledger) MintCoins(to common.Address, coins asset.Coins) error {
	return l.RunTx(func(tx *Tx) error {
		for _, c := range coins {
			key := balanceKey(to, c.Denom)
			tx.setBalance(key, new(uint256.Int).Add(tx.balance(key), c.Amount))
		}
		return nil
	})
}

// CreateToken registers a fungible token ledger at addr.
func (l *Ledger) CreateToken(addr common.Address, info TokenInfo) error {
	return l.RunTx(func(tx *Tx) error {
		key := tokenKey(addr)
		if _, ok := tx.token(key); ok {
			return fmt.Errorf("token %s already exists", addr.Hex())
		}
		tx.setToken(key, info)
		return nil
	})
}

// MintToken credits token units to an account.
func (l *Ledger) MintToken(contract, to common.Address, amount *uint256.Int) error {
	return l.RunTx(func(tx *Tx) error {
		if _, ok := tx.token(tokenKey(contract)); !ok {
			return fmt.Errorf("unknown token %s", contract.Hex())
		}
		key := tokenBalanceKey(contract, to)
		tx.setTokenBalance(key, new(uint256.Int).Add(tx.tokenBalance(key), amount))
		return nil
	})
}

// Approve lets spender move up to amount of owner's token balance.
func (l *Ledger) Approve(contract, owner, spender common.Address, amount *uint256.Int) error {
	return l.RunTx(func(tx *Tx) error {
		if _, ok := tx.token(tokenKey(contract)); !ok {
			return fmt.Errorf("unknown token %s", contract.Hex())
		}
		tx.setAllowance(allowanceKey(contract, owner, spender), new(uint256.Int).Set(amount))
		return nil
	})
}

// CreateCollection registers a non-fungible ledger at addr.
func (l *Ledger) CreateCollection(addr common.Address, info CollectionInfo) error {
	return l.RunTx(func(tx *Tx) error {
		key := collectionKey(addr)
		if _, ok := tx.collection(key); ok {
			return fmt.Errorf("collection %s already exists", addr.Hex())
		}
		tx.setCollection(key, info)
		return nil
	})
}

// MintNFT mints a fresh token id to owner.
func (l *Ledger) MintNFT(contract common.Address, tokenID string, owner common.Address) error {
	return l.RunTx(func(tx *Tx) error {
		if _, ok := tx.collection(collectionKey(contract)); !ok {
			return fmt.Errorf("unknown collection %s", contract.Hex())
		}
		key := nftOwnerKey(contract, tokenID)
		if cur, ok := tx.nftOwner(key); ok && cur != (common.Address{}) {
			return fmt.Errorf("token %s/%s already minted", contract.Hex(), tokenID)
		}
		tx.setNFTOwner(key, owner)
		return nil
	})
}

// ApproveNFT lets spender move one specific token of owner's.
func (l *Ledger) ApproveNFT(contract, owner, spender common.Address, tokenID string) error {
	return l.RunTx(func(tx *Tx) error {
		cur, ok := tx.nftOwner(nftOwnerKey(contract, tokenID))
		if !ok || cur != owner {
			return fmt.Errorf("approve: %s does not own %s/%s", owner.Hex(), contract.Hex(), tokenID)
		}
		tx.setNFTApproval(nftApprovalKey(contract, tokenID), spender)
		return nil
	})
}

// ---- read-only queries ----

// Balance returns the native balance of addr in denom.
func (l *Ledger) Balance(addr common.Address, denom string) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if amt, ok := l.base.balances[balanceKey(addr, denom)]; ok {
		return new(uint256.Int).Set(amt)
	}
	return uint256.NewInt(0)
}

// TokenBalance returns addr's balance on a fungible token ledger.
func (l *Ledger) TokenBalance(contract, addr common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if amt, ok := l.base.tokenBals[tokenBalanceKey(contract, addr)]; ok {
		return new(uint256.Int).Set(amt)
	}
	return uint256.NewInt(0)
}

// Allowance returns what spender may still move of owner's token balance.
func (l *Ledger) Allowance(contract, owner, spender common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if amt, ok := l.base.allowances[allowanceKey(contract, owner, spender)]; ok {
		return new(uint256.Int).Set(amt)
	}
	return uint256.NewInt(0)
}

// OwnerOf returns the owner of a non-fungible token, if minted.
func (l *Ledger) OwnerOf(contract common.Address, tokenID string) (common.Address, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	owner, ok := l.base.nftOwners[nftOwnerKey(contract, tokenID)]
	if !ok || owner == (common.Address{}) {
		return common.Address{}, false
	}
	return owner, true
}

// Token returns fungible token metadata.
func (l *Ledger) Token(contract common.Address) (TokenInfo, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	info, ok := l.base.tokens[tokenKey(contract)]
	return info, ok
}

// Collection returns non-fungible ledger metadata.
func (l *Ledger) Collection(contract common.Address) (CollectionInfo, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	info, ok := l.base.collections[collectionKey(contract)]
	return info, ok
}
