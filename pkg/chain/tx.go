package chain

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/otcer/otcer/pkg/asset"
)

// Tx is a buffered view over the ledger. Reads fall through to the base
// state, writes stay in the overlay until commit. Discarding a Tx (by
// returning an error from RunTx) costs nothing.
type Tx struct {
	base *state

	balances     map[string]*uint256.Int
	tokens       map[string]TokenInfo
	tokenBals    map[string]*uint256.Int
	allowances   map[string]*uint256.Int
	collections  map[string]CollectionInfo
	nftOwners    map[string]common.Address
	nftApprovals map[string]common.Address
	raw          map[string][]byte
}

func newTx(base *state) *Tx {
	return &Tx{
		base:         base,
		balances:     make(map[string]*uint256.Int),
		tokens:       make(map[string]TokenInfo),
		tokenBals:    make(map[string]*uint256.Int),
		allowances:   make(map[string]*uint256.Int),
		collections:  make(map[string]CollectionInfo),
		nftOwners:    make(map[string]common.Address),
		nftApprovals: make(map[string]common.Address),
		raw:          make(map[string][]byte),
	}
}

// SetRaw stages an opaque key/value write into the transaction's commit
// batch. Sibling stores sharing the database use it for records that must
// land atomically with the ledger state; keys must stay outside the ledger
// key prefixes so loadState skips them.
func (tx *Tx) SetRaw(key, value []byte) {
	tx.raw[string(key)] = value
}

// ---- overlay reads and writes ----

func (tx *Tx) balance(key string) *uint256.Int {
	if amt, ok := tx.balances[key]; ok {
		return amt
	}
	if amt, ok := tx.base.balances[key]; ok {
		return amt
	}
	return uint256.NewInt(0)
}

func (tx *Tx) setBalance(key string, amt *uint256.Int) { tx.balances[key] = amt }

func (tx *Tx) tokenBalance(key string) *uint256.Int {
	if amt, ok := tx.tokenBals[key]; ok {
		return amt
	}
	if amt, ok := tx.base.tokenBals[key]; ok {
		return amt
	}
	return uint256.NewInt(0)
}

func (tx *Tx) setTokenBalance(key string, amt *uint256.Int) { tx.tokenBals[key] = amt }

func (tx *Tx) allowance(key string) *uint256.Int {
	if amt, ok := tx.allowances[key]; ok {
		return amt
	}
	if amt, ok := tx.base.allowances[key]; ok {
		return amt
	}
	return uint256.NewInt(0)
}

func (tx *Tx) setAllowance(key string, amt *uint256.Int) { tx.allowances[key] = amt }

func (tx *Tx) token(key string) (TokenInfo, bool) {
	if info, ok := tx.tokens[key]; ok {
		return info, true
	}
	info, ok := tx.base.tokens[key]
	return info, ok
}

func (tx *Tx) setToken(key string, info TokenInfo) { tx.tokens[key] = info }

func (tx *Tx) collection(key string) (CollectionInfo, bool) {
	if info, ok := tx.collections[key]; ok {
		return info, true
	}
	info, ok := tx.base.collections[key]
	return info, ok
}

func (tx *Tx) setCollection(key string, info CollectionInfo) { tx.collections[key] = info }

func (tx *Tx) nftOwner(key string) (common.Address, bool) {
	if owner, ok := tx.nftOwners[key]; ok {
		return owner, owner != (common.Address{})
	}
	owner, ok := tx.base.nftOwners[key]
	return owner, ok && owner != (common.Address{})
}

func (tx *Tx) setNFTOwner(key string, owner common.Address) { tx.nftOwners[key] = owner }

// nftApproval returns the approved spender for a token, zero if none.
func (tx *Tx) nftApproval(key string) common.Address {
	if spender, ok := tx.nftApprovals[key]; ok {
		return spender
	}
	return tx.base.nftApprovals[key]
}

func (tx *Tx) setNFTApproval(key string, spender common.Address) { tx.nftApprovals[key] = spender }

// ---- transfer semantics ----

// sendCoins moves native coins between accounts.
func (tx *Tx) sendCoins(from, to common.Address, coins asset.Coins) error {
	for _, c := range coins {
		fromKey := balanceKey(from, c.Denom)
		have := tx.balance(fromKey)
		if have.Lt(c.Amount) {
			return fmt.Errorf("insufficient funds: %s has %s%s, needs %s", from.Hex(), have.Dec(), c.Denom, c.String())
		}
		tx.setBalance(fromKey, new(uint256.Int).Sub(have, c.Amount))
		toKey := balanceKey(to, c.Denom)
		tx.setBalance(toKey, new(uint256.Int).Add(tx.balance(toKey), c.Amount))
	}
	return nil
}

func (tx *Tx) moveToken(contract, from, to common.Address, amount *uint256.Int) error {
	if _, ok := tx.token(tokenKey(contract)); !ok {
		return fmt.Errorf("unknown token %s", contract.Hex())
	}
	fromKey := tokenBalanceKey(contract, from)
	have := tx.tokenBalance(fromKey)
	if have.Lt(amount) {
		return fmt.Errorf("insufficient token balance: %s has %s of %s, needs %s", from.Hex(), have.Dec(), contract.Hex(), amount.Dec())
	}
	tx.setTokenBalance(fromKey, new(uint256.Int).Sub(have, amount))
	toKey := tokenBalanceKey(contract, to)
	tx.setTokenBalance(toKey, new(uint256.Int).Add(tx.tokenBalance(toKey), amount))
	return nil
}

func (tx *Tx) spendAllowance(contract, owner, spender common.Address, amount *uint256.Int) error {
	key := allowanceKey(contract, owner, spender)
	have := tx.allowance(key)
	if have.Lt(amount) {
		return fmt.Errorf("insufficient allowance: %s allows %s only %s of %s", owner.Hex(), spender.Hex(), have.Dec(), contract.Hex())
	}
	tx.setAllowance(key, new(uint256.Int).Sub(have, amount))
	return nil
}

func (tx *Tx) moveNFT(contract, from, to, actor common.Address, tokenID string) error {
	ownerKey := nftOwnerKey(contract, tokenID)
	owner, ok := tx.nftOwner(ownerKey)
	if !ok {
		return fmt.Errorf("unknown token %s/%s", contract.Hex(), tokenID)
	}
	if owner != from {
		return fmt.Errorf("token %s/%s not owned by %s", contract.Hex(), tokenID, from.Hex())
	}
	if from != actor {
		apprKey := nftApprovalKey(contract, tokenID)
		if tx.nftApproval(apprKey) != actor {
			return fmt.Errorf("token %s/%s: %s not approved to transfer", contract.Hex(), tokenID, actor.Hex())
		}
	}
	// transfer clears any outstanding approval
	tx.setNFTApproval(nftApprovalKey(contract, tokenID), common.Address{})
	tx.setNFTOwner(ownerKey, to)
	return nil
}

// ExecuteAs runs one transfer instruction on behalf of actor. When the
// source is not the actor itself, fungible moves consume allowance and
// non-fungible moves require a prior approval, mirroring transfer-from
// token semantics.
func (tx *Tx) ExecuteAs(actor common.Address, tr asset.Transfer) error {
	switch tr.Info.Kind {
	case asset.Native:
		if tr.From != actor {
			return fmt.Errorf("native transfer from %s not authorized for %s", tr.From.Hex(), actor.Hex())
		}
		return tx.sendCoins(tr.From, tr.To, asset.NewCoins(asset.Coin{Denom: tr.Info.Denom, Amount: tr.Info.Amount}))

	case asset.Fungible:
		if tr.From != actor {
			if err := tx.spendAllowance(tr.Info.Contract, tr.From, actor, tr.Info.Amount); err != nil {
				return err
			}
		}
		return tx.moveToken(tr.Info.Contract, tr.From, tr.To, tr.Info.Amount)

	case asset.NonFungible:
		return tx.moveNFT(tr.Info.Contract, tr.From, tr.To, actor, tr.Info.TokenID)

	default:
		return fmt.Errorf("unknown asset kind %d", tr.Info.Kind)
	}
}

// ---- commit ----

// commit writes the overlay to pebble in one batch and, only after the
// batch lands, merges it into the base state.
func (tx *Tx) commit(store *Store) error {
	batch := store.db.NewBatch()
	defer batch.Close()

	for key, amt := range tx.balances {
		if err := batch.Set([]byte(key), amountValue(amt), nil); err != nil {
			return err
		}
	}
	for key, amt := range tx.tokenBals {
		if err := batch.Set([]byte(key), amountValue(amt), nil); err != nil {
			return err
		}
	}
	for key, amt := range tx.allowances {
		if err := batch.Set([]byte(key), amountValue(amt), nil); err != nil {
			return err
		}
	}
	for key, info := range tx.tokens {
		data, err := json.Marshal(info)
		if err != nil {
			return err
		}
		if err := batch.Set([]byte(key), data, nil); err != nil {
			return err
		}
	}
	for key, info := range tx.collections {
		data, err := json.Marshal(info)
		if err != nil {
			return err
		}
		if err := batch.Set([]byte(key), data, nil); err != nil {
			return err
		}
	}
	for key, owner := range tx.nftOwners {
		if err := batch.Set([]byte(key), addressValue(owner), nil); err != nil {
			return err
		}
	}
	for key, spender := range tx.nftApprovals {
		if err := batch.Set([]byte(key), addressValue(spender), nil); err != nil {
			return err
		}
	}
	for key, value := range tx.raw {
		if err := batch.Set([]byte(key), value, nil); err != nil {
			return err
		}
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return err
	}

	for key, amt := range tx.balances {
		tx.base.balances[key] = amt
	}
	for key, amt := range tx.tokenBals {
		tx.base.tokenBals[key] = amt
	}
	for key, amt := range tx.allowances {
		tx.base.allowances[key] = amt
	}
	for key, info := range tx.tokens {
		tx.base.tokens[key] = info
	}
	for key, info := range tx.collections {
		tx.base.collections[key] = info
	}
	for key, owner := range tx.nftOwners {
		tx.base.nftOwners[key] = owner
	}
	for key, spender := range tx.nftApprovals {
		tx.base.nftApprovals[key] = spender
	}
	return nil
}
