package chain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Store wraps the pebble database shared by the ledger and the position
// store. Ledger state is loaded eagerly at startup; mutations land through
// atomic batches built by Tx.commit.
type Store struct {
	db *pebble.DB
}

// OpenStore opens (or creates) the pebble database at path.
func OpenStore(path string) (*Store, error) {
	opts := &pebble.Options{
		Cache:        pebble.NewCache(64 << 20),
		MemTableSize: 32 << 20,
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying database for sibling stores sharing the file.
func (s *Store) DB() *pebble.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

func amountValue(a *uint256.Int) []byte { return []byte(a.Dec()) }

func parseAmount(v []byte) (*uint256.Int, error) {
	return uint256.FromDecimal(string(v))
}

func addressValue(a common.Address) []byte { return []byte(a.Hex()) }

func parseAddress(v []byte) (common.Address, error) {
	s := string(v)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("bad address value %q", s)
	}
	return common.HexToAddress(s), nil
}

// loadState scans the full database and rebuilds the in-memory ledger
// state. Keys outside the ledger namespaces (e.g. "otc:") are skipped.
func (s *Store) loadState() (*state, error) {
	st := newState()

	iter, err := s.db.NewIter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open state iterator: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		key := string(iter.Key())
		val := iter.Value()

		switch {
		case strings.HasPrefix(key, prefixBalance):
			amt, err := parseAmount(val)
			if err != nil {
				return nil, fmt.Errorf("balance %s: %w", key, err)
			}
			st.balances[key] = amt

		case strings.HasPrefix(key, prefixTokenBalance):
			amt, err := parseAmount(val)
			if err != nil {
				return nil, fmt.Errorf("token balance %s: %w", key, err)
			}
			st.tokenBals[key] = amt

		case strings.HasPrefix(key, prefixAllowance):
			amt, err := parseAmount(val)
			if err != nil {
				return nil, fmt.Errorf("allowance %s: %w", key, err)
			}
			st.allowances[key] = amt

		case strings.HasPrefix(key, prefixToken):
			var info TokenInfo
			if err := json.Unmarshal(val, &info); err != nil {
				return nil, fmt.Errorf("token meta %s: %w", key, err)
			}
			st.tokens[key] = info

		case strings.HasPrefix(key, prefixCollection):
			var info CollectionInfo
			if err := json.Unmarshal(val, &info); err != nil {
				return nil, fmt.Errorf("collection meta %s: %w", key, err)
			}
			st.collections[key] = info

		case strings.HasPrefix(key, prefixNFTOwner):
			addr, err := parseAddress(val)
			if err != nil {
				return nil, fmt.Errorf("nft owner %s: %w", key, err)
			}
			st.nftOwners[key] = addr

		case strings.HasPrefix(key, prefixNFTApproval):
			addr, err := parseAddress(val)
			if err != nil {
				return nil, fmt.Errorf("nft approval %s: %w", key, err)
			}
			st.nftApprovals[key] = addr
		}
	}

	return st, iter.Error()
}
