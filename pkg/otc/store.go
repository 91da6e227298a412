package otc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/otcer/otcer/pkg/chain"
)

// Pebble key schema, in the ledger-shared database:
//
//	otc:seq            last allocated position id (8-byte big-endian)
//	otc:pos:{id}       position JSON, id zero-padded for ordered scans
const (
	seqKey         = "otc:seq"
	prefixPosition = "otc:pos:"
)

func positionKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixPosition, id))
}

func positionScanBounds() ([]byte, []byte) {
	lower := []byte(prefixPosition)
	upper := make([]byte, len(lower))
	copy(upper, lower)
	upper[len(upper)-1]++
	return lower, upper
}

// PositionStore is the durable map from position id to record, plus the
// monotonic id counter. Ids start at 1 and are never reused, even when the
// operation that allocated one fails. Records are written through SaveInTx
// so they commit in the same batch as the ledger moves they describe;
// readers always receive private copies.
type PositionStore struct {
	mu     sync.RWMutex
	db     *pebble.DB
	cache  map[uint64]*Position
	lastID uint64
}

// NewPositionStore attaches to the shared database and recovers the
// counter.
func NewPositionStore(db *pebble.DB) (*PositionStore, error) {
	s := &PositionStore{db: db, cache: make(map[uint64]*Position)}

	val, closer, err := db.Get([]byte(seqKey))
	if err == nil {
		if len(val) == 8 {
			s.lastID = binary.BigEndian.Uint64(val)
		}
		closer.Close()
	} else if err != pebble.ErrNotFound {
		return nil, fmt.Errorf("failed to read position counter: %w", err)
	}

	return s, nil
}

// NextID allocates a fresh, strictly increasing id and persists the
// counter before returning. A burned id (allocation followed by a failed
// create) is never handed out again.
func (s *PositionStore) NextID() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.lastID + 1
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], next)
	if err := s.db.Set([]byte(seqKey), buf[:], pebble.Sync); err != nil {
		return 0, fmt.Errorf("failed to persist position counter: %w", err)
	}
	s.lastID = next
	return next, nil
}

// SaveInTx stages the position record into the transaction's commit batch,
// so the record lands durable if and only if the transfers in the same
// transaction do. The caller remembers the record after the transaction
// commits.
func (s *PositionStore) SaveInTx(tx *chain.Tx, p *Position) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal position: %w", err)
	}
	tx.SetRaw(positionKey(p.ID), data)
	return nil
}

// remember installs the committed record in the read cache. The store takes
// ownership of p; callers must not mutate it afterwards.
func (s *PositionStore) remember(p *Position) {
	s.mu.Lock()
	s.cache[p.ID] = p
	s.mu.Unlock()
}

// Get loads a position by id. Returns nil without error if absent, so the
// read path stays side-effect-free; callers decide whether absence is an
// error. The returned record is a private copy.
func (s *PositionStore) Get(id uint64) (*Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.getLocked(id)
	if err != nil || p == nil {
		return nil, err
	}
	cp := *p
	return &cp, nil
}

func (s *PositionStore) getLocked(id uint64) (*Position, error) {
	if p, ok := s.cache[id]; ok {
		return p, nil
	}

	data, closer, err := s.db.Get(positionKey(id))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position %d: %w", id, err)
	}
	defer closer.Close()

	var p Position
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal position %d: %w", id, err)
	}
	s.cache[id] = &p
	return &p, nil
}

// Recent returns up to limit positions, newest first. Each record is a
// fresh decode, never a cache pointer.
func (s *PositionStore) Recent(limit int) ([]*Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lower, upper := positionScanBounds()
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("failed to open position iterator: %w", err)
	}
	defer iter.Close()

	var out []*Position
	for iter.Last(); iter.Valid() && len(out) < limit; iter.Prev() {
		var p Position
		if err := json.Unmarshal(iter.Value(), &p); err != nil {
			continue // skip invalid entries
		}
		out = append(out, &p)
	}
	return out, nil
}

// LastID returns the most recently allocated id (0 before any allocation).
func (s *PositionStore) LastID() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastID
}
