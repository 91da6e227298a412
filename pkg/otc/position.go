package otc

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/otcer/otcer/pkg/asset"
)

// Status is the lifecycle state of a position. Executed is terminal.
type Status int8

const (
	Active Status = iota
	Executed
)

func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case Executed:
		return "executed"
	default:
		return "unknown"
	}
}

// Position is one bilateral trade proposal and its lifecycle record.
// Positions are never deleted; settled ones remain queryable as an audit
// trail.
type Position struct {
	ID       uint64          `json:"id"`
	Creator  common.Address  `json:"creator"`
	Executor *common.Address `json:"executor,omitempty"`
	Offer    asset.Bundle    `json:"offer"`
	Ask      asset.Bundle    `json:"ask"`
	Status   Status          `json:"status"`

	// Unix milliseconds
	CreatedAt  int64 `json:"created_at"`
	ExecutedAt int64 `json:"executed_at,omitempty"`
}

// MayExecute reports whether addr is allowed to settle this position.
// Self-execution is permitted unless a different executor is named.
func (p *Position) MayExecute(addr common.Address) bool {
	if p.Executor == nil {
		return true
	}
	return *p.Executor == addr
}
