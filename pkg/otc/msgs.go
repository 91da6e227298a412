package otc

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/otcer/otcer/pkg/asset"
)

// CreateOtcMsg opens a new position: offer goes into escrow, ask is what
// the engine demands from whoever executes. A non-nil Executor restricts
// settlement to that address.
type CreateOtcMsg struct {
	Executor *common.Address `json:"executor,omitempty"`
	Offer    asset.Bundle    `json:"offer"`
	Ask      asset.Bundle    `json:"ask"`
}

// ExecuteOtcMsg settles the position with the given id.
type ExecuteOtcMsg struct {
	ID uint64 `json:"id"`
}
