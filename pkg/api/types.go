package api

// Request/response types for REST endpoints and WebSocket messages

import (
	"github.com/otcer/otcer/pkg/asset"
	"github.com/otcer/otcer/pkg/otc"
)

// CreatePositionRequest opens a new OTC position. Funds stand in for the
// coins attached to the call; the sender is trusted at this surface (the
// node fronts a devnet ledger, not a signing gateway).
type CreatePositionRequest struct {
	Sender   string       `json:"sender"`
	Executor string       `json:"executor,omitempty"`
	Offer    asset.Bundle `json:"offer"`
	Ask      asset.Bundle `json:"ask"`
	Funds    []asset.Coin `json:"funds"`
}

type CreatePositionResponse struct {
	ID uint64 `json:"id"`
}

// ExecutePositionRequest settles the position in the URL path.
type ExecutePositionRequest struct {
	Sender string       `json:"sender"`
	Funds  []asset.Coin `json:"funds"`
}

// PositionInfo is the REST/WebSocket view of a position.
type PositionInfo struct {
	ID         uint64       `json:"id"`
	Creator    string       `json:"creator"`
	Executor   string       `json:"executor,omitempty"`
	Offer      asset.Bundle `json:"offer"`
	Ask        asset.Bundle `json:"ask"`
	Status     string       `json:"status"`
	CreatedAt  int64        `json:"createdAt"`
	ExecutedAt int64        `json:"executedAt,omitempty"`
}

func newPositionInfo(p *otc.Position) PositionInfo {
	info := PositionInfo{
		ID:         p.ID,
		Creator:    p.Creator.Hex(),
		Offer:      p.Offer,
		Ask:        p.Ask,
		Status:     p.Status.String(),
		CreatedAt:  p.CreatedAt,
		ExecutedAt: p.ExecutedAt,
	}
	if p.Executor != nil {
		info.Executor = p.Executor.Hex()
	}
	return info
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// PositionEvent is broadcast on the "positions" WebSocket channel.
type PositionEvent struct {
	Type     string       `json:"type"` // "position_created" or "position_executed"
	Position PositionInfo `json:"position"`
}

// WSSubscribeRequest is the client-to-server subscription message.
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}
