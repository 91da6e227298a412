package otc

import "errors"

// Every error is terminal for the triggering request: the enclosing ledger
// transaction is discarded and the error surfaces verbatim to the caller.
var (
	ErrInvalidBundle       = errors.New("invalid bundle")
	ErrFundsMismatch       = errors.New("funds mismatch")
	ErrPositionNotFound    = errors.New("position not found")
	ErrPositionNotActive   = errors.New("position not active")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrAssetTransferFailed = errors.New("asset transfer failed")
)
