package asset

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAsset   = errors.New("invalid asset")
	ErrEmptyBundle    = errors.New("empty bundle")
	ErrDuplicateAsset = errors.New("duplicate asset in bundle")
)

// Bundle is an ordered sequence of asset declarations making up one trade
// leg. Each physical asset may appear at most once.
type Bundle []Info

// Validate rejects empty bundles, invalid items, and duplicate assets.
func (b Bundle) Validate() error {
	if len(b) == 0 {
		return ErrEmptyBundle
	}
	seen := make(map[string]bool, len(b))
	for idx, item := range b {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("item %d: %w", idx, err)
		}
		id := item.ID()
		if seen[id] {
			return fmt.Errorf("%w: %s", ErrDuplicateAsset, id)
		}
		seen[id] = true
	}
	return nil
}

// NativeCoins returns the native-denominated portion of the bundle as a
// canonical coin set. Token items contribute nothing.
func (b Bundle) NativeCoins() Coins {
	var coins []Coin
	for _, item := range b {
		if item.Kind == Native {
			coins = append(coins, Coin{Denom: item.Denom, Amount: item.Amount})
		}
	}
	return NewCoins(coins...)
}
