package asset

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/holiman/uint256"
)

// Coin is an amount of a single native denom.
type Coin struct {
	Denom  string
	Amount *uint256.Int
}

func NewCoin(denom string, amount uint64) Coin {
	return Coin{Denom: denom, Amount: uint256.NewInt(amount)}
}

func (c Coin) String() string {
	if c.Amount == nil {
		return "0" + c.Denom
	}
	return c.Amount.Dec() + c.Denom
}

type coinJSON struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

func (c Coin) MarshalJSON() ([]byte, error) {
	amt := "0"
	if c.Amount != nil {
		amt = c.Amount.Dec()
	}
	return json.Marshal(coinJSON{Denom: c.Denom, Amount: amt})
}

func (c *Coin) UnmarshalJSON(data []byte) error {
	var in coinJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	amt, err := uint256.FromDecimal(in.Amount)
	if err != nil {
		return fmt.Errorf("bad coin amount %q: %w", in.Amount, err)
	}
	c.Denom = in.Denom
	c.Amount = amt
	return nil
}

// Coins is a canonical coin set: sorted by denom, one entry per denom,
// zero amounts dropped. Always construct through NewCoins or Add.
type Coins []Coin

// NewCoins merges duplicate denoms and normalizes ordering.
func NewCoins(coins ...Coin) Coins {
	merged := make(map[string]*uint256.Int)
	for _, c := range coins {
		if c.Amount == nil || c.Amount.IsZero() {
			continue
		}
		if cur, ok := merged[c.Denom]; ok {
			merged[c.Denom] = new(uint256.Int).Add(cur, c.Amount)
		} else {
			merged[c.Denom] = new(uint256.Int).Set(c.Amount)
		}
	}
	out := make(Coins, 0, len(merged))
	for denom, amt := range merged {
		out = append(out, Coin{Denom: denom, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Denom < out[j].Denom })
	return out
}

// Add returns the union of both sets.
func (c Coins) Add(other Coins) Coins {
	return NewCoins(append(append([]Coin{}, c...), other...)...)
}

// AmountOf returns the amount of denom, zero if absent.
func (c Coins) AmountOf(denom string) *uint256.Int {
	for _, coin := range c {
		if coin.Denom == denom {
			return new(uint256.Int).Set(coin.Amount)
		}
	}
	return uint256.NewInt(0)
}

// Equal reports exact multiset equality. Both sides are assumed canonical.
func (c Coins) Equal(other Coins) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if c[i].Denom != other[i].Denom || !c[i].Amount.Eq(other[i].Amount) {
			return false
		}
	}
	return true
}

func (c Coins) IsZero() bool { return len(c) == 0 }

func (c Coins) String() string {
	if len(c) == 0 {
		return "[]"
	}
	parts := make([]string, len(c))
	for i, coin := range c {
		parts[i] = coin.String()
	}
	return strings.Join(parts, ",")
}
