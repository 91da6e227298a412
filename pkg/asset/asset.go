package asset

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Kind enumerates the supported asset variants.
// The set is closed: adding a kind means a new constant plus cases in
// Validate and Tx.ExecuteAs, nothing else.
type Kind int8

const (
	Native      Kind = iota // ledger-native coin, identified by denom
	Fungible                // token contract balance
	NonFungible             // token contract unit, identified by token id
)

func (k Kind) String() string {
	switch k {
	case Native:
		return "native"
	case Fungible:
		return "fungible"
	case NonFungible:
		return "non_fungible"
	default:
		return "unknown"
	}
}

// ParseKind maps the wire/config name of a kind back to its constant.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "native":
		return Native, nil
	case "fungible":
		return Fungible, nil
	case "non_fungible":
		return NonFungible, nil
	default:
		return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidAsset, s)
	}
}

// Info identifies one asset and, for divisible kinds, its amount.
// Which fields are meaningful depends on Kind:
//
//	Native:      Denom, Amount
//	Fungible:    Contract, Amount
//	NonFungible: Contract, TokenID (exactly one indivisible unit)
type Info struct {
	Kind     Kind
	Denom    string
	Contract common.Address
	Amount   *uint256.Int
	TokenID  string
}

// NativeAmount declares an amount of a ledger-native coin.
func NativeAmount(denom string, amount *uint256.Int) Info {
	return Info{Kind: Native, Denom: denom, Amount: amount}
}

// FungibleAmount declares an amount of a fungible token.
func FungibleAmount(contract common.Address, amount *uint256.Int) Info {
	return Info{Kind: Fungible, Contract: contract, Amount: amount}
}

// NonFungibleUnit declares a single non-fungible token.
func NonFungibleUnit(contract common.Address, tokenID string) Info {
	return Info{Kind: NonFungible, Contract: contract, TokenID: tokenID}
}

// Validate checks the per-kind field invariants. Amounts must be strictly
// positive and fit in 128 bits.
func (i Info) Validate() error {
	switch i.Kind {
	case Native:
		if i.Denom == "" {
			return fmt.Errorf("%w: missing denom", ErrInvalidAsset)
		}
		return validAmount(i.Amount)
	case Fungible:
		if i.Contract == (common.Address{}) {
			return fmt.Errorf("%w: missing token contract", ErrInvalidAsset)
		}
		return validAmount(i.Amount)
	case NonFungible:
		if i.Contract == (common.Address{}) {
			return fmt.Errorf("%w: missing token contract", ErrInvalidAsset)
		}
		if i.TokenID == "" {
			return fmt.Errorf("%w: missing token id", ErrInvalidAsset)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidAsset, i.Kind)
	}
}

func validAmount(a *uint256.Int) error {
	if a == nil || a.IsZero() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidAsset)
	}
	if a.BitLen() > 128 {
		return fmt.Errorf("%w: amount exceeds 128 bits", ErrInvalidAsset)
	}
	return nil
}

// ID returns the physical identity of the asset, ignoring amount.
// Two items with the same ID refer to the same coin denom, the same token
// contract, or the same non-fungible unit.
func (i Info) ID() string {
	switch i.Kind {
	case Native:
		return "native:" + i.Denom
	case Fungible:
		return "token:" + i.Contract.Hex()
	case NonFungible:
		return "nft:" + i.Contract.Hex() + ":" + i.TokenID
	default:
		return "unknown"
	}
}

// Equal reports whether both identity and amount match.
func (i Info) Equal(o Info) bool {
	if i.ID() != o.ID() {
		return false
	}
	if i.Amount == nil && o.Amount == nil {
		return true
	}
	if i.Amount == nil || o.Amount == nil {
		return false
	}
	return i.Amount.Eq(o.Amount)
}

type infoJSON struct {
	Kind     string `json:"kind"`
	Denom    string `json:"denom,omitempty"`
	Contract string `json:"contract,omitempty"`
	Amount   string `json:"amount,omitempty"`
	TokenID  string `json:"token_id,omitempty"`
}

// MarshalJSON encodes the variant with a kind tag and decimal amounts.
func (i Info) MarshalJSON() ([]byte, error) {
	out := infoJSON{Kind: i.Kind.String(), Denom: i.Denom, TokenID: i.TokenID}
	if i.Contract != (common.Address{}) {
		out.Contract = i.Contract.Hex()
	}
	if i.Amount != nil {
		out.Amount = i.Amount.Dec()
	}
	return json.Marshal(out)
}

func (i *Info) UnmarshalJSON(data []byte) error {
	var in infoJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	kind, err := ParseKind(in.Kind)
	if err != nil {
		return err
	}
	i.Kind = kind
	i.Denom = in.Denom
	i.TokenID = in.TokenID
	i.Contract = common.Address{}
	if in.Contract != "" {
		if !common.IsHexAddress(in.Contract) {
			return fmt.Errorf("%w: bad contract address %q", ErrInvalidAsset, in.Contract)
		}
		i.Contract = common.HexToAddress(in.Contract)
	}
	i.Amount = nil
	if in.Amount != "" {
		amt, err := uint256.FromDecimal(in.Amount)
		if err != nil {
			return fmt.Errorf("%w: bad amount %q: %v", ErrInvalidAsset, in.Amount, err)
		}
		i.Amount = amt
	}
	return nil
}
