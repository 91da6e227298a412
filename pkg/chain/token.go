package chain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// TokenInfo is the metadata of a fungible token ledger.
type TokenInfo struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// CollectionInfo is the metadata of a non-fungible token ledger.
type CollectionInfo struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// ContractAddress derives a deterministic address for a contract or token
// ledger from a human-readable label.
func ContractAddress(label string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(label))[12:])
}
