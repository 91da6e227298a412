package chain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Pebble key schema. In-memory state maps are keyed by the same strings
// that land in pebble, so commit is a straight copy of the overlay.
//
// Prefixes:
//
//	bal:{addr}:{denom}              native balance
//	tok:{contract}                  fungible token metadata
//	tkb:{contract}:{holder}         fungible token balance
//	tka:{contract}:{owner}:{spender} fungible token allowance
//	nfc:{contract}                  collection metadata
//	nfo:{contract}:{token_id}       non-fungible owner
//	nfa:{contract}:{token_id}       non-fungible transfer approval
//
// The "otc:" namespace belongs to the position store and is skipped when
// loading ledger state.
const (
	prefixBalance      = "bal:"
	prefixToken        = "tok:"
	prefixTokenBalance = "tkb:"
	prefixAllowance    = "tka:"
	prefixCollection   = "nfc:"
	prefixNFTOwner     = "nfo:"
	prefixNFTApproval  = "nfa:"
)

func balanceKey(addr common.Address, denom string) string {
	return fmt.Sprintf("%s%s:%s", prefixBalance, addr.Hex(), denom)
}

func tokenKey(contract common.Address) string {
	return prefixToken + contract.Hex()
}

func tokenBalanceKey(contract, holder common.Address) string {
	return fmt.Sprintf("%s%s:%s", prefixTokenBalance, contract.Hex(), holder.Hex())
}

func allowanceKey(contract, owner, spender common.Address) string {
	return fmt.Sprintf("%s%s:%s:%s", prefixAllowance, contract.Hex(), owner.Hex(), spender.Hex())
}

func collectionKey(contract common.Address) string {
	return prefixCollection + contract.Hex()
}

func nftOwnerKey(contract common.Address, tokenID string) string {
	return fmt.Sprintf("%s%s:%s", prefixNFTOwner, contract.Hex(), tokenID)
}

func nftApprovalKey(contract common.Address, tokenID string) string {
	return fmt.Sprintf("%s%s:%s", prefixNFTApproval, contract.Hex(), tokenID)
}
