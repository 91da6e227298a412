package asset

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Transfer is one outbound instruction moving an asset between addresses.
// Transfers are built by the trade engine and executed by the host ledger
// as sub-calls of the enclosing transaction.
type Transfer struct {
	Info Info
	From common.Address
	To   common.Address
}

// TransferTo builds the instruction moving this asset from one holder to
// another.
func (i Info) TransferTo(from, to common.Address) Transfer {
	return Transfer{Info: i, From: from, To: to}
}

func (t Transfer) String() string {
	return fmt.Sprintf("%s %s -> %s", t.Info.ID(), t.From.Hex(), t.To.Hex())
}
