package otc

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/otcer/otcer/pkg/asset"
)

// FeeTiming fixes when the protocol fee is collected. It is a deployment
// choice made at instantiation, never per call.
type FeeTiming string

const (
	FeeOnCreate  FeeTiming = "create"
	FeeOnExecute FeeTiming = "execute"
)

func (t FeeTiming) Valid() bool {
	return t == FeeOnCreate || t == FeeOnExecute
}

// requiredCoins computes the exact native coins a caller must attach:
// the bundle's native portion, plus the fee schedule's native portion when
// the fee is charged on this operation. Exact match only — overpayment is
// rejected the same as underpayment, so no refund path exists.
func requiredCoins(bundle, fee asset.Bundle, chargeFee bool) asset.Coins {
	required := bundle.NativeCoins()
	if chargeFee {
		required = required.Add(fee.NativeCoins())
	}
	return required
}

// feeTransfers builds the instructions routing fee items to the collector.
// Native items are forwarded out of contract custody (they arrived with the
// attached funds); token items are pulled straight from the payer.
func feeTransfers(fee asset.Bundle, contract, payer, collector common.Address) []asset.Transfer {
	out := make([]asset.Transfer, 0, len(fee))
	for _, item := range fee {
		from := payer
		if item.Kind == asset.Native {
			from = contract
		}
		out = append(out, item.TransferTo(from, collector))
	}
	return out
}

// validateFeeSchedule holds the schedule to the same rules as trade
// bundles (valid items, no duplicate assets), except that an empty
// schedule is a legal free deployment.
func validateFeeSchedule(fee asset.Bundle) error {
	if len(fee) == 0 {
		return nil
	}
	if err := fee.Validate(); err != nil {
		return fmt.Errorf("fee schedule: %w", err)
	}
	return nil
}
