package account

import (
	iotago "github.com/iotaledger/iota.go/v4"
)

// ComputeBalance folds the given outputs into a balance. Spent and Conflicting outputs are ignored; outputs for
// which isReserved returns true count towards the total but not towards the available balance.
func ComputeBalance(outputs []*OutputData, isReserved func(outputID iotago.OutputID) bool) *AccountBalance {
	balance := new(AccountBalance)
	for _, output := range outputs {
		if output.Spent || !output.InclusionState.IsCounted() {
			continue
		}

		balance.Total += output.Amount
		if isReserved == nil || !isReserved(output.OutputID) {
			balance.Available += output.Amount
		}
	}

	return balance
}
