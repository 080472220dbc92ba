// Package borrower implements a scripted flash loan receiver used in tests.
// The data argument of the loan selects how the receiver behaves once the
// funds arrive.
package borrower

import (
	"github.com/nspcc-dev/neo-go/pkg/interop"
	"github.com/nspcc-dev/neo-go/pkg/interop/contract"
	"github.com/nspcc-dev/neo-go/pkg/interop/runtime"
)

// Behavior modes accepted in the data argument of OnFlashLoan.
const (
	// ModeRepay approves amount+fee back to the token contract.
	ModeRepay = iota
	// ModeShortfall approves one unit less than owed.
	ModeShortfall
	// ModeRefuse returns false without repaying.
	ModeRefuse
	// ModeIgnore returns true without approving anything.
	ModeIgnore
	// ModeReenter takes a nested flash loan of the same amount first,
	// then repays the outer one.
	ModeReenter
)

// OnFlashLoan is the flash loan callback. The token contract invokes it right
// after minting amount to this contract.
func OnFlashLoan(initiator interop.Hash160, token interop.Hash160, amount, fee int, data any) bool {
	self := runtime.GetExecutingScriptHash()

	switch data.(int) {
	case ModeRepay:
		approve(token, self, amount+fee)
	case ModeShortfall:
		approve(token, self, amount+fee-1)
	case ModeRefuse:
		return false
	case ModeIgnore:
	case ModeReenter:
		ok := contract.Call(token, "flashLoan", contract.All,
			self, token, amount, ModeRepay).(bool)
		if !ok {
			panic("nested flash loan failed")
		}
		approve(token, self, amount+fee)
	default:
		panic("unknown borrower mode")
	}

	return true
}

func approve(token interop.Hash160, owner interop.Hash160, amount int) {
	contract.Call(token, "approve", contract.All, owner, token, amount)
}
