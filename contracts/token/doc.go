/*
Package token implements Ember, a NEP-17 compatible fungible token with
owner-gated permanent issuance and flash issuance.

A flash loan temporarily expands total supply: the requested amount is minted
to the receiver contract, its onFlashLoan method runs with the funds at hand
and by the time it returns the receiver must have left the token contract an
allowance covering amount plus fee. The engine pulls the repayment, burns the
principal and keeps the fee, so across the whole transaction supply is
unchanged and the fee accumulates as protocol revenue. If any step fails, the
transaction faults and none of the intermediate mutations persist.

Accumulated fees are tracked separately from the contract's raw token balance
so that tokens transferred or minted to the contract account by other means
are never confused with earned revenue. The owner withdraws the whole fee
balance at once; the accumulator is reset before the tokens move.

# Contract notifications

Transfer notification. This is NEP-17 standard notification. Empty from marks
a mint, empty to marks a burn.

	Transfer:
	  - name: from
	    type: Hash160
	  - name: to
	    type: Hash160
	  - name: amount
	    type: Integer

Approval notification. Produced when an account grants an allowance.

	Approval:
	  - name: owner
	    type: Hash160
	  - name: spender
	    type: Hash160
	  - name: amount
	    type: Integer

Mint notification. Produced on owner-gated permanent issuance, in addition to
the standard Transfer notification.

	Mint:
	  - name: to
	    type: Hash160
	  - name: amount
	    type: Integer

FlashLoan notification. Produced when a flash loan settles successfully.

	FlashLoan:
	  - name: receiver
	    type: Hash160
	  - name: amount
	    type: Integer
	  - name: fee
	    type: Integer

FeesWithdrawn notification. Produced when the owner collects accumulated
flash loan fees.

	FeesWithdrawn:
	  - name: to
	    type: Hash160
	  - name: amount
	    type: Integer

ConfigUpdate notification. Produced when the owner changes the flash loan cap
or the fee rate.

	ConfigUpdate:
	  - name: name
	    type: String
	  - name: value
	    type: Integer

PauseStateChanged notification. Produced when the owner pauses or unpauses
the contract.

	PauseStateChanged:
	  - name: paused
	    type: Boolean

OwnershipTransferred notification. Produced when the owner hands the contract
over to a new owner.

	OwnershipTransferred:
	  - name: previousOwner
	    type: Hash160
	  - name: newOwner
	    type: Hash160
*/
package token
