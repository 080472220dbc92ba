package tests

import (
	"path"
	"testing"

	"github.com/embermint/ember-contract/common"
	"github.com/embermint/ember-contract/contracts/token/tokenconst"
	"github.com/embermint/ember-contract/internal/testcontracts/borrower"
	istorage "github.com/nspcc-dev/neo-go/pkg/core/interop/storage"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/neotest"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/stretchr/testify/require"
)

const (
	tokenPath    = "../contracts/token"
	borrowerPath = "../internal/testcontracts/borrower"
)

const (
	defaultMaxFlash = int64(1_000_000)
	defaultFeeRate  = int64(50) // 0.5%
)

func newTokenInvoker(t *testing.T) *neotest.ContractInvoker {
	e := newExecutor(t)
	ctr := neotest.CompileFile(t, e.CommitteeHash, tokenPath, path.Join(tokenPath, "config.yml"))
	e.DeployContract(t, ctr, []any{e.CommitteeHash, defaultMaxFlash, defaultFeeRate})
	return e.CommitteeInvoker(ctr.Hash)
}

func deployBorrower(t *testing.T, c *neotest.ContractInvoker) util.Uint160 {
	ctr := neotest.CompileFile(t, c.CommitteeHash, borrowerPath, path.Join(borrowerPath, "config.yml"))
	c.DeployContract(t, ctr, nil)
	return ctr.Hash
}

func flashFeeFor(amount int64) int64 {
	return amount * defaultFeeRate / tokenconst.FeeDenominator
}

// checkSupplyInvariant sums all holder balances via iterateHolders and checks
// the sum against totalSupply.
func checkSupplyInvariant(t *testing.T, c *neotest.ContractInvoker) {
	s, err := c.TestInvoke(t, "iterateHolders")
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())

	iter, ok := s.Pop().Value().(*istorage.Iterator)
	require.True(t, ok)

	var total int64
	for _, kv := range iteratorToArray(iter) {
		pair, ok := kv.Value().([]stackitem.Item)
		require.True(t, ok)
		require.Len(t, pair, 2)

		bal, err := pair[1].TryInteger()
		require.NoError(t, err)
		total += bal.Int64()
	}

	c.Invoke(t, total, "totalSupply")
}

func TestTokenGeneric(t *testing.T) {
	c := newTokenInvoker(t)

	c.Invoke(t, tokenconst.Symbol, "symbol")
	c.Invoke(t, tokenconst.Decimals, "decimals")
	c.Invoke(t, 0, "totalSupply")
	c.Invoke(t, false, "isPaused")
	c.Invoke(t, c.CommitteeHash, "owner")
	c.Invoke(t, common.Version, "version")
}

func TestDeployValidation(t *testing.T) {
	e := newExecutor(t)
	ctr := neotest.CompileFile(t, e.CommitteeHash, tokenPath, path.Join(tokenPath, "config.yml"))

	e.DeployContractCheckFAULT(t, ctr, []any{e.CommitteeHash, int64(0), defaultFeeRate},
		"invalid configuration")
	e.DeployContractCheckFAULT(t, ctr, []any{e.CommitteeHash, defaultMaxFlash, int64(tokenconst.MaxFeeRateBps + 1)},
		"invalid configuration")
}

func TestMint(t *testing.T) {
	c := newTokenInvoker(t)
	acc := c.NewAccount(t)

	cAcc := c.WithSigners(acc)
	cAcc.InvokeFail(t, common.ErrOwnerWitnessFailed, "mint", acc.ScriptHash(), int64(1000))

	c.InvokeFail(t, "negative amount", "mint", acc.ScriptHash(), int64(-1))
	c.InvokeFail(t, "invalid destination", "mint", []byte{}, int64(1000))

	c.Invoke(t, stackitem.Null{}, "mint", acc.ScriptHash(), int64(1000))
	c.Invoke(t, 1000, "balanceOf", acc.ScriptHash())
	c.Invoke(t, 1000, "totalSupply")

	checkSupplyInvariant(t, c)
}

func TestBurn(t *testing.T) {
	c := newTokenInvoker(t)
	acc := c.NewAccount(t)
	cAcc := c.WithSigners(acc)

	c.Invoke(t, stackitem.Null{}, "mint", acc.ScriptHash(), int64(1000))

	cAcc.Invoke(t, stackitem.Null{}, "burn", acc.ScriptHash(), int64(100))
	c.Invoke(t, 900, "balanceOf", acc.ScriptHash())
	c.Invoke(t, 900, "totalSupply")

	cAcc.InvokeFail(t, "insufficient balance", "burn", acc.ScriptHash(), int64(10_000))
	c.InvokeFail(t, common.ErrWitnessFailed, "burn", acc.ScriptHash(), int64(1))

	checkSupplyInvariant(t, c)
}

func TestBurnFrom(t *testing.T) {
	c := newTokenInvoker(t)
	acc := c.NewAccount(t)
	spender := c.NewAccount(t)
	cAcc := c.WithSigners(acc)
	cSpender := c.WithSigners(spender)

	c.Invoke(t, stackitem.Null{}, "mint", acc.ScriptHash(), int64(1000))

	cSpender.InvokeFail(t, "insufficient allowance", "burnFrom",
		spender.ScriptHash(), acc.ScriptHash(), int64(100))

	cAcc.Invoke(t, stackitem.Null{}, "approve", acc.ScriptHash(), spender.ScriptHash(), int64(300))
	c.Invoke(t, 300, "allowance", acc.ScriptHash(), spender.ScriptHash())

	cSpender.Invoke(t, stackitem.Null{}, "burnFrom",
		spender.ScriptHash(), acc.ScriptHash(), int64(100))
	c.Invoke(t, 200, "allowance", acc.ScriptHash(), spender.ScriptHash())
	c.Invoke(t, 900, "balanceOf", acc.ScriptHash())
	c.Invoke(t, 900, "totalSupply")

	cSpender.InvokeFail(t, "insufficient allowance", "burnFrom",
		spender.ScriptHash(), acc.ScriptHash(), int64(300))

	checkSupplyInvariant(t, c)
}

func TestTransfer(t *testing.T) {
	c := newTokenInvoker(t)
	acc := c.NewAccount(t)
	acc2 := c.NewAccount(t)
	cAcc := c.WithSigners(acc)

	c.Invoke(t, stackitem.Null{}, "mint", acc.ScriptHash(), int64(1000))

	cAcc.Invoke(t, true, "transfer", acc.ScriptHash(), acc2.ScriptHash(), int64(400), nil)
	c.Invoke(t, 600, "balanceOf", acc.ScriptHash())
	c.Invoke(t, 400, "balanceOf", acc2.ScriptHash())

	// Burns don't go through transfer.
	cAcc.InvokeFail(t, "invalid destination", "transfer", acc.ScriptHash(), []byte{}, int64(1), nil)
	cAcc.InvokeFail(t, "negative amount", "transfer", acc.ScriptHash(), acc2.ScriptHash(), int64(-1), nil)

	// Insufficient funds and unwitnessed sender are non-faulting refusals.
	cAcc.Invoke(t, false, "transfer", acc.ScriptHash(), acc2.ScriptHash(), int64(10_000), nil)
	cAcc.Invoke(t, false, "transfer", acc2.ScriptHash(), acc.ScriptHash(), int64(1), nil)

	c.Invoke(t, 1000, "totalSupply")
	checkSupplyInvariant(t, c)
}

func TestApproveTransferFrom(t *testing.T) {
	c := newTokenInvoker(t)
	acc := c.NewAccount(t)
	spender := c.NewAccount(t)
	cAcc := c.WithSigners(acc)
	cSpender := c.WithSigners(spender)

	c.Invoke(t, stackitem.Null{}, "mint", acc.ScriptHash(), int64(1000))

	c.Invoke(t, 0, "allowance", acc.ScriptHash(), spender.ScriptHash())
	cAcc.Invoke(t, stackitem.Null{}, "approve", acc.ScriptHash(), spender.ScriptHash(), int64(300))

	// Approve requires the owner witness.
	cSpender.InvokeFail(t, common.ErrWitnessFailed, "approve",
		acc.ScriptHash(), spender.ScriptHash(), int64(500))

	cSpender.Invoke(t, true, "transferFrom",
		spender.ScriptHash(), acc.ScriptHash(), spender.ScriptHash(), int64(200))
	c.Invoke(t, 100, "allowance", acc.ScriptHash(), spender.ScriptHash())
	c.Invoke(t, 800, "balanceOf", acc.ScriptHash())
	c.Invoke(t, 200, "balanceOf", spender.ScriptHash())

	cSpender.InvokeFail(t, "insufficient allowance", "transferFrom",
		spender.ScriptHash(), acc.ScriptHash(), spender.ScriptHash(), int64(200))

	// Approve overwrites, zero removes.
	cAcc.Invoke(t, stackitem.Null{}, "approve", acc.ScriptHash(), spender.ScriptHash(), int64(0))
	c.Invoke(t, 0, "allowance", acc.ScriptHash(), spender.ScriptHash())

	checkSupplyInvariant(t, c)
}

func TestPause(t *testing.T) {
	c := newTokenInvoker(t)
	acc := c.NewAccount(t)
	cAcc := c.WithSigners(acc)

	c.Invoke(t, stackitem.Null{}, "mint", acc.ScriptHash(), int64(1000))

	cAcc.InvokeFail(t, common.ErrOwnerWitnessFailed, "pause")
	c.Invoke(t, stackitem.Null{}, "pause")
	c.Invoke(t, true, "isPaused")

	c.InvokeFail(t, "contract is paused", "mint", acc.ScriptHash(), int64(1))
	c.InvokeFail(t, "contract is paused", "setMaxFlashLoan", int64(10))
	c.InvokeFail(t, "contract is paused", "setFeeRate", int64(10))
	c.InvokeFail(t, "contract is paused", "withdrawFees", acc.ScriptHash())
	c.InvokeFail(t, "contract is paused", "flashLoan", acc.ScriptHash(), c.Hash, int64(1), nil)

	// Ordinary ledger surface is not gated.
	cAcc.Invoke(t, true, "transfer", acc.ScriptHash(), c.CommitteeHash, int64(1), nil)
	cAcc.Invoke(t, stackitem.Null{}, "burn", acc.ScriptHash(), int64(1))

	c.Invoke(t, stackitem.Null{}, "unpause")
	c.Invoke(t, false, "isPaused")
	c.Invoke(t, stackitem.Null{}, "mint", acc.ScriptHash(), int64(1))
}

func TestFlashConfig(t *testing.T) {
	c := newTokenInvoker(t)
	acc := c.NewAccount(t)
	cAcc := c.WithSigners(acc)

	cAcc.InvokeFail(t, common.ErrOwnerWitnessFailed, "setMaxFlashLoan", int64(10))
	cAcc.InvokeFail(t, common.ErrOwnerWitnessFailed, "setFeeRate", int64(10))

	c.InvokeFail(t, "invalid configuration", "setMaxFlashLoan", int64(0))
	c.Invoke(t, stackitem.Null{}, "setMaxFlashLoan", int64(1))
	c.Invoke(t, 1, "maxFlashLoan", c.Hash)

	c.InvokeFail(t, "invalid configuration", "setFeeRate", int64(tokenconst.MaxFeeRateBps+1))
	c.InvokeFail(t, "invalid configuration", "setFeeRate", int64(-1))
	c.Invoke(t, stackitem.Null{}, "setFeeRate", int64(tokenconst.MaxFeeRateBps))
	c.Invoke(t, tokenconst.MaxFeeRateBps, "feeRate")

	// Foreign token has no flash capacity here.
	c.Invoke(t, 0, "maxFlashLoan", acc.ScriptHash())
}

func TestFlashFee(t *testing.T) {
	c := newTokenInvoker(t)
	acc := c.NewAccount(t)

	c.Invoke(t, 0, "flashFee", c.Hash, int64(0))
	c.Invoke(t, flashFeeFor(100_000), "flashFee", c.Hash, int64(100_000))
	c.InvokeFail(t, "unsupported token", "flashFee", acc.ScriptHash(), int64(100))

	// Fee is floored: 1 bps of 100000 is exactly 10, of 9999 it is 0.
	c.Invoke(t, stackitem.Null{}, "setFeeRate", int64(1))
	c.Invoke(t, 10, "flashFee", c.Hash, int64(100_000))
	c.Invoke(t, 0, "flashFee", c.Hash, int64(9_999))
}

func TestFlashLoan(t *testing.T) {
	c := newTokenInvoker(t)
	borrowerHash := deployBorrower(t, c)

	amount := int64(100_000)
	fee := flashFeeFor(amount)
	require.Positive(t, fee)

	// Seed the borrower with just enough to cover the fee.
	c.Invoke(t, stackitem.Null{}, "mint", borrowerHash, fee)

	h := c.Invoke(t, true, "flashLoan", borrowerHash, c.Hash, amount, int64(borrower.ModeRepay))
	c.CheckTxNotificationEvent(t, h, 4, state.NotificationEvent{
		ScriptHash: c.Hash,
		Name:       "FlashLoan",
		Item: stackitem.NewArray([]stackitem.Item{
			stackitem.NewByteArray(borrowerHash.BytesBE()),
			stackitem.Make(amount),
			stackitem.Make(fee),
		}),
	})

	// Supply is back to its pre-loan value, the fee moved from the
	// borrower to the contract and is recorded as revenue.
	c.Invoke(t, fee, "totalSupply")
	c.Invoke(t, 0, "balanceOf", borrowerHash)
	c.Invoke(t, fee, "balanceOf", c.Hash)
	c.Invoke(t, fee, "accumulatedFees")
	c.Invoke(t, 0, "allowance", borrowerHash, c.Hash)

	checkSupplyInvariant(t, c)
}

func TestFlashLoanZeroFee(t *testing.T) {
	c := newTokenInvoker(t)
	borrowerHash := deployBorrower(t, c)

	c.Invoke(t, stackitem.Null{}, "setFeeRate", int64(0))

	// No seed needed: the borrower repays exactly what was minted.
	c.Invoke(t, true, "flashLoan", borrowerHash, c.Hash, int64(100_000), int64(borrower.ModeRepay))

	c.Invoke(t, 0, "totalSupply")
	c.Invoke(t, 0, "balanceOf", borrowerHash)
	c.Invoke(t, 0, "accumulatedFees")
}

func TestFlashLoanValidation(t *testing.T) {
	c := newTokenInvoker(t)
	borrowerHash := deployBorrower(t, c)

	c.InvokeFail(t, "unsupported token", "flashLoan",
		borrowerHash, borrowerHash, int64(100), int64(borrower.ModeRepay))
	c.InvokeFail(t, "amount exceeds flash loan cap", "flashLoan",
		borrowerHash, c.Hash, defaultMaxFlash+1, int64(borrower.ModeRepay))
	c.InvokeFail(t, "negative amount", "flashLoan",
		borrowerHash, c.Hash, int64(-1), int64(borrower.ModeRepay))
	c.InvokeFail(t, "invalid destination", "flashLoan",
		[]byte{}, c.Hash, int64(100), int64(borrower.ModeRepay))
}

func TestFlashLoanVoided(t *testing.T) {
	c := newTokenInvoker(t)
	borrowerHash := deployBorrower(t, c)

	amount := int64(100_000)
	fee := flashFeeFor(amount)
	c.Invoke(t, stackitem.Null{}, "mint", borrowerHash, fee)

	checkUntouched := func(t *testing.T) {
		c.Invoke(t, fee, "totalSupply")
		c.Invoke(t, fee, "balanceOf", borrowerHash)
		c.Invoke(t, 0, "balanceOf", c.Hash)
		c.Invoke(t, 0, "accumulatedFees")
		checkSupplyInvariant(t, c)
	}

	t.Run("shortfall", func(t *testing.T) {
		c.InvokeFail(t, "flash loan repayment incomplete", "flashLoan",
			borrowerHash, c.Hash, amount, int64(borrower.ModeShortfall))
		checkUntouched(t)
	})

	t.Run("no repayment at all", func(t *testing.T) {
		c.InvokeFail(t, "flash loan repayment incomplete", "flashLoan",
			borrowerHash, c.Hash, amount, int64(borrower.ModeIgnore))
		checkUntouched(t)
	})

	t.Run("receiver refuses", func(t *testing.T) {
		c.InvokeFail(t, "flash loan rejected by receiver", "flashLoan",
			borrowerHash, c.Hash, amount, int64(borrower.ModeRefuse))
		checkUntouched(t)
	})
}

func TestFlashLoanReentrant(t *testing.T) {
	c := newTokenInvoker(t)
	borrowerHash := deployBorrower(t, c)

	amount := int64(50_000)
	fee := flashFeeFor(amount)
	require.Positive(t, fee)

	// The borrower takes a nested loan of the same size from within the
	// callback, so it owes two fees.
	c.Invoke(t, stackitem.Null{}, "mint", borrowerHash, 2*fee)
	c.Invoke(t, true, "flashLoan", borrowerHash, c.Hash, amount, int64(borrower.ModeReenter))

	c.Invoke(t, 2*fee, "totalSupply")
	c.Invoke(t, 0, "balanceOf", borrowerHash)
	c.Invoke(t, 2*fee, "balanceOf", c.Hash)
	c.Invoke(t, 2*fee, "accumulatedFees")

	checkSupplyInvariant(t, c)
}

func TestWithdrawFees(t *testing.T) {
	c := newTokenInvoker(t)
	borrowerHash := deployBorrower(t, c)
	acc := c.NewAccount(t)
	cAcc := c.WithSigners(acc)

	c.InvokeFail(t, "no accumulated fees", "withdrawFees", acc.ScriptHash())

	amount := int64(100_000)
	fee := flashFeeFor(amount)
	c.Invoke(t, stackitem.Null{}, "mint", borrowerHash, fee)
	c.Invoke(t, true, "flashLoan", borrowerHash, c.Hash, amount, int64(borrower.ModeRepay))

	// Tokens minted straight to the contract account are not revenue.
	c.Invoke(t, stackitem.Null{}, "mint", c.Hash, int64(777))
	c.Invoke(t, fee, "accumulatedFees")

	cAcc.InvokeFail(t, common.ErrOwnerWitnessFailed, "withdrawFees", acc.ScriptHash())
	c.InvokeFail(t, "invalid destination", "withdrawFees", []byte{})

	c.Invoke(t, stackitem.Null{}, "withdrawFees", acc.ScriptHash())
	c.Invoke(t, fee, "balanceOf", acc.ScriptHash())
	c.Invoke(t, 777, "balanceOf", c.Hash)
	c.Invoke(t, 0, "accumulatedFees")

	c.InvokeFail(t, "no accumulated fees", "withdrawFees", acc.ScriptHash())

	checkSupplyInvariant(t, c)
}

func TestAccumulatedFeesIdempotent(t *testing.T) {
	c := newTokenInvoker(t)
	borrowerHash := deployBorrower(t, c)

	amount := int64(100_000)
	fee := flashFeeFor(amount)
	c.Invoke(t, stackitem.Null{}, "mint", borrowerHash, fee)
	c.Invoke(t, true, "flashLoan", borrowerHash, c.Hash, amount, int64(borrower.ModeRepay))

	c.Invoke(t, fee, "accumulatedFees")
	c.Invoke(t, fee, "accumulatedFees")
}

func TestTransferOwnership(t *testing.T) {
	c := newTokenInvoker(t)
	acc := c.NewAccount(t)
	cAcc := c.WithSigners(acc)

	cAcc.InvokeFail(t, common.ErrOwnerWitnessFailed, "transferOwnership", acc.ScriptHash())
	c.InvokeFail(t, "invalid configuration", "transferOwnership", []byte{})

	c.Invoke(t, stackitem.Null{}, "transferOwnership", acc.ScriptHash())
	c.Invoke(t, acc.ScriptHash(), "owner")

	c.InvokeFail(t, common.ErrOwnerWitnessFailed, "mint", acc.ScriptHash(), int64(1))
	cAcc.Invoke(t, stackitem.Null{}, "mint", acc.ScriptHash(), int64(1))
}
