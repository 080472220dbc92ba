package token

import (
	"github.com/embermint/ember-contract/common"
	"github.com/embermint/ember-contract/contracts/token/tokenconst"
	"github.com/nspcc-dev/neo-go/pkg/interop"
	"github.com/nspcc-dev/neo-go/pkg/interop/contract"
	"github.com/nspcc-dev/neo-go/pkg/interop/iterator"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/management"
	"github.com/nspcc-dev/neo-go/pkg/interop/runtime"
	"github.com/nspcc-dev/neo-go/pkg/interop/storage"
)

// Token holds all token info.
type Token struct {
	// Ticker symbol
	Symbol string
	// Amount of decimals
	Decimals int
	// Storage key for circulation value
	CirculationKey byte
}

const (
	accPrefix       = 'a'
	allowancePrefix = 'l'

	ownerKey       = 'o'
	pausedKey      = 'p'
	circulationKey = 's'
	maxFlashKey    = 'm'
	feeRateKey     = 'r'
	feesKey        = 'f'
)

const (
	errPaused                = "contract is paused"
	errInvalidConfiguration  = "invalid configuration"
	errUnsupportedToken      = "unsupported token"
	errExceedsCap            = "amount exceeds flash loan cap"
	errRepaymentIncomplete   = "flash loan repayment incomplete"
	errCallbackRejected      = "flash loan rejected by receiver"
	errNoFees                = "no accumulated fees"
	errInsufficientBacking   = "insufficient backing balance"
	errInvalidDestination    = "invalid destination"
	errInvalidSender         = "invalid sender"
	errInsufficientBalance   = "insufficient balance"
	errInsufficientAllowance = "insufficient allowance"
	errNegativeAmount        = "negative amount"
)

var token Token

func createToken() Token {
	return Token{
		Symbol:         tokenconst.Symbol,
		Decimals:       tokenconst.Decimals,
		CirculationKey: circulationKey,
	}
}

func init() {
	token = createToken()
}

// nolint:unused
func _deploy(data any, isUpdate bool) {
	ctx := storage.GetContext()
	if isUpdate {
		args := data.([]any)
		common.CheckVersion(args[len(args)-1].(int))
		return
	}

	args := data.(struct {
		owner          interop.Hash160
		maxFlashAmount int
		feeRateBps     int
	})

	if len(args.owner) != interop.Hash160Len {
		panic(errInvalidConfiguration + ": invalid owner")
	}
	if args.maxFlashAmount <= 0 {
		panic(errInvalidConfiguration + ": flash loan cap must be positive")
	}
	if args.feeRateBps < 0 || args.feeRateBps > tokenconst.MaxFeeRateBps {
		panic(errInvalidConfiguration + ": fee rate out of range")
	}

	storage.Put(ctx, ownerKey, args.owner)
	storage.Put(ctx, maxFlashKey, args.maxFlashAmount)
	storage.Put(ctx, feeRateKey, args.feeRateBps)

	runtime.Log("ember token contract initialized")
}

// Update method updates contract source code and manifest. It can be invoked
// only by the contract owner.
func Update(nefFile, manifest []byte, data any) {
	ctx := storage.GetReadOnlyContext()
	common.CheckOwnerWitness(getOwner(ctx))

	contract.Call(interop.Hash160(management.Hash), "update",
		contract.All, nefFile, manifest, common.AppendVersion(data))
	runtime.Log("ember token contract updated")
}

// Symbol is a NEP-17 standard method that returns the Ember token symbol.
func Symbol() string {
	return token.Symbol
}

// Decimals is a NEP-17 standard method that returns precision of Ember
// balances.
func Decimals() int {
	return token.Decimals
}

// TotalSupply is a NEP-17 standard method that returns the total amount of
// Ember tokens in circulation.
func TotalSupply() int {
	ctx := storage.GetReadOnlyContext()
	return token.getSupply(ctx)
}

// BalanceOf is a NEP-17 standard method that returns the Ember balance of the
// specified account.
func BalanceOf(account interop.Hash160) int {
	ctx := storage.GetReadOnlyContext()
	return token.balanceOf(ctx, account)
}

// Owner returns the script hash of the contract owner.
func Owner() interop.Hash160 {
	return getOwner(storage.GetReadOnlyContext())
}

// TransferOwnership replaces the contract owner with a new one. It can be
// invoked only by the current owner.
//
// It produces OwnershipTransferred notification.
func TransferOwnership(newOwner interop.Hash160) {
	ctx := storage.GetContext()
	owner := getOwner(ctx)
	common.CheckOwnerWitness(owner)

	if len(newOwner) != interop.Hash160Len {
		panic(errInvalidConfiguration + ": invalid owner")
	}

	storage.Put(ctx, ownerKey, newOwner)
	runtime.Notify("OwnershipTransferred", owner, newOwner)
}

// Pause stops all privileged and flash operations of the contract. It can be
// invoked only by the contract owner.
//
// It produces PauseStateChanged notification.
func Pause() {
	ctx := storage.GetContext()
	common.CheckOwnerWitness(getOwner(ctx))

	storage.Put(ctx, pausedKey, true)
	runtime.Notify("PauseStateChanged", true)
}

// Unpause resumes operations of the contract. It can be invoked only by the
// contract owner.
//
// It produces PauseStateChanged notification.
func Unpause() {
	ctx := storage.GetContext()
	common.CheckOwnerWitness(getOwner(ctx))

	storage.Delete(ctx, pausedKey)
	runtime.Notify("PauseStateChanged", false)
}

// IsPaused returns true if the contract is paused.
func IsPaused() bool {
	return isPaused(storage.GetReadOnlyContext())
}

// Transfer is a NEP-17 standard method that transfers Ember tokens from one
// account to another. It can be invoked by the account owner or by a contract
// whose script hash equals the sender account.
//
// Transfer to a zero or malformed destination is rejected: burns must go
// through Burn or BurnFrom so that supply accounting stays explicit.
//
// It produces Transfer notification.
func Transfer(from, to interop.Hash160, amount int, data any) bool {
	ctx := storage.GetContext()
	if amount < 0 {
		panic(errNegativeAmount)
	}
	if len(to) != interop.Hash160Len {
		panic(errInvalidDestination)
	}
	if !isUsableAddress(from) {
		runtime.Log("transfer sender is not witnessed")
		return false
	}
	if token.balanceOf(ctx, from) < amount {
		runtime.Log(errInsufficientBalance)
		return false
	}

	token.transfer(ctx, from, to, amount)
	return true
}

// Approve allows spender to take up to amount of Ember tokens from the owner
// account via TransferFrom or BurnFrom. It overwrites any previously approved
// amount. It can be invoked by the account owner or by a contract whose script
// hash equals the owner account.
//
// It produces Approval notification.
func Approve(owner, spender interop.Hash160, amount int) {
	ctx := storage.GetContext()
	if amount < 0 {
		panic(errNegativeAmount)
	}
	if len(spender) != interop.Hash160Len {
		panic(errInvalidDestination)
	}
	if !isUsableAddress(owner) {
		panic(common.ErrWitnessFailed)
	}

	setAllowance(ctx, owner, spender, amount)
	runtime.Notify("Approval", owner, spender, amount)
}

// Allowance returns the amount of Ember tokens the spender is currently
// allowed to take from the owner account.
func Allowance(owner, spender interop.Hash160) int {
	ctx := storage.GetReadOnlyContext()
	return getAllowance(ctx, owner, spender)
}

// TransferFrom transfers Ember tokens from one account to another using an
// allowance previously granted to the spender with Approve. The allowance is
// reduced by the transferred amount.
//
// It produces Transfer notification.
func TransferFrom(spender, from, to interop.Hash160, amount int) bool {
	ctx := storage.GetContext()
	if amount < 0 {
		panic(errNegativeAmount)
	}
	if len(from) != interop.Hash160Len {
		panic(errInvalidSender)
	}
	if len(to) != interop.Hash160Len {
		panic(errInvalidDestination)
	}
	if !isUsableAddress(spender) {
		panic(common.ErrWitnessFailed)
	}

	spendAllowance(ctx, from, spender, amount)
	if token.balanceOf(ctx, from) < amount {
		panic(errInsufficientBalance)
	}

	token.transfer(ctx, from, to, amount)
	return true
}

// Mint issues new Ember tokens to the specified account. It can be invoked
// only by the contract owner. There is no issuance cap: operational control
// is left to the owner.
//
// It produces Transfer and Mint notifications.
func Mint(to interop.Hash160, amount int) {
	ctx := storage.GetContext()
	requireNotPaused(ctx)
	common.CheckOwnerWitness(getOwner(ctx))

	if amount < 0 {
		panic(errNegativeAmount)
	}
	if len(to) != interop.Hash160Len {
		panic(errInvalidDestination)
	}

	token.transfer(ctx, nil, to, amount)
	storage.Put(ctx, token.CirculationKey, token.getSupply(ctx)+amount)
	runtime.Notify("Mint", to, amount)
}

// Burn destroys Ember tokens from the caller account and reduces total
// supply. It can be invoked by the account owner or by a contract whose
// script hash equals the account.
//
// It produces Transfer notification.
func Burn(from interop.Hash160, amount int) {
	ctx := storage.GetContext()
	if amount < 0 {
		panic(errNegativeAmount)
	}
	if !isUsableAddress(from) {
		panic(common.ErrWitnessFailed)
	}

	burn(ctx, from, amount)
}

// BurnFrom destroys Ember tokens from the specified account using an
// allowance previously granted to the spender with Approve. The allowance is
// spent before the balance is destroyed.
//
// It produces Transfer notification.
func BurnFrom(spender, from interop.Hash160, amount int) {
	ctx := storage.GetContext()
	if amount < 0 {
		panic(errNegativeAmount)
	}
	if len(from) != interop.Hash160Len {
		panic(errInvalidSender)
	}
	if !isUsableAddress(spender) {
		panic(common.ErrWitnessFailed)
	}

	spendAllowance(ctx, from, spender, amount)
	burn(ctx, from, amount)
}

// SetMaxFlashLoan replaces the flash loan cap. The new cap must be positive.
// It can be invoked only by the contract owner.
//
// It produces ConfigUpdate notification.
func SetMaxFlashLoan(amount int) {
	ctx := storage.GetContext()
	requireNotPaused(ctx)
	common.CheckOwnerWitness(getOwner(ctx))

	if amount <= 0 {
		panic(errInvalidConfiguration + ": flash loan cap must be positive")
	}

	storage.Put(ctx, maxFlashKey, amount)
	runtime.Notify("ConfigUpdate", "maxFlashLoan", amount)
}

// SetFeeRate replaces the flash loan fee rate expressed in basis points. The
// new rate must not exceed [tokenconst.MaxFeeRateBps]. It can be invoked only
// by the contract owner.
//
// It produces ConfigUpdate notification.
func SetFeeRate(bps int) {
	ctx := storage.GetContext()
	requireNotPaused(ctx)
	common.CheckOwnerWitness(getOwner(ctx))

	if bps < 0 || bps > tokenconst.MaxFeeRateBps {
		panic(errInvalidConfiguration + ": fee rate out of range")
	}

	storage.Put(ctx, feeRateKey, bps)
	runtime.Notify("ConfigUpdate", "feeRate", bps)
}

// FeeRate returns the current flash loan fee rate in basis points.
func FeeRate() int {
	ctx := storage.GetReadOnlyContext()
	return storage.Get(ctx, feeRateKey).(int)
}

// MaxFlashLoan returns the maximum flash loan amount for the requested token:
// the configured cap for the Ember token itself, zero for any other token.
func MaxFlashLoan(tok interop.Hash160) int {
	if !tok.Equals(runtime.GetExecutingScriptHash()) {
		return 0
	}
	ctx := storage.GetReadOnlyContext()
	return storage.Get(ctx, maxFlashKey).(int)
}

// FlashFee returns the fee charged for a flash loan of the given amount. Only
// the Ember token itself can be flash-loaned.
func FlashFee(tok interop.Hash160, amount int) int {
	if !tok.Equals(runtime.GetExecutingScriptHash()) {
		panic(errUnsupportedToken)
	}
	if amount < 0 {
		panic(errNegativeAmount)
	}
	ctx := storage.GetReadOnlyContext()
	return computeFee(ctx, amount)
}

// FlashLoan mints amount of Ember tokens to the receiver contract, invokes
// its onFlashLoan method and settles the loan within the same transaction.
//
// The receiver's onFlashLoan(initiator, token, amount, fee, data) must return
// true and leave the token contract an allowance of at least amount+fee. The
// engine then takes amount+fee back from the receiver, burns amount and keeps
// fee as accumulated protocol revenue. Repayment is verified with fresh
// post-callback reads, so reentrant calls made by the receiver cannot skew
// the check. Any failure faults the transaction and the temporary supply
// expansion never becomes visible outside of it.
//
// It produces Transfer and FlashLoan notifications.
func FlashLoan(receiver interop.Hash160, tok interop.Hash160, amount int, data any) bool {
	ctx := storage.GetContext()
	requireNotPaused(ctx)

	self := runtime.GetExecutingScriptHash()
	if !tok.Equals(self) {
		panic(errUnsupportedToken)
	}
	if amount < 0 {
		panic(errNegativeAmount)
	}
	if len(receiver) != interop.Hash160Len {
		panic(errInvalidDestination)
	}
	if amount > storage.Get(ctx, maxFlashKey).(int) {
		panic(errExceedsCap)
	}

	fee := computeFee(ctx, amount)

	// Expand: an ordinary mint, observable by the callback.
	token.transfer(ctx, nil, receiver, amount)
	storage.Put(ctx, token.CirculationKey, token.getSupply(ctx)+amount)

	initiator := runtime.GetCallingScriptHash()
	ok := contract.Call(receiver, "onFlashLoan", contract.All,
		initiator, tok, amount, fee, data).(bool)
	if !ok {
		panic(errCallbackRejected)
	}

	// Settle: pull repayment via the allowance the callback left us. All
	// reads are fresh, nothing is trusted from before the callback.
	repay := amount + fee
	allowance := getAllowance(ctx, receiver, self)
	if allowance < repay {
		panic(errRepaymentIncomplete)
	}
	setAllowance(ctx, receiver, self, allowance-repay)

	if token.balanceOf(ctx, receiver) < repay {
		panic(errRepaymentIncomplete)
	}

	token.transfer(ctx, receiver, nil, amount)
	storage.Put(ctx, token.CirculationKey, token.getSupply(ctx)-amount)

	if fee > 0 {
		token.transfer(ctx, receiver, self, fee)
		storage.Put(ctx, feesKey, getFees(ctx)+fee)
	}

	runtime.Notify("FlashLoan", receiver, amount, fee)
	return true
}

// AccumulatedFees returns the amount of Ember tokens earned as flash loan
// fees and not yet withdrawn by the owner. This is a claim on a subset of the
// contract's own token balance: tokens sent or minted to the contract by
// other means are not counted.
func AccumulatedFees() int {
	return getFees(storage.GetReadOnlyContext())
}

// WithdrawFees transfers the whole accumulated fee balance to the specified
// account and resets the accumulator. Partial withdrawal is not supported.
// It can be invoked only by the contract owner.
//
// The accumulator is zeroed before the transfer, so a reentrant call cannot
// withdraw twice.
//
// It produces Transfer and FeesWithdrawn notifications.
func WithdrawFees(to interop.Hash160) {
	ctx := storage.GetContext()
	requireNotPaused(ctx)
	common.CheckOwnerWitness(getOwner(ctx))

	if len(to) != interop.Hash160Len {
		panic(errInvalidDestination)
	}

	fees := getFees(ctx)
	if fees == 0 {
		panic(errNoFees)
	}

	self := runtime.GetExecutingScriptHash()
	if token.balanceOf(ctx, self) < fees {
		panic(errInsufficientBacking)
	}

	storage.Delete(ctx, feesKey)
	token.transfer(ctx, self, to, fees)
	runtime.Notify("FeesWithdrawn", to, fees)
}

// IterateHolders returns an iterator over all accounts holding a non-zero
// Ember balance. Iteration is through key-value pairs, where key is the
// account script hash and value is its balance.
func IterateHolders() iterator.Iterator {
	return storage.Find(storage.GetReadOnlyContext(), []byte{accPrefix}, storage.RemovePrefix)
}

// Version returns the version of the contract.
func Version() int {
	return common.Version
}

// getSupply gets the token totalSupply value from VM storage.
func (t Token) getSupply(ctx storage.Context) int {
	supply := storage.Get(ctx, t.CirculationKey)
	if supply != nil {
		return supply.(int)
	}

	return 0
}

// balanceOf gets the token balance of a specific address.
func (t Token) balanceOf(ctx storage.Context, holder interop.Hash160) int {
	bal := storage.Get(ctx, append([]byte{accPrefix}, holder...))
	if bal != nil {
		return bal.(int)
	}

	return 0
}

// transfer moves amount between accounts without authorization or balance
// checks, those are on the caller. Empty from mints into existence, empty to
// burns out of it; total supply is adjusted by the caller as well.
func (t Token) transfer(ctx storage.Context, from, to interop.Hash160, amount int) {
	if len(from) == interop.Hash160Len {
		var fromKey = append([]byte{accPrefix}, from...)

		balance := t.balanceOf(ctx, from)
		if balance == amount {
			storage.Delete(ctx, fromKey)
		} else {
			storage.Put(ctx, fromKey, balance-amount)
		}
	}

	if len(to) == interop.Hash160Len && amount > 0 {
		var toKey = append([]byte{accPrefix}, to...)

		storage.Put(ctx, toKey, t.balanceOf(ctx, to)+amount)
	}

	runtime.Notify("Transfer", from, to, amount)
}

func burn(ctx storage.Context, from interop.Hash160, amount int) {
	if token.balanceOf(ctx, from) < amount {
		panic(errInsufficientBalance)
	}

	token.transfer(ctx, from, nil, amount)

	supply := token.getSupply(ctx)
	if supply < amount {
		panic("negative supply after burn")
	}
	storage.Put(ctx, token.CirculationKey, supply-amount)
}

func computeFee(ctx storage.Context, amount int) int {
	rate := storage.Get(ctx, feeRateKey).(int)
	return amount * rate / tokenconst.FeeDenominator
}

func allowanceKey(owner, spender interop.Hash160) []byte {
	return append(append([]byte{allowancePrefix}, owner...), spender...)
}

func getAllowance(ctx storage.Context, owner, spender interop.Hash160) int {
	allowance := storage.Get(ctx, allowanceKey(owner, spender))
	if allowance != nil {
		return allowance.(int)
	}

	return 0
}

func setAllowance(ctx storage.Context, owner, spender interop.Hash160, amount int) {
	key := allowanceKey(owner, spender)
	if amount == 0 {
		storage.Delete(ctx, key)
	} else {
		storage.Put(ctx, key, amount)
	}
}

func spendAllowance(ctx storage.Context, owner, spender interop.Hash160, amount int) {
	allowance := getAllowance(ctx, owner, spender)
	if allowance < amount {
		panic(errInsufficientAllowance)
	}
	setAllowance(ctx, owner, spender, allowance-amount)
}

func getOwner(ctx storage.Context) interop.Hash160 {
	return storage.Get(ctx, ownerKey).(interop.Hash160)
}

func getFees(ctx storage.Context) int {
	fees := storage.Get(ctx, feesKey)
	if fees != nil {
		return fees.(int)
	}

	return 0
}

func isPaused(ctx storage.Context) bool {
	return storage.Get(ctx, pausedKey) != nil
}

func requireNotPaused(ctx storage.Context) {
	if isPaused(ctx) {
		panic(errPaused)
	}
}

// isUsableAddress checks if the sender is either a correct NEO address or SC address.
func isUsableAddress(addr interop.Hash160) bool {
	if len(addr) == interop.Hash160Len {
		if runtime.CheckWitness(addr) {
			return true
		}

		// Check if a smart contract is calling script hash
		callingScriptHash := runtime.GetCallingScriptHash()
		if callingScriptHash.Equals(addr) {
			return true
		}
	}

	return false
}
