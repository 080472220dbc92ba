// Package deploy provides Ember Token contract deployment routine.
//
// Can be used by applications to set up the token on a Neo blockchain
// they connect to.
package deploy

import (
	"context"
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/management"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/nef"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"go.uber.org/zap"
)

// Blockchain groups services provided by particular Neo blockchain network
// that are required for the token deployment.
type Blockchain interface {
	// RPCActor groups functions needed to compose and send transactions to the
	// blockchain.
	actor.RPCActor

	// GetContractStateByHash returns network state of the smart contract by its
	// address. GetContractStateByHash returns error with 'Unknown contract'
	// substring if requested contract is missing.
	GetContractStateByHash(util.Uint160) (*state.Contract, error)
}

// Prm groups parameters of the Ember Token deployment procedure.
type Prm struct {
	// Writes progress into the log.
	Logger *zap.Logger

	// Particular Neo blockchain instance to deploy to.
	Blockchain Blockchain

	// Local process account used for transaction signing (must be unlocked).
	LocalAccount *wallet.Account

	// Compiled token contract.
	NEF      nef.File
	Manifest manifest.Manifest

	// Account becoming the token owner.
	Owner util.Uint160

	// Initial flash loan configuration.
	MaxFlashAmount int64
	FeeRateBps     int64
}

// Deploy initializes Ember Token contract on the Neo blockchain represented by
// prm.Blockchain and returns its address. If the contract is already on the
// chain, Deploy does nothing and returns the address immediately.
//
// Deploy is idempotent relative to the deployer account: the resulting address
// is a function of the account, the contract's NEF checksum and the manifest
// name.
func Deploy(ctx context.Context, prm Prm) (util.Uint160, error) {
	switch {
	case prm.Logger == nil:
		return util.Uint160{}, errors.New("missing logger")
	case prm.Blockchain == nil:
		return util.Uint160{}, errors.New("missing blockchain client")
	case prm.LocalAccount == nil:
		return util.Uint160{}, errors.New("missing local account")
	case prm.Owner.Equals(util.Uint160{}):
		return util.Uint160{}, errors.New("missing token owner")
	case prm.MaxFlashAmount <= 0:
		return util.Uint160{}, errors.New("non-positive flash loan cap")
	case prm.FeeRateBps < 0:
		return util.Uint160{}, errors.New("negative fee rate")
	}

	act, err := actor.NewSimple(prm.Blockchain, prm.LocalAccount)
	if err != nil {
		return util.Uint160{}, fmt.Errorf("init transaction sender from local account: %w", err)
	}

	onChainAddress := state.CreateContractHash(act.Sender(), prm.NEF.Checksum, prm.Manifest.Name)

	alreadyOnChain, err := prm.Blockchain.GetContractStateByHash(onChainAddress)
	if err == nil && alreadyOnChain != nil {
		prm.Logger.Info("contract is already on the chain", zap.Stringer("address", onChainAddress))
		return onChainAddress, nil
	}

	prm.Logger.Info("deploying contract on the chain...",
		zap.Stringer("address", onChainAddress),
		zap.Stringer("owner", prm.Owner),
		zap.Int64("max flash amount", prm.MaxFlashAmount),
		zap.Int64("fee rate (bps)", prm.FeeRateBps),
	)

	txHash, vub, err := management.New(act).Deploy(&prm.NEF, &prm.Manifest, []any{
		prm.Owner,
		prm.MaxFlashAmount,
		prm.FeeRateBps,
	})
	if err != nil {
		return util.Uint160{}, fmt.Errorf("send contract deployment transaction: %w", err)
	}

	prm.Logger.Info("contract deployment transaction sent, waiting for persist...",
		zap.Stringer("tx", txHash), zap.Uint32("vub", vub))

	if err = ctx.Err(); err != nil {
		return util.Uint160{}, fmt.Errorf("wait for deployment transaction persist: %w", err)
	}

	res, err := act.Wait(txHash, vub, nil)
	if err != nil {
		return util.Uint160{}, fmt.Errorf("wait for deployment transaction persist: %w", err)
	}

	if res.VMState != vmstate.Halt {
		return util.Uint160{}, fmt.Errorf("deployment transaction faulted: %s", res.FaultException)
	}

	prm.Logger.Info("contract successfully deployed on the chain", zap.Stringer("address", onChainAddress))

	return onChainAddress, nil
}
