package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/embermint/ember-contract/rpc/token"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
)

// at most that many token holders are requested in one invocation.
const maxHolders = 1000

func main() {
	neoRPCEndpoint := flag.String("rpc", "", "Network address of the Neo RPC server")
	contractAddress := flag.String("contract", "", "Address of the deployed token contract (LE hex)")

	flag.Parse()

	switch {
	case *neoRPCEndpoint == "":
		log.Fatal("missing Neo RPC endpoint")
	case *contractAddress == "":
		log.Fatal("missing token contract address")
	}

	tokenHash, err := util.Uint160DecodeStringLE(*contractAddress)
	if err != nil {
		log.Fatal(fmt.Errorf("decode token contract address: %w", err))
	}

	err = _dump(*neoRPCEndpoint, tokenHash)
	if err != nil {
		log.Fatal(err)
	}
}

func _dump(neoBlockchainRPCEndpoint string, tokenHash util.Uint160) error {
	b, err := newRemoteBlockChain(neoBlockchainRPCEndpoint)
	if err != nil {
		return fmt.Errorf("init remote blockchain: %w", err)
	}

	defer b.close()

	reader := token.NewReader(b.actor, tokenHash)

	sym, err := reader.Symbol()
	if err != nil {
		return fmt.Errorf("get token symbol: %w", err)
	}

	dec, err := reader.Decimals()
	if err != nil {
		return fmt.Errorf("get token decimals: %w", err)
	}

	supply, err := reader.TotalSupply()
	if err != nil {
		return fmt.Errorf("get total supply: %w", err)
	}

	owner, err := reader.Owner()
	if err != nil {
		return fmt.Errorf("get token owner: %w", err)
	}

	paused, err := reader.IsPaused()
	if err != nil {
		return fmt.Errorf("get pause state: %w", err)
	}

	feeRate, err := reader.FeeRate()
	if err != nil {
		return fmt.Errorf("get flash loan fee rate: %w", err)
	}

	maxFlash, err := reader.MaxFlashLoan(tokenHash)
	if err != nil {
		return fmt.Errorf("get flash loan cap: %w", err)
	}

	fees, err := reader.AccumulatedFees()
	if err != nil {
		return fmt.Errorf("get accumulated fees: %w", err)
	}

	version, err := reader.Version()
	if err != nil {
		return fmt.Errorf("get contract version: %w", err)
	}

	fmt.Printf("%s token %s (version %s) at block #%d\n", sym, tokenHash.StringLE(), version, b.currentBlock)
	fmt.Printf("  decimals:         %d\n", dec)
	fmt.Printf("  total supply:     %s\n", supply)
	fmt.Printf("  owner:            %s\n", address.Uint160ToString(owner))
	fmt.Printf("  paused:           %t\n", paused)
	fmt.Printf("  fee rate (bps):   %s\n", feeRate)
	fmt.Printf("  flash loan cap:   %s\n", maxFlash)
	fmt.Printf("  accumulated fees: %s\n", fees)

	holders, err := reader.IterateHoldersExpanded(maxHolders)
	if err != nil {
		return fmt.Errorf("list token holders: %w", err)
	}

	fmt.Printf("  holders (%d):\n", len(holders))

	for i := range holders {
		pair, ok := holders[i].Value().([]stackitem.Item)
		if !ok || len(pair) != 2 {
			return fmt.Errorf("unexpected structure of holder #%d", i)
		}

		rawAcc, err := pair[0].TryBytes()
		if err != nil {
			return fmt.Errorf("decode account of holder #%d: %w", i, err)
		}

		acc, err := util.Uint160DecodeBytesBE(rawAcc)
		if err != nil {
			return fmt.Errorf("decode account of holder #%d: %w", i, err)
		}

		balance, err := pair[1].TryInteger()
		if err != nil {
			return fmt.Errorf("decode balance of holder #%d: %w", i, err)
		}

		fmt.Printf("    %s: %s\n", address.Uint160ToString(acc), balance)
	}

	return nil
}
