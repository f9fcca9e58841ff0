package vm

import (
	"errors"
	"fmt"
	"math/big"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	gethvm "github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"

	"github.com/gravity-chain/gravity-genesis/core/bundle"
	"github.com/gravity-chain/gravity-genesis/core/ledger"
)

// goExecutor runs transactions on the go-ethereum interpreter. Every
// transaction gets a scratch StateDB preloaded from the view; the keys the
// interpreter touches are collected through state hooks and read back as
// the transaction's diff.
type goExecutor struct {
	cfg   Config
	chain *params.ChainConfig
}

func newGoExecutor(cfg Config) *goExecutor {
	return &goExecutor{cfg: cfg, chain: cfg.Fork.ChainConfig(cfg.ChainID)}
}

func (e *goExecutor) Engine() string { return EngineGoEVM }

// touchSet records the addresses and slots modified during one transaction.
type touchSet struct {
	accounts mapset.Set[common.Address]
	slots    map[common.Address]mapset.Set[common.Hash]
}

func newTouchSet() *touchSet {
	return &touchSet{
		accounts: mapset.NewThreadUnsafeSet[common.Address](),
		slots:    make(map[common.Address]mapset.Set[common.Hash]),
	}
}

func (t *touchSet) hooks() *tracing.Hooks {
	return &tracing.Hooks{
		OnBalanceChange: func(addr common.Address, _, _ *big.Int, _ tracing.BalanceChangeReason) {
			t.accounts.Add(addr)
		},
		OnNonceChange: func(addr common.Address, _, _ uint64) {
			t.accounts.Add(addr)
		},
		OnCodeChange: func(addr common.Address, _ common.Hash, _ []byte, _ common.Hash, _ []byte) {
			t.accounts.Add(addr)
		},
		OnStorageChange: func(addr common.Address, slot common.Hash, _, _ common.Hash) {
			t.accounts.Add(addr)
			set, ok := t.slots[addr]
			if !ok {
				set = mapset.NewThreadUnsafeSet[common.Hash]()
				t.slots[addr] = set
			}
			set.Add(slot)
		},
	}
}

// Transact implements Executor.
func (e *goExecutor) Transact(view ledger.View, msg *Message) (*ExecutionResult, *bundle.ChangeSet, error) {
	var nonce uint64
	sender, err := view.Basic(msg.From)
	if err != nil {
		return nil, nil, fmt.Errorf("load sender %x: %w", msg.From, err)
	}
	if sender != nil {
		nonce = sender.Nonce
	}

	statedb, err := state.New(types.EmptyRootHash, state.NewDatabaseForTesting())
	if err != nil {
		return nil, nil, fmt.Errorf("create scratch state: %w", err)
	}
	if err := preloadState(statedb, view); err != nil {
		return nil, nil, err
	}
	touched := newTouchSet()
	hooked := state.NewHookedState(statedb, touched.hooks())

	var hashErr error
	blockCtx := gethvm.BlockContext{
		CanTransfer: core.CanTransfer,
		Transfer:    core.Transfer,
		GetHash: func(n uint64) common.Hash {
			h, err := view.BlockHash(n)
			if err != nil && hashErr == nil {
				hashErr = err
			}
			return h
		},
		Coinbase:    e.cfg.Coinbase,
		GasLimit:    e.cfg.GasLimit,
		BlockNumber: new(big.Int).SetUint64(e.cfg.BlockNumber),
		Time:        e.cfg.Timestamp,
		Difficulty:  new(big.Int),
		BaseFee:     new(big.Int),
		BlobBaseFee: new(big.Int),
		Random:      &common.Hash{},
	}
	coreMsg := &core.Message{
		From:      msg.From,
		To:        msg.To,
		Nonce:     nonce,
		Value:     msg.value().ToBig(),
		GasLimit:  msg.Gas(),
		GasPrice:  new(big.Int),
		GasFeeCap: new(big.Int),
		GasTipCap: new(big.Int),
		Data:      msg.Data,
	}
	evm := gethvm.NewEVM(blockCtx, hooked, e.chain, gethvm.Config{NoBaseFee: true})
	evm.SetTxContext(core.NewEVMTxContext(coreMsg))

	res, err := core.ApplyMessage(evm, coreMsg, new(core.GasPool).AddGas(coreMsg.GasLimit))
	if err != nil {
		return nil, nil, fmt.Errorf("apply message: %w", err)
	}
	if hashErr != nil {
		return nil, nil, fmt.Errorf("block hash lookup: %w", hashErr)
	}
	hooked.Finalise(true)

	result := &ExecutionResult{GasUsed: res.UsedGas}
	switch {
	case res.Err == nil:
		result.Outcome = Success
		result.Output = common.CopyBytes(res.ReturnData)
		result.Logs = statedb.Logs()
		if msg.IsDeployment() {
			addr := crypto.CreateAddress(msg.From, nonce)
			result.ContractAddress = &addr
		}
	case errors.Is(res.Err, gethvm.ErrExecutionReverted):
		result.Outcome = Revert
		result.Output = common.CopyBytes(res.Revert())
	default:
		result.Outcome = Halt
		result.HaltReason = res.Err.Error()
	}

	diff, err := collectChanges(statedb, view, touched)
	if err != nil {
		return nil, nil, err
	}
	return result, diff, nil
}

// preloadState copies every account of the view into the scratch state.
func preloadState(statedb *state.StateDB, view ledger.View) error {
	err := view.ForEachAccount(func(addr common.Address, acct *ledger.PlainAccount) error {
		statedb.CreateAccount(addr)
		statedb.SetBalance(addr, acct.Info.Balance, tracing.BalanceChangeUnspecified)
		statedb.SetNonce(addr, acct.Info.Nonce, tracing.NonceChangeUnspecified)
		if acct.Info.HasCode() {
			code, err := view.CodeByHash(acct.Info.CodeHash)
			if err != nil {
				return fmt.Errorf("code of %x: %w", addr, err)
			}
			statedb.SetCode(addr, code)
		}
		for key, val := range acct.Storage {
			statedb.SetState(addr, key, val)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("preload state: %w", err)
	}
	statedb.Finalise(false)
	return nil
}

// collectChanges compares every touched key with the view and returns the
// post-state of the keys that actually changed.
func collectChanges(statedb *state.StateDB, view ledger.Reader, touched *touchSet) (*bundle.ChangeSet, error) {
	cs := bundle.NewChangeSet()
	for _, addr := range touched.accounts.ToSlice() {
		pre, err := view.Basic(addr)
		if err != nil {
			return nil, fmt.Errorf("load account %x: %w", addr, err)
		}
		if !statedb.Exist(addr) {
			if pre != nil {
				cs.Account(addr).Destroyed = true
			}
			continue
		}
		post := &ledger.AccountInfo{
			Balance:  new(uint256.Int).Set(statedb.GetBalance(addr)),
			Nonce:    statedb.GetNonce(addr),
			CodeHash: statedb.GetCodeHash(addr),
		}
		slots := make(map[common.Hash]common.Hash)
		if set, ok := touched.slots[addr]; ok {
			for _, key := range set.ToSlice() {
				before, err := view.Storage(addr, key)
				if err != nil {
					return nil, fmt.Errorf("load slot %x of %x: %w", key, addr, err)
				}
				if after := statedb.GetState(addr, key); after != before {
					slots[key] = after
				}
			}
		}
		if pre != nil && normalize(pre).Equal(post) && len(slots) == 0 {
			continue
		}
		change := cs.Account(addr)
		change.Info = post
		change.Storage = slots
		if post.HasCode() && (pre == nil || pre.CodeHash != post.CodeHash) {
			change.Code = statedb.GetCode(addr)
		}
	}
	return cs, nil
}

func normalize(info *ledger.AccountInfo) *ledger.AccountInfo {
	if info.CodeHash == (common.Hash{}) {
		cpy := info.Copy()
		cpy.CodeHash = types.EmptyCodeHash
		return cpy
	}
	return info
}
