package genesis

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethcore "github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/gravity-chain/gravity-genesis/core/bundle"
	"github.com/gravity-chain/gravity-genesis/core/vm"
)

// Snapshot file names written by Export.
const (
	AccountsFile  = "genesis_accounts.json"
	ContractsFile = "genesis_contracts.json"
	AllocFile     = "account_alloc.json"
	GenesisFile   = "genesis.json"
)

// GenesisGasLimit is the block gas limit of the exported genesis block.
const GenesisGasLimit = 0x80000000

type accountInfoJSON struct {
	Balance  *hexutil.Big `json:"balance"`
	Nonce    uint64       `json:"nonce"`
	CodeHash common.Hash  `json:"code_hash"`
}

type accountJSON struct {
	Info    accountInfoJSON             `json:"info"`
	Storage map[common.Hash]common.Hash `json:"storage"`
}

// ExportConfig describes the chain the snapshot is exported for.
type ExportConfig struct {
	Dir     string
	ChainID *big.Int
	Fork    vm.Fork
}

// GenesisAlloc converts an allocation into go-ethereum's genesis alloc.
func GenesisAlloc(alloc *bundle.Allocation) types.GenesisAlloc {
	ga := make(types.GenesisAlloc, len(alloc.Accounts))
	for addr, acct := range alloc.Accounts {
		account := types.Account{
			Balance: acct.Info.Balance.ToBig(),
			Nonce:   acct.Info.Nonce,
			Code:    alloc.Code(addr),
		}
		if len(acct.Storage) > 0 {
			account.Storage = make(map[common.Hash]common.Hash, len(acct.Storage))
			for k, v := range acct.Storage {
				account.Storage[k] = v
			}
		}
		ga[addr] = account
	}
	return ga
}

// BuildGenesis wraps alloc in a genesis block description with every fork
// active from block zero.
func BuildGenesis(alloc *bundle.Allocation, cfg ExportConfig) *gethcore.Genesis {
	return &gethcore.Genesis{
		Config:     cfg.Fork.ChainConfig(cfg.ChainID),
		GasLimit:   GenesisGasLimit,
		Difficulty: big.NewInt(1),
		BaseFee:    new(big.Int),
		Alloc:      GenesisAlloc(alloc),
	}
}

// Export writes the snapshot files into cfg.Dir and returns the genesis
// block description. Map keys are sorted by the JSON encoder, so identical
// allocations produce identical files.
func Export(alloc *bundle.Allocation, cfg ExportConfig) (*gethcore.Genesis, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}

	accounts := make(map[common.Address]accountJSON, len(alloc.Accounts))
	contracts := make(map[common.Address]hexutil.Bytes)
	for addr, acct := range alloc.Accounts {
		storage := make(map[common.Hash]common.Hash, len(acct.Storage))
		for k, v := range acct.Storage {
			storage[k] = v
		}
		accounts[addr] = accountJSON{
			Info: accountInfoJSON{
				Balance:  (*hexutil.Big)(acct.Info.Balance.ToBig()),
				Nonce:    acct.Info.Nonce,
				CodeHash: acct.Info.CodeHash,
			},
			Storage: storage,
		}
		if code := alloc.Code(addr); len(code) > 0 {
			contracts[addr] = code
		}
	}
	gen := BuildGenesis(alloc, cfg)

	for _, f := range []struct {
		name string
		v    any
	}{
		{AccountsFile, accounts},
		{ContractsFile, contracts},
		{AllocFile, gen.Alloc},
		{GenesisFile, gen},
	} {
		if err := writeJSON(filepath.Join(cfg.Dir, f.name), f.v); err != nil {
			return nil, err
		}
	}
	block := gen.ToBlock()
	log.Info("Exported genesis", "dir", cfg.Dir, "accounts", len(accounts), "contracts", len(contracts), "root", block.Root(), "hash", block.Hash())
	return gen, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return err
	}
	log.Debug("Wrote snapshot file", "path", path, "size", len(data))
	return nil
}
