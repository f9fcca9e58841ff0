package vm

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/gravity-chain/gravity-genesis/core/bundle"
	"github.com/gravity-chain/gravity-genesis/core/ledger"
)

// EngineGoEVM names the go-ethereum interpreter backend.
const EngineGoEVM = "go-evm"

// Executor runs one transaction against a read-only view and reports the
// result together with the state the transaction produced. It never writes
// to the view; committing the diff is the caller's job. An error return is
// a VM-level failure, distinct from a Revert or Halt result.
type Executor interface {
	// Engine returns a short name identifying the backend.
	Engine() string

	Transact(view ledger.View, msg *Message) (*ExecutionResult, *bundle.ChangeSet, error)
}

// Config describes the block environment genesis transactions run in.
type Config struct {
	Engine      string
	Fork        Fork
	ChainID     *big.Int
	BlockNumber uint64
	Timestamp   uint64
	Coinbase    common.Address
	GasLimit    uint64
}

// DefaultConfig returns the environment used for genesis generation.
func DefaultConfig() Config {
	return Config{
		Engine:   EngineGoEVM,
		Fork:     DefaultFork,
		ChainID:  big.NewInt(1),
		GasLimit: 0x80000000,
	}
}

// NewExecutor returns the backend selected by cfg.Engine.
func NewExecutor(cfg Config) (Executor, error) {
	switch cfg.Engine {
	case "", EngineGoEVM:
		return newGoExecutor(cfg), nil
	}
	return nil, fmt.Errorf("unsupported execution engine %q", cfg.Engine)
}
