package vm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Outcome tags an ExecutionResult.
type Outcome int

const (
	Success Outcome = iota
	Revert
	Halt
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Revert:
		return "revert"
	case Halt:
		return "halt"
	}
	return "unknown"
}

// ExecutionResult is the outcome of one transaction. Output holds the return
// data on success and the revert payload on revert; HaltReason is set on halt.
type ExecutionResult struct {
	Outcome         Outcome
	GasUsed         uint64
	Logs            []*types.Log
	Output          []byte
	HaltReason      string
	ContractAddress *common.Address // deployments that succeeded
}

// Succeeded reports whether the transaction completed without revert or halt.
func (r *ExecutionResult) Succeeded() bool { return r.Outcome == Success }
