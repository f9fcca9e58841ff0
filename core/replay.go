// Package core replays ordered transaction lists against a ledger snapshot.
package core

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/gravity-chain/gravity-genesis/core/bundle"
	"github.com/gravity-chain/gravity-genesis/core/ledger"
	"github.com/gravity-chain/gravity-genesis/core/vm"
	"github.com/gravity-chain/gravity-genesis/tracing"
)

var (
	// ErrTransactionReverted marks a transaction that ended in a revert.
	ErrTransactionReverted = errors.New("transaction reverted")

	// ErrTransactionHalted marks a transaction the VM halted abnormally.
	ErrTransactionHalted = errors.New("transaction halted")
)

var (
	replayTxMeter     = metrics.NewRegisteredMeter("genesis/replay/txs", nil)
	replayFailedMeter = metrics.NewRegisteredMeter("genesis/replay/failed", nil)
	replayGasMeter    = metrics.NewRegisteredMeter("genesis/replay/gas", nil)
	replayTimer       = metrics.NewRegisteredTimer("genesis/replay/time", nil)
)

// TxError reports the transaction that aborted a replay. Index is 1-based.
type TxError struct {
	Index  int
	Result *vm.ExecutionResult // nil for VM-level failures
	Err    error
}

func (e *TxError) Error() string {
	if e.Result != nil {
		return fmt.Sprintf("transaction %d failed: %v: %s", e.Index, e.Err, tracing.Classify(e.Result))
	}
	return fmt.Sprintf("transaction %d failed: %v", e.Index, e.Err)
}

func (e *TxError) Unwrap() error { return e.Err }

// ReplayConfig controls a Replayer.
type ReplayConfig struct {
	// StopOnFailure turns reverts and halts into fatal errors.
	StopOnFailure bool
	// Retention decides whether per-transition revert records are kept.
	Retention bundle.Retention
}

// Replayer executes transaction lists strictly in order, each transaction
// observing the effects of all earlier ones.
type Replayer struct {
	exec vm.Executor
	cfg  ReplayConfig
}

// NewReplayer returns a replayer running transactions on exec.
func NewReplayer(exec vm.Executor, cfg ReplayConfig) *Replayer {
	return &Replayer{exec: exec, cfg: cfg}
}

// Engine returns the name of the backend transactions run on.
func (r *Replayer) Engine() string { return r.exec.Engine() }

// Replay executes txs against db layered under a copy of pre (which may be
// nil). Neither db nor pre is modified. On failure the results produced so
// far are returned together with a *TxError and no bundle.
func (r *Replayer) Replay(db ledger.View, pre *bundle.BundleState, txs []*vm.Message) ([]*vm.ExecutionResult, *bundle.BundleState, error) {
	defer replayTimer.UpdateSince(time.Now())

	working := bundle.New()
	if pre != nil {
		working = pre.Copy()
	}
	view := bundle.NewView(db, working)
	results := make([]*vm.ExecutionResult, 0, len(txs))

	for i, tx := range txs {
		index := i + 1
		logTransaction(index, tx)

		res, diff, err := r.exec.Transact(view, tx)
		if err != nil {
			replayFailedMeter.Mark(1)
			log.Error("Transaction aborted replay", "index", index, "err", err)
			return results, nil, &TxError{Index: index, Err: err}
		}
		results = append(results, res)
		replayTxMeter.Mark(1)
		replayGasMeter.Mark(meterGas(res.GasUsed))

		if err := working.Apply(diff, db); err != nil {
			return results, nil, &TxError{Index: index, Err: err}
		}
		logResult(index, res, diff)

		if !res.Succeeded() && r.cfg.StopOnFailure {
			replayFailedMeter.Mark(1)
			cause := ErrTransactionReverted
			if res.Outcome == vm.Halt {
				cause = ErrTransactionHalted
			}
			return results, nil, &TxError{Index: index, Result: res, Err: cause}
		}
	}
	working.MergeTransitions(r.cfg.Retention)

	accMiss, storMiss := view.ProfileCounters()
	log.Debug("Replay finished", "txs", len(txs), "accounts", working.Len(), "accountMisses", accMiss, "storageMisses", storMiss)
	return results, working, nil
}

// meterGas clamps gas to the meter's range. Halts under an unbounded gas
// limit consume math.MaxUint64.
func meterGas(gas uint64) int64 {
	if gas > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(gas)
}

func logTransaction(index int, tx *vm.Message) {
	if tx.IsDeployment() {
		log.Debug("Replaying deployment", "index", index, "from", tx.From, "size", len(tx.Data))
		return
	}
	log.Debug("Replaying call", "index", index, "from", tx.From, "to", *tx.To, "selector", hexutil.Bytes(tx.Selector()), "size", len(tx.Data))
}

func logResult(index int, res *vm.ExecutionResult, diff *bundle.ChangeSet) {
	if res.Succeeded() {
		log.Info("Transaction executed", "index", index, "gas", res.GasUsed, "touched", diff.Len(), "result", tracing.Classify(res))
		return
	}
	if res.Outcome == vm.Halt {
		log.Warn("Transaction halted", "index", index, "reason", tracing.ParseHaltReason(res.HaltReason), "result", tracing.Classify(res))
		return
	}
	log.Warn("Transaction failed", "index", index, "outcome", res.Outcome, "result", tracing.Classify(res))
}
