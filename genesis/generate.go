package genesis

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/gravity-chain/gravity-genesis/core"
	"github.com/gravity-chain/gravity-genesis/core/bundle"
	"github.com/gravity-chain/gravity-genesis/core/ledger"
	"github.com/gravity-chain/gravity-genesis/core/vm"
)

// Result is the outcome of a genesis run.
type Result struct {
	Plan       *Plan
	Results    []*vm.ExecutionResult // deployments followed by initializers
	Bundle     *bundle.BundleState   // post-initialization state at canonical addresses
	Allocation *bundle.Allocation
	DB         *ledger.MemoryDB // the seeded base snapshot
}

// Generator replays a plan and materializes the genesis allocation.
type Generator struct {
	layout   *Layout
	replayer *core.Replayer
}

// NewGenerator returns a generator for layout running on exec. Every
// failing transaction aborts generation.
func NewGenerator(layout *Layout, exec vm.Executor) *Generator {
	return &Generator{
		layout:   layout,
		replayer: core.NewReplayer(exec, core.ReplayConfig{StopOnFailure: true, Retention: bundle.RetainReverts}),
	}
}

// SeedDB returns the base snapshot genesis runs against: an otherwise empty
// ledger holding the funded deployer.
func (g *Generator) SeedDB() *ledger.MemoryDB {
	db := ledger.NewMemoryDB()
	db.InsertAccount(g.layout.Deployer, ledger.NewAccountInfo(DeployerBalance(), g.layout.DeployerNonce))
	return db
}

// Generate deploys every contract, relocates them to their canonical
// addresses, runs the initializers against the relocated contracts and
// finalizes the result. Transaction indices in errors count across both
// phases.
func (g *Generator) Generate(plan *Plan) (*Result, error) {
	start := time.Now()
	db := g.SeedDB()
	log.Info("Starting genesis generation", "engine", g.replayer.Engine(), "deployments", len(plan.Deployments), "initializers", len(plan.Initializers))

	deployed, b, err := g.replayer.Replay(db, nil, plan.Deployments)
	if err != nil {
		return nil, fmt.Errorf("deploy contracts: %w", err)
	}
	for i, res := range deployed {
		want := plan.Contracts[i].Address
		if res.ContractAddress == nil || *res.ContractAddress != want {
			return nil, fmt.Errorf("contract %s deployed at %v, want %x", plan.Contracts[i].Name, res.ContractAddress, want)
		}
	}
	relocated, err := bundle.Relocate(b, plan.Remap)
	if err != nil {
		return nil, fmt.Errorf("relocate contracts: %w", err)
	}
	log.Info("Relocated system contracts", "contracts", len(plan.Remap), "accounts", relocated.Len())

	initialized, post, err := g.replayer.Replay(db, relocated, plan.Initializers)
	if err != nil {
		var txErr *core.TxError
		if errors.As(err, &txErr) {
			txErr.Index += len(plan.Deployments)
		}
		return nil, fmt.Errorf("initialize contracts: %w", err)
	}

	alloc, err := bundle.Finalize(post, db, bundle.FinalizeOptions{Scratch: g.scratchAccounts()})
	if err != nil {
		return nil, fmt.Errorf("finalize: %w", err)
	}
	log.Info("Genesis generation finished", "accounts", len(alloc.Accounts), "codes", len(alloc.Codes), "transitions", post.Transitions(), "elapsed", common.PrettyDuration(time.Since(start)))

	return &Result{
		Plan:       plan,
		Results:    append(deployed, initialized...),
		Bundle:     post,
		Allocation: alloc,
		DB:         db,
	}, nil
}

func (g *Generator) scratchAccounts() []common.Address {
	if g.layout.SystemCaller == g.layout.Deployer {
		return []common.Address{g.layout.Deployer}
	}
	return []common.Address{g.layout.Deployer, g.layout.SystemCaller}
}
