package genesis

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	"github.com/gravity-chain/gravity-genesis/core"
	"github.com/gravity-chain/gravity-genesis/core/bundle"
	"github.com/gravity-chain/gravity-genesis/core/ledger"
	"github.com/gravity-chain/gravity-genesis/core/vm"
	"github.com/gravity-chain/gravity-genesis/tracing"
)

// ErrVerificationFailed is returned when a post-genesis check does not pass.
var ErrVerificationFailed = errors.New("verification failed")

// Check is the outcome of one verification pass.
type Check struct {
	Name    string
	Target  string
	Result  *vm.ExecutionResult
	Summary string
	Err     error
}

// Passed reports whether the check succeeded.
func (c *Check) Passed() bool { return c.Err == nil }

type verifyPass struct {
	name     string
	contract string
	data     []byte
	inspect  func(output []byte) (string, error)
}

// Verifier replays read-only calls against a finalized allocation.
type Verifier struct {
	layout *Layout
	exec   vm.Executor
}

// NewVerifier returns a verifier calling the contracts of layout on exec.
func NewVerifier(layout *Layout, exec vm.Executor) *Verifier {
	return &Verifier{layout: layout, exec: exec}
}

func (v *Verifier) passes(jwks *JWKSet) ([]verifyPass, error) {
	validatorSet, err := validatorManagerABI.Pack("getValidatorSet")
	if err != nil {
		return nil, err
	}
	epochInfo, err := epochManagerABI.Pack("getCurrentEpochInfo")
	if err != nil {
		return nil, err
	}
	passes := []verifyPass{
		{name: "validator set", contract: ValidatorManager, data: validatorSet, inspect: rawOutput},
		{name: "epoch info", contract: EpochManager, data: epochInfo, inspect: rawOutput},
	}
	if jwks != nil {
		passes = append(passes, verifyPass{
			name:     "observed JWKs",
			contract: JWKManagerContract,
			data:     encodeGetObservedJWKs(),
			inspect:  func(output []byte) (string, error) { return compareObservedJWKs(output, jwks) },
		})
	}
	return passes, nil
}

func rawOutput(output []byte) (string, error) {
	return fmt.Sprintf("%d bytes returned", len(output)), nil
}

func compareObservedJWKs(output []byte, want *JWKSet) (string, error) {
	got, err := decodeObservedJWKs(output)
	if err != nil {
		return "", fmt.Errorf("decode observed JWKs: %w", err)
	}
	for i, p := range got.Entries {
		log.Debug("Observed JWK provider", "index", i+1, "issuer", p.Issuer, "version", p.Version, "keys", len(p.Jwks))
	}
	if !got.Equal(want) {
		return "", fmt.Errorf("%w: got %d providers (%d keys), want %d providers (%d keys)",
			errJWKMismatch, len(got.Entries), got.Keys(), len(want.Entries), want.Keys())
	}
	return fmt.Sprintf("%d providers, %d keys match", len(got.Entries), got.Keys()), nil
}

// Verify runs the verification passes concurrently, each against its own
// view of db under alloc, and returns their outcomes in a fixed order. The
// JWK pass only runs when jwks is non-nil. The error joins every failed
// check.
func (v *Verifier) Verify(ctx context.Context, db ledger.View, alloc *bundle.Allocation, jwks *JWKSet) ([]*Check, error) {
	passes, err := v.passes(jwks)
	if err != nil {
		return nil, err
	}
	checks := make([]*Check, len(passes))
	eg, ctx := errgroup.WithContext(ctx)
	for i, p := range passes {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			checks[i] = v.run(db, alloc, p)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var errs []error
	for _, c := range checks {
		if c.Passed() {
			log.Info("Verification passed", "check", c.Name, "target", c.Target, "result", c.Summary)
			continue
		}
		log.Error("Verification failed", "check", c.Name, "target", c.Target, "err", c.Err)
		errs = append(errs, fmt.Errorf("%s: %w", c.Name, c.Err))
	}
	if len(errs) > 0 {
		return checks, fmt.Errorf("%w: %w", ErrVerificationFailed, errors.Join(errs...))
	}
	return checks, nil
}

func (v *Verifier) run(db ledger.View, alloc *bundle.Allocation, p verifyPass) *Check {
	check := &Check{Name: p.name, Target: p.contract}
	target, err := v.layout.FinalAddress(p.contract)
	if err != nil {
		check.Err = err
		return check
	}
	replayer := core.NewReplayer(v.exec, core.ReplayConfig{})
	results, _, err := replayer.Replay(db, bundle.FromAllocation(alloc), []*vm.Message{vm.NewCall(v.layout.SystemCaller, target, p.data)})
	if err != nil {
		check.Err = err
		return check
	}
	check.Result = results[0]
	if !check.Result.Succeeded() {
		check.Err = errors.New(tracing.Classify(check.Result))
		return check
	}
	check.Summary, check.Err = p.inspect(check.Result.Output)
	return check
}
