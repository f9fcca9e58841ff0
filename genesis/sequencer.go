package genesis

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/gravity-chain/gravity-genesis/core/bundle"
	"github.com/gravity-chain/gravity-genesis/core/vm"
)

// ErrMissingBytecode is returned when a source has no bytecode for a contract.
var ErrMissingBytecode = errors.New("missing bytecode")

// BytecodeSource provides the creation bytecode of a contract by name.
type BytecodeSource interface {
	Bytecode(name string) ([]byte, error)
}

// DirSource reads <dir>/<Name>.hex files holding hex creation bytecode.
type DirSource string

func (d DirSource) Bytecode(name string) ([]byte, error) {
	path := filepath.Join(string(d), name+".hex")
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingBytecode, path)
	}
	if err != nil {
		return nil, err
	}
	code, err := decodeHex(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrMissingBytecode, path)
	}
	return code, nil
}

// MapSource serves bytecode from memory.
type MapSource map[string][]byte

func (m MapSource) Bytecode(name string) ([]byte, error) {
	code, ok := m[name]
	if !ok || len(code) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingBytecode, name)
	}
	return code, nil
}

// Deployment describes where one contract of the plan is created and where
// it ends up.
type Deployment struct {
	Name     string
	Address  common.Address
	Final    common.Address
	CodeSize int
}

// Plan is the ordered transaction list of a genesis run.
type Plan struct {
	Contracts    []Deployment
	Deployments  []*vm.Message
	Initializers []*vm.Message
	Remap        bundle.AddressMap
}

// Transactions returns deployments followed by initializers.
func (p *Plan) Transactions() []*vm.Message {
	txs := make([]*vm.Message, 0, len(p.Deployments)+len(p.Initializers))
	txs = append(txs, p.Deployments...)
	return append(txs, p.Initializers...)
}

// Sequencer turns a layout into a deployment plan.
type Sequencer struct {
	layout *Layout
}

// NewSequencer validates layout and returns a sequencer for it.
func NewSequencer(layout *Layout) (*Sequencer, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	return &Sequencer{layout: layout}, nil
}

// Layout returns the layout the sequencer plans for.
func (s *Sequencer) Layout() *Layout { return s.layout }

// Plan builds one deployment per contract in layout order, the remapping
// table, and the initialization calls: Genesis.initialize with cfg, followed
// by the JWK upsert when jwks is non-nil.
func (s *Sequencer) Plan(src BytecodeSource, cfg *Config, jwks *JWKSet) (*Plan, error) {
	l := s.layout
	plan := &Plan{
		Contracts:   make([]Deployment, len(l.Contracts)),
		Deployments: make([]*vm.Message, len(l.Contracts)),
		Remap:       l.AddressMap(),
	}
	for i, c := range l.Contracts {
		code, err := src.Bytecode(c.Name)
		if err != nil {
			return nil, err
		}
		addr := l.DeploymentAddress(i)
		plan.Deployments[i] = vm.NewDeployment(l.Deployer, code, nil)
		plan.Contracts[i] = Deployment{Name: c.Name, Address: addr, Final: plan.Remap[addr], CodeSize: len(code)}
		log.Debug("Planned deployment", "index", i+1, "name", c.Name, "address", addr, "final", plan.Remap[addr], "size", len(code))
	}

	if cfg != nil {
		target, err := s.initTarget(GenesisContract)
		if err != nil {
			return nil, err
		}
		data, err := encodeInitialize(cfg)
		if err != nil {
			return nil, err
		}
		plan.Initializers = append(plan.Initializers, vm.NewCall(l.SystemCaller, target, data))
		log.Info("Planned genesis initialization", "target", target, "validators", cfg.Validators())
	}
	if jwks != nil {
		target, err := s.initTarget(JWKManagerContract)
		if err != nil {
			return nil, err
		}
		data, err := encodeUpsertJWKs(jwks)
		if err != nil {
			return nil, fmt.Errorf("encode JWK upsert: %w", err)
		}
		plan.Initializers = append(plan.Initializers, vm.NewCall(l.SystemCaller, target, data))
		log.Info("Planned JWK upsert", "target", target, "providers", len(jwks.Entries), "size", len(data))
	}
	return plan, nil
}

func (s *Sequencer) initTarget(name string) (common.Address, error) {
	if _, ok := s.layout.Contract(name); !ok {
		return common.Address{}, fmt.Errorf("%w: layout has no %s contract", errInvalidLayout, name)
	}
	return s.layout.FinalAddress(name)
}
