// Package genesis builds the genesis transaction list for the system
// contracts, replays it and exports the resulting state.
package genesis

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/naoina/toml"

	"github.com/gravity-chain/gravity-genesis/core/bundle"
)

// Contract names the layout refers to by role.
const (
	GenesisContract    = "Genesis"
	JWKManagerContract = "JWKManager"
	EpochManager       = "EpochManager"
	ValidatorManager   = "ValidatorManager"
)

var errInvalidLayout = errors.New("invalid layout")

// ContractSpec is one contract of the layout. A zero Canonical address keeps
// the contract at its deployment address.
type ContractSpec struct {
	Name      string
	Canonical common.Address `toml:",omitempty"`
	DependsOn []string       `toml:",omitempty"`
}

// Remapped reports whether the contract moves to a canonical address.
func (c *ContractSpec) Remapped() bool { return c.Canonical != (common.Address{}) }

// Layout is the immutable description of a genesis deployment: who deploys,
// in which order, and where each contract ends up. Contract k (0-based) is
// created with creation counter DeployerNonce+k, so the order fixes every
// deployment address.
type Layout struct {
	Deployer      common.Address
	DeployerNonce uint64
	SystemCaller  common.Address
	Contracts     []ContractSpec
}

func canonical(hex string) common.Address { return common.HexToAddress(hex) }

// DefaultLayout returns the system contract layout of a gravity chain.
func DefaultLayout() *Layout {
	return &Layout{
		Deployer:      common.Address{},
		DeployerNonce: 1,
		SystemCaller:  common.Address{},
		Contracts: []ContractSpec{
			{Name: "System", Canonical: canonical("0x00000000000000000000000000000000000000ff")},
			{Name: "SystemReward", Canonical: canonical("0x0000000000000000000000000000000000001002")},
			{Name: "StakeConfig", Canonical: canonical("0x0000000000000000000000000000000000002008")},
			{Name: "ValidatorManagerUtils", Canonical: canonical("0x000000000000000000000000000000000000200c")},
			{Name: ValidatorManager, Canonical: canonical("0x0000000000000000000000000000000000002010"), DependsOn: []string{"StakeConfig", "ValidatorManagerUtils"}},
			{Name: "ValidatorPerformanceTracker", Canonical: canonical("0x000000000000000000000000000000000000200b"), DependsOn: []string{ValidatorManager}},
			{Name: EpochManager, Canonical: canonical("0x00000000000000000000000000000000000000f3")},
			{Name: "GovToken", Canonical: canonical("0x0000000000000000000000000000000000002005")},
			{Name: "Timelock", Canonical: canonical("0x0000000000000000000000000000000000002007")},
			{Name: "GravityGovernor", Canonical: canonical("0x0000000000000000000000000000000000002006"), DependsOn: []string{"GovToken", "Timelock"}},
			{Name: JWKManagerContract, Canonical: canonical("0x0000000000000000000000000000000000002002")},
			{Name: "KeylessAccount", Canonical: canonical("0x000000000000000000000000000000000000200a"), DependsOn: []string{JWKManagerContract}},
			{Name: "Block", Canonical: canonical("0x0000000000000000000000000000000000002001")},
			{Name: "Timestamp", Canonical: canonical("0x0000000000000000000000000000000000002004")},
			{Name: GenesisContract, Canonical: canonical("0x0000000000000000000000000000000000001008")},
			{Name: "StakeCredit", Canonical: canonical("0x0000000000000000000000000000000000002003")},
			{Name: "Delegation", Canonical: canonical("0x0000000000000000000000000000000000002009"), DependsOn: []string{"StakeCredit"}},
			{Name: "GovHub", Canonical: canonical("0x0000000000000000000000000000000000001007")},
			{Name: "Groth16Verifier"},
			{Name: "JWKUtils"},
			{Name: "Protectable"},
			{Name: "Bytes"},
		},
	}
}

// DeployerBalance is the balance the deployer is seeded with.
func DeployerBalance() *uint256.Int {
	return uint256.NewInt(1_000_000_000_000_000_000)
}

// Validate checks names and canonical addresses are unique and that every
// dependency is deployed strictly before its dependent. Neither the deployer
// nor the system caller may coincide with a contract address, since both
// are stripped from the allocation.
func (l *Layout) Validate() error {
	if len(l.Contracts) == 0 {
		return fmt.Errorf("%w: no contracts", errInvalidLayout)
	}
	position := make(map[string]int, len(l.Contracts))
	targets := make(map[common.Address]string, len(l.Contracts))
	for i, c := range l.Contracts {
		if c.Name == "" {
			return fmt.Errorf("%w: contract %d has no name", errInvalidLayout, i+1)
		}
		if _, ok := position[c.Name]; ok {
			return fmt.Errorf("%w: contract %s listed twice", errInvalidLayout, c.Name)
		}
		for _, dep := range c.DependsOn {
			if _, ok := position[dep]; !ok {
				return fmt.Errorf("%w: %s depends on %s, which is not deployed before it", errInvalidLayout, c.Name, dep)
			}
		}
		position[c.Name] = i
		if l.DeploymentAddress(i) == l.SystemCaller {
			return fmt.Errorf("%w: %s is deployed at the system caller address %s", errInvalidLayout, c.Name, l.SystemCaller)
		}
		if !c.Remapped() {
			continue
		}
		if c.Canonical == l.Deployer {
			return fmt.Errorf("%w: %s canonical address is the deployer", errInvalidLayout, c.Name)
		}
		if c.Canonical == l.SystemCaller {
			return fmt.Errorf("%w: %s canonical address is the system caller", errInvalidLayout, c.Name)
		}
		if prev, ok := targets[c.Canonical]; ok {
			return fmt.Errorf("%w: %s and %s share canonical address %s", errInvalidLayout, prev, c.Name, c.Canonical)
		}
		targets[c.Canonical] = c.Name
	}
	return nil
}

// Contract returns the layout entry named name.
func (l *Layout) Contract(name string) (*ContractSpec, bool) {
	for i := range l.Contracts {
		if l.Contracts[i].Name == name {
			return &l.Contracts[i], true
		}
	}
	return nil, false
}

// DeploymentAddress returns where the contract at position i (0-based) is
// created.
func (l *Layout) DeploymentAddress(i int) common.Address {
	return crypto.CreateAddress(l.Deployer, l.DeployerNonce+uint64(i))
}

// FinalAddress returns where the named contract lives after remapping.
func (l *Layout) FinalAddress(name string) (common.Address, error) {
	for i := range l.Contracts {
		c := &l.Contracts[i]
		if c.Name != name {
			continue
		}
		if c.Remapped() {
			return c.Canonical, nil
		}
		return l.DeploymentAddress(i), nil
	}
	return common.Address{}, fmt.Errorf("contract %s not in layout", name)
}

// AddressMap returns the remapping table of the layout. It covers every
// deployed contract; contracts without a canonical address map to their
// deployment address.
func (l *Layout) AddressMap() bundle.AddressMap {
	m := make(bundle.AddressMap, len(l.Contracts))
	for i := range l.Contracts {
		src := l.DeploymentAddress(i)
		if l.Contracts[i].Remapped() {
			m[src] = l.Contracts[i].Canonical
		} else {
			m[src] = src
		}
	}
	return m
}

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// LoadLayout reads a TOML layout file and validates it.
func LoadLayout(file string) (*Layout, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	layout := new(Layout)
	if err := tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(layout); err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return layout, nil
}

// EncodeTOML renders the layout in the format LoadLayout reads.
func (l *Layout) EncodeTOML() ([]byte, error) {
	return tomlSettings.Marshal(l)
}
