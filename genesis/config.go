package genesis

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var errInvalidConfig = errors.New("invalid genesis config")

// Config is the validator configuration passed to Genesis.initialize.
type Config struct {
	ValidatorAddresses        []string `json:"validatorAddresses"`
	ConsensusPublicKeys       []string `json:"consensusPublicKeys"`
	VotingPowers              []string `json:"votingPowers"`
	ValidatorNetworkAddresses []string `json:"validatorNetworkAddresses"`
	FullnodeNetworkAddresses  []string `json:"fullnodeNetworkAddresses"`
}

// LoadConfig reads and validates a JSON genesis config.
func LoadConfig(file string) (*Config, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	cfg := new(Config)
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", file, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return cfg, nil
}

// Validate checks that every list describes the same validators and that
// every entry parses.
func (c *Config) Validate() error {
	_, err := c.initializeArgs()
	return err
}

// Validators returns the number of configured validators.
func (c *Config) Validators() int { return len(c.ValidatorAddresses) }

// initArgs holds the decoded arguments of Genesis.initialize.
type initArgs struct {
	validators    []common.Address
	consensusKeys [][]byte
	votingPowers  []*big.Int
	validatorNet  [][]byte
	fullnodeNet   [][]byte
}

func (c *Config) initializeArgs() (*initArgs, error) {
	n := len(c.ValidatorAddresses)
	if n == 0 {
		return nil, fmt.Errorf("%w: no validators", errInvalidConfig)
	}
	for _, list := range []struct {
		name string
		size int
	}{
		{"consensusPublicKeys", len(c.ConsensusPublicKeys)},
		{"votingPowers", len(c.VotingPowers)},
		{"validatorNetworkAddresses", len(c.ValidatorNetworkAddresses)},
		{"fullnodeNetworkAddresses", len(c.FullnodeNetworkAddresses)},
	} {
		if list.size != n {
			return nil, fmt.Errorf("%w: %s has %d entries, want %d", errInvalidConfig, list.name, list.size, n)
		}
	}
	args := &initArgs{
		validators:    make([]common.Address, n),
		consensusKeys: make([][]byte, n),
		votingPowers:  make([]*big.Int, n),
		validatorNet:  make([][]byte, n),
		fullnodeNet:   make([][]byte, n),
	}
	for i := 0; i < n; i++ {
		addr := c.ValidatorAddresses[i]
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("%w: validator %d address %q", errInvalidConfig, i, addr)
		}
		args.validators[i] = common.HexToAddress(addr)

		key, err := decodeHex(c.ConsensusPublicKeys[i])
		if err != nil {
			return nil, fmt.Errorf("%w: validator %d consensus key: %v", errInvalidConfig, i, err)
		}
		args.consensusKeys[i] = key

		power, ok := new(big.Int).SetString(strings.TrimSpace(c.VotingPowers[i]), 0)
		if !ok || power.Sign() < 0 {
			return nil, fmt.Errorf("%w: validator %d voting power %q", errInvalidConfig, i, c.VotingPowers[i])
		}
		args.votingPowers[i] = power
		args.validatorNet[i] = []byte(c.ValidatorNetworkAddresses[i])
		args.fullnodeNet[i] = []byte(c.FullnodeNetworkAddresses[i])
	}
	return args, nil
}

// decodeHex accepts hex with or without the 0x prefix.
func decodeHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	return hexutil.Decode(s)
}
