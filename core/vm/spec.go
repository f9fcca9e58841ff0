package vm

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"
)

// Fork names the rule set genesis transactions execute under.
type Fork uint8

const (
	London Fork = iota
	Shanghai
	Cancun
	Prague
)

// DefaultFork is used when no fork is configured.
const DefaultFork = Cancun

func (f Fork) String() string {
	switch f {
	case London:
		return "london"
	case Shanghai:
		return "shanghai"
	case Cancun:
		return "cancun"
	case Prague:
		return "prague"
	}
	return fmt.Sprintf("fork(%d)", uint8(f))
}

// ParseFork resolves a fork name, case-insensitively. The empty name is the
// default fork.
func ParseFork(name string) (Fork, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return DefaultFork, nil
	case "london":
		return London, nil
	case "shanghai":
		return Shanghai, nil
	case "cancun":
		return Cancun, nil
	case "prague":
		return Prague, nil
	}
	return 0, fmt.Errorf("unknown fork %q", name)
}

// ChainConfig returns a chain configuration with every fork up to and
// including f active from genesis.
func (f Fork) ChainConfig(chainID *big.Int) *params.ChainConfig {
	if chainID == nil {
		chainID = big.NewInt(1)
	}
	zero := uint64(0)
	cfg := &params.ChainConfig{
		ChainID:                 new(big.Int).Set(chainID),
		HomesteadBlock:          big.NewInt(0),
		EIP150Block:             big.NewInt(0),
		EIP155Block:             big.NewInt(0),
		EIP158Block:             big.NewInt(0),
		ByzantiumBlock:          big.NewInt(0),
		ConstantinopleBlock:     big.NewInt(0),
		PetersburgBlock:         big.NewInt(0),
		IstanbulBlock:           big.NewInt(0),
		MuirGlacierBlock:        big.NewInt(0),
		BerlinBlock:             big.NewInt(0),
		LondonBlock:             big.NewInt(0),
		ArrowGlacierBlock:       big.NewInt(0),
		GrayGlacierBlock:        big.NewInt(0),
		MergeNetsplitBlock:      big.NewInt(0),
		TerminalTotalDifficulty: big.NewInt(0),
	}
	if f >= Shanghai {
		cfg.ShanghaiTime = &zero
	}
	if f >= Cancun {
		cfg.CancunTime = &zero
		cfg.BlobScheduleConfig = &params.BlobScheduleConfig{Cancun: params.DefaultCancunBlobConfig}
	}
	if f >= Prague {
		cfg.PragueTime = &zero
		cfg.BlobScheduleConfig.Prague = params.DefaultPragueBlobConfig
	}
	return cfg
}
