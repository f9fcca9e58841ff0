package genesis

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const genesisABIJSON = `[{"type":"function","name":"initialize","stateMutability":"nonpayable","outputs":[],"inputs":[
	{"name":"validatorAddresses","type":"address[]"},
	{"name":"consensusPublicKeys","type":"bytes[]"},
	{"name":"votingPowers","type":"uint256[]"},
	{"name":"validatorNetworkAddresses","type":"bytes[]"},
	{"name":"fullnodeNetworkAddresses","type":"bytes[]"}]}]`

const jwkManagerABIJSON = `[
{"type":"function","name":"upsertObservedJWKs","stateMutability":"nonpayable","outputs":[],"inputs":[
	{"name":"providerJWKsArray","type":"tuple[]","components":[
		{"name":"issuer","type":"string"},
		{"name":"version","type":"uint64"},
		{"name":"jwks","type":"tuple[]","components":[
			{"name":"variant","type":"uint8"},
			{"name":"data","type":"bytes"}]}]}]},
{"type":"function","name":"getObservedJWKs","stateMutability":"view","inputs":[],"outputs":[
	{"name":"","type":"tuple","components":[
		{"name":"entries","type":"tuple[]","components":[
			{"name":"issuer","type":"string"},
			{"name":"version","type":"uint64"},
			{"name":"jwks","type":"tuple[]","components":[
				{"name":"variant","type":"uint8"},
				{"name":"data","type":"bytes"}]}]}]}]}]`

// The verification views below declare no outputs: their return layout is
// contract-version dependent and they are reported as raw output.
const validatorManagerABIJSON = `[{"type":"function","name":"getValidatorSet","stateMutability":"view","inputs":[],"outputs":[]}]`

const epochManagerABIJSON = `[{"type":"function","name":"getCurrentEpochInfo","stateMutability":"view","inputs":[],"outputs":[]}]`

var (
	genesisABI          = mustParseABI(genesisABIJSON)
	jwkManagerABI       = mustParseABI(jwkManagerABIJSON)
	validatorManagerABI = mustParseABI(validatorManagerABIJSON)
	epochManagerABI     = mustParseABI(epochManagerABIJSON)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// encodeInitialize packs the Genesis.initialize call for cfg.
func encodeInitialize(cfg *Config) ([]byte, error) {
	args, err := cfg.initializeArgs()
	if err != nil {
		return nil, err
	}
	return genesisABI.Pack("initialize", args.validators, args.consensusKeys, args.votingPowers, args.validatorNet, args.fullnodeNet)
}
