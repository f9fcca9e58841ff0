// gravity-genesis deploys and initializes the system contracts of a gravity
// chain and writes the resulting genesis state.
package main

import (
	"context"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/gravity-chain/gravity-genesis/core/vm"
	"github.com/gravity-chain/gravity-genesis/genesis"
)

var (
	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Enable debug logging",
	}
	logFileFlag = &cli.StringFlag{
		Name:  "log-file",
		Usage: "Write logs to a rotating file instead of stderr",
	}
	byteCodeDirFlag = &cli.StringFlag{
		Name:  "byte-code-dir",
		Usage: "Directory holding <Contract>.hex creation bytecode",
		Value: "out",
	}
	configFileFlag = &cli.StringFlag{
		Name:  "config-file",
		Usage: "Genesis validator configuration (JSON)",
		Value: "generate/genesis_config.json",
	}
	outputFlag = &cli.StringFlag{
		Name:  "output",
		Usage: "Directory the genesis files are written to",
		Value: "output",
	}
	layoutFlag = &cli.StringFlag{
		Name:  "layout",
		Usage: "Contract layout (TOML); the built-in layout is used when unset",
	}
	jwksFileFlag = &cli.StringFlag{
		Name:  "jwks-file",
		Usage: "Observed JWKs (JSON) to upsert into the JWK manager",
	}
	verifyFlag = &cli.BoolFlag{
		Name:  "verify",
		Usage: "Replay read-only checks against the generated state",
	}
	chainIDFlag = &cli.Uint64Flag{
		Name:  "chain-id",
		Usage: "Chain id of the generated genesis",
		Value: 1,
	}
	forkFlag = &cli.StringFlag{
		Name:  "fork",
		Usage: "EVM rules genesis transactions run under (london, shanghai, cancun, prague)",
		Value: vm.DefaultFork.String(),
	}
)

var app = &cli.App{
	Name:   "gravity-genesis",
	Usage:  "Generate the genesis state of a gravity chain",
	Flags:  []cli.Flag{debugFlag, logFileFlag, byteCodeDirFlag, configFileFlag, outputFlag, layoutFlag, jwksFileFlag, verifyFlag, chainIDFlag, forkFlag},
	Before: setupLogging,
	Action: generate,
	Commands: []*cli.Command{
		compareCommand,
		dumpLayoutCommand,
	},
}

var dumpLayoutCommand = &cli.Command{
	Name:   "dump-layout",
	Usage:  "Print the effective contract layout as TOML",
	Flags:  []cli.Flag{layoutFlag},
	Action: dumpLayout,
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadLayout(ctx *cli.Context) (*genesis.Layout, error) {
	file := ctx.String(layoutFlag.Name)
	if file == "" {
		return genesis.DefaultLayout(), nil
	}
	return genesis.LoadLayout(file)
}

func dumpLayout(ctx *cli.Context) error {
	layout, err := loadLayout(ctx)
	if err != nil {
		return err
	}
	out, err := layout.EncodeTOML()
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}

func generate(ctx *cli.Context) error {
	layout, err := loadLayout(ctx)
	if err != nil {
		return err
	}
	cfg, err := genesis.LoadConfig(ctx.String(configFileFlag.Name))
	if err != nil {
		return err
	}
	var jwks *genesis.JWKSet
	if file := ctx.String(jwksFileFlag.Name); file != "" {
		if jwks, err = genesis.LoadJWKs(file); err != nil {
			return err
		}
	}
	fork, err := vm.ParseFork(ctx.String(forkFlag.Name))
	if err != nil {
		return err
	}
	chainID := new(big.Int).SetUint64(ctx.Uint64(chainIDFlag.Name))

	vmcfg := vm.DefaultConfig()
	vmcfg.Fork, vmcfg.ChainID = fork, chainID
	exec, err := vm.NewExecutor(vmcfg)
	if err != nil {
		return err
	}

	seq, err := genesis.NewSequencer(layout)
	if err != nil {
		return err
	}
	plan, err := seq.Plan(genesis.DirSource(ctx.String(byteCodeDirFlag.Name)), cfg, jwks)
	if err != nil {
		return err
	}
	res, err := genesis.NewGenerator(layout, exec).Generate(plan)
	if err != nil {
		return err
	}
	printSummary(os.Stdout, res)

	if _, err := genesis.Export(res.Allocation, genesis.ExportConfig{
		Dir:     ctx.String(outputFlag.Name),
		ChainID: chainID,
		Fork:    fork,
	}); err != nil {
		return err
	}

	if ctx.Bool(verifyFlag.Name) {
		checks, err := genesis.NewVerifier(layout, exec).Verify(context.Background(), res.DB, res.Allocation, jwks)
		printChecks(os.Stdout, checks)
		if err != nil {
			return err
		}
	}
	log.Info("Genesis written", "dir", ctx.String(outputFlag.Name))
	return nil
}
