package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

var errSnapshotsDiffer = errors.New("snapshots differ")

var compareCommand = &cli.Command{
	Name:      "compare",
	Usage:     "Structurally diff two genesis snapshot files",
	ArgsUsage: "<expected.json> <actual.json>",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "color", Usage: "Colour the diff output"},
	},
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 2 {
			return fmt.Errorf("expected two files, got %d", ctx.NArg())
		}
		return compareFiles(os.Stdout, ctx.Args().Get(0), ctx.Args().Get(1), ctx.Bool("color"))
	},
}

// compareFiles writes an ASCII diff of two JSON files to w and returns
// errSnapshotsDiffer when their contents differ.
func compareFiles(w io.Writer, expected, actual string, color bool) error {
	left, err := os.ReadFile(expected)
	if err != nil {
		return err
	}
	right, err := os.ReadFile(actual)
	if err != nil {
		return err
	}
	delta, err := gojsondiff.New().Compare(left, right)
	if err != nil {
		return fmt.Errorf("diff %s and %s: %w", expected, actual, err)
	}
	if !delta.Modified() {
		fmt.Fprintf(w, "%s and %s match\n", expected, actual)
		return nil
	}
	var leftObj interface{}
	if err := json.Unmarshal(left, &leftObj); err != nil {
		return err
	}
	out, err := formatter.NewAsciiFormatter(leftObj, formatter.AsciiFormatterConfig{
		ShowArrayIndex: true,
		Coloring:       color,
	}).Format(delta)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, out)
	return fmt.Errorf("%w: %s and %s", errSnapshotsDiffer, expected, actual)
}
