// Package tracing turns execution results into human-readable diagnostics.
package tracing

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/gravity-chain/gravity-genesis/core/vm"
)

// ErrorKind is a custom error raised by the system contracts.
type ErrorKind int

const (
	ErrorUnknown ErrorKind = iota
	ErrorOnlySystemCaller
	ErrorUnknownParam
	ErrorInvalidValue
	ErrorOnlyCoinbase
	ErrorOnlyZeroGasPrice
	ErrorOnlySystemContract
)

var kindSelectors = map[ErrorKind][4]byte{
	ErrorOnlySystemCaller:   {0x49, 0xfd, 0x36, 0xf2},
	ErrorUnknownParam:       {0x97, 0xb8, 0x83, 0x54},
	ErrorInvalidValue:       {0x0a, 0x5a, 0x60, 0x41},
	ErrorOnlyCoinbase:       {0x11, 0x6c, 0x64, 0xa8},
	ErrorOnlyZeroGasPrice:   {0x83, 0xf1, 0xb1, 0xd3},
	ErrorOnlySystemContract: {0xf2, 0x2c, 0x43, 0x90},
}

var selectorKinds = func() map[[4]byte]ErrorKind {
	m := make(map[[4]byte]ErrorKind, len(kindSelectors))
	for kind, sel := range kindSelectors {
		m[sel] = kind
	}
	return m
}()

// String returns the Solidity error name.
func (k ErrorKind) String() string {
	switch k {
	case ErrorOnlySystemCaller:
		return "OnlySystemCaller"
	case ErrorUnknownParam:
		return "UnknownParam"
	case ErrorInvalidValue:
		return "InvalidValue"
	case ErrorOnlyCoinbase:
		return "OnlyCoinbase"
	case ErrorOnlyZeroGasPrice:
		return "OnlyZeroGasPrice"
	case ErrorOnlySystemContract:
		return "OnlySystemContract"
	}
	return "Unknown"
}

// Description explains the error in plain words.
func (k ErrorKind) Description() string {
	switch k {
	case ErrorOnlySystemCaller:
		return "caller is not the designated system caller"
	case ErrorUnknownParam:
		return "unknown configuration parameter"
	case ErrorInvalidValue:
		return "invalid value for parameter"
	case ErrorOnlyCoinbase:
		return "caller is not the block proposer"
	case ErrorOnlyZeroGasPrice:
		return "non-zero gas price not permitted"
	case ErrorOnlySystemContract:
		return "caller is not an authorized system contract"
	}
	return "unknown error selector"
}

// Selector returns the 4-byte selector of the error.
func (k ErrorKind) Selector() [4]byte { return kindSelectors[k] }

// Lookup maps the leading four bytes of a revert payload to an error kind.
func Lookup(output []byte) (ErrorKind, bool) {
	if len(output) < 4 {
		return ErrorUnknown, false
	}
	kind, ok := selectorKinds[[4]byte(output[:4])]
	return kind, ok
}

const logEventABI = `[{"type":"event","name":"Log","anonymous":false,"inputs":[
	{"name":"message","type":"string","indexed":false},
	{"name":"value","type":"uint256","indexed":false}]}]`

var logABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(logEventABI))
	if err != nil {
		panic(err)
	}
	return parsed
}()

// Classify describes an execution result on one or more lines.
func Classify(res *vm.ExecutionResult) string {
	switch res.Outcome {
	case vm.Success:
		return classifySuccess(res)
	case vm.Revert:
		return classifyRevert(res)
	case vm.Halt:
		return fmt.Sprintf("Halt: %s with gas used: %d", res.HaltReason, res.GasUsed)
	}
	return fmt.Sprintf("Unknown outcome %v", res.Outcome)
}

func classifySuccess(res *vm.ExecutionResult) string {
	lines := []string{fmt.Sprintf("Success with gas used: %d", res.GasUsed)}
	event := logABI.Events["Log"]

	var unknown int
	for _, log := range res.Logs {
		if len(log.Topics) == 0 || log.Topics[0] != event.ID {
			unknown++
			continue
		}
		values, err := logABI.Unpack("Log", log.Data)
		if err != nil || len(values) != 2 {
			unknown++
			continue
		}
		msg, _ := values[0].(string)
		val, _ := values[1].(*big.Int)
		lines = append(lines, fmt.Sprintf("Log: %s = %v", msg, val))
	}
	if unknown > 0 {
		lines = append(lines, fmt.Sprintf("%d unrecognized log(s)", unknown))
	}
	return strings.Join(lines, "\n")
}

func classifyRevert(res *vm.ExecutionResult) string {
	out := res.Output
	if len(out) < 4 {
		return fmt.Sprintf("Revert with empty or short output 0x%s, gas used: %d", hex.EncodeToString(out), res.GasUsed)
	}
	var b strings.Builder
	if kind, ok := Lookup(out); ok {
		fmt.Fprintf(&b, "Revert: %s (%s) with gas used: %d", kind, kind.Description(), res.GasUsed)
	} else if reason, err := abi.UnpackRevert(out); err == nil {
		fmt.Fprintf(&b, "Revert: %q with gas used: %d", reason, res.GasUsed)
		return b.String()
	} else {
		fmt.Fprintf(&b, "Revert: Unknown error selector 0x%s with gas used: %d", hex.EncodeToString(out[:4]), res.GasUsed)
	}
	if len(out) > 4 {
		fmt.Fprintf(&b, "\nAdditional data (%d bytes): 0x%s", len(out)-4, hex.EncodeToString(out[4:]))
	}
	return b.String()
}
