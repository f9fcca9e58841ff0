// Package evmtest holds hand-assembled EVM programs shared by tests.
package evmtest

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// StorageRuntime stores the first calldata word in slot 0 when called with
// data, and returns slot 0 when called without.
var StorageRuntime = common.FromHex("3615600c57600035600055005b60005460005260206000f3")

// SizeRecorderRuntime stores CALLDATASIZE in slot 0 and stops.
var SizeRecorderRuntime = common.FromHex("3660005500")

// InvalidRuntime executes the designated invalid opcode.
var InvalidRuntime = []byte{0xfe}

// Constructor wraps runtime in init code that copies it to memory and
// returns it. Used as runtime itself, the result returns runtime verbatim on
// every call, which makes it a fixed-output contract.
func Constructor(runtime []byte) []byte {
	hi, lo := byte(len(runtime)>>8), byte(len(runtime))
	code := []byte{
		0x61, hi, lo, // PUSH2 len
		0x61, 0x00, 0x0f, // PUSH2 offset of runtime
		0x60, 0x00, // PUSH1 0
		0x39, // CODECOPY
		0x61, hi, lo, // PUSH2 len
		0x60, 0x00, // PUSH1 0
		0xf3, // RETURN
	}
	return append(code, runtime...)
}

// Returning is runtime code that returns data on every call.
func Returning(data []byte) []byte { return Constructor(data) }

// RevertWith returns code that reverts with the 4-byte selector as its only
// output. It works both as init code and as runtime.
func RevertWith(selector [4]byte) []byte {
	code := []byte{0x63}
	code = append(code, selector[:]...)
	return append(code,
		0x60, 0xe0, // PUSH1 224
		0x1b,       // SHL
		0x60, 0x00, // PUSH1 0
		0x52,       // MSTORE
		0x60, 0x04, // PUSH1 4
		0x60, 0x00, // PUSH1 0
		0xfd, // REVERT
	)
}

// Word left-pads v into a 32-byte calldata word.
func Word(v uint64) []byte {
	return common.BigToHash(new(big.Int).SetUint64(v)).Bytes()
}
