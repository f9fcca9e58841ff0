package tracing

import (
	"strings"

	gethvm "github.com/ethereum/go-ethereum/core/vm"
)

// HaltReason groups the abnormal terminations of the interpreter.
type HaltReason int

const (
	HaltUnspecified HaltReason = iota
	HaltOutOfGas
	HaltInvalidOpcode
	HaltStackUnderflow
	HaltStackOverflow
	HaltInvalidJump
	HaltWriteProtection
	HaltReturnDataOutOfBounds
	HaltCodeSize
	HaltInvalidCode
	HaltCallDepth
	HaltInsufficientBalance
	HaltAddressCollision
)

// Messages of the interpreter errors carrying operands start with these.
var haltPrefixes = []struct {
	prefix string
	reason HaltReason
}{
	{gethvm.ErrOutOfGas.Error(), HaltOutOfGas},
	{gethvm.ErrCodeStoreOutOfGas.Error(), HaltOutOfGas},
	{gethvm.ErrGasUintOverflow.Error(), HaltOutOfGas},
	{"invalid opcode", HaltInvalidOpcode},
	{"stack underflow", HaltStackUnderflow},
	{"stack limit reached", HaltStackOverflow},
	{gethvm.ErrInvalidJump.Error(), HaltInvalidJump},
	{gethvm.ErrWriteProtection.Error(), HaltWriteProtection},
	{gethvm.ErrReturnDataOutOfBounds.Error(), HaltReturnDataOutOfBounds},
	{gethvm.ErrMaxCodeSizeExceeded.Error(), HaltCodeSize},
	{gethvm.ErrMaxInitCodeSizeExceeded.Error(), HaltCodeSize},
	{gethvm.ErrInvalidCode.Error(), HaltInvalidCode},
	{gethvm.ErrDepth.Error(), HaltCallDepth},
	{gethvm.ErrInsufficientBalance.Error(), HaltInsufficientBalance},
	{gethvm.ErrContractAddressCollision.Error(), HaltAddressCollision},
}

// ParseHaltReason maps the halt message of a result to its reason.
func ParseHaltReason(msg string) HaltReason {
	for _, p := range haltPrefixes {
		if strings.HasPrefix(msg, p.prefix) {
			return p.reason
		}
	}
	return HaltUnspecified
}

// String returns a human-readable string for the reason.
func (r HaltReason) String() string {
	switch r {
	case HaltOutOfGas:
		return "out_of_gas"
	case HaltInvalidOpcode:
		return "invalid_opcode"
	case HaltStackUnderflow:
		return "stack_underflow"
	case HaltStackOverflow:
		return "stack_overflow"
	case HaltInvalidJump:
		return "invalid_jump"
	case HaltWriteProtection:
		return "write_protection"
	case HaltReturnDataOutOfBounds:
		return "return_data_out_of_bounds"
	case HaltCodeSize:
		return "code_size_limit"
	case HaltInvalidCode:
		return "invalid_code"
	case HaltCallDepth:
		return "call_depth"
	case HaltInsufficientBalance:
		return "insufficient_balance"
	case HaltAddressCollision:
		return "address_collision"
	}
	return "unspecified"
}
