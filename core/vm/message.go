package vm

import (
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Message carries the fields a backend needs to run one replay transaction.
// A nil To makes it a deployment whose Data is the constructor bytecode
// followed by the encoded constructor arguments.
type Message struct {
	From     common.Address
	To       *common.Address
	Data     []byte
	Value    *uint256.Int
	GasLimit uint64 // zero means unbounded
}

// NewDeployment returns a deployment of code with ABI-encoded constructor
// arguments appended.
func NewDeployment(from common.Address, code, args []byte) *Message {
	data := make([]byte, 0, len(code)+len(args))
	data = append(data, code...)
	data = append(data, args...)
	return &Message{From: from, Data: data}
}

// NewCall returns a call of to with the given calldata.
func NewCall(from, to common.Address, data []byte) *Message {
	return &Message{From: from, To: &to, Data: common.CopyBytes(data)}
}

// IsDeployment reports whether the message creates a contract.
func (m *Message) IsDeployment() bool { return m.To == nil }

// Gas returns the gas ceiling, resolving zero to unbounded.
func (m *Message) Gas() uint64 {
	if m.GasLimit == 0 {
		return math.MaxUint64
	}
	return m.GasLimit
}

// Selector returns the first four bytes of call data, or nil.
func (m *Message) Selector() []byte {
	if m.IsDeployment() || len(m.Data) < 4 {
		return nil
	}
	return m.Data[:4]
}

func (m *Message) value() *uint256.Int {
	if m.Value == nil {
		return new(uint256.Int)
	}
	return m.Value
}
