// Package ledger defines the read-only account store a virtual machine
// consults while genesis transactions are replayed.
package ledger

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// ErrCodeNotFound is returned when a code hash has no bytes in the code table.
var ErrCodeNotFound = errors.New("can't find code by hash")

// BackendError signals an I/O or integrity fault in the store itself, as
// opposed to data that is simply absent.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("ledger backend %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// AccountInfo is the basic account record: balance, nonce and the hash of
// the code the account carries.
type AccountInfo struct {
	Balance  *uint256.Int
	Nonce    uint64
	CodeHash common.Hash
}

// NewAccountInfo returns a code-less account holding balance.
func NewAccountInfo(balance *uint256.Int, nonce uint64) *AccountInfo {
	if balance == nil {
		balance = new(uint256.Int)
	}
	return &AccountInfo{Balance: balance, Nonce: nonce, CodeHash: types.EmptyCodeHash}
}

// HasCode reports whether the account references non-empty code.
func (a *AccountInfo) HasCode() bool {
	return a != nil && a.CodeHash != (common.Hash{}) && a.CodeHash != types.EmptyCodeHash
}

// IsEmpty reports whether the account is empty in the EIP-161 sense.
func (a *AccountInfo) IsEmpty() bool {
	return a == nil || (a.Nonce == 0 && (a.Balance == nil || a.Balance.IsZero()) && !a.HasCode())
}

// Copy returns a deep copy of the account info.
func (a *AccountInfo) Copy() *AccountInfo {
	if a == nil {
		return nil
	}
	cpy := *a
	if a.Balance != nil {
		cpy.Balance = new(uint256.Int).Set(a.Balance)
	} else {
		cpy.Balance = new(uint256.Int)
	}
	return &cpy
}

// Equal reports whether both records hold the same values.
func (a *AccountInfo) Equal(b *AccountInfo) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Nonce == b.Nonce && a.CodeHash == b.CodeHash && balanceOf(a).Eq(balanceOf(b))
}

func balanceOf(a *AccountInfo) *uint256.Int {
	if a.Balance == nil {
		return new(uint256.Int)
	}
	return a.Balance
}

// PlainAccount is an account together with its full storage.
type PlainAccount struct {
	Info    *AccountInfo
	Storage map[common.Hash]common.Hash
}

// Reader is the lookup surface handed to a virtual machine. Lookups never
// fail on missing data; only backend faults surface as errors.
type Reader interface {
	// Basic returns the account info, or nil when the account is not present.
	Basic(addr common.Address) (*AccountInfo, error)

	// CodeByHash returns the code for hash, or an error wrapping ErrCodeNotFound.
	CodeByHash(hash common.Hash) ([]byte, error)

	// Storage returns the slot value, or the zero hash when absent.
	Storage(addr common.Address, key common.Hash) (common.Hash, error)

	// BlockHash returns the hash of the given block number.
	BlockHash(number uint64) (common.Hash, error)
}

// Iterator enumerates every account of a store, storage included.
type Iterator interface {
	ForEachAccount(fn func(addr common.Address, acct *PlainAccount) error) error
}

// View is a Reader that can also be enumerated, which is what a VM backend
// needs to preload its own state.
type View interface {
	Reader
	Iterator
}

// PlaceholderBlockHash is the hash reported for block numbers without a
// recorded hash: keccak256 of the decimal number. It stands in for a
// historical chain and is not authoritative.
func PlaceholderBlockHash(number uint64) common.Hash {
	return crypto.Keccak256Hash([]byte(strconv.FormatUint(number, 10)))
}
