// Package bundle accumulates the state changes of a transaction replay and
// turns them into a finalized account allocation.
package bundle

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/gravity-chain/gravity-genesis/core/ledger"
)

// AccountChange is the post-state of one account touched by a transaction.
// Only touched storage slots are listed, each with its present value.
type AccountChange struct {
	Info      *ledger.AccountInfo // nil when Destroyed
	Code      []byte              // set when new code was installed
	Storage   map[common.Hash]common.Hash
	Destroyed bool
}

// ChangeSet is the diff produced by a single transaction.
type ChangeSet struct {
	Accounts map[common.Address]*AccountChange
}

// NewChangeSet returns an empty diff.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{Accounts: make(map[common.Address]*AccountChange)}
}

// Account returns the entry for addr, creating it when missing.
func (cs *ChangeSet) Account(addr common.Address) *AccountChange {
	change, ok := cs.Accounts[addr]
	if !ok {
		change = &AccountChange{Storage: make(map[common.Hash]common.Hash)}
		cs.Accounts[addr] = change
	}
	return change
}

// Len returns the number of touched accounts.
func (cs *ChangeSet) Len() int {
	if cs == nil {
		return 0
	}
	return len(cs.Accounts)
}

// Addresses returns the touched addresses in ascending order.
func (cs *ChangeSet) Addresses() []common.Address {
	if cs == nil {
		return nil
	}
	addrs := make([]common.Address, 0, len(cs.Accounts))
	for addr := range cs.Accounts {
		addrs = append(addrs, addr)
	}
	sortAddresses(addrs)
	return addrs
}

func sortAddresses(addrs []common.Address) {
	sort.Slice(addrs, func(i, j int) bool { return bytes.Compare(addrs[i][:], addrs[j][:]) < 0 })
}
