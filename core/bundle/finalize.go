package bundle

import (
	"errors"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"

	"github.com/gravity-chain/gravity-genesis/core/ledger"
)

var (
	// ErrRemapCollision is returned when two sources map to the same target.
	ErrRemapCollision = errors.New("remap targets collide")

	// ErrRemapSource is returned when a remap source is not in the bundle.
	ErrRemapSource = errors.New("remap source not in bundle")
)

// AddressMap relocates deployment-derived addresses to canonical ones.
type AddressMap map[common.Address]common.Address

// Validate checks that no two sources share a target.
func (m AddressMap) Validate() error {
	seen := make(map[common.Address]common.Address, len(m))
	for _, src := range m.Sources() {
		dst := m[src]
		if prev, ok := seen[dst]; ok {
			return fmt.Errorf("%w: %x and %x both map to %x", ErrRemapCollision, prev, src, dst)
		}
		seen[dst] = src
	}
	return nil
}

// Sources returns the mapped addresses in ascending order.
func (m AddressMap) Sources() []common.Address {
	srcs := make([]common.Address, 0, len(m))
	for src := range m {
		srcs = append(srcs, src)
	}
	sortAddresses(srcs)
	return srcs
}

// Allocation is a finalized snapshot: every account with its present info
// and storage, plus the code of every account that carries code.
type Allocation struct {
	Accounts map[common.Address]*ledger.PlainAccount
	Codes    map[common.Hash][]byte
}

// Code returns the code of addr, or nil for code-less and unknown accounts.
func (a *Allocation) Code(addr common.Address) []byte {
	acct, ok := a.Accounts[addr]
	if !ok || !acct.Info.HasCode() {
		return nil
	}
	return a.Codes[acct.Info.CodeHash]
}

// FinalizeOptions controls Finalize.
type FinalizeOptions struct {
	// Scratch accounts exist only to originate replay transactions and are
	// dropped from the snapshot.
	Scratch []common.Address
	// Remap relocates accounts after the scratch accounts are dropped.
	Remap AddressMap
}

// Finalize strips scratch accounts, relocates remapped ones and flattens the
// bundle into an Allocation. Code not held by the bundle is looked up in
// codes.
func Finalize(b *BundleState, codes ledger.Reader, opts FinalizeOptions) (*Allocation, error) {
	scratch := mapset.NewThreadUnsafeSet[common.Address](opts.Scratch...)
	for src := range opts.Remap {
		if scratch.Contains(src) {
			return nil, fmt.Errorf("scratch account %x cannot be remapped", src)
		}
	}
	working := b.Copy()
	for _, addr := range scratch.ToSlice() {
		delete(working.Accounts, addr)
	}
	if len(opts.Remap) > 0 {
		var err error
		if working, err = Relocate(working, opts.Remap); err != nil {
			return nil, err
		}
	}

	alloc := &Allocation{
		Accounts: make(map[common.Address]*ledger.PlainAccount, len(working.Accounts)),
		Codes:    make(map[common.Hash][]byte),
	}
	for addr, acct := range working.Accounts {
		if acct.Info == nil {
			continue
		}
		plain := &ledger.PlainAccount{
			Info:    acct.Info.Copy(),
			Storage: make(map[common.Hash]common.Hash, len(acct.Storage)),
		}
		for key, slot := range acct.Storage {
			if slot.Present != (common.Hash{}) {
				plain.Storage[key] = slot.Present
			}
		}
		alloc.Accounts[addr] = plain

		if !acct.Info.HasCode() {
			continue
		}
		hash := acct.Info.CodeHash
		if code, ok := working.Contracts[hash]; ok {
			alloc.Codes[hash] = common.CopyBytes(code)
			continue
		}
		if codes == nil {
			return nil, fmt.Errorf("code %x of %x: %w", hash, addr, ledger.ErrCodeNotFound)
		}
		code, err := codes.CodeByHash(hash)
		if err != nil {
			return nil, fmt.Errorf("code of %x: %w", addr, err)
		}
		alloc.Codes[hash] = code
	}
	return alloc, nil
}

// Relocate returns a copy of b with every remap source moved to its target.
// Accounts landing on the same address are merged: per storage key the
// later transition wins, and the account info carrying code, then the later
// transition, then the higher balance wins. Revert records do not survive
// relocation.
func Relocate(b *BundleState, remap AddressMap) (*BundleState, error) {
	if err := remap.Validate(); err != nil {
		return nil, err
	}
	for _, src := range remap.Sources() {
		if _, ok := b.Accounts[src]; !ok {
			return nil, fmt.Errorf("%w: %x", ErrRemapSource, src)
		}
	}
	out := &BundleState{
		Accounts:    make(map[common.Address]*Account, len(b.Accounts)),
		Contracts:   make(map[common.Hash][]byte, len(b.Contracts)),
		transitions: b.transitions,
	}
	for hash, code := range b.Contracts {
		out.Contracts[hash] = common.CopyBytes(code)
	}
	for addr, acct := range b.Accounts {
		dst, moved := remap[addr]
		if !moved || dst == addr {
			dst, moved = addr, false
		}
		incoming := acct.Copy()
		if moved {
			incoming.Original = nil
			incoming.Wiped = true
			for _, slot := range incoming.Storage {
				slot.Original = common.Hash{}
			}
		}
		existing, ok := out.Accounts[dst]
		if !ok {
			out.Accounts[dst] = incoming
			continue
		}
		if moved {
			out.Accounts[dst] = mergeAccounts(incoming, existing)
		} else {
			out.Accounts[dst] = mergeAccounts(existing, incoming)
		}
	}
	return out, nil
}

// mergeAccounts combines a relocated account with the account that already
// lived at its target. Ties go to the relocated side.
func mergeAccounts(moved, resident *Account) *Account {
	merged := &Account{
		Original: resident.Original.Copy(),
		Storage:  make(map[common.Hash]*StorageSlot, len(moved.Storage)+len(resident.Storage)),
		Wiped:    moved.Wiped && resident.Wiped,
	}
	if preferInfo(moved, resident) {
		merged.Info, merged.Transition = moved.Info.Copy(), moved.Transition
	} else {
		merged.Info, merged.Transition = resident.Info.Copy(), resident.Transition
	}
	for key, slot := range resident.Storage {
		s := *slot
		merged.Storage[key] = &s
	}
	for key, slot := range moved.Storage {
		cur, ok := merged.Storage[key]
		if !ok || slot.Transition >= cur.Transition {
			s := *slot
			if ok {
				s.Original = cur.Original
			}
			merged.Storage[key] = &s
		}
	}
	return merged
}

// preferInfo reports whether a's info should win over b's.
func preferInfo(a, b *Account) bool {
	if a.Info == nil || b.Info == nil {
		return b.Info == nil
	}
	if ac, bc := a.Info.HasCode(), b.Info.HasCode(); ac != bc {
		return ac
	}
	if a.Transition != b.Transition {
		return a.Transition > b.Transition
	}
	if c := a.Info.Balance.Cmp(b.Info.Balance); c != 0 {
		return c > 0
	}
	return true
}

// FromAllocation seeds a bundle with a finalized allocation so it can serve
// as the base layer of a later replay.
func FromAllocation(alloc *Allocation) *BundleState {
	b := New()
	for addr, acct := range alloc.Accounts {
		a := &Account{
			Info:    acct.Info.Copy(),
			Storage: make(map[common.Hash]*StorageSlot, len(acct.Storage)),
			Wiped:   true,
		}
		for key, val := range acct.Storage {
			a.Storage[key] = &StorageSlot{Present: val}
		}
		b.Accounts[addr] = a
	}
	for hash, code := range alloc.Codes {
		b.Contracts[hash] = common.CopyBytes(code)
	}
	return b
}

