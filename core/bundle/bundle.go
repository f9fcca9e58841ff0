package bundle

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/gravity-chain/gravity-genesis/core/ledger"
)

// Retention selects what survives when the transitions of a replay are
// merged into the final bundle.
type Retention int

const (
	// RetainPlainState keeps only present values.
	RetainPlainState Retention = iota
	// RetainReverts also keeps one revert record per transition.
	RetainReverts
)

func (r Retention) String() string {
	switch r {
	case RetainPlainState:
		return "plain"
	case RetainReverts:
		return "reverts"
	}
	return "unknown"
}

var errNoReverts = errors.New("not enough revert records")

// StorageSlot tracks one slot across the replay. Transition is the number of
// the transition that last wrote Present.
type StorageSlot struct {
	Original   common.Hash
	Present    common.Hash
	Transition int
}

// Changed reports whether the slot differs from its pre-replay value.
func (s *StorageSlot) Changed() bool { return s.Original != s.Present }

// Account is the bundled state of one address.
type Account struct {
	Original   *ledger.AccountInfo // info before the replay, nil when absent
	Info       *ledger.AccountInfo // present info, nil when destroyed
	Storage    map[common.Hash]*StorageSlot
	Wiped      bool // storage of the layer below is no longer visible
	Transition int  // last transition that wrote Info
}

// Copy returns a deep copy of the account.
func (a *Account) Copy() *Account {
	cpy := &Account{
		Original:   a.Original.Copy(),
		Info:       a.Info.Copy(),
		Storage:    make(map[common.Hash]*StorageSlot, len(a.Storage)),
		Wiped:      a.Wiped,
		Transition: a.Transition,
	}
	for key, slot := range a.Storage {
		s := *slot
		cpy.Storage[key] = &s
	}
	return cpy
}

// AccountRevert restores an account to what it was before a transition.
// A nil Previous means the account was not part of the bundle yet.
type AccountRevert struct {
	Address  common.Address
	Previous *Account
}

// BundleState is the cumulative diff of a replay. It is owned by a single
// writer and never shared with concurrent replays; use Copy for that.
type BundleState struct {
	Accounts  map[common.Address]*Account
	Contracts map[common.Hash][]byte
	Reverts   [][]*AccountRevert

	transitions int
}

// New returns an empty bundle.
func New() *BundleState {
	return &BundleState{
		Accounts:  make(map[common.Address]*Account),
		Contracts: make(map[common.Hash][]byte),
	}
}

// Transitions returns the number of change sets applied so far.
func (b *BundleState) Transitions() int { return b.transitions }

// Len returns the number of accounts in the bundle.
func (b *BundleState) Len() int { return len(b.Accounts) }

// Apply folds a transaction diff into the bundle as a new transition.
// Pre-replay values of accounts and slots seen for the first time are read
// from base.
func (b *BundleState) Apply(cs *ChangeSet, base ledger.Reader) error {
	t := b.transitions + 1
	reverts := make([]*AccountRevert, 0, cs.Len())

	for _, addr := range cs.Addresses() {
		change := cs.Accounts[addr]
		rev := &AccountRevert{Address: addr}

		acct, ok := b.Accounts[addr]
		if ok {
			rev.Previous = acct.Copy()
		} else {
			orig, err := base.Basic(addr)
			if err != nil {
				return fmt.Errorf("load original account %x: %w", addr, err)
			}
			acct = &Account{Original: orig, Storage: make(map[common.Hash]*StorageSlot)}
			b.Accounts[addr] = acct
		}
		reverts = append(reverts, rev)

		acct.Transition = t
		if change.Destroyed {
			acct.Info = nil
			acct.Wiped = true
			for _, slot := range acct.Storage {
				slot.Present = common.Hash{}
				slot.Transition = t
			}
		} else {
			acct.Info = change.Info.Copy()
		}
		if len(change.Code) > 0 {
			b.Contracts[crypto.Keccak256Hash(change.Code)] = common.CopyBytes(change.Code)
		}
		for key, val := range change.Storage {
			slot, ok := acct.Storage[key]
			if !ok {
				orig, err := base.Storage(addr, key)
				if err != nil {
					return fmt.Errorf("load original slot %x of %x: %w", key, addr, err)
				}
				slot = &StorageSlot{Original: orig}
				acct.Storage[key] = slot
			}
			slot.Present = val
			slot.Transition = t
		}
	}
	b.transitions = t
	b.Reverts = append(b.Reverts, reverts)
	return nil
}

// MergeTransitions finalizes the transitions applied so far under the given
// retention policy.
func (b *BundleState) MergeTransitions(retention Retention) {
	if retention == RetainPlainState {
		b.Reverts = nil
	}
}

// Revert undoes the last n transitions. It needs the revert records kept by
// RetainReverts.
func (b *BundleState) Revert(n int) error {
	if n > len(b.Reverts) {
		return fmt.Errorf("%w: have %d, want %d", errNoReverts, len(b.Reverts), n)
	}
	for ; n > 0; n-- {
		last := b.Reverts[len(b.Reverts)-1]
		b.Reverts = b.Reverts[:len(b.Reverts)-1]
		for _, rev := range last {
			if rev.Previous == nil {
				delete(b.Accounts, rev.Address)
			} else {
				b.Accounts[rev.Address] = rev.Previous
			}
		}
		b.transitions--
	}
	return nil
}

// Copy returns a deep copy of the bundle.
func (b *BundleState) Copy() *BundleState {
	cpy := &BundleState{
		Accounts:    make(map[common.Address]*Account, len(b.Accounts)),
		Contracts:   make(map[common.Hash][]byte, len(b.Contracts)),
		transitions: b.transitions,
	}
	for addr, acct := range b.Accounts {
		cpy.Accounts[addr] = acct.Copy()
	}
	for hash, code := range b.Contracts {
		cpy.Contracts[hash] = common.CopyBytes(code)
	}
	if b.Reverts != nil {
		cpy.Reverts = make([][]*AccountRevert, len(b.Reverts))
		for i, revs := range b.Reverts {
			cpy.Reverts[i] = make([]*AccountRevert, len(revs))
			for j, rev := range revs {
				r := &AccountRevert{Address: rev.Address}
				if rev.Previous != nil {
					r.Previous = rev.Previous.Copy()
				}
				cpy.Reverts[i][j] = r
			}
		}
	}
	return cpy
}

// storage returns the bundled value of a slot. The second result is false
// when the layer below must be consulted.
func (b *BundleState) storage(addr common.Address, key common.Hash) (common.Hash, bool) {
	acct, ok := b.Accounts[addr]
	if !ok {
		return common.Hash{}, false
	}
	if slot, ok := acct.Storage[key]; ok {
		return slot.Present, true
	}
	if acct.Wiped {
		return common.Hash{}, true
	}
	return common.Hash{}, false
}
