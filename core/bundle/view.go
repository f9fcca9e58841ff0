package bundle

import (
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"

	"github.com/gravity-chain/gravity-genesis/core/ledger"
)

// View layers a bundle over a read-only ledger: lookups are answered by the
// bundle first and fall through to the ledger for anything it never touched.
// Neither layer is modified through the view.
type View struct {
	base   ledger.View
	bundle *BundleState

	accountMisses atomic.Int64
	storageMisses atomic.Int64
}

// NewView returns the cumulative view of base and b.
func NewView(base ledger.View, b *BundleState) *View {
	if b == nil {
		b = New()
	}
	return &View{base: base, bundle: b}
}

// Basic implements ledger.Reader.
func (v *View) Basic(addr common.Address) (*ledger.AccountInfo, error) {
	if acct, ok := v.bundle.Accounts[addr]; ok {
		return acct.Info.Copy(), nil
	}
	v.accountMisses.Add(1)
	return v.base.Basic(addr)
}

// CodeByHash implements ledger.Reader.
func (v *View) CodeByHash(hash common.Hash) ([]byte, error) {
	if code, ok := v.bundle.Contracts[hash]; ok {
		return common.CopyBytes(code), nil
	}
	return v.base.CodeByHash(hash)
}

// Storage implements ledger.Reader.
func (v *View) Storage(addr common.Address, key common.Hash) (common.Hash, error) {
	if val, ok := v.bundle.storage(addr, key); ok {
		return val, nil
	}
	v.storageMisses.Add(1)
	return v.base.Storage(addr, key)
}

// BlockHash implements ledger.Reader.
func (v *View) BlockHash(number uint64) (common.Hash, error) {
	return v.base.BlockHash(number)
}

// ForEachAccount implements ledger.Iterator, visiting the merged accounts in
// address order. Destroyed accounts and zero-valued slots are skipped.
func (v *View) ForEachAccount(fn func(addr common.Address, acct *ledger.PlainAccount) error) error {
	merged := make(map[common.Address]*ledger.PlainAccount)
	err := v.base.ForEachAccount(func(addr common.Address, acct *ledger.PlainAccount) error {
		merged[addr] = acct
		return nil
	})
	if err != nil {
		return err
	}
	for addr, acct := range v.bundle.Accounts {
		if acct.Info == nil {
			delete(merged, addr)
			continue
		}
		plain, ok := merged[addr]
		if !ok || acct.Wiped {
			plain = &ledger.PlainAccount{Storage: make(map[common.Hash]common.Hash)}
			merged[addr] = plain
		}
		plain.Info = acct.Info.Copy()
		for key, slot := range acct.Storage {
			if slot.Present == (common.Hash{}) {
				delete(plain.Storage, key)
			} else {
				plain.Storage[key] = slot.Present
			}
		}
	}
	addrs := make([]common.Address, 0, len(merged))
	for addr := range merged {
		addrs = append(addrs, addr)
	}
	sortAddresses(addrs)
	for _, addr := range addrs {
		if err := fn(addr, merged[addr]); err != nil {
			return err
		}
	}
	return nil
}

// ResetProfileCounters zeros the fall-through counters.
func (v *View) ResetProfileCounters() {
	v.accountMisses.Store(0)
	v.storageMisses.Store(0)
}

// ProfileCounters returns (accountMisses, storageMisses) since the last
// reset: lookups the bundle could not answer.
func (v *View) ProfileCounters() (int64, int64) {
	return v.accountMisses.Load(), v.storageMisses.Load()
}
