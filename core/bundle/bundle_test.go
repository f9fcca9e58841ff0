package bundle

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/gravity-chain/gravity-genesis/core/ledger"
)

var (
	addrA = common.HexToAddress("0xaaaa")
	addrB = common.HexToAddress("0xbbbb")
	addrC = common.HexToAddress("0xcccc")

	slot0 = common.HexToHash("0x00")
	slot1 = common.HexToHash("0x01")
)

func word(v uint64) common.Hash { return common.BigToHash(new(uint256.Int).SetUint64(v).ToBig()) }

func storageChange(addr common.Address, nonce uint64, kv map[common.Hash]common.Hash) *ChangeSet {
	cs := NewChangeSet()
	change := cs.Account(addr)
	change.Info = ledger.NewAccountInfo(nil, nonce)
	for k, v := range kv {
		change.Storage[k] = v
	}
	return cs
}

func TestApplyLaterTransitionWins(t *testing.T) {
	base := ledger.NewMemoryDB()
	base.SetStorage(addrA, slot0, word(7))

	b := New()
	require.NoError(t, b.Apply(storageChange(addrA, 1, map[common.Hash]common.Hash{slot0: word(1)}), base))
	require.NoError(t, b.Apply(storageChange(addrA, 2, map[common.Hash]common.Hash{slot0: word(2), slot1: word(3)}), base))

	acct := b.Accounts[addrA]
	require.Equal(t, 2, b.Transitions())
	require.Equal(t, uint64(2), acct.Info.Nonce)
	require.Equal(t, word(2), acct.Storage[slot0].Present)
	require.Equal(t, word(7), acct.Storage[slot0].Original, "original comes from the base layer")
	require.Equal(t, 2, acct.Storage[slot0].Transition)
	require.True(t, acct.Storage[slot1].Changed())
	require.NotNil(t, acct.Original, "account existed in the base layer")
}

func TestApplyRecordsCode(t *testing.T) {
	code := common.FromHex("6001600c60003960016000f300")
	cs := NewChangeSet()
	change := cs.Account(addrB)
	change.Info = ledger.NewAccountInfo(nil, 1)
	change.Info.CodeHash = crypto.Keccak256Hash(code)
	change.Code = code

	b := New()
	require.NoError(t, b.Apply(cs, ledger.NewMemoryDB()))
	require.Equal(t, code, b.Contracts[change.Info.CodeHash])
	require.Nil(t, b.Accounts[addrB].Original)
}

func TestRevertTransitions(t *testing.T) {
	base := ledger.NewMemoryDB()
	b := New()
	require.NoError(t, b.Apply(storageChange(addrA, 1, map[common.Hash]common.Hash{slot0: word(1)}), base))
	require.NoError(t, b.Apply(storageChange(addrA, 2, map[common.Hash]common.Hash{slot0: word(2)}), base))
	require.NoError(t, b.Apply(storageChange(addrB, 1, nil), base))

	require.NoError(t, b.Revert(2))
	require.Equal(t, 1, b.Transitions())
	require.NotContains(t, b.Accounts, addrB)
	require.Equal(t, word(1), b.Accounts[addrA].Storage[slot0].Present)

	require.Error(t, b.Revert(5))

	b.MergeTransitions(RetainPlainState)
	require.Nil(t, b.Reverts)
	require.Error(t, b.Revert(1))
}

func TestCopyIsIndependent(t *testing.T) {
	base := ledger.NewMemoryDB()
	b := New()
	require.NoError(t, b.Apply(storageChange(addrA, 1, map[common.Hash]common.Hash{slot0: word(1)}), base))

	cpy := b.Copy()
	require.NoError(t, cpy.Apply(storageChange(addrA, 5, map[common.Hash]common.Hash{slot0: word(9)}), base))

	require.Equal(t, word(1), b.Accounts[addrA].Storage[slot0].Present)
	require.Equal(t, uint64(1), b.Accounts[addrA].Info.Nonce)
	require.Equal(t, 1, b.Transitions())
	require.Equal(t, 2, cpy.Transitions())
}

func TestViewLayering(t *testing.T) {
	base := ledger.NewMemoryDB()
	base.InsertAccount(addrA, ledger.NewAccountInfo(uint256.NewInt(100), 0))
	base.SetStorage(addrA, slot0, word(5))
	base.SetStorage(addrA, slot1, word(6))

	b := New()
	require.NoError(t, b.Apply(storageChange(addrA, 1, map[common.Hash]common.Hash{slot0: word(8)}), base))
	view := NewView(base, b)

	val, err := view.Storage(addrA, slot0)
	require.NoError(t, err)
	require.Equal(t, word(8), val)

	val, err = view.Storage(addrA, slot1)
	require.NoError(t, err)
	require.Equal(t, word(6), val, "untouched slots fall through")

	val, err = view.Storage(addrC, slot1)
	require.NoError(t, err)
	require.Equal(t, common.Hash{}, val)

	accMiss, storMiss := view.ProfileCounters()
	require.Zero(t, accMiss)
	require.Equal(t, int64(2), storMiss)
	view.ResetProfileCounters()
	accMiss, storMiss = view.ProfileCounters()
	require.Zero(t, accMiss+storMiss)

	// The base layer is untouched.
	val, _ = base.Storage(addrA, slot0)
	require.Equal(t, word(5), val)

	seen := map[common.Address]*ledger.PlainAccount{}
	require.NoError(t, view.ForEachAccount(func(addr common.Address, acct *ledger.PlainAccount) error {
		seen[addr] = acct
		return nil
	}))
	require.Len(t, seen, 1)
	require.Equal(t, uint64(1), seen[addrA].Info.Nonce)
	require.Equal(t, word(8), seen[addrA].Storage[slot0])
	require.Equal(t, word(6), seen[addrA].Storage[slot1])
}

func TestViewDestroyedAccount(t *testing.T) {
	base := ledger.NewMemoryDB()
	base.SetStorage(addrA, slot0, word(5))

	cs := NewChangeSet()
	cs.Account(addrA).Destroyed = true
	b := New()
	require.NoError(t, b.Apply(cs, base))

	view := NewView(base, b)
	info, err := view.Basic(addrA)
	require.NoError(t, err)
	require.Nil(t, info)
	val, err := view.Storage(addrA, slot0)
	require.NoError(t, err)
	require.Equal(t, common.Hash{}, val)
}

// deployedBundle builds a bundle where a contract is deployed at src with
// code and later written to, as a replay would produce.
func deployedBundle(t *testing.T, src common.Address, code []byte) *BundleState {
	t.Helper()
	base := ledger.NewMemoryDB()
	b := New()

	cs := NewChangeSet()
	change := cs.Account(src)
	change.Info = ledger.NewAccountInfo(nil, 1)
	change.Info.CodeHash = crypto.Keccak256Hash(code)
	change.Code = code
	change.Storage[slot0] = word(1)
	require.NoError(t, b.Apply(cs, base))

	require.NoError(t, b.Apply(storageChange(addrC, 3, nil), base))
	return b
}

func TestRelocateKeepsAccountCount(t *testing.T) {
	b := deployedBundle(t, addrA, []byte{0x60, 0x00})
	canonical := common.HexToAddress("0x1008")

	out, err := Relocate(b, AddressMap{addrA: canonical})
	require.NoError(t, err)
	require.Equal(t, b.Len(), out.Len())
	require.NotContains(t, out.Accounts, addrA)
	require.Contains(t, out.Accounts, canonical)
	require.Contains(t, out.Accounts, addrC, "accounts that were never remapped keep their key")
	require.Equal(t, word(1), out.Accounts[canonical].Storage[slot0].Present)

	// The input bundle is left alone.
	require.Contains(t, b.Accounts, addrA)
}

func TestRelocateRejectsBadMaps(t *testing.T) {
	b := deployedBundle(t, addrA, []byte{0x60, 0x00})
	require.NoError(t, b.Apply(storageChange(addrB, 1, nil), ledger.NewMemoryDB()))

	_, err := Relocate(b, AddressMap{addrA: common.HexToAddress("0x01"), addrB: common.HexToAddress("0x01")})
	require.ErrorIs(t, err, ErrRemapCollision)

	_, err = Relocate(b, AddressMap{common.HexToAddress("0xdead"): common.HexToAddress("0x01")})
	require.ErrorIs(t, err, ErrRemapSource)
}

func TestRelocateMergeByTransition(t *testing.T) {
	code := []byte{0x60, 0x00}
	canonical := common.HexToAddress("0x2010")
	base := ledger.NewMemoryDB()

	// Deployment at addrA writes slot0 and slot1, then a later call writes
	// slot1 on the canonical address directly.
	b := New()
	cs := NewChangeSet()
	change := cs.Account(addrA)
	change.Info = ledger.NewAccountInfo(nil, 1)
	change.Info.CodeHash = crypto.Keccak256Hash(code)
	change.Code = code
	change.Storage[slot0] = word(1)
	change.Storage[slot1] = word(1)
	require.NoError(t, b.Apply(cs, base))
	require.NoError(t, b.Apply(storageChange(canonical, 0, map[common.Hash]common.Hash{slot1: word(2)}), base))

	// Relocation is repeated so both map traversal orders get a chance to show up.
	for i := 0; i < 16; i++ {
		out, err := Relocate(b, AddressMap{addrA: canonical})
		require.NoError(t, err)
		require.Equal(t, 1, out.Len(), spew.Sdump(out.Accounts))

		acct := out.Accounts[canonical]
		require.True(t, acct.Info.HasCode(), "info with code wins")
		require.Equal(t, word(1), acct.Storage[slot0].Present)
		require.Equal(t, word(2), acct.Storage[slot1].Present, "the later transition wins")
	}
}

func TestRelocateMergeDisjointKeys(t *testing.T) {
	canonical := common.HexToAddress("0x2010")
	base := ledger.NewMemoryDB()

	first := New()
	require.NoError(t, first.Apply(storageChange(addrA, 1, map[common.Hash]common.Hash{slot0: word(1)}), base))
	require.NoError(t, first.Apply(storageChange(canonical, 1, map[common.Hash]common.Hash{slot1: word(2)}), base))

	second := New()
	require.NoError(t, second.Apply(storageChange(canonical, 1, map[common.Hash]common.Hash{slot1: word(2)}), base))
	require.NoError(t, second.Apply(storageChange(addrA, 1, map[common.Hash]common.Hash{slot0: word(1)}), base))

	a, err := Finalize(first, nil, FinalizeOptions{Remap: AddressMap{addrA: canonical}})
	require.NoError(t, err)
	b, err := Finalize(second, nil, FinalizeOptions{Remap: AddressMap{addrA: canonical}})
	require.NoError(t, err)
	require.Equal(t, a.Accounts[canonical].Storage, b.Accounts[canonical].Storage)
	require.Equal(t, map[common.Hash]common.Hash{slot0: word(1), slot1: word(2)}, a.Accounts[canonical].Storage)
}

func TestFinalize(t *testing.T) {
	code := []byte{0x60, 0x00, 0x00}
	deployer := common.HexToAddress("0x0")
	b := deployedBundle(t, addrA, code)
	require.NoError(t, b.Apply(storageChange(deployer, 2, nil), ledger.NewMemoryDB()))

	alloc, err := Finalize(b, nil, FinalizeOptions{
		Scratch: []common.Address{deployer},
		Remap:   AddressMap{addrA: common.HexToAddress("0x1008")},
	})
	require.NoError(t, err)
	require.NotContains(t, alloc.Accounts, deployer)
	require.Len(t, alloc.Accounts, 2)
	require.Equal(t, code, alloc.Code(common.HexToAddress("0x1008")))
	require.Nil(t, alloc.Code(addrC))
	require.Len(t, alloc.Codes, 1)

	_, err = Finalize(b, nil, FinalizeOptions{
		Scratch: []common.Address{deployer},
		Remap:   AddressMap{deployer: addrB},
	})
	require.Error(t, err)
}

func TestFinalizeMissingCode(t *testing.T) {
	cs := NewChangeSet()
	change := cs.Account(addrA)
	change.Info = ledger.NewAccountInfo(nil, 1)
	change.Info.CodeHash = common.HexToHash("0x1234")

	b := New()
	require.NoError(t, b.Apply(cs, ledger.NewMemoryDB()))
	_, err := Finalize(b, ledger.NewMemoryDB(), FinalizeOptions{})
	require.ErrorIs(t, err, ledger.ErrCodeNotFound)
}

func TestFromAllocation(t *testing.T) {
	b := deployedBundle(t, addrA, []byte{0x60, 0x01})
	alloc, err := Finalize(b, nil, FinalizeOptions{})
	require.NoError(t, err)

	base := ledger.NewMemoryDB()
	base.SetStorage(addrA, slot1, word(4))
	view := NewView(base, FromAllocation(alloc))

	val, err := view.Storage(addrA, slot0)
	require.NoError(t, err)
	require.Equal(t, word(1), val)
	val, err = view.Storage(addrA, slot1)
	require.NoError(t, err)
	require.Equal(t, common.Hash{}, val, "the allocation replaces the account wholesale")

	code, err := view.CodeByHash(alloc.Accounts[addrA].Info.CodeHash)
	require.NoError(t, err)
	require.Equal(t, []byte{0x60, 0x01}, code)
}
