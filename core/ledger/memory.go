package ledger

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// MemoryDB is an in-memory ledger. It is populated before a replay starts
// and only read afterwards.
type MemoryDB struct {
	accounts    map[common.Address]*AccountInfo
	storage     map[common.Address]map[common.Hash]common.Hash
	codes       map[common.Hash][]byte
	blockHashes map[uint64]common.Hash
}

// NewMemoryDB returns an empty ledger.
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		accounts:    make(map[common.Address]*AccountInfo),
		storage:     make(map[common.Address]map[common.Hash]common.Hash),
		codes:       make(map[common.Hash][]byte),
		blockHashes: make(map[uint64]common.Hash),
	}
}

// InsertAccount stores (or replaces) the account info for addr.
func (db *MemoryDB) InsertAccount(addr common.Address, info *AccountInfo) {
	db.accounts[addr] = info.Copy()
}

// InsertCode adds code to the code table and returns its hash.
func (db *MemoryDB) InsertCode(code []byte) common.Hash {
	if len(code) == 0 {
		return types.EmptyCodeHash
	}
	hash := crypto.Keccak256Hash(code)
	db.codes[hash] = common.CopyBytes(code)
	return hash
}

// InsertContract stores an account carrying code, registering the code too.
func (db *MemoryDB) InsertContract(addr common.Address, info *AccountInfo, code []byte) {
	acct := info.Copy()
	acct.CodeHash = db.InsertCode(code)
	db.accounts[addr] = acct
}

// SetStorage writes a storage slot, creating an empty account if needed.
func (db *MemoryDB) SetStorage(addr common.Address, key, value common.Hash) {
	if _, ok := db.accounts[addr]; !ok {
		db.accounts[addr] = NewAccountInfo(nil, 0)
	}
	slots, ok := db.storage[addr]
	if !ok {
		slots = make(map[common.Hash]common.Hash)
		db.storage[addr] = slots
	}
	slots[key] = value
}

// SetBlockHash records a real hash for number.
func (db *MemoryDB) SetBlockHash(number uint64, hash common.Hash) {
	db.blockHashes[number] = hash
}

// Basic implements Reader.
func (db *MemoryDB) Basic(addr common.Address) (*AccountInfo, error) {
	info, ok := db.accounts[addr]
	if !ok {
		return nil, nil
	}
	return info.Copy(), nil
}

// CodeByHash implements Reader. Stored bytes are re-hashed so a corrupted
// code table is reported instead of served.
func (db *MemoryDB) CodeByHash(hash common.Hash) ([]byte, error) {
	if hash == types.EmptyCodeHash || hash == (common.Hash{}) {
		return nil, nil
	}
	code, ok := db.codes[hash]
	if !ok {
		return nil, fmt.Errorf("%w: %x", ErrCodeNotFound, hash)
	}
	if got := crypto.Keccak256Hash(code); got != hash {
		return nil, &BackendError{Op: "code", Err: fmt.Errorf("code table entry %x hashes to %x", hash, got)}
	}
	return common.CopyBytes(code), nil
}

// Storage implements Reader.
func (db *MemoryDB) Storage(addr common.Address, key common.Hash) (common.Hash, error) {
	return db.storage[addr][key], nil
}

// BlockHash implements Reader.
func (db *MemoryDB) BlockHash(number uint64) (common.Hash, error) {
	if hash, ok := db.blockHashes[number]; ok {
		return hash, nil
	}
	return PlaceholderBlockHash(number), nil
}

// ForEachAccount implements Iterator. Accounts are visited in address order.
func (db *MemoryDB) ForEachAccount(fn func(addr common.Address, acct *PlainAccount) error) error {
	addrs := make([]common.Address, 0, len(db.accounts))
	for addr := range db.accounts {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return bytes.Compare(addrs[i][:], addrs[j][:]) < 0 })

	for _, addr := range addrs {
		acct := &PlainAccount{
			Info:    db.accounts[addr].Copy(),
			Storage: make(map[common.Hash]common.Hash, len(db.storage[addr])),
		}
		for k, v := range db.storage[addr] {
			acct.Storage[k] = v
		}
		if err := fn(addr, acct); err != nil {
			return err
		}
	}
	return nil
}

