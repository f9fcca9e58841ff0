package vm

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/gravity-chain/gravity-genesis/core/bundle"
	"github.com/gravity-chain/gravity-genesis/core/ledger"
	"github.com/gravity-chain/gravity-genesis/internal/evmtest"
)

var deployer = common.Address{}

func newTestDB() *ledger.MemoryDB {
	db := ledger.NewMemoryDB()
	db.InsertAccount(deployer, ledger.NewAccountInfo(uint256.NewInt(1e18), 1))
	return db
}

func newTestExecutor(t *testing.T) Executor {
	t.Helper()
	exec, err := NewExecutor(DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, EngineGoEVM, exec.Engine())
	return exec
}

func TestGoExecutorDeployAndCall(t *testing.T) {
	exec := newTestExecutor(t)
	db := newTestDB()
	b := bundle.New()

	res, diff, err := exec.Transact(bundle.NewView(db, b), NewDeployment(deployer, evmtest.Constructor(evmtest.StorageRuntime), nil))
	require.NoError(t, err)
	require.Equal(t, Success, res.Outcome)
	require.NotZero(t, res.GasUsed)

	contract := crypto.CreateAddress(deployer, 1)
	require.NotNil(t, res.ContractAddress)
	require.Equal(t, contract, *res.ContractAddress)

	require.Contains(t, diff.Accounts, contract)
	require.Equal(t, evmtest.StorageRuntime, diff.Accounts[contract].Code)
	require.Equal(t, crypto.Keccak256Hash(evmtest.StorageRuntime), diff.Accounts[contract].Info.CodeHash)
	require.Equal(t, uint64(2), diff.Accounts[deployer].Info.Nonce)
	require.NoError(t, b.Apply(diff, db))

	// Write 42 into slot 0, then read it back through a fresh view.
	res, diff, err = exec.Transact(bundle.NewView(db, b), NewCall(deployer, contract, evmtest.Word(42)))
	require.NoError(t, err)
	require.Equal(t, Success, res.Outcome)
	require.Equal(t, common.BytesToHash(evmtest.Word(42)), diff.Accounts[contract].Storage[common.Hash{}])
	require.Nil(t, diff.Accounts[contract].Code, "code did not change")
	require.NoError(t, b.Apply(diff, db))

	res, _, err = exec.Transact(bundle.NewView(db, b), NewCall(deployer, contract, nil))
	require.NoError(t, err)
	require.Equal(t, evmtest.Word(42), res.Output)

	// The ledger itself never sees the writes.
	info, err := db.Basic(deployer)
	require.NoError(t, err)
	require.Equal(t, uint64(1), info.Nonce)
}

func TestGoExecutorRevert(t *testing.T) {
	exec := newTestExecutor(t)
	db := newTestDB()
	selector := [4]byte{0x11, 0x6c, 0x64, 0xa8}

	res, diff, err := exec.Transact(bundle.NewView(db, nil), NewDeployment(deployer, evmtest.RevertWith(selector), nil))
	require.NoError(t, err)
	require.Equal(t, Revert, res.Outcome)
	require.Equal(t, selector[:], res.Output)
	require.Nil(t, res.ContractAddress)

	// The failed deployment still consumed the deployer's nonce.
	require.Equal(t, uint64(2), diff.Accounts[deployer].Info.Nonce)
	require.NotContains(t, diff.Accounts, crypto.CreateAddress(deployer, 1))
}

func TestGoExecutorHalt(t *testing.T) {
	exec := newTestExecutor(t)
	db := newTestDB()
	target := common.HexToAddress("0xbad")
	db.InsertContract(target, ledger.NewAccountInfo(nil, 1), evmtest.InvalidRuntime)

	res, _, err := exec.Transact(db, NewCall(deployer, target, nil))
	require.NoError(t, err)
	require.Equal(t, Halt, res.Outcome)
	require.NotEmpty(t, res.HaltReason)
}

func TestGoExecutorVMError(t *testing.T) {
	exec := newTestExecutor(t)
	db := newTestDB()
	msg := NewCall(deployer, common.HexToAddress("0x1234"), nil)
	msg.Value = new(uint256.Int).Mul(uint256.NewInt(1e18), uint256.NewInt(10))

	_, _, err := exec.Transact(db, msg)
	require.Error(t, err, "transferring more than the balance is rejected before execution")
}

func TestGoExecutorMissingCode(t *testing.T) {
	exec := newTestExecutor(t)
	db := newTestDB()
	info := ledger.NewAccountInfo(nil, 1)
	info.CodeHash = common.HexToHash("0x1234")
	db.InsertAccount(common.HexToAddress("0xc0de"), info)

	_, _, err := exec.Transact(db, NewCall(deployer, common.HexToAddress("0xc0de"), nil))
	require.ErrorIs(t, err, ledger.ErrCodeNotFound)
}

func TestUnknownEngine(t *testing.T) {
	_, err := NewExecutor(Config{Engine: "revm"})
	require.Error(t, err)
}

func TestMessageGas(t *testing.T) {
	msg := NewCall(deployer, common.HexToAddress("0x01"), []byte{1, 2, 3, 4, 5})
	require.Equal(t, ^uint64(0), msg.Gas())
	require.Equal(t, []byte{1, 2, 3, 4}, msg.Selector())
	msg.GasLimit = 21000
	require.Equal(t, uint64(21000), msg.Gas())

	deploy := NewDeployment(deployer, []byte{0x60}, []byte{0x01})
	require.True(t, deploy.IsDeployment())
	require.Nil(t, deploy.Selector())
	require.Equal(t, []byte{0x60, 0x01}, deploy.Data)
}

func TestForkChainConfig(t *testing.T) {
	fork, err := ParseFork("")
	require.NoError(t, err)
	require.Equal(t, DefaultFork, fork)

	fork, err = ParseFork("Prague")
	require.NoError(t, err)
	cfg := fork.ChainConfig(nil)
	require.True(t, cfg.IsPrague(common.Big0, 0))
	require.True(t, cfg.IsCancun(common.Big0, 0))

	cfg = London.ChainConfig(nil)
	require.True(t, cfg.IsLondon(common.Big0))
	require.False(t, cfg.IsShanghai(common.Big0, 0))

	_, err = ParseFork("osaka")
	require.Error(t, err)
}
