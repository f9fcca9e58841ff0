package genesis

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestDefaultLayout(t *testing.T) {
	l := DefaultLayout()
	require.NoError(t, l.Validate())
	require.Len(t, l.Contracts, 22)

	m := l.AddressMap()
	require.Len(t, m, 22)
	require.NoError(t, m.Validate())

	// Position k is created with counter DeployerNonce+k.
	require.Equal(t, crypto.CreateAddress(common.Address{}, 1), l.DeploymentAddress(0))
	require.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000000ff"), m[l.DeploymentAddress(0)])

	addr, err := l.FinalAddress(GenesisContract)
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0x0000000000000000000000000000000000001008"), addr)

	last := len(l.Contracts) - 1
	addr, err = l.FinalAddress("Bytes")
	require.NoError(t, err)
	require.Equal(t, l.DeploymentAddress(last), addr, "contracts without a canonical address stay put")

	_, err = l.FinalAddress("Missing")
	require.Error(t, err)
}

func TestLayoutValidate(t *testing.T) {
	for name, mutate := range map[string]func(l *Layout){
		"empty":           func(l *Layout) { l.Contracts = nil },
		"unnamed":         func(l *Layout) { l.Contracts[0].Name = "" },
		"duplicate name":  func(l *Layout) { l.Contracts[1].Name = l.Contracts[0].Name },
		"shared target":   func(l *Layout) { l.Contracts[3].Canonical = l.Contracts[2].Canonical },
		"deployer target": func(l *Layout) { l.Deployer = l.Contracts[2].Canonical },
		"late dependency": func(l *Layout) { l.Contracts[0].DependsOn = []string{GenesisContract} },
		"self dependency": func(l *Layout) { l.Contracts[1].DependsOn = []string{GenesisContract} },
		"caller target":   func(l *Layout) { l.SystemCaller = l.Contracts[4].Canonical },
		"caller deployed": func(l *Layout) { l.SystemCaller = l.DeploymentAddress(0) },
	} {
		t.Run(name, func(t *testing.T) {
			l := testLayout()
			mutate(l)
			require.ErrorIs(t, l.Validate(), errInvalidLayout)
		})
	}
}

func TestLayoutRejectsSystemCallerContract(t *testing.T) {
	system := canonical("0x00000000000000000000000000000000000000ff")
	l := &Layout{
		DeployerNonce: 1,
		SystemCaller:  system,
		Contracts: []ContractSpec{
			{Name: "System", Canonical: system},
			{Name: GenesisContract, Canonical: genesisAddr},
		},
	}
	err := l.Validate()
	require.ErrorIs(t, err, errInvalidLayout)
	require.ErrorContains(t, err, "System canonical address is the system caller")

	_, err = NewSequencer(l)
	require.ErrorIs(t, err, errInvalidLayout)
}

const testLayoutTOML = `Deployer = "0x0000000000000000000000000000000000000000"
DeployerNonce = 1
SystemCaller = "0x0000000000000000000000000000000000000000"

[[Contracts]]
Name = "Store"

[[Contracts]]
Name = "Genesis"
Canonical = "0x0000000000000000000000000000000000001008"
DependsOn = ["Store"]
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadLayout(t *testing.T) {
	l, err := LoadLayout(writeFile(t, "layout.toml", testLayoutTOML))
	require.NoError(t, err)
	require.Equal(t, uint64(1), l.DeployerNonce)
	require.Len(t, l.Contracts, 2)
	require.False(t, l.Contracts[0].Remapped())
	require.Equal(t, genesisAddr, l.Contracts[1].Canonical)
	require.Equal(t, []string{"Store"}, l.Contracts[1].DependsOn)

	_, err = LoadLayout(writeFile(t, "bad.toml", testLayoutTOML+"Bogus = 1\n"))
	require.Error(t, err)

	_, err = LoadLayout(writeFile(t, "order.toml", `DeployerNonce = 1
[[Contracts]]
Name = "Genesis"
DependsOn = ["Store"]
[[Contracts]]
Name = "Store"
`))
	require.ErrorIs(t, err, errInvalidLayout)
}

func TestEncodeTOMLLoadsBack(t *testing.T) {
	want := DefaultLayout()
	data, err := want.EncodeTOML()
	require.NoError(t, err)

	got, err := LoadLayout(writeFile(t, "default.toml", string(data)))
	require.NoError(t, err)
	require.Equal(t, want.AddressMap(), got.AddressMap())
	require.Len(t, got.Contracts, len(want.Contracts))
	for i := range want.Contracts {
		require.Equal(t, want.Contracts[i].Name, got.Contracts[i].Name)
		require.Equal(t, want.Contracts[i].Canonical, got.Contracts[i].Canonical)
		require.Equal(t, len(want.Contracts[i].DependsOn), len(got.Contracts[i].DependsOn))
	}
}
