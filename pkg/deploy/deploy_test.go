package deploy

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	d, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Nil(t, err)
	assert.False(t, d.Deployed())
	assert.Nil(t, d.SettingsUtxo)
}

func TestSaveAndLoad(t *testing.T) {
	policy := types.Hash(bytes.Repeat([]byte{7}, types.KeyHashSize))
	ref, err := types.NewUtxoRef(strings.Repeat("ab", 32), 2)
	require.Nil(t, err)
	beacon := types.NewAssetIDText(policy, "settings")
	script := &types.Script{Type: types.ScriptPlutusV3, Bytes: types.Hash{0x46, 0x01, 0x00}}

	d := &Deployment{
		Network:            types.Preprod,
		AdminKeyHash:       policy,
		RefscriptsPolicyID: policy,
		ReferenceUtxos: &ReferenceUtxos{
			Settings: types.Utxo{
				UtxoRef:   ref,
				Address:   "addr_test1settings",
				Assets:    types.Assets{types.Lovelace: 12_000_000, beacon: 1},
				Datum:     types.Hash{0xd8, 0x79, 0x80},
				ScriptRef: script,
			},
		},
		BeaconTokens: BeaconTokens{Settings: beacon},
	}
	path := filepath.Join(t.TempDir(), "data", "deployed-preprod.json")
	require.Nil(t, d.Save(path))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	got, err := Load(path)
	require.Nil(t, err)
	require.True(t, got.Deployed())
	assert.Equal(t, types.Preprod, got.Network)
	assert.Equal(t, policy, got.RefscriptsPolicyID)
	s := got.ReferenceUtxos.Settings
	assert.True(t, s.Equal(ref))
	assert.Equal(t, uint64(1), s.Assets.Quantity(beacon))
	assert.Equal(t, types.Hash{0xd8, 0x79, 0x80}, s.Datum)
	require.NotNil(t, s.ScriptRef)
	assert.Equal(t, script.Hash(), s.ScriptRef.Hash())
	assert.Equal(t, beacon, got.BeaconTokens.Settings)
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deployed.json")
	require.Nil(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := Load(path)
	assert.NotNil(t, err)
}

func TestBeaconOrder(t *testing.T) {
	b := BeaconTokens{Refscripts: "r", Settings: "s", Vault: "v", Protocol: "p"}
	assert.Equal(t, []types.AssetID{"r", "s", "v", "p"}, b.All())
}
