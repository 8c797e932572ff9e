package shuffle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const appliedBlueprint = `{
  "preamble": {"title": "havoc/shuffle", "version": "0.0.0", "plutusVersion": "v3"},
  "validators": [
    {"title": "vault.vault.spend", "compiledCode": "4d01000033222220051200120011"},
    {"title": "settings.settings.spend", "compiledCode": "4d01000033222220051200120011", "hash": "00000000000000000000000000000000000000000000000000000000"},
    {"title": "protocol.protocol.spend", "compiledCode": "4d01", "parameters": [{"title": "admin_pkh"}]},
    {"title": "refscripts.refscripts.spend", "compiledCode": "zz"}
  ]
}`

func TestBlueprintScript(t *testing.T) {
	bp, err := ParseBlueprint([]byte(appliedBlueprint))
	require.Nil(t, err)

	s, err := bp.Script(VaultValidator)
	require.Nil(t, err)
	assert.Equal(t, types.ScriptPlutusV3, s.Type)
	assert.Len(t, s.Hash(), types.KeyHashSize)

	_, err = bp.Script(SettingsValidator)
	assert.ErrorContains(t, err, "blueprint says")

	_, err = bp.Script(ProtocolValidator)
	assert.ErrorContains(t, err, "still expects 1 parameters")

	_, err = bp.Script(RefscriptsValidator)
	assert.ErrorContains(t, err, "compiled code")

	_, err = bp.Script("missing.missing.spend")
	assert.ErrorContains(t, err, "not in blueprint")
}

func TestParseBlueprintRejectsOldPlutus(t *testing.T) {
	_, err := ParseBlueprint([]byte(`{"preamble": {"plutusVersion": "v2"}, "validators": []}`))
	assert.ErrorContains(t, err, "only v3")
	_, err = ParseBlueprint([]byte(`[`))
	assert.NotNil(t, err)
}

func TestLoadBlueprint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plutus.json")
	require.Nil(t, os.WriteFile(path, []byte(appliedBlueprint), 0o600))
	bp, err := LoadBlueprint(path)
	require.Nil(t, err)
	assert.Len(t, bp.Validators, 4)

	_, err = LoadBlueprint(filepath.Join(t.TempDir(), "missing.json"))
	assert.NotNil(t, err)
}

func TestBlueprintSizes(t *testing.T) {
	bp, err := ParseBlueprint([]byte(`{"validators": [
		{"title": "vault.vault.spend", "compiledCode": "4d01000033222220051200120011"},
		{"title": "protocol.protocol.spend", "compiledCode": "4d01", "parameters": [{"title": "admin_pkh"}]}
	]}`))
	require.Nil(t, err)
	sizes, err := bp.Sizes()
	require.Nil(t, err)
	assert.Equal(t, []ScriptSize{{VaultValidator, 14}, {ProtocolValidator, 2}}, sizes)

	bp, err = ParseBlueprint([]byte(appliedBlueprint))
	require.Nil(t, err)
	_, err = bp.Sizes()
	assert.ErrorContains(t, err, RefscriptsValidator)
}
