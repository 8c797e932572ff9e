package types

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	keyHash   = Hash(bytes.Repeat([]byte{0x11}, KeyHashSize))
	stakeHash = Hash(bytes.Repeat([]byte{0x22}, KeyHashSize))
	policy    = Hash(bytes.Repeat([]byte{0xab}, KeyHashSize))
)

func TestParseUtxoRef(t *testing.T) {
	s := strings.Repeat("aa", 32) + "#7"
	ref, err := ParseUtxoRef(s)
	require.Nil(t, err)
	assert.Equal(t, uint32(7), ref.Index)
	assert.Equal(t, s, ref.String())

	_, err = ParseUtxoRef("aa#1")
	assert.NotNil(t, err)
	_, err = ParseUtxoRef(strings.Repeat("aa", 32))
	assert.NotNil(t, err)
}

func TestUtxoRefBytes(t *testing.T) {
	ref, err := NewUtxoRef(strings.Repeat("01", 32), 258)
	require.Nil(t, err)
	b := ref.Bytes()
	assert.Len(t, b, 36)
	assert.Equal(t, []byte{0, 0, 1, 2}, b[32:])
}

func TestUtxoJSON(t *testing.T) {
	ref, _ := NewUtxoRef(strings.Repeat("cd", 32), 1)
	u := Utxo{
		UtxoRef: ref,
		Address: "addr_test1xyz",
		Assets:  Assets{Lovelace: 5, NewAssetIDText(policy, "CONFIG"): 1},
		Datum:   Hash{0xd8, 0x79, 0x80},
	}
	data, err := json.Marshal(u)
	require.Nil(t, err)
	assert.Contains(t, string(data), `"tx_hash":"`+strings.Repeat("cd", 32)+`"`)
	assert.Contains(t, string(data), `"datum":"d87980"`)

	var back Utxo
	require.Nil(t, json.Unmarshal(data, &back))
	assert.True(t, back.UtxoRef.Equal(ref))
	assert.Equal(t, u.Assets, back.Assets)
}

func TestAssets(t *testing.T) {
	beacon := NewAssetIDText(policy, "vault")
	a := Assets{Lovelace: 2_000_000, beacon: 1}
	b := Assets{Lovelace: 1_000_000}

	sum := a.Add(b)
	assert.Equal(t, uint64(3_000_000), sum.Lovelace())
	assert.Equal(t, uint64(2_000_000), a.Lovelace(), "Add must not mutate")
	assert.True(t, sum.HasTokens())
	assert.False(t, b.HasTokens())
	assert.Equal(t, Assets{beacon: 1}, sum.Tokens())
	assert.Equal(t, policy, beacon.PolicyID())
	assert.Equal(t, []byte("vault"), beacon.AssetName())
	assert.Equal(t, Assets{beacon: 1}, sum.ByPolicy(policy))
	assert.Equal(t, []AssetID{beacon, Lovelace}, sum.IDs())
	assert.Equal(t, uint64(0), sum.WithLovelace(0).Lovelace())
}

func TestMintSplit(t *testing.T) {
	other := Hash(bytes.Repeat([]byte{0x01}, KeyHashSize))
	m := Mint{NewAssetIDText(policy, "a"): 2, NewAssetIDText(other, "b"): -1}

	minted, burned := m.Split()
	assert.Equal(t, uint64(2), minted[NewAssetIDText(policy, "a")])
	assert.Equal(t, uint64(1), burned[NewAssetIDText(other, "b")])
	assert.Equal(t, []string{other.String(), policy.String()}, m.Policies())
}

func TestParseAssetID(t *testing.T) {
	id, err := ParseAssetID(policy.String() + "434f4e464947")
	require.Nil(t, err)
	assert.Equal(t, []byte("CONFIG"), id.AssetName())

	_, err = ParseAssetID("abc")
	assert.NotNil(t, err)
	lv, err := ParseAssetID("lovelace")
	require.Nil(t, err)
	assert.True(t, lv.IsLovelace())
}

func TestAddressRoundTrip(t *testing.T) {
	stake := KeyCredential(stakeHash)
	addr, err := NewAddress(Preprod, ScriptCredential(keyHash), &stake)
	require.Nil(t, err)
	assert.True(t, strings.HasPrefix(string(addr), "addr_test1"))

	pay, err := addr.PaymentCredential()
	require.Nil(t, err)
	assert.True(t, pay.Script)
	assert.Equal(t, keyHash, pay.Hash)

	sc, err := addr.StakeCredential()
	require.Nil(t, err)
	require.NotNil(t, sc)
	assert.False(t, sc.Script)
	assert.Equal(t, stakeHash, sc.Hash)

	raw, err := addr.Bytes()
	require.Nil(t, err)
	assert.Equal(t, byte(0x10), raw[0])
	assert.Len(t, raw, 57)
}

func TestEnterpriseAndRewardAddress(t *testing.T) {
	ent, err := NewAddress(Mainnet, KeyCredential(keyHash), nil)
	require.Nil(t, err)
	assert.True(t, strings.HasPrefix(string(ent), "addr1"))
	sc, err := ent.StakeCredential()
	require.Nil(t, err)
	assert.Nil(t, sc)

	rwd, err := NewRewardAddress(Preprod, ScriptCredential(stakeHash))
	require.Nil(t, err)
	assert.True(t, strings.HasPrefix(string(rwd), "stake_test1"))
	assert.True(t, rwd.IsReward())
	raw, err := rwd.Bytes()
	require.Nil(t, err)
	assert.Equal(t, byte(0xf0), raw[0])
}

func TestNativeScriptEncoding(t *testing.T) {
	s, err := RequireSignature(keyHash).Script()
	require.Nil(t, err)
	expected := "8201818200581c" + keyHash.String()
	assert.Equal(t, expected, hex.EncodeToString(s.Bytes))
	assert.Len(t, s.Hash(), KeyHashSize)
}

func TestScriptRefRoundTrip(t *testing.T) {
	s := Script{Type: ScriptPlutusV3, Bytes: Hash{0x46, 0x01, 0x00, 0x00, 0x22, 0x26, 0x01}}
	ref, err := s.ScriptRef()
	require.Nil(t, err)

	back, err := ScriptFromRef(ref)
	require.Nil(t, err)
	assert.Equal(t, s, *back)
	assert.Equal(t, Blake2b224([]byte{3}, s.Bytes), s.Hash())
}
