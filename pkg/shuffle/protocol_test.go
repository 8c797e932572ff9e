package shuffle

import (
	"strings"
	"testing"

	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/havocworlds/shuffle/go-offchain/pkg/deploy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProtocol(t *testing.T) {
	admin := hashOf(0xad)
	p, err := NewProtocol(types.Preprod, testBlueprint(t), admin, "", refTokensHex)
	require.Nil(t, err)

	for _, addr := range []types.Address{p.RefscriptsAddr, p.SettingsAddr, p.VaultAddr, p.ProtocolAddr} {
		stake, err := addr.StakeCredential()
		require.Nil(t, err)
		require.NotNil(t, stake)
		assert.Equal(t, admin, stake.Hash)
	}
	pay, err := p.VaultAddr.PaymentCredential()
	require.Nil(t, err)
	assert.True(t, pay.Script)
	assert.Equal(t, p.Scripts.Vault.Hash(), pay.Hash)
	assert.True(t, p.RefscriptsRewardAddr.IsReward())

	refscripts := p.Scripts.Refscripts.Hash()
	assert.Equal(t, types.NewAssetIDText(refscripts, "vault"), p.Beacons.Vault)
	assert.Equal(t, refscripts, p.Beacons.Protocol.PolicyID())
	assert.Equal(t, types.NewAssetIDText(p.Scripts.Settings.Hash(), "CONFIG"), p.SettingsBeacon)

	require.NotNil(t, p.S2Script)
	assert.Equal(t, p.S2Script.Hash(), p.S2Policy)
	assert.Equal(t, types.ScriptNative, p.S2Script.Type)

	ref := string(p.RefToken("A"))
	assert.True(t, strings.HasPrefix(ref, p.S2Policy.String()+types.PrefixRefToken))
	assert.True(t, strings.HasSuffix(string(p.UserToken("A")), types.PrefixUserToken+"41"))

	d := &deploy.Deployment{}
	p.Describe(d)
	assert.Equal(t, p.VaultAddr, d.VaultScriptAddr)
	assert.Equal(t, p.Beacons, d.BeaconTokens)
	assert.Equal(t, types.Preprod, d.Network)
}

func TestNewProtocolExternalS2(t *testing.T) {
	s2 := strings.Repeat("ab", types.KeyHashSize)
	p, err := NewProtocol(types.Mainnet, testBlueprint(t), hashOf(1), s2, refTokensHex)
	require.Nil(t, err)
	assert.Nil(t, p.S2Script)
	assert.Equal(t, s2, p.S2Policy.String())
	assert.True(t, strings.HasPrefix(string(p.VaultAddr), "addr1"))
}

func TestNewProtocolRejectsBadInput(t *testing.T) {
	bp := testBlueprint(t)
	_, err := NewProtocol(types.Preprod, bp, hashOf(1)[:4], "", refTokensHex)
	assert.ErrorContains(t, err, "admin key hash")

	_, err = NewProtocol(types.Preprod, bp, hashOf(1), "abcd", refTokensHex)
	assert.ErrorContains(t, err, "s2 policy id")

	_, err = NewProtocol(types.Preprod, bp, hashOf(1), "", "")
	assert.ErrorContains(t, err, "reftokens script hash")

	_, err = NewProtocol(types.Preprod, &Blueprint{}, hashOf(1), "", refTokensHex)
	assert.ErrorContains(t, err, "not in blueprint")
}
