package selection

import (
	"bytes"
	"strings"
	"testing"

	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/lightningnetwork/lnd/fn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	policy    = types.Hash(bytes.Repeat([]byte{0xab}, types.KeyHashSize))
	refscript = types.NewAssetIDText(policy, "refscripts")
	settings  = types.NewAssetIDText(policy, "settings")
	vault     = types.NewAssetIDText(policy, "vault")
)

func mkUtxo(t *testing.T, hexByte string, idx uint32, assets types.Assets) types.Utxo {
	r, err := types.NewUtxoRef(strings.Repeat(hexByte, 32), idx)
	require.Nil(t, err)
	return types.Utxo{UtxoRef: r, Assets: assets}
}

func TestSelectDeployUtxosCoverage(t *testing.T) {
	pool := []types.Utxo{
		mkUtxo(t, "01", 0, types.Assets{types.Lovelace: 2_000_000}),
		mkUtxo(t, "02", 0, types.Assets{types.Lovelace: 2_000_000, vault: 1}),
		mkUtxo(t, "03", 0, types.Assets{types.Lovelace: 2_000_000, refscript: 1, settings: 1}),
		mkUtxo(t, "04", 0, types.Assets{types.Lovelace: 2_000_000, settings: 1}),
	}
	sel := SelectDeployUtxos(pool, []types.AssetID{refscript, settings, vault}, fn.None[types.UtxoRef](), 0)
	require.Nil(t, sel.Err())

	// one utxo per wanted asset; the utxo claimed for refscripts cannot be
	// claimed again for settings
	require.Len(t, sel.Selected, 3)
	assert.Equal(t, pool[2], sel.Selected[0])
	assert.Equal(t, pool[3], sel.Selected[1])
	assert.Equal(t, pool[1], sel.Selected[2])

	assert.Len(t, sel.ByPoolIndex, 3)
	assert.Equal(t, pool[3], sel.ByPoolIndex[3])
	_, ok := sel.ByPoolIndex[0]
	assert.False(t, ok)

	assert.Equal(t, pool[3], sel.Beacon(settings).UnsafeFromSome())
}

func TestSelectDeployUtxosNeverClaimsReserved(t *testing.T) {
	pool := []types.Utxo{
		mkUtxo(t, "01", 0, types.Assets{types.Lovelace: 150_000_000, vault: 1}),
		mkUtxo(t, "02", 0, types.Assets{types.Lovelace: 5_000_000, vault: 1}),
		mkUtxo(t, "03", 0, types.Assets{types.Lovelace: 40_000_000}),
	}
	reserved := pool[0].UtxoRef
	sel := SelectDeployUtxos(pool, []types.AssetID{vault}, fn.Some(reserved), DefaultFundingFloor)
	require.Nil(t, sel.Err())

	for _, u := range sel.Selected {
		assert.False(t, u.Equal(reserved))
	}
	assert.Equal(t, pool[1], sel.Selected[0])
	// floor unreachable without the reserved utxo: everything else is claimed
	assert.Len(t, sel.Selected, 2)
	assert.Equal(t, uint64(45_000_000), sel.Lovelace())
}

func TestSelectDeployUtxosFundingFloor(t *testing.T) {
	pool := []types.Utxo{
		mkUtxo(t, "01", 0, types.Assets{types.Lovelace: 60_000_000}),
		mkUtxo(t, "02", 0, types.Assets{types.Lovelace: 2_000_000, vault: 1}),
		mkUtxo(t, "03", 0, types.Assets{types.Lovelace: 50_000_000}),
		mkUtxo(t, "04", 0, types.Assets{types.Lovelace: 70_000_000}),
	}
	sel := SelectDeployUtxos(pool, []types.AssetID{vault}, fn.None[types.UtxoRef](), DefaultFundingFloor)
	require.Nil(t, sel.Err())

	// greedy in pool order until the floor is met
	require.Len(t, sel.Selected, 3)
	assert.Equal(t, pool[1], sel.Selected[0])
	assert.Equal(t, pool[0], sel.Selected[1])
	assert.Equal(t, pool[2], sel.Selected[2])
	assert.GreaterOrEqual(t, sel.Lovelace(), DefaultFundingFloor)
}

func TestSelectDeployUtxosFloorAlreadyMet(t *testing.T) {
	pool := []types.Utxo{
		mkUtxo(t, "01", 0, types.Assets{types.Lovelace: 60_000_000}),
		mkUtxo(t, "02", 0, types.Assets{types.Lovelace: 120_000_000, vault: 1}),
	}
	sel := SelectDeployUtxos(pool, []types.AssetID{vault}, fn.None[types.UtxoRef](), DefaultFundingFloor)
	assert.Len(t, sel.Selected, 1)
}

func TestSelectDeployUtxosUnfilled(t *testing.T) {
	pool := []types.Utxo{
		mkUtxo(t, "01", 0, types.Assets{types.Lovelace: 200_000_000, vault: 1}),
	}
	sel := SelectDeployUtxos(pool, []types.AssetID{vault, settings}, fn.None[types.UtxoRef](), DefaultFundingFloor)
	assert.Equal(t, []types.AssetID{settings}, sel.Unfilled)
	assert.True(t, sel.Beacon(settings).IsNone())

	var missing *BeaconNotFoundError
	require.ErrorAs(t, sel.Err(), &missing)
	assert.Equal(t, settings, missing.Asset)
}

func TestRequireByAsset(t *testing.T) {
	utxos := []types.Utxo{
		mkUtxo(t, "01", 0, types.Assets{types.Lovelace: 1}),
		mkUtxo(t, "02", 3, types.Assets{types.Lovelace: 1, settings: 1}),
	}
	u, err := RequireByAsset(utxos, settings, "settings")
	require.Nil(t, err)
	assert.Equal(t, uint32(3), u.Index)

	_, err = RequireByAsset(utxos, vault, "vault")
	var missing *BeaconNotFoundError
	require.ErrorAs(t, err, &missing)
	assert.Contains(t, err.Error(), "vault")
}
