package wallet

import (
	"context"
	"crypto/ed25519"
	"strings"
	"testing"

	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/havocworlds/shuffle/go-offchain/pkg/txbuilder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	paymentSeed = strings.Repeat("01", 32)
	stakeSeed   = strings.Repeat("02", 32)
)

type staticSource []types.Utxo

func (s staticSource) UtxosAt(_ context.Context, addr types.Address) ([]types.Utxo, error) {
	var out []types.Utxo
	for _, u := range s {
		if u.Address == addr {
			out = append(out, u)
		}
	}
	return out, nil
}

func TestFromSeedHex(t *testing.T) {
	w, err := FromSeedHex(types.Preprod, paymentSeed, stakeSeed, nil)
	require.Nil(t, err)
	assert.True(t, strings.HasPrefix(string(w.Address()), "addr_test1q"))
	assert.Len(t, w.PaymentKeyHash(), types.KeyHashSize)
	require.NotNil(t, w.StakeCredential())

	pay, err := w.Address().PaymentCredential()
	require.Nil(t, err)
	assert.Equal(t, w.PaymentKeyHash(), pay.Hash)
	stake, err := w.Address().StakeCredential()
	require.Nil(t, err)
	assert.Equal(t, w.StakeKeyHash(), stake.Hash)

	// deterministic
	again, err := FromSeedHex(types.Preprod, paymentSeed, stakeSeed, nil)
	require.Nil(t, err)
	assert.Equal(t, w.Address(), again.Address())
}

func TestEnterpriseWallet(t *testing.T) {
	w, err := FromSeedHex(types.Mainnet, paymentSeed, "", nil)
	require.Nil(t, err)
	assert.True(t, strings.HasPrefix(string(w.Address()), "addr1v"))
	assert.Nil(t, w.StakeKeyHash())
	assert.Nil(t, w.StakeCredential())
}

func TestFromSeedHexRejectsBadSeeds(t *testing.T) {
	_, err := FromSeedHex(types.Preprod, "zz", "", nil)
	assert.NotNil(t, err)
	_, err = FromSeedHex(types.Preprod, "0102", "", nil)
	assert.NotNil(t, err)
	_, err = FromSeedHex(types.Preprod, paymentSeed, "0102", nil)
	assert.NotNil(t, err)
}

func TestGenerateSeed(t *testing.T) {
	s, err := GenerateSeed()
	require.Nil(t, err)
	assert.Len(t, s, 64)
	_, err = FromSeedHex(types.Preprod, s, "", nil)
	assert.Nil(t, err)
}

func TestUtxos(t *testing.T) {
	w, err := FromSeedHex(types.Preprod, paymentSeed, "", nil)
	require.Nil(t, err)
	_, err = w.Utxos(context.Background())
	assert.NotNil(t, err)

	ref, _ := types.NewUtxoRef(strings.Repeat("aa", 32), 0)
	src := staticSource{
		{UtxoRef: ref, Address: w.Address(), Assets: types.NewLovelace(1)},
		{UtxoRef: ref, Address: "addr_test1other", Assets: types.NewLovelace(2)},
	}
	w, err = FromSeedHex(types.Preprod, paymentSeed, "", src)
	require.Nil(t, err)
	utxos, err := w.Utxos(context.Background())
	require.Nil(t, err)
	assert.Len(t, utxos, 1)
}

func TestSignTx(t *testing.T) {
	w, err := FromSeedHex(types.Preprod, paymentSeed, stakeSeed, nil)
	require.Nil(t, err)
	ref, _ := types.NewUtxoRef(strings.Repeat("aa", 32), 0)
	tx := &txbuilder.Tx{
		Inputs:          []types.Utxo{{UtxoRef: ref, Address: w.Address(), Assets: types.NewLovelace(5_000_000)}},
		Outputs:         []txbuilder.Output{{Address: w.Address(), Assets: types.NewLovelace(4_800_000)}},
		Fee:             200_000,
		RequiredSigners: []types.Hash{w.StakeKeyHash()},
		ChangeIndex:     -1,
	}
	require.Nil(t, w.SignTx(tx))
	require.Len(t, tx.VKeyWitnesses, 2)

	id, err := tx.Hash()
	require.Nil(t, err)
	for _, wit := range tx.VKeyWitnesses {
		assert.True(t, ed25519.Verify(wit.VKey, id, wit.Signature))
	}

	// signing twice does not duplicate witnesses
	require.Nil(t, w.SignTx(tx))
	assert.Len(t, tx.VKeyWitnesses, 2)
}

func TestSignTxForeignKey(t *testing.T) {
	w, err := FromSeedHex(types.Preprod, paymentSeed, "", nil)
	require.Nil(t, err)
	tx := &txbuilder.Tx{RequiredSigners: []types.Hash{types.Blake2b224([]byte("someone else"))}, ChangeIndex: -1}
	assert.NotNil(t, w.SignTx(tx))
}

func TestPartialSignTx(t *testing.T) {
	user, err := FromSeedHex(types.Preprod, paymentSeed, "", nil)
	require.Nil(t, err)
	admin, err := FromSeedHex(types.Preprod, strings.Repeat("03", 32), stakeSeed, nil)
	require.Nil(t, err)
	ref, _ := types.NewUtxoRef(strings.Repeat("bb", 32), 1)
	tx := &txbuilder.Tx{
		Inputs:          []types.Utxo{{UtxoRef: ref, Address: user.Address(), Assets: types.NewLovelace(5_000_000)}},
		Outputs:         []txbuilder.Output{{Address: user.Address(), Assets: types.NewLovelace(4_800_000)}},
		Fee:             200_000,
		RequiredSigners: []types.Hash{admin.StakeKeyHash()},
		ChangeIndex:     -1,
	}
	assert.NotNil(t, user.SignTx(tx))

	require.Nil(t, user.PartialSignTx(tx))
	require.Equal(t, []types.Hash{admin.StakeKeyHash()}, tx.MissingWitnesses())

	require.Nil(t, admin.PartialSignTx(tx))
	assert.Empty(t, tx.MissingWitnesses())
	assert.Len(t, tx.VKeyWitnesses, 2)
}
