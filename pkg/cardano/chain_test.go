package cardano

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/havocworlds/shuffle/go-offchain/pkg/txbuilder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memUtxos struct {
	byAddr  map[types.Address][]types.Utxo
	byTx    map[string][]types.Utxo
	queries int
}

func (m *memUtxos) UtxosAt(_ context.Context, addr types.Address) ([]types.Utxo, error) {
	return m.byAddr[addr], nil
}

func (m *memUtxos) TxOutputs(_ context.Context, h types.Hash) ([]types.Utxo, error) {
	m.queries++
	if m.queries < 2 {
		return nil, nil
	}
	return m.byTx[h.String()], nil
}

type recordingSubmitter struct {
	got []byte
}

func (r *recordingSubmitter) SubmitTx(_ context.Context, tx []byte) (types.Hash, error) {
	r.got = tx
	return types.Blake2b256(tx), nil
}

func TestUtxosWithAsset(t *testing.T) {
	policy := types.Hash(bytes.Repeat([]byte{1}, types.KeyHashSize))
	beacon := types.NewAssetIDText(policy, "settings")
	ref1, _ := types.NewUtxoRef(string(bytes.Repeat([]byte("a"), 64)), 0)
	ref2, _ := types.NewUtxoRef(string(bytes.Repeat([]byte("b"), 64)), 0)
	src := &memUtxos{byAddr: map[types.Address][]types.Utxo{
		"addr": {
			{UtxoRef: ref1, Assets: types.NewLovelace(1)},
			{UtxoRef: ref2, Assets: types.Assets{types.Lovelace: 1, beacon: 1}},
		},
	}}
	c := &Chain{Utxos: src}

	out, err := c.UtxosWithAsset(context.Background(), "addr", beacon)
	require.Nil(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].Equal(ref2))
}

func TestSubmitAndAwait(t *testing.T) {
	sub := &recordingSubmitter{}
	tx := &txbuilder.Tx{Fee: 170_000, ChangeIndex: -1}
	raw, err := tx.CBOR()
	require.Nil(t, err)
	hash := types.Blake2b256(raw)
	ref, _ := types.NewUtxoRef(hash.String(), 0)

	src := &memUtxos{byTx: map[string][]types.Utxo{hash.String(): {{UtxoRef: ref}}}}
	c := &Chain{Utxos: src, Submitter: sub}

	h, err := c.Submit(context.Background(), tx)
	require.Nil(t, err)
	assert.Equal(t, raw, sub.got)
	assert.Equal(t, hash, h)

	require.Nil(t, c.AwaitTx(context.Background(), h, 30*time.Second))
	assert.Equal(t, 2, src.queries)
}
