package txbuilder

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/stretchr/testify/require"
)

var (
	walletKey  = types.Hash(bytes.Repeat([]byte{0x11}, types.KeyHashSize))
	payeeKey   = types.Hash(bytes.Repeat([]byte{0x22}, types.KeyHashSize))
	scriptHash = types.Hash(bytes.Repeat([]byte{0x33}, types.KeyHashSize))
)

func ref(t *testing.T, hexByte string, idx uint32) types.UtxoRef {
	r, err := types.NewUtxoRef(strings.Repeat(hexByte, 32), idx)
	require.Nil(t, err)
	return r
}

func keyAddress(t *testing.T, h types.Hash) types.Address {
	a, err := types.NewAddress(types.Preprod, types.KeyCredential(h), nil)
	require.Nil(t, err)
	return a
}

func scriptAddress(t *testing.T) types.Address {
	a, err := types.NewAddress(types.Preprod, types.ScriptCredential(scriptHash), nil)
	require.Nil(t, err)
	return a
}

func utxo(r types.UtxoRef, addr types.Address, assets types.Assets) types.Utxo {
	return types.Utxo{UtxoRef: r, Address: addr, Assets: assets}
}

type fakeFunds struct {
	addr  types.Address
	utxos []types.Utxo
}

func (f *fakeFunds) Address() types.Address { return f.addr }

func (f *fakeFunds) Utxos(context.Context) ([]types.Utxo, error) {
	return f.utxos, nil
}

type fakeEvaluator struct {
	budget ExUnits
	calls  int
}

func (e *fakeEvaluator) EvaluateTx(_ context.Context, raw []byte) ([]Evaluation, error) {
	e.calls++
	return []Evaluation{{Tag: TagSpend, Index: 0, Budget: e.budget}}, nil
}

// balanced reports whether inputs, withdrawals and mints pay exactly for
// outputs, burns and the fee.
func balanced(tx *Tx) bool {
	in := types.SumAssets(tx.Inputs)
	out := types.Assets{}
	for _, o := range tx.Outputs {
		out = out.Add(o.Assets)
	}
	minted, burned := tx.Mint.Split()
	in = in.Add(minted)
	out = out.Add(burned).Add(types.NewLovelace(tx.Fee))
	for _, w := range tx.Withdrawals {
		in = in.Add(types.NewLovelace(w.Amount))
	}
	if len(in) != len(out) {
		return false
	}
	for id, q := range in {
		if out[id] != q {
			return false
		}
	}
	return true
}
