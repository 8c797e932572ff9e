package shuffle

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano"
	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/havocworlds/shuffle/go-offchain/pkg/deploy"
	"github.com/havocworlds/shuffle/go-offchain/pkg/txbuilder"
	"github.com/havocworlds/shuffle/go-offchain/pkg/wallet"
	"github.com/stretchr/testify/require"
)

var (
	adminPaySeed   = strings.Repeat("01", 32)
	adminStakeSeed = strings.Repeat("02", 32)
	userPaySeed    = strings.Repeat("03", 32)
	userStakeSeed  = strings.Repeat("04", 32)

	refTokensHex = strings.Repeat("55", types.KeyHashSize)
)

// ledger is an in-memory utxo set. Submitted transactions are applied
// immediately.
type ledger struct {
	mu        sync.Mutex
	utxos     []types.Utxo
	submitted int
	nextTx    byte
}

func (l *ledger) UtxosAt(_ context.Context, addr types.Address) ([]types.Utxo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []types.Utxo
	for _, u := range l.utxos {
		if u.Address == addr {
			out = append(out, u)
		}
	}
	return out, nil
}

func (l *ledger) TxOutputs(_ context.Context, txHash types.Hash) ([]types.Utxo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []types.Utxo
	for _, u := range l.utxos {
		if bytes.Equal(u.TxHash, txHash) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (l *ledger) ProtocolParams(context.Context) (*txbuilder.ProtocolParams, error) {
	return txbuilder.DefaultParams(), nil
}

func (l *ledger) SubmitTx(_ context.Context, raw []byte) (types.Hash, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.submitted++
	return types.Blake2b256(raw), nil
}

// fund adds a utxo from a fresh genesis transaction.
func (l *ledger) fund(t *testing.T, addr types.Address, assets types.Assets) types.Utxo {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextTx++
	r, err := types.NewUtxoRef(strings.Repeat(hex.EncodeToString([]byte{l.nextTx}), 32), 0)
	require.Nil(t, err)
	u := types.Utxo{UtxoRef: r, Address: addr, Assets: assets}
	l.utxos = append(l.utxos, u)
	return u
}

// apply spends the inputs of tx and adds its outputs.
func (l *ledger) apply(t *testing.T, tx *txbuilder.Tx) {
	var outs []types.Utxo
	for i := range tx.Outputs {
		u, err := tx.OutputUtxo(i)
		require.Nil(t, err)
		outs = append(outs, u)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.utxos = append(types.FilterOut(l.utxos, types.Refs(tx.Inputs)...), outs...)
}

func testBlueprint(t *testing.T) *Blueprint {
	type validator struct {
		Title        string `json:"title"`
		CompiledCode string `json:"compiledCode"`
	}
	var vs []validator
	for i, title := range []string{RefscriptsValidator, SettingsValidator, VaultValidator, ProtocolValidator} {
		code := bytes.Repeat([]byte{byte(0x40 + i)}, 64)
		vs = append(vs, validator{Title: title, CompiledCode: hex.EncodeToString(code)})
	}
	raw, err := json.Marshal(map[string]interface{}{
		"preamble":   map[string]string{"title": "havoc/shuffle", "version": "0.0.0", "plutusVersion": "v3"},
		"validators": vs,
	})
	require.Nil(t, err)
	bp, err := ParseBlueprint(raw)
	require.Nil(t, err)
	return bp
}

type fixture struct {
	ledger     *ledger
	chain      *cardano.Chain
	protocol   *Protocol
	deployment *deploy.Deployment
	admin      *Env
	user       *Env
}

func newFixture(t *testing.T) *fixture {
	l := &ledger{}
	chain := &cardano.Chain{Network: types.Preprod, Utxos: l, Params: l, Submitter: l}

	adminWallet, err := wallet.FromSeedHex(types.Preprod, adminPaySeed, adminStakeSeed, l)
	require.Nil(t, err)
	userWallet, err := wallet.FromSeedHex(types.Preprod, userPaySeed, userStakeSeed, l)
	require.Nil(t, err)

	p, err := NewProtocol(types.Preprod, testBlueprint(t), adminWallet.StakeKeyHash(), "", refTokensHex)
	require.Nil(t, err)

	opts := DefaultOptions()
	opts.Evaluate = false
	d := &deploy.Deployment{}
	f := &fixture{
		ledger:     l,
		chain:      chain,
		protocol:   p,
		deployment: d,
		admin:      &Env{Chain: chain, Wallet: adminWallet, Protocol: p, Deployment: d, Options: opts},
		user:       &Env{Chain: chain, Wallet: userWallet, Protocol: p, Deployment: d, Options: opts},
	}
	l.fund(t, adminWallet.Address(), types.NewLovelace(500_000_000))
	l.fund(t, adminWallet.Address(), types.NewLovelace(20_000_000))
	l.fund(t, userWallet.Address(), types.NewLovelace(100_000_000))
	return f
}

// step runs an action and applies its transaction to the ledger.
func (f *fixture) step(t *testing.T) func(res *Result, err error) *Result {
	return func(res *Result, err error) *Result {
		require.Nil(t, err)
		require.NotNil(t, res)
		f.ledger.apply(t, res.Tx)
		return res
	}
}

// deployed runs every admin action up to an initialized protocol.
func (f *fixture) deployed(t *testing.T) {
	ctx := context.Background()
	f.step(t)(f.admin.PrepInitUtxos(ctx))
	f.step(t)(f.admin.MintBeacons(ctx))
	f.step(t)(f.admin.DeployRefScripts(ctx))
	f.step(t)(f.admin.InitializeSettings(ctx))
}

// giveS2 funds the user with demo S2 tokens.
func (f *fixture) giveS2(t *testing.T, names ...string) []types.AssetID {
	assets := types.NewLovelace(2_000_000)
	var ids []types.AssetID
	for _, n := range names {
		id := types.NewAssetIDText(f.protocol.S2Policy, n)
		assets[id] = 1
		ids = append(ids, id)
	}
	f.ledger.fund(t, f.user.Wallet.Address(), assets)
	return ids
}

// redeemerFor decodes the redeemer attached to input u of tx.
func redeemerFor(t *testing.T, tx *txbuilder.Tx, u types.Utxo) (Redeemer, uint32) {
	for _, r := range tx.Redeemers {
		if r.Tag == txbuilder.TagSpend && r.Target == u.String() {
			red, err := DecodeRedeemer(r.Data)
			require.Nil(t, err)
			return red, r.Index
		}
	}
	t.Fatalf("no spend redeemer for %s", u)
	return nil, 0
}

func inputIndex(t *testing.T, tx *txbuilder.Tx, ref types.UtxoRef) uint64 {
	for i, in := range tx.Inputs {
		if in.Equal(ref) {
			return uint64(i)
		}
	}
	t.Fatalf("%s is not an input", ref)
	return 0
}

func refInputIndex(t *testing.T, tx *txbuilder.Tx, ref types.UtxoRef) uint64 {
	for i, in := range tx.ReferenceInputs {
		if in.Equal(ref) {
			return uint64(i)
		}
	}
	t.Fatalf("%s is not a reference input", ref)
	return 0
}
