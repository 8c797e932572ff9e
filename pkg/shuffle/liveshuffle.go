package shuffle

import (
	"context"

	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/plutus"
	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/havocworlds/shuffle/go-offchain/pkg/txbuilder"
	"github.com/pkg/errors"
)

// Output layout of a live shuffle: the protocol utxo goes back first, the
// shuffled tokens to the vault second, the minted user tokens third and one
// output per reference token after that.
const (
	liveShuffleProtocolOut = 0
	liveShuffleVaultOut    = 1
	liveShuffleUserOut     = 2
	liveShuffleRefBase     = 3

	// a reshuffle returns the pool remainder first, after the protocol utxo
	reShufflePoolOut = 1
	reShuffleUserOut = 2
)

// RequestLiveShuffle locks tokens of the S2 policy in the vault together with
// the request lovelace. Without explicit tokens every S2 token of the wallet
// is requested, up to the shuffle limit.
func (e *Env) RequestLiveShuffle(ctx context.Context, tokens []types.AssetID) (*Result, error) {
	if err := e.requireDeployed(); err != nil {
		return nil, err
	}
	p := e.Protocol
	return e.run(ctx, "liveshuffle-request", func(ctx context.Context) (*txbuilder.Tx, error) {
		if len(tokens) == 0 {
			utxos, err := e.Wallet.Utxos(ctx)
			if err != nil {
				return nil, err
			}
			tokens = types.SumAssets(utxos).ByPolicy(p.S2Policy).IDs()
			if max := int(e.Options.MaxToShuffle); max > 0 && len(tokens) > max {
				tokens = tokens[:max]
			}
		}
		if len(tokens) == 0 {
			return nil, ErrNothingToShuffle
		}
		if max := e.Options.MaxToShuffle; max > 0 && int64(len(tokens)) > max {
			return nil, errors.Errorf("cannot shuffle %d tokens, the limit is %d", len(tokens), max)
		}

		assets := types.NewLovelace(e.Options.RequestLovelace)
		for _, t := range tokens {
			if t.PolicyHex() != p.S2Policy.String() {
				return nil, errors.Errorf("%s is not an S2 token", t)
			}
			assets[t] = 1
		}
		d, err := VaultDatum{Owner: e.Wallet.Address()}.Data()
		if err != nil {
			return nil, err
		}
		datum, err := plutus.Encode(d)
		if err != nil {
			return nil, err
		}

		b, err := e.builder(ctx)
		if err != nil {
			return nil, err
		}
		b.PayToContract(p.VaultAddr, datum, assets, nil)
		return e.complete(ctx, b)
	})
}

// FulfillLiveShuffle answers a request: the requested tokens move into the
// vault and one CIP-68 pair is minted per token, named by names. The user
// output carries whatever the request's lovelace leaves after the other
// outputs and the fee, which takes a draft and a final build.
func (e *Env) FulfillLiveShuffle(ctx context.Context, requestRef *types.UtxoRef, names []string) (*Result, error) {
	if err := e.requireDeployed(); err != nil {
		return nil, err
	}
	p := e.Protocol
	if p.S2Script == nil {
		return nil, errors.Errorf("no minting script for S2 policy %s", p.S2Policy)
	}

	return e.run(ctx, "liveshuffle-fulfill", func(ctx context.Context) (*txbuilder.Tx, error) {
		// every query happens once; both settlement passes see the same utxos
		req, err := e.findRequest(ctx, requestRef, nil)
		if err != nil {
			return nil, err
		}
		qty := p.shuffleQty(req.Utxo.Assets)
		if qty == 0 {
			return nil, errors.Wrapf(ErrNothingToShuffle, "request %s", req.Utxo)
		}
		if uint64(len(names)) != qty {
			return nil, errors.Errorf("request %s shuffles %d tokens, got %d names", req.Utxo, qty, len(names))
		}
		settings, err := e.settingsUtxo(ctx)
		if err != nil {
			return nil, err
		}
		vaultRef, err := e.refScript(ctx, p.Beacons.Vault)
		if err != nil {
			return nil, err
		}
		protocolRef, err := e.refScript(ctx, p.Beacons.Protocol)
		if err != nil {
			return nil, err
		}
		protocol, err := e.protocolUtxo(ctx)
		if err != nil {
			return nil, err
		}

		refs := []types.Utxo{settings, vaultRef, protocolRef}
		settingsIdx, err := refIndex(refs, settings)
		if err != nil {
			return nil, err
		}
		inputs := []types.Utxo{protocol, req.Utxo}
		spend := redeemer(inputs, func(idxs []uint64) Redeemer {
			return LiveShuffle{
				ProtocolIdxs: Pair{idxs[0], liveShuffleProtocolOut},
				VaultIdxs:    Pair{idxs[1], liveShuffleVaultOut},
				UserIdx:      liveShuffleUserOut,
				RefIdxs:      txbuilder.IndexRun(liveShuffleRefBase, p.shuffleQty(req.Utxo.Assets)),
				SettingsIdx:  settingsIdx,
			}
		})

		mint := types.Mint{}
		userTokens := types.Assets{}
		var refTokens []types.AssetID
		for _, n := range names {
			ref, usr := p.RefToken(n), p.UserToken(n)
			mint[ref]++
			mint[usr]++
			userTokens[usr]++
			refTokens = append(refTokens, ref)
		}

		build := func(ctx context.Context, _ txbuilder.Phase, target uint64) (*txbuilder.Tx, error) {
			b, err := e.builder(ctx)
			if err != nil {
				return nil, err
			}
			b.CollectFrom(inputs, spend).
				PayToContract(p.ProtocolAddr, inlineDatum(protocol), protocol.Assets, nil).
				PayToAddress(p.VaultAddr, req.Utxo.Assets.Tokens()).
				PayToAddress(req.Datum.Owner, userTokens.WithLovelace(target))
			for _, ref := range refTokens {
				b.PayToContract(p.RefTokensAddr, voidDatum(), types.Assets{ref: 1}, nil)
			}
			b.MintAssets(mint, nil).
				AttachScript(*p.S2Script).
				AddSigner(p.Admin).
				ReadFrom(refs...)
			return e.complete(ctx, b, e.reserved()...)
		}
		residual := func(draft *txbuilder.Tx) (uint64, error) {
			derived := []uint64{draft.Outputs[liveShuffleVaultOut].Assets.Lovelace()}
			for i := 0; i < len(refTokens); i++ {
				derived = append(derived, draft.Outputs[liveShuffleRefBase+i].Assets.Lovelace())
			}
			return txbuilder.ResidualLovelace(req.Utxo.Lovelace(), derived, draft.Fee)
		}
		return e.settle(ctx, liveShuffleUserOut, build, residual)
	})
}

// CancelShuffle returns a request to its owner. The wallet must be the
// owner's.
func (e *Env) CancelShuffle(ctx context.Context, requestRef *types.UtxoRef) (*Result, error) {
	if err := e.requireDeployed(); err != nil {
		return nil, err
	}
	p := e.Protocol
	owner := e.Wallet.Address()

	return e.run(ctx, "liveshuffle-cancel", func(ctx context.Context) (*txbuilder.Tx, error) {
		req, err := e.findRequest(ctx, requestRef, func(r Request) bool { return r.Datum.Owner == owner })
		if err != nil {
			return nil, err
		}
		if req.Datum.Owner != owner {
			return nil, errors.Errorf("request %s belongs to %s", req.Utxo, req.Datum.Owner)
		}
		settings, err := e.settingsUtxo(ctx)
		if err != nil {
			return nil, err
		}
		vaultRef, err := e.refScript(ctx, p.Beacons.Vault)
		if err != nil {
			return nil, err
		}
		protocolRef, err := e.refScript(ctx, p.Beacons.Protocol)
		if err != nil {
			return nil, err
		}
		protocol, err := e.protocolUtxo(ctx)
		if err != nil {
			return nil, err
		}

		refs := []types.Utxo{settings, vaultRef, protocolRef}
		settingsIdx, err := refIndex(refs, settings)
		if err != nil {
			return nil, err
		}
		inputs := []types.Utxo{protocol, req.Utxo}
		spend := redeemer(inputs, func(idxs []uint64) Redeemer {
			return CancelShuffle{
				ProtocolIdxs: Pair{idxs[0], 0},
				SettingsIdx:  settingsIdx,
				RequestIdx:   idxs[1],
				UserIdx:      1,
			}
		})

		b, err := e.builder(ctx)
		if err != nil {
			return nil, err
		}
		b.CollectFrom(inputs, spend).
			PayToContract(p.ProtocolAddr, inlineDatum(protocol), protocol.Assets, nil).
			PayToAddress(owner, req.Utxo.Assets).
			AddSigner(e.Wallet.PaymentKeyHash()).
			ReadFrom(refs...)
		return e.complete(ctx, b)
	})
}

// ReShuffle answers a request with tokens already in the vault instead of
// minting new ones. Pool utxos are spent in canonical order until they hold
// as many S2 tokens as the request; the user gets that many pool tokens and
// everything else goes back to the vault at output 1.
func (e *Env) ReShuffle(ctx context.Context, requestRef *types.UtxoRef) (*Result, error) {
	if err := e.requireDeployed(); err != nil {
		return nil, err
	}
	p := e.Protocol

	return e.run(ctx, "reshuffle", func(ctx context.Context) (*txbuilder.Tx, error) {
		req, err := e.findRequest(ctx, requestRef, nil)
		if err != nil {
			return nil, err
		}
		qty := p.shuffleQty(req.Utxo.Assets)
		if qty == 0 {
			return nil, errors.Wrapf(ErrNothingToShuffle, "request %s", req.Utxo)
		}
		_, vault, err := e.requests(ctx)
		if err != nil {
			return nil, err
		}
		var pool []types.Utxo
		var held uint64
		for _, u := range vault {
			if held >= qty {
				break
			}
			if n := p.shuffleQty(u.Assets); n > 0 {
				pool = append(pool, u)
				held += n
			}
		}
		if held < qty {
			return nil, errors.Wrapf(ErrNoVaultUtxo, "vault holds %d of %d tokens", held, qty)
		}

		// the user takes the first qty pool tokens in asset order
		poolAssets := types.SumAssets(pool)
		userTokens := types.Assets{}
		for _, id := range poolAssets.ByPolicy(p.S2Policy).IDs() {
			take := poolAssets[id]
			if left := qty - userTokens.Total(); take > left {
				take = left
			}
			userTokens[id] = take
			if userTokens.Total() == qty {
				break
			}
		}
		back := req.Utxo.Assets.Tokens()
		for id, q := range poolAssets.Tokens() {
			if rest := q - userTokens[id]; rest > 0 {
				back[id] += rest
			}
		}

		settings, err := e.settingsUtxo(ctx)
		if err != nil {
			return nil, err
		}
		vaultRef, err := e.refScript(ctx, p.Beacons.Vault)
		if err != nil {
			return nil, err
		}
		protocolRef, err := e.refScript(ctx, p.Beacons.Protocol)
		if err != nil {
			return nil, err
		}
		protocol, err := e.protocolUtxo(ctx)
		if err != nil {
			return nil, err
		}
		refs := []types.Utxo{settings, vaultRef, protocolRef}
		settingsIdx, err := refIndex(refs, settings)
		if err != nil {
			return nil, err
		}
		inputs := append([]types.Utxo{protocol, req.Utxo}, pool...)
		spend := redeemer(inputs, func(idxs []uint64) Redeemer {
			return ReShuffle{
				ProtocolIdxs: Pair{idxs[0], 0},
				SettingsIdx:  settingsIdx,
				RequestIdx:   idxs[1],
				PoolIdxs:     idxs[2:],
				PoolOidx:     reShufflePoolOut,
				UserIdx:      reShuffleUserOut,
			}
		})

		build := func(ctx context.Context, _ txbuilder.Phase, target uint64) (*txbuilder.Tx, error) {
			b, err := e.builder(ctx)
			if err != nil {
				return nil, err
			}
			b.CollectFrom(inputs, spend).
				PayToContract(p.ProtocolAddr, inlineDatum(protocol), protocol.Assets, nil).
				PayToAddress(p.VaultAddr, back).
				PayToAddress(req.Datum.Owner, userTokens.WithLovelace(target)).
				AddSigner(p.Admin).
				ReadFrom(refs...)
			return e.complete(ctx, b, e.reserved()...)
		}
		residual := func(draft *txbuilder.Tx) (uint64, error) {
			funds := req.Utxo.Lovelace() + poolAssets.Lovelace()
			return txbuilder.ResidualLovelace(funds, []uint64{draft.Outputs[reShufflePoolOut].Assets.Lovelace()}, draft.Fee)
		}
		return e.settle(ctx, reShuffleUserOut, build, residual)
	})
}
