package shuffle

import (
	"context"

	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/plutus"
	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/havocworlds/shuffle/go-offchain/pkg/selection"
	"github.com/havocworlds/shuffle/go-offchain/pkg/txbuilder"
	"github.com/pkg/errors"
)

// adminRefs are the reference inputs of the admin actions on the vault and
// protocol validators.
func (e *Env) adminRefs(ctx context.Context) (settings types.Utxo, refs []types.Utxo, err error) {
	p := e.Protocol
	if settings, err = e.settingsUtxo(ctx); err != nil {
		return
	}
	vaultRef, err := e.refScript(ctx, p.Beacons.Vault)
	if err != nil {
		return
	}
	protocolRef, err := e.refScript(ctx, p.Beacons.Protocol)
	if err != nil {
		return
	}
	return settings, []types.Utxo{settings, vaultRef, protocolRef}, nil
}

// Administer moves a vault pool utxo to the admin wallet. Without a target
// the canonically first pool utxo is taken.
func (e *Env) Administer(ctx context.Context, target *types.UtxoRef) (*Result, error) {
	if err := e.requireDeployed(); err != nil {
		return nil, err
	}
	p := e.Protocol

	return e.run(ctx, "administer", func(ctx context.Context) (*txbuilder.Tx, error) {
		_, pool, err := e.requests(ctx)
		if err != nil {
			return nil, err
		}
		var vault *types.Utxo
		for i := range pool {
			if target == nil || pool[i].Equal(*target) {
				vault = &pool[i]
				break
			}
		}
		if vault == nil {
			return nil, ErrNoVaultUtxo
		}
		settings, refs, err := e.adminRefs(ctx)
		if err != nil {
			return nil, err
		}
		settingsIdx, err := refIndex(refs, settings)
		if err != nil {
			return nil, err
		}
		protocol, err := e.protocolUtxo(ctx)
		if err != nil {
			return nil, err
		}
		inputs := []types.Utxo{protocol, *vault}
		spend := redeemer(inputs, func(idxs []uint64) Redeemer {
			return Administer{ProtocolIdxs: Pair{idxs[0], 0}, SettingsIdx: settingsIdx}
		})

		b, err := e.builder(ctx)
		if err != nil {
			return nil, err
		}
		b.CollectFrom(inputs, spend).
			PayToContract(p.ProtocolAddr, inlineDatum(protocol), protocol.Assets, nil).
			PayToAddress(e.Wallet.Address(), vault.Assets).
			AttachMessage("Havoc Shuffle administer vault utxo").
			AddSigner(p.Admin).
			ReadFrom(refs...)
		return e.complete(ctx, b, e.reserved()...)
	})
}

// SpendBadUtxo recovers a utxo sent to the vault or protocol address that the
// protocol cannot use, such as one with a malformed datum.
func (e *Env) SpendBadUtxo(ctx context.Context, bad types.UtxoRef) (*Result, error) {
	if err := e.requireDeployed(); err != nil {
		return nil, err
	}
	p := e.Protocol

	return e.run(ctx, "spend-bad-utxo", func(ctx context.Context) (*txbuilder.Tx, error) {
		var found *types.Utxo
		for _, addr := range []types.Address{p.VaultAddr, p.ProtocolAddr} {
			utxos, err := e.Chain.Utxos.UtxosAt(ctx, addr)
			if err != nil {
				return nil, err
			}
			for i := range utxos {
				if utxos[i].Equal(bad) {
					found = &utxos[i]
				}
			}
		}
		if found == nil {
			return nil, errors.Errorf("utxo %s is neither at the vault nor at the protocol address", bad)
		}
		settings, refs, err := e.adminRefs(ctx)
		if err != nil {
			return nil, err
		}
		settingsIdx, err := refIndex(refs, settings)
		if err != nil {
			return nil, err
		}
		protocol, err := e.protocolUtxo(ctx, bad)
		if err != nil {
			return nil, err
		}
		inputs := []types.Utxo{protocol, *found}
		spend := redeemer(inputs, func(idxs []uint64) Redeemer {
			return SpendBadUtxo{ProtocolIdxs: Pair{idxs[0], 0}, BadUtxoIdx: idxs[1], SettingsIdx: settingsIdx}
		})

		b, err := e.builder(ctx)
		if err != nil {
			return nil, err
		}
		b.CollectFrom(inputs, spend).
			PayToContract(p.ProtocolAddr, inlineDatum(protocol), protocol.Assets, nil).
			AddSigner(p.Admin).
			ReadFrom(refs...)
		return e.complete(ctx, b, e.reserved()...)
	})
}

// RetireProtocol spends a protocol utxo without recreating it. Without a
// target the canonically first one is retired.
func (e *Env) RetireProtocol(ctx context.Context, target *types.UtxoRef) (*Result, error) {
	if err := e.requireDeployed(); err != nil {
		return nil, err
	}
	p := e.Protocol

	return e.run(ctx, "retire-protocol", func(ctx context.Context) (*txbuilder.Tx, error) {
		utxos, err := e.Chain.Utxos.UtxosAt(ctx, p.ProtocolAddr)
		if err != nil {
			return nil, err
		}
		var protocol *types.Utxo
		for _, u := range txbuilder.SortCanonically(utxos) {
			if target == nil || u.Equal(*target) {
				u := u
				protocol = &u
				break
			}
		}
		if protocol == nil {
			return nil, ErrNoProtocolUtxo
		}
		settings, err := e.settingsUtxo(ctx)
		if err != nil {
			return nil, err
		}
		protocolRef, err := e.refScript(ctx, p.Beacons.Protocol)
		if err != nil {
			return nil, err
		}
		refs := []types.Utxo{settings, protocolRef}
		settingsIdx, err := refIndex(refs, settings)
		if err != nil {
			return nil, err
		}
		spend := redeemer([]types.Utxo{*protocol}, func(idxs []uint64) Redeemer {
			return RetireProtocol{ProtocolIdx: idxs[0], SettingsIdx: settingsIdx}
		})

		b, err := e.builder(ctx)
		if err != nil {
			return nil, err
		}
		b.CollectFrom([]types.Utxo{*protocol}, spend).
			AttachMessage("Havoc Shuffle retire protocol").
			AddSigner(p.Admin).
			ReadFrom(refs...)
		return e.complete(ctx, b, e.reserved()...)
	})
}

// MintDemoS2 mints one token per name under the demo S2 policy into the
// wallet. It refuses to run on mainnet.
func (e *Env) MintDemoS2(ctx context.Context, names []string) (*Result, error) {
	p := e.Protocol
	if p.S2Script == nil {
		return nil, errors.New("an external S2 policy is configured")
	}
	if p.Network == types.Mainnet {
		return nil, errors.New("demo S2 tokens cannot be minted on mainnet")
	}
	if len(names) == 0 {
		return nil, errors.New("no token names given")
	}
	ids := make([]types.AssetID, len(names))
	for i, n := range names {
		ids[i] = types.NewAssetIDText(p.S2Policy, n)
	}

	return e.run(ctx, "mint-demo-s2", func(ctx context.Context) (*txbuilder.Tx, error) {
		b, err := e.builder(ctx)
		if err != nil {
			return nil, err
		}
		mint := mintOne(ids...)
		minted, _ := mint.Split()
		b.MintAssets(mint, nil).
			AttachScript(*p.S2Script).
			AddSigner(p.Admin).
			PayToAddress(e.Wallet.Address(), minted)
		return e.complete(ctx, b, e.reserved()...)
	})
}

// BurnDemoS2 burns the CIP-68 pair of each shuffled name: the reference
// token is collected from the reftokens address and the user token from the
// wallet. The demo policy needs the admin signature, so a user Env burns with
// the admin wallet as co-signer. It refuses to run on mainnet.
func (e *Env) BurnDemoS2(ctx context.Context, names []string) (*Result, error) {
	p := e.Protocol
	if p.S2Script == nil {
		return nil, errors.New("an external S2 policy is configured")
	}
	if p.Network == types.Mainnet {
		return nil, errors.New("demo S2 tokens cannot be burned on mainnet")
	}
	if len(names) == 0 {
		return nil, errors.New("no token names given")
	}
	burn := types.Mint{}
	var refIDs []types.AssetID
	for _, n := range names {
		burn[p.RefToken(n)]--
		burn[p.UserToken(n)]--
		refIDs = append(refIDs, p.RefToken(n))
	}

	return e.run(ctx, "burn-demo-s2", func(ctx context.Context) (*txbuilder.Tx, error) {
		utxos, err := e.Chain.Utxos.UtxosAt(ctx, p.RefTokensAddr)
		if err != nil {
			return nil, err
		}
		var refs []types.Utxo
		for _, id := range refIDs {
			u, err := selection.RequireByAsset(utxos, id, "reftokens address")
			if err != nil {
				return nil, err
			}
			if len(types.FilterOut(refs, u.UtxoRef)) == len(refs) {
				refs = append(refs, u)
			}
		}
		b, err := e.builder(ctx)
		if err != nil {
			return nil, err
		}
		b.CollectFrom(txbuilder.SortCanonically(refs), txbuilder.Static(plutus.Void())).
			MintAssets(burn, nil).
			AttachScript(*p.S2Script).
			AddSigner(p.Admin).
			AttachMessage("Havoc Shuffle burn test s2 nfts")
		return e.complete(ctx, b, e.reserved()...)
	})
}
