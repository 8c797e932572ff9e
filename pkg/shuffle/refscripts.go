package shuffle

import (
	"context"

	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/plutus"
	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/havocworlds/shuffle/go-offchain/pkg/deploy"
	"github.com/havocworlds/shuffle/go-offchain/pkg/log"
	"github.com/havocworlds/shuffle/go-offchain/pkg/selection"
	"github.com/havocworlds/shuffle/go-offchain/pkg/txbuilder"
	"github.com/lightningnetwork/lnd/fn"
	"github.com/pkg/errors"
)

// PrepInitUtxos pays the wallet a pure-ada utxo that InitializeSettings will
// later consume. It is reserved from every other action until then.
func (e *Env) PrepInitUtxos(ctx context.Context) (*Result, error) {
	res, err := e.run(ctx, "prep-init", func(ctx context.Context) (*txbuilder.Tx, error) {
		b, err := e.builder(ctx)
		if err != nil {
			return nil, err
		}
		b.PayToAddress(e.Wallet.Address(), types.NewLovelace(e.Options.SettingsInitLovelace))
		return e.complete(ctx, b, e.reserved()...)
	})
	if err != nil {
		return nil, err
	}
	u, err := res.Tx.OutputUtxo(0)
	if err != nil {
		return nil, err
	}
	e.Deployment.SettingsInitUtxo = &u
	return res, nil
}

// MintBeacons mints the four reference script beacons into the wallet and
// registers the refscripts stake credential. DeployRefScripts spends them.
func (e *Env) MintBeacons(ctx context.Context) (*Result, error) {
	if e.Deployment.Deployed() {
		return nil, ErrAlreadyDeployed
	}
	p := e.Protocol
	return e.run(ctx, "mint-beacons", func(ctx context.Context) (*txbuilder.Tx, error) {
		b, err := e.builder(ctx)
		if err != nil {
			return nil, err
		}
		b.MintAssets(mintOne(p.Beacons.All()...), txbuilder.Static(plutus.Void())).
			RegisterStake(p.RefscriptsRewardAddr).
			AttachScript(p.Scripts.Refscripts).
			AddSigner(p.Admin)
		// one utxo per beacon
		for _, beacon := range p.Beacons.All() {
			b.PayToAddress(e.Wallet.Address(), types.Assets{beacon: 1})
		}
		return e.complete(ctx, b, e.reserved()...)
	})
}

// DeployRefScripts spends the wallet utxos holding the beacons, topped up to
// the funding floor, into one reference script output per validator.
func (e *Env) DeployRefScripts(ctx context.Context) (*Result, error) {
	if e.Deployment.Deployed() {
		return nil, ErrAlreadyDeployed
	}
	p := e.Protocol
	scripts := []types.Script{p.Scripts.Refscripts, p.Scripts.Settings, p.Scripts.Vault, p.Scripts.Protocol}

	res, err := e.run(ctx, "deploy-refscripts", func(ctx context.Context) (*txbuilder.Tx, error) {
		pool, err := e.Wallet.Utxos(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "query wallet utxos")
		}
		reserved := fn.None[types.UtxoRef]()
		if e.Deployment.SettingsInitUtxo != nil {
			reserved = fn.Some(e.Deployment.SettingsInitUtxo.UtxoRef)
		}
		sel := selection.SelectDeployUtxos(pool, p.Beacons.All(), reserved, e.Options.FundingFloor)
		if err := sel.Err(); err != nil {
			return nil, err
		}
		log.Debugw("Selected deployment utxos",
			"utxos", sel.String(),
			"lovelace", sel.Lovelace(),
			"floor", e.Options.FundingFloor,
		)

		b, err := e.builder(ctx)
		if err != nil {
			return nil, err
		}
		b.CollectFrom(sel.Selected, nil)
		for i, beacon := range p.Beacons.All() {
			script := scripts[i]
			b.PayToContract(p.RefscriptsAddr, voidDatum(), types.Assets{beacon: 1}, &script)
		}
		return e.complete(ctx, b, e.reserved()...)
	})
	if err != nil {
		return nil, err
	}

	refs := &deploy.ReferenceUtxos{}
	for i, dst := range []*types.Utxo{&refs.Refscripts, &refs.Settings, &refs.Vault, &refs.Protocol} {
		if *dst, err = res.Tx.OutputUtxo(i); err != nil {
			return nil, err
		}
	}
	p.Describe(e.Deployment)
	e.Deployment.ReferenceUtxos = refs
	return res, nil
}

// UndeployRefScripts burns the beacons, spends the reference script utxos
// and deregisters the refscripts stake credential.
func (e *Env) UndeployRefScripts(ctx context.Context) (*Result, error) {
	if err := e.requireDeployed(); err != nil {
		return nil, err
	}
	p := e.Protocol
	void := txbuilder.Static(plutus.Void())

	res, err := e.run(ctx, "undeploy-refscripts", func(ctx context.Context) (*txbuilder.Tx, error) {
		var refUtxos []types.Utxo
		for _, beacon := range p.Beacons.All() {
			u, err := e.refScript(ctx, beacon)
			if err != nil {
				return nil, err
			}
			refUtxos = append(refUtxos, u)
		}
		burn := types.Mint{}
		for _, beacon := range p.Beacons.All() {
			burn[beacon] = -1
		}

		b, err := e.builder(ctx)
		if err != nil {
			return nil, err
		}
		b.MintAssets(burn, void).
			CollectFrom(refUtxos, void).
			Withdraw(p.RefscriptsRewardAddr, 0, void).
			DeregisterStake(p.RefscriptsRewardAddr, void).
			AttachScript(p.Scripts.Refscripts).
			AddSigner(p.Admin)
		return e.complete(ctx, b, e.reserved()...)
	})
	if err != nil {
		return nil, err
	}
	e.Deployment.ReferenceUtxos = nil
	return res, nil
}
