package shuffle

import (
	"context"

	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/plutus"
	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/havocworlds/shuffle/go-offchain/pkg/txbuilder"
	"github.com/pkg/errors"
)

// InitialSettings is the settings datum written by InitializeSettings.
func (e *Env) InitialSettings() SettingsDatum {
	p := e.Protocol
	return SettingsDatum{
		Admin:        p.Admin,
		Refscripts:   p.Scripts.Refscripts.Hash(),
		RefTokens:    p.RefTokensHash,
		Vault:        p.Scripts.Vault.Hash(),
		Protocol:     p.Scripts.Protocol.Hash(),
		S2PolicyID:   p.S2Policy,
		MaxToShuffle: e.Options.MaxToShuffle,
	}
}

// InitializeSettings consumes the settings init utxo, mints the settings
// beacon next to the initial settings datum and opens the first protocol
// utxo.
func (e *Env) InitializeSettings(ctx context.Context) (*Result, error) {
	if err := e.requireDeployed(); err != nil {
		return nil, err
	}
	if e.Deployment.SettingsInitUtxo == nil {
		return nil, ErrNoSettingsInitUtxo
	}
	if e.Deployment.SettingsUtxo != nil {
		return nil, ErrSettingsInitialized
	}
	p := e.Protocol
	initUtxo := *e.Deployment.SettingsInitUtxo
	datum, err := plutus.Encode(e.InitialSettings().Data())
	if err != nil {
		return nil, err
	}

	res, err := e.run(ctx, "settings-initialize", func(ctx context.Context) (*txbuilder.Tx, error) {
		settingsRef, err := e.refScript(ctx, p.Beacons.Settings)
		if err != nil {
			return nil, err
		}
		mint := redeemer([]types.Utxo{initUtxo}, func(idxs []uint64) Redeemer {
			return MintSettingsBeacon{InitUtxoIdx: idxs[0]}
		})

		b, err := e.builder(ctx)
		if err != nil {
			return nil, err
		}
		b.CollectFrom([]types.Utxo{initUtxo}, nil).
			MintAssets(mintOne(p.SettingsBeacon), mint).
			PayToContract(p.SettingsAddr, datum, types.Assets{p.SettingsBeacon: 1}, nil).
			PayToContract(p.ProtocolAddr, voidDatum(), types.Assets{}, nil).
			AttachMessage("Havoc Shuffle initialize settings").
			AddSigner(p.Admin).
			ReadFrom(settingsRef)
		return e.complete(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	u, ok := res.Tx.FindOutput(p.SettingsBeacon)
	if !ok {
		return nil, errors.New("settings output missing from transaction")
	}
	e.Deployment.SettingsUtxo = &u
	e.Deployment.SettingsInitUtxo = nil
	return res, nil
}

// UpdateSettings rewrites the settings datum with edit applied. The beacon
// stays at output 0.
func (e *Env) UpdateSettings(ctx context.Context, edit func(*SettingsDatum)) (*Result, error) {
	if err := e.requireDeployed(); err != nil {
		return nil, err
	}
	p := e.Protocol

	res, err := e.run(ctx, "settings-update", func(ctx context.Context) (*txbuilder.Tx, error) {
		settingsRef, err := e.refScript(ctx, p.Beacons.Settings)
		if err != nil {
			return nil, err
		}
		settings, err := e.settingsUtxo(ctx)
		if err != nil {
			return nil, err
		}
		cur, err := DecodeSettingsDatum(settings.Datum)
		if err != nil {
			return nil, err
		}
		edit(&cur)
		datum, err := plutus.Encode(cur.Data())
		if err != nil {
			return nil, err
		}
		spend := redeemer([]types.Utxo{settings}, func(idxs []uint64) Redeemer {
			return UpdateSettings{InputIdx: idxs[0], OutputIdx: 0}
		})

		b, err := e.builder(ctx)
		if err != nil {
			return nil, err
		}
		b.CollectFrom([]types.Utxo{settings}, spend).
			PayToContract(p.SettingsAddr, datum, settings.Assets, nil).
			AttachMessage("Havoc Shuffle update settings").
			AddSigner(p.Admin).
			ReadFrom(settingsRef)
		return e.complete(ctx, b, e.reserved()...)
	})
	if err != nil {
		return nil, err
	}
	u, ok := res.Tx.FindOutput(p.SettingsBeacon)
	if !ok {
		return nil, errors.New("settings output missing from transaction")
	}
	e.Deployment.SettingsUtxo = &u
	return res, nil
}

// RemoveSettings burns the settings beacon. The spend and the burn share one
// redeemer pointing at the settings input.
func (e *Env) RemoveSettings(ctx context.Context) (*Result, error) {
	if err := e.requireDeployed(); err != nil {
		return nil, err
	}
	p := e.Protocol

	res, err := e.run(ctx, "settings-remove", func(ctx context.Context) (*txbuilder.Tx, error) {
		settingsRef, err := e.refScript(ctx, p.Beacons.Settings)
		if err != nil {
			return nil, err
		}
		settings, err := e.settingsUtxo(ctx)
		if err != nil {
			return nil, err
		}
		burn := redeemer([]types.Utxo{settings}, func(idxs []uint64) Redeemer {
			return BurnSettingsBeacon{GcfgUtxoIdx: idxs[0]}
		})

		b, err := e.builder(ctx)
		if err != nil {
			return nil, err
		}
		b.MintAssets(types.Mint{p.SettingsBeacon: -1}, burn).
			CollectFrom([]types.Utxo{settings}, burn).
			AttachMessage("Havoc Shuffle remove settings").
			AddSigner(p.Admin).
			ReadFrom(settingsRef)
		return e.complete(ctx, b, e.reserved()...)
	})
	if err != nil {
		return nil, err
	}
	e.Deployment.SettingsUtxo = nil
	return res, nil
}
