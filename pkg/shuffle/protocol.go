// Package shuffle builds the transactions of the Havoc Shuffle protocol.
// Every action runs against an explicit Env; nothing about the network, the
// wallet or the deployment is global.
package shuffle

import (
	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/havocworlds/shuffle/go-offchain/pkg/deploy"
	"github.com/pkg/errors"
)

// SettingsBeaconName is the asset name of the settings beacon.
const SettingsBeaconName = "CONFIG"

type Scripts struct {
	Refscripts types.Script
	Settings   types.Script
	Vault      types.Script
	Protocol   types.Script
}

// Protocol holds everything derived from the validators and the admin key:
// script hashes, addresses and token ids.
type Protocol struct {
	Network types.Network
	// Admin is the admin stake key hash. It parameterizes the validators,
	// stakes the script addresses and signs admin actions.
	Admin types.Hash

	Scripts Scripts

	RefscriptsAddr types.Address
	SettingsAddr   types.Address
	VaultAddr      types.Address
	ProtocolAddr   types.Address
	// RefscriptsRewardAddr is the stake address of the refscripts script.
	RefscriptsRewardAddr types.Address

	Beacons        deploy.BeaconTokens
	SettingsBeacon types.AssetID

	S2Policy types.Hash
	// S2Script is the demo minting policy, nil when an external S2 policy is
	// configured.
	S2Script *types.Script

	RefTokensHash types.Hash
	RefTokensAddr types.Address
}

// NewProtocol derives the protocol from an applied blueprint. An empty
// s2PolicyHex selects the demo policy, a native script requiring the admin
// signature.
func NewProtocol(network types.Network, bp *Blueprint, admin types.Hash, s2PolicyHex, refTokensHex string) (*Protocol, error) {
	if len(admin) != types.KeyHashSize {
		return nil, errors.Errorf("admin key hash must be %d bytes", types.KeyHashSize)
	}
	p := &Protocol{Network: network, Admin: admin}

	var err error
	for _, v := range []struct {
		title string
		dst   *types.Script
	}{
		{RefscriptsValidator, &p.Scripts.Refscripts},
		{SettingsValidator, &p.Scripts.Settings},
		{VaultValidator, &p.Scripts.Vault},
		{ProtocolValidator, &p.Scripts.Protocol},
	} {
		if *v.dst, err = bp.Script(v.title); err != nil {
			return nil, err
		}
	}

	stake := types.KeyCredential(admin)
	for _, a := range []struct {
		script types.Script
		dst    *types.Address
	}{
		{p.Scripts.Refscripts, &p.RefscriptsAddr},
		{p.Scripts.Settings, &p.SettingsAddr},
		{p.Scripts.Vault, &p.VaultAddr},
		{p.Scripts.Protocol, &p.ProtocolAddr},
	} {
		if *a.dst, err = types.NewAddress(network, types.ScriptCredential(a.script.Hash()), &stake); err != nil {
			return nil, err
		}
	}
	refscriptsHash := p.Scripts.Refscripts.Hash()
	if p.RefscriptsRewardAddr, err = types.NewRewardAddress(network, types.ScriptCredential(refscriptsHash)); err != nil {
		return nil, err
	}

	p.Beacons = deploy.BeaconTokens{
		Refscripts: types.NewAssetIDText(refscriptsHash, "refscripts"),
		Settings:   types.NewAssetIDText(refscriptsHash, "settings"),
		Vault:      types.NewAssetIDText(refscriptsHash, "vault"),
		Protocol:   types.NewAssetIDText(refscriptsHash, "protocol"),
	}
	p.SettingsBeacon = types.NewAssetIDText(p.Scripts.Settings.Hash(), SettingsBeaconName)

	if s2PolicyHex == "" {
		s, err := types.RequireSignature(admin).Script()
		if err != nil {
			return nil, err
		}
		p.S2Script = &s
		p.S2Policy = s.Hash()
	} else if p.S2Policy, err = parseKeyHash(s2PolicyHex, "s2 policy id"); err != nil {
		return nil, err
	}

	if p.RefTokensHash, err = parseKeyHash(refTokensHex, "reftokens script hash"); err != nil {
		return nil, err
	}
	if p.RefTokensAddr, err = types.NewAddress(network, types.ScriptCredential(p.RefTokensHash), nil); err != nil {
		return nil, err
	}
	return p, nil
}

func parseKeyHash(s, what string) (types.Hash, error) {
	h, err := types.HashFromHex(s)
	if err != nil {
		return nil, errors.Wrap(err, what)
	}
	if len(h) != types.KeyHashSize {
		return nil, errors.Errorf("%s must be %d bytes, got %d", what, types.KeyHashSize, len(h))
	}
	return h, nil
}

// Describe records the protocol's hashes, addresses and beacons in d.
func (p *Protocol) Describe(d *deploy.Deployment) {
	d.Network = p.Network
	d.AdminKeyHash = p.Admin
	d.RefscriptsPolicyID = p.Scripts.Refscripts.Hash()
	d.RefscriptsScriptHash = p.Scripts.Refscripts.Hash()
	d.SettingsScriptHash = p.Scripts.Settings.Hash()
	d.VaultScriptHash = p.Scripts.Vault.Hash()
	d.ProtocolScriptHash = p.Scripts.Protocol.Hash()
	d.RefscriptsScriptAddr = p.RefscriptsAddr
	d.SettingsScriptAddr = p.SettingsAddr
	d.VaultScriptAddr = p.VaultAddr
	d.ProtocolScriptAddr = p.ProtocolAddr
	d.BeaconTokens = p.Beacons
}

// RefToken and UserToken are the CIP-68 pair minted for a shuffled name.
func (p *Protocol) RefToken(name string) types.AssetID {
	return types.AssetID(p.S2Policy.String() + types.PrefixRefToken + hexText(name))
}

func (p *Protocol) UserToken(name string) types.AssetID {
	return types.AssetID(p.S2Policy.String() + types.PrefixUserToken + hexText(name))
}
