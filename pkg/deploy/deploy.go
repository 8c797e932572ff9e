// Package deploy persists what a deployment put on chain: script hashes,
// addresses, beacon tokens and the utxos later transactions read or spend.
package deploy

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/pkg/errors"
)

// ReferenceUtxos are the outputs holding the deployed reference scripts.
type ReferenceUtxos struct {
	Refscripts types.Utxo `json:"refscripts"`
	Settings   types.Utxo `json:"settings"`
	Vault      types.Utxo `json:"vault"`
	Protocol   types.Utxo `json:"protocol"`
}

// BeaconTokens mark the reference script utxos.
type BeaconTokens struct {
	Refscripts types.AssetID `json:"refscripts"`
	Settings   types.AssetID `json:"settings"`
	Vault      types.AssetID `json:"vault"`
	Protocol   types.AssetID `json:"protocol"`
}

// All lists the beacons in deployment order.
func (b BeaconTokens) All() []types.AssetID {
	return []types.AssetID{b.Refscripts, b.Settings, b.Vault, b.Protocol}
}

type Deployment struct {
	Network types.Network `json:"network,omitempty"`
	// AdminKeyHash parameterizes the scripts and stakes their addresses.
	AdminKeyHash types.Hash `json:"adminKeyHash,omitempty"`

	ReferenceUtxos *ReferenceUtxos `json:"referenceUtxos,omitempty"`

	RefscriptsPolicyID   types.Hash `json:"refscriptsPolicyID,omitempty"`
	RefscriptsScriptHash types.Hash `json:"refscriptsScriptHash,omitempty"`
	SettingsScriptHash   types.Hash `json:"settingsScriptHash,omitempty"`
	VaultScriptHash      types.Hash `json:"vaultScriptHash,omitempty"`
	ProtocolScriptHash   types.Hash `json:"protocolScriptHash,omitempty"`

	RefscriptsScriptAddr types.Address `json:"refscriptsScriptAddr,omitempty"`
	SettingsScriptAddr   types.Address `json:"settingsScriptAddr,omitempty"`
	VaultScriptAddr      types.Address `json:"vaultScriptAddr,omitempty"`
	ProtocolScriptAddr   types.Address `json:"protocolScriptAddr,omitempty"`

	BeaconTokens BeaconTokens `json:"beaconTokens"`

	SettingsInitUtxo *types.Utxo `json:"settingsInitUtxo,omitempty"`
	SettingsUtxo     *types.Utxo `json:"settingsUtxo,omitempty"`
}

// Deployed reports whether the reference scripts are on chain.
func (d *Deployment) Deployed() bool {
	return d.ReferenceUtxos != nil
}

// Load reads a deployment file. A missing file is an empty deployment.
func Load(path string) (*Deployment, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Deployment{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read deployment %s", path)
	}
	var d Deployment
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, errors.Wrapf(err, "decode deployment %s", path)
	}
	return &d, nil
}

// Save writes the deployment, creating the directory if needed. The file is
// replaced atomically.
func (d *Deployment) Save(path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode deployment")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create deployment dir")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(err, "write deployment %s", tmp)
	}
	return errors.Wrap(os.Rename(tmp, path), "replace deployment file")
}
