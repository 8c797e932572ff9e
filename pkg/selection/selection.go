// Package selection picks the utxos a deployment transaction spends.
package selection

import (
	"fmt"
	"strings"

	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/lightningnetwork/lnd/fn"
)

// DefaultFundingFloor is the lovelace a deployment selection tries to reach.
const DefaultFundingFloor uint64 = 100_000_000

// BeaconNotFoundError reports a required beacon token with no utxo holding it.
type BeaconNotFoundError struct {
	Asset types.AssetID
	Where string
}

func (e *BeaconNotFoundError) Error() string {
	if e.Where == "" {
		return fmt.Sprintf("no utxo holds beacon %s", e.Asset)
	}
	return fmt.Sprintf("no utxo at %s holds beacon %s", e.Where, e.Asset)
}

// DeploySelection is the result of SelectDeployUtxos.
type DeploySelection struct {
	// Selected is in claim order: one utxo per filled wanted asset, then the
	// utxos claimed to reach the funding floor.
	Selected []types.Utxo
	// ByPoolIndex maps the position of every selected utxo in the pool.
	ByPoolIndex map[int]types.Utxo
	// Unfilled lists the wanted assets no utxo could be claimed for.
	Unfilled []types.AssetID

	beacons map[types.AssetID]types.Utxo
}

// Err is a *BeaconNotFoundError for the first unfilled asset, nil if every
// wanted asset was claimed.
func (s DeploySelection) Err() error {
	if len(s.Unfilled) == 0 {
		return nil
	}
	return &BeaconNotFoundError{Asset: s.Unfilled[0]}
}

// Beacon returns the utxo claimed for asset.
func (s DeploySelection) Beacon(asset types.AssetID) fn.Option[types.Utxo] {
	if u, ok := s.beacons[asset]; ok {
		return fn.Some(u)
	}
	return fn.None[types.Utxo]()
}

// Lovelace totals the selected utxos.
func (s DeploySelection) Lovelace() uint64 {
	return types.SumAssets(s.Selected).Lovelace()
}

func (s DeploySelection) String() string {
	parts := make([]string, len(s.Selected))
	for i, u := range s.Selected {
		parts[i] = u.String()
	}
	return strings.Join(parts, ",")
}

// SelectDeployUtxos claims, for every wanted asset in order, the first
// unclaimed pool utxo holding it, then tops the claim up with further pool
// utxos until floor lovelace is reached. The reserved utxo is never claimed.
// Not reaching the floor is not an error; balancing reports it later.
func SelectDeployUtxos(pool []types.Utxo, wanted []types.AssetID, reserved fn.Option[types.UtxoRef], floor uint64) DeploySelection {
	sel := DeploySelection{
		ByPoolIndex: map[int]types.Utxo{},
		beacons:     map[types.AssetID]types.Utxo{},
	}
	isReserved := func(u types.Utxo) bool {
		return fn.MapOptionZ(reserved, func(r types.UtxoRef) bool {
			return r.Equal(u.UtxoRef)
		})
	}
	claim := func(i int) {
		sel.ByPoolIndex[i] = pool[i]
		sel.Selected = append(sel.Selected, pool[i])
	}

	for _, asset := range wanted {
		found := -1
		for i, u := range pool {
			if _, claimed := sel.ByPoolIndex[i]; claimed || isReserved(u) {
				continue
			}
			if u.Assets.Has(asset) {
				found = i
				break
			}
		}
		if found < 0 {
			sel.Unfilled = append(sel.Unfilled, asset)
			continue
		}
		claim(found)
		sel.beacons[asset] = pool[found]
	}

	total := sel.Lovelace()
	for i, u := range pool {
		if total >= floor {
			break
		}
		if _, claimed := sel.ByPoolIndex[i]; claimed || isReserved(u) {
			continue
		}
		claim(i)
		total += u.Lovelace()
	}
	return sel
}

// FindByAsset returns the first utxo holding asset.
func FindByAsset(utxos []types.Utxo, asset types.AssetID) fn.Option[types.Utxo] {
	for _, u := range utxos {
		if u.Assets.Has(asset) {
			return fn.Some(u)
		}
	}
	return fn.None[types.Utxo]()
}

// RequireByAsset is FindByAsset for utxos that must exist. where names the
// queried location in the error.
func RequireByAsset(utxos []types.Utxo, asset types.AssetID, where string) (types.Utxo, error) {
	return FindByAsset(utxos, asset).UnwrapOrErr(&BeaconNotFoundError{Asset: asset, Where: where})
}
