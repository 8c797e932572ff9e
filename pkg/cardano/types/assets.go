package types

import (
	"encoding/hex"
	"sort"

	"github.com/pkg/errors"
)

// AssetID is hex(policy id) followed by hex(asset name). The base unit is
// keyed by Lovelace.
type AssetID string

const Lovelace AssetID = "lovelace"

const policyHexLen = KeyHashSize * 2

// CIP-68 asset name prefixes.
const (
	PrefixRefToken  = "000643b0"
	PrefixUserToken = "000de140"
)

func NewAssetID(policy Hash, name []byte) AssetID {
	return AssetID(hex.EncodeToString(policy) + hex.EncodeToString(name))
}

// NewAssetIDText builds an asset id whose name is UTF-8 text.
func NewAssetIDText(policy Hash, name string) AssetID {
	return NewAssetID(policy, []byte(name))
}

func ParseAssetID(s string) (AssetID, error) {
	if s == string(Lovelace) {
		return Lovelace, nil
	}
	if len(s) < policyHexLen || len(s) > policyHexLen+128 || len(s)%2 != 0 {
		return "", errors.Errorf("invalid asset id %q", s)
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", errors.Wrapf(err, "invalid asset id %q", s)
	}
	return AssetID(s), nil
}

func (a AssetID) IsLovelace() bool {
	return a == Lovelace
}

func (a AssetID) PolicyID() Hash {
	if a.IsLovelace() || len(a) < policyHexLen {
		return nil
	}
	h, _ := hex.DecodeString(string(a[:policyHexLen]))
	return h
}

func (a AssetID) PolicyHex() string {
	if a.IsLovelace() || len(a) < policyHexLen {
		return ""
	}
	return string(a[:policyHexLen])
}

func (a AssetID) AssetName() []byte {
	if a.IsLovelace() || len(a) < policyHexLen {
		return nil
	}
	n, _ := hex.DecodeString(string(a[policyHexLen:]))
	return n
}

// Assets maps an asset to a quantity. Zero quantities are never stored.
type Assets map[AssetID]uint64

func NewLovelace(amount uint64) Assets {
	return Assets{Lovelace: amount}
}

func (a Assets) Lovelace() uint64 {
	return a[Lovelace]
}

func (a Assets) Quantity(id AssetID) uint64 {
	return a[id]
}

func (a Assets) Has(id AssetID) bool {
	return a[id] > 0
}

func (a Assets) HasTokens() bool {
	for id, q := range a {
		if !id.IsLovelace() && q > 0 {
			return true
		}
	}
	return false
}

func (a Assets) IsZero() bool {
	for _, q := range a {
		if q > 0 {
			return false
		}
	}
	return true
}

func (a Assets) Clone() Assets {
	c := make(Assets, len(a))
	for id, q := range a {
		if q > 0 {
			c[id] = q
		}
	}
	return c
}

// Add returns a new bundle holding the sum of a and o.
func (a Assets) Add(o Assets) Assets {
	c := a.Clone()
	for id, q := range o {
		if q > 0 {
			c[id] += q
		}
	}
	return c
}

// WithLovelace returns a copy with the lovelace amount replaced.
func (a Assets) WithLovelace(amount uint64) Assets {
	c := a.Clone()
	if amount == 0 {
		delete(c, Lovelace)
	} else {
		c[Lovelace] = amount
	}
	return c
}

// Tokens returns the non-lovelace part of the bundle.
func (a Assets) Tokens() Assets {
	c := a.Clone()
	delete(c, Lovelace)
	return c
}

// ByPolicy filters the bundle to the assets of one policy.
func (a Assets) ByPolicy(policy Hash) Assets {
	p := hex.EncodeToString(policy)
	c := Assets{}
	for id, q := range a {
		if id.PolicyHex() == p && q > 0 {
			c[id] = q
		}
	}
	return c
}

// Total sums the quantities of every asset in the bundle.
func (a Assets) Total() uint64 {
	var n uint64
	for _, q := range a {
		n += q
	}
	return n
}

// IDs returns the asset ids in ascending order.
func (a Assets) IDs() []AssetID {
	ids := make([]AssetID, 0, len(a))
	for id, q := range a {
		if q > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// SumAssets totals the bundles of all utxos.
func SumAssets(utxos []Utxo) Assets {
	total := Assets{}
	for _, u := range utxos {
		total = total.Add(u.Assets)
	}
	return total
}

// Mint is a signed bundle: positive quantities mint, negative ones burn.
type Mint map[AssetID]int64

func (m Mint) Policies() []string {
	seen := map[string]struct{}{}
	var out []string
	for id, q := range m {
		if q == 0 {
			continue
		}
		p := id.PolicyHex()
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Split separates the minted and burned quantities.
func (m Mint) Split() (minted Assets, burned Assets) {
	minted, burned = Assets{}, Assets{}
	for id, q := range m {
		switch {
		case q > 0:
			minted[id] = uint64(q)
		case q < 0:
			burned[id] = uint64(-q)
		}
	}
	return minted, burned
}
