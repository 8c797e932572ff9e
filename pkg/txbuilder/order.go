package txbuilder

import (
	"bytes"
	"sort"

	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
)

// CanonicalIndexMap maps the identity string of a utxo ref to its position
// in the ledger's sorted input list.
type CanonicalIndexMap map[string]uint64

func (m CanonicalIndexMap) Index(ref types.UtxoRef) (uint64, bool) {
	i, ok := m[ref.String()]
	return i, ok
}

func compareRefs(a, b types.UtxoRef) int {
	if c := bytes.Compare(a.TxHash, b.TxHash); c != 0 {
		return c
	}
	switch {
	case a.Index < b.Index:
		return -1
	case a.Index > b.Index:
		return 1
	}
	return 0
}

// SortCanonically returns a sorted copy of utxos: by transaction id bytes,
// then by output index.
func SortCanonically(utxos []types.Utxo) []types.Utxo {
	out := make([]types.Utxo, len(utxos))
	copy(out, utxos)
	sort.SliceStable(out, func(i, j int) bool {
		return compareRefs(out[i].UtxoRef, out[j].UtxoRef) < 0
	})
	return out
}

// OrderCanonically assigns every utxo the position the ledger gives it.
// Spending inputs and reference inputs are ordered separately, so call it
// once per list.
func OrderCanonically(utxos []types.Utxo) (CanonicalIndexMap, error) {
	sorted := SortCanonically(utxos)
	m := make(CanonicalIndexMap, len(sorted))
	for i, u := range sorted {
		key := u.String()
		if _, dup := m[key]; dup {
			return nil, &DuplicateUtxoError{Ref: u.UtxoRef}
		}
		m[key] = uint64(i)
	}
	return m, nil
}
