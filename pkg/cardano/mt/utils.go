package mt

import (
	"bytes"
	"sort"

	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
)

// Domain separators so that a spending input and a reference input with the
// same reference never produce the same leaf.
const (
	leafSpend     = 0x00
	leafReference = 0x01
)

func sortedRefs(refs []types.UtxoRef) []types.UtxoRef {
	out := make([]types.UtxoRef, len(refs))
	copy(out, refs)
	sort.Slice(out, func(i, j int) bool {
		if c := bytes.Compare(out[i].TxHash, out[j].TxHash); c != 0 {
			return c < 0
		}
		return out[i].Index < out[j].Index
	})
	return out
}

// InputSetRoot fingerprints a transaction's input set. The root depends only
// on which references are spent or read, never on the order they are given in.
func InputSetRoot(inputs, referenceInputs []types.UtxoRef) ([]byte, error) {
	tree := NewMerkleTree()
	for _, r := range sortedRefs(inputs) {
		if err := tree.Add(append([]byte{leafSpend}, r.Bytes()...)); err != nil {
			return nil, err
		}
	}
	for _, r := range sortedRefs(referenceInputs) {
		if err := tree.Add(append([]byte{leafReference}, r.Bytes()...)); err != nil {
			return nil, err
		}
	}
	return tree.GetRoot()
}
