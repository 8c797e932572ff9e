package txbuilder

import (
	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/plutus"
	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/pkg/errors"
)

type RedeemerTag uint8

const (
	TagSpend  RedeemerTag = 0
	TagMint   RedeemerTag = 1
	TagCert   RedeemerTag = 2
	TagReward RedeemerTag = 3
)

func (t RedeemerTag) String() string {
	switch t {
	case TagSpend:
		return "spend"
	case TagMint:
		return "mint"
	case TagCert:
		return "publish"
	case TagReward:
		return "withdraw"
	}
	return "unknown"
}

// RedeemerBuilder defers a redeemer until the input order is known. Inputs
// lists the spending inputs the redeemer refers to; MakeRedeemer receives
// their canonical positions, in the same order, and returns the encoded
// redeemer. MakeRedeemer must be pure: it is called again whenever the
// input set changes.
type RedeemerBuilder struct {
	Inputs       []types.Utxo
	MakeRedeemer func(inputIdxs []uint64) ([]byte, error)
}

// Static wraps a redeemer that does not depend on input positions.
func Static(d plutus.Data) *RedeemerBuilder {
	return &RedeemerBuilder{
		MakeRedeemer: func([]uint64) ([]byte, error) {
			return plutus.Encode(d)
		},
	}
}

// Selected builds a redeemer from the positions of inputs.
func Selected(inputs []types.Utxo, makeData func(inputIdxs []uint64) plutus.Data) *RedeemerBuilder {
	return &RedeemerBuilder{
		Inputs: inputs,
		MakeRedeemer: func(idxs []uint64) ([]byte, error) {
			return plutus.Encode(makeData(idxs))
		},
	}
}

// Resolve looks up every dependency in order and runs the resolver.
func (rb *RedeemerBuilder) Resolve(order CanonicalIndexMap) ([]byte, error) {
	idxs := make([]uint64, len(rb.Inputs))
	for i, in := range rb.Inputs {
		pos, ok := order.Index(in.UtxoRef)
		if !ok {
			return nil, &UnresolvedDependencyError{Ref: in.UtxoRef}
		}
		idxs[i] = pos
	}
	data, err := rb.MakeRedeemer(idxs)
	if err != nil {
		return nil, errors.Wrap(err, "make redeemer")
	}
	return data, nil
}

// IndexRun returns qty consecutive positions starting at base.
func IndexRun(base, qty uint64) []uint64 {
	run := make([]uint64, qty)
	for i := range run {
		run[i] = base + uint64(i)
	}
	return run
}

// Redeemer is a resolved redeemer as it appears in the witness set.
type Redeemer struct {
	Tag     RedeemerTag
	Index   uint32
	Data    []byte
	ExUnits ExUnits
	// Target names what the redeemer unlocks: a utxo ref, a policy id, a
	// reward address or a certificate position. Budgets are keyed by it.
	Target string
}
