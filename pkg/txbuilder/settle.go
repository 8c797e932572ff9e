package txbuilder

import (
	"bytes"
	"context"

	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/mt"
	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/havocworlds/shuffle/go-offchain/pkg/log"
	"github.com/havocworlds/shuffle/go-offchain/pkg/metrics"
	"github.com/pkg/errors"
)

// Phase tells a BuildFunc which settlement pass it is running.
type Phase int

const (
	// Draft builds with a placeholder for the fee-dependent output.
	Draft Phase = iota
	// Final builds with the residual computed from the draft.
	Final
)

func (p Phase) String() string {
	if p == Draft {
		return "draft"
	}
	return "final"
}

// DraftPlaceholder is the amount a fee-dependent output carries in the draft.
const DraftPlaceholder uint64 = 0

// BuildFunc builds a transaction whose fee-dependent output carries target
// lovelace.
type BuildFunc func(ctx context.Context, phase Phase, target uint64) (*Tx, error)

// ResidualFunc derives the final amount of the fee-dependent output from a
// balanced draft.
type ResidualFunc func(draft *Tx) (uint64, error)

// Settle runs the draft and final passes. The final transaction must spend
// and read exactly the utxos the draft did; otherwise the residual was
// computed against a different fee and ErrInputSetChanged is returned.
func Settle(ctx context.Context, build BuildFunc, residual ResidualFunc) (*Tx, error) {
	metrics.SettlementPass(Draft.String())
	draft, err := build(ctx, Draft, DraftPlaceholder)
	if err != nil {
		return nil, errors.Wrap(err, "draft build")
	}
	target, err := residual(draft)
	if err != nil {
		return nil, err
	}

	metrics.SettlementPass(Final.String())
	final, err := build(ctx, Final, target)
	if err != nil {
		return nil, errors.Wrap(err, "final build")
	}

	draftRoot, err := InputSetRoot(draft)
	if err != nil {
		return nil, err
	}
	finalRoot, err := InputSetRoot(final)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(draftRoot, finalRoot) {
		log.Warnw("Settlement input set changed",
			"draft_inputs", len(draft.Inputs),
			"final_inputs", len(final.Inputs),
		)
		return nil, ErrInputSetChanged
	}
	log.Debugw("Settled transaction", "draft_fee", draft.Fee, "final_fee", final.Fee, "residual", target)
	return final, nil
}

// InputSetRoot fingerprints the spending and reference inputs of tx.
func InputSetRoot(tx *Tx) ([]byte, error) {
	return mt.InputSetRoot(types.Refs(tx.Inputs), types.Refs(tx.ReferenceInputs))
}

// ResidualLovelace is what is left of request once the derived outputs and
// the fee are paid.
func ResidualLovelace(request uint64, derived []uint64, fee uint64) (uint64, error) {
	spent := fee
	for _, d := range derived {
		spent += d
	}
	if spent > request {
		return 0, &ResidualUnderflowError{Request: request, Spent: spent}
	}
	return request - spent, nil
}

// RequireOutputMin checks that out can stand as an output carrying exactly
// residual lovelace.
func RequireOutputMin(p *ProtocolParams, out Output, residual uint64) (uint64, error) {
	out.Assets = out.Assets.WithLovelace(residual)
	min, err := out.MinLovelace(p)
	if err != nil {
		return 0, err
	}
	if residual < min {
		return 0, &ResidualBelowMinError{Residual: residual, Min: min}
	}
	return residual, nil
}
