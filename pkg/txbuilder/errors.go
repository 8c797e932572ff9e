package txbuilder

import (
	"fmt"
	"strings"

	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/pkg/errors"
)

var (
	// ErrInputSetChanged is returned when the final settlement pass spends or
	// reads a different set of utxos than the draft it was derived from.
	ErrInputSetChanged    = errors.New("input set changed between draft and final build")
	ErrNotConverged       = errors.New("transaction balancing did not converge")
	ErrNoCollateral       = errors.New("no wallet utxo can serve as collateral")
	ErrTxTooLarge         = errors.New("transaction exceeds the maximum size")
	ErrExUnitsExceeded    = errors.New("transaction exceeds the maximum execution units")
	ErrMissingScriptInput = errors.New("script input declared without a redeemer")
)

type DuplicateUtxoError struct {
	Ref types.UtxoRef
}

func (e *DuplicateUtxoError) Error() string {
	return fmt.Sprintf("utxo %s appears more than once", e.Ref)
}

// UnresolvedDependencyError means a redeemer depends on a utxo that is not
// among the transaction's spending inputs.
type UnresolvedDependencyError struct {
	Ref types.UtxoRef
}

func (e *UnresolvedDependencyError) Error() string {
	return fmt.Sprintf("redeemer dependency %s is not a spending input", e.Ref)
}

type InsufficientFundsError struct {
	Missing types.Assets
}

func (e *InsufficientFundsError) Error() string {
	parts := make([]string, 0, len(e.Missing))
	for _, id := range e.Missing.IDs() {
		parts = append(parts, fmt.Sprintf("%s=%d", id, e.Missing[id]))
	}
	return "insufficient funds, missing " + strings.Join(parts, ", ")
}

type ResidualUnderflowError struct {
	Request uint64
	Spent   uint64
}

func (e *ResidualUnderflowError) Error() string {
	return fmt.Sprintf("request holds %d lovelace but outputs and fee need %d", e.Request, e.Spent)
}

// ResidualBelowMinError means the residual is too small for the output that
// carries it.
type ResidualBelowMinError struct {
	Residual uint64
	Min      uint64
}

func (e *ResidualBelowMinError) Error() string {
	return fmt.Sprintf("residual of %d lovelace is below the %d lovelace its output needs", e.Residual, e.Min)
}
