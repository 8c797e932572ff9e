package shuffle

import (
	"context"

	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano"
	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/plutus"
	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/havocworlds/shuffle/go-offchain/pkg/deploy"
	"github.com/havocworlds/shuffle/go-offchain/pkg/log"
	"github.com/havocworlds/shuffle/go-offchain/pkg/metrics"
	"github.com/havocworlds/shuffle/go-offchain/pkg/selection"
	"github.com/havocworlds/shuffle/go-offchain/pkg/txbuilder"
	"github.com/havocworlds/shuffle/go-offchain/pkg/wallet"
	"github.com/pkg/errors"
)

var (
	ErrNotDeployed         = errors.New("reference scripts are not deployed")
	ErrAlreadyDeployed     = errors.New("reference scripts are already deployed")
	ErrNoSettingsInitUtxo  = errors.New("no settings init utxo; run prep-init first")
	ErrSettingsInitialized = errors.New("settings are already initialized")
	ErrNoProtocolUtxo      = errors.New("no utxo at the protocol address")
	ErrNoRequest           = errors.New("no shuffle request in the vault")
	ErrNoVaultUtxo         = errors.New("no administrable utxo in the vault")
	ErrNothingToShuffle    = errors.New("no tokens to shuffle")
)

// Options are the tunables of the protocol actions.
type Options struct {
	FundingFloor         uint64
	MaxToShuffle         int64
	SettingsInitLovelace uint64
	RequestLovelace      uint64
	MaxIterations        int
	ExUnits              txbuilder.ExUnits
	// Evaluate asks the chain's evaluator for execution budgets.
	Evaluate bool
	// DryRun builds and signs but does not submit.
	DryRun bool
}

func DefaultOptions() Options {
	return Options{
		FundingFloor:         selection.DefaultFundingFloor,
		MaxToShuffle:         5,
		SettingsInitLovelace: 5_000_000,
		RequestLovelace:      20_000_000,
		MaxIterations:        txbuilder.DefaultMaxIterations,
		ExUnits:              txbuilder.DefaultExUnits,
		Evaluate:             true,
	}
}

// Env is what an action runs against. Acting as a different party means
// building a different Env.
type Env struct {
	Chain      *cardano.Chain
	Wallet     *wallet.Wallet
	Protocol   *Protocol
	Deployment *deploy.Deployment
	Options    Options
	// Cosigners sign the required keys Wallet does not hold.
	Cosigners []*wallet.Wallet
}

// Result describes a built, signed and (unless DryRun) submitted transaction.
type Result struct {
	Action string
	TxHash types.Hash
	Tx     *txbuilder.Tx
}

func (e *Env) builder(ctx context.Context) (*txbuilder.Builder, error) {
	params, err := e.Chain.Params.ProtocolParams(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "query protocol parameters")
	}
	return txbuilder.New(params), nil
}

func (e *Env) complete(ctx context.Context, b *txbuilder.Builder, exclude ...types.UtxoRef) (*txbuilder.Tx, error) {
	opts := txbuilder.CompleteOptions{
		Exclude:        exclude,
		DefaultExUnits: e.Options.ExUnits,
		MaxIterations:  e.Options.MaxIterations,
	}
	if e.Options.Evaluate {
		opts.Evaluator = e.Chain.Evaluator
	}
	return b.Complete(ctx, e.Wallet, opts)
}

// reserved lists the wallet utxos no action may spend by accident.
func (e *Env) reserved() []types.UtxoRef {
	if e.Deployment.SettingsInitUtxo == nil {
		return nil
	}
	return []types.UtxoRef{e.Deployment.SettingsInitUtxo.UtxoRef}
}

// run builds a transaction, signs it and submits it unless DryRun is set.
func (e *Env) run(ctx context.Context, action string, build func(ctx context.Context) (*txbuilder.Tx, error)) (*Result, error) {
	logger := log.With("action", action, "wallet", string(e.Wallet.Address()))
	tx, err := build(ctx)
	if err == nil {
		err = e.sign(tx)
	}
	metrics.TxBuilt(action, err)
	if err != nil {
		logger.Warnw("Building transaction failed", "error", err)
		return nil, errors.Wrap(err, action)
	}

	res := &Result{Action: action, Tx: tx}
	if res.TxHash, err = tx.Hash(); err != nil {
		return nil, err
	}
	logger.Infow("Built transaction",
		"tx_hash", res.TxHash.String(),
		"fee", tx.Fee,
		"inputs", len(tx.Inputs),
		"outputs", len(tx.Outputs),
		"dry_run", e.Options.DryRun,
	)
	if e.Options.DryRun {
		return res, nil
	}
	if _, err := e.Chain.Submit(ctx, tx); err != nil {
		return nil, errors.Wrap(err, action)
	}
	return res, nil
}

func (e *Env) sign(tx *txbuilder.Tx) error {
	if len(e.Cosigners) == 0 {
		return e.Wallet.SignTx(tx)
	}
	for _, w := range append([]*wallet.Wallet{e.Wallet}, e.Cosigners...) {
		if err := w.PartialSignTx(tx); err != nil {
			return err
		}
	}
	if missing := tx.MissingWitnesses(); len(missing) > 0 {
		return errors.Errorf("no signer holds key %s", missing[0])
	}
	return nil
}

// settle runs both settlement passes. The residual must be enough for the
// draft's output at index out on its own.
func (e *Env) settle(ctx context.Context, out int, build txbuilder.BuildFunc, residual txbuilder.ResidualFunc) (*txbuilder.Tx, error) {
	params, err := e.Chain.Params.ProtocolParams(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "query protocol parameters")
	}
	return txbuilder.Settle(ctx, build, func(draft *txbuilder.Tx) (uint64, error) {
		r, err := residual(draft)
		if err != nil {
			return 0, err
		}
		return txbuilder.RequireOutputMin(params, draft.Outputs[out], r)
	})
}

func (e *Env) requireDeployed() error {
	if !e.Deployment.Deployed() {
		return ErrNotDeployed
	}
	return nil
}

// refScript finds the deployed reference script marked by beacon.
func (e *Env) refScript(ctx context.Context, beacon types.AssetID) (types.Utxo, error) {
	utxos, err := e.Chain.Utxos.UtxosAt(ctx, e.Protocol.RefscriptsAddr)
	if err != nil {
		return types.Utxo{}, err
	}
	return selection.RequireByAsset(utxos, beacon, "refscripts address")
}

func (e *Env) settingsUtxo(ctx context.Context) (types.Utxo, error) {
	utxos, err := e.Chain.Utxos.UtxosAt(ctx, e.Protocol.SettingsAddr)
	if err != nil {
		return types.Utxo{}, err
	}
	return selection.RequireByAsset(utxos, e.Protocol.SettingsBeacon, "settings address")
}

// protocolUtxo picks the canonically first protocol utxo; any will do.
func (e *Env) protocolUtxo(ctx context.Context, skip ...types.UtxoRef) (types.Utxo, error) {
	utxos, err := e.Chain.Utxos.UtxosAt(ctx, e.Protocol.ProtocolAddr)
	if err != nil {
		return types.Utxo{}, err
	}
	utxos = txbuilder.SortCanonically(types.FilterOut(utxos, skip...))
	if len(utxos) == 0 {
		return types.Utxo{}, ErrNoProtocolUtxo
	}
	return utxos[0], nil
}

// Request is a vault utxo carrying a shuffle request.
type Request struct {
	Utxo  types.Utxo `json:"utxo"`
	Datum VaultDatum `json:"datum"`
}

// VaultContents splits the vault utxos into requests and the pool of
// shuffled tokens, both in canonical order. Pool utxos carry no datum;
// utxos with a datum that is not a vault datum belong to neither.
func VaultContents(ctx context.Context, utxos cardano.UtxoProvider, p *Protocol) ([]Request, []types.Utxo, error) {
	all, err := utxos.UtxosAt(ctx, p.VaultAddr)
	if err != nil {
		return nil, nil, err
	}
	var reqs []Request
	var pool []types.Utxo
	for _, u := range txbuilder.SortCanonically(all) {
		if len(u.Datum) == 0 {
			pool = append(pool, u)
			continue
		}
		d, err := DecodeVaultDatum(p.Network, u.Datum)
		if err != nil {
			log.Debugw("Skipping vault utxo with foreign datum", "utxo", u.String(), "error", err)
			continue
		}
		reqs = append(reqs, Request{Utxo: u, Datum: d})
	}
	return reqs, pool, nil
}

func (e *Env) requests(ctx context.Context) ([]Request, []types.Utxo, error) {
	return VaultContents(ctx, e.Chain.Utxos, e.Protocol)
}

// findRequest returns the request at ref, or the first one accepted by keep
// when ref is nil.
func (e *Env) findRequest(ctx context.Context, ref *types.UtxoRef, keep func(Request) bool) (Request, error) {
	reqs, _, err := e.requests(ctx)
	if err != nil {
		return Request{}, err
	}
	for _, r := range reqs {
		if ref != nil && r.Utxo.Equal(*ref) {
			return r, nil
		}
		if ref == nil && (keep == nil || keep(r)) {
			return r, nil
		}
	}
	if ref != nil {
		return Request{}, errors.Wrapf(ErrNoRequest, "at %s", ref)
	}
	return Request{}, ErrNoRequest
}

// refIndex is the position of target among the reference inputs refs.
func refIndex(refs []types.Utxo, target types.Utxo) (uint64, error) {
	order, err := txbuilder.OrderCanonically(refs)
	if err != nil {
		return 0, err
	}
	idx, ok := order.Index(target.UtxoRef)
	if !ok {
		return 0, &txbuilder.UnresolvedDependencyError{Ref: target.UtxoRef}
	}
	return idx, nil
}

// redeemer declares r as depending on inputs.
func redeemer(inputs []types.Utxo, r func(idxs []uint64) Redeemer) *txbuilder.RedeemerBuilder {
	return txbuilder.Selected(inputs, func(idxs []uint64) plutus.Data {
		return r(idxs).Data()
	})
}

func voidDatum() []byte {
	b, _ := plutus.Encode(plutus.Void())
	return b
}

// inlineDatum returns the datum of u, or void when it has none.
func inlineDatum(u types.Utxo) []byte {
	if len(u.Datum) > 0 {
		return u.Datum
	}
	return voidDatum()
}

// shuffleQty counts the S2 tokens in a bundle.
func (p *Protocol) shuffleQty(a types.Assets) uint64 {
	return a.ByPolicy(p.S2Policy).Total()
}

func mintOne(ids ...types.AssetID) types.Mint {
	m := types.Mint{}
	for _, id := range ids {
		m[id]++
	}
	return m
}
