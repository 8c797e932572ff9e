package txbuilder

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/havocworlds/shuffle/go-offchain/pkg/log"
	"github.com/havocworlds/shuffle/go-offchain/pkg/metrics"
	"github.com/pkg/errors"
)

const (
	DefaultMaxIterations = 10
	minCollateral        = 5_000_000
)

var DefaultExUnits = ExUnits{Mem: 2_000_000, Steps: 1_000_000_000}

// Funds is the wallet a transaction is balanced against.
type Funds interface {
	Address() types.Address
	Utxos(ctx context.Context) ([]types.Utxo, error)
}

type Evaluation struct {
	Tag    RedeemerTag
	Index  uint32
	Budget ExUnits
}

// Evaluator runs the scripts of a serialized transaction and reports the
// budget each redeemer needs.
type Evaluator interface {
	EvaluateTx(ctx context.Context, tx []byte) ([]Evaluation, error)
}

type CompleteOptions struct {
	// ChangeAddress defaults to the wallet address.
	ChangeAddress types.Address
	// Exclude lists wallet utxos that must neither fund the transaction nor
	// serve as collateral.
	Exclude        []types.UtxoRef
	Evaluator      Evaluator
	DefaultExUnits ExUnits
	MaxIterations  int
}

// Complete balances the transaction against funds. Every iteration re-sorts
// the inputs and re-resolves every redeemer, so indices stay correct when
// wallet utxos are added.
func (b *Builder) Complete(ctx context.Context, funds Funds, opts CompleteOptions) (*Tx, error) {
	if b.err != nil {
		return nil, b.err
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.DefaultExUnits == (ExUnits{}) {
		opts.DefaultExUnits = DefaultExUnits
	}
	if opts.ChangeAddress == "" {
		opts.ChangeAddress = funds.Address()
	}

	walletUtxos, err := funds.Utxos(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "query wallet utxos")
	}
	available := types.FilterOut(walletUtxos, opts.Exclude...)
	pool := sortPool(types.FilterOut(available, b.explicitRefs()...))

	var collateral *types.Utxo
	if b.needsCollateral() {
		c, ok := pickCollateral(available)
		if !ok {
			return nil, ErrNoCollateral
		}
		collateral = &c
	}

	outputs, err := b.liftOutputs()
	if err != nil {
		return nil, err
	}

	budgets := map[string]ExUnits{}
	tx, err := b.balance(pool, outputs, collateral, budgets, opts)
	if err != nil || opts.Evaluator == nil || len(tx.Redeemers) == 0 {
		return tx, err
	}

	raw, err := tx.CBOR()
	if err != nil {
		return nil, err
	}
	evals, err := opts.Evaluator.EvaluateTx(ctx, raw)
	if err != nil {
		return nil, errors.Wrap(err, "evaluate transaction")
	}
	for _, ev := range evals {
		for _, r := range tx.Redeemers {
			if r.Tag == ev.Tag && r.Index == ev.Index {
				budgets[r.Target] = ev.Budget
			}
		}
	}
	return b.balance(pool, outputs, collateral, budgets, opts)
}

// liftOutputs raises every output below the minimum to the minimum.
func (b *Builder) liftOutputs() ([]Output, error) {
	out := make([]Output, len(b.outputs))
	for i, o := range b.outputs {
		min, err := o.MinLovelace(b.params)
		if err != nil {
			return nil, errors.Wrapf(err, "output %d", i)
		}
		if o.Assets.Lovelace() < min {
			o.Assets = o.Assets.WithLovelace(min)
		}
		out[i] = o
	}
	return out, nil
}

func (b *Builder) balance(pool []types.Utxo, outputs []Output, collateral *types.Utxo,
	budgets map[string]ExUnits, opts CompleteOptions) (*Tx, error) {

	minted, burned := b.mint.Split()
	var withdrawn, refunds, deposits uint64
	for _, w := range b.withdrawals {
		withdrawn += w.Amount
	}
	for _, c := range b.certs {
		switch c.Kind {
		case CertRegister:
			deposits += b.params.StakeKeyDeposit
		case CertDeregister:
			refunds += b.params.StakeKeyDeposit
		}
	}
	inflowFixed := minted.Add(types.NewLovelace(withdrawn + refunds))
	outflowFixed := burned.Add(types.NewLovelace(deposits))
	for _, o := range outputs {
		outflowFixed = outflowFixed.Add(o.Assets)
	}

	explicit := make([]types.Utxo, len(b.inputs))
	for i, in := range b.inputs {
		explicit[i] = in.utxo
	}

	var selected []types.Utxo
	used := map[string]bool{}
	var fee uint64

	for iter := 1; iter <= opts.MaxIterations; iter++ {
		inputs := append(append([]types.Utxo{}, explicit...), selected...)
		inflow := types.SumAssets(inputs).Add(inflowFixed)
		outflow := outflowFixed.Add(types.NewLovelace(fee))
		deficit, surplus := diffAssets(inflow, outflow)

		if !deficit.IsZero() {
			u, ok := selectUtxo(pool, used, deficit)
			if !ok {
				return nil, &InsufficientFundsError{Missing: deficit}
			}
			used[u.String()] = true
			selected = append(selected, u)
			continue
		}

		txFee := fee
		var change *Output
		if !surplus.IsZero() {
			c := Output{Address: opts.ChangeAddress, Assets: surplus}
			min, err := c.MinLovelace(b.params)
			if err != nil {
				return nil, err
			}
			switch {
			case surplus.Lovelace() >= min:
				change = &c
			case surplus.HasTokens():
				u, ok := selectUtxo(pool, used, types.NewLovelace(min-surplus.Lovelace()))
				if !ok {
					return nil, &InsufficientFundsError{Missing: types.NewLovelace(min - surplus.Lovelace())}
				}
				used[u.String()] = true
				selected = append(selected, u)
				continue
			default:
				// too little to stand alone as an output
				txFee += surplus.Lovelace()
			}
		}

		tx, err := b.assemble(inputs, outputs, change, txFee, collateral, budgets, opts)
		if err != nil {
			return nil, err
		}
		required, err := tx.MinFee(b.params)
		if err != nil {
			return nil, err
		}
		if required <= txFee {
			size, err := tx.EstimatedSize()
			if err != nil {
				return nil, err
			}
			if uint64(size) > b.params.MaxTxSize {
				return nil, errors.Wrapf(ErrTxTooLarge, "%d bytes", size)
			}
			metrics.BalanceIterations(iter)
			log.Debugw("Balanced transaction",
				"inputs", len(tx.Inputs),
				"wallet_inputs", len(selected),
				"outputs", len(tx.Outputs),
				"redeemers", len(tx.Redeemers),
				"fee", tx.Fee,
				"size", size,
				"iterations", iter,
			)
			return tx, nil
		}
		fee = required
	}
	return nil, errors.Wrapf(ErrNotConverged, "after %d iterations over inputs %s", opts.MaxIterations, b.describe())
}

func (b *Builder) assemble(inputs []types.Utxo, outputs []Output, change *Output, fee uint64,
	collateral *types.Utxo, budgets map[string]ExUnits, opts CompleteOptions) (*Tx, error) {

	order, err := OrderCanonically(inputs)
	if err != nil {
		return nil, err
	}
	if _, err := OrderCanonically(b.refInputs); err != nil {
		return nil, err
	}

	tx := &Tx{
		Inputs:          SortCanonically(inputs),
		ReferenceInputs: SortCanonically(b.refInputs),
		Outputs:         append([]Output{}, outputs...),
		Fee:             fee,
		Mint:            types.Mint{},
		Withdrawals:     sortWithdrawals(b.withdrawals),
		Certificates:    b.certs,
		RequiredSigners: b.signers,
		Scripts:         b.scripts,
		Metadata:        b.metadata,
		ChangeIndex:     -1,
	}
	for id, q := range b.mint {
		if q != 0 {
			tx.Mint[id] = q
		}
	}
	if change != nil {
		tx.ChangeIndex = len(tx.Outputs)
		tx.Outputs = append(tx.Outputs, *change)
	}

	budget := func(target string) ExUnits {
		if u, ok := budgets[target]; ok {
			return u
		}
		return opts.DefaultExUnits
	}
	addRedeemer := func(tag RedeemerTag, index int, rb *RedeemerBuilder, target string) error {
		data, err := rb.Resolve(order)
		if err != nil {
			return errors.Wrapf(err, "%s redeemer for %s", tag, target)
		}
		tx.Redeemers = append(tx.Redeemers, Redeemer{
			Tag:     tag,
			Index:   uint32(index),
			Data:    data,
			ExUnits: budget(target),
			Target:  target,
		})
		return nil
	}

	redeemerFor := make(map[string]*RedeemerBuilder, len(b.inputs))
	for _, in := range b.inputs {
		redeemerFor[in.utxo.String()] = in.redeemer
	}
	for i, in := range tx.Inputs {
		if rb := redeemerFor[in.String()]; rb != nil {
			if err := addRedeemer(TagSpend, i, rb, in.String()); err != nil {
				return nil, err
			}
		}
	}
	for i, p := range tx.Mint.Policies() {
		if rb := b.mintRedeemers[p]; rb != nil {
			if err := addRedeemer(TagMint, i, rb, "mint:"+p); err != nil {
				return nil, err
			}
		}
	}
	for i, w := range tx.Withdrawals {
		if w.Redeemer != nil {
			if err := addRedeemer(TagReward, i, w.Redeemer, "reward:"+string(w.Address)); err != nil {
				return nil, err
			}
		}
	}
	for i, c := range tx.Certificates {
		if c.Redeemer != nil {
			if err := addRedeemer(TagCert, i, c.Redeemer, fmt.Sprintf("cert:%d", i)); err != nil {
				return nil, err
			}
		}
	}

	total := tx.TotalExUnits()
	if total.Mem > b.params.MaxTxExUnits.Mem || total.Steps > b.params.MaxTxExUnits.Steps {
		return nil, errors.Wrapf(ErrExUnitsExceeded, "mem=%d steps=%d", total.Mem, total.Steps)
	}
	if len(tx.Redeemers) > 0 {
		rb, err := tx.redeemersCBOR()
		if err != nil {
			return nil, err
		}
		tx.ScriptDataHash, err = scriptDataHash(rb, b.params.CostModelV3)
		if err != nil {
			return nil, err
		}
	}

	if collateral != nil {
		if err := b.setCollateral(tx, *collateral); err != nil {
			return nil, err
		}
	}
	return tx, nil
}

func (b *Builder) setCollateral(tx *Tx, c types.Utxo) error {
	required := (tx.Fee*b.params.CollateralPercent + 99) / 100
	if c.Lovelace() < required {
		return errors.Wrapf(ErrNoCollateral, "collateral %s holds %d, need %d", c, c.Lovelace(), required)
	}
	tx.Collateral = []types.Utxo{c}
	ret := Output{Address: c.Address, Assets: c.Assets.WithLovelace(c.Lovelace() - required)}
	min, err := ret.MinLovelace(b.params)
	if err != nil {
		return err
	}
	if ret.Assets.Lovelace() >= min {
		tx.CollateralReturn = &ret
		tx.TotalCollateral = required
		return nil
	}
	if c.Assets.HasTokens() {
		return errors.Wrapf(ErrNoCollateral, "collateral %s cannot return its tokens", c)
	}
	// forfeit the whole utxo
	tx.TotalCollateral = c.Lovelace()
	return nil
}

func diffAssets(in, out types.Assets) (deficit, surplus types.Assets) {
	deficit, surplus = types.Assets{}, types.Assets{}
	for id, q := range out {
		if in[id] < q {
			deficit[id] = q - in[id]
		}
	}
	for id, q := range in {
		if q > out[id] {
			surplus[id] = q - out[id]
		}
	}
	return deficit, surplus
}

// sortPool orders wallet utxos by lovelace, largest first, so that coin
// selection needs as few inputs as possible.
func sortPool(pool []types.Utxo) []types.Utxo {
	out := append([]types.Utxo{}, pool...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Lovelace() != out[j].Lovelace() {
			return out[i].Lovelace() > out[j].Lovelace()
		}
		return compareRefs(out[i].UtxoRef, out[j].UtxoRef) < 0
	})
	return out
}

func selectUtxo(pool []types.Utxo, used map[string]bool, need types.Assets) (types.Utxo, bool) {
	for _, id := range need.IDs() {
		if id.IsLovelace() {
			continue
		}
		for _, u := range pool {
			if !used[u.String()] && u.Assets.Has(id) {
				return u, true
			}
		}
	}
	if need.Lovelace() == 0 {
		return types.Utxo{}, false
	}
	for _, u := range pool {
		if !used[u.String()] {
			return u, true
		}
	}
	return types.Utxo{}, false
}

func pickCollateral(utxos []types.Utxo) (types.Utxo, bool) {
	var best *types.Utxo
	for i, u := range utxos {
		if u.Assets.HasTokens() || u.Lovelace() < minCollateral {
			continue
		}
		cred, err := u.Address.PaymentCredential()
		if err != nil || cred.Script {
			continue
		}
		if best == nil || u.Lovelace() > best.Lovelace() {
			best = &utxos[i]
		}
	}
	if best == nil {
		return types.Utxo{}, false
	}
	return *best, true
}

func sortWithdrawals(ws []Withdrawal) []Withdrawal {
	out := append([]Withdrawal{}, ws...)
	sort.SliceStable(out, func(i, j int) bool {
		return bytes.Compare(out[i].raw, out[j].raw) < 0
	})
	return out
}
