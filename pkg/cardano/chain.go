// Package cardano bundles the chain providers a protocol action needs.
package cardano

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/db"
	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/kupo"
	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/ogmios"
	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/havocworlds/shuffle/go-offchain/pkg/log"
	"github.com/havocworlds/shuffle/go-offchain/pkg/txbuilder"
	"github.com/pkg/errors"
)

type UtxoProvider interface {
	UtxosAt(ctx context.Context, addr types.Address) ([]types.Utxo, error)
	TxOutputs(ctx context.Context, txHash types.Hash) ([]types.Utxo, error)
}

type ParamsProvider interface {
	ProtocolParams(ctx context.Context) (*txbuilder.ProtocolParams, error)
}

type Submitter interface {
	SubmitTx(ctx context.Context, tx []byte) (types.Hash, error)
}

// Chain is passed explicitly to every action; nothing about the network or
// the providers is global.
type Chain struct {
	Network   types.Network
	Utxos     UtxoProvider
	Params    ParamsProvider
	Submitter Submitter
	// Evaluator is optional; without it redeemers carry default budgets.
	Evaluator txbuilder.Evaluator

	closers []func() error
}

type KupmiosConfig struct {
	KupoURL     string
	KupoRetries uint64
	KupoTimeout time.Duration
	OgmiosURL   string
	ParamsTTL   time.Duration
}

// NewKupmios reads utxos from Kupo and uses Ogmios for everything else.
func NewKupmios(network types.Network, cfg KupmiosConfig) *Chain {
	k := kupo.New(cfg.KupoURL, kupo.WithRetries(cfg.KupoRetries), kupo.WithTimeout(cfg.KupoTimeout))
	o := ogmios.New(cfg.OgmiosURL, cfg.ParamsTTL)
	return &Chain{
		Network:   network,
		Utxos:     k,
		Params:    o,
		Submitter: o,
		Evaluator: o,
		closers:   []func() error{o.Close},
	}
}

// NewDbSync reads utxos from a db-sync database and uses Ogmios for
// everything else.
func NewDbSync(ctx context.Context, network types.Network, dsn, ogmiosURL string, paramsTTL time.Duration) (*Chain, error) {
	s, err := db.NewStorage(ctx, dsn)
	if err != nil {
		return nil, err
	}
	o := ogmios.New(ogmiosURL, paramsTTL)
	return &Chain{
		Network:   network,
		Utxos:     s,
		Params:    o,
		Submitter: o,
		Evaluator: o,
		closers:   []func() error{o.Close, s.Close},
	}, nil
}

func (c *Chain) Close() {
	for _, cl := range c.closers {
		if err := cl(); err != nil {
			log.Warnw("Closing chain provider", "error", err)
		}
	}
}

// Submit serializes and submits tx.
func (c *Chain) Submit(ctx context.Context, tx *txbuilder.Tx) (types.Hash, error) {
	raw, err := tx.CBOR()
	if err != nil {
		return nil, err
	}
	h, err := c.Submitter.SubmitTx(ctx, raw)
	if err != nil {
		return nil, errors.Wrap(err, "submit transaction")
	}
	log.Infow("Submitted transaction", "tx_hash", h.String(), "fee", tx.Fee, "size", len(raw))
	return h, nil
}

// AwaitTx polls until the outputs of txHash show up as unspent.
func (c *Chain) AwaitTx(ctx context.Context, txHash types.Hash, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	b.MaxInterval = 20 * time.Second
	b.MaxElapsedTime = timeout

	op := func() error {
		utxos, err := c.Utxos.TxOutputs(ctx, txHash)
		if err != nil {
			return err
		}
		if len(utxos) == 0 {
			return errors.Errorf("transaction %s not seen yet", txHash)
		}
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return errors.Wrapf(err, "await transaction %s", txHash)
	}
	log.Infow("Transaction confirmed", "tx_hash", txHash.String())
	return nil
}

// UtxosWithAsset returns the utxos at addr holding asset.
func (c *Chain) UtxosWithAsset(ctx context.Context, addr types.Address, asset types.AssetID) ([]types.Utxo, error) {
	all, err := c.Utxos.UtxosAt(ctx, addr)
	if err != nil {
		return nil, err
	}
	var out []types.Utxo
	for _, u := range all {
		if u.Assets.Has(asset) {
			out = append(out, u)
		}
	}
	return out, nil
}
