// Package kupo queries a Kupo chain index for unspent outputs.
package kupo

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/havocworlds/shuffle/go-offchain/pkg/log"
	"github.com/havocworlds/shuffle/go-offchain/pkg/metrics"
	"github.com/jellydator/ttlcache/v3"
	"github.com/pkg/errors"
)

const provider = "kupo"

// datums and scripts never change once on chain
const cacheTTL = time.Hour

type Client struct {
	url     string
	http    *http.Client
	retries uint64

	datums  *ttlcache.Cache[string, []byte]
	scripts *ttlcache.Cache[string, *types.Script]
}

type Option func(*Client)

func WithRetries(n uint64) Option {
	return func(c *Client) { c.retries = n }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func New(url string, opts ...Option) *Client {
	c := &Client{
		url:     strings.TrimRight(url, "/"),
		http:    cleanhttp.DefaultPooledClient(),
		retries: 3,
		datums:  ttlcache.New[string, []byte](ttlcache.WithTTL[string, []byte](cacheTTL)),
		scripts: ttlcache.New[string, *types.Script](ttlcache.WithTTL[string, *types.Script](cacheTTL)),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// HTTPClient exposes the underlying client, mostly for tests.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

type match struct {
	TransactionID string `json:"transaction_id"`
	OutputIndex   uint32 `json:"output_index"`
	Address       string `json:"address"`
	Value         struct {
		Coins  uint64            `json:"coins"`
		Assets map[string]uint64 `json:"assets"`
	} `json:"value"`
	DatumHash  *string `json:"datum_hash"`
	DatumType  *string `json:"datum_type"`
	ScriptHash *string `json:"script_hash"`
}

type datumResponse struct {
	Datum string `json:"datum"`
}

type scriptResponse struct {
	Language string `json:"language"`
	Script   string `json:"script"`
}

// get fetches path and decodes the JSON body into out. It returns false when
// Kupo answers with null, which it does for unknown datums and scripts.
func (c *Client) get(ctx context.Context, path string, out interface{}) (found bool, err error) {
	defer func() { metrics.ProviderRequest(provider, err) }()

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+path, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return errors.Wrapf(err, "GET %s", path)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return errors.Wrap(err, "read kupo response")
		}
		switch {
		case resp.StatusCode >= 500:
			return errors.Errorf("kupo %s: %s", path, resp.Status)
		case resp.StatusCode >= 400:
			return backoff.Permanent(errors.Errorf("kupo %s: %s: %s", path, resp.Status, body))
		}
		if strings.TrimSpace(string(body)) == "null" {
			found = false
			return nil
		}
		found = true
		return backoff.Permanent(json.Unmarshal(body, out))
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.retries), ctx)
	notify := func(err error, wait time.Duration) {
		log.Warnw("Kupo request failed, retrying", "path", path, "wait", wait, "error", err)
	}
	if err = backoff.RetryNotify(op, policy, notify); err != nil {
		return false, err
	}
	return found, nil
}

// UtxosAt returns the unspent outputs at addr with datums and reference
// scripts resolved.
func (c *Client) UtxosAt(ctx context.Context, addr types.Address) ([]types.Utxo, error) {
	return c.matches(ctx, string(addr))
}

// TxOutputs returns the unspent outputs produced by a transaction.
func (c *Client) TxOutputs(ctx context.Context, txHash types.Hash) ([]types.Utxo, error) {
	return c.matches(ctx, "*@"+txHash.String())
}

func (c *Client) matches(ctx context.Context, pattern string) ([]types.Utxo, error) {
	var ms []match
	if _, err := c.get(ctx, "/matches/"+pattern+"?unspent", &ms); err != nil {
		return nil, err
	}
	utxos := make([]types.Utxo, 0, len(ms))
	for _, m := range ms {
		u, err := c.toUtxo(ctx, m)
		if err != nil {
			return nil, err
		}
		utxos = append(utxos, u)
	}
	return utxos, nil
}

func (c *Client) toUtxo(ctx context.Context, m match) (types.Utxo, error) {
	ref, err := types.NewUtxoRef(m.TransactionID, m.OutputIndex)
	if err != nil {
		return types.Utxo{}, err
	}
	assets := types.Assets{}
	if m.Value.Coins > 0 {
		assets[types.Lovelace] = m.Value.Coins
	}
	for key, q := range m.Value.Assets {
		// "policy.name", or just "policy" for an empty asset name
		id, err := types.ParseAssetID(strings.Replace(key, ".", "", 1))
		if err != nil {
			return types.Utxo{}, errors.Wrapf(err, "asset %q of %s", key, ref)
		}
		if q > 0 {
			assets[id] = q
		}
	}
	u := types.Utxo{UtxoRef: ref, Address: types.Address(m.Address), Assets: assets}

	if m.DatumHash != nil {
		h, err := types.HashFromHex(*m.DatumHash)
		if err != nil {
			return types.Utxo{}, err
		}
		if m.DatumType != nil && *m.DatumType == "inline" {
			if u.Datum, err = c.Datum(ctx, h); err != nil {
				return types.Utxo{}, err
			}
		} else {
			u.DatumHash = h
		}
	}
	if m.ScriptHash != nil {
		h, err := types.HashFromHex(*m.ScriptHash)
		if err != nil {
			return types.Utxo{}, err
		}
		if u.ScriptRef, err = c.Script(ctx, h); err != nil {
			return types.Utxo{}, err
		}
	}
	return u, nil
}

// Datum resolves a datum hash.
func (c *Client) Datum(ctx context.Context, hash types.Hash) ([]byte, error) {
	key := hash.String()
	if item := c.datums.Get(key); item != nil {
		return item.Value(), nil
	}
	var resp datumResponse
	found, err := c.get(ctx, "/datums/"+key, &resp)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Errorf("datum %s not found", key)
	}
	d, err := hex.DecodeString(resp.Datum)
	if err != nil {
		return nil, errors.Wrapf(err, "decode datum %s", key)
	}
	c.datums.Set(key, d, ttlcache.DefaultTTL)
	return d, nil
}

// Script resolves a script hash.
func (c *Client) Script(ctx context.Context, hash types.Hash) (*types.Script, error) {
	key := hash.String()
	if item := c.scripts.Get(key); item != nil {
		return item.Value(), nil
	}
	var resp scriptResponse
	found, err := c.get(ctx, "/scripts/"+key, &resp)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Errorf("script %s not found", key)
	}
	raw, err := hex.DecodeString(resp.Script)
	if err != nil {
		return nil, errors.Wrapf(err, "decode script %s", key)
	}
	var s *types.Script
	switch resp.Language {
	case "native":
		s = &types.Script{Type: types.ScriptNative, Bytes: raw}
	case "plutus:v3":
		s = &types.Script{Type: types.ScriptPlutusV3, Bytes: raw}
	default:
		// older Plutus versions are never spent by this protocol
		log.Debugw("Ignoring reference script", "hash", key, "language", resp.Language)
		return nil, nil
	}
	c.scripts.Set(key, s, ttlcache.DefaultTTL)
	return s, nil
}
