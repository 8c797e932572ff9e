// Package wallet holds the signing keys of an operator. A Wallet is a plain
// value handed to each action; switching the acting party means passing a
// different Wallet, never mutating a shared one.
package wallet

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"

	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/havocworlds/shuffle/go-offchain/pkg/txbuilder"
	"github.com/pkg/errors"
)

// UtxoSource is the part of a chain provider a wallet needs.
type UtxoSource interface {
	UtxosAt(ctx context.Context, addr types.Address) ([]types.Utxo, error)
}

type Wallet struct {
	network types.Network
	payment ed25519.PrivateKey
	stake   ed25519.PrivateKey
	source  UtxoSource
	address types.Address
}

func keyFromSeedHex(s string) (ed25519.PrivateKey, error) {
	seed, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "decode key seed")
	}
	if len(seed) != ed25519.SeedSize {
		return nil, errors.Errorf("key seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// FromSeedHex builds a wallet from hex ed25519 seeds. stakeSeed may be empty,
// in which case the wallet uses an enterprise address.
func FromSeedHex(network types.Network, paymentSeed, stakeSeed string, source UtxoSource) (*Wallet, error) {
	w := &Wallet{network: network, source: source}
	var err error
	if w.payment, err = keyFromSeedHex(paymentSeed); err != nil {
		return nil, errors.Wrap(err, "payment key")
	}
	var stake *types.Credential
	if stakeSeed != "" {
		if w.stake, err = keyFromSeedHex(stakeSeed); err != nil {
			return nil, errors.Wrap(err, "stake key")
		}
		c := types.KeyCredential(keyHash(w.stake))
		stake = &c
	}
	if w.address, err = types.NewAddress(network, types.KeyCredential(w.PaymentKeyHash()), stake); err != nil {
		return nil, err
	}
	return w, nil
}

// GenerateSeed returns a fresh random seed, hex encoded.
func GenerateSeed() (string, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return "", err
	}
	return hex.EncodeToString(seed), nil
}

func keyHash(k ed25519.PrivateKey) types.Hash {
	return types.Blake2b224(k.Public().(ed25519.PublicKey))
}

func (w *Wallet) Network() types.Network {
	return w.network
}

func (w *Wallet) Address() types.Address {
	return w.address
}

func (w *Wallet) PaymentKeyHash() types.Hash {
	return keyHash(w.payment)
}

// StakeKeyHash returns nil for a wallet without a stake key.
func (w *Wallet) StakeKeyHash() types.Hash {
	if w.stake == nil {
		return nil
	}
	return keyHash(w.stake)
}

func (w *Wallet) StakeCredential() *types.Credential {
	if w.stake == nil {
		return nil
	}
	c := types.KeyCredential(w.StakeKeyHash())
	return &c
}

// Utxos queries the wallet's unspent outputs.
func (w *Wallet) Utxos(ctx context.Context) ([]types.Utxo, error) {
	if w.source == nil {
		return nil, errors.New("wallet has no utxo source")
	}
	return w.source.UtxosAt(ctx, w.address)
}

// SignTx adds a witness for every key of this wallet the transaction needs.
// It fails when a required key hash belongs to neither key.
func (w *Wallet) SignTx(tx *txbuilder.Tx) error {
	return w.sign(tx, true)
}

// PartialSignTx adds the witnesses this wallet can provide and leaves the
// other required keys to co-signers.
func (w *Wallet) PartialSignTx(tx *txbuilder.Tx) error {
	return w.sign(tx, false)
}

func (w *Wallet) sign(tx *txbuilder.Tx, strict bool) error {
	id, err := tx.Hash()
	if err != nil {
		return err
	}
	keys := map[string]ed25519.PrivateKey{w.PaymentKeyHash().String(): w.payment}
	if w.stake != nil {
		keys[w.StakeKeyHash().String()] = w.stake
	}
	for _, h := range tx.RequiredKeyHashes() {
		k, ok := keys[h.String()]
		if !ok {
			if strict {
				return errors.Errorf("wallet %s cannot sign for key %s", w.address, h)
			}
			continue
		}
		tx.AddVKeyWitness(k.Public().(ed25519.PublicKey), ed25519.Sign(k, id))
	}
	return nil
}
