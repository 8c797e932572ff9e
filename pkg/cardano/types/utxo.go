package types

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// UtxoRef points at one output of a confirmed transaction.
type UtxoRef struct {
	TxHash Hash   `json:"tx_hash"`
	Index  uint32 `json:"output_index"`
}

func NewUtxoRef(txHashHex string, index uint32) (UtxoRef, error) {
	h, err := HashFromHex(txHashHex)
	if err != nil {
		return UtxoRef{}, err
	}
	if len(h) != TxHashSize {
		return UtxoRef{}, errors.Errorf("tx hash must be %d bytes, got %d", TxHashSize, len(h))
	}
	return UtxoRef{TxHash: h, Index: index}, nil
}

// ParseUtxoRef parses the "<txhash>#<index>" form produced by String.
func ParseUtxoRef(s string) (UtxoRef, error) {
	parts := strings.Split(s, "#")
	if len(parts) != 2 {
		return UtxoRef{}, errors.Errorf("invalid utxo ref %q", s)
	}
	idx, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return UtxoRef{}, errors.Wrapf(err, "invalid output index in %q", s)
	}
	return NewUtxoRef(parts[0], uint32(idx))
}

// String is the identity key of the reference.
func (r UtxoRef) String() string {
	return fmt.Sprintf("%s#%d", hex.EncodeToString(r.TxHash), r.Index)
}

// Bytes is the tx hash followed by the big-endian output index.
func (r UtxoRef) Bytes() []byte {
	b := make([]byte, len(r.TxHash)+4)
	copy(b, r.TxHash)
	binary.BigEndian.PutUint32(b[len(r.TxHash):], r.Index)
	return b
}

func (r UtxoRef) Equal(o UtxoRef) bool {
	return r.Index == o.Index && bytes.Equal(r.TxHash, o.TxHash)
}

// Utxo is an unspent output together with its reference.
type Utxo struct {
	UtxoRef
	Address   Address `json:"address"`
	Assets    Assets  `json:"assets"`
	Datum     Hash    `json:"datum,omitempty"`
	DatumHash Hash    `json:"datum_hash,omitempty"`
	ScriptRef *Script `json:"script_ref,omitempty"`
}

func (u Utxo) Lovelace() uint64 {
	return u.Assets.Lovelace()
}

// Refs returns the references of utxos in the same order.
func Refs(utxos []Utxo) []UtxoRef {
	refs := make([]UtxoRef, len(utxos))
	for i, u := range utxos {
		refs[i] = u.UtxoRef
	}
	return refs
}

// FilterOut returns utxos minus any whose reference is listed in exclude.
func FilterOut(utxos []Utxo, exclude ...UtxoRef) []Utxo {
	skip := make(map[string]struct{}, len(exclude))
	for _, r := range exclude {
		skip[r.String()] = struct{}{}
	}
	out := make([]Utxo, 0, len(utxos))
	for _, u := range utxos {
		if _, ok := skip[u.String()]; ok {
			continue
		}
		out = append(out, u)
	}
	return out
}
