package types

import (
	"encoding/hex"
	"encoding/json"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

const (
	TxHashSize  = 32
	KeyHashSize = 28
)

type Hash []byte

func (h Hash) String() string {
	return hex.EncodeToString(h)
}

func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(h))
}

func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return errors.Wrap(err, "invalid hex hash")
	}
	*h = b
	return nil
}

func HashFromHex(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid hex %q", s)
	}
	return b, nil
}

// Blake2b224 is the hash used for key hashes, script hashes and policy ids.
func Blake2b224(data ...[]byte) Hash {
	h, err := blake2b.New(KeyHashSize, nil)
	if err != nil {
		panic(err)
	}
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// Blake2b256 is the hash used for transaction ids and auxiliary data hashes.
func Blake2b256(data []byte) Hash {
	sum := blake2b.Sum256(data)
	return sum[:]
}
