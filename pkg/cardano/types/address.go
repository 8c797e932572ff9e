package types

import (
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/pkg/errors"
)

type Network string

const (
	Mainnet Network = "Mainnet"
	Preprod Network = "Preprod"
	Preview Network = "Preview"
	Custom  Network = "Custom"
)

func ParseNetwork(s string) (Network, error) {
	for _, n := range []Network{Mainnet, Preprod, Preview, Custom} {
		if strings.EqualFold(s, string(n)) {
			return n, nil
		}
	}
	return "", errors.Errorf("unknown network %q", s)
}

// ID is the network id carried in the address header.
func (n Network) ID() byte {
	if n == Mainnet {
		return 1
	}
	return 0
}

func (n Network) addrHRP() string {
	if n == Mainnet {
		return "addr"
	}
	return "addr_test"
}

func (n Network) stakeHRP() string {
	if n == Mainnet {
		return "stake"
	}
	return "stake_test"
}

// Credential is a key hash or a script hash.
type Credential struct {
	Hash   Hash
	Script bool
}

func KeyCredential(h Hash) Credential {
	return Credential{Hash: h}
}

func ScriptCredential(h Hash) Credential {
	return Credential{Hash: h, Script: true}
}

// Address is a bech32 encoded Shelley address.
type Address string

// Header types of Shelley addresses.
const (
	addrBase       = 0x00
	addrEnterprise = 0x06
	addrReward     = 0x0e
)

func newAddress(hrp string, raw []byte) (Address, error) {
	conv, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", errors.Wrap(err, "convert address bits")
	}
	s, err := bech32.Encode(hrp, conv)
	if err != nil {
		return "", errors.Wrap(err, "encode address")
	}
	return Address(s), nil
}

// NewAddress builds a base address, or an enterprise address when stake is nil.
func NewAddress(network Network, payment Credential, stake *Credential) (Address, error) {
	if len(payment.Hash) != KeyHashSize {
		return "", errors.Errorf("payment credential must be %d bytes", KeyHashSize)
	}
	var header byte
	raw := make([]byte, 0, 1+2*KeyHashSize)
	if stake == nil {
		header = addrEnterprise << 4
		if payment.Script {
			header |= 1 << 4
		}
	} else {
		if len(stake.Hash) != KeyHashSize {
			return "", errors.Errorf("stake credential must be %d bytes", KeyHashSize)
		}
		header = addrBase << 4
		if payment.Script {
			header |= 1 << 4
		}
		if stake.Script {
			header |= 2 << 4
		}
	}
	header |= network.ID()
	raw = append(raw, header)
	raw = append(raw, payment.Hash...)
	if stake != nil {
		raw = append(raw, stake.Hash...)
	}
	return newAddress(network.addrHRP(), raw)
}

// NewRewardAddress builds the stake address of a credential.
func NewRewardAddress(network Network, stake Credential) (Address, error) {
	if len(stake.Hash) != KeyHashSize {
		return "", errors.Errorf("stake credential must be %d bytes", KeyHashSize)
	}
	header := byte(addrReward<<4) | network.ID()
	if stake.Script {
		header |= 1 << 4
	}
	return newAddress(network.stakeHRP(), append([]byte{header}, stake.Hash...))
}

// Bytes decodes the address into its raw header-prefixed form.
func (a Address) Bytes() ([]byte, error) {
	_, data, err := bech32.DecodeNoLimit(string(a))
	if err != nil {
		return nil, errors.Wrapf(err, "decode address %s", a)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, errors.Wrapf(err, "convert address %s", a)
	}
	if len(raw) < 1+KeyHashSize {
		return nil, errors.Errorf("address %s is too short", a)
	}
	return raw, nil
}

func (a Address) kind() (byte, []byte, error) {
	raw, err := a.Bytes()
	if err != nil {
		return 0, nil, err
	}
	return raw[0] >> 4, raw, nil
}

func (a Address) IsReward() bool {
	k, _, err := a.kind()
	return err == nil && (k == addrReward || k == addrReward+1)
}

// PaymentCredential returns the payment part of a base or enterprise address,
// and the stake credential of a reward address.
func (a Address) PaymentCredential() (Credential, error) {
	k, raw, err := a.kind()
	if err != nil {
		return Credential{}, err
	}
	switch {
	case k <= 3, k == addrEnterprise, k == addrEnterprise+1:
		return Credential{Hash: raw[1 : 1+KeyHashSize], Script: k&1 == 1}, nil
	case k == addrReward, k == addrReward+1:
		return Credential{Hash: raw[1 : 1+KeyHashSize], Script: k == addrReward+1}, nil
	}
	return Credential{}, errors.Errorf("unsupported address type %d", k)
}

// StakeCredential returns the inline stake part of a base address, if any.
func (a Address) StakeCredential() (*Credential, error) {
	k, raw, err := a.kind()
	if err != nil {
		return nil, err
	}
	if k > 3 {
		return nil, nil
	}
	if len(raw) < 1+2*KeyHashSize {
		return nil, errors.Errorf("base address %s is too short", a)
	}
	return &Credential{Hash: raw[1+KeyHashSize : 1+2*KeyHashSize], Script: k&2 == 2}, nil
}
