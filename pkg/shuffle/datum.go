package shuffle

import (
	"encoding/hex"

	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/plutus"
	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/pkg/errors"
)

func hexText(s string) string {
	return hex.EncodeToString([]byte(s))
}

// SettingsDatum is the global configuration held next to the settings beacon.
type SettingsDatum struct {
	Admin        types.Hash
	Refscripts   types.Hash
	RefTokens    types.Hash
	Vault        types.Hash
	Protocol     types.Hash
	S2PolicyID   types.Hash
	MaxToShuffle int64
}

func (s SettingsDatum) Data() plutus.Data {
	return plutus.NewConstr(0,
		plutus.Bytes(s.Admin),
		plutus.Bytes(s.Refscripts),
		plutus.Bytes(s.RefTokens),
		plutus.Bytes(s.Vault),
		plutus.Bytes(s.Protocol),
		plutus.Bytes(s.S2PolicyID),
		plutus.NewInt(s.MaxToShuffle),
	)
}

func DecodeSettingsDatum(raw []byte) (SettingsDatum, error) {
	d, err := plutus.Decode(raw)
	if err != nil {
		return SettingsDatum{}, errors.Wrap(err, "settings datum")
	}
	c, err := plutus.AsConstr(d)
	if err != nil {
		return SettingsDatum{}, errors.Wrap(err, "settings datum")
	}
	if c.Index != 0 || len(c.Fields) != 7 {
		return SettingsDatum{}, errors.Errorf("settings datum: unexpected shape %s", c)
	}
	var s SettingsDatum
	for i, dst := range []*types.Hash{&s.Admin, &s.Refscripts, &s.RefTokens, &s.Vault, &s.Protocol, &s.S2PolicyID} {
		b, err := plutus.AsBytes(c.Fields[i])
		if err != nil {
			return SettingsDatum{}, errors.Wrapf(err, "settings datum field %d", i)
		}
		*dst = b
	}
	n, err := plutus.AsInt(c.Fields[6])
	if err != nil || !n.IsInt64() {
		return SettingsDatum{}, errors.New("settings datum: max_to_shuffle is not an int64")
	}
	s.MaxToShuffle = n.Int64()
	return s, nil
}

func credentialData(c types.Credential) plutus.Data {
	if c.Script {
		return plutus.NewConstr(1, plutus.Bytes(c.Hash))
	}
	return plutus.NewConstr(0, plutus.Bytes(c.Hash))
}

func credentialFromData(d plutus.Data) (types.Credential, error) {
	c, err := plutus.AsConstr(d)
	if err != nil {
		return types.Credential{}, err
	}
	if c.Index > 1 || len(c.Fields) != 1 {
		return types.Credential{}, errors.Errorf("unexpected credential %s", c)
	}
	h, err := plutus.AsBytes(c.Fields[0])
	if err != nil {
		return types.Credential{}, err
	}
	return types.Credential{Hash: h, Script: c.Index == 1}, nil
}

// AddressData encodes a base or enterprise address as the validators see it.
// Only inline stake credentials are supported.
func AddressData(addr types.Address) (plutus.Data, error) {
	pay, err := addr.PaymentCredential()
	if err != nil {
		return nil, err
	}
	if addr.IsReward() {
		return nil, errors.Errorf("%s is a reward address", addr)
	}
	stake, err := addr.StakeCredential()
	if err != nil {
		return nil, err
	}
	stakeData := plutus.None()
	if stake != nil {
		stakeData = plutus.Some(plutus.NewConstr(0, credentialData(*stake)))
	}
	return plutus.NewConstr(0, credentialData(pay), stakeData), nil
}

// AddressFromData is the inverse of AddressData.
func AddressFromData(network types.Network, d plutus.Data) (types.Address, error) {
	c, err := plutus.AsConstr(d)
	if err != nil {
		return "", err
	}
	if c.Index != 0 || len(c.Fields) != 2 {
		return "", errors.Errorf("unexpected address %s", c)
	}
	pay, err := credentialFromData(c.Fields[0])
	if err != nil {
		return "", errors.Wrap(err, "payment credential")
	}
	opt, err := plutus.AsConstr(c.Fields[1])
	if err != nil {
		return "", err
	}
	if opt.Index == 1 {
		return types.NewAddress(network, pay, nil)
	}
	inline, err := opt.Field(0, 0)
	if err != nil {
		return "", err
	}
	ic, err := plutus.AsConstr(inline)
	if err != nil {
		return "", err
	}
	if ic.Index != 0 || len(ic.Fields) != 1 {
		return "", errors.New("stake pointers are not supported")
	}
	stake, err := credentialFromData(ic.Fields[0])
	if err != nil {
		return "", errors.Wrap(err, "stake credential")
	}
	return types.NewAddress(network, pay, &stake)
}

// VaultDatum marks a shuffle request; Owner receives the shuffled tokens.
type VaultDatum struct {
	Owner types.Address `json:"owner"`
}

func (v VaultDatum) Data() (plutus.Data, error) {
	owner, err := AddressData(v.Owner)
	if err != nil {
		return nil, errors.Wrap(err, "vault datum owner")
	}
	return plutus.NewConstr(0, owner), nil
}

func DecodeVaultDatum(network types.Network, raw []byte) (VaultDatum, error) {
	d, err := plutus.Decode(raw)
	if err != nil {
		return VaultDatum{}, errors.Wrap(err, "vault datum")
	}
	c, err := plutus.AsConstr(d)
	if err != nil {
		return VaultDatum{}, errors.Wrap(err, "vault datum")
	}
	owner, err := c.Field(0, 0)
	if err != nil {
		return VaultDatum{}, errors.Wrap(err, "vault datum")
	}
	addr, err := AddressFromData(network, owner)
	if err != nil {
		return VaultDatum{}, errors.Wrap(err, "vault datum owner")
	}
	return VaultDatum{Owner: addr}, nil
}
