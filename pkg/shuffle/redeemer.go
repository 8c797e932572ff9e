package shuffle

import (
	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/plutus"
	"github.com/pkg/errors"
)

// Redeemer is one variant of the unified redeemer every protocol validator
// accepts. Variants carry only positions into the final transaction.
type Redeemer interface {
	Data() plutus.Data
}

// Constructor indices of the unified redeemer.
const (
	idxMintSettingsBeacon = iota
	idxBurnSettingsBeacon
	idxUpdateSettings
	idxLiveShuffle
	idxReShuffle
	idxCancelShuffle
	idxAdminister
	idxSpendBadUtxo
	idxRetireProtocol
)

// Pair is an (input position, output position) tuple.
type Pair [2]uint64

func (p Pair) data() plutus.Data {
	return plutus.Ints(p[:])
}

func uints(vs ...uint64) []plutus.Data {
	out := make([]plutus.Data, len(vs))
	for i, v := range vs {
		out[i] = plutus.NewUint(v)
	}
	return out
}

type MintSettingsBeacon struct {
	InitUtxoIdx uint64
}

func (r MintSettingsBeacon) Data() plutus.Data {
	return plutus.NewConstr(idxMintSettingsBeacon, uints(r.InitUtxoIdx)...)
}

type BurnSettingsBeacon struct {
	GcfgUtxoIdx uint64
}

func (r BurnSettingsBeacon) Data() plutus.Data {
	return plutus.NewConstr(idxBurnSettingsBeacon, uints(r.GcfgUtxoIdx)...)
}

type UpdateSettings struct {
	InputIdx  uint64
	OutputIdx uint64
}

func (r UpdateSettings) Data() plutus.Data {
	return plutus.NewConstr(idxUpdateSettings, uints(r.InputIdx, r.OutputIdx)...)
}

// LiveShuffle mints one reference/user token pair per shuffled token.
// RefIdxs are the outputs holding the reference tokens.
type LiveShuffle struct {
	ProtocolIdxs Pair
	VaultIdxs    Pair
	UserIdx      uint64
	RefIdxs      []uint64
	SettingsIdx  uint64
}

func (r LiveShuffle) Data() plutus.Data {
	return plutus.NewConstr(idxLiveShuffle,
		r.ProtocolIdxs.data(),
		r.VaultIdxs.data(),
		plutus.NewUint(r.UserIdx),
		plutus.Ints(r.RefIdxs),
		plutus.NewUint(r.SettingsIdx),
	)
}

// ReShuffle swaps the tokens of a request with tokens already in the vault.
type ReShuffle struct {
	ProtocolIdxs Pair
	SettingsIdx  uint64
	RequestIdx   uint64
	PoolIdxs     []uint64
	PoolOidx     uint64
	UserIdx      uint64
}

func (r ReShuffle) Data() plutus.Data {
	return plutus.NewConstr(idxReShuffle,
		r.ProtocolIdxs.data(),
		plutus.NewUint(r.SettingsIdx),
		plutus.NewUint(r.RequestIdx),
		plutus.Ints(r.PoolIdxs),
		plutus.NewUint(r.PoolOidx),
		plutus.NewUint(r.UserIdx),
	)
}

type CancelShuffle struct {
	ProtocolIdxs Pair
	SettingsIdx  uint64
	RequestIdx   uint64
	UserIdx      uint64
}

func (r CancelShuffle) Data() plutus.Data {
	return plutus.NewConstr(idxCancelShuffle,
		r.ProtocolIdxs.data(),
		plutus.NewUint(r.SettingsIdx),
		plutus.NewUint(r.RequestIdx),
		plutus.NewUint(r.UserIdx),
	)
}

type Administer struct {
	ProtocolIdxs Pair
	SettingsIdx  uint64
}

func (r Administer) Data() plutus.Data {
	return plutus.NewConstr(idxAdminister, r.ProtocolIdxs.data(), plutus.NewUint(r.SettingsIdx))
}

type SpendBadUtxo struct {
	ProtocolIdxs Pair
	BadUtxoIdx   uint64
	SettingsIdx  uint64
}

func (r SpendBadUtxo) Data() plutus.Data {
	return plutus.NewConstr(idxSpendBadUtxo,
		r.ProtocolIdxs.data(),
		plutus.NewUint(r.BadUtxoIdx),
		plutus.NewUint(r.SettingsIdx),
	)
}

// RetireProtocol spends a protocol utxo for good; it has a single protocol
// position, not a pair.
type RetireProtocol struct {
	ProtocolIdx uint64
	SettingsIdx uint64
}

func (r RetireProtocol) Data() plutus.Data {
	return plutus.NewConstr(idxRetireProtocol, uints(r.ProtocolIdx, r.SettingsIdx)...)
}

// DecodeRedeemer parses an encoded unified redeemer.
func DecodeRedeemer(raw []byte) (Redeemer, error) {
	d, err := plutus.Decode(raw)
	if err != nil {
		return nil, errors.Wrap(err, "decode redeemer")
	}
	c, err := plutus.AsConstr(d)
	if err != nil {
		return nil, errors.Wrap(err, "decode redeemer")
	}
	f := fields{c: c}
	var r Redeemer
	switch c.Index {
	case idxMintSettingsBeacon:
		r = MintSettingsBeacon{InitUtxoIdx: f.uint(0)}
	case idxBurnSettingsBeacon:
		r = BurnSettingsBeacon{GcfgUtxoIdx: f.uint(0)}
	case idxUpdateSettings:
		r = UpdateSettings{InputIdx: f.uint(0), OutputIdx: f.uint(1)}
	case idxLiveShuffle:
		r = LiveShuffle{
			ProtocolIdxs: f.pair(0),
			VaultIdxs:    f.pair(1),
			UserIdx:      f.uint(2),
			RefIdxs:      f.uints(3),
			SettingsIdx:  f.uint(4),
		}
	case idxReShuffle:
		r = ReShuffle{
			ProtocolIdxs: f.pair(0),
			SettingsIdx:  f.uint(1),
			RequestIdx:   f.uint(2),
			PoolIdxs:     f.uints(3),
			PoolOidx:     f.uint(4),
			UserIdx:      f.uint(5),
		}
	case idxCancelShuffle:
		r = CancelShuffle{ProtocolIdxs: f.pair(0), SettingsIdx: f.uint(1), RequestIdx: f.uint(2), UserIdx: f.uint(3)}
	case idxAdminister:
		r = Administer{ProtocolIdxs: f.pair(0), SettingsIdx: f.uint(1)}
	case idxSpendBadUtxo:
		r = SpendBadUtxo{ProtocolIdxs: f.pair(0), BadUtxoIdx: f.uint(1), SettingsIdx: f.uint(2)}
	case idxRetireProtocol:
		r = RetireProtocol{ProtocolIdx: f.uint(0), SettingsIdx: f.uint(1)}
	default:
		return nil, errors.Errorf("unknown redeemer constructor %d", c.Index)
	}
	if f.err != nil {
		return nil, errors.Wrapf(f.err, "decode redeemer %d", c.Index)
	}
	return r, nil
}

// fields reads constructor fields, keeping the first error.
type fields struct {
	c   plutus.Constr
	err error
}

func (f *fields) get(i int) plutus.Data {
	if f.err != nil {
		return nil
	}
	if i >= len(f.c.Fields) {
		f.err = errors.Errorf("missing field %d", i)
		return nil
	}
	return f.c.Fields[i]
}

func (f *fields) toUint(d plutus.Data) uint64 {
	if f.err != nil {
		return 0
	}
	n, err := plutus.AsInt(d)
	if err != nil {
		f.err = err
		return 0
	}
	if n.Sign() < 0 || !n.IsUint64() {
		f.err = errors.Errorf("index %s out of range", n)
		return 0
	}
	return n.Uint64()
}

func (f *fields) uint(i int) uint64 {
	return f.toUint(f.get(i))
}

func (f *fields) uints(i int) []uint64 {
	d := f.get(i)
	if f.err != nil {
		return nil
	}
	l, ok := d.(plutus.List)
	if !ok {
		f.err = errors.Errorf("field %d is not a list", i)
		return nil
	}
	out := make([]uint64, len(l))
	for j, item := range l {
		out[j] = f.toUint(item)
	}
	return out
}

func (f *fields) pair(i int) Pair {
	vs := f.uints(i)
	if f.err == nil && len(vs) != 2 {
		f.err = errors.Errorf("field %d is not a pair", i)
	}
	if f.err != nil {
		return Pair{}
	}
	return Pair{vs[0], vs[1]}
}
