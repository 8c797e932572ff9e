package txbuilder

import (
	"bytes"
	"encoding/hex"
	"sort"

	"github.com/fxamacker/cbor/v2"
	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/pkg/errors"
)

var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// Output is a transaction output. Datum, when set, is an inline datum.
type Output struct {
	Address types.Address
	Assets  types.Assets
	Datum   []byte
	Script  *types.Script
}

func encodeValue(a types.Assets) interface{} {
	coin := a.Lovelace()
	tokens := a.Tokens()
	if len(tokens) == 0 {
		return coin
	}
	ma := map[cbor.ByteString]map[cbor.ByteString]uint64{}
	for id, q := range tokens {
		p := cbor.ByteString(id.PolicyID())
		if ma[p] == nil {
			ma[p] = map[cbor.ByteString]uint64{}
		}
		ma[p][cbor.ByteString(id.AssetName())] = q
	}
	return []interface{}{coin, ma}
}

func (o Output) value() (map[uint64]interface{}, error) {
	addr, err := o.Address.Bytes()
	if err != nil {
		return nil, err
	}
	m := map[uint64]interface{}{
		0: addr,
		1: encodeValue(o.Assets),
	}
	if len(o.Datum) > 0 {
		m[2] = []interface{}{uint64(1), cbor.Tag{Number: 24, Content: o.Datum}}
	}
	if o.Script != nil {
		ref, err := o.Script.ScriptRef()
		if err != nil {
			return nil, err
		}
		m[3] = cbor.Tag{Number: 24, Content: ref}
	}
	return m, nil
}

func (o Output) CBOR() ([]byte, error) {
	v, err := o.value()
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(v)
}

// MinLovelace is the smallest lovelace amount this output may carry.
func (o Output) MinLovelace(p *ProtocolParams) (uint64, error) {
	probe := o
	need := o.Assets.Lovelace()
	// the amount changes the encoded size, so iterate until it is stable
	for i := 0; i < 4; i++ {
		b, err := probe.CBOR()
		if err != nil {
			return 0, err
		}
		min := p.MinUtxo(len(b))
		if min == need {
			break
		}
		need = min
		probe.Assets = o.Assets.WithLovelace(need)
	}
	return need, nil
}

type Withdrawal struct {
	Address  types.Address
	Amount   uint64
	Redeemer *RedeemerBuilder

	// raw is the decoded address, the ledger's sort key.
	raw []byte
}

type CertKind uint64

const (
	CertRegister   CertKind = 0
	CertDeregister CertKind = 1
)

type Certificate struct {
	Kind       CertKind
	Credential types.Credential
	Redeemer   *RedeemerBuilder
}

func (c Certificate) value() []interface{} {
	var credType uint64
	if c.Credential.Script {
		credType = 1
	}
	return []interface{}{uint64(c.Kind), []interface{}{credType, []byte(c.Credential.Hash)}}
}

type VKeyWitness struct {
	VKey      []byte
	Signature []byte
}

// Tx is a fully balanced transaction. Inputs and ReferenceInputs are kept in
// canonical order, which is the order redeemer indices refer to.
type Tx struct {
	Inputs           []types.Utxo
	ReferenceInputs  []types.Utxo
	Outputs          []Output
	Fee              uint64
	Mint             types.Mint
	Withdrawals      []Withdrawal
	Certificates     []Certificate
	RequiredSigners  []types.Hash
	Collateral       []types.Utxo
	CollateralReturn *Output
	TotalCollateral  uint64
	Redeemers        []Redeemer
	Scripts          []types.Script
	Metadata         map[uint64]interface{}
	ScriptDataHash   types.Hash
	VKeyWitnesses    []VKeyWitness
	// ChangeIndex is the position of the change output, -1 when the surplus
	// was folded into the fee.
	ChangeIndex int
}

func refValue(r types.UtxoRef) []interface{} {
	return []interface{}{[]byte(r.TxHash), uint64(r.Index)}
}

func refsValue(utxos []types.Utxo) []interface{} {
	out := make([]interface{}, len(utxos))
	for i, u := range utxos {
		out[i] = refValue(u.UtxoRef)
	}
	return out
}

func (tx *Tx) auxData() ([]byte, error) {
	if len(tx.Metadata) == 0 {
		return nil, nil
	}
	return encMode.Marshal(tx.Metadata)
}

func (tx *Tx) bodyValue() (map[uint64]interface{}, error) {
	outs := make([]interface{}, len(tx.Outputs))
	for i, o := range tx.Outputs {
		v, err := o.value()
		if err != nil {
			return nil, errors.Wrapf(err, "output %d", i)
		}
		outs[i] = v
	}
	body := map[uint64]interface{}{
		0: refsValue(tx.Inputs),
		1: outs,
		2: tx.Fee,
	}
	if len(tx.Certificates) > 0 {
		certs := make([]interface{}, len(tx.Certificates))
		for i, c := range tx.Certificates {
			certs[i] = c.value()
		}
		body[4] = certs
	}
	if len(tx.Withdrawals) > 0 {
		w := map[cbor.ByteString]uint64{}
		for _, wd := range tx.Withdrawals {
			addr, err := wd.Address.Bytes()
			if err != nil {
				return nil, err
			}
			w[cbor.ByteString(addr)] = wd.Amount
		}
		body[5] = w
	}
	aux, err := tx.auxData()
	if err != nil {
		return nil, err
	}
	if aux != nil {
		body[7] = []byte(types.Blake2b256(aux))
	}
	if len(tx.Mint) > 0 {
		m := map[cbor.ByteString]map[cbor.ByteString]int64{}
		for id, q := range tx.Mint {
			if q == 0 {
				continue
			}
			p := cbor.ByteString(id.PolicyID())
			if m[p] == nil {
				m[p] = map[cbor.ByteString]int64{}
			}
			m[p][cbor.ByteString(id.AssetName())] = q
		}
		body[9] = m
	}
	if len(tx.ScriptDataHash) > 0 {
		body[11] = []byte(tx.ScriptDataHash)
	}
	if len(tx.Collateral) > 0 {
		body[13] = refsValue(tx.Collateral)
	}
	if len(tx.RequiredSigners) > 0 {
		s := make([]interface{}, len(tx.RequiredSigners))
		for i, h := range tx.RequiredSigners {
			s[i] = []byte(h)
		}
		body[14] = s
	}
	if tx.CollateralReturn != nil {
		v, err := tx.CollateralReturn.value()
		if err != nil {
			return nil, errors.Wrap(err, "collateral return")
		}
		body[16] = v
	}
	if tx.TotalCollateral > 0 {
		body[17] = tx.TotalCollateral
	}
	if len(tx.ReferenceInputs) > 0 {
		body[18] = refsValue(tx.ReferenceInputs)
	}
	return body, nil
}

func (tx *Tx) BodyCBOR() ([]byte, error) {
	body, err := tx.bodyValue()
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(body)
}

// Hash is the transaction id.
func (tx *Tx) Hash() (types.Hash, error) {
	body, err := tx.BodyCBOR()
	if err != nil {
		return nil, err
	}
	return types.Blake2b256(body), nil
}

func sortRedeemers(rs []Redeemer) []Redeemer {
	out := make([]Redeemer, len(rs))
	copy(out, rs)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tag != out[j].Tag {
			return out[i].Tag < out[j].Tag
		}
		return out[i].Index < out[j].Index
	})
	return out
}

func (tx *Tx) redeemersCBOR() ([]byte, error) {
	rs := sortRedeemers(tx.Redeemers)
	arr := make([]interface{}, len(rs))
	for i, r := range rs {
		arr[i] = []interface{}{
			uint64(r.Tag),
			uint64(r.Index),
			cbor.RawMessage(r.Data),
			[]interface{}{r.ExUnits.Mem, r.ExUnits.Steps},
		}
	}
	return encMode.Marshal(arr)
}

func (tx *Tx) witnessValue(witnesses []VKeyWitness) (map[uint64]interface{}, error) {
	ws := map[uint64]interface{}{}
	if len(witnesses) > 0 {
		vk := make([]interface{}, len(witnesses))
		for i, w := range witnesses {
			vk[i] = []interface{}{w.VKey, w.Signature}
		}
		ws[0] = vk
	}
	var native, v3 []interface{}
	for _, s := range tx.Scripts {
		if s.Type == types.ScriptPlutusV3 {
			v3 = append(v3, []byte(s.Bytes))
		} else {
			native = append(native, cbor.RawMessage(s.Bytes))
		}
	}
	if len(native) > 0 {
		ws[1] = native
	}
	if len(tx.Redeemers) > 0 {
		r, err := tx.redeemersCBOR()
		if err != nil {
			return nil, err
		}
		ws[5] = cbor.RawMessage(r)
	}
	if len(v3) > 0 {
		ws[7] = v3
	}
	return ws, nil
}

func (tx *Tx) encode(witnesses []VKeyWitness) ([]byte, error) {
	body, err := tx.BodyCBOR()
	if err != nil {
		return nil, err
	}
	ws, err := tx.witnessValue(witnesses)
	if err != nil {
		return nil, err
	}
	var aux interface{}
	if a, err := tx.auxData(); err != nil {
		return nil, err
	} else if a != nil {
		aux = cbor.RawMessage(a)
	}
	return encMode.Marshal([]interface{}{cbor.RawMessage(body), ws, true, aux})
}

// CBOR serializes the transaction with the witnesses collected so far.
func (tx *Tx) CBOR() ([]byte, error) {
	return tx.encode(tx.VKeyWitnesses)
}

func (tx *Tx) CBORHex() (string, error) {
	b, err := tx.CBOR()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// AddVKeyWitness attaches a signature over the transaction id.
func (tx *Tx) AddVKeyWitness(vkey, sig []byte) {
	for _, w := range tx.VKeyWitnesses {
		if bytes.Equal(w.VKey, vkey) {
			return
		}
	}
	tx.VKeyWitnesses = append(tx.VKeyWitnesses, VKeyWitness{VKey: vkey, Signature: sig})
}

// MissingWitnesses lists the required key hashes no witness covers yet.
func (tx *Tx) MissingWitnesses() []types.Hash {
	have := map[string]bool{}
	for _, w := range tx.VKeyWitnesses {
		have[types.Blake2b224(w.VKey).String()] = true
	}
	var out []types.Hash
	for _, h := range tx.RequiredKeyHashes() {
		if !have[h.String()] {
			out = append(out, h)
		}
	}
	return out
}

// RequiredKeyHashes lists every key hash that must sign: owners of spent and
// collateral key-locked inputs plus the explicit required signers.
func (tx *Tx) RequiredKeyHashes() []types.Hash {
	seen := map[string]struct{}{}
	var out []types.Hash
	add := func(h types.Hash) {
		if _, ok := seen[h.String()]; ok {
			return
		}
		seen[h.String()] = struct{}{}
		out = append(out, h)
	}
	for _, in := range append(append([]types.Utxo{}, tx.Inputs...), tx.Collateral...) {
		cred, err := in.Address.PaymentCredential()
		if err == nil && !cred.Script {
			add(cred.Hash)
		}
	}
	for _, h := range tx.RequiredSigners {
		add(h)
	}
	return out
}

// TotalExUnits sums the budgets of all redeemers.
func (tx *Tx) TotalExUnits() ExUnits {
	var total ExUnits
	for _, r := range tx.Redeemers {
		total = total.Add(r.ExUnits)
	}
	return total
}

func (tx *Tx) refScriptSize() int {
	n := 0
	for _, u := range append(append([]types.Utxo{}, tx.Inputs...), tx.ReferenceInputs...) {
		if u.ScriptRef != nil {
			n += u.ScriptRef.Size()
		}
	}
	return n
}

// EstimatedSize is the size of the transaction once every required key has
// signed it.
func (tx *Tx) EstimatedSize() (int, error) {
	n := len(tx.RequiredKeyHashes())
	dummy := make([]VKeyWitness, n)
	for i := range dummy {
		dummy[i] = VKeyWitness{VKey: make([]byte, 32), Signature: make([]byte, 64)}
	}
	b, err := tx.encode(dummy)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// MinFee is the fee the ledger demands for this transaction.
func (tx *Tx) MinFee(p *ProtocolParams) (uint64, error) {
	size, err := tx.EstimatedSize()
	if err != nil {
		return 0, err
	}
	fee := p.MinFeeA*uint64(size) + p.MinFeeB
	fee += p.ExUnitsFee(tx.TotalExUnits())
	fee += p.RefScriptFee(tx.refScriptSize())
	return fee, nil
}

// OutputUtxo returns output i as a utxo of this transaction.
func (tx *Tx) OutputUtxo(i int) (types.Utxo, error) {
	if i < 0 || i >= len(tx.Outputs) {
		return types.Utxo{}, errors.Errorf("output %d out of range", i)
	}
	h, err := tx.Hash()
	if err != nil {
		return types.Utxo{}, err
	}
	o := tx.Outputs[i]
	return types.Utxo{
		UtxoRef:   types.UtxoRef{TxHash: h, Index: uint32(i)},
		Address:   o.Address,
		Assets:    o.Assets.Clone(),
		Datum:     o.Datum,
		ScriptRef: o.Script,
	}, nil
}

// FindOutput returns the first output holding asset.
func (tx *Tx) FindOutput(asset types.AssetID) (types.Utxo, bool) {
	for i, o := range tx.Outputs {
		if o.Assets.Has(asset) {
			u, err := tx.OutputUtxo(i)
			return u, err == nil
		}
	}
	return types.Utxo{}, false
}

// ScriptDataHash hashes redeemers and the Plutus V3 language view as the
// ledger does for transactions without witness datums.
func scriptDataHash(redeemers []byte, costModel []int64) (types.Hash, error) {
	cm := make([]interface{}, len(costModel))
	for i, c := range costModel {
		cm[i] = c
	}
	views, err := encMode.Marshal(map[uint64]interface{}{2: cm})
	if err != nil {
		return nil, err
	}
	return types.Blake2b256(append(append([]byte{}, redeemers...), views...)), nil
}
