package plutus

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"math/big"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

const maxBytesChunk = 64

// Encode serializes d. Non-empty lists and constructor fields use
// indefinite-length arrays, byte strings longer than 64 bytes are chunked.
// The output is deterministic: equal values always encode to equal bytes.
func Encode(d Data) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeHex is Encode returning a hex string.
func EncodeHex(d Data) (string, error) {
	b, err := Encode(d)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func encode(buf *bytes.Buffer, d Data) error {
	switch v := d.(type) {
	case Constr:
		switch {
		case v.Index < 7:
			buf.Write(head(6, 121+v.Index))
			return encodeList(buf, v.Fields)
		case v.Index < 128:
			buf.Write(head(6, 1280+v.Index-7))
			return encodeList(buf, v.Fields)
		default:
			buf.Write(head(6, 102))
			buf.Write(head(4, 2))
			buf.Write(head(0, v.Index))
			return encodeList(buf, v.Fields)
		}
	case Int:
		if v.Int == nil {
			return errors.New("nil integer")
		}
		b, err := encMode.Marshal(v.Int)
		if err != nil {
			return errors.Wrap(err, "encode integer")
		}
		buf.Write(b)
	case Bytes:
		if len(v) <= maxBytesChunk {
			buf.Write(head(2, uint64(len(v))))
			buf.Write(v)
			return nil
		}
		buf.WriteByte(0x5f)
		for i := 0; i < len(v); i += maxBytesChunk {
			end := i + maxBytesChunk
			if end > len(v) {
				end = len(v)
			}
			buf.Write(head(2, uint64(end-i)))
			buf.Write(v[i:end])
		}
		buf.WriteByte(0xff)
	case List:
		return encodeList(buf, v)
	case Map:
		buf.Write(head(5, uint64(len(v))))
		for _, p := range v {
			if err := encode(buf, p.Key); err != nil {
				return err
			}
			if err := encode(buf, p.Value); err != nil {
				return err
			}
		}
	case nil:
		return errors.New("nil plutus data")
	default:
		return errors.Errorf("unsupported plutus data %T", d)
	}
	return nil
}

func encodeList(buf *bytes.Buffer, items []Data) error {
	if len(items) == 0 {
		buf.WriteByte(0x80)
		return nil
	}
	buf.WriteByte(0x9f)
	for _, it := range items {
		if err := encode(buf, it); err != nil {
			return err
		}
	}
	buf.WriteByte(0xff)
	return nil
}

func head(major byte, n uint64) []byte {
	m := major << 5
	switch {
	case n < 24:
		return []byte{m | byte(n)}
	case n <= 0xff:
		return []byte{m | 24, byte(n)}
	case n <= 0xffff:
		b := []byte{m | 25, 0, 0}
		binary.BigEndian.PutUint16(b[1:], uint16(n))
		return b
	case n <= 0xffffffff:
		b := []byte{m | 26, 0, 0, 0, 0}
		binary.BigEndian.PutUint32(b[1:], uint32(n))
		return b
	}
	b := make([]byte, 9)
	b[0] = m | 27
	binary.BigEndian.PutUint64(b[1:], n)
	return b
}

// Decode parses a single Plutus Data item.
func Decode(b []byte) (Data, error) {
	if len(b) == 0 {
		return nil, errors.New("empty plutus data")
	}
	dec := cbor.NewDecoder(bytes.NewReader(b))
	var raw cbor.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "decode plutus data")
	}
	if dec.NumBytesRead() != len(b) {
		return nil, errors.New("trailing bytes after plutus data")
	}
	return decodeRaw(raw)
}

// DecodeHex is Decode over a hex string.
func DecodeHex(s string) (Data, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "decode plutus data hex")
	}
	return Decode(b)
}

func decodeRaw(raw cbor.RawMessage) (Data, error) {
	major := raw[0] >> 5
	switch major {
	case 0, 1:
		var n big.Int
		if err := cbor.Unmarshal(raw, &n); err != nil {
			return nil, errors.Wrap(err, "decode integer")
		}
		return Int{&n}, nil
	case 2:
		var bs []byte
		if err := cbor.Unmarshal(raw, &bs); err != nil {
			return nil, errors.Wrap(err, "decode bytes")
		}
		return Bytes(bs), nil
	case 4:
		items, err := decodeItems(raw)
		if err != nil {
			return nil, err
		}
		return List(items), nil
	case 5:
		return decodeMap(raw)
	case 6:
		return decodeTag(raw)
	}
	return nil, errors.Errorf("unexpected cbor major type %d in plutus data", major)
}

func decodeItems(raw cbor.RawMessage) ([]Data, error) {
	var elems []cbor.RawMessage
	if err := cbor.Unmarshal(raw, &elems); err != nil {
		return nil, errors.Wrap(err, "decode list")
	}
	items := make([]Data, len(elems))
	for i, e := range elems {
		d, err := decodeRaw(e)
		if err != nil {
			return nil, err
		}
		items[i] = d
	}
	return items, nil
}

func decodeTag(raw cbor.RawMessage) (Data, error) {
	var tag cbor.RawTag
	if err := cbor.Unmarshal(raw, &tag); err != nil {
		return nil, errors.Wrap(err, "decode tag")
	}
	switch n := tag.Number; {
	case n == 2 || n == 3:
		var i big.Int
		if err := cbor.Unmarshal(raw, &i); err != nil {
			return nil, errors.Wrap(err, "decode bignum")
		}
		return Int{&i}, nil
	case n >= 121 && n <= 127:
		fields, err := decodeItems(tag.Content)
		if err != nil {
			return nil, err
		}
		return NewConstr(n-121, fields...), nil
	case n >= 1280 && n <= 1400:
		fields, err := decodeItems(tag.Content)
		if err != nil {
			return nil, err
		}
		return NewConstr(n-1280+7, fields...), nil
	case n == 102:
		var pair []cbor.RawMessage
		if err := cbor.Unmarshal(tag.Content, &pair); err != nil || len(pair) != 2 {
			return nil, errors.New("malformed general constructor")
		}
		var idx uint64
		if err := cbor.Unmarshal(pair[0], &idx); err != nil {
			return nil, errors.Wrap(err, "decode constructor index")
		}
		fields, err := decodeItems(pair[1])
		if err != nil {
			return nil, err
		}
		return NewConstr(idx, fields...), nil
	}
	return nil, errors.Errorf("unexpected cbor tag %d in plutus data", tag.Number)
}

func decodeMap(raw cbor.RawMessage) (Data, error) {
	info := raw[0] & 0x1f
	rest := raw[1:]
	indefinite := info == 31
	var n uint64
	switch {
	case info < 24:
		n = uint64(info)
	case info == 24:
		n, rest = uint64(rest[0]), rest[1:]
	case info == 25:
		n, rest = uint64(binary.BigEndian.Uint16(rest)), rest[2:]
	case info == 26:
		n, rest = uint64(binary.BigEndian.Uint32(rest)), rest[4:]
	case info == 27:
		n, rest = binary.BigEndian.Uint64(rest), rest[8:]
	case indefinite:
	default:
		return nil, errors.New("malformed map header")
	}

	dec := cbor.NewDecoder(bytes.NewReader(rest))
	var m Map
	for i := uint64(0); indefinite || i < n; i++ {
		if indefinite && dec.NumBytesRead() < len(rest) && rest[dec.NumBytesRead()] == 0xff {
			break
		}
		var k, v cbor.RawMessage
		if err := dec.Decode(&k); err != nil {
			return nil, errors.Wrap(err, "decode map key")
		}
		if err := dec.Decode(&v); err != nil {
			return nil, errors.Wrap(err, "decode map value")
		}
		kd, err := decodeRaw(k)
		if err != nil {
			return nil, err
		}
		vd, err := decodeRaw(v)
		if err != nil {
			return nil, err
		}
		m = append(m, Pair{Key: kd, Value: vd})
	}
	return m, nil
}
