package types

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

type ScriptType string

const (
	ScriptNative   ScriptType = "Native"
	ScriptPlutusV3 ScriptType = "PlutusV3"
)

// Script is either a parameter-applied Plutus V3 program (its single-wrapped
// compiled code) or the CBOR of a native script.
type Script struct {
	Type  ScriptType `json:"type"`
	Bytes Hash       `json:"script"`
}

func (s Script) tag() byte {
	if s.Type == ScriptPlutusV3 {
		return 3
	}
	return 0
}

// Hash is the script hash, which doubles as policy id and credential.
func (s Script) Hash() Hash {
	return Blake2b224([]byte{s.tag()}, s.Bytes)
}

// Size is what the reference-script fee is charged on.
func (s Script) Size() int {
	return len(s.Bytes)
}

// ScriptRef encodes the [tag, script] pair stored in an output's script_ref.
func (s Script) ScriptRef() ([]byte, error) {
	if s.Type == ScriptPlutusV3 {
		return cbor.Marshal([]interface{}{uint64(3), []byte(s.Bytes)})
	}
	return cbor.Marshal([]interface{}{uint64(0), cbor.RawMessage(s.Bytes)})
}

// ScriptFromRef decodes a script_ref payload.
func ScriptFromRef(ref []byte) (*Script, error) {
	var pair []cbor.RawMessage
	if err := cbor.Unmarshal(ref, &pair); err != nil || len(pair) != 2 {
		return nil, errors.New("malformed script ref")
	}
	var tag uint64
	if err := cbor.Unmarshal(pair[0], &tag); err != nil {
		return nil, errors.Wrap(err, "script ref tag")
	}
	switch tag {
	case 0:
		return &Script{Type: ScriptNative, Bytes: Hash(pair[1])}, nil
	case 3:
		var b []byte
		if err := cbor.Unmarshal(pair[1], &b); err != nil {
			return nil, errors.Wrap(err, "script ref bytes")
		}
		return &Script{Type: ScriptPlutusV3, Bytes: b}, nil
	}
	return nil, errors.Errorf("unsupported script language %d", tag)
}

// NativeScript covers the subset of timelock scripts the protocol mints with.
type NativeScript struct {
	Kind    NativeKind
	KeyHash Hash
	Scripts []NativeScript
}

type NativeKind uint64

const (
	NativeSig NativeKind = 0
	NativeAll NativeKind = 1
	NativeAny NativeKind = 2
)

func (n NativeScript) value() []interface{} {
	if n.Kind == NativeSig {
		return []interface{}{uint64(NativeSig), []byte(n.KeyHash)}
	}
	subs := make([]interface{}, len(n.Scripts))
	for i, s := range n.Scripts {
		subs[i] = s.value()
	}
	return []interface{}{uint64(n.Kind), subs}
}

func (n NativeScript) Script() (Script, error) {
	b, err := cbor.Marshal(n.value())
	if err != nil {
		return Script{}, errors.Wrap(err, "encode native script")
	}
	return Script{Type: ScriptNative, Bytes: b}, nil
}

// RequireSignature is the "all [sig keyHash]" script used for test tokens.
func RequireSignature(keyHash Hash) NativeScript {
	return NativeScript{
		Kind:    NativeAll,
		Scripts: []NativeScript{{Kind: NativeSig, KeyHash: keyHash}},
	}
}
