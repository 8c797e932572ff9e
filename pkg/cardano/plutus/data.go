// Package plutus encodes and decodes Plutus Data, the value type of datums
// and redeemers.
package plutus

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

// Data is one of Constr, Int, Bytes, List or Map.
type Data interface {
	isData()
}

type Constr struct {
	Index  uint64
	Fields []Data
}

type Int struct {
	*big.Int
}

type Bytes []byte

type List []Data

type Pair struct {
	Key   Data
	Value Data
}

// Map keeps pairs in insertion order; Plutus maps are association lists.
type Map []Pair

func (Constr) isData() {}
func (Int) isData()    {}
func (Bytes) isData()  {}
func (List) isData()   {}
func (Map) isData()    {}

func NewConstr(index uint64, fields ...Data) Constr {
	if fields == nil {
		fields = []Data{}
	}
	return Constr{Index: index, Fields: fields}
}

func NewInt(v int64) Int {
	return Int{big.NewInt(v)}
}

func NewUint(v uint64) Int {
	return Int{new(big.Int).SetUint64(v)}
}

// Ints wraps a slice of indices as a list of integers.
func Ints(vs []uint64) List {
	l := make(List, len(vs))
	for i, v := range vs {
		l[i] = NewUint(v)
	}
	return l
}

// Void is the unit value, Constr 0 [].
func Void() Data {
	return NewConstr(0)
}

// Some and None follow the Option encoding used by the validators.
func Some(d Data) Data {
	return NewConstr(0, d)
}

func None() Data {
	return NewConstr(1)
}

func (c Constr) String() string {
	return fmt.Sprintf("Constr(%d, %v)", c.Index, c.Fields)
}

func (b Bytes) String() string {
	return "#" + hex.EncodeToString(b)
}

// Field returns the i-th field of a constructor with the expected index.
func (c Constr) Field(index uint64, i int) (Data, error) {
	if c.Index != index {
		return nil, errors.Errorf("expected constructor %d, got %d", index, c.Index)
	}
	if i >= len(c.Fields) {
		return nil, errors.Errorf("constructor %d has %d fields, wanted field %d", index, len(c.Fields), i)
	}
	return c.Fields[i], nil
}

func AsConstr(d Data) (Constr, error) {
	c, ok := d.(Constr)
	if !ok {
		return Constr{}, errors.Errorf("expected constructor, got %T", d)
	}
	return c, nil
}

func AsBytes(d Data) ([]byte, error) {
	b, ok := d.(Bytes)
	if !ok {
		return nil, errors.Errorf("expected bytes, got %T", d)
	}
	return b, nil
}

func AsInt(d Data) (*big.Int, error) {
	i, ok := d.(Int)
	if !ok || i.Int == nil {
		return nil, errors.Errorf("expected integer, got %T", d)
	}
	return i.Int, nil
}

var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()
