package plutus

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeKnownVectors(t *testing.T) {
	tests := []struct {
		name string
		data Data
		hex  string
	}{
		{"void", Void(), "d87980"},
		{"constr with int", NewConstr(0, NewInt(1)), "d8799f01ff"},
		{"constr 3", NewConstr(3, NewInt(-1)), "d87c9f20ff"},
		{"constr 7", NewConstr(7), "d9050080"},
		{"general constr", NewConstr(200), "d8668218c880"},
		{"empty list", List{}, "80"},
		{"int list", Ints([]uint64{3, 4}), "9f0304ff"},
		{"short bytes", Bytes{0xca, 0xfe}, "42cafe"},
		{"map", Map{{Key: Bytes("a"), Value: NewInt(24)}}, "a141611818"},
		{"none", None(), "d87a80"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeHex(tt.data)
			require.Nil(t, err)
			assert.Equal(t, tt.hex, got)
		})
	}
}

func TestEncodeChunksLongBytes(t *testing.T) {
	long := Bytes(bytes.Repeat([]byte{0x01}, 70))
	b, err := Encode(long)
	require.Nil(t, err)

	assert.Equal(t, byte(0x5f), b[0])
	assert.Equal(t, []byte{0x58, 0x40}, b[1:3])
	assert.Equal(t, byte(0x46), b[3+64])
	assert.Equal(t, byte(0xff), b[len(b)-1])

	back, err := Decode(b)
	require.Nil(t, err)
	assert.Equal(t, long, back)
}

func TestDecodeRoundTrip(t *testing.T) {
	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	d := NewConstr(3,
		List{NewUint(4), NewUint(0)},
		List{NewUint(1), NewUint(1)},
		NewUint(2),
		Ints([]uint64{3, 4}),
		NewUint(0),
		Int{huge},
		NewConstr(130, Bytes("x")),
		Map{{Key: NewConstr(0), Value: List{}}},
	)
	b, err := Encode(d)
	require.Nil(t, err)

	back, err := Decode(b)
	require.Nil(t, err)

	again, err := Encode(back)
	require.Nil(t, err)
	assert.Equal(t, b, again)

	c, err := AsConstr(back)
	require.Nil(t, err)
	assert.Equal(t, uint64(3), c.Index)
	f, err := c.Field(3, 5)
	require.Nil(t, err)
	n, err := AsInt(f)
	require.Nil(t, err)
	assert.Equal(t, 0, n.Cmp(huge))
}

func TestDecodeDefiniteArrays(t *testing.T) {
	// the same value written by a tool that prefers definite-length arrays
	raw, _ := hex.DecodeString("d8798142cafe")
	d, err := Decode(raw)
	require.Nil(t, err)
	c, err := AsConstr(d)
	require.Nil(t, err)
	b, err := AsBytes(c.Fields[0])
	require.Nil(t, err)
	assert.Equal(t, []byte{0xca, 0xfe}, b)
}

func TestDecodeRejects(t *testing.T) {
	_, err := Decode(nil)
	assert.NotNil(t, err)

	_, err = DecodeHex("d8798001")
	assert.NotNil(t, err, "trailing bytes")

	_, err = DecodeHex("f5")
	assert.NotNil(t, err, "booleans are not plutus data")

	_, err = Encode(nil)
	assert.NotNil(t, err)
}
