package mt

import (
	"strings"
	"testing"

	"github.com/havocworlds/shuffle/go-offchain/pkg/cardano/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ref(t *testing.T, b string, idx uint32) types.UtxoRef {
	r, err := types.NewUtxoRef(strings.Repeat(b, 32), idx)
	require.Nil(t, err)
	return r
}

func TestMerkleTreeRoot(t *testing.T) {
	tree := NewMerkleTree()
	require.Nil(t, tree.Add([]byte("Foo")))
	require.Nil(t, tree.Add([]byte("Bar")))
	root, err := tree.GetRoot()
	require.Nil(t, err)
	assert.Len(t, root, 32)

	other := NewMerkleTree()
	require.Nil(t, other.Add([]byte("Foo")))
	require.Nil(t, other.Add([]byte("Baz")))
	otherRoot, err := other.GetRoot()
	require.Nil(t, err)
	assert.NotEqual(t, root, otherRoot)
}

func TestEmptyRoot(t *testing.T) {
	root, err := NewMerkleTree().GetRoot()
	require.Nil(t, err)
	assert.Equal(t, make([]byte, 32), root)
}

func TestInputSetRootIgnoresOrder(t *testing.T) {
	a, b, c := ref(t, "aa", 1), ref(t, "aa", 0), ref(t, "bb", 0)

	r1, err := InputSetRoot([]types.UtxoRef{a, b}, []types.UtxoRef{c})
	require.Nil(t, err)
	r2, err := InputSetRoot([]types.UtxoRef{b, a}, []types.UtxoRef{c})
	require.Nil(t, err)
	assert.Equal(t, r1, r2)
}

func TestInputSetRootSeparatesRoles(t *testing.T) {
	a, c := ref(t, "aa", 1), ref(t, "bb", 0)

	spendBoth, err := InputSetRoot([]types.UtxoRef{a, c}, nil)
	require.Nil(t, err)
	readOne, err := InputSetRoot([]types.UtxoRef{a}, []types.UtxoRef{c})
	require.Nil(t, err)
	assert.NotEqual(t, spendBoth, readOne)

	extra, err := InputSetRoot([]types.UtxoRef{a, c, ref(t, "cc", 3)}, nil)
	require.Nil(t, err)
	assert.NotEqual(t, spendBoth, extra)
}
