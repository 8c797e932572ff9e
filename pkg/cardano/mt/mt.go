package mt

import (
	merkletree "github.com/wealdtech/go-merkletree"
)

type MerkleTree interface {
	Add(leaf []byte) error
	GetRoot() ([]byte, error)
}

// emptyRoot is returned for a tree without leaves.
var emptyRoot = make([]byte, 32)

type tree struct {
	leaves [][]byte
}

func NewMerkleTree() MerkleTree {
	return &tree{}
}

func (t *tree) Add(leaf []byte) error {
	c := make([]byte, len(leaf))
	copy(c, leaf)
	t.leaves = append(t.leaves, c)
	return nil
}

func (t *tree) GetRoot() ([]byte, error) {
	if len(t.leaves) == 0 {
		return emptyRoot, nil
	}
	mt, err := merkletree.New(t.leaves)
	if err != nil {
		return nil, err
	}
	return mt.Root(), nil
}
