// Package merkle builds binary keccak-256 hash trees over shard hashes and
// produces/verifies inclusion proofs. Each blob's shards are bound to a
// single root carried next to the blob's commitment; an operator re-derives
// the leaf from the chunk payload and walks the proof path to the root.
//
// An odd node at any level is paired with itself (duplicate-self padding);
// proofs mirror the same rule by emitting the node's own hash when no
// sibling exists.
package merkle

import (
	"errors"

	"golang.org/x/crypto/sha3"
)

// Hash is a 32-byte keccak-256 digest.
type Hash [32]byte

// ErrNoLeaves is returned when building a tree from an empty leaf set.
var ErrNoLeaves = errors.New("merkle: no leaves")

// ErrIndexOutOfRange is returned for proof requests outside the leaf range.
var ErrIndexOutOfRange = errors.New("merkle: leaf index out of range")

// LeafHash returns keccak256(data), the leaf for a shard payload.
func LeafHash(data []byte) Hash {
	return hashBytes(data)
}

// BuildTree builds the tree bottom-up and returns all levels: level 0 is
// the leaves, the last level holds the single root.
func BuildTree(leaves []Hash) ([][]Hash, error) {
	if len(leaves) == 0 {
		return nil, ErrNoLeaves
	}

	levels := [][]Hash{append([]Hash(nil), leaves...)}
	for len(levels[len(levels)-1]) > 1 {
		current := levels[len(levels)-1]
		next := make([]Hash, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			left := current[i]
			right := left // duplicate-self padding for an odd tail node
			if i+1 < len(current) {
				right = current[i+1]
			}
			next = append(next, hashPair(left, right))
		}
		levels = append(levels, next)
	}
	return levels, nil
}

// Root returns the root of a tree built by BuildTree.
func Root(tree [][]Hash) Hash {
	if len(tree) == 0 || len(tree[len(tree)-1]) == 0 {
		return Hash{}
	}
	return tree[len(tree)-1][0]
}

// Proof returns the sibling path for the leaf at index. At levels where the
// node has no sibling the node's own hash is emitted, mirroring the
// duplicate-self padding rule used in BuildTree.
func Proof(tree [][]Hash, index int) ([]Hash, error) {
	if len(tree) == 0 {
		return nil, ErrNoLeaves
	}
	if index < 0 || index >= len(tree[0]) {
		return nil, ErrIndexOutOfRange
	}

	path := make([]Hash, 0, len(tree)-1)
	for level := 0; level < len(tree)-1; level++ {
		nodes := tree[level]
		sibling := index ^ 1
		if sibling >= len(nodes) {
			sibling = index // odd tail: node is its own sibling
		}
		path = append(path, nodes[sibling])
		index /= 2
	}
	return path, nil
}

// VerifyProof recomputes the path from leaf to root. The parity of index at
// each level determines concatenation order: an even index hashes as the
// left operand, an odd index as the right.
func VerifyProof(leaf Hash, proof []Hash, root Hash, index int) bool {
	if index < 0 {
		return false
	}
	node := leaf
	for _, sibling := range proof {
		if index%2 == 0 {
			node = hashPair(node, sibling)
		} else {
			node = hashPair(sibling, node)
		}
		index /= 2
	}
	return node == root
}

func hashBytes(data []byte) Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

func hashPair(left, right Hash) Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(left[:])
	h.Write(right[:])
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}
