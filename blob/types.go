// Package blob defines the data model of the availability core and the
// chunk assembler that packages Reed-Solomon shards with their integrity
// proofs for transport to storage operators.
package blob

import (
	"encoding/binary"
	"encoding/hex"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/dmitro3/jeju-sub018/kzg"
	"github.com/dmitro3/jeju-sub018/merkle"
)

// ID is a 32-byte content-derived blob identifier.
type ID [32]byte

// DeriveID returns keccak256(data), the canonical identifier for a payload.
func DeriveID(data []byte) ID {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	var id ID
	copy(id[:], h.Sum(nil))
	return id
}

func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Blob is the logical unit of data submitted for storage. Immutable once
// committed; evicted when the retention deadline passes.
type Blob struct {
	ID           ID
	OriginalSize int
	DataShards   int
	ParityShards int

	Commitment kzg.Commitment
	MerkleRoot merkle.Hash

	SubmittedAt       time.Time
	RetentionDeadline time.Time
}

// Proof carries everything an operator needs to check a chunk against the
// blob's advertised Merkle root without holding the full blob.
type Proof struct {
	// MerklePath is the sibling path from the shard's leaf to the root.
	MerklePath []merkle.Hash

	// BindingTag is keccak256(blobID || index || shardHash), tying the
	// shard bytes to one position of one blob. It is an application-level
	// tag; positional integrity rests on the Merkle path.
	BindingTag [32]byte

	// PolynomialIndex is the cell index of the shard's evaluation point,
	// usable with per-cell commitment openings.
	PolynomialIndex uint64
}

// Chunk is the unit exchanged with operators: one shard plus its proof.
type Chunk struct {
	Index  int
	Data   []byte
	BlobID ID
	Proof  Proof
}

// SampleRequest asks an operator for specific chunk indices of a blob.
type SampleRequest struct {
	BlobID       ID
	ChunkIndices []int
	Requester    string
	Nonce        uint64
	Timestamp    int64 // unix milliseconds
}

// SampleResponse returns the chunks the operator holds, signed over a
// message binding the request's blob, nonce, and timestamp.
type SampleResponse struct {
	Chunks    []Chunk
	Signature []byte
}

// BindingTag computes keccak256(blobID || index || shardHash). The index is
// encoded as 8 big-endian bytes.
func BindingTag(blobID ID, index uint64, shardHash merkle.Hash) [32]byte {
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], index)

	h := sha3.NewLegacyKeccak256()
	h.Write(blobID[:])
	h.Write(idx[:])
	h.Write(shardHash[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
