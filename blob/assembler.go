package blob

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/dmitro3/jeju-sub018/erasure"
	"github.com/dmitro3/jeju-sub018/kzg"
	"github.com/dmitro3/jeju-sub018/merkle"
)

var (
	ErrNoChunks      = errors.New("blob: no chunks supplied")
	ErrChunkIndex    = errors.New("blob: chunk index out of range")
	ErrChunkConflict = errors.New("blob: conflicting chunks for one index")
)

// Assembler turns raw payloads into transport-ready chunks and back. It
// wraps an erasure codec with a fixed shard geometry; an Assembler is
// immutable and safe for concurrent use.
type Assembler struct {
	codec *erasure.Codec
}

// NewAssembler creates an assembler for the given shard counts. Invalid
// counts propagate erasure.ErrInvalidConfig.
func NewAssembler(dataShards, parityShards int) (*Assembler, error) {
	codec, err := erasure.NewCodec(dataShards, parityShards)
	if err != nil {
		return nil, err
	}
	return &Assembler{codec: codec}, nil
}

// TotalShards returns the number of chunks CreateChunks produces.
func (a *Assembler) TotalShards() int {
	return a.codec.TotalShards()
}

// CreateChunks encodes data, builds a keccak Merkle tree over the shard
// hashes, and packages every shard with its sibling path, binding tag, and
// cell index. Returns the chunks together with the Merkle root that must be
// recorded next to the blob's commitment.
func (a *Assembler) CreateChunks(data []byte, blobID ID) ([]Chunk, merkle.Hash, error) {
	shards, err := a.codec.Encode(data)
	if err != nil {
		return nil, merkle.Hash{}, err
	}

	leaves := make([]merkle.Hash, len(shards))
	for i, shard := range shards {
		leaves[i] = merkle.LeafHash(shard)
	}
	tree, err := merkle.BuildTree(leaves)
	if err != nil {
		return nil, merkle.Hash{}, err
	}
	root := merkle.Root(tree)

	chunks := make([]Chunk, len(shards))
	for i, shard := range shards {
		path, err := merkle.Proof(tree, i)
		if err != nil {
			return nil, merkle.Hash{}, err
		}
		chunks[i] = Chunk{
			Index:  i,
			Data:   shard,
			BlobID: blobID,
			Proof: Proof{
				MerklePath:      path,
				BindingTag:      BindingTag(blobID, uint64(i), leaves[i]),
				PolynomialIndex: uint64(i),
			},
		}
	}
	return chunks, root, nil
}

// ReconstructFromChunks projects chunks into a sparse shard array by index
// and delegates to the codec. Fewer than dataShards distinct chunks fail
// with erasure.ErrInsufficientShards; an index outside the codec geometry
// or two chunks claiming the same index with different bytes are rejected
// outright.
func (a *Assembler) ReconstructFromChunks(chunks []Chunk, originalSize int) ([]byte, error) {
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}

	shards := make([][]byte, a.codec.TotalShards())
	for _, c := range chunks {
		if c.Index < 0 || c.Index >= len(shards) {
			return nil, fmt.Errorf("%w: index %d, total shards %d",
				ErrChunkIndex, c.Index, len(shards))
		}
		if existing := shards[c.Index]; existing != nil {
			if !bytes.Equal(existing, c.Data) {
				return nil, fmt.Errorf("%w: index %d", ErrChunkConflict, c.Index)
			}
			continue
		}
		shards[c.Index] = c.Data
	}

	return a.codec.Decode(shards, originalSize)
}

// VerifyChunk checks a chunk against a blob's Merkle root: the leaf
// recomputed from the chunk bytes must walk the proof path to the root at
// the chunk's index, and the binding tag must match the chunk's claimed
// blob and position. Fails closed on any mismatch.
func VerifyChunk(c Chunk, root merkle.Hash) bool {
	if c.Index < 0 {
		return false
	}
	leaf := merkle.LeafHash(c.Data)
	if c.Proof.BindingTag != BindingTag(c.BlobID, uint64(c.Index), leaf) {
		return false
	}
	if c.Proof.PolynomialIndex != uint64(c.Index) {
		return false
	}
	return merkle.VerifyProof(leaf, c.Proof.MerklePath, root, c.Index)
}

// Assemble is the submission entry point: it derives the blob's identity,
// commits to the payload, creates the chunks, and returns the blob record
// alongside them.
func (a *Assembler) Assemble(data []byte, submittedAt time.Time, retention time.Duration) (*Blob, []Chunk, error) {
	id := DeriveID(data)
	chunks, root, err := a.CreateChunks(data, id)
	if err != nil {
		return nil, nil, err
	}

	b := &Blob{
		ID:                id,
		OriginalSize:      len(data),
		DataShards:        a.codec.DataShards(),
		ParityShards:      a.codec.ParityShards(),
		Commitment:        kzg.CommitBlob(data),
		MerkleRoot:        root,
		SubmittedAt:       submittedAt,
		RetentionDeadline: submittedAt.Add(retention),
	}
	return b, chunks, nil
}
