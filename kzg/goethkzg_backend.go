//go:build goethkzg

// Production KZG backend wrapping crate-crypto/go-eth-kzg.
//
// This backend commits and proves against the real Ethereum KZG ceremony
// SRS, replacing both the generator-weighted placeholder in commitment.go
// and the insecure local SRS in srs.go for deployments that need
// adversarially sound commitments.
//
// Build with: go build -tags goethkzg ./...
package kzg

import (
	"errors"
	"fmt"

	goethkzg "github.com/crate-crypto/go-eth-kzg"
)

var (
	ErrBackendBlobSize  = errors.New("kzg: blob must be exactly BytesPerBlob bytes")
	ErrBackendCellIndex = errors.New("kzg: cell index out of range")
)

// Extended-blob cell geometry: a blob expands into 128 cells of 2048 bytes.
const (
	CellsPerExtBlob = 128
	BytesPerCell    = 2048
)

// CeremonyBackend wraps a go-eth-kzg context initialized with the
// embedded Ethereum ceremony trusted setup.
type CeremonyBackend struct {
	ctx *goethkzg.Context
}

// NewCeremonyBackend initializes the backend. Processing the ceremony SRS
// points takes a few seconds; construct once and share.
func NewCeremonyBackend() (*CeremonyBackend, error) {
	ctx, err := goethkzg.NewContext4096Secure()
	if err != nil {
		return nil, fmt.Errorf("kzg: ceremony context init: %w", err)
	}
	return &CeremonyBackend{ctx: ctx}, nil
}

// BlobToCommitment computes the ceremony-SRS commitment for a blob. The
// blob must be exactly BytesPerBlob bytes with each 32-byte block a
// canonical scalar.
func (b *CeremonyBackend) BlobToCommitment(blob []byte) (Commitment, error) {
	if len(blob) != BytesPerBlob {
		return Commitment{}, ErrBackendBlobSize
	}

	var blobArr goethkzg.Blob
	copy(blobArr[:], blob)

	comm, err := b.ctx.BlobToKZGCommitment(&blobArr, 0)
	if err != nil {
		return Commitment{}, fmt.Errorf("kzg: BlobToKZGCommitment: %w", err)
	}
	return Commitment(comm), nil
}

// ComputeBlobProof computes the blob-level KZG proof for a commitment.
func (b *CeremonyBackend) ComputeBlobProof(blob []byte, commitment Commitment) (Proof, error) {
	if len(blob) != BytesPerBlob {
		return Proof{}, ErrBackendBlobSize
	}

	var blobArr goethkzg.Blob
	copy(blobArr[:], blob)

	proof, err := b.ctx.ComputeBlobKZGProof(&blobArr, goethkzg.KZGCommitment(commitment), 0)
	if err != nil {
		return Proof{}, fmt.Errorf("kzg: ComputeBlobKZGProof: %w", err)
	}
	return Proof(proof), nil
}

// VerifyBlobProof verifies a blob proof against a commitment.
func (b *CeremonyBackend) VerifyBlobProof(blob []byte, commitment Commitment, proof Proof) bool {
	if len(blob) != BytesPerBlob {
		return false
	}

	var blobArr goethkzg.Blob
	copy(blobArr[:], blob)

	err := b.ctx.VerifyBlobKZGProof(&blobArr,
		goethkzg.KZGCommitment(commitment), goethkzg.KZGProof(proof))
	return err == nil
}

// VerifyCellProof verifies a single extended-blob cell proof against a
// commitment via the batch cell verification API.
func (b *CeremonyBackend) VerifyCellProof(commitment Commitment, cell []byte, proof Proof, cellIndex uint64) (bool, error) {
	if cellIndex >= CellsPerExtBlob {
		return false, ErrBackendCellIndex
	}
	if len(cell) != BytesPerCell {
		return false, errors.New("kzg: invalid cell size")
	}

	var c goethkzg.Cell
	copy(c[:], cell)

	err := b.ctx.VerifyCellKZGProofBatch(
		[]goethkzg.KZGCommitment{goethkzg.KZGCommitment(commitment)},
		[]uint64{cellIndex},
		[]*goethkzg.Cell{&c},
		[]goethkzg.KZGProof{goethkzg.KZGProof(proof)},
	)
	if err != nil {
		return false, err
	}
	return true, nil
}
