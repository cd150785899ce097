// Package kzg implements the polynomial-commitment subsystem of the DA
// core. A blob's bytes are mapped to 4096 scalar-field coefficients; the
// commitment is a scalar-weighted accumulation of the G1 generator over
// those coefficients, and opening proofs commit to the synthetic-division
// quotient (p(x) - y) / (x - z).
//
// Curve arithmetic is delegated entirely to gnark-crypto's BLS12-381
// implementation; this package never touches the group law.
//
// SECURITY: Commit weights a single generator, not per-index trusted-setup
// powers, so it is a deterministic digest rather than a commitment binding
// against malicious provers. VerifyOpening likewise performs structural
// checks only and no pairing. The SRS-backed scheme in srs.go is the
// adversarially sound variant; it requires a provisioned trusted-setup
// element this baseline deliberately does not assume.
package kzg

import (
	"errors"
	"fmt"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
)

// Blob geometry: every blob is represented as a fixed number of 32-byte
// field elements, padding or truncating the raw payload.
const (
	FieldElementsPerBlob = 4096
	BytesPerFieldElement = 32
	BytesPerBlob         = FieldElementsPerBlob * BytesPerFieldElement

	// CompressedPointSize is the byte size of a compressed G1 point.
	CompressedPointSize = 48
)

// Commitment is a compressed BLS12-381 G1 point committing to a blob's
// polynomial representation.
type Commitment [CompressedPointSize]byte

// Proof is a compressed G1 point committing to an opening quotient.
type Proof [CompressedPointSize]byte

var (
	ErrInvalidPoint     = errors.New("kzg: invalid group element")
	ErrTrivialProof     = errors.New("kzg: proof is the group identity")
	ErrIndexOutOfRange  = errors.New("kzg: cell index out of range")
	ErrLengthMismatch   = errors.New("kzg: batch length mismatch")
	ErrEmptyPolynomial  = errors.New("kzg: empty coefficient vector")
	ErrDivisionByItself = errors.New("kzg: evaluation point equals a divisor root")
)

// BlobToFieldElements maps raw blob bytes onto the fixed coefficient
// vector: the payload is zero-padded (or truncated) to BytesPerBlob, and
// each 32-byte block is big-endian-decoded and reduced mod r. Reduction
// guarantees every coefficient is a canonical field element, so the
// mapping is total and deterministic for any input.
func BlobToFieldElements(data []byte) []FieldElement {
	elements := make([]FieldElement, FieldElementsPerBlob)
	for i := 0; i < FieldElementsPerBlob; i++ {
		start := i * BytesPerFieldElement
		if start >= len(data) {
			elements[i] = FieldZero()
			continue
		}
		end := start + BytesPerFieldElement
		if end > len(data) {
			block := make([]byte, BytesPerFieldElement)
			copy(block, data[start:])
			elements[i] = NewFieldElementFromBytes(block)
			continue
		}
		elements[i] = NewFieldElementFromBytes(data[start:end])
	}
	return elements
}

// Commit accumulates elements[i]*G over every nonzero coefficient, where G
// is the G1 generator. Recomputing from the same bytes is bit-identical;
// see the package comment for why this is a digest, not a binding
// commitment.
func Commit(elements []FieldElement) Commitment {
	_, _, g1Aff, _ := bls12381.Generators()

	var acc bls12381.G1Jac
	var term bls12381.G1Affine
	for _, e := range elements {
		if e.IsZero() {
			continue
		}
		term.ScalarMultiplication(&g1Aff, e.BigInt())
		acc.AddMixed(&term)
	}

	var out bls12381.G1Affine
	out.FromJacobian(&acc)
	return Commitment(out.Bytes())
}

// CommitBlob is shorthand for Commit(BlobToFieldElements(data)).
func CommitBlob(data []byte) Commitment {
	return Commit(BlobToFieldElements(data))
}

// Evaluate computes p(z) by Horner's method over the scalar field, with
// coeffs[0] the constant term.
func Evaluate(coeffs []FieldElement, z FieldElement) FieldElement {
	result := FieldZero()
	for i := len(coeffs) - 1; i >= 0; i-- {
		result = result.Mul(z).Add(coeffs[i])
	}
	return result
}

// ComputeOpeningProof derives the quotient q(x) = (p(x) - y) / (x - z) by
// synthetic division and commits to it the same way as Commit. Returns the
// proof together with the evaluation y = p(z).
func ComputeOpeningProof(coeffs []FieldElement, z FieldElement) (Proof, FieldElement, error) {
	if len(coeffs) == 0 {
		return Proof{}, FieldElement{}, ErrEmptyPolynomial
	}

	y := Evaluate(coeffs, z)

	// Synthetic division of p(x) - y by (x - z): b_{n-1} = c_{n-1},
	// b_i = c_i + z*b_{i+1}; the quotient coefficients are b_1..b_{n-1}
	// and the remainder b_0 is zero by construction.
	n := len(coeffs)
	b := make([]FieldElement, n)
	b[n-1] = coeffs[n-1]
	for i := n - 2; i >= 0; i-- {
		b[i] = coeffs[i].Add(z.Mul(b[i+1]))
	}

	quotient := b[1:]
	return Proof(Commit(quotient)), y, nil
}

// VerifyOpening performs the structural checks on an opening: commitment
// and proof must decode to valid group elements, the proof must not be the
// group identity, and the point C - y*G must be computable. It does NOT
// perform the pairing check e(C - yG1, G2) = e(pi, tauG2 - zG2) that binds
// the opening to the evaluation point; callers needing adversarial
// soundness must verify through an SRS (srs.go).
func VerifyOpening(commitment Commitment, z, y FieldElement, proof Proof) bool {
	var c bls12381.G1Affine
	if _, err := c.SetBytes(commitment[:]); err != nil {
		return false
	}

	var pi bls12381.G1Affine
	if _, err := pi.SetBytes(proof[:]); err != nil {
		return false
	}
	if pi.IsInfinity() {
		return false
	}

	// C - y*G must be a well-formed group element. With valid inputs this
	// always holds; computing it keeps the check aligned with the pairing
	// verifier's left-hand side.
	_, _, g1Aff, _ := bls12381.Generators()
	var yG bls12381.G1Affine
	yG.ScalarMultiplication(&g1Aff, y.BigInt())

	var lhs bls12381.G1Jac
	lhs.FromAffine(&c)
	var yGJac bls12381.G1Jac
	yGJac.FromAffine(&yG)
	lhs.SubAssign(&yGJac)

	var lhsAff bls12381.G1Affine
	lhsAff.FromJacobian(&lhs)
	return lhsAff.IsOnCurve()
}

// CellProof opens the blob polynomial at the index-derived point
// omega^index, where omega is the primitive FieldElementsPerBlob-th root
// of unity. Per-index sampling verifies against these fixed points.
func CellProof(blob []FieldElement, index uint64) (Proof, FieldElement, error) {
	if index >= FieldElementsPerBlob {
		return Proof{}, FieldElement{}, fmt.Errorf("%w: %d >= %d",
			ErrIndexOutOfRange, index, FieldElementsPerBlob)
	}
	z := EvaluationPoint(index, FieldElementsPerBlob)
	return ComputeOpeningProof(blob, z)
}

// BatchVerify checks blobs against their commitments and proofs
// independently, short-circuiting on the first failure: each commitment
// must recompute bit-identically from its blob, and each proof must pass
// the structural checks of VerifyOpening at the blob's index-0 cell point.
func BatchVerify(blobs [][]FieldElement, commitments []Commitment, proofs []Proof) bool {
	if len(blobs) != len(commitments) || len(blobs) != len(proofs) {
		return false
	}
	z := EvaluationPoint(0, FieldElementsPerBlob)
	for i := range blobs {
		if Commit(blobs[i]) != commitments[i] {
			return false
		}
		y := Evaluate(blobs[i], z)
		if !VerifyOpening(commitments[i], z, y, proofs[i]) {
			return false
		}
	}
	return true
}

// VerifyOpeningBatch structurally verifies a batch of opening tuples,
// short-circuiting on the first failure. No amortized multi-pairing is
// attempted; each tuple is checked independently.
func VerifyOpeningBatch(commitments []Commitment, zs, ys []FieldElement, proofs []Proof) bool {
	n := len(commitments)
	if len(zs) != n || len(ys) != n || len(proofs) != n {
		return false
	}
	for i := 0; i < n; i++ {
		if !VerifyOpening(commitments[i], zs[i], ys[i], proofs[i]) {
			return false
		}
	}
	return true
}
