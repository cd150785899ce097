// srs.go implements the trusted-setup-backed variant of the commitment
// scheme: commitments against powers [tau^i]G1 and the full pairing
// verification e(C - yG1, G2) = e(pi, tauG2 - zG2). This is the
// adversarially sound scheme the baseline in commitment.go deliberately
// omits, because it requires a tau*G2 element that only a setup ceremony
// can provision.
package kzg

import (
	"errors"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
)

var (
	ErrSRSTooSmall  = errors.New("kzg: polynomial degree exceeds SRS size")
	ErrInvalidSetup = errors.New("kzg: invalid trusted setup parameters")
)

// SRS holds a structured reference string: G1 powers of a secret tau and
// the single tau*G2 element needed by the pairing verifier. The secret
// itself is never stored.
type SRS struct {
	g1    []bls12381.G1Affine // [tau^0]G1 .. [tau^{n-1}]G1
	tauG2 bls12381.G2Affine
}

// NewInsecureSRS derives an SRS from a known secret. Knowing tau allows
// forging opening proofs, so this constructor exists for tests and local
// development only; production setups load ceremony output instead.
func NewInsecureSRS(secret *big.Int, size int) (*SRS, error) {
	if secret == nil || size <= 0 {
		return nil, ErrInvalidSetup
	}
	tau := new(big.Int).Mod(secret, blsModulus)
	if tau.Sign() == 0 {
		return nil, ErrInvalidSetup
	}

	_, _, g1Aff, g2Aff := bls12381.Generators()

	g1 := make([]bls12381.G1Affine, size)
	power := big.NewInt(1)
	for i := 0; i < size; i++ {
		g1[i].ScalarMultiplication(&g1Aff, power)
		power = new(big.Int).Mod(new(big.Int).Mul(power, tau), blsModulus)
	}

	var tauG2 bls12381.G2Affine
	tauG2.ScalarMultiplication(&g2Aff, tau)

	return &SRS{g1: g1, tauG2: tauG2}, nil
}

// Size returns the number of G1 powers in the SRS.
func (s *SRS) Size() int {
	return len(s.g1)
}

// Commit computes the KZG commitment sum(coeffs[i] * [tau^i]G1). Unlike
// the baseline Commit, this binds each coefficient to its own setup
// power, making the commitment sound against malicious provers.
func (s *SRS) Commit(coeffs []FieldElement) (Commitment, error) {
	if len(coeffs) == 0 {
		return Commitment{}, ErrEmptyPolynomial
	}
	if len(coeffs) > len(s.g1) {
		return Commitment{}, ErrSRSTooSmall
	}

	var acc bls12381.G1Jac
	var term bls12381.G1Affine
	for i, c := range coeffs {
		if c.IsZero() {
			continue
		}
		term.ScalarMultiplication(&s.g1[i], c.BigInt())
		acc.AddMixed(&term)
	}

	var out bls12381.G1Affine
	out.FromJacobian(&acc)
	return Commitment(out.Bytes()), nil
}

// Open produces an SRS-backed opening proof for p at z: the quotient
// (p(x) - y) / (x - z) committed against the G1 powers.
func (s *SRS) Open(coeffs []FieldElement, z FieldElement) (Proof, FieldElement, error) {
	if len(coeffs) == 0 {
		return Proof{}, FieldElement{}, ErrEmptyPolynomial
	}
	if len(coeffs) > len(s.g1) {
		return Proof{}, FieldElement{}, ErrSRSTooSmall
	}

	y := Evaluate(coeffs, z)

	n := len(coeffs)
	b := make([]FieldElement, n)
	b[n-1] = coeffs[n-1]
	for i := n - 2; i >= 0; i-- {
		b[i] = coeffs[i].Add(z.Mul(b[i+1]))
	}

	commitment, err := s.Commit(b[1:])
	if err != nil {
		return Proof{}, FieldElement{}, err
	}
	return Proof(commitment), y, nil
}

// VerifyOpening runs the pairing equation
//
//	e(C - y*G1, G2) * e(-pi, tau*G2 - z*G2) == 1
//
// which holds exactly when the committed polynomial evaluates to y at z.
func (s *SRS) VerifyOpening(commitment Commitment, z, y FieldElement, proof Proof) bool {
	var c bls12381.G1Affine
	if _, err := c.SetBytes(commitment[:]); err != nil {
		return false
	}
	var pi bls12381.G1Affine
	if _, err := pi.SetBytes(proof[:]); err != nil {
		return false
	}

	_, _, g1Aff, g2Aff := bls12381.Generators()

	// LHS G1: C - y*G1.
	var yG bls12381.G1Affine
	yG.ScalarMultiplication(&g1Aff, y.BigInt())
	var lhsJac, yGJac bls12381.G1Jac
	lhsJac.FromAffine(&c)
	yGJac.FromAffine(&yG)
	lhsJac.SubAssign(&yGJac)
	var lhs bls12381.G1Affine
	lhs.FromJacobian(&lhsJac)

	// RHS G2: tau*G2 - z*G2.
	var zG2 bls12381.G2Affine
	zG2.ScalarMultiplication(&g2Aff, z.BigInt())
	var rhsJac, zG2Jac bls12381.G2Jac
	rhsJac.FromAffine(&s.tauG2)
	zG2Jac.FromAffine(&zG2)
	rhsJac.SubAssign(&zG2Jac)
	var rhs bls12381.G2Affine
	rhs.FromJacobian(&rhsJac)

	var negPi bls12381.G1Affine
	negPi.Neg(&pi)

	ok, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{lhs, negPi},
		[]bls12381.G2Affine{g2Aff, rhs},
	)
	return err == nil && ok
}

// CellOpen opens the blob polynomial at the index-derived root-of-unity
// point, the SRS-backed counterpart of CellProof.
func (s *SRS) CellOpen(blob []FieldElement, index uint64) (Proof, FieldElement, error) {
	if index >= FieldElementsPerBlob {
		return Proof{}, FieldElement{}, ErrIndexOutOfRange
	}
	z := EvaluationPoint(index, FieldElementsPerBlob)
	return s.Open(blob, z)
}
