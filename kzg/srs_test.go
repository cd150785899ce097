package kzg

import (
	"math/big"
	"testing"
)

func mustSRS(t *testing.T, secret int64, size int) *SRS {
	t.Helper()
	srs, err := NewInsecureSRS(big.NewInt(secret), size)
	if err != nil {
		t.Fatalf("NewInsecureSRS: %v", err)
	}
	return srs
}

func TestNewInsecureSRSValidation(t *testing.T) {
	if _, err := NewInsecureSRS(nil, 8); err != ErrInvalidSetup {
		t.Fatalf("nil secret: got %v, want ErrInvalidSetup", err)
	}
	if _, err := NewInsecureSRS(big.NewInt(7), 0); err != ErrInvalidSetup {
		t.Fatalf("zero size: got %v, want ErrInvalidSetup", err)
	}
	if _, err := NewInsecureSRS(new(big.Int), 8); err != ErrInvalidSetup {
		t.Fatalf("zero secret: got %v, want ErrInvalidSetup", err)
	}

	srs := mustSRS(t, 1337, 16)
	if srs.Size() != 16 {
		t.Fatalf("Size = %d, want 16", srs.Size())
	}
}

func TestSRSCommitRejectsOversizedPolynomial(t *testing.T) {
	srs := mustSRS(t, 1337, 4)
	if _, err := srs.Commit(testCoeffs(1, 2, 3, 4, 5)); err != ErrSRSTooSmall {
		t.Fatalf("got %v, want ErrSRSTooSmall", err)
	}
	if _, err := srs.Commit(nil); err != ErrEmptyPolynomial {
		t.Fatalf("got %v, want ErrEmptyPolynomial", err)
	}
}

func TestSRSOpenVerifyRoundtrip(t *testing.T) {
	srs := mustSRS(t, 0xC0FFEE, 16)
	coeffs := testCoeffs(5, 0, 11, 7, 3, 1)
	z := NewFieldElementFromUint64(99)

	commitment, err := srs.Commit(coeffs)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	proof, y, err := srs.Open(coeffs, z)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !y.Equal(Evaluate(coeffs, z)) {
		t.Fatal("Open must return p(z)")
	}
	if !srs.VerifyOpening(commitment, z, y, proof) {
		t.Fatal("pairing verification rejected a valid opening")
	}
}

func TestSRSVerifyOpeningRejectsWrongValue(t *testing.T) {
	srs := mustSRS(t, 0xC0FFEE, 16)
	coeffs := testCoeffs(5, 0, 11, 7)
	z := NewFieldElementFromUint64(99)

	commitment, _ := srs.Commit(coeffs)
	proof, y, _ := srs.Open(coeffs, z)

	wrongY := y.Add(FieldOne())
	if srs.VerifyOpening(commitment, z, wrongY, proof) {
		t.Fatal("verification accepted a wrong claimed value")
	}
}

func TestSRSVerifyOpeningRejectsWrongPoint(t *testing.T) {
	srs := mustSRS(t, 0xC0FFEE, 16)
	coeffs := testCoeffs(5, 0, 11, 7)
	z := NewFieldElementFromUint64(99)

	commitment, _ := srs.Commit(coeffs)
	proof, y, _ := srs.Open(coeffs, z)

	wrongZ := z.Add(FieldOne())
	if srs.VerifyOpening(commitment, wrongZ, y, proof) {
		t.Fatal("verification accepted a wrong evaluation point")
	}
}

func TestSRSVerifyOpeningRejectsForeignCommitment(t *testing.T) {
	srs := mustSRS(t, 0xC0FFEE, 16)
	z := NewFieldElementFromUint64(99)

	proof, y, _ := srs.Open(testCoeffs(5, 0, 11, 7), z)
	other, _ := srs.Commit(testCoeffs(5, 0, 11, 8))
	if srs.VerifyOpening(other, z, y, proof) {
		t.Fatal("verification accepted a proof against a different polynomial")
	}
}

func TestSRSCellOpenBounds(t *testing.T) {
	srs := mustSRS(t, 7, 16)
	blob := BlobToFieldElements([]byte("cell open"))

	if _, _, err := srs.CellOpen(blob, FieldElementsPerBlob); err != ErrIndexOutOfRange {
		t.Fatalf("got %v, want ErrIndexOutOfRange", err)
	}
	// A full blob polynomial does not fit a 16-power setup.
	if _, _, err := srs.CellOpen(blob, 0); err != ErrSRSTooSmall {
		t.Fatalf("got %v, want ErrSRSTooSmall", err)
	}
}

func TestSRSCommitDiffersFromBaseline(t *testing.T) {
	// The SRS binds coefficients to distinct powers; the baseline weights a
	// single generator. For any polynomial of degree >= 1 the two must
	// disagree.
	srs := mustSRS(t, 31337, 8)
	coeffs := testCoeffs(1, 2)

	bound, err := srs.Commit(coeffs)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if bound == Commit(coeffs) {
		t.Fatal("SRS commitment collided with the baseline digest")
	}
}
