package kzg

import (
	"math/big"
)

// BLS12-381 scalar field order (r).
// r = 0x73eda753299d7d483339d80809a1d80553bda402fffe5bfeffffffff00000001
var blsModulus = func() *big.Int {
	r, _ := new(big.Int).SetString("73eda753299d7d483339d80809a1d80553bda402fffe5bfeffffffff00000001", 16)
	return r
}()

// Modulus returns a copy of the scalar field order r.
func Modulus() *big.Int {
	return new(big.Int).Set(blsModulus)
}

// FieldElement represents an element of the BLS12-381 scalar field.
// All arithmetic is performed modulo the field order. Subtraction goes
// through big.Int.Mod, which normalizes negative intermediates into
// [0, r), so every element stays a canonical unsigned representative.
type FieldElement struct {
	v *big.Int
}

// NewFieldElement creates a FieldElement from a big.Int, reducing mod r.
func NewFieldElement(v *big.Int) FieldElement {
	r := new(big.Int).Mod(v, blsModulus)
	return FieldElement{v: r}
}

// NewFieldElementFromUint64 creates a FieldElement from a uint64.
func NewFieldElementFromUint64(v uint64) FieldElement {
	return FieldElement{v: new(big.Int).SetUint64(v)}
}

// NewFieldElementFromBytes big-endian-decodes data and reduces mod r.
// This is how 32-byte blob blocks become polynomial coefficients.
func NewFieldElementFromBytes(data []byte) FieldElement {
	return NewFieldElement(new(big.Int).SetBytes(data))
}

// FieldZero returns the additive identity.
func FieldZero() FieldElement {
	return FieldElement{v: new(big.Int)}
}

// FieldOne returns the multiplicative identity.
func FieldOne() FieldElement {
	return FieldElement{v: big.NewInt(1)}
}

// IsZero returns true if the element is zero.
func (a FieldElement) IsZero() bool {
	return a.v.Sign() == 0
}

// Equal returns true if two field elements are equal.
func (a FieldElement) Equal(b FieldElement) bool {
	return a.v.Cmp(b.v) == 0
}

// BigInt returns a copy of the underlying big.Int.
func (a FieldElement) BigInt() *big.Int {
	return new(big.Int).Set(a.v)
}

// Bytes returns the canonical 32-byte big-endian encoding.
func (a FieldElement) Bytes() [32]byte {
	var out [32]byte
	a.v.FillBytes(out[:])
	return out
}

// Add returns a + b mod r.
func (a FieldElement) Add(b FieldElement) FieldElement {
	r := new(big.Int).Add(a.v, b.v)
	r.Mod(r, blsModulus)
	return FieldElement{v: r}
}

// Sub returns a - b mod r.
func (a FieldElement) Sub(b FieldElement) FieldElement {
	r := new(big.Int).Sub(a.v, b.v)
	r.Mod(r, blsModulus)
	return FieldElement{v: r}
}

// Mul returns a * b mod r.
func (a FieldElement) Mul(b FieldElement) FieldElement {
	r := new(big.Int).Mul(a.v, b.v)
	r.Mod(r, blsModulus)
	return FieldElement{v: r}
}

// Neg returns -a mod r.
func (a FieldElement) Neg() FieldElement {
	if a.v.Sign() == 0 {
		return FieldZero()
	}
	r := new(big.Int).Sub(blsModulus, a.v)
	return FieldElement{v: r}
}

// Inv returns the multiplicative inverse a^{-1} mod r.
// Returns zero if a is zero.
func (a FieldElement) Inv() FieldElement {
	if a.v.Sign() == 0 {
		return FieldZero()
	}
	r := new(big.Int).ModInverse(a.v, blsModulus)
	return FieldElement{v: r}
}

// Exp returns a^exp mod r.
func (a FieldElement) Exp(exp *big.Int) FieldElement {
	r := new(big.Int).Exp(a.v, exp, blsModulus)
	return FieldElement{v: r}
}

// Div returns a / b mod r (i.e., a * b^{-1}).
func (a FieldElement) Div(b FieldElement) FieldElement {
	return a.Mul(b.Inv())
}

// RootOfUnity computes a primitive n-th root of unity in the scalar field.
// n must be a power of 2; the field supports roots up to order 2^32 since
// r - 1 = 2^32 * q.
func RootOfUnity(n uint64) FieldElement {
	if n == 0 || n&(n-1) != 0 {
		panic("kzg: RootOfUnity: n must be a power of 2")
	}

	// Generator of the 2^32 subgroup: g = 5^((r-1)/2^32) mod r.
	rMinus1 := new(big.Int).Sub(blsModulus, big.NewInt(1))
	twoTo32 := new(big.Int).Lsh(big.NewInt(1), 32)
	cofactor := new(big.Int).Div(rMinus1, twoTo32)
	g := new(big.Int).Exp(big.NewInt(5), cofactor, blsModulus)

	// An n-th root is g raised to 2^32 / n.
	exp := new(big.Int).SetUint64(uint64(1) << 32 / n)
	root := new(big.Int).Exp(g, exp, blsModulus)
	return FieldElement{v: root}
}

// EvaluationPoint returns omega^index where omega is the primitive n-th
// root of unity. These are the per-cell evaluation points used by
// CellProof.
func EvaluationPoint(index, n uint64) FieldElement {
	w := RootOfUnity(n)
	return w.Exp(new(big.Int).SetUint64(index % n))
}
