// gf_field.go implements GF(2^8) arithmetic for the shard codec using
// pre-computed lookup tables. The field uses the primitive polynomial
// 0x11D (x^8 + x^4 + x^3 + x^2 + 1), so every non-zero element is a power
// of the generator and multiplication/division reduce to table lookups.
//
// All tables are built once in NewGaloisField; there is no lazy global
// state. Matrix helpers (Vandermonde generation, matrix-vector products,
// Gauss-Jordan inversion) operate on byte matrices and back the systematic
// Reed-Solomon codec in codec.go.
package erasure

// GaloisField provides GF(2^8) arithmetic with pre-computed log/exp,
// multiplication, and inverse tables. Safe for concurrent use after
// construction; all methods are read-only.
type GaloisField struct {
	// logTbl maps non-zero field elements to their discrete log.
	logTbl [256]uint8
	// expTbl maps exponents to field elements (doubled for wraparound).
	expTbl [512]uint8
	// mulTbl is a direct multiplication lookup table.
	mulTbl [256][256]uint8
	// invTbl maps non-zero elements to their multiplicative inverse.
	invTbl [256]uint8
}

// GF(2^8) constants.
const (
	gfModulus   = 0x11D // x^8 + x^4 + x^3 + x^2 + 1
	gfOrder     = 255   // 2^8 - 1
	gfGenerator = 2     // primitive element
)

// NewGaloisField builds a GF(2^8) instance, pre-computing all lookup
// tables. Construction is the explicit, idempotent initialization point
// for the field; callers share one instance per codec.
func NewGaloisField() *GaloisField {
	gf := &GaloisField{}
	gf.initTables()
	return gf
}

func (gf *GaloisField) initTables() {
	// Build exp and log tables from the generator.
	var x uint16 = 1
	for i := 0; i < gfOrder; i++ {
		gf.expTbl[i] = uint8(x)
		gf.logTbl[x] = uint8(i)
		x <<= 1
		if x&0x100 != 0 {
			x ^= gfModulus
		}
	}
	// Second half for wraparound-free indexing.
	for i := 0; i < gfOrder; i++ {
		gf.expTbl[i+gfOrder] = gf.expTbl[i]
	}

	// Direct multiplication table.
	for a := 0; a < 256; a++ {
		for b := 0; b < 256; b++ {
			if a == 0 || b == 0 {
				gf.mulTbl[a][b] = 0
			} else {
				logSum := uint16(gf.logTbl[a]) + uint16(gf.logTbl[b])
				if logSum >= gfOrder {
					logSum -= gfOrder
				}
				gf.mulTbl[a][b] = gf.expTbl[logSum]
			}
		}
	}

	// Inverse table. invTbl[0] stays 0 by convention; the codec never
	// divides by zero because pivot selection rejects zero pivots.
	for a := 1; a < 256; a++ {
		invLog := gfOrder - uint16(gf.logTbl[a])
		if invLog >= gfOrder {
			invLog -= gfOrder
		}
		gf.invTbl[a] = gf.expTbl[invLog]
	}
}

// Add returns a + b in GF(2^8). Addition in characteristic 2 is XOR.
func (gf *GaloisField) Add(a, b byte) byte {
	return a ^ b
}

// Sub returns a - b in GF(2^8). Subtraction equals addition in characteristic 2.
func (gf *GaloisField) Sub(a, b byte) byte {
	return a ^ b
}

// Mul returns a * b in GF(2^8) using the pre-computed multiplication table.
func (gf *GaloisField) Mul(a, b byte) byte {
	return gf.mulTbl[a][b]
}

// Div returns a / b in GF(2^8). Panics if b is zero.
func (gf *GaloisField) Div(a, b byte) byte {
	if b == 0 {
		panic("erasure/gf_field: division by zero")
	}
	if a == 0 {
		return 0
	}
	logA := uint16(gf.logTbl[a])
	logB := uint16(gf.logTbl[b])
	logResult := (logA + gfOrder - logB) % gfOrder
	return gf.expTbl[logResult]
}

// Inv returns the multiplicative inverse of a in GF(2^8). Panics if a is zero.
func (gf *GaloisField) Inv(a byte) byte {
	if a == 0 {
		panic("erasure/gf_field: inverse of zero")
	}
	return gf.invTbl[a]
}

// Pow returns a^n in GF(2^8) using log/exp tables.
func (gf *GaloisField) Pow(a byte, n int) byte {
	if n == 0 {
		return 1
	}
	if a == 0 {
		return 0
	}
	if n < 0 {
		a = gf.Inv(a)
		n = -n
	}
	logA := uint32(gf.logTbl[a])
	logResult := (logA * uint32(n)) % gfOrder
	return gf.expTbl[logResult]
}

// Exp returns g^i where g is the primitive generator of GF(2^8).
func (gf *GaloisField) Exp(i int) byte {
	idx := i % gfOrder
	if idx < 0 {
		idx += gfOrder
	}
	return gf.expTbl[idx]
}

// Log returns the discrete logarithm of a (base generator). Panics if a is zero.
func (gf *GaloisField) Log(a byte) int {
	if a == 0 {
		panic("erasure/gf_field: log of zero")
	}
	return int(gf.logTbl[a])
}

// --- Matrix helpers ---

// VandermondeParity builds the rows x cols parity matrix used by the
// systematic codec: V[r][c] = (r+1)^c. The base (r+1) skips the zero
// element, so every row is non-degenerate and any square submatrix of the
// stacked [identity; V] matrix selected by distinct shard indices is
// invertible.
func (gf *GaloisField) VandermondeParity(rows, cols int) [][]byte {
	if rows <= 0 || cols <= 0 {
		return nil
	}
	matrix := make([][]byte, rows)
	for r := 0; r < rows; r++ {
		matrix[r] = make([]byte, cols)
		val := byte(1)
		for c := 0; c < cols; c++ {
			matrix[r][c] = val
			val = gf.Mul(val, byte(r+1))
		}
	}
	return matrix
}

// MatVec computes matrix * vec over GF(2^8): result[i] is the XOR of
// Mul(matrix[i][j], vec[j]) over j.
func (gf *GaloisField) MatVec(matrix [][]byte, vec []byte) []byte {
	if len(matrix) == 0 || len(vec) == 0 {
		return nil
	}
	result := make([]byte, len(matrix))
	for i, row := range matrix {
		var acc byte
		n := len(row)
		if n > len(vec) {
			n = len(vec)
		}
		for j := 0; j < n; j++ {
			acc ^= gf.Mul(row[j], vec[j])
		}
		result[i] = acc
	}
	return result
}

// Invert computes the inverse of a square matrix over GF(2^8) using
// Gauss-Jordan elimination. Pivot selection is deterministic: for each
// column the candidate row with the numerically largest entry is chosen,
// which never selects a zero pivot when the matrix is non-singular and
// keeps reconstruction reproducible across runs.
// Returns nil if the matrix is singular. The input is not modified.
func (gf *GaloisField) Invert(matrix [][]byte) [][]byte {
	n := len(matrix)
	if n == 0 {
		return nil
	}

	// Augmented working copy [matrix | identity].
	work := make([][]byte, n)
	for i := 0; i < n; i++ {
		if len(matrix[i]) != n {
			return nil
		}
		work[i] = make([]byte, 2*n)
		copy(work[i], matrix[i])
		work[i][n+i] = 1
	}

	for col := 0; col < n; col++ {
		// Deterministic max-value pivot among rows >= col.
		pivot := col
		for r := col + 1; r < n; r++ {
			if work[r][col] > work[pivot][col] {
				pivot = r
			}
		}
		if work[pivot][col] == 0 {
			return nil // singular
		}
		work[col], work[pivot] = work[pivot], work[col]

		// Scale the pivot row so the pivot entry becomes 1.
		inv := gf.Inv(work[col][col])
		for c := 0; c < 2*n; c++ {
			work[col][c] = gf.Mul(work[col][c], inv)
		}

		// Eliminate the column from every other row.
		for r := 0; r < n; r++ {
			if r == col || work[r][col] == 0 {
				continue
			}
			factor := work[r][col]
			for c := 0; c < 2*n; c++ {
				work[r][c] ^= gf.Mul(factor, work[col][c])
			}
		}
	}

	result := make([][]byte, n)
	for i := 0; i < n; i++ {
		result[i] = make([]byte, n)
		copy(result[i], work[i][n:])
	}
	return result
}
