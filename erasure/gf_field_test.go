package erasure

import "testing"

func TestGFMulDivRoundtrip(t *testing.T) {
	gf := NewGaloisField()
	for a := 1; a < 256; a++ {
		for b := 1; b < 256; b++ {
			p := gf.Mul(byte(a), byte(b))
			if p == 0 {
				t.Fatalf("Mul(%d, %d) = 0 for non-zero operands", a, b)
			}
			if got := gf.Div(p, byte(b)); got != byte(a) {
				t.Fatalf("Div(%d, %d) = %d, want %d", p, b, got, a)
			}
		}
	}
}

func TestGFMulZero(t *testing.T) {
	gf := NewGaloisField()
	for a := 0; a < 256; a++ {
		if gf.Mul(byte(a), 0) != 0 || gf.Mul(0, byte(a)) != 0 {
			t.Fatalf("Mul with zero operand must be zero (a=%d)", a)
		}
	}
}

func TestGFInverse(t *testing.T) {
	gf := NewGaloisField()
	for a := 1; a < 256; a++ {
		inv := gf.Inv(byte(a))
		if gf.Mul(byte(a), inv) != 1 {
			t.Fatalf("a * Inv(a) != 1 for a=%d (inv=%d)", a, inv)
		}
	}
}

func TestGFPow(t *testing.T) {
	gf := NewGaloisField()
	// a^n by repeated multiplication must match table-based Pow.
	for _, a := range []byte{1, 2, 3, 29, 255} {
		acc := byte(1)
		for n := 0; n < 16; n++ {
			if got := gf.Pow(a, n); got != acc {
				t.Fatalf("Pow(%d, %d) = %d, want %d", a, n, got, acc)
			}
			acc = gf.Mul(acc, a)
		}
	}
	if gf.Pow(0, 0) != 1 {
		t.Fatal("Pow(0, 0) must be 1")
	}
	if gf.Pow(0, 5) != 0 {
		t.Fatal("Pow(0, n) must be 0 for n > 0")
	}
}

func TestGFAddIsXor(t *testing.T) {
	gf := NewGaloisField()
	if gf.Add(0xA5, 0x5A) != 0xFF {
		t.Fatal("Add must be XOR in characteristic 2")
	}
	if gf.Sub(0xA5, 0xA5) != 0 {
		t.Fatal("Sub(a, a) must be 0")
	}
}

func TestVandermondeParityShape(t *testing.T) {
	gf := NewGaloisField()
	m := gf.VandermondeParity(3, 5)
	if len(m) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(m))
	}
	for r, row := range m {
		if len(row) != 5 {
			t.Fatalf("row %d has %d cols, want 5", r, len(row))
		}
		if row[0] != 1 {
			t.Fatalf("row %d must start with 1, got %d", r, row[0])
		}
		// Each entry is the previous one multiplied by the base (r+1).
		for c := 1; c < 5; c++ {
			if row[c] != gf.Mul(row[c-1], byte(r+1)) {
				t.Fatalf("row %d col %d is not (r+1)^c", r, c)
			}
		}
	}
}

func TestInvertIdentity(t *testing.T) {
	gf := NewGaloisField()
	id := [][]byte{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	inv := gf.Invert(id)
	if inv == nil {
		t.Fatal("identity must be invertible")
	}
	for i := range id {
		for j := range id {
			if inv[i][j] != id[i][j] {
				t.Fatalf("Invert(I) != I at (%d,%d)", i, j)
			}
		}
	}
}

func TestInvertRoundtrip(t *testing.T) {
	gf := NewGaloisField()
	m := [][]byte{
		{1, 1, 1},
		{1, 2, 4},
		{1, 3, 5},
	}
	inv := gf.Invert(m)
	if inv == nil {
		t.Fatal("matrix unexpectedly singular")
	}
	// inv * m must be the identity.
	for i := 0; i < 3; i++ {
		col := make([]byte, 3)
		for j := 0; j < 3; j++ {
			col[j] = m[j][i]
		}
		out := gf.MatVec(inv, col)
		for j := 0; j < 3; j++ {
			want := byte(0)
			if i == j {
				want = 1
			}
			if out[j] != want {
				t.Fatalf("inv*m not identity at (%d,%d): got %d", j, i, out[j])
			}
		}
	}
}

func TestInvertSingular(t *testing.T) {
	gf := NewGaloisField()
	m := [][]byte{
		{1, 2},
		{1, 2}, // duplicate row
	}
	if gf.Invert(m) != nil {
		t.Fatal("expected nil for singular matrix")
	}
}
