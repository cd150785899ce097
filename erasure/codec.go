// codec.go implements the systematic Reed-Solomon erasure codec over
// GF(2^8). A blob is split into dataShards equal-size pieces; shards
// 0..dataShards-1 carry the data unchanged (systematic), and the remaining
// parityShards shards are rows of a Vandermonde parity matrix applied to
// the data columns. Any dataShards of the dataShards+parityShards total
// shards reconstruct the original bytes.
package erasure

import (
	"bytes"
	"errors"
	"fmt"
)

// Codec errors.
var (
	ErrInvalidConfig      = errors.New("erasure: invalid shard configuration")
	ErrInsufficientShards = errors.New("erasure: insufficient shards for reconstruction")
	ErrShardSizeMismatch  = errors.New("erasure: shard sizes are not uniform")
	ErrShardCount         = errors.New("erasure: shard count mismatch")
	ErrEmptyInput         = errors.New("erasure: empty input data")
	ErrSingularMatrix     = errors.New("erasure: reconstruction matrix is singular")
)

// MaxTotalShards is the maximum dataShards+parityShards. Each parity row
// uses (r+1) as its Vandermonde base, so the 255 non-zero elements of
// GF(2^8) cap the total shard count.
const MaxTotalShards = 255

// Codec is a systematic Reed-Solomon encoder/decoder with a fixed shard
// geometry. Construction pre-computes the GF(2^8) tables and the parity
// matrix; a Codec is immutable and safe for concurrent use.
type Codec struct {
	gf *GaloisField

	dataShards   int
	parityShards int
	totalShards  int

	// parity is the parityShards x dataShards Vandermonde matrix with
	// parity[r][c] = (r+1)^c.
	parity [][]byte
}

// NewCodec creates a codec for the given shard counts. Fails with
// ErrInvalidConfig if either count is non-positive or the total exceeds
// MaxTotalShards.
func NewCodec(dataShards, parityShards int) (*Codec, error) {
	if dataShards <= 0 || parityShards <= 0 {
		return nil, fmt.Errorf("%w: dataShards=%d, parityShards=%d",
			ErrInvalidConfig, dataShards, parityShards)
	}
	total := dataShards + parityShards
	if total > MaxTotalShards {
		return nil, fmt.Errorf("%w: total shards %d exceeds max %d",
			ErrInvalidConfig, total, MaxTotalShards)
	}

	gf := NewGaloisField()
	return &Codec{
		gf:           gf,
		dataShards:   dataShards,
		parityShards: parityShards,
		totalShards:  total,
		parity:       gf.VandermondeParity(parityShards, dataShards),
	}, nil
}

// DataShards returns the number of data shards (k).
func (c *Codec) DataShards() int { return c.dataShards }

// ParityShards returns the number of parity shards (m).
func (c *Codec) ParityShards() int { return c.parityShards }

// TotalShards returns dataShards + parityShards.
func (c *Codec) TotalShards() int { return c.totalShards }

// Encode splits data into dataShards systematic shards plus parityShards
// parity shards. The shard size is ceil(len(data)/dataShards); the last
// data shard is zero-padded. Encode never fails on a validly constructed
// codec with non-empty input.
func (c *Codec) Encode(data []byte) ([][]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}
	shardSize := (len(data) + c.dataShards - 1) / c.dataShards
	return c.EncodeWithShardSize(data, shardSize)
}

// EncodeWithShardSize encodes with an explicit shard size. Data is
// zero-padded to dataShards*shardSize; it must fit.
func (c *Codec) EncodeWithShardSize(data []byte, shardSize int) ([][]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}
	if shardSize <= 0 || len(data) > c.dataShards*shardSize {
		return nil, fmt.Errorf("%w: %d bytes do not fit %d shards of %d bytes",
			ErrInvalidConfig, len(data), c.dataShards, shardSize)
	}

	padded := make([]byte, c.dataShards*shardSize)
	copy(padded, data)

	shards := make([][]byte, c.totalShards)
	for i := 0; i < c.dataShards; i++ {
		shards[i] = padded[i*shardSize : (i+1)*shardSize]
	}
	for r := 0; r < c.parityShards; r++ {
		shards[c.dataShards+r] = make([]byte, shardSize)
	}

	// Each byte column is an independent GF(2^8) dot product of the
	// parity row with the data shards.
	for r := 0; r < c.parityShards; r++ {
		row := c.parity[r]
		out := shards[c.dataShards+r]
		for d := 0; d < c.dataShards; d++ {
			coef := row[d]
			if coef == 0 {
				continue
			}
			src := shards[d]
			for b := 0; b < shardSize; b++ {
				out[b] ^= c.gf.Mul(coef, src[b])
			}
		}
	}

	return shards, nil
}

// Decode reconstructs the original bytes from a partial shard set. Missing
// shards are nil; at least dataShards shards must be present or Decode
// fails with ErrInsufficientShards. The result is truncated to
// originalSize, undoing the encoding pad.
func (c *Codec) Decode(shards [][]byte, originalSize int) ([]byte, error) {
	if len(shards) != c.totalShards {
		return nil, fmt.Errorf("%w: got %d shards, want %d",
			ErrShardCount, len(shards), c.totalShards)
	}

	shardSize, available, err := c.shardGeometry(shards)
	if err != nil {
		return nil, err
	}
	if available < c.dataShards {
		return nil, fmt.Errorf("%w: have %d shards, need %d",
			ErrInsufficientShards, available, c.dataShards)
	}
	if originalSize < 0 || originalSize > c.dataShards*shardSize {
		return nil, fmt.Errorf("%w: original size %d exceeds capacity %d",
			ErrInvalidConfig, originalSize, c.dataShards*shardSize)
	}

	// Fast path: all systematic shards present, concatenate directly.
	systematic := true
	for i := 0; i < c.dataShards; i++ {
		if shards[i] == nil {
			systematic = false
			break
		}
	}
	if systematic {
		out := make([]byte, 0, c.dataShards*shardSize)
		for i := 0; i < c.dataShards; i++ {
			out = append(out, shards[i]...)
		}
		return out[:originalSize], nil
	}

	// General path: select the rows of [identity; parity] matching the
	// first dataShards available indices, invert the square submatrix,
	// and multiply by the available shards to recover the data shards.
	subMatrix := make([][]byte, 0, c.dataShards)
	subShards := make([][]byte, 0, c.dataShards)
	for i := 0; i < c.totalShards && len(subMatrix) < c.dataShards; i++ {
		if shards[i] == nil {
			continue
		}
		subMatrix = append(subMatrix, c.matrixRow(i))
		subShards = append(subShards, shards[i])
	}

	inverse := c.gf.Invert(subMatrix)
	if inverse == nil {
		return nil, ErrSingularMatrix
	}

	recovered := make([][]byte, c.dataShards)
	for i := range recovered {
		recovered[i] = make([]byte, shardSize)
	}
	col := make([]byte, c.dataShards)
	for b := 0; b < shardSize; b++ {
		for j := 0; j < c.dataShards; j++ {
			col[j] = subShards[j][b]
		}
		out := c.gf.MatVec(inverse, col)
		for i := 0; i < c.dataShards; i++ {
			recovered[i][b] = out[i]
		}
	}

	result := make([]byte, 0, c.dataShards*shardSize)
	for i := 0; i < c.dataShards; i++ {
		result = append(result, recovered[i]...)
	}
	return result[:originalSize], nil
}

// Verify re-derives the parity shards from the first dataShards shards and
// byte-compares them against the supplied parity. Any missing shard,
// length mismatch, or byte difference fails closed (returns false).
func (c *Codec) Verify(shards [][]byte) bool {
	if len(shards) != c.totalShards {
		return false
	}
	shardSize := -1
	for _, s := range shards {
		if s == nil {
			return false
		}
		if shardSize == -1 {
			shardSize = len(s)
		} else if len(s) != shardSize {
			return false
		}
	}
	if shardSize <= 0 {
		return false
	}

	expected := make([]byte, shardSize)
	for r := 0; r < c.parityShards; r++ {
		row := c.parity[r]
		for b := range expected {
			expected[b] = 0
		}
		for d := 0; d < c.dataShards; d++ {
			coef := row[d]
			if coef == 0 {
				continue
			}
			src := shards[d]
			for b := 0; b < shardSize; b++ {
				expected[b] ^= c.gf.Mul(coef, src[b])
			}
		}
		if !bytes.Equal(expected, shards[c.dataShards+r]) {
			return false
		}
	}
	return true
}

// matrixRow returns row i of the full systematic+parity matrix: an
// identity row for data shards, a Vandermonde row for parity shards.
func (c *Codec) matrixRow(i int) []byte {
	row := make([]byte, c.dataShards)
	if i < c.dataShards {
		row[i] = 1
		return row
	}
	copy(row, c.parity[i-c.dataShards])
	return row
}

// shardGeometry validates that all present shards share one size and
// returns (shardSize, availableCount).
func (c *Codec) shardGeometry(shards [][]byte) (int, int, error) {
	shardSize := 0
	available := 0
	for i, s := range shards {
		if s == nil {
			continue
		}
		if shardSize == 0 {
			shardSize = len(s)
		} else if len(s) != shardSize {
			return 0, 0, fmt.Errorf("%w: shard %d has %d bytes, expected %d",
				ErrShardSizeMismatch, i, len(s), shardSize)
		}
		available++
	}
	if available > 0 && shardSize == 0 {
		return 0, 0, ErrEmptyInput
	}
	return shardSize, available, nil
}
