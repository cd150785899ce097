//go:build blst

// BLS sample-response signer using the supranational/blst library via CGO.
// MinPk scheme: public keys in G1 (48-byte compressed), signatures in G2
// (96-byte compressed).
//
// Build with: go build -tags blst
package operator

import (
	"context"
	"errors"
	"fmt"

	blst "github.com/supranational/blst/bindings/go"
)

// blsDST is the domain separation tag for operator sample signatures.
var blsDST = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_POP_")

const (
	blsPubkeySize = 48 // compressed G1
	blsSigSize    = 96 // compressed G2
	blsSecretSize = 32 // scalar field element
)

var (
	ErrBLSInvalidIKM       = errors.New("operator: IKM must be at least 32 bytes")
	ErrBLSKeyGenFailed     = errors.New("operator: BLS key generation failed")
	ErrBLSInvalidSecretKey = errors.New("operator: invalid BLS secret key bytes")
)

// BLSSigner signs sample-response messages with a BLS secret key.
type BLSSigner struct {
	sk     *blst.SecretKey
	pubkey []byte
}

// NewBLSSigner derives a signer from input key material (>= 32 bytes).
func NewBLSSigner(ikm []byte) (*BLSSigner, error) {
	if len(ikm) < 32 {
		return nil, ErrBLSInvalidIKM
	}
	sk := blst.KeyGen(ikm)
	if sk == nil {
		return nil, ErrBLSKeyGenFailed
	}
	pk := new(blst.P1Affine).From(sk)
	return &BLSSigner{sk: sk, pubkey: pk.Compress()}, nil
}

// NewBLSSignerFromSecretKey restores a signer from 32 serialized secret-key
// bytes.
func NewBLSSignerFromSecretKey(secretKey []byte) (*BLSSigner, error) {
	if len(secretKey) != blsSecretSize {
		return nil, ErrBLSInvalidSecretKey
	}
	sk := new(blst.SecretKey).Deserialize(secretKey)
	if sk == nil {
		return nil, ErrBLSInvalidSecretKey
	}
	pk := new(blst.P1Affine).From(sk)
	return &BLSSigner{sk: sk, pubkey: pk.Compress()}, nil
}

// PublicKey returns the 48-byte compressed G1 public key.
func (s *BLSSigner) PublicKey() []byte {
	return append([]byte(nil), s.pubkey...)
}

// Sign produces the 96-byte compressed G2 signature over msg.
func (s *BLSSigner) Sign(ctx context.Context, msg []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sig := new(blst.P2Affine).Sign(s.sk, msg, blsDST)
	if sig == nil {
		return nil, fmt.Errorf("%w: blst sign returned nil", ErrSigningFailed)
	}
	return sig.Compress(), nil
}

// VerifyBLSSignature checks a sample-response signature against a 48-byte
// compressed public key.
func VerifyBLSSignature(pubkey, msg, sig []byte) bool {
	if len(pubkey) != blsPubkeySize || len(sig) != blsSigSize {
		return false
	}
	pk := new(blst.P1Affine).Uncompress(pubkey)
	if pk == nil {
		return false
	}
	s := new(blst.P2Affine).Uncompress(sig)
	if s == nil {
		return false
	}
	return s.Verify(true, pk, true, msg, blsDST)
}
