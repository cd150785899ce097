package operator

import (
	"context"
	"errors"

	"golang.org/x/crypto/sha3"
)

// ErrSigningFailed wraps any failure of the operator's signer. A sample
// request whose signature cannot be produced is answered with an error,
// never with an unsigned response.
var ErrSigningFailed = errors.New("operator: signing failed")

// Signer produces the operator's signature over a sample-response message.
// Implementations may be remote (KMS, HSM), so Sign takes a context.
type Signer interface {
	Sign(ctx context.Context, msg []byte) ([]byte, error)
}

// DevSigner is a keyed-keccak signer for tests and local development. It
// is not a real signature scheme; production deployments use the BLS
// signer built under the blst tag.
type DevSigner struct {
	secret []byte
}

// NewDevSigner creates a DevSigner with the given secret.
func NewDevSigner(secret []byte) *DevSigner {
	return &DevSigner{secret: append([]byte(nil), secret...)}
}

// Sign returns keccak256(secret || msg).
func (s *DevSigner) Sign(ctx context.Context, msg []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(s.secret)
	h.Write(msg)
	return h.Sum(nil), nil
}
