package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Key material is exchanged as raw fixed-width hex, not PEM, so the same
// pair can be handed to sibling services as plain environment strings:
//   private: 64 hex chars (the P-256 scalar)
//   public:  130 hex chars (04 || x || y, uncompressed point)

const (
	privateKeyHexLen = 64
	publicKeyHexLen  = 130
)

// ErrInvalidKeyMaterial is returned when configured key material does not
// match the expected raw hex encoding
var ErrInvalidKeyMaterial = errors.New("invalid key material")

// ParsePrivateKey loads a P-256 private key from its raw 64-hex-char scalar
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	if len(hexKey) != privateKeyHexLen {
		return nil, fmt.Errorf("%w: private key must be %d hex chars, got %d",
			ErrInvalidKeyMaterial, privateKeyHexLen, len(hexKey))
	}

	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: private key is not valid hex", ErrInvalidKeyMaterial)
	}

	curve := elliptic.P256()
	d := new(big.Int).SetBytes(raw)

	// The scalar must be in [1, N-1]
	if d.Sign() == 0 || d.Cmp(curve.Params().N) >= 0 {
		return nil, fmt.Errorf("%w: private scalar out of range", ErrInvalidKeyMaterial)
	}

	priv := &ecdsa.PrivateKey{D: d}
	priv.Curve = curve
	priv.X, priv.Y = curve.ScalarBaseMult(raw)

	return priv, nil
}

// ParsePublicKey loads a P-256 public key from its raw uncompressed point
// encoding: the literal prefix 04 followed by 64 hex chars each of x and y
func ParsePublicKey(hexKey string) (*ecdsa.PublicKey, error) {
	if len(hexKey) != publicKeyHexLen {
		return nil, fmt.Errorf("%w: public key must be %d hex chars, got %d",
			ErrInvalidKeyMaterial, publicKeyHexLen, len(hexKey))
	}
	if !strings.HasPrefix(hexKey, "04") {
		return nil, fmt.Errorf("%w: public key must start with 04 (uncompressed point)", ErrInvalidKeyMaterial)
	}

	xRaw, err := hex.DecodeString(hexKey[2:66])
	if err != nil {
		return nil, fmt.Errorf("%w: public key x-coordinate is not valid hex", ErrInvalidKeyMaterial)
	}
	yRaw, err := hex.DecodeString(hexKey[66:130])
	if err != nil {
		return nil, fmt.Errorf("%w: public key y-coordinate is not valid hex", ErrInvalidKeyMaterial)
	}

	curve := elliptic.P256()
	x := new(big.Int).SetBytes(xRaw)
	y := new(big.Int).SetBytes(yRaw)

	if !curve.IsOnCurve(x, y) {
		return nil, fmt.Errorf("%w: point is not on the P-256 curve", ErrInvalidKeyMaterial)
	}

	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}
