package auth

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired is returned when a token's expiry has passed
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid is returned for any other verification failure:
	// bad signature, malformed token, wrong algorithm, unparseable claims
	ErrTokenInvalid = errors.New("invalid token")
)

// Claims represents the token claim set. A token carries identity only;
// authorization is derived downstream from the address.
type Claims struct {
	Address string `json:"address"`
	jwt.RegisteredClaims
}

// Authority issues and verifies ES256 bearer tokens bound to an address
type Authority struct {
	privateKey *ecdsa.PrivateKey
	publicKey  *ecdsa.PublicKey
	ttl        time.Duration
}

// NewAuthority creates an Authority from raw hex key material.
// The private and public halves are parsed independently so a
// verify-only deployment can omit the private key.
func NewAuthority(privateHex, publicHex string, ttl time.Duration) (*Authority, error) {
	priv, err := ParsePrivateKey(privateHex)
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}

	pub, err := ParsePublicKey(publicHex)
	if err != nil {
		return nil, fmt.Errorf("public key: %w", err)
	}

	return &Authority{
		privateKey: priv,
		publicKey:  pub,
		ttl:        ttl,
	}, nil
}

// Issue signs a token for the given address, expiring after the
// configured TTL
func (a *Authority) Issue(address string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Address: address,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	tokenString, err := token.SignedString(a.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return tokenString, nil
}

// Verify validates a token and returns the address it was issued for.
// Only ES256 is accepted; any other algorithm fails verification.
func (a *Authority) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.publicKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Address == "" {
		return "", ErrTokenInvalid
	}

	return claims.Address, nil
}

// TTL returns the configured token lifetime
func (a *Authority) TTL() time.Duration {
	return a.ttl
}
