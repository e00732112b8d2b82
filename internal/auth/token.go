package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// TokenGenerator issues opaque bearer tokens.
type TokenGenerator interface {
	Issue(subject string, expiresAt time.Time) (string, error)
}

// RandomTokens issues fixed-length random alphanumeric tokens.
type RandomTokens struct {
	length int
}

// NewRandomTokens creates a generator producing tokens of the given length.
func NewRandomTokens(length int) *RandomTokens {
	return &RandomTokens{length: length}
}

// Issue returns a fresh random token. Subject and expiry are not encoded.
func (r *RandomTokens) Issue(string, time.Time) (string, error) {
	return RandomString(r.length)
}

// RandomString returns n characters drawn uniformly from [A-Za-z0-9].
func RandomString(n int) (string, error) {
	if n <= 0 {
		return "", errors.New("token length must be positive")
	}
	limit := big.NewInt(int64(len(alphanumeric)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		out[i] = alphanumeric[idx.Int64()]
	}
	return string(out), nil
}

// JWTTokens issues signed JWTs. The store still treats them as opaque strings.
type JWTTokens struct {
	secret []byte
	issuer string
}

// NewJWTTokens creates a generator with the provided secret and issuer.
func NewJWTTokens(secret, issuer string) *JWTTokens {
	return &JWTTokens{
		secret: []byte(secret),
		issuer: issuer,
	}
}

// Issue signs an HS256 token for subject expiring at expiresAt.
func (t *JWTTokens) Issue(subject string, expiresAt time.Time) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    t.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Parse verifies the signature and issuer of a token and returns its claims.
func (t *JWTTokens) Parse(raw string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(t.issuer))
	if err != nil {
		return nil, err
	}
	return claims, nil
}
