package users

import (
	"errors"

	"github.com/hongminglow/tokenauth/internal/envelope"
)

var (
	// ErrUsernameTaken indicates a register call for an existing username.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrNotFound indicates no user matched the username, token or id.
	ErrNotFound = errors.New("user not found")
	// ErrInvalidCredentials indicates a password mismatch.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidUsername indicates a username longer than the column allows.
	ErrInvalidUsername = errors.New("username too long")
	// ErrTokenExpired indicates a known token past its expiry.
	ErrTokenExpired = errors.New("token expired")
)

// codeFor maps an operation outcome onto the wire code table.
func codeFor(err error) envelope.Code {
	switch {
	case err == nil:
		return envelope.CodeSuccess
	case errors.Is(err, ErrUsernameTaken), errors.Is(err, ErrNotFound):
		return envelope.CodeNotFound
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidUsername):
		return envelope.CodeInvalidCredentials
	case errors.Is(err, ErrTokenExpired):
		return envelope.CodeTokenExpired
	default:
		return envelope.CodeInternal
	}
}
