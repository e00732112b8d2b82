// Package envelope defines the {e, d} result wrapper returned by every auth operation.
package envelope

import "github.com/hongminglow/tokenauth/internal/storage/sqlbridge"

// Code is the stable result code carried in the "e" field.
type Code int

const (
	CodeSuccess            Code = 0
	CodeInternal           Code = 1
	CodeNotFound           Code = 10 // also returned for a taken username
	CodeInvalidCredentials Code = 11
	CodeTokenExpired       Code = 12
)

// Envelope is the wire-level result of an auth operation.
type Envelope struct {
	E Code                `json:"e"`
	D *sqlbridge.Document `json:"d,omitempty"`
}

// New wraps code and an optional document.
func New(code Code, data *sqlbridge.Document) Envelope {
	return Envelope{E: code, D: data}
}

// Success reports whether the envelope carries code 0.
func (e Envelope) Success() bool {
	return e.E == CodeSuccess
}
