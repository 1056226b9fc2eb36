// Package ident generates random identifiers: short alphanumeric tokens
// for client ids and ULIDs for time-sortable message ids.
package ident

import (
	"crypto/rand"
	"math/big"

	"github.com/oklog/ulid/v2"
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

var alphabetSize = big.NewInt(int64(len(alphanumeric)))

// RandomString returns length random alphanumeric characters
func RandomString(length int) string {
	if length <= 0 {
		return ""
	}

	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			// crypto/rand only fails when the OS source is broken
			panic(err)
		}
		b[i] = alphanumeric[n.Int64()]
	}
	return string(b)
}

// NewID returns a new ULID string
func NewID() string {
	return ulid.Make().String()
}
