/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package room

import (
	"crypto/rand"
	"strings"
)

const (
	idAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	idLength   = 6

	// largest multiple of len(idAlphabet) that fits in a byte, so every
	// accepted byte maps uniformly onto the alphabet
	idByteLimit = 256 - 256%len(idAlphabet)
)

// IDGenerator mints candidate room ids.
type IDGenerator func() (string, error)

// RandomID returns a 6-character uppercase base36 code from crypto/rand.
func RandomID() (string, error) {
	out := make([]byte, 0, idLength)
	buf := make([]byte, idLength*2)

	for len(out) < idLength {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= idByteLimit {
				continue
			}
			out = append(out, idAlphabet[int(b)%len(idAlphabet)])
			if len(out) == idLength {
				break
			}
		}
	}

	return string(out), nil
}

// ValidID reports whether id looks like something RandomID could produce.
func ValidID(id string) bool {
	if len(id) != idLength {
		return false
	}
	for _, r := range id {
		if !strings.ContainsRune(idAlphabet, r) {
			return false
		}
	}
	return true
}

// NormalizeID turns user input ("  abc12x ") into a lookup key.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
