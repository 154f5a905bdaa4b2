// Package normalize canonicalizes reported website identifiers into the
// stable form shared by the off-chain datastore and the ledger contract.
// The content hash produced here is the join key between the two systems.
package normalize

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/fraudwatch/fraudwatch/internal/common"
)

// Target is a canonicalized website identifier. Immutable once computed.
type Target struct {
	Raw        string
	Normalized string
	Hash       string
}

// Normalize lowercases the identifier, strips a leading http/https scheme and
// a single trailing path separator, and derives the keccak256 content hash of
// the result. Identifiers that normalize identically always hash identically.
func Normalize(raw string) (Target, error) {
	if strings.TrimSpace(raw) == "" {
		return Target{}, common.ErrEmptyIdentifier
	}

	n := strings.ToLower(strings.TrimSpace(raw))
	n = strings.TrimPrefix(n, "https://")
	n = strings.TrimPrefix(n, "http://")
	n = strings.TrimSuffix(n, "/")

	if n == "" {
		return Target{}, common.ErrEmptyIdentifier
	}

	return Target{Raw: raw, Normalized: n, Hash: Keccak256Hex([]byte(n))}, nil
}

// Keccak256Hex returns the 0x-prefixed hex encoding of the keccak256 digest
// of data. The ledger contract stores target keys in the same form.
func Keccak256Hex(data []byte) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return "0x" + hex.EncodeToString(h.Sum(nil))
}
