// Package wallet implements Ethereum-compatible wallet signature handling:
// personal-message hashing, public key recovery from compact signatures, and
// address derivation. Sessions are issued only to callers that prove control
// of a wallet key by signing a server-issued challenge.
package wallet

import (
	"encoding/hex"
	"fmt"
	"strings"

	secp256k1 "github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/fraudwatch/fraudwatch/internal/common"
	"github.com/fraudwatch/fraudwatch/internal/normalize"
)

const personalMessagePrefix = "\x19Ethereum Signed Message:\n"

// HashPersonalMessage returns the keccak256 digest of msg wrapped in the
// EIP-191 personal-message envelope, matching what wallet providers sign.
func HashPersonalMessage(msg string) []byte {
	wrapped := fmt.Sprintf("%s%d%s", personalMessagePrefix, len(msg), msg)
	h := normalize.Keccak256Hex([]byte(wrapped))
	b, _ := hex.DecodeString(strings.TrimPrefix(h, "0x"))
	return b
}

// RecoverAddress recovers the signer address of an EIP-191 personal signature
// over message. sigHex is the 65-byte R||S||V signature in hex, with or
// without a 0x prefix; V may be 0/1 or 27/28.
func RecoverAddress(message, sigHex string) (string, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil || len(sig) != 65 {
		return "", common.ErrInvalidSignature
	}

	v := sig[64]
	if v < 27 {
		v += 27
	}

	// RecoverCompact wants the recovery code first.
	compact := make([]byte, 65)
	compact[0] = v
	copy(compact[1:], sig[:64])

	pub, _, err := secpecdsa.RecoverCompact(compact, HashPersonalMessage(message))
	if err != nil {
		return "", common.ErrInvalidSignature
	}

	return PubKeyAddress(pub), nil
}

// PubKeyAddress derives the 0x-prefixed lowercase hex address for pub:
// the last 20 bytes of keccak256 over the uncompressed key without its
// 0x04 tag.
func PubKeyAddress(pub *secp256k1.PublicKey) string {
	raw := pub.SerializeUncompressed()[1:]
	digest := strings.TrimPrefix(normalize.Keccak256Hex(raw), "0x")
	return "0x" + digest[len(digest)-40:]
}

// SignMessage signs message with the EIP-191 envelope and returns the hex
// R||S||V signature a wallet provider would produce.
func SignMessage(key *secp256k1.PrivateKey, message string) string {
	compact := secpecdsa.SignCompact(key, HashPersonalMessage(message), false)

	// Convert from recovery-code-first compact form to R||S||V.
	sig := make([]byte, 65)
	copy(sig, compact[1:])
	sig[64] = compact[0]

	return "0x" + hex.EncodeToString(sig)
}

// SameAddress compares two hex wallet addresses case-insensitively.
func SameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}

// ValidAddress reports whether s looks like a 20-byte hex wallet address.
func ValidAddress(s string) bool {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return false
	}
	body := s[2:]
	if len(body) != 40 {
		return false
	}
	_, err := hex.DecodeString(body)
	return err == nil
}
