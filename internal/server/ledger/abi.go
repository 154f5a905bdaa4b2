package ledger

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/fraudwatch/fraudwatch/internal/normalize"
)

// Minimal ABI encoding for the handful of fraud registry calls the server
// makes. Heads hold static words and offsets; dynamic string payloads follow
// as length-prefixed, 32-byte-padded tails.

const wordSize = 32

// methodID returns the 4-byte selector for a canonical method signature,
// e.g. "reportWebsite(bytes32,string,string,bytes32)".
func methodID(signature string) []byte {
	digest := strings.TrimPrefix(normalize.Keccak256Hex([]byte(signature)), "0x")
	b, _ := hex.DecodeString(digest[:8])
	return b
}

// uintWord encodes v as a left-padded 32-byte word.
func uintWord(v uint64) []byte {
	w := make([]byte, wordSize)
	binary.BigEndian.PutUint64(w[wordSize-8:], v)
	return w
}

// boolWord encodes a boolean as a 32-byte word.
func boolWord(v bool) []byte {
	w := make([]byte, wordSize)
	if v {
		w[wordSize-1] = 1
	}
	return w
}

// hexWord decodes a 0x-prefixed hex value of at most 32 bytes into a
// left-padded word. Used for bytes32 hashes and addresses.
func hexWord(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
	if err != nil {
		return nil, fmt.Errorf("bad hex argument %q: %w", s, err)
	}
	if len(b) > wordSize {
		return nil, fmt.Errorf("hex argument %q exceeds 32 bytes", s)
	}
	w := make([]byte, wordSize)
	copy(w[wordSize-len(b):], b)
	return w, nil
}

// stringTail encodes a dynamic string: length word followed by padded bytes.
func stringTail(s string) []byte {
	padded := (len(s) + wordSize - 1) / wordSize * wordSize
	out := make([]byte, wordSize+padded)
	binary.BigEndian.PutUint64(out[wordSize-8:wordSize], uint64(len(s)))
	copy(out[wordSize:], s)
	return out
}

// encodeCall assembles selector + head words + dynamic tails. staticArgs are
// pre-encoded 32-byte words keyed by position; dynamic positions must appear
// in dynamicArgs in call order.
type callArg struct {
	word    []byte // set for static args
	dynamic string // set for dynamic string args
}

func staticArg(w []byte) callArg { return callArg{word: w} }

func dynamicArg(s string) callArg { return callArg{dynamic: s} }

func isDynamic(a callArg) bool { return a.word == nil }

func encodeCall(signature string, args ...callArg) string {
	head := make([]byte, 0, len(args)*wordSize)
	var tail []byte
	tailBase := uint64(len(args) * wordSize)

	for _, a := range args {
		if isDynamic(a) {
			head = append(head, uintWord(tailBase+uint64(len(tail)))...)
			tail = append(tail, stringTail(a.dynamic)...)
			continue
		}
		head = append(head, a.word...)
	}

	data := append(methodID(signature), head...)
	data = append(data, tail...)
	return "0x" + hex.EncodeToString(data)
}

// decodeWords splits 0x-prefixed return data into 32-byte words.
func decodeWords(data string) ([][]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(data, "0x"))
	if err != nil {
		return nil, fmt.Errorf("bad return data: %w", err)
	}
	if len(b)%wordSize != 0 {
		return nil, fmt.Errorf("return data is not word-aligned (%d bytes)", len(b))
	}
	words := make([][]byte, 0, len(b)/wordSize)
	for i := 0; i < len(b); i += wordSize {
		words = append(words, b[i:i+wordSize])
	}
	return words, nil
}

// wordUint interprets a word as an unsigned integer (low 8 bytes).
func wordUint(w []byte) uint64 {
	return binary.BigEndian.Uint64(w[wordSize-8:])
}

// decodeBytes32Array decodes a dynamic bytes32[] return value into hex ids.
func decodeBytes32Array(data string) ([]string, error) {
	words, err := decodeWords(data)
	if err != nil {
		return nil, err
	}
	if len(words) < 2 {
		return nil, fmt.Errorf("short bytes32[] return data")
	}

	// words[0] is the offset, words[1] the element count.
	n := wordUint(words[1])
	if uint64(len(words)-2) < n {
		return nil, fmt.Errorf("truncated bytes32[] return data")
	}

	out := make([]string, 0, n)
	for i := uint64(0); i < n; i++ {
		out = append(out, "0x"+hex.EncodeToString(words[2+i]))
	}
	return out, nil
}
