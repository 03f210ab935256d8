// Package fingerprint derives the content-addressed identity of a
// certificate document. The same bytes always produce the same fingerprint,
// independent of platform line endings or a leading byte-order mark.
package fingerprint

import (
	"bytes"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/sha3"
)

// DefaultMaxContentBytes bounds accepted certificate content.
const DefaultMaxContentBytes = 16 << 20

// Length is the hex length of a fingerprint.
const Length = 64

var (
	ErrEmptyContent    = errors.New("content is empty")
	ErrContentTooLarge = errors.New("content exceeds maximum size")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Compute hashes content with SHA3-256 after canonicalization. maxBytes <= 0
// falls back to DefaultMaxContentBytes.
func Compute(content []byte, maxBytes int) (string, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxContentBytes
	}
	if len(content) == 0 {
		return "", ErrEmptyContent
	}
	if len(content) > maxBytes {
		return "", ErrContentTooLarge
	}

	sum := sha3.Sum256(canonicalize(content))
	return hex.EncodeToString(sum[:]), nil
}

// IsFingerprint reports whether s is shaped like a fingerprint.
func IsFingerprint(s string) bool {
	if len(s) != Length {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// canonicalize strips a UTF-8 BOM and folds CRLF and bare CR to LF, so the
// same document scanned on different platforms fingerprints identically.
func canonicalize(content []byte) []byte {
	content = bytes.TrimPrefix(content, utf8BOM)
	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	content = bytes.ReplaceAll(content, []byte("\r"), []byte("\n"))
	return content
}
