// Package cdid generates content-derived identifiers: a 48-bit millisecond
// timestamp followed by 10 bytes of entropy, encoded in Crockford base32.
// Identifiers sort lexicographically by creation time.
package cdid

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

const encodedLen = 26

var encoding = "0123456789abcdefghjkmnpqrstvwxyz"

type CDID struct {
	time    uint64 // unix milliseconds, 48 bits used
	entropy [10]byte
}

// New builds a CDID from caller-supplied entropy, typically the leading bytes
// of a content hash.
func New(entropy [10]byte, t time.Time) CDID {
	return CDID{
		time:    uint64(t.UnixMilli()) & 0xFFFFFFFFFFFF,
		entropy: entropy,
	}
}

// Generate returns a fresh identifier with random entropy. Collision
// probability stays negligible under concurrent generation because the time
// prefix is combined with 80 random bits.
func Generate() (string, error) {
	var entropy [10]byte
	_, err := rand.Read(entropy[:])
	if err != nil {
		return "", fmt.Errorf("failed to read entropy: %v", err)
	}
	return New(entropy, time.Now()).String(), nil
}

func (c CDID) String() string {
	var raw [16]byte
	binary.BigEndian.PutUint64(raw[:8], c.time<<16)
	copy(raw[6:], c.entropy[:])

	var sb strings.Builder
	sb.Grow(encodedLen)

	// 16 bytes = 128 bits; emit 26 base32 digits, the last one left-padded.
	var acc uint16
	bits := 0
	for _, b := range raw {
		acc = acc<<8 | uint16(b)
		bits += 8
		for bits >= 5 {
			bits -= 5
			sb.WriteByte(encoding[(acc>>bits)&0x1F])
		}
	}
	if bits > 0 {
		sb.WriteByte(encoding[(acc<<(5-bits))&0x1F])
	}
	return sb.String()
}

// Time extracts the creation timestamp embedded in an encoded identifier.
func Time(id string) (time.Time, error) {
	if len(id) != encodedLen {
		return time.Time{}, fmt.Errorf("invalid cdid length: %d", len(id))
	}
	var ms uint64
	// The first 10 digits hold 50 bits; the 48-bit timestamp sits in the top.
	for i := 0; i < 10; i++ {
		idx := strings.IndexByte(encoding, id[i])
		if idx < 0 {
			return time.Time{}, fmt.Errorf("invalid cdid digit %q", id[i])
		}
		ms = ms<<5 | uint64(idx)
	}
	ms >>= 2
	return time.UnixMilli(int64(ms)), nil
}

// IsValid reports whether id is syntactically a cdid.
func IsValid(id string) bool {
	if len(id) != encodedLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if strings.IndexByte(encoding, id[i]) < 0 {
			return false
		}
	}
	return true
}
