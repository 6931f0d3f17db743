// Package skiplist — see map.go for the package doc comment and quick
// start, and for the construction-time defaults shared across variants.
// This file holds the fingerprinting helper used by tests to compare two
// Keys() snapshots cheaply, and the key encoders it takes.
//
// Reference: _examples/aalhour-rockyardkv/db/doc.go (Open/DefaultOptions
// quickstart pattern).
package skiplist

import (
	"encoding/binary"
	"math"

	"github.com/aalhour/concurrentskiplist/internal/checksum"
)

// Fingerprint hashes an ordered key snapshot (as returned by any variant's
// Keys()) into a single comparable value, using encode to turn each key
// into bytes. Two fingerprints differing means the snapshots differ in
// content or order; two fingerprints matching is strong (not absolute)
// evidence they don't.
func Fingerprint[K any](keys []K, encode func(K) []byte) uint64 {
	return checksum.Fingerprint(keys, encode)
}

// IntEncoder encodes an int key as 8 big-endian bytes, for use with
// Fingerprint.
func IntEncoder(k int) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(k))
	return b[:]
}

// StringEncoder encodes a string key as its raw bytes, for use with
// Fingerprint.
func StringEncoder(k string) []byte {
	return []byte(k)
}

// Float64Encoder encodes a float64 key as 8 big-endian bytes of its bit
// pattern, for use with Fingerprint.
func Float64Encoder(k float64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(k))
	return b[:]
}
