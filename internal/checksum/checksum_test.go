package checksum

import (
	"encoding/binary"
	"testing"
)

func intEncoder(k int) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(k))
	return b[:]
}

func TestFingerprintDeterministic(t *testing.T) {
	keys := []int{1, 2, 3, 4, 5}
	a := Fingerprint(keys, intEncoder)
	b := Fingerprint(keys, intEncoder)
	if a != b {
		t.Fatalf("Fingerprint not deterministic: %d != %d", a, b)
	}
}

func TestFingerprintOrderSensitive(t *testing.T) {
	a := Fingerprint([]int{1, 2, 3}, intEncoder)
	b := Fingerprint([]int{3, 2, 1}, intEncoder)
	if a == b {
		t.Fatalf("Fingerprint should differ for different orderings")
	}
}

func TestFingerprintEmpty(t *testing.T) {
	a := Fingerprint([]int{}, intEncoder)
	b := Fingerprint(nil, intEncoder)
	if a != b {
		t.Fatalf("Fingerprint of nil and empty slice should match")
	}
}
