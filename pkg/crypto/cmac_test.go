package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("invalid hex %q: %v", s, err)
	}
	return b
}

// Test vectors from RFC 4493 Section 4.
func TestCMACRFC4493Vectors(t *testing.T) {
	key := mustHex(t, "2b7e151628aed2a6abf7158809cf4f3c")

	msg := mustHex(t, "6bc1bee22e409f96e93d7e117393172a"+
		"ae2d8a571e03ac9c9eb76fac45af8e51"+
		"30c81c46a35ce411e5fbc1191a0a52ef"+
		"f69f2445df4f9b17ad2b417be66c3710")

	cases := []struct {
		name string
		msg  []byte
		want string
	}{
		{"empty", nil, "bb1d6929e95937287fa37d129b756746"},
		{"16 bytes", msg[:16], "070a16b46b4d4144f79bdd9dd04a287c"},
		{"40 bytes", msg[:40], "dfa66747de9ae63030ca32611497c827"},
		{"64 bytes", msg[:64], "51f0bebf7e3b9d92fc49741779363cfe"},
	}

	c, err := NewCMAC(key)
	if err != nil {
		t.Fatalf("NewCMAC: %v", err)
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := c.Sum(tc.msg)
			want := mustHex(t, tc.want)
			if !bytes.Equal(got[:], want) {
				t.Fatalf("Sum(%s) = %x, want %x", tc.name, got, want)
			}
		})
	}
}

func TestCMACSumConvenience(t *testing.T) {
	key := mustHex(t, "2b7e151628aed2a6abf7158809cf4f3c")
	got, err := CMACSum(key, nil)
	if err != nil {
		t.Fatalf("CMACSum: %v", err)
	}
	want := mustHex(t, "bb1d6929e95937287fa37d129b756746")
	if !bytes.Equal(got[:], want) {
		t.Fatalf("CMACSum(empty) = %x, want %x", got, want)
	}
}

func TestCMACInvalidKeySize(t *testing.T) {
	if _, err := NewCMAC(make([]byte, 15)); err != ErrCMACInvalidKeySize {
		t.Fatalf("expected ErrCMACInvalidKeySize, got %v", err)
	}
}
