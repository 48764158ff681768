package beacon

import (
	"bytes"
	"testing"
)

func TestBeaconRoundTripNoURIHash(t *testing.T) {
	b := Beacon{OOBInfo: 0x1234}
	copy(b.DeviceUUID[:], bytes.Repeat([]byte{0xAB}, 16))

	enc := b.Encode()
	if len(enc) != MinSize {
		t.Fatalf("encoded length = %d, want %d", len(enc), MinSize)
	}
	got, err := Decode(enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != b {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, b)
	}
}

func TestBeaconRoundTripWithURIHash(t *testing.T) {
	b := Beacon{OOBInfo: 0xBEEF, HasURIHash: true}
	copy(b.DeviceUUID[:], bytes.Repeat([]byte{0x01}, 16))
	b.URIHash = [4]byte{0xDE, 0xAD, 0xBE, 0xEF}

	enc := b.Encode()
	if len(enc) != MaxSize {
		t.Fatalf("encoded length = %d, want %d", len(enc), MaxSize)
	}
	got, err := Decode(enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != b {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, b)
	}
}

func TestDecodeInvalidSize(t *testing.T) {
	if _, err := Decode(make([]byte, 10)); err != ErrInvalidSize {
		t.Fatalf("got %v, want ErrInvalidSize", err)
	}
}

func TestDecodeWrongType(t *testing.T) {
	buf := make([]byte, MinSize)
	buf[0] = 0x01
	if _, err := Decode(buf); err != ErrNotUnprovisionedBeacon {
		t.Fatalf("got %v, want ErrNotUnprovisionedBeacon", err)
	}
}
