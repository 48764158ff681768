package crypto

import "testing"

func TestS1Deterministic(t *testing.T) {
	a := S1([]byte("test"))
	b := S1([]byte("test"))
	if a != b {
		t.Fatalf("S1 not deterministic: %x != %x", a, b)
	}

	c := S1([]byte("test2"))
	if a == c {
		t.Fatalf("S1 collided for distinct inputs")
	}
}

func TestK1Deterministic(t *testing.T) {
	salt := S1([]byte("salt input"))
	n := []byte("shared secret")
	p := []byte("prsk")

	a := K1(salt, n, p)
	b := K1(salt, n, p)
	if a != b {
		t.Fatalf("K1 not deterministic: %x != %x", a, b)
	}

	other := K1(salt, n, []byte("prsn"))
	if a == other {
		t.Fatalf("K1 collided across distinct info strings")
	}
}

func TestK1MatchesCMACComposition(t *testing.T) {
	salt := S1([]byte("salt"))
	n := []byte("input key material")
	p := []byte("info")

	want := K1(salt, n, p)

	t1, err := CMACSum(salt[:], n)
	if err != nil {
		t.Fatalf("CMACSum T: %v", err)
	}
	got, err := CMACSum(t1[:], p)
	if err != nil {
		t.Fatalf("CMACSum k1: %v", err)
	}

	if got != want {
		t.Fatalf("K1 = %x, want %x (manual CMAC composition)", want, got)
	}
}
