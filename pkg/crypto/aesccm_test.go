package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"
)

// RFC 3610 test vectors from Section 8.
// https://datatracker.ietf.org/doc/html/rfc3610
//
// All three use the 13-byte nonce with associated data; two use an
// 8-byte tag and one a 10-byte tag. They exercise the general
// CBC-MAC/CTR core as an independent correctness check of AESCCM.
var rfc3610TestVectors = []struct {
	name       string
	key        string // AES key (hex)
	nonce      string // 13-byte nonce (hex)
	aad        string // Additional authenticated data (hex)
	plaintext  string // Plaintext to encrypt (hex)
	ciphertext string // Ciphertext without AAD (hex)
	tag        string // tag (hex)
	nonceSize  int    // Nonce size (7-13)
	tagSize    int    // Tag size (4, 6, 8, 10, 12, 14, or 16)
}{
	// Packet Vector #1 (M=8, L=2)
	{
		name:       "RFC3610_Vector1",
		key:        "c0c1c2c3c4c5c6c7c8c9cacbcccdcecf",
		nonce:      "00000003020100a0a1a2a3a4a5",
		aad:        "0001020304050607",
		plaintext:  "08090a0b0c0d0e0f101112131415161718191a1b1c1d1e",
		ciphertext: "588c979a61c663d2f066d0c2c0f989806d5f6b61dac384",
		tag:        "17e8d12cfdf926e0",
		nonceSize:  13,
		tagSize:    8,
	},
	// Packet Vector #2 (M=8, L=2)
	{
		name:       "RFC3610_Vector2",
		key:        "c0c1c2c3c4c5c6c7c8c9cacbcccdcecf",
		nonce:      "00000004030201a0a1a2a3a4a5",
		aad:        "0001020304050607",
		plaintext:  "08090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f",
		ciphertext: "72c91a36e135f8cf291ca894085c87e3cc15c439c9e43a3b",
		tag:        "a091d56e10400916",
		nonceSize:  13,
		tagSize:    8,
	},
	// Packet Vector #7 (M=10, L=2) - 10-byte tag
	{
		name:       "RFC3610_Vector7",
		key:        "c0c1c2c3c4c5c6c7c8c9cacbcccdcecf",
		nonce:      "00000009080706a0a1a2a3a4a5",
		aad:        "0001020304050607",
		plaintext:  "08090a0b0c0d0e0f101112131415161718191a1b1c1d1e",
		ciphertext: "0135d1b2c95f41d5d1d4fec185d166b8094e999dfed96c",
		tag:        "048c56602c97acbb7490",
		nonceSize:  13,
		tagSize:    10,
	},
}

func TestAESCCMConstants(t *testing.T) {
	if AESCCMKeySize != 16 {
		t.Errorf("AESCCMKeySize = %d, want 16", AESCCMKeySize)
	}
	if AESCCMNonceSize != 13 {
		t.Errorf("AESCCMNonceSize = %d, want 13", AESCCMNonceSize)
	}
}

func TestNewAESCCMWithParamsInvalidKeySize(t *testing.T) {
	invalidSizes := []int{0, 8, 15, 17, 24, 32}
	for _, size := range invalidSizes {
		key := make([]byte, size)
		_, err := NewAESCCMWithParams(key, AESCCMNonceSize, 4)
		if err != ErrAESCCMInvalidKeySize {
			t.Errorf("NewAESCCMWithParams with %d-byte key: got error %v, want ErrAESCCMInvalidKeySize", size, err)
		}
	}
}

// TestAESCCMRoundtripMeshTagSizes round-trips with the 4- and 8-byte MIC
// sizes Bluetooth Mesh uses (the provisioning Data PDU uses 8), both with
// the 13-byte nonce every provisioning bearer uses.
func TestAESCCMRoundtripMeshTagSizes(t *testing.T) {
	key := []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07,
		0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f}
	nonce := []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07,
		0x08, 0x09, 0x0a, 0x0b, 0x0c}
	plaintext := []byte("net key net key index flags iv")

	for _, tagSize := range []int{4, 8} {
		ccm, err := NewAESCCMWithParams(key, AESCCMNonceSize, tagSize)
		if err != nil {
			t.Fatalf("NewAESCCMWithParams(tagSize=%d) failed: %v", tagSize, err)
		}

		ciphertext, err := ccm.Seal(nonce, plaintext, nil)
		if err != nil {
			t.Fatalf("Seal failed: %v", err)
		}
		if len(ciphertext) != len(plaintext)+tagSize {
			t.Errorf("ciphertext length = %d, want %d", len(ciphertext), len(plaintext)+tagSize)
		}

		decrypted, err := ccm.Open(nonce, ciphertext, nil)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if !bytes.Equal(plaintext, decrypted) {
			t.Errorf("decrypted text mismatch\ngot:  %x\nwant: %x", decrypted, plaintext)
		}
	}
}

func TestAESCCMRoundtripEmptyPlaintext(t *testing.T) {
	key := make([]byte, AESCCMKeySize)
	nonce := make([]byte, AESCCMNonceSize)
	plaintext := []byte{}

	ccm, err := NewAESCCMWithParams(key, AESCCMNonceSize, 8)
	if err != nil {
		t.Fatalf("NewAESCCMWithParams failed: %v", err)
	}

	ciphertext, err := ccm.Seal(nonce, plaintext, nil)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	if len(ciphertext) != 8 {
		t.Errorf("ciphertext length = %d, want 8", len(ciphertext))
	}

	decrypted, err := ccm.Open(nonce, ciphertext, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if len(decrypted) != 0 {
		t.Errorf("decrypted length = %d, want 0", len(decrypted))
	}
}

func TestAESCCMAuthenticationFailure(t *testing.T) {
	key := make([]byte, AESCCMKeySize)
	nonce := make([]byte, AESCCMNonceSize)
	plaintext := []byte("test message")

	ccm, err := NewAESCCMWithParams(key, AESCCMNonceSize, 8)
	if err != nil {
		t.Fatalf("NewAESCCMWithParams failed: %v", err)
	}

	ciphertext, err := ccm.Seal(nonce, plaintext, nil)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	// Tamper with ciphertext
	tamperedCiphertext := make([]byte, len(ciphertext))
	copy(tamperedCiphertext, ciphertext)
	tamperedCiphertext[0] ^= 0x01

	_, err = ccm.Open(nonce, tamperedCiphertext, nil)
	if err != ErrAESCCMAuthFailed {
		t.Errorf("Open with tampered ciphertext: got error %v, want ErrAESCCMAuthFailed", err)
	}

	// Tamper with tag
	tamperedTag := make([]byte, len(ciphertext))
	copy(tamperedTag, ciphertext)
	tamperedTag[len(tamperedTag)-1] ^= 0x01

	_, err = ccm.Open(nonce, tamperedTag, nil)
	if err != ErrAESCCMAuthFailed {
		t.Errorf("Open with tampered tag: got error %v, want ErrAESCCMAuthFailed", err)
	}
}

func TestAESCCMInvalidNonce(t *testing.T) {
	key := make([]byte, AESCCMKeySize)
	ccm, err := NewAESCCMWithParams(key, AESCCMNonceSize, 8)
	if err != nil {
		t.Fatalf("NewAESCCMWithParams failed: %v", err)
	}

	invalidNonces := []int{0, 7, 12, 14, 16}
	for _, size := range invalidNonces {
		nonce := make([]byte, size)
		_, err := ccm.Seal(nonce, []byte("test"), nil)
		if err != ErrAESCCMInvalidNonceSize {
			t.Errorf("Seal with %d-byte nonce: got error %v, want ErrAESCCMInvalidNonceSize", size, err)
		}

		_, err = ccm.Open(nonce, make([]byte, 8), nil)
		if err != ErrAESCCMInvalidNonceSize {
			t.Errorf("Open with %d-byte nonce: got error %v, want ErrAESCCMInvalidNonceSize", size, err)
		}
	}
}

func TestAESCCMCiphertextTooShort(t *testing.T) {
	key := make([]byte, AESCCMKeySize)
	nonce := make([]byte, AESCCMNonceSize)

	ccm, err := NewAESCCMWithParams(key, AESCCMNonceSize, 8)
	if err != nil {
		t.Fatalf("NewAESCCMWithParams failed: %v", err)
	}

	// Ciphertext shorter than tag size
	shortCiphertext := make([]byte, 7)
	_, err = ccm.Open(nonce, shortCiphertext, nil)
	if err != ErrAESCCMCiphertextTooShort {
		t.Errorf("Open with short ciphertext: got error %v, want ErrAESCCMCiphertextTooShort", err)
	}
}

// TestAESCCMRFC3610Vectors tests against authoritative RFC 3610 test vectors
// https://datatracker.ietf.org/doc/html/rfc3610
func TestAESCCMRFC3610Vectors(t *testing.T) {
	for _, tc := range rfc3610TestVectors {
		t.Run(tc.name, func(t *testing.T) {
			key, err := hex.DecodeString(tc.key)
			if err != nil {
				t.Fatalf("failed to decode key: %v", err)
			}

			nonce, err := hex.DecodeString(tc.nonce)
			if err != nil {
				t.Fatalf("failed to decode nonce: %v", err)
			}

			aad, err := hex.DecodeString(tc.aad)
			if err != nil {
				t.Fatalf("failed to decode aad: %v", err)
			}

			plaintext, err := hex.DecodeString(tc.plaintext)
			if err != nil {
				t.Fatalf("failed to decode plaintext: %v", err)
			}

			expectedCiphertext, err := hex.DecodeString(tc.ciphertext)
			if err != nil {
				t.Fatalf("failed to decode expected ciphertext: %v", err)
			}

			expectedTag, err := hex.DecodeString(tc.tag)
			if err != nil {
				t.Fatalf("failed to decode expected tag: %v", err)
			}

			// Create CCM cipher with RFC 3610 parameters
			ccm, err := NewAESCCMWithParams(key, tc.nonceSize, tc.tagSize)
			if err != nil {
				t.Fatalf("NewAESCCMWithParams failed: %v", err)
			}

			// Encrypt
			result, err := ccm.Seal(nonce, plaintext, aad)
			if err != nil {
				t.Fatalf("Seal failed: %v", err)
			}

			// Split result into ciphertext and tag
			gotCiphertext := result[:len(result)-tc.tagSize]
			gotTag := result[len(result)-tc.tagSize:]

			if !bytes.Equal(gotCiphertext, expectedCiphertext) {
				t.Errorf("ciphertext mismatch\ngot:  %x\nwant: %x", gotCiphertext, expectedCiphertext)
			}

			if !bytes.Equal(gotTag, expectedTag) {
				t.Errorf("tag mismatch\ngot:  %x\nwant: %x", gotTag, expectedTag)
			}

			// Decrypt
			decrypted, err := ccm.Open(nonce, result, aad)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}

			if !bytes.Equal(decrypted, plaintext) {
				t.Errorf("decrypted text mismatch\ngot:  %x\nwant: %x", decrypted, plaintext)
			}
		})
	}
}

func BenchmarkAESCCMSeal(b *testing.B) {
	key := make([]byte, AESCCMKeySize)
	nonce := make([]byte, AESCCMNonceSize)
	plaintext := make([]byte, 25) // size of the Data PDU's plaintext record

	ccm, _ := NewAESCCMWithParams(key, AESCCMNonceSize, 8)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = ccm.Seal(nonce, plaintext, nil)
	}
}

func BenchmarkAESCCMOpen(b *testing.B) {
	key := make([]byte, AESCCMKeySize)
	nonce := make([]byte, AESCCMNonceSize)
	plaintext := make([]byte, 25)

	ccm, _ := NewAESCCMWithParams(key, AESCCMNonceSize, 8)
	ciphertext, _ := ccm.Seal(nonce, plaintext, nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = ccm.Open(nonce, ciphertext, nil)
	}
}
