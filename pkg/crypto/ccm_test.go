package crypto

import (
	"bytes"
	"testing"
)

func TestCCMEncryptDecryptRoundTrip4ByteMIC(t *testing.T) {
	var key [AESCCMKeySize]byte
	copy(key[:], mustHex(t, "0102030405060708090a0b0c0d0e0f10"))
	var nonce [AESCCMNonceSize]byte
	copy(nonce[:], mustHex(t, "000102030405060708090a0b0c"))

	plaintext := []byte("provisioning data payload here!")

	ciphertext, err := CCMEncrypt(key, nonce, plaintext, 4)
	if err != nil {
		t.Fatalf("CCMEncrypt: %v", err)
	}
	if len(ciphertext) != len(plaintext)+4 {
		t.Fatalf("ciphertext length = %d, want %d", len(ciphertext), len(plaintext)+4)
	}

	got, err := CCMDecrypt(key, nonce, ciphertext, 4)
	if err != nil {
		t.Fatalf("CCMDecrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("decrypted = %q, want %q", got, plaintext)
	}
}

func TestCCMDecryptRejectsTamperedMIC(t *testing.T) {
	var key [AESCCMKeySize]byte
	copy(key[:], mustHex(t, "0102030405060708090a0b0c0d0e0f10"))
	var nonce [AESCCMNonceSize]byte
	copy(nonce[:], mustHex(t, "000102030405060708090a0b0c"))

	ciphertext, err := CCMEncrypt(key, nonce, []byte("device key check"), 8)
	if err != nil {
		t.Fatalf("CCMEncrypt: %v", err)
	}
	ciphertext[len(ciphertext)-1] ^= 0xFF

	if _, err := CCMDecrypt(key, nonce, ciphertext, 8); err != ErrAESCCMAuthFailed {
		t.Fatalf("expected ErrAESCCMAuthFailed, got %v", err)
	}
}
