package crypto

// CCMEncrypt seals plaintext with AES-CCM using the fixed 13-byte nonce
// size the provisioning bearer always uses, and a caller-chosen MIC size
// (8 bytes for the Data PDU). There is no associated data in the
// provisioning payloads that use this wrapper.
func CCMEncrypt(key [AESCCMKeySize]byte, nonce [AESCCMNonceSize]byte, plaintext []byte, micSize int) ([]byte, error) {
	ccm, err := NewAESCCMWithParams(key[:], AESCCMNonceSize, micSize)
	if err != nil {
		return nil, err
	}
	return ccm.Seal(nonce[:], plaintext, nil)
}

// CCMDecrypt opens an AES-CCM sealed payload produced by CCMEncrypt.
func CCMDecrypt(key [AESCCMKeySize]byte, nonce [AESCCMNonceSize]byte, ciphertext []byte, micSize int) ([]byte, error) {
	ccm, err := NewAESCCMWithParams(key[:], AESCCMNonceSize, micSize)
	if err != nil {
		return nil, err
	}
	return ccm.Open(nonce[:], ciphertext, nil)
}
