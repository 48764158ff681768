package crypto

import (
	"crypto/ecdh"
	"crypto/rand"
	"fmt"
)

// P-256 ECDH constants for the provisioning Crypto Toolbox, §4.4.
const (
	// P256GroupSizeBits is the group size in bits.
	P256GroupSizeBits = 256

	// P256GroupSizeBytes is the group size in bytes.
	P256GroupSizeBytes = 32

	// P256PublicKeySizeBytes is the uncompressed public key size.
	// Format: 0x04 || X (32 bytes) || Y (32 bytes) = 65 bytes
	P256PublicKeySizeBytes = 65
)

// P256KeyPair represents a P-256 key pair used for the provisioning
// handshake's ECDH key exchange (§4.4). Provisioning never signs
// anything, so this only wraps crypto/ecdh rather than also carrying
// an ECDSA key.
type P256KeyPair struct {
	ecdhPrivate *ecdh.PrivateKey
}

// P256PublicKey returns the public key in uncompressed format (65 bytes).
// Format: 0x04 || X (32 bytes) || Y (32 bytes)
func (kp *P256KeyPair) P256PublicKey() []byte {
	return kp.ecdhPrivate.PublicKey().Bytes()
}

// P256PrivateKey returns the private key as a 32-byte scalar.
func (kp *P256KeyPair) P256PrivateKey() []byte {
	return kp.ecdhPrivate.Bytes()
}

// P256GenerateKeyPair generates a new P-256 key pair.
func P256GenerateKeyPair() (*P256KeyPair, error) {
	ecdhPriv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ECDH key: %w", err)
	}

	return &P256KeyPair{ecdhPrivate: ecdhPriv}, nil
}

// P256KeyPairFromPrivateKey creates a key pair from an existing private key scalar.
func P256KeyPairFromPrivateKey(privateKey []byte) (*P256KeyPair, error) {
	if len(privateKey) != P256GroupSizeBytes {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", P256GroupSizeBytes, len(privateKey))
	}

	ecdhPriv, err := ecdh.P256().NewPrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return &P256KeyPair{ecdhPrivate: ecdhPriv}, nil
}

// P256ECDH computes the ECDH shared secret.
//
// Parameters:
//   - keyPair: Our private key
//   - peerPublicKey: Peer's 65-byte uncompressed public key (0x04 || X || Y)
//
// Returns the 32-byte shared secret (x-coordinate of the shared point).
func P256ECDH(keyPair *P256KeyPair, peerPublicKey []byte) ([]byte, error) {
	if len(peerPublicKey) != P256PublicKeySizeBytes {
		return nil, fmt.Errorf("peer public key must be %d bytes, got %d", P256PublicKeySizeBytes, len(peerPublicKey))
	}

	peerPub, err := ecdh.P256().NewPublicKey(peerPublicKey)
	if err != nil {
		return nil, fmt.Errorf("invalid peer public key: %w", err)
	}

	secret, err := keyPair.ecdhPrivate.ECDH(peerPub)
	if err != nil {
		return nil, fmt.Errorf("ECDH computation failed: %w", err)
	}

	return secret, nil
}

// GenerateP256KeyPair generates a new P-256 key pair for the provisioning
// Crypto Toolbox. It is a thin alias over P256GenerateKeyPair so Toolbox
// call sites read the way the rest of the toolbox's operations are named.
func GenerateP256KeyPair() (*P256KeyPair, error) {
	return P256GenerateKeyPair()
}

// ECDHSharedSecret computes the P-256 ECDH shared secret from a peer public
// key given as raw X/Y coordinates, reporting validity instead of an error.
// ok is false when the peer point is off-curve or is the point at infinity;
// crypto/ecdh.NewPublicKey already rejects both, so this just surfaces that
// as a boolean the way the provisioning state machines need it.
func ECDHSharedSecret(priv *P256KeyPair, peerX, peerY [32]byte) (ok bool, secret [32]byte) {
	peerPub := make([]byte, P256PublicKeySizeBytes)
	peerPub[0] = 0x04
	copy(peerPub[1:33], peerX[:])
	copy(peerPub[33:65], peerY[:])

	raw, err := P256ECDH(priv, peerPub)
	if err != nil {
		return false, secret
	}
	copy(secret[:], raw)
	return true, secret
}

// P256ECDHFromPrivateKey computes ECDH using raw private key bytes.
// This is a convenience function when you have the private key as bytes.
func P256ECDHFromPrivateKey(privateKey, peerPublicKey []byte) ([]byte, error) {
	kp, err := P256KeyPairFromPrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	return P256ECDH(kp, peerPublicKey)
}
