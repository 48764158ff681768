package crypto

import "testing"

func TestECDHSharedSecretAgreement(t *testing.T) {
	provisioner, err := GenerateP256KeyPair()
	if err != nil {
		t.Fatalf("GenerateP256KeyPair: %v", err)
	}
	device, err := GenerateP256KeyPair()
	if err != nil {
		t.Fatalf("GenerateP256KeyPair: %v", err)
	}

	devicePub := device.P256PublicKey()
	var devX, devY [32]byte
	copy(devX[:], devicePub[1:33])
	copy(devY[:], devicePub[33:65])

	provisionerPub := provisioner.P256PublicKey()
	var provX, provY [32]byte
	copy(provX[:], provisionerPub[1:33])
	copy(provY[:], provisionerPub[33:65])

	ok1, secret1 := ECDHSharedSecret(provisioner, devX, devY)
	ok2, secret2 := ECDHSharedSecret(device, provX, provY)

	if !ok1 || !ok2 {
		t.Fatalf("expected valid shared secret on both sides, got ok1=%v ok2=%v", ok1, ok2)
	}
	if secret1 != secret2 {
		t.Fatalf("shared secrets disagree: %x != %x", secret1, secret2)
	}
}

func TestECDHSharedSecretRejectsOffCurvePoint(t *testing.T) {
	priv, err := GenerateP256KeyPair()
	if err != nil {
		t.Fatalf("GenerateP256KeyPair: %v", err)
	}

	var badX, badY [32]byte
	badX[31] = 1
	badY[31] = 1

	ok, _ := ECDHSharedSecret(priv, badX, badY)
	if ok {
		t.Fatalf("expected off-curve peer point to be rejected")
	}
}

func TestECDHSharedSecretRejectsInfinity(t *testing.T) {
	priv, err := GenerateP256KeyPair()
	if err != nil {
		t.Fatalf("GenerateP256KeyPair: %v", err)
	}

	var zeroX, zeroY [32]byte
	ok, _ := ECDHSharedSecret(priv, zeroX, zeroY)
	if ok {
		t.Fatalf("expected point-at-infinity peer point to be rejected")
	}
}
