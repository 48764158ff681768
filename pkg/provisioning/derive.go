package provisioning

import "github.com/kbell/bleprov/pkg/crypto"

// sessionMaterial is the bundle of secrets derived once both Randoms are
// known, §4.3.
type sessionMaterial struct {
	ProvisioningSalt [16]byte
	SessionKey       [16]byte
	SessionNonce     [13]byte
	DeviceKey        [16]byte
}

// deriveSessionMaterial computes ProvisioningSalt/SessionKey/SessionNonce/
// DeviceKey from ConfirmationSalt and both Randoms.
func deriveSessionMaterial(confirmationSalt, randomProvisioner, randomDevice [16]byte, ecdhSecret [32]byte) sessionMaterial {
	var concat [48]byte
	copy(concat[0:16], confirmationSalt[:])
	copy(concat[16:32], randomProvisioner[:])
	copy(concat[32:48], randomDevice[:])
	salt := crypto.S1(concat[:])

	sessionKey := crypto.K1(salt, ecdhSecret[:], []byte("prsk"))
	sessionNonceFull := crypto.K1(salt, ecdhSecret[:], []byte("prsn"))
	deviceKey := crypto.K1(salt, ecdhSecret[:], []byte("prdk"))

	var nonce [13]byte
	copy(nonce[:], sessionNonceFull[3:])

	return sessionMaterial{
		ProvisioningSalt: salt,
		SessionKey:       sessionKey,
		SessionNonce:     nonce,
		DeviceKey:        deviceKey,
	}
}
