//go:build !meshprov_sampletest

package provisioning

import (
	"crypto/rand"

	"github.com/kbell/bleprov/pkg/pdu"
)

// sampleRandomFill fills out with a fresh CSPRNG value. The
// meshprov_sampletest build tag replaces this with a fixed value for
// interoperability testing against the Bluetooth SIG's published test
// vectors; it must never be linked into a release build, §9 Design Note.
func sampleRandomFill(out *[16]byte) error {
	_, err := rand.Read(out[:])
	return err
}

// sampleCapabilitiesOverride returns caps unchanged. See sampleRandomFill.
func sampleCapabilitiesOverride(caps pdu.CapabilitiesPDU) pdu.CapabilitiesPDU {
	return caps
}
