//go:build meshprov_sampletest

// Package provisioning, sample-test build: mirrors the original source's
// MESH_PRV_SAMPLE_BUILD knob. Forces a fixed Random and fixed Capabilities
// so a Server's handshake is byte-reproducible against a published test
// vector. Only reachable by building with -tags meshprov_sampletest; never
// part of a default or release build.
package provisioning

import "github.com/kbell/bleprov/pkg/pdu"

// sampleFixedRandom is the Random value every sample-test Server uses in
// place of a fresh crypto/rand draw.
var sampleFixedRandom = [16]byte{
	0x8b, 0x19, 0xac, 0x31, 0xd5, 0x8b, 0x12, 0x4c,
	0xd6, 0x8b, 0x1d, 0x29, 0xac, 0x01, 0xc3, 0x43,
}

func sampleRandomFill(out *[16]byte) error {
	*out = sampleFixedRandom
	return nil
}

// sampleCapabilitiesOverride pins the advertised Capabilities to the
// values used by the SIG's published No-OOB provisioning test vector,
// regardless of what DeviceInfo.Capabilities the application supplied.
func sampleCapabilitiesOverride(caps pdu.CapabilitiesPDU) pdu.CapabilitiesPDU {
	return pdu.CapabilitiesPDU{
		NumElements:     1,
		Algorithms:      1 << uint16(pdu.AlgorithmFIPSP256),
		PublicKeyType:   0,
		StaticOOBType:   0,
		OutputOOBSize:   0,
		OutputOOBAction: 0,
		InputOOBSize:    0,
		InputOOBAction:  0,
	}
}
