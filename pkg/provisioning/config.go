package provisioning

import (
	"time"

	"github.com/kbell/bleprov/pkg/bearer"
	"github.com/kbell/bleprov/pkg/crypto"
	"github.com/kbell/bleprov/pkg/pdu"
	"github.com/pion/logging"
)

// SessionInfo is everything the application supplies to the Client to
// drive one provisioning attempt, §6.
type SessionInfo struct {
	// DeviceUUID identifies the unprovisioned device to provision, used
	// to open the PB-ADV link (ignored for PB-GATT, where the connection
	// already identifies the peer).
	DeviceUUID [16]byte

	// KeyPair is an application-supplied ECC keypair. If nil, the Client
	// generates a fresh one.
	KeyPair *crypto.P256KeyPair

	// DeviceOOBPublicKey, if non-nil, is the device's public key obtained
	// out-of-band (e.g. printed on the device or scanned from a QR code).
	// Required when the authentication selection requests PublicKeyOOB.
	DeviceOOBPublicKey *[64]byte

	// StaticOOB is the 16-byte application-supplied static OOB value,
	// required when the authentication selection is AuthMethodStaticOOB.
	StaticOOB *[16]byte

	// AttentionDuration, if non-zero, asks the device to draw attention
	// to itself while provisioning proceeds.
	AttentionDuration uint8

	// Data is the NetKey/NetKeyIndex/Flags/IVIndex/Address record to
	// deliver to the device once authentication succeeds.
	Data pdu.ProvisioningData
}

// AuthSelection is the application's response to ClientEventRecvCapabilities:
// the Start PDU parameters to use for this session, chosen based on the
// device's advertised Capabilities.
type AuthSelection struct {
	Algorithm  pdu.Algorithm
	PublicKey  pdu.PublicKeyMode
	AuthMethod pdu.AuthMethod
	AuthAction uint8
	AuthSize   uint8
}

// ClientConfig configures a Client.
type ClientConfig struct {
	LoggerFactory logging.LoggerFactory
	Bearer        *bearer.Manager
	OnEvent       func(ClientEvent)
}

// DeviceInfo is everything the application supplies to the Server at
// construction time, §6.
type DeviceInfo struct {
	// UUID is this device's 16-byte unprovisioned-device UUID.
	UUID [16]byte

	// Capabilities is advertised to the Provisioner in the Capabilities PDU.
	Capabilities pdu.CapabilitiesPDU

	// KeyPair is an application-supplied ECC keypair. If nil, the Server
	// generates a fresh one per session. Required (non-nil) when
	// Capabilities.PublicKeyType advertises OOB public-key support and a
	// Provisioner requests it.
	KeyPair *crypto.P256KeyPair

	// BeaconPeriod is how often the unprovisioned-device beacon is
	// broadcast while enabled over PB-ADV.
	BeaconPeriod time.Duration

	// OOBInfo and URIHash are carried in the unprovisioned-device beacon.
	OOBInfo uint16
	URIHash *[4]byte

	// StaticOOB is this device's 16-byte static OOB value, required when
	// a session selects AuthMethodStaticOOB.
	StaticOOB *[16]byte
}

// ServerConfig configures a Server.
type ServerConfig struct {
	LoggerFactory logging.LoggerFactory
	Bearer        *bearer.Manager
	Device        DeviceInfo
	OnEvent       func(ServerEvent)

	// OnDrawAttention, if set, is invoked instead of emitting
	// ServerEventDrawAttention when the Invite's attention-duration byte
	// is non-zero.
	OnDrawAttention func(seconds uint8)
}
