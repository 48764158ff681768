package provisioning

import "github.com/kbell/bleprov/pkg/pdu"

// ClientEventKind identifies the kind of event delivered to a Client's
// event callback, §6.
type ClientEventKind int

const (
	ClientEventLinkOpened ClientEventKind = iota
	ClientEventRecvCapabilities
	ClientEventEnterOutputOob
	ClientEventDisplayInputOob
	ClientEventProvisioningComplete
	ClientEventProvisioningFailed
)

// ClientEvent is delivered to a Client's OnEvent callback. Only the
// fields relevant to Kind are populated.
type ClientEvent struct {
	Kind ClientEventKind

	// Populated for ClientEventRecvCapabilities.
	Capabilities pdu.CapabilitiesPDU

	// Populated for ClientEventEnterOutputOob: the action the app should
	// prompt the user to read off the device and report back via
	// Client.EnterOutputOOB.
	OutputOobAction uint8

	// Populated for ClientEventDisplayInputOob: the value the Client
	// generated, for the app to show the user to type into the device.
	InputOobAction uint8
	InputOobSize   uint8   // 0 => numeric, else alphanumeric length
	InputOobData   []byte  // alphanumeric value when InputOobSize > 0
	InputOobNumber uint32  // numeric value when InputOobSize == 0

	// Populated for ClientEventProvisioningComplete.
	DeviceUUID    [16]byte
	Address       uint16
	NumElements   uint8
	DeviceKey     [16]byte

	// Populated for ClientEventProvisioningFailed.
	FailReason FailReason
}

// ServerEventKind identifies the kind of event delivered to a Server's
// event callback, §6.
type ServerEventKind int

const (
	ServerEventLinkOpened ServerEventKind = iota
	ServerEventOutputOob
	ServerEventOutputConfirmed
	ServerEventInputOob
	ServerEventProvisioningComplete
	ServerEventProvisioningFailed
	ServerEventDrawAttention
)

// ServerEvent is delivered to a Server's OnEvent callback. Only the
// fields relevant to Kind are populated.
type ServerEvent struct {
	Kind ServerEventKind

	// Populated for ServerEventOutputOob: the action and value the device
	// should display/blink/vibrate.
	OutputOobAction uint8
	OutputOobSize   uint8
	OutputOobData   []byte
	OutputOobNumber uint32

	// Populated for ServerEventInputOob: the action the device should
	// prompt the user to perform (the app supplies the typed value back
	// via Server.InputComplete).
	InputOobAction uint8

	// Populated for ServerEventDrawAttention: the Invite's non-zero
	// attention-duration byte, forwarded verbatim.
	AttentionSeconds uint8

	// Populated for ServerEventProvisioningComplete.
	DeviceKey      [16]byte
	NetKey         [16]byte
	NetKeyIndex    uint16
	Flags          uint8
	IVIndex        uint32
	Address        uint16

	// Populated for ServerEventProvisioningFailed.
	FailReason FailReason
}
