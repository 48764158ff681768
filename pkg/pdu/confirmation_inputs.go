package pdu

// ConfirmationInputsSize is the fixed size of the ConfirmationInputs
// transcript: Invite-param(1) || Capabilities-param(11) || Start-param(5)
// || ProvisionerPubKey-param(64) || DevicePubKey-param(64) = 145 bytes.
const ConfirmationInputsSize = 1 + CapabilitiesParamSize + StartParamSize + PublicKeyParamSize + PublicKeyParamSize

const (
	inviteOffset       = 0
	capabilitiesOffset = inviteOffset + 1
	startOffset        = capabilitiesOffset + CapabilitiesParamSize
	provPubKeyOffset   = startOffset + StartParamSize
	devPubKeyOffset    = provPubKeyOffset + PublicKeyParamSize
)

// field identifies one of the five ConfirmationInputs segments, so each
// can be written at most once regardless of write order.
type field int

const (
	fieldInvite field = iota
	fieldCapabilities
	fieldStart
	fieldProvisionerPubKey
	fieldDevicePubKey
	fieldCount
)

// ConfirmationInputs is the 145-byte transcript of negotiated parameters
// and both public keys, salted with S1 to derive ConfirmationSalt. Each
// of its five segments is written exactly once, in any order relative to
// each other, as the corresponding PDU is sent or received; writing the
// same segment twice is a programming error the type refuses to allow.
type ConfirmationInputs struct {
	buf     [ConfirmationInputsSize]byte
	written [fieldCount]bool
}

func (ci *ConfirmationInputs) set(f field, offset int, data []byte) error {
	if ci.written[f] {
		return ErrConfirmationInputsAlreadyWritten
	}
	copy(ci.buf[offset:offset+len(data)], data)
	ci.written[f] = true
	return nil
}

// SetInvite records the Invite PDU's 1-byte parameter.
func (ci *ConfirmationInputs) SetInvite(param byte) error {
	return ci.set(fieldInvite, inviteOffset, []byte{param})
}

// SetCapabilities records the Capabilities PDU's 11-byte parameter.
func (ci *ConfirmationInputs) SetCapabilities(param [CapabilitiesParamSize]byte) error {
	return ci.set(fieldCapabilities, capabilitiesOffset, param[:])
}

// SetStart records the Start PDU's 5-byte parameter.
func (ci *ConfirmationInputs) SetStart(param [StartParamSize]byte) error {
	return ci.set(fieldStart, startOffset, param[:])
}

// SetProvisionerPublicKey records the Provisioner's 64-byte public key.
func (ci *ConfirmationInputs) SetProvisionerPublicKey(param [PublicKeyParamSize]byte) error {
	return ci.set(fieldProvisionerPubKey, provPubKeyOffset, param[:])
}

// SetDevicePublicKey records the Device's 64-byte public key.
func (ci *ConfirmationInputs) SetDevicePublicKey(param [PublicKeyParamSize]byte) error {
	return ci.set(fieldDevicePubKey, devPubKeyOffset, param[:])
}

// Complete reports whether every segment has been written exactly once.
func (ci *ConfirmationInputs) Complete() bool {
	for _, w := range ci.written {
		if !w {
			return false
		}
	}
	return true
}

// Bytes returns the full 145-byte transcript. It fails if any segment has
// not yet been written, since computing S1 over a partially-assembled
// transcript would silently hash stale zero bytes instead of signaling
// that the handshake skipped a step.
func (ci *ConfirmationInputs) Bytes() ([ConfirmationInputsSize]byte, error) {
	if !ci.Complete() {
		return [ConfirmationInputsSize]byte{}, ErrConfirmationInputsIncomplete
	}
	return ci.buf, nil
}
