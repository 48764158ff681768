package pdu

import "encoding/binary"

// CapabilitiesParamSize and CapabilitiesPDUSize per the Mesh Provisioning
// Capabilities PDU layout: NumElements(1) || Algorithms(2) ||
// PublicKeyType(1) || StaticOOBType(1) || OutputOOBSize(1) ||
// OutputOOBAction(2) || InputOOBSize(1) || InputOOBAction(2).
const (
	CapabilitiesParamSize = 11
	CapabilitiesPDUSize   = 1 + CapabilitiesParamSize
)

// CapabilitiesPDU is the Server-to-Client Capabilities PDU, advertising
// the device's supported algorithms and OOB authentication options.
type CapabilitiesPDU struct {
	NumElements     uint8
	Algorithms      uint16
	PublicKeyType   uint8
	StaticOOBType   uint8
	OutputOOBSize   uint8
	OutputOOBAction uint16
	InputOOBSize    uint8
	InputOOBAction  uint16
}

// Encode serializes the Capabilities PDU to wire bytes.
func (p CapabilitiesPDU) Encode() []byte {
	buf := make([]byte, CapabilitiesPDUSize)
	buf[0] = byte(Capabilities)
	buf[1] = p.NumElements
	binary.BigEndian.PutUint16(buf[2:4], p.Algorithms)
	buf[4] = p.PublicKeyType
	buf[5] = p.StaticOOBType
	buf[6] = p.OutputOOBSize
	binary.BigEndian.PutUint16(buf[7:9], p.OutputOOBAction)
	buf[9] = p.InputOOBSize
	binary.BigEndian.PutUint16(buf[10:12], p.InputOOBAction)
	return buf
}

// DecodeCapabilities parses a Capabilities PDU, including its opcode byte.
func DecodeCapabilities(buf []byte) (CapabilitiesPDU, error) {
	if len(buf) < CapabilitiesPDUSize {
		return CapabilitiesPDU{}, ErrTooShort
	}
	if len(buf) > CapabilitiesPDUSize {
		return CapabilitiesPDU{}, ErrTrailingBytes
	}
	return CapabilitiesPDU{
		NumElements:     buf[1],
		Algorithms:      binary.BigEndian.Uint16(buf[2:4]),
		PublicKeyType:   buf[4],
		StaticOOBType:   buf[5],
		OutputOOBSize:   buf[6],
		OutputOOBAction: binary.BigEndian.Uint16(buf[7:9]),
		InputOOBSize:    buf[9],
		InputOOBAction:  binary.BigEndian.Uint16(buf[10:12]),
	}, nil
}

// Param returns the 11-byte parameter portion, the slice ConfirmationInputs
// records for the Capabilities step of the transcript.
func (p CapabilitiesPDU) Param() [CapabilitiesParamSize]byte {
	var out [CapabilitiesParamSize]byte
	copy(out[:], p.Encode()[1:])
	return out
}
