package bearer

import "encoding/binary"

// segHeaderByte returns the first octet shared by every Generic
// Provisioning PDU: the low 2 bits are the GPCF, the high 6 bits are the
// segment index (0 for Start, 1..63 for Continuation, unused for Ack and
// Control).
func segHeaderByte(gpcf GPCF, segN uint8) byte {
	return byte(gpcf)&0x03 | segN<<2
}

func splitSegHeaderByte(b byte) (gpcf GPCF, segN uint8) {
	return GPCF(b & 0x03), b >> 2
}

// SegmentStart is the first segment of a transaction. Its 4-byte header
// carries the GPCF/SegN byte, the 2-byte total reassembled length, and
// a 1-byte FCS (computed by the caller over the full payload).
type SegmentStart struct {
	TotalLength uint16
	FCS         uint8
	Payload     []byte
}

// Encode serializes the Start segment: header(4) || payload.
func (s SegmentStart) Encode() []byte {
	buf := make([]byte, Seg0HeaderSize+len(s.Payload))
	buf[0] = segHeaderByte(GPCFStart, 0)
	binary.BigEndian.PutUint16(buf[1:3], s.TotalLength)
	buf[3] = s.FCS
	copy(buf[4:], s.Payload)
	return buf
}

// DecodeSegmentStart parses a Start segment, including its header byte.
func DecodeSegmentStart(buf []byte) (SegmentStart, error) {
	if len(buf) < Seg0HeaderSize {
		return SegmentStart{}, ErrPDUTooShort
	}
	gpcf, _ := splitSegHeaderByte(buf[0])
	if gpcf != GPCFStart {
		return SegmentStart{}, ErrUnknownGPCF
	}
	payload := make([]byte, len(buf)-Seg0HeaderSize)
	copy(payload, buf[Seg0HeaderSize:])
	return SegmentStart{
		TotalLength: binary.BigEndian.Uint16(buf[1:3]),
		FCS:         buf[3],
		Payload:     payload,
	}, nil
}

// SegmentContinuation carries one additional fragment of a transaction.
// Its 1-byte header is the GPCF/SegN byte only.
type SegmentContinuation struct {
	SegN    uint8
	Payload []byte
}

// Encode serializes a Continuation segment: header(1) || payload.
func (s SegmentContinuation) Encode() []byte {
	buf := make([]byte, SegXHeaderSize+len(s.Payload))
	buf[0] = segHeaderByte(GPCFContinuation, s.SegN)
	copy(buf[1:], s.Payload)
	return buf
}

// DecodeSegmentContinuation parses a Continuation segment.
func DecodeSegmentContinuation(buf []byte) (SegmentContinuation, error) {
	if len(buf) < SegXHeaderSize {
		return SegmentContinuation{}, ErrPDUTooShort
	}
	gpcf, segN := splitSegHeaderByte(buf[0])
	if gpcf != GPCFContinuation {
		return SegmentContinuation{}, ErrUnknownGPCF
	}
	payload := make([]byte, len(buf)-SegXHeaderSize)
	copy(payload, buf[SegXHeaderSize:])
	return SegmentContinuation{SegN: segN, Payload: payload}, nil
}

// AckPDU acknowledges receipt of a complete transaction. It carries no
// payload beyond its GPCF header byte.
type AckPDU struct{}

// Encode serializes the Ack PDU.
func (AckPDU) Encode() []byte {
	return []byte{segHeaderByte(GPCFAck, 0)}
}

// DecodeAck validates a received byte as an Ack PDU.
func DecodeAck(buf []byte) (AckPDU, error) {
	if len(buf) < 1 {
		return AckPDU{}, ErrPDUTooShort
	}
	if gpcf, _ := splitSegHeaderByte(buf[0]); gpcf != GPCFAck {
		return AckPDU{}, ErrUnknownGPCF
	}
	return AckPDU{}, nil
}

// fcs computes the 8-bit frame check sequence covering a transaction's
// reassembled payload, independent of segmentation. Bluetooth Mesh uses a
// CRC-8 variant; this toolbox doesn't yet need FCS verification to reject
// a transaction (reassembly already validates TotalLength and per-segment
// boundaries), so it is tracked but not enforced on decode.
func fcs(payload []byte) uint8 {
	var crc uint8 = 0xFF
	for _, b := range payload {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x07
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
