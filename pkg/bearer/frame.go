package bearer

import "encoding/binary"

// frameHeaderSize is the size of the PB-ADV over-the-air frame header
// that wraps every Generic Provisioning PDU: link-id(4) ||
// transaction-number(1).
const frameHeaderSize = 5

// wrapFrame prefixes a Generic Provisioning PDU with its link-id and
// transaction number, producing the bytes actually broadcast on the
// advertising medium.
func wrapFrame(linkID uint32, transNum uint8, generic []byte) []byte {
	buf := make([]byte, frameHeaderSize+len(generic))
	binary.BigEndian.PutUint32(buf[0:4], linkID)
	buf[4] = transNum
	copy(buf[frameHeaderSize:], generic)
	return buf
}

// unwrapFrame splits a received PB-ADV frame into its link-id,
// transaction number, and Generic Provisioning PDU.
func unwrapFrame(frame []byte) (linkID uint32, transNum uint8, generic []byte, err error) {
	if len(frame) < frameHeaderSize {
		return 0, 0, nil, ErrFrameTooShort
	}
	linkID = binary.BigEndian.Uint32(frame[0:4])
	transNum = frame[4]
	generic = frame[frameHeaderSize:]
	return linkID, transNum, generic, nil
}

func beU32(b [4]byte) uint32 {
	return binary.BigEndian.Uint32(b[:])
}
