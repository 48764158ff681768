package pdu

import "encoding/binary"

// ProvisioningData is the decrypted 25-byte payload carried (CCM-sealed)
// by the Data PDU: NetKey(16) || NetKeyIndex(2) || Flags(1) || IVIndex(4)
// || PrimaryAddress(2).
type ProvisioningData struct {
	NetKey         [16]byte
	NetKeyIndex    uint16
	Flags          uint8
	IVIndex        uint32
	PrimaryAddress uint16
}

// Encode serializes the ProvisioningData record to its plaintext 25-byte
// big-endian wire form, ready for CCM encryption.
func (d ProvisioningData) Encode() [ProvisioningDataParamSize]byte {
	var buf [ProvisioningDataParamSize]byte
	copy(buf[0:16], d.NetKey[:])
	binary.BigEndian.PutUint16(buf[16:18], d.NetKeyIndex)
	buf[18] = d.Flags
	binary.BigEndian.PutUint32(buf[19:23], d.IVIndex)
	binary.BigEndian.PutUint16(buf[23:25], d.PrimaryAddress)
	return buf
}

// DecodeProvisioningData parses a decrypted 25-byte ProvisioningData record.
func DecodeProvisioningData(buf []byte) (ProvisioningData, error) {
	if len(buf) != ProvisioningDataParamSize {
		return ProvisioningData{}, ErrTooShort
	}
	var d ProvisioningData
	copy(d.NetKey[:], buf[0:16])
	d.NetKeyIndex = binary.BigEndian.Uint16(buf[16:18])
	d.Flags = buf[18]
	d.IVIndex = binary.BigEndian.Uint32(buf[19:23])
	d.PrimaryAddress = binary.BigEndian.Uint16(buf[23:25])
	return d, nil
}
