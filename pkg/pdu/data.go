package pdu

// DataParamSize and DataPDUSize: the CCM-encrypted 25-byte ProvisioningData
// record followed by its 8-byte MIC.
const (
	EncryptedDataSize = 25
	DataMICSize       = 8
	DataParamSize     = EncryptedDataSize + DataMICSize
	DataPDUSize       = 1 + DataParamSize
)

// DataPDU carries the CCM-encrypted ProvisioningData record and its MIC.
type DataPDU struct {
	EncryptedData [EncryptedDataSize]byte
	MIC           [DataMICSize]byte
}

// Encode serializes the Data PDU to wire bytes.
func (p DataPDU) Encode() []byte {
	buf := make([]byte, DataPDUSize)
	buf[0] = byte(Data)
	copy(buf[1:1+EncryptedDataSize], p.EncryptedData[:])
	copy(buf[1+EncryptedDataSize:], p.MIC[:])
	return buf
}

// DecodeData parses a Data PDU, including its opcode byte.
func DecodeData(buf []byte) (DataPDU, error) {
	if len(buf) < DataPDUSize {
		return DataPDU{}, ErrTooShort
	}
	if len(buf) > DataPDUSize {
		return DataPDU{}, ErrTrailingBytes
	}
	var p DataPDU
	copy(p.EncryptedData[:], buf[1:1+EncryptedDataSize])
	copy(p.MIC[:], buf[1+EncryptedDataSize:])
	return p, nil
}

// CiphertextAndMIC returns EncryptedData||MIC concatenated, the form
// crypto.CCMDecrypt expects as its ciphertext argument.
func (p DataPDU) CiphertextAndMIC() []byte {
	out := make([]byte, DataParamSize)
	copy(out[:EncryptedDataSize], p.EncryptedData[:])
	copy(out[EncryptedDataSize:], p.MIC[:])
	return out
}

// NewDataPDU splits a CCM-sealed ciphertext||tag buffer (as produced by
// crypto.CCMEncrypt with an 8-byte MIC) into a DataPDU.
func NewDataPDU(sealed []byte) (DataPDU, error) {
	if len(sealed) != DataParamSize {
		return DataPDU{}, ErrTooShort
	}
	var p DataPDU
	copy(p.EncryptedData[:], sealed[:EncryptedDataSize])
	copy(p.MIC[:], sealed[EncryptedDataSize:])
	return p, nil
}

// ProvisioningDataParamSize is the size of the decrypted ProvisioningData
// record: NetKey(16) || NetKeyIndex(2) || Flags(1) || IVIndex(4) || Address(2).
const ProvisioningDataParamSize = EncryptedDataSize
