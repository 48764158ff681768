package pdu

// StartParamSize and StartPDUSize per the Start PDU layout:
// Algorithm(1) || PublicKey(1) || AuthMethod(1) || AuthAction(1) || AuthSize(1).
const (
	StartParamSize = 5
	StartPDUSize   = 1 + StartParamSize
)

// Algorithm is the Start PDU's chosen provisioning algorithm. Only
// FIPS P-256 is currently defined.
type Algorithm uint8

const AlgorithmFIPSP256 Algorithm = 0

// PublicKeyMode indicates whether an OOB-supplied public key is used.
type PublicKeyMode uint8

const (
	PublicKeyNoOOB PublicKeyMode = 0
	PublicKeyOOB   PublicKeyMode = 1
)

// AuthMethod is the Start PDU's chosen OOB authentication method.
type AuthMethod uint8

const (
	AuthMethodNoOOB AuthMethod = iota
	AuthMethodStaticOOB
	AuthMethodOutputOOB
	AuthMethodInputOOB
)

// IsValid reports whether m is one of the four defined authentication methods.
func (m AuthMethod) IsValid() bool {
	return m <= AuthMethodInputOOB
}

// StartPDU is the Client-to-Server Start PDU, selecting the algorithm,
// public-key exchange mode, and OOB authentication method for the session.
type StartPDU struct {
	Algorithm  Algorithm
	PublicKey  PublicKeyMode
	AuthMethod AuthMethod
	AuthAction uint8
	AuthSize   uint8
}

// Encode serializes the Start PDU to wire bytes.
func (p StartPDU) Encode() []byte {
	return []byte{
		byte(Start),
		byte(p.Algorithm),
		byte(p.PublicKey),
		byte(p.AuthMethod),
		p.AuthAction,
		p.AuthSize,
	}
}

// DecodeStart parses a Start PDU, including its opcode byte. It does not
// perform the Server's capability cross-check validation; that lives in
// package provisioning alongside the Server's advertised Capabilities.
func DecodeStart(buf []byte) (StartPDU, error) {
	if len(buf) < StartPDUSize {
		return StartPDU{}, ErrTooShort
	}
	if len(buf) > StartPDUSize {
		return StartPDU{}, ErrTrailingBytes
	}
	return StartPDU{
		Algorithm:  Algorithm(buf[1]),
		PublicKey:  PublicKeyMode(buf[2]),
		AuthMethod: AuthMethod(buf[3]),
		AuthAction: buf[4],
		AuthSize:   buf[5],
	}, nil
}

// Param returns the 5-byte parameter portion, the slice ConfirmationInputs
// records for the Start step of the transcript.
func (p StartPDU) Param() [StartParamSize]byte {
	var out [StartParamSize]byte
	copy(out[:], p.Encode()[1:])
	return out
}
