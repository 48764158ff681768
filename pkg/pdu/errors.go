package pdu

import "errors"

var (
	// ErrTooShort is returned when a buffer is shorter than a PDU's fixed size.
	ErrTooShort = errors.New("pdu: buffer too short")

	// ErrTrailingBytes is returned when a buffer is longer than a PDU's fixed size.
	ErrTrailingBytes = errors.New("pdu: trailing bytes after fixed-size PDU")

	// ErrUnknownOpcode is returned for an opcode outside the ten defined types.
	ErrUnknownOpcode = errors.New("pdu: unknown opcode")

	// ErrConfirmationInputsIncomplete is returned when Bytes() is called
	// before every field of ConfirmationInputs has been written.
	ErrConfirmationInputsIncomplete = errors.New("pdu: confirmation inputs not fully written")

	// ErrConfirmationInputsAlreadyWritten is returned when a field of
	// ConfirmationInputs is written a second time.
	ErrConfirmationInputsAlreadyWritten = errors.New("pdu: confirmation inputs field already written")
)
