package bearer

import "errors"

var (
	ErrLinkNotOpen          = errors.New("bearer: link not open")
	ErrLinkAlreadyOpen      = errors.New("bearer: link already open")
	ErrPDUTooLarge          = errors.New("bearer: provisioning PDU exceeds maximum size")
	ErrPDUTooShort          = errors.New("bearer: generic provisioning PDU too short")
	ErrUnknownGPCF          = errors.New("bearer: unknown generic provisioning control field")
	ErrTransactionMismatch  = errors.New("bearer: transaction number does not match current transaction")
	ErrSegmentIndexOOB      = errors.New("bearer: segment index exceeds declared segment count")
	ErrReassemblyMismatch   = errors.New("bearer: continuation segment length does not match Seg0 FCS")
	ErrNoListener           = errors.New("bearer: medium has no listener for this address")
	ErrPBGATTNoSegmentation = errors.New("bearer: PB-GATT PDU exceeds single-write MTU")
	ErrNoMedium             = errors.New("bearer: PB-ADV transport requires both Medium and BeaconMedium")
	ErrWrongTransport       = errors.New("bearer: operation not valid for the enabled transport/role")
	ErrFrameTooShort        = errors.New("bearer: PB-ADV frame shorter than link-id+transaction-number header")
)
