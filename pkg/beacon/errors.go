package beacon

import "errors"

var (
	ErrInvalidSize            = errors.New("beacon: advertisement is neither 19 nor 23 bytes")
	ErrNotUnprovisionedBeacon = errors.New("beacon: AD type is not the unprovisioned-device beacon")
)
