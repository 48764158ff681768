package meshutil

import "errors"

var (
	ErrInvalidDigits  = errors.New("meshutil: numeric OOB digits must be in 1..8")
	ErrInvalidOOBData = errors.New("meshutil: OOB data does not match the requested size")
)
