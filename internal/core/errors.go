package core

import "errors"

// Error taxonomy shared by every layer. Callers wrap these with fmt.Errorf
// and the HTTP boundary classifies them with errors.Is.
var (
	ErrValidation       = errors.New("validation error")
	ErrConflict         = errors.New("conflict")
	ErrNotFound         = errors.New("not found")
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrPayloadTooLarge  = errors.New("payload too large")
	ErrStorage          = errors.New("storage error")
	ErrIO               = errors.New("io error")
)
