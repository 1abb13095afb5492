package protocol

import "errors"

var (
	ErrCapacity        = errors.New("protocol: variable block exceeds buffer capacity")
	ErrPayloadTooLarge = errors.New("protocol: variable block exceeds 65535 bytes")
	ErrTruncated       = errors.New("protocol: truncated data")
	ErrInvalidLength   = errors.New("protocol: invalid length")
	ErrDecode          = errors.New("protocol: response body decode failed")
)
