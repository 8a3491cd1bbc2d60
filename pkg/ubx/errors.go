package ubx

import "errors"

var (
	// ErrChecksum indicates a frame failed checksum verification.
	ErrChecksum = errors.New("checksum mismatch")
	// ErrTooLong indicates the length field exceeds the payload limit.
	ErrTooLong = errors.New("payload too long")
	// ErrTruncated indicates a frame was interrupted by a read timeout.
	ErrTruncated = errors.New("frame truncated")
	// ErrNotFrame indicates bytes which are not a complete frame.
	ErrNotFrame = errors.New("not a frame")
)
