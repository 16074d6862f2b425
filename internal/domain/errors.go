package domain

import "errors"

var (
	// ErrDecode means the input could not be read as a raster image.
	ErrDecode = errors.New("image decode failed")
	// ErrEncode means no output surface or encoding could be produced.
	ErrEncode = errors.New("image encode failed")
	// ErrStoreUnavailable means the storage engine could not be opened or rejected a write.
	ErrStoreUnavailable = errors.New("record store unavailable")
	// ErrDuplicateKey means a record with the same id already exists in the partition.
	ErrDuplicateKey = errors.New("duplicate record id")
	// ErrUnknownCategory means the category is outside the fixed set.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrInvalidPayload means the result payload is not a JSON document.
	ErrInvalidPayload = errors.New("result payload is not valid JSON")
)
