package model

import "errors"

var (
	// ErrPrivateKeyEmpty error for empty private key
	ErrPrivateKeyEmpty = errors.New("ERR_PRIVATE_KEY_EMPTY")

	// ErrPrivateKeyUnknownFormat error for a private key in no supported encoding
	ErrPrivateKeyUnknownFormat = errors.New("ERR_PRIVATE_KEY_UNKNOWN_FORMAT")
)
