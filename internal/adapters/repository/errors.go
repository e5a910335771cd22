package repository

import "errors"

// Sentinel kinds for corpus store errors.
var (
	ErrInvalidLimit = errors.New("invalid page limit")
	ErrClosed       = errors.New("store closed")
)
