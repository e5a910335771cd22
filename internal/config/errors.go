package config

import "errors"

var (
	// ErrInvalidConfig marks a setting that fails Validate.
	ErrInvalidConfig = errors.New("config: invalid setting")
	// ErrLoadConfig marks a file or environment source that could not be read.
	ErrLoadConfig = errors.New("config: cannot load")
)
