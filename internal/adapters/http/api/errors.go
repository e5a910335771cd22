package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest        = errors.New("bad request")
	ErrEmptyScenario     = errors.New("scenario is required")
	ErrNegativeK         = errors.New("k_precedents must not be negative")
	ErrStreamUnsupported = errors.New("streaming is not supported by this connection")
)
