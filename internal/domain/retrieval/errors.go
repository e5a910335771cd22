package retrieval

import "errors"

// Sentinel causes for rejected requests. Both carry errs.ErrValidation.
var (
	ErrEmptyScenario = errors.New("scenario must not be empty")
	ErrInvalidK      = errors.New("k_precedents out of range")
)
