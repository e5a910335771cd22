package service

import "errors"

var (
	// ErrNotStarted is returned by request methods before Start succeeds.
	ErrNotStarted = errors.New("service not started")
	// ErrNoPrecedents is returned when retrieval finds nothing to cite.
	ErrNoPrecedents = errors.New("no relevant precedents found")
	// ErrJudgeDisabled is returned by Deliberate when no judge is configured.
	ErrJudgeDisabled = errors.New("judge is not configured")
)
