package domain

import "errors"

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrUnauthorizedActor = errors.New("unauthorized actor")
	ErrUnknownUser       = errors.New("unknown user")
	ErrUnknownDemand     = errors.New("unknown demand")
	ErrMissingField      = errors.New("missing field")
)
