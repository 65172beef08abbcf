package domain

import "errors"

var (
	ErrTransport          = errors.New("transport failure")
	ErrRemoteFailed       = errors.New("remote generation failed")
	ErrTimedOut           = errors.New("wait budget exhausted")
	ErrMalformedResponse  = errors.New("malformed vendor response")
	ErrContentFiltered    = errors.New("content filtered by moderation")
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrNotFound           = errors.New("not found")
)
