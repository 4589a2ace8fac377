package domain

import "errors"

var (
	ErrInvalidPageURL    = errors.New("invalid page URL")
	ErrNotReady          = errors.New("rating session is not ready")
	ErrMalformedPayload  = errors.New("malformed tally payload")
	ErrRemoteUnavailable = errors.New("tally service unavailable")
)
