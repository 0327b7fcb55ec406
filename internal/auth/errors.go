package auth

import "errors"

var (
	ErrEmptyToken   = errors.New("auth: empty token")
	ErrEmptySecret  = errors.New("auth: empty secret")
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrInvalidRole  = errors.New("auth: invalid role")

	// Device upload signature failures.
	ErrMissingSignature = errors.New("auth: missing ingest signature")
	ErrStaleSignature   = errors.New("auth: ingest signature outside allowed skew")
	ErrBadSignature     = errors.New("auth: invalid ingest signature")
	ErrUnknownDevice    = errors.New("auth: no ingest key for device")
	ErrInvalidDeviceKey = errors.New("auth: invalid device key list")
)
