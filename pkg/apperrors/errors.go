package apperrors

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrIntegrityFailure = errors.New("integrity check failed")
	ErrJobNotStartable  = errors.New("job not startable")
	ErrParseFailure     = errors.New("parse failure")
	ErrNoTenantScope    = errors.New("no tenant scope in context")
	ErrReadOnly         = errors.New("only read-only statements are allowed")
)
