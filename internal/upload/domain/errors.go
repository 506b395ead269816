package domain

import "errors"

var (
	ErrNotFound             = errors.New("upload_not_found")
	ErrDuplicateFingerprint = errors.New("upload_duplicate_fingerprint")
	ErrTransitionConflict   = errors.New("upload_transition_conflict")
	ErrRetryNotFailed       = errors.New("upload_retry_requires_failed")
	ErrInvalidTenant        = errors.New("invalid_tenant")
)
