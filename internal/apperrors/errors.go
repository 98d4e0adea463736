package apperrors

import (
	"errors"
)

var (
	ErrShutdown = errors.New("shutdown error")

	ErrTenantIDMissing = errors.New("tenant id is missing")
	ErrEndpointMissing = errors.New("endpoint is missing")
	ErrInvalidMethod   = errors.New("invalid mutation method")

	ErrRecordNotFound   = errors.New("queue record does not exist")
	ErrRecordNotFailed  = errors.New("queue record is not in a failed state")
	ErrDrainInProgress  = errors.New("drain pass already running for tenant")
	ErrReplayPaused     = errors.New("replay engine is paused")
	ErrMonitorOffline   = errors.New("connectivity monitor reports offline")
	ErrBusLinkClosed    = errors.New("event bus link is closed")
	ErrIdempotencyKey   = errors.New("idempotency key is missing")
	ErrTenantMismatch   = errors.New("token tenant does not match requested tenant")
	ErrMutationConflict = errors.New("mutation was already applied")

	ErrContextValueDoesNotExist = errors.New("context value does not exist")
	ErrContextValueInvalidType  = errors.New("invalid context value type")
)
