// Package common defines shared constants and sentinel errors used across
// the media, transfer, store and upload layers. Callers should use errors.Is
// to match these values.
package common

import "errors"

var (
	// repository specific errors
	ErrorNotFound = errors.New("not found")

	// media errors
	ErrInvalidSource     = errors.New("invalid source image")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrDecodeFailed      = errors.New("decode failed")

	// transfer errors
	ErrTransferFailed = errors.New("transfer failed")

	// orchestration errors
	ErrMissingDestination = errors.New("missing destination")
	ErrAlreadyRunning     = errors.New("upload already running")
	ErrNotInitialized     = errors.New("upload not initialized")

	// store errors
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrUnknownStatus     = errors.New("unknown status")
	ErrInvalidTransition = errors.New("invalid status transition")
)
