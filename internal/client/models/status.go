package models

import (
	"fmt"

	"github.com/dmitrijs2005/assetsync/internal/common"
)

// UploadStatus is the lifecycle state of an UploadRequest. The set is closed;
// values read from storage go through ParseUploadStatus.
type UploadStatus string

const (
	// StatusPending means the record exists but has no destinations yet.
	StatusPending UploadStatus = "pending"
	// StatusInitialized means destinations are assigned and the record is
	// ready to be uploaded.
	StatusInitialized UploadStatus = "initialized"
	StatusUploaded    UploadStatus = "uploaded"
	StatusError       UploadStatus = "error"
)

func ParseUploadStatus(s string) (UploadStatus, error) {
	switch st := UploadStatus(s); st {
	case StatusPending, StatusInitialized, StatusUploaded, StatusError:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", common.ErrUnknownStatus, s)
	}
}

// Terminal reports whether no further transitions are allowed.
func (s UploadStatus) Terminal() bool {
	return s == StatusUploaded || s == StatusError
}

// CanTransitionTo reports whether moving from s to next is legal. Writing the
// same status again is allowed for non-terminal states.
func (s UploadStatus) CanTransitionTo(next UploadStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusPending || next == StatusInitialized || next == StatusError
	case StatusInitialized:
		return next == StatusInitialized || next == StatusUploaded || next == StatusError
	default:
		return false
	}
}

// AssetStatus is the lifecycle state of a FinishedAsset.
type AssetStatus string

const StatusActive AssetStatus = "active"

func ParseAssetStatus(s string) (AssetStatus, error) {
	if AssetStatus(s) == StatusActive {
		return StatusActive, nil
	}
	return "", fmt.Errorf("%w: %q", common.ErrUnknownStatus, s)
}
