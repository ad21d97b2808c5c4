// Package models defines the records persisted by the local store: upload
// requests, finished assets and the backend's asset document.
package models

import (
	"path"
	"time"
)

// Default long-edge sizes for the small, medium and large renditions.
const (
	DefaultSmallCutSize  = 300
	DefaultMediumCutSize = 600
	DefaultLargeCutSize  = 900
)

// UploadRequest is one pending or finished upload of a local media item.
type UploadRequest struct {
	ID            string
	OwnerID       string
	SessionID     string
	TransactionID string

	// Source is the opaque local handle of the media item (a file path for
	// the local source provider).
	Source string
	// FilePath is the remote object path, "dir/filename".
	FilePath        string
	Caption         string
	ExpirationHours float64

	ContentType string
	Size        int64
	// Duration is the video length in seconds, 0 for stills.
	Duration float64
	Color    string
	XRes     int
	YRes     int

	NoCuts bool
	// OriginalSize caps the long edge of the original when NoCuts is set.
	// Zero uploads the original unresized.
	OriginalSize  int
	SmallCutSize  int
	MediumCutSize int
	LargeCutSize  int

	Destinations Manifest
	Status       UploadStatus
	Note         string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CutSizes returns the small, medium and large edges with defaults applied.
func (r *UploadRequest) CutSizes() (small, medium, large int) {
	small, medium, large = r.SmallCutSize, r.MediumCutSize, r.LargeCutSize
	if small <= 0 {
		small = DefaultSmallCutSize
	}
	if medium <= 0 {
		medium = DefaultMediumCutSize
	}
	if large <= 0 {
		large = DefaultLargeCutSize
	}
	return small, medium, large
}

func (r *UploadRequest) Kind() MediaKind {
	return KindOf(r.ContentType)
}

// FileName is the last element of FilePath, or of Source when FilePath is empty.
func (r *UploadRequest) FileName() string {
	if r.FilePath != "" {
		return path.Base(r.FilePath)
	}
	return path.Base(r.Source)
}

// Clone returns a copy that shares no maps with r.
func (r *UploadRequest) Clone() *UploadRequest {
	c := *r
	c.Destinations = r.Destinations.Clone()
	return &c
}
