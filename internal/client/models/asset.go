package models

import (
	"time"

	"github.com/dmitrijs2005/assetsync/internal/common"
)

// FinishedAsset is the public record of an uploaded asset.
type FinishedAsset struct {
	ID              string
	OwnerID         string
	SessionID       string
	TransactionID   string
	Path            string
	ExpirationHours float64
	ContentType     string
	Size            int64
	Duration        float64
	Expiration      time.Time
	Color           string
	XRes            int
	YRes            int
	Caption         string
	URLs            map[Variant]string
	Status          AssetStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AssetFromUpload builds the asset record for a request whose variants were
// all uploaded. The asset shares the request id.
func AssetFromUpload(r *UploadRequest, now time.Time) *FinishedAsset {
	urls := make(map[Variant]string, len(r.Destinations))
	for v, d := range r.Destinations {
		if d.ReadURL != "" {
			urls[v] = d.ReadURL
		}
	}
	hours := r.ExpirationHours
	if hours <= 0 {
		hours = common.DefaultExpirationHours
	}
	return &FinishedAsset{
		ID:              r.ID,
		OwnerID:         r.OwnerID,
		SessionID:       r.SessionID,
		TransactionID:   r.TransactionID,
		Path:            r.FilePath,
		ExpirationHours: hours,
		ContentType:     r.ContentType,
		Size:            r.Size,
		Duration:        r.Duration,
		Expiration:      now.Add(time.Duration(hours * float64(time.Hour))).UTC(),
		Color:           r.Color,
		XRes:            r.XRes,
		YRes:            r.YRes,
		Caption:         r.Caption,
		URLs:            urls,
		Status:          StatusActive,
		CreatedAt:       now.UTC(),
		UpdatedAt:       now.UTC(),
	}
}

// AssetModel is the JSON document the backend returns for an asset.
type AssetModel struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	SessionID       string    `json:"sessionId,omitempty"`
	TransactionID   string    `json:"transactionId,omitempty"`
	Path            string    `json:"path"`
	ExpirationHours float64   `json:"expirationHours"`
	ContentType     string    `json:"contentType"`
	Size            int64     `json:"size"`
	Duration        float64   `json:"duration"`
	Expiration      time.Time `json:"expiration"`
	Color           string    `json:"color"`
	XRes            int       `json:"xRes"`
	YRes            int       `json:"yRes"`
	Caption         string    `json:"caption"`
	URL             string    `json:"url"`
	URLSmall        string    `json:"urlSmall,omitempty"`
	URLMedium       string    `json:"urlMedium,omitempty"`
	URLLarge        string    `json:"urlLarge,omitempty"`
	URLVideoPreview string    `json:"urlVideoPreview,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// ToFinishedAsset converts the backend document. An empty status means active.
func (m *AssetModel) ToFinishedAsset() (*FinishedAsset, error) {
	status := StatusActive
	if m.Status != "" {
		st, err := ParseAssetStatus(m.Status)
		if err != nil {
			return nil, err
		}
		status = st
	}

	urls := map[Variant]string{}
	for v, u := range map[Variant]string{
		VariantOriginal:     m.URL,
		VariantSmall:        m.URLSmall,
		VariantMedium:       m.URLMedium,
		VariantLarge:        m.URLLarge,
		VariantVideoPreview: m.URLVideoPreview,
	} {
		if u != "" {
			urls[v] = u
		}
	}

	color := m.Color
	if color == "" {
		color = common.DefaultColor
	}

	return &FinishedAsset{
		ID:              m.ID,
		OwnerID:         m.UserID,
		SessionID:       m.SessionID,
		TransactionID:   m.TransactionID,
		Path:            m.Path,
		ExpirationHours: m.ExpirationHours,
		ContentType:     m.ContentType,
		Size:            m.Size,
		Duration:        m.Duration,
		Expiration:      m.Expiration,
		Color:           color,
		XRes:            m.XRes,
		YRes:            m.YRes,
		Caption:         m.Caption,
		URLs:            urls,
		Status:          status,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}, nil
}
