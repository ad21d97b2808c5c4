package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/assetsync/internal/flagx"
	"github.com/dmitrijs2005/assetsync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations use
// timex.Duration so they may be strings like "3s" or integer nanoseconds.
// Pointers tell an absent key from an explicit zero.
type JsonConfig struct {
	DatabasePath       string  `json:"database_path"`
	ServerEndpointAddr string  `json:"server_endpoint_addr"`
	AccessToken        string  `json:"access_token"`
	UserID             string  `json:"user_id"`
	SessionID          string  `json:"session_id"`
	SmallCutSize       int     `json:"small_cut_size"`
	MediumCutSize      int     `json:"medium_cut_size"`
	LargeCutSize       int     `json:"large_cut_size"`
	JPEGQuality        int     `json:"jpeg_quality"`
	DominantSwatch     *bool   `json:"dominant_swatch"`
	ExpirationHours    float64 `json:"expiration_hours"`

	StepTimeout    *timex.Duration `json:"step_timeout"`
	MaxUploadRate  *int64          `json:"max_upload_rate"`
	DeriveAssets   *bool           `json:"derive_assets"`
	AdvanceOnError *bool           `json:"advance_on_error"`

	FFmpegPath          string          `json:"ffmpeg_path"`
	FFprobePath         string          `json:"ffprobe_path"`
	MetricsAddr         string          `json:"metrics_addr"`
	WatchSettle         *timex.Duration `json:"watch_settle"`
	OnlineCheckInterval *timex.Duration `json:"online_check_interval"`
	LogLevel            string          `json:"log_level"`

	S3 struct {
		Bucket        string `json:"bucket"`
		Region        string `json:"region"`
		Endpoint      string `json:"endpoint"`
		AccessKey     string `json:"access_key"`
		SecretKey     string `json:"secret_key"`
		PublicBaseURL string `json:"public_base_url"`
	} `json:"s3"`
}

// parseJson overlays Config with values loaded from a JSON file.
//
// The file is named by -c or -config (see flagx.JsonConfigFlags); without
// either flag nothing is loaded. Keys missing from the file keep their
// current values. Panics on read or unmarshal errors.
//
// Intended usage is: defaults -> env -> parseJson -> parseFlags, where later
// stages override earlier ones.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.ServerEndpointAddr, jc.ServerEndpointAddr)
	setString(&cfg.AccessToken, jc.AccessToken)
	setString(&cfg.UserID, jc.UserID)
	setString(&cfg.SessionID, jc.SessionID)
	setInt(&cfg.SmallCutSize, jc.SmallCutSize)
	setInt(&cfg.MediumCutSize, jc.MediumCutSize)
	setInt(&cfg.LargeCutSize, jc.LargeCutSize)
	setInt(&cfg.JPEGQuality, jc.JPEGQuality)
	setPtr(&cfg.DominantSwatch, jc.DominantSwatch)
	if jc.ExpirationHours > 0 {
		cfg.ExpirationHours = jc.ExpirationHours
	}

	if jc.StepTimeout != nil {
		cfg.StepTimeout = jc.StepTimeout.Duration
	}
	setPtr(&cfg.MaxUploadRate, jc.MaxUploadRate)
	setPtr(&cfg.DeriveAssets, jc.DeriveAssets)
	setPtr(&cfg.AdvanceOnError, jc.AdvanceOnError)

	setString(&cfg.FFmpegPath, jc.FFmpegPath)
	setString(&cfg.FFprobePath, jc.FFprobePath)
	setString(&cfg.MetricsAddr, jc.MetricsAddr)
	if jc.WatchSettle != nil {
		cfg.WatchSettle = jc.WatchSettle.Duration
	}
	if jc.OnlineCheckInterval != nil {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	setString(&cfg.LogLevel, jc.LogLevel)

	setString(&cfg.S3.Bucket, jc.S3.Bucket)
	setString(&cfg.S3.Region, jc.S3.Region)
	setString(&cfg.S3.Endpoint, jc.S3.Endpoint)
	setString(&cfg.S3.AccessKey, jc.S3.AccessKey)
	setString(&cfg.S3.SecretKey, jc.S3.SecretKey)
	setString(&cfg.S3.PublicBaseURL, jc.S3.PublicBaseURL)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setPtr[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
