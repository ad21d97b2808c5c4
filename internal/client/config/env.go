package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/assetsync/internal/flagx"
	"github.com/joho/godotenv"
)

// EnvPrefix starts every environment variable read by parseEnv.
const EnvPrefix = "ASSETSYNC_"

// parseEnv overlays Config with ASSETSYNC_* environment variables.
//
// A dotenv file is loaded first: the one named by -e/-env, or ./.env when
// present. Variables already set in the process environment win over the
// file. Panics when the named file cannot be read or a value does not parse.
func parseEnv(cfg *Config) {
	if file := flagx.EnvFileFlags(os.Args[1:]); file != "" {
		if err := godotenv.Load(file); err != nil {
			panic(err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	for name, set := range envSetters(cfg) {
		v, ok := os.LookupEnv(EnvPrefix + name)
		if !ok {
			continue
		}
		if err := set(v); err != nil {
			panic(fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
		}
	}
}

func envSetters(cfg *Config) map[string]func(string) error {
	str := func(p *string) func(string) error {
		return func(v string) error { *p = v; return nil }
	}
	num := func(p *int) func(string) error {
		return func(v string) (err error) { *p, err = strconv.Atoi(v); return err }
	}
	boolean := func(p *bool) func(string) error {
		return func(v string) (err error) { *p, err = strconv.ParseBool(v); return err }
	}
	dur := func(p *time.Duration) func(string) error {
		return func(v string) (err error) { *p, err = time.ParseDuration(v); return err }
	}
	i64 := func(p *int64) func(string) error {
		return func(v string) (err error) { *p, err = strconv.ParseInt(v, 10, 64); return err }
	}
	f64 := func(p *float64) func(string) error {
		return func(v string) (err error) { *p, err = strconv.ParseFloat(v, 64); return err }
	}

	return map[string]func(string) error{
		"DB":               str(&cfg.DatabasePath),
		"SERVER":           str(&cfg.ServerEndpointAddr),
		"ACCESS_TOKEN":     str(&cfg.AccessToken),
		"USER_ID":          str(&cfg.UserID),
		"SESSION_ID":       str(&cfg.SessionID),
		"SMALL_CUT":        num(&cfg.SmallCutSize),
		"MEDIUM_CUT":       num(&cfg.MediumCutSize),
		"LARGE_CUT":        num(&cfg.LargeCutSize),
		"JPEG_QUALITY":     num(&cfg.JPEGQuality),
		"DOMINANT_SWATCH":  boolean(&cfg.DominantSwatch),
		"DERIVE_ASSETS":    boolean(&cfg.DeriveAssets),
		"ADVANCE_ON_ERROR": boolean(&cfg.AdvanceOnError),
		"STEP_TIMEOUT":     dur(&cfg.StepTimeout),
		"WATCH_SETTLE":     dur(&cfg.WatchSettle),
		"ONLINE_CHECK":     dur(&cfg.OnlineCheckInterval),
		"FFMPEG":           str(&cfg.FFmpegPath),
		"FFPROBE":          str(&cfg.FFprobePath),
		"METRICS_ADDR":     str(&cfg.MetricsAddr),
		"LOG_LEVEL":        str(&cfg.LogLevel),
		"S3_BUCKET":        str(&cfg.S3.Bucket),
		"S3_REGION":        str(&cfg.S3.Region),
		"S3_ENDPOINT":      str(&cfg.S3.Endpoint),
		"S3_ACCESS_KEY":    str(&cfg.S3.AccessKey),
		"S3_SECRET_KEY":    str(&cfg.S3.SecretKey),
		"S3_PUBLIC_URL":    str(&cfg.S3.PublicBaseURL),
		"MAX_UPLOAD_RATE":  i64(&cfg.MaxUploadRate),
		"EXPIRATION_HOURS": f64(&cfg.ExpirationHours),
	}
}
