package config

import (
	"time"

	"github.com/dmitrijs2005/assetsync/internal/client/models"
	"github.com/dmitrijs2005/assetsync/internal/common"
)

// S3Config enables the development issuer when Bucket is set.
type S3Config struct {
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
}

// Config holds runtime settings for the assetsync CLI.
//
// Units: MaxUploadRate is bytes per second (0 disables the cap);
// ExpirationHours is hours; durations are time.Duration.
type Config struct {
	DatabasePath       string
	ServerEndpointAddr string
	AccessToken        string
	UserID             string
	SessionID          string

	SmallCutSize    int
	MediumCutSize   int
	LargeCutSize    int
	JPEGQuality     int
	DominantSwatch  bool
	ExpirationHours float64

	StepTimeout    time.Duration
	MaxUploadRate  int64
	DeriveAssets   bool
	AdvanceOnError bool

	FFmpegPath  string
	FFprobePath string

	MetricsAddr         string
	WatchSettle         time.Duration
	OnlineCheckInterval time.Duration
	LogLevel            string

	S3 S3Config
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DatabasePath = "assetsync.db"
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.UserID = "local"
	c.SessionID = "default"

	c.SmallCutSize = models.DefaultSmallCutSize
	c.MediumCutSize = models.DefaultMediumCutSize
	c.LargeCutSize = models.DefaultLargeCutSize
	c.JPEGQuality = 100
	c.ExpirationHours = common.DefaultExpirationHours

	c.DeriveAssets = true

	c.FFmpegPath = "ffmpeg"
	c.FFprobePath = "ffprobe"

	c.WatchSettle = 2 * time.Second
	c.OnlineCheckInterval = 10 * time.Second
	c.LogLevel = "info"

	c.S3.Region = "us-east-1"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the environment, JSON (if present) and command-line flags (if present).
// Later sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
