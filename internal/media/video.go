package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// FFmpeg grabs frames and durations by shelling out to ffmpeg and ffprobe.
type FFmpeg struct {
	FFmpegPath  string
	FFprobePath string
	// CaptureAt is the seek position of the preview frame, e.g. "00:00:01".
	CaptureAt string
}

// NewFFmpeg resolves the binaries, falling back to a PATH lookup when a
// path is empty.
func NewFFmpeg(ffmpegPath, ffprobePath string) (*FFmpeg, error) {
	var err error
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffmpegPath, err = exec.LookPath(ffmpegPath); err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if p, lerr := exec.LookPath(ffprobePath); lerr == nil {
		ffprobePath = p
	} else {
		ffprobePath = ""
	}
	return &FFmpeg{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath, CaptureAt: "00:00:00"}, nil
}

// Frame returns one PNG-encoded frame at CaptureAt.
func (f *FFmpeg) Frame(ctx context.Context, path string) ([]byte, error) {
	at := f.CaptureAt
	if at == "" {
		at = "00:00:00"
	}
	cmd := exec.CommandContext(ctx, f.FFmpegPath,
		"-ss", at,
		"-i", path,
		"-vframes", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no frame: %s", strings.TrimSpace(stderr.String()))
	}
	return out.Bytes(), nil
}

// Duration returns the container duration in seconds.
func (f *FFmpeg) Duration(ctx context.Context, path string) (float64, error) {
	if f.FFprobePath == "" {
		return 0, fmt.Errorf("ffprobe not available")
	}
	cmd := exec.CommandContext(ctx, f.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	return parseDuration(string(out))
}

func parseDuration(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "N/A" {
		return 0, fmt.Errorf("no duration reported")
	}
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return d, nil
}
