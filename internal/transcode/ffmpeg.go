package transcode

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/C4T-BuT-S4D/reelbridge/internal/logging"
	"github.com/sirupsen/logrus"
)

const (
	audioBitrate = 96_000

	// minVideoBitrate keeps very long inputs watchable; they may still end up
	// over the ceiling and are rejected by the caller.
	minVideoBitrate = 150_000

	// headroom leaves room for container overhead and encoder overshoot.
	headroom = 0.92

	waitDelay = 5 * time.Second
)

type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	log         *logrus.Entry
}

func NewFFmpeg(ffmpegPath, ffprobePath string) *FFmpeg {
	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		log:         logging.Component("transcode"),
	}
}

// Compress re-encodes src so that its size should not exceed maxBytes and
// returns the path of the new file, placed next to src.
func (f *FFmpeg) Compress(ctx context.Context, src string, maxBytes int64) (string, error) {
	duration, err := f.probeDuration(ctx, src)
	if err != nil {
		return "", fmt.Errorf("probing duration: %w", err)
	}

	videoBitrate := TargetVideoBitrate(maxBytes, duration)
	dst := strings.TrimSuffix(src, filepath.Ext(src)) + ".compressed.mp4"

	f.log.Infof("compressing %s (%.1fs) to video bitrate %d", filepath.Base(src), duration, videoBitrate)

	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", src,
		"-c:v", "libx264", "-preset", "veryfast",
		"-b:v", strconv.FormatInt(videoBitrate, 10),
		"-maxrate", strconv.FormatInt(videoBitrate, 10),
		"-bufsize", strconv.FormatInt(2*videoBitrate, 10),
		"-c:a", "aac", "-b:a", strconv.Itoa(audioBitrate),
		"-movflags", "+faststart",
		dst,
	}
	if _, err := f.run(ctx, f.ffmpegPath, args...); err != nil {
		return "", fmt.Errorf("running ffmpeg: %w", err)
	}
	return dst, nil
}

func (f *FFmpeg) probeDuration(ctx context.Context, src string) (float64, error) {
	out, err := f.run(ctx, f.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		src,
	)
	if err != nil {
		return 0, err
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %q: %w", strings.TrimSpace(out), err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("non-positive duration %v", duration)
	}
	return duration, nil
}

func (f *FFmpeg) run(ctx context.Context, name string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%s: %w", filepath.Base(name), ctxErr)
		}
		return "", fmt.Errorf("%s: %w: %s", filepath.Base(name), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// TargetVideoBitrate returns the video bitrate in bits per second that fits
// a clip of the given duration into maxBytes alongside the audio track.
func TargetVideoBitrate(maxBytes int64, durationSec float64) int64 {
	total := float64(maxBytes) * 8 * headroom / durationSec
	video := int64(total) - audioBitrate
	if video < minVideoBitrate {
		return minVideoBitrate
	}
	return video
}
