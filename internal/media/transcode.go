package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Transcoder converts a transient upload into the stored format and returns
// the path of the new file. The input file is left for the caller.
type Transcoder interface {
	Transcode(ctx context.Context, inputPath string) (string, error)
}

type FFmpegOptions struct {
	Binary     string
	Bitrate    string
	SampleRate int
	Channels   int
	Timeout    time.Duration
}

// FFmpegTranscoder re-encodes uploads to mp3 with libmp3lame.
type FFmpegTranscoder struct {
	opts FFmpegOptions
}

func NewFFmpegTranscoder(opts FFmpegOptions) *FFmpegTranscoder {
	if strings.TrimSpace(opts.Binary) == "" {
		opts.Binary = "ffmpeg"
	}
	return &FFmpegTranscoder{opts: opts}
}

func (t *FFmpegTranscoder) Transcode(ctx context.Context, inputPath string) (string, error) {
	inputPath = strings.TrimSpace(inputPath)
	if inputPath == "" {
		return "", fmt.Errorf("ffmpeg transcode: empty path")
	}

	if t.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.Timeout)
		defer cancel()
	}

	outputPath := strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + "-enc.mp3"
	cmd := exec.CommandContext(ctx, t.opts.Binary, t.args(inputPath, outputPath)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		_ = os.Remove(outputPath)
		return "", fmt.Errorf("ffmpeg transcode: %w: %s", err, lastLine(output))
	}

	return outputPath, nil
}

func (t *FFmpegTranscoder) args(inputPath, outputPath string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", inputPath,
		"-vn",
		"-codec:a", "libmp3lame",
		"-b:a", t.opts.Bitrate,
		"-ac", strconv.Itoa(t.opts.Channels),
		"-ar", strconv.Itoa(t.opts.SampleRate),
		"-f", "mp3",
		outputPath,
	}
}

func lastLine(output []byte) string {
	trimmed := strings.TrimSpace(string(output))
	if idx := strings.LastIndex(trimmed, "\n"); idx != -1 {
		return trimmed[idx+1:]
	}
	return trimmed
}
