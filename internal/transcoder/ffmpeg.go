package transcoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/therealutkarshpriyadarshi/captionpipe/internal/logging"
	"github.com/therealutkarshpriyadarshi/captionpipe/pkg/models"
)

const (
	defaultPreset           = "veryfast"
	defaultCRF              = 23
	defaultProbeTimeout     = 30 * time.Second
	defaultTransformTimeout = 600 * time.Second
)

// Options configures the ffmpeg wrapper
type Options struct {
	FFmpegPath       string
	FFprobePath      string
	Preset           string
	CRF              int
	ProbeTimeout     time.Duration
	TransformTimeout time.Duration
}

// FFmpeg wraps FFmpeg operations
type FFmpeg struct {
	ffmpegPath       string
	ffprobePath      string
	preset           string
	crf              int
	probeTimeout     time.Duration
	transformTimeout time.Duration
	logger           *logging.Logger
}

// NewFFmpeg creates a new FFmpeg instance
func NewFFmpeg(opts Options, logger *logging.Logger) *FFmpeg {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.FFprobePath == "" {
		opts.FFprobePath = "ffprobe"
	}
	if opts.Preset == "" {
		opts.Preset = defaultPreset
	}
	if opts.CRF <= 0 {
		opts.CRF = defaultCRF
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = defaultProbeTimeout
	}
	if opts.TransformTimeout <= 0 {
		opts.TransformTimeout = defaultTransformTimeout
	}
	if logger == nil {
		logger = logging.Nop()
	}

	return &FFmpeg{
		ffmpegPath:       opts.FFmpegPath,
		ffprobePath:      opts.FFprobePath,
		preset:           opts.Preset,
		crf:              opts.CRF,
		probeTimeout:     opts.ProbeTimeout,
		transformTimeout: opts.TransformTimeout,
		logger:           logger,
	}
}

// VideoMetadata holds video metadata extracted from ffprobe
type VideoMetadata struct {
	Format  FormatInfo   `json:"format"`
	Streams []StreamInfo `json:"streams"`
}

// FormatInfo holds format information
type FormatInfo struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

// StreamInfo holds stream information
type StreamInfo struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	BitRate      string `json:"bit_rate"`
	FrameRate    string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
}

// ProbeVideo extracts metadata from a video file
func (f *FFmpeg) ProbeVideo(ctx context.Context, inputPath string) (*VideoMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, f.probeTimeout)
	defer cancel()

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	}

	stdout, err := f.run(ctx, f.ffprobePath, args)
	if err != nil {
		return nil, err
	}

	var metadata VideoMetadata
	if err := json.Unmarshal(stdout, &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	return &metadata, nil
}

// GetVideoProperties probes a video and returns its properties
func (f *FFmpeg) GetVideoProperties(ctx context.Context, inputPath string) (models.VideoProperties, error) {
	metadata, err := f.ProbeVideo(ctx, inputPath)
	if err != nil {
		return models.VideoProperties{}, err
	}
	return propertiesFromMetadata(metadata), nil
}

// ProcessVideo applies looping and reversal to inputPath, writing outputPath.
// A loop count below 1 is treated as 1.
func (f *FFmpeg) ProcessVideo(ctx context.Context, inputPath, outputPath string, loopCount int, reverse bool) error {
	hasAudio := false
	if reverse {
		metadata, err := f.ProbeVideo(ctx, inputPath)
		if err != nil {
			return fmt.Errorf("failed to probe video: %w", err)
		}
		hasAudio = propertiesFromMetadata(metadata).HasAudio
	}

	ctx, cancel := context.WithTimeout(ctx, f.transformTimeout)
	defer cancel()

	args := buildTransformArgs(inputPath, outputPath, loopCount, reverse, hasAudio, f.preset, f.crf)

	start := time.Now()
	if _, err := f.run(ctx, f.ffmpegPath, args); err != nil {
		return err
	}

	f.logger.WithFields(map[string]interface{}{
		"loop_count": loopCount,
		"reverse":    reverse,
		"output":     outputPath,
	}).Debugf("Video transformed in %s", time.Since(start))

	return nil
}

// RenderSubtitles re-encodes inputPath with a subtitle filter applied
func (f *FFmpeg) RenderSubtitles(ctx context.Context, inputPath, outputPath, filter string) error {
	_, err := f.run(ctx, f.ffmpegPath, buildRenderArgs(inputPath, outputPath, filter, f.preset, f.crf))
	return err
}

// run executes a tool, returning stdout or a *ProcessError carrying stderr
func (f *FFmpeg) run(ctx context.Context, tool string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, tool, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &ProcessError{
			Tool:     tool,
			Args:     args,
			Stderr:   stderr.String(),
			TimedOut: ctx.Err() == context.DeadlineExceeded,
			Err:      err,
		}
	}

	return stdout.Bytes(), nil
}

func buildTransformArgs(inputPath, outputPath string, loopCount int, reverse, hasAudio bool, preset string, crf int) []string {
	if loopCount < 1 {
		loopCount = 1
	}

	args := []string{"-y"}
	if loopCount > 1 {
		args = append(args, "-stream_loop", strconv.Itoa(loopCount-1))
	}
	args = append(args, "-i", inputPath)

	if loopCount == 1 && !reverse {
		return append(args, "-c", "copy", outputPath)
	}

	if reverse {
		args = append(args, "-vf", "reverse")
		if hasAudio {
			args = append(args, "-af", "areverse")
		}
	}

	args = append(args,
		"-c:v", "libx264",
		"-preset", preset,
		"-crf", strconv.Itoa(crf),
	)
	if hasAudio || !reverse {
		args = append(args, "-c:a", "aac")
	}

	return append(args, outputPath)
}

func buildRenderArgs(inputPath, outputPath, filter, preset string, crf int) []string {
	return []string{
		"-y",
		"-i", inputPath,
		"-vf", filter,
		"-c:v", "libx264",
		"-preset", preset,
		"-crf", strconv.Itoa(crf),
		"-c:a", "copy",
		outputPath,
	}
}

func propertiesFromMetadata(metadata *VideoMetadata) models.VideoProperties {
	props := models.VideoProperties{
		Format: metadata.Format.FormatName,
	}

	if duration, err := strconv.ParseFloat(metadata.Format.Duration, 64); err == nil {
		props.Duration = duration
	}
	if size, err := strconv.ParseInt(metadata.Format.Size, 10, 64); err == nil {
		props.Size = size
	}
	if bitrate, err := strconv.ParseInt(metadata.Format.BitRate, 10, 64); err == nil {
		props.Bitrate = bitrate
	}

	videoFound := false
	for _, stream := range metadata.Streams {
		switch stream.CodecType {
		case "video":
			if videoFound {
				continue
			}
			videoFound = true
			props.Width = stream.Width
			props.Height = stream.Height
			props.Codec = stream.CodecName

			rate := stream.AvgFrameRate
			if rate == "" || rate == "0/0" {
				rate = stream.FrameRate
			}
			props.FrameRate = parseFrameRate(rate)
		case "audio":
			props.HasAudio = true
		}
	}

	return props
}

// parseFrameRate parses ffprobe's "num/den" rational
func parseFrameRate(rate string) float64 {
	parts := strings.Split(rate, "/")
	if len(parts) != 2 {
		value, _ := strconv.ParseFloat(rate, 64)
		return value
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}
