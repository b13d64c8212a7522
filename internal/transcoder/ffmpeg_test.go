package transcoder

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTransformArgs(t *testing.T) {
	tests := []struct {
		name      string
		loopCount int
		reverse   bool
		hasAudio  bool
		want      []string
	}{
		{
			name:      "plain copy",
			loopCount: 1,
			want:      []string{"-y", "-i", "in.mp4", "-c", "copy", "out.mp4"},
		},
		{
			name:      "zero loop treated as one",
			loopCount: 0,
			want:      []string{"-y", "-i", "in.mp4", "-c", "copy", "out.mp4"},
		},
		{
			name:      "loop three times",
			loopCount: 3,
			hasAudio:  true,
			want: []string{"-y", "-stream_loop", "2", "-i", "in.mp4",
				"-c:v", "libx264", "-preset", "veryfast", "-crf", "23", "-c:a", "aac", "out.mp4"},
		},
		{
			name:      "reverse with audio",
			loopCount: 1,
			reverse:   true,
			hasAudio:  true,
			want: []string{"-y", "-i", "in.mp4", "-vf", "reverse", "-af", "areverse",
				"-c:v", "libx264", "-preset", "veryfast", "-crf", "23", "-c:a", "aac", "out.mp4"},
		},
		{
			name:      "reverse silent video",
			loopCount: 2,
			reverse:   true,
			want: []string{"-y", "-stream_loop", "1", "-i", "in.mp4", "-vf", "reverse",
				"-c:v", "libx264", "-preset", "veryfast", "-crf", "23", "out.mp4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildTransformArgs("in.mp4", "out.mp4", tt.loopCount, tt.reverse, tt.hasAudio, "veryfast", 23)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildRenderArgs(t *testing.T) {
	got := buildRenderArgs("in.mp4", "out.mp4", "subtitles='/tmp/a.ass'", "fast", 20)
	assert.Equal(t, []string{
		"-y", "-i", "in.mp4",
		"-vf", "subtitles='/tmp/a.ass'",
		"-c:v", "libx264", "-preset", "fast", "-crf", "20",
		"-c:a", "copy", "out.mp4",
	}, got)
}

func TestPropertiesFromMetadata(t *testing.T) {
	metadata := &VideoMetadata{
		Format: FormatInfo{
			FormatName: "mov,mp4,m4a,3gp,3g2,mj2",
			Duration:   "12.480000",
			Size:       "1048576",
			BitRate:    "672000",
		},
		Streams: []StreamInfo{
			{CodecType: "video", CodecName: "h264", Width: 1080, Height: 1920, AvgFrameRate: "30000/1001"},
			{CodecType: "audio", CodecName: "aac"},
			{CodecType: "video", CodecName: "mjpeg", Width: 320, Height: 240},
		},
	}

	props := propertiesFromMetadata(metadata)
	assert.InDelta(t, 12.48, props.Duration, 1e-9)
	assert.Equal(t, 1080, props.Width)
	assert.Equal(t, 1920, props.Height)
	assert.Equal(t, "h264", props.Codec)
	assert.Equal(t, int64(1048576), props.Size)
	assert.Equal(t, int64(672000), props.Bitrate)
	assert.InDelta(t, 29.97, props.FrameRate, 0.01)
	assert.True(t, props.HasAudio)
}

func TestPropertiesFromMetadataMissingValues(t *testing.T) {
	props := propertiesFromMetadata(&VideoMetadata{
		Format: FormatInfo{Duration: "N/A"},
		Streams: []StreamInfo{
			{CodecType: "video", AvgFrameRate: "0/0", FrameRate: "25/1"},
		},
	})
	assert.Zero(t, props.Duration)
	assert.Zero(t, props.Width)
	assert.Equal(t, 25.0, props.FrameRate)
	assert.False(t, props.HasAudio)
}

func TestParseFrameRate(t *testing.T) {
	assert.Equal(t, 30.0, parseFrameRate("30/1"))
	assert.Equal(t, 24.0, parseFrameRate("24"))
	assert.Zero(t, parseFrameRate("1/0"))
	assert.Zero(t, parseFrameRate("abc/def"))
	assert.Zero(t, parseFrameRate(""))
}

func TestProcessErrorMessage(t *testing.T) {
	cause := errors.New("exit status 1")
	err := &ProcessError{
		Tool:   "ffmpeg",
		Args:   []string{"-i", "in.mp4"},
		Stderr: "in.mp4: Invalid data found when processing input\n",
		Err:    cause,
	}

	assert.Equal(t, "ffmpeg failed: exit status 1, stderr: in.mp4: Invalid data found when processing input", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "ffmpeg -i in.mp4", err.CommandLine())

	var wrapped error = errors.Join(errors.New("caption burn failed"), err)
	var pe *ProcessError
	require.ErrorAs(t, wrapped, &pe)
	assert.False(t, pe.TimedOut)

	err.TimedOut = true
	assert.Contains(t, err.Error(), "ffmpeg timed out")
}

func TestTail(t *testing.T) {
	assert.Equal(t, "short", tail("  short\n", 10))
	long := strings.Repeat("a", 20) + "END"
	assert.Equal(t, "...aaEND", tail(long, 5))
}

func requireTools(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping ffmpeg integration test in short mode")
	}
	for _, tool := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not available", tool)
		}
	}
}

func generateSample(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "sample.mp4")
	cmd := exec.Command("ffmpeg", "-y",
		"-f", "lavfi", "-i", "testsrc=size=320x240:rate=25:duration=2",
		"-f", "lavfi", "-i", "sine=frequency=440:duration=2",
		"-c:v", "libx264", "-pix_fmt", "yuv420p", "-c:a", "aac", "-shortest", path)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("could not generate sample video: %v: %s", err, out)
	}
	return path
}

func TestFFmpegIntegration(t *testing.T) {
	requireTools(t)

	dir := t.TempDir()
	input := generateSample(t, dir)
	f := NewFFmpeg(Options{}, nil)
	ctx := context.Background()

	props, err := f.GetVideoProperties(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, 320, props.Width)
	assert.Equal(t, 240, props.Height)
	assert.InDelta(t, 2.0, props.Duration, 0.2)
	assert.True(t, props.HasAudio)

	looped := filepath.Join(dir, "looped.mp4")
	require.NoError(t, f.ProcessVideo(ctx, input, looped, 2, true))

	loopedProps, err := f.GetVideoProperties(ctx, looped)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, loopedProps.Duration, 0.3)
}

func TestFFmpegProcessErrorOnBadInput(t *testing.T) {
	requireTools(t)

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.mp4")
	require.NoError(t, os.WriteFile(bad, []byte("not a video"), 0644))

	f := NewFFmpeg(Options{ProbeTimeout: 10 * time.Second}, nil)
	err := f.RenderSubtitles(context.Background(), bad, filepath.Join(dir, "out.mp4"), "null")
	require.Error(t, err)

	var pe *ProcessError
	require.ErrorAs(t, err, &pe)
	assert.NotEmpty(t, pe.Stderr)
}
