package captions

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/captionpipe/pkg/models"
)

type mockRenderer struct {
	mock.Mock
}

func (m *mockRenderer) RenderSubtitles(ctx context.Context, inputPath, outputPath, filter string) error {
	args := m.Called(ctx, inputPath, outputPath, filter)
	return args.Error(0)
}

func scratchPathFromFilter(filter string) string {
	path, _ := parseSubtitlesFilter(filter)
	return path
}

// parseSubtitlesFilter reads the filename back out of a subtitles filter the
// way ffmpeg does: the filter arguments are split off the graph on "[],;",
// then the first option is split off on ":".
func parseSubtitlesFilter(filter string) (string, bool) {
	args, ok := strings.CutPrefix(filter, "subtitles=")
	if !ok {
		return "", false
	}

	args, rest := getToken(args, "[],;")
	if rest != "" {
		return "", false
	}
	path, rest := getToken(args, ":")
	return path, rest == ""
}

const tokenWhitespace = " \n\t\r"

// getToken returns the next token of buf ending at any byte in term. A
// backslash escapes the next byte, quoted text is taken literally and
// unescaped trailing whitespace is dropped.
func getToken(buf, term string) (string, string) {
	var out []byte
	end := 0
	i := 0
	for i < len(buf) && strings.IndexByte(tokenWhitespace, buf[i]) >= 0 {
		i++
	}

	for i < len(buf) && strings.IndexByte(term, buf[i]) < 0 {
		c := buf[i]
		i++
		switch {
		case c == '\\' && i < len(buf):
			out = append(out, buf[i])
			i++
			end = len(out)
		case c == '\'':
			for i < len(buf) && buf[i] != '\'' {
				out = append(out, buf[i])
				i++
			}
			if i < len(buf) {
				i++
			}
			end = len(out)
		default:
			out = append(out, c)
		}
	}

	for len(out) > end && strings.IndexByte(tokenWhitespace, out[len(out)-1]) >= 0 {
		out = out[:len(out)-1]
	}
	return string(out), buf[i:]
}

func assFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, ".captions-*.ass"))
	require.NoError(t, err)
	return matches
}

func TestBurnNoCaptionCopiesInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.mp4")
	output := filepath.Join(dir, "nested", "out.mp4")
	require.NoError(t, os.WriteFile(input, []byte("video-bytes\x00\x01"), 0644))

	renderer := &mockRenderer{}
	burner := NewBurner(renderer, time.Second, nil)

	got, err := burner.Burn(context.Background(), BurnRequest{
		InputPath:  input,
		OutputPath: output,
		Text:       "   \n ",
		Duration:   12,
		Style:      NoStyle(),
	})
	require.NoError(t, err)
	assert.Equal(t, output, got)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, []byte("video-bytes\x00\x01"), data)

	renderer.AssertNotCalled(t, "RenderSubtitles", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, assFiles(t, filepath.Dir(output)))
}

func TestBurnRendersAndRemovesScratch(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.mp4")
	output := filepath.Join(dir, "out.mp4")
	require.NoError(t, os.WriteFile(input, []byte("v"), 0644))

	renderer := &mockRenderer{}
	renderer.On("RenderSubtitles", mock.Anything, input, output, mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline, "render must be bounded by a timeout")

			doc, err := os.ReadFile(scratchPathFromFilter(args.String(3)))
			require.NoError(t, err)
			assert.Contains(t, string(doc), "PlayResX: 1080")
			assert.Contains(t, string(doc), "Dialogue: 0,0:00:00.00,0:00:03.00,Default,,0,0,0,,The quick\n")
			assert.Contains(t, string(doc), "Dialogue: 0,0:00:06.00,0:00:09.00,Default,,0,0,0,,jumps\n")
		}).
		Return(nil).Once()

	burner := NewBurner(renderer, time.Minute, nil)
	got, err := burner.Burn(context.Background(), BurnRequest{
		InputPath:  input,
		OutputPath: output,
		Text:       "The quick brown fox jumps",
		Duration:   9,
		Style: ConfigSource(models.CaptionConfig{
			"words_per_caption": 2,
			"position":          "center",
		}),
		Width:  1080,
		Height: 1920,
	})
	require.NoError(t, err)
	assert.Equal(t, output, got)

	renderer.AssertExpectations(t)
	assert.Empty(t, assFiles(t, dir), "scratch subtitle file must be removed")
}

func TestBurnFailureRemovesScratch(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.mp4")
	output := filepath.Join(dir, "out.mp4")
	require.NoError(t, os.WriteFile(input, []byte("v"), 0644))

	renderErr := errors.New("ffmpeg failed: exit status 1, stderr: Invalid data")
	renderer := &mockRenderer{}
	renderer.On("RenderSubtitles", mock.Anything, input, output, mock.Anything).Return(renderErr).Once()

	burner := NewBurner(renderer, time.Minute, nil)
	_, err := burner.Burn(context.Background(), BurnRequest{
		InputPath:  input,
		OutputPath: output,
		Text:       "hello there",
		Duration:   3,
		Style:      NoStyle(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, renderErr)
	assert.Contains(t, err.Error(), "Invalid data")
	assert.Empty(t, assFiles(t, dir), "scratch subtitle file must be removed on failure")
}

func TestBurnDefaultTimeout(t *testing.T) {
	burner := NewBurner(&mockRenderer{}, 0, nil)
	assert.Equal(t, DefaultBurnTimeout, burner.timeout)
}

func TestEscapeFilterPath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		windows bool
		want    string
	}{
		{"posix plain", "/tmp/work/.captions-1.ass", false, "/tmp/work/.captions-1.ass"},
		{"posix colon", "/tmp/a:b/x.ass", false, "/tmp/a:b/x.ass"},
		{"posix quote", "/tmp/it's/x.ass", false, "/tmp/it's/x.ass"},
		{"posix quotes and colon", "/tmp/'a':b'/x.ass", false, "/tmp/'a':b'/x.ass"},
		{"posix backslash", `/tmp/a\b.ass`, false, `/tmp/a\b.ass`},
		{"posix separators", "/tmp/a,b;c[d]/x=y.ass", false, "/tmp/a,b;c[d]/x=y.ass"},
		{"posix trailing space", "/tmp/work /x.ass ", false, "/tmp/work /x.ass "},
		{"windows drive", `C:\work\x.ass`, true, "C:/work/x.ass"},
		{"windows drive and colon", `D:\a:b\x.ass`, true, "D:/a:b/x.ass"},
		{"windows drive and quote", `C:\it's\x.ass`, true, "C:/it's/x.ass"},
		{"windows unc", `\\share\x.ass`, true, "//share/x.ass"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := "subtitles=" + escapeFilterPath(tt.path, tt.windows)

			got, ok := parseSubtitlesFilter(filter)
			require.True(t, ok, "filter %q did not parse as a single argument", filter)
			assert.Equal(t, tt.want, got, "filter %q", filter)
		})
	}
}

func TestBurnFilterRoundTripsScratchPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "it's: here")
	require.NoError(t, os.MkdirAll(dir, 0755))

	input := filepath.Join(dir, "in.mp4")
	require.NoError(t, os.WriteFile(input, []byte("video"), 0644))
	output := filepath.Join(dir, "out.mp4")

	renderer := &mockRenderer{}
	var scratch string
	renderer.On("RenderSubtitles", mock.Anything, input, output, mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) {
			path, ok := parseSubtitlesFilter(args.String(3))
			require.True(t, ok)
			scratch = path
			assert.FileExists(t, path)
		}).
		Return(nil)

	burner := NewBurner(renderer, time.Minute, nil)
	_, err := burner.Burn(context.Background(), BurnRequest{
		InputPath:  input,
		OutputPath: output,
		Text:       "hello there",
		Duration:   3,
		Style:      NoStyle(),
	})
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(scratch))
	renderer.AssertExpectations(t)
}
