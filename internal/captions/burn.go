package captions

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/therealutkarshpriyadarshi/captionpipe/internal/logging"
)

// DefaultBurnTimeout bounds a single subtitle render
const DefaultBurnTimeout = 300 * time.Second

// SubtitleRenderer re-encodes a video with a subtitle filter applied
type SubtitleRenderer interface {
	RenderSubtitles(ctx context.Context, inputPath, outputPath, filter string) error
}

// BurnRequest describes one caption burn
type BurnRequest struct {
	InputPath  string
	OutputPath string
	Text       string
	Duration   float64
	Style      StyleSource
	Width      int
	Height     int
}

// Burner turns caption text into burned-in captions
type Burner struct {
	renderer     SubtitleRenderer
	timeout      time.Duration
	windowsPaths bool
	logger       *logging.Logger
}

// NewBurner creates a burner rendering through renderer
func NewBurner(renderer SubtitleRenderer, timeout time.Duration, logger *logging.Logger) *Burner {
	if timeout <= 0 {
		timeout = DefaultBurnTimeout
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Burner{
		renderer:     renderer,
		timeout:      timeout,
		windowsPaths: runtime.GOOS == "windows",
		logger:       logger,
	}
}

// Burn writes the captioned video to req.OutputPath and returns that path.
// When the text yields no captions the input is copied through unchanged.
func (b *Burner) Burn(ctx context.Context, req BurnRequest) (string, error) {
	inputPath := normalizePath(req.InputPath)
	outputPath := normalizePath(req.OutputPath)

	style := req.Style.Resolve()
	chunks := Segment(req.Text, style.WordsPerCaption)
	doc := Synthesize(chunks, req.Duration, style, req.Width, req.Height)

	if doc == nil {
		b.logger.Debugf("No caption text for %s, copying input through", inputPath)
		if err := copyFile(inputPath, outputPath); err != nil {
			return "", fmt.Errorf("failed to copy uncaptioned video: %w", err)
		}
		return outputPath, nil
	}

	outputDir := filepath.Dir(outputPath)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	scratchPath, err := writeScratch(outputDir, doc.String())
	if err != nil {
		return "", err
	}
	defer removeFile(scratchPath)

	filter := "subtitles=" + escapeFilterPath(scratchPath, b.windowsPaths)

	renderCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if err := b.renderer.RenderSubtitles(renderCtx, inputPath, outputPath, filter); err != nil {
		return "", fmt.Errorf("caption burn failed: %w", err)
	}

	b.logger.WithFields(map[string]interface{}{
		"events": len(doc.Events),
		"style":  req.Style.String(),
		"output": outputPath,
	}).Debug("Captions burned")

	return outputPath, nil
}

func writeScratch(dir, content string) (string, error) {
	f, err := os.CreateTemp(dir, ".captions-*.ass")
	if err != nil {
		return "", fmt.Errorf("failed to create subtitle file: %w", err)
	}

	if _, err := f.WriteString(content); err != nil {
		f.Close()
		removeFile(f.Name())
		return "", fmt.Errorf("failed to write subtitle file: %w", err)
	}
	if err := f.Close(); err != nil {
		removeFile(f.Name())
		return "", fmt.Errorf("failed to close subtitle file: %w", err)
	}

	return f.Name(), nil
}

// escapeFilterPath quotes a path as the first argument of a filter in a
// filtergraph. ffmpeg unescapes the text twice: once when splitting the graph
// on "[],;" and once when splitting the filter options on ":". The path is
// escaped for the option level, then single-quoted for the graph level, where
// only a quote needs special handling.
func escapeFilterPath(path string, windows bool) string {
	if windows {
		path = strings.ReplaceAll(path, `\`, "/")
	}

	opt := optionEscaper.Replace(path)
	return "'" + strings.ReplaceAll(opt, "'", `'\''`) + "'"
}

var optionEscaper = strings.NewReplacer(`\`, `\\`, ":", `\:`, "'", `\'`, "=", `\=`, " ", `\ `)

func normalizePath(path string) string {
	return filepath.Clean(filepath.FromSlash(path))
}

func copyFile(src, dst string) error {
	if src == dst {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// removeFile removes a file, ignoring errors
func removeFile(path string) {
	os.Remove(path)
}
