package transcoder

import (
	"fmt"
	"strings"
)

// maxStderrTail bounds how much diagnostic output is kept in error messages
const maxStderrTail = 2048

// ProcessError is returned when ffmpeg or ffprobe exits unsuccessfully
type ProcessError struct {
	Tool     string
	Args     []string
	Stderr   string
	TimedOut bool
	Err      error
}

func (e *ProcessError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("%s timed out: %v, stderr: %s", e.Tool, e.Err, tail(e.Stderr, maxStderrTail))
	}
	return fmt.Sprintf("%s failed: %v, stderr: %s", e.Tool, e.Err, tail(e.Stderr, maxStderrTail))
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// CommandLine renders the invocation for diagnostics
func (e *ProcessError) CommandLine() string {
	return strings.TrimSpace(e.Tool + " " + strings.Join(e.Args, " "))
}
