// Package deploylog persists the build/deploy pipeline's own narration (git
// fetch output, image build output, step transitions) to one rotated file
// per project, independent of the container runtime logs the observability
// endpoints read. Grounded on the teacher's openLogFileHelper.go/pipeline.go
// append-one-file-per-deployment instinct, replacing the plain os.OpenFile
// with lumberjack so years of redeploys on one host don't grow the file
// without bound.
package deploylog

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxSizeMB  = 10
	maxBackups = 5
	maxAgeDays = 90
)

// Writer appends timestamped lines to a single project's rotated log file.
type Writer struct {
	rotator *lumberjack.Logger
}

// Open returns a Writer for the given project's log file at
// <logRoot>/<projectName>.log, creating logRoot if necessary.
func Open(logRoot string, projectName string) (*Writer, error) {
	if err := os.MkdirAll(logRoot, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %q: %w", logRoot, err)
	}
	return &Writer{
		rotator: &lumberjack.Logger{
			Filename:   filepath.Join(logRoot, projectName+".log"),
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   true,
		},
	}, nil
}

// Logf writes one timestamped, newline-terminated line.
func (w *Writer) Logf(version int, format string, args ...any) {
	line := fmt.Sprintf("%s [v%d] %s\n", time.Now().UTC().Format(time.RFC3339), version, fmt.Sprintf(format, args...))
	_, _ = w.rotator.Write([]byte(line))
}

// Close releases the underlying file handle.
func (w *Writer) Close() error {
	return w.rotator.Close()
}

// TailLines reads the last n lines of the project's current log file. a
// missing file (no deploy has ever run) returns an empty string, not an error.
func TailLines(logRoot string, projectName string, n int) (string, error) {
	path := filepath.Join(logRoot, projectName+".log")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read log file %q: %w", path, err)
	}

	lines := splitLines(data)
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}

	joined := ""
	for i, line := range lines {
		if i > 0 {
			joined += "\n"
		}
		joined += line
	}
	return joined, nil
}

func splitLines(data []byte) []string {
	text := string(data)
	lines := []string{}
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, text[start:i])
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}
