package dispatch

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileSink writes documents to <Root>/<dir>/<random>.html.
type FileSink struct {
	Root string
}

// Store writes document under dir and returns the file path.
func (s FileSink) Store(dir, document string) (string, error) {
	target := filepath.Join(s.Root, dir)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", target, err)
	}

	f, err := os.CreateTemp(target, "*.html")
	if err != nil {
		return "", fmt.Errorf("failed to create document: %w", err)
	}

	if _, err := f.WriteString(document); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to write document: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to write document: %w", err)
	}

	return f.Name(), nil
}

// DeleteFile removes a stored document, ignoring every error.
func DeleteFile(path string) {
	_ = os.Remove(path)
}
