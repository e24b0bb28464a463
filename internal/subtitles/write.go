package subtitles

import (
	"fmt"
	"os"

	"vsub/internal/fileutil"
	"vsub/internal/services"
)

// WriteFile publishes an SRT document atomically.
func WriteFile(path string, data []byte) error {
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write subtitles %s: %w", path, err)
	}
	return nil
}

// ReadFile loads and parses an SRT file. A malformed file is services.ErrFormat.
func ReadFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, services.Wrap(services.ErrNotFound, "format", "read subtitles", path, err)
		}
		return nil, fmt.Errorf("read subtitles %s: %w", path, err)
	}
	entries, err := Parse(data)
	if err != nil {
		return nil, services.Wrap(services.ErrFormat, "format", "parse subtitles", path, err)
	}
	return entries, nil
}
