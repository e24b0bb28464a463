package stagecache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"vsub/internal/config"
	"vsub/internal/services"
	"vsub/internal/textutil"
)

// sampleBytes is how much of each end of the source feeds the content hash.
const sampleBytes = 1 << 20

// Identity derives the workspace key for source. In name mode it is the
// sanitized base name; in content mode the first 12 hex characters of a hash
// over the file size and its leading and trailing MiB are appended, so two
// different files that share a name do not share artifacts.
func Identity(source, mode string) (string, error) {
	base := filepath.Base(source)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	name := textutil.SanitizeToken(stem)

	switch strings.ToLower(strings.TrimSpace(mode)) {
	case config.CacheKeyName:
		return name, nil
	case "", config.CacheKeyContent:
		sum, err := contentHash(source)
		if err != nil {
			return "", err
		}
		return name + "-" + sum[:12], nil
	default:
		return "", services.Wrap(services.ErrConfiguration, "cache", "derive identity", fmt.Sprintf("unknown cache key mode %q", mode), nil)
	}
}

func contentHash(source string) (string, error) {
	file, err := os.Open(source)
	if err != nil {
		return "", services.Wrap(services.ErrInput, "cache", "hash source", source, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", services.Wrap(services.ErrInput, "cache", "hash source", source, err)
	}
	size := info.Size()

	h := sha256.New()
	var sizeBuf [8]byte
	binary.BigEndian.PutUint64(sizeBuf[:], uint64(size))
	_, _ = h.Write(sizeBuf[:])

	if _, err := io.Copy(h, io.LimitReader(file, sampleBytes)); err != nil {
		return "", fmt.Errorf("hash %s: %w", source, err)
	}
	if size > sampleBytes {
		tail := max(size-sampleBytes, sampleBytes)
		if _, err := file.Seek(tail, io.SeekStart); err != nil {
			return "", fmt.Errorf("seek %s: %w", source, err)
		}
		if _, err := io.Copy(h, file); err != nil {
			return "", fmt.Errorf("hash %s: %w", source, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
