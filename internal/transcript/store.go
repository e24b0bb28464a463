package transcript

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"unicode/utf8"

	"vsub/internal/fileutil"
	"vsub/internal/services"
)

const documentVersion = 1

type document struct {
	Version int     `json:"version"`
	Chunks  []Chunk `json:"chunks"`
}

// legacyChunk is the seconds-based layout written by earlier tooling:
// {"text": "...", "timestamp": [start, end]}.
type legacyChunk struct {
	Text      string     `json:"text"`
	Timestamp []*float64 `json:"timestamp"`
}

// Save writes chunks to path atomically.
func Save(path string, chunks []Chunk) error {
	data, err := Marshal(chunks)
	if err != nil {
		return services.Wrap(services.ErrFormat, "store", "encode chunks", path, err)
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("save chunks %s: %w", path, err)
	}
	return nil
}

// Marshal renders chunks as an indented JSON document. Text that is not
// valid UTF-8 is rejected rather than silently replaced by the encoder.
func Marshal(chunks []Chunk) ([]byte, error) {
	if chunks == nil {
		chunks = []Chunk{}
	}
	for i, c := range chunks {
		if !utf8.ValidString(c.Text) {
			return nil, fmt.Errorf("chunk %d text is not valid UTF-8", i)
		}
	}
	data, err := json.MarshalIndent(document{Version: documentVersion, Chunks: chunks}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Load reads chunks from path.
func Load(path string) ([]Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "store", "load chunks", path, err)
		}
		return nil, fmt.Errorf("read chunks %s: %w", path, err)
	}
	chunks, err := Unmarshal(data)
	if err != nil {
		return nil, services.Wrap(services.ErrFormat, "store", "load chunks", path, err)
	}
	return chunks, nil
}

// Unmarshal parses either the current document layout or a bare legacy array
// and validates chunk timing.
func Unmarshal(data []byte) ([]Chunk, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty artifact")
	}
	if !utf8.Valid(trimmed) {
		return nil, errors.New("artifact is not valid UTF-8")
	}

	var chunks []Chunk
	if trimmed[0] == '[' {
		legacy, err := unmarshalLegacy(trimmed)
		if err != nil {
			return nil, err
		}
		chunks = legacy
	} else {
		var doc document
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode chunk document: %w", err)
		}
		if doc.Version != documentVersion {
			return nil, fmt.Errorf("unsupported chunk document version %d", doc.Version)
		}
		if doc.Chunks == nil {
			return nil, errors.New("chunk document missing chunks array")
		}
		chunks = doc.Chunks
	}

	for i, c := range chunks {
		if c.StartMS < 0 || c.EndMS < c.StartMS {
			return nil, fmt.Errorf("chunk %d has invalid timing [%d,%d]", i, c.StartMS, c.EndMS)
		}
	}
	return chunks, nil
}

func unmarshalLegacy(data []byte) ([]Chunk, error) {
	var raw []legacyChunk
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode legacy chunks: %w", err)
	}
	chunks := make([]Chunk, 0, len(raw))
	for i, item := range raw {
		if len(item.Timestamp) != 2 || item.Timestamp[0] == nil {
			return nil, fmt.Errorf("legacy chunk %d: timestamp must be [start, end]", i)
		}
		start := secondsToMS(*item.Timestamp[0])
		end := start
		if item.Timestamp[1] != nil {
			end = secondsToMS(*item.Timestamp[1])
		}
		chunks = append(chunks, Chunk{Text: item.Text, StartMS: start, EndMS: end})
	}
	return chunks, nil
}

func secondsToMS(seconds float64) int64 {
	return int64(math.Round(seconds * 1000))
}
