package subtitles

import (
	"fmt"
	"strconv"
	"strings"

	"vsub/internal/transcript"
)

// Entry is one numbered SRT cue.
type Entry struct {
	Sequence int
	StartMS  int64
	EndMS    int64
	Text     string
}

// Options controls rendering.
type Options struct {
	// Encoding is a WHATWG label such as "utf-8" or "windows-1252". Empty means utf-8.
	Encoding string
	// LineWidth wraps cue text at word boundaries when positive.
	LineWidth int
}

// Entries numbers merged chunks from 1, one entry per chunk.
func Entries(chunks []transcript.Chunk) []Entry {
	entries := make([]Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = Entry{Sequence: i + 1, StartMS: c.StartMS, EndMS: c.EndMS, Text: c.Text}
	}
	return entries
}

// FormatTimestamp renders milliseconds as HH:MM:SS,mmm. Hours are not wrapped
// at 24 and widen past two digits when needed.
func FormatTimestamp(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	hours := ms / 3_600_000
	minutes := (ms / 60_000) % 60
	seconds := (ms / 1000) % 60
	millis := ms % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, millis)
}

// Render builds the UTF-8 SRT document for entries.
func Render(entries []Entry, lineWidth int) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strconv.Itoa(e.Sequence))
		b.WriteByte('\n')
		b.WriteString(FormatTimestamp(e.StartMS))
		b.WriteString(" --> ")
		b.WriteString(FormatTimestamp(e.EndMS))
		b.WriteByte('\n')
		text := e.Text
		if lineWidth > 0 {
			text = Wrap(text, lineWidth)
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return b.String()
}

// Format renders merged chunks as an SRT document in the requested encoding.
// Text the encoding cannot represent fails with services.ErrEncoding naming the
// offending cue; nothing is substituted.
func Format(chunks []transcript.Chunk, opts Options) ([]byte, error) {
	entries := Entries(chunks)
	enc, err := lookupEncoding(opts.Encoding)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if enc.isUTF8 {
			err = checkUTF8(e)
		} else {
			err = enc.check(e)
		}
		if err != nil {
			return nil, err
		}
	}
	if enc.isUTF8 {
		return []byte(Render(entries, opts.LineWidth)), nil
	}
	return enc.encode(Render(entries, opts.LineWidth))
}

// Wrap breaks text into lines of at most width runes at spaces. Words longer
// than width stay whole on their own line.
func Wrap(text string, width int) string {
	words := strings.Fields(text)
	if width <= 0 || len(words) == 0 {
		return text
	}
	var b strings.Builder
	lineLen := 0
	for _, w := range words {
		wl := len([]rune(w))
		switch {
		case lineLen == 0:
		case lineLen+1+wl > width:
			b.WriteByte('\n')
			lineLen = 0
		default:
			b.WriteByte(' ')
			lineLen++
		}
		b.WriteString(w)
		lineLen += wl
	}
	return b.String()
}
