package subtitles

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Parse reads an SRT document back into entries. It accepts CRLF line endings,
// a UTF-8 BOM, and '.' as the millisecond separator.
func Parse(data []byte) ([]Entry, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil
	}

	blocks := strings.Split(content, "\n\n")
	entries := make([]Entry, 0, len(blocks))
	for i, block := range blocks {
		block = strings.Trim(block, "\n")
		if strings.TrimSpace(block) == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		if len(lines) < 2 {
			return nil, fmt.Errorf("cue %d: missing timing line", i+1)
		}
		seq, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil {
			return nil, fmt.Errorf("cue %d: invalid sequence %q", i+1, lines[0])
		}
		parts := strings.Split(lines[1], "-->")
		if len(parts) != 2 {
			return nil, fmt.Errorf("cue %d: invalid timing line %q", seq, lines[1])
		}
		start, err := ParseTimestamp(parts[0])
		if err != nil {
			return nil, fmt.Errorf("cue %d: %w", seq, err)
		}
		end, err := ParseTimestamp(parts[1])
		if err != nil {
			return nil, fmt.Errorf("cue %d: %w", seq, err)
		}
		entries = append(entries, Entry{
			Sequence: seq,
			StartMS:  start,
			EndMS:    end,
			Text:     strings.Join(lines[2:], "\n"),
		})
	}
	return entries, nil
}

// ParseTimestamp converts HH:MM:SS,mmm into milliseconds.
func ParseTimestamp(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.ParseInt(hms[0], 10, 64)
	minutes, errM := strconv.ParseInt(hms[1], 10, 64)
	seconds, errS := strconv.ParseInt(hms[2], 10, 64)
	millis, errMS := strconv.ParseInt(timeParts[1], 10, 64)
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	if minutes > 59 || seconds > 59 || millis > 999 || hours < 0 || minutes < 0 || seconds < 0 || millis < 0 {
		return 0, fmt.Errorf("timestamp %q out of range", value)
	}
	return ((hours*60+minutes)*60+seconds)*1000 + millis, nil
}

// Validate checks rendered entries for structural problems. It returns a list
// of issue codes; an empty slice means the file is sound. audioMS bounds the
// last cue when positive.
func Validate(entries []Entry, audioMS int64) []string {
	if len(entries) == 0 {
		return []string{"empty_subtitle_file"}
	}
	var issues []string
	var prevStart int64 = -1
	for i, e := range entries {
		if e.Sequence != i+1 {
			issues = append(issues, fmt.Sprintf("sequence_gap: cue %d numbered %d", i+1, e.Sequence))
		}
		if e.EndMS < e.StartMS {
			issues = append(issues, fmt.Sprintf("negative_duration: cue %d", e.Sequence))
		}
		if e.StartMS < prevStart {
			issues = append(issues, fmt.Sprintf("out_of_order: cue %d", e.Sequence))
		}
		if strings.TrimSpace(e.Text) == "" {
			issues = append(issues, fmt.Sprintf("empty_text: cue %d", e.Sequence))
		}
		prevStart = e.StartMS
	}
	if last := entries[len(entries)-1]; audioMS > 0 && last.EndMS > audioMS+1000 {
		issues = append(issues, fmt.Sprintf("ends_after_audio: %s > %s", FormatTimestamp(last.EndMS), FormatTimestamp(audioMS)))
	}
	return issues
}
