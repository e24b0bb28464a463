package audio

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
)

// Interval is a half-open time span in milliseconds.
type Interval struct {
	StartMS int64 `json:"start_ms"`
	EndMS   int64 `json:"end_ms"`
}

// DurationMS returns the interval length.
func (i Interval) DurationMS() int64 { return i.EndMS - i.StartMS }

// Midpoint returns the interval centre, rounded down.
func (i Interval) Midpoint() int64 { return i.StartMS + (i.EndMS-i.StartMS)/2 }

// Segment is one slice of the source timeline written to its own file.
type Segment struct {
	Index   int    `json:"index"`
	Path    string `json:"path"`
	StartMS int64  `json:"start_ms"`
	EndMS   int64  `json:"end_ms"`
}

// DurationMS returns the segment length.
func (s Segment) DurationMS() int64 { return s.EndMS - s.StartMS }

var segmentNamePattern = regexp.MustCompile(`^segment_(\d{4,})_(\d{10,})_(\d{10,})\.wav$`)

// SegmentName returns the deterministic file name for a segment. Index and
// bounds are encoded so segments can be recovered from a directory listing.
func SegmentName(index int, startMS, endMS int64) string {
	return fmt.Sprintf("segment_%04d_%010d_%010d.wav", index, startMS, endMS)
}

// ParseSegmentName recovers a segment from a path produced by SegmentName.
func ParseSegmentName(path string) (Segment, bool) {
	m := segmentNamePattern.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return Segment{}, false
	}
	index, err1 := strconv.Atoi(m[1])
	start, err2 := strconv.ParseInt(m[2], 10, 64)
	end, err3 := strconv.ParseInt(m[3], 10, 64)
	if err1 != nil || err2 != nil || err3 != nil || start >= end {
		return Segment{}, false
	}
	return Segment{Index: index, Path: path, StartMS: start, EndMS: end}, true
}
