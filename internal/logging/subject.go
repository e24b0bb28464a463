package logging

import (
	"strconv"
	"strings"
)

// FormatSubject builds the stage/segment subject string used in console output.
func FormatSubject(stage string, segment int, hasSegment bool) string {
	stage = strings.TrimSpace(stage)
	switch {
	case stage != "" && hasSegment:
		return stage + " · segment #" + strconv.Itoa(segment)
	case hasSegment:
		return "segment #" + strconv.Itoa(segment)
	default:
		return stage
	}
}
