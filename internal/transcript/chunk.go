package transcript

import "strings"

// Chunk is a text fragment anchored to source-absolute milliseconds. Raw engine
// output and merged subtitle units share this shape.
type Chunk struct {
	Text    string `json:"text"`
	StartMS int64  `json:"start_ms"`
	EndMS   int64  `json:"end_ms"`
}

// DurationMS returns the chunk's span.
func (c Chunk) DurationMS() int64 {
	return c.EndMS - c.StartMS
}

// Blank reports whether the chunk carries no visible text.
func (c Chunk) Blank() bool {
	return strings.TrimSpace(c.Text) == ""
}

// Shift returns a copy of c moved later by offset milliseconds.
func (c Chunk) Shift(offset int64) Chunk {
	c.StartMS += offset
	c.EndMS += offset
	return c
}

// Concat flattens per-segment chunk lists in the order given.
func Concat(groups ...[]Chunk) []Chunk {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	out := make([]Chunk, 0, total)
	for _, group := range groups {
		out = append(out, group...)
	}
	return out
}
