// Package merge folds short, irregular transcription chunks into
// subtitle-sized units.
//
// The merge is a single greedy left-to-right pass with one chunk of
// lookahead. Each incoming chunk either extends the open accumulator or closes
// it; nothing is ever reordered, split, truncated, or dropped.
package merge

import (
	"strings"
	"unicode/utf8"

	"vsub/internal/transcript"
)

// Merger holds the fold limits. The zero value folds nothing but is still total.
type Merger struct {
	// ContinuationGapMS: a following chunk starting less than this many
	// milliseconds after the accumulator's end continues the same utterance.
	ContinuationGapMS int64
	// MaxChars bounds the combined text length in runes, separators excluded.
	MaxChars int
	// MaxDurationMS bounds the combined display duration.
	MaxDurationMS int64
}

type accumulator struct {
	parts   []string
	chars   int
	startMS int64
	endMS   int64
}

func newAccumulator(c transcript.Chunk) *accumulator {
	acc := &accumulator{startMS: c.StartMS, endMS: c.EndMS}
	acc.add(c)
	return acc
}

func (a *accumulator) add(c transcript.Chunk) {
	if text := strings.TrimSpace(c.Text); text != "" {
		a.parts = append(a.parts, text)
		a.chars += utf8.RuneCountInString(text)
	}
	if c.EndMS > a.endMS {
		a.endMS = c.EndMS
	}
}

func (a *accumulator) chunk() transcript.Chunk {
	return transcript.Chunk{
		Text:    strings.TrimSpace(strings.Join(a.parts, " ")),
		StartMS: a.startMS,
		EndMS:   a.endMS,
	}
}

// Merge returns the merged sequence for chunks, which must be in source order.
// The result is non-empty whenever chunks is non-empty, and merge(nil) is an
// empty slice.
func (m Merger) Merge(chunks []transcript.Chunk) []transcript.Chunk {
	out := make([]transcript.Chunk, 0, len(chunks))
	if len(chunks) == 0 {
		return out
	}

	acc := newAccumulator(chunks[0])
	for _, next := range chunks[1:] {
		if m.fits(acc, next) {
			acc.add(next)
			continue
		}
		out = append(out, acc.chunk())
		acc = newAccumulator(next)
	}
	return append(out, acc.chunk())
}

// fits applies the three fold gates: continuation gap, combined text length,
// and combined duration. Overlapping chunks produce a negative gap and extend
// to the later end time.
func (m Merger) fits(acc *accumulator, next transcript.Chunk) bool {
	if next.StartMS-acc.endMS >= m.ContinuationGapMS {
		return false
	}
	if acc.chars+utf8.RuneCountInString(strings.TrimSpace(next.Text)) > m.MaxChars {
		return false
	}
	end := max(acc.endMS, next.EndMS)
	return end-acc.startMS <= m.MaxDurationMS
}
