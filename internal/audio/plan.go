package audio

import (
	"slices"
	"time"
)

// SplitOptions bounds segment length.
type SplitOptions struct {
	// MinSegmentMS: shorter segments are folded into the following one.
	MinSegmentMS int64
	// MaxSegmentMS: longer segments are re-split. Zero disables the ceiling.
	MaxSegmentMS int64
}

// Plan turns silence intervals into contiguous segment bounds covering
// [0, totalMS). Cuts fall at silence midpoints so surrounding quiet is shared
// by both neighbours. Segments below the floor merge forward (the final one
// merges backward). Every usable silence already produces a cut, so a segment
// still above the ceiling holds no qualifying pause and is hard-split.
func Plan(pauses []Interval, totalMS int64, opts SplitOptions) []Interval {
	if totalMS <= 0 {
		return nil
	}
	pauses = normalizePauses(pauses, totalMS)

	cuts := []int64{0}
	for _, p := range pauses {
		mid := p.Midpoint()
		if mid <= 0 || mid >= totalMS || mid <= cuts[len(cuts)-1] {
			continue
		}
		if mid-cuts[len(cuts)-1] < opts.MinSegmentMS {
			continue
		}
		cuts = append(cuts, mid)
	}
	if len(cuts) > 1 && totalMS-cuts[len(cuts)-1] < opts.MinSegmentMS {
		cuts = cuts[:len(cuts)-1]
	}
	cuts = append(cuts, totalMS)

	var bounds []Interval
	for i := 1; i < len(cuts); i++ {
		bounds = appendBounded(bounds, Interval{StartMS: cuts[i-1], EndMS: cuts[i]}, opts)
	}
	return bounds
}

func normalizePauses(pauses []Interval, totalMS int64) []Interval {
	out := make([]Interval, 0, len(pauses))
	for _, p := range pauses {
		p.StartMS = max(p.StartMS, 0)
		p.EndMS = min(p.EndMS, totalMS)
		if p.EndMS > p.StartMS {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b Interval) int {
		switch {
		case a.StartMS < b.StartMS:
			return -1
		case a.StartMS > b.StartMS:
			return 1
		default:
			return 0
		}
	})
	return out
}

func appendBounded(dst []Interval, seg Interval, opts SplitOptions) []Interval {
	if opts.MaxSegmentMS <= 0 || seg.DurationMS() <= opts.MaxSegmentMS {
		return append(dst, seg)
	}
	cut := hardCut(seg, opts)
	dst = append(dst, Interval{StartMS: seg.StartMS, EndMS: cut})
	return appendBounded(dst, Interval{StartMS: cut, EndMS: seg.EndMS}, opts)
}

func hardCut(seg Interval, opts SplitOptions) int64 {
	cut := seg.StartMS + opts.MaxSegmentMS
	if seg.EndMS-cut < opts.MinSegmentMS {
		if alt := seg.EndMS - opts.MinSegmentMS; alt > seg.StartMS {
			cut = alt
		}
	}
	return cut
}

func msToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
