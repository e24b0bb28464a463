package audio

import (
	"reflect"
	"testing"
)

func TestPlanCutsAtSilenceMidpoint(t *testing.T) {
	bounds := Plan([]Interval{{StartMS: 5000, EndMS: 6200}}, 12000, SplitOptions{MinSegmentMS: 1000, MaxSegmentMS: 30000})
	want := []Interval{{0, 5600}, {5600, 12000}}
	if !reflect.DeepEqual(bounds, want) {
		t.Fatalf("bounds = %v, want %v", bounds, want)
	}
}

func TestPlanCases(t *testing.T) {
	tests := []struct {
		name    string
		pauses  []Interval
		totalMS int64
		opts    SplitOptions
		want    []Interval
	}{
		{
			name:    "no silence yields one segment",
			totalMS: 8000,
			opts:    SplitOptions{MinSegmentMS: 1000, MaxSegmentMS: 30000},
			want:    []Interval{{0, 8000}},
		},
		{
			name:    "short leading segment merges forward",
			pauses:  []Interval{{400, 600}, {4000, 5000}},
			totalMS: 10000,
			opts:    SplitOptions{MinSegmentMS: 1000},
			want:    []Interval{{0, 4500}, {4500, 10000}},
		},
		{
			name:    "short trailing segment merges backward",
			pauses:  []Interval{{4000, 5000}, {9400, 9600}},
			totalMS: 10000,
			opts:    SplitOptions{MinSegmentMS: 1000},
			want:    []Interval{{0, 4500}, {4500, 10000}},
		},
		{
			name:    "silence cut followed by hard cuts",
			pauses:  []Interval{{6000, 7000}},
			totalMS: 30000,
			opts:    SplitOptions{MinSegmentMS: 1000, MaxSegmentMS: 10000},
			want:    []Interval{{0, 6500}, {6500, 16500}, {16500, 26500}, {26500, 30000}},
		},
		{
			name:    "hard cut when no silence qualifies",
			totalMS: 25000,
			opts:    SplitOptions{MinSegmentMS: 1000, MaxSegmentMS: 10000},
			want:    []Interval{{0, 10000}, {10000, 20000}, {20000, 25000}},
		},
		{
			name:    "hard cut keeps tail above minimum",
			totalMS: 20500,
			opts:    SplitOptions{MinSegmentMS: 1000, MaxSegmentMS: 10000},
			want:    []Interval{{0, 10000}, {10000, 19500}, {19500, 20500}},
		},
		{
			name:    "zero maximum disables ceiling",
			totalMS: 100000,
			opts:    SplitOptions{MinSegmentMS: 1000},
			want:    []Interval{{0, 100000}},
		},
		{
			name:    "pauses outside timeline are clipped",
			pauses:  []Interval{{-500, 200}, {9900, 12000}},
			totalMS: 10000,
			opts:    SplitOptions{MinSegmentMS: 1000},
			want:    []Interval{{0, 10000}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Plan(tt.pauses, tt.totalMS, tt.opts)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Plan = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPlanEmptyTimeline(t *testing.T) {
	if got := Plan(nil, 0, SplitOptions{}); got != nil {
		t.Fatalf("expected nil bounds, got %v", got)
	}
}

func TestPlanIsContiguousAndBounded(t *testing.T) {
	pauses := []Interval{{1000, 1100}, {2500, 3500}, {7000, 7300}, {15000, 16000}, {40000, 41000}, {41500, 42500}}
	opts := SplitOptions{MinSegmentMS: 1000, MaxSegmentMS: 9000}
	const total = 60000
	bounds := Plan(pauses, total, opts)
	if len(bounds) == 0 {
		t.Fatal("expected bounds")
	}
	if bounds[0].StartMS != 0 || bounds[len(bounds)-1].EndMS != total {
		t.Fatalf("bounds do not cover timeline: %v", bounds)
	}
	for i, b := range bounds {
		if i > 0 && bounds[i-1].EndMS != b.StartMS {
			t.Fatalf("gap between %v and %v", bounds[i-1], b)
		}
		if b.DurationMS() > opts.MaxSegmentMS {
			t.Fatalf("segment %v exceeds maximum", b)
		}
		if b.DurationMS() < opts.MinSegmentMS {
			t.Fatalf("segment %v below minimum", b)
		}
	}
}
