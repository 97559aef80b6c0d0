package testutil

import (
	"math"
	"testing"
)

// AssertScoreInRange fails unless lo <= score <= hi and score is finite.
func AssertScoreInRange(tb testing.TB, score, lo, hi float64) {
	tb.Helper()

	if math.IsNaN(score) || math.IsInf(score, 0) {
		tb.Fatalf("score is not finite: %v", score)
	}

	if score < lo || score > hi {
		tb.Fatalf("score %.6f out of expected range [%.3f, %.3f]", score, lo, hi)
	}
}

// AssertInDelta fails unless |got-want| <= delta.
func AssertInDelta(tb testing.TB, got, want, delta float64) {
	tb.Helper()

	if math.Abs(got-want) > delta {
		tb.Fatalf("got %.9f; want %.9f (±%g)", got, want, delta)
	}
}

// AssertCHWImage checks that data is a planar [channels, height, width] float
// image with every value in [0, 1].
func AssertCHWImage(tb testing.TB, data []float32, channels, height, width int) {
	tb.Helper()

	want := channels * height * width
	if len(data) != want {
		tb.Fatalf("CHW image has %d values; want %d (%dx%dx%d)", len(data), want, channels, height, width)
	}

	for i, v := range data {
		if v < 0 || v > 1 || math.IsNaN(float64(v)) {
			c := i / (height * width)
			tb.Fatalf("CHW value out of [0,1] at channel %d offset %d: %v", c, i%(height*width), v)
		}
	}
}
