package jitter

import (
	"math"
	"testing"
)

func TestDelayRange(t *testing.T) {
	g := New()

	cases := []struct{ min, max int }{
		{0, 0},
		{0, 1},
		{600, 3000},
		{42, 43},
		{7, 7},
	}
	for _, c := range cases {
		const samples = 10000
		var sum float64
		for i := 0; i < samples; i++ {
			v, err := g.Delay(c.min, c.max)
			if err != nil {
				t.Fatalf("Delay(%d, %d) returned error: %v", c.min, c.max, err)
			}
			if v < c.min || v > c.max {
				t.Fatalf("Delay(%d, %d) = %d out of range", c.min, c.max, v)
			}
			sum += float64(v)
		}
		mean := sum / samples
		want := float64(c.min+c.max) / 2
		tolerance := math.Max(1, float64(c.max-c.min)*0.05)
		if math.Abs(mean-want) > tolerance {
			t.Fatalf("Delay(%d, %d) mean %.2f, want about %.2f", c.min, c.max, mean, want)
		}
	}
}

func TestDelayHitsBothBounds(t *testing.T) {
	g := New()
	seen := map[int]bool{}
	for i := 0; i < 1000; i++ {
		v, _ := g.Delay(3, 5)
		seen[v] = true
	}
	for _, v := range []int{3, 4, 5} {
		if !seen[v] {
			t.Fatalf("expected %d to be produced, saw %v", v, seen)
		}
	}
}

func TestDelayRejectsBadBounds(t *testing.T) {
	g := New()
	if _, err := g.Delay(10, 5); err == nil {
		t.Fatalf("expected error when min > max")
	}
	if _, err := g.Delay(-1, 5); err == nil {
		t.Fatalf("expected error for negative min")
	}
}

func TestPick(t *testing.T) {
	g := New()
	for i := 0; i < 100; i++ {
		if v := g.Pick(5); v < 0 || v >= 5 {
			t.Fatalf("Pick(5) = %d", v)
		}
	}
	if v := g.Pick(0); v != 0 {
		t.Fatalf("Pick(0) = %d", v)
	}
}
