package imaging

import (
	"math"
	"testing"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b Point
		want float64
	}{
		{"horizontal", Point{0, 50}, Point{100, 50}, 100},
		{"vertical", Point{50, 100}, Point{50, 0}, 100},
		{"3-4-5 triangle", Point{0, 0}, Point{3, 4}, 5},
		{"same point", Point{7, 7}, Point{7, 7}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Distance(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Distance: got %.3f, want %.3f", got, tt.want)
			}
		})
	}
}

func TestAngle(t *testing.T) {
	tests := []struct {
		name string
		b    Point
		want float64
	}{
		{"right", Point{10, 0}, 0},
		{"down", Point{0, 10}, 90},
		{"left", Point{-10, 0}, 180},
		{"up", Point{0, -10}, -90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Angle(Point{}, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Angle: got %.1f, want %.1f", got, tt.want)
			}
		})
	}
}

func TestPoint_Less(t *testing.T) {
	tests := []struct {
		a, b Point
		want bool
	}{
		{Point{5, 1}, Point{0, 2}, true},
		{Point{0, 2}, Point{5, 1}, false},
		{Point{1, 3}, Point{2, 3}, true},
		{Point{2, 3}, Point{2, 3}, false},
	}
	for _, tt := range tests {
		if got := tt.a.Less(tt.b); got != tt.want {
			t.Errorf("%v.Less(%v): got %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestRotatePoint(t *testing.T) {
	pivot := Point{10, 10}
	tests := []struct {
		name string
		p    Point
		rad  float64
		want Point
	}{
		{"pivot is fixed", pivot, 1.0, pivot},
		{"quarter turn of right", Point{20, 10}, math.Pi / 2, Point{10, 0}},
		{"quarter turn of down", Point{10, 20}, math.Pi / 2, Point{20, 10}},
		{"half turn", Point{20, 10}, math.Pi, Point{0, 10}},
		{"undo", RotatePoint(Point{40, 70}, pivot, 0.1), -0.1, Point{40, 70}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RotatePoint(tt.p, pivot, tt.rad)
			if abs(got.X-tt.want.X) > 1 || abs(got.Y-tt.want.Y) > 1 {
				t.Errorf("RotatePoint: got %v, want %v", got, tt.want)
			}
		})
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestCheckAlignment(t *testing.T) {
	tests := []struct {
		name           string
		points         []Point
		tolerance      int
		wantHorizontal bool
		wantVertical   bool
	}{
		{"single point", []Point{{5, 5}}, 1, true, true},
		{"vertical column", []Point{{30, 10}, {31, 60}, {30, 110}, {29, 160}}, 5, false, true},
		{"horizontal row", []Point{{10, 400}, {100, 401}, {200, 399}}, 5, true, false},
		{"skewed column", []Point{{30, 0}, {45, 200}, {60, 400}, {75, 600}}, 5, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckAlignment(tt.points, tt.tolerance)
			if got.HorizontallyAligned != tt.wantHorizontal {
				t.Errorf("HorizontallyAligned: got %v, want %v", got.HorizontallyAligned, tt.wantHorizontal)
			}
			if got.VerticallyAligned != tt.wantVertical {
				t.Errorf("VerticallyAligned: got %v, want %v", got.VerticallyAligned, tt.wantVertical)
			}
		})
	}
}

func TestSkew(t *testing.T) {
	tests := []struct {
		name   string
		points []Point
		want   float64
	}{
		{"straight", []Point{{30, 0}, {30, 100}, {30, 200}}, 0},
		{"drifts right", []Point{{0, 0}, {10, 100}, {20, 200}}, math.Atan(0.1)},
		{"drifts left", []Point{{20, 0}, {10, 100}, {0, 200}}, -math.Atan(0.1)},
		{"too few", []Point{{1, 1}}, 0},
		{"degenerate", []Point{{1, 5}, {9, 5}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Skew(tt.points); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Skew: got %.6f, want %.6f", got, tt.want)
			}
		})
	}
}
