package imaging

import (
	"image"
	"image/color"
	"math"
	"testing"
)

// createPage returns a white gray image with the given rectangles filled black.
func createPage(width, height int, black ...image.Rectangle) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	for _, r := range black {
		r = r.Intersect(img.Bounds())
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				img.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
	return img
}

func TestNewGrid_Threshold(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 1))
	img.Pix = []uint8{0, 100, 160, 255}

	g := NewGrid(img, DefaultGrayShade)

	want := []bool{true, true, false, false}
	for x, w := range want {
		if got := g.Black(Point{X: x, Y: 0}); got != w {
			t.Errorf("Black(%d,0): got %v, want %v", x, got, w)
		}
	}
}

func TestNewGrid_ColorInput(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{10, 20, 30, 255})
	img.Set(1, 0, color.RGBA{240, 240, 240, 255})

	g := NewGrid(img, DefaultGrayShade)
	if !g.Black(Point{0, 0}) {
		t.Error("dark pixel should be black")
	}
	if g.Black(Point{1, 0}) {
		t.Error("light pixel should be white")
	}
}

func TestGrid_OutOfBounds(t *testing.T) {
	g := NewGrid(createPage(5, 5, image.Rect(0, 0, 5, 5)), DefaultGrayShade)

	tests := []struct {
		name string
		p    Point
		want bool
	}{
		{"inside", Point{2, 2}, true},
		{"left", Point{-1, 2}, false},
		{"above", Point{2, -1}, false},
		{"right", Point{5, 2}, false},
		{"below", Point{2, 5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.Black(tt.p); got != tt.want {
				t.Errorf("Black(%v): got %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}

func TestGrid_Blackness(t *testing.T) {
	g := NewGrid(createPage(40, 40, image.Rect(10, 10, 30, 30)), DefaultGrayShade)

	tests := []struct {
		name   string
		center Point
		radius float64
		min    float64
		max    float64
	}{
		{"inside filled square", Point{20, 20}, 5, 1, 1},
		{"white area", Point{3, 3}, 2, 0, 0},
		{"straddling edge", Point{10, 20}, 4, 0.4, 0.7},
		{"zero radius on black", Point{20, 20}, 0, 1, 1},
		{"negative radius", Point{20, 20}, -1, 0, 0},
		{"off the grid", Point{100, 100}, 3, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := g.Blackness(tt.center, tt.radius)
			if got < tt.min || got > tt.max {
				t.Errorf("Blackness: got %.3f, want in [%.2f, %.2f]", got, tt.min, tt.max)
			}
		})
	}
}

func TestGrid_Marks(t *testing.T) {
	g := NewBlankGrid(10, 10)
	g.Mark(Point{1, 1}, MarkBox)
	g.Mark(Point{2, 2}, MarkChosen)

	marks := g.Marks()
	if len(marks) != 2 {
		t.Fatalf("Marks: got %d, want 2", len(marks))
	}
	marks[0].X = 99
	if g.Marks()[0].X != 1 {
		t.Error("Marks should return a copy")
	}
	if marks[1].Kind != MarkChosen {
		t.Errorf("Kind: got %v, want %v", marks[1].Kind, MarkChosen)
	}
}

func TestGrid_ImageRoundTrip(t *testing.T) {
	src := createPage(8, 6, image.Rect(2, 1, 5, 4))
	g := NewGrid(src, DefaultGrayShade)
	back := NewGrid(g.Image(), DefaultGrayShade)

	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			p := Point{x, y}
			if g.Black(p) != back.Black(p) {
				t.Fatalf("pixel %v differs after rendering", p)
			}
		}
	}
}

func TestGrid_RotateQuarterTurn(t *testing.T) {
	// Horizontal bar running right from the pivot.
	g := NewGrid(createPage(41, 41, image.Rect(20, 20, 31, 21)), DefaultGrayShade)
	pivot := Point{20, 20}

	g.Rotate(math.Pi/2, pivot)

	if g.Width() != 41 || g.Height() != 41 {
		t.Fatalf("size: got %dx%d, want 41x41", g.Width(), g.Height())
	}
	// Counter-clockwise on screen: the bar now points up.
	if !g.Black(Point{20, 10}) {
		t.Error("expected bar end at (20,10) after rotation")
	}
	if g.Black(Point{30, 20}) {
		t.Error("old bar end (30,20) should be white after rotation")
	}
	if want := RotatePoint(Point{30, 20}, pivot, math.Pi/2); want != (Point{20, 10}) {
		t.Errorf("RotatePoint: got %v, want (20,10)", want)
	}
}

func TestGrid_RotateMatchesRotatePoint(t *testing.T) {
	g := NewGrid(createPage(100, 100, image.Rect(59, 19, 64, 24)), DefaultGrayShade)
	pivot := Point{20, 20}
	rad := 0.2

	want := RotatePoint(Point{61, 21}, pivot, rad)
	g.Rotate(rad, pivot)

	if !g.Black(want) {
		t.Errorf("rotated blob should cover %v", want)
	}
	if g.Black(Point{61, 21}) {
		t.Error("original blob position should be white after rotation")
	}
	// Corners uncovered by the rotation must come back white.
	if g.Black(Point{99, 0}) || g.Black(Point{0, 99}) {
		t.Error("uncovered corners should be white")
	}
}

func TestGrid_RotateZero(t *testing.T) {
	g := NewGrid(createPage(10, 10, image.Rect(2, 2, 4, 4)), DefaultGrayShade)
	g.Rotate(0, Point{5, 5})
	if !g.Black(Point{2, 2}) || g.Black(Point{5, 5}) {
		t.Error("zero rotation should leave the grid untouched")
	}
}
