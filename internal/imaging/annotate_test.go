package imaging

import (
	"image"
	"path/filepath"
	"testing"
)

func TestAnnotate_DrawsMarks(t *testing.T) {
	g := NewGrid(createPage(60, 60), DefaultGrayShade)
	g.Mark(Point{30, 30}, MarkChosen)

	img := Annotate(g)

	r, gr, b, _ := img.At(30+MarkSize, 30).RGBA()
	if r == gr && gr == b {
		t.Errorf("mark arm should be colored, got gray %d", r>>8)
	}
	r, gr, b, _ = img.At(5, 5).RGBA()
	if r>>8 != 0xFF || gr>>8 != 0xFF || b>>8 != 0xFF {
		t.Error("unmarked background should stay white")
	}
}

func TestAnnotate_ClipsAtEdges(t *testing.T) {
	g := NewBlankGrid(8, 8)
	g.Mark(Point{0, 0}, MarkBox)
	g.Mark(Point{-50, -50}, MarkCandidate)

	img := Annotate(g)
	if img.Bounds() != image.Rect(0, 0, 8, 8) {
		t.Errorf("bounds: got %v, want 8x8", img.Bounds())
	}
}

func TestMarkColor_Distinct(t *testing.T) {
	seen := map[[3]uint32]MarkKind{}
	for _, k := range []MarkKind{MarkBox, MarkCandidate, MarkChosen} {
		r, g, b, _ := markColor(k).RGBA()
		key := [3]uint32{r, g, b}
		if other, dup := seen[key]; dup {
			t.Errorf("kinds %v and %v share a color", other, k)
		}
		seen[key] = k
	}
}

func TestSaveAnnotated(t *testing.T) {
	g := NewGrid(createPage(20, 20, image.Rect(2, 2, 6, 6)), DefaultGrayShade)
	g.Mark(Point{10, 10}, MarkBox)

	path := filepath.Join(t.TempDir(), "page.png")
	if err := SaveAnnotated(g, path); err != nil {
		t.Fatalf("SaveAnnotated failed: %v", err)
	}
	back, err := LoadGrid(path, DefaultGrayShade)
	if err != nil {
		t.Fatalf("LoadGrid failed: %v", err)
	}
	if !back.Black(Point{3, 3}) {
		t.Error("saved page lost its black square")
	}

	if err := SaveAnnotated(g, filepath.Join(t.TempDir(), "page.unknown")); err == nil {
		t.Error("expected an error for an unknown extension")
	}
}
