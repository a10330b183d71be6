package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	imgkit "github.com/disintegration/imaging"

	"github.com/ironsheep/form-scanner/internal/imaging"
)

// writePDF writes a one-page PDF whose page draws a single image XObject
// with the given dictionary entries and sample bytes.
func writePDF(t *testing.T, imageDict string, samples []byte) string {
	t.Helper()
	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj("<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	obj("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] " +
		"/Resources << /XObject << /Im0 4 0 R >> >> /Contents 5 0 R >>")
	obj(fmt.Sprintf("<< /Type /XObject /Subtype /Image %s /Length %d >>\nstream\n%s\nendstream",
		imageDict, len(samples), samples))
	obj("<< /Length 0 >>\nstream\n\nendstream")

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)

	path := filepath.Join(t.TempDir(), "scan.pdf")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func noFallback() *Extractor {
	e := New()
	e.Fallback = false
	return e
}

func blackAt(g *imaging.Grid, x, y int) bool {
	return g.Black(imaging.Point{X: x, Y: y})
}

func TestExtract_Image(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 6, 4))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	img.SetGray(2, 1, color.Gray{Y: 0})

	path := filepath.Join(t.TempDir(), "page.png")
	if err := imgkit.Save(img, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	grids, err := New().Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(grids) != 1 {
		t.Fatalf("pages: got %d, want 1", len(grids))
	}
	g := grids[0]
	if g.Width() != 6 || g.Height() != 4 {
		t.Errorf("size: got %dx%d, want 6x4", g.Width(), g.Height())
	}
	if !blackAt(g, 2, 1) || blackAt(g, 3, 1) {
		t.Error("pixels not binarized as drawn")
	}
}

func TestExtract_Unsupported(t *testing.T) {
	_, err := New().Extract(context.Background(), "answers.docx")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Extract: got %v, want %v", err, ErrUnsupportedFormat)
	}
}

func TestExtract_MissingImage(t *testing.T) {
	_, err := New().Extract(context.Background(), filepath.Join(t.TempDir(), "gone.png"))
	if err == nil {
		t.Error("Extract of a missing file succeeded")
	}
}

func TestExtract_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Extract(ctx, "page.png"); !errors.Is(err, context.Canceled) {
		t.Errorf("Extract: got %v, want %v", err, context.Canceled)
	}
}

func TestExtract_PDF(t *testing.T) {
	tests := []struct {
		name    string
		dict    string
		samples []byte
		black   []image.Point
		white   []image.Point
	}{
		{
			name:    "8-bit gray",
			dict:    "/Width 4 /Height 2 /ColorSpace /DeviceGray /BitsPerComponent 8",
			samples: []byte{0xFF, 0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0x10, 0xFF},
			black:   []image.Point{{1, 0}, {2, 1}},
			white:   []image.Point{{0, 0}, {3, 1}},
		},
		{
			name:    "1-bit gray",
			dict:    "/Width 10 /Height 1 /ColorSpace /DeviceGray /BitsPerComponent 1",
			samples: []byte{0b10111111, 0b11000000},
			black:   []image.Point{{1, 0}},
			white:   []image.Point{{0, 0}, {9, 0}},
		},
		{
			name:    "1-bit inverted",
			dict:    "/Width 8 /Height 1 /ColorSpace /DeviceGray /BitsPerComponent 1 /Decode [1 0]",
			samples: []byte{0b01000000},
			black:   []image.Point{{1, 0}},
			white:   []image.Point{{0, 0}, {7, 0}},
		},
		{
			name:    "rgb",
			dict:    "/Width 2 /Height 1 /ColorSpace /DeviceRGB /BitsPerComponent 8",
			samples: []byte{0x00, 0x00, 0x00, 0xFF, 0xFF, 0xFF},
			black:   []image.Point{{0, 0}},
			white:   []image.Point{{1, 0}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writePDF(t, tt.dict, tt.samples)
			grids, err := noFallback().Extract(context.Background(), path)
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if len(grids) != 1 {
				t.Fatalf("pages: got %d, want 1", len(grids))
			}
			for _, p := range tt.black {
				if !blackAt(grids[0], p.X, p.Y) {
					t.Errorf("pixel %v: got white, want black", p)
				}
			}
			for _, p := range tt.white {
				if blackAt(grids[0], p.X, p.Y) {
					t.Errorf("pixel %v: got black, want white", p)
				}
			}
		})
	}
}

func TestExtract_PDFUnsupportedFilter(t *testing.T) {
	path := writePDF(t, "/Width 2 /Height 1 /ColorSpace /DeviceGray /BitsPerComponent 8 /Filter /DCTDecode",
		[]byte{0x00, 0xFF})
	if _, err := noFallback().Extract(context.Background(), path); err == nil {
		t.Error("Extract decoded a JPEG stream without the fallback")
	}
}

func TestExtract_NotAPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.pdf")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := noFallback().Extract(context.Background(), path); err == nil {
		t.Error("Extract accepted a file that is not a PDF")
	}
}

func TestSortPageFiles(t *testing.T) {
	files := []string{"/t/page-10.png", "/t/page-2.png", "/t/page-01.png", "/t/page-9.png"}
	sortPageFiles(files)
	want := []string{"/t/page-01.png", "/t/page-2.png", "/t/page-9.png", "/t/page-10.png"}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("position %d: got %s, want %s", i, files[i], want[i])
		}
	}
}
