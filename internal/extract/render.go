package extract

import (
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/ironsheep/form-scanner/internal/imaging"
)

// renderPages rasterizes every page of a PDF with pdftoppm from poppler.
func renderPages(ctx context.Context, path string, density int) ([]image.Image, error) {
	if density <= 0 {
		density = 200
	}
	dir, err := os.MkdirTemp("", "formscan-pages-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-r", strconv.Itoa(density), "-gray", "-png", path, filepath.Join(dir, "page"))
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, out)
	}

	files, err := filepath.Glob(filepath.Join(dir, "page-*.png"))
	if err != nil {
		return nil, err
	}
	sortPageFiles(files)

	imgs := make([]image.Image, 0, len(files))
	for _, f := range files {
		img, err := imaging.Load(f)
		if err != nil {
			return nil, err
		}
		imgs = append(imgs, img)
	}
	return imgs, nil
}

// sortPageFiles orders pdftoppm output by page number.
func sortPageFiles(files []string) {
	num := func(f string) int {
		base := filepath.Base(f)
		base = base[len("page-") : len(base)-len(".png")]
		n, _ := strconv.Atoi(base)
		return n
	}
	sort.Slice(files, func(i, j int) bool { return num(files[i]) < num(files[j]) })
}
