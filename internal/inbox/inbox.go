// Package inbox holds submitted documents until their results are stored.
//
// File names carry the form and key IDs, so a restarted server can queue
// whatever an earlier run left behind.
package inbox

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/ironsheep/form-scanner/internal/imaging"
)

// ErrTooLarge is returned by Save when the document exceeds the limit.
var ErrTooLarge = errors.New("upload too large")

// Queuer accepts a stored document for processing.
type Queuer interface {
	Add(id, key int64, path string) error
}

// Supported reports whether filename names an image or a PDF.
func Supported(filename string) bool {
	return imaging.IsImageFile(filename) || strings.EqualFold(filepath.Ext(filename), ".pdf")
}

// SanitizeFilename strips any directory part, including Windows-style
// paths, from a client-supplied name.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// Name returns a unique file name for a document.
func Name(id, key int64, filename string) string {
	return fmt.Sprintf("%d_%d_%s%s", id, key, uuid.NewString(), strings.ToLower(filepath.Ext(filename)))
}

// ParseName recovers the IDs from a name made by Name.
func ParseName(name string) (id, key int64, ok bool) {
	parts := strings.SplitN(name, "_", 3)
	if len(parts) != 3 {
		return 0, 0, false
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	key, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return id, key, true
}

// Save copies at most limit bytes of r into dir and returns the new path.
// A limit of zero or less means no limit.
func Save(dir string, id, key int64, filename string, r io.Reader, limit int64) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, Name(id, key, filename))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && limit > 0 && n > limit {
		err = ErrTooLarge
	}
	if err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// Copy stores a copy of the file at src, leaving the original in place.
func Copy(dir string, id, key int64, src string, limit int64) (string, error) {
	f, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return Save(dir, id, key, filepath.Base(src), f, limit)
}

// Resume queues every document left in dir by an earlier run. Files go only
// after their results are stored, so anything still here was not finished.
func Resume(dir string, q Queuer, log *slog.Logger) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read upload dir: %w", err)
	}

	var n int
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, key, ok := ParseName(e.Name())
		if !ok {
			log.Warn("unrecognized file in upload dir", "file", e.Name())
			continue
		}
		if err := q.Add(id, key, filepath.Join(dir, e.Name())); err != nil {
			log.Warn("upload not requeued", "file", e.Name(), "error", err)
			continue
		}
		n++
	}
	return n, nil
}
