package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// FileStore keeps one JSON file per form in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(formID int64) string {
	return filepath.Join(s.dir, strconv.FormatInt(formID, 10)+".json")
}

// Save writes the result through a temporary file so readers never see a
// partial one.
func (s *FileStore) Save(ctx context.Context, r Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result %d: %w", r.FormID, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".result-*")
	if err != nil {
		return fmt.Errorf("save result %d: %w", r.FormID, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save result %d: %w", r.FormID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save result %d: %w", r.FormID, err)
	}
	if err := os.Rename(tmp.Name(), s.path(r.FormID)); err != nil {
		return fmt.Errorf("save result %d: %w", r.FormID, err)
	}
	return nil
}

// Get loads the result of a form.
func (s *FileStore) Get(ctx context.Context, formID int64) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	data, err := os.ReadFile(s.path(formID))
	if errors.Is(err, os.ErrNotExist) {
		return Result{}, ErrNotFound
	}
	if err != nil {
		return Result{}, fmt.Errorf("load result %d: %w", formID, err)
	}

	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return Result{}, fmt.Errorf("decode result %d: %w", formID, err)
	}
	return r, nil
}

// Close does nothing; files need no cleanup.
func (s *FileStore) Close() error { return nil }
