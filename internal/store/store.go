// Package store keeps the reports of completed forms.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no result is stored for a form.
var ErrNotFound = errors.New("result not found")

// Result is the report of one completed form.
type Result struct {
	FormID  int64     `json:"form_id"`
	KeyID   int64     `json:"key_id"`
	Pages   int       `json:"pages"`
	Summary string    `json:"summary"`
	CSV     string    `json:"csv"`
	Created time.Time `json:"created"`
}

// Store saves and loads results. Saving a form twice replaces the first
// result.
type Store interface {
	Save(ctx context.Context, r Result) error
	Get(ctx context.Context, formID int64) (Result, error)
	Close() error
}
