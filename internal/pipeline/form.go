package pipeline

import (
	"bytes"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ironsheep/form-scanner/internal/detection"
	"github.com/ironsheep/form-scanner/internal/imaging"
)

// State is where a form is in the pipeline.
type State string

const (
	StateQueued     State = "queued"
	StateExtracting State = "extracting"
	StateDecoding   State = "decoding"
	StateComplete   State = "complete"
)

// Page is one page of a form and what was read from it.
type Page struct {
	Index    int                `json:"index"`
	ID       int64              `json:"id"`
	Answers  []detection.Answer `json:"answers,omitempty"`
	Rotation float64            `json:"rotation"`
	Err      string             `json:"error,omitempty"`

	grid *imaging.Grid
}

// HasID reports whether an ID was read from the page.
func (p Page) HasID() bool { return p.ID != detection.NoID }

// logBuffer collects a form's log records.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Form is one submitted document.
type Form struct {
	ID      int64
	Key     int64
	Path    string
	Created time.Time

	mu        sync.Mutex
	state     State
	pages     []*Page
	total     int
	done      int
	completed bool
	err       error

	finished chan struct{}
	logs     *logBuffer
	log      *slog.Logger
}

// NewForm returns a queued form whose log records are kept for its report.
func NewForm(id, key int64, path string) *Form {
	logs := &logBuffer{}
	h := slog.NewTextHandler(logs, &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	})
	return &Form{
		ID:       id,
		Key:      key,
		Path:     path,
		Created:  time.Now(),
		state:    StateQueued,
		finished: make(chan struct{}),
		logs:     logs,
		log:      slog.New(h),
	}
}

// Log returns the logger whose records end up in the form's report.
func (f *Form) Log() *slog.Logger { return f.log }

// LogText returns everything logged for the form so far.
func (f *Form) LogText() string { return f.logs.String() }

// Finished is closed once the form is complete.
func (f *Form) Finished() <-chan struct{} { return f.finished }

// State returns the form's pipeline state.
func (f *Form) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Form) setState(s State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = s
}

// setPages installs the extracted pages. It reports whether there is
// nothing left to decode.
func (f *Form) setPages(pages []*Page) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages = pages
	f.total = len(pages)
	f.state = StateDecoding
	return f.checkComplete()
}

// fail ends extraction with no pages.
func (f *Form) fail(err error) bool {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
	return f.setPages(nil)
}

// Err returns the error that stopped the document from being read, if any.
func (f *Form) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// pageDone counts one decoded page and reports whether it was the last.
// The count and the check share one critical section, so exactly one
// caller sees true.
func (f *Form) pageDone(p *Page, res detection.PageResult, errText string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = res.ID
	p.Answers = res.Answers
	p.Rotation = res.Rotation
	p.Err = errText
	p.grid = nil
	f.done++
	return f.checkComplete()
}

func (f *Form) checkComplete() bool {
	if f.completed || f.done < f.total {
		return false
	}
	f.completed = true
	f.state = StateComplete
	return true
}

// Progress returns decoded pages, total pages and the percentage done.
// A form with no pages counts as fully done once extraction is over.
func (f *Form) Progress() (done, total, percent int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done, f.total, f.percent()
}

func (f *Form) percent() int {
	switch {
	case f.completed:
		return 100
	case f.total == 0:
		return 0
	}
	return 100 * f.done / f.total
}

// Pages returns a copy of the pages in page order.
func (f *Form) Pages() []Page {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Page, len(f.pages))
	for i, p := range f.pages {
		out[i] = *p
		out[i].grid = nil
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

func (f *Form) markFinished() {
	close(f.finished)
}
