package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ironsheep/form-scanner/internal/detection"
	"github.com/ironsheep/form-scanner/internal/imaging"
	"github.com/ironsheep/form-scanner/internal/store"
)

var (
	// ErrDuplicateForm is returned by Add for an ID already in the pipeline.
	ErrDuplicateForm = errors.New("form already queued")
	// ErrExiting is returned once Exit has been called.
	ErrExiting = errors.New("processor is exiting")
)

// Extractor turns a document into page grids, in page order.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]*imaging.Grid, error)
}

// PageDecoder reads one page grid.
type PageDecoder interface {
	DecodeWith(g *imaging.Grid, log *slog.Logger) (detection.PageResult, error)
}

// Options configures a Processor.
type Options struct {
	// ExtractWorkers and DecodeWorkers size the two pools; zero means one
	// worker per CPU.
	ExtractWorkers int
	DecodeWorkers  int

	// ServerMode persists each completed form's report to Store and then
	// removes the form and its file. Without it forms stay in memory and
	// their files are left alone.
	ServerMode bool
	Store      store.Store

	Extractor Extractor
	Decoder   PageDecoder

	// OnComplete is called once per form when its last page is done.
	OnComplete func(*Form)

	// DebugDir, when set, receives an annotated PNG of every decoded page.
	DebugDir string

	// PersistTimeout bounds saving one report. Zero means 30 seconds.
	PersistTimeout time.Duration

	Logger *slog.Logger
}

type pageJob struct {
	form *Form
	page *Page
}

// Processor runs documents through extraction and page decoding.
type Processor struct {
	opts Options
	log  *slog.Logger

	mu    sync.Mutex
	forms map[int64]*Form

	extractQ *Queue[*Form]
	decodeQ  *Queue[pageJob]
	status   *StatusBoard

	ctx      context.Context
	cancel   context.CancelFunc
	exiting  atomic.Bool
	exitOnce sync.Once
	exited   chan struct{}
}

// New starts a processor with both worker pools running.
func New(opts Options) (*Processor, error) {
	if opts.Extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if opts.Decoder == nil {
		opts.Decoder = detection.NewDecoder()
	}
	if opts.ServerMode && opts.Store == nil {
		return nil, fmt.Errorf("server mode requires a store")
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 30 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Processor{
		opts:   opts,
		log:    log,
		forms:  make(map[int64]*Form),
		status: NewStatusBoard(),
		ctx:    ctx,
		cancel: cancel,
		exited: make(chan struct{}),
	}
	p.extractQ = NewQueue(opts.ExtractWorkers, p.extract)
	p.decodeQ = NewQueue(opts.DecodeWorkers, p.decode)
	return p, nil
}

// Add queues a document for processing. key is the ID of the page holding
// the answer key.
func (p *Processor) Add(id, key int64, path string) error {
	if p.exiting.Load() {
		return ErrExiting
	}

	f := NewForm(id, key, path)
	p.mu.Lock()
	if _, ok := p.forms[id]; ok {
		p.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrDuplicateForm, id)
	}
	p.forms[id] = f
	p.mu.Unlock()

	if err := p.extractQ.Push(f); err != nil {
		p.mu.Lock()
		delete(p.forms, id)
		p.mu.Unlock()
		return fmt.Errorf("queue form %d: %w", id, err)
	}
	p.log.Info("form queued", "form", id, "key", key, "path", path)
	return nil
}

// Form returns the form with the given ID while it is in the pipeline.
func (p *Processor) Form(id int64) (*Form, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.forms[id]
	return f, ok
}

// Done reports whether a form is finished. Unknown forms count as done,
// since in server mode finished forms are removed.
func (p *Processor) Done(id int64) bool {
	f, ok := p.Form(id)
	if !ok {
		return true
	}
	select {
	case <-f.Finished():
		return true
	default:
		return false
	}
}

// StatusWait blocks until some form's progress changes and returns the
// changes. Every caller waiting at that moment sees the same updates.
func (p *Processor) StatusWait(ctx context.Context) ([]Status, error) {
	return p.status.Wait(ctx)
}

// WaitFor blocks until the form reaches 100%.
func (p *Processor) WaitFor(ctx context.Context, id int64) error {
	f, ok := p.Form(id)
	if !ok {
		return nil
	}
	select {
	case <-f.Finished():
		return nil
	case <-p.exited:
		return ErrExiting
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait finishes all queued documents: extraction first, then every page it
// produced. No documents can be added afterwards.
func (p *Processor) Wait() {
	p.extractQ.Drain()
	p.decodeQ.Drain()
}

// Exit abandons queued work and wakes everything blocked on the processor.
// Pages being decoded are allowed to finish.
func (p *Processor) Exit() {
	p.exitOnce.Do(func() {
		p.exiting.Store(true)
		close(p.exited)
		p.status.Close()
		p.cancel()
		p.extractQ.Stop()
		p.decodeQ.Stop()
		p.log.Info("processor stopped")
	})
}

// QueueDepth returns the documents and pages waiting for a worker.
func (p *Processor) QueueDepth() (documents, pages int) {
	return p.extractQ.Len(), p.decodeQ.Len()
}

func (p *Processor) extract(f *Form) {
	log := p.log.With("form", f.ID)
	f.setState(StateExtracting)

	grids, err := p.extractPages(f)
	if err != nil {
		log.Error("extraction failed", "path", f.Path, "error", err)
		f.Log().Error("extraction failed", "file", filepath.Base(f.Path), "error", err)
		if f.fail(err) {
			p.finish(f)
		}
		return
	}

	pages := make([]*Page, len(grids))
	for i, g := range grids {
		pages[i] = &Page{Index: i, ID: detection.NoID, grid: g}
	}
	log.Info("pages extracted", "pages", len(pages))

	// The page total must be set before any page can finish decoding.
	if f.setPages(pages) {
		p.finish(f)
		return
	}
	p.publish(f)

	for _, pg := range pages {
		if err := p.decodeQ.Push(pageJob{form: f, page: pg}); err != nil {
			log.Warn("page not queued", "page", pg.Index+1, "error", err)
			return
		}
	}
}

func (p *Processor) extractPages(f *Form) (grids []*imaging.Grid, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extractor panicked: %v", r)
		}
	}()
	return p.opts.Extractor.Extract(p.ctx, f.Path)
}

func (p *Processor) decode(job pageJob) {
	f, pg := job.form, job.page
	log := f.Log().With("page", pg.Index+1)

	res, err := p.decodePage(pg, log)
	var errText string
	if err != nil {
		errText = err.Error()
		log.Warn("page not read", "error", err)
		p.log.Debug("page not read", "form", f.ID, "page", pg.Index+1, "error", err)
	}

	if f.pageDone(pg, res, errText) {
		p.finish(f)
		return
	}
	p.publish(f)
}

// decodePage reads one page. A panic in the decoder fails only this page.
func (p *Processor) decodePage(pg *Page, log *slog.Logger) (res detection.PageResult, err error) {
	res.ID = detection.NoID
	defer func() {
		if r := recover(); r != nil {
			res = detection.PageResult{ID: detection.NoID}
			err = fmt.Errorf("decoder panicked: %v", r)
		}
	}()
	if pg.grid == nil {
		return res, fmt.Errorf("page has no image")
	}

	res, err = p.opts.Decoder.DecodeWith(pg.grid, log)
	if p.opts.DebugDir != "" {
		p.saveDebug(pg, log)
	}
	return res, err
}

func (p *Processor) saveDebug(pg *Page, log *slog.Logger) {
	name := fmt.Sprintf("page%03d_%d.png", pg.Index+1, time.Now().UnixNano())
	if err := imaging.SaveAnnotated(pg.grid, filepath.Join(p.opts.DebugDir, name)); err != nil {
		log.Warn("debug image not written", "error", err)
	}
}

func (p *Processor) publish(f *Form) {
	_, _, pct := f.Progress()
	p.status.Publish(Status{FormID: f.ID, Percent: pct})
}

// finish runs once per form, after its last page.
func (p *Processor) finish(f *Form) {
	log := p.log.With("form", f.ID)
	if p.opts.OnComplete != nil {
		p.opts.OnComplete(f)
	}

	if p.opts.ServerMode {
		// 99 until the results are stored and the form is gone.
		p.status.Publish(Status{FormID: f.ID, Percent: 99})
		if err := p.persist(f); err != nil {
			log.Error("results not saved", "error", err)
		}

		p.mu.Lock()
		delete(p.forms, f.ID)
		p.mu.Unlock()

		// The file goes last so an interrupted run can find it again.
		if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("could not delete form file", "path", f.Path, "error", err)
		}
	}

	p.status.Publish(Status{FormID: f.ID, Percent: 100})
	f.markFinished()
	_, total, _ := f.Progress()
	log.Info("form complete", "pages", total)
}

func (p *Processor) persist(f *Form) error {
	summary := Summary(f)
	csv, err := CSV(f)
	if err != nil {
		return fmt.Errorf("render csv: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(p.ctx), p.opts.PersistTimeout)
	defer cancel()

	_, total, _ := f.Progress()
	return p.opts.Store.Save(ctx, store.Result{
		FormID:  f.ID,
		KeyID:   f.Key,
		Pages:   total,
		Summary: summary,
		CSV:     csv,
		Created: time.Now(),
	})
}
