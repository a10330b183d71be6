package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/form-scanner/internal/detection"
	"github.com/ironsheep/form-scanner/internal/imaging"
	"github.com/ironsheep/form-scanner/internal/inbox"
	"github.com/ironsheep/form-scanner/internal/pipeline"
	"github.com/ironsheep/form-scanner/internal/store"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "form_submit", "form_wait").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<result>"}]
//	}
//
// Tool execution errors, panics included, return a JSON-RPC error response
// with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) (resp *MCPResponse) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("tool panicked", "panic", r)
			resp = s.errorResponse(req.ID, -32000, "Tool execution failed", fmt.Sprint(r))
		}
	}()

	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}
	if len(params.Arguments) == 0 {
		params.Arguments = json.RawMessage("{}")
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.Debug("tool failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	var content []map[string]interface{}
	switch r := result.(type) {
	case contentResult:
		content = r.content()
	case string:
		content = []map[string]interface{}{{"type": "text", "text": r}}
	default:
		content = []map[string]interface{}{{"type": "text", "text": mustMarshalJSON(r)}}
	}
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": content,
		},
	}
}

// contentResult is a tool result that builds its own MCP content blocks.
type contentResult interface {
	content() []map[string]interface{}
}

// executeTool dispatches a tool call to its handler. Handlers return a
// string, sent as is, a contentResult, or a value sent as indented JSON.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "form_submit":
		return s.handleFormSubmit(args)
	case "form_done":
		return s.handleFormDone(args)
	case "form_wait":
		return s.handleFormWait(ctx, args)
	case "form_status_wait":
		return s.handleFormStatusWait(ctx, args)
	case "form_result":
		return s.handleFormResult(ctx, args)
	case "page_decode":
		return s.handlePageDecode(ctx, args)
	case "page_preview":
		return s.handlePagePreview(ctx, args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	resp := &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
		},
	}
	if data != "" {
		resp.Error.Data = data
	}
	return resp
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func withTimeout(ctx context.Context, seconds, def int) (context.Context, context.CancelFunc) {
	if seconds <= 0 {
		seconds = def
	}
	return context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
}

// === Form Handlers ===

type formSubmitArgs struct {
	Path string `json:"path"`
	Key  *int64 `json:"key"`
	ID   *int64 `json:"id"`
}

type formSubmitResult struct {
	FormID int64 `json:"form_id"`
	Key    int64 `json:"key"`
}

func (s *Server) handleFormSubmit(args json.RawMessage) (interface{}, error) {
	var a formSubmitArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if a.Key == nil {
		return nil, fmt.Errorf("key is required")
	}
	if !inbox.Supported(a.Path) {
		return nil, fmt.Errorf("unsupported file type: %s", a.Path)
	}

	id := int64(uuid.New().ID())
	if a.ID != nil {
		if *a.ID < 0 {
			return nil, fmt.Errorf("id must be non-negative")
		}
		id = *a.ID
	}

	// Finished forms have their file deleted, so the client's copy is
	// never handed to the processor.
	path, err := inbox.Copy(s.inboxDir, id, *a.Key, a.Path, s.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}
	if err := s.proc.Add(id, *a.Key, path); err != nil {
		os.Remove(path)
		return nil, err
	}
	return formSubmitResult{FormID: id, Key: *a.Key}, nil
}

type formIDArgs struct {
	FormID  *int64 `json:"form_id"`
	Timeout int    `json:"timeout_seconds"`
	Format  string `json:"format"`
}

func parseFormArgs(args json.RawMessage) (formIDArgs, error) {
	var a formIDArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return a, err
	}
	if a.FormID == nil {
		return a, fmt.Errorf("form_id is required")
	}
	return a, nil
}

func (s *Server) handleFormDone(args json.RawMessage) (interface{}, error) {
	a, err := parseFormArgs(args)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"form_id": *a.FormID, "done": s.proc.Done(*a.FormID)}, nil
}

func (s *Server) handleFormWait(ctx context.Context, args json.RawMessage) (interface{}, error) {
	a, err := parseFormArgs(args)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, a.Timeout, 300)
	defer cancel()

	if err := s.proc.WaitFor(ctx, *a.FormID); err != nil {
		return nil, fmt.Errorf("form %d: %w", *a.FormID, err)
	}
	return pipeline.Status{FormID: *a.FormID, Percent: 100}, nil
}

type statusWaitResult struct {
	Updates  []pipeline.Status `json:"updates"`
	TimedOut bool              `json:"timed_out,omitempty"`
}

func (s *Server) handleFormStatusWait(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a formIDArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, a.Timeout, 30)
	defer cancel()

	updates, err := s.proc.StatusWait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return statusWaitResult{Updates: []pipeline.Status{}, TimedOut: true}, nil
	}
	if err != nil {
		return nil, err
	}
	return statusWaitResult{Updates: updates}, nil
}

func (s *Server) handleFormResult(ctx context.Context, args json.RawMessage) (interface{}, error) {
	a, err := parseFormArgs(args)
	if err != nil {
		return nil, err
	}
	if a.Format != "" && a.Format != "text" && a.Format != "csv" {
		return nil, fmt.Errorf("format must be text or csv")
	}
	id := *a.FormID

	// Forms kept in memory are reported from there.
	if f, ok := s.proc.Form(id); ok {
		if !s.proc.Done(id) {
			_, _, pct := f.Progress()
			return nil, fmt.Errorf("form %d is still being processed (%d%%)", id, pct)
		}
		if a.Format == "csv" {
			return pipeline.CSV(f)
		}
		return pipeline.Summary(f), nil
	}

	if s.results == nil {
		return nil, fmt.Errorf("form %d: %w", id, store.ErrNotFound)
	}
	res, err := s.results.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("form %d: %w", id, err)
	}
	if a.Format == "csv" {
		return res.CSV, nil
	}
	return res.Summary, nil
}

// === Page Handlers ===

type pageDecodeArgs struct {
	Path string `json:"path"`
}

type decodedPage struct {
	Page     int      `json:"page"`
	ID       *int64   `json:"id"`
	Answers  []string `json:"answers,omitempty"`
	Rotation float64  `json:"rotation"`
	Error    string   `json:"error,omitempty"`
}

func (s *Server) handlePageDecode(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a pageDecodeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, fmt.Errorf("path is required")
	}

	grids, err := s.pages.Extract(ctx, a.Path)
	if err != nil {
		return nil, err
	}

	out := make([]decodedPage, len(grids))
	for i, g := range grids {
		out[i] = s.decodePage(a.Path, i, g)
	}
	return out, nil
}

func (s *Server) decodePage(path string, index int, g *imaging.Grid) decodedPage {
	log := s.log.With("path", path, "page", index+1)
	res, err := s.decoder.DecodeWith(g, log)
	p := decodedPage{Page: index + 1, Rotation: res.Rotation}
	if err != nil {
		p.Error = err.Error()
	}
	if res.ID != detection.NoID {
		id := res.ID
		p.ID = &id
	}
	for _, ans := range res.Answers {
		p.Answers = append(p.Answers, ans.String())
	}
	return p
}

type pagePreviewArgs struct {
	Path   string  `json:"path"`
	Page   int     `json:"page"`
	Scale  float64 `json:"scale"`
	Region *struct {
		X1 int `json:"x1"`
		Y1 int `json:"y1"`
		X2 int `json:"x2"`
		Y2 int `json:"y2"`
	} `json:"region"`
}

type previewResult struct {
	image *imaging.PreviewImage
	page  decodedPage
}

func (r previewResult) content() []map[string]interface{} {
	return []map[string]interface{}{
		{"type": "image", "data": r.image.ImageBase64, "mimeType": r.image.MimeType},
		{"type": "text", "text": mustMarshalJSON(r.page)},
	}
}

// handlePagePreview decodes one page and returns it annotated with the
// anchor boxes and bubbles the decoder saw.
func (s *Server) handlePagePreview(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a pagePreviewArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if a.Page == 0 {
		a.Page = 1
	}
	if a.Scale == 0 {
		a.Scale = 0.5
	}

	grids, err := s.pages.Extract(ctx, a.Path)
	if err != nil {
		return nil, err
	}
	if a.Page < 1 || a.Page > len(grids) {
		return nil, fmt.Errorf("page %d out of range, document has %d", a.Page, len(grids))
	}
	g := grids[a.Page-1]
	page := s.decodePage(a.Path, a.Page-1, g)

	var region image.Rectangle
	if a.Region != nil {
		region = image.Rect(a.Region.X1, a.Region.Y1, a.Region.X2, a.Region.Y2)
		if region.Empty() {
			return nil, fmt.Errorf("invalid region: x1 must be < x2, y1 must be < y2")
		}
	}
	img, err := imaging.Preview(g, region, a.Scale)
	if err != nil {
		return nil, err
	}
	return previewResult{image: img, page: page}, nil
}
