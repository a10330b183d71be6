package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/form-scanner/internal/detection"
	"github.com/ironsheep/form-scanner/internal/imaging"
	"github.com/ironsheep/form-scanner/internal/pipeline"
	"github.com/ironsheep/form-scanner/internal/store"
)

// blankExtractor yields one blank page per document.
type blankExtractor struct{}

func (blankExtractor) Extract(ctx context.Context, path string) ([]*imaging.Grid, error) {
	return []*imaging.Grid{imaging.NewBlankGrid(40, 30)}, nil
}

type panickingDecoder struct{}

func (panickingDecoder) DecodeWith(g *imaging.Grid, log *slog.Logger) (detection.PageResult, error) {
	panic("bad page")
}

type testEnv struct {
	srv  *Server
	proc *pipeline.Processor
	dir  string
}

func newTestEnv(t *testing.T, decoder pipeline.PageDecoder) testEnv {
	t.Helper()
	dir := t.TempDir()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	results, err := store.NewFileStore(filepath.Join(dir, "results"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	proc, err := pipeline.New(pipeline.Options{
		ServerMode: true,
		Store:      results,
		Extractor:  blankExtractor{},
		Logger:     log,
	})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	t.Cleanup(proc.Exit)

	srv, err := New(Options{
		Processor: proc,
		Results:   results,
		Extractor: blankExtractor{},
		Decoder:   decoder,
		InboxDir:  filepath.Join(dir, "inbox"),
		Version:   "test",
		Logger:    log,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return testEnv{srv: srv, proc: proc, dir: dir}
}

func (e testEnv) call(t *testing.T, name string, args map[string]interface{}) *MCPResponse {
	t.Helper()
	params, err := json.Marshal(map[string]interface{}{"name": name, "arguments": args})
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	resp := e.srv.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  params,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	return resp
}

// text returns the text content of a successful tool call.
func text(t *testing.T, resp *MCPResponse) string {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	result := resp.Result.(map[string]interface{})
	content := result["content"].([]map[string]interface{})
	return content[0]["text"].(string)
}

func writeDocument(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("scan"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestNew_Validation(t *testing.T) {
	env := newTestEnv(t, nil)
	tests := []struct {
		name string
		opts Options
	}{
		{"no processor", Options{Extractor: blankExtractor{}, InboxDir: "x"}},
		{"no extractor", Options{Processor: env.proc, InboxDir: "x"}},
		{"no inbox", Options{Processor: env.proc, Extractor: blankExtractor{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts); err == nil {
				t.Error("New: got nil error")
			}
		})
	}
}

func TestHandleRequest_Initialize(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.srv.handleRequest(context.Background(), &MCPRequest{JSONRPC: "2.0", ID: 1, Method: "initialize"})

	if resp == nil || resp.Error != nil {
		t.Fatalf("initialize: got %+v", resp)
	}
	result := resp.Result.(map[string]interface{})
	if result["protocolVersion"] != "2024-11-05" {
		t.Errorf("protocolVersion: got %v", result["protocolVersion"])
	}
	info := result["serverInfo"].(map[string]interface{})
	if info["name"] != "form-scanner" || info["version"] != "test" {
		t.Errorf("serverInfo: got %v", info)
	}
}

func TestHandleRequest_Methods(t *testing.T) {
	env := newTestEnv(t, nil)
	tests := []struct {
		method   string
		wantNil  bool
		wantCode int
	}{
		{"ping", false, 0},
		{"notifications/initialized", true, 0},
		{"tools/list", false, 0},
		{"resources/list", false, -32601},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			resp := env.srv.handleRequest(context.Background(), &MCPRequest{JSONRPC: "2.0", ID: "x", Method: tt.method})
			if tt.wantNil {
				if resp != nil {
					t.Errorf("response: got %+v, want nil", resp)
				}
				return
			}
			if resp == nil {
				t.Fatal("response: got nil")
			}
			code := 0
			if resp.Error != nil {
				code = resp.Error.Code
			}
			if code != tt.wantCode {
				t.Errorf("error code: got %d, want %d", code, tt.wantCode)
			}
		})
	}
}

func TestGetToolDefinitions(t *testing.T) {
	want := []string{"form_submit", "form_done", "form_wait", "form_status_wait", "form_result", "page_decode", "page_preview"}
	tools := GetToolDefinitions()
	if len(tools) != len(want) {
		t.Fatalf("tools: got %d, want %d", len(tools), len(want))
	}
	for i, tool := range tools {
		if tool.Name != want[i] {
			t.Errorf("tool %d: got %s, want %s", i, tool.Name, want[i])
		}
		if tool.Description == "" {
			t.Errorf("%s: empty description", tool.Name)
		}
		if tool.InputSchema["type"] != "object" {
			t.Errorf("%s: schema type %v", tool.Name, tool.InputSchema["type"])
		}
	}
}

func TestTools_FormLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	src := writeDocument(t, "scan.png")

	out := text(t, env.call(t, "form_submit", map[string]interface{}{"path": src, "key": 5, "id": 42}))
	if !strings.Contains(out, `"form_id": 42`) {
		t.Errorf("form_submit: got %s", out)
	}

	out = text(t, env.call(t, "form_wait", map[string]interface{}{"form_id": 42, "timeout_seconds": 10}))
	if !strings.Contains(out, `"percent": 100`) {
		t.Errorf("form_wait: got %s", out)
	}

	out = text(t, env.call(t, "form_done", map[string]interface{}{"form_id": 42}))
	if !strings.Contains(out, `"done": true`) {
		t.Errorf("form_done: got %s", out)
	}

	out = text(t, env.call(t, "form_result", map[string]interface{}{"form_id": 42}))
	if !strings.Contains(out, "Key not found") {
		t.Errorf("form_result text: got %s", out)
	}
	out = text(t, env.call(t, "form_result", map[string]interface{}{"form_id": 42, "format": "csv"}))
	if out != "ID\nunknown\n" {
		t.Errorf("form_result csv: got %q", out)
	}

	if _, err := os.Stat(src); err != nil {
		t.Errorf("submitted document removed: %v", err)
	}
	left, _ := os.ReadDir(filepath.Join(env.dir, "inbox"))
	if len(left) != 0 {
		t.Errorf("inbox: got %d files, want 0", len(left))
	}
}

func TestTools_Errors(t *testing.T) {
	env := newTestEnv(t, nil)
	src := writeDocument(t, "scan.png")

	tests := []struct {
		name string
		tool string
		args map[string]interface{}
	}{
		{"submit without key", "form_submit", map[string]interface{}{"path": src}},
		{"submit without path", "form_submit", map[string]interface{}{"key": 1}},
		{"submit unsupported", "form_submit", map[string]interface{}{"path": writeDocument(t, "notes.docx"), "key": 1}},
		{"submit missing file", "form_submit", map[string]interface{}{"path": filepath.Join(env.dir, "gone.png"), "key": 1}},
		{"submit negative id", "form_submit", map[string]interface{}{"path": src, "key": 1, "id": -4}},
		{"done without id", "form_done", map[string]interface{}{}},
		{"unknown result", "form_result", map[string]interface{}{"form_id": 7}},
		{"bad format", "form_result", map[string]interface{}{"form_id": 7, "format": "xml"}},
		{"unknown tool", "form_delete", map[string]interface{}{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.call(t, tt.tool, tt.args)
			if resp.Error == nil || resp.Error.Code != -32000 {
				t.Errorf("%s: got %+v, want a -32000 error", tt.tool, resp.Error)
			}
		})
	}
}

func TestTools_StatusWaitTimeout(t *testing.T) {
	env := newTestEnv(t, nil)
	out := text(t, env.call(t, "form_status_wait", map[string]interface{}{"timeout_seconds": 1}))
	if !strings.Contains(out, `"timed_out": true`) {
		t.Errorf("form_status_wait: got %s", out)
	}
}

func TestTools_PageDecode(t *testing.T) {
	env := newTestEnv(t, nil)
	out := text(t, env.call(t, "page_decode", map[string]interface{}{"path": writeDocument(t, "scan.png")}))

	var pages []decodedPage
	if err := json.Unmarshal([]byte(out), &pages); err != nil {
		t.Fatalf("unmarshal %s: %v", out, err)
	}
	if len(pages) != 1 {
		t.Fatalf("pages: got %d, want 1", len(pages))
	}
	if pages[0].Page != 1 || pages[0].ID != nil || pages[0].Error == "" {
		t.Errorf("blank page: got %+v, want page 1 with no ID and an error", pages[0])
	}
}

func TestTools_PageDecodePanic(t *testing.T) {
	env := newTestEnv(t, panickingDecoder{})
	resp := env.call(t, "page_decode", map[string]interface{}{"path": writeDocument(t, "scan.png")})
	if resp.Error == nil || resp.Error.Code != -32000 {
		t.Fatalf("page_decode: got %+v, want a -32000 error", resp.Error)
	}
	if resp.Error.Data != "bad page" {
		t.Errorf("error data: got %v, want %q", resp.Error.Data, "bad page")
	}
}

func TestServe(t *testing.T) {
	env := newTestEnv(t, nil)
	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		``,
		`not json`,
		`{"jsonrpc":"2.0","id":2,"method":"ping"}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"form_done","arguments":{"form_id":9}}}`,
	}, "\n")

	pr, pw := io.Pipe()
	errc := make(chan error, 1)
	go func() {
		errc <- env.srv.Serve(context.Background(), strings.NewReader(in), pw)
		pw.Close()
	}()

	byID := map[string]MCPResponse{}
	var parseErrors int
	sc := bufio.NewScanner(pr)
	for sc.Scan() {
		var resp MCPResponse
		if err := json.Unmarshal(sc.Bytes(), &resp); err != nil {
			t.Fatalf("bad response line %q: %v", sc.Text(), err)
		}
		if resp.ID == nil {
			parseErrors++
			continue
		}
		byID[strings.TrimSpace(mustMarshalJSON(resp.ID))] = resp
	}
	if err := <-errc; err != nil {
		t.Fatalf("Serve: %v", err)
	}

	if parseErrors != 1 {
		t.Errorf("parse errors: got %d, want 1", parseErrors)
	}
	for _, id := range []string{"1", "2", "3"} {
		resp, ok := byID[id]
		if !ok {
			t.Errorf("no response for id %s", id)
			continue
		}
		if resp.Error != nil {
			t.Errorf("id %s: unexpected error %+v", id, resp.Error)
		}
	}
	if resp := byID["3"]; !strings.Contains(mustMarshalJSON(resp.Result), `\"done\": true`) {
		t.Errorf("form_done over stdio: got %s", mustMarshalJSON(resp.Result))
	}
}

func TestTools_PagePreview(t *testing.T) {
	env := newTestEnv(t, nil)
	doc := writeDocument(t, "scan.png")

	resp := env.call(t, "page_preview", map[string]interface{}{"path": doc, "scale": 1})
	if resp.Error != nil {
		t.Fatalf("page_preview: %+v", resp.Error)
	}
	content := resp.Result.(map[string]interface{})["content"].([]map[string]interface{})
	if len(content) != 2 {
		t.Fatalf("content blocks: got %d, want 2", len(content))
	}
	if content[0]["type"] != "image" || content[0]["mimeType"] != "image/png" || content[0]["data"] == "" {
		t.Errorf("image block: got type %v mime %v", content[0]["type"], content[0]["mimeType"])
	}
	if !strings.Contains(content[1]["text"].(string), `"page": 1`) {
		t.Errorf("page block: got %v", content[1]["text"])
	}

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"page out of range", map[string]interface{}{"path": doc, "page": 2}},
		{"empty region", map[string]interface{}{"path": doc, "region": map[string]int{"x1": 5, "y1": 5, "x2": 5, "y2": 9}}},
		{"region outside page", map[string]interface{}{"path": doc, "region": map[string]int{"x1": 0, "y1": 0, "x2": 400, "y2": 9}}},
		{"no path", map[string]interface{}{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if resp := env.call(t, "page_preview", tt.args); resp.Error == nil {
				t.Error("page_preview: got no error")
			}
		})
	}
}
