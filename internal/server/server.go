package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/ironsheep/form-scanner/internal/detection"
	"github.com/ironsheep/form-scanner/internal/pipeline"
	"github.com/ironsheep/form-scanner/internal/store"
)

// Server handles MCP protocol communication
type Server struct {
	proc     *pipeline.Processor
	results  store.Store
	pages    pipeline.Extractor
	decoder  pipeline.PageDecoder
	inboxDir string
	maxBytes int64
	version  string
	log      *slog.Logger

	// Responses from concurrent tool calls share one writer.
	wmu   sync.Mutex
	calls sync.WaitGroup
}

// Options wires a Server to the scanner.
type Options struct {
	Processor *pipeline.Processor
	// Results is consulted for forms the processor no longer holds.
	Results store.Store
	// Extractor and Decoder serve page_decode, which bypasses the queues.
	Extractor pipeline.Extractor
	Decoder   pipeline.PageDecoder
	// InboxDir receives a copy of every submitted document.
	InboxDir string
	// MaxBytes limits submitted documents; zero means no limit.
	MaxBytes int64
	Version  string
	Logger   *slog.Logger
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// New creates a new MCP server instance
func New(opts Options) (*Server, error) {
	if opts.Processor == nil {
		return nil, fmt.Errorf("processor is required")
	}
	if opts.Extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if opts.InboxDir == "" {
		return nil, fmt.Errorf("inbox directory is required")
	}
	if opts.Decoder == nil {
		opts.Decoder = detection.NewDecoder()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		proc:     opts.Processor,
		results:  opts.Results,
		pages:    opts.Extractor,
		decoder:  opts.Decoder,
		inboxDir: opts.InboxDir,
		maxBytes: opts.MaxBytes,
		version:  opts.Version,
		log:      log,
	}, nil
}

// Run starts the MCP server, reading from stdin and writing to stdout
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve answers requests read from r, one per line, until r is exhausted.
// Tool calls run concurrently so a blocking wait does not hold up other
// requests; Serve returns once every call has answered.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	encoder := json.NewEncoder(w)
	send := func(resp *MCPResponse) {
		if resp == nil {
			return
		}
		s.wmu.Lock()
		defer s.wmu.Unlock()
		if err := encoder.Encode(resp); err != nil {
			s.log.Error("failed to encode response", "error", err)
		}
	}

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.log.Warn("failed to parse request", "error", err)
			send(s.errorResponse(nil, -32700, "Parse error", err.Error()))
			continue
		}

		if req.Method == "tools/call" {
			s.calls.Add(1)
			go func() {
				defer s.calls.Done()
				send(s.handleRequest(ctx, &req))
			}()
			continue
		}
		send(s.handleRequest(ctx, &req))
	}

	s.calls.Wait()
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}
	return nil
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "form-scanner",
				"version": s.version,
			},
		},
	}
}
