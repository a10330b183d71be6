package server

// Tool describes one MCP tool and its JSON Schema input.
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func formIDProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": "Form ID returned by form_submit",
	}
}

func timeoutProperty(def int) map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": "Seconds to wait before giving up",
		"default":     def,
	}
}

// GetToolDefinitions returns the tools the server offers.
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "form_submit",
			Description: "Queue a scanned bubble-sheet document (PDF or image) for grading. The page whose ID equals key is the answer key. Returns the form ID.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the document. The file is copied; the original is left alone.",
					},
					"key": map[string]interface{}{
						"type":        "integer",
						"description": "ID written on the answer key page",
					},
					"id": map[string]interface{}{
						"type":        "integer",
						"description": "Form ID to use. A random one is chosen when omitted.",
					},
				},
				"required": []string{"path", "key"},
			},
		},
		{
			Name:        "form_done",
			Description: "Report whether a form has finished processing. Unknown forms count as finished.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"form_id": formIDProperty(),
				},
				"required": []string{"form_id"},
			},
		},
		{
			Name:        "form_wait",
			Description: "Block until a form reaches 100%.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"form_id":         formIDProperty(),
					"timeout_seconds": timeoutProperty(300),
				},
				"required": []string{"form_id"},
			},
		},
		{
			Name:        "form_status_wait",
			Description: "Block until any form's progress changes and return the changed forms with their percentages.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"timeout_seconds": timeoutProperty(30),
				},
			},
		},
		{
			Name:        "form_result",
			Description: "Get a finished form's results: a Markdown summary with scores, or CSV.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"form_id": formIDProperty(),
					"format": map[string]interface{}{
						"type":    "string",
						"enum":    []string{"text", "csv"},
						"default": "text",
					},
				},
				"required": []string{"form_id"},
			},
		},
		{
			Name:        "page_decode",
			Description: "Read every page of a document right away, without queueing or grading. Returns each page's ID, answers and rotation.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the document",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "page_preview",
			Description: "Decode one page and return it as a PNG with the anchor boxes and bubbles the decoder found marked, plus the decoded page.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the document",
					},
					"page": map[string]interface{}{
						"type":        "integer",
						"description": "1-based page number",
						"default":     1,
					},
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Scale factor for the returned image",
						"default":     0.5,
					},
					"region": map[string]interface{}{
						"type":        "object",
						"description": "Part of the page to return, in page pixels",
						"properties": map[string]interface{}{
							"x1": map[string]interface{}{"type": "integer"},
							"y1": map[string]interface{}{"type": "integer"},
							"x2": map[string]interface{}{"type": "integer"},
							"y2": map[string]interface{}{"type": "integer"},
						},
						"required": []string{"x1", "y1", "x2", "y2"},
					},
				},
				"required": []string{"path"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
