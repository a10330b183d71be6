// Package server exposes the form scanner as an MCP (Model Context Protocol)
// tool server.
//
// The server speaks JSON-RPC 2.0 over stdio, one request per line:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Tools
//
// Grading:
//   - form_submit: Copy a document into the inbox and queue it
//   - form_done: Whether a form has finished
//   - form_wait: Block until a form finishes
//   - form_status_wait: Block until any form's progress changes
//   - form_result: Markdown summary or CSV of a finished form
//
// Inspection:
//   - page_decode: Read the ID and answers of every page of a document
//     directly, outside the processing queues
//   - page_preview: One decoded page as an annotated PNG
//
// Tool calls run concurrently, so a client can wait on one form while
// submitting others. Results are returned as MCP text content; structured
// results are indented JSON.
package server
