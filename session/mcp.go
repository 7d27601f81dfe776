package session

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/domquery/kit"
)

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

var queryProperties = map[string]any{
	"session":      str("Session ID"),
	"role":         str("ARIA role, e.g. button, heading, textbox"),
	"name":         str("Exact accessible name"),
	"name_pattern": str("Regular expression matched against the accessible name"),
	"text":         str("Exact text content (whitespace collapsed)"),
	"text_pattern": str("Regular expression matched against the text content"),
	"selector":     str("CSS selector narrowing the candidates"),
	"props":        map[string]any{"type": "object", "description": "Accessibility properties, e.g. {\"level\": 2, \"checked\": true}"},
	"root":         str("Handle to search under; a frame handle searches its document"),
	"timeout_ms":   map[string]any{"type": "integer", "description": "Retry budget in ms; 0 = one attempt, negative = no timeout"},
	"visible":      map[string]any{"type": "boolean", "description": "Only match visible nodes (default true)"},
}

// RegisterMCP registers the domquery_* tools on srv.
func (m *Manager) RegisterMCP(srv *mcp.Server) {
	eps := m.Endpoints()

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "domquery_open",
		Description: "Open a session on a URL (Chrome) or on raw HTML. Returns the session ID.",
		InputSchema: inputSchema(map[string]any{
			"url":  str("Page URL to load"),
			"html": str("HTML document to load when no URL is given"),
		}, nil),
	}, eps["open"], kit.JSONArgs[OpenRequest]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "domquery_close",
		Description: "Close a session and release everything it holds.",
		InputSchema: inputSchema(map[string]any{"session": str("Session ID")}, []string{"session"}),
	}, eps["close"], kit.JSONArgs[SessionRequest]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "domquery_list",
		Description: "List open sessions.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, eps["list"], kit.JSONArgs[struct{}]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "domquery_content",
		Description: "Navigate a session to a URL or replace its document with HTML.",
		InputSchema: inputSchema(map[string]any{
			"session": str("Session ID"),
			"url":     str("URL to navigate to"),
			"html":    str("HTML replacing the document"),
		}, []string{"session"}),
	}, eps["content"], kit.JSONArgs[ContentRequest]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "domquery_find",
		Description: "Find exactly one node by role, accessible name, text, selector and properties, retrying until the timeout.",
		InputSchema: inputSchema(queryProperties, []string{"session"}),
	}, eps["find"], kit.JSONArgs[QueryRequest]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "domquery_find_all",
		Description: "Find every node matching the query, retrying until at least one matches.",
		InputSchema: inputSchema(queryProperties, []string{"session"}),
	}, eps["find_all"], kit.JSONArgs[QueryRequest]())

	handleSchema := inputSchema(map[string]any{
		"session": str("Session ID"),
		"handle":  str("Handle returned by find or find_all"),
	}, []string{"session", "handle"})

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "domquery_snapshot",
		Description: "Accessibility snapshot (role, name, properties) of a handle.",
		InputSchema: handleSchema,
	}, eps["snapshot"], kit.JSONArgs[HandleRequest]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "domquery_facts",
		Description: "DOM facts (tag, labels, text, box) of a handle.",
		InputSchema: handleSchema,
	}, eps["facts"], kit.JSONArgs[HandleRequest]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "domquery_release",
		Description: "Release handles that are no longer needed.",
		InputSchema: inputSchema(map[string]any{
			"session": str("Session ID"),
			"handle":  str("Handle to release"),
			"handles": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Handles to release"},
		}, []string{"session"}),
	}, eps["release"], kit.JSONArgs[HandleRequest]())

	if m.store != nil {
		kit.RegisterMCPTool(srv, &mcp.Tool{
			Name:        "domquery_traces",
			Description: "Recent poll attempts from the journal, newest first.",
			InputSchema: inputSchema(map[string]any{
				"trace_id": str("Only attempts of this trace"),
				"limit":    map[string]any{"type": "integer", "description": "Max entries (default 100)"},
			}, nil),
		}, eps["traces"], kit.JSONArgs[TracesRequest]())
	}
}
