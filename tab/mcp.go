package tab

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/pagesync/kit"
)

// RegisterMCP registers the pagesync tools on an MCP server.
func (m *Manager) RegisterMCP(srv *mcp.Server) {
	m.registerExtractTool(srv)
	m.registerTabsTool(srv)
	m.registerScrollTool(srv)
}

// toolMiddleware is applied to every tool endpoint.
func (m *Manager) toolMiddleware(name string) kit.Middleware {
	logged := func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			resp, err := next(ctx, req)
			if err != nil {
				m.logger.Warn("tab: mcp tool failed", "tool", name, "error", err)
			} else {
				m.logger.Debug("tab: mcp tool", "tool", name)
			}
			return resp, err
		}
	}
	return kit.Chain(logged)
}

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

// --- extract ---

type extractReq struct {
	TabID int `json:"tab_id"`
}

func (m *Manager) registerExtractTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "pagesync_extract",
		Description: "Run a full text extraction pass on a tab and return its blocks.",
		InputSchema: inputSchema(map[string]any{
			"tab_id": map[string]any{"type": "integer", "description": "Tab to extract; 0 means the active tab"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*extractReq)
		tabID := r.TabID
		if tabID == 0 {
			tabID = m.relay.ActiveTab()
		}
		c, ok := m.Get(tabID)
		if !ok {
			return nil, fmt.Errorf("no tab %d", tabID)
		}
		return c.Extract(ctx)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r extractReq
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				return nil, err
			}
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, m.toolMiddleware(tool.Name)(endpoint), decode)
}

// --- tabs ---

func (m *Manager) registerTabsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "pagesync_tabs",
		Description: "List open tabs and the currently active one.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		return map[string]any{
			"tabs":   m.Tabs(),
			"active": m.relay.ActiveTab(),
		}, nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, m.toolMiddleware(tool.Name)(endpoint), decode)
}

// --- scroll ---

type scrollReq struct {
	TabID int    `json:"tab_id"`
	ID    string `json:"id"`
}

func (m *Manager) registerScrollTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "pagesync_scroll",
		Description: "Scroll a block into view on its tab and flash it.",
		InputSchema: inputSchema(map[string]any{
			"tab_id": map[string]any{"type": "integer", "description": "Tab owning the block"},
			"id":     map[string]any{"type": "string", "description": "Block identifier"},
		}, []string{"tab_id", "id"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*scrollReq)
		c, ok := m.Get(r.TabID)
		if !ok {
			return nil, fmt.Errorf("no tab %d", r.TabID)
		}
		if err := c.hl.ScrollAndFlash(r.ID); err != nil {
			return nil, err
		}
		return map[string]string{"status": "ok"}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r scrollReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, m.toolMiddleware(tool.Name)(endpoint), decode)
}
