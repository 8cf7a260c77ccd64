package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/mcp"

	"galleries/internal/domain"
	"galleries/internal/service"
)

func (s *Server) registerSessionTools() {
	s.mcp.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List stored design sessions, most recently updated first"),
	), s.handleListSessions)

	s.mcp.AddTool(mcp.NewTool("open_session",
		mcp.WithDescription("Open a design session so the other tools act on it. Returns its design space."),
		mcp.WithString("sessionId",
			mcp.Description("ID of the session to open"),
			mcp.Required(),
		),
	), s.handleOpenSession)

	s.mcp.AddTool(mcp.NewTool("get_design_space",
		mcp.WithDescription("Get the open session's design space: every axis with its status and value"),
	), s.handleGetDesignSpace)
}

// designSpaceSummary is the agent-facing view of the open session.
type designSpaceSummary struct {
	SessionID   string        `json:"sessionId"`
	Concept     string        `json:"concept"`
	Domain      string        `json:"domain"`
	Axes        []domain.Axis `json:"axes"`
	Exploring   string        `json:"exploring,omitempty"`
	Generations int           `json:"generations"`
	Loading     bool          `json:"loading"`
}

func (s *Server) currentSummary() (*designSpaceSummary, error) {
	sess, st, err := s.sessions.Current()
	if err != nil {
		return nil, err
	}
	sum := &designSpaceSummary{
		SessionID:   sess.ID,
		Concept:     sess.Concept,
		Domain:      sess.Domain,
		Axes:        st.DesignSpace.Axes,
		Generations: len(st.Generations),
		Loading:     st.Loading,
	}
	if sum.Axes == nil {
		sum.Axes = []domain.Axis{}
	}
	if names := st.DesignSpace.Exploring(); len(names) > 0 {
		sum.Exploring = names[0]
	}
	return sum, nil
}

// toolError reports err to the agent as a tool error. A missing session
// becomes a hint on how to open one.
func toolError(err error) (*mcp.CallToolResult, error) {
	if errors.Is(err, service.ErrNoSession) {
		return errorResult("No session is open. Call list_sessions and open_session first."), nil
	}
	return errorResult("%v", err), nil
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleListSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions, err := s.sessions.ListSessions()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	type sessionSummary struct {
		ID        string `json:"id"`
		Concept   string `json:"concept"`
		Domain    string `json:"domain"`
		Axes      int    `json:"axes"`
		UpdatedAt string `json:"updatedAt"`
	}
	out := make([]sessionSummary, len(sessions))
	for i, sess := range sessions {
		out[i] = sessionSummary{
			ID:        sess.ID,
			Concept:   sess.Concept,
			Domain:    sess.Domain,
			Axes:      len(sess.DesignSpace.Axes),
			UpdatedAt: sess.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}
	return jsonResult(out)
}

func (s *Server) handleOpenSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(req, "sessionId")
	if err != nil {
		return nil, err
	}
	if _, err := s.sessions.Open(ctx, id); err != nil {
		log.Printf("[MCP] open session %s: %v", id, err)
		return errorResult("Could not open session %s: %v", id, err), nil
	}
	sum, err := s.currentSummary()
	if err != nil {
		return toolError(err)
	}
	return jsonResult(sum)
}

func (s *Server) handleGetDesignSpace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sum, err := s.currentSummary()
	if err != nil {
		return toolError(err)
	}
	return jsonResult(sum)
}
