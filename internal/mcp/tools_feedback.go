package mcpserver

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"galleries/internal/domain"
)

func (s *Server) registerFeedbackTools() {
	s.mcp.AddTool(mcp.NewTool("post_feedback",
		mcp.WithDescription("Attach free-text feedback to a design in the grid"),
		mcp.WithString("item",
			mcp.Description("Item id of the design (itemId in list_generations)"),
			mcp.Required(),
		),
		mcp.WithString("feedback",
			mcp.Description("Feedback text"),
			mcp.Required(),
		),
	), s.handlePostFeedback)

	s.mcp.AddTool(mcp.NewTool("get_feedback",
		mcp.WithDescription("Get feedback for one item, or for every item when no item is given"),
		mcp.WithString("item",
			mcp.Description("Item id of the design (optional)"),
		),
	), s.handleGetFeedback)

	s.mcp.AddTool(mcp.NewTool("list_history",
		mcp.WithDescription("List the recorded regenerations of a session, oldest first"),
		mcp.WithString("sessionId",
			mcp.Description("Session to list (defaults to the open session)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Return only the most recent N entries"),
		),
	), s.handleListHistory)
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handlePostFeedback(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	item, err := requiredString(req, "item")
	if err != nil {
		return nil, err
	}
	sess, _, err := s.sessions.Current()
	if err != nil {
		return toolError(err)
	}
	entry := domain.FeedbackEntry{Item: item, Feedback: req.GetString("feedback", "")}
	if err := s.feedback.Submit(ctx, sess.ID, entry); err != nil {
		return toolError(err)
	}
	return textResult(fmt.Sprintf("Feedback saved for %s", item)), nil
}

func (s *Server) handleGetFeedback(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if item := req.GetString("item", ""); item != "" {
		fb, err := s.feedback.Get(ctx, item)
		if err != nil {
			return toolError(err)
		}
		return jsonResult(map[string][]string{item: fb})
	}
	all, err := s.feedback.All(ctx)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(all)
}

type historySummary struct {
	ID          string        `json:"id"`
	CreatedAt   string        `json:"createdAt"`
	Axes        []domain.Axis `json:"axes"`
	Generations int           `json:"generations"`
}

func (s *Server) handleListHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := req.GetString("sessionId", "")
	if sessionID == "" {
		sess, _, err := s.sessions.Current()
		if err != nil {
			return toolError(err)
		}
		sessionID = sess.ID
	}
	entries, err := s.history.List(sessionID)
	if err != nil {
		return toolError(err)
	}
	if limit := req.GetInt("limit", 0); limit > 0 && limit < len(entries) {
		entries = entries[len(entries)-limit:]
	}
	return jsonResult(summarizeHistory(entries))
}

func summarizeHistory(entries []domain.HistoryEntry) []historySummary {
	out := make([]historySummary, len(entries))
	for i, e := range entries {
		out[i] = historySummary{
			ID:          e.ID,
			CreatedAt:   e.CreatedAt.UTC().Format(time.RFC3339),
			Axes:        e.DesignSpace.Axes,
			Generations: len(e.Generations),
		}
	}
	return out
}
