package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("explore_axis",
		mcp.WithPromptDescription("Guide through exploring one axis of the open design space and narrowing it down"),
		mcp.WithArgument("axis",
			mcp.ArgumentDescription("Name of the axis to explore"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("goal",
			mcp.ArgumentDescription("What the designs should achieve (optional)"),
		),
	), s.handleExploreAxisPrompt)
}

func (s *Server) handleExploreAxisPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	axis := req.Params.Arguments["axis"]
	if axis == "" {
		return nil, fmt.Errorf("axis is required")
	}
	goal := req.Params.Arguments["goal"]
	if goal == "" {
		goal = "a design the user is happy with"
	}

	current := "No session is open yet; call list_sessions and open_session first."
	if sum, err := s.currentSummary(); err == nil {
		current = fmt.Sprintf("Session %s explores %q in the %s domain. Current axes:\n%s",
			sum.SessionID, sum.Concept, sum.Domain, describeAxesOf(sum.Axes))
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Explore the %s axis", axis),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Explore the %q axis of the design space, aiming for %s.

%s
Steps:
1. Call get_design_space. If %q is missing, add it with add_axis.
2. Call promote_axis with name %q. Only one axis explores at a time; the previous one becomes unconstrained.
3. Call regenerate, then list_generations to see how the designs vary along %q.
4. Use post_feedback on the designs (by itemId) to note what works and what does not.
5. Pick the best value and call set_axis_status with status "constrained" and that value.
6. Move on to the next axis, or summarize the chosen values.`,
						axis, goal, current, axis, axis, axis),
				},
			},
		},
	}, nil
}
