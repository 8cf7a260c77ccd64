package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/mcp"

	"galleries/internal/designspace"
	"galleries/internal/domain"
	"galleries/internal/presenter"
	"galleries/internal/service"
)

func (s *Server) registerDesignSpaceTools() {
	s.mcp.AddTool(mcp.NewTool("set_axis_status",
		mcp.WithDescription("Set the status and value of an axis. "+
			"Making an axis exploring demotes any other exploring axis to unconstrained."),
		mcp.WithString("name",
			mcp.Description("Axis name"),
			mcp.Required(),
		),
		mcp.WithString("status",
			mcp.Description("New status"),
			mcp.Enum(string(domain.AxisExploring), string(domain.AxisConstrained), string(domain.AxisUnconstrained)),
			mcp.Required(),
		),
		mcp.WithString("value",
			mcp.Description("Value stored on the axis whatever the status (empty clears it)"),
		),
	), s.handleSetAxisStatus)

	s.mcp.AddTool(mcp.NewTool("promote_axis",
		mcp.WithDescription("Make an axis the one being explored. The current exploring axis becomes unconstrained."),
		mcp.WithString("name",
			mcp.Description("Axis name"),
			mcp.Required(),
		),
	), s.handlePromoteAxis)

	s.mcp.AddTool(mcp.NewTool("edit_axis_value",
		mcp.WithDescription("Set the value of an axis and commit it: the axis becomes constrained"),
		mcp.WithString("name",
			mcp.Description("Axis name"),
			mcp.Required(),
		),
		mcp.WithString("value",
			mcp.Description("New value"),
			mcp.Required(),
		),
	), s.handleEditAxisValue)

	s.mcp.AddTool(mcp.NewTool("add_axis",
		mcp.WithDescription("Add a new axis with an empty value. It becomes the exploring axis and "+
			"any previously exploring axis becomes unconstrained."),
		mcp.WithString("name",
			mcp.Description("Axis name, unique within the session"),
			mcp.Required(),
		),
	), s.handleAddAxis)

	s.mcp.AddTool(mcp.NewTool("remove_axis",
		mcp.WithDescription("🛑 DESTRUCTIVE: Remove an axis from the design space. Requires user approval."),
		mcp.WithString("name",
			mcp.Description("Axis name"),
			mcp.Required(),
		),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{
			DestructiveHint: boolPtr(true),
		}),
	), s.handleRemoveAxis)

	s.mcp.AddTool(mcp.NewTool("regenerate",
		mcp.WithDescription("Ask the backend for a new batch of designs from the current design space. "+
			"One axis must be exploring."),
	), s.handleRegenerate)

	s.mcp.AddTool(mcp.NewTool("list_generations",
		mcp.WithDescription("List the designs currently in the grid with their prompts and tags"),
	), s.handleListGenerations)
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleSetAxisStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := requiredString(req, "name")
	if err != nil {
		return nil, err
	}
	status := domain.AxisStatus(req.GetString("status", ""))
	if !status.Valid() {
		return errorResult("Unknown status %q; use exploring, constrained or unconstrained", status), nil
	}
	changed, err := s.sessions.SetAxisStatus(ctx, name, req.GetString("value", ""), status)
	return s.editResult(name, changed, err)
}

func (s *Server) handlePromoteAxis(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := requiredString(req, "name")
	if err != nil {
		return nil, err
	}
	changed, err := s.sessions.PromoteAxis(ctx, name)
	return s.editResult(name, changed, err)
}

func (s *Server) handleEditAxisValue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := requiredString(req, "name")
	if err != nil {
		return nil, err
	}
	changed, err := s.sessions.EditAxisValue(ctx, name, req.GetString("value", ""))
	return s.editResult(name, changed, err)
}

func (s *Server) handleAddAxis(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	err := s.sessions.AddAxis(ctx, name)
	return s.editResult(name, true, err)
}

func (s *Server) handleRemoveAxis(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := requiredString(req, "name")
	if err != nil {
		return nil, err
	}
	_, st, err := s.sessions.Current()
	if err != nil {
		return toolError(err)
	}
	if st.DesignSpace.Axis(name) == nil {
		return errorResult("Axis %q not found", name), nil
	}

	// Require approval (with metadata for frontend highlight)
	meta, _ := json.Marshal(map[string]string{"axis": name})
	approved, err := s.approval.Request(ctx, "remove_axis", fmt.Sprintf("Remove axis %q", name), string(meta))
	if err != nil || !approved {
		log.Printf("[MCP] remove_axis %s not approved: %v", name, err)
		return textResult("Action rejected by user"), nil
	}

	changed, err := s.sessions.RemoveAxis(ctx, name)
	return s.editResult(name, changed, err)
}

// editResult reports the outcome of a design-space edit with the new axes.
func (s *Server) editResult(name string, changed bool, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return toolError(err)
	}
	sum, err := s.currentSummary()
	if err != nil {
		return toolError(err)
	}
	if !changed {
		return textResult(fmt.Sprintf("No change to %q. Current axes:\n%s", name, describeAxesOf(sum.Axes))), nil
	}
	return jsonResult(sum)
}

func (s *Server) handleRegenerate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	view, err := s.sessions.Regenerate(ctx)
	var verr *designspace.ValidationError
	switch {
	case errors.As(err, &verr):
		return errorResult("%s", verr.Message), nil
	case errors.Is(err, designspace.ErrSuperseded):
		return errorResult("A newer regeneration was started; this one was discarded"), nil
	case errors.Is(err, service.ErrNoSession):
		return toolError(err)
	case err != nil:
		return errorResult("Regeneration failed: %v", err), nil
	}
	return jsonResult(summarizeGenerations(view.Session.ID, view.State.Generations))
}

func (s *Server) handleListGenerations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, st, err := s.sessions.Current()
	if err != nil {
		return toolError(err)
	}
	return jsonResult(summarizeGenerations(sess.ID, st.Generations))
}

func summarizeGenerations(sessionID string, gens []domain.Generation) []generationSummary {
	out := make([]generationSummary, len(gens))
	for i, g := range gens {
		tags := g.Tags
		if tags == nil {
			tags = []domain.Tag{}
		}
		out[i] = generationSummary{
			Index:       i,
			ContainerID: presenter.ContainerID(i),
			ItemID:      presenter.ItemID(sessionID, i, g),
			Domain:      g.Domain,
			Prompt:      g.Prompt,
			Tags:        tags,
			Preview:     contentPreview(g.Content),
		}
	}
	return out
}
