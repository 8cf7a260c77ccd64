package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	currentSessionURI  = "galleries://session/current"
	historyURIPrefix   = "galleries://session/"
	historyURISuffix   = "/history"
	historyURITemplate = historyURIPrefix + "{sessionId}" + historyURISuffix
)

func (s *Server) registerResources() {
	// ── galleries://session/current ────────────────────
	s.mcp.AddResource(mcp.NewResource(
		currentSessionURI,
		"Open Session Design Space",
		mcp.WithResourceDescription("Axes, statuses and values of the session open in the app"),
		mcp.WithMIMEType("application/json"),
	), s.handleCurrentSessionResource)

	// ── galleries://session/{sessionId}/history ────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			historyURITemplate,
			"Session History",
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleHistoryResource,
	)
}

func (s *Server) handleCurrentSessionResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	sum, err := s.currentSummary()
	if err != nil {
		return nil, err
	}
	data, err := marshalIndent(sum)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      currentSessionURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleHistoryResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	sessionID := sessionIDFromURI(uri)
	if sessionID == "" {
		return nil, fmt.Errorf("could not extract sessionId from URI: %s", uri)
	}

	entries, err := s.history.List(sessionID)
	if err != nil {
		return nil, err
	}
	data, err := marshalIndent(summarizeHistory(entries))
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// sessionIDFromURI extracts the id from "galleries://session/{id}/history".
func sessionIDFromURI(uri string) string {
	rest, ok := strings.CutPrefix(uri, historyURIPrefix)
	if !ok {
		return ""
	}
	id, ok := strings.CutSuffix(rest, historyURISuffix)
	if !ok || strings.Contains(id, "/") {
		return ""
	}
	return id
}
