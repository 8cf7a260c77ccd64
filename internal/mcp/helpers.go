package mcpserver

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"galleries/internal/domain"
)

func marshalIndent(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// requiredString reads a non-blank string argument.
func requiredString(req mcp.CallToolRequest, name string) (string, error) {
	v := strings.TrimSpace(req.GetString(name, ""))
	if v == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return v, nil
}

// generationSummary is what list_generations returns per tile. Content is
// cut short; agents reason about prompts and tags, not raw markup.
type generationSummary struct {
	Index       int          `json:"index"`
	ContainerID string       `json:"containerId"`
	ItemID      string       `json:"itemId"`
	Domain      string       `json:"domain,omitempty"`
	Prompt      string       `json:"prompt"`
	Tags        []domain.Tag `json:"tags"`
	Preview     string       `json:"preview,omitempty"`
}

const previewLimit = 200

func contentPreview(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	if len(s) > previewLimit {
		return s[:previewLimit] + "…"
	}
	return s
}

func describeAxesOf(axes []domain.Axis) string {
	if len(axes) == 0 {
		return "(no axes)\n"
	}
	var b strings.Builder
	for _, a := range axes {
		fmt.Fprintf(&b, "- %s [%s]", a.Name, a.Status)
		if a.Value != "" {
			fmt.Fprintf(&b, " = %s", a.Value)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
