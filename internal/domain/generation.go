package domain

import (
	"encoding/json"
	"time"
)

type Tag struct {
	Dimension string `json:"dimension"`
	Value     string `json:"value"`
}

// Generation is one produced artifact. Content is domain specific and is
// only interpreted by the renderer registered for Domain.
type Generation struct {
	Domain  string          `json:"domain,omitempty"`
	Content json.RawMessage `json:"content"`
	Prompt  string          `json:"prompt"`
	Tags    []Tag           `json:"tags"`
}

// GenerationState is what the backend returns for a session.
type GenerationState struct {
	SessionID   string       `json:"session_id,omitempty"`
	DesignSpace *DesignSpace `json:"design_space"`
	Generations []Generation `json:"generations"`
}

type DomainInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

// HistoryEntry records one applied regeneration.
type HistoryEntry struct {
	ID          string       `json:"id"`
	SessionID   string       `json:"sessionId"`
	DesignSpace DesignSpace  `json:"designSpace"`
	Generations []Generation `json:"generations"`
	CreatedAt   time.Time    `json:"createdAt"`
}
