package plugins

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var errEmptyContent = errors.New("empty content")

// payload is the object form some domains use for content, e.g.
// {"data": "<p5 sketch>"} or {"svg": "<svg ...>"}.
type payload struct {
	Data string `json:"data"`
	SVG  string `json:"svg"`
	Code string `json:"code"`
}

// decodeContent returns the text carried by raw, which is either a JSON
// string or an object with one of the payload fields. prefer picks the
// field to look at first.
func decodeContent(raw json.RawMessage, prefer ...string) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", errEmptyContent
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", fmt.Errorf("content string: %w", err)
		}
		if s == "" {
			return "", errEmptyContent
		}
		return s, nil
	}

	var p payload
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return "", fmt.Errorf("content object: %w", err)
	}
	fields := map[string]string{"data": p.Data, "svg": p.SVG, "code": p.Code}
	for _, name := range append(prefer, "data", "svg", "code") {
		if v := fields[name]; v != "" {
			return v, nil
		}
	}
	return "", errEmptyContent
}
