package plugins

import (
	"encoding/json"

	"galleries/internal/render"
)

// uiRenderer shows a generated UI snippet scaled down to fit a tile.
type uiRenderer struct {
	sanitizer *Sanitizer
}

func NewUIRenderer(s *Sanitizer) render.Renderer {
	return &uiRenderer{sanitizer: s}
}

func (r *uiRenderer) Domain() string { return "ui" }

func (r *uiRenderer) Render(_ string, content json.RawMessage, _ string) (render.Fragment, error) {
	markup, err := decodeContent(content, "data")
	if err != nil {
		return render.Fragment{}, err
	}
	return render.Fragment{
		HTML: `<div class="w-full h-full transition-all hover:z-30 z-0 overflow-y-auto" style="zoom: 0.3">` +
			r.sanitizer.UI(markup) + `</div>`,
	}, nil
}
