package plugins

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"galleries/internal/render"
)

// textRenderer converts generated prose (markdown allowed) to HTML.
type textRenderer struct {
	md        goldmark.Markdown
	sanitizer *Sanitizer
}

func NewTextRenderer(s *Sanitizer) render.Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(extension.Typographer),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
	return &textRenderer{md: md, sanitizer: s}
}

func (r *textRenderer) Domain() string { return "text" }

func (r *textRenderer) Render(_ string, content json.RawMessage, _ string) (render.Fragment, error) {
	text, err := decodeContent(content, "data")
	if err != nil {
		return render.Fragment{}, err
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(text), &buf); err != nil {
		return render.Fragment{}, fmt.Errorf("convert text: %w", err)
	}
	return render.Fragment{
		HTML: `<div class="p-4 text-sm w-full overflow-y-auto aspect-square font-serif pb-24">` +
			r.sanitizer.HTML(buf.String()) + `</div>`,
	}, nil
}
