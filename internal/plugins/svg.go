package plugins

import (
	"encoding/json"
	"fmt"
	"regexp"

	"galleries/internal/render"
)

var (
	svgWidth  = regexp.MustCompile(`(<svg\b[^>]*?)\s+width="[^"]*"`)
	svgHeight = regexp.MustCompile(`(<svg\b[^>]*?)\s+height="[^"]*"`)
	svgOpen   = regexp.MustCompile(`<svg\b`)
)

// svgRenderer inlines sanitized SVG markup. The threejs domain reuses it
// for its pre-rendered snapshot, which arrives as {"svg": "..."}.
type svgRenderer struct {
	domain    string
	sanitizer *Sanitizer
}

func NewSVGRenderer(s *Sanitizer) render.Renderer {
	return &svgRenderer{domain: "svg", sanitizer: s}
}

func NewThreeJSRenderer(s *Sanitizer) render.Renderer {
	return &svgRenderer{domain: "threejs", sanitizer: s}
}

func (r *svgRenderer) Domain() string { return r.domain }

func (r *svgRenderer) Render(_ string, content json.RawMessage, _ string) (render.Fragment, error) {
	markup, err := decodeContent(content, "svg")
	if err != nil {
		return render.Fragment{}, err
	}
	clean := r.sanitizer.SVG(markup)
	if !svgOpen.MatchString(clean) {
		return render.Fragment{}, fmt.Errorf("%s content has no <svg> element", r.domain)
	}
	return render.Fragment{HTML: `<div class="main-preview">` + fillContainer(clean) + `</div>`}, nil
}

// fillContainer makes the root svg stretch to its tile.
func fillContainer(markup string) string {
	markup = svgWidth.ReplaceAllString(markup, "$1")
	markup = svgHeight.ReplaceAllString(markup, "$1")
	return svgOpen.ReplaceAllString(markup, `<svg width="100%" height="100%"`)
}
