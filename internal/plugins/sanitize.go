package plugins

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ─────────────────────────────────────────────────────────────
// Markup sanitizers
// ─────────────────────────────────────────────────────────────
//
// Generated SVG and UI markup goes into the grid with innerHTML, so it is
// stripped of scripts, event handlers and javascript: URLs first. Code
// that is meant to run (p5, shaders) never passes through here; it goes
// into a sandboxed iframe instead.

var svgElements = []string{
	"svg", "g", "defs", "symbol", "use", "title", "desc",
	"path", "rect", "circle", "ellipse", "line", "polyline", "polygon",
	"text", "tspan", "textPath",
	"linearGradient", "radialGradient", "stop", "pattern", "clipPath", "mask", "marker",
	"filter", "feGaussianBlur", "feOffset", "feBlend", "feColorMatrix", "feMerge", "feMergeNode",
	"feFlood", "feComposite", "feTurbulence", "feDisplacementMap", "feDropShadow",
}

var svgAttrs = []string{
	"id", "class", "style", "transform", "viewBox", "preserveAspectRatio", "xmlns", "version",
	"width", "height", "x", "y", "x1", "y1", "x2", "y2", "cx", "cy", "r", "rx", "ry",
	"d", "points", "pathLength", "dx", "dy", "rotate", "textLength", "lengthAdjust",
	"fill", "fill-opacity", "fill-rule", "stroke", "stroke-width", "stroke-opacity",
	"stroke-linecap", "stroke-linejoin", "stroke-dasharray", "stroke-dashoffset", "stroke-miterlimit",
	"opacity", "color", "clip-path", "clip-rule", "mask", "filter", "marker-start", "marker-mid", "marker-end",
	"font-family", "font-size", "font-weight", "font-style", "text-anchor", "dominant-baseline",
	"letter-spacing", "offset", "stop-color", "stop-opacity", "gradientUnits", "gradientTransform",
	"spreadMethod", "fx", "fy", "patternUnits", "patternTransform", "patternContentUnits",
	"clipPathUnits", "maskUnits", "markerWidth", "markerHeight", "refX", "refY", "orient",
	"stdDeviation", "in", "in2", "result", "mode", "values", "type", "operator",
	"k1", "k2", "k3", "k4", "scale", "baseFrequency", "numOctaves", "seed",
	"flood-color", "flood-opacity", "href",
}

// Internal references only, e.g. href="#grad1".
var fragmentRef = regexp.MustCompile(`^#[A-Za-z_][\w\-.:]*$`)

// Sanitizer holds the compiled policies. Policies are safe for concurrent use.
type Sanitizer struct {
	svg *bluemonday.Policy
	ui  *bluemonday.Policy
	ugc *bluemonday.Policy
}

func NewSanitizer() *Sanitizer {
	svg := bluemonday.NewPolicy()
	svg.AllowElements(svgElements...)
	svg.AllowAttrs(svgAttrs...).OnElements(svgElements...)
	svg.AllowNoAttrs().OnElements("g", "defs", "title", "desc", "text", "tspan", "feMerge", "feMergeNode")
	svg.AllowAttrs("href", "xlink:href").Matching(fragmentRef).OnElements("use", "textPath", "linearGradient", "radialGradient", "pattern")
	svg.AllowStyles("fill", "stroke", "stroke-width", "opacity", "font-family", "font-size", "font-weight",
		"transform", "transform-origin", "mix-blend-mode", "stop-color", "stop-opacity").Globally()

	ui := bluemonday.UGCPolicy()
	ui.AllowAttrs("class", "id", "role", "aria-label", "aria-hidden").Globally()
	ui.AllowElements("button", "input", "label", "select", "option", "textarea", "form",
		"nav", "header", "footer", "main", "section", "article", "aside", "span", "div")
	ui.AllowAttrs("type", "placeholder", "value", "checked", "disabled", "name", "for").
		OnElements("button", "input", "label", "select", "option", "textarea")
	ui.AllowStyles("color", "background", "background-color", "border", "border-radius", "padding",
		"margin", "display", "flex", "flex-direction", "gap", "align-items", "justify-content",
		"width", "height", "max-width", "font-size", "font-weight", "text-align", "box-shadow").Globally()
	ui.AllowDataAttributes()
	ui.SkipElementsContent("script", "style")

	return &Sanitizer{svg: svg, ui: ui, ugc: bluemonday.UGCPolicy()}
}

// SVG keeps drawing elements and presentation attributes only.
func (s *Sanitizer) SVG(markup string) string {
	return strings.TrimSpace(s.svg.Sanitize(markup))
}

// UI keeps layout markup, classes and a safe subset of inline styles.
func (s *Sanitizer) UI(markup string) string {
	return strings.TrimSpace(s.ui.Sanitize(markup))
}

// HTML applies the user-generated-content policy, used for rendered text.
func (s *Sanitizer) HTML(markup string) string {
	return s.ugc.Sanitize(markup)
}
