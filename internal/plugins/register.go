package plugins

import "galleries/internal/render"

// RegisterAll installs a renderer for every supported content domain.
func RegisterAll(reg *render.Registry) {
	s := NewSanitizer()
	reg.Register(NewImageRenderer())
	reg.Register(NewSVGRenderer(s))
	reg.Register(NewThreeJSRenderer(s))
	reg.Register(NewTextRenderer(s))
	reg.Register(NewUIRenderer(s))
	reg.Register(NewShaderRenderer())
	reg.Register(NewP5Renderer())
}
