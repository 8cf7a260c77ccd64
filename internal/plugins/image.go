package plugins

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"

	"galleries/internal/render"
)

// imageRenderer shows base64 image bytes as a data URL.
type imageRenderer struct{}

func NewImageRenderer() render.Renderer { return imageRenderer{} }

func (imageRenderer) Domain() string { return "image" }

func (imageRenderer) Render(_ string, content json.RawMessage, label string) (render.Fragment, error) {
	data, err := decodeContent(content, "data")
	if err != nil {
		return render.Fragment{}, err
	}

	src := data
	if !strings.HasPrefix(data, "data:") {
		raw, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return render.Fragment{}, fmt.Errorf("image content is not base64: %w", err)
		}
		mime := http.DetectContentType(raw)
		if !strings.HasPrefix(mime, "image/") {
			mime = "image/png"
		}
		src = "data:" + mime + ";base64," + data
	}

	return render.Fragment{
		HTML: fmt.Sprintf(`<img src="%s" alt="%s" class="w-full h-full object-contain">`,
			html.EscapeString(src), html.EscapeString(label)),
	}, nil
}
