package plugins

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"galleries/internal/domain"
	"galleries/internal/render"
)

// ─────────────────────────────────────────────────────────────
// Code-executing domains (p5 sketches, fragment shaders)
// ─────────────────────────────────────────────────────────────
//
// Both run generated code, so the document is built here and handed to the
// frontend as an iframe srcdoc with sandbox="allow-scripts" (no same-origin
// access to the app).

const p5CDN = "https://cdn.jsdelivr.net/npm/p5@1.9.0/lib/p5.min.js"

func sandboxFrame(title, doc string) string {
	return fmt.Sprintf(`<iframe sandbox="allow-scripts" class="w-full h-full border-0" title="%s" srcdoc="%s"></iframe>`,
		html.EscapeString(title), html.EscapeString(doc))
}

// closeScript keeps generated code from ending its <script> element early.
func closeScript(code string) string {
	return strings.ReplaceAll(code, "</script", `<\/script`)
}

// ── p5 ─────────────────────────────────────────────────────

type p5Renderer struct{}

func NewP5Renderer() render.Renderer { return p5Renderer{} }

func (p5Renderer) Domain() string { return "p5" }

func (p5Renderer) Render(_ string, content json.RawMessage, label string) (render.Fragment, error) {
	code, err := decodeContent(content, "data", "code")
	if err != nil {
		return render.Fragment{}, err
	}
	doc := `<!doctype html><html><head><style>html,body{margin:0;overflow:hidden;background:#000}canvas{display:block}</style>` +
		`<script src="` + p5CDN + `"></script></head><body><script>` +
		closeScript(code) +
		`</script></body></html>`
	return render.Fragment{HTML: sandboxFrame(label, doc), Sandboxed: true}, nil
}

// RenderTags marks the tags already left as feedback on the item, since p5
// feedback is usually a clicked tag. A bare value typed as feedback counts
// too.
func (p5Renderer) RenderTags(gen domain.Generation, space domain.DesignSpace, feedback []string) []render.TagChip {
	given := make(map[string]bool, len(feedback))
	for _, f := range feedback {
		given[f] = true
	}
	chips := render.DefaultTags(gen, space)
	for i, c := range chips {
		tag := domain.Tag{Dimension: c.Dimension, Value: c.Value}
		chips[i].HasFeedback = given[domain.TagFeedback(tag)] || given[c.Value]
	}
	return chips
}

// ── Shader ─────────────────────────────────────────────────

// shaderRenderer wraps Shadertoy-style source (a mainImage function) in a
// fullscreen-quad WebGL page with iResolution, iTime, iMouse and iFrame
// uniforms.
type shaderRenderer struct{}

func NewShaderRenderer() render.Renderer { return shaderRenderer{} }

func (shaderRenderer) Domain() string { return "shader" }

const shaderPrefix = `precision highp float;
uniform vec2 iResolution;
uniform float iTime;
uniform vec4 iMouse;
uniform float iFrame;
`

const shaderSuffix = `
void main() {
  vec4 fragColor;
  mainImage(fragColor, gl_FragCoord.xy);
  gl_FragColor = fragColor;
}
`

const shaderHost = `<!doctype html><html><head><style>html,body{margin:0;height:100%;overflow:hidden;background:#000}canvas{display:block;width:100%;height:100%}</style></head>
<body><canvas id="c"></canvas><script>
const src = __SOURCE__;
const canvas = document.getElementById('c');
const gl = canvas.getContext('webgl');
if (!gl) { document.body.textContent = 'WebGL is not supported'; throw new Error('no webgl'); }
function compile(type, source) {
  const s = gl.createShader(type); gl.shaderSource(s, source); gl.compileShader(s);
  if (!gl.getShaderParameter(s, gl.COMPILE_STATUS)) { document.body.textContent = gl.getShaderInfoLog(s); throw new Error('compile'); }
  return s;
}
const prog = gl.createProgram();
gl.attachShader(prog, compile(gl.VERTEX_SHADER, 'attribute vec2 a_position;void main(){gl_Position=vec4(a_position,0.0,1.0);}'));
gl.attachShader(prog, compile(gl.FRAGMENT_SHADER, src));
gl.linkProgram(prog); gl.useProgram(prog);
const buf = gl.createBuffer(); gl.bindBuffer(gl.ARRAY_BUFFER, buf);
gl.bufferData(gl.ARRAY_BUFFER, new Float32Array([-1,-1,1,-1,-1,1,-1,1,1,-1,1,1]), gl.STATIC_DRAW);
const loc = gl.getAttribLocation(prog, 'a_position');
gl.enableVertexAttribArray(loc); gl.vertexAttribPointer(loc, 2, gl.FLOAT, false, 0, 0);
const uRes = gl.getUniformLocation(prog, 'iResolution'), uTime = gl.getUniformLocation(prog, 'iTime');
const uMouse = gl.getUniformLocation(prog, 'iMouse'), uFrame = gl.getUniformLocation(prog, 'iFrame');
let mouse = [0,0,0,0], frame = 0; const start = performance.now();
canvas.addEventListener('mousemove', e => { mouse = [e.offsetX, canvas.height - e.offsetY, 0, 0]; });
function draw() {
  canvas.width = canvas.clientWidth; canvas.height = canvas.clientHeight;
  gl.viewport(0, 0, canvas.width, canvas.height);
  gl.uniform2f(uRes, canvas.width, canvas.height);
  gl.uniform1f(uTime, (performance.now() - start) / 1000);
  gl.uniform4fv(uMouse, mouse); gl.uniform1f(uFrame, frame++);
  gl.drawArrays(gl.TRIANGLES, 0, 6);
  requestAnimationFrame(draw);
}
draw();
</script></body></html>`

func (shaderRenderer) Render(_ string, content json.RawMessage, label string) (render.Fragment, error) {
	source, err := decodeContent(content, "data", "code")
	if err != nil {
		return render.Fragment{}, err
	}
	if !strings.Contains(source, "mainImage") {
		return render.Fragment{}, fmt.Errorf("shader source has no mainImage function")
	}
	quoted, err := json.Marshal(shaderPrefix + source + shaderSuffix)
	if err != nil {
		return render.Fragment{}, err
	}
	doc := strings.Replace(shaderHost, "__SOURCE__", closeScript(string(quoted)), 1)
	return render.Fragment{HTML: sandboxFrame(label, doc), Sandboxed: true}, nil
}
