package gldevice

import (
	"fmt"
	"strings"

	"github.com/go-gl/gl/v4.1-core/gl"
)

const drawVert = `#version 410 core
layout (location = 0) in vec4 aPos;
layout (location = 1) in vec4 aColor;
layout (location = 2) in vec2 aUV;

uniform mat4 projection;
uniform bool perspective;

out vec4 vColor;
out vec2 vUV;

void main() {
	float w = 1.0;
	if (perspective && aPos.w > 0.0) {
		w = 1.0 / aPos.w;
	}
	gl_Position = projection * vec4(aPos.xyz, 1.0) * w;
	vColor = aColor.bgra;
	vUV = aUV;
}
`

const drawFrag = `#version 410 core
in vec4 vColor;
in vec2 vUV;

uniform sampler2D tex;
uniform bool useTexture;
uniform bool colorKey;
uniform bool alphaTest;
uniform float alphaRef;

out vec4 FragColor;

void main() {
	vec4 c = vColor;
	if (useTexture) {
		vec4 t = texture(tex, vUV);
		if (colorKey && t.a < 0.5) {
			discard;
		}
		c *= t;
	}
	if (alphaTest && c.a <= alphaRef) {
		discard;
	}
	FragColor = c;
}
`

// presentVert draws a full-screen quad from gl_VertexID; row 0 of the
// source texture ends up at the top of the window.
const presentVert = `#version 410 core
out vec2 vUV;

void main() {
	vec2 p = vec2((gl_VertexID & 1) * 2 - 1, (gl_VertexID >> 1) * 2 - 1);
	gl_Position = vec4(p, 0.0, 1.0);
	vUV = vec2((p.x + 1.0) * 0.5, (1.0 - p.y) * 0.5);
}
`

const presentFrag = `#version 410 core
in vec2 vUV;
uniform sampler2D tex;
out vec4 FragColor;

void main() {
	FragColor = vec4(texture(tex, vUV).rgb, 1.0);
}
`

// program is a linked shader program with cached uniform locations.
type program struct {
	id       uint32
	uniforms map[string]int32
}

func newProgram(vertexSrc, fragmentSrc string) (*program, error) {
	id, err := compileProgram(vertexSrc, fragmentSrc)
	if err != nil {
		return nil, err
	}
	return &program{id: id, uniforms: make(map[string]int32)}, nil
}

func (p *program) use() { gl.UseProgram(p.id) }

func (p *program) location(name string) int32 {
	if loc, ok := p.uniforms[name]; ok {
		return loc
	}
	loc := gl.GetUniformLocation(p.id, gl.Str(name+"\x00"))
	p.uniforms[name] = loc
	return loc
}

func (p *program) setBool(name string, value bool) {
	var v int32
	if value {
		v = 1
	}
	gl.Uniform1i(p.location(name), v)
}

func (p *program) setInt(name string, value int32)     { gl.Uniform1i(p.location(name), value) }
func (p *program) setFloat(name string, value float32) { gl.Uniform1f(p.location(name), value) }
func (p *program) setMatrix4(name string, value *float32) {
	gl.UniformMatrix4fv(p.location(name), 1, false, value)
}

func (p *program) delete() {
	if p.id != 0 {
		gl.DeleteProgram(p.id)
		p.id = 0
	}
}

func compileProgram(vertexSrc, fragmentSrc string) (uint32, error) {
	vertexShader, err := compileShader(vertexSrc, gl.VERTEX_SHADER)
	if err != nil {
		return 0, err
	}
	fragmentShader, err := compileShader(fragmentSrc, gl.FRAGMENT_SHADER)
	if err != nil {
		gl.DeleteShader(vertexShader)
		return 0, err
	}

	prog := gl.CreateProgram()
	gl.AttachShader(prog, vertexShader)
	gl.AttachShader(prog, fragmentShader)
	gl.LinkProgram(prog)
	gl.DeleteShader(vertexShader)
	gl.DeleteShader(fragmentShader)

	var status int32
	gl.GetProgramiv(prog, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(prog, gl.INFO_LOG_LENGTH, &logLength)

		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(prog, logLength, nil, gl.Str(log))
		gl.DeleteProgram(prog)

		return 0, fmt.Errorf("failed to link program: %v", log)
	}
	return prog, nil
}

func compileShader(source string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)

		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(log))
		gl.DeleteShader(shader)

		return 0, fmt.Errorf("failed to compile shader: %v", log)
	}
	return shader, nil
}
