// Package glrender submits the composer's draw list to OpenGL ES 2 through
// golang.org/x/mobile/gl.
//
// Programs are compiled from the shader assets. Draws for shaders without a
// program (the camera background and the composite pass, which the platform
// draws itself) and for meshes that were never uploaded are counted as
// skipped.
package glrender

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/arlens/flicker/internal/render"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/mobile/exp/f32"
	"golang.org/x/mobile/exp/gl/glutil"
	"golang.org/x/mobile/gl"
)

// PositionAttrib is the vertex attribute every program reads positions from.
const PositionAttrib = "a_Position"

// ErrNoContext is returned by calls made while no GL context is attached.
var ErrNoContext = errors.New("no GL context attached")

type buffer struct {
	buf    gl.Buffer
	layout layout
	count  int
}

type framebuffer struct {
	fb     gl.Framebuffer
	tex    gl.Texture
	width  int
	height int
}

// Stats counts submitted calls since the last ResetStats.
type Stats struct {
	Draws   int
	Skipped int
	Clears  int
}

// Submitter is a render.Submitter backed by a GL context. It must only be
// used on the goroutine owning the context. The context is attached when the
// surface appears and released when it goes away; every GL object is
// recreated on the next Attach.
type Submitter struct {
	glctx gl.Context
	log   *slog.Logger

	camera       gl.Texture
	programs     map[render.Shader]gl.Program
	buffers      map[render.Mesh]*buffer
	textures     map[render.Texture]gl.Texture
	framebuffers map[render.Target]*framebuffer
	screen       [2]int

	stats Stats
}

// New creates a detached submitter.
func New(log *slog.Logger) *Submitter {
	if log == nil {
		log = slog.Default()
	}
	s := &Submitter{log: log}
	s.forget()
	return s
}

// Attach binds the submitter to glctx and allocates the camera texture.
func (s *Submitter) Attach(glctx gl.Context) {
	if s.glctx != nil {
		s.Release()
	}
	s.glctx = glctx
	s.camera = glctx.CreateTexture()
	glctx.BindTexture(gl.TEXTURE_2D, s.camera)
	glctx.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	glctx.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	s.textures[render.TextureCameraColor] = s.camera
}

// Attached reports whether a context is attached.
func (s *Submitter) Attached() bool {
	return s.glctx != nil
}

// Compile builds one program per shader pair in assets. Programs that fail
// to compile are reported together; the others stay usable.
func (s *Submitter) Compile(assets *render.Assets) error {
	if s.glctx == nil {
		return ErrNoContext
	}
	var failed []string
	for _, name := range assets.Shaders() {
		vert, okV := assets.Bytes(path.Join("shaders", name+".vert"))
		frag, okF := assets.Bytes(path.Join("shaders", name+".frag"))
		if !okV || !okF {
			failed = append(failed, name)
			continue
		}
		p, err := glutil.CreateProgram(s.glctx, string(vert), string(frag))
		if err != nil {
			s.log.Error("Failed to compile shader", "shader", name, "error", err)
			failed = append(failed, name)
			continue
		}
		s.programs[render.Shader(name)] = p
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to compile shaders: %v", failed)
	}
	return nil
}

// Release deletes every GL object the submitter created and detaches the
// context. It is a no-op when detached.
func (s *Submitter) Release() {
	if s.glctx == nil {
		return
	}
	for _, p := range s.programs {
		s.glctx.DeleteProgram(p)
	}
	for _, b := range s.buffers {
		s.glctx.DeleteBuffer(b.buf)
	}
	for _, t := range s.textures {
		s.glctx.DeleteTexture(t)
	}
	for _, fb := range s.framebuffers {
		s.glctx.DeleteFramebuffer(fb.fb)
		s.glctx.DeleteTexture(fb.tex)
	}
	s.glctx = nil
	s.camera = gl.Texture{}
	s.forget()
}

func (s *Submitter) forget() {
	s.programs = make(map[render.Shader]gl.Program)
	s.buffers = make(map[render.Mesh]*buffer)
	s.textures = make(map[render.Texture]gl.Texture)
	s.framebuffers = make(map[render.Target]*framebuffer)
}

func (s *Submitter) CameraTexture() uint32 {
	return s.camera.Value
}

// Stats returns the call counters.
func (s *Submitter) Stats() Stats {
	return s.stats
}

// ResetStats zeroes the call counters.
func (s *Submitter) ResetStats() {
	s.stats = Stats{}
}

func (s *Submitter) Draw(op render.DrawOp) error {
	if s.glctx == nil {
		return ErrNoContext
	}
	program, ok := s.programs[op.Shader]
	if !ok {
		s.stats.Skipped++
		return nil
	}
	b, ok := s.buffers[op.Mesh]
	if !ok || b.count == 0 {
		s.stats.Skipped++
		return nil
	}

	s.bindTarget(op.Target)
	s.glctx.UseProgram(program)
	if err := s.setUniforms(program, op.Params); err != nil {
		return fmt.Errorf("draw %s/%s: %w", op.Pass, op.Mesh, err)
	}

	attrib := s.glctx.GetAttribLocation(program, PositionAttrib)
	s.glctx.BindBuffer(gl.ARRAY_BUFFER, b.buf)
	s.glctx.EnableVertexAttribArray(attrib)
	s.glctx.VertexAttribPointer(attrib, b.layout.components, gl.FLOAT, false, 0, 0)
	s.glctx.DrawArrays(b.layout.mode, 0, b.count)
	s.glctx.DisableVertexAttribArray(attrib)

	s.stats.Draws++
	return nil
}

func (s *Submitter) Clear(target render.Target, color mgl32.Vec4) error {
	if s.glctx == nil {
		return ErrNoContext
	}
	s.bindTarget(target)
	s.glctx.ClearColor(color[0], color[1], color[2], color[3])
	s.glctx.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	s.stats.Clears++
	return nil
}

// Resize sets the viewport for the screen and reallocates offscreen targets.
func (s *Submitter) Resize(target render.Target, width, height int) error {
	if s.glctx == nil {
		return ErrNoContext
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid size %dx%d for %s", width, height, target)
	}
	if target == render.Screen {
		s.screen = [2]int{width, height}
		s.glctx.Viewport(0, 0, width, height)
		return nil
	}

	fb, ok := s.framebuffers[target]
	if !ok {
		fb = &framebuffer{fb: s.glctx.CreateFramebuffer(), tex: s.glctx.CreateTexture()}
		s.framebuffers[target] = fb
		s.textures[render.TextureVirtualScene] = fb.tex
	}
	fb.width, fb.height = width, height

	s.glctx.BindTexture(gl.TEXTURE_2D, fb.tex)
	s.glctx.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA, width, height, gl.RGBA, gl.UNSIGNED_BYTE, nil)
	s.glctx.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	s.glctx.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	s.glctx.BindFramebuffer(gl.FRAMEBUFFER, fb.fb)
	s.glctx.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, fb.tex, 0)
	if status := s.glctx.CheckFramebufferStatus(gl.FRAMEBUFFER); status != gl.FRAMEBUFFER_COMPLETE {
		s.glctx.BindFramebuffer(gl.FRAMEBUFFER, gl.Framebuffer{})
		return fmt.Errorf("framebuffer %s incomplete: 0x%x", target, uint32(status))
	}
	s.glctx.BindFramebuffer(gl.FRAMEBUFFER, gl.Framebuffer{})
	return nil
}

func (s *Submitter) UpdateVertices(mesh render.Mesh, data []float32) error {
	if s.glctx == nil {
		return ErrNoContext
	}
	l := layoutOf(mesh)
	if len(data)%l.components != 0 {
		return fmt.Errorf("mesh %s: %d floats is not a multiple of %d", mesh, len(data), l.components)
	}
	b, ok := s.buffers[mesh]
	if !ok {
		b = &buffer{buf: s.glctx.CreateBuffer(), layout: l}
		s.buffers[mesh] = b
	}
	b.count = len(data) / l.components
	s.glctx.BindBuffer(gl.ARRAY_BUFFER, b.buf)
	s.glctx.BufferData(gl.ARRAY_BUFFER, f32.Bytes(binary.LittleEndian, data...), gl.DYNAMIC_DRAW)
	return nil
}

// UpdateTexture uploads 16-bit samples as two 8-bit channels, low byte first.
func (s *Submitter) UpdateTexture(tex render.Texture, width, height int, data []uint16) error {
	if s.glctx == nil {
		return ErrNoContext
	}
	if len(data) != width*height {
		return fmt.Errorf("texture %s: %d samples for %dx%d", tex, len(data), width, height)
	}
	t, ok := s.textures[tex]
	if !ok {
		t = s.glctx.CreateTexture()
		s.textures[tex] = t
	}
	s.glctx.BindTexture(gl.TEXTURE_2D, t)
	s.glctx.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	s.glctx.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	s.glctx.TexImage2D(gl.TEXTURE_2D, 0, gl.LUMINANCE_ALPHA, width, height, gl.LUMINANCE_ALPHA, gl.UNSIGNED_BYTE, depthBytes(data))
	return nil
}

func (s *Submitter) bindTarget(target render.Target) {
	if fb, ok := s.framebuffers[target]; ok {
		s.glctx.BindFramebuffer(gl.FRAMEBUFFER, fb.fb)
		s.glctx.Viewport(0, 0, fb.width, fb.height)
		return
	}
	s.glctx.BindFramebuffer(gl.FRAMEBUFFER, gl.Framebuffer{})
	if s.screen[0] > 0 {
		s.glctx.Viewport(0, 0, s.screen[0], s.screen[1])
	}
}

func (s *Submitter) setUniforms(program gl.Program, params render.Params) error {
	unit := 0
	for name, v := range params {
		loc := s.glctx.GetUniformLocation(program, name)
		if loc.Value < 0 {
			continue
		}
		switch v := v.(type) {
		case mgl32.Mat4:
			s.glctx.UniformMatrix4fv(loc, v[:])
		case mgl32.Vec4:
			s.glctx.Uniform4f(loc, v[0], v[1], v[2], v[3])
		case mgl32.Vec3:
			s.glctx.Uniform3f(loc, v[0], v[1], v[2])
		case float32:
			s.glctx.Uniform1f(loc, v)
		case bool:
			s.glctx.Uniform1i(loc, boolInt(v))
		case []float32:
			if len(v)%3 != 0 {
				return fmt.Errorf("uniform %s: %d floats is not a list of vec3", name, len(v))
			}
			s.glctx.Uniform3fv(loc, v)
		case render.Texture:
			tex, ok := s.textures[v]
			if !ok {
				continue
			}
			s.glctx.ActiveTexture(gl.TEXTURE0 + gl.Enum(unit))
			s.glctx.BindTexture(gl.TEXTURE_2D, tex)
			s.glctx.Uniform1i(loc, unit)
			unit++
		case string:
			// Label text is rasterized by the platform.
		default:
			return fmt.Errorf("uniform %s: unsupported type %T", name, v)
		}
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// depthBytes splits each sample into its low and high byte.
func depthBytes(data []uint16) []byte {
	out := make([]byte, 2*len(data))
	for i, d := range data {
		binary.LittleEndian.PutUint16(out[2*i:], d)
	}
	return out
}
