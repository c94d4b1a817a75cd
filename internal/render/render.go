// Package render defines the draw list the composer emits and the contract
// of the GPU submission layer that consumes it.
package render

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Target is a framebuffer.
type Target int

const (
	Screen Target = iota
	VirtualScene
)

func (t Target) String() string {
	switch t {
	case Screen:
		return "screen"
	case VirtualScene:
		return "virtual_scene"
	default:
		return "unknown"
	}
}

// Pass orders the draw list of one tick.
type Pass int

const (
	PassBackground Pass = iota
	PassPointCloud
	PassPlanes
	PassLabels
	PassVirtualScene
	PassFlicker
	PassComposite
)

var passNames = [...]string{
	PassBackground:   "background",
	PassPointCloud:   "point_cloud",
	PassPlanes:       "planes",
	PassLabels:       "labels",
	PassVirtualScene: "virtual_scene",
	PassFlicker:      "flicker",
	PassComposite:    "composite",
}

func (p Pass) String() string {
	if p < 0 || int(p) >= len(passNames) {
		return "unknown"
	}
	return passNames[p]
}

// Mesh names a loaded mesh.
type Mesh string

const (
	MeshBackground Mesh = "background_quad"
	MeshPointCloud Mesh = "point_cloud"
	MeshPlane      Mesh = "plane"
	MeshLabel      Mesh = "label_quad"
	MeshPawn       Mesh = "models/pawn.obj"
	MeshFlicker    Mesh = "models/flicker.obj"
)

// Shader names a compiled shader program.
type Shader string

const (
	ShaderBackground     Shader = "background_show_camera"
	ShaderPointCloud     Shader = "point_cloud"
	ShaderPlane          Shader = "plane"
	ShaderLabel          Shader = "label"
	ShaderEnvironmentHDR Shader = "environmental_hdr"
	ShaderFlicker        Shader = "flicker"
	ShaderComposite      Shader = "background_show_virtual_scene"
)

// Texture names a texture bound through Params.
type Texture string

const (
	TextureCameraColor          Texture = "camera_color"
	TextureCameraDepth          Texture = "camera_depth"
	TextureVirtualScene         Texture = "virtual_scene"
	TexturePawnAlbedo           Texture = "models/pawn_albedo.png"
	TexturePawnAlbedoInstant    Texture = "models/pawn_albedo_instant_placement.png"
	TexturePawnRoughnessMetalAO Texture = "models/pawn_roughness_metallic_ao.png"
	TextureDFG                  Texture = "models/dfg.raw"
	TextureTrigrid              Texture = "models/trigrid.png"
)

// DrawOp is one draw call.
type DrawOp struct {
	Pass   Pass
	Mesh   Mesh
	Shader Shader
	Target Target
	Params Params
}

// Submitter executes draw calls on the GPU. All methods are called from the
// render goroutine.
type Submitter interface {
	Draw(op DrawOp) error
	Clear(target Target, color mgl32.Vec4) error
	Resize(target Target, width, height int) error
	// UpdateVertices replaces the vertex data of a dynamic mesh.
	UpdateVertices(mesh Mesh, data []float32) error
	// UpdateTexture replaces the content of a 16-bit single-channel texture.
	UpdateTexture(tex Texture, width, height int, data []uint16) error
	// CameraTexture returns the GPU name of the camera color texture.
	CameraTexture() uint32
}
