package render

import (
	"maps"

	"github.com/go-gl/mathgl/mgl32"
)

// Params holds shader inputs keyed by uniform name. Values are one of
// mgl32.Mat4, mgl32.Vec4, mgl32.Vec3, float32, bool, string, Texture or []float32.
type Params map[string]any

// Uniform names shared by the composer and submitters.
const (
	UModelView           = "u_ModelView"
	UModelViewProjection = "u_ModelViewProjection"
	UColor               = "u_Color"
	UPointSize           = "u_PointSize"
	UAlbedoTexture       = "u_AlbedoTexture"
	ULabel               = "u_Label"
	UCameraPose          = "u_CameraPose"
	UViewInverse         = "u_ViewInverse"
	UViewLightDirection  = "u_ViewLightDirection"
	ULightIntensity      = "u_LightIntensity"
	ULightEstimateValid  = "u_LightEstimateIsValid"
	USphericalHarmonics  = "u_SphericalHarmonicsCoefficients"
	UUseOcclusion        = "u_UseOcclusion"
	UZNear               = "u_ZNear"
	UZFar                = "u_ZFar"
	ULabelOrigin         = "u_LabelOrigin"
	UCameraColorTexture  = "u_CameraColorTexture"
	UCameraDepthTexture  = "u_CameraDepthTexture"
	UDepthVisualization  = "u_DepthColorVisualization"
	UPlaneNormal         = "u_PlaneNormal"
	UVirtualSceneTexture = "u_VirtualSceneColorTexture"
)

// Set stores v under name and returns p for chaining.
func (p Params) Set(name string, v any) Params {
	p[name] = v
	return p
}

// Mat4 returns the matrix stored under name.
func (p Params) Mat4(name string) (mgl32.Mat4, bool) {
	v, ok := p[name].(mgl32.Mat4)
	return v, ok
}

// Vec4 returns the vector stored under name.
func (p Params) Vec4(name string) (mgl32.Vec4, bool) {
	v, ok := p[name].(mgl32.Vec4)
	return v, ok
}

// Bool returns the flag stored under name.
func (p Params) Bool(name string) (bool, bool) {
	v, ok := p[name].(bool)
	return v, ok
}

// String returns the text stored under name.
func (p Params) String(name string) (string, bool) {
	v, ok := p[name].(string)
	return v, ok
}

// Texture returns the texture bound under name.
func (p Params) Texture(name string) (Texture, bool) {
	v, ok := p[name].(Texture)
	return v, ok
}

// Merge copies every value of other into p.
func (p Params) Merge(other Params) Params {
	maps.Copy(p, other)
	return p
}

// Clone returns a shallow copy. Slice values are copied too.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		if s, ok := v.([]float32); ok {
			v = append([]float32(nil), s...)
		}
		out[k] = v
	}
	return out
}
