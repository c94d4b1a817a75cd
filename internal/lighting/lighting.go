// Package lighting turns the provider's environmental HDR estimate into the
// shader inputs of the virtual object.
package lighting

import (
	"errors"
	"fmt"

	"github.com/arlens/flicker/internal/render"
	"github.com/arlens/flicker/internal/tracking"
	"github.com/go-gl/mathgl/mgl32"
)

// Coefficients is the number of spherical-harmonics floats: 9 RGB bands.
const Coefficients = 9 * 3

// ErrCoefficients is returned for a harmonics array of the wrong length.
var ErrCoefficients = errors.New("spherical harmonics must have 27 coefficients")

// BandFactors scale each harmonics band for irradiance reconstruction.
var BandFactors = [9]float32{
	0.282095,
	-0.325735, 0.325735, -0.325735,
	0.273137, -0.273137, 0.078848, -0.273137, 0.136569,
}

// ScaleHarmonics writes coeffs scaled by BandFactors into dst.
func ScaleHarmonics(dst *[Coefficients]float32, coeffs []float32) error {
	if len(coeffs) != Coefficients {
		return fmt.Errorf("%w: got %d", ErrCoefficients, len(coeffs))
	}
	for i, c := range coeffs {
		dst[i] = c * BandFactors[i/3]
	}
	return nil
}

// ViewLightDirection transforms a world-space light direction into view space.
func ViewLightDirection(view mgl32.Mat4, dir mgl32.Vec3) mgl32.Vec4 {
	return view.Mul4x1(dir.Vec4(0))
}

// Apply sets the lighting uniforms of params from the estimate. An invalid
// estimate only clears the validity flag; the other uniforms keep their last
// values. sh is caller-owned scratch space.
func Apply(params render.Params, est tracking.LightEstimate, view mgl32.Mat4, sh *[Coefficients]float32) error {
	if est == nil || !est.Valid() {
		params.Set(render.ULightEstimateValid, false)
		return nil
	}
	if err := ScaleHarmonics(sh, est.AmbientSphericalHarmonics()); err != nil {
		params.Set(render.ULightEstimateValid, false)
		return err
	}
	params.
		Set(render.ULightEstimateValid, true).
		Set(render.UViewInverse, view.Inv()).
		Set(render.UViewLightDirection, ViewLightDirection(view, est.MainLightDirection())).
		Set(render.ULightIntensity, est.MainLightIntensity()).
		Set(render.USphericalHarmonics, sh[:])
	return nil
}
