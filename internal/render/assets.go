package render

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
)

// ErrMissingAsset is returned when a required asset cannot be read.
var ErrMissingAsset = errors.New("failed to read a required asset file")

// DFGSize is the byte length of the 64x64 two-channel half-float DFG table.
const DFGSize = 64 * 64 * 2 * 2

// RequiredAssets lists every file the renderer loads at surface creation.
var RequiredAssets = []string{
	string(TextureDFG),
	string(TexturePawnAlbedo),
	string(TexturePawnAlbedoInstant),
	string(TexturePawnRoughnessMetalAO),
	string(TextureTrigrid),
	string(MeshPawn),
	string(MeshFlicker),
	"shaders/point_cloud.vert",
	"shaders/point_cloud.frag",
	"shaders/environmental_hdr.vert",
	"shaders/environmental_hdr.frag",
	"shaders/flicker.vert",
	"shaders/flicker.frag",
	"shaders/label.vert",
	"shaders/label.frag",
	"shaders/plane.vert",
	"shaders/plane.frag",
}

// Assets holds the raw bytes of the required assets.
type Assets struct {
	files map[string][]byte
}

// LoadAssets reads every required asset from fsys. The first missing or
// malformed file aborts the load.
func LoadAssets(fsys fs.FS) (*Assets, error) {
	a := &Assets{files: make(map[string][]byte, len(RequiredAssets))}
	for _, name := range RequiredAssets {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMissingAsset, name, err)
		}
		a.files[name] = data
	}
	if n := len(a.files[string(TextureDFG)]); n != DFGSize {
		return nil, fmt.Errorf("%w: %s: want %d bytes, got %d", ErrMissingAsset, TextureDFG, DFGSize, n)
	}
	return a, nil
}

// Bytes returns the content of a loaded asset.
func (a *Assets) Bytes(name string) ([]byte, bool) {
	b, ok := a.files[name]
	return b, ok
}

// Shaders returns the base names of the loaded shader programs.
func (a *Assets) Shaders() []string {
	seen := make(map[string]bool)
	var out []string
	for _, name := range RequiredAssets {
		if path.Dir(name) != "shaders" {
			continue
		}
		base := name[:len(name)-len(path.Ext(name))]
		if !seen[base] {
			seen[base] = true
			out = append(out, path.Base(base))
		}
	}
	return out
}
