package sim

import (
	"io/fs"
	"testing/fstest"

	"github.com/arlens/flicker/internal/render"
)

// Assets returns placeholder content for every required render asset, with
// a correctly sized DFG table.
func Assets() fs.FS {
	fsys := fstest.MapFS{}
	for _, name := range render.RequiredAssets {
		fsys[name] = &fstest.MapFile{Data: []byte("# " + name + "\n")}
	}
	fsys[string(render.TextureDFG)] = &fstest.MapFile{Data: make([]byte, render.DFGSize)}
	return fsys
}
