package render

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// OpKind tells recorded operations apart.
type OpKind int

const (
	OpDraw OpKind = iota
	OpClear
	OpResize
	OpUpload
	OpTexture
)

// Op is a recorded Submitter call.
type Op struct {
	Kind    OpKind
	Draw    DrawOp
	Target  Target
	Color   mgl32.Vec4
	Width   int
	Height  int
	Mesh    Mesh
	Texture Texture
	Count   int
}

// Recorder is a Submitter that keeps every call in order instead of talking
// to a GPU. The headless driver and tests render through it.
type Recorder struct {
	mu      sync.Mutex
	ops     []Op
	sizes   map[Target][2]int
	texture uint32
}

// NewRecorder creates a recorder reporting texture as the camera texture name.
func NewRecorder(texture uint32) *Recorder {
	return &Recorder{sizes: make(map[Target][2]int), texture: texture}
}

func (r *Recorder) Draw(op DrawOp) error {
	op.Params = op.Params.Clone()
	r.record(Op{Kind: OpDraw, Draw: op, Target: op.Target})
	return nil
}

func (r *Recorder) Clear(target Target, color mgl32.Vec4) error {
	r.record(Op{Kind: OpClear, Target: target, Color: color})
	return nil
}

func (r *Recorder) Resize(target Target, width, height int) error {
	r.mu.Lock()
	r.sizes[target] = [2]int{width, height}
	r.mu.Unlock()
	r.record(Op{Kind: OpResize, Target: target, Width: width, Height: height})
	return nil
}

func (r *Recorder) UpdateVertices(mesh Mesh, data []float32) error {
	r.record(Op{Kind: OpUpload, Mesh: mesh, Count: len(data)})
	return nil
}

func (r *Recorder) UpdateTexture(tex Texture, width, height int, data []uint16) error {
	r.record(Op{Kind: OpTexture, Texture: tex, Width: width, Height: height, Count: len(data)})
	return nil
}

func (r *Recorder) CameraTexture() uint32 {
	return r.texture
}

func (r *Recorder) record(op Op) {
	r.mu.Lock()
	r.ops = append(r.ops, op)
	r.mu.Unlock()
}

// Ops returns a copy of every recorded call.
func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Op(nil), r.ops...)
}

// Draws returns the recorded draw calls, optionally restricted to passes.
func (r *Recorder) Draws(passes ...Pass) []DrawOp {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []DrawOp
	for _, op := range r.ops {
		if op.Kind != OpDraw {
			continue
		}
		if len(passes) == 0 || containsPass(passes, op.Draw.Pass) {
			out = append(out, op.Draw)
		}
	}
	return out
}

// Count returns how many calls of kind were recorded.
func (r *Recorder) Count(kind OpKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, op := range r.ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// Size returns the last size a target was resized to.
func (r *Recorder) Size(target Target) (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sizes[target]
	return s[0], s[1]
}

// Reset forgets the recorded calls but keeps target sizes.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.ops = r.ops[:0]
	r.mu.Unlock()
}

func containsPass(passes []Pass, p Pass) bool {
	for _, q := range passes {
		if q == p {
			return true
		}
	}
	return false
}
