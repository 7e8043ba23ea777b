package game

import "github.com/cb-v4s/ghoulies/internal/iso"

// View owns the camera state of one room: the pan offset, the viewport
// size and the derived visible tile range. The old per-render closure
// globals live here as one struct handed to input and draw.
type View struct {
	cfg Config

	Pan     iso.Offset
	Width   int
	Height  int
	Visible iso.Range
}

func NewView(cfg Config, width, height int) *View {
	v := &View{cfg: cfg.withDefaults(), Width: width, Height: height}
	v.recompute()
	return v
}

// Drag shifts the map under the viewport and refreshes the visible range.
func (v *View) Drag(dx, dy float64) {
	v.Pan.X += dx
	v.Pan.Y += dy
	v.recompute()
}

// SetPan places the camera at an absolute offset.
func (v *View) SetPan(x, y float64) {
	v.Pan = iso.Offset{X: x, Y: y}
	v.recompute()
}

// Resize adapts the view to a new drawable surface. Stale ranges tear at
// the viewport edges, so this must run on every size change.
func (v *View) Resize(width, height int) {
	if width == v.Width && height == v.Height {
		return
	}
	v.Width, v.Height = width, height
	v.recompute()
}

func (v *View) recompute() {
	v.Visible = iso.ComputeRenderRange(v.Pan, v.Width, v.Height, v.cfg.Geometry, v.cfg.GridSize)
}
