package game

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// dragThreshold is how far the pointer may travel, in pixels, before a
// press stops being a click and becomes a map drag.
const dragThreshold = 5.0

// pointer tracks one mouse button gesture so a release can be classified
// as click-to-move or end-of-drag.
type pointer struct {
	down     bool
	dragging bool
	lastX    float64
	lastY    float64
	pressX   float64
	pressY   float64
}

// update consumes this frame's mouse state, panning the view while
// dragging. It reports a click position when the button is released
// without the gesture ever crossing the drag threshold.
func (p *pointer) update(v *View) (clickX, clickY float64, clicked bool) {
	mx, my := ebiten.CursorPosition()
	x, y := float64(mx), float64(my)

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		p.down = true
		p.dragging = false
		p.pressX, p.pressY = x, y
		p.lastX, p.lastY = x, y
		return 0, 0, false
	}

	if p.down && ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		if !p.dragging {
			dx, dy := x-p.pressX, y-p.pressY
			if math.Sqrt(dx*dx+dy*dy) > dragThreshold {
				p.dragging = true
			}
		}
		if p.dragging {
			v.Drag(x-p.lastX, y-p.lastY)
		}
		p.lastX, p.lastY = x, y
		return 0, 0, false
	}

	if p.down && inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft) {
		wasClick := !p.dragging
		p.down = false
		p.dragging = false
		if wasClick {
			return x, y, true
		}
	}
	return 0, 0, false
}
