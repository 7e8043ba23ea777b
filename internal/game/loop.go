package game

// Loop is a fixed-timestep scheduler: update runs on a deterministic
// cadence regardless of how fast frames arrive, render runs exactly once
// per frame. Frame timestamps are fed in by the caller, which keeps the
// loop independent of any particular frame source and directly testable.
type Loop struct {
	lastFrameTime float64 // ms
	accumulated   float64 // ms
	timeStep      float64 // ms per update
	haveFrame     bool
	running       bool

	update func(dtMs float64)
	render func()
}

// DefaultTimeStep is the update cadence in milliseconds (60 updates/s).
const DefaultTimeStep = 1000.0 / 60.0

// maxCatchUpSteps bounds how much backlog one frame may drain. A tab
// coming back from the background hands us a huge delta; without the cap
// the loop would spin through thousands of updates before rendering.
const maxCatchUpSteps = 5

func NewLoop(update func(dtMs float64), render func()) *Loop {
	return &Loop{
		timeStep: DefaultTimeStep,
		update:   update,
		render:   render,
	}
}

func (l *Loop) Start() {
	if l.running {
		return
	}
	l.running = true
	l.haveFrame = false
	l.accumulated = 0
}

// Stop halts the loop. Safe to call repeatedly.
func (l *Loop) Stop() {
	l.running = false
}

func (l *Loop) Running() bool { return l.running }

// Frame advances the loop for one displayed frame at the given timestamp
// (milliseconds, any monotonic origin). It runs update zero or more times
// to catch up to wall clock, then render once.
func (l *Loop) Frame(nowMs float64) {
	if !l.running {
		return
	}
	if !l.haveFrame {
		// First frame after Start: establish the time origin, no delta.
		l.lastFrameTime = nowMs
		l.haveFrame = true
		l.render()
		return
	}

	delta := nowMs - l.lastFrameTime
	l.lastFrameTime = nowMs
	l.accumulated += delta

	if cap := l.timeStep * maxCatchUpSteps; l.accumulated > cap {
		l.accumulated = cap
	}

	for l.accumulated >= l.timeStep {
		l.update(l.timeStep)
		l.accumulated -= l.timeStep
	}
	l.render()
}
