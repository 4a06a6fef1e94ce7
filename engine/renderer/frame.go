package renderer

// FramePhase tracks where the renderer is within a single frame's lifecycle.
// A frame moves through the phases strictly in order:
//
//	Idle → Acquired → Recorded → Submitted → Presented → (Idle)
//
// BeginFrame acquires the surface texture, DrawCall records commands,
// EndFrame submits the command buffer exactly once, and Present hands the
// frame to the display. Calls made out of order fail with FramePhaseError
// instead of corrupting GPU state.
type FramePhase int

const (
	// FramePhaseIdle means no frame is in flight.
	FramePhaseIdle FramePhase = iota
	// FramePhaseAcquired means the surface texture is held and the render pass is open.
	FramePhaseAcquired
	// FramePhaseRecorded means at least one draw has been recorded into the pass.
	FramePhaseRecorded
	// FramePhaseSubmitted means the command buffer was submitted to the queue.
	FramePhaseSubmitted
	// FramePhasePresented means the frame was handed to the display surface.
	FramePhasePresented
)

func (p FramePhase) String() string {
	switch p {
	case FramePhaseIdle:
		return "Idle"
	case FramePhaseAcquired:
		return "Acquired"
	case FramePhaseRecorded:
		return "Recorded"
	case FramePhaseSubmitted:
		return "Submitted"
	case FramePhasePresented:
		return "Presented"
	default:
		return "Unknown"
	}
}

// frameTracker enforces the frame lifecycle ordering. Callers hold the
// renderer mutex; the tracker itself is not synchronized.
type frameTracker struct {
	phase FramePhase
}

// advance moves the tracker to the target phase if the current phase is one
// of the allowed source phases, otherwise returns a FramePhaseError.
func (t *frameTracker) advance(op string, to FramePhase, from ...FramePhase) error {
	for _, f := range from {
		if t.phase == f {
			t.phase = to
			return nil
		}
	}
	return &FramePhaseError{Op: op, Phase: t.phase}
}

// reset returns the tracker to Idle, abandoning any in-flight frame.
func (t *frameTracker) reset() {
	t.phase = FramePhaseIdle
}

// MirrorSource is implemented by components that keep a CPU-side mirror of a
// GPU uniform or storage buffer (camera, light, instance list). The renderer
// refuses to record draws while any tracked mirror is dirty, because the
// draws would consume stale GPU data.
type MirrorSource interface {
	// MirrorLabel identifies the mirror in errors and logs.
	MirrorLabel() string

	// MirrorDirty reports whether the CPU mirror has updates that have not
	// been flushed to the GPU buffer.
	MirrorDirty() bool
}
