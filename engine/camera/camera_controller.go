package camera

import (
	"sync"

	"github.com/chewxy/math32"
	"github.com/kestrel3d/kestrel/common"
)

// maxPitch keeps the view direction off the vertical axis so the view matrix
// never degenerates. Matches the conventional 89 degree first-person clamp.
const maxPitch = 89.0 * (math32.Pi / 180.0)

// cameraControllerImpl is the implementation of the CameraController interface.
type cameraControllerImpl struct {
	mu *sync.Mutex

	position [3]float32
	// yaw is the horizontal view angle in radians; -π/2 looks down -Z.
	yaw float32
	// pitch is the vertical view angle in radians, clamped to ±maxPitch.
	pitch float32

	// movement input amounts, 0 or 1 while the corresponding key is held
	forward, backward float32
	left, right       float32
	up, down          float32

	speed       float32
	sensitivity float32
}

// CameraController defines a first-person fly controller. It owns the camera's
// world position and view angles, accumulates movement input from held keys,
// and integrates motion each tick. The Camera reads Position and Direction to
// build its view matrix.
type CameraController interface {
	// Position returns the camera's world-space position.
	//
	// Returns:
	//   - [3]float32: world-space camera position
	Position() [3]float32

	// SetPosition sets the camera's world-space position directly.
	//
	// Parameters:
	//   - position: world-space coordinates
	SetPosition(position [3]float32)

	// Direction returns the unit view direction derived from yaw and pitch.
	//
	// Returns:
	//   - [3]float32: the normalized view direction
	Direction() [3]float32

	// Yaw returns the horizontal view angle in radians.
	//
	// Returns:
	//   - float32: the yaw angle
	Yaw() float32

	// SetYaw sets the horizontal view angle in radians.
	//
	// Parameters:
	//   - yaw: the new yaw angle
	SetYaw(yaw float32)

	// Pitch returns the vertical view angle in radians.
	//
	// Returns:
	//   - float32: the pitch angle
	Pitch() float32

	// SetPitch sets the vertical view angle in radians, clamped to ±89 degrees.
	//
	// Parameters:
	//   - pitch: the new pitch angle
	SetPitch(pitch float32)

	// ProcessKey updates the held-key movement state for a key press or release.
	// W/S move along the view heading, A/D strafe, Space/LeftShift move
	// vertically. Unhandled keys are reported so callers can route them elsewhere.
	//
	// Parameters:
	//   - key: the key code (see common.Key*)
	//   - pressed: true on press, false on release
	//
	// Returns:
	//   - bool: true if the key maps to a movement control
	ProcessKey(key int, pressed bool) bool

	// ProcessMouse applies a relative mouse movement to the view angles.
	// Horizontal movement turns (yaw), vertical movement tilts (pitch, clamped).
	//
	// Parameters:
	//   - dx: horizontal mouse delta in pixels
	//   - dy: vertical mouse delta in pixels
	ProcessMouse(dx, dy float32)

	// Update integrates held movement input over the elapsed time, translating
	// the position along the current heading. Horizontal movement ignores pitch
	// so looking down does not slow walking; vertical movement is world-axis.
	//
	// Parameters:
	//   - dt: elapsed time in seconds since the previous update
	Update(dt float32)
}

var _ CameraController = &cameraControllerImpl{}

// NewCameraController creates a fly controller with the provided options.
// Defaults: origin position, looking down -Z, 4 units/second move speed.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - CameraController: the newly created controller
func NewCameraController(options ...CameraControllerOption) CameraController {
	cc := &cameraControllerImpl{
		mu:          &sync.Mutex{},
		yaw:         -math32.Pi / 2, // facing -Z
		speed:       4.0,
		sensitivity: 0.004,
	}
	for _, option := range options {
		option(cc)
	}
	cc.pitch = clampPitch(cc.pitch)
	return cc
}

func (cc *cameraControllerImpl) Position() [3]float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.position
}

func (cc *cameraControllerImpl) SetPosition(position [3]float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.position = position
}

func (cc *cameraControllerImpl) Direction() [3]float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.direction()
}

func (cc *cameraControllerImpl) Yaw() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.yaw
}

func (cc *cameraControllerImpl) SetYaw(yaw float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.yaw = yaw
}

func (cc *cameraControllerImpl) Pitch() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.pitch
}

func (cc *cameraControllerImpl) SetPitch(pitch float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.pitch = clampPitch(pitch)
}

func (cc *cameraControllerImpl) ProcessKey(key int, pressed bool) bool {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	amount := float32(0)
	if pressed {
		amount = 1
	}

	switch key {
	case common.KeyW, common.KeyUp:
		cc.forward = amount
	case common.KeyS, common.KeyDown:
		cc.backward = amount
	case common.KeyA, common.KeyLeft:
		cc.left = amount
	case common.KeyD, common.KeyRight:
		cc.right = amount
	case common.KeySpace:
		cc.up = amount
	case common.KeyLeftShift:
		cc.down = amount
	default:
		return false
	}
	return true
}

func (cc *cameraControllerImpl) ProcessMouse(dx, dy float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	cc.yaw += dx * cc.sensitivity
	cc.pitch = clampPitch(cc.pitch - dy*cc.sensitivity)
}

func (cc *cameraControllerImpl) Update(dt float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	sinYaw, cosYaw := math32.Sincos(cc.yaw)

	// Flattened heading vectors: walking speed is independent of pitch.
	forward := [3]float32{cosYaw, 0, sinYaw}
	right := [3]float32{-sinYaw, 0, cosYaw}

	step := cc.speed * dt
	cc.position = common.Add3(cc.position, common.Scale3(forward, (cc.forward-cc.backward)*step))
	cc.position = common.Add3(cc.position, common.Scale3(right, (cc.right-cc.left)*step))
	cc.position[1] += (cc.up - cc.down) * step
}

// direction derives the unit view vector from yaw and pitch.
// Caller must hold the mutex.
func (cc *cameraControllerImpl) direction() [3]float32 {
	sinPitch, cosPitch := math32.Sincos(cc.pitch)
	sinYaw, cosYaw := math32.Sincos(cc.yaw)
	return [3]float32{cosPitch * cosYaw, sinPitch, cosPitch * sinYaw}
}

func clampPitch(pitch float32) float32 {
	if pitch > maxPitch {
		return maxPitch
	}
	if pitch < -maxPitch {
		return -maxPitch
	}
	return pitch
}
