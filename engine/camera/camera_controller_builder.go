package camera

// CameraControllerOption is a functional option for configuring a CameraController.
type CameraControllerOption func(*cameraControllerImpl)

// WithPosition sets the initial world-space position.
//
// Parameters:
//   - position: world-space coordinates
//
// Returns:
//   - CameraControllerOption: functional option to set the position
func WithPosition(position [3]float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.position = position
	}
}

// WithYaw sets the initial horizontal view angle.
//
// Parameters:
//   - yaw: horizontal angle in radians (-π/2 looks down -Z)
//
// Returns:
//   - CameraControllerOption: functional option to set the yaw
func WithYaw(yaw float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.yaw = yaw
	}
}

// WithPitch sets the initial vertical view angle, clamped to ±89 degrees.
//
// Parameters:
//   - pitch: vertical angle in radians (0 = horizontal)
//
// Returns:
//   - CameraControllerOption: functional option to set the pitch
func WithPitch(pitch float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.pitch = pitch
	}
}

// WithSpeed sets the movement speed.
//
// Parameters:
//   - speed: movement speed in world units per second
//
// Returns:
//   - CameraControllerOption: functional option to set the speed
func WithSpeed(speed float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.speed = speed
	}
}

// WithSensitivity sets the mouse look sensitivity.
//
// Parameters:
//   - sensitivity: radians of rotation per pixel of mouse movement
//
// Returns:
//   - CameraControllerOption: functional option to set the sensitivity
func WithSensitivity(sensitivity float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.sensitivity = sensitivity
	}
}
