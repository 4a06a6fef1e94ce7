package renderer

import (
	"fmt"
	"strings"
)

// DeviceInitError reports a failure while bringing up the GPU context:
// requesting an adapter, requesting a device, or obtaining the queue.
// Initialization errors are always fatal; there is no fallback device.
type DeviceInitError struct {
	// Stage names the initialization step that failed ("adapter", "device").
	Stage string
	Err   error
}

func (e *DeviceInitError) Error() string {
	return fmt.Sprintf("gpu init failed at %s: %v", e.Stage, e.Err)
}

func (e *DeviceInitError) Unwrap() error { return e.Err }

// SurfaceConfigError reports a failure while (re)configuring the presentation
// surface, including recreating the MSAA and depth targets for a new size.
type SurfaceConfigError struct {
	Width  int
	Height int
	Err    error
}

func (e *SurfaceConfigError) Error() string {
	return fmt.Sprintf("surface configure %dx%d failed: %v", e.Width, e.Height, e.Err)
}

func (e *SurfaceConfigError) Unwrap() error { return e.Err }

// FrameAcquisitionError reports a failure to acquire the next surface texture.
// Transient failures (surface outdated, suboptimal, or timed out) are expected
// around resizes; the frame loop reconfigures the surface and retries once.
// Fatal failures (device lost, out of memory) propagate to the caller.
type FrameAcquisitionError struct {
	// Transient is true when reconfiguring the surface and retrying may succeed.
	Transient bool
	Err       error
}

func (e *FrameAcquisitionError) Error() string {
	kind := "fatal"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("frame acquisition failed (%s): %v", kind, e.Err)
}

func (e *FrameAcquisitionError) Unwrap() error { return e.Err }

// classifyAcquireError wraps a surface acquisition failure, deciding whether
// it is transient. wgpu-native reports the surface status in the error text,
// so classification matches on the status keywords. Unknown failures are
// treated as fatal rather than risking an acquire loop.
func classifyAcquireError(err error) *FrameAcquisitionError {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "device lost"), strings.Contains(msg, "out of memory"):
		return &FrameAcquisitionError{Transient: false, Err: err}
	case strings.Contains(msg, "outdated"),
		strings.Contains(msg, "suboptimal"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "timed out"),
		strings.Contains(msg, "lost"):
		return &FrameAcquisitionError{Transient: true, Err: err}
	default:
		return &FrameAcquisitionError{Transient: false, Err: err}
	}
}

// ResourceUploadError reports a failed mesh, texture, or material upload.
// The scene drops the affected asset and keeps rendering without it, so the
// error carries enough context to identify what was lost.
type ResourceUploadError struct {
	// Resource is the label of the asset being uploaded.
	Resource string
	// Op names the upload operation ("mesh", "texture", "material").
	Op  string
	Err error
}

func (e *ResourceUploadError) Error() string {
	return fmt.Sprintf("upload %s %q failed: %v", e.Op, e.Resource, e.Err)
}

func (e *ResourceUploadError) Unwrap() error { return e.Err }

// PipelineBuildError reports a failed pipeline build: WGSL parsing, shader
// module compilation, layout mismatch, or GPU pipeline creation. Pipeline
// builds are fatal; there is no fallback pipeline to substitute.
type PipelineBuildError struct {
	// PipelineKey identifies the pipeline being built.
	PipelineKey string
	// Stage names the build step that failed ("parse", "layout", "compile").
	Stage string
	Err   error
}

func (e *PipelineBuildError) Error() string {
	return fmt.Sprintf("pipeline %q build failed at %s: %v", e.PipelineKey, e.Stage, e.Err)
}

func (e *PipelineBuildError) Unwrap() error { return e.Err }

// DirtyMirrorError rejects frame recording while a uniform mirror has CPU
// updates that were never flushed to its GPU buffer. Draws recorded against
// a stale mirror would silently render with old data.
type DirtyMirrorError struct {
	// Mirrors lists the labels of the dirty mirrors.
	Mirrors []string
}

func (e *DirtyMirrorError) Error() string {
	return fmt.Sprintf("frame recording rejected: unwritten uniform mirrors: %s", strings.Join(e.Mirrors, ", "))
}

// FramePhaseError reports a frame lifecycle call made in the wrong phase,
// e.g. DrawCall before BeginFrame or a second submit in one frame.
type FramePhaseError struct {
	Op    string
	Phase FramePhase
}

func (e *FramePhaseError) Error() string {
	return fmt.Sprintf("%s called in frame phase %s", e.Op, e.Phase)
}
