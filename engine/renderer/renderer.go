package renderer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/kestrel3d/kestrel/engine/renderer/bind_group_provider"
	"github.com/kestrel3d/kestrel/engine/renderer/pipeline"
)

// ErrRenderingSuspended is returned by BeginFrame while the surface has zero area,
// typically because the window is minimized. Rendering resumes automatically on the
// next Resize with positive dimensions.
var ErrRenderingSuspended = errors.New("rendering suspended: zero-area surface")

// FrameStats is a snapshot of per-frame counters maintained by the renderer.
type FrameStats struct {
	// FramesPresented is the total number of frames presented since Init.
	FramesPresented uint64
	// DrawCalls is the number of draw calls recorded in the most recent frame.
	DrawCalls int
	// InstancesDrawn is the total instance count across draw calls in the most recent frame.
	InstancesDrawn uint64
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu      *sync.Mutex
	backend RendererBackend

	// pipelineCache holds registered pipelines keyed by pipeline key.
	pipelineCache map[string]pipeline.Pipeline

	// mirrors are the CPU-side uniform mirrors checked for unflushed edits before each draw.
	mirrors []MirrorSource

	frame frameTracker

	// lastWidth/lastHeight are the most recent positive surface dimensions, used to
	// reconfigure the surface when a transient acquisition failure occurs.
	lastWidth, lastHeight int
	// suspended is true while the surface has zero area and frames are skipped.
	suspended bool

	stats          FrameStats
	frameDraws     int
	frameInstances uint64

	// construction-time options, applied during Init
	pendingPresentMode   *PresentMode
	pendingMSAA          *MSAASampleCount
	forceFallbackAdapter bool
}

// Renderer is the top-level render orchestrator. It owns the GPU backend, the pipeline
// cache, and the per-frame lifecycle. A frame advances through a fixed phase order:
// BeginFrame acquires the surface, DrawCall records commands, EndFrame submits them,
// and Present displays the result. Calls made out of order return a FramePhaseError.
type Renderer interface {
	// Init brings up the GPU backend against a window surface and configures it for the
	// given dimensions. Pipelines registered via builder options are compiled here, so
	// Init must complete before any frame work.
	//
	// Parameters:
	//   - surfaceDescriptor: the platform surface descriptor obtained from the window
	//   - width: the initial surface width in pixels
	//   - height: the initial surface height in pixels
	//
	// Returns:
	//   - error: a DeviceInitError, SurfaceConfigError or PipelineBuildError if startup fails
	Init(surfaceDescriptor *wgpu.SurfaceDescriptor, width, height int) error

	// Backend returns the underlying GPU backend for direct resource operations
	// (mesh buffers, bind groups, textures, samplers).
	//
	// Returns:
	//   - RendererBackend: the active backend, or nil before Init
	Backend() RendererBackend

	// Pipeline returns the cached pipeline registered under the given key, or nil.
	//
	// Parameters:
	//   - key: the pipeline key
	//
	// Returns:
	//   - pipeline.Pipeline: the cached pipeline or nil
	Pipeline(key string) pipeline.Pipeline

	// RegisterPipeline compiles a pipeline against the current surface format and stores
	// it in the cache under its pipeline key. Registering a key twice replaces the
	// previous entry.
	//
	// Parameters:
	//   - p: the pipeline to compile and cache
	//
	// Returns:
	//   - error: a PipelineBuildError if compilation fails
	RegisterPipeline(p pipeline.Pipeline) error

	// Resize reconfigures the surface for new window dimensions. A zero-area size
	// (either dimension <= 0) is not an error: it suspends rendering until the next
	// resize with positive dimensions.
	//
	// Parameters:
	//   - width: the new surface width in pixels
	//   - height: the new surface height in pixels
	//
	// Returns:
	//   - error: a SurfaceConfigError if reconfiguration fails
	Resize(width, height int) error

	// Suspended reports whether rendering is currently suspended due to a zero-area surface.
	//
	// Returns:
	//   - bool: true while frames are being skipped
	Suspended() bool

	// TrackMirrors registers CPU-side uniform mirrors whose dirty state is checked
	// before every draw call. Recording a draw while any tracked mirror has unflushed
	// edits fails with a DirtyMirrorError.
	//
	// Parameters:
	//   - sources: the mirrors to track
	TrackMirrors(sources ...MirrorSource)

	// WriteBuffers stages buffer writes on the GPU queue. Writes are ordered before
	// any subsequently submitted command buffer, so flushing dirty mirrors here before
	// recording draws guarantees the frame samples consistent data.
	//
	// Parameters:
	//   - writes: the buffer writes to stage
	WriteBuffers(writes []bind_group_provider.BufferWrite)

	// BeginFrame acquires the next surface texture and opens the frame's render pass.
	// A transient acquisition failure (outdated or timed-out swapchain) triggers one
	// surface reconfiguration and a single retry before the error is surfaced. While
	// rendering is suspended, BeginFrame returns ErrRenderingSuspended without touching
	// the GPU.
	//
	// Returns:
	//   - error: ErrRenderingSuspended, a FramePhaseError, or a FrameAcquisitionError
	BeginFrame() error

	// DrawCall records one instanced indexed draw into the current frame. Must be called
	// between BeginFrame and EndFrame. Fails if any tracked mirror has unflushed edits.
	// The index range selects the slice of the provider's index buffer to draw, so
	// multi-material meshes can issue one draw per material group. An indexCount of
	// zero draws the provider's full index buffer.
	//
	// Parameters:
	//   - pipelineKey: the key of a registered pipeline to bind
	//   - meshProvider: the provider holding vertex and index buffers
	//   - firstIndex: the offset into the index buffer to start drawing at
	//   - indexCount: the number of indices to draw, or 0 for the full buffer
	//   - instanceCount: the number of instances to draw
	//   - bindGroups: the bind group providers set on the pass in group-index order
	//
	// Returns:
	//   - error: a FramePhaseError, DirtyMirrorError, or an error for an unknown pipeline key
	DrawCall(pipelineKey string, meshProvider bind_group_provider.BindGroupProvider, firstIndex, indexCount, instanceCount uint32, bindGroups []bind_group_provider.BindGroupProvider) error

	// EndFrame closes the render pass and submits the frame's command buffer to the GPU
	// queue. A frame with zero draw calls is valid and clears the surface.
	//
	// Returns:
	//   - error: a FramePhaseError, or a submission error (the frame is abandoned)
	EndFrame() error

	// Present displays the submitted frame and returns the surface texture to the
	// swapchain. Completes the frame cycle and resets the phase to idle.
	//
	// Returns:
	//   - error: a FramePhaseError if no frame has been submitted
	Present() error

	// Stats returns a snapshot of the renderer's frame counters.
	//
	// Returns:
	//   - FrameStats: the current counters
	Stats() FrameStats

	// Release drops any in-flight frame and releases cached pipelines.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer with the provided options. The renderer is inert
// until Init is called with a window surface.
//
// Parameters:
//   - opts: a variadic list of RendererBuilderOption functions to configure the renderer
//
// Returns:
//   - Renderer: a new Renderer instance
func NewRenderer(opts ...RendererBuilderOption) Renderer {
	r := &renderer{
		mu:            &sync.Mutex{},
		pipelineCache: make(map[string]pipeline.Pipeline),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *renderer) Init(surfaceDescriptor *wgpu.SurfaceDescriptor, width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sampleCount := MSAA4x
	if r.pendingMSAA != nil {
		sampleCount = *r.pendingMSAA
	}

	backend, err := newWGPUContext(surfaceDescriptor, r.forceFallbackAdapter, sampleCount)
	if err != nil {
		return err
	}
	r.backend = backend

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}

	if err := r.backend.ConfigureSurface(width, height); err != nil {
		return err
	}
	r.lastWidth, r.lastHeight = width, height

	// Pipelines compile against the surface format, so registration happens after
	// the first surface configuration.
	for _, p := range r.pipelineCache {
		if err := r.backend.RegisterRenderPipeline(p); err != nil {
			return err
		}
	}

	return nil
}

func (r *renderer) Backend() RendererBackend {
	return r.backend
}

func (r *renderer) Pipeline(key string) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache[key]
}

func (r *renderer) RegisterPipeline(p pipeline.Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.backend != nil {
		if err := r.backend.RegisterRenderPipeline(p); err != nil {
			return err
		}
	}
	r.pipelineCache[p.PipelineKey()] = p
	return nil
}

func (r *renderer) Resize(width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if width <= 0 || height <= 0 {
		r.suspended = true
		return nil
	}

	if err := r.backend.ConfigureSurface(width, height); err != nil {
		return err
	}
	r.lastWidth, r.lastHeight = width, height
	r.suspended = false
	return nil
}

func (r *renderer) Suspended() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.suspended
}

func (r *renderer) TrackMirrors(sources ...MirrorSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mirrors = append(r.mirrors, sources...)
}

func (r *renderer) WriteBuffers(writes []bind_group_provider.BufferWrite) {
	r.backend.WriteBuffers(writes)
}

func (r *renderer) BeginFrame() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.suspended {
		return ErrRenderingSuspended
	}

	if err := r.frame.advance("BeginFrame", FramePhaseAcquired, FramePhaseIdle); err != nil {
		return err
	}

	err := r.backend.BeginFrame()
	if err != nil {
		var acquireErr *FrameAcquisitionError
		if errors.As(err, &acquireErr) && acquireErr.Transient {
			// A stale swapchain is recoverable: reconfigure at the last known
			// good size and retry once.
			if cfgErr := r.backend.ConfigureSurface(r.lastWidth, r.lastHeight); cfgErr != nil {
				r.frame.reset()
				return cfgErr
			}
			err = r.backend.BeginFrame()
		}
	}
	if err != nil {
		r.frame.reset()
		return err
	}

	r.frameDraws = 0
	r.frameInstances = 0
	return nil
}

func (r *renderer) DrawCall(pipelineKey string, meshProvider bind_group_provider.BindGroupProvider, firstIndex, indexCount, instanceCount uint32, bindGroups []bind_group_provider.BindGroupProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.frame.advance("DrawCall", FramePhaseRecorded, FramePhaseAcquired, FramePhaseRecorded); err != nil {
		return err
	}

	if dirty := r.dirtyMirrors(); len(dirty) > 0 {
		return &DirtyMirrorError{Mirrors: dirty}
	}

	p := r.pipelineCache[pipelineKey]
	if p == nil {
		return fmt.Errorf("no pipeline registered under key %q", pipelineKey)
	}

	r.backend.DrawCall(p, meshProvider, firstIndex, indexCount, instanceCount, bindGroups)
	r.frameDraws++
	r.frameInstances += uint64(instanceCount)
	return nil
}

func (r *renderer) EndFrame() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.frame.advance("EndFrame", FramePhaseSubmitted, FramePhaseAcquired, FramePhaseRecorded); err != nil {
		return err
	}

	if err := r.backend.EndFrame(); err != nil {
		// The command buffer could not be submitted; drop the acquired surface
		// so the next frame can start clean.
		r.backend.ReleaseFrame()
		r.frame.reset()
		return err
	}
	return nil
}

func (r *renderer) Present() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.frame.advance("Present", FramePhasePresented, FramePhaseSubmitted); err != nil {
		return err
	}

	r.backend.Present()

	r.stats.FramesPresented++
	r.stats.DrawCalls = r.frameDraws
	r.stats.InstancesDrawn = r.frameInstances
	r.frame.reset()
	return nil
}

func (r *renderer) Stats() FrameStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.backend != nil {
		r.backend.ReleaseFrame()
	}
	r.pipelineCache = make(map[string]pipeline.Pipeline)
	r.mirrors = nil
	r.frame.reset()
}

// dirtyMirrors returns the labels of all tracked mirrors with unflushed edits.
func (r *renderer) dirtyMirrors() []string {
	var dirty []string
	for _, m := range r.mirrors {
		if m.MirrorDirty() {
			dirty = append(dirty, m.MirrorLabel())
		}
	}
	return dirty
}
