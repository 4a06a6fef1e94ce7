package light

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/kestrel3d/kestrel/engine/renderer/bind_group_provider"
)

// lightCount is an atomic counter used to generate unique bind group provider names for each light instance.
var lightCount atomic.Uint64

// lightImpl is the implementation of the Light interface.
type lightImpl struct {
	mu *sync.Mutex

	position [3]float32
	color    [3]float32

	uniform     GPULightUniform
	lastUniform GPULightUniform
	dirty       bool

	bindGroupProvider bind_group_provider.BindGroupProvider
}

// Light is a point light source contributing to the lit forward rendering pass.
// Its position and color are mirrored into a GPU uniform buffer bound at
// group 1; the light tracks whether the GPU copy is stale the same way the
// camera does, so the renderer can refuse to record a frame against stale data.
type Light interface {
	// Position returns the world-space position of the light.
	//
	// Returns:
	//   - [3]float32: position as (x, y, z)
	Position() [3]float32

	// Color returns the RGB color of the light.
	//
	// Returns:
	//   - [3]float32: color as (r, g, b)
	Color() [3]float32

	// Uniform returns the current GPU-facing light uniform data.
	//
	// Returns:
	//   - GPULightUniform: the uniform snapshot
	Uniform() GPULightUniform

	// BindGroupProvider returns the light's bind group provider for GPU resources.
	// Returns nil if not set.
	//
	// Returns:
	//   - bind_group_provider.BindGroupProvider: the bind group provider or nil
	BindGroupProvider() bind_group_provider.BindGroupProvider

	// MirrorLabel identifies the light when the renderer reports stale GPU state.
	//
	// Returns:
	//   - string: the mirror label
	MirrorLabel() string

	// MirrorDirty reports whether the uniform has changed since the last MarkClean.
	//
	// Returns:
	//   - bool: true if the GPU-side buffer is stale
	MirrorDirty() bool

	// MarkClean records that the current uniform has been uploaded to the GPU.
	MarkClean()

	// SetPosition sets the world-space position of the light.
	//
	// Parameters:
	//   - position: world-space coordinates
	SetPosition(position [3]float32)

	// SetColor sets the RGB color of the light.
	//
	// Parameters:
	//   - color: color as (r, g, b)
	SetColor(color [3]float32)

	// SetBindGroupProvider sets the light's bind group provider.
	//
	// Parameters:
	//   - provider: the bind group provider to set
	SetBindGroupProvider(provider bind_group_provider.BindGroupProvider)
}

var _ Light = &lightImpl{}

// NewLight creates a new point light with sensible defaults and any provided
// options applied.
//
// Parameters:
//   - opts: variadic list of LightBuilderOption functions to configure the light
//
// Returns:
//   - Light: a new Light instance
func NewLight(opts ...LightBuilderOption) Light {
	l := &lightImpl{
		mu:       &sync.Mutex{},
		position: [3]float32{2, 2, 2},
		color:    [3]float32{1, 1, 1},
		bindGroupProvider: bind_group_provider.NewBindGroupProvider(
			"light_" + strconv.FormatUint(lightCount.Load(), 10),
		),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.refreshUniform()
	lightCount.Add(1)
	return l
}

func (l *lightImpl) Position() [3]float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.position
}

func (l *lightImpl) Color() [3]float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.color
}

func (l *lightImpl) Uniform() GPULightUniform {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.uniform
}

func (l *lightImpl) BindGroupProvider() bind_group_provider.BindGroupProvider {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bindGroupProvider
}

func (l *lightImpl) MirrorLabel() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.bindGroupProvider != nil {
		return l.bindGroupProvider.Label()
	}
	return "light"
}

func (l *lightImpl) MirrorDirty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dirty
}

func (l *lightImpl) MarkClean() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastUniform = l.uniform
	l.dirty = false
}

func (l *lightImpl) SetPosition(position [3]float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.position = position
	l.refreshUniform()
}

func (l *lightImpl) SetColor(color [3]float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.color = color
	l.refreshUniform()
}

func (l *lightImpl) SetBindGroupProvider(provider bind_group_provider.BindGroupProvider) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bindGroupProvider = provider
}

// refreshUniform rebuilds the GPU uniform snapshot and raises the dirty flag
// only when it differs from the last uploaded one. Caller must hold the mutex.
func (l *lightImpl) refreshUniform() {
	l.uniform = GPULightUniform{
		Position: l.position,
		Color:    l.color,
	}
	l.dirty = l.uniform != l.lastUniform
}
