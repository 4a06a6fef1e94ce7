package instance

import (
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"

	"github.com/kestrel3d/kestrel/engine/renderer/bind_group_provider"
)

const (
	// gpuInstanceStride is the byte stride of one GPUInstanceData element.
	gpuInstanceStride = 112

	// minCapacity is the smallest GPU-side allocation, in instances.
	minCapacity = 64

	// parallelPackThreshold is the instance count above which Pack splits the
	// work across the pool. Small lists pack faster on one core.
	parallelPackThreshold = 512

	// packChunkSize is the number of instances packed per pool task.
	packChunkSize = 256
)

// bufferCount is an atomic counter used to generate unique bind group provider names for each instance buffer.
var bufferCount atomic.Uint64

// Instance is a single object placement: position, Euler rotation in radians,
// and per-axis scale. Note that the zero value has a zero scale, which packs
// to a degenerate model matrix that renders nothing; construct literals with
// an explicit Scale or use NewInstance.
type Instance struct {
	Position [3]float32
	Rotation [3]float32
	Scale    [3]float32
}

// NewInstance creates an Instance at the given position with no rotation and
// unit scale.
//
// Parameters:
//   - position: the world-space placement
//
// Returns:
//   - Instance: the instance with Scale defaulted to 1 on every axis
func NewInstance(position [3]float32) Instance {
	return Instance{
		Position: position,
		Scale:    [3]float32{1, 1, 1},
	}
}

// instanceBufferImpl is the implementation of the InstanceBuffer interface.
type instanceBufferImpl struct {
	mu *sync.Mutex

	instances []Instance

	// capacity is the GPU-side allocation size in instances. It only grows,
	// geometrically, so steady-state frames never reallocate.
	capacity int

	// generation increments whenever capacity changes. Bind groups referencing
	// the storage buffer are tied to a generation and must be rebuilt when it
	// moves.
	generation uint64

	dirty bool

	bindGroupProvider bind_group_provider.BindGroupProvider

	// packPool spreads large Pack calls across CPU cores. Workers persist
	// across frames, avoiding per-frame goroutine spawn/teardown overhead.
	packPool    worker.DynamicWorkerPool
	packWorkers int
}

// InstanceBuffer owns the CPU-side list of instance transforms for one mesh
// and packs it into the byte layout of the GPU storage buffer bound at
// group 3. The buffer tracks dirtiness the same way the camera and light
// uniforms do, and exposes a generation counter so callers know when the GPU
// allocation grew and dependent bind groups must be rebuilt.
type InstanceBuffer interface {
	// Len returns the current number of instances.
	//
	// Returns:
	//   - int: the instance count
	Len() int

	// Capacity returns the GPU-side allocation size in instances.
	//
	// Returns:
	//   - int: the capacity
	Capacity() int

	// BufferSize returns the GPU-side allocation size in bytes.
	//
	// Returns:
	//   - uint64: capacity multiplied by the per-instance stride
	BufferSize() uint64

	// Generation returns the allocation generation. It increments whenever the
	// capacity grows; callers holding bind groups against the storage buffer
	// compare generations to know when a rebuild is required.
	//
	// Returns:
	//   - uint64: the current generation
	Generation() uint64

	// Instances returns a copy of the current instance list.
	//
	// Returns:
	//   - []Instance: the instances
	Instances() []Instance

	// SetInstances replaces the instance list and marks the buffer dirty.
	// Capacity grows geometrically when the new count exceeds it, bumping the
	// generation.
	//
	// Parameters:
	//   - instances: the new instance list (copied)
	SetInstances(instances []Instance)

	// SetInstance overwrites a single instance in place and marks the buffer
	// dirty. Out-of-range indices are ignored.
	//
	// Parameters:
	//   - index: the instance index
	//   - inst: the new transform
	SetInstance(index int, inst Instance)

	// Pack serializes every instance into one contiguous buffer in GPU layout.
	// Large lists are split across the worker pool.
	//
	// Returns:
	//   - []byte: len(instances) * 112 bytes of packed instance data
	Pack() []byte

	// BindGroupProvider returns the buffer's bind group provider for GPU resources.
	// Returns nil if not set.
	//
	// Returns:
	//   - bind_group_provider.BindGroupProvider: the bind group provider or nil
	BindGroupProvider() bind_group_provider.BindGroupProvider

	// MirrorLabel identifies the buffer when the renderer reports stale GPU state.
	//
	// Returns:
	//   - string: the mirror label
	MirrorLabel() string

	// MirrorDirty reports whether the instance list has changed since the last MarkClean.
	//
	// Returns:
	//   - bool: true if the GPU-side buffer is stale
	MirrorDirty() bool

	// MarkClean records that the current instance data has been uploaded to the GPU.
	MarkClean()

	// SetBindGroupProvider sets the buffer's bind group provider.
	//
	// Parameters:
	//   - provider: the bind group provider to set
	SetBindGroupProvider(provider bind_group_provider.BindGroupProvider)
}

var _ InstanceBuffer = &instanceBufferImpl{}

// NewInstanceBuffer creates an empty instance buffer with the provided options
// applied.
//
// Parameters:
//   - options: functional options to configure the buffer
//
// Returns:
//   - InstanceBuffer: the newly created buffer
func NewInstanceBuffer(options ...InstanceBufferOption) InstanceBuffer {
	b := &instanceBufferImpl{
		mu:          &sync.Mutex{},
		capacity:    minCapacity,
		packWorkers: max(runtime.NumCPU()-1, 1),
		bindGroupProvider: bind_group_provider.NewBindGroupProvider(
			"instances_" + strconv.FormatUint(bufferCount.Load(), 10),
		),
	}
	for _, option := range options {
		option(b)
	}
	if b.capacity < minCapacity {
		b.capacity = minCapacity
	}
	// Queue size of 256 accommodates the chunk count of very large instance
	// lists with headroom.
	b.packPool = worker.NewDynamicWorkerPool(b.packWorkers, 256, 1*time.Second)
	bufferCount.Add(1)
	return b
}

func (b *instanceBufferImpl) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.instances)
}

func (b *instanceBufferImpl) Capacity() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capacity
}

func (b *instanceBufferImpl) BufferSize() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return uint64(b.capacity) * gpuInstanceStride
}

func (b *instanceBufferImpl) Generation() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.generation
}

func (b *instanceBufferImpl) Instances() []Instance {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Instance, len(b.instances))
	copy(out, b.instances)
	return out
}

func (b *instanceBufferImpl) SetInstances(instances []Instance) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.instances = make([]Instance, len(instances))
	copy(b.instances, instances)
	b.dirty = true
	b.growLocked(len(instances))
}

func (b *instanceBufferImpl) SetInstance(index int, inst Instance) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if index < 0 || index >= len(b.instances) {
		return
	}
	b.instances[index] = inst
	b.dirty = true
}

func (b *instanceBufferImpl) Pack() []byte {
	b.mu.Lock()
	instances := make([]Instance, len(b.instances))
	copy(instances, b.instances)
	b.mu.Unlock()

	buf := make([]byte, len(instances)*gpuInstanceStride)
	if len(instances) < parallelPackThreshold {
		for i, inst := range instances {
			data := packInstance(inst)
			data.MarshalTo(buf[i*gpuInstanceStride:])
		}
		return buf
	}

	// Chunks write to disjoint ranges of buf, so no synchronization beyond the
	// wait group is needed.
	var wg sync.WaitGroup
	taskID := 0
	for start := 0; start < len(instances); start += packChunkSize {
		end := min(start+packChunkSize, len(instances))
		wg.Add(1)
		chunkStart, chunkEnd := start, end
		id := taskID
		taskID++
		b.packPool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				for i := chunkStart; i < chunkEnd; i++ {
					data := packInstance(instances[i])
					data.MarshalTo(buf[i*gpuInstanceStride:])
				}
				return nil, nil
			},
		})
	}
	wg.Wait()
	return buf
}

func (b *instanceBufferImpl) BindGroupProvider() bind_group_provider.BindGroupProvider {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bindGroupProvider
}

func (b *instanceBufferImpl) MirrorLabel() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bindGroupProvider != nil {
		return b.bindGroupProvider.Label()
	}
	return "instances"
}

func (b *instanceBufferImpl) MirrorDirty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dirty
}

func (b *instanceBufferImpl) MarkClean() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dirty = false
}

func (b *instanceBufferImpl) SetBindGroupProvider(provider bind_group_provider.BindGroupProvider) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bindGroupProvider = provider
}

// growLocked doubles the capacity until it covers count, bumping the
// generation once if any growth happened. Caller must hold the mutex.
func (b *instanceBufferImpl) growLocked(count int) {
	if count <= b.capacity {
		return
	}
	newCapacity := b.capacity
	for newCapacity < count {
		newCapacity *= 2
	}
	b.capacity = newCapacity
	b.generation++
}
