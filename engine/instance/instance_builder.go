package instance

import (
	"github.com/kestrel3d/kestrel/engine/renderer/bind_group_provider"
)

// InstanceBufferOption is a functional option for configuring an InstanceBuffer.
type InstanceBufferOption func(*instanceBufferImpl)

// WithCapacity sets the initial GPU-side capacity in instances. Values below
// the minimum allocation are raised to it.
//
// Parameters:
//   - capacity: initial capacity in instances
//
// Returns:
//   - InstanceBufferOption: functional option to set the capacity
func WithCapacity(capacity int) InstanceBufferOption {
	return func(b *instanceBufferImpl) {
		b.capacity = capacity
	}
}

// WithPackWorkers sets the number of workers used to pack large instance
// lists. Defaults to runtime.NumCPU()-1.
//
// Parameters:
//   - workers: the worker count (minimum 1)
//
// Returns:
//   - InstanceBufferOption: functional option to set the worker count
func WithPackWorkers(workers int) InstanceBufferOption {
	return func(b *instanceBufferImpl) {
		b.packWorkers = max(workers, 1)
	}
}

// WithBindGroupProvider attaches a bind group provider to the buffer.
//
// Parameters:
//   - provider: the bind group provider to attach
//
// Returns:
//   - InstanceBufferOption: functional option to set the bind group provider
func WithBindGroupProvider(provider bind_group_provider.BindGroupProvider) InstanceBufferOption {
	return func(b *instanceBufferImpl) {
		b.bindGroupProvider = provider
	}
}
