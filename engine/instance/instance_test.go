package instance

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identityInstance(position [3]float32) Instance {
	return NewInstance(position)
}

func readFloat32(buf []byte, offset int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[offset:]))
}

func TestNewInstanceDefaultsUnitScale(t *testing.T) {
	inst := NewInstance([3]float32{1, 2, 3})

	assert.Equal(t, [3]float32{1, 2, 3}, inst.Position)
	assert.Equal(t, [3]float32{0, 0, 0}, inst.Rotation)
	assert.Equal(t, [3]float32{1, 1, 1}, inst.Scale)
}

func TestNewInstanceBufferDefaults(t *testing.T) {
	b := NewInstanceBuffer()

	assert.Equal(t, 0, b.Len())
	assert.Equal(t, minCapacity, b.Capacity())
	assert.Equal(t, uint64(minCapacity*gpuInstanceStride), b.BufferSize())
	assert.Equal(t, uint64(0), b.Generation())
	assert.False(t, b.MirrorDirty())
	require.NotNil(t, b.BindGroupProvider())
}

func TestSetInstancesMarksDirty(t *testing.T) {
	b := NewInstanceBuffer()

	b.SetInstances([]Instance{identityInstance([3]float32{1, 2, 3})})
	assert.Equal(t, 1, b.Len())
	assert.True(t, b.MirrorDirty())

	b.MarkClean()
	assert.False(t, b.MirrorDirty())

	b.SetInstance(0, identityInstance([3]float32{4, 5, 6}))
	assert.True(t, b.MirrorDirty())
}

func TestSetInstanceOutOfRangeIsIgnored(t *testing.T) {
	b := NewInstanceBuffer()
	b.SetInstances([]Instance{identityInstance([3]float32{0, 0, 0})})
	b.MarkClean()

	b.SetInstance(5, identityInstance([3]float32{9, 9, 9}))
	b.SetInstance(-1, identityInstance([3]float32{9, 9, 9}))

	assert.False(t, b.MirrorDirty())
	assert.Equal(t, [3]float32{0, 0, 0}, b.Instances()[0].Position)
}

func TestCapacityGrowsGeometrically(t *testing.T) {
	b := NewInstanceBuffer()

	instances := make([]Instance, minCapacity+1)
	for i := range instances {
		instances[i] = identityInstance([3]float32{float32(i), 0, 0})
	}
	b.SetInstances(instances)

	assert.Equal(t, minCapacity*2, b.Capacity())
	assert.Equal(t, uint64(1), b.Generation())

	// Shrinking the list never shrinks the allocation.
	b.SetInstances(instances[:3])
	assert.Equal(t, minCapacity*2, b.Capacity())
	assert.Equal(t, uint64(1), b.Generation())

	// A jump well past capacity doubles until it fits, one generation bump.
	big := make([]Instance, minCapacity*8+1)
	for i := range big {
		big[i] = identityInstance([3]float32{float32(i), 0, 0})
	}
	b.SetInstances(big)
	assert.Equal(t, minCapacity*16, b.Capacity())
	assert.Equal(t, uint64(2), b.Generation())
}

func TestPackIdentityTransform(t *testing.T) {
	b := NewInstanceBuffer()
	b.SetInstances([]Instance{identityInstance([3]float32{2, 3, 4})})

	buf := b.Pack()
	require.Len(t, buf, gpuInstanceStride)

	// Identity rotation and unit scale: model matrix is identity with the
	// translation in the last column (column-major offsets 48..56).
	assert.Equal(t, float32(1), readFloat32(buf, 0))
	assert.Equal(t, float32(1), readFloat32(buf, 20))
	assert.Equal(t, float32(1), readFloat32(buf, 40))
	assert.Equal(t, float32(2), readFloat32(buf, 48))
	assert.Equal(t, float32(3), readFloat32(buf, 52))
	assert.Equal(t, float32(4), readFloat32(buf, 56))
	assert.Equal(t, float32(1), readFloat32(buf, 60))

	// Normal matrix of an identity model is identity (vec4-padded rows).
	assert.Equal(t, float32(1), readFloat32(buf, 64))
	assert.Equal(t, float32(1), readFloat32(buf, 84))
	assert.Equal(t, float32(1), readFloat32(buf, 104))
}

func TestPackLargeListMatchesSerialPack(t *testing.T) {
	instances := make([]Instance, parallelPackThreshold+100)
	for i := range instances {
		instances[i] = Instance{
			Position: [3]float32{float32(i), float32(i % 7), -float32(i)},
			Rotation: [3]float32{0, float32(i) * 0.01, 0},
			Scale:    [3]float32{1, 2, 0.5},
		}
	}

	b := NewInstanceBuffer()
	b.SetInstances(instances)
	got := b.Pack()
	require.Len(t, got, len(instances)*gpuInstanceStride)

	want := make([]byte, len(instances)*gpuInstanceStride)
	for i, inst := range instances {
		data := packInstance(inst)
		data.MarshalTo(want[i*gpuInstanceStride:])
	}
	assert.Equal(t, want, got)
}

func TestGPUInstanceDataSize(t *testing.T) {
	var data GPUInstanceData
	assert.Equal(t, gpuInstanceStride, data.Size())
	assert.Len(t, data.Marshal(), gpuInstanceStride)
}
