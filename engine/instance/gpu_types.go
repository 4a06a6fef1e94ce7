package instance

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/kestrel3d/kestrel/common"
)

// GPUInstanceDataSource is the canonical WGSL definition of the InstanceData struct.
// Matches GPUInstanceData layout exactly (112 bytes, std430 aligned).
//
//go:embed assets/instance_data.wgsl
var GPUInstanceDataSource string

// GPUInstanceData is the GPU-aligned representation of a single instance in the
// per-draw storage buffer. Matches the WGSL InstanceData struct layout exactly
// (see GPUInstanceDataSource). Size: 112 bytes (std430 / WGSL aligned).
type GPUInstanceData struct {
	Model [16]float32 // offset  0: model matrix (mat4x4<f32>, column-major)
	// NormalMatrix holds the model's upper 3x3 rotation block as three vec3
	// columns, each padded to vec4 alignment (mat3x3<f32> layout in WGSL).
	NormalMatrix [12]float32 // offset 64: 3 rows of (x, y, z, pad)
}

// Size returns the size of the GPUInstanceData struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (112)
func (g *GPUInstanceData) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUInstanceData struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 112-byte buffer ready for GPU upload
func (g *GPUInstanceData) Marshal() []byte {
	buf := make([]byte, g.Size())
	g.MarshalTo(buf)
	return buf
}

// MarshalTo serializes the GPUInstanceData struct into the provided buffer,
// which must be at least Size() bytes. Used by the instance buffer's packer to
// write many instances into one contiguous upload without per-instance
// allocations.
//
// Parameters:
//   - buf: destination buffer, at least 112 bytes
func (g *GPUInstanceData) MarshalTo(buf []byte) {
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.Model[i]))
	}
	for i := range 12 {
		binary.LittleEndian.PutUint32(buf[64+i*4:], math.Float32bits(g.NormalMatrix[i]))
	}
}

// packInstance computes the GPU-facing data for a single instance transform.
//
// Parameters:
//   - inst: the instance transform
//
// Returns:
//   - GPUInstanceData: model matrix plus normal matrix rows
func packInstance(inst Instance) GPUInstanceData {
	var data GPUInstanceData
	common.BuildModelMatrix(data.Model[:],
		inst.Position[0], inst.Position[1], inst.Position[2],
		inst.Rotation[0], inst.Rotation[1], inst.Rotation[2],
		inst.Scale[0], inst.Scale[1], inst.Scale[2],
	)
	common.NormalMatrix3x4(data.NormalMatrix[:], data.Model[:])
	return data
}
