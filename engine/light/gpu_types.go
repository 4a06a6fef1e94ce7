package light

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// GPULightUniformSource is the canonical WGSL definition of the LightUniform struct.
// Matches GPULightUniform layout exactly (32 bytes, std140 aligned).
//
//go:embed assets/light_uniform.wgsl
var GPULightUniformSource string

// GPULightUniform is the GPU-aligned representation of the light uniform buffer.
// Matches the WGSL LightUniform struct layout exactly (see GPULightUniformSource).
// Size: 32 bytes (std140 / WGSL aligned).
type GPULightUniform struct {
	Position [3]float32 // offset  0: world-space light position (vec3<f32>)
	_pad0    float32    // offset 12: padding to vec3 alignment
	Color    [3]float32 // offset 16: RGB light color (vec3<f32>)
	_pad1    float32    // offset 28: padding to 32 bytes
}

// Size returns the size of the GPULightUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (32)
func (g *GPULightUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPULightUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload
func (g *GPULightUniform) Marshal() []byte {
	buf := make([]byte, g.Size())
	for i := range 3 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.Position[i]))
	}
	for i := range 3 {
		binary.LittleEndian.PutUint32(buf[16+i*4:], math.Float32bits(g.Color[i]))
	}
	return buf
}
