package model

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// GPUVertexSource is the canonical WGSL definition of the VertexInput struct for lit mesh pipelines.
// Matches GPUVertex layout exactly (56 bytes, tightly packed vertex attributes).
//
//go:embed assets/vertex.wgsl
var GPUVertexSource string

// GPUVertex is the GPU-aligned representation of a single mesh vertex.
// Matches the WGSL VertexInput struct layout exactly (see GPUVertexSource).
// Size: 56 bytes (vertex buffer attributes are tightly packed, no padding).
type GPUVertex struct {
	Position  [3]float32 // offset  0: vertex position in model space (12 bytes)
	TexCoord  [2]float32 // offset 12: UV texture coordinate (8 bytes)
	Normal    [3]float32 // offset 20: vertex normal for lighting (12 bytes)
	Tangent   [3]float32 // offset 32: tangent vector for normal mapping (12 bytes)
	Bitangent [3]float32 // offset 44: bitangent vector for normal mapping (12 bytes)
}

// Size returns the size of the GPUVertex struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes (56)
func (g *GPUVertex) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUVertex struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 56-byte buffer ready for GPU upload
func (g *GPUVertex) Marshal() []byte {
	buf := make([]byte, g.Size())
	g.MarshalTo(buf)
	return buf
}

// MarshalTo serializes the GPUVertex struct into the provided buffer, which
// must be at least Size() bytes. Used by the loader to pack whole meshes into
// one contiguous upload without per-vertex allocations.
//
// Parameters:
//   - buf: destination buffer, at least 56 bytes
func (g *GPUVertex) MarshalTo(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(g.Position[0]))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(g.Position[1]))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(g.Position[2]))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(g.TexCoord[0]))
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(g.TexCoord[1]))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(g.Normal[0]))
	binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(g.Normal[1]))
	binary.LittleEndian.PutUint32(buf[28:32], math.Float32bits(g.Normal[2]))
	binary.LittleEndian.PutUint32(buf[32:36], math.Float32bits(g.Tangent[0]))
	binary.LittleEndian.PutUint32(buf[36:40], math.Float32bits(g.Tangent[1]))
	binary.LittleEndian.PutUint32(buf[40:44], math.Float32bits(g.Tangent[2]))
	binary.LittleEndian.PutUint32(buf[44:48], math.Float32bits(g.Bitangent[0]))
	binary.LittleEndian.PutUint32(buf[48:52], math.Float32bits(g.Bitangent[1]))
	binary.LittleEndian.PutUint32(buf[52:56], math.Float32bits(g.Bitangent[2]))
}

// MarshalVertices packs a vertex slice into one contiguous GPU upload buffer.
//
// Parameters:
//   - vertices: the vertices to pack
//
// Returns:
//   - []byte: len(vertices) * 56 bytes of packed vertex data
func MarshalVertices(vertices []GPUVertex) []byte {
	if len(vertices) == 0 {
		return nil
	}
	stride := vertices[0].Size()
	buf := make([]byte, len(vertices)*stride)
	for i := range vertices {
		vertices[i].MarshalTo(buf[i*stride:])
	}
	return buf
}

// MarshalIndices packs an index slice into one contiguous GPU upload buffer
// using the 32-bit index format.
//
// Parameters:
//   - indices: the indices to pack
//
// Returns:
//   - []byte: len(indices) * 4 bytes of packed index data
func MarshalIndices(indices []uint32) []byte {
	if len(indices) == 0 {
		return nil
	}
	buf := make([]byte, len(indices)*4)
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(buf[i*4:], idx)
	}
	return buf
}

// ComputeBoundingRadius calculates the bounding sphere radius from a slice of
// vertex positions. The radius is the maximum distance from the origin across
// all vertices in the slice. Used by frustum culling.
//
// Parameters:
//   - vertices: the vertex data to compute the bounding radius from
//
// Returns:
//   - float32: the maximum distance from the origin
func ComputeBoundingRadius(vertices []GPUVertex) float32 {
	var maxDistSq float32
	for _, v := range vertices {
		p := v.Position
		distSq := p[0]*p[0] + p[1]*p[1] + p[2]*p[2]
		if distSq > maxDistSq {
			maxDistSq = distSq
		}
	}
	return float32(math.Sqrt(float64(maxDistSq)))
}
