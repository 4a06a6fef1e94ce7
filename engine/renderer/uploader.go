package renderer

import (
	"errors"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/kestrel3d/kestrel/common"
	"github.com/kestrel3d/kestrel/engine/renderer/bind_group_provider"
	"github.com/kestrel3d/kestrel/engine/renderer/material"
)

// UploadStats is a snapshot of the counters maintained by an Uploader.
type UploadStats struct {
	MeshesUploaded   int
	TexturesUploaded int
	MaterialsBuilt   int
	// BytesUploaded is the total byte count of vertex, index, and pixel data
	// handed to the GPU queue since the uploader was created.
	BytesUploaded uint64
}

// MeshHandle refers to an uploaded mesh. The provider holds the GPU vertex and
// index buffers and is what the render pass binds for the draw.
type MeshHandle struct {
	Label       string
	IndexCount  int
	VertexBytes int
	IndexBytes  int

	provider bind_group_provider.BindGroupProvider
}

// Provider returns the bind group provider holding the mesh's GPU buffers.
func (h *MeshHandle) Provider() bind_group_provider.BindGroupProvider {
	return h.provider
}

// TextureHandle refers to an uploaded texture and its sampler.
type TextureHandle struct {
	Label  string
	Width  uint32
	Height uint32

	View    *wgpu.TextureView
	Sampler *wgpu.Sampler
}

// uploader is the implementation of the Uploader interface.
type uploader struct {
	mu      *sync.Mutex
	backend RendererBackend
	stats   UploadStats
}

// Uploader moves CPU-side asset data onto the GPU: mesh geometry, decoded
// texture pixels, and assembled material bind groups. Failed uploads return a
// ResourceUploadError identifying the asset, so callers can drop it and keep
// rendering.
type Uploader interface {
	// UploadMesh creates GPU vertex and index buffers for a mesh and returns a handle
	// whose provider can be bound in draw calls.
	//
	// Parameters:
	//   - label: the debug label identifying the mesh
	//   - vertexData: the packed vertex bytes
	//   - indexData: the packed uint32 index bytes
	//   - indexCount: the number of indices represented in indexData
	//
	// Returns:
	//   - *MeshHandle: a handle to the uploaded mesh
	//   - error: a ResourceUploadError if the buffers could not be created
	UploadMesh(label string, vertexData, indexData []byte, indexCount int) (*MeshHandle, error)

	// UploadTexture creates a GPU texture from decoded RGBA pixels together with a
	// sampler built from the staging configuration.
	//
	// Parameters:
	//   - label: the debug label identifying the texture
	//   - data: the decoded pixel data and dimensions
	//   - sampler: the sampler configuration; zero values fall back to linear/repeat
	//
	// Returns:
	//   - *TextureHandle: a handle to the uploaded texture and sampler
	//   - error: a ResourceUploadError if the texture or sampler could not be created
	UploadTexture(label string, data common.TextureStagingData, sampler common.SamplerStagingData) (*TextureHandle, error)

	// BuildMaterial uploads a material's diffuse and normal textures, assembles its
	// bind group (diffuse map, diffuse sampler, normal map, normal sampler), and
	// stores the resulting provider on the material. Missing textures fall back to
	// 1x1 defaults: white for the diffuse map, a flat +Z normal for the normal map.
	//
	// Parameters:
	//   - m: the material to build GPU resources for
	//
	// Returns:
	//   - error: a ResourceUploadError if any texture or the bind group failed
	BuildMaterial(m material.Material) error

	// Stats returns a snapshot of the uploader's counters.
	//
	// Returns:
	//   - UploadStats: the current counters
	Stats() UploadStats
}

var _ Uploader = &uploader{}

// NewUploader creates an Uploader bound to a GPU backend.
//
// Parameters:
//   - backend: the backend resources are created against
//
// Returns:
//   - Uploader: a new Uploader instance
func NewUploader(backend RendererBackend) Uploader {
	return &uploader{
		mu:      &sync.Mutex{},
		backend: backend,
	}
}

func (u *uploader) UploadMesh(label string, vertexData, indexData []byte, indexCount int) (*MeshHandle, error) {
	if len(vertexData) == 0 {
		return nil, &ResourceUploadError{Resource: label, Op: "mesh", Err: errors.New("empty vertex data")}
	}

	provider := bind_group_provider.NewBindGroupProvider(label)
	if err := u.backend.InitMeshBuffers(provider, vertexData, indexData, indexCount); err != nil {
		return nil, &ResourceUploadError{Resource: label, Op: "mesh", Err: err}
	}

	u.mu.Lock()
	u.stats.MeshesUploaded++
	u.stats.BytesUploaded += uint64(len(vertexData) + len(indexData))
	u.mu.Unlock()

	return &MeshHandle{
		Label:       label,
		IndexCount:  indexCount,
		VertexBytes: len(vertexData),
		IndexBytes:  len(indexData),
		provider:    provider,
	}, nil
}

func (u *uploader) UploadTexture(label string, data common.TextureStagingData, sampler common.SamplerStagingData) (*TextureHandle, error) {
	if data.Width == 0 || data.Height == 0 || len(data.Pixels) == 0 {
		return nil, &ResourceUploadError{Resource: label, Op: "texture", Err: errors.New("empty pixel data")}
	}

	view, err := u.backend.CreateTextureView(label, data)
	if err != nil {
		return nil, &ResourceUploadError{Resource: label, Op: "texture", Err: err}
	}
	samp, err := u.backend.CreateSampler(label, sampler)
	if err != nil {
		return nil, &ResourceUploadError{Resource: label, Op: "texture", Err: err}
	}

	u.mu.Lock()
	u.stats.TexturesUploaded++
	u.stats.BytesUploaded += uint64(len(data.Pixels))
	u.mu.Unlock()

	return &TextureHandle{
		Label:   label,
		Width:   data.Width,
		Height:  data.Height,
		View:    view,
		Sampler: samp,
	}, nil
}

func (u *uploader) BuildMaterial(m material.Material) error {
	provider := bind_group_provider.NewBindGroupProvider(m.Name())

	diffuse, err := u.stageTexture(m.Name()+" diffuse", m.DiffuseTexture(), whitePixel)
	if err != nil {
		return err
	}
	normal, err := u.stageTexture(m.Name()+" normal", m.NormalTexture(), flatNormalPixel)
	if err != nil {
		return err
	}

	if err := u.backend.InitTextureView(provider, material.BindingDiffuseTexture, diffuse.texture); err != nil {
		return &ResourceUploadError{Resource: m.Name(), Op: "material", Err: err}
	}
	if err := u.backend.InitSampler(provider, material.BindingDiffuseSampler, diffuse.sampler); err != nil {
		return &ResourceUploadError{Resource: m.Name(), Op: "material", Err: err}
	}
	if err := u.backend.InitTextureView(provider, material.BindingNormalTexture, normal.texture); err != nil {
		return &ResourceUploadError{Resource: m.Name(), Op: "material", Err: err}
	}
	if err := u.backend.InitSampler(provider, material.BindingNormalSampler, normal.sampler); err != nil {
		return &ResourceUploadError{Resource: m.Name(), Op: "material", Err: err}
	}

	if err := u.backend.InitBindGroup(provider, material.BindGroupLayoutDescriptor(m.Name()), nil, nil); err != nil {
		return &ResourceUploadError{Resource: m.Name(), Op: "material", Err: err}
	}

	m.SetBindGroupProvider(provider)

	u.mu.Lock()
	u.stats.MaterialsBuilt++
	u.stats.BytesUploaded += uint64(len(diffuse.texture.Pixels) + len(normal.texture.Pixels))
	u.mu.Unlock()

	return nil
}

func (u *uploader) Stats() UploadStats {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.stats
}

// stagedTexture pairs decoded pixel data with its sampler configuration.
type stagedTexture struct {
	texture common.TextureStagingData
	sampler common.SamplerStagingData
}

var (
	// whitePixel substitutes for a missing diffuse map.
	whitePixel = [4]byte{255, 255, 255, 255}
	// flatNormalPixel encodes a +Z tangent-space normal, substituting for a missing normal map.
	flatNormalPixel = [4]byte{128, 128, 255, 255}
)

// stageTexture decodes an imported texture into upload-ready staging data, or
// produces a 1x1 fallback when the texture reference is nil.
func (u *uploader) stageTexture(label string, tex *common.ImportedTexture, fallback [4]byte) (stagedTexture, error) {
	if tex == nil {
		return stagedTexture{
			texture: common.TextureStagingData{
				Pixels: fallback[:],
				Width:  1,
				Height: 1,
			},
		}, nil
	}

	pixels, width, height, err := tex.Decode()
	if err != nil {
		return stagedTexture{}, &ResourceUploadError{Resource: label, Op: "texture", Err: err}
	}

	staged := stagedTexture{
		texture: common.TextureStagingData{
			Pixels: pixels,
			Width:  width,
			Height: height,
		},
	}
	if tex.SamplerData != nil {
		staged.sampler = *tex.SamplerData
	}
	return staged, nil
}
