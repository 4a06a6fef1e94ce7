package renderer

import (
	"errors"
	"testing"

	"github.com/kestrel3d/kestrel/common"
	"github.com/kestrel3d/kestrel/engine/renderer/material"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadMesh(t *testing.T) {
	backend := &fakeBackend{}
	u := NewUploader(backend)

	vertexData := make([]byte, 56*4)
	indexData := make([]byte, 4*6)

	handle, err := u.UploadMesh("cube", vertexData, indexData, 6)
	require.NoError(t, err)
	assert.Equal(t, "cube", handle.Label)
	assert.Equal(t, 6, handle.IndexCount)
	assert.Equal(t, len(vertexData), handle.VertexBytes)
	assert.Equal(t, len(indexData), handle.IndexBytes)
	require.NotNil(t, handle.Provider())
	assert.Equal(t, "cube", handle.Provider().Label())
	assert.Equal(t, 6, handle.Provider().IndexCount())

	stats := u.Stats()
	assert.Equal(t, 1, stats.MeshesUploaded)
	assert.Equal(t, uint64(len(vertexData)+len(indexData)), stats.BytesUploaded)
}

func TestUploadMeshEmptyVertexData(t *testing.T) {
	u := NewUploader(&fakeBackend{})

	_, err := u.UploadMesh("empty", nil, nil, 0)
	var uploadErr *ResourceUploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, "empty", uploadErr.Resource)
	assert.Equal(t, "mesh", uploadErr.Op)
	assert.Equal(t, 0, u.Stats().MeshesUploaded)
}

func TestUploadMeshBackendFailure(t *testing.T) {
	backend := &fakeBackend{meshErr: errors.New("buffer creation failed")}
	u := NewUploader(backend)

	_, err := u.UploadMesh("cube", make([]byte, 56), nil, 0)
	var uploadErr *ResourceUploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.ErrorIs(t, err, backend.meshErr)
}

func TestUploadTextureEmptyPixels(t *testing.T) {
	u := NewUploader(&fakeBackend{})

	_, err := u.UploadTexture("blank", common.TextureStagingData{}, common.SamplerStagingData{})
	var uploadErr *ResourceUploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, "texture", uploadErr.Op)
}

func TestBuildMaterialWithFallbackTextures(t *testing.T) {
	backend := &fakeBackend{}
	u := NewUploader(backend)

	m := material.NewMaterial(material.WithName("crate"))
	require.NoError(t, u.BuildMaterial(m))

	// Missing diffuse and normal maps fall back to 1x1 defaults; the bind
	// group still gets all four bindings.
	assert.NotNil(t, m.BindGroupProvider())
	assert.Equal(t, 2, backend.texturesInit)
	assert.Equal(t, 2, backend.samplersInit)

	stats := u.Stats()
	assert.Equal(t, 1, stats.MaterialsBuilt)
	assert.Equal(t, uint64(8), stats.BytesUploaded) // two 1x1 RGBA fallbacks
}

func TestBuildMaterialBackendFailure(t *testing.T) {
	backend := &fakeBackend{initTextureErr: errors.New("texture creation failed")}
	u := NewUploader(backend)

	m := material.NewMaterial(material.WithName("crate"))
	err := u.BuildMaterial(m)
	var uploadErr *ResourceUploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, "crate", uploadErr.Resource)
	assert.Nil(t, m.BindGroupProvider())
	assert.Equal(t, 0, u.Stats().MaterialsBuilt)
}

func TestBuildMaterialBindGroupFailure(t *testing.T) {
	backend := &fakeBackend{bindGroupErr: errors.New("layout mismatch")}
	u := NewUploader(backend)

	m := material.NewMaterial(material.WithName("crate"))
	err := u.BuildMaterial(m)
	var uploadErr *ResourceUploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, "material", uploadErr.Op)
	assert.Nil(t, m.BindGroupProvider())
}
