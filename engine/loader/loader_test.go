package loader

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel3d/kestrel/common"
	"github.com/kestrel3d/kestrel/engine/model"
	"github.com/kestrel3d/kestrel/engine/renderer"
	"github.com/kestrel3d/kestrel/engine/renderer/material"
)

const quadOBJ = `# two-triangle quad in the XY plane
mtllib quad.mtl
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
usemtl painted
f 1/1/1 2/2/1 3/3/1
f 1/1/1 3/3/1 4/4/1
`

const quadMTL = `newmtl painted
Ka 0.2 0.2 0.2
Kd 0.8 0.1 0.1
Ks 0.5 0.5 0.5
Ns 64
map_Kd paint.png
norm paint_n.png
`

func quadFS() fstest.MapFS {
	return fstest.MapFS{
		"models/quad.obj":    {Data: []byte(quadOBJ)},
		"models/quad.mtl":    {Data: []byte(quadMTL)},
		"models/paint.png":   {Data: []byte("not a real png")},
		"models/paint_n.png": {Data: []byte("not a real png either")},
	}
}

func TestParseOBJQuad(t *testing.T) {
	obj, err := parseOBJ(strings.NewReader(quadOBJ))
	require.NoError(t, err)

	assert.Len(t, obj.positions, 4)
	assert.Len(t, obj.texCoords, 4)
	assert.Len(t, obj.normals, 1)
	assert.Len(t, obj.triangles, 6)
	assert.Equal(t, []string{"painted", "painted"}, obj.triangleMaterials)
	assert.Equal(t, []string{"quad.mtl"}, obj.mtlLibs)
}

func TestParseOBJQuadFaceTriangulation(t *testing.T) {
	src := `v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
f 1 2 3 4
`
	obj, err := parseOBJ(strings.NewReader(src))
	require.NoError(t, err)

	// One quad face fans into two triangles sharing the first corner.
	require.Len(t, obj.triangles, 6)
	assert.Equal(t, obj.triangles[0].position, obj.triangles[3].position)
}

func TestParseOBJNegativeIndices(t *testing.T) {
	src := `v 0 0 0
v 1 0 0
v 0 1 0
f -3 -2 -1
`
	obj, err := parseOBJ(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, obj.triangles, 3)
	assert.Equal(t, 1, obj.triangles[0].position)
	assert.Equal(t, 3, obj.triangles[2].position)
}

func TestParseOBJOutOfRangeIndex(t *testing.T) {
	src := `v 0 0 0
f 1 2 3
`
	_, err := parseOBJ(strings.NewReader(src))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestParseMTL(t *testing.T) {
	mats, err := parseMTL(strings.NewReader(quadMTL))
	require.NoError(t, err)
	require.Len(t, mats, 1)

	m := mats[0]
	assert.Equal(t, "painted", m.Name)
	assert.Equal(t, [3]float32{0.2, 0.2, 0.2}, m.Ambient)
	assert.Equal(t, [3]float32{0.8, 0.1, 0.1}, m.Diffuse)
	assert.Equal(t, [3]float32{0.5, 0.5, 0.5}, m.Specular)
	assert.InDelta(t, 64.0, m.Shininess, 1e-6)
	assert.Equal(t, "paint.png", m.DiffuseTexturePath)
	assert.Equal(t, "paint_n.png", m.NormalTexturePath)
}

func TestBuildVerticesDeduplicatesSharedCorners(t *testing.T) {
	obj, err := parseOBJ(strings.NewReader(quadOBJ))
	require.NoError(t, err)

	vertices, indices, _ := buildVertices(obj)

	// Corners 1/1/1 and 3/3/1 appear in both triangles and collapse.
	assert.Len(t, vertices, 4)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, indices)

	// V axis flips so image-space textures sample right side up.
	assert.Equal(t, [2]float32{0, 1}, vertices[0].TexCoord)
	assert.Equal(t, [2]float32{1, 0}, vertices[2].TexCoord)
	assert.Equal(t, [3]float32{0, 0, 1}, vertices[0].Normal)
}

func TestBuildVerticesFlatNormalFallback(t *testing.T) {
	src := `v 0 0 0
v 1 0 0
v 0 1 0
f 1 2 3
`
	obj, err := parseOBJ(strings.NewReader(src))
	require.NoError(t, err)

	vertices, _, _ := buildVertices(obj)
	require.Len(t, vertices, 3)
	for _, v := range vertices {
		assert.Equal(t, [3]float32{0, 0, 1}, v.Normal)
	}
}

func TestBuildVerticesSplitsMaterialRanges(t *testing.T) {
	src := `v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
usemtl red
f 1 2 3
usemtl blue
f 1 3 4
usemtl red
f 2 3 4
`
	obj, err := parseOBJ(strings.NewReader(src))
	require.NoError(t, err)

	_, indices, ranges := buildVertices(obj)
	require.Len(t, indices, 9)

	// Triangles regroup by material: both red triangles first, then blue.
	require.Len(t, ranges, 2)
	assert.Equal(t, model.MaterialRange{Material: "red", FirstIndex: 0, IndexCount: 6}, ranges[0])
	assert.Equal(t, model.MaterialRange{Material: "blue", FirstIndex: 6, IndexCount: 3}, ranges[1])
}

func TestGenerateTangentsQuad(t *testing.T) {
	obj, err := parseOBJ(strings.NewReader(quadOBJ))
	require.NoError(t, err)
	vertices, indices, _ := buildVertices(obj)

	generateTangents(vertices, indices, nil)

	// The quad's UVs follow its XY axes, with V flipped at build time: the
	// tangent tracks +X and the bitangent -Y for every vertex.
	for i, v := range vertices {
		assert.InDelta(t, 1.0, v.Tangent[0], 1e-5, "vertex %d tangent x", i)
		assert.InDelta(t, 0.0, v.Tangent[1], 1e-5, "vertex %d tangent y", i)
		assert.InDelta(t, -1.0, v.Bitangent[1], 1e-5, "vertex %d bitangent y", i)
	}
}

func TestGenerateTangentsSkipsDegenerateUVs(t *testing.T) {
	vertices := []model.GPUVertex{
		{Position: [3]float32{0, 0, 0}},
		{Position: [3]float32{1, 0, 0}},
		{Position: [3]float32{0, 1, 0}},
	}
	generateTangents(vertices, []uint32{0, 1, 2}, nil)

	for _, v := range vertices {
		assert.Equal(t, [3]float32{0, 0, 0}, v.Tangent)
		assert.Equal(t, [3]float32{0, 0, 0}, v.Bitangent)
	}
}

func TestLoaderLoadQuad(t *testing.T) {
	l := NewLoader(BackendTypeOBJ, quadFS())

	m, err := l.Load("models/quad.obj")
	require.NoError(t, err)

	assert.Equal(t, "quad.obj", m.Name())
	assert.Equal(t, 6, m.IndexCount())
	assert.Len(t, m.VertexData(), 4*56)
	assert.Len(t, m.IndexData(), 6*4)
	assert.InDelta(t, 1.4142135, m.BoundingRadius(), 1e-5)

	require.Len(t, m.ImportedMaterials(), 1)
	imp := m.ImportedMaterials()[0]
	require.NotNil(t, imp.DiffuseTexture)
	assert.Equal(t, "models/paint.png", imp.DiffuseTexture.Path)
	require.NotNil(t, imp.NormalTexture)

	require.Len(t, m.RenderMaterials(), 1)
	assert.Equal(t, "painted", m.RenderMaterials()[0].Name())
}

// failingUploader fails BuildMaterial for the named material and succeeds
// otherwise, without touching a GPU.
type failingUploader struct {
	failMaterial string
}

var _ renderer.Uploader = &failingUploader{}

func (u *failingUploader) UploadMesh(label string, vertexData, indexData []byte, indexCount int) (*renderer.MeshHandle, error) {
	return &renderer.MeshHandle{Label: label, IndexCount: indexCount}, nil
}

func (u *failingUploader) UploadTexture(label string, data common.TextureStagingData, sampler common.SamplerStagingData) (*renderer.TextureHandle, error) {
	return &renderer.TextureHandle{Label: label}, nil
}

func (u *failingUploader) BuildMaterial(m material.Material) error {
	if m.Name() == u.failMaterial {
		return errors.New("texture upload failed")
	}
	return nil
}

func (u *failingUploader) Stats() renderer.UploadStats { return renderer.UploadStats{} }

const twoMatOBJ = `mtllib two.mtl
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vn 0 0 1
usemtl red
f 1//1 2//1 3//1
usemtl blue
f 1//1 3//1 4//1
`

const twoMatMTL = `newmtl red
Kd 1 0 0
newmtl blue
Kd 0 0 1
`

func twoMatFS() fstest.MapFS {
	return fstest.MapFS{
		"models/two.obj": {Data: []byte(twoMatOBJ)},
		"models/two.mtl": {Data: []byte(twoMatMTL)},
	}
}

func TestLoaderFailedMaterialBuildDropsMaterial(t *testing.T) {
	l := NewLoader(BackendTypeOBJ, twoMatFS(), WithUploader(&failingUploader{failMaterial: "red"}))

	// The model loads even though one material's upload failed.
	m, err := l.Load("models/two.obj")
	require.NoError(t, err)

	require.Len(t, m.ImportedMaterials(), 2)
	require.Len(t, m.RenderMaterials(), 1)
	assert.Equal(t, "blue", m.RenderMaterials()[0].Name())

	// The dropped material's index range survives so draw-time resolution
	// can skip it.
	require.Len(t, m.MaterialRanges(), 2)
	assert.Equal(t, "red", m.MaterialRanges()[0].Material)
	assert.Equal(t, "blue", m.MaterialRanges()[1].Material)
}

func TestLoaderLoadTwoMaterialRanges(t *testing.T) {
	l := NewLoader(BackendTypeOBJ, twoMatFS())

	m, err := l.Load("models/two.obj")
	require.NoError(t, err)

	require.Len(t, m.MaterialRanges(), 2)
	assert.Equal(t, model.MaterialRange{Material: "red", FirstIndex: 0, IndexCount: 3}, m.MaterialRanges()[0])
	assert.Equal(t, model.MaterialRange{Material: "blue", FirstIndex: 3, IndexCount: 3}, m.MaterialRanges()[1])
	assert.Equal(t, 6, m.IndexCount())
}

func TestLoaderCachesByPath(t *testing.T) {
	l := NewLoader(BackendTypeOBJ, quadFS())

	first, err := l.Load("models/quad.obj")
	require.NoError(t, err)
	second, err := l.Load("models/quad.obj")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Same(t, first, l.Get("models/quad.obj"))
	assert.Len(t, l.Models(), 1)
}

func TestLoaderRejectsUnknownFormat(t *testing.T) {
	l := NewLoader(BackendTypeOBJ, quadFS())

	_, err := l.Load("models/quad.gltf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported model format")
}

func TestLoaderMissingTextureDropsTexture(t *testing.T) {
	fsys := quadFS()
	delete(fsys, "models/paint_n.png")
	l := NewLoader(BackendTypeOBJ, fsys)

	m, err := l.Load("models/quad.obj")
	require.NoError(t, err)

	imp := m.ImportedMaterials()[0]
	require.NotNil(t, imp.DiffuseTexture)
	assert.Nil(t, imp.NormalTexture)
}

func TestLoaderMissingFile(t *testing.T) {
	l := NewLoader(BackendTypeOBJ, quadFS())
	_, err := l.Load("models/missing.obj")
	require.Error(t, err)
}

func TestLoadReader(t *testing.T) {
	src := `v 0 0 0
v 1 0 0
v 0 1 0
f 1 2 3
`
	l := NewLoader(BackendTypeOBJ, fstest.MapFS{})
	m, err := l.LoadReader("tri", strings.NewReader(src))
	require.NoError(t, err)

	assert.Equal(t, "tri", m.Name())
	assert.Equal(t, 3, m.IndexCount())
	assert.Same(t, m, l.Get("tri"))
}
