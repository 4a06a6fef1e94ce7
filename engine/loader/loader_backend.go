package loader

import (
	"fmt"
	"io"
	"io/fs"
	"path"

	"github.com/kestrel3d/kestrel/common"
	"github.com/kestrel3d/kestrel/engine/model"
)

// importedModel is the CPU-side result of a backend import: packed geometry
// without tangents plus the material records referenced by the file. The
// loader fills in tangent data and hands the result to the GPU uploader.
type importedModel struct {
	name      string
	vertices  []model.GPUVertex
	indices   []uint32
	materials []common.ImportedMaterial

	// materialRanges maps contiguous index runs to the material each is
	// drawn with, in draw order.
	materialRanges []model.MaterialRange
}

// loaderBackend defines the generic interface for loading models from files or streams.
// Concrete implementations (e.g., objLoaderBackend) handle format-specific details.
type loaderBackend interface {
	// Load performs a full model import from the given file path, resolving
	// companion files (material libraries, textures) relative to it.
	//
	// Parameters:
	//   - filePath: the path to load, relative to the backend's filesystem root
	//
	// Returns:
	//   - *importedModel: the imported model data
	//   - error: error if loading fails
	Load(filePath string) (*importedModel, error)

	// LoadReader imports a model from a reader stream. Companion files are
	// resolved relative to dir; pass "" when the stream has no material
	// libraries or textures.
	//
	// Parameters:
	//   - name: the model identifier
	//   - r: the reader providing model data
	//   - dir: the directory companion files are resolved against
	//
	// Returns:
	//   - *importedModel: the imported model data
	//   - error: error if loading fails
	LoadReader(name string, r io.Reader, dir string) (*importedModel, error)
}

// objLoaderBackend imports Wavefront OBJ models, their MTL material libraries,
// and any referenced texture images from a single fs.FS.
type objLoaderBackend struct {
	fsys fs.FS
}

var _ loaderBackend = &objLoaderBackend{}

// newOBJLoaderBackend creates an OBJ backend reading from the given filesystem.
//
// Parameters:
//   - fsys: the filesystem model, material, and texture files are read from
//
// Returns:
//   - loaderBackend: the OBJ backend
func newOBJLoaderBackend(fsys fs.FS) loaderBackend {
	return &objLoaderBackend{fsys: fsys}
}

func (b *objLoaderBackend) Load(filePath string) (*importedModel, error) {
	f, err := b.fsys.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer f.Close()

	name := path.Base(filePath)
	return b.LoadReader(name, f, path.Dir(filePath))
}

func (b *objLoaderBackend) LoadReader(name string, r io.Reader, dir string) (*importedModel, error) {
	obj, err := parseOBJ(r)
	if err != nil {
		return nil, err
	}

	vertices, indices, ranges := buildVertices(obj)

	var materials []common.ImportedMaterial
	for _, lib := range obj.mtlLibs {
		mats, err := b.loadMaterialLibrary(path.Join(dir, lib), dir)
		if err != nil {
			return nil, err
		}
		materials = append(materials, mats...)
	}

	return &importedModel{
		name:           name,
		vertices:       vertices,
		indices:        indices,
		materials:      materials,
		materialRanges: ranges,
	}, nil
}

// loadMaterialLibrary parses one MTL file and loads the texture bytes it
// references. A missing texture file drops that texture from the material
// rather than failing the whole load; the material falls back to placeholder
// pixels at upload time.
func (b *objLoaderBackend) loadMaterialLibrary(mtlPath, dir string) ([]common.ImportedMaterial, error) {
	f, err := b.fsys.Open(mtlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open material library %s: %w", mtlPath, err)
	}
	defer f.Close()

	materials, err := parseMTL(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", mtlPath, err)
	}

	for i := range materials {
		if texPath := materials[i].DiffuseTexturePath; texPath != "" {
			materials[i].DiffuseTexture = b.loadTexture("diffuse", path.Join(dir, texPath))
		}
		if texPath := materials[i].NormalTexturePath; texPath != "" {
			materials[i].NormalTexture = b.loadTexture("normal", path.Join(dir, texPath))
		}
	}
	return materials, nil
}

func (b *objLoaderBackend) loadTexture(name, texPath string) *common.ImportedTexture {
	data, err := fs.ReadFile(b.fsys, texPath)
	if err != nil {
		return nil
	}
	return &common.ImportedTexture{
		Name: name,
		Path: texPath,
		Data: data,
	}
}

// buildVertices converts parsed OBJ triangles into a deduplicated vertex list
// with a 32-bit index buffer. Corners sharing the same position/texcoord/normal
// triple collapse into one vertex, which is what lets the tangent pass average
// across adjacent triangles. Corners without a normal get the flat normal of
// their own triangle and stay unshared.
//
// Triangles are emitted grouped by their usemtl assignment, in first-use
// order, so each material covers one contiguous index range and multi-material
// meshes draw each group exactly once.
func buildVertices(obj *objFile) ([]model.GPUVertex, []uint32, []model.MaterialRange) {
	vertices := make([]model.GPUVertex, 0, len(obj.triangles))
	indices := make([]uint32, 0, len(obj.triangles))
	seen := make(map[objFaceIndex]uint32, len(obj.triangles))

	emitTriangle := func(tri int) {
		corners := obj.triangles[tri*3 : tri*3+3]
		var flatNormal [3]float32
		hasFlat := false

		for _, corner := range corners {
			if corner.normal == 0 && !hasFlat {
				flatNormal = triangleNormal(
					obj.positions[corners[0].position-1],
					obj.positions[corners[1].position-1],
					obj.positions[corners[2].position-1],
				)
				hasFlat = true
			}

			if corner.normal != 0 {
				if idx, ok := seen[corner]; ok {
					indices = append(indices, idx)
					continue
				}
			}

			v := model.GPUVertex{
				Position: obj.positions[corner.position-1],
			}
			if corner.texCoord != 0 {
				uv := obj.texCoords[corner.texCoord-1]
				// OBJ texcoords have V growing upward; image rows grow downward.
				v.TexCoord = [2]float32{uv[0], 1 - uv[1]}
			}
			if corner.normal != 0 {
				v.Normal = obj.normals[corner.normal-1]
			} else {
				v.Normal = flatNormal
			}

			idx := uint32(len(vertices))
			vertices = append(vertices, v)
			indices = append(indices, idx)
			if corner.normal != 0 {
				seen[corner] = idx
			}
		}
	}

	var materialOrder []string
	materialSeen := make(map[string]bool)
	for _, name := range obj.triangleMaterials {
		if !materialSeen[name] {
			materialSeen[name] = true
			materialOrder = append(materialOrder, name)
		}
	}

	var ranges []model.MaterialRange
	for _, name := range materialOrder {
		first := uint32(len(indices))
		for tri := 0; tri*3 < len(obj.triangles); tri++ {
			if obj.triangleMaterials[tri] == name {
				emitTriangle(tri)
			}
		}
		ranges = append(ranges, model.MaterialRange{
			Material:   name,
			FirstIndex: first,
			IndexCount: uint32(len(indices)) - first,
		})
	}
	return vertices, indices, ranges
}

func triangleNormal(a, b, c [3]float32) [3]float32 {
	return common.Normalize3(common.Cross3(common.Sub3(b, a), common.Sub3(c, a)))
}
