package loader

import (
	"fmt"
	"io"
	"io/fs"
	"log"
	"path"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"

	"github.com/kestrel3d/kestrel/engine/model"
	"github.com/kestrel3d/kestrel/engine/renderer"
	"github.com/kestrel3d/kestrel/engine/renderer/material"
)

// LoaderBackendType identifies the model file format backend to use.
type LoaderBackendType int

const (
	// BackendTypeOBJ selects the Wavefront OBJ/MTL loader backend.
	BackendTypeOBJ LoaderBackendType = iota
)

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.RWMutex

	uploader renderer.Uploader

	modelCache map[string]model.Model

	backend loaderBackend

	// tangentPool spreads the tangent averaging pass of large meshes across
	// CPU cores. Workers persist across loads.
	tangentPool    worker.DynamicWorkerPool
	tangentWorkers int
}

// Loader defines the public-facing interface for loading and caching 3D models.
// It abstracts the file format behind a generic backend, reads model files and
// their companion material libraries and textures from an fs.FS, and manages a
// cache of previously loaded models. When an Uploader is attached, loaded
// meshes and materials come back with GPU resources ready to draw.
type Loader interface {
	// Load imports a model file and caches the result.
	// If the model is already cached (by file path), the cached version is
	// returned. The backend is selected based on the file extension
	// (.obj → OBJ backend). Material libraries and textures are resolved
	// relative to the model file's directory.
	//
	// Parameters:
	//   - filePath: the model file path, relative to the loader's filesystem root
	//
	// Returns:
	//   - model.Model: the loaded and cached model
	//   - error: error if loading fails
	Load(filePath string) (model.Model, error)

	// LoadReader imports a model from a reader stream and caches it by the
	// given name. Companion files referenced by the stream are resolved
	// against the loader's filesystem root.
	//
	// Parameters:
	//   - name: the cache key for the loaded model
	//   - r: the reader providing OBJ data
	//
	// Returns:
	//   - model.Model: the loaded model
	//   - error: error if loading fails
	LoadReader(name string, r io.Reader) (model.Model, error)

	// Get retrieves a cached model by name. Returns nil if not found.
	//
	// Parameters:
	//   - name: the cache key to look up
	//
	// Returns:
	//   - model.Model: the cached model or nil
	Get(name string) model.Model

	// Models returns the full model cache.
	//
	// Returns:
	//   - map[string]model.Model: all cached models keyed by name
	Models() map[string]model.Model
}

var _ Loader = &loader{}

// NewLoader creates a new Loader instance reading from the given filesystem,
// with the specified backend type and options applied.
//
// Parameters:
//   - backendType: the type of loader backend to use (e.g., BackendTypeOBJ)
//   - fsys: the filesystem model, material, and texture files are read from
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: a new instance of Loader configured with the provided backend and options
func NewLoader(backendType LoaderBackendType, fsys fs.FS, options ...LoaderBuilderOption) Loader {
	l := &loader{
		modelCache:     make(map[string]model.Model),
		tangentWorkers: max(runtime.NumCPU()-1, 1),
	}

	switch backendType {
	case BackendTypeOBJ:
		l.backend = newOBJLoaderBackend(fsys)
	}

	for _, option := range options {
		option(l)
	}

	l.tangentPool = worker.NewDynamicWorkerPool(l.tangentWorkers, 256, 1*time.Second)
	return l
}

func (l *loader) Load(filePath string) (model.Model, error) {
	l.mu.RLock()
	if cached, ok := l.modelCache[filePath]; ok {
		l.mu.RUnlock()
		return cached, nil
	}
	l.mu.RUnlock()

	backend, err := l.resolveBackend(filePath)
	if err != nil {
		return nil, err
	}

	imported, err := backend.Load(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", filePath, err)
	}

	m, err := l.importedToModel(imported)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.modelCache[filePath] = m
	l.mu.Unlock()

	return m, nil
}

func (l *loader) LoadReader(name string, r io.Reader) (model.Model, error) {
	l.mu.RLock()
	if cached, ok := l.modelCache[name]; ok {
		l.mu.RUnlock()
		return cached, nil
	}
	l.mu.RUnlock()

	imported, err := l.backend.LoadReader(name, r, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to load from reader %q: %w", name, err)
	}

	m, err := l.importedToModel(imported)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.modelCache[name] = m
	l.mu.Unlock()

	return m, nil
}

func (l *loader) Get(name string) model.Model {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.modelCache[name]
}

func (l *loader) Models() map[string]model.Model {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make(map[string]model.Model, len(l.modelCache))
	for k, v := range l.modelCache {
		result[k] = v
	}
	return result
}

// resolveBackend selects an appropriate loader backend based on the file extension.
// Currently only Wavefront OBJ is supported.
func (l *loader) resolveBackend(filePath string) (loaderBackend, error) {
	ext := strings.ToLower(path.Ext(filePath))
	switch ext {
	case ".obj":
		return l.backend, nil
	default:
		return nil, fmt.Errorf("unsupported model format: %s", ext)
	}
}

// importedToModel converts an importedModel (CPU data) into a Model
// (engine-ready). Tangent frames are generated on the worker pool, the
// geometry is packed into GPU byte layout, and, when an Uploader is attached,
// vertex/index buffers and material bind groups are created on the GPU. A
// material whose upload fails is dropped from the render list and the model
// still loads; the error surfaces through the returned model's material list
// being shorter than its imported one.
func (l *loader) importedToModel(imported *importedModel) (model.Model, error) {
	generateTangents(imported.vertices, imported.indices, l.tangentPool)

	vertexData := model.MarshalVertices(imported.vertices)
	indexData := model.MarshalIndices(imported.indices)

	opts := []model.ModelBuilderOption{
		model.WithName(imported.name),
		model.WithImportedMaterials(imported.materials),
		model.WithMaterialRanges(imported.materialRanges),
		model.WithVertexData(vertexData),
		model.WithIndexData(indexData),
		model.WithIndexCount(len(imported.indices)),
		model.WithBoundingRadius(model.ComputeBoundingRadius(imported.vertices)),
	}

	if l.uploader != nil {
		handle, err := l.uploader.UploadMesh(imported.name+"_mesh", vertexData, indexData, len(imported.indices))
		if err != nil {
			return nil, fmt.Errorf("failed to upload mesh for %q: %w", imported.name, err)
		}
		opts = append(opts, model.WithMeshProvider(handle.Provider()))
	}

	mdl := model.NewModel(opts...)

	renderMats := make([]material.Material, 0, len(imported.materials))
	for _, imp := range imported.materials {
		mat := material.FromImported(imp)
		if l.uploader != nil {
			if err := l.uploader.BuildMaterial(mat); err != nil {
				// The model still loads; the failed material's index ranges
				// are skipped at draw time.
				log.Printf("loader: dropping material %q for %q: %v", imp.Name, imported.name, err)
				continue
			}
		}
		renderMats = append(renderMats, mat)
	}
	mdl.SetRenderMaterials(renderMats)

	return mdl, nil
}
