package loader

import (
	"github.com/kestrel3d/kestrel/engine/model"
	"github.com/kestrel3d/kestrel/engine/renderer"
)

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithUploader is an option builder that sets the GPU uploader used by the Loader.
// Without an uploader, models load CPU-side only (useful for tooling and tests).
//
// Parameters:
//   - u: the uploader instance
//
// Returns:
//   - LoaderBuilderOption: a function that applies the uploader option to a loader
func WithUploader(u renderer.Uploader) LoaderBuilderOption {
	return func(l *loader) {
		l.uploader = u
	}
}

// WithTangentWorkers sets the number of workers used for the tangent averaging
// pass on large meshes. Defaults to runtime.NumCPU()-1.
//
// Parameters:
//   - workers: the worker count (minimum 1)
//
// Returns:
//   - LoaderBuilderOption: a function that applies the worker count option to a loader
func WithTangentWorkers(workers int) LoaderBuilderOption {
	return func(l *loader) {
		l.tangentWorkers = max(workers, 1)
	}
}

// WithModel is an option builder that pre-populates the model cache with a model.
//
// Parameters:
//   - key: the cache key for the model
//   - model: the model to cache
//
// Returns:
//   - LoaderBuilderOption: a function that applies the model option to a loader
func WithModel(key string, model model.Model) LoaderBuilderOption {
	return func(l *loader) {
		l.modelCache[key] = model
	}
}
