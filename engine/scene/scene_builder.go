package scene

import (
	"github.com/kestrel3d/kestrel/engine/light"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithActive sets whether the scene is active for rendering.
//
// Parameters:
//   - active: whether the scene is active
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithActive(active bool) SceneBuilderOption {
	return func(s *scene) {
		s.active = active
	}
}

// WithLight attaches a light at construction time. The light's bind group
// still needs InitLightBindGroup before the scene can draw.
//
// Parameters:
//   - l: the light to attach
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithLight(l light.Light) SceneBuilderOption {
	return func(s *scene) {
		s.lgt = l
	}
}

// WithPipelineKey sets the pipeline key used for draw calls when a material
// carries no key of its own. Defaults to the vertex shader's key.
//
// Parameters:
//   - key: the registered pipeline's key
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithPipelineKey(key string) SceneBuilderOption {
	return func(s *scene) {
		s.pipelineKey = key
	}
}

// WithCullingDisabled disables frustum culling for the scene. When disabled,
// every instance is uploaded and drawn regardless of camera visibility.
// By default culling is enabled (disabled = false).
//
// Parameters:
//   - disabled: true to disable frustum culling, false to enable it (default)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithCullingDisabled(disabled bool) SceneBuilderOption {
	return func(s *scene) {
		s.cullingDisabled = disabled
	}
}
