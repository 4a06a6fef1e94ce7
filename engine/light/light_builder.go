package light

import (
	"github.com/kestrel3d/kestrel/engine/renderer/bind_group_provider"
)

// LightBuilderOption is a function that configures a Light instance during construction.
type LightBuilderOption func(*lightImpl)

// WithPosition sets the world-space position of the light.
//
// Parameters:
//   - position: world-space coordinates
//
// Returns:
//   - LightBuilderOption: functional option to set the position
func WithPosition(position [3]float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.position = position
	}
}

// WithColor sets the RGB color of the light.
//
// Parameters:
//   - color: color as (r, g, b)
//
// Returns:
//   - LightBuilderOption: functional option to set the color
func WithColor(color [3]float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.color = color
	}
}

// WithBindGroupProvider attaches a bind group provider to the light.
//
// Parameters:
//   - provider: the bind group provider to attach
//
// Returns:
//   - LightBuilderOption: functional option to set the bind group provider
func WithBindGroupProvider(provider bind_group_provider.BindGroupProvider) LightBuilderOption {
	return func(l *lightImpl) {
		l.bindGroupProvider = provider
	}
}
