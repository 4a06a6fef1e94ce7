package material

import (
	"github.com/kestrel3d/kestrel/common"
	"github.com/kestrel3d/kestrel/engine/renderer/bind_group_provider"
)

// MaterialBuilderOption is a function that configures a material instance during construction.
type MaterialBuilderOption func(*material)

// WithName is an option builder that sets the name of the material.
//
// Parameters:
//   - name: the identifier for the material
//
// Returns:
//   - MaterialBuilderOption: a function that applies the name option to a material
func WithName(name string) MaterialBuilderOption {
	return func(m *material) {
		m.name = name
	}
}

// WithAmbientColor is an option builder that sets the ambient reflectivity of the material.
//
// Parameters:
//   - color: the ambient color as RGB float32 values
//
// Returns:
//   - MaterialBuilderOption: a function that applies the ambient color option to a material
func WithAmbientColor(color [3]float32) MaterialBuilderOption {
	return func(m *material) {
		m.ambientColor = color
	}
}

// WithDiffuseColor is an option builder that sets the diffuse reflectivity of the material.
//
// Parameters:
//   - color: the diffuse color as RGB float32 values
//
// Returns:
//   - MaterialBuilderOption: a function that applies the diffuse color option to a material
func WithDiffuseColor(color [3]float32) MaterialBuilderOption {
	return func(m *material) {
		m.diffuseColor = color
	}
}

// WithSpecularColor is an option builder that sets the specular reflectivity of the material.
//
// Parameters:
//   - color: the specular color as RGB float32 values
//
// Returns:
//   - MaterialBuilderOption: a function that applies the specular color option to a material
func WithSpecularColor(color [3]float32) MaterialBuilderOption {
	return func(m *material) {
		m.specularColor = color
	}
}

// WithShininess is an option builder that sets the specular exponent of the material.
//
// Parameters:
//   - shininess: the specular exponent
//
// Returns:
//   - MaterialBuilderOption: a function that applies the shininess option to a material
func WithShininess(shininess float32) MaterialBuilderOption {
	return func(m *material) {
		m.shininess = shininess
	}
}

// WithDiffuseTexture is an option builder that sets the diffuse/albedo texture reference.
//
// Parameters:
//   - tex: the imported texture data for the diffuse map
//
// Returns:
//   - MaterialBuilderOption: a function that applies the diffuse texture option to a material
func WithDiffuseTexture(tex *common.ImportedTexture) MaterialBuilderOption {
	return func(m *material) {
		m.diffuseTexture = tex
	}
}

// WithNormalTexture is an option builder that sets the normal map texture reference.
//
// Parameters:
//   - tex: the imported texture data for the normal map
//
// Returns:
//   - MaterialBuilderOption: a function that applies the normal texture option to a material
func WithNormalTexture(tex *common.ImportedTexture) MaterialBuilderOption {
	return func(m *material) {
		m.normalTexture = tex
	}
}

// WithPipelineKey is an option builder that sets the render pipeline key for the material.
//
// Parameters:
//   - key: the pipeline key to associate with the material
//
// Returns:
//   - MaterialBuilderOption: a function that applies the pipeline key option to a material
func WithPipelineKey(key string) MaterialBuilderOption {
	return func(m *material) {
		m.pipelineKey = key
	}
}

// WithBindGroupProvider is an option builder that sets the bind group provider for the material.
//
// Parameters:
//   - provider: the bind group provider containing GPU resources for the material
//
// Returns:
//   - MaterialBuilderOption: a function that applies the bind group provider option to a material
func WithBindGroupProvider(provider bind_group_provider.BindGroupProvider) MaterialBuilderOption {
	return func(m *material) {
		m.bindGroupProvider = provider
	}
}
