package material

import (
	"github.com/kestrel3d/kestrel/common"
	"github.com/kestrel3d/kestrel/engine/renderer/bind_group_provider"
)

// Binding indices within the material bind group. The lit pipeline binds the
// material at group 2 with the diffuse map and its sampler first, then the
// normal map and its sampler.
const (
	BindingDiffuseTexture = 0
	BindingDiffuseSampler = 1
	BindingNormalTexture  = 2
	BindingNormalSampler  = 3
)

// material is the implementation of the Material interface.
type material struct {
	name              string
	ambientColor      [3]float32
	diffuseColor      [3]float32
	specularColor     [3]float32
	shininess         float32
	diffuseTexture    *common.ImportedTexture
	normalTexture     *common.ImportedTexture
	pipelineKey       string
	bindGroupProvider bind_group_provider.BindGroupProvider
}

// Material defines the interface for a render material, encapsulating surface
// properties, texture references, and GPU resource bindings needed for draw calls.
//
// Surface properties (name, colors, shininess, textures) are set at load time and
// are read-only through this interface. GPU resource references (pipeline key,
// bind group provider) are mutable so they can be configured after construction
// during the upload phase.
type Material interface {
	// Name retrieves the material identifier.
	//
	// Returns:
	//   - string: the name of the material
	Name() string

	// AmbientColor retrieves the ambient reflectivity of the material.
	//
	// Returns:
	//   - [3]float32: the ambient color as RGB values
	AmbientColor() [3]float32

	// DiffuseColor retrieves the diffuse reflectivity of the material.
	//
	// Returns:
	//   - [3]float32: the diffuse color as RGB values
	DiffuseColor() [3]float32

	// SpecularColor retrieves the specular reflectivity of the material.
	//
	// Returns:
	//   - [3]float32: the specular color as RGB values
	SpecularColor() [3]float32

	// Shininess retrieves the specular exponent of the material.
	//
	// Returns:
	//   - float32: the specular exponent
	Shininess() float32

	// DiffuseTexture retrieves the diffuse/albedo texture data reference, or nil if none is set.
	//
	// Returns:
	//   - *common.ImportedTexture: the diffuse texture, or nil
	DiffuseTexture() *common.ImportedTexture

	// NormalTexture retrieves the normal map texture data reference, or nil if none is set.
	//
	// Returns:
	//   - *common.ImportedTexture: the normal texture, or nil
	NormalTexture() *common.ImportedTexture

	// PipelineKey retrieves the key identifying the render pipeline this material uses.
	//
	// Returns:
	//   - string: the pipeline key
	PipelineKey() string

	// BindGroupProvider retrieves the bind group provider holding GPU-side resources for this material.
	//
	// Returns:
	//   - bind_group_provider.BindGroupProvider: the bind group provider, or nil if not yet initialized
	BindGroupProvider() bind_group_provider.BindGroupProvider

	// SetPipelineKey sets the render pipeline key for this material.
	//
	// Parameters:
	//   - key: the pipeline key to associate with this material
	SetPipelineKey(key string)

	// SetBindGroupProvider sets the bind group provider for this material.
	//
	// Parameters:
	//   - provider: the bind group provider containing GPU resources for this material
	SetBindGroupProvider(provider bind_group_provider.BindGroupProvider)
}

var _ Material = &material{}

// NewMaterial creates a new Material instance configured with the provided options.
//
// Parameters:
//   - options: variadic list of MaterialBuilderOption functions to configure the material
//
// Returns:
//   - Material: a new Material instance
func NewMaterial(options ...MaterialBuilderOption) Material {
	m := &material{
		ambientColor:  [3]float32{1, 1, 1},
		diffuseColor:  [3]float32{1, 1, 1},
		specularColor: [3]float32{0, 0, 0},
		shininess:     32.0,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// FromImported builds a Material from loader output, carrying over the MTL
// surface properties and texture references.
//
// Parameters:
//   - imported: the parsed material definition from the loader
//
// Returns:
//   - Material: a new Material instance mirroring the imported definition
func FromImported(imported common.ImportedMaterial) Material {
	return NewMaterial(
		WithName(imported.Name),
		WithAmbientColor(imported.Ambient),
		WithDiffuseColor(imported.Diffuse),
		WithSpecularColor(imported.Specular),
		WithShininess(imported.Shininess),
		WithDiffuseTexture(imported.DiffuseTexture),
		WithNormalTexture(imported.NormalTexture),
	)
}

func (m *material) Name() string {
	return m.name
}

func (m *material) AmbientColor() [3]float32 {
	return m.ambientColor
}

func (m *material) DiffuseColor() [3]float32 {
	return m.diffuseColor
}

func (m *material) SpecularColor() [3]float32 {
	return m.specularColor
}

func (m *material) Shininess() float32 {
	return m.shininess
}

func (m *material) DiffuseTexture() *common.ImportedTexture {
	return m.diffuseTexture
}

func (m *material) NormalTexture() *common.ImportedTexture {
	return m.normalTexture
}

func (m *material) PipelineKey() string {
	return m.pipelineKey
}

func (m *material) BindGroupProvider() bind_group_provider.BindGroupProvider {
	return m.bindGroupProvider
}

func (m *material) SetPipelineKey(key string) {
	m.pipelineKey = key
}

func (m *material) SetBindGroupProvider(provider bind_group_provider.BindGroupProvider) {
	m.bindGroupProvider = provider
}
