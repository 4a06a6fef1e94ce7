package model

import (
	"github.com/kestrel3d/kestrel/common"
	"github.com/kestrel3d/kestrel/engine/renderer/bind_group_provider"
	"github.com/kestrel3d/kestrel/engine/renderer/material"
)

// ModelBuilderOption is a functional option for configuring a Model via NewModel.
type ModelBuilderOption func(*model)

// WithName is an option builder that sets the name of the Model.
//
// Parameters:
//   - name: the model identifier
//
// Returns:
//   - ModelBuilderOption: a function that applies the name option to a model
func WithName(name string) ModelBuilderOption {
	return func(m *model) {
		m.name = name
	}
}

// WithImportedMaterials is an option builder that sets the raw imported material list.
//
// Parameters:
//   - materials: the imported materials from the model file
//
// Returns:
//   - ModelBuilderOption: a function that applies the materials option to a model
func WithImportedMaterials(materials []common.ImportedMaterial) ModelBuilderOption {
	return func(m *model) {
		m.importedMaterials = materials
	}
}

// WithRenderMaterials is an option builder that sets the render-ready material list.
//
// Parameters:
//   - materials: the GPU-configured materials
//
// Returns:
//   - ModelBuilderOption: a function that applies the materials option to a model
func WithRenderMaterials(materials []material.Material) ModelBuilderOption {
	return func(m *model) {
		m.renderMaterials = materials
	}
}

// WithMaterialRanges is an option builder that sets the per-material index ranges.
//
// Parameters:
//   - ranges: the index ranges in draw order
//
// Returns:
//   - ModelBuilderOption: a function that applies the ranges option to a model
func WithMaterialRanges(ranges []MaterialRange) ModelBuilderOption {
	return func(m *model) {
		m.materialRanges = ranges
	}
}

// WithMeshProvider is an option builder that sets the BindGroupProvider holding GPU mesh resources.
//
// Parameters:
//   - provider: the mesh bind group provider
//
// Returns:
//   - ModelBuilderOption: a function that applies the provider option to a model
func WithMeshProvider(provider bind_group_provider.BindGroupProvider) ModelBuilderOption {
	return func(m *model) {
		m.meshProvider = provider
	}
}

// WithVertexData is an option builder that sets the raw vertex data of the Model.
//
// Parameters:
//   - data: the packed vertex data
//
// Returns:
//   - ModelBuilderOption: a function that applies the vertex data option to a model
func WithVertexData(data []byte) ModelBuilderOption {
	return func(m *model) {
		m.vertexData = data
	}
}

// WithIndexData is an option builder that sets the raw index data of the Model.
//
// Parameters:
//   - data: the packed index data
//
// Returns:
//   - ModelBuilderOption: a function that applies the index data option to a model
func WithIndexData(data []byte) ModelBuilderOption {
	return func(m *model) {
		m.indexData = data
	}
}

// WithIndexCount is an option builder that sets the index count of the Model.
//
// Parameters:
//   - count: the number of indices in the mesh
//
// Returns:
//   - ModelBuilderOption: a function that applies the index count option to a model
func WithIndexCount(count int) ModelBuilderOption {
	return func(m *model) {
		m.indexCount = count
	}
}

// WithBoundingRadius is an option builder that sets the bounding sphere radius of the Model.
//
// Parameters:
//   - radius: the maximum vertex distance from the origin
//
// Returns:
//   - ModelBuilderOption: a function that applies the bounding radius option to a model
func WithBoundingRadius(radius float32) ModelBuilderOption {
	return func(m *model) {
		m.boundingRadius = radius
	}
}
