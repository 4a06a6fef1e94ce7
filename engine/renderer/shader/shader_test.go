package shader

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVertexSource = `
struct CameraUniform {
    view_proj: mat4x4<f32>,
    view_pos: vec4<f32>,
};
@group(0) @binding(0) var<uniform> camera: CameraUniform;

struct InstanceData {
    model: mat4x4<f32>,
    normal_0: vec4<f32>,
    normal_1: vec4<f32>,
    normal_2: vec4<f32>,
};
@group(3) @binding(0) var<storage, read> instances: array<InstanceData>;

struct VertexInput {
    @location(0) position: vec3<f32>,
    @location(1) tex_coords: vec2<f32>,
    @location(2) normal: vec3<f32>,
    @location(3) tangent: vec3<f32>,
    @location(4) bitangent: vec3<f32>,
};

struct VertexOutput {
    @builtin(position) clip_position: vec4<f32>,
    @location(0) tex_coords: vec2<f32>,
};

@vertex
fn vs_main(in: VertexInput, @builtin(instance_index) idx: u32) -> VertexOutput {
    var out: VertexOutput;
    out.clip_position = camera.view_proj * instances[idx].model * vec4<f32>(in.position, 1.0);
    out.tex_coords = in.tex_coords;
    return out;
}
`

const testFragmentSource = `
@group(2) @binding(0) var diffuse_texture: texture_2d<f32>;
@group(2) @binding(1) var diffuse_sampler: sampler;

@fragment
fn fs_main(@location(0) tex_coords: vec2<f32>) -> @location(0) vec4<f32> {
    return textureSample(diffuse_texture, diffuse_sampler, tex_coords);
}
`

func TestNewShaderVertexParsing(t *testing.T) {
	s, err := NewShader("test_vertex", ShaderTypeVertex, testVertexSource)
	require.NoError(t, err)

	assert.Equal(t, "test_vertex", s.Key())
	assert.Equal(t, "vs_main", s.EntryPoint())
	assert.Equal(t, ShaderTypeVertex, s.ShaderType())

	// VertexInput is the only pure vertex input struct (locations, no builtins).
	layouts := s.VertexLayouts()
	require.Len(t, layouts, 1)
	layout := s.VertexLayout(0)
	require.Len(t, layout, 1)

	// pos3 + uv2 + normal3 + tangent3 + bitangent3 packs to 56 bytes.
	assert.Equal(t, uint64(56), layout[0].ArrayStride)
	require.Len(t, layout[0].Attributes, 5)
	assert.Equal(t, wgpu.VertexFormatFloat32x3, layout[0].Attributes[0].Format)
	assert.Equal(t, uint64(0), layout[0].Attributes[0].Offset)
	assert.Equal(t, wgpu.VertexFormatFloat32x2, layout[0].Attributes[1].Format)
	assert.Equal(t, uint64(12), layout[0].Attributes[1].Offset)
	assert.Equal(t, uint64(44), layout[0].Attributes[4].Offset)
}

func TestNewShaderBindGroupLayouts(t *testing.T) {
	s, err := NewShader("test_vertex", ShaderTypeVertex, testVertexSource)
	require.NoError(t, err)

	descriptors := s.BindGroupLayoutDescriptors()
	require.Contains(t, descriptors, 0)
	require.Contains(t, descriptors, 3)

	cameraDesc := s.BindGroupLayoutDescriptor(0)
	require.Len(t, cameraDesc.Entries, 1)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, cameraDesc.Entries[0].Buffer.Type)
	// mat4x4 (64) + vec4 (16)
	assert.Equal(t, uint64(80), cameraDesc.Entries[0].Buffer.MinBindingSize)

	instanceDesc := s.BindGroupLayoutDescriptor(3)
	require.Len(t, instanceDesc.Entries, 1)
	assert.Equal(t, wgpu.BufferBindingTypeReadOnlyStorage, instanceDesc.Entries[0].Buffer.Type)

	assert.Equal(t, "camera", s.BindGroupVarName(0, 0))
	binding, ok := s.BindGroupFromVarName(3, "instances")
	require.True(t, ok)
	assert.Equal(t, 0, binding)
}

func TestNewShaderFragmentParsing(t *testing.T) {
	s, err := NewShader("test_fragment", ShaderTypeFragment, testFragmentSource)
	require.NoError(t, err)

	assert.Equal(t, "fs_main", s.EntryPoint())
	assert.Empty(t, s.VertexLayouts())

	desc := s.BindGroupLayoutDescriptor(2)
	require.Len(t, desc.Entries, 2)
	assert.Equal(t, wgpu.TextureSampleTypeFloat, desc.Entries[0].Texture.SampleType)
	assert.Equal(t, wgpu.SamplerBindingTypeFiltering, desc.Entries[1].Sampler.Type)
	assert.Equal(t, wgpu.ShaderStageFragment, desc.Entries[0].Visibility)
}

func TestNewShaderMissingEntryPoint(t *testing.T) {
	_, err := NewShader("broken", ShaderTypeFragment, testVertexSource)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "@fragment")
}
