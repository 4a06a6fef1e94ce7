package material

import "github.com/cogentcore/webgpu/wgpu"

// BindGroupLayoutDescriptor returns the layout for a material bind group:
// the diffuse map and sampler at bindings 0 and 1, the normal map and sampler
// at bindings 2 and 3, all visible to the fragment stage.
//
// Parameters:
//   - label: the debug label for the layout
//
// Returns:
//   - wgpu.BindGroupLayoutDescriptor: the material bind group layout
func BindGroupLayoutDescriptor(label string) wgpu.BindGroupLayoutDescriptor {
	return wgpu.BindGroupLayoutDescriptor{
		Label: label + " Material Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    BindingDiffuseTexture,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    BindingDiffuseSampler,
				Visibility: wgpu.ShaderStageFragment,
				Sampler: wgpu.SamplerBindingLayout{
					Type: wgpu.SamplerBindingTypeFiltering,
				},
			},
			{
				Binding:    BindingNormalTexture,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    BindingNormalSampler,
				Visibility: wgpu.ShaderStageFragment,
				Sampler: wgpu.SamplerBindingLayout{
					Type: wgpu.SamplerBindingTypeFiltering,
				},
			},
		},
	}
}
