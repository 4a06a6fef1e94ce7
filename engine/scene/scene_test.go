package scene

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/kestrel3d/kestrel/common"
	"github.com/kestrel3d/kestrel/engine/camera"
	"github.com/kestrel3d/kestrel/engine/instance"
	"github.com/kestrel3d/kestrel/engine/light"
	"github.com/kestrel3d/kestrel/engine/model"
	"github.com/kestrel3d/kestrel/engine/renderer"
	"github.com/kestrel3d/kestrel/engine/renderer/bind_group_provider"
	"github.com/kestrel3d/kestrel/engine/renderer/material"
	"github.com/kestrel3d/kestrel/engine/renderer/pipeline"
	"github.com/kestrel3d/kestrel/engine/renderer/shader"
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
};

@vertex
fn vs_main(in: VertexInput, @builtin(instance_index) idx: u32) -> VertexOutput {
    var out: VertexOutput;
    out.clip_position = camera.view_proj * instances[idx].model * vec4<f32>(in.position, 1.0);
    return out;
}
`

const testFragmentSource = `
struct LightUniform {
    position: vec3<f32>,
    color: vec3<f32>,
};
@group(1) @binding(0) var<uniform> light: LightUniform;

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(light.color, 1.0);
}
`

// sceneFakeBackend records bind group and storage buffer activity without a GPU.
type sceneFakeBackend struct {
	initBindGroups []string
	rebuiltGroups  []string
	storageBuffers []string
	storageSizes   []uint64
}

var _ renderer.RendererBackend = &sceneFakeBackend{}

func (f *sceneFakeBackend) Device() *wgpu.Device               { return nil }
func (f *sceneFakeBackend) Queue() *wgpu.Queue                 { return nil }
func (f *sceneFakeBackend) Instance() *wgpu.Instance           { return nil }
func (f *sceneFakeBackend) Adapter() *wgpu.Adapter             { return nil }
func (f *sceneFakeBackend) Surface() *wgpu.Surface             { return nil }
func (f *sceneFakeBackend) SurfaceFormat() *wgpu.TextureFormat { return nil }

func (f *sceneFakeBackend) ConfigureSurface(width, height int) error { return nil }
func (f *sceneFakeBackend) SetPresentMode(mode renderer.PresentMode) {}

func (f *sceneFakeBackend) RegisterRenderPipeline(p pipeline.Pipeline) error { return nil }

func (f *sceneFakeBackend) InitMeshBuffers(provider bind_group_provider.BindGroupProvider, vertexData, indexData []byte, indexCount int) error {
	return nil
}

func (f *sceneFakeBackend) InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor, bufferUsageOverrides map[int]wgpu.BufferUsage, bufferSizeOverrides map[int]uint64) error {
	f.initBindGroups = append(f.initBindGroups, provider.Label())
	return nil
}

func (f *sceneFakeBackend) RebuildBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor) error {
	f.rebuiltGroups = append(f.rebuiltGroups, provider.Label())
	return nil
}

func (f *sceneFakeBackend) CreateStorageBuffer(label string, size uint64) (*wgpu.Buffer, error) {
	f.storageBuffers = append(f.storageBuffers, label)
	f.storageSizes = append(f.storageSizes, size)
	return nil, nil
}

func (f *sceneFakeBackend) CreateTextureView(label string, stagingData common.TextureStagingData) (*wgpu.TextureView, error) {
	return nil, nil
}

func (f *sceneFakeBackend) CreateSampler(label string, stagingData common.SamplerStagingData) (*wgpu.Sampler, error) {
	return nil, nil
}

func (f *sceneFakeBackend) InitTextureView(provider bind_group_provider.BindGroupProvider, bindingKey int, stagingData common.TextureStagingData) error {
	return nil
}

func (f *sceneFakeBackend) InitSampler(provider bind_group_provider.BindGroupProvider, bindingKey int, stagingData common.SamplerStagingData) error {
	return nil
}

func (f *sceneFakeBackend) WriteBuffers(writes []bind_group_provider.BufferWrite) {}

func (f *sceneFakeBackend) BeginFrame() error { return nil }

func (f *sceneFakeBackend) DrawCall(p pipeline.Pipeline, meshProvider bind_group_provider.BindGroupProvider, firstIndex, indexCount, instanceCount uint32, bindGroups []bind_group_provider.BindGroupProvider) {
}

func (f *sceneFakeBackend) EndFrame() error { return nil }
func (f *sceneFakeBackend) Present()        {}
func (f *sceneFakeBackend) ReleaseFrame()   {}

// recordedDraw captures the arguments of one Renderer.DrawCall.
type recordedDraw struct {
	pipelineKey   string
	firstIndex    uint32
	indexCount    uint32
	instanceCount uint32
	bindGroups    []bind_group_provider.BindGroupProvider
}

// fakeRenderer implements renderer.Renderer against the fake backend, recording
// tracked mirrors, staged writes, and draw calls.
type fakeRenderer struct {
	backend *sceneFakeBackend

	mirrors    []renderer.MirrorSource
	writeCalls int
	writes     []bind_group_provider.BufferWrite
	draws      []recordedDraw
}

var _ renderer.Renderer = &fakeRenderer{}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{backend: &sceneFakeBackend{}}
}

func (f *fakeRenderer) Init(surfaceDescriptor *wgpu.SurfaceDescriptor, width, height int) error {
	return nil
}

func (f *fakeRenderer) Backend() renderer.RendererBackend { return f.backend }

func (f *fakeRenderer) Pipeline(key string) pipeline.Pipeline { return nil }

func (f *fakeRenderer) RegisterPipeline(p pipeline.Pipeline) error { return nil }

func (f *fakeRenderer) Resize(width, height int) error { return nil }

func (f *fakeRenderer) Suspended() bool { return false }

func (f *fakeRenderer) TrackMirrors(sources ...renderer.MirrorSource) {
	f.mirrors = append(f.mirrors, sources...)
}

func (f *fakeRenderer) WriteBuffers(writes []bind_group_provider.BufferWrite) {
	f.writeCalls++
	f.writes = append(f.writes, writes...)
}

func (f *fakeRenderer) BeginFrame() error { return nil }

func (f *fakeRenderer) DrawCall(pipelineKey string, meshProvider bind_group_provider.BindGroupProvider, firstIndex, indexCount, instanceCount uint32, bindGroups []bind_group_provider.BindGroupProvider) error {
	draw := recordedDraw{
		pipelineKey:   pipelineKey,
		firstIndex:    firstIndex,
		indexCount:    indexCount,
		instanceCount: instanceCount,
		bindGroups:    append([]bind_group_provider.BindGroupProvider{}, bindGroups...),
	}
	f.draws = append(f.draws, draw)
	return nil
}

func (f *fakeRenderer) EndFrame() error { return nil }
func (f *fakeRenderer) Present() error  { return nil }

func (f *fakeRenderer) Stats() renderer.FrameStats { return renderer.FrameStats{} }

func (f *fakeRenderer) Release() {}

func testVertexShader(t *testing.T) shader.Shader {
	t.Helper()
	s, err := shader.NewShader("lit_vertex", shader.ShaderTypeVertex, testVertexSource)
	require.NoError(t, err)
	return s
}

func testFragmentShader(t *testing.T) shader.Shader {
	t.Helper()
	s, err := shader.NewShader("lit_fragment", shader.ShaderTypeFragment, testFragmentSource)
	require.NoError(t, err)
	return s
}

// testCamera returns a camera at the origin facing -Z, aspect 1.
func testCamera() camera.Camera {
	return camera.NewCamera(
		camera.WithController(camera.NewCameraController()),
	)
}

func testModel(name string, radius float32) model.Model {
	mat := material.NewMaterial(material.WithName(name + "_mat"))
	mat.SetBindGroupProvider(bind_group_provider.NewBindGroupProvider(name + "_mat"))
	mdl := model.NewModel(
		model.WithName(name),
		model.WithMeshProvider(bind_group_provider.NewBindGroupProvider(name+"_mesh")),
		model.WithBoundingRadius(radius),
	)
	mdl.SetRenderMaterials([]material.Material{mat})
	return mdl
}

func TestNewSceneInitializesCameraBindGroup(t *testing.T) {
	r := newFakeRenderer()
	cam := testCamera()

	s := NewScene("main", cam, r, testVertexShader(t))

	require.NotNil(t, s)
	require.Len(t, r.backend.initBindGroups, 1)
	assert.Equal(t, cam.BindGroupProvider().Label(), r.backend.initBindGroups[0])
	assert.Contains(t, r.mirrors, renderer.MirrorSource(cam))
}

func TestNewScenePanicsOnNilArguments(t *testing.T) {
	r := newFakeRenderer()
	cam := testCamera()
	vs := testVertexShader(t)

	assert.Panics(t, func() { NewScene("main", nil, r, vs) })
	assert.Panics(t, func() { NewScene("main", cam, nil, vs) })
	assert.Panics(t, func() { NewScene("main", cam, r, nil) })
}

func TestInitLightBindGroup(t *testing.T) {
	r := newFakeRenderer()
	lgt := light.NewLight()
	s := NewScene("main", testCamera(), r, testVertexShader(t), WithLight(lgt))

	require.NoError(t, s.InitLightBindGroup(testFragmentShader(t)))
	assert.Contains(t, r.backend.initBindGroups, lgt.BindGroupProvider().Label())
	assert.Contains(t, r.mirrors, renderer.MirrorSource(lgt))
}

func TestInitLightBindGroupWithoutLight(t *testing.T) {
	r := newFakeRenderer()
	s := NewScene("main", testCamera(), r, testVertexShader(t))

	assert.Error(t, s.InitLightBindGroup(testFragmentShader(t)))
}

func TestAddModelCreatesInstanceResources(t *testing.T) {
	r := newFakeRenderer()
	s := NewScene("main", testCamera(), r, testVertexShader(t))

	mdl := testModel("cube", 1)
	require.NoError(t, s.AddModel(mdl, instance.Instance{Scale: [3]float32{1, 1, 1}}))

	// One storage buffer sized for the minimum instance capacity.
	require.Len(t, r.backend.storageBuffers, 1)
	assert.Equal(t, "cube_instances", r.backend.storageBuffers[0])
	assert.Equal(t, uint64(64*112), r.backend.storageSizes[0])

	// Camera bind group plus the instance bind group.
	assert.Len(t, r.backend.initBindGroups, 2)

	// The camera mirror from construction plus the GPU-side instance mirror.
	assert.Len(t, r.mirrors, 2)

	// Registering the same model twice is rejected.
	assert.Error(t, s.AddModel(mdl))
	assert.Same(t, mdl, s.Model("cube"))
}

func TestPrepareFrameStagesDirtyMirrors(t *testing.T) {
	r := newFakeRenderer()
	cam := testCamera()
	lgt := light.NewLight()
	s := NewScene("main", cam, r, testVertexShader(t), WithLight(lgt), WithCullingDisabled(true))
	require.NoError(t, s.InitLightBindGroup(testFragmentShader(t)))

	require.NoError(t, s.AddModel(testModel("cube", 1),
		instance.Instance{Scale: [3]float32{1, 1, 1}},
		instance.Instance{Position: [3]float32{3, 0, 0}, Scale: [3]float32{1, 1, 1}},
	))

	require.NoError(t, s.PrepareFrame())

	// Camera uniform, light uniform, and packed instances.
	require.Len(t, r.writes, 3)
	assert.Equal(t, 80, len(r.writes[0].Data))
	assert.Equal(t, 32, len(r.writes[1].Data))
	assert.Equal(t, 2*112, len(r.writes[2].Data))

	assert.False(t, cam.MirrorDirty())
	assert.False(t, lgt.MirrorDirty())

	// A steady-state frame stages nothing.
	require.NoError(t, s.PrepareFrame())
	assert.Equal(t, 1, r.writeCalls)
}

func TestPrepareFrameRestagesAfterLightChange(t *testing.T) {
	r := newFakeRenderer()
	lgt := light.NewLight()
	s := NewScene("main", testCamera(), r, testVertexShader(t), WithLight(lgt))
	require.NoError(t, s.InitLightBindGroup(testFragmentShader(t)))
	require.NoError(t, s.PrepareFrame())

	before := len(r.writes)
	lgt.SetColor([3]float32{1, 0, 0})
	require.NoError(t, s.PrepareFrame())

	require.Len(t, r.writes, before+1)
	assert.Equal(t, 32, len(r.writes[before].Data))
}

func TestPrepareFrameCullsInstancesOutsideFrustum(t *testing.T) {
	r := newFakeRenderer()
	s := NewScene("main", testCamera(), r, testVertexShader(t))

	// The default controller looks down -Z from the origin. One instance
	// ahead of the camera, one behind it.
	require.NoError(t, s.AddModel(testModel("cube", 1),
		instance.Instance{Position: [3]float32{0, 0, -5}, Scale: [3]float32{1, 1, 1}},
		instance.Instance{Position: [3]float32{0, 0, 50}, Scale: [3]float32{1, 1, 1}},
	))

	require.NoError(t, s.PrepareFrame())

	assert.Equal(t, uint64(1), s.CulledLastFrame())
	assert.Equal(t, 2, s.Count())

	// The staged instance data covers only the visible instance.
	require.NotEmpty(t, r.writes)
	last := r.writes[len(r.writes)-1]
	assert.Equal(t, 112, len(last.Data))
}

func TestPrepareFrameDrawsEverythingWhenCullingDisabled(t *testing.T) {
	r := newFakeRenderer()
	s := NewScene("main", testCamera(), r, testVertexShader(t), WithCullingDisabled(true))

	require.NoError(t, s.AddModel(testModel("cube", 1),
		instance.Instance{Position: [3]float32{0, 0, -5}, Scale: [3]float32{1, 1, 1}},
		instance.Instance{Position: [3]float32{0, 0, 50}, Scale: [3]float32{1, 1, 1}},
	))

	require.NoError(t, s.PrepareFrame())
	assert.Equal(t, uint64(0), s.CulledLastFrame())
}

func TestPrepareFrameRebuildsGrownInstanceBuffer(t *testing.T) {
	r := newFakeRenderer()
	s := NewScene("main", testCamera(), r, testVertexShader(t), WithCullingDisabled(true))

	require.NoError(t, s.AddModel(testModel("cube", 1), instance.Instance{Scale: [3]float32{1, 1, 1}}))
	require.NoError(t, s.PrepareFrame())
	require.Empty(t, r.backend.rebuiltGroups)

	// Grow beyond the minimum capacity of 64.
	grown := make([]instance.Instance, 100)
	for i := range grown {
		grown[i] = instance.Instance{Position: [3]float32{float32(i), 0, 0}, Scale: [3]float32{1, 1, 1}}
	}
	require.NoError(t, s.SetInstances("cube", grown))
	require.NoError(t, s.PrepareFrame())

	// A second storage buffer at the doubled capacity, and a rebuilt bind group.
	require.Len(t, r.backend.storageBuffers, 2)
	assert.Equal(t, uint64(128*112), r.backend.storageSizes[1])
	require.Len(t, r.backend.rebuiltGroups, 1)

	// Steady state after the rebuild: no further reallocations.
	require.NoError(t, s.PrepareFrame())
	assert.Len(t, r.backend.storageBuffers, 2)
	assert.Len(t, r.backend.rebuiltGroups, 1)
}

func TestDrawCallsBindOrder(t *testing.T) {
	r := newFakeRenderer()
	cam := testCamera()
	lgt := light.NewLight()
	s := NewScene("main", cam, r, testVertexShader(t), WithLight(lgt), WithCullingDisabled(true))
	require.NoError(t, s.InitLightBindGroup(testFragmentShader(t)))

	mdl := testModel("cube", 1)
	require.NoError(t, s.AddModel(mdl, instance.Instance{Scale: [3]float32{1, 1, 1}}))
	require.NoError(t, s.PrepareFrame())

	require.NoError(t, s.DrawCalls())
	require.Len(t, r.draws, 1)

	draw := r.draws[0]
	assert.Equal(t, "lit_vertex", draw.pipelineKey)
	assert.Equal(t, uint32(1), draw.instanceCount)
	require.Len(t, draw.bindGroups, 4)
	assert.Same(t, cam.BindGroupProvider(), draw.bindGroups[0])
	assert.Same(t, lgt.BindGroupProvider(), draw.bindGroups[1])
	assert.Same(t, mdl.RenderMaterials()[0].BindGroupProvider(), draw.bindGroups[2])
}

func TestDrawCallsBatchesInstancesIntoSingleDraw(t *testing.T) {
	r := newFakeRenderer()
	s := NewScene("main", testCamera(), r, testVertexShader(t), WithCullingDisabled(true))

	instances := make([]instance.Instance, 100)
	for i := range instances {
		instances[i] = instance.Instance{Position: [3]float32{float32(i), 0, 0}, Scale: [3]float32{1, 1, 1}}
	}
	require.NoError(t, s.AddModel(testModel("cube", 1), instances...))
	require.NoError(t, s.PrepareFrame())

	require.NoError(t, s.DrawCalls())
	require.Len(t, r.draws, 1)
	assert.Equal(t, uint32(100), r.draws[0].instanceCount)
}

// multiMaterialModel builds a 36-index model split into two material groups.
func multiMaterialModel(name string) model.Model {
	front := material.NewMaterial(material.WithName("front"))
	front.SetBindGroupProvider(bind_group_provider.NewBindGroupProvider("front_mat"))
	back := material.NewMaterial(material.WithName("back"))
	back.SetBindGroupProvider(bind_group_provider.NewBindGroupProvider("back_mat"))

	mdl := model.NewModel(
		model.WithName(name),
		model.WithMeshProvider(bind_group_provider.NewBindGroupProvider(name+"_mesh")),
		model.WithIndexCount(36),
		model.WithBoundingRadius(1),
		model.WithMaterialRanges([]model.MaterialRange{
			{Material: "front", FirstIndex: 0, IndexCount: 18},
			{Material: "back", FirstIndex: 18, IndexCount: 18},
		}),
	)
	mdl.SetRenderMaterials([]material.Material{front, back})
	return mdl
}

func TestDrawCallsDrawEachMaterialRangeOnce(t *testing.T) {
	r := newFakeRenderer()
	s := NewScene("main", testCamera(), r, testVertexShader(t), WithCullingDisabled(true))

	mdl := multiMaterialModel("crate")
	require.NoError(t, s.AddModel(mdl, instance.Instance{Scale: [3]float32{1, 1, 1}}))
	require.NoError(t, s.PrepareFrame())

	require.NoError(t, s.DrawCalls())
	require.Len(t, r.draws, 2)

	// Each material group covers its own slice of the index buffer.
	assert.Equal(t, uint32(0), r.draws[0].firstIndex)
	assert.Equal(t, uint32(18), r.draws[0].indexCount)
	assert.Equal(t, uint32(18), r.draws[1].firstIndex)
	assert.Equal(t, uint32(18), r.draws[1].indexCount)

	mats := mdl.RenderMaterials()
	assert.Same(t, mats[0].BindGroupProvider(), r.draws[0].bindGroups[2])
	assert.Same(t, mats[1].BindGroupProvider(), r.draws[1].bindGroups[2])
}

func TestDrawCallsWithoutRangesDrawWholeMeshOnce(t *testing.T) {
	r := newFakeRenderer()
	s := NewScene("main", testCamera(), r, testVertexShader(t), WithCullingDisabled(true))

	// Two materials but no ranges: the whole mesh draws once under the first.
	mdl := multiMaterialModel("crate")
	mdl.SetMaterialRanges(nil)
	require.NoError(t, s.AddModel(mdl, instance.Instance{Scale: [3]float32{1, 1, 1}}))
	require.NoError(t, s.PrepareFrame())

	require.NoError(t, s.DrawCalls())
	require.Len(t, r.draws, 1)
	assert.Equal(t, uint32(0), r.draws[0].firstIndex)
	assert.Equal(t, uint32(0), r.draws[0].indexCount)
	assert.Same(t, mdl.RenderMaterials()[0].BindGroupProvider(), r.draws[0].bindGroups[2])
}

func TestDrawCallsSkipRangeOfDroppedMaterial(t *testing.T) {
	r := newFakeRenderer()
	s := NewScene("main", testCamera(), r, testVertexShader(t), WithCullingDisabled(true))

	mdl := multiMaterialModel("crate")
	// Drop the second material, as the loader does when its upload fails.
	mdl.SetRenderMaterials(mdl.RenderMaterials()[:1])
	require.NoError(t, s.AddModel(mdl, instance.Instance{Scale: [3]float32{1, 1, 1}}))
	require.NoError(t, s.PrepareFrame())

	require.NoError(t, s.DrawCalls())
	require.Len(t, r.draws, 1)
	assert.Equal(t, uint32(0), r.draws[0].firstIndex)
	assert.Equal(t, uint32(18), r.draws[0].indexCount)
}

func TestDrawCallsUsesMaterialPipelineKey(t *testing.T) {
	r := newFakeRenderer()
	s := NewScene("main", testCamera(), r, testVertexShader(t), WithCullingDisabled(true))

	mdl := testModel("cube", 1)
	mdl.RenderMaterials()[0].SetPipelineKey("custom")
	require.NoError(t, s.AddModel(mdl, instance.Instance{Scale: [3]float32{1, 1, 1}}))
	require.NoError(t, s.PrepareFrame())

	require.NoError(t, s.DrawCalls())
	require.Len(t, r.draws, 1)
	assert.Equal(t, "custom", r.draws[0].pipelineKey)
}

func TestDrawCallsSkipsFullyCulledModel(t *testing.T) {
	r := newFakeRenderer()
	s := NewScene("main", testCamera(), r, testVertexShader(t))

	require.NoError(t, s.AddModel(testModel("cube", 1),
		instance.Instance{Position: [3]float32{0, 0, 50}, Scale: [3]float32{1, 1, 1}},
	))
	require.NoError(t, s.PrepareFrame())

	require.NoError(t, s.DrawCalls())
	assert.Empty(t, r.draws)
}

func TestRemoveModel(t *testing.T) {
	r := newFakeRenderer()
	s := NewScene("main", testCamera(), r, testVertexShader(t), WithCullingDisabled(true))

	require.NoError(t, s.AddModel(testModel("cube", 1), instance.Instance{Scale: [3]float32{1, 1, 1}}))
	require.NoError(t, s.PrepareFrame())

	s.RemoveModel("cube")
	assert.Nil(t, s.Model("cube"))
	assert.Equal(t, 0, s.Count())

	require.NoError(t, s.DrawCalls())
	assert.Empty(t, r.draws)
}

func TestUpdateAdvancesCamera(t *testing.T) {
	r := newFakeRenderer()
	ctrl := camera.NewCameraController(camera.WithSpeed(2))
	cam := camera.NewCamera(camera.WithController(ctrl))
	s := NewScene("main", cam, r, testVertexShader(t))
	require.NoError(t, s.PrepareFrame())
	require.False(t, cam.MirrorDirty())

	ctrl.ProcessKey(common.KeyW, true)
	s.Update(0.5)

	// Moving the controller dirties the camera mirror for the next frame.
	assert.True(t, cam.MirrorDirty())
	assert.Equal(t, [3]float32{0, 0, -1}, ctrl.Position())
}
