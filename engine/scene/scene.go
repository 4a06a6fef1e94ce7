package scene

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/kestrel3d/kestrel/common"
	"github.com/kestrel3d/kestrel/engine/camera"
	"github.com/kestrel3d/kestrel/engine/instance"
	"github.com/kestrel3d/kestrel/engine/light"
	"github.com/kestrel3d/kestrel/engine/model"
	"github.com/kestrel3d/kestrel/engine/renderer"
	"github.com/kestrel3d/kestrel/engine/renderer/bind_group_provider"
	"github.com/kestrel3d/kestrel/engine/renderer/material"
	"github.com/kestrel3d/kestrel/engine/renderer/shader"
)

// Scene drives a set of instanced models through the renderer each frame. It
// owns the camera, the light, and one instance list per model, keeps their GPU
// mirrors flushed, and records the draw calls. Scenes can be hot-swapped via
// the Active flag to switch between different views or levels.
// Thread-safe for concurrent access.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// SetName sets the scene's identifier.
	SetName(name string)

	// Active returns whether this scene is currently active for rendering.
	Active() bool

	// SetActive sets whether this scene is active for rendering.
	SetActive(active bool)

	// Camera returns the scene's camera.
	Camera() camera.Camera

	// SetCamera replaces the scene's camera.
	SetCamera(cam camera.Camera)

	// Light returns the scene's light, or nil if none is attached.
	Light() light.Light

	// SetLight attaches a light to the scene. The light's bind group must be
	// initialized via InitLightBindGroup before the scene can draw.
	SetLight(l light.Light)

	// Renderer returns the scene's renderer.
	Renderer() renderer.Renderer

	// CullingDisabled reports whether frustum culling is disabled for this scene.
	CullingDisabled() bool

	// SetCullingDisabled enables or disables frustum culling. When disabled,
	// every instance is uploaded and drawn regardless of camera visibility.
	SetCullingDisabled(disabled bool)

	// PipelineKey returns the pipeline key used for draws when a material does
	// not carry its own.
	PipelineKey() string

	// InitLightBindGroup creates the light's GPU bind group using the layout
	// declared by the given fragment shader. Must be called once before drawing
	// when a light is attached.
	//
	// Parameters:
	//   - fragmentShader: a fragment shader whose bind groups include the light uniform layout
	//
	// Returns:
	//   - error: an error if the light bind group could not be created
	InitLightBindGroup(fragmentShader shader.Shader) error

	// AddModel registers a model together with its initial instance list. The
	// scene creates the model's instance storage buffer and bind group on the
	// GPU and tracks the instance mirror on the renderer.
	//
	// Parameters:
	//   - mdl: the model to register (keyed by its name)
	//   - instances: the initial instance transforms
	//
	// Returns:
	//   - error: an error if the model is already registered or GPU resources could not be created
	AddModel(mdl model.Model, instances ...instance.Instance) error

	// RemoveModel unregisters a model and releases its instance GPU resources.
	RemoveModel(name string)

	// Model returns a registered model by name, or nil if not present.
	Model(name string) model.Model

	// SetInstances replaces the instance list of a registered model. The new
	// list is culled and uploaded on the next PrepareFrame.
	//
	// Parameters:
	//   - name: the name of a registered model
	//   - instances: the replacement instance transforms
	//
	// Returns:
	//   - error: an error if no model with the given name is registered
	SetInstances(name string, instances []instance.Instance) error

	// Instances returns a copy of the authoritative (pre-culling) instance list
	// of a registered model, or nil if not present.
	Instances(name string) []instance.Instance

	// Count returns the total instance count across all registered models,
	// before culling.
	Count() int

	// CulledLastFrame returns how many instances the most recent PrepareFrame
	// rejected as outside the camera frustum.
	CulledLastFrame() uint64

	// Update advances the camera controller by dt seconds and refreshes the
	// camera matrices. Called from the engine tick loop.
	//
	// Parameters:
	//   - dt: elapsed time in seconds since the previous tick
	Update(dt float32)

	// PrepareFrame culls instances against the camera frustum, reallocates any
	// instance storage buffer that grew, and stages all dirty uniform and
	// instance mirrors onto the GPU queue. Must run before DrawCalls so the
	// renderer's dirty-mirror check passes.
	//
	// Returns:
	//   - error: an error if a grown storage buffer or bind group could not be rebuilt
	PrepareFrame() error

	// DrawCalls records one draw per registered model (per material) into the
	// renderer's open frame. The renderer's BeginFrame must have succeeded.
	//
	// Returns:
	//   - error: an error if a draw call was rejected
	DrawCalls() error

	// Release frees the GPU resources owned by the scene's instance buffers.
	Release()
}

// renderEntry pairs a model with its instance data. The source buffer is the
// authoritative, user-mutated instance list and never touches the GPU; the gpu
// buffer mirrors the post-culling subset and owns the storage buffer the draw
// binds at group 3.
type renderEntry struct {
	mdl    model.Model
	source instance.InstanceBuffer
	gpu    instance.InstanceBuffer

	// boundGeneration is the gpu buffer generation the current bind group was
	// built against. A mismatch means the storage buffer must be reallocated.
	boundGeneration uint64
}

type scene struct {
	mu *sync.RWMutex

	name   string
	active bool

	cam camera.Camera
	lgt light.Light
	r   renderer.Renderer

	entries map[string]*renderEntry
	order   []string // model names in registration order for stable draw order

	pipelineKey     string
	cullingDisabled bool

	// instanceLayout is the bind group layout for the per-model instance
	// storage buffer, discovered from the vertex shader at construction.
	instanceLayout   wgpu.BindGroupLayoutDescriptor
	hasInstanceGroup bool

	// lastViewProj is the view-projection matrix the current culling results
	// were computed against. Culling reruns only when it changes.
	lastViewProj [16]float32
	frustum      common.Frustum
	culled       uint64

	// Pre-allocated slices reused each frame to avoid per-frame allocations.
	writePool          []bind_group_provider.BufferWrite
	drawBindGroupsPool []bind_group_provider.BindGroupProvider
	visiblePool        []instance.Instance
}

// Ensure scene implements Scene interface.
var _ Scene = &scene{}

// NewScene creates a new Scene with the given camera, renderer, and a vertex
// shader used to discover bind group layouts. All three are required and
// NewScene panics if any of them is nil. The vertex shader's bind group var
// names are scanned for a group containing "camera", whose layout initializes
// the camera's BindGroupProvider on the GPU, and a group containing "instance",
// whose layout is kept for the per-model instance storage bind groups.
//
// Parameters:
//   - name: the name of the scene
//   - cam: the camera to attach (must not be nil)
//   - r: the renderer to attach (must not be nil)
//   - vertexShader: a vertex shader declaring the camera and instance bind groups (must not be nil)
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(name string, cam camera.Camera, r renderer.Renderer, vertexShader shader.Shader, options ...SceneBuilderOption) Scene {
	if cam == nil {
		panic("scene: NewScene requires a non-nil Camera")
	}
	if r == nil {
		panic("scene: NewScene requires a non-nil Renderer")
	}
	if vertexShader == nil {
		panic("scene: NewScene requires a non-nil vertex shader for bind group init")
	}

	s := &scene{
		mu:                 &sync.RWMutex{},
		name:               name,
		active:             false,
		cam:                cam,
		r:                  r,
		entries:            make(map[string]*renderEntry),
		pipelineKey:        vertexShader.Key(),
		drawBindGroupsPool: make([]bind_group_provider.BindGroupProvider, 0, 4),
	}

	for _, option := range options {
		option(s)
	}

	// Initialize the camera's bind group on the GPU using the layout from the vertex shader.
	if group, ok := findBindGroup(vertexShader, "camera"); ok {
		if bgp := cam.BindGroupProvider(); bgp != nil {
			if err := r.Backend().InitBindGroup(bgp, vertexShader.BindGroupLayoutDescriptor(group), nil, nil); err != nil {
				panic(fmt.Sprintf("scene: failed to init camera bind group: %v", err))
			}
		}
	}
	r.TrackMirrors(cam)

	// Keep the instance storage layout for AddModel.
	if group, ok := findBindGroup(vertexShader, "instance"); ok {
		s.instanceLayout = vertexShader.BindGroupLayoutDescriptor(group)
		s.hasInstanceGroup = true
	}

	// Seed lastViewProj with a value no real camera produces so the first
	// PrepareFrame always culls.
	s.lastViewProj[0] = float32nan()

	return s
}

// findBindGroup scans a shader's bind group var names for a group whose
// variable name contains the given substring (case-insensitive).
func findBindGroup(sh shader.Shader, substr string) (int, bool) {
	for group, bindings := range sh.BindGroupVarNames() {
		for _, name := range bindings {
			if strings.Contains(strings.ToLower(name), substr) {
				return group, true
			}
		}
	}
	return 0, false
}

func (s *scene) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *scene) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *scene) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *scene) Camera() camera.Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cam
}

func (s *scene) SetCamera(cam camera.Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cam = cam
}

func (s *scene) Light() light.Light {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lgt
}

func (s *scene) SetLight(l light.Light) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lgt = l
}

func (s *scene) Renderer() renderer.Renderer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.r
}

func (s *scene) CullingDisabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cullingDisabled
}

func (s *scene) SetCullingDisabled(disabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cullingDisabled = disabled
	// Force a re-cull on the next PrepareFrame.
	s.lastViewProj[0] = float32nan()
}

func (s *scene) PipelineKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pipelineKey
}

func (s *scene) InitLightBindGroup(fragmentShader shader.Shader) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lgt == nil {
		return fmt.Errorf("scene %q has no light attached", s.name)
	}
	if fragmentShader == nil {
		return fmt.Errorf("scene %q: light bind group init requires a fragment shader", s.name)
	}

	group, ok := findBindGroup(fragmentShader, "light")
	if !ok {
		return fmt.Errorf("scene %q: fragment shader %q declares no light bind group", s.name, fragmentShader.Key())
	}

	bgp := s.lgt.BindGroupProvider()
	if bgp == nil {
		return fmt.Errorf("scene %q: light has no bind group provider", s.name)
	}
	if err := s.r.Backend().InitBindGroup(bgp, fragmentShader.BindGroupLayoutDescriptor(group), nil, nil); err != nil {
		return fmt.Errorf("scene %q: failed to init light bind group: %w", s.name, err)
	}

	s.r.TrackMirrors(s.lgt)
	return nil
}

func (s *scene) AddModel(mdl model.Model, instances ...instance.Instance) error {
	if mdl == nil {
		return fmt.Errorf("scene %q: cannot add a nil model", s.name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := mdl.Name()
	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("scene %q already contains model %q", s.name, name)
	}

	e := &renderEntry{
		mdl:    mdl,
		source: instance.NewInstanceBuffer(instance.WithCapacity(len(instances))),
		gpu: instance.NewInstanceBuffer(
			instance.WithCapacity(len(instances)),
			instance.WithBindGroupProvider(bind_group_provider.NewBindGroupProvider(name+"_instances")),
		),
	}
	e.source.SetInstances(instances)

	if s.hasInstanceGroup {
		buf, err := s.r.Backend().CreateStorageBuffer(name+"_instances", e.gpu.BufferSize())
		if err != nil {
			return fmt.Errorf("scene %q: failed to create instance buffer for model %q: %w", s.name, name, err)
		}
		e.gpu.BindGroupProvider().SetBuffer(0, buf)
		if err := s.r.Backend().InitBindGroup(e.gpu.BindGroupProvider(), s.instanceLayout, nil, nil); err != nil {
			return fmt.Errorf("scene %q: failed to init instance bind group for model %q: %w", s.name, name, err)
		}
	}
	e.boundGeneration = e.gpu.Generation()

	s.entries[name] = e
	s.order = append(s.order, name)
	s.r.TrackMirrors(e.gpu)

	// Force a cull pass so the new instances are uploaded next frame.
	s.lastViewProj[0] = float32nan()
	return nil
}

func (s *scene) RemoveModel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return
	}
	// The renderer keeps tracking the mirror; leave it clean so it never
	// blocks future draws.
	e.gpu.MarkClean()
	if bgp := e.gpu.BindGroupProvider(); bgp != nil {
		bgp.Release()
	}
	delete(s.entries, name)
	if idx := slices.Index(s.order, name); idx >= 0 {
		s.order = slices.Delete(s.order, idx, idx+1)
	}
}

func (s *scene) Model(name string) model.Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entries[name]; ok {
		return e.mdl
	}
	return nil
}

func (s *scene) SetInstances(name string, instances []instance.Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("scene %q contains no model %q", s.name, name)
	}
	e.source.SetInstances(instances)
	return nil
}

func (s *scene) Instances(name string) []instance.Instance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entries[name]; ok {
		return e.source.Instances()
	}
	return nil
}

func (s *scene) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, e := range s.entries {
		total += e.source.Len()
	}
	return total
}

func (s *scene) CulledLastFrame() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.culled
}

func (s *scene) Update(dt float32) {
	s.mu.RLock()
	cam := s.cam
	s.mu.RUnlock()

	if cam == nil {
		return
	}
	if ctrl := cam.Controller(); ctrl != nil {
		ctrl.Update(dt)
	}
	cam.Update()
}

func (s *scene) PrepareFrame() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	writes := s.writePool[:0]

	if s.cam != nil && s.cam.MirrorDirty() {
		u := s.cam.Uniform()
		if bgp := s.cam.BindGroupProvider(); bgp != nil {
			writes = append(writes, bind_group_provider.BufferWrite{
				Provider: bgp,
				Binding:  0,
				Data:     u.Marshal(),
			})
		}
	}

	if s.lgt != nil && s.lgt.MirrorDirty() {
		u := s.lgt.Uniform()
		if bgp := s.lgt.BindGroupProvider(); bgp != nil {
			writes = append(writes, bind_group_provider.BufferWrite{
				Provider: bgp,
				Binding:  0,
				Data:     u.Marshal(),
			})
		}
	}

	// Re-cull when the camera moved or any source list changed.
	viewProj := s.lastViewProj
	if s.cam != nil {
		viewProj = s.cam.ViewProjectionMatrix()
	}
	frustumChanged := viewProj != s.lastViewProj
	if frustumChanged {
		s.frustum = common.ExtractFrustumFromMatrix(viewProj[:])
		s.lastViewProj = viewProj
	}

	s.culled = 0
	for _, name := range s.order {
		e := s.entries[name]

		if frustumChanged || e.source.MirrorDirty() {
			visible := s.cullEntry(e)
			if !slices.Equal(visible, e.gpu.Instances()) {
				e.gpu.SetInstances(visible)
			}
			e.source.MarkClean()
		}
		s.culled += uint64(e.source.Len() - e.gpu.Len())

		if !e.gpu.MirrorDirty() {
			continue
		}

		// A grown instance list invalidated the bind group; reallocate the
		// storage buffer at the new size and rebuild against the old layout.
		if s.hasInstanceGroup && e.gpu.Generation() != e.boundGeneration {
			bgp := e.gpu.BindGroupProvider()
			if old := bgp.Buffer(0); old != nil {
				old.Release()
				bgp.SetBuffer(0, nil)
			}
			buf, err := s.r.Backend().CreateStorageBuffer(name+"_instances", e.gpu.BufferSize())
			if err != nil {
				return fmt.Errorf("scene %q: failed to grow instance buffer for model %q: %w", s.name, name, err)
			}
			bgp.SetBuffer(0, buf)
			if err := s.r.Backend().RebuildBindGroup(bgp, s.instanceLayout); err != nil {
				return fmt.Errorf("scene %q: failed to rebuild instance bind group for model %q: %w", s.name, name, err)
			}
			e.boundGeneration = e.gpu.Generation()
		}

		if e.gpu.Len() > 0 {
			writes = append(writes, bind_group_provider.BufferWrite{
				Provider: e.gpu.BindGroupProvider(),
				Binding:  0,
				Data:     e.gpu.Pack(),
			})
		}
	}

	if len(writes) > 0 {
		s.r.WriteBuffers(writes)
	}

	// Writes are staged on the queue in submission order ahead of this frame's
	// command buffer, so the mirrors are clean from the frame's point of view.
	if s.cam != nil {
		s.cam.MarkClean()
	}
	if s.lgt != nil {
		s.lgt.MarkClean()
	}
	for _, name := range s.order {
		s.entries[name].gpu.MarkClean()
	}

	s.writePool = writes[:0]
	return nil
}

// cullEntry returns the subset of an entry's source instances whose bounding
// spheres intersect the camera frustum. The returned slice aliases
// s.visiblePool and is only valid until the next call.
func (s *scene) cullEntry(e *renderEntry) []instance.Instance {
	all := e.source.Instances()
	if s.cullingDisabled || s.cam == nil {
		return all
	}

	radius := e.mdl.BoundingRadius()
	visible := s.visiblePool[:0]
	for _, inst := range all {
		r := radius * maxScale(inst.Scale)
		if s.frustum.IntersectsSphere(inst.Position, r) {
			visible = append(visible, inst)
		}
	}
	s.visiblePool = visible
	return visible
}

// maxScale returns the largest axis of a scale vector, used to scale a
// bounding sphere conservatively for non-uniform instance scales.
func maxScale(scale [3]float32) float32 {
	m := scale[0]
	if scale[1] > m {
		m = scale[1]
	}
	if scale[2] > m {
		m = scale[2]
	}
	return m
}

func (s *scene) DrawCalls() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.r == nil {
		return fmt.Errorf("scene %q has no renderer attached", s.name)
	}
	if s.cam == nil {
		return fmt.Errorf("scene %q has no camera attached", s.name)
	}

	for _, name := range s.order {
		e := s.entries[name]
		if e.gpu.Len() == 0 {
			continue
		}

		meshProvider := e.mdl.MeshProvider()
		if meshProvider == nil {
			continue
		}

		mats := e.mdl.RenderMaterials()
		if len(mats) == 0 {
			continue
		}

		var lightBGP bind_group_provider.BindGroupProvider
		if s.lgt != nil {
			lightBGP = s.lgt.BindGroupProvider()
		}

		// Without material ranges the whole index buffer draws under the
		// first material. With ranges, each material group draws its own
		// slice of the index buffer exactly once.
		ranges := e.mdl.MaterialRanges()
		if len(ranges) == 0 {
			if err := s.drawRange(name, e, mats[0], lightBGP, meshProvider, 0, 0); err != nil {
				return err
			}
			continue
		}

		for _, rng := range ranges {
			mat := materialByName(mats, rng.Material)
			if mat == nil {
				// The range's material was dropped at load time.
				continue
			}
			if err := s.drawRange(name, e, mat, lightBGP, meshProvider, rng.FirstIndex, rng.IndexCount); err != nil {
				return err
			}
		}
	}

	return nil
}

// drawRange records one instanced draw for a slice of an entry's index buffer
// with the given material. An indexCount of 0 draws the full buffer.
func (s *scene) drawRange(name string, e *renderEntry, mat material.Material, lightBGP bind_group_provider.BindGroupProvider, meshProvider bind_group_provider.BindGroupProvider, firstIndex, indexCount uint32) error {
	matBGP := mat.BindGroupProvider()
	if matBGP == nil {
		return nil
	}

	pipelineKey := mat.PipelineKey()
	if pipelineKey == "" {
		pipelineKey = s.pipelineKey
	}

	// Fixed bind order: camera(0), light(1), material(2), instances(3).
	bindGroups := append(s.drawBindGroupsPool[:0],
		s.cam.BindGroupProvider(),
		lightBGP,
		matBGP,
		e.gpu.BindGroupProvider(),
	)

	if err := s.r.DrawCall(pipelineKey, meshProvider, firstIndex, indexCount, uint32(e.gpu.Len()), bindGroups); err != nil {
		return fmt.Errorf("draw call failed for model %q in scene %q: %w", name, s.name, err)
	}
	return nil
}

// materialByName resolves a material range's name against a model's render
// materials. An unnamed range falls back to the first material; a named range
// whose material is missing resolves to nil.
func materialByName(mats []material.Material, name string) material.Material {
	if name == "" {
		return mats[0]
	}
	for _, m := range mats {
		if m.Name() == name {
			return m
		}
	}
	return nil
}

func (s *scene) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range s.order {
		e := s.entries[name]
		e.gpu.MarkClean()
		if bgp := e.gpu.BindGroupProvider(); bgp != nil {
			bgp.Release()
		}
	}
	s.entries = make(map[string]*renderEntry)
	s.order = nil
}

// float32nan returns a quiet NaN. NaN compares unequal to everything,
// including itself, which makes it a reliable "recompute" sentinel for the
// cached view-projection matrix.
func float32nan() float32 {
	f := float32(0)
	return f / f
}
