package camera

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel3d/kestrel/common"
)

func TestNewCameraDefaults(t *testing.T) {
	c := NewCamera()

	assert.Equal(t, [3]float32{0, 1, 0}, c.Up())
	assert.InDelta(t, 45.0*(math32.Pi/180.0), c.Fov(), 1e-6)
	assert.InDelta(t, 1.0, c.Aspect(), 1e-6)
	assert.InDelta(t, 0.001, c.Near(), 1e-9)
	assert.InDelta(t, 10000.0, c.Far(), 1e-3)
	assert.Nil(t, c.Controller())
	require.NotNil(t, c.BindGroupProvider())
	assert.False(t, c.MirrorDirty())
}

func TestNewCameraControllerDefaults(t *testing.T) {
	cc := NewCameraController()

	assert.Equal(t, [3]float32{0, 0, 0}, cc.Position())
	assert.InDelta(t, -math32.Pi/2, cc.Yaw(), 1e-6)
	assert.InDelta(t, 0.0, cc.Pitch(), 1e-6)

	// Default yaw looks straight down -Z.
	dir := cc.Direction()
	assert.InDelta(t, 0.0, dir[0], 1e-6)
	assert.InDelta(t, 0.0, dir[1], 1e-6)
	assert.InDelta(t, -1.0, dir[2], 1e-6)
}

func TestControllerPitchClamp(t *testing.T) {
	cc := NewCameraController()

	cc.SetPitch(math32.Pi) // way past vertical
	assert.InDelta(t, 89.0*(math32.Pi/180.0), cc.Pitch(), 1e-6)

	cc.SetPitch(-math32.Pi)
	assert.InDelta(t, -89.0*(math32.Pi/180.0), cc.Pitch(), 1e-6)

	// Mouse look must respect the same clamp.
	cc.SetPitch(0)
	cc.ProcessMouse(0, -10000)
	assert.InDelta(t, 89.0*(math32.Pi/180.0), cc.Pitch(), 1e-6)
}

func TestControllerMovementIgnoresPitch(t *testing.T) {
	cc := NewCameraController(WithSpeed(2.0))
	cc.SetPitch(maxPitch) // looking almost straight up

	require.True(t, cc.ProcessKey(common.KeyW, true))
	cc.Update(0.5)

	// Horizontal heading only: one second at half speed along -Z, no vertical drift.
	pos := cc.Position()
	assert.InDelta(t, 0.0, pos[0], 1e-5)
	assert.InDelta(t, 0.0, pos[1], 1e-5)
	assert.InDelta(t, -1.0, pos[2], 1e-5)
}

func TestControllerVerticalMovement(t *testing.T) {
	cc := NewCameraController(WithSpeed(4.0))

	require.True(t, cc.ProcessKey(common.KeySpace, true))
	cc.Update(0.25)
	assert.InDelta(t, 1.0, cc.Position()[1], 1e-5)

	cc.ProcessKey(common.KeySpace, false)
	require.True(t, cc.ProcessKey(common.KeyLeftShift, true))
	cc.Update(0.25)
	assert.InDelta(t, 0.0, cc.Position()[1], 1e-5)
}

func TestControllerUnmappedKey(t *testing.T) {
	cc := NewCameraController()
	assert.False(t, cc.ProcessKey(common.KeyP, true))

	cc.Update(1.0)
	assert.Equal(t, [3]float32{0, 0, 0}, cc.Position())
}

func TestCameraDirtyOnlyWhenUniformChanges(t *testing.T) {
	cc := NewCameraController(WithPosition([3]float32{0, 1, 5}))
	c := NewCamera(WithController(cc), WithAspect(16.0/9.0))

	require.True(t, c.MirrorDirty(), "initial uniform has never been uploaded")
	c.MarkClean()
	assert.False(t, c.MirrorDirty())

	// Updating without any movement leaves the uniform unchanged.
	c.Update()
	assert.False(t, c.MirrorDirty())

	cc.ProcessMouse(50, 0)
	c.Update()
	assert.True(t, c.MirrorDirty())

	c.MarkClean()
	c.Update()
	assert.False(t, c.MirrorDirty())
}

func TestCameraFovClamp(t *testing.T) {
	c := NewCamera(WithFov(math32.Pi)) // 180 degrees, clamped at construction
	assert.InDelta(t, 45.0*(math32.Pi/180.0), c.Fov(), 1e-6)

	c.SetFov(0)
	assert.InDelta(t, 1.0*(math32.Pi/180.0), c.Fov(), 1e-6)

	c.Zoom(-math32.Pi)
	assert.InDelta(t, 1.0*(math32.Pi/180.0), c.Fov(), 1e-6)

	c.Zoom(math32.Pi)
	assert.InDelta(t, 45.0*(math32.Pi/180.0), c.Fov(), 1e-6)
}

func TestCameraUniformTracksController(t *testing.T) {
	cc := NewCameraController(WithPosition([3]float32{3, 2, 1}))
	c := NewCamera(WithController(cc))

	u := c.Uniform()
	assert.Equal(t, [3]float32{3, 2, 1}, u.Position)
	assert.Equal(t, c.ViewProjectionMatrix(), u.ViewProjection)

	cc.SetPosition([3]float32{-1, 0, 0})
	c.Update()
	assert.Equal(t, [3]float32{-1, 0, 0}, c.Uniform().Position)
}

func TestGPUCameraUniformMarshal(t *testing.T) {
	u := GPUCameraUniform{
		Position: [3]float32{1.5, -2.0, 8.25},
	}
	for i := range u.ViewProjection {
		u.ViewProjection[i] = float32(i)
	}

	require.Equal(t, 80, u.Size())

	buf := u.Marshal()
	require.Len(t, buf, 80)

	for i := range 16 {
		got := math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
		assert.Equal(t, float32(i), got)
	}
	assert.Equal(t, float32(1.5), math.Float32frombits(binary.LittleEndian.Uint32(buf[64:])))
	assert.Equal(t, float32(-2.0), math.Float32frombits(binary.LittleEndian.Uint32(buf[68:])))
	assert.Equal(t, float32(8.25), math.Float32frombits(binary.LittleEndian.Uint32(buf[72:])))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(buf[76:]))
}
