package light

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLightDefaults(t *testing.T) {
	l := NewLight()

	assert.Equal(t, [3]float32{2, 2, 2}, l.Position())
	assert.Equal(t, [3]float32{1, 1, 1}, l.Color())
	require.NotNil(t, l.BindGroupProvider())
	assert.True(t, l.MirrorDirty(), "initial uniform has never been uploaded")
}

func TestLightDirtyOnlyWhenUniformChanges(t *testing.T) {
	l := NewLight(WithPosition([3]float32{0, 5, 0}), WithColor([3]float32{1, 0.5, 0}))

	l.MarkClean()
	assert.False(t, l.MirrorDirty())

	// Writing back the same values leaves the uniform unchanged.
	l.SetPosition([3]float32{0, 5, 0})
	assert.False(t, l.MirrorDirty())

	l.SetPosition([3]float32{1, 5, 0})
	assert.True(t, l.MirrorDirty())

	l.MarkClean()
	l.SetColor([3]float32{1, 0.5, 0})
	assert.False(t, l.MirrorDirty())
	l.SetColor([3]float32{0, 1, 0})
	assert.True(t, l.MirrorDirty())
}

func TestLightUniformTracksState(t *testing.T) {
	l := NewLight(WithPosition([3]float32{3, 4, 5}), WithColor([3]float32{0.2, 0.4, 0.6}))

	u := l.Uniform()
	assert.Equal(t, [3]float32{3, 4, 5}, u.Position)
	assert.Equal(t, [3]float32{0.2, 0.4, 0.6}, u.Color)
}

func TestGPULightUniformMarshal(t *testing.T) {
	u := GPULightUniform{
		Position: [3]float32{1, 2, 3},
		Color:    [3]float32{0.25, 0.5, 0.75},
	}

	require.Equal(t, 32, u.Size())

	buf := u.Marshal()
	require.Len(t, buf, 32)

	assert.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(buf[0:])))
	assert.Equal(t, float32(2), math.Float32frombits(binary.LittleEndian.Uint32(buf[4:])))
	assert.Equal(t, float32(3), math.Float32frombits(binary.LittleEndian.Uint32(buf[8:])))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(buf[12:]))
	assert.Equal(t, float32(0.25), math.Float32frombits(binary.LittleEndian.Uint32(buf[16:])))
	assert.Equal(t, float32(0.5), math.Float32frombits(binary.LittleEndian.Uint32(buf[20:])))
	assert.Equal(t, float32(0.75), math.Float32frombits(binary.LittleEndian.Uint32(buf[24:])))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(buf[28:]))
}
