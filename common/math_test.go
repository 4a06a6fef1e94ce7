package common

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMul4Identity(t *testing.T) {
	var id, m, out [16]float32
	Identity(id[:])
	BuildModelMatrix(m[:], 1, 2, 3, 0.5, 1.0, 1.5, 2, 2, 2)

	Mul4(out[:], id[:], m[:])
	assert.Equal(t, m, out)

	Mul4(out[:], m[:], id[:])
	assert.Equal(t, m, out)
}

func TestMul4AliasedOutput(t *testing.T) {
	var a, b, want [16]float32
	BuildModelMatrix(a[:], 1, 0, 0, 0, math32.Pi/4, 0, 1, 1, 1)
	BuildModelMatrix(b[:], 0, 2, 0, 0.3, 0, 0, 1, 1, 1)

	Mul4(want[:], a[:], b[:])

	// Writing the result into one of the operands must not corrupt it.
	got := a
	Mul4(got[:], got[:], b[:])
	assert.Equal(t, want, got)
}

func TestPerspectiveDepthRange(t *testing.T) {
	var p [16]float32
	near := float32(0.1)
	far := float32(100.0)
	Perspective(p[:], math32.Pi/4, 16.0/9.0, near, far)

	// A point on the near plane maps to NDC depth 0, the far plane to 1.
	nearClip := p[10]*(-near) + p[14]
	nearW := p[11] * (-near)
	assert.InDelta(t, 0.0, nearClip/nearW, 1e-5)

	farClip := p[10]*(-far) + p[14]
	farW := p[11] * (-far)
	assert.InDelta(t, 1.0, farClip/farW, 1e-5)
}

func TestInvert4RoundTrip(t *testing.T) {
	var m, inv, out, id [16]float32
	BuildModelMatrix(m[:], 3, -1, 7, 0.2, 1.1, -0.4, 1.5, 1.5, 1.5)
	Identity(id[:])

	require.True(t, Invert4(inv[:], m[:]))
	Mul4(out[:], m[:], inv[:])

	for i := range out {
		assert.InDelta(t, id[i], out[i], 1e-4, "element %d", i)
	}
}

func TestInvert4Singular(t *testing.T) {
	var zero, out [16]float32
	out[0] = 42 // sentinel, must survive the failed inversion
	require.False(t, Invert4(out[:], zero[:]))
	assert.Equal(t, float32(42), out[0])
}

func TestLookAtTransformsCenterOntoViewAxis(t *testing.T) {
	var v [16]float32
	eye := [3]float32{0, 0, 5}
	center := [3]float32{0, 0, 0}
	LookAt(v[:], eye, center, [3]float32{0, 1, 0})

	// The view matrix carries the look-at target onto the negative Z axis.
	x := v[0]*center[0] + v[4]*center[1] + v[8]*center[2] + v[12]
	y := v[1]*center[0] + v[5]*center[1] + v[9]*center[2] + v[13]
	z := v[2]*center[0] + v[6]*center[1] + v[10]*center[2] + v[14]
	assert.InDelta(t, 0.0, x, 1e-5)
	assert.InDelta(t, 0.0, y, 1e-5)
	assert.InDelta(t, -5.0, z, 1e-5)
}

func TestLookToMatchesLookAt(t *testing.T) {
	var a, b [16]float32
	eye := [3]float32{1, 2, 3}
	dir := [3]float32{0, 0, -1}
	up := [3]float32{0, 1, 0}

	LookTo(a[:], eye, dir, up)
	LookAt(b[:], eye, Add3(eye, dir), up)
	assert.Equal(t, b, a)
}

func TestNormalMatrix3x4DropsTranslation(t *testing.T) {
	var m [16]float32
	var n [12]float32
	BuildModelMatrix(m[:], 10, 20, 30, 0, math32.Pi/2, 0, 1, 1, 1)
	NormalMatrix3x4(n[:], m[:])

	for col := 0; col < 3; col++ {
		assert.Equal(t, m[col*4+0], n[col*4+0])
		assert.Equal(t, m[col*4+1], n[col*4+1])
		assert.Equal(t, m[col*4+2], n[col*4+2])
		assert.Equal(t, float32(0), n[col*4+3], "row padding must be zero")
	}
}

func TestVectorHelpers(t *testing.T) {
	a := [3]float32{1, 0, 0}
	b := [3]float32{0, 1, 0}

	assert.Equal(t, [3]float32{0, 0, 1}, Cross3(a, b))
	assert.Equal(t, float32(0), Dot3(a, b))
	assert.Equal(t, [3]float32{1, 1, 0}, Add3(a, b))
	assert.Equal(t, [3]float32{1, -1, 0}, Sub3(a, b))

	v := Normalize3([3]float32{3, 4, 0})
	assert.InDelta(t, 1.0, Length3(v), 1e-6)

	// Zero vector normalization must not divide by zero.
	assert.Equal(t, [3]float32{}, Normalize3([3]float32{}))
}

func TestSliceToBytes(t *testing.T) {
	data := []float32{1.0, 2.0}
	raw := SliceToBytes(data)
	require.Len(t, raw, 8)
	assert.Nil(t, SliceToBytes[float32](nil))
}
