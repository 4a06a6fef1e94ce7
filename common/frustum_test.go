package common

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
)

// testFrustum builds a frustum for a camera at the origin looking down -Z.
func testFrustum(near, far float32) Frustum {
	var proj, view, viewProj [16]float32
	Perspective(proj[:], math32.Pi/4, 1.0, near, far)
	LookTo(view[:], [3]float32{0, 0, 0}, [3]float32{0, 0, -1}, [3]float32{0, 1, 0})
	Mul4(viewProj[:], proj[:], view[:])
	return ExtractFrustumFromMatrix(viewProj[:])
}

func TestFrustumPlanesAreNormalized(t *testing.T) {
	f := testFrustum(0.1, 100)
	for i, p := range f.Planes {
		l := Length3(p.Normal)
		assert.InDelta(t, 1.0, l, 1e-5, "plane %d", i)
	}
}

func TestFrustumSphereInside(t *testing.T) {
	f := testFrustum(0.1, 100)
	assert.True(t, f.IntersectsSphere([3]float32{0, 0, -10}, 1))
}

func TestFrustumSphereBehindCamera(t *testing.T) {
	f := testFrustum(0.1, 100)
	assert.False(t, f.IntersectsSphere([3]float32{0, 0, 10}, 1))
}

func TestFrustumSphereBeyondFarPlane(t *testing.T) {
	f := testFrustum(0.1, 100)
	assert.False(t, f.IntersectsSphere([3]float32{0, 0, -200}, 1))
}

func TestFrustumSphereStraddlingPlane(t *testing.T) {
	f := testFrustum(0.1, 100)
	// Center sits past the far plane but the radius reaches back inside.
	assert.True(t, f.IntersectsSphere([3]float32{0, 0, -105}, 10))
}

func TestFrustumLargeSphereContainingCamera(t *testing.T) {
	f := testFrustum(0.1, 100)
	assert.True(t, f.IntersectsSphere([3]float32{0, 0, 0}, 50))
}
