package renderer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyAcquireError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"outdated surface", errors.New("Surface texture is Outdated"), true},
		{"suboptimal surface", errors.New("surface is suboptimal"), true},
		{"acquire timeout", errors.New("acquire timed out"), true},
		{"swapchain lost", errors.New("swapchain Lost"), true},
		{"device lost", errors.New("Device lost during acquire"), false},
		{"out of memory", errors.New("Out of memory"), false},
		{"unknown failure", errors.New("something unexpected"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := classifyAcquireError(tt.err)
			assert.Equal(t, tt.transient, classified.Transient)
			assert.ErrorIs(t, classified, tt.err)
		})
	}
}

func TestErrorUnwrapping(t *testing.T) {
	root := errors.New("root cause")

	assert.ErrorIs(t, &DeviceInitError{Stage: "adapter", Err: root}, root)
	assert.ErrorIs(t, &SurfaceConfigError{Width: 800, Height: 600, Err: root}, root)
	assert.ErrorIs(t, &ResourceUploadError{Resource: "cube", Op: "mesh", Err: root}, root)
	assert.ErrorIs(t, &PipelineBuildError{PipelineKey: "lit", Stage: "compile", Err: root}, root)
}

func TestDirtyMirrorErrorListsMirrors(t *testing.T) {
	err := &DirtyMirrorError{Mirrors: []string{"camera", "light"}}
	assert.Contains(t, err.Error(), "camera")
	assert.Contains(t, err.Error(), "light")
}
