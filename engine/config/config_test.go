package config

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(fstest.MapFS{}, "viewer.toml")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadLayersOverDefaults(t *testing.T) {
	fsys := fstest.MapFS{
		"viewer.toml": {Data: []byte(`
[window]
title = "Crates"
width = 1920
height = 1080

[renderer]
present_mode = "uncapped"
msaa_samples = 8

[scene]
model_path = "models/crate.obj"
instance_grid = 25
`)},
	}

	cfg, err := Load(fsys, "viewer.toml")
	require.NoError(t, err)

	assert.Equal(t, "Crates", cfg.Window.Title)
	assert.Equal(t, 1920, cfg.Window.Width)
	assert.Equal(t, "uncapped", cfg.Renderer.PresentMode)
	assert.Equal(t, 8, cfg.Renderer.MSAASamples)
	assert.Equal(t, "models/crate.obj", cfg.Scene.ModelPath)
	assert.Equal(t, 25, cfg.Scene.InstanceGrid)

	// Sections absent from the file keep their defaults.
	assert.InDelta(t, 4.0, cfg.Camera.Speed, 1e-6)
	assert.InDelta(t, 3.0, cfg.Scene.InstanceSpacing, 1e-6)
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	fsys := fstest.MapFS{
		"viewer.toml": {Data: []byte(`[window`)},
	}
	_, err := Load(fsys, "viewer.toml")
	require.Error(t, err)
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"bad present mode", "[renderer]\npresent_mode = \"mailbox\"\n"},
		{"bad msaa", "[renderer]\nmsaa_samples = 2\n"},
		{"bad window size", "[window]\nwidth = 0\n"},
		{"bad grid", "[scene]\ninstance_grid = 0\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fsys := fstest.MapFS{"viewer.toml": {Data: []byte(tc.body)}}
			_, err := Load(fsys, "viewer.toml")
			assert.Error(t, err)
		})
	}
}
