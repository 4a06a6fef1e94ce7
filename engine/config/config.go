package config

import (
	"fmt"
	"io/fs"

	"github.com/pelletier/go-toml/v2"
)

// WindowConfig holds windowing settings.
type WindowConfig struct {
	// Title is the window title text.
	Title string `toml:"title"`

	// Width is the initial window width in pixels.
	Width int `toml:"width"`

	// Height is the initial window height in pixels.
	Height int `toml:"height"`

	// CaptureCursor requests mouse-look cursor capture at startup.
	CaptureCursor bool `toml:"capture_cursor"`
}

// RendererConfig holds GPU and presentation settings.
type RendererConfig struct {
	// PresentMode selects surface presentation: "vsync", "uncapped", or
	// "triple_buffered".
	PresentMode string `toml:"present_mode"`

	// MSAASamples is the multisample count: 1 (off), 4, or 8.
	MSAASamples int `toml:"msaa_samples"`

	// ForceSoftware forces the fallback (software) adapter.
	ForceSoftware bool `toml:"force_software"`
}

// CameraConfig holds fly-camera tuning.
type CameraConfig struct {
	// Speed is the movement speed in world units per second.
	Speed float32 `toml:"speed"`

	// Sensitivity is the mouse-look sensitivity in radians per pixel.
	Sensitivity float32 `toml:"sensitivity"`

	// Position is the starting world-space position.
	Position [3]float32 `toml:"position"`
}

// SceneConfig holds scene content settings.
type SceneConfig struct {
	// ModelPath is the OBJ file loaded into the scene, relative to the asset
	// filesystem root.
	ModelPath string `toml:"model_path"`

	// InstanceGrid is the number of instances per side of the demo grid.
	InstanceGrid int `toml:"instance_grid"`

	// InstanceSpacing is the world-space distance between grid instances.
	InstanceSpacing float32 `toml:"instance_spacing"`
}

// Config is the root viewer configuration, loaded from a TOML file.
type Config struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Camera   CameraConfig   `toml:"camera"`
	Scene    SceneConfig    `toml:"scene"`
}

// Default returns the configuration used when no file is present.
//
// Returns:
//   - Config: the default configuration
func Default() Config {
	return Config{
		Window: WindowConfig{
			Title:         "Kestrel Viewer",
			Width:         1280,
			Height:        720,
			CaptureCursor: true,
		},
		Renderer: RendererConfig{
			PresentMode: "vsync",
			MSAASamples: 4,
		},
		Camera: CameraConfig{
			Speed:       4.0,
			Sensitivity: 0.004,
			Position:    [3]float32{0, 1, 5},
		},
		Scene: SceneConfig{
			InstanceGrid:    10,
			InstanceSpacing: 3.0,
		},
	}
}

// Load reads a TOML configuration file from the given filesystem, layered
// over the defaults. A missing file is not an error: the defaults are
// returned unchanged. A present but malformed file is an error.
//
// Parameters:
//   - fsys: the filesystem to read from
//   - path: the config file path
//
// Returns:
//   - Config: the merged configuration
//   - error: error if the file exists but cannot be parsed
func Load(fsys fs.FS, path string) (Config, error) {
	cfg := Default()

	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return cfg, nil
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Renderer.PresentMode {
	case "vsync", "uncapped", "triple_buffered":
	default:
		return fmt.Errorf("invalid present_mode %q (want vsync, uncapped, or triple_buffered)", c.Renderer.PresentMode)
	}
	switch c.Renderer.MSAASamples {
	case 1, 4, 8:
	default:
		return fmt.Errorf("invalid msaa_samples %d (want 1, 4, or 8)", c.Renderer.MSAASamples)
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("invalid window size %dx%d", c.Window.Width, c.Window.Height)
	}
	if c.Scene.InstanceGrid < 1 {
		return fmt.Errorf("invalid instance_grid %d (want at least 1)", c.Scene.InstanceGrid)
	}
	return nil
}
