// Package config handles viewer configuration loading and management.
package config

import (
	"fmt"
	"strings"

	"github.com/Faultbox/md5skel/internal/engine/model"
	"github.com/Faultbox/md5skel/internal/engine/texture"
	"github.com/Faultbox/md5skel/pkg/skeletal"
)

// Selection modes.
const (
	SelectBind     = "bind"
	SelectAnimated = "animated"
	SelectFixed    = "fixed"
)

// Config holds all settings.
type Config struct {
	Viewer  ViewerConfig  `yaml:"viewer"`
	Assets  AssetsConfig  `yaml:"assets"`
	Server  ServerConfig  `yaml:"server"`
	Export  ExportConfig  `yaml:"export"`
	Logging LoggingConfig `yaml:"logging"`

	Source string `yaml:"-"` // File the config was loaded from, empty for defaults
}

// ViewerConfig holds what is shown for the current model.
type ViewerConfig struct {
	Skeleton        bool    `yaml:"skeleton"`
	Vertices        bool    `yaml:"vertices"`
	TriangleNormals bool    `yaml:"triangle_normals"`
	VertexNormals   bool    `yaml:"vertex_normals"`
	NormalScale     float64 `yaml:"normal_scale"`
	Texture         bool    `yaml:"texture"`
	TextureType     string  `yaml:"texture_type"` // d, local, h or s
	Meshes          []bool  `yaml:"meshes"`       // Per-mesh toggles; missing entries are enabled
	Interpolate     bool    `yaml:"interpolate"`
	FrameRate       int     `yaml:"frame_rate"` // Overrides the clip rate when > 0
	Bitangent       string  `yaml:"bitangent"`  // solved or cross
	Selection       string  `yaml:"selection"`  // bind, animated or fixed
	Frame           int     `yaml:"frame"`      // Used with fixed
	Time            float64 `yaml:"time"`       // Seconds, used with animated
}

// AssetsConfig holds asset search paths and the model to open.
type AssetsConfig struct {
	Paths []string `yaml:"paths"` // Directories and .pk4 archives
	Mesh  string   `yaml:"mesh"`
	Anim  string   `yaml:"anim"`
}

// ServerConfig holds preview server settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// ExportConfig holds glTF export settings.
type ExportConfig struct {
	Format   string `yaml:"format"` // gltf or glb
	Output   string `yaml:"output"`
	Skeleton bool   `yaml:"skeleton"`
	YUp      bool   `yaml:"y_up"` // Rotate Z-up models for Y-up viewers
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Viewer: ViewerConfig{
			Skeleton:    true,
			NormalScale: model.DefaultNormalScale,
			Texture:     true,
			TextureType: string(texture.Diffuse),
			Interpolate: true,
			Bitangent:   skeletal.BitangentSolved.String(),
			Selection:   SelectAnimated,
		},
		Assets: AssetsConfig{
			Paths: []string{"base"},
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8080",
		},
		Export: ExportConfig{
			Format:   "glb",
			Output:   "frame.glb",
			Skeleton: true,
			YUp:      true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Settings converts the viewer config into per-frame settings.
func (v ViewerConfig) Settings() (model.Settings, error) {
	mode, err := skeletal.ParseBitangentMode(v.Bitangent)
	if err != nil {
		return model.Settings{}, err
	}
	sel, err := v.selection()
	if err != nil {
		return model.Settings{}, err
	}

	s := model.Settings{
		Selection:       sel,
		Interpolate:     v.Interpolate,
		Bitangent:       mode,
		Skeleton:        v.Skeleton,
		Points:          v.Vertices,
		TriangleNormals: v.TriangleNormals,
		VertexNormals:   v.VertexNormals,
		NormalScale:     v.NormalScale,
	}
	if len(v.Meshes) > 0 {
		s.Meshes = append([]bool(nil), v.Meshes...)
	}
	return s, nil
}

// TextureKind returns the configured texture map kind.
func (v ViewerConfig) TextureKind() (texture.Type, error) {
	return texture.ParseType(v.TextureType)
}

func (v ViewerConfig) selection() (skeletal.Selection, error) {
	switch strings.ToLower(strings.TrimSpace(v.Selection)) {
	case SelectBind:
		return skeletal.BindPose{}, nil
	case "", SelectAnimated:
		return skeletal.Animated{Time: v.Time}, nil
	case SelectFixed:
		return skeletal.FixedFrame{Index: v.Frame}, nil
	default:
		return nil, fmt.Errorf("unknown selection %q", v.Selection)
	}
}

// Validate checks enumerated fields after loading a file.
func (c *Config) Validate() error {
	if _, err := c.Viewer.Settings(); err != nil {
		return fmt.Errorf("viewer: %w", err)
	}
	if _, err := c.Viewer.TextureKind(); err != nil {
		return fmt.Errorf("viewer: %w", err)
	}
	switch c.Export.Format {
	case "gltf", "glb":
	default:
		return fmt.Errorf("export: unknown format %q", c.Export.Format)
	}
	return nil
}
