package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Faultbox/md5skel/pkg/skeletal"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Test viewer defaults
	if !cfg.Viewer.Skeleton {
		t.Error("expected skeleton to be shown by default")
	}
	if cfg.Viewer.Vertices || cfg.Viewer.TriangleNormals || cfg.Viewer.VertexNormals {
		t.Error("expected point and normal overlays to be off by default")
	}
	if !cfg.Viewer.Interpolate {
		t.Error("expected interpolation to be on by default")
	}
	if cfg.Viewer.TextureType != "d" {
		t.Errorf("expected texture type 'd', got %s", cfg.Viewer.TextureType)
	}
	if cfg.Viewer.Selection != SelectAnimated {
		t.Errorf("expected animated selection, got %s", cfg.Viewer.Selection)
	}

	// Test server and export defaults
	if cfg.Server.Addr != "127.0.0.1:8080" {
		t.Errorf("expected addr 127.0.0.1:8080, got %s", cfg.Server.Addr)
	}
	if cfg.Export.Format != "glb" {
		t.Errorf("expected export format glb, got %s", cfg.Export.Format)
	}

	// Test logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "" {
		t.Errorf("expected empty log file, got %s", cfg.Logging.LogFile)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "md5skel.yaml")

	yamlContent := `
viewer:
  skeleton: false
  vertices: true
  vertex_normals: true
  normal_scale: 0.5
  texture_type: local
  meshes: [true, false]
  interpolate: false
  frame_rate: 30
  bitangent: cross
  selection: fixed
  frame: 12

assets:
  paths: ["/games/doom3/base", "extra.pk4"]
  mesh: models/md5/monsters/imp/imp.md5mesh
  anim: models/md5/monsters/imp/walk1.md5anim

server:
  addr: ":9000"

export:
  format: gltf
  output: imp.gltf

logging:
  level: "debug"
  log_file: "md5skel.log"
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	// Load config
	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Verify values were loaded
	v := cfg.Viewer
	if v.Skeleton || !v.Vertices || !v.VertexNormals {
		t.Errorf("unexpected overlay toggles %+v", v)
	}
	if v.NormalScale != 0.5 {
		t.Errorf("expected normal scale 0.5, got %f", v.NormalScale)
	}
	if v.TextureType != "local" {
		t.Errorf("expected texture type local, got %s", v.TextureType)
	}
	if !reflect.DeepEqual(v.Meshes, []bool{true, false}) {
		t.Errorf("unexpected mesh toggles %v", v.Meshes)
	}
	if v.FrameRate != 30 || v.Frame != 12 || v.Selection != SelectFixed {
		t.Errorf("unexpected frame settings %+v", v)
	}

	if len(cfg.Assets.Paths) != 2 || cfg.Assets.Paths[1] != "extra.pk4" {
		t.Errorf("unexpected asset paths %v", cfg.Assets.Paths)
	}
	if cfg.Assets.Anim != "models/md5/monsters/imp/walk1.md5anim" {
		t.Errorf("unexpected anim %s", cfg.Assets.Anim)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("expected addr :9000, got %s", cfg.Server.Addr)
	}
	if cfg.Export.Format != "gltf" || cfg.Export.Output != "imp.gltf" {
		t.Errorf("unexpected export %+v", cfg.Export)
	}
	// Fields absent from the file keep their defaults.
	if !cfg.Export.Skeleton {
		t.Error("expected export skeleton default to survive")
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "md5skel.log" {
		t.Errorf("expected log file 'md5skel.log', got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", "viewer:\n  frame: not a number\n  invalid syntax here\n"},
		{"selection", "viewer:\n  selection: sometimes\n"},
		{"bitangent", "viewer:\n  bitangent: guessed\n"},
		{"texture type", "viewer:\n  texture_type: bump\n"},
		{"export format", "export:\n  format: fbx\n"},
		{"unknown key", "viewer:\n  normal_scal: 1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "invalid.yaml")
			if err := os.WriteFile(configPath, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}

			cfg := Default()
			if err := loadFromFile(cfg, configPath); err == nil {
				t.Error("expected error loading invalid config, got nil")
			}
		})
	}
}

func TestLoadFromFileEmpty(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(configPath, nil, 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("expected empty file to load, got %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("empty file changed defaults: %+v", cfg)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	err := loadFromFile(cfg, "/nonexistent/path/md5skel.yaml")
	if err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()

	// Actual path depends on OS
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	os.Chdir(tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))
	t.Setenv("HOME", tmpDir)
	t.Setenv("APPDATA", tmpDir)
	t.Setenv(EnvConfig, "")

	// No config file exists - should return empty
	if path := findConfigFile(); path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	configPath := filepath.Join(tmpDir, "md5skel.yaml")
	if err := os.WriteFile(configPath, []byte("viewer:\n  skeleton: true\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	if path := findConfigFile(); path != FileName {
		t.Errorf("expected to find %s in current directory, got %q", FileName, path)
	}

	// The environment variable wins over the working directory.
	envPath := filepath.Join(tmpDir, "other", "viewer.yaml")
	if err := os.MkdirAll(filepath.Dir(envPath), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(envPath, []byte("viewer:\n  skeleton: false\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}
	t.Setenv(EnvConfig, envPath)
	if path := findConfigFile(); path != envPath {
		t.Errorf("expected %s from %s, got %q", envPath, EnvConfig, path)
	}

	// A dangling variable falls through to the other candidates.
	t.Setenv(EnvConfig, filepath.Join(tmpDir, "missing.yaml"))
	if path := findConfigFile(); path != FileName {
		t.Errorf("expected fallback to %s, got %q", FileName, path)
	}
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "md5skel.yaml")

	cfg := Default()
	cfg.Viewer.Meshes = []bool{false, true}
	cfg.Assets.Mesh = "models/imp.md5mesh"
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("failed to reload: %v", err)
	}
	if !reflect.DeepEqual(loaded, cfg) {
		t.Errorf("reloaded config differs:\n got %+v\nwant %+v", loaded, cfg)
	}

	// Overwrite in place; no temporary files may be left behind.
	cfg.Server.Addr = ":9999"
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("second SaveTo failed: %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != FileName {
		t.Errorf("unexpected directory contents %v", entries)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0644 {
		t.Errorf("expected mode 0644, got %v", info.Mode().Perm())
	}
}

func TestViewerSettings(t *testing.T) {
	tests := []struct {
		name      string
		viewer    func(*ViewerConfig)
		selection skeletal.Selection
		mode      skeletal.BitangentMode
	}{
		{"defaults", func(*ViewerConfig) {}, skeletal.Animated{}, skeletal.BitangentSolved},
		{"bind", func(v *ViewerConfig) { v.Selection = "bind" }, skeletal.BindPose{}, skeletal.BitangentSolved},
		{"fixed", func(v *ViewerConfig) { v.Selection = "Fixed"; v.Frame = 3 }, skeletal.FixedFrame{Index: 3}, skeletal.BitangentSolved},
		{"timed", func(v *ViewerConfig) { v.Time = 1.5 }, skeletal.Animated{Time: 1.5}, skeletal.BitangentSolved},
		{"cross", func(v *ViewerConfig) { v.Bitangent = "cross" }, skeletal.Animated{}, skeletal.BitangentCross},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Default().Viewer
			tt.viewer(&v)

			s, err := v.Settings()
			if err != nil {
				t.Fatalf("Settings failed: %v", err)
			}
			if !reflect.DeepEqual(s.Selection, tt.selection) {
				t.Errorf("selection = %#v, want %#v", s.Selection, tt.selection)
			}
			if s.Bitangent != tt.mode {
				t.Errorf("bitangent = %v, want %v", s.Bitangent, tt.mode)
			}
			if !s.Skeleton || !s.Interpolate {
				t.Errorf("toggles not carried over: %+v", s)
			}
		})
	}
}

func TestViewerSettings_CopiesMeshes(t *testing.T) {
	v := Default().Viewer
	v.Meshes = []bool{true, false}

	s, err := v.Settings()
	if err != nil {
		t.Fatalf("Settings failed: %v", err)
	}
	v.Meshes[1] = true
	if s.MeshEnabled(1) {
		t.Error("settings should not alias the viewer mesh toggles")
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*testing.T, *Config)
		teardown func()
	}{
		{
			name:  "debug flag",
			setup: func() { *flagDebug = true },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() { *flagDebug = false },
		},
		{
			name: "mesh and anim flags",
			setup: func() {
				*flagMesh = "imp.md5mesh"
				*flagAnim = "walk.md5anim"
			},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Assets.Mesh != "imp.md5mesh" || cfg.Assets.Anim != "walk.md5anim" {
					t.Errorf("unexpected assets %+v", cfg.Assets)
				}
			},
			teardown: func() {
				*flagMesh = ""
				*flagAnim = ""
			},
		},
		{
			name:  "frame flag",
			setup: func() { *flagFrame = 7 },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Viewer.Selection != SelectFixed || cfg.Viewer.Frame != 7 {
					t.Errorf("expected fixed frame 7, got %s %d", cfg.Viewer.Selection, cfg.Viewer.Frame)
				}
			},
			teardown: func() { *flagFrame = -1 },
		},
		{
			name:  "addr flag",
			setup: func() { *flagAddr = ":9999" },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Server.Addr != ":9999" {
					t.Errorf("expected addr :9999, got %s", cfg.Server.Addr)
				}
			},
			teardown: func() { *flagAddr = "" },
		},
		{
			name:  "fps flag",
			setup: func() { *flagFPS = 60 },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Viewer.FrameRate != 60 {
					t.Errorf("expected frame rate 60, got %d", cfg.Viewer.FrameRate)
				}
			},
			teardown: func() { *flagFPS = 0 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.teardown()

			cfg := Default()
			applyFlags(cfg)

			tt.verify(t, cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "md5skel.yaml")

	yamlContent := `
server:
  addr: ":7000"
assets:
  paths: [base, pak000.pk4, '` + filepath.Join(tmpDir, "abs") + `']
  mesh: from-file.md5mesh
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	// Set flag to override config file
	*flagConfig = configPath
	*flagAddr = ":8000"
	defer func() {
		*flagConfig = ""
		*flagAddr = ""
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Addr should be from flag, not file
	if cfg.Server.Addr != ":8000" {
		t.Errorf("expected addr :8000 from flag, got %s", cfg.Server.Addr)
	}

	// Mesh should be from file since no flag override
	if cfg.Assets.Mesh != "from-file.md5mesh" {
		t.Errorf("expected mesh from file, got %s", cfg.Assets.Mesh)
	}

	if cfg.Source != configPath {
		t.Errorf("expected source %s, got %q", configPath, cfg.Source)
	}

	// Relative search paths are anchored at the config file.
	wantPaths := []string{
		filepath.Join(tmpDir, "base"),
		filepath.Join(tmpDir, "pak000.pk4"),
		filepath.Join(tmpDir, "abs"),
	}
	if !reflect.DeepEqual(cfg.Assets.Paths, wantPaths) {
		t.Errorf("asset paths = %v, want %v", cfg.Assets.Paths, wantPaths)
	}
}
