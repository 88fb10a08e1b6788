package config

import "flag"

var (
	flagConfig = flag.String("config", "", "Path to config file")
	flagDebug  = flag.Bool("debug", false, "Enable debug logging")
	flagMesh   = flag.String("mesh", "", "md5mesh to open")
	flagAnim   = flag.String("anim", "", "md5anim to play")
	flagFrame  = flag.Int("frame", -1, "Show a fixed frame instead of playing")
	flagAddr   = flag.String("addr", "", "Preview server address")
	flagFPS    = flag.Int("fps", 0, "Override the animation frame rate")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagMesh != "" {
		cfg.Assets.Mesh = *flagMesh
	}
	if *flagAnim != "" {
		cfg.Assets.Anim = *flagAnim
	}
	if *flagFrame >= 0 {
		cfg.Viewer.Selection = SelectFixed
		cfg.Viewer.Frame = *flagFrame
	}
	if *flagAddr != "" {
		cfg.Server.Addr = *flagAddr
	}
	if *flagFPS > 0 {
		cfg.Viewer.FrameRate = *flagFPS
	}
}
