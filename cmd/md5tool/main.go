// md5tool is a CLI utility for inspecting, evaluating and previewing
// idTech4 MD5 models.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/md5skel/internal/assets"
	"github.com/Faultbox/md5skel/internal/config"
	"github.com/Faultbox/md5skel/internal/logger"
	"github.com/Faultbox/md5skel/pkg/formats"
)

func main() {
	// Global flags come before the command
	config.ParseFlags()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}
	command, args := args[0], args[1:]

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.Source != "" {
		logger.Sugar.Debugf("Config loaded from %s", cfg.Source)
	}
	logger.Sugar.Debugf("Config: %+v", cfg)

	switch command {
	case "info":
		cmdInfo(cfg, args)
	case "dump":
		cmdDump(cfg, args)
	case "validate", "check":
		cmdValidate(cfg, args)
	case "eval":
		cmdEval(cfg, args)
	case "export":
		cmdExport(cfg, args)
	case "serve":
		cmdServe(cfg, args)
	case "pak":
		cmdPak(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		exit(1)
	}
}

func printUsage() {
	fmt.Println(`md5tool - MD5 skeletal model utility

Usage:
  md5tool [global flags] <command> [options] [mesh] [anim]

Commands:
  info [mesh] [anim]                 Show model and animation summary
  dump <file>                        Dump the parsed structure of a file
  validate [mesh] [anim]             Report structural problems
  eval [-o file] [mesh] [anim]       Evaluate one frame and write JSON
  export [-o file] [mesh] [anim]     Export one frame as .gltf or .glb
  serve [mesh] [anim]                Start the preview server
  pak list <file.pk4> [pattern]      List archive entries
  pak extract <file.pk4> <path> [dir] Extract entries (glob patterns allowed)
  pak search <file.pk4> <text>       Search entries by name

Global flags:
  --config <file>   Config file (default ./md5skel.yaml)
  --debug           Debug logging
  --mesh, --anim    Model and animation to open
  --frame <n>       Use a fixed frame instead of the configured time
  --addr <addr>     Preview server address
  --fps <n>         Override the animation frame rate

Examples:
  md5tool info models/md5/monsters/imp/imp.md5mesh
  md5tool --frame 12 export -o imp.glb imp.md5mesh walk1.md5anim
  md5tool --addr :8080 serve imp.md5mesh idle1.md5anim`)
}

var osExit = os.Exit

// exit flushes the logger before terminating the process.
func exit(code int) {
	logger.Sync()
	osExit(code)
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	exit(1)
}

// openAssets builds the asset manager from the configured search paths.
// Missing paths are skipped so a bare file path still works.
func openAssets(cfg *config.Config) *assets.Manager {
	m := assets.NewManager()
	for _, p := range cfg.Assets.Paths {
		if err := m.AddPath(p); err != nil {
			logger.Debug("asset path skipped", zap.String("path", p), zap.Error(err))
		}
	}
	return m
}

// loadPair loads the mesh and optional animation named by positional args
// or, failing that, by the config.
func loadPair(cfg *config.Config, m *assets.Manager, args []string) (*formats.MD5Mesh, *formats.MD5Anim) {
	meshPath, animPath := cfg.Assets.Mesh, cfg.Assets.Anim
	if len(args) > 0 {
		meshPath = args[0]
	}
	if len(args) > 1 {
		animPath = args[1]
	}
	if meshPath == "" {
		fail("no mesh given")
	}

	model, err := m.LoadModel(meshPath)
	if err != nil {
		fail("%v", err)
	}

	var anim *formats.MD5Anim
	if animPath != "" {
		anim, err = m.LoadAnimation(animPath)
		if err != nil {
			fail("%v", err)
		}
		if cfg.Viewer.FrameRate > 0 {
			anim = anim.WithFrameRate(cfg.Viewer.FrameRate)
		}
	}
	return model, anim
}
