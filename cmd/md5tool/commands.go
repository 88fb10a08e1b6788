package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/davecgh/go-spew/spew"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/md5skel/internal/config"
	"github.com/Faultbox/md5skel/internal/engine/model"
	"github.com/Faultbox/md5skel/internal/engine/texture"
	"github.com/Faultbox/md5skel/internal/export"
	"github.com/Faultbox/md5skel/internal/logger"
	"github.com/Faultbox/md5skel/internal/server"
	"github.com/Faultbox/md5skel/pkg/skeletal"
)

func cmdInfo(cfg *config.Config, args []string) {
	m := openAssets(cfg)
	defer m.Close()
	mesh, anim := loadPair(cfg, m, args)

	fmt.Printf("Version:   %d\n", mesh.Header.Version)
	if mesh.Header.CommandLine != "" {
		fmt.Printf("Command:   %s\n", mesh.Header.CommandLine)
	}
	fmt.Printf("Joints:    %d\n", len(mesh.Joints))
	fmt.Printf("Meshes:    %d\n", len(mesh.Meshes))
	fmt.Printf("Vertices:  %d\n", mesh.TotalVertexCount())
	fmt.Printf("Triangles: %d\n", mesh.TotalTriangleCount())
	fmt.Println()

	var textures []*texture.Info
	if cfg.Viewer.Texture {
		kind, err := cfg.Viewer.TextureKind()
		if err != nil {
			fail("%v", err)
		}
		textures = texture.ResolveModel(m, mesh, kind)
	}

	fmt.Println("Meshes:")
	for i, ms := range mesh.Meshes {
		fmt.Printf("  %-3d %-40s %5d verts %5d tris %5d weights\n",
			i, ms.Shader, len(ms.Vertices), len(ms.Triangles), len(ms.Weights))
		if textures != nil && textures[i] != nil {
			t := textures[i]
			fmt.Printf("      %s (%s %dx%d)\n", t.Path, t.Format, t.Width, t.Height)
		}
	}

	if anim == nil {
		return
	}
	fmt.Println()
	fmt.Printf("Frames:     %d\n", len(anim.Frames))
	fmt.Printf("Frame rate: %d\n", anim.FrameRate)
	fmt.Printf("Duration:   %.2fs\n", anim.Duration())
	fmt.Printf("Components: %d\n", anim.AnimatedComponentCount())
}

func cmdDump(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	depth := fs.Int("depth", 3, "Maximum nesting depth")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: md5tool dump [-depth n] <file.md5mesh|file.md5anim>")
		exit(1)
	}

	m := openAssets(cfg)
	defer m.Close()

	path := fs.Arg(0)
	var v interface{}
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md5mesh":
		v, err = m.LoadModel(path)
	case ".md5anim":
		v, err = m.LoadAnimation(path)
	default:
		fail("unsupported file type: %s", path)
	}
	if err != nil {
		fail("%v", err)
	}

	dumper := spew.ConfigState{
		Indent:                  "  ",
		MaxDepth:                *depth,
		DisablePointerAddresses: true,
		DisableCapacities:       true,
		SortKeys:                true,
	}
	dumper.Dump(v)
}

func cmdValidate(cfg *config.Config, args []string) {
	m := openAssets(cfg)
	defer m.Close()
	mesh, anim := loadPair(cfg, m, args)

	err := skeletal.ValidateModel(mesh)
	if anim != nil {
		err = multierr.Append(err, skeletal.ValidateAnimation(anim, mesh))
	}

	problems := multierr.Errors(err)
	for _, p := range problems {
		fmt.Println(p)
	}
	if len(problems) > 0 {
		fmt.Fprintf(os.Stderr, "\n(%d problems)\n", len(problems))
		exit(1)
	}
	fmt.Println("OK")
}

type jointJSON struct {
	Name        string     `json:"name"`
	Parent      int        `json:"parent"`
	Position    [3]float32 `json:"position"`
	Orientation [4]float32 `json:"orientation"`
}

type meshJSON struct {
	Index  int    `json:"index"`
	Shader string `json:"shader"`
	model.Buffers
}

type evalJSON struct {
	Frame    float64      `json:"frame"`
	Animated bool         `json:"animated"`
	Joints   []jointJSON  `json:"joints"`
	Meshes   []meshJSON   `json:"meshes"`
	Bounds   model.Bounds `json:"bounds"`
}

func cmdEval(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("eval", flag.ExitOnError)
	output := fs.String("o", "", "Output file (default stdout)")
	fs.Parse(args)

	f := buildFrame(cfg, fs.Args())

	out := evalJSON{
		Frame:    f.FrameIndex,
		Animated: f.Animated,
		Joints:   make([]jointJSON, len(f.Joints)),
		Meshes:   make([]meshJSON, len(f.Meshes)),
		Bounds:   f.Bounds,
	}
	for i, j := range f.Joints {
		out.Joints[i] = jointJSON{
			Name:        j.Name,
			Parent:      j.Parent,
			Position:    j.Position.Array(),
			Orientation: j.Orientation.Array(),
		}
	}
	for i := range f.Meshes {
		ms := &f.Meshes[i]
		out.Meshes[i] = meshJSON{Index: ms.Index, Shader: ms.Shader, Buffers: ms.Buffers(true)}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fail("encoding frame: %v", err)
	}
	if *output == "" {
		os.Stdout.Write(data)
		fmt.Println()
		return
	}
	if err := os.WriteFile(*output, data, 0644); err != nil {
		fail("%v", err)
	}
	fmt.Printf("Wrote %s\n", *output)
}

func cmdExport(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	output := fs.String("o", cfg.Export.Output, "Output .gltf or .glb file")
	fs.Parse(args)

	path := *output
	if filepath.Ext(path) == "" {
		path += "." + cfg.Export.Format
	}

	f := buildFrame(cfg, fs.Args())
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if err := export.Save(path, f, export.Options{Name: name, Skeleton: cfg.Export.Skeleton, YUp: cfg.Export.YUp}); err != nil {
		fail("%v", err)
	}
	fmt.Printf("Exported frame %.2f to %s\n", f.FrameIndex, path)
}

func cmdServe(cfg *config.Config, args []string) {
	m := openAssets(cfg)
	defer m.Close()
	mesh, anim := loadPair(cfg, m, args)

	b, err := model.NewBuilder(mesh, anim)
	if err != nil {
		fail("%v", err)
	}
	settings, err := cfg.Viewer.Settings()
	if err != nil {
		fail("%v", err)
	}

	opts := server.Options{Settings: settings}
	if cfg.Viewer.Texture {
		kind, err := cfg.Viewer.TextureKind()
		if err != nil {
			fail("%v", err)
		}
		opts.Textures = m
		opts.TextureType = kind
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.New(b, opts).ListenAndServe(ctx, cfg.Server.Addr); err != nil {
		logger.Error("server failed", zap.Error(err))
		exit(1)
	}
}

// buildFrame loads the model pair and evaluates the configured selection.
func buildFrame(cfg *config.Config, args []string) *model.Frame {
	m := openAssets(cfg)
	defer m.Close()
	mesh, anim := loadPair(cfg, m, args)

	b, err := model.NewBuilder(mesh, anim)
	if err != nil {
		fail("%v", err)
	}
	settings, err := cfg.Viewer.Settings()
	if err != nil {
		fail("%v", err)
	}

	f, err := b.Build(settings)
	if err != nil {
		fail("%v", err)
	}
	logger.Debug("frame built",
		zap.Float64("frame", f.FrameIndex),
		zap.Bool("animated", f.Animated),
		zap.Int("meshes", len(f.Meshes)))
	return f
}
