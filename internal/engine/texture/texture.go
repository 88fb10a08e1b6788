// Package texture resolves and decodes the textures of MD5 meshes.
//
// A mesh names a shader path; its maps live next to it as
// <shader>_<type>.<ext> with type d (diffuse), local (normal map),
// h (height) or s (specular).
package texture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"path"
	"strings"

	"github.com/ftrvxmtrx/tga"
	"go.uber.org/zap"

	"github.com/Faultbox/md5skel/internal/logger"
	"github.com/Faultbox/md5skel/pkg/formats"
)

// ErrNotFound is returned when no file exists for a shader map.
var ErrNotFound = errors.New("texture not found")

// Type is a texture map kind.
type Type string

// Map kinds.
const (
	Diffuse  Type = "d"
	Local    Type = "local"
	Height   Type = "h"
	Specular Type = "s"
)

// Types lists every map kind.
var Types = []Type{Diffuse, Local, Height, Specular}

// Extensions are tried in this order.
var Extensions = []string{".tga", ".png", ".jpg"}

// ParseType validates a map kind name.
func ParseType(s string) (Type, error) {
	for _, t := range Types {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown texture type %q", s)
}

// Loader reads asset bytes; *assets.Manager implements it.
type Loader interface {
	Load(path string) ([]byte, error)
}

// Info describes a resolved texture.
type Info struct {
	Path   string
	Type   Type
	Format string
	Width  int
	Height int
}

// Candidates returns the paths tried for one shader map, in order.
func Candidates(shader string, t Type) []string {
	base := strings.TrimSuffix(shader, path.Ext(shader))
	out := make([]string, 0, len(Extensions))
	for _, ext := range Extensions {
		out = append(out, base+"_"+string(t)+ext)
	}
	return out
}

// Resolve finds the first existing file for a shader map and reads its
// dimensions.
func Resolve(l Loader, shader string, t Type) (*Info, error) {
	if shader == "" {
		return nil, fmt.Errorf("empty shader: %w", ErrNotFound)
	}

	for _, p := range Candidates(shader, t) {
		data, err := l.Load(p)
		if err != nil {
			continue
		}
		cfg, format, err := DecodeConfig(p, data)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		return &Info{Path: p, Type: t, Format: format, Width: cfg.Width, Height: cfg.Height}, nil
	}
	return nil, fmt.Errorf("%s_%s: %w", shader, t, ErrNotFound)
}

// ResolveModel resolves one map kind for every mesh of model. Entries are
// nil for meshes without a texture.
func ResolveModel(l Loader, model *formats.MD5Mesh, t Type) []*Info {
	log := logger.Named("texture")

	out := make([]*Info, len(model.Meshes))
	for i := range model.Meshes {
		shader := model.Meshes[i].Shader
		info, err := Resolve(l, shader, t)
		if err != nil {
			log.Debug("texture unavailable", zap.Int("mesh", i), zap.String("shader", shader), zap.Error(err))
			continue
		}
		out[i] = info
	}
	return out
}

// decoderFor picks the codec from the file extension. TGA has no magic
// number, so image.Decode sniffing is not reliable for it.
func decoderFor(name string) (string, error) {
	switch ext := strings.ToLower(path.Ext(name)); ext {
	case ".tga":
		return "tga", nil
	case ".png":
		return "png", nil
	case ".jpg", ".jpeg":
		return "jpeg", nil
	default:
		return "", fmt.Errorf("unsupported texture extension %q", ext)
	}
}

// DecodeConfig returns the dimensions and format of an encoded texture.
func DecodeConfig(name string, data []byte) (image.Config, string, error) {
	format, err := decoderFor(name)
	if err != nil {
		return image.Config{}, "", err
	}

	r := bytes.NewReader(data)
	var cfg image.Config
	switch format {
	case "tga":
		cfg, err = tga.DecodeConfig(r)
	case "png":
		cfg, err = png.DecodeConfig(r)
	case "jpeg":
		cfg, err = jpeg.DecodeConfig(r)
	}
	return cfg, format, err
}

// Decode decodes an encoded texture.
func Decode(name string, data []byte) (image.Image, error) {
	format, err := decoderFor(name)
	if err != nil {
		return nil, err
	}

	r := bytes.NewReader(data)
	switch format {
	case "tga":
		return tga.Decode(r)
	case "png":
		return png.Decode(r)
	default:
		return jpeg.Decode(r)
	}
}

// ToRGBA converts any image to RGBA for upload.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(b)
	draw.Draw(rgba, b, img, b.Min, draw.Src)
	return rgba
}
