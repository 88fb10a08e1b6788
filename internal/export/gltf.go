// Package export writes evaluated frames as glTF 2.0 scenes.
package export

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"github.com/Faultbox/md5skel/internal/engine/model"
	"github.com/Faultbox/md5skel/internal/logger"
	"github.com/Faultbox/md5skel/pkg/skeletal"
)

// Options controls what goes into the exported scene.
type Options struct {
	Name     string // Root node name
	Skeleton bool   // Add joint nodes and a line primitive for the bones
	YUp      bool   // Rotate the Z-up model into glTF's Y-up convention
}

// Document builds a glTF document from one evaluated frame. Mesh vertices
// are already posed, so no skin is written; the joints become a plain
// node hierarchy with local transforms.
func Document(f *model.Frame, opts Options) (*gltf.Document, error) {
	doc := gltf.NewDocument()

	name := opts.Name
	if name == "" {
		name = "md5"
	}
	root := &gltf.Node{
		Name:     name,
		Rotation: [4]float32{0, 0, 0, 1},
		Scale:    [3]float32{1, 1, 1},
	}
	if opts.YUp {
		root.Rotation = quatArray(mgl32.QuatRotate(mgl32.DegToRad(-90), mgl32.Vec3{1, 0, 0}))
	}
	doc.Nodes = append(doc.Nodes, root)
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)

	for i := range f.Meshes {
		mesh := &f.Meshes[i]
		if len(mesh.Vertices) == 0 || len(mesh.Indices) == 0 {
			continue
		}
		root.Children = append(root.Children, addMesh(doc, mesh))
	}

	if opts.Skeleton && len(f.Joints) > 0 {
		joints, err := addJoints(doc, f.Joints)
		if err != nil {
			return nil, err
		}
		root.Children = append(root.Children, joints...)

		if lines := model.SkeletonLines(f.Joints); len(lines) > 0 {
			root.Children = append(root.Children, addLines(doc, "skeleton", lines))
		}
	}

	return doc, nil
}

func addMesh(doc *gltf.Document, mesh *model.Mesh) uint32 {
	a := mesh.Attributes()
	sanitize(&a)

	material := uint32(len(doc.Materials))
	doc.Materials = append(doc.Materials, &gltf.Material{
		Name: mesh.Shader,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float32{0.8, 0.8, 0.8, 1},
			MetallicFactor:  gltf.Float(0),
		},
	})

	indices := modeler.WriteIndices(doc, a.Indices)
	attributes := map[string]uint32{
		gltf.POSITION:   modeler.WritePosition(doc, a.Positions),
		gltf.NORMAL:     modeler.WriteNormal(doc, a.Normals),
		gltf.TANGENT:    modeler.WriteTangent(doc, a.Tangents),
		gltf.TEXCOORD_0: modeler.WriteTextureCoord(doc, a.TexCoords),
	}

	doc.Meshes = append(doc.Meshes, &gltf.Mesh{
		Name: fmt.Sprintf("mesh%d", mesh.Index),
		Primitives: []*gltf.Primitive{{
			Indices:    gltf.Index(indices),
			Attributes: attributes,
			Material:   gltf.Index(material),
		}},
	})

	doc.Nodes = append(doc.Nodes, &gltf.Node{
		Name:     fmt.Sprintf("mesh%d", mesh.Index),
		Mesh:     gltf.Index(uint32(len(doc.Meshes) - 1)),
		Rotation: [4]float32{0, 0, 0, 1},
		Scale:    [3]float32{1, 1, 1},
	})
	return uint32(len(doc.Nodes) - 1)
}

// addJoints appends one node per joint with its transform relative to the
// parent and returns the root joint nodes.
func addJoints(doc *gltf.Document, joints []skeletal.Joint) ([]uint32, error) {
	base := uint32(len(doc.Nodes))
	var roots []uint32

	for i, j := range joints {
		pos := vec3(j.Position.X, j.Position.Y, j.Position.Z)
		rot := quat(j.Orientation.X, j.Orientation.Y, j.Orientation.Z, j.Orientation.W)

		if j.Parent >= 0 {
			if j.Parent >= i {
				return nil, errors.Errorf("joint %d (%s): parent %d is not before it", i, j.Name, j.Parent)
			}
			p := joints[j.Parent]
			parentPos := vec3(p.Position.X, p.Position.Y, p.Position.Z)
			inv := quat(p.Orientation.X, p.Orientation.Y, p.Orientation.Z, p.Orientation.W).Inverse()
			pos = inv.Rotate(pos.Sub(parentPos))
			rot = inv.Mul(rot).Normalize()
			doc.Nodes[base+uint32(j.Parent)].Children = append(doc.Nodes[base+uint32(j.Parent)].Children, base+uint32(i))
		} else {
			roots = append(roots, base+uint32(i))
		}

		doc.Nodes = append(doc.Nodes, &gltf.Node{
			Name:        j.Name,
			Translation: pos,
			Rotation:    quatArray(rot),
			Scale:       [3]float32{1, 1, 1},
		})
	}

	return roots, nil
}

func addLines(doc *gltf.Document, name string, lines []model.Line) uint32 {
	points := make([][3]float32, 0, len(lines)*2)
	for _, l := range lines {
		points = append(points, l.From, l.To)
	}

	doc.Meshes = append(doc.Meshes, &gltf.Mesh{
		Name: name,
		Primitives: []*gltf.Primitive{{
			Mode:       gltf.PrimitiveLines,
			Attributes: map[string]uint32{gltf.POSITION: modeler.WritePosition(doc, points)},
		}},
	})
	doc.Nodes = append(doc.Nodes, &gltf.Node{
		Name:     name,
		Mesh:     gltf.Index(uint32(len(doc.Meshes) - 1)),
		Rotation: [4]float32{0, 0, 0, 1},
		Scale:    [3]float32{1, 1, 1},
	})
	return uint32(len(doc.Nodes) - 1)
}

// sanitize replaces non-finite normals and tangents, which glTF validators
// reject, with fixed unit vectors.
func sanitize(a *model.Attributes) {
	for i, n := range a.Normals {
		if !finite(n[:]) {
			a.Normals[i] = [3]float32{0, 0, 1}
		}
	}
	for i, t := range a.Tangents {
		if !finite(t[:3]) {
			a.Tangents[i] = [4]float32{1, 0, 0, 1}
		}
	}
}

func finite(v []float32) bool {
	for _, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return false
		}
	}
	return true
}

func vec3(x, y, z float64) mgl32.Vec3 {
	return mgl32.Vec3{float32(x), float32(y), float32(z)}
}

func quat(x, y, z, w float64) mgl32.Quat {
	return mgl32.Quat{W: float32(w), V: vec3(x, y, z)}
}

func quatArray(q mgl32.Quat) [4]float32 {
	return [4]float32{q.V[0], q.V[1], q.V[2], q.W}
}

// Write encodes doc as .gltf JSON with embedded buffers, or as .glb.
func Write(w io.Writer, doc *gltf.Document, binary bool) error {
	if !binary {
		for _, b := range doc.Buffers {
			b.EmbeddedResource()
		}
	}

	enc := gltf.NewEncoder(w)
	enc.AsBinary = binary
	return errors.Wrap(enc.Encode(doc), "encoding gltf")
}

// IsBinary picks the container from a file name: .glb is binary, .gltf is
// JSON.
func IsBinary(path string) (bool, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".glb":
		return true, nil
	case ".gltf":
		return false, nil
	default:
		return false, errors.Errorf("unsupported export extension %q", ext)
	}
}

// Save exports f to path.
func Save(path string, f *model.Frame, opts Options) error {
	binary, err := IsBinary(path)
	if err != nil {
		return err
	}
	doc, err := Document(f, opts)
	if err != nil {
		return errors.Wrap(err, "building gltf document")
	}

	out, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	if err := Write(out, doc, binary); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return errors.Wrapf(err, "closing %s", path)
	}

	logger.Named("export").Info("frame exported",
		zap.String("path", path),
		zap.Int("meshes", len(doc.Meshes)),
		zap.Int("nodes", len(doc.Nodes)),
		zap.Bool("binary", binary))
	return nil
}
