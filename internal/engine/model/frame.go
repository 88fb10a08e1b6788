package model

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/md5skel/internal/logger"
	"github.com/Faultbox/md5skel/pkg/formats"
	"github.com/Faultbox/md5skel/pkg/math"
	"github.com/Faultbox/md5skel/pkg/skeletal"
)

// DefaultNormalScale is the length of normal overlay lines in model units.
const DefaultNormalScale = 2.0

// Settings is the immutable per-frame configuration chosen by the viewer.
type Settings struct {
	Selection   skeletal.Selection     // Which pose to show; nil means bind pose
	Interpolate bool                   // Blend between frames for fractional times
	Bitangent   skeletal.BitangentMode // Bitangent derivation
	Meshes      []bool                 // Per-mesh enable flags; missing entries are enabled

	Skeleton        bool    // Joint hierarchy lines
	Points          bool    // Skinned vertex points
	TriangleNormals bool    // Face normal lines
	VertexNormals   bool    // Vertex normal lines
	NormalScale     float64 // Length of normal lines
}

// DefaultSettings returns the bind pose with every mesh enabled.
func DefaultSettings() Settings {
	return Settings{
		Selection:   skeletal.BindPose{},
		Interpolate: true,
		NormalScale: DefaultNormalScale,
	}
}

// MeshEnabled reports whether mesh i should be built.
func (s Settings) MeshEnabled(i int) bool {
	return i >= len(s.Meshes) || s.Meshes[i]
}

// Builder evaluates frames of one model/animation pair.
// It holds only data derived from topology, so Build may be called from
// several goroutines at once.
type Builder struct {
	model    *formats.MD5Mesh
	anim     *formats.MD5Anim
	incident [][][]int // Per mesh, per vertex: incident triangles
	log      *zap.Logger
}

// NewBuilder prepares a builder. anim may be nil for a static model.
func NewBuilder(model *formats.MD5Mesh, anim *formats.MD5Anim) (*Builder, error) {
	b := &Builder{
		model:    model,
		anim:     anim,
		incident: make([][][]int, len(model.Meshes)),
		log:      logger.Named("model"),
	}

	for i := range model.Meshes {
		incident, err := skeletal.VertexTriangleIndices(&model.Meshes[i])
		if err != nil {
			return nil, fmt.Errorf("mesh %d: %w", i, err)
		}
		b.incident[i] = incident
	}

	return b, nil
}

// Model returns the model the builder evaluates.
func (b *Builder) Model() *formats.MD5Mesh {
	return b.model
}

// Animation returns the animation, nil for a static model.
func (b *Builder) Animation() *formats.MD5Anim {
	return b.anim
}

// Build evaluates one frame.
func (b *Builder) Build(s Settings) (*Frame, error) {
	frameIndex, animated := skeletal.Resolve(s.Selection, b.anim)
	joints, err := skeletal.Pose(b.model, b.anim, s.Selection, s.Interpolate)
	if err != nil {
		return nil, fmt.Errorf("evaluating pose: %w", err)
	}

	f := &Frame{
		FrameIndex: frameIndex,
		Animated:   animated,
		Joints:     joints,
		Bounds:     emptyBounds(),
	}

	scale := s.NormalScale
	if scale <= 0 {
		scale = DefaultNormalScale
	}

	for i := range b.model.Meshes {
		if !s.MeshEnabled(i) {
			continue
		}
		mesh, err := b.buildMesh(i, joints, s.Bitangent)
		if err != nil {
			return nil, fmt.Errorf("mesh %d: %w", i, err)
		}
		f.Bounds.merge(mesh.Bounds)

		if s.Points {
			for _, p := range mesh.Positions {
				f.Overlays.Points = append(f.Overlays.Points, p.Array())
			}
		}
		if s.TriangleNormals {
			f.Overlays.TriangleNormals = append(f.Overlays.TriangleNormals, triangleNormalLines(&b.model.Meshes[i], mesh, scale)...)
		}
		if s.VertexNormals {
			f.Overlays.VertexNormals = append(f.Overlays.VertexNormals, vertexNormalLines(mesh, scale)...)
		}

		f.Meshes = append(f.Meshes, *mesh)
	}

	if s.Skeleton {
		f.Overlays.Skeleton = SkeletonLines(joints)
	}

	return f, nil
}

func (b *Builder) buildMesh(i int, joints []skeletal.Joint, mode skeletal.BitangentMode) (*Mesh, error) {
	src := &b.model.Meshes[i]

	positions, err := skeletal.Skin(src, joints)
	if err != nil {
		return nil, err
	}
	tris, err := skeletal.TriangleTangentSpace(src, positions, skeletal.TangentOptions{Bitangent: mode})
	if err != nil {
		return nil, err
	}

	degenerate := 0
	for t := range tris {
		if !tris[t].Tangent.IsFinite() {
			degenerate++
		}
	}
	if degenerate > 0 {
		b.log.Debug("degenerate UV mapping",
			zap.Int("mesh", i),
			zap.String("shader", src.Shader),
			zap.Int("triangles", degenerate))
	}

	verts, err := skeletal.VertexTangentSpace(src, tris, b.incident[i])
	if err != nil {
		return nil, err
	}

	mesh := &Mesh{
		Index:          i,
		Shader:         src.Shader,
		Positions:      positions,
		TriangleSpaces: tris,
		VertexSpaces:   verts,
		Vertices:       make([]Vertex, len(positions)),
		Indices:        make([]uint32, 0, len(src.Triangles)*3),
		Bounds:         emptyBounds(),
	}

	for v := range positions {
		pos := positions[v].Array()
		mesh.Vertices[v] = Vertex{
			Position:  pos,
			Normal:    verts[v].Normal.Array(),
			Tangent:   verts[v].Tangent.Array(),
			Bitangent: verts[v].Bitangent.Array(),
			TexCoord:  src.Vertices[v].UV.Array(),
		}
		mesh.Bounds.add(pos)
	}
	for _, tri := range src.Triangles {
		mesh.Indices = append(mesh.Indices, uint32(tri.Indices[0]), uint32(tri.Indices[1]), uint32(tri.Indices[2]))
	}

	return mesh, nil
}

// Attributes splits the interleaved vertices into separate arrays.
func (m *Mesh) Attributes() Attributes {
	a := Attributes{
		Positions: make([][3]float32, len(m.Vertices)),
		Normals:   make([][3]float32, len(m.Vertices)),
		Tangents:  make([][4]float32, len(m.Vertices)),
		TexCoords: make([][2]float32, len(m.Vertices)),
		Indices:   m.Indices,
	}
	for i, v := range m.Vertices {
		a.Positions[i] = v.Position
		a.Normals[i] = v.Normal
		a.TexCoords[i] = v.TexCoord

		w := float32(1)
		if i < len(m.VertexSpaces) {
			ts := m.VertexSpaces[i]
			if ts.Normal.Cross(ts.Tangent).Dot(ts.Bitangent) < 0 {
				w = -1
			}
		}
		a.Tangents[i] = [4]float32{v.Tangent[0], v.Tangent[1], v.Tangent[2], w}
	}
	return a
}

// SkeletonLines returns one segment from each joint's parent to the joint.
func SkeletonLines(joints []skeletal.Joint) []Line {
	lines := make([]Line, 0, len(joints))
	for _, j := range joints {
		if j.Parent < 0 || j.Parent >= len(joints) {
			continue
		}
		lines = append(lines, Line{From: joints[j.Parent].Position.Array(), To: j.Position.Array()})
	}
	return lines
}

func triangleNormalLines(src *formats.Mesh, mesh *Mesh, scale float64) []Line {
	lines := make([]Line, 0, len(src.Triangles))
	for t, tri := range src.Triangles {
		centroid := math.SumVec3([]math.Vec3{
			mesh.Positions[tri.Indices[0]],
			mesh.Positions[tri.Indices[1]],
			mesh.Positions[tri.Indices[2]],
		}).Div(3)
		tip := centroid.Add(mesh.TriangleSpaces[t].Normal.Scale(scale))
		lines = append(lines, Line{From: centroid.Array(), To: tip.Array()})
	}
	return lines
}

func vertexNormalLines(mesh *Mesh, scale float64) []Line {
	lines := make([]Line, len(mesh.Positions))
	for v, p := range mesh.Positions {
		tip := p.Add(mesh.VertexSpaces[v].Normal.Scale(scale))
		lines[v] = Line{From: p.Array(), To: tip.Array()}
	}
	return lines
}
