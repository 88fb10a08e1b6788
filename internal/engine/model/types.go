// Package model builds per-frame render data for an MD5 model: skinned
// meshes with tangent space, flattened for upload, plus debug overlays.
//
// The parsed model and animation are never modified. Each Build returns new
// arrays indexed like the mesh topology they came from.
package model

import (
	"github.com/Faultbox/md5skel/pkg/math"
	"github.com/Faultbox/md5skel/pkg/skeletal"
)

// Vertex is an interleaved mesh vertex ready for GPU upload.
type Vertex struct {
	Position  [3]float32
	Normal    [3]float32
	Tangent   [3]float32
	Bitangent [3]float32
	TexCoord  [2]float32
}

// Mesh is one evaluated mesh.
type Mesh struct {
	Index  int    // Index into the model's meshes
	Shader string // Shader path from the md5mesh

	Positions      []math.Vec3             // Skinned positions, one per vertex
	TriangleSpaces []skeletal.TangentSpace // One per triangle
	VertexSpaces   []skeletal.TangentSpace // One per vertex
	Vertices       []Vertex                // Interleaved copy of the above
	Indices        []uint32                // Three per triangle
	Bounds         Bounds
}

// Attributes holds separate per-vertex arrays, the layout glTF expects.
type Attributes struct {
	Positions [][3]float32
	Normals   [][3]float32
	Tangents  [][4]float32 // w is the bitangent sign
	TexCoords [][2]float32
	Indices   []uint32
}

// Line is a debug line segment.
type Line struct {
	From [3]float32
	To   [3]float32
}

// Overlays holds the optional debug geometry of a frame.
type Overlays struct {
	Skeleton        []Line       // Parent to child, one per non-root joint
	Points          [][3]float32 // Skinned vertex positions
	TriangleNormals []Line       // Centroid to centroid + normal·scale
	VertexNormals   []Line       // Vertex to vertex + normal·scale
}

// Frame is the render data of one displayed pose.
type Frame struct {
	FrameIndex float64 // Resolved frame, meaningful when Animated
	Animated   bool
	Joints     []skeletal.Joint
	Meshes     []Mesh // Enabled meshes only
	Overlays   Overlays
	Bounds     Bounds
}

// Bounds holds an axis-aligned bounding box.
type Bounds struct {
	Min [3]float32 `json:"min"`
	Max [3]float32 `json:"max"`
}

func emptyBounds() Bounds {
	return Bounds{
		Min: [3]float32{1e30, 1e30, 1e30},
		Max: [3]float32{-1e30, -1e30, -1e30},
	}
}

// Empty reports whether no point was added.
func (b Bounds) Empty() bool {
	return b.Min[0] > b.Max[0]
}

// Center returns the middle of the box.
func (b Bounds) Center() [3]float32 {
	return [3]float32{
		(b.Min[0] + b.Max[0]) / 2,
		(b.Min[1] + b.Max[1]) / 2,
		(b.Min[2] + b.Max[2]) / 2,
	}
}

func (b *Bounds) add(p [3]float32) {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] {
			b.Min[i] = p[i]
		}
		if p[i] > b.Max[i] {
			b.Max[i] = p[i]
		}
	}
}

func (b *Bounds) merge(o Bounds) {
	if o.Empty() {
		return
	}
	b.add(o.Min)
	b.add(o.Max)
}
