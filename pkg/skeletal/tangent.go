package skeletal

import (
	"fmt"
	"strings"

	"github.com/Faultbox/md5skel/pkg/formats"
	"github.com/Faultbox/md5skel/pkg/math"
)

// TangentSpace is the shading basis of a triangle or vertex.
type TangentSpace struct {
	Normal    math.Vec3
	Tangent   math.Vec3
	Bitangent math.Vec3
}

// BitangentMode selects how the bitangent of a triangle is derived.
type BitangentMode int

const (
	// BitangentSolved solves the bitangent from the UV edge system, like the
	// tangent but with swapped coefficients. It follows the texture's U axis
	// regardless of winding.
	BitangentSolved BitangentMode = iota
	// BitangentCross takes normalize(normal × tangent). The result is always
	// orthogonal to the normal and the tangent but flips with winding.
	BitangentCross
)

func (m BitangentMode) String() string {
	switch m {
	case BitangentSolved:
		return "solved"
	case BitangentCross:
		return "cross"
	default:
		return fmt.Sprintf("BitangentMode(%d)", int(m))
	}
}

// ParseBitangentMode maps "solved" or "cross" to a BitangentMode.
func ParseBitangentMode(s string) (BitangentMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "solved":
		return BitangentSolved, nil
	case "cross":
		return BitangentCross, nil
	}
	return BitangentSolved, fmt.Errorf("unknown bitangent mode %q", s)
}

// TangentOptions controls tangent-space derivation.
type TangentOptions struct {
	Bitangent BitangentMode
}

// TriangleBasis computes the tangent space of one triangle from its three
// positions and texture coordinates.
//
// Degenerate UVs are not guarded: a zero UV determinant yields non-finite
// tangent and bitangent components.
func TriangleBasis(p0, p1, p2 math.Vec3, uv0, uv1, uv2 math.Vec2, mode BitangentMode) TangentSpace {
	dp1 := p2.Sub(p0)
	dp2 := p1.Sub(p0)
	duv1 := uv2.Sub(uv0)
	duv2 := uv1.Sub(uv0)

	normal := dp1.Cross(dp2).Normalize()

	r := 1 / (duv1.X*duv2.Y - duv1.Y*duv2.X)
	tangent := dp2.Scale(duv1.X).Sub(dp1.Scale(duv2.X)).Scale(r).Normalize()

	var bitangent math.Vec3
	switch mode {
	case BitangentCross:
		bitangent = normal.Cross(tangent).Normalize()
	default:
		bitangent = dp1.Scale(duv2.Y).Sub(dp2.Scale(duv1.Y)).Scale(r).Normalize()
	}

	return TangentSpace{Normal: normal, Tangent: tangent, Bitangent: bitangent}
}

// TriangleTangentSpace computes one basis per triangle of mesh using the
// skinned positions returned by Skin.
func TriangleTangentSpace(mesh *formats.Mesh, positions []math.Vec3, opts TangentOptions) ([]TangentSpace, error) {
	limit := min(len(positions), len(mesh.Vertices))

	spaces := make([]TangentSpace, len(mesh.Triangles))
	for i, tri := range mesh.Triangles {
		for _, vi := range tri.Indices {
			if vi < 0 || vi >= limit {
				return nil, outOfRange(RefVertex, i, vi, limit)
			}
		}
		a, b, c := tri.Indices[0], tri.Indices[1], tri.Indices[2]
		spaces[i] = TriangleBasis(
			positions[a], positions[b], positions[c],
			mesh.Vertices[a].UV, mesh.Vertices[b].UV, mesh.Vertices[c].UV,
			opts.Bitangent,
		)
	}
	return spaces, nil
}

// VertexTriangleIndices lists, for each vertex of mesh, the triangles that
// reference it, in triangle order. It depends on topology only and can be
// computed once per mesh.
func VertexTriangleIndices(mesh *formats.Mesh) ([][]int, error) {
	incident := make([][]int, len(mesh.Vertices))
	for t, tri := range mesh.Triangles {
		for _, vi := range tri.Indices {
			if vi < 0 || vi >= len(incident) {
				return nil, outOfRange(RefVertex, t, vi, len(incident))
			}
			list := incident[vi]
			if n := len(list); n > 0 && list[n-1] == t {
				continue
			}
			incident[vi] = append(list, t)
		}
	}
	return incident, nil
}

// VertexTangentSpace sums the bases of the triangles incident to each vertex
// and normalizes each of the three vectors independently. A vertex with no
// incident triangle gets a zero basis.
func VertexTangentSpace(mesh *formats.Mesh, triangleSpaces []TangentSpace, vertexTriangles [][]int) ([]TangentSpace, error) {
	spaces := make([]TangentSpace, len(mesh.Vertices))
	for i := range spaces {
		if i >= len(vertexTriangles) {
			break
		}

		var sum TangentSpace
		for _, t := range vertexTriangles[i] {
			if t < 0 || t >= len(triangleSpaces) {
				return nil, outOfRange(RefTriangle, i, t, len(triangleSpaces))
			}
			ts := &triangleSpaces[t]
			sum.Normal = sum.Normal.Add(ts.Normal)
			sum.Tangent = sum.Tangent.Add(ts.Tangent)
			sum.Bitangent = sum.Bitangent.Add(ts.Bitangent)
		}

		spaces[i] = TangentSpace{
			Normal:    sum.Normal.Normalize(),
			Tangent:   sum.Tangent.Normalize(),
			Bitangent: sum.Bitangent.Normalize(),
		}
	}
	return spaces, nil
}
