package model

import gomath "math"

// Buffers holds tightly packed vertex streams for a renderer: three floats
// per position, normal, tangent and bitangent, two per texcoord.
type Buffers struct {
	Positions  []float32 `json:"positions"`
	Normals    []float32 `json:"normals"`
	Tangents   []float32 `json:"tangents"`
	Bitangents []float32 `json:"bitangents"`
	TexCoords  []float32 `json:"texcoords"`
	Indices    []uint32  `json:"indices"`
}

// Buffers flattens the mesh vertices. Non-finite components, which come
// from triangles with degenerate UVs, are written as zero when finiteOnly
// is set so the result can be JSON encoded.
func (m *Mesh) Buffers(finiteOnly bool) Buffers {
	n := len(m.Vertices)
	b := Buffers{
		Positions:  make([]float32, 0, n*3),
		Normals:    make([]float32, 0, n*3),
		Tangents:   make([]float32, 0, n*3),
		Bitangents: make([]float32, 0, n*3),
		TexCoords:  make([]float32, 0, n*2),
		Indices:    m.Indices,
	}

	put := func(dst []float32, src ...float32) []float32 {
		for _, f := range src {
			if finiteOnly && (gomath.IsNaN(float64(f)) || gomath.IsInf(float64(f), 0)) {
				f = 0
			}
			dst = append(dst, f)
		}
		return dst
	}

	for _, v := range m.Vertices {
		b.Positions = put(b.Positions, v.Position[:]...)
		b.Normals = put(b.Normals, v.Normal[:]...)
		b.Tangents = put(b.Tangents, v.Tangent[:]...)
		b.Bitangents = put(b.Bitangents, v.Bitangent[:]...)
		b.TexCoords = put(b.TexCoords, v.TexCoord[:]...)
	}
	return b
}

// LineBuffer flattens line segments into six floats each.
func LineBuffer(lines []Line) []float32 {
	out := make([]float32, 0, len(lines)*6)
	for _, l := range lines {
		out = append(out, l.From[:]...)
		out = append(out, l.To[:]...)
	}
	return out
}
