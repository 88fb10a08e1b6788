// MD5 mesh (.md5mesh) parser: bind-pose skeleton plus skinned meshes.
package formats

import (
	"fmt"
	"os"
	"regexp"

	"github.com/Faultbox/md5skel/pkg/encoding"
	"github.com/Faultbox/md5skel/pkg/math"
)

// Joint is a node of the skeleton.
// In a parsed md5mesh the position and orientation are in object space (bind pose).
// Parent is -1 for a root and always smaller than the joint's own index otherwise.
type Joint struct {
	Name        string    // Joint name (may be empty for evaluated joints)
	Parent      int       // Index of the parent joint, -1 for root
	Position    math.Vec3 // Translation
	Orientation math.Quat // Unit rotation
}

// IsRoot reports whether the joint has no parent.
func (j Joint) IsRoot() bool {
	return j.Parent == -1
}

// Vertex is a mesh vertex. Its position is not stored; it is derived from
// the weights Weights[StartWeight : StartWeight+CountWeight].
type Vertex struct {
	Index       int       // Declared vertex index
	UV          math.Vec2 // Texture coordinate
	StartWeight int       // First weight in the mesh weight list
	CountWeight int       // Number of weights
}

// Triangle is an ordered vertex triple; the order defines winding.
type Triangle struct {
	Index   int    // Declared triangle index
	Indices [3]int // Vertex indices
}

// Weight is a single joint influence on a vertex.
type Weight struct {
	Index    int       // Declared weight index
	Joint    int       // Influencing joint
	Bias     float64   // Contribution, weights of a vertex should sum to 1
	Position math.Vec3 // Position in the joint's local frame
}

// Mesh is one mesh block of an md5mesh file.
type Mesh struct {
	Shader    string     // Material / shader path
	Vertices  []Vertex   // Vertex list, in source order
	Triangles []Triangle // Triangle list, in source order
	Weights   []Weight   // Weight list, in source order
}

// MD5Mesh represents a parsed md5mesh file.
// It owns one joint array shared by all meshes.
type MD5Mesh struct {
	Header Header  // Header fields
	Joints []Joint // Bind-pose skeleton
	Meshes []Mesh  // Meshes, in file order
}

var (
	jointsSectionRe = sectionRe("joints")
	meshSectionRe   = sectionRe("mesh")

	jointRe = regexp.MustCompile(`"(.*?)"\s*` + num +
		`\s*\(\s*` + num + `\s+` + num + `\s+` + num + `\s*\)` +
		`\s*\(\s*` + num + `\s+` + num + `\s+` + num + `\s*\)`)
	shaderRe   = regexp.MustCompile(`\bshader\s*"(.*?)"`)
	vertexRe   = regexp.MustCompile(`\bvert\s+` + num + `\s*\(\s*` + num + `\s+` + num + `\s*\)\s*` + num + `\s+` + num)
	triangleRe = regexp.MustCompile(`\btri\s+` + num + `\s+` + num + `\s+` + num + `\s+` + num)
	weightRe   = regexp.MustCompile(`\bweight\s+` + num + `\s+` + num + `\s+` + num +
		`\s*\(\s*` + num + `\s+` + num + `\s+` + num + `\s*\)`)
)

// ParseMD5Mesh parses md5mesh source text.
// Malformed lines are skipped, so any textual input yields a model.
func ParseMD5Mesh(data []byte) (*MD5Mesh, error) {
	source := string(encoding.DecodeSource(data))

	m := &MD5Mesh{
		Header: parseHeader(source),
		Joints: parseJoints(section(jointsSectionRe, source)),
	}

	for _, body := range sections(meshSectionRe, source) {
		m.Meshes = append(m.Meshes, parseMesh(body))
	}

	return m, nil
}

// ParseMD5MeshFile parses an md5mesh file from disk.
func ParseMD5MeshFile(path string) (*MD5Mesh, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading md5mesh file: %w", err)
	}
	return ParseMD5Mesh(data)
}

func parseJoints(body string) []Joint {
	lines := matchLines(jointRe, body)
	joints := make([]Joint, 0, len(lines))
	for _, j := range lines {
		joints = append(joints, Joint{
			Name:        j[1],
			Parent:      parseInt(j[2]),
			Position:    math.Vec3{X: parseFloat(j[3]), Y: parseFloat(j[4]), Z: parseFloat(j[5])},
			Orientation: math.QuatFromXYZ(parseFloat(j[6]), parseFloat(j[7]), parseFloat(j[8])),
		})
	}
	return joints
}

func parseMesh(body string) Mesh {
	mesh := Mesh{}
	if s := shaderRe.FindStringSubmatch(body); s != nil {
		mesh.Shader = s[1]
	}

	for _, v := range matchLines(vertexRe, body) {
		mesh.Vertices = append(mesh.Vertices, Vertex{
			Index:       parseInt(v[1]),
			UV:          math.Vec2{X: parseFloat(v[2]), Y: parseFloat(v[3])},
			StartWeight: parseInt(v[4]),
			CountWeight: parseInt(v[5]),
		})
	}

	for _, t := range matchLines(triangleRe, body) {
		mesh.Triangles = append(mesh.Triangles, Triangle{
			Index:   parseInt(t[1]),
			Indices: [3]int{parseInt(t[2]), parseInt(t[3]), parseInt(t[4])},
		})
	}

	for _, w := range matchLines(weightRe, body) {
		mesh.Weights = append(mesh.Weights, Weight{
			Index:    parseInt(w[1]),
			Joint:    parseInt(w[2]),
			Bias:     parseFloat(w[3]),
			Position: math.Vec3{X: parseFloat(w[4]), Y: parseFloat(w[5]), Z: parseFloat(w[6])},
		})
	}

	return mesh
}

// TotalVertexCount returns the total number of vertices across all meshes.
func (m *MD5Mesh) TotalVertexCount() int {
	total := 0
	for _, mesh := range m.Meshes {
		total += len(mesh.Vertices)
	}
	return total
}

// TotalTriangleCount returns the total number of triangles across all meshes.
func (m *MD5Mesh) TotalTriangleCount() int {
	total := 0
	for _, mesh := range m.Meshes {
		total += len(mesh.Triangles)
	}
	return total
}

// JointIndex returns the index of the joint with the given name, or -1.
func (m *MD5Mesh) JointIndex(name string) int {
	for i := range m.Joints {
		if m.Joints[i].Name == name {
			return i
		}
	}
	return -1
}
