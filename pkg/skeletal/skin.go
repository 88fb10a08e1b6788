package skeletal

import (
	"github.com/Faultbox/md5skel/pkg/formats"
	"github.com/Faultbox/md5skel/pkg/math"
)

// Skin computes the object-space position of every vertex of mesh, in
// vertex order, by linear-blend skinning against joints.
//
// Each weight's local position is rotated by its joint's orientation,
// translated by the joint's position and scaled by its bias. Weights of a
// vertex are expected to sum to one; other sums yield scaled positions.
func Skin(mesh *formats.Mesh, joints []Joint) ([]math.Vec3, error) {
	positions := make([]math.Vec3, len(mesh.Vertices))
	for i, v := range mesh.Vertices {
		if v.StartWeight < 0 || v.CountWeight < 0 || v.StartWeight+v.CountWeight > len(mesh.Weights) {
			return nil, outOfRange(RefWeight, i, v.StartWeight+v.CountWeight-1, len(mesh.Weights))
		}

		var pos math.Vec3
		for _, w := range mesh.Weights[v.StartWeight : v.StartWeight+v.CountWeight] {
			if w.Joint < 0 || w.Joint >= len(joints) {
				return nil, outOfRange(RefJoint, w.Index, w.Joint, len(joints))
			}
			j := &joints[w.Joint]
			pos = pos.Add(j.Orientation.Rotate(w.Position).Add(j.Position).Scale(w.Bias))
		}
		positions[i] = pos
	}
	return positions, nil
}

// SkinModel skins every mesh of model. The result is indexed like model.Meshes.
func SkinModel(model *formats.MD5Mesh, joints []Joint) ([][]math.Vec3, error) {
	out := make([][]math.Vec3, len(model.Meshes))
	for i := range model.Meshes {
		positions, err := Skin(&model.Meshes[i], joints)
		if err != nil {
			return nil, err
		}
		out[i] = positions
	}
	return out, nil
}
