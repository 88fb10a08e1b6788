package skeletal

import (
	"fmt"
	gomath "math"

	"go.uber.org/multierr"

	"github.com/Faultbox/md5skel/pkg/formats"
)

// weightSumTolerance is how far the biases of a vertex may stray from one.
const weightSumTolerance = 1e-3

// ValidateModel checks every index reference of a parsed model and the
// per-vertex bias sums. All problems are returned together; use
// multierr.Errors to split them. Parsing never performs these checks.
func ValidateModel(model *formats.MD5Mesh) error {
	var err error

	if n := model.Header.NumJoints; n != 0 && n != len(model.Joints) {
		err = multierr.Append(err, fmt.Errorf("%w: header declares %d joints, found %d", ErrCountMismatch, n, len(model.Joints)))
	}
	if n := model.Header.NumMeshes; n != 0 && n != len(model.Meshes) {
		err = multierr.Append(err, fmt.Errorf("%w: header declares %d meshes, found %d", ErrCountMismatch, n, len(model.Meshes)))
	}

	for i, j := range model.Joints {
		if j.Parent != -1 && (j.Parent < 0 || j.Parent >= i) {
			err = multierr.Append(err, outOfRange(RefParent, i, j.Parent, i))
		}
	}

	for m := range model.Meshes {
		if merr := validateMesh(&model.Meshes[m], len(model.Joints)); merr != nil {
			err = multierr.Append(err, fmt.Errorf("mesh %d: %w", m, merr))
		}
	}

	return err
}

func validateMesh(mesh *formats.Mesh, jointCount int) error {
	var err error

	for i, v := range mesh.Vertices {
		if v.StartWeight < 0 || v.CountWeight < 0 || v.StartWeight+v.CountWeight > len(mesh.Weights) {
			err = multierr.Append(err, outOfRange(RefWeight, i, v.StartWeight+v.CountWeight-1, len(mesh.Weights)))
			continue
		}

		var sum float64
		for _, w := range mesh.Weights[v.StartWeight : v.StartWeight+v.CountWeight] {
			sum += w.Bias
		}
		if gomath.Abs(sum-1) > weightSumTolerance {
			err = multierr.Append(err, fmt.Errorf("%w: vertex %d sums to %g", ErrWeightSum, i, sum))
		}
	}

	for i, w := range mesh.Weights {
		if w.Joint < 0 || w.Joint >= jointCount {
			err = multierr.Append(err, outOfRange(RefJoint, i, w.Joint, jointCount))
		}
	}

	for i, tri := range mesh.Triangles {
		for _, vi := range tri.Indices {
			if vi < 0 || vi >= len(mesh.Vertices) {
				err = multierr.Append(err, outOfRange(RefVertex, i, vi, len(mesh.Vertices)))
			}
		}
	}

	return err
}

// ValidateAnimation checks an animation on its own and, when model is not
// nil, against the skeleton it is meant to drive.
func ValidateAnimation(anim *formats.MD5Anim, model *formats.MD5Mesh) error {
	var err error

	if n := anim.Header.NumFrames; n != 0 && n != len(anim.Frames) {
		err = multierr.Append(err, fmt.Errorf("%w: header declares %d frames, found %d", ErrCountMismatch, n, len(anim.Frames)))
	}
	if n := anim.Header.NumJoints; n != 0 && n != len(anim.Hierarchy) {
		err = multierr.Append(err, fmt.Errorf("%w: header declares %d joints, found %d", ErrCountMismatch, n, len(anim.Hierarchy)))
	}
	if len(anim.BaseFrame) < len(anim.Hierarchy) {
		err = multierr.Append(err, outOfRange(RefBaseFrame, -1, len(anim.BaseFrame), len(anim.BaseFrame)))
	}

	need := 0
	for i, h := range anim.Hierarchy {
		if h.Parent != -1 && (h.Parent < 0 || h.Parent >= i) {
			err = multierr.Append(err, outOfRange(RefParent, i, h.Parent, i))
		}
		if c := h.ComponentCount(); c > 0 {
			need = max(need, h.StartIndex+c)
		}
	}

	total := anim.AnimatedComponentCount()
	if n := anim.Header.NumAnimatedComponents; n != 0 && n != total {
		err = multierr.Append(err, fmt.Errorf("%w: header declares %d animated components, hierarchy flags %d",
			ErrCountMismatch, n, total))
	}

	for i, f := range anim.Frames {
		switch {
		case len(f.Components) < need:
			err = multierr.Append(err, outOfRange(RefComponent, i, need-1, len(f.Components)))
		case len(f.Components) != total:
			err = multierr.Append(err, fmt.Errorf("%w: frame %d has %d components, want %d",
				ErrCountMismatch, i, len(f.Components), total))
		}
	}

	if model == nil {
		return err
	}

	if len(anim.Hierarchy) != len(model.Joints) {
		return multierr.Append(err, fmt.Errorf("%w: %d animated joints, skeleton has %d",
			ErrHierarchyMismatch, len(anim.Hierarchy), len(model.Joints)))
	}
	for i, h := range anim.Hierarchy {
		j := model.Joints[i]
		if h.Name != j.Name || h.Parent != j.Parent {
			err = multierr.Append(err, fmt.Errorf("%w: joint %d is %q (parent %d), skeleton has %q (parent %d)",
				ErrHierarchyMismatch, i, h.Name, h.Parent, j.Name, j.Parent))
		}
	}

	return err
}
