// Package skeletal evaluates MD5 skeletons: forward kinematics over the
// joint hierarchy, linear-blend skinning and tangent-space derivation.
//
// Every function is pure. Inputs parsed by package formats are never
// modified and every call returns freshly allocated slices, so different
// frames of the same model/animation pair may be evaluated concurrently.
package skeletal

import (
	"errors"
	"fmt"
)

// ErrReferenceOutOfRange is matched (via errors.Is) by every index violation
// reported by this package.
var ErrReferenceOutOfRange = errors.New("reference out of range")

// Validation errors that are not index violations.
var (
	ErrCountMismatch     = errors.New("count mismatch")
	ErrWeightSum         = errors.New("vertex weights do not sum to one")
	ErrHierarchyMismatch = errors.New("animation hierarchy does not match skeleton")
)

// Kinds of references reported by ReferenceOutOfRangeError.
const (
	RefFrame     = "frame"
	RefParent    = "parent"
	RefComponent = "component"
	RefBaseFrame = "base frame"
	RefJoint     = "joint"
	RefWeight    = "weight"
	RefVertex    = "vertex"
	RefTriangle  = "triangle"
	RefPosition  = "position"
)

// ReferenceOutOfRangeError reports an index that falls outside [0, Limit).
type ReferenceOutOfRangeError struct {
	Kind  string // What the index refers to (RefFrame, RefParent, ...)
	Owner int    // Index of the element holding the reference, -1 if none
	Index int    // Offending index
	Limit int    // Exclusive upper bound that was expected
}

func (e *ReferenceOutOfRangeError) Error() string {
	if e.Owner >= 0 {
		return fmt.Sprintf("%s index %d out of range [0, %d) at element %d", e.Kind, e.Index, e.Limit, e.Owner)
	}
	return fmt.Sprintf("%s index %d out of range [0, %d)", e.Kind, e.Index, e.Limit)
}

// Is makes errors.Is(err, ErrReferenceOutOfRange) succeed.
func (e *ReferenceOutOfRangeError) Is(target error) bool {
	return target == ErrReferenceOutOfRange
}

func outOfRange(kind string, owner, index, limit int) error {
	return &ReferenceOutOfRangeError{Kind: kind, Owner: owner, Index: index, Limit: limit}
}
