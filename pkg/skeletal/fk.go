package skeletal

import (
	gomath "math"

	"github.com/Faultbox/md5skel/pkg/formats"
	"github.com/Faultbox/md5skel/pkg/math"
)

// Joint is an evaluated joint; position and orientation are in object space.
type Joint = formats.Joint

// channelFlags lists the hierarchy flag of each local channel in stream order.
var channelFlags = [6]int{
	formats.FlagTX, formats.FlagTY, formats.FlagTZ,
	formats.FlagQX, formats.FlagQY, formats.FlagQZ,
}

// localTransform rebuilds a joint's parent-relative transform for one frame.
// Animated channels are consumed from the frame stream in tx,ty,tz,qx,qy,qz
// order, the others come from the base frame.
func localTransform(owner int, h formats.Hierarchy, base formats.BaseFrame, frame *formats.Frame) (math.Vec3, math.Quat, error) {
	need := h.ComponentCount()
	if need > 0 && (h.StartIndex < 0 || h.StartIndex+need > len(frame.Components)) {
		return math.Vec3{}, math.Quat{}, outOfRange(RefComponent, owner, h.StartIndex+need-1, len(frame.Components))
	}

	ch := [6]float64{
		base.Position.X, base.Position.Y, base.Position.Z,
		base.Orientation.X, base.Orientation.Y, base.Orientation.Z,
	}
	n := 0
	for i, flag := range channelFlags {
		if h.Flags&flag != 0 {
			ch[i] = frame.Components[h.StartIndex+n]
			n++
		}
	}

	return math.Vec3{X: ch[0], Y: ch[1], Z: ch[2]}, math.QuatFromXYZ(ch[3], ch[4], ch[5]), nil
}

// evaluate runs forward kinematics over the whole hierarchy for one frame.
// Joints are visited in array order, which is parent-before-child.
func evaluate(anim *formats.MD5Anim, frame *formats.Frame) ([]Joint, error) {
	if len(anim.BaseFrame) < len(anim.Hierarchy) {
		return nil, outOfRange(RefBaseFrame, -1, len(anim.BaseFrame), len(anim.BaseFrame))
	}

	joints := make([]Joint, len(anim.Hierarchy))
	for i, h := range anim.Hierarchy {
		pos, orient, err := localTransform(i, h, anim.BaseFrame[i], frame)
		if err != nil {
			return nil, err
		}

		if h.Parent == -1 {
			joints[i] = Joint{Name: h.Name, Parent: -1, Position: pos, Orientation: orient}
			continue
		}
		if h.Parent < 0 || h.Parent >= i {
			return nil, outOfRange(RefParent, i, h.Parent, i)
		}

		parent := &joints[h.Parent]
		joints[i] = Joint{
			Name:        h.Name,
			Parent:      h.Parent,
			Position:    parent.Orientation.Rotate(pos).Add(parent.Position),
			Orientation: parent.Orientation.Mul(orient).Normalize(),
		}
	}

	return joints, nil
}

// EvaluateFrame returns the object-space joints of the animation at an
// integer frame index.
func EvaluateFrame(anim *formats.MD5Anim, frameIndex int) ([]Joint, error) {
	if frameIndex < 0 || frameIndex >= len(anim.Frames) {
		return nil, outOfRange(RefFrame, -1, frameIndex, len(anim.Frames))
	}
	return evaluate(anim, &anim.Frames[frameIndex])
}

// EvaluateInterpolated returns the joints at a fractional frame index.
// Frames ⌊f⌋ and (⌊f⌋+1) mod frameCount are evaluated independently, then
// positions are lerped and orientations slerped by the fractional part.
// The last frame blends into the first so looping clips stay seamless.
func EvaluateInterpolated(anim *formats.MD5Anim, frameIndex float64) ([]Joint, error) {
	count := len(anim.Frames)
	floor := gomath.Floor(frameIndex)
	a := int(floor)
	if gomath.IsNaN(frameIndex) || a < 0 || a >= count {
		return nil, outOfRange(RefFrame, -1, a, count)
	}
	b := (a + 1) % count
	t := frameIndex - floor

	ja, err := evaluate(anim, &anim.Frames[a])
	if err != nil {
		return nil, err
	}
	if t == 0 {
		return ja, nil
	}
	jb, err := evaluate(anim, &anim.Frames[b])
	if err != nil {
		return nil, err
	}

	out := make([]Joint, len(ja))
	for i := range ja {
		out[i] = Joint{
			Name:        ja[i].Name,
			Parent:      ja[i].Parent,
			Position:    ja[i].Position.Lerp(jb[i].Position, t),
			Orientation: ja[i].Orientation.Slerp(jb[i].Orientation, t),
		}
	}
	return out, nil
}

// BindJoints returns a copy of the model's bind-pose joints.
func BindJoints(model *formats.MD5Mesh) []Joint {
	joints := make([]Joint, len(model.Joints))
	copy(joints, model.Joints)
	return joints
}
