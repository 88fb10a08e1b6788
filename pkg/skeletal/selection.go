package skeletal

import (
	gomath "math"

	"github.com/Faultbox/md5skel/pkg/formats"
)

// Selection chooses which pose of a model is displayed.
// It is one of BindPose, Animated or FixedFrame.
type Selection interface {
	resolve(frameCount, frameRate int) (float64, bool)
}

// BindPose selects the model's own joints, ignoring any animation.
type BindPose struct{}

// Animated selects the pose at a playback time in seconds. Time wraps
// around the clip duration.
type Animated struct {
	Time float64
}

// FixedFrame selects one integer frame of the animation.
type FixedFrame struct {
	Index int
}

func (BindPose) resolve(int, int) (float64, bool) {
	return 0, false
}

func (s Animated) resolve(frameCount, frameRate int) (float64, bool) {
	if frameCount == 0 || frameRate <= 0 {
		return 0, false
	}
	n := float64(frameCount)
	f := gomath.Mod(s.Time*float64(frameRate), n)
	if f < 0 {
		f += n
	}
	if f >= n {
		f = 0
	}
	return f, true
}

func (s FixedFrame) resolve(frameCount, _ int) (float64, bool) {
	if frameCount == 0 {
		return 0, false
	}
	return float64(s.Index), true
}

// Resolve turns a selection into a frame index for anim. The boolean is
// false when the bind pose should be shown instead, which is also the case
// for a nil animation or one without frames.
func Resolve(sel Selection, anim *formats.MD5Anim) (float64, bool) {
	if sel == nil || anim == nil {
		return 0, false
	}
	return sel.resolve(len(anim.Frames), anim.FrameRate)
}

// Pose returns the joints to skin model with for a selection. With
// interpolate unset, fractional frames are truncated to the earlier frame.
func Pose(model *formats.MD5Mesh, anim *formats.MD5Anim, sel Selection, interpolate bool) ([]Joint, error) {
	frame, animated := Resolve(sel, anim)
	if !animated {
		return BindJoints(model), nil
	}
	if interpolate {
		return EvaluateInterpolated(anim, frame)
	}
	return EvaluateFrame(anim, int(gomath.Floor(frame)))
}
