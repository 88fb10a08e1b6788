package skeletal

import (
	"math"
	"time"

	"github.com/Faultbox/md5skel/pkg/formats"
)

// Player is a looping playback clock for one animation.
// It is owned by a single caller and is not safe for concurrent use.
type Player struct {
	Speed  float64 // Playback speed multiplier, 1 is real time
	Paused bool

	frameCount int
	frameRate  int
	time       float64 // seconds into the clip, in [0, duration)
}

// NewPlayer returns a player positioned at the start of anim.
func NewPlayer(anim *formats.MD5Anim) *Player {
	p := &Player{Speed: 1}
	if anim != nil {
		p.frameCount = len(anim.Frames)
		p.frameRate = anim.FrameRate
	}
	return p
}

// Duration returns the clip length.
func (p *Player) Duration() time.Duration {
	if p.frameRate <= 0 {
		return 0
	}
	return time.Duration(float64(p.frameCount) / float64(p.frameRate) * float64(time.Second))
}

// Advance moves the clock forward by dt, looping at the end of the clip.
func (p *Player) Advance(dt time.Duration) {
	if p.Paused || p.frameCount == 0 || p.frameRate <= 0 {
		return
	}

	duration := float64(p.frameCount) / float64(p.frameRate)
	p.time += dt.Seconds() * p.Speed
	p.time = math.Mod(p.time, duration)
	if p.time < 0 {
		p.time += duration
	}
}

// Seek jumps to an integer frame.
func (p *Player) Seek(frame int) {
	if p.frameCount == 0 || p.frameRate <= 0 {
		return
	}
	frame %= p.frameCount
	if frame < 0 {
		frame += p.frameCount
	}
	p.time = float64(frame) / float64(p.frameRate)
}

// Time returns the playback position in seconds.
func (p *Player) Time() float64 {
	return p.time
}

// Selection returns the current pose selection.
func (p *Player) Selection() Selection {
	if p.frameCount == 0 {
		return BindPose{}
	}
	return Animated{Time: p.time}
}
