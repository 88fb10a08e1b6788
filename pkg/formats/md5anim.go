// MD5 animation (.md5anim) parser: joint hierarchy, base frame and per-frame channel data.
package formats

import (
	"fmt"
	"math/bits"
	"os"
	"regexp"

	"github.com/Faultbox/md5skel/pkg/encoding"
	"github.com/Faultbox/md5skel/pkg/math"
)

// Channel flags of a hierarchy entry. A set bit means the channel is read
// from the frame component stream, in this order; an unset bit means the
// base frame value is used.
const (
	FlagTX = 1 << iota
	FlagTY
	FlagTZ
	FlagQX
	FlagQY
	FlagQZ

	FlagMask = FlagTX | FlagTY | FlagTZ | FlagQX | FlagQY | FlagQZ
)

// Hierarchy describes how one joint is animated.
type Hierarchy struct {
	Name       string // Joint name
	Parent     int    // Parent joint index, -1 for root
	Flags      int    // Animated channel mask (FlagTX..FlagQZ)
	StartIndex int    // Offset of the joint's first component in a frame
}

// ComponentCount returns how many frame components the joint consumes.
func (h Hierarchy) ComponentCount() int {
	return bits.OnesCount(uint(h.Flags & FlagMask))
}

// BaseFrame is the default local transform of a joint.
type BaseFrame struct {
	Position    math.Vec3
	Orientation math.Quat
}

// Bounds is the axis-aligned box of the model for one frame.
type Bounds struct {
	Min math.Vec3
	Max math.Vec3
}

// Frame is one animation sample: a flat component stream.
type Frame struct {
	Index      int       // Declared frame number
	Components []float64 // Animated components of all joints
}

// MD5Anim represents a parsed md5anim file.
type MD5Anim struct {
	Header    Header      // Header fields
	FrameRate int         // Frames per second, DefaultFrameRate when undeclared
	Hierarchy []Hierarchy // One entry per joint
	BaseFrame []BaseFrame // One entry per joint
	Bounds    []Bounds    // One entry per frame
	Frames    []Frame     // Frames, in source order
}

var (
	hierarchySectionRe = sectionRe("hierarchy")
	baseFrameSectionRe = sectionRe("baseframe")
	boundsSectionRe    = sectionRe("bounds")
	frameSectionRe     = regexp.MustCompile(`(?s)\bframe\s+` + num + `\s*\{(.*?)\}`)

	hierarchyRe = regexp.MustCompile(`"(.*?)"\s*` + num + `\s+` + num + `\s+` + num)
	vecPairRe   = regexp.MustCompile(`\(\s*` + num + `\s+` + num + `\s+` + num + `\s*\)` +
		`\s*\(\s*` + num + `\s+` + num + `\s+` + num + `\s*\)`)
)

// ParseMD5Anim parses md5anim source text.
// Malformed lines are skipped; the error is non-nil only if the frame
// component lexer cannot be run.
func ParseMD5Anim(data []byte) (*MD5Anim, error) {
	source := string(encoding.DecodeSource(data))

	a := &MD5Anim{
		Header:    parseHeader(source),
		Hierarchy: parseHierarchy(section(hierarchySectionRe, source)),
		BaseFrame: parseBaseFrame(section(baseFrameSectionRe, source)),
		Bounds:    parseBounds(section(boundsSectionRe, source)),
	}

	a.FrameRate = a.Header.FrameRate
	if a.FrameRate <= 0 {
		a.FrameRate = DefaultFrameRate
	}

	for _, m := range frameSectionRe.FindAllStringSubmatch(source, -1) {
		components, err := parseComponents([]byte(m[2]))
		if err != nil {
			return nil, fmt.Errorf("frame %s: %w", m[1], err)
		}
		a.Frames = append(a.Frames, Frame{
			Index:      parseInt(m[1]),
			Components: components,
		})
	}

	return a, nil
}

// ParseMD5AnimFile parses an md5anim file from disk.
func ParseMD5AnimFile(path string) (*MD5Anim, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading md5anim file: %w", err)
	}
	return ParseMD5Anim(data)
}

func parseHierarchy(body string) []Hierarchy {
	lines := matchLines(hierarchyRe, body)
	out := make([]Hierarchy, 0, len(lines))
	for _, h := range lines {
		out = append(out, Hierarchy{
			Name:       h[1],
			Parent:     parseInt(h[2]),
			Flags:      parseInt(h[3]),
			StartIndex: parseInt(h[4]),
		})
	}
	return out
}

func parseBaseFrame(body string) []BaseFrame {
	lines := matchLines(vecPairRe, body)
	out := make([]BaseFrame, 0, len(lines))
	for _, b := range lines {
		out = append(out, BaseFrame{
			Position:    math.Vec3{X: parseFloat(b[1]), Y: parseFloat(b[2]), Z: parseFloat(b[3])},
			Orientation: math.QuatFromXYZ(parseFloat(b[4]), parseFloat(b[5]), parseFloat(b[6])),
		})
	}
	return out
}

func parseBounds(body string) []Bounds {
	lines := matchLines(vecPairRe, body)
	out := make([]Bounds, 0, len(lines))
	for _, b := range lines {
		out = append(out, Bounds{
			Min: math.Vec3{X: parseFloat(b[1]), Y: parseFloat(b[2]), Z: parseFloat(b[3])},
			Max: math.Vec3{X: parseFloat(b[4]), Y: parseFloat(b[5]), Z: parseFloat(b[6])},
		})
	}
	return out
}

// FrameCount returns the number of parsed frames.
func (a *MD5Anim) FrameCount() int {
	return len(a.Frames)
}

// JointCount returns the number of hierarchy entries.
func (a *MD5Anim) JointCount() int {
	return len(a.Hierarchy)
}

// AnimatedComponentCount returns the number of components every frame must carry.
func (a *MD5Anim) AnimatedComponentCount() int {
	total := 0
	for _, h := range a.Hierarchy {
		total += h.ComponentCount()
	}
	return total
}

// WithFrameRate returns a copy of the animation playing at rate. The
// receiver is left untouched; frame data is shared.
func (a *MD5Anim) WithFrameRate(rate int) *MD5Anim {
	out := *a
	out.FrameRate = rate
	return &out
}

// Duration returns the clip length in seconds.
func (a *MD5Anim) Duration() float64 {
	if a.FrameRate <= 0 {
		return 0
	}
	return float64(len(a.Frames)) / float64(a.FrameRate)
}
