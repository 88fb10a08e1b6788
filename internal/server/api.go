package server

import (
	"encoding/json"
	"image/png"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Faultbox/md5skel/internal/engine/model"
	"github.com/Faultbox/md5skel/internal/engine/texture"
	"github.com/Faultbox/md5skel/pkg/skeletal"
)

type jointInfo struct {
	Name   string `json:"name"`
	Parent int    `json:"parent"`
}

type meshInfo struct {
	Shader    string        `json:"shader"`
	Vertices  int           `json:"vertices"`
	Triangles int           `json:"triangles"`
	Weights   int           `json:"weights"`
	Texture   *texture.Info `json:"texture,omitempty"`
}

type modelInfo struct {
	Joints    []jointInfo `json:"joints"`
	Meshes    []meshInfo  `json:"meshes"`
	Animated  bool        `json:"animated"`
	Frames    int         `json:"frames"`
	FrameRate int         `json:"frameRate"`
	Duration  float64     `json:"duration"`
}

type meshFrame struct {
	Index  int    `json:"index"`
	Shader string `json:"shader"`
	model.Buffers
}

type frameMessage struct {
	Frame           float64     `json:"frame"`
	Animated        bool        `json:"animated"`
	Min             [3]float32  `json:"min"`
	Max             [3]float32  `json:"max"`
	Meshes          []meshFrame `json:"meshes"`
	Skeleton        []float32   `json:"skeleton,omitempty"`
	Points          []float32   `json:"points,omitempty"`
	TriangleNormals []float32   `json:"triangleNormals,omitempty"`
	VertexNormals   []float32   `json:"vertexNormals,omitempty"`
}

func encodeFrame(f *model.Frame) *frameMessage {
	msg := &frameMessage{
		Frame:           f.FrameIndex,
		Animated:        f.Animated,
		Min:             f.Bounds.Min,
		Max:             f.Bounds.Max,
		Meshes:          make([]meshFrame, len(f.Meshes)),
		Skeleton:        model.LineBuffer(f.Overlays.Skeleton),
		TriangleNormals: model.LineBuffer(f.Overlays.TriangleNormals),
		VertexNormals:   model.LineBuffer(f.Overlays.VertexNormals),
	}
	for i := range f.Meshes {
		m := &f.Meshes[i]
		msg.Meshes[i] = meshFrame{Index: m.Index, Shader: m.Shader, Buffers: m.Buffers(true)}
	}
	for _, p := range f.Overlays.Points {
		msg.Points = append(msg.Points, p[:]...)
	}
	if f.Bounds.Empty() {
		msg.Min, msg.Max = [3]float32{}, [3]float32{}
	}
	// Overlay lines may pass through degenerate normals.
	for _, buf := range [][]float32{msg.TriangleNormals, msg.VertexNormals} {
		for i, v := range buf {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				buf[i] = 0
			}
		}
	}
	return msg
}

func (s *Server) modelInfo() *modelInfo {
	m := s.builder.Model()
	info := &modelInfo{
		Joints: make([]jointInfo, len(m.Joints)),
		Meshes: make([]meshInfo, len(m.Meshes)),
	}
	for i, j := range m.Joints {
		info.Joints[i] = jointInfo{Name: j.Name, Parent: j.Parent}
	}

	var textures []*texture.Info
	if s.opts.Textures != nil {
		textures = texture.ResolveModel(s.opts.Textures, m, s.opts.TextureType)
	}
	for i := range m.Meshes {
		mesh := &m.Meshes[i]
		info.Meshes[i] = meshInfo{
			Shader:    mesh.Shader,
			Vertices:  len(mesh.Vertices),
			Triangles: len(mesh.Triangles),
			Weights:   len(mesh.Weights),
		}
		if textures != nil {
			info.Meshes[i].Texture = textures[i]
		}
	}

	if anim := s.builder.Animation(); anim != nil {
		info.Animated = len(anim.Frames) > 0
		info.Frames = len(anim.Frames)
		info.FrameRate = anim.FrameRate
		info.Duration = anim.Duration()
	}
	return info
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.modelInfo())
}

func (s *Server) handleBind(w http.ResponseWriter, r *http.Request) {
	settings, err := applyQuery(s.opts.Settings, r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	settings.Selection = skeletal.BindPose{}
	s.serveFrame(w, settings)
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	settings, err := applyQuery(s.opts.Settings, r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sel, err := s.parseFrame(mux.Vars(r)["frame"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	settings.Selection = sel
	s.serveFrame(w, settings)
}

// parseFrame turns a path segment into a selection. Integers select that
// frame; fractional values are converted to a playback time so the pose is
// interpolated.
func (s *Server) parseFrame(raw string) (skeletal.Selection, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, errors.Errorf("invalid frame %q", raw)
	}
	if f == math.Trunc(f) {
		return skeletal.FixedFrame{Index: int(f)}, nil
	}

	anim := s.builder.Animation()
	if anim == nil || anim.FrameRate <= 0 || f < 0 || f >= float64(len(anim.Frames)) {
		return nil, errors.Errorf("frame %q out of range", raw)
	}
	return skeletal.Animated{Time: f / float64(anim.FrameRate)}, nil
}

func (s *Server) serveFrame(w http.ResponseWriter, settings model.Settings) {
	f, err := s.builder.Build(settings)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, skeletal.ErrReferenceOutOfRange) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeFrame(f))
}

func (s *Server) handleTexture(w http.ResponseWriter, r *http.Request) {
	if s.opts.Textures == nil {
		writeError(w, http.StatusNotFound, errors.New("textures are not enabled"))
		return
	}

	m := s.builder.Model()
	idx, _ := strconv.Atoi(mux.Vars(r)["mesh"])
	if idx >= len(m.Meshes) {
		writeError(w, http.StatusNotFound, errors.Errorf("mesh %d out of range", idx))
		return
	}

	kind := s.opts.TextureType
	if q := r.URL.Query().Get("type"); q != "" {
		t, err := texture.ParseType(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		kind = t
	}

	info, err := texture.Resolve(s.opts.Textures, m.Meshes[idx].Shader, kind)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, texture.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}
	data, err := s.opts.Textures.Load(info.Path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	img, err := texture.Decode(info.Path, data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.Wrapf(err, "decoding %s", info.Path))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, texture.ToRGBA(img)); err != nil {
		s.log.Warn("texture write failed", zap.String("path", info.Path), zap.Error(err))
	}
}

// applyQuery overrides base settings from query parameters:
// skeleton, points, interpolate (booleans), normals (tri, vert or both
// comma separated), bitangent (solved or cross), scale (float) and
// meshes (comma separated 0/1 toggles).
func applyQuery(base model.Settings, q url.Values) (model.Settings, error) {
	s := base
	if len(base.Meshes) > 0 {
		s.Meshes = append([]bool(nil), base.Meshes...)
	}

	bools := map[string]*bool{
		"skeleton":    &s.Skeleton,
		"points":      &s.Points,
		"interpolate": &s.Interpolate,
	}
	for key, dst := range bools {
		if v := q.Get(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return s, errors.Errorf("invalid %s %q", key, v)
			}
			*dst = b
		}
	}

	if v, ok := q["normals"]; ok {
		s.TriangleNormals, s.VertexNormals = false, false
		for _, part := range strings.Split(strings.Join(v, ","), ",") {
			switch strings.TrimSpace(part) {
			case "tri":
				s.TriangleNormals = true
			case "vert":
				s.VertexNormals = true
			case "", "none":
			default:
				return s, errors.Errorf("invalid normals %q", part)
			}
		}
	}

	if v := q.Get("bitangent"); v != "" {
		mode, err := skeletal.ParseBitangentMode(v)
		if err != nil {
			return s, err
		}
		s.Bitangent = mode
	}

	if v := q.Get("scale"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return s, errors.Errorf("invalid scale %q", v)
		}
		s.NormalScale = f
	}

	if v := q.Get("meshes"); v != "" {
		parts := strings.Split(v, ",")
		s.Meshes = make([]bool, len(parts))
		for i, p := range parts {
			b, err := strconv.ParseBool(strings.TrimSpace(p))
			if err != nil {
				return s, errors.Errorf("invalid mesh toggle %q", p)
			}
			s.Meshes[i] = b
		}
	}

	return s, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.Wrap(err, "encoding response"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	data, _ := json.Marshal(map[string]string{"error": err.Error()})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
