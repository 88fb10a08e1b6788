package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Faultbox/md5skel/internal/engine/model"
	"github.com/Faultbox/md5skel/pkg/formats"
	"github.com/Faultbox/md5skel/pkg/skeletal"
)

const quadMesh = `MD5Version 10
joints {
	"origin"	-1 ( 0 0 0 ) ( 0 0 0 )
	"lift"	0 ( 0 0 0 ) ( 0 0 0 )
}
mesh {
	shader "models/test/quad"
	vert 0 ( 0 0 ) 0 1
	vert 1 ( 1 0 ) 1 1
	vert 2 ( 1 1 ) 2 1
	vert 3 ( 0 1 ) 3 1
	tri 0 0 2 1
	tri 1 0 3 2
	weight 0 0 1.0 ( 0 0 0 )
	weight 1 0 1.0 ( 1 0 0 )
	weight 2 1 1.0 ( 1 1 0 )
	weight 3 1 1.0 ( 0 1 0 )
}
`

const liftAnim = `MD5Version 10
numFrames 2
numJoints 2
frameRate 24
numAnimatedComponents 1
hierarchy {
	"origin"	-1 0 0
	"lift"	0 4 0
}
baseframe {
	( 0 0 0 ) ( 0 0 0 )
	( 0 0 0 ) ( 0 0 0 )
}
frame 0 {
	0
}
frame 1 {
	2
}
`

type mapLoader map[string][]byte

func (m mapLoader) Load(path string) ([]byte, error) {
	if data, ok := m[path]; ok {
		return data, nil
	}
	return nil, errors.New("not found")
}

func newTestServer(t *testing.T, opts Options) (*Server, *httptest.Server) {
	t.Helper()
	m, err := formats.ParseMD5Mesh([]byte(quadMesh))
	if err != nil {
		t.Fatalf("ParseMD5Mesh failed: %v", err)
	}
	a, err := formats.ParseMD5Anim([]byte(liftAnim))
	if err != nil {
		t.Fatalf("ParseMD5Anim failed: %v", err)
	}
	b, err := model.NewBuilder(m, a)
	if err != nil {
		t.Fatalf("NewBuilder failed: %v", err)
	}

	s := New(b, opts)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func getJSON(t *testing.T, url string, wantStatus int, v interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s: status %d, want %d", url, resp.StatusCode, wantStatus)
	}
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("GET %s: decode failed: %v", url, err)
		}
	}
}

func TestModel(t *testing.T) {
	_, ts := newTestServer(t, Options{Settings: model.DefaultSettings()})

	var info modelInfo
	getJSON(t, ts.URL+"/api/model", http.StatusOK, &info)

	if len(info.Joints) != 2 || info.Joints[1].Name != "lift" || info.Joints[1].Parent != 0 {
		t.Errorf("unexpected joints %+v", info.Joints)
	}
	if len(info.Meshes) != 1 || info.Meshes[0].Vertices != 4 || info.Meshes[0].Triangles != 2 {
		t.Errorf("unexpected meshes %+v", info.Meshes)
	}
	if !info.Animated || info.Frames != 2 || info.FrameRate != 24 {
		t.Errorf("unexpected animation info %+v", info)
	}
	if info.Meshes[0].Texture != nil {
		t.Error("expected no texture without a loader")
	}
}

func TestFrames(t *testing.T) {
	_, ts := newTestServer(t, Options{Settings: model.DefaultSettings()})

	tests := []struct {
		path     string
		animated bool
		frame    float64
		z        float32
	}{
		{"/api/bind", false, 0, 0},
		{"/api/frame/0", true, 0, 0},
		{"/api/frame/1", true, 1, 2},
		{"/api/frame/0.5", true, 0.5, 1},
		{"/api/frame/0.5?interpolate=false", true, 0.5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var msg frameMessage
			getJSON(t, ts.URL+tt.path, http.StatusOK, &msg)

			if msg.Animated != tt.animated || math.Abs(msg.Frame-tt.frame) > 1e-9 {
				t.Errorf("frame = %v/%v, want %v/%v", msg.Frame, msg.Animated, tt.frame, tt.animated)
			}
			if len(msg.Meshes) != 1 || len(msg.Meshes[0].Positions) != 12 || len(msg.Meshes[0].Indices) != 6 {
				t.Fatalf("unexpected mesh payload %+v", msg.Meshes)
			}
			if z := msg.Meshes[0].Positions[8]; math.Abs(float64(z-tt.z)) > 1e-5 {
				t.Errorf("vertex 2 z = %v, want %v", z, tt.z)
			}
		})
	}
}

func TestFrames_Errors(t *testing.T) {
	_, ts := newTestServer(t, Options{Settings: model.DefaultSettings()})

	tests := []struct {
		path   string
		status int
	}{
		{"/api/frame/9", http.StatusNotFound},
		{"/api/frame/-1", http.StatusNotFound},
		{"/api/frame/abc", http.StatusBadRequest},
		{"/api/frame/7.5", http.StatusBadRequest},
		{"/api/bind?normals=bogus", http.StatusBadRequest},
		{"/api/bind?bitangent=guess", http.StatusBadRequest},
		{"/api/texture/0", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var body map[string]string
			getJSON(t, ts.URL+tt.path, tt.status, &body)
			if body["error"] == "" {
				t.Error("expected error message")
			}
		})
	}
}

func TestBind_Overlays(t *testing.T) {
	_, ts := newTestServer(t, Options{Settings: model.DefaultSettings()})

	var msg frameMessage
	getJSON(t, ts.URL+"/api/bind?skeleton=true&points=1&normals=tri,vert&scale=1", http.StatusOK, &msg)

	if len(msg.Skeleton) != 6 || len(msg.Points) != 12 || len(msg.TriangleNormals) != 12 || len(msg.VertexNormals) != 24 {
		t.Errorf("unexpected overlay sizes %d/%d/%d/%d",
			len(msg.Skeleton), len(msg.Points), len(msg.TriangleNormals), len(msg.VertexNormals))
	}
	if msg.Max != [3]float32{1, 1, 0} {
		t.Errorf("unexpected bounds max %v", msg.Max)
	}

	getJSON(t, ts.URL+"/api/bind?meshes=0", http.StatusOK, &msg)
	if len(msg.Meshes) != 0 {
		t.Errorf("expected disabled mesh, got %d meshes", len(msg.Meshes))
	}
}

func TestTexture(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	loader := mapLoader{"models/test/quad_d.png": buf.Bytes()}

	_, ts := newTestServer(t, Options{Settings: model.DefaultSettings(), Textures: loader})

	var info modelInfo
	getJSON(t, ts.URL+"/api/model", http.StatusOK, &info)
	if tex := info.Meshes[0].Texture; tex == nil || tex.Path != "models/test/quad_d.png" || tex.Width != 2 {
		t.Errorf("unexpected texture info %+v", tex)
	}

	resp, err := http.Get(ts.URL + "/api/texture/0")
	if err != nil {
		t.Fatalf("GET texture failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected response %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	decoded, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("failed to decode served texture: %v", err)
	}
	if decoded.Bounds().Dx() != 2 {
		t.Errorf("unexpected width %d", decoded.Bounds().Dx())
	}

	getJSON(t, ts.URL+"/api/texture/0?type=s", http.StatusNotFound, nil)
	getJSON(t, ts.URL+"/api/texture/3", http.StatusNotFound, nil)
}

func TestApplyQuery(t *testing.T) {
	base := model.DefaultSettings()
	base.Meshes = []bool{true}

	s, err := applyQuery(base, url.Values{
		"skeleton":  {"true"},
		"normals":   {"vert"},
		"bitangent": {"cross"},
		"meshes":    {"1,0"},
	})
	if err != nil {
		t.Fatalf("applyQuery failed: %v", err)
	}
	if !s.Skeleton || s.TriangleNormals || !s.VertexNormals || s.Bitangent != skeletal.BitangentCross {
		t.Errorf("unexpected settings %+v", s)
	}
	if len(s.Meshes) != 2 || s.Meshes[1] {
		t.Errorf("unexpected mesh toggles %v", s.Meshes)
	}
	if len(base.Meshes) != 1 || base.Skeleton {
		t.Error("base settings were modified")
	}

	for _, q := range []url.Values{
		{"skeleton": {"maybe"}},
		{"scale": {"-1"}},
		{"meshes": {"1,x"}},
	} {
		if _, err := applyQuery(base, q); err == nil {
			t.Errorf("expected error for %v", q)
		}
	}
}

func readPlay(t *testing.T, conn *websocket.Conn) playMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg playMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	return msg
}

func TestPlay(t *testing.T) {
	s, ts := newTestServer(t, Options{Settings: model.DefaultSettings()})

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/play"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	hello := readPlay(t, conn)
	if hello.Type != "hello" || hello.Client == "" || hello.Model == nil || hello.Model.Frames != 2 {
		t.Fatalf("unexpected hello %+v", hello)
	}

	first := readPlay(t, conn)
	if first.Type != "frame" || first.Frame == nil || first.Client != hello.Client {
		t.Fatalf("unexpected first frame %+v", first)
	}
	if n := s.Clients(); n != 1 {
		t.Errorf("expected 1 client, got %d", n)
	}

	paused, seek := true, 1
	if err := conn.WriteJSON(control{Seq: 7, Paused: &paused, Seek: &seek}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	// Frames produced by the ticker may arrive before the acknowledgement.
	var ack playMessage
	for i := 0; i < 100; i++ {
		ack = readPlay(t, conn)
		if ack.Ack == 7 {
			break
		}
	}
	if ack.Ack != 7 || ack.Type != "frame" {
		t.Fatalf("no acknowledgement, last message %+v", ack)
	}
	if math.Abs(ack.Frame.Frame-1) > 1e-9 || !ack.Frame.Animated {
		t.Errorf("expected frame 1, got %v", ack.Frame.Frame)
	}

	bad := "sideways"
	if err := conn.WriteJSON(control{Seq: 8, Bitangent: &bad}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	if msg := readPlay(t, conn); msg.Type != "error" || msg.Ack != 8 {
		t.Errorf("expected error acknowledgement, got %+v", msg)
	}
}
