package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Faultbox/md5skel/internal/engine/model"
	"github.com/Faultbox/md5skel/pkg/skeletal"
)

const (
	writeWait    = 10 * time.Second
	pingPeriod   = 30 * time.Second
	maxControl   = 64 * 1024
	fallbackRate = 24
)

// control is a message sent by a playback client. Absent fields keep their
// current value.
type control struct {
	Seq         int      `json:"seq"`
	Paused      *bool    `json:"paused"`
	Speed       *float64 `json:"speed"`
	Seek        *int     `json:"seek"`
	Interpolate *bool    `json:"interpolate"`
	Bitangent   *string  `json:"bitangent"`
	Skeleton    *bool    `json:"skeleton"`
	Meshes      []bool   `json:"meshes"`
}

type playMessage struct {
	Type   string        `json:"type"`
	Client string        `json:"client"`
	Ack    int           `json:"ack,omitempty"`
	Time   float64       `json:"time,omitempty"`
	Model  *modelInfo    `json:"model,omitempty"`
	Frame  *frameMessage `json:"frame,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// playClient owns the playback state of one websocket connection.
type playClient struct {
	id       uuid.UUID
	conn     *websocket.Conn
	server   *Server
	player   *skeletal.Player
	settings model.Settings
	log      *zap.Logger
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &playClient{
		id:       uuid.New(),
		conn:     conn,
		server:   s,
		player:   skeletal.NewPlayer(s.builder.Animation()),
		settings: s.opts.Settings,
	}
	c.log = s.log.With(zap.String("client", c.id.String()))

	s.register(c)
	defer s.unregister(c)
	defer conn.Close()

	c.log.Info("playback started")
	c.run()
	c.log.Info("playback stopped")
}

// readPump forwards control messages until the connection fails.
func (c *playClient) readPump(controls chan<- control, done chan<- struct{}, stop <-chan struct{}) {
	defer close(done)

	c.conn.SetReadLimit(maxControl)
	c.conn.SetReadDeadline(time.Now().Add(pingPeriod * 2))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingPeriod * 2))
	})

	for {
		var ctl control
		if err := c.conn.ReadJSON(&ctl); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("read failed", zap.Error(err))
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pingPeriod * 2))
		select {
		case controls <- ctl:
		case <-stop:
			return
		}
	}
}

func (c *playClient) run() {
	controls := make(chan control)
	done := make(chan struct{})
	stop := make(chan struct{})
	defer close(stop)
	go c.readPump(controls, done, stop)

	hello := playMessage{Type: "hello", Client: c.id.String(), Model: c.server.modelInfo()}
	if err := c.write(hello); err != nil {
		return
	}
	if err := c.sendFrame(0); err != nil {
		return
	}

	// A clip without frames is a static pose; only control messages
	// produce new frames.
	var tick <-chan time.Time
	if anim := c.server.builder.Animation(); anim != nil && len(anim.Frames) > 0 {
		rate := anim.FrameRate
		if rate <= 0 {
			rate = fallbackRate
		}
		ticker := time.NewTicker(time.Second / time.Duration(rate))
		defer ticker.Stop()
		tick = ticker.C
	}
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	last := time.Now()
	for {
		select {
		case <-done:
			return
		case ctl := <-controls:
			if err := c.apply(ctl); err != nil {
				if err := c.write(playMessage{Type: "error", Client: c.id.String(), Ack: ctl.Seq, Error: err.Error()}); err != nil {
					return
				}
				continue
			}
			if err := c.sendFrame(ctl.Seq); err != nil {
				return
			}
		case now := <-tick:
			c.player.Advance(now.Sub(last))
			last = now
			if c.player.Paused {
				continue
			}
			if err := c.sendFrame(0); err != nil {
				return
			}
		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Debug("ping failed", zap.Error(err))
				return
			}
		}
	}
}

func (c *playClient) apply(ctl control) error {
	s := c.settings
	if ctl.Bitangent != nil {
		mode, err := skeletal.ParseBitangentMode(*ctl.Bitangent)
		if err != nil {
			return err
		}
		s.Bitangent = mode
	}
	if ctl.Interpolate != nil {
		s.Interpolate = *ctl.Interpolate
	}
	if ctl.Skeleton != nil {
		s.Skeleton = *ctl.Skeleton
	}
	if ctl.Meshes != nil {
		s.Meshes = append([]bool(nil), ctl.Meshes...)
	}
	c.settings = s

	if ctl.Paused != nil {
		c.player.Paused = *ctl.Paused
	}
	if ctl.Speed != nil {
		c.player.Speed = *ctl.Speed
	}
	if ctl.Seek != nil {
		c.player.Seek(*ctl.Seek)
	}
	return nil
}

func (c *playClient) sendFrame(ack int) error {
	s := c.settings
	s.Selection = c.player.Selection()

	f, err := c.server.builder.Build(s)
	if err != nil {
		c.log.Error("frame evaluation failed", zap.Error(err))
		return c.write(playMessage{Type: "error", Client: c.id.String(), Ack: ack, Error: err.Error()})
	}
	return c.write(playMessage{
		Type:   "frame",
		Client: c.id.String(),
		Ack:    ack,
		Time:   c.player.Time(),
		Frame:  encodeFrame(f),
	})
}

func (c *playClient) write(msg playMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.log.Debug("write failed", zap.Error(err))
		return err
	}
	return nil
}
