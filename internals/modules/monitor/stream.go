package monitor

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const streamWriteTimeout = 5 * time.Second

var streamUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	},
}

// Streamer pushes the full snapshot to WebSocket clients on every change,
// at most once per tick, and at least once per tick as a heartbeat.
type Streamer struct {
	registry *Registry
	tick     time.Duration
	logger   *zerolog.Logger
}

func NewStreamer(registry *Registry, tick time.Duration, logger *zerolog.Logger) *Streamer {
	if tick <= 0 {
		tick = 5 * time.Second
	}
	return &Streamer{registry: registry, tick: tick, logger: logger}
}

func (s *Streamer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.serve(conn)
}

func (s *Streamer) serve(conn *websocket.Conn) {
	defer conn.Close()

	changes, unsubscribe := s.registry.Subscribe()
	defer unsubscribe()

	if err := s.push(conn, "snapshot"); err != nil {
		return
	}

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	dirty := false
	for {
		select {
		case <-changes:
			dirty = true

		case <-ticker.C:
			kind := "heartbeat"
			if dirty {
				kind = "snapshot"
			}
			dirty = false
			if err := s.push(conn, kind); err != nil {
				s.logger.Debug().Err(err).Msg("stream client gone")
				return
			}

		case <-done:
			return
		}
	}
}

func (s *Streamer) push(conn *websocket.Conn, kind string) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return conn.WriteJSON(StreamMessage{
		Type:     kind,
		At:       s.registry.now(),
		Services: s.registry.Snapshot(),
	})
}
