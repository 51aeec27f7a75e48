package realtime

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsReadTimeout  = 120 * time.Second
	wsReadLimit    = 4 << 20
	eventQueueSize = 256
)

// ClientConfig configures the websocket dialer for the speech service.
type ClientConfig struct {
	BootstrapURL string
	RealtimeURL  string
	Model        string
	DialTimeout  time.Duration
}

// Client dials real sessions: mint an ephemeral credential, open the
// websocket, push the session instructions, then stream events.
type Client struct {
	cfg    ClientConfig
	tokens *TokenClient
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 15 * time.Second
	}
	return &Client{
		cfg:    cfg,
		tokens: NewTokenClient(cfg.BootstrapURL, cfg.DialTimeout),
	}
}

func (c *Client) Dial(ctx context.Context, req DialRequest) (Session, error) {
	cred, err := c.tokens.Mint(ctx, MintRequest{
		PatientName:  req.PatientName,
		SystemPrompt: req.SystemPrompt,
		Voice:        req.Voice,
		Mode:         req.Mode,
	})
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+cred.Token)

	url := strings.TrimRight(c.cfg.RealtimeURL, "/")
	if model := strings.TrimSpace(c.cfg.Model); model != "" {
		url += "?model=" + model
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("realtime session negotiation failed (%d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("realtime session negotiation failed: %w", err)
	}

	s := &wsSession{
		conn:   conn,
		events: make(chan ServerEvent, eventQueueSize),
	}
	if err := s.writeJSON(map[string]any{
		"type": "session.update",
		"session": map[string]any{
			"instructions": req.SystemPrompt,
			"voice":        req.Voice,
			"input_audio_transcription": map[string]any{
				"enabled": true,
			},
		},
	}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("realtime session setup failed: %w", err)
	}

	go s.readLoop()
	return s, nil
}

type wsSession struct {
	conn   *websocket.Conn
	events chan ServerEvent

	writeMu sync.Mutex
	closeMu sync.Mutex
	closed  bool
}

func (s *wsSession) Events() <-chan ServerEvent {
	return s.events
}

func (s *wsSession) CreateResponse(_ context.Context) error {
	return s.writeJSON(map[string]any{"type": "response.create"})
}

func (s *wsSession) SetMicEnabled(_ context.Context, enabled bool) error {
	return s.writeJSON(map[string]any{
		"type": "session.update",
		"session": map[string]any{
			"input_audio_enabled": enabled,
		},
	})
}

func (s *wsSession) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

func (s *wsSession) writeJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return s.conn.WriteJSON(v)
}

func (s *wsSession) readLoop() {
	defer close(s.events)
	s.conn.SetReadLimit(wsReadLimit)
	for {
		_ = s.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			// Transport closed; closing the event channel lets the engine
			// run its implicit end-call path.
			return
		}
		evt, err := ParseServerEvent(raw)
		if err != nil {
			// Malformed payloads are dropped, never fatal.
			log.Printf("realtime: dropping malformed event: %v", err)
			continue
		}
		if evt.Kind == KindUnknown {
			continue
		}
		s.events <- evt
	}
}
