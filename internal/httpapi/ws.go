package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/carevox/carevox/internal/protocol"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsReadTimeout  = 120 * time.Second
	wsReadLimit    = 1 << 20
)

// handleCallWS attaches a UI connection to a call. Outbound writes stay
// single-threaded: one writer goroutine drains the subscription channel.
// Inbound traffic is limited to control messages; the browser never
// streams audio through this socket.
func (s *Server) handleCallWS(w http.ResponseWriter, r *http.Request) {
	callID := strings.TrimSpace(r.URL.Query().Get("call_id"))
	if callID == "" {
		respondError(w, http.StatusBadRequest, "missing_call_id", "query parameter call_id is required")
		return
	}

	lc := s.lookupLive(callID)
	if lc == nil {
		respondError(w, http.StatusNotFound, "call_not_found", "no live call with that id")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.CallEvents.WithLabelValues("ws_connected").Inc()

	sub := lc.subscribe()
	defer lc.unsubscribe(sub)

	done := make(chan struct{})

	go func() {
		defer close(done)
		for _, msg := range lc.snapshotMessages() {
			if !s.writeWS(conn, msg) {
				return
			}
		}
		for msg := range sub {
			if !s.writeWS(conn, msg) {
				return
			}
		}
	}()

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		msg, err := protocol.ParseClientMessage(data)
		if err != nil {
			lc.broadcast(protocol.NewErrorEvent(callID, "invalid_client_message", err.Error(), false))
			continue
		}
		s.metrics.WSMessages.WithLabelValues("inbound", string(msg.Type)).Inc()

		// Attached connections may only end their call; starting calls
		// happens over REST.
		if msg.Action == protocol.ActionEndCall && msg.CallID == callID {
			reason := msg.Reason
			if reason == "" {
				reason = "ended from UI"
			}
			s.endLiveCall(callID, reason)
		}
	}

	lc.unsubscribe(sub)
	close(sub)
	<-done
	s.metrics.CallEvents.WithLabelValues("ws_disconnected").Inc()
}

func (s *Server) writeWS(conn *websocket.Conn, msg any) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		return false
	}
	if t, ok := messageTypeOf(msg); ok {
		s.metrics.WSMessages.WithLabelValues("outbound", string(t)).Inc()
	}
	return true
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.ClientControl:
		return m.Type, true
	case protocol.StatusUpdate:
		return m.Type, true
	case protocol.TranscriptEntryMsg:
		return m.Type, true
	case protocol.LatencyUpdate:
		return m.Type, true
	case protocol.FlowProgress:
		return m.Type, true
	case protocol.CallSummaryMsg:
		return m.Type, true
	case protocol.SystemEvent:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
