package realtime

import (
	"context"
	"errors"
	"sync"
)

// MockSession is a scripted in-memory session for tests and the call
// simulator. Pushed events appear on Events(); every control message is
// recorded for assertions.
type MockSession struct {
	mu        sync.Mutex
	events    chan ServerEvent
	micStates []bool
	responses int
	closed    bool
	streamEnd bool
}

func NewMockSession() *MockSession {
	return &MockSession{events: make(chan ServerEvent, eventQueueSize)}
}

func (m *MockSession) Events() <-chan ServerEvent { return m.events }

func (m *MockSession) CreateResponse(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("session closed")
	}
	m.responses++
	return nil
}

func (m *MockSession) SetMicEnabled(_ context.Context, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.micStates = append(m.micStates, enabled)
	return nil
}

func (m *MockSession) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if !m.streamEnd {
		m.streamEnd = true
		close(m.events)
	}
	return nil
}

// Push delivers one server event to the consumer.
func (m *MockSession) Push(evt ServerEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.streamEnd {
		return
	}
	m.events <- evt
}

// EndStream simulates the transport dropping without an explicit close.
func (m *MockSession) EndStream() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.streamEnd {
		return
	}
	m.streamEnd = true
	close(m.events)
}

// ResponseRequests reports how many "produce a response" messages were
// sent.
func (m *MockSession) ResponseRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.responses
}

// MicStates returns the ordered mic-gate toggles observed.
func (m *MockSession) MicStates() []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]bool, len(m.micStates))
	copy(out, m.micStates)
	return out
}

// Closed reports whether Close was called.
func (m *MockSession) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockDialer hands out a prepared session, or fails.
type MockDialer struct {
	Session *MockSession
	Err     error

	mu      sync.Mutex
	lastReq DialRequest
}

func (d *MockDialer) Dial(_ context.Context, req DialRequest) (Session, error) {
	d.mu.Lock()
	d.lastReq = req
	d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	return d.Session, nil
}

// LastRequest returns the most recent dial request.
func (d *MockDialer) LastRequest() DialRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastReq
}
