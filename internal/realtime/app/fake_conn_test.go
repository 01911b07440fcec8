package app

import (
	"context"
	"sync"

	"eventspace_realtime_service/internal/realtime/client"
	"eventspace_realtime_service/internal/realtime/domain"
)

// fakeConn 取代 Protocol Client，直接驅動 handler
type fakeConn struct {
	mu        sync.Mutex
	state     domain.ConnState
	handlers  map[string]client.Handler
	published []publishedFrame
}

type publishedFrame struct {
	destination string
	body        interface{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		state:    domain.StateConnected,
		handlers: make(map[string]client.Handler),
	}
}

func (f *fakeConn) State() domain.ConnState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeConn) setState(s domain.ConnState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = s
}

func (f *fakeConn) Subscribe(destination string, handler client.Handler) (client.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != domain.StateConnected && f.state != domain.StateConnecting {
		return nil, domain.ErrNotConnected
	}
	f.handlers[destination] = handler
	return &fakeSubscription{conn: f, destination: destination}, nil
}

func (f *fakeConn) Publish(destination string, body interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != domain.StateConnected {
		return domain.ErrNotConnected
	}
	f.published = append(f.published, publishedFrame{destination: destination, body: body})
	return nil
}

// deliver 模擬 broker 廣播到 destination
func (f *fakeConn) deliver(destination string, body []byte) {
	f.mu.Lock()
	handler := f.handlers[destination]
	f.mu.Unlock()
	if handler != nil {
		handler(destination, body)
	}
}

func (f *fakeConn) subscribed(destination string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.handlers[destination]
	return ok
}

func (f *fakeConn) publishedFrames() []publishedFrame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]publishedFrame, len(f.published))
	copy(out, f.published)
	return out
}

type fakeSubscription struct {
	conn        *fakeConn
	destination string
}

func (s *fakeSubscription) Destination() string { return s.destination }

func (s *fakeSubscription) Unsubscribe() {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	delete(s.conn.handlers, s.destination)
}

// fakeRealtimeClient 給 SessionContext 測試用
type fakeRealtimeClient struct {
	*fakeConn
	connects int
	closed   bool
}

func (f *fakeRealtimeClient) Connect(ctx context.Context) error {
	f.connects++
	return nil
}

func (f *fakeRealtimeClient) Close() error {
	f.closed = true
	f.setState(domain.StateDisconnected)
	return nil
}
