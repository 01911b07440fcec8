package client

import "sync/atomic"

// Subscription 訂閱 handle。Unsubscribe 之後 handler 保證不再被呼叫，
// 即使 frame 已經在路上
type Subscription interface {
	Destination() string
	Unsubscribe()
}

type subscription struct {
	destination string
	handler     Handler
	client      *Client
	active      int32
}

func newSubscription(c *Client, destination string, handler Handler) *subscription {
	return &subscription{
		destination: destination,
		handler:     handler,
		client:      c,
		active:      1,
	}
}

// Destination the destination this handle is bound to
func (s *subscription) Destination() string {
	return s.destination
}

// Unsubscribe 註銷 handler，可重複呼叫
func (s *subscription) Unsubscribe() {
	if !s.deactivate() {
		return
	}
	s.client.unsubscribe(s)
}

// deactivate 第一次呼叫回傳 true
func (s *subscription) deactivate() bool {
	return atomic.CompareAndSwapInt32(&s.active, 1, 0)
}

func (s *subscription) isActive() bool {
	return atomic.LoadInt32(&s.active) == 1
}
