package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"eventspace_realtime_service/internal/realtime/domain"
	"eventspace_realtime_service/internal/realtime/transport"
	"eventspace_realtime_service/pkg/logger"

	"go.uber.org/zap"
)

// Handler 收到指定 destination 的 frame body 時被呼叫。
// 同一個 destination 的呼叫順序等於 broker 的發送順序
type Handler func(destination string, body []byte)

// Callbacks 連線生命週期回呼，讓 channel 層反映連線狀態
type Callbacks struct {
	OnConnect    func()
	OnDisconnect func(err error)
	OnError      func(err error)
}

type transportSession interface {
	Open(ctx context.Context) error
	Send(data []byte) error
	Close() error
}

// 這個變數會在測試時被覆蓋
var newTransportSession = func(socketURL string, cred transport.CredentialProvider, events transport.Events, reconnectDelay time.Duration) transportSession {
	return transport.NewSession(socketURL, cred, events, reconnectDelay)
}

// Client 在 transport session 之上做 frame 編解與訂閱多工。
// 狀態機: disconnected → connecting → connected → (error | disconnected)，
// 斷線重連期間回到 connecting
type Client struct {
	socketURL      string
	cred           transport.CredentialProvider
	callbacks      Callbacks
	reconnectDelay time.Duration

	mu      sync.Mutex
	state   domain.ConnState
	session transportSession
	subs    map[string]*subscription
	closed  bool
}

// NewClient create Client，reconnectDelay 0 使用 transport 預設
func NewClient(socketURL string, cred transport.CredentialProvider, callbacks Callbacks, reconnectDelay time.Duration) *Client {
	return &Client{
		socketURL:      socketURL,
		cred:           cred,
		callbacks:      callbacks,
		reconnectDelay: reconnectDelay,
		state:          domain.StateDisconnected,
		subs:           make(map[string]*subscription),
	}
}

// Connect 建立連線。已在連線中或已連上時是 no-op，
// 防止重複呼叫開出第二條 socket
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrClosed
	}
	if c.state == domain.StateConnecting || c.state == domain.StateConnected {
		c.mu.Unlock()
		return nil
	}
	c.state = domain.StateConnecting
	session := newTransportSession(c.socketURL, c.cred, transport.Events{
		OnOpen:     c.handleOpen,
		OnFrame:    c.handleFrame,
		OnDrop:     c.handleDrop,
		OnRejected: c.handleRejected,
	}, c.reconnectDelay)
	c.session = session
	c.mu.Unlock()

	return session.Open(ctx)
}

// State current connection state
func (c *Client) State() domain.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe 註冊 destination 的 handler。同一個 destination
// 再訂閱會換掉舊 handler，一個 frame 只會觸發一次。
// connecting 期間先排隊，connected 後統一送出 subscribe frame
func (c *Client) Subscribe(destination string, handler Handler) (Subscription, error) {
	if handler == nil {
		return nil, errors.New("subscribe handler is nil")
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, domain.ErrClosed
	}
	if c.state != domain.StateConnected && c.state != domain.StateConnecting {
		c.mu.Unlock()
		return nil, domain.ErrNotConnected
	}

	if old, ok := c.subs[destination]; ok {
		old.deactivate()
	}
	sub := newSubscription(c, destination, handler)
	c.subs[destination] = sub

	connected := c.state == domain.StateConnected
	session := c.session
	c.mu.Unlock()

	if connected {
		c.sendFrame(session, domain.Frame{Type: domain.FrameSubscribe, Destination: destination})
	}
	return sub, nil
}

// Publish 發布訊息，fire-and-forget。
// 非 connected 狀態回傳 ErrNotConnected，不會寫進 transport
func (c *Client) Publish(destination string, body interface{}) error {
	c.mu.Lock()
	if c.state != domain.StateConnected {
		c.mu.Unlock()
		return domain.ErrNotConnected
	}
	session := c.session
	c.mu.Unlock()

	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	data, err := json.Marshal(domain.Frame{
		Type:        domain.FrameSend,
		Destination: destination,
		Body:        raw,
	})
	if err != nil {
		return err
	}
	return session.Send(data)
}

// Close 終態。關閉 transport、註銷所有訂閱，可重複呼叫
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.state = domain.StateDisconnected
	session := c.session
	c.session = nil
	for _, sub := range c.subs {
		sub.deactivate()
	}
	c.subs = make(map[string]*subscription)
	c.mu.Unlock()

	var err error
	if session != nil {
		err = session.Close()
	}
	if c.callbacks.OnDisconnect != nil {
		c.callbacks.OnDisconnect(nil)
	}
	return err
}

// handleOpen transport 撥通了，等 broker 的 connected frame
// 才算握手完成，狀態先留在 connecting
func (c *Client) handleOpen() {
	logger.Log.Debug("transport open, waiting broker handshake")
}

// handleFrame 由 transport read loop 順序呼叫，
// 到達順序 = handler 呼叫順序
func (c *Client) handleFrame(data []byte) {
	var frame domain.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		logger.Log.Error("drop malformed frame", zap.Error(err))
		return
	}

	switch frame.Type {
	case domain.FrameConnected:
		c.handleConnected()

	case domain.FrameMessage:
		c.dispatch(frame)

	case domain.FrameError:
		c.handleBrokerError(frame)

	default:
		logger.Log.Warn("unknown frame type", zap.String("type", string(frame.Type)))
	}
}

func (c *Client) handleConnected() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state = domain.StateConnected
	session := c.session
	subs := make([]*subscription, 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	// 重連後由 client 統一重放訂閱，channel 不需要重新 mount。
	// broker 在 connected 與 subscribe 之間發出的 frame 會漏掉，
	// 這是已知限制
	for _, sub := range subs {
		c.sendFrame(session, domain.Frame{Type: domain.FrameSubscribe, Destination: sub.destination})
	}

	if c.callbacks.OnConnect != nil {
		c.callbacks.OnConnect()
	}
}

func (c *Client) dispatch(frame domain.Frame) {
	c.mu.Lock()
	sub := c.subs[frame.Destination]
	c.mu.Unlock()

	// 取消訂閱後 in-flight frame 不再觸發 handler
	if sub == nil || !sub.isActive() {
		return
	}
	sub.handler(frame.Destination, frame.Body)
}

// handleBrokerError broker 協議層拒絕，等同 STOMP ERROR frame。
// 進入終態 error，不自動重連
func (c *Client) handleBrokerError(frame domain.Frame) {
	logger.Log.Error("broker error frame", zap.String("error", frame.Error))

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state = domain.StateError
	session := c.session
	c.session = nil
	c.mu.Unlock()

	if session != nil {
		session.Close()
	}
	if c.callbacks.OnError != nil {
		c.callbacks.OnError(errors.New(frame.Error))
	}
}

// handleDrop 連線掉了，transport 已排重連，狀態回到 connecting
func (c *Client) handleDrop(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state = domain.StateConnecting
	c.mu.Unlock()

	if c.callbacks.OnDisconnect != nil {
		c.callbacks.OnDisconnect(err)
	}
}

// handleRejected 憑證被拒，終態 error
func (c *Client) handleRejected(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state = domain.StateError
	c.mu.Unlock()

	if c.callbacks.OnError != nil {
		c.callbacks.OnError(err)
	}
}

// unsubscribe called from Subscription.Unsubscribe
func (c *Client) unsubscribe(sub *subscription) {
	c.mu.Lock()
	if cur, ok := c.subs[sub.destination]; ok && cur == sub {
		delete(c.subs, sub.destination)
	}
	connected := c.state == domain.StateConnected
	session := c.session
	c.mu.Unlock()

	if connected && session != nil {
		c.sendFrame(session, domain.Frame{Type: domain.FrameUnsubscribe, Destination: sub.destination})
	}
}

func (c *Client) sendFrame(session transportSession, frame domain.Frame) {
	if session == nil {
		return
	}
	data, err := json.Marshal(frame)
	if err != nil {
		logger.Log.Errorf("marshal frame error:", err)
		return
	}
	if err := session.Send(data); err != nil {
		logger.Log.Errorf("send frame error:", err)
	}
}
