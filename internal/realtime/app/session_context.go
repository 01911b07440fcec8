package app

import (
	"context"
	"errors"
	"sync"

	"eventspace_realtime_service/internal/realtime/client"
	"eventspace_realtime_service/internal/realtime/transport"
	"eventspace_realtime_service/pkg/config"
	"eventspace_realtime_service/pkg/logger"
)

// SessionState session 狀態機: anonymous ↔ authenticated
type SessionState int

const (
	// SessionAnonymous 未登入
	SessionAnonymous SessionState = iota
	// SessionAuthenticated 已登入，連線與通知 channel 存活
	SessionAuthenticated
)

// ErrNotAuthenticated 未登入時要求連線相關操作
var ErrNotAuthenticated = errors.New("not authenticated")

// realtimeClient 是 SessionContext 擁有的 Protocol Client 能力
type realtimeClient interface {
	Conn
	Connect(ctx context.Context) error
	Close() error
}

// 這個變數會在測試時被覆蓋
var newRealtimeClient = func(cfg config.Realtime, cred transport.CredentialProvider, callbacks client.Callbacks) realtimeClient {
	return client.NewClient(cfg.SocketURL, cred, callbacks, cfg.ReconnectDelay)
}

// SessionContext process 層級的登入狀態。
// 擁有唯一一個 Protocol Client，channel 只借用訂閱 handle，
// 整條連線的關閉只能由這裡發動
type SessionContext struct {
	cfg       config.Realtime
	callbacks client.Callbacks

	mu            sync.Mutex
	state         SessionState
	token         string
	client        realtimeClient
	notifications *NotificationChannel
}

// NewSessionContext create SessionContext
func NewSessionContext(cfg config.Realtime, callbacks client.Callbacks) *SessionContext {
	return &SessionContext{
		cfg:       cfg,
		callbacks: callbacks,
		state:     SessionAnonymous,
	}
}

// Login 保存憑證、建連線、開通知 channel。
// 已登入且連線存活時是 no-op，不會開出第二條 socket。
// 換憑證要先 Logout 再 Login，連線上的憑證不原地改
func (s *SessionContext) Login(ctx context.Context, tokenStr string) error {
	s.mu.Lock()
	if s.state == SessionAuthenticated && s.client != nil {
		s.mu.Unlock()
		logger.Log.Warn("login called while already authenticated, keep existing connection")
		return nil
	}

	s.token = tokenStr
	s.state = SessionAuthenticated
	cl := newRealtimeClient(s.cfg, s.Credential, s.callbacks)
	s.client = cl
	notifications := NewNotificationChannel(cl)
	s.notifications = notifications
	s.mu.Unlock()

	if err := cl.Connect(ctx); err != nil {
		// 網路因素時 transport 自己會重連，訂閱先排著；
		// 憑證被拒時訂閱也會失敗，錯誤一併回報
		if subErr := notifications.Open(); subErr != nil {
			return errors.Join(err, subErr)
		}
		return err
	}

	return notifications.Open()
}

// Logout 關通知 channel、關連線、丟掉憑證
func (s *SessionContext) Logout() {
	s.mu.Lock()
	if s.state == SessionAnonymous {
		s.mu.Unlock()
		return
	}
	s.state = SessionAnonymous
	s.token = ""
	cl := s.client
	s.client = nil
	notifications := s.notifications
	s.notifications = nil
	s.mu.Unlock()

	if notifications != nil {
		notifications.Close()
	}
	if cl != nil {
		if err := cl.Close(); err != nil {
			logger.Log.Errorf("close realtime client error:", err)
		}
	}
}

// Credential 給 transport 的 CredentialProvider，
// 每次重連都拿當下的 token
func (s *SessionContext) Credential() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return "", ErrNotAuthenticated
	}
	return s.token, nil
}

// OpenChat 在共用連線上開一個 room 的 ChatChannel
func (s *SessionContext) OpenChat(roomID string) (*ChatChannel, error) {
	s.mu.Lock()
	if s.state != SessionAuthenticated || s.client == nil {
		s.mu.Unlock()
		return nil, ErrNotAuthenticated
	}
	cl := s.client
	s.mu.Unlock()

	ch := NewChatChannel(cl, s.Credential, roomID, s.cfg.HistoryLimit)
	if err := ch.Open(); err != nil {
		return nil, err
	}
	return ch, nil
}

// Notifications 目前 session 的通知 channel，未登入時是 nil
func (s *SessionContext) Notifications() *NotificationChannel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notifications
}

// State current session state
func (s *SessionContext) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsAuthenticated check session is authenticated
func (s *SessionContext) IsAuthenticated() bool {
	return s.State() == SessionAuthenticated
}
