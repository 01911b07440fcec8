package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"eventspace_realtime_service/internal/realtime/domain"
	"eventspace_realtime_service/pkg/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// DefaultReconnectDelay 斷線後固定的重連間隔
const DefaultReconnectDelay = 5 * time.Second

// CredentialProvider 每次撥號時重新取得 bearer token，
// 不做快取，token 換新後重連自然帶新值
type CredentialProvider func() (string, error)

// Events transport 層回呼。OnDrop 之後會排重連，
// OnRejected 表示憑證被拒，重連循環停止
type Events struct {
	OnOpen     func()
	OnFrame    func(data []byte)
	OnDrop     func(err error)
	OnRejected func(err error)
}

// Session 持有唯一一條實體 websocket 連線，
// 處理撥號、斷線重連與關閉
type Session struct {
	socketURL      string
	cred           CredentialProvider
	events         Events
	dialer         *websocket.Dialer
	reconnectDelay time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	timer  *time.Timer
	closed bool
}

// NewSession create Session，reconnectDelay 0 使用預設 5s
func NewSession(socketURL string, cred CredentialProvider, events Events, reconnectDelay time.Duration) *Session {
	if reconnectDelay <= 0 {
		reconnectDelay = DefaultReconnectDelay
	}
	return &Session{
		socketURL:      socketURL,
		cred:           cred,
		events:         events,
		dialer:         websocket.DefaultDialer,
		reconnectDelay: reconnectDelay,
	}
}

// Open 撥號到 broker。憑證被拒直接回傳且不重試，
// 網路因素失敗回傳錯誤但重連循環已排程
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrClosed
	}
	s.mu.Unlock()

	if err := s.dial(ctx); err != nil {
		var connErr *domain.ConnectError
		if errors.As(err, &connErr) && connErr.CredentialRejected {
			if s.events.OnRejected != nil {
				s.events.OnRejected(err)
			}
			return err
		}
		s.scheduleReconnect()
		return err
	}
	return nil
}

// Send write one frame。沒有連線時回傳 ErrNotConnected
func (s *Session) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return domain.ErrNotConnected
	}
	// gorilla 只允許單一 writer，靠 mu 序列化
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Close 關閉實體連線並取消排程中的重連，可重複呼叫
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(time.Second),
		)
		return conn.Close()
	}
	return nil
}

// dial 取得當下憑證後撥號，成功則啟動 read loop 並回呼 OnOpen
func (s *Session) dial(ctx context.Context) error {
	cred, err := s.cred()
	if err != nil {
		return &domain.ConnectError{Cause: err, CredentialRejected: true}
	}

	wsURL, err := authURL(s.socketURL, cred)
	if err != nil {
		return &domain.ConnectError{Cause: err, CredentialRejected: true}
	}

	conn, resp, err := s.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return &domain.ConnectError{
				Cause:              fmt.Errorf("broker returned %s", resp.Status),
				CredentialRejected: true,
			}
		}
		return &domain.ConnectError{Cause: err}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return domain.ErrClosed
	}
	s.conn = conn
	s.mu.Unlock()

	go s.readLoop(conn)

	if s.events.OnOpen != nil {
		s.events.OnOpen()
	}
	return nil
}

// readLoop 順序讀取 frame，frame 到達順序即回呼順序
func (s *Session) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.handleDrop(conn, err)
			return
		}
		if s.events.OnFrame != nil {
			s.events.OnFrame(data)
		}
	}
}

func (s *Session) handleDrop(conn *websocket.Conn, err error) {
	s.mu.Lock()
	// 舊連線的 read loop 殘留錯誤不處理
	if s.closed || s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.mu.Unlock()

	conn.Close()
	if s.events.OnDrop != nil {
		s.events.OnDrop(&domain.TransportDropError{Cause: err})
	}
	s.scheduleReconnect()
}

// scheduleReconnect 固定間隔重撥，不設次數上限。
// broker 長時間不在線會一直重試，呼叫端不想等就自己 Close
func (s *Session) scheduleReconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.timer != nil {
		return
	}
	s.timer = time.AfterFunc(s.reconnectDelay, s.redial)
}

func (s *Session) redial() {
	s.mu.Lock()
	s.timer = nil
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if err := s.dial(context.Background()); err != nil {
		var connErr *domain.ConnectError
		if errors.As(err, &connErr) && connErr.CredentialRejected {
			logger.Log.Error("reconnect rejected, stop retrying", zap.Error(err))
			if s.events.OnRejected != nil {
				s.events.OnRejected(err)
			}
			return
		}
		logger.Log.Warn("reconnect failed", zap.Error(err))
		s.scheduleReconnect()
	}
}

// authURL 將 bearer token 掛在 auth query param，broker 在升級前驗證
func authURL(socketURL, cred string) (string, error) {
	u, err := url.Parse(socketURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("auth", cred)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
