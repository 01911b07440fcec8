package app

import (
	"encoding/json"
	"sync"
	"time"

	"eventspace_realtime_service/internal/realtime/client"
	"eventspace_realtime_service/internal/realtime/domain"
	"eventspace_realtime_service/pkg/logger"

	"go.uber.org/zap"
)

// NotificationChannel 每個登入 session 一個的通知流。
// feed 新的在前，未讀數到達就加一，開著通知列表也一樣加
type NotificationChannel struct {
	conn Conn

	mu       sync.Mutex
	feed     []domain.Notification
	unread   int
	sub      client.Subscription
	closed   bool
	onNotify func(domain.Notification)

	// 測試時覆蓋
	now func() time.Time
}

// NewNotificationChannel create NotificationChannel
func NewNotificationChannel(conn Conn) *NotificationChannel {
	return &NotificationChannel{
		conn: conn,
		now:  time.Now,
	}
}

// SetOnNotify 新通知到達時通知 UI，要在 Open 之前設定
func (n *NotificationChannel) SetOnNotify(fn func(domain.Notification)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onNotify = fn
}

// Open 訂閱自己的通知 topic，對象由 broker 從連線身分解析
func (n *NotificationChannel) Open() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return domain.ErrClosed
	}
	if n.sub != nil {
		n.mu.Unlock()
		return nil
	}
	n.mu.Unlock()

	sub, err := n.conn.Subscribe(domain.NotificationTopic(), n.handleFrame)
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.sub = sub
	n.mu.Unlock()
	return nil
}

func (n *NotificationChannel) handleFrame(destination string, body []byte) {
	var notification domain.Notification
	if err := json.Unmarshal(body, &notification); err != nil {
		decodeErr := &domain.DecodeError{Destination: destination, Cause: err}
		logger.Log.Error("drop notification frame", zap.Error(decodeErr))
		return
	}

	n.mu.Lock()
	// timestamp 由收到的一端補上，不信任 wire 上的值
	notification.Timestamp = n.now().UnixMilli()
	n.feed = append([]domain.Notification{notification}, n.feed...)
	n.unread++
	onNotify := n.onNotify
	n.mu.Unlock()

	if onNotify != nil {
		onNotify(notification)
	}
}

// Notifications 目前 feed 的快照，新的在前
func (n *NotificationChannel) Notifications() []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.Notification, len(n.feed))
	copy(out, n.feed)
	return out
}

// UnreadCount current unread counter
func (n *NotificationChannel) UnreadCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.unread
}

// MarkAsRead 未讀數歸零，feed 保留
func (n *NotificationChannel) MarkAsRead() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.unread = 0
}

// Clear 清空 feed 並歸零未讀數
func (n *NotificationChannel) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.feed = nil
	n.unread = 0
}

// Close 取消訂閱並重置狀態，可重複呼叫
func (n *NotificationChannel) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	sub := n.sub
	n.sub = nil
	n.feed = nil
	n.unread = 0
	n.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}
