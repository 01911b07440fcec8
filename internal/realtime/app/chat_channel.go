package app

import (
	"encoding/json"
	"strings"
	"sync"

	"eventspace_realtime_service/internal/realtime/client"
	"eventspace_realtime_service/internal/realtime/domain"
	"eventspace_realtime_service/internal/realtime/transport"
	"eventspace_realtime_service/pkg/logger"
	"eventspace_realtime_service/pkg/token"

	"go.uber.org/zap"
)

// 拿不到顯示名稱時的 fallback
const defaultSenderName = "Utilizador"

// ChatChannel 一個 booking room 的訊息流與發送路徑。
// 訊息只在 broker 廣播回來時進入本地序列，send 不做樂觀附加，
// 發送者要等 echo 回來才看得到自己的訊息
type ChatChannel struct {
	conn         Conn
	cred         transport.CredentialProvider
	roomID       string
	historyLimit int

	mu        sync.Mutex
	messages  []domain.ChatMessage
	sub       client.Subscription
	closed    bool
	onMessage func(domain.ChatMessage)
}

// NewChatChannel create ChatChannel。historyLimit 是本地保留的訊息上限，
// 0 表示不限制，超過上限淘汰最舊的
func NewChatChannel(conn Conn, cred transport.CredentialProvider, roomID string, historyLimit int) *ChatChannel {
	return &ChatChannel{
		conn:         conn,
		cred:         cred,
		roomID:       roomID,
		historyLimit: historyLimit,
	}
}

// SetOnMessage 新訊息到達時通知 UI，要在 Open 之前設定
func (ch *ChatChannel) SetOnMessage(fn func(domain.ChatMessage)) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.onMessage = fn
}

// Open 訂閱 room 的 topic
func (ch *ChatChannel) Open() error {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return domain.ErrClosed
	}
	if ch.sub != nil {
		ch.mu.Unlock()
		return nil
	}
	ch.mu.Unlock()

	sub, err := ch.conn.Subscribe(domain.ChatTopic(ch.roomID), ch.handleFrame)
	if err != nil {
		return err
	}

	ch.mu.Lock()
	ch.sub = sub
	ch.mu.Unlock()
	return nil
}

// handleFrame broker 廣播進來的訊息，按到達順序附加
func (ch *ChatChannel) handleFrame(destination string, body []byte) {
	var msg domain.ChatMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		// 壞 frame 丟棄，不影響 channel 和連線
		decodeErr := &domain.DecodeError{Destination: destination, Cause: err}
		logger.Log.Error("drop chat frame", zap.String("room", ch.roomID), zap.Error(decodeErr))
		return
	}

	ch.mu.Lock()
	ch.messages = append(ch.messages, msg)
	if ch.historyLimit > 0 && len(ch.messages) > ch.historyLimit {
		ch.messages = ch.messages[len(ch.messages)-ch.historyLimit:]
	}
	onMessage := ch.onMessage
	ch.mu.Unlock()

	if onMessage != nil {
		onMessage(msg)
	}
}

// Send 發布訊息到 room。內容 trim 後為空、或還沒連上 broker 都回傳錯誤，
// 不會把訊息悄悄排進任何 queue
func (ch *ChatChannel) Send(content string) error {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return domain.ErrClosed
	}
	ch.mu.Unlock()

	content = strings.TrimSpace(content)
	if content == "" {
		return domain.ErrEmptyContent
	}

	cred, err := ch.cred()
	if err != nil {
		return err
	}

	// token payload 只當顯示欄位用，授權由 broker 自己驗
	claims, err := token.DecodeDisplayClaims(cred)
	if err != nil {
		return err
	}
	senderName := claims.FirstName
	if senderName == "" {
		senderName = defaultSenderName
	}

	msg := domain.ChatMessage{
		SenderID:   claims.UserID,
		SenderName: senderName,
		Content:    content,
	}
	return ch.conn.Publish(domain.ChatSendDestination(ch.roomID), msg)
}

// Messages 目前的本地訊息序列快照
func (ch *ChatChannel) Messages() []domain.ChatMessage {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	out := make([]domain.ChatMessage, len(ch.messages))
	copy(out, ch.messages)
	return out
}

// RoomID the booking room id
func (ch *ChatChannel) RoomID() string {
	return ch.roomID
}

// Close 取消訂閱，可重複呼叫，不影響共用連線上的其他 channel
func (ch *ChatChannel) Close() {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return
	}
	ch.closed = true
	sub := ch.sub
	ch.sub = nil
	ch.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}
