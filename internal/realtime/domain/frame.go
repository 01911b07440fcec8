package domain

import (
	"encoding/json"
	"strings"
)

// FrameType websocket frame type
type FrameType string

const (
	// FrameConnected broker 握手完成後送出的第一個 frame
	FrameConnected FrameType = "connected"
	// FrameSubscribe client 訂閱 destination
	FrameSubscribe FrameType = "subscribe"
	// FrameUnsubscribe client 取消訂閱 destination
	FrameUnsubscribe FrameType = "unsubscribe"
	// FrameSend client 發布訊息到 destination
	FrameSend FrameType = "send"
	// FrameMessage broker 廣播給訂閱者的訊息
	FrameMessage FrameType = "message"
	// FrameError broker 回報協議層錯誤，連線視為終止
	FrameError FrameType = "error"
)

// Frame 單一訊息單位，destination 決定路由
type Frame struct {
	Type        FrameType       `json:"type"`
	Destination string          `json:"destination,omitempty"`
	Body        json.RawMessage `json:"body,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// destination 命名約定，與 broker 對齊
const (
	chatTopicPrefix  = "topic/chat/"
	chatSendPrefix   = "app/chat.sendMessage/"
	notificationDest = "user/topic/notifications"
)

// ChatTopic room 的訂閱 destination
func ChatTopic(roomID string) string {
	return chatTopicPrefix + roomID
}

// ChatSendDestination room 的發送 destination
func ChatSendDestination(roomID string) string {
	return chatSendPrefix + roomID
}

// NotificationTopic 目前使用者的通知 destination，
// broker 從連線的身分解析實際對象
func NotificationTopic() string {
	return notificationDest
}

// RoomFromChatTopic 從訂閱 destination 取回 room id
func RoomFromChatTopic(destination string) (string, bool) {
	if !strings.HasPrefix(destination, chatTopicPrefix) {
		return "", false
	}
	return destination[len(chatTopicPrefix):], true
}

// RoomFromChatSend 從發送 destination 取回 room id
func RoomFromChatSend(destination string) (string, bool) {
	if !strings.HasPrefix(destination, chatSendPrefix) {
		return "", false
	}
	return destination[len(chatSendPrefix):], true
}

// IsNotificationTopic check destination is the user notification topic
func IsNotificationTopic(destination string) bool {
	return destination == notificationDest
}
