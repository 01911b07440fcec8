package domain

// ChatMessage 表示一則聊天訊息，與 broker 的 JSON 形狀一致
type ChatMessage struct {
	SenderID   int    `json:"senderId"`
	SenderName string `json:"senderName"`
	Content    string `json:"content"`
}

// Notification 表示一則使用者通知。
// Timestamp 由收到的一端補上，不信任 wire 上的值
type Notification struct {
	Message   string `json:"message"`
	Link      string `json:"link"`
	Timestamp int64  `json:"timestamp,omitempty"`
}
