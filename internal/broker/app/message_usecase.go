package app

import (
	"context"
	"strings"

	"eventspace_realtime_service/internal/broker/repository"
	rtdomain "eventspace_realtime_service/internal/realtime/domain"
)

// SendMessageUseCase 負責把聊天訊息 fan-out 到房間 channel
// 訊息不落地，所有訂閱者（含發送者）都靠 redis echo 收到
type SendMessageUseCase struct {
	pubSub repository.PubSub
}

// NewSendMessageUseCase init create message use case
func NewSendMessageUseCase(pubSub repository.PubSub) *SendMessageUseCase {
	return &SendMessageUseCase{pubSub: pubSub}
}

// Execute send message
// sender 欄位一律以授權後的 claims 為準，不信任 client payload
func (uc *SendMessageUseCase) Execute(ctx context.Context, roomID string, senderID int, senderName, content string) error {
	if strings.TrimSpace(content) == "" {
		return rtdomain.ErrEmptyContent
	}

	msg := rtdomain.ChatMessage{
		SenderID:   senderID,
		SenderName: senderName,
		Content:    content,
	}
	return uc.pubSub.Publish(repository.ChatChannelName(roomID), msg)
}
