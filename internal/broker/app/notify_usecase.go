package app

import (
	"context"
	"strings"

	"eventspace_realtime_service/internal/broker/repository"
	rtdomain "eventspace_realtime_service/internal/realtime/domain"
)

// NotifyUseCase 推送通知到指定使用者的 channel
type NotifyUseCase struct {
	pubSub repository.PubSub
}

// NewNotifyUseCase init create notify use case
func NewNotifyUseCase(pubSub repository.PubSub) *NotifyUseCase {
	return &NotifyUseCase{pubSub: pubSub}
}

// Execute push a notification to one user
// timestamp 由收端補上，這裡只轉送 message 與 link
func (uc *NotifyUseCase) Execute(ctx context.Context, userID int, notification rtdomain.Notification) error {
	if strings.TrimSpace(notification.Message) == "" {
		return rtdomain.ErrEmptyContent
	}
	return uc.pubSub.Publish(repository.NotifyChannelName(userID), notification)
}
