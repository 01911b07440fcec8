package app

import (
	"eventspace_realtime_service/internal/realtime/client"
	"eventspace_realtime_service/internal/realtime/domain"
)

// Conn 是 channel 依賴的 Protocol Client 能力。
// 用介面注入，測試時換成 fake，不走真實 socket
type Conn interface {
	State() domain.ConnState
	Subscribe(destination string, handler client.Handler) (client.Subscription, error)
	Publish(destination string, body interface{}) error
}
