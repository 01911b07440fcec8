package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"eventspace_realtime_service/pkg/logger"

	"github.com/go-redis/redis/v8"
)

// PubSub 廣播介面，websocket handler 與 usecase 靠它 fan-out
type PubSub interface {
	Publish(channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string, handler func(payload []byte)) error
}

// ChatChannelName redis channel for a chat room
func ChatChannelName(roomID string) string {
	return "chat:room:" + roomID
}

// NotifyChannelName redis channel for a user's notifications
func NotifyChannelName(userID int) string {
	return fmt.Sprintf("notify:user:%d", userID)
}

// RedisPubSub definition redis pub/sub
type RedisPubSub struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisPubSub create RedisPubSub
func NewRedisPubSub(client *redis.Client) *RedisPubSub {
	return &RedisPubSub{
		client: client,
		ctx:    context.Background(),
	}
}

// Publish 將 message 序列化後，發布到指定 channel
func (r *RedisPubSub) Publish(channel string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return r.client.Publish(r.ctx, channel, data).Err()
}

// Subscribe 訂閱 channel，收到訊息後呼叫 handler 處理
// ctx 取消時退出循環並關閉訂閱
func (r *RedisPubSub) Subscribe(ctx context.Context, channel string, handler func(payload []byte)) error {
	sub := r.client.Subscribe(r.ctx, channel)
	go func() {
		ch := sub.Channel()

		for {
			select {
			case m, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(m.Payload))
			case <-ctx.Done():
				logger.Log.Info(fmt.Sprintf("%s , sub close", channel))
				sub.Close()
				return
			}
		}
	}()
	return nil
}
