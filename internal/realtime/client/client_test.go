package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"eventspace_realtime_service/internal/realtime/domain"
	"eventspace_realtime_service/internal/realtime/transport"
	"eventspace_realtime_service/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// fakeTransport 取代真實 websocket，直接把 frame 灌進 client
type fakeTransport struct {
	mu     sync.Mutex
	events transport.Events
	sent   [][]byte
	opens  int
	closes int
}

func (f *fakeTransport) Open(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	return nil
}

func (f *fakeTransport) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeTransport) sentFrames() []domain.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Frame, 0, len(f.sent))
	for _, data := range f.sent {
		var frame domain.Frame
		if err := json.Unmarshal(data, &frame); err == nil {
			out = append(out, frame)
		}
	}
	return out
}

// deliverConnected 模擬 broker 握手完成
func (f *fakeTransport) deliverConnected() {
	f.events.OnFrame([]byte(`{"type":"connected"}`))
}

// deliverMessage 模擬 broker 廣播
func (f *fakeTransport) deliverMessage(destination, body string) {
	frame := fmt.Sprintf(`{"type":"message","destination":%q,"body":%s}`, destination, body)
	f.events.OnFrame([]byte(frame))
}

// installFakeTransport 覆蓋 transport seam，回傳最後建立的 fake
func installFakeTransport(t *testing.T) *fakeTransport {
	t.Helper()
	fake := &fakeTransport{}
	orig := newTransportSession
	newTransportSession = func(socketURL string, cred transport.CredentialProvider, events transport.Events, reconnectDelay time.Duration) transportSession {
		fake.events = events
		return fake
	}
	t.Cleanup(func() { newTransportSession = orig })
	return fake
}

func testCredential() (string, error) {
	return "test-token", nil
}

// 握手成功 connecting → connected，OnConnect 被觸發
func TestClientConnectHandshake(t *testing.T) {
	logger.SetNewNop()
	fake := installFakeTransport(t)

	connected := false
	c := NewClient("ws://broker/ws", testCredential, Callbacks{
		OnConnect: func() { connected = true },
	}, 0)

	assert.Equal(t, domain.StateDisconnected, c.State())
	assert.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, domain.StateConnecting, c.State())
	assert.False(t, connected)

	fake.deliverConnected()
	assert.Equal(t, domain.StateConnected, c.State())
	assert.True(t, connected)
}

// Connect 重複呼叫不會開第二條 transport
func TestClientConnectIdempotent(t *testing.T) {
	logger.SetNewNop()

	created := 0
	orig := newTransportSession
	newTransportSession = func(socketURL string, cred transport.CredentialProvider, events transport.Events, reconnectDelay time.Duration) transportSession {
		created++
		fake := &fakeTransport{events: events}
		return fake
	}
	defer func() { newTransportSession = orig }()

	c := NewClient("ws://broker/ws", testCredential, Callbacks{}, 0)
	assert.NoError(t, c.Connect(context.Background()))
	assert.NoError(t, c.Connect(context.Background()))
	assert.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, 1, created)
}

// 非 connected 狀態 publish 一律 ErrNotConnected，
// 不會有任何 frame 寫進 transport
func TestClientPublishNotConnected(t *testing.T) {
	logger.SetNewNop()
	fake := installFakeTransport(t)

	c := NewClient("ws://broker/ws", testCredential, Callbacks{}, 0)

	// disconnected
	err := c.Publish("app/chat.sendMessage/42", domain.ChatMessage{Content: "x"})
	assert.ErrorIs(t, err, domain.ErrNotConnected)

	// connecting
	assert.NoError(t, c.Connect(context.Background()))
	err = c.Publish("app/chat.sendMessage/42", domain.ChatMessage{Content: "x"})
	assert.ErrorIs(t, err, domain.ErrNotConnected)

	assert.Empty(t, fake.sentFrames())
}

// 單一 destination 上 N 個 frame 的到達順序 = handler 呼叫順序
func TestClientDispatchOrdering(t *testing.T) {
	logger.SetNewNop()
	fake := installFakeTransport(t)

	c := NewClient("ws://broker/ws", testCredential, Callbacks{}, 0)
	assert.NoError(t, c.Connect(context.Background()))
	fake.deliverConnected()

	roomTopic := domain.ChatTopic(uuid.New().String())
	var got []string
	_, err := c.Subscribe(roomTopic, func(destination string, body []byte) {
		var msg domain.ChatMessage
		assert.NoError(t, json.Unmarshal(body, &msg))
		got = append(got, msg.Content)
	})
	assert.NoError(t, err)

	for i := 0; i < 10; i++ {
		fake.deliverMessage(roomTopic, fmt.Sprintf(`{"senderId":1,"senderName":"A","content":"m%d"}`, i))
	}

	assert.Len(t, got, 10)
	for i, content := range got {
		assert.Equal(t, fmt.Sprintf("m%d", i), content)
	}
}

// 同一個 destination 訂兩次，只有第二個 handler 生效，
// 一個 frame 只觸發一次
func TestClientSubscribeReplacesHandler(t *testing.T) {
	logger.SetNewNop()
	fake := installFakeTransport(t)

	c := NewClient("ws://broker/ws", testCredential, Callbacks{}, 0)
	assert.NoError(t, c.Connect(context.Background()))
	fake.deliverConnected()

	topic := domain.ChatTopic("42")
	firstCalls, secondCalls := 0, 0
	_, err := c.Subscribe(topic, func(string, []byte) { firstCalls++ })
	assert.NoError(t, err)
	_, err = c.Subscribe(topic, func(string, []byte) { secondCalls++ })
	assert.NoError(t, err)

	fake.deliverMessage(topic, `{"senderId":1,"senderName":"A","content":"hi"}`)

	assert.Equal(t, 0, firstCalls)
	assert.Equal(t, 1, secondCalls)
}

// 取消訂閱後 in-flight frame 不觸發 handler，重複取消沒有副作用
func TestClientUnsubscribeStopsDelivery(t *testing.T) {
	logger.SetNewNop()
	fake := installFakeTransport(t)

	c := NewClient("ws://broker/ws", testCredential, Callbacks{}, 0)
	assert.NoError(t, c.Connect(context.Background()))
	fake.deliverConnected()

	topic := domain.ChatTopic("7")
	calls := 0
	sub, err := c.Subscribe(topic, func(string, []byte) { calls++ })
	assert.NoError(t, err)

	fake.deliverMessage(topic, `{"senderId":1,"senderName":"A","content":"before"}`)
	assert.Equal(t, 1, calls)

	sub.Unsubscribe()
	sub.Unsubscribe() // 第二次是 no-op

	fake.deliverMessage(topic, `{"senderId":1,"senderName":"A","content":"after"}`)
	assert.Equal(t, 1, calls)

	// Close 也可以重複
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
	assert.Equal(t, domain.StateDisconnected, c.State())
}

// 掉線 → connecting → 重新握手後 client 自己重放訂閱，
// channel 不需要重新 mount 就能繼續收訊息
func TestClientReconnectReplaysSubscriptions(t *testing.T) {
	logger.SetNewNop()
	fake := installFakeTransport(t)

	var disconnects int
	c := NewClient("ws://broker/ws", testCredential, Callbacks{
		OnDisconnect: func(err error) { disconnects++ },
	}, 0)
	assert.NoError(t, c.Connect(context.Background()))
	fake.deliverConnected()

	topic := domain.ChatTopic("42")
	var got []string
	_, err := c.Subscribe(topic, func(destination string, body []byte) {
		var msg domain.ChatMessage
		assert.NoError(t, json.Unmarshal(body, &msg))
		got = append(got, msg.Content)
	})
	assert.NoError(t, err)

	// 掉線，transport 自己會重撥
	fake.events.OnDrop(&domain.TransportDropError{Cause: fmt.Errorf("peer reset")})
	assert.Equal(t, domain.StateConnecting, c.State())
	assert.Equal(t, 1, disconnects)

	// 重連握手完成
	fake.deliverConnected()
	assert.Equal(t, domain.StateConnected, c.State())

	// 兩次 connected 都應該送出 subscribe frame
	subscribes := 0
	for _, frame := range fake.sentFrames() {
		if frame.Type == domain.FrameSubscribe && frame.Destination == topic {
			subscribes++
		}
	}
	assert.Equal(t, 2, subscribes)

	fake.deliverMessage(topic, `{"senderId":2,"senderName":"B","content":"still here"}`)
	assert.Equal(t, []string{"still here"}, got)
}

// broker error frame 是終態，不自動重連
func TestClientBrokerErrorFrame(t *testing.T) {
	logger.SetNewNop()
	fake := installFakeTransport(t)

	var gotErr error
	c := NewClient("ws://broker/ws", testCredential, Callbacks{
		OnError: func(err error) { gotErr = err },
	}, 0)
	assert.NoError(t, c.Connect(context.Background()))
	fake.deliverConnected()

	fake.events.OnFrame([]byte(`{"type":"error","error":"subscription denied"}`))

	assert.Equal(t, domain.StateError, c.State())
	assert.EqualError(t, gotErr, "subscription denied")
	assert.Equal(t, 1, fake.closes)
}

// 壞 frame 丟棄，連線不受影響
func TestClientMalformedFrameDropped(t *testing.T) {
	logger.SetNewNop()
	fake := installFakeTransport(t)

	c := NewClient("ws://broker/ws", testCredential, Callbacks{}, 0)
	assert.NoError(t, c.Connect(context.Background()))
	fake.deliverConnected()

	fake.events.OnFrame([]byte(`{not json`))

	assert.Equal(t, domain.StateConnected, c.State())
	assert.NoError(t, c.Publish(domain.ChatSendDestination("1"), domain.ChatMessage{SenderID: 1, SenderName: "A", Content: "ok"}))
}

// publish 的 frame 形狀與 destination
func TestClientPublishFrameShape(t *testing.T) {
	logger.SetNewNop()
	fake := installFakeTransport(t)

	c := NewClient("ws://broker/ws", testCredential, Callbacks{}, 0)
	assert.NoError(t, c.Connect(context.Background()))
	fake.deliverConnected()

	msg := domain.ChatMessage{SenderID: 7, SenderName: "Bruno", Content: "oi"}
	assert.NoError(t, c.Publish(domain.ChatSendDestination("42"), msg))

	frames := fake.sentFrames()
	assert.Len(t, frames, 1)
	assert.Equal(t, domain.FrameSend, frames[0].Type)
	assert.Equal(t, "app/chat.sendMessage/42", frames[0].Destination)
	assert.JSONEq(t, `{"senderId":7,"senderName":"Bruno","content":"oi"}`, string(frames[0].Body))
}
