package app

import (
	"encoding/json"
	"fmt"
	"testing"

	"eventspace_realtime_service/internal/realtime/domain"
	"eventspace_realtime_service/pkg/logger"
	"eventspace_realtime_service/pkg/token"

	"github.com/stretchr/testify/assert"
)

func credentialFor(t *testing.T, userID int, firstName string) func() (string, error) {
	t.Helper()
	tokenStr, err := token.GenerateJWT(userID, firstName, "test")
	assert.NoError(t, err)
	return func() (string, error) { return tokenStr, nil }
}

// 兩個使用者訂同一個 room，broker echo 回來後
// 兩邊都剛好附加一則相同內容的訊息，順序照到達順序
func TestChatChannelEchoFanout(t *testing.T) {
	logger.SetNewNop()

	aliceConn := newFakeConn()
	bobConn := newFakeConn()

	alice := NewChatChannel(aliceConn, credentialFor(t, 1, "Alice"), "42", 0)
	bob := NewChatChannel(bobConn, credentialFor(t, 2, "Bob"), "42", 0)
	assert.NoError(t, alice.Open())
	assert.NoError(t, bob.Open())

	assert.NoError(t, alice.Send("hello"))

	// broker 收到 publish 後廣播給所有訂閱者（含發送者）
	published := aliceConn.publishedFrames()
	assert.Len(t, published, 1)
	assert.Equal(t, "app/chat.sendMessage/42", published[0].destination)

	echo, err := json.Marshal(published[0].body)
	assert.NoError(t, err)
	aliceConn.deliver(domain.ChatTopic("42"), echo)
	bobConn.deliver(domain.ChatTopic("42"), echo)

	want := []domain.ChatMessage{{SenderID: 1, SenderName: "Alice", Content: "hello"}}
	assert.Equal(t, want, alice.Messages())
	assert.Equal(t, want, bob.Messages())
}

// 發送者在 echo 回來之前看不到自己的訊息（不做樂觀附加）
func TestChatChannelNoOptimisticAppend(t *testing.T) {
	logger.SetNewNop()

	conn := newFakeConn()
	ch := NewChatChannel(conn, credentialFor(t, 1, "Alice"), "42", 0)
	assert.NoError(t, ch.Open())

	assert.NoError(t, ch.Send("hello"))
	assert.Empty(t, ch.Messages())
}

// token payload {userId:7, firstName:"Bruno"}，
// send("oi") 發布的 payload 逐欄位一致
func TestChatChannelSendPayload(t *testing.T) {
	logger.SetNewNop()

	conn := newFakeConn()
	ch := NewChatChannel(conn, credentialFor(t, 7, "Bruno"), "42", 0)
	assert.NoError(t, ch.Open())

	assert.NoError(t, ch.Send("oi"))

	published := conn.publishedFrames()
	assert.Len(t, published, 1)
	assert.Equal(t, "app/chat.sendMessage/42", published[0].destination)

	raw, err := json.Marshal(published[0].body)
	assert.NoError(t, err)
	assert.JSONEq(t, `{"senderId":7,"senderName":"Bruno","content":"oi"}`, string(raw))
}

// token 沒有 firstName 時用 fallback 名稱
func TestChatChannelSenderNameFallback(t *testing.T) {
	logger.SetNewNop()

	conn := newFakeConn()
	ch := NewChatChannel(conn, credentialFor(t, 9, ""), "42", 0)
	assert.NoError(t, ch.Open())

	assert.NoError(t, ch.Send("olá"))

	published := conn.publishedFrames()
	assert.Len(t, published, 1)
	msg, ok := published[0].body.(domain.ChatMessage)
	assert.True(t, ok)
	assert.Equal(t, defaultSenderName, msg.SenderName)
}

// 空內容、斷線時 send 都要回報錯誤，訊息不可悄悄排隊
func TestChatChannelSendFailures(t *testing.T) {
	logger.SetNewNop()

	conn := newFakeConn()
	ch := NewChatChannel(conn, credentialFor(t, 1, "Alice"), "42", 0)
	assert.NoError(t, ch.Open())

	assert.ErrorIs(t, ch.Send("   "), domain.ErrEmptyContent)

	conn.setState(domain.StateConnecting)
	assert.ErrorIs(t, ch.Send("hello"), domain.ErrNotConnected)
	assert.Empty(t, conn.publishedFrames())
}

// 壞 frame 丟棄，不 crash、不進序列
func TestChatChannelDropMalformedFrame(t *testing.T) {
	logger.SetNewNop()

	conn := newFakeConn()
	ch := NewChatChannel(conn, credentialFor(t, 1, "Alice"), "42", 0)
	assert.NoError(t, ch.Open())

	conn.deliver(domain.ChatTopic("42"), []byte(`{broken`))
	conn.deliver(domain.ChatTopic("42"), []byte(`{"senderId":1,"senderName":"Alice","content":"ok"}`))

	messages := ch.Messages()
	assert.Len(t, messages, 1)
	assert.Equal(t, "ok", messages[0].Content)
}

// history limit: 超過上限淘汰最舊的
func TestChatChannelHistoryLimit(t *testing.T) {
	logger.SetNewNop()

	conn := newFakeConn()
	ch := NewChatChannel(conn, credentialFor(t, 1, "Alice"), "42", 3)
	assert.NoError(t, ch.Open())

	for i := 0; i < 5; i++ {
		body := fmt.Sprintf(`{"senderId":1,"senderName":"Alice","content":"m%d"}`, i)
		conn.deliver(domain.ChatTopic("42"), []byte(body))
	}

	messages := ch.Messages()
	assert.Len(t, messages, 3)
	assert.Equal(t, "m2", messages[0].Content)
	assert.Equal(t, "m4", messages[2].Content)
}

// Close 取消訂閱，in-flight frame 不再進序列，不影響其他 channel
func TestChatChannelClose(t *testing.T) {
	logger.SetNewNop()

	conn := newFakeConn()
	ch := NewChatChannel(conn, credentialFor(t, 1, "Alice"), "42", 0)
	other := NewChatChannel(conn, credentialFor(t, 1, "Alice"), "99", 0)
	assert.NoError(t, ch.Open())
	assert.NoError(t, other.Open())

	ch.Close()
	ch.Close() // 可重複

	assert.False(t, conn.subscribed(domain.ChatTopic("42")))
	assert.True(t, conn.subscribed(domain.ChatTopic("99")))

	conn.deliver(domain.ChatTopic("42"), []byte(`{"senderId":1,"senderName":"Alice","content":"late"}`))
	assert.Empty(t, ch.Messages())

	assert.ErrorIs(t, ch.Send("x"), domain.ErrClosed)
}
