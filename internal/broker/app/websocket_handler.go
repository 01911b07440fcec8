package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"eventspace_realtime_service/internal/broker/repository"
	rtdomain "eventspace_realtime_service/internal/realtime/domain"
	"eventspace_realtime_service/pkg/logger"
	"eventspace_realtime_service/pkg/middlewares"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// RealtimeWebsocketHandler 處理 /ws 的整條連線生命週期
type RealtimeWebsocketHandler struct {
	messageUC *SendMessageUseCase
	pubSub    repository.PubSub
}

// NewRealtimeWebsocketHandler create RealtimeWebsocketHandler
func NewRealtimeWebsocketHandler(messageUC *SendMessageUseCase, pubSub repository.PubSub) *RealtimeWebsocketHandler {
	return &RealtimeWebsocketHandler{
		messageUC: messageUC,
		pubSub:    pubSub,
	}
}

// wsSession 單一連線的狀態：訂閱表與寫入鎖
// redis sub goroutine 與 read loop 都會寫同一條 conn，必須上鎖
type wsSession struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	subMu     sync.Mutex
	subs      map[string]context.CancelFunc
	userID    int
	firstName string
}

// HandleConnection 是 WebSocket 連線的進入點
func (h *RealtimeWebsocketHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	userID, ok := conn.Locals(middlewares.TokenUserID).(int)
	if !ok {
		logger.Log.Error("websocket handle without user id in locals")
		conn.Close()
		return
	}
	firstName, _ := conn.Locals(middlewares.TokenFirstName).(string)
	logger.Log.Info("websocket handle", zap.Int("userID", userID), zap.String("firstName", firstName))

	s := &wsSession{
		conn:      conn,
		subs:      make(map[string]context.CancelFunc),
		userID:    userID,
		firstName: firstName,
	}

	ticker := time.NewTicker(10 * time.Minute)
	ctxClose, cancel := context.WithCancel(context.Background())

	defer func() {
		ticker.Stop()
		logger.Log.Info("websocket close", zap.Int("userID", userID))
		s.cancelAll()
		conn.Close()
		cancel()
	}()

	//client發出close
	//fiber會自動處理(在read msg 回傳err),故需要SetCloseHandler另外接出
	conn.SetCloseHandler(func(code int, text string) error {
		logger.Log.Infof("WebSocket closed:", conn.RemoteAddr())
		return nil
	})

	//server發出ping之後client連線正常會回pong
	//fiber會自動處理回傳pong,故需要SetPongHandler另外接出
	conn.SetPongHandler(func(appData string) error {
		logger.Log.Infof("Received PONG:", appData)
		return nil
	})

	//client發出ping
	//fiber會自動處理ping,故需要SetPingHandler另外接出
	conn.SetPingHandler(func(appData string) error {
		logger.Log.Infof("Received PING:", appData)
		return s.writeControl(websocket.PongMessage, []byte(appData))
	})

	// 握手完成的訊號，client 收到這個 frame 才算 CONNECTED
	s.sendFrame(rtdomain.Frame{Type: rtdomain.FrameConnected})

	// 定期發送 Ping
	go func() {
		for {
			select {
			case <-ticker.C:
				if err := s.writeControl(websocket.PingMessage, []byte("ping message")); err != nil {
					logger.Log.Errorf("Ping error:", err)
					return
				}
			case <-ctxClose.Done():
				return
			}
		}
	}()

	for {
		// 1. 讀取前端訊息
		mt, message, err := conn.ReadMessage()
		if err != nil {
			// 檢查是否為 Close 正常結束
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Log.Infof("Connection closed:", err)
			} else {
				//直接斷線 1006
				logger.Log.Errorf("websocket read error:", err)
			}
			return
		}
		h.execFrameAction(ctx, s, mt, message)
	}
}

func (h *RealtimeWebsocketHandler) execFrameAction(ctx context.Context, s *wsSession, mt int, msg []byte) {
	switch mt {
	case websocket.TextMessage:
		h.textFrameAction(ctx, s, msg)

	//! close ping pong fiber會自動處理，故需使用setHandler處理
	default:
		s.sendError("unknown message type")
	}
}

func (h *RealtimeWebsocketHandler) textFrameAction(ctx context.Context, s *wsSession, msg []byte) {
	var frame rtdomain.Frame
	if err := json.Unmarshal(msg, &frame); err != nil {
		logger.Log.Error("frame unmarshal error", zap.Int("userID", s.userID), zap.Error(err))
		return
	}

	switch frame.Type {
	//訂閱 destination，綁到對應的 redis channel
	case rtdomain.FrameSubscribe:
		channel, ok := h.channelFor(frame.Destination, s.userID)
		if !ok {
			s.sendError("unknown destination: " + frame.Destination)
			return
		}
		h.subscribe(s, frame.Destination, channel)

	//取消訂閱
	case rtdomain.FrameUnsubscribe:
		s.cancelSub(frame.Destination)

	//傳送聊天訊息，redis echo 給房間所有訂閱者
	case rtdomain.FrameSend:
		roomID, ok := rtdomain.RoomFromChatSend(frame.Destination)
		if !ok {
			s.sendError("unknown destination: " + frame.Destination)
			return
		}

		var payload rtdomain.ChatMessage
		if err := json.Unmarshal(frame.Body, &payload); err != nil {
			s.sendError("invalid message body")
			return
		}

		// sender 欄位以 token claims 為準，claims 沒有名字時保留 client 帶的
		senderName := s.firstName
		if senderName == "" {
			senderName = payload.SenderName
		}
		if err := h.messageUC.Execute(ctx, roomID, s.userID, senderName, payload.Content); err != nil {
			logger.Log.Error("send message error", zap.Int("userID", s.userID), zap.String("roomID", roomID), zap.Error(err))
			s.sendError(err.Error())
		}

	default:
		s.sendError("unknown frame type")
	}
}

// channelFor 把 wire destination 對應到 redis channel
// 通知 topic 是 user-scoped，由 token 內的 userID 決定
func (h *RealtimeWebsocketHandler) channelFor(destination string, userID int) (string, bool) {
	if roomID, ok := rtdomain.RoomFromChatTopic(destination); ok {
		return repository.ChatChannelName(roomID), true
	}
	if rtdomain.IsNotificationTopic(destination) {
		return repository.NotifyChannelName(userID), true
	}
	return "", false
}

func (h *RealtimeWebsocketHandler) subscribe(s *wsSession, destination, channel string) {
	// 同 destination 重複訂閱時，換掉舊的
	s.cancelSub(destination)

	ctxSub, cancel := context.WithCancel(context.Background())
	err := h.pubSub.Subscribe(ctxSub, channel, func(payload []byte) {
		s.sendFrame(rtdomain.Frame{
			Type:        rtdomain.FrameMessage,
			Destination: destination,
			Body:        json.RawMessage(payload),
		})
	})
	if err != nil {
		cancel()
		logger.Log.Error("subscribe error", zap.String("channel", channel), zap.Error(err))
		s.sendError("subscribe failed: " + destination)
		return
	}

	s.subMu.Lock()
	s.subs[destination] = cancel
	s.subMu.Unlock()
}

func (s *wsSession) cancelSub(destination string) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if cancel, ok := s.subs[destination]; ok {
		cancel()
		delete(s.subs, destination)
	}
}

func (s *wsSession) cancelAll() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for destination, cancel := range s.subs {
		cancel()
		delete(s.subs, destination)
	}
}

// sendFrame - 發送 JSON frame 給前端
func (s *wsSession) sendFrame(frame rtdomain.Frame) {
	b, _ := json.Marshal(frame)
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		logger.Log.Errorf("write message error:", err)
	}
}

func (s *wsSession) sendError(errorMsg string) {
	s.sendFrame(rtdomain.Frame{
		Type:  rtdomain.FrameError,
		Error: errorMsg,
	})
}

func (s *wsSession) writeControl(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteControl(messageType, data, time.Now().Add(time.Second))
}
