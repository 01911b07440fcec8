package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"

	"eventspace_realtime_service/internal/realtime/app"
	"eventspace_realtime_service/internal/realtime/client"
	"eventspace_realtime_service/internal/realtime/domain"
	"eventspace_realtime_service/pkg/config"
	"eventspace_realtime_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// 互動式 demo client：登入取 token，開一個聊天室，stdin 輸入送訊息
func main() {
	logger.Log = logger.Initialize(config.EnvConfig.RealtimeClient, config.EnvConfig.RealtimeClientLogPath)
	cfg := config.LoadConfig[config.Realtime](config.EnvConfig.RealtimeClient, config.EnvConfig.RealtimeClientYAMLPath)

	email := envOr("DEMO_EMAIL", "bruno@eventspace.test")
	password := envOr("DEMO_PASSWORD", "bruno-pass-1")
	roomID := envOr("DEMO_ROOM", "42")

	tokenStr, err := login(cfg.APIURL, email, password)
	if err != nil {
		log.Fatalf("login failed: %v", err)
	}

	session := app.NewSessionContext(cfg, client.Callbacks{
		OnConnect: func() {
			fmt.Println("* connected")
		},
		OnDisconnect: func(err error) {
			if err != nil {
				fmt.Printf("* disconnected: %v (reconnecting)\n", err)
			}
		},
		OnError: func(err error) {
			fmt.Printf("* connection error: %v\n", err)
		},
	})

	if err := session.Login(context.Background(), tokenStr); err != nil {
		log.Fatalf("session login failed: %v", err)
	}
	defer session.Logout()

	session.Notifications().SetOnNotify(func(n domain.Notification) {
		fmt.Printf("* notification: %s (%s)\n", n.Message, n.Link)
	})

	chat, err := session.OpenChat(roomID)
	if err != nil {
		log.Fatalf("open chat failed: %v", err)
	}
	defer chat.Close()

	chat.SetOnMessage(func(msg domain.ChatMessage) {
		fmt.Printf("[%s] %s\n", msg.SenderName, msg.Content)
	})

	fmt.Printf("joined room %s as %s, type to chat, /quit to exit\n", roomID, email)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "/quit" {
			return
		}
		if err := chat.Send(line); err != nil {
			fmt.Printf("* send failed: %v\n", err)
		}
	}
}

// login 走 broker REST 拿 JWT
func login(apiURL, email, password string) (string, error) {
	agent := fiber.Post(apiURL + "/member/login")
	agent.JSON(fiber.Map{"email": email, "password": password})

	var res struct {
		Token string `json:"token"`
		Error string `json:"error"`
	}
	code, _, errs := agent.Struct(&res)
	if len(errs) > 0 {
		return "", errs[0]
	}
	if code != fiber.StatusOK {
		return "", fmt.Errorf("login status %d: %s", code, res.Error)
	}
	return res.Token, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
