package router

import (
	"context"

	"eventspace_realtime_service/internal/broker/app"
	"eventspace_realtime_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes 注册 broker 相关的路由
// @title EventSpace Realtime Broker API
// @version 1.0
// @description API documentation for EventSpace Realtime Broker
// @BasePath /
func RegisterRoutes(r *fiber.App, memberHandler *app.MemberHandler, wsHandler *app.RealtimeWebsocketHandler) {
	r.Get("/swagger/*", swagger.HandlerDefault)
	r.Get("/", memberHandler.ConnectCheck)
	r.Post("/member/login", memberHandler.Login)

	// /ws 與 /notify 都要帶有效 token
	r.Use(middlewares.JWTMiddleware())

	r.Post("/notify", memberHandler.Notify)
	r.Get("/ws", websocket.New(func(c *websocket.Conn) {
		wsHandler.HandleConnection(context.Background(), c)
	}))
}
