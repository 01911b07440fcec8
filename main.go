package main

import (
	"eventspace_realtime_service/internal/broker/router"

	"github.com/gofiber/fiber/v2"
)

// 服務入口在 cmd/ 下。此程式用於init swagger
// swag init output ./docs
func main() {
	// 创建 Fiber 应用
	app := fiber.New()

	// 注册路由
	router.RegisterRoutes(app, nil, nil)
}
