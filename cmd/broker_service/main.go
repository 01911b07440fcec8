package main

import (
	"fmt"
	"log"
	"os"

	"eventspace_realtime_service/internal/broker/app"
	"eventspace_realtime_service/internal/broker/repository"
	"eventspace_realtime_service/internal/broker/router"
	"eventspace_realtime_service/pkg/config"
	"eventspace_realtime_service/pkg/database"
	"eventspace_realtime_service/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.BrokerService, config.EnvConfig.BrokerServiceLogPath)
	cfg := config.LoadConfig[config.Broker](config.EnvConfig.BrokerService, config.EnvConfig.BrokerServiceYAMLPath)

	// 1. 建立 Redis 連線 (Pub/Sub)
	// 有 sentinel 設定走 failover，否則用單機位址
	var redisClient *redis.Client
	var err error
	masterName, sentinel := config.GetRedisSetting()
	if len(sentinel) > 0 {
		redisClient, err = database.NewRedisClient(masterName, sentinel, cfg.Redis.RedisDB)
	} else {
		addr := os.Getenv("REDIS_URL")
		if addr == "" {
			addr = "localhost:6379"
		}
		redisClient, err = database.NewRedisClientFromAddr(addr, cfg.Redis.RedisDB)
	}
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect redis err : %v", err))
	}

	// 2. 初始化 Repository
	memberRepo := repository.NewInMemoryMemberRepository()
	seedMembers(memberRepo)
	pubSub := repository.NewRedisPubSub(redisClient)

	// 3. 初始化 UseCases
	sendMessageUC := app.NewSendMessageUseCase(pubSub)
	notifyUC := app.NewNotifyUseCase(pubSub)

	// 4. 啟動 Fiber
	r := fiber.New()
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.BrokerServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file,
	}))

	// 注册路由
	router.RegisterRoutes(r,
		app.NewMemberHandler(memberRepo, notifyUC),
		app.NewRealtimeWebsocketHandler(sendMessageUC, pubSub),
	)

	// Listen
	port := ":" + cfg.Port
	log.Printf("Broker Service listening on %s", port)
	if err := r.Listen(port); err != nil {
		log.Fatalf("Failed to start Fiber: %v", err)
	}
}

// seedMembers 帳號不落地，啟動時寫入示範會員
func seedMembers(repo *repository.InMemoryMemberRepository) {
	members := []struct {
		id        int
		email     string
		password  string
		firstName string
	}{
		{7, "bruno@eventspace.test", "bruno-pass-1", "Bruno"},
		{8, "alice@eventspace.test", "alice-pass-1", "Alice"},
		{9, "bob@eventspace.test", "bob-pass-01", "Bob"},
	}
	for _, m := range members {
		if err := repo.Seed(m.id, m.email, m.password, m.firstName); err != nil {
			log.Fatalf("seed member %s err : %v", m.email, err)
		}
	}
}
