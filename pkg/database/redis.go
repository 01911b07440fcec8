package database

import (
	"context"
	"fmt"

	errprocess "eventspace_realtime_service/pkg/err"

	"github.com/go-redis/redis/v8"
)

// NewRedisClient init Redis Sentinel connection
func NewRedisClient(masterName string, sentinelAddrs []string, db int) (*redis.Client, error) {
	rdb := redis.NewFailoverClient(&redis.FailoverOptions{
		MasterName:    masterName,    // 哨兵主節點名稱
		SentinelAddrs: sentinelAddrs, // 哨兵地址列表
		Password:      "",
		DB:            db,
	})

	// 測試連接
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, errprocess.Set(fmt.Sprintf("failed to connect to redis sentinel: %v", err))
	}

	return rdb, nil
}

// NewRedisClientFromAddr init single node Redis connection (本地開發、測試容器)
func NewRedisClientFromAddr(addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, errprocess.Set(fmt.Sprintf("failed to connect to redis: %v", err))
	}

	return rdb, nil
}
