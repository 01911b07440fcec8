package config

import "time"

// Broker definition broker_service YAML structure
type Broker struct {
	Port  string      `mapstructure:"port"`
	Redis RedisConfig `mapstructure:"redis"`
}

// Realtime definition realtime client YAML structure
type Realtime struct {
	// broker websocket url, ex: ws://localhost:8080/ws
	SocketURL string `mapstructure:"socket_url"`

	// broker rest api url, ex: http://localhost:8080
	APIURL string `mapstructure:"api_url"`

	// 斷線後重連間隔，0 使用預設 5s
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`

	// 每個聊天室保留的訊息上限，0 表示不限制
	HistoryLimit int `mapstructure:"history_limit"`
}

// ServiceConfig definition service port & name
type ServiceConfig struct {
	Port string `mapstructure:"service_port"`
	Name string `mapstructure:"service_name"`
}

// RedisConfig definition redis setting
type RedisConfig struct {
	RedisDB int `mapstructure:"redis_db"`
}
