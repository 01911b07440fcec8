package token

import "eventspace_realtime_service/pkg/config"

// 這些變數會在測試時被覆蓋
var (
	GenerateJWTFunc = GenerateJWT
	ParseJWTFunc    = ParseJWT
)

// GenerateJWTWrapper 讓 usecase test mock 使用這個包裝函數
func GenerateJWTWrapper(userID int, firstName string) (string, error) {
	return GenerateJWTFunc(userID, firstName, config.EnvConfig.BrokerService)
}

// ParseJWTWrapper 讓 usecase test mock 使用這個包裝函數
func ParseJWTWrapper(t string) (*Claims, error) {
	return ParseJWTFunc(t)
}
