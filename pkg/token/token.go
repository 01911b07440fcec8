package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims structure for custom claims in JWT
type Claims struct {
	UserID    int    `json:"userId"`
	FirstName string `json:"firstName"`
	jwt.RegisteredClaims
}

// Secret Key for JWT signing and validation
var (
	JWTSecret       = []byte("secure_secret_key")
	tokenExpiration = 60 * time.Minute
)

// GenerateJWT generates a JWT token
func GenerateJWT(userID int, firstName, issuer string) (string, error) {
	claims := Claims{
		UserID:    userID,
		FirstName: firstName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenExpiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(JWTSecret)
}

// ParseJWT parses a JWT and extracts the Claims
func ParseJWT(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Check if the signing method is HMAC
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return JWTSecret, nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// DecodeDisplayClaims decode claims without signature check.
// 客戶端只拿來填聊天訊息的 senderId / senderName 顯示欄位，
// 不可作為任何授權判斷，授權一律由 broker 驗證過的 token 決定。
func DecodeDisplayClaims(tokenStr string) (*Claims, error) {
	claims := new(Claims)
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenStr, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// StripBearer remove "Bearer " prefix from the Authorization header value
func StripBearer(t string) string {
	if len(t) >= 7 && strings.EqualFold(t[:7], "Bearer ") {
		return t[7:]
	}
	return t
}

// CheckJWTNotExpire check JWT token not expires
func CheckJWTNotExpire(t string) (bool, error) {
	tokenStr := StripBearer(t)
	if tokenStr == "" {
		return true, errors.New("Invalid or missing token")
	}

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("Unexpected signing method")
		}
		return JWTSecret, nil
	})

	if err != nil {
		return true, err
	}

	tokenExpire, err := token.Claims.GetExpirationTime()
	if err != nil {
		return true, nil
	}

	return tokenExpire.After(time.Now()), nil
}
