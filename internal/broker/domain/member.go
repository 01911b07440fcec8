package domain

import "errors"

// 定義錯誤信息
var (
	ErrMemberNotFound = errors.New("member not found")
)

// Member 代表一個可登入的會員帳號
type Member struct {
	ID        int    `json:"id"`
	Email     string `json:"email"`
	Password  string `json:"-"` // bcrypt hash
	FirstName string `json:"firstName"`
}

// MemberRepository 會員查詢介面
type MemberRepository interface {
	FindByEmail(email string) (*Member, error)
}
