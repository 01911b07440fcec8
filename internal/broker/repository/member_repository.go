package repository

import (
	"strings"
	"sync"

	"eventspace_realtime_service/internal/broker/domain"
	"eventspace_realtime_service/pkg/encrypt"
)

// InMemoryMemberRepository 以 map 保存會員資料，不落地
// 訊息與帳號都不持久化，重啟即重置
type InMemoryMemberRepository struct {
	mu      sync.RWMutex
	byEmail map[string]*domain.Member
}

// NewInMemoryMemberRepository create InMemoryMemberRepository
func NewInMemoryMemberRepository() *InMemoryMemberRepository {
	return &InMemoryMemberRepository{
		byEmail: make(map[string]*domain.Member),
	}
}

// Seed 寫入一個會員，密碼在這裡做 bcrypt
func (r *InMemoryMemberRepository) Seed(id int, email, password, firstName string) error {
	hashed, err := encrypt.HashPassword(password)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byEmail[strings.ToLower(email)] = &domain.Member{
		ID:        id,
		Email:     email,
		Password:  hashed,
		FirstName: firstName,
	}
	return nil
}

// FindByEmail 依 email 查會員
func (r *InMemoryMemberRepository) FindByEmail(email string) (*domain.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	member, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, domain.ErrMemberNotFound
	}
	return member, nil
}
