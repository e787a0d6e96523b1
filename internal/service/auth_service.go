package service

import (
	"context"
	"errors"
	"strings"

	"github.com/techblog/internal/db"
	"github.com/techblog/internal/security"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrUserNotFound       = errors.New("user not found")
)

// AuthService 校验后台管理员凭据。
type AuthService struct {
	db *gorm.DB
}

// NewAuthService creates an AuthService instance.
func NewAuthService(gdb *gorm.DB) *AuthService {
	return &AuthService{db: gdb}
}

// Authenticate 校验用户名与密码，失败时统一返回 ErrInvalidCredentials。
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*db.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	var user db.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	// 哈希格式损坏同样按凭据错误处理
	if err := security.CheckPasswordHash(password, user.Password); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &user, nil
}

// GetUser 按 ID 读取管理员。
func (s *AuthService) GetUser(ctx context.Context, id uint) (*db.User, error) {
	var user db.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}
