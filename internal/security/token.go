package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "techblog"

// ErrInvalidToken 表示 token 无法解析、签名错误或已过期。
var ErrInvalidToken = errors.New("invalid or expired token")

// UserClaims 定义了 token 中包含的业务信息
type UserClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// UserID 从 Subject 中解析用户 ID。
func (c *UserClaims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 32)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return uint(id), nil
}

// TokenManager 负责签发与校验 HS256 JWT。
type TokenManager struct {
	secret     []byte
	expiration time.Duration
	now        func() time.Time
}

// NewTokenManager 创建 TokenManager。
func NewTokenManager(secret string, expiration time.Duration) *TokenManager {
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), expiration: expiration, now: time.Now}
}

// Generate 为指定用户签发新的 token。
func (m *TokenManager) Generate(userID uint, username string) (string, error) {
	now := m.now()
	claims := &UserClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate 校验 token 并解析出 Claims。
func (m *TokenManager) Validate(tokenString string) (*UserClaims, error) {
	claims := &UserClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
