package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/techblog/internal/service"
)

const (
	contextUserIDKey   = "user_id"
	contextUsernameKey = "username"
	sessionUserIDKey   = "user_id"
	sessionUsernameKey = "username"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 校验用户名密码，签发 JWT 并写入会话。
func (a *API) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req, "invalid login payload") {
		return
	}

	user, err := a.auth.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			respondError(c, http.StatusUnauthorized, "用户名或密码错误")
			return
		}
		c.Error(err)
		respondError(c, http.StatusInternalServerError, "登录失败")
		return
	}

	token, err := a.tokens.Generate(user.ID, user.Username)
	if err != nil {
		c.Error(err)
		respondError(c, http.StatusInternalServerError, "登录失败")
		return
	}

	session := sessions.Default(c)
	session.Set(sessionUserIDKey, user.ID)
	session.Set(sessionUsernameKey, user.Username)
	if err := session.Save(); err != nil {
		c.Error(err)
		respondError(c, http.StatusInternalServerError, "会话保存失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
	})
}

// Logout 清除会话。Bearer token 为无状态凭证，由客户端自行丢弃。
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		c.Error(err)
		respondError(c, http.StatusInternalServerError, "会话保存失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me 返回当前登录用户。
func (a *API) Me(c *gin.Context) {
	userID := c.GetUint(contextUserIDKey)

	user, err := a.auth.GetUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			respondError(c, http.StatusUnauthorized, "用户不存在")
			return
		}
		c.Error(err)
		respondError(c, http.StatusInternalServerError, "获取用户失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": user.ID, "username": user.Username})
}

// AuthRequired 接受 Bearer JWT 或登录会话，并将用户身份写入 gin.Context。
func (a *API) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if header := c.GetHeader("Authorization"); header != "" {
			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(tokenString) == "" {
				respondError(c, http.StatusUnauthorized, "Token 缺失或格式错误")
				c.Abort()
				return
			}

			claims, err := a.tokens.Validate(strings.TrimSpace(tokenString))
			if err != nil {
				respondError(c, http.StatusUnauthorized, "Token 无效或已过期")
				c.Abort()
				return
			}
			userID, err := claims.UserID()
			if err != nil {
				respondError(c, http.StatusUnauthorized, "Token 无效或已过期")
				c.Abort()
				return
			}

			c.Set(contextUserIDKey, userID)
			c.Set(contextUsernameKey, claims.Username)
			c.Next()
			return
		}

		session := sessions.Default(c)
		userID, ok := sessionUserID(session.Get(sessionUserIDKey))
		if !ok {
			respondError(c, http.StatusUnauthorized, "未登录")
			c.Abort()
			return
		}

		c.Set(contextUserIDKey, userID)
		if username, ok := session.Get(sessionUsernameKey).(string); ok {
			c.Set(contextUsernameKey, username)
		}
		c.Next()
	}
}

// sessionUserID 兼容 gob 解码后的不同整数类型。
func sessionUserID(value interface{}) (uint, bool) {
	switch v := value.(type) {
	case uint:
		return v, v > 0
	case int:
		return uint(v), v > 0
	case int64:
		return uint(v), v > 0
	case uint64:
		return uint(v), v > 0
	default:
		return 0, false
	}
}
