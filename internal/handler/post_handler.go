package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/techblog/internal/service"
)

type likeRequest struct {
	SessionID string `json:"session_id"`
}

// GetPost 返回已发布文章详情，正文已渲染为 HTML。
func (a *API) GetPost(c *gin.Context) {
	post, err := a.posts.GetPublishedBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		if errors.Is(err, service.ErrPostNotFound) {
			respondError(c, http.StatusNotFound, "文章不存在")
			return
		}
		c.Error(err)
		respondError(c, http.StatusInternalServerError, "获取文章失败")
		return
	}

	c.JSON(http.StatusOK, post)
}

// LikePost 为文章点赞，请求体可为空。
func (a *API) LikePost(c *gin.Context) {
	var req likeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, http.StatusBadRequest, "invalid like payload")
		return
	}

	count, err := a.posts.Like(c.Request.Context(), c.Param("slug"), req.SessionID, c.ClientIP())
	if err != nil {
		if errors.Is(err, service.ErrPostNotFound) {
			respondError(c, http.StatusNotFound, "文章不存在")
			return
		}
		c.Error(err)
		respondError(c, http.StatusInternalServerError, "点赞失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"likes_count": count})
}
