package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/techblog/internal/db"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"gorm.io/gorm"
)

var (
	ErrPostNotFound = errors.New("post not found")
)

var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Table),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	sanitizer = bluemonday.UGCPolicy()
)

// PostService 提供前台访客可用的文章读取与点赞能力。
type PostService struct {
	db *gorm.DB
}

// PostDetail 是公开文章详情，ContentHTML 已经过消毒处理。
type PostDetail struct {
	ID          uint       `json:"id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Excerpt     string     `json:"excerpt"`
	Content     string     `json:"content"`
	ContentHTML string     `json:"content_html"`
	PublishedAt *time.Time `json:"published_at"`
	LikesCount  int64      `json:"likes_count"`
}

// NewPostService creates a PostService instance.
func NewPostService(gdb *gorm.DB) *PostService {
	return &PostService{db: gdb}
}

// GetPublishedBySlug 返回已发布且带发布时间的文章，草稿视为不存在。
func (s *PostService) GetPublishedBySlug(ctx context.Context, slug string) (*PostDetail, error) {
	post, err := s.findPublished(ctx, slug)
	if err != nil {
		return nil, err
	}

	rendered, err := RenderMarkdown(post.Content)
	if err != nil {
		return nil, err
	}

	likes, err := s.likesCount(ctx, post.ID)
	if err != nil {
		return nil, err
	}

	return &PostDetail{
		ID:          post.ID,
		Title:       post.Title,
		Slug:        post.Slug,
		Excerpt:     post.Excerpt,
		Content:     post.Content,
		ContentHTML: rendered,
		PublishedAt: post.PublishedAt,
		LikesCount:  likes,
	}, nil
}

// Like 为文章记录一次点赞并返回最新点赞数。
// 同一 session（未提供时按 IP）对同一文章重复点赞不会重复计数。
func (s *PostService) Like(ctx context.Context, slug, sessionID, ip string) (int64, error) {
	post, err := s.findPublished(ctx, slug)
	if err != nil {
		return 0, err
	}

	sessionID = strings.TrimSpace(sessionID)
	ip = strings.TrimSpace(ip)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Model(&db.Like{}).Where("post_id = ?", post.ID)
		switch {
		case sessionID != "":
			query = query.Where("session_id = ?", sessionID)
		case ip != "":
			query = query.Where("(session_id = '' OR session_id IS NULL) AND ip_address = ?", ip)
		default:
			return tx.Create(&db.Like{PostID: post.ID}).Error
		}

		var existing int64
		if err := query.Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}

		return tx.Create(&db.Like{PostID: post.ID, SessionID: sessionID, IPAddress: ip}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("record like: %w", err)
	}

	return s.likesCount(ctx, post.ID)
}

// RenderMarkdown 将 Markdown 渲染为经过 UGC 策略消毒的 HTML。
func RenderMarkdown(content string) (string, error) {
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(content), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return sanitizer.Sanitize(buf.String()), nil
}

func (s *PostService) findPublished(ctx context.Context, slug string) (*db.Post, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, ErrPostNotFound
	}

	var post db.Post
	if err := s.db.WithContext(ctx).
		Where("slug = ? AND status = ? AND published_at IS NOT NULL", slug, db.PostStatusPublished).
		First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

func (s *PostService) likesCount(ctx context.Context, postID uint) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&db.Like{}).Where("post_id = ?", postID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
