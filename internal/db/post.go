package db

import (
	"time"

	"gorm.io/gorm"
)

const (
	PostStatusDraft     = "draft"
	PostStatusPublished = "published"
)

// Post 定义了文章模型
type Post struct {
	gorm.Model
	Title       string `gorm:"size:200;not null"`
	Slug        string `gorm:"size:200;uniqueIndex;not null"`
	Content     string `gorm:"type:text;not null"`
	Excerpt     string `gorm:"type:text"`
	Status      string `gorm:"size:20;index;default:draft"`
	UserID      uint
	PublishedAt *time.Time `gorm:"index"`
}

// IsPublished 判断文章是否处于可公开访问的状态。
func (p Post) IsPublished() bool {
	return p.Status == PostStatusPublished && p.PublishedAt != nil
}

// Like 记录访客对文章的点赞。
type Like struct {
	ID        uint   `gorm:"primaryKey"`
	PostID    uint   `gorm:"index;not null"`
	SessionID string `gorm:"size:255;index"`
	IPAddress string `gorm:"size:45"`
	CreatedAt time.Time
}

// TableName 指定自定义表名。
func (Like) TableName() string {
	return "likes"
}
