package db

import "time"

// 设备类型取值。
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
	DeviceOther   = "other"
	DeviceUnknown = "unknown"
)

// StatDateLayout 是 SiteStatistic.Date 的存储格式。
const StatDateLayout = "2006-01-02"

// PageView 记录一次页面访问，写入后不再修改。
type PageView struct {
	ID         uint      `gorm:"primaryKey"`
	PostID     *uint     `gorm:"index"`
	URLPath    string    `gorm:"size:500;not null;index"`
	IPAddress  *string   `gorm:"size:45"`
	UserAgent  *string   `gorm:"type:text"`
	Referrer   *string   `gorm:"size:1000"`
	SessionID  *string   `gorm:"size:255;index"`
	Country    *string   `gorm:"size:100"`
	City       *string   `gorm:"size:100"`
	DeviceType *string   `gorm:"size:50"`
	CreatedAt  time.Time `gorm:"index"`
}

// TableName 指定自定义表名。
func (PageView) TableName() string {
	return "page_views"
}

// SiteStatistic 按自然日保存的站点汇总快照，每次记录访问后整体重算。
type SiteStatistic struct {
	ID             uint   `gorm:"primaryKey"`
	Date           string `gorm:"size:10;uniqueIndex;not null"`
	TotalViews     int64  `gorm:"default:0"`
	UniqueVisitors int64  `gorm:"default:0"`
	PostsPublished int64  `gorm:"default:0"`
	TotalPosts     int64  `gorm:"default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName 指定自定义表名。
func (SiteStatistic) TableName() string {
	return "site_statistics"
}

// PopularPost 预留的按日文章热度表，目前没有任何写入路径。
type PopularPost struct {
	ID          uint   `gorm:"primaryKey"`
	PostID      uint   `gorm:"index;not null"`
	Date        string `gorm:"size:10;index;not null"`
	ViewsCount  int64  `gorm:"default:0"`
	UniqueViews int64  `gorm:"default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName 指定自定义表名。
func (PopularPost) TableName() string {
	return "popular_posts"
}
