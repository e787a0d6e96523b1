package service

import (
	"math"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mileusna/useragent"
	"github.com/techblog/internal/db"
)

const (
	referrerDirect  = "Direct"
	referrerUnknown = "Unknown"
)

var postSlugPattern = regexp.MustCompile(`/posts/([^/?#]+)`)

// ClassifyDevice 根据 User-Agent 粗略判断访客设备类型。
// 空串、非法 UTF-8 或无法识别的字符串返回 unknown。
func ClassifyDevice(rawUA string) string {
	trimmed := strings.TrimSpace(rawUA)
	if trimmed == "" || !utf8.ValidString(trimmed) {
		return db.DeviceUnknown
	}

	ua := useragent.Parse(trimmed)
	switch {
	case ua.Mobile:
		return db.DeviceMobile
	case ua.Tablet:
		return db.DeviceTablet
	case ua.Desktop:
		return db.DeviceDesktop
	// 无法解析时 useragent 会把整串原样放进 Name。
	case ua.Bot, ua.OS != "", ua.Name != "" && ua.Name != trimmed:
		return db.DeviceOther
	default:
		return db.DeviceUnknown
	}
}

// ExtractPostSlug 从 /posts/{slug} 形式的路径中取出 slug，查询串与锚点不属于 slug。
func ExtractPostSlug(urlPath string) (string, bool) {
	if !strings.Contains(urlPath, "/posts/") {
		return "", false
	}
	match := postSlugPattern.FindStringSubmatch(urlPath)
	if len(match) < 2 || match[1] == "" {
		return "", false
	}
	return match[1], true
}

// CleanReferrer 将来源 URL 归一为去掉 www. 前缀的域名。
func CleanReferrer(referrer string) string {
	if strings.TrimSpace(referrer) == "" {
		return referrerDirect
	}

	parsed, err := url.Parse(strings.TrimSpace(referrer))
	if err != nil {
		return referrerUnknown
	}

	domain := strings.TrimPrefix(parsed.Host, "www.")
	if domain == "" {
		return referrerUnknown
	}
	return domain
}

// percentage 计算占比并保留两位小数，total 为 0 时返回 0。
func percentage(count, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(count)/float64(total)*100*100) / 100
}

// dayBounds 返回 t 所在自然日（按 t 的时区）的 UTC 起止时间，区间左闭右开。
func dayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start.UTC(), start.AddDate(0, 0, 1).UTC()
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
