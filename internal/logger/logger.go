package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// TraceIDKey 是 gin.Context 与 request context 中保存链路 ID 的键。
const TraceIDKey = "trace_id"

type traceIDContextKey struct{}

// Init 按配置构造全局 slog Logger，并返回该实例。
// format 取值 json/text，其余值回退到 json。
func Init(level, format string) *slog.Logger {
	return New(os.Stdout, level, format)
}

// New 构造写入 w 的 Logger 并设置为默认 Logger。
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var h slog.Handler
	if format == "text" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}

	l := slog.New(&ContextHandler{Handler: h})
	slog.SetDefault(l)
	return l
}

// ParseLevel 将字符串级别映射为 slog.Level，未知值按 info 处理。
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithTraceID 在 ctx 中写入链路 ID。
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDContextKey{}, traceID)
}

// TraceID 从 ctx 中读取链路 ID，不存在时返回空字符串。
func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(traceIDContextKey{}).(string)
	return id
}

// ContextHandler 包装器，用于从 ctx 中提取 trace_id 并附加到每条日志。
type ContextHandler struct {
	slog.Handler
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if traceID := TraceID(ctx); traceID != "" {
		r.AddAttrs(slog.String(TraceIDKey, traceID))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithGroup(name)}
}
