package logger

import (
	"log/slog"
	"time"
)

// Error records err under "error". A nil error yields an empty Attr, which slog drops.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

func NotificationID(id string) slog.Attr {
	return slog.String("notification_id", id)
}

func ConnectionID(id string) slog.Attr {
	return slog.String("connection_id", id)
}

func SiteID(id string) slog.Attr {
	return slog.String("site_id", id)
}

// UserID skips empty ids.
func UserID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("user_id", id)
}

func Channel[T ~string](ch T) slog.Attr {
	return slog.String("channel", string(ch))
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}

func Event(name string) slog.Attr {
	return slog.String("event", name)
}

func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

func Count(key string, n int) slog.Attr {
	return slog.Int(key, n)
}
