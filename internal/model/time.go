package model

import (
	"fmt"
	"strings"
	"time"
)

// LocalTime 以 "YYYY-MM-DD HH:MM:SS" 格式（服务器本地时区）序列化时间，用于列表类接口。
type LocalTime time.Time

const timeFormat = "2006-01-02 15:04:05"

// MarshalJSON 零值输出 null。
func (t LocalTime) MarshalJSON() ([]byte, error) {
	if time.Time(t).IsZero() {
		return []byte("null"), nil
	}
	return []byte(fmt.Sprintf("%q", time.Time(t).Local().Format(timeFormat))), nil
}

// UnmarshalJSON 接受 MarshalJSON 的输出，null 或空串解析为零值。
func (t *LocalTime) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		*t = LocalTime(time.Time{})
		return nil
	}
	parsed, err := time.ParseInLocation(timeFormat, raw, time.Local)
	if err != nil {
		return fmt.Errorf("invalid time %q: %w", raw, err)
	}
	*t = LocalTime(parsed)
	return nil
}

func (t LocalTime) String() string {
	return time.Time(t).Local().Format(timeFormat)
}
