// Package middleware 存放 Gin 框架的中间件。
package middleware

import (
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"qa-smart-go/pkg/log"
)

// maxLoggedBody 是日志中记录的请求/响应体的最大长度。
const maxLoggedBody = 2048

// 这些接口的请求或响应中带有密码或 token，不记录 body。
var redactedSuffixes = []string{"/users/login", "/users/register", "/auth/refreshToken"}

// bodyLogWriter 用于捕获响应体
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

// Write 实现了 io.Writer 接口，将响应写入 gin.ResponseWriter 和一个内部的 buffer
func (w bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// RequestLogger 记录每个请求的方法、路径、状态码、耗时、调用者与（截断后的）请求/响应体。
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		// 读取并重新缓存请求体，后续处理函数仍可正常读取
		var requestBody []byte
		if c.Request.Body != nil {
			requestBody, _ = io.ReadAll(c.Request.Body)
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))

		blw := &bodyLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		path := c.Request.URL.Path
		reqLog, respLog := truncate(string(requestBody)), truncate(blw.body.String())
		if redacted(path) {
			reqLog, respLog = "[redacted]", "[redacted]"
		}
		caller := "anonymous"
		if u := CurrentUser(c); u != nil {
			caller = u.Username
		}

		log.Infow("HTTP Request Log",
			"statusCode", c.Writer.Status(),
			"latency", time.Since(startTime).String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", path,
			"ajax", c.GetHeader("X-Requested-With") == "XMLHttpRequest",
			"user", caller,
			"requestBody", reqLog,
			"responseBody", respLog,
		)
	}
}

func redacted(path string) bool {
	for _, suffix := range redactedSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

func truncate(s string) string {
	if len(s) <= maxLoggedBody {
		return s
	}
	return s[:maxLoggedBody] + "...(truncated)"
}
