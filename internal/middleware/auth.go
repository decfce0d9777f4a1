// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"qa-smart-go/internal/model"
	"qa-smart-go/internal/service"
	"qa-smart-go/pkg/log"
	"qa-smart-go/pkg/token"
)

const (
	ctxUserKey   = "user"
	ctxClaimsKey = "claims"
	bearerPrefix = "Bearer "
)

var (
	errMissingHeader = errors.New("请求未包含授权头")
	errBadHeader     = errors.New("无效的授权头格式")
	errBadToken      = errors.New("无效或已过期的 token")
	errRevoked       = errors.New("token 已登出")
	errUnknownUser   = errors.New("用户不存在")
	errUnavailable   = errors.New("认证服务暂不可用")
)

// AuthMiddleware 创建一个 Gin 中间件，用于 JWT 认证。
// 它会从请求头中提取 token，验证其有效性，并将完整的 User 对象存入 Gin 的上下文中。
func AuthMiddleware(jwtManager *token.JWTManager, userService service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := authenticate(c, jwtManager, userService); err != nil {
			abortAuth(c, err)
			return
		}
		c.Next()
	}
}

// OptionalAuthMiddleware 与 AuthMiddleware 相同，但没有授权头时以匿名身份继续。
// 携带了授权头却校验失败时仍然返回 401。
func OptionalAuthMiddleware(jwtManager *token.JWTManager, userService service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}
		if err := authenticate(c, jwtManager, userService); err != nil {
			abortAuth(c, err)
			return
		}
		c.Next()
	}
}

// 黑名单无法确认时返回 503，其余认证失败返回 401。
func abortAuth(c *gin.Context, err error) {
	status := http.StatusUnauthorized
	if errors.Is(err, errUnavailable) {
		status = http.StatusServiceUnavailable
	}
	c.AbortWithStatusJSON(status, gin.H{"code": status, "message": err.Error()})
}

// CurrentUser 返回认证中间件注入的用户，匿名请求返回 nil。
func CurrentUser(c *gin.Context) *model.User {
	v, exists := c.Get(ctxUserKey)
	if !exists {
		return nil
	}
	user, _ := v.(*model.User)
	return user
}

// BearerToken 返回请求头中的原始 token。
func BearerToken(c *gin.Context) string {
	return strings.TrimPrefix(c.GetHeader("Authorization"), bearerPrefix)
}

func authenticate(c *gin.Context, jwtManager *token.JWTManager, userService service.UserService) error {
	// 从 Authorization 请求头中获取 token
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return errMissingHeader
	}
	// Token 以 "Bearer <token>" 的形式提供，需要提取出 token 本身
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return errBadHeader
	}
	tokenString := strings.TrimPrefix(authHeader, bearerPrefix)

	claims, err := jwtManager.VerifyToken(tokenString)
	if err != nil || claims.IsRefresh() {
		return errBadToken
	}

	revoked, err := userService.IsRevoked(c.Request.Context(), tokenString)
	if err != nil {
		// 无法确认 token 是否已登出时拒绝请求
		log.Warnf("检查 token 黑名单失败: %v", err)
		return errUnavailable
	}
	if revoked {
		return errRevoked
	}

	// 使用 claims 中的用户名从数据库获取完整的用户信息
	user, err := userService.GetProfile(claims.Username)
	if err != nil {
		// 如果根据 token 中的用户信息无法找到用户，说明该用户可能已被删除
		return errUnknownUser
	}

	// 将完整的 User 对象存储在 context 中，供后续处理函数使用
	c.Set(ctxUserKey, user)
	c.Set(ctxClaimsKey, claims)
	return nil
}
