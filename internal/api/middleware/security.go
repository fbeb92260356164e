package middleware

import (
	"github.com/gin-gonic/gin"
)

// apiSecurityHeaders 所有响应统一附加的安全头
// 响应只有 JSON 与附件下载（xlsx/ics），浏览器无需从本服务加载脚本、样式或嵌入页面，
// 因此 CSP 使用 default-src 'none'，并禁止被任何页面以 frame 方式嵌入
var apiSecurityHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "no-referrer"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Cache-Control", "no-store"},
}

// SecurityHeaders 安全 HTTP 头中间件
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		for _, kv := range apiSecurityHeaders {
			h.Set(kv[0], kv[1])
		}
		c.Next()
	}
}
