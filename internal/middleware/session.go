package middleware

import (
	"log"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	sessionKey    = "sid"
	sessionCtxKey = "session_id"
)

// SessionID 保证每个请求都带有会话 ID，首次访问时生成并写回 Cookie
// 依赖 sessions.Sessions 中间件
func SessionID() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		id, _ := session.Get(sessionKey).(string)
		if id == "" {
			id = uuid.NewString()
			session.Set(sessionKey, id)
			if err := session.Save(); err != nil {
				log.Printf("[Session] 保存会话失败: %v", err)
			}
		}
		c.Set(sessionCtxKey, id)
		c.Next()
	}
}

// GetSessionID 从上下文获取会话 ID
func GetSessionID(c *gin.Context) string {
	if id, exists := c.Get(sessionCtxKey); exists {
		return id.(string)
	}
	return ""
}
