package middleware

import (
	"net/http"
	"net/url"

	"myblog/internal/db"
	"myblog/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const CheckAdminKey = "admin"

// AuthRequired 管理后台路由的保护，未登录跳转登录页并带上回跳地址
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(CheckAdminKey); !exists {
			next := url.QueryEscape(c.Request.URL.RequestURI())
			c.Redirect(http.StatusFound, "/login?next="+next)
			c.Abort()
			return
		}
		c.Next()
	}
}

// LoadAdmin 从会话恢复管理员身份并放入请求上下文
func LoadAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		adminID := session.Get("admin_id")

		if adminID != nil {
			var admin models.Admin
			if err := db.DB.First(&admin, adminID).Error; err == nil {
				c.Set(CheckAdminKey, &admin)
			}
		}
		c.Next()
	}
}
