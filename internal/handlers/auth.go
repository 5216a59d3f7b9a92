package handlers

import (
	"net/http"

	"myblog/internal/db"
	"myblog/internal/middleware"
	"myblog/internal/models"
	"myblog/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct{}

func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

func (h *AuthHandler) ShowLogin(c *gin.Context) {
	// 已登录就不再展示登录页
	if _, exists := c.Get(middleware.CheckAdminKey); exists {
		redirectBack(c, "/")
		return
	}
	Render(c, http.StatusOK, "auth/login.html", nil)
}

func (h *AuthHandler) Login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	// 博客只有一个管理员账号
	var admin models.Admin
	if err := db.DB.First(&admin).Error; err != nil {
		Render(c, http.StatusUnauthorized, "auth/login.html", gin.H{"Error": "账户不存在"})
		return
	}

	if username != admin.Username || !utils.CheckPasswordHash(password, admin.PasswordHash) {
		Render(c, http.StatusUnauthorized, "auth/login.html", gin.H{"Error": "用户名或密码不正确"})
		return
	}

	session := sessions.Default(c)
	session.Set("admin_id", admin.ID)
	if c.PostForm("remember") != "" {
		session.Options(sessions.Options{MaxAge: 30 * 24 * 60 * 60, Path: "/"})
	}
	session.Save()

	redirectBack(c, "/")
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Delete("admin_id")
	session.Save()
	redirectBack(c, "/")
}
