package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"myblog/internal/db"
	"myblog/internal/middleware"
	"myblog/internal/models"
	"myblog/internal/utils"

	"github.com/gin-gonic/gin"
)

const sharedContextKey = "ctx:shared"

// sharedContext 各页面公用的侧边栏数据：博客信息、分类、链接。
// 每个请求都要用，走本地缓存，写操作负责失效。
type sharedContext struct {
	Blog       models.Admin
	Categories []models.Category
	Links      []models.Link
}

func loadSharedContext() sharedContext {
	if cached := utils.GetCache().Get(sharedContextKey); cached != nil {
		if ctx, ok := cached.(sharedContext); ok {
			return ctx
		}
	}

	var ctx sharedContext
	db.DB.First(&ctx.Blog)
	db.DB.Order("name ASC").Find(&ctx.Categories)
	db.DB.Order("id ASC").Find(&ctx.Links)

	utils.GetCache().Set(sharedContextKey, ctx, 1*time.Minute)
	return ctx
}

// InvalidateSharedContext 设置、分类、链接变更后调用
func InvalidateSharedContext() {
	utils.GetCache().Delete(sharedContextKey)
}

// Render helper to inject common variables like blog meta and login state.
// obj 可能来自页面缓存并被并发请求共享，请求级字段只写进本地副本
func Render(c *gin.Context, code int, name string, obj gin.H) {
	data := make(gin.H, len(obj)+7)
	for k, v := range obj {
		data[k] = v
	}

	shared := loadSharedContext()
	data["Blog"] = shared.Blog
	data["Categories"] = shared.Categories
	data["Links"] = shared.Links

	if admin, exists := c.Get(middleware.CheckAdminKey); exists {
		data["CurrentAdmin"] = admin
		data["LoggedIn"] = true
	} else {
		data["LoggedIn"] = false
	}

	if theme, err := c.Cookie("theme"); err == nil {
		data["Theme"] = theme
	} else {
		data["Theme"] = DefaultTheme
	}
	data["CurrentPath"] = c.Request.URL.Path

	c.HTML(code, name, data)
}

// RenderError 错误页
func RenderError(c *gin.Context, code int, message string) {
	Render(c, code, "error.html", gin.H{"Error": message})
}

func postURL(postID uint) string {
	return fmt.Sprintf("/post/%d", postID)
}

// pageSize 每页条数，文章和评论列表共用
func pageSize() int {
	if v := os.Getenv("BLOG_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 10
}

// pageParam 解析 ?page= 参数，非法值一律当第一页
func pageParam(c *gin.Context) int {
	page := utils.StringToInt(c.Query("page"))
	if page < 1 {
		return 1
	}
	return page
}

// totalPages 计算总页数，至少为 1
func totalPages(total int64, perPage int) int {
	pages := int((total + int64(perPage) - 1) / int64(perPage))
	if pages == 0 {
		return 1
	}
	return pages
}

// isSafeRedirect 只允许跳回本站，防开放重定向
func isSafeRedirect(c *gin.Context, target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	if u.Scheme == "" && u.Host == "" {
		return len(target) > 0 && target[0] == '/'
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host == c.Request.Host
}

// redirectBack 跳回 next 参数或 Referer 指定的页面，都没有则回退默认页
func redirectBack(c *gin.Context, fallback string) {
	for _, target := range []string{c.Query("next"), c.Request.Referer()} {
		if target == "" {
			continue
		}
		if isSafeRedirect(c, target) {
			c.Redirect(http.StatusFound, target)
			return
		}
	}
	c.Redirect(http.StatusFound, fallback)
}
