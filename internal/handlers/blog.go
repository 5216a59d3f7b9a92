package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"myblog/internal/db"
	"myblog/internal/middleware"
	"myblog/internal/models"
	"myblog/internal/services"
	"myblog/internal/utils"

	"github.com/gin-gonic/gin"
)

// 可选主题，键为 cookie 值
var Themes = map[string]string{
	"perfect_blue": "Perfect Blue",
	"black_swan":   "Black Swan",
}

const DefaultTheme = "perfect_blue"

type BlogHandler struct {
	comments *services.CommentService
}

func NewBlogHandler(comments *services.CommentService) *BlogHandler {
	return &BlogHandler{comments: comments}
}

// fillCommentCounts 批量填充文章的可见评论数
func fillCommentCounts(posts []models.Post) {
	if len(posts) == 0 {
		return
	}

	postIDs := make([]uint, len(posts))
	for i, p := range posts {
		postIDs[i] = p.ID
	}

	type CountResult struct {
		PostID uint
		Count  int
	}
	var results []CountResult
	db.DB.Model(&models.Comment{}).
		Select("post_id, COUNT(*) as count").
		Where("post_id IN ? AND reviewed = ?", postIDs, true).
		Group("post_id").
		Scan(&results)

	countMap := make(map[uint]int)
	for _, r := range results {
		countMap[r.PostID] = r.Count
	}

	for i := range posts {
		posts[i].CommentCount = countMap[posts[i].ID]
	}
}

func postCacheKey(postID uint) string {
	return fmt.Sprintf("blog:post:%d", postID)
}

// InvalidatePostCache 文章或其评论变更后失效详情页和首页缓存
func InvalidatePostCache(postID uint) {
	utils.GetCache().Delete(postCacheKey(postID))
	utils.GetCache().Delete("blog:index:page:1")
}

func (h *BlogHandler) Index(c *gin.Context) {
	page := pageParam(c)

	// 只缓存首页第一页，深页直接查库，失效时不用追着每一页删
	cacheable := page == 1

	cacheKey := "blog:index:page:1"
	if cacheable {
		if cachedData := utils.GetCache().Get(cacheKey); cachedData != nil {
			if hData, ok := cachedData.(gin.H); ok {
				Render(c, http.StatusOK, "blog/index.html", hData)
				return
			}
		}
	}

	perPage := pageSize()

	var total int64
	db.DB.Model(&models.Post{}).Count(&total)

	var posts []models.Post
	db.DB.Preload("Category").
		Order("created_at DESC").
		Limit(perPage).
		Offset((page - 1) * perPage).
		Find(&posts)

	fillCommentCounts(posts)

	renderData := gin.H{
		"Posts":       posts,
		"CurrentPage": page,
		"TotalPages":  totalPages(total, perPage),
	}

	if cacheable {
		utils.GetCache().Set(cacheKey, renderData, 1*time.Minute)
	}

	Render(c, http.StatusOK, "blog/index.html", renderData)
}

func (h *BlogHandler) About(c *gin.Context) {
	var admin models.Admin
	db.DB.First(&admin)
	Render(c, http.StatusOK, "blog/about.html", gin.H{
		"About": utils.RenderMarkdown(admin.About),
	})
}

func (h *BlogHandler) ShowCategory(c *gin.Context) {
	categoryID := utils.StringToUint(c.Param("id"))

	var category models.Category
	if err := db.DB.First(&category, categoryID).Error; err != nil {
		RenderError(c, http.StatusNotFound, "分类不存在")
		return
	}

	page := pageParam(c)
	perPage := pageSize()

	var total int64
	db.DB.Model(&models.Post{}).Where("category_id = ?", category.ID).Count(&total)

	var posts []models.Post
	db.DB.Preload("Category").
		Where("category_id = ?", category.ID).
		Order("created_at DESC").
		Limit(perPage).
		Offset((page - 1) * perPage).
		Find(&posts)

	fillCommentCounts(posts)

	Render(c, http.StatusOK, "blog/category.html", gin.H{
		"Category":    category,
		"Posts":       posts,
		"CurrentPage": page,
		"TotalPages":  totalPages(total, perPage),
	})
}

// renderPost 文章详情页，评论表单出错时带上错误回显
func (h *BlogHandler) renderPost(c *gin.Context, postID uint, code int, extra gin.H) {
	cacheable := code == http.StatusOK && len(extra) == 0 &&
		c.Query("page") == "" && c.Query("reply") == ""

	cacheKey := postCacheKey(postID)
	if cacheable {
		if cachedData := utils.GetCache().Get(cacheKey); cachedData != nil {
			if hData, ok := cachedData.(gin.H); ok {
				Render(c, http.StatusOK, "blog/post.html", hData)
				return
			}
		}
	}

	var post models.Post
	if err := db.DB.Preload("Category").First(&post, postID).Error; err != nil {
		RenderError(c, http.StatusNotFound, "文章不存在")
		return
	}

	page := pageParam(c)
	perPage := pageSize()
	comments, total, err := h.comments.VisibleComments(post.ID, page, perPage)
	if err != nil {
		RenderError(c, http.StatusInternalServerError, "评论加载失败")
		return
	}

	renderData := gin.H{
		"Post":        post,
		"PostContent": utils.RenderMarkdown(post.Body),
		"Comments":    comments,
		"CurrentPage": page,
		"TotalPages":  totalPages(total, perPage),
	}

	// 点击"回复"后表单上方显示被回复人
	if replyID := utils.StringToUint(c.Query("reply")); replyID != 0 {
		var replied models.Comment
		if err := db.DB.First(&replied, replyID).Error; err == nil && replied.PostID == post.ID {
			renderData["RepliedComment"] = replied
		}
	}

	for k, v := range extra {
		renderData[k] = v
	}

	if cacheable {
		utils.GetCache().Set(cacheKey, renderData, 5*time.Minute)
	}

	Render(c, code, "blog/post.html", renderData)
}

func (h *BlogHandler) ShowPost(c *gin.Context) {
	postID := utils.StringToUint(c.Param("id"))
	h.renderPost(c, postID, http.StatusOK, nil)
}

// CreateComment 评论提交入口，?reply= 带父评论时作为回复
func (h *BlogHandler) CreateComment(c *gin.Context) {
	postID := utils.StringToUint(c.Param("id"))

	var in services.SubmitCommentInput
	if err := c.ShouldBind(&in); err != nil {
		h.renderPost(c, postID, http.StatusBadRequest, gin.H{
			"FormErrors": map[string]string{"form": "表单解析失败，请重试"},
			"Form":       in,
		})
		return
	}

	var repliedID *uint
	if replyID := utils.StringToUint(c.Query("reply")); replyID != 0 {
		repliedID = &replyID
	}

	_, asAdmin := c.Get(middleware.CheckAdminKey)

	comment, err := h.comments.Submit(postID, in, repliedID, asAdmin)
	if err != nil {
		var ve *services.ValidationError
		switch {
		case errors.As(err, &ve):
			h.renderPost(c, postID, http.StatusBadRequest, gin.H{
				"FormErrors": ve.Fields,
				"Form":       in,
			})
		case errors.Is(err, services.ErrNotFound):
			RenderError(c, http.StatusNotFound, "文章或评论不存在")
		default:
			RenderError(c, http.StatusInternalServerError, "评论提交失败")
		}
		return
	}

	InvalidatePostCache(postID)

	c.Redirect(http.StatusFound, fmt.Sprintf("/post/%d#comment-%d", postID, comment.ID))
}

// ReplyComment 回复跳转：带上 reply 参数回到文章页的评论表单
func (h *BlogHandler) ReplyComment(c *gin.Context) {
	commentID := utils.StringToUint(c.Param("id"))

	var comment models.Comment
	if err := db.DB.Preload("Post").First(&comment, commentID).Error; err != nil {
		RenderError(c, http.StatusNotFound, "评论不存在")
		return
	}

	_, asAdmin := c.Get(middleware.CheckAdminKey)
	if !comment.Post.CanComment && !asAdmin {
		c.Redirect(http.StatusFound, fmt.Sprintf("/post/%d", comment.PostID))
		return
	}

	c.Redirect(http.StatusFound,
		fmt.Sprintf("/post/%d?reply=%d#comment-form", comment.PostID, comment.ID))
}

// ChangeTheme 换主题，cookie 存 30 天
func (h *BlogHandler) ChangeTheme(c *gin.Context) {
	name := c.Param("name")
	if _, ok := Themes[name]; !ok {
		RenderError(c, http.StatusNotFound, "主题不存在")
		return
	}
	c.SetCookie("theme", name, 30*24*60*60, "/", "", false, false)
	redirectBack(c, "/")
}
