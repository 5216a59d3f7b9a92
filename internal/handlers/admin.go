package handlers

import (
	"errors"
	"net/http"
	"unicode/utf8"

	"myblog/internal/db"
	"myblog/internal/middleware"
	"myblog/internal/models"
	"myblog/internal/services"
	"myblog/internal/utils"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	comments   *services.CommentService
	categories *services.CategoryService
}

func NewAdminHandler(comments *services.CommentService, categories *services.CategoryService) *AdminHandler {
	return &AdminHandler{comments: comments, categories: categories}
}

// fail 把业务错误翻译成响应
func (h *AdminHandler) fail(c *gin.Context, err error) {
	var ve *services.ValidationError
	switch {
	case errors.Is(err, services.ErrNotFound):
		RenderError(c, http.StatusNotFound, "记录不存在")
	case errors.Is(err, services.ErrForbidden):
		RenderError(c, http.StatusForbidden, "没有权限执行该操作")
	case errors.As(err, &ve):
		RenderError(c, http.StatusBadRequest, ve.Error())
	default:
		RenderError(c, http.StatusInternalServerError, "操作失败")
	}
}

// ---------- 博客设置 ----------

func (h *AdminHandler) ShowSettings(c *gin.Context) {
	admin := c.MustGet(middleware.CheckAdminKey).(*models.Admin)
	Render(c, http.StatusOK, "admin/settings.html", gin.H{"Form": admin})
}

func (h *AdminHandler) UpdateSettings(c *gin.Context) {
	admin := c.MustGet(middleware.CheckAdminKey).(*models.Admin)

	name := c.PostForm("name")
	blogTitle := c.PostForm("blog_title")
	blogSubTitle := c.PostForm("blog_sub_title")
	about := c.PostForm("about")

	if name == "" || utf8.RuneCountInString(name) > 30 ||
		blogTitle == "" || utf8.RuneCountInString(blogTitle) > 60 ||
		utf8.RuneCountInString(blogSubTitle) > 100 {
		Render(c, http.StatusBadRequest, "admin/settings.html", gin.H{
			"Error": "请检查各项长度：姓名1-30，标题1-60，子标题不超过100",
			"Form":  admin,
		})
		return
	}

	if err := db.DB.Model(admin).Updates(map[string]interface{}{
		"name":           name,
		"blog_title":     blogTitle,
		"blog_sub_title": blogSubTitle,
		"about":          about,
	}).Error; err != nil {
		RenderError(c, http.StatusInternalServerError, "保存失败")
		return
	}

	InvalidateSharedContext()
	c.Redirect(http.StatusFound, "/")
}

// ---------- 文章管理 ----------

func (h *AdminHandler) ManagePost(c *gin.Context) {
	page := pageParam(c)
	perPage := pageSize()

	var total int64
	db.DB.Model(&models.Post{}).Count(&total)

	var posts []models.Post
	db.DB.Preload("Category").
		Order("created_at DESC").
		Limit(perPage).
		Offset((page - 1) * perPage).
		Find(&posts)

	Render(c, http.StatusOK, "admin/manage_post.html", gin.H{
		"Posts":       posts,
		"CurrentPage": page,
		"TotalPages":  totalPages(total, perPage),
	})
}

func (h *AdminHandler) validatePostForm(title string) string {
	if title == "" {
		return "标题不能为空"
	}
	if utf8.RuneCountInString(title) > 60 {
		return "标题长度不能超过60"
	}
	return ""
}

func (h *AdminHandler) ShowNewPost(c *gin.Context) {
	Render(c, http.StatusOK, "admin/new_post.html", nil)
}

func (h *AdminHandler) NewPost(c *gin.Context) {
	title := c.PostForm("title")
	body := c.PostForm("body")
	categoryID := utils.StringToUint(c.PostForm("category_id"))
	if categoryID == 0 {
		categoryID = models.DefaultCategoryID
	}

	if msg := h.validatePostForm(title); msg != "" {
		Render(c, http.StatusBadRequest, "admin/new_post.html", gin.H{"Error": msg})
		return
	}

	post := models.Post{
		Title:      title,
		Body:       body,
		CategoryID: categoryID,
		CanComment: true,
	}
	if err := db.DB.Create(&post).Error; err != nil {
		Render(c, http.StatusInternalServerError, "admin/new_post.html", gin.H{"Error": "发布失败"})
		return
	}

	InvalidatePostCache(post.ID)
	c.Redirect(http.StatusFound, postURL(post.ID))
}

func (h *AdminHandler) ShowEditPost(c *gin.Context) {
	postID := utils.StringToUint(c.Param("id"))

	var post models.Post
	if err := db.DB.First(&post, postID).Error; err != nil {
		RenderError(c, http.StatusNotFound, "文章不存在")
		return
	}

	Render(c, http.StatusOK, "admin/edit_post.html", gin.H{"Post": post})
}

func (h *AdminHandler) EditPost(c *gin.Context) {
	postID := utils.StringToUint(c.Param("id"))

	var post models.Post
	if err := db.DB.First(&post, postID).Error; err != nil {
		RenderError(c, http.StatusNotFound, "文章不存在")
		return
	}

	title := c.PostForm("title")
	body := c.PostForm("body")
	categoryID := utils.StringToUint(c.PostForm("category_id"))
	if categoryID == 0 {
		categoryID = post.CategoryID
	}

	if msg := h.validatePostForm(title); msg != "" {
		Render(c, http.StatusBadRequest, "admin/edit_post.html", gin.H{"Error": msg, "Post": post})
		return
	}

	post.Title = title
	post.Body = body
	post.CategoryID = categoryID
	if err := db.DB.Save(&post).Error; err != nil {
		RenderError(c, http.StatusInternalServerError, "保存失败")
		return
	}

	InvalidatePostCache(post.ID)
	c.Redirect(http.StatusFound, postURL(post.ID))
}

func (h *AdminHandler) DeletePost(c *gin.Context) {
	postID := utils.StringToUint(c.Param("id"))

	if err := h.comments.DeletePost(postID); err != nil {
		h.fail(c, err)
		return
	}

	InvalidatePostCache(postID)
	redirectBack(c, "/admin/post/manage")
}

// SetComment 切换文章的评论开关
func (h *AdminHandler) SetComment(c *gin.Context) {
	postID := utils.StringToUint(c.Param("id"))

	var post models.Post
	if err := db.DB.First(&post, postID).Error; err != nil {
		RenderError(c, http.StatusNotFound, "文章不存在")
		return
	}

	if err := h.comments.SetCommentPolicy(post.ID, !post.CanComment); err != nil {
		h.fail(c, err)
		return
	}

	InvalidatePostCache(post.ID)
	redirectBack(c, postURL(post.ID))
}

// ---------- 评论管理 ----------

func (h *AdminHandler) ManageComment(c *gin.Context) {
	filter := c.DefaultQuery("filter", services.FilterAll)
	page := pageParam(c)
	perPage := pageSize()

	comments, total, err := h.comments.AdminList(filter, page, perPage)
	if err != nil {
		RenderError(c, http.StatusInternalServerError, "评论加载失败")
		return
	}

	Render(c, http.StatusOK, "admin/manage_comment.html", gin.H{
		"Comments":    comments,
		"Filter":      filter,
		"CurrentPage": page,
		"TotalPages":  totalPages(total, perPage),
	})
}

func (h *AdminHandler) ApproveComment(c *gin.Context) {
	commentID := utils.StringToUint(c.Param("id"))

	var comment models.Comment
	if err := db.DB.First(&comment, commentID).Error; err != nil {
		RenderError(c, http.StatusNotFound, "评论不存在")
		return
	}

	if err := h.comments.Approve(comment.ID); err != nil {
		h.fail(c, err)
		return
	}

	InvalidatePostCache(comment.PostID)
	redirectBack(c, "/admin/comment/manage")
}

func (h *AdminHandler) DeleteComment(c *gin.Context) {
	commentID := utils.StringToUint(c.Param("id"))

	var comment models.Comment
	if err := db.DB.First(&comment, commentID).Error; err != nil {
		RenderError(c, http.StatusNotFound, "评论不存在")
		return
	}

	if err := h.comments.Delete(comment.ID); err != nil {
		h.fail(c, err)
		return
	}

	InvalidatePostCache(comment.PostID)
	redirectBack(c, "/admin/comment/manage")
}

// ---------- 分类管理 ----------

func (h *AdminHandler) ManageCategory(c *gin.Context) {
	categories, err := h.categories.List()
	if err != nil {
		RenderError(c, http.StatusInternalServerError, "分类加载失败")
		return
	}
	fillPostCounts(categories)
	Render(c, http.StatusOK, "admin/manage_category.html", gin.H{"AllCategories": categories})
}

// fillPostCounts 填充每个分类下的文章数
func fillPostCounts(categories []models.Category) {
	if len(categories) == 0 {
		return
	}

	type row struct {
		CategoryID uint
		Cnt        int
	}
	var rows []row
	db.DB.Model(&models.Post{}).
		Select("category_id, COUNT(*) as cnt").
		Group("category_id").
		Scan(&rows)

	counts := make(map[uint]int, len(rows))
	for _, r := range rows {
		counts[r.CategoryID] = r.Cnt
	}
	for i := range categories {
		categories[i].PostCount = counts[categories[i].ID]
	}
}

func (h *AdminHandler) ShowNewCategory(c *gin.Context) {
	Render(c, http.StatusOK, "admin/new_category.html", nil)
}

func (h *AdminHandler) NewCategory(c *gin.Context) {
	if _, err := h.categories.Create(c.PostForm("name")); err != nil {
		var ve *services.ValidationError
		if errors.As(err, &ve) {
			Render(c, http.StatusBadRequest, "admin/new_category.html", gin.H{"Error": ve.Error()})
			return
		}
		h.fail(c, err)
		return
	}

	InvalidateSharedContext()
	c.Redirect(http.StatusFound, "/admin/category/manage")
}

func (h *AdminHandler) ShowEditCategory(c *gin.Context) {
	categoryID := utils.StringToUint(c.Param("id"))

	var category models.Category
	if err := db.DB.First(&category, categoryID).Error; err != nil {
		RenderError(c, http.StatusNotFound, "分类不存在")
		return
	}
	if category.IsDefault() {
		RenderError(c, http.StatusForbidden, "默认分类不能编辑")
		return
	}

	Render(c, http.StatusOK, "admin/edit_category.html", gin.H{"Category": category})
}

func (h *AdminHandler) EditCategory(c *gin.Context) {
	categoryID := utils.StringToUint(c.Param("id"))

	if err := h.categories.Update(categoryID, c.PostForm("name")); err != nil {
		h.fail(c, err)
		return
	}

	InvalidateSharedContext()
	c.Redirect(http.StatusFound, "/admin/category/manage")
}

func (h *AdminHandler) DeleteCategory(c *gin.Context) {
	categoryID := utils.StringToUint(c.Param("id"))

	if err := h.categories.Delete(categoryID); err != nil {
		h.fail(c, err)
		return
	}

	InvalidateSharedContext()
	c.Redirect(http.StatusFound, "/admin/category/manage")
}

// ---------- 链接管理 ----------

func (h *AdminHandler) ManageLink(c *gin.Context) {
	var links []models.Link
	db.DB.Order("id ASC").Find(&links)
	Render(c, http.StatusOK, "admin/manage_link.html", gin.H{"AllLinks": links})
}

func validateLinkForm(name, linkURL string) string {
	if name == "" || utf8.RuneCountInString(name) > 30 {
		return "链接名长度应在1到30之间"
	}
	if linkURL == "" || utf8.RuneCountInString(linkURL) > 100 {
		return "URL长度应在1到100之间"
	}
	return ""
}

func (h *AdminHandler) ShowNewLink(c *gin.Context) {
	Render(c, http.StatusOK, "admin/new_link.html", nil)
}

func (h *AdminHandler) NewLink(c *gin.Context) {
	name := c.PostForm("name")
	linkURL := c.PostForm("url")

	if msg := validateLinkForm(name, linkURL); msg != "" {
		Render(c, http.StatusBadRequest, "admin/new_link.html", gin.H{"Error": msg})
		return
	}

	link := models.Link{Name: name, URL: linkURL}
	if err := db.DB.Create(&link).Error; err != nil {
		RenderError(c, http.StatusInternalServerError, "创建失败")
		return
	}

	InvalidateSharedContext()
	c.Redirect(http.StatusFound, "/admin/link/manage")
}

func (h *AdminHandler) ShowEditLink(c *gin.Context) {
	linkID := utils.StringToUint(c.Param("id"))

	var link models.Link
	if err := db.DB.First(&link, linkID).Error; err != nil {
		RenderError(c, http.StatusNotFound, "链接不存在")
		return
	}

	Render(c, http.StatusOK, "admin/edit_link.html", gin.H{"Link": link})
}

func (h *AdminHandler) EditLink(c *gin.Context) {
	linkID := utils.StringToUint(c.Param("id"))

	var link models.Link
	if err := db.DB.First(&link, linkID).Error; err != nil {
		RenderError(c, http.StatusNotFound, "链接不存在")
		return
	}

	name := c.PostForm("name")
	linkURL := c.PostForm("url")
	if msg := validateLinkForm(name, linkURL); msg != "" {
		Render(c, http.StatusBadRequest, "admin/edit_link.html", gin.H{"Error": msg, "Link": link})
		return
	}

	link.Name = name
	link.URL = linkURL
	if err := db.DB.Save(&link).Error; err != nil {
		RenderError(c, http.StatusInternalServerError, "保存失败")
		return
	}

	InvalidateSharedContext()
	c.Redirect(http.StatusFound, "/admin/link/manage")
}

func (h *AdminHandler) DeleteLink(c *gin.Context) {
	linkID := utils.StringToUint(c.Param("id"))

	var link models.Link
	if err := db.DB.First(&link, linkID).Error; err != nil {
		RenderError(c, http.StatusNotFound, "链接不存在")
		return
	}

	db.DB.Delete(&link)

	InvalidateSharedContext()
	c.Redirect(http.StatusFound, "/admin/link/manage")
}
