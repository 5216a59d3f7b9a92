package main

import (
	"html/template"
	"log"
	"os"
	"path/filepath"
	"time"

	"myblog/internal/db"
	"myblog/internal/handlers"
	"myblog/internal/middleware"
	"myblog/internal/services"

	"github.com/gin-contrib/multitemplate"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, finding env vars from system")
	}

	// Initialize Database
	db.Init()

	// Initialize Gin
	r := gin.Default()

	// Setup Sessions
	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		secret = "secret_key_change_me"
	}
	store := cookie.NewStore([]byte(secret))
	r.Use(sessions.Sessions("myblog_session", store))

	// Load Templates using Multitemplate to avoid collision and allow handler names
	r.HTMLRender = loadTemplates("./web/templates")

	// Static Assets
	r.Static("/static", "./web/static")

	// Middleware
	r.Use(middleware.LoadAdmin())

	// Services
	mailService := services.NewMailService()
	commentService := services.NewCommentService(db.DB, mailService, mailService.OwnerTo)
	categoryService := services.NewCategoryService(db.DB)

	// Handlers
	blogHandler := handlers.NewBlogHandler(commentService)
	adminHandler := handlers.NewAdminHandler(commentService, categoryService)
	authHandler := handlers.NewAuthHandler()

	// Public Routes
	r.GET("/", blogHandler.Index)
	r.GET("/about", blogHandler.About)
	r.GET("/category/:id", blogHandler.ShowCategory)
	r.GET("/post/:id", blogHandler.ShowPost)
	r.POST("/post/:id/comment", blogHandler.CreateComment)
	r.GET("/reply/comment/:id", blogHandler.ReplyComment)
	r.GET("/change-theme/:name", blogHandler.ChangeTheme)

	r.GET("/login", authHandler.ShowLogin)
	r.POST("/login", authHandler.Login)
	r.GET("/logout", authHandler.Logout)

	// Admin Routes
	admin := r.Group("/admin")
	admin.Use(middleware.AuthRequired())
	{
		admin.GET("/settings", adminHandler.ShowSettings)
		admin.POST("/settings", adminHandler.UpdateSettings)

		admin.GET("/post/manage", adminHandler.ManagePost)
		admin.GET("/post/new", adminHandler.ShowNewPost)
		admin.POST("/post/new", adminHandler.NewPost)
		admin.GET("/post/:id/edit", adminHandler.ShowEditPost)
		admin.POST("/post/:id/edit", adminHandler.EditPost)
		admin.POST("/post/:id/delete", adminHandler.DeletePost)
		admin.POST("/post/:id/set-comment", adminHandler.SetComment)

		admin.GET("/comment/manage", adminHandler.ManageComment)
		admin.POST("/comment/:id/approve", adminHandler.ApproveComment)
		admin.POST("/comment/:id/delete", adminHandler.DeleteComment)

		admin.GET("/category/manage", adminHandler.ManageCategory)
		admin.GET("/category/new", adminHandler.ShowNewCategory)
		admin.POST("/category/new", adminHandler.NewCategory)
		admin.GET("/category/:id/edit", adminHandler.ShowEditCategory)
		admin.POST("/category/:id/edit", adminHandler.EditCategory)
		admin.POST("/category/:id/delete", adminHandler.DeleteCategory)

		admin.GET("/link/manage", adminHandler.ManageLink)
		admin.GET("/link/new", adminHandler.ShowNewLink)
		admin.POST("/link/new", adminHandler.NewLink)
		admin.GET("/link/:id/edit", adminHandler.ShowEditLink)
		admin.POST("/link/:id/edit", adminHandler.EditLink)
		admin.POST("/link/:id/delete", adminHandler.DeleteLink)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("MyBlog server starting on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}

func loadTemplates(templatesDir string) multitemplate.Renderer {
	r := multitemplate.NewRenderer()

	layouts, err := filepath.Glob(templatesDir + "/layouts/*.html")
	if err != nil {
		panic(err)
	}

	includes, err := filepath.Glob(templatesDir + "/includes/*.html")
	if err != nil {
		panic(err)
	}

	// Helper to assemble files
	assemble := func(view string) []string {
		files := make([]string, 0)
		files = append(files, layouts...)
		files = append(files, includes...)
		files = append(files, view)
		return files
	}

	// FuncMap
	funcMap := template.FuncMap{
		"add": func(a, b int) int {
			return a + b
		},
		"formatTime": func(t time.Time) string {
			return t.Format("2006-01-02 15:04")
		},
		"safeHTML": func(s string) template.HTML {
			return template.HTML(s)
		},
	}

	// Blog
	r.AddFromFilesFuncs("blog/index.html", funcMap, assemble(templatesDir+"/views/blog/index.html")...)
	r.AddFromFilesFuncs("blog/about.html", funcMap, assemble(templatesDir+"/views/blog/about.html")...)
	r.AddFromFilesFuncs("blog/category.html", funcMap, assemble(templatesDir+"/views/blog/category.html")...)
	r.AddFromFilesFuncs("blog/post.html", funcMap, assemble(templatesDir+"/views/blog/post.html")...)

	// Auth
	r.AddFromFilesFuncs("auth/login.html", funcMap, assemble(templatesDir+"/views/auth/login.html")...)

	// Admin
	r.AddFromFilesFuncs("admin/settings.html", funcMap, assemble(templatesDir+"/views/admin/settings.html")...)
	r.AddFromFilesFuncs("admin/manage_post.html", funcMap, assemble(templatesDir+"/views/admin/manage_post.html")...)
	r.AddFromFilesFuncs("admin/new_post.html", funcMap, assemble(templatesDir+"/views/admin/new_post.html")...)
	r.AddFromFilesFuncs("admin/edit_post.html", funcMap, assemble(templatesDir+"/views/admin/edit_post.html")...)
	r.AddFromFilesFuncs("admin/manage_comment.html", funcMap, assemble(templatesDir+"/views/admin/manage_comment.html")...)
	r.AddFromFilesFuncs("admin/manage_category.html", funcMap, assemble(templatesDir+"/views/admin/manage_category.html")...)
	r.AddFromFilesFuncs("admin/new_category.html", funcMap, assemble(templatesDir+"/views/admin/new_category.html")...)
	r.AddFromFilesFuncs("admin/edit_category.html", funcMap, assemble(templatesDir+"/views/admin/edit_category.html")...)
	r.AddFromFilesFuncs("admin/manage_link.html", funcMap, assemble(templatesDir+"/views/admin/manage_link.html")...)
	r.AddFromFilesFuncs("admin/new_link.html", funcMap, assemble(templatesDir+"/views/admin/new_link.html")...)
	r.AddFromFilesFuncs("admin/edit_link.html", funcMap, assemble(templatesDir+"/views/admin/edit_link.html")...)

	// Error
	r.AddFromFilesFuncs("error.html", funcMap, assemble(templatesDir+"/views/error.html")...)

	return r
}
