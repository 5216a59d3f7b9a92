package db

import (
	"log"
	"os"

	"myblog/internal/models"
	"myblog/internal/utils"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Init() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		// Fallback for local dev if not set
		dsn = "host=localhost user=postgres password=postgres dbname=myblog port=5432 sslmode=disable TimeZone=Asia/Shanghai"
	}

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.Println("Database connection established")

	if err := Migrate(DB); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migration completed")

	seedDefaults()
}

// Migrate 建表，测试里也会对内存库调用
func Migrate(g *gorm.DB) error {
	return g.AutoMigrate(
		&models.Admin{},
		&models.Category{},
		&models.Post{},
		&models.Comment{},
		&models.Link{},
	)
}

// seedDefaults 初始化默认分类和管理员账号
func seedDefaults() {
	var count int64
	DB.Model(&models.Category{}).Count(&count)
	if count == 0 {
		// 第一条分类拿到 ID=1，即受保护的默认分类
		category := models.Category{Name: "默认"}
		if err := DB.Create(&category).Error; err != nil {
			log.Printf("Failed to create default category: %v", err)
		} else {
			log.Println("Default category created")
		}
	}

	DB.Model(&models.Admin{}).Count(&count)
	if count > 0 {
		return
	}

	username := os.Getenv("ADMIN_USERNAME")
	if username == "" {
		username = "admin"
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "myblog"
		log.Println("⚠️ ADMIN_PASSWORD not set, using default password. Change it!")
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}

	admin := models.Admin{
		Username:     username,
		PasswordHash: hash,
		BlogTitle:    "MyBlog",
		BlogSubTitle: "记录生活，分享技术",
		Name:         username,
		About:        "写点什么介绍一下自己吧。",
	}
	if err := DB.Create(&admin).Error; err != nil {
		log.Printf("Failed to create admin account: %v", err)
		return
	}
	log.Println("Admin account created")
}
