package models

import (
	"time"
)

// Admin 博客只有一个管理员账号，整表只存一行
type Admin struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:20;not null" json:"username"`
	PasswordHash string    `gorm:"size:128;not null" json:"-"`
	BlogTitle    string    `gorm:"size:60;not null" json:"blog_title"`
	BlogSubTitle string    `gorm:"size:100" json:"blog_sub_title"`
	Name         string    `gorm:"size:30;not null" json:"name"` // 评论区显示的署名
	About        string    `gorm:"type:text" json:"about"`       // Markdown
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
