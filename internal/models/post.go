package models

import (
	"time"
)

type Post struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Title      string    `gorm:"size:60;not null" json:"title"`
	Body       string    `gorm:"type:text" json:"body"`
	CanComment bool      `gorm:"default:true" json:"can_comment"` // 关闭后仅管理员可评论，已有评论不受影响
	CategoryID uint      `gorm:"not null;index;default:1" json:"category_id"`
	Category   Category  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"category"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// 非数据库字段，列表页查询时填充
	CommentCount int `gorm:"-" json:"comment_count"`
}
