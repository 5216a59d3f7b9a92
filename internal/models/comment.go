package models

import (
	"time"
)

type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Author    string    `gorm:"size:30;not null" json:"author"`
	Email     string    `gorm:"size:50;not null" json:"email"`
	Site      string    `gorm:"size:100" json:"site"` // 可选，评论人的个人站点
	Body      string    `gorm:"type:text;not null" json:"body"`
	FromAdmin bool      `gorm:"default:false" json:"from_admin"`
	Reviewed  bool      `gorm:"default:false;index" json:"reviewed"` // 未审核评论只有管理员能看到
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	Post      Post      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"post"`
	RepliedID *uint     `gorm:"index" json:"replied_id"` // Nullable for top-level comments
	Replied   *Comment  `gorm:"foreignKey:RepliedID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"replied"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// IsTopLevel 是否为顶层评论
func (c *Comment) IsTopLevel() bool {
	return c.RepliedID == nil
}
