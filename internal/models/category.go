package models

import (
	"time"
)

// DefaultCategoryID 默认分类在建库时写入，不可改名也不可删除
const DefaultCategoryID uint = 1

type Category struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:30;not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 非数据库字段，管理页查询时填充
	PostCount int `gorm:"-" json:"post_count"`
}

// IsDefault 默认分类受保护
func (c *Category) IsDefault() bool {
	return c.ID == DefaultCategoryID
}
