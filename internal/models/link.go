package models

import (
	"time"
)

// Link 友情链接，侧边栏展示
type Link struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:30;not null" json:"name"`
	URL       string    `gorm:"size:100;not null" json:"url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
