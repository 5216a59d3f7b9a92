package services

import (
	"errors"
	"unicode/utf8"

	"myblog/internal/models"

	"gorm.io/gorm"
)

// CategoryService 文章分类管理。默认分类（ID=1）受保护：
// 不可改名、不可删除，删除其他分类时它接收被孤立的文章。
type CategoryService struct {
	db *gorm.DB
}

func NewCategoryService(g *gorm.DB) *CategoryService {
	return &CategoryService{db: g}
}

func (s *CategoryService) validateName(name string, selfID uint) error {
	if name == "" {
		return newValidationError("name", "分类名不能为空")
	}
	if utf8.RuneCountInString(name) > 30 {
		return newValidationError("name", "分类名长度不能超过30")
	}

	var existing models.Category
	err := s.db.Where("name = ?", name).First(&existing).Error
	if err == nil && existing.ID != selfID {
		return newValidationError("name", "分类名已经存在")
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return nil
}

func (s *CategoryService) Create(name string) (*models.Category, error) {
	if err := s.validateName(name, 0); err != nil {
		return nil, err
	}
	category := models.Category{Name: name}
	if err := s.db.Create(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// Update 重命名分类，默认分类除外
func (s *CategoryService) Update(categoryID uint, name string) error {
	var category models.Category
	if err := s.db.First(&category, categoryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if category.IsDefault() {
		return ErrForbidden
	}
	if err := s.validateName(name, category.ID); err != nil {
		return err
	}
	return s.db.Model(&category).Update("name", name).Error
}

// Delete 删除分类，其下文章先归入默认分类
func (s *CategoryService) Delete(categoryID uint) error {
	var category models.Category
	if err := s.db.First(&category, categoryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if category.IsDefault() {
		return ErrForbidden
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Post{}).
			Where("category_id = ?", category.ID).
			Update("category_id", models.DefaultCategoryID).Error; err != nil {
			return err
		}
		return tx.Delete(&category).Error
	})
}

// List 全部分类，按名称排序，侧边栏和文章表单共用
func (s *CategoryService) List() ([]models.Category, error) {
	var categories []models.Category
	err := s.db.Order("name ASC").Find(&categories).Error
	return categories, err
}
