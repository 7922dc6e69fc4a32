package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"foodlik/model"

	"gorm.io/gorm"
)

type SQLStore struct {
	db *gorm.DB
}

var _ Store = (*SQLStore)(nil)

func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Ping verifies the underlying database connection is healthy.
func (s *SQLStore) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sql store is not initialized")
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// ListCategoryTitles returns every category title, duplicates included, sorted.
func (s *SQLStore) ListCategoryTitles() ([]string, error) {
	var titles []string
	err := s.db.Model(&model.Category{}).Order("title").Pluck("title", &titles).Error
	return titles, err
}

func (s *SQLStore) ListProducts() ([]model.Product, error) {
	var products []model.Product
	err := s.db.Order("title").Find(&products).Error
	return products, err
}

func (s *SQLStore) ListCategoryLinks() ([]model.CategoryPerProduct, error) {
	var links []model.CategoryPerProduct
	err := s.db.Order("product_title, category_title").Find(&links).Error
	return links, err
}

// GetCategoriesByProduct returns the category titles linked to a product, sorted.
func (s *SQLStore) GetCategoriesByProduct(productTitle string) ([]string, error) {
	var product model.Product
	if err := s.db.Where("title = ?", productTitle).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	var titles []string
	err := s.db.Model(&model.CategoryPerProduct{}).
		Where("product_title = ?", productTitle).
		Order("category_title").
		Pluck("category_title", &titles).Error
	if err != nil {
		return nil, fmt.Errorf("querying categories of product %q: %w", productTitle, err)
	}
	return titles, nil
}

// GetProductsByCategory returns the products linked to a category, sorted by title.
func (s *SQLStore) GetProductsByCategory(categoryTitle string) ([]model.Product, error) {
	var category model.Category
	if err := s.db.Where("title = ?", categoryTitle).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}

	var products []model.Product
	err := s.db.
		Joins("JOIN category_per_product cpp ON cpp.product_title = product.title").
		Where("cpp.category_title = ?", categoryTitle).
		Order("product.title").
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("querying products of category %q: %w", categoryTitle, err)
	}
	return products, nil
}

// Counts returns the number of rows of each seeded table.
func (s *SQLStore) Counts() (Summary, error) {
	var sum Summary
	if err := s.db.Model(&model.Category{}).Count(&sum.Categories).Error; err != nil {
		return Summary{}, err
	}
	if err := s.db.Model(&model.Product{}).Count(&sum.Products).Error; err != nil {
		return Summary{}, err
	}
	if err := s.db.Model(&model.CategoryPerProduct{}).Count(&sum.Links).Error; err != nil {
		return Summary{}, err
	}
	return sum, nil
}
