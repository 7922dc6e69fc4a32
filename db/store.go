package db

import (
	"context"
	"errors"

	"foodlik/model"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrCategoryNotFound = errors.New("category not found")
)

type Store interface {
	Ping(ctx context.Context) error
	ListCategoryTitles() ([]string, error)
	ListProducts() ([]model.Product, error)
	ListCategoryLinks() ([]model.CategoryPerProduct, error)
	GetCategoriesByProduct(productTitle string) ([]string, error)
	GetProductsByCategory(categoryTitle string) ([]model.Product, error)
	Counts() (Summary, error)
}
