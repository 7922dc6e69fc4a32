// Package seed reads the JSON files that populate a freshly created foodlik database.
package seed

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"foodlik/model"
)

// ProductFile is the content of one file of the products directory.
type ProductFile struct {
	Name     string
	Products []model.Product
}

// Dataset is everything a seeding run inserts.
type Dataset struct {
	Categories   []string
	ProductFiles []ProductFile
}

// ProductCount returns the number of product records across all files.
func (d *Dataset) ProductCount() int {
	n := 0
	for _, f := range d.ProductFiles {
		n += len(f.Products)
	}
	return n
}

// LinkCount returns the number of category_per_product rows the dataset produces.
func (d *Dataset) LinkCount() int {
	n := 0
	for _, f := range d.ProductFiles {
		for _, p := range f.Products {
			n += len(p.UniqueCategories())
		}
	}
	return n
}

// Load reads the categories file and every file of the products directory.
func Load(categoriesPath, productsDir string) (*Dataset, error) {
	categories, err := LoadCategories(categoriesPath)
	if err != nil {
		return nil, err
	}
	files, err := LoadProducts(productsDir)
	if err != nil {
		return nil, err
	}
	return &Dataset{Categories: categories, ProductFiles: files}, nil
}

// LoadCategories parses a JSON array of category names.
func LoadCategories(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: reading categories file: %w", err)
	}
	var categories []string
	if err := json.Unmarshal(raw, &categories); err != nil {
		return nil, fmt.Errorf("seed: parsing categories file %s: %w", path, err)
	}
	if categories == nil {
		return nil, fmt.Errorf("seed: %s: expected a JSON array", path)
	}
	return categories, nil
}

// LoadProducts parses every regular, non-hidden file of dir as a JSON array of products. Files are returned in
// lexical order of their names.
func LoadProducts(dir string) ([]ProductFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("seed: reading products directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	files := make([]ProductFile, 0, len(names))
	for _, name := range names {
		products, err := loadProductFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		files = append(files, ProductFile{Name: name, Products: products})
	}
	return files, nil
}

func loadProductFile(path string) ([]model.Product, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: reading products file: %w", err)
	}
	var products []model.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, fmt.Errorf("seed: parsing products file %s: %w", path, err)
	}
	if products == nil {
		return nil, fmt.Errorf("seed: %s: expected a JSON array", path)
	}
	for i, p := range products {
		if p.Title == "" {
			return nil, fmt.Errorf("seed: %s: product %d has no name", path, i)
		}
		// a missing or null categories key decodes to nil, an empty list does not
		if p.Categories == nil {
			return nil, fmt.Errorf("seed: %s: product %d (%q) has no categories", path, i, p.Title)
		}
	}
	return products, nil
}
