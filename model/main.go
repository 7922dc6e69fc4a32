package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Score is a product's nutrition score. Seed files carry it either as a JSON string ("a") or as a JSON number (3);
// both are kept in their textual form.
type Score string

func (s *Score) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = Score(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("score must be a string or a number, got %s", data)
	}
	*s = Score(n.String())
	return nil
}

func (s *Score) Scan(value interface{ any }) error {
	switch v := value.(type) {
	case nil:
		*s = ""
	case string:
		*s = Score(v)
	case []byte:
		*s = Score(v)
	default:
		return fmt.Errorf("cannot scan %T into Score", value)
	}
	return nil
}

func (s Score) Value() (driver.Value, error) {
	return string(s), nil
}

// Stores lists where a product is sold. Seed files are loose about its shape: a plain string is kept as is, a list
// of strings is joined with ", ", anything else is kept as compact JSON.
type Stores string

func (s *Stores) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	switch data[0] {
	case '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = Stores(v)
		return nil
	case '[':
		var list []string
		if err := json.Unmarshal(data, &list); err == nil {
			*s = Stores(strings.Join(list, ", "))
			return nil
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return err
	}
	*s = Stores(buf.String())
	return nil
}

func (s *Stores) Scan(value interface{ any }) error {
	switch v := value.(type) {
	case nil:
		*s = ""
	case string:
		*s = Stores(v)
	case []byte:
		*s = Stores(v)
	default:
		return fmt.Errorf("cannot scan %T into Stores", value)
	}
	return nil
}

func (s Stores) Value() (driver.Value, error) {
	return string(s), nil
}

// A Category groups products. Its title is the natural key referenced by CategoryPerProduct.
type Category struct {
	Title string `gorm:"column:title;primaryKey;size:255"`
}

func (Category) TableName() string { return "category" }

// A Product is one food item read from a products seed file.
//
// Categories is only populated from JSON; the association lives in the category_per_product table.
type Product struct {
	Title       string   `gorm:"column:title;primaryKey;size:255" json:"name"`
	Description string   `gorm:"column:description" json:"description"`
	Stores      Stores   `gorm:"column:stores;type:text" json:"stores"`
	SiteURL     string   `gorm:"column:site_url" json:"site_url"`
	Score       Score    `gorm:"column:score;type:text" json:"score"`
	Categories  []string `gorm:"-" json:"categories"`
}

func (Product) TableName() string { return "product" }

// UniqueCategories returns the product's category tags without duplicates, in first-seen order.
func (p Product) UniqueCategories() []string {
	seen := make(map[string]struct{}, len(p.Categories))
	unique := make([]string, 0, len(p.Categories))
	for _, c := range p.Categories {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		unique = append(unique, c)
	}
	return unique
}

type CategoryPerProduct struct {
	CategoryTitle string `gorm:"column:category_title;primaryKey;size:255"`
	ProductTitle  string `gorm:"column:product_title;primaryKey;size:255"`
}

func (CategoryPerProduct) TableName() string { return "category_per_product" }
