package db

import (
	"fmt"
	"sort"

	"foodlik/model"
	"foodlik/seed"
)

// Report lists every difference found between a provisioned database and the seed files.
type Report struct {
	Expected Summary
	Actual   Summary
	Problems []string
}

func (r *Report) OK() bool { return len(r.Problems) == 0 }

func (r *Report) addf(format string, args ...any) {
	r.Problems = append(r.Problems, fmt.Sprintf(format, args...))
}

// Verify checks that the store holds exactly the categories, products and category links described by ds.
func Verify(s Store, ds *seed.Dataset) (*Report, error) {
	r := &Report{Expected: Summary{
		Categories: int64(len(ds.Categories)),
		Products:   int64(ds.ProductCount()),
		Links:      int64(ds.LinkCount()),
	}}

	actual, err := s.Counts()
	if err != nil {
		return nil, fmt.Errorf("verify: counting rows: %w", err)
	}
	r.Actual = actual

	titles, err := s.ListCategoryTitles()
	if err != nil {
		return nil, fmt.Errorf("verify: listing categories: %w", err)
	}
	verifyCategories(r, ds.Categories, titles)

	products, err := s.ListProducts()
	if err != nil {
		return nil, fmt.Errorf("verify: listing products: %w", err)
	}
	verifyProducts(r, ds, products)

	links, err := s.ListCategoryLinks()
	if err != nil {
		return nil, fmt.Errorf("verify: listing category links: %w", err)
	}
	verifyLinks(r, ds, links)

	sort.Strings(r.Problems)
	return r, nil
}

func verifyCategories(r *Report, expected, actual []string) {
	want := countStrings(expected)
	got := countStrings(actual)
	for _, name := range sortedKeys(got) {
		if got[name] > 1 {
			r.addf("category %q stored %d times", name, got[name])
		}
		if _, ok := want[name]; !ok {
			r.addf("unexpected category %q", name)
		}
	}
	for _, name := range sortedKeys(want) {
		if _, ok := got[name]; !ok {
			r.addf("missing category %q", name)
		}
	}
}

func verifyProducts(r *Report, ds *seed.Dataset, actual []model.Product) {
	want := make(map[string]model.Product)
	for _, f := range ds.ProductFiles {
		for _, p := range f.Products {
			want[p.Title] = p
		}
	}
	got := make(map[string]int)
	for _, p := range actual {
		got[p.Title]++
		if got[p.Title] > 1 {
			continue
		}
		exp, ok := want[p.Title]
		if !ok {
			r.addf("unexpected product %q", p.Title)
			continue
		}
		if field, ok := productDiff(exp, p); !ok {
			r.addf("product %q: %s differs", p.Title, field)
		}
	}
	for title, n := range got {
		if n > 1 {
			r.addf("product %q stored %d times", title, n)
		}
	}
	for _, title := range sortedKeys(want) {
		if _, ok := got[title]; !ok {
			r.addf("missing product %q", title)
		}
	}
}

func productDiff(want, got model.Product) (string, bool) {
	switch {
	case want.Description != got.Description:
		return "description", false
	case want.Stores != got.Stores:
		return "stores", false
	case want.SiteURL != got.SiteURL:
		return "site_url", false
	case want.Score != got.Score:
		return "score", false
	}
	return "", true
}

func verifyLinks(r *Report, ds *seed.Dataset, actual []model.CategoryPerProduct) {
	want := make(map[model.CategoryPerProduct]struct{})
	for _, f := range ds.ProductFiles {
		for _, p := range f.Products {
			for _, c := range p.UniqueCategories() {
				want[model.CategoryPerProduct{CategoryTitle: c, ProductTitle: p.Title}] = struct{}{}
			}
		}
	}
	got := make(map[model.CategoryPerProduct]int)
	for _, l := range actual {
		got[l]++
		if got[l] == 1 {
			if _, ok := want[l]; !ok {
				r.addf("unexpected link %q -> %q", l.ProductTitle, l.CategoryTitle)
			}
		}
	}
	for l, n := range got {
		if n > 1 {
			r.addf("link %q -> %q stored %d times", l.ProductTitle, l.CategoryTitle, n)
		}
	}
	for l := range want {
		if _, ok := got[l]; !ok {
			r.addf("missing link %q -> %q", l.ProductTitle, l.CategoryTitle)
		}
	}
}

func countStrings(values []string) map[string]int {
	m := make(map[string]int, len(values))
	for _, v := range values {
		m[v]++
	}
	return m
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
