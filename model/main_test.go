package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Score
		wantErr bool
	}{
		{name: "letter grade", input: `"b"`, want: "b"},
		{name: "integer", input: `3`, want: "3"},
		{name: "decimal", input: `4.5`, want: "4.5"},
		{name: "null", input: `null`, want: ""},
		{name: "boolean is rejected", input: `true`, wantErr: true},
		{name: "object is rejected", input: `{"grade":"a"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Score
			err := json.Unmarshal([]byte(tt.input), &s)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, s)
		})
	}
}

func TestStoresUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Stores
	}{
		{name: "plain string", input: `"Carrefour, Auchan"`, want: "Carrefour, Auchan"},
		{name: "list of strings", input: `["Carrefour", "Leclerc"]`, want: "Carrefour, Leclerc"},
		{name: "empty list", input: `[]`, want: ""},
		{name: "null", input: `null`, want: ""},
		{name: "mixed list kept as json", input: `["Lidl", 2]`, want: `["Lidl",2]`},
		{name: "object kept as json", input: `{ "main": "Casino" }`, want: `{"main":"Casino"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Stores
			require.NoError(t, json.Unmarshal([]byte(tt.input), &s))
			assert.Equal(t, tt.want, s)
		})
	}
}

func TestProductJSONFields(t *testing.T) {
	raw := `{
		"name": "Nutella",
		"description": "Pâte à tartiner",
		"stores": ["Carrefour"],
		"site_url": "https://fr.openfoodfacts.org/produit/3017620422003",
		"score": "e",
		"categories": ["Pâtes à tartiner", "Petit-déjeuners", "Pâtes à tartiner"]
	}`

	var p Product
	require.NoError(t, json.Unmarshal([]byte(raw), &p))

	assert.Equal(t, "Nutella", p.Title)
	assert.Equal(t, "Pâte à tartiner", p.Description)
	assert.Equal(t, Stores("Carrefour"), p.Stores)
	assert.Equal(t, "https://fr.openfoodfacts.org/produit/3017620422003", p.SiteURL)
	assert.Equal(t, Score("e"), p.Score)
	assert.Len(t, p.Categories, 3)
}

func TestUniqueCategories(t *testing.T) {
	t.Run("removes duplicates keeping first-seen order", func(t *testing.T) {
		p := Product{Categories: []string{"b", "a", "b", "c", "a"}}
		assert.Equal(t, []string{"b", "a", "c"}, p.UniqueCategories())
	})

	t.Run("no categories", func(t *testing.T) {
		p := Product{}
		assert.Empty(t, p.UniqueCategories())
	})
}

func TestScanners(t *testing.T) {
	var s Score
	require.NoError(t, s.Scan([]byte("a")))
	assert.Equal(t, Score("a"), s)
	require.NoError(t, s.Scan(nil))
	assert.Equal(t, Score(""), s)
	assert.Error(t, s.Scan(42))

	var st Stores
	require.NoError(t, st.Scan("Lidl"))
	assert.Equal(t, Stores("Lidl"), st)
	assert.Error(t, st.Scan(3.14))
}
