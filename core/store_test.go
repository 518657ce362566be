package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocument_String(t *testing.T) {
	doc := Document{"id": "s1", "year": float64(7), "ratio": 1.5, "empty": "", "name": "Ann", "flag": true}

	tests := []struct {
		name string
		keys []string
		want string
	}{
		{name: "string", keys: []string{"name"}, want: "Ann"},
		{name: "integral float", keys: []string{"year"}, want: "7"},
		{name: "float", keys: []string{"ratio"}, want: "1.5"},
		{name: "skips empty", keys: []string{"empty", "missing", "name"}, want: "Ann"},
		{name: "bool", keys: []string{"flag"}, want: "true"},
		{name: "nothing", keys: []string{"missing"}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, doc.String(tt.keys...))
		})
	}
	assert.Equal(t, "s1", doc.ID())
}

func TestToFromDocument(t *testing.T) {
	type thing struct {
		ID    string   `json:"id"`
		Count int      `json:"count"`
		Tags  []string `json:"tags"`
	}

	doc, err := ToDocument(thing{ID: "t1", Count: 3, Tags: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, "t1", doc.ID())
	assert.Equal(t, float64(3), doc["count"])

	var back thing
	require.NoError(t, FromDocument(doc, &back))
	assert.Equal(t, thing{ID: "t1", Count: 3, Tags: []string{"a"}}, back)
}

func TestSortDocuments(t *testing.T) {
	docs := []Document{
		{"id": "c", "name": "bob", "year": float64(8)},
		{"id": "a", "name": "Ann", "year": float64(7)},
		{"id": "b", "name": "ann", "year": float64(9)},
	}

	SortDocuments(docs, []DBOrdering{{Field: "name", Ascending: true}})
	assert.Equal(t, []string{"a", "b", "c"}, []string{docs[0].ID(), docs[1].ID(), docs[2].ID()})

	SortDocuments(docs, []DBOrdering{{Field: "year"}})
	assert.Equal(t, []string{"b", "c", "a"}, []string{docs[0].ID(), docs[1].ID(), docs[2].ID()})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "hi", Truncate("hi", 4))
	assert.Equal(t, "hi", Truncate("hi", 0))
}
