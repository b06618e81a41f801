package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListing_StripEmbeddings(t *testing.T) {
	listing := Listing{
		"id":                    int64(1),
		"title":                 "Loft",
		"description_embedding": []float32{0.1, 0.2},
		"image_embedding":       "[0.3,0.4]",
		"Embedding":             "[0.5]",
	}

	listing.StripEmbeddings()

	assert.Equal(t, Listing{"id": int64(1), "title": "Loft"}, listing)
}

func TestProperty_ToListing_NullImage(t *testing.T) {
	city, bedrooms, price := "Basel", 1, 1800.0
	p := &Property{ID: 3, Title: "Studio", City: &city, Bedrooms: &bedrooms, Price: &price}

	listing := p.ToListing()

	assert.Contains(t, listing, ListingKeyImageURI)
	assert.Nil(t, listing[ListingKeyImageURI])
	_, ok := listing.ImageURI()
	assert.False(t, ok)
}

func TestProperty_ToListing_NullColumns(t *testing.T) {
	p := &Property{ID: 4, Title: "Attic"}

	listing := p.ToListing()

	for _, key := range []string{ListingKeyDescription, ListingKeyPrice, ListingKeyCity, ListingKeyBedrooms} {
		assert.Contains(t, listing, key)
		assert.Nil(t, listing[key], key)
	}
	assert.Equal(t, "Attic", listing[ListingKeyTitle])
}

func TestParseSearchMode_Aliases(t *testing.T) {
	cases := map[string]SearchMode{
		"vertex_search": SearchModeEnterprise,
		"HYBRID":        SearchModeSemantic,
		" nl2sql ":      SearchModeNL2SQL,
		"gda":           SearchModeDataAgent,
		"agent":         SearchModeDataAgent,
	}
	for in, want := range cases {
		got, ok := ParseSearchMode(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := ParseSearchMode("graph")
	assert.False(t, ok)
}
