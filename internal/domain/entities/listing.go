package entities

import (
	"strings"
)

// Listing keys shared by every search mode.
const (
	ListingKeyID          = "id"
	ListingKeyTitle       = "title"
	ListingKeyDescription = "description"
	ListingKeyPrice       = "price"
	ListingKeyCity        = "city"
	ListingKeyBedrooms    = "bedrooms"
	ListingKeyImageURI    = "image_gcs_uri"
)

// Listing is a property listing as returned to API callers.
//
// Listings produced from generated SQL may carry any column the statement
// selected, so the wire shape is a flat key/value object rather than a struct.
type Listing map[string]interface{}

// ImageURI returns the object storage reference of the listing, if any.
func (l Listing) ImageURI() (string, bool) {
	v, ok := l[ListingKeyImageURI].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// StripEmbeddings removes every vector column from the listing.
func (l Listing) StripEmbeddings() Listing {
	for key := range l {
		if IsEmbeddingColumn(key) {
			delete(l, key)
		}
	}
	return l
}

// IsEmbeddingColumn reports whether a column holds a raw embedding vector.
func IsEmbeddingColumn(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), "embedding")
}

// Property is the stored form of a listing. Nullable columns are pointers.
type Property struct {
	ID          int64    `db:"id" json:"id"`
	Title       string   `db:"title" json:"title"`
	Description *string  `db:"description" json:"description"`
	Price       *float64 `db:"price" json:"price"`
	City        *string  `db:"city" json:"city"`
	Bedrooms    *int     `db:"bedrooms" json:"bedrooms"`
	ImageURI    *string  `db:"image_gcs_uri" json:"image_gcs_uri"`
}

// ToListing converts a stored property to its wire form.
func (p *Property) ToListing() Listing {
	listing := Listing{
		ListingKeyID:          p.ID,
		ListingKeyTitle:       p.Title,
		ListingKeyDescription: nil,
		ListingKeyPrice:       nil,
		ListingKeyCity:        nil,
		ListingKeyBedrooms:    nil,
		ListingKeyImageURI:    nil,
	}
	if p.Description != nil {
		listing[ListingKeyDescription] = *p.Description
	}
	if p.Price != nil {
		listing[ListingKeyPrice] = *p.Price
	}
	if p.City != nil {
		listing[ListingKeyCity] = *p.City
	}
	if p.Bedrooms != nil {
		listing[ListingKeyBedrooms] = *p.Bedrooms
	}
	if p.ImageURI != nil && *p.ImageURI != "" {
		listing[ListingKeyImageURI] = *p.ImageURI
	}
	return listing
}
