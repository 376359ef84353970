package models

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UnknownModel labels line items whose product no longer exists.
const UnknownModel = "Unknown model"

// ProductImages holds the image hashes of a product. Primary is shown in
// the catalog; Gallery on the detail page.
type ProductImages struct {
	Primary string   `bson:"img_2" json:"primary"`
	Gallery []string `bson:"img_1" json:"gallery"`
}

// Product is a catalog entry. SortOrder values across all products form
// the permutation 1..N.
type Product struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"    json:"id"`
	Name      string             `bson:"modelo"           json:"model"`
	SortOrder int                `bson:"sort_order"       json:"sort_order"`
	Images    ProductImages      `bson:"img_hashes"       json:"images"`
	FormHash  string             `bson:"forms_hash"       json:"forms_hash"`
	LaserHash string             `bson:"corte_lazer_hash" json:"corte_lazer_hash"`
	CreatedAt time.Time          `bson:"created_at"       json:"created_at"`
}

// Refs returns the blob hashes of kind referenced by p.
func (p Product) Refs(kind BlobKind) []string {
	var out []string
	switch kind {
	case KindImage:
		if p.Images.Primary != "" {
			out = append(out, p.Images.Primary)
		}
		out = append(out, p.Images.Gallery...)
	case KindForm:
		if p.FormHash != "" {
			out = append(out, p.FormHash)
		}
	case KindLaser:
		if p.LaserHash != "" {
			out = append(out, p.LaserHash)
		}
	}
	return out
}

// Direction of a catalog move.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// ParseDirection accepts "up" or "down" in any case.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case Up, Down:
		return d, nil
	}
	return "", fmt.Errorf("%w: direction %q", ErrInvalidInput, s)
}

// CatalogItem is one row of the catalog listing.
type CatalogItem struct {
	ID        string  `json:"id"`
	Model     string  `json:"model"`
	SortOrder int     `json:"sort_order"`
	Image     *string `json:"image"`
}

// ProductDetail is the product page: form schema, gallery and laser spec.
type ProductDetail struct {
	ID        string         `json:"id"`
	Model     string         `json:"model"`
	Forms     map[string]any `json:"forms"`
	Images    []string       `json:"images"`
	LaserSpec map[string]any `json:"corte_lazer"`
}

// DataURI renders a base64 image payload for the browser.
func DataURI(b64 string) string { return "data:image/png;base64," + b64 }
