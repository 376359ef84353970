package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CartEntry is a form submission staged for checkout.
type CartEntry struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	EntryID   string             `bson:"entry_id"      json:"entry_id"`
	Owner     string             `bson:"client"        json:"client"`
	ProductID primitive.ObjectID `bson:"model"         json:"model"`
	Form      map[string]any     `bson:"forms_lleno"   json:"forms_lleno"`
	CreatedAt time.Time          `bson:"created_at"    json:"created_at"`
}

// CartLine is a cart entry joined with its product's name and image.
type CartLine struct {
	ID        string         `json:"id"`
	EntryID   string         `json:"entry_id"`
	ProductID string         `json:"product_id"`
	Model     string         `json:"model"`
	Image     *string        `json:"img_2"`
	Form      map[string]any `json:"forms_lleno"`
}
