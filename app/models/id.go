package models

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ParseID decodes a hex ObjectID. Malformed strings fail with ErrInvalidID
// before any lookup happens.
func ParseID(s string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return id, nil
}
