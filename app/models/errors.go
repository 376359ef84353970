package models

import "errors"

// Sentinel errors returned by the services. Wrap them with fmt.Errorf("%w: ...")
// to add detail; the HTTP layer matches them with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidID         = errors.New("invalid id")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrNoNeighbor        = errors.New("no neighbour to swap with")
	ErrDanglingReference = errors.New("dangling reference")
	ErrInvalidContent    = errors.New("content is not serializable")
	ErrConflict          = errors.New("conflict")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
)
