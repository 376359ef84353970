package models

import "fmt"

// BlobKind selects the collection a content-addressed blob lives in.
type BlobKind string

const (
	KindImage BlobKind = "image"
	KindForm  BlobKind = "form"
	KindLaser BlobKind = "laser"
)

// BlobKinds lists every kind, in sweep order.
var BlobKinds = []BlobKind{KindImage, KindForm, KindLaser}

// Collection returns the MongoDB collection holding blobs of kind k.
func (k BlobKind) Collection() string {
	switch k {
	case KindImage:
		return "imgs"
	case KindForm:
		return "forms"
	case KindLaser:
		return "corte_lazer"
	}
	return ""
}

// PayloadField is the document field the payload is stored under.
func (k BlobKind) PayloadField() string {
	switch k {
	case KindImage:
		return "image_data"
	case KindForm:
		return "forms_data"
	case KindLaser:
		return "corte_lazer_data"
	}
	return ""
}

func (k BlobKind) Valid() bool { return k.Collection() != "" }

// ParseBlobKind validates a kind name.
func ParseBlobKind(s string) (BlobKind, error) {
	k := BlobKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: unknown blob kind %q", ErrInvalidInput, s)
	}
	return k, nil
}

// Blob is an immutable value keyed by the SHA-256 of its canonical form.
// Image payloads are base64 strings; form and laser payloads are JSON
// objects.
type Blob struct {
	Hash    string
	Kind    BlobKind
	Payload any
}

// Text returns a string payload, or "".
func (b Blob) Text() string {
	s, _ := b.Payload.(string)
	return s
}

// Object returns an object payload, or nil.
func (b Blob) Object() map[string]any {
	m, _ := b.Payload.(map[string]any)
	return m
}
