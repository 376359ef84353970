package services

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shashiranjanraj/leppupy/app/models"
	"github.com/shashiranjanraj/leppupy/app/repositories"
	"github.com/shashiranjanraj/leppupy/pkg/logger"
	"github.com/shashiranjanraj/leppupy/pkg/metrics"
)

// RefCounter reports how many owners reference hash as a blob of kind.
type RefCounter func(ctx context.Context, kind models.BlobKind, hash string) (int, error)

// ContentStore stores immutable blobs under the SHA-256 of their
// canonical form, so equal content is stored once.
type ContentStore struct {
	blobs repositories.BlobRepository
}

func NewContentStore(blobs repositories.BlobRepository) *ContentStore {
	return &ContentStore{blobs: blobs}
}

// Canonical returns the digest and stored payload of content. Images are
// base64 strings (raw bytes are encoded first) and hash as that string.
// Other kinds are JSON values; encoding/json writes map keys sorted, so
// logically equal objects hash alike.
func Canonical(kind models.BlobKind, content any) (string, any, error) {
	if !kind.Valid() {
		return "", nil, fmt.Errorf("%w: blob kind %q", models.ErrInvalidInput, kind)
	}
	if kind == models.KindImage {
		var s string
		switch v := content.(type) {
		case string:
			s = v
		case []byte:
			s = base64.StdEncoding.EncodeToString(v)
		default:
			return "", nil, fmt.Errorf("%w: image must be bytes or base64 text, got %T", models.ErrInvalidContent, content)
		}
		if s == "" {
			return "", nil, fmt.Errorf("%w: empty image", models.ErrInvalidContent)
		}
		return digest([]byte(s)), s, nil
	}

	raw, err := json.Marshal(content)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", models.ErrInvalidContent, err)
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", nil, fmt.Errorf("%w: %v", models.ErrInvalidContent, err)
	}
	// re-encode so numbers and nested maps hash in their decoded form
	raw, _ = json.Marshal(payload)
	return digest(raw), payload, nil
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Put stores content if no blob with the same hash exists and returns the
// hash. Calling it again with equal content is a no-op.
func (s *ContentStore) Put(ctx context.Context, kind models.BlobKind, content any) (string, error) {
	hash, payload, err := Canonical(kind, content)
	if err != nil {
		return "", err
	}
	inserted, err := s.blobs.Insert(ctx, models.Blob{Hash: hash, Kind: kind, Payload: payload})
	if err != nil {
		return "", fmt.Errorf("content: put %s: %w", kind, err)
	}
	metrics.BlobsStored.WithLabelValues(string(kind), strconv.FormatBool(!inserted)).Inc()
	return hash, nil
}

func (s *ContentStore) Get(ctx context.Context, kind models.BlobKind, hash string) (models.Blob, error) {
	return s.blobs.Find(ctx, kind, hash)
}

// GetMany fetches hashes in one lookup. Missing hashes are absent from
// the result.
func (s *ContentStore) GetMany(ctx context.Context, kind models.BlobKind, hashes []string) (map[string]models.Blob, error) {
	return s.blobs.FindMany(ctx, kind, hashes)
}

// ReleaseIfUnreferenced deletes the blob when refs finds no owner. The
// count and the delete are separate reads, so an owner attaching the same
// hash in between loses its blob; callers run this inside Store.WithTx and
// the periodic Sweep only ever removes orphans.
func (s *ContentStore) ReleaseIfUnreferenced(ctx context.Context, kind models.BlobKind, hash string, refs RefCounter) (bool, error) {
	if hash == "" {
		return false, nil
	}
	n, err := refs(ctx, kind, hash)
	if err != nil {
		return false, fmt.Errorf("content: count refs: %w", err)
	}
	if n > 0 {
		return false, nil
	}
	deleted, err := s.blobs.Delete(ctx, kind, hash)
	if err != nil {
		return false, fmt.Errorf("content: release %s: %w", kind, err)
	}
	if deleted {
		metrics.BlobsReleased.WithLabelValues(string(kind)).Inc()
	}
	return deleted, nil
}

// Sweep releases every blob of kind that nothing references.
func (s *ContentStore) Sweep(ctx context.Context, kind models.BlobKind, refs RefCounter) (int, error) {
	hashes, err := s.blobs.Hashes(ctx, kind)
	if err != nil {
		return 0, fmt.Errorf("content: list %s: %w", kind, err)
	}
	released := 0
	for _, h := range hashes {
		if ctx.Err() != nil {
			return released, ctx.Err()
		}
		ok, err := s.ReleaseIfUnreferenced(ctx, kind, h, refs)
		if err != nil {
			return released, err
		}
		if ok {
			released++
		}
	}
	if released > 0 {
		logger.WithCtx(ctx).Info("content: sweep released orphans", "kind", kind, "count", released)
	}
	return released, nil
}
