// Package bind decodes request bodies and runs struct validation.
package bind

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/shashiranjanraj/leppupy/config"
	"github.com/shashiranjanraj/leppupy/pkg/validate"
)

// maxBodyBytes returns MAX_BODY_BYTES; product uploads carry several images
// so the default is 16 MB.
func maxBodyBytes() int64 {
	n := int64(config.Int("MAX_BODY_BYTES", 16<<20))
	if n <= 0 {
		return 16 << 20
	}
	return n
}

// JSON decodes r.Body into dest and validates it.
// Returns (errs, nil) on validation failures and (nil, err) when the body is
// malformed or too large.
func JSON(r *http.Request, dest any) (map[string]string, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes())

	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, fmt.Errorf("request body too large (max %d bytes)", maxErr.Limit)
		}
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("request body is empty")
		}
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if errs := validate.Struct(dest); validate.HasErrors(errs) {
		return errs, nil
	}
	return nil, nil
}

// Multipart parses a multipart/form-data body within the size limit.
func Multipart(r *http.Request) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes())
	if err := r.ParseMultipartForm(maxBodyBytes()); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body too large (max %d bytes)", maxErr.Limit)
		}
		return fmt.Errorf("invalid multipart form: %w", err)
	}
	return nil
}

// ReadFiles returns the contents of every uploaded file under field.
func ReadFiles(r *http.Request, field string) ([][]byte, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	var out [][]byte
	for _, fh := range r.MultipartForm.File[field] {
		data, err := readFile(fh)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", field, err)
		}
		if len(data) > 0 {
			out = append(out, data)
		}
	}
	return out, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
