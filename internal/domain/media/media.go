package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"pet-marketplace/internal/ports/backend"

	"github.com/google/uuid"
)

// Buckets del storage.
const (
	BucketPets     = "pets"
	BucketServices = "services"
	BucketProfiles = "profiles"
	BucketProducts = "products"
)

const DefaultMaxBytes = 10 << 20

var (
	ErrEmptyFile    = errors.New("empty file")
	ErrFileTooLarge = errors.New("file too large")
)

// File es un archivo ya leído en memoria, listo para subir.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Ext devuelve la extensión en minúsculas sin el punto ("bin" si no tiene).
func (f File) Ext() string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(f.Name)), ".")
	if ext == "" {
		return "bin"
	}
	return ext
}

func (f File) contentType() string {
	if f.ContentType != "" {
		return f.ContentType
	}
	return http.DetectContentType(f.Data)
}

// ObjectName genera `<uuid>.<ext>`.
func ObjectName(f File) string {
	return uuid.NewString() + "." + f.Ext()
}

// Upload sube el archivo y devuelve su URL pública.
func Upload(ctx context.Context, storage backend.ObjectStorage, bucket, key string, f File, upsert bool) (string, error) {
	if len(f.Data) == 0 {
		return "", ErrEmptyFile
	}
	err := storage.Upload(ctx, bucket, key, f.Data, backend.UploadOptions{
		ContentType: f.contentType(),
		Upsert:      upsert,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s/%s: %w", bucket, key, err)
	}
	return storage.PublicURL(bucket, key), nil
}

// FromMultipart lee un archivo de un form multipart respetando maxBytes.
func FromMultipart(fh *multipart.FileHeader, maxBytes int64) (File, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if fh.Size > maxBytes {
		return File{}, ErrFileTooLarge
	}
	src, err := fh.Open()
	if err != nil {
		return File{}, err
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxBytes+1))
	if err != nil {
		return File{}, err
	}
	if int64(len(data)) > maxBytes {
		return File{}, ErrFileTooLarge
	}
	if len(data) == 0 {
		return File{}, ErrEmptyFile
	}
	return File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
