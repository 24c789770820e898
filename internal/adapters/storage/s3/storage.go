package s3

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"pet-marketplace/internal/platform/logger"
	"pet-marketplace/internal/ports/backend"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	PublicBaseURL string // opcional; por defecto el endpoint del cliente
}

// Storage implementa backend.ObjectStorage sobre un S3 compatible (MinIO).
// Cada bucket lógico (pets, services, profiles, products) es un bucket real.
type Storage struct {
	client  *minio.Client
	baseURL string
	log     logger.Logger

	mu    sync.Mutex
	ready map[string]bool
}

func New(cfg Config, log logger.Logger) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: create client for %s: %w", cfg.Endpoint, err)
	}

	base := strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")
	if base == "" {
		base = client.EndpointURL().String()
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Storage{
		client:  client,
		baseURL: base,
		log:     log.With(map[string]any{"component": "s3"}),
		ready:   map[string]bool{},
	}, nil
}

// ensureBucket crea el bucket la primera vez que se usa.
func (s *Storage) ensureBucket(ctx context.Context, bucket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready[bucket] {
		return nil
	}

	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("s3: check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("s3: make bucket %s: %w", bucket, err)
		}
		s.log.Info("bucket created", map[string]any{"bucket": bucket})
	}
	s.ready[bucket] = true
	return nil
}

func (s *Storage) Upload(ctx context.Context, bucket, key string, data []byte, opts backend.UploadOptions) error {
	if err := s.ensureBucket(ctx, bucket); err != nil {
		return err
	}

	if !opts.Upsert {
		_, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
		if err == nil {
			return fmt.Errorf("%w: object %s/%s already exists", backend.ErrConflict, bucket, key)
		}
		if minio.ToErrorResponse(err).Code != "NoSuchKey" {
			return fmt.Errorf("s3: stat %s/%s: %w", bucket, key, err)
		}
	}

	info, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: opts.ContentType,
	})
	if err != nil {
		s.log.Error("put object failed", map[string]any{"bucket": bucket, "key": key, "error": err})
		return fmt.Errorf("s3: put %s/%s: %w", bucket, key, err)
	}

	s.log.Debug("object uploaded", map[string]any{"bucket": info.Bucket, "key": info.Key, "size": info.Size})
	return nil
}

func (s *Storage) PublicURL(bucket, key string) string {
	return fmt.Sprintf("%s/%s/%s", s.baseURL, bucket, key)
}

func (s *Storage) Remove(ctx context.Context, bucket string, keys []string) error {
	for _, k := range keys {
		err := s.client.RemoveObject(ctx, bucket, k, minio.RemoveObjectOptions{})
		if err != nil && minio.ToErrorResponse(err).Code != "NoSuchKey" {
			return fmt.Errorf("s3: remove %s/%s: %w", bucket, k, err)
		}
	}
	return nil
}
