package rest

import (
	"bytes"
	"context"
	"net/http"
	"strconv"

	"pet-marketplace/internal/platform/httpclient"
	"pet-marketplace/internal/ports/backend"
)

const storagePath = "/storage/v1/object/"

type Storage struct {
	c *Client
}

func (s *Storage) Upload(ctx context.Context, bucket, key string, data []byte, opts backend.UploadOptions) error {
	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return s.c.do(ctx, httpclient.Request{
		Method:      http.MethodPost,
		Path:        storagePath + bucket + "/" + key,
		Body:        bytes.NewReader(data),
		ContentType: contentType,
		Headers: s.c.headers(ctx, map[string]string{
			"x-upsert":      strconv.FormatBool(opts.Upsert),
			"cache-control": "3600",
		}),
	}, nil)
}

func (s *Storage) PublicURL(bucket, key string) string {
	return s.c.http.BaseURL + storagePath + "public/" + bucket + "/" + key
}

func (s *Storage) Remove(ctx context.Context, bucket string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.c.do(ctx, httpclient.Request{
		Method:  http.MethodDelete,
		Path:    storagePath + bucket,
		Headers: s.c.headers(ctx, nil),
		JSON:    map[string]any{"prefixes": keys},
	}, nil)
}
