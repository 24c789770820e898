package querycache

import (
	"context"
	"time"
)

// Observer recibe eventos del cache (métricas).
type Observer interface {
	Hit(entity string)
	Miss(entity string)
	Fetch(entity string, took time.Duration)
	FetchFailed(entity string)
	Invalidated(entity string, entries int)
}

type nopObserver struct{}

func (nopObserver) Hit(string)                  {}
func (nopObserver) Miss(string)                 {}
func (nopObserver) Fetch(string, time.Duration) {}
func (nopObserver) FetchFailed(string)          {}
func (nopObserver) Invalidated(string, int)     {}

// SharedStore es un segundo nivel opcional compartido entre procesos.
// Solo se usa para entidades con Policy.Shared.
type SharedStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
}
