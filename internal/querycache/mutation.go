package querycache

import (
	"context"
	"errors"
	"sync/atomic"
)

// committer lo implementan los errores de escritura parcial que dejaron cambios
// aplicados en el backend; en ese caso también se invalida.
type committer interface {
	Committed() bool
}

// Mutation envuelve una escritura: expone Pending() y al terminar bien invalida
// las keys que declara.
type Mutation[In, Out any] struct {
	cache       *Cache
	name        string
	run         func(context.Context, In) (Out, error)
	invalidates func(In, Out) []Match
	pending     *atomic.Int64
}

func NewMutation[In, Out any](
	c *Cache,
	name string,
	run func(context.Context, In) (Out, error),
	invalidates func(In, Out) []Match,
) *Mutation[In, Out] {
	return &Mutation[In, Out]{
		cache:       c,
		name:        name,
		run:         run,
		invalidates: invalidates,
		pending:     c.counter(name),
	}
}

func (m *Mutation[In, Out]) Name() string { return m.name }

func (m *Mutation[In, Out]) Pending() bool {
	return m.pending.Load() > 0
}

func (m *Mutation[In, Out]) Run(ctx context.Context, in In) (Out, error) {
	m.pending.Add(1)
	defer m.pending.Add(-1)

	out, err := m.run(ctx, in)
	if err != nil {
		var c committer
		if errors.As(err, &c) && c.Committed() {
			m.invalidate(ctx, in, out)
		}
		return out, err
	}
	m.invalidate(ctx, in, out)
	return out, nil
}

func (m *Mutation[In, Out]) invalidate(ctx context.Context, in In, out Out) {
	if m.invalidates == nil {
		return
	}
	m.cache.Invalidate(ctx, m.invalidates(in, out)...)
}
