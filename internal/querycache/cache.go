package querycache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"pet-marketplace/internal/platform/logger"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultStaleTime = 5 * time.Minute
	DefaultRetry     = 1
)

type Status int

const (
	StatusAbsent Status = iota
	StatusLoading
	StatusFresh
	StatusStale
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusFresh:
		return "fresh"
	case StatusStale:
		return "stale"
	case StatusFailed:
		return "failed"
	default:
		return "absent"
	}
}

type Config struct {
	DefaultStaleTime time.Duration // 0 => DefaultStaleTime
	Retry            int           // reintentos transparentes después del primer intento
	RetryDelay       time.Duration
}

// Policy por entidad. StaleTime 0 => siempre se vuelve a pedir (pero se deduplica).
type Policy struct {
	StaleTime time.Duration
	// Shared habilita el SharedStore para la entidad. Solo para datos públicos.
	Shared bool
}

type entry struct {
	value       any
	hasValue    bool
	valueGen    uint64
	fetchedAt   time.Time
	invalidated bool
	gen         uint64
	err         error
	inflight    int
	waiters     int
}

// Cache es el cache de queries del proceso. Se inyecta; no hay instancia global.
type Cache struct {
	mu       sync.Mutex
	entries  map[Key]*entry
	policies map[string]Policy
	pending  map[string]*atomic.Int64
	group    singleflight.Group

	cfg    Config
	log    logger.Logger
	obs    Observer
	shared SharedStore
	now    func() time.Time
}

type Option func(*Cache)

func WithLogger(l logger.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(c *Cache) {
		if o != nil {
			c.obs = o
		}
	}
}

func WithSharedStore(s SharedStore) Option {
	return func(c *Cache) { c.shared = s }
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

func New(cfg Config, opts ...Option) *Cache {
	if cfg.DefaultStaleTime <= 0 {
		cfg.DefaultStaleTime = DefaultStaleTime
	}
	if cfg.Retry < 0 {
		cfg.Retry = 0
	}

	c := &Cache{
		entries:  make(map[Key]*entry),
		policies: make(map[string]Policy),
		pending:  make(map[string]*atomic.Int64),
		cfg:      cfg,
		log:      logger.Nop(),
		obs:      nopObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(map[string]any{"component": "querycache"})
	return c
}

func (c *Cache) SetPolicy(entity string, p Policy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.policies[entity] = p
}

// policyLocked requiere c.mu tomado.
func (c *Cache) policyLocked(entity string) Policy {
	if p, ok := c.policies[entity]; ok {
		return p
	}
	return Policy{StaleTime: c.cfg.DefaultStaleTime}
}

// entryLocked requiere c.mu tomado.
func (c *Cache) entryLocked(k Key) *entry {
	e, ok := c.entries[k]
	if !ok {
		e = &entry{}
		c.entries[k] = e
	}
	return e
}

func (c *Cache) freshLocked(e *entry, p Policy, now time.Time) bool {
	return e.hasValue && !e.invalidated && now.Sub(e.fetchedAt) < p.StaleTime
}

// Fetch devuelve el valor cacheado si está fresco; si no, ejecuta fn una sola vez
// para todos los llamadores concurrentes de la misma key.
//
// fn corre desacoplada del ctx del llamador: si un llamador se cancela, los demás
// siguen esperando el mismo resultado. Ante error se devuelve el último valor
// conocido (si hay) junto con el error.
func Fetch[T any](ctx context.Context, c *Cache, key Key, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	c.mu.Lock()
	e := c.entryLocked(key)
	p := c.policyLocked(key.Entity)
	if c.freshLocked(e, p, c.now()) {
		if v, ok := e.value.(T); ok {
			c.mu.Unlock()
			c.obs.Hit(key.Entity)
			return v, nil
		}
	}
	gen := e.gen
	c.mu.Unlock()
	c.obs.Miss(key.Entity)

	if p.Shared && c.shared != nil {
		if v, ok := loadShared[T](ctx, c, key, gen); ok {
			return v, nil
		}
	}

	c.mu.Lock()
	e = c.entryLocked(key)
	// otro llamador pudo completar el fetch entre los dos locks; singleflight ya
	// soltó la key, así que se vuelve a mirar antes de arrancar uno nuevo
	if c.freshLocked(e, p, c.now()) {
		if v, ok := e.value.(T); ok {
			c.mu.Unlock()
			return v, nil
		}
	}
	gen = e.gen
	e.waiters++
	ch := c.group.DoChan(flightKey(key, gen), func() (any, error) {
		return c.run(context.WithoutCancel(ctx), key, gen, func(ctx context.Context) (any, error) {
			return fn(ctx)
		})
	})
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		e.waiters--
		c.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			prev, _ := Peek[T](c, key)
			return prev, res.Err
		}
		v, _ := res.Val.(T)
		return v, nil
	}
}

// flightKey incluye la generación: una lectura posterior a Invalidate no se
// une a un fetch que arrancó antes.
func flightKey(k Key, gen uint64) string {
	return k.String() + "#" + strconv.FormatUint(gen, 10)
}

func (c *Cache) run(ctx context.Context, key Key, gen uint64, fn func(context.Context) (any, error)) (any, error) {
	c.mu.Lock()
	e := c.entryLocked(key)
	e.inflight++
	c.mu.Unlock()

	start := time.Now()
	var (
		v   any
		err error
	)
	for attempt := 0; attempt <= c.cfg.Retry; attempt++ {
		if attempt > 0 {
			c.log.Warn("query fetch retry", map[string]any{"key": key.String(), "attempt": attempt, "error": err})
			if !sleep(ctx, c.cfg.RetryDelay) {
				break
			}
		}
		v, err = fn(ctx)
		if err == nil || !retryable(err) {
			break
		}
	}

	c.mu.Lock()
	e.inflight--
	if err != nil {
		if e.gen == gen {
			e.err = err
			// se conserva el valor anterior, pero la próxima lectura vuelve a pedir
			e.invalidated = true
		}
		c.mu.Unlock()
		c.obs.FetchFailed(key.Entity)
		c.log.Warn("query fetch failed", map[string]any{"key": key.String(), "error": err})
		return nil, err
	}

	current := e.gen == gen
	if gen >= e.valueGen {
		e.value, e.hasValue, e.valueGen = v, true, gen
		e.fetchedAt = c.now()
		e.invalidated = !current
		if current {
			e.err = nil
		}
	}
	p := c.policyLocked(key.Entity)
	c.mu.Unlock()

	c.obs.Fetch(key.Entity, time.Since(start))
	if current && p.Shared && c.shared != nil && p.StaleTime > 0 {
		c.storeShared(ctx, key, v, p.StaleTime)
	}
	return v, nil
}

func retryable(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func loadShared[T any](ctx context.Context, c *Cache, key Key, gen uint64) (T, bool) {
	var zero T
	raw, ok, err := c.shared.Get(ctx, key.String())
	if err != nil {
		c.log.Warn("shared cache get failed", map[string]any{"key": key.String(), "error": err})
		return zero, false
	}
	if !ok {
		return zero, false
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		c.log.Warn("shared cache decode failed", map[string]any{"key": key.String(), "error": err})
		return zero, false
	}

	c.mu.Lock()
	e := c.entryLocked(key)
	if e.gen == gen {
		e.value, e.hasValue, e.valueGen = v, true, gen
		e.fetchedAt = c.now()
		e.invalidated = false
		e.err = nil
	}
	c.mu.Unlock()
	return v, true
}

func (c *Cache) storeShared(ctx context.Context, key Key, v any, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.log.Warn("shared cache encode failed", map[string]any{"key": key.String(), "error": err})
		return
	}
	if err := c.shared.Set(ctx, key.String(), raw, ttl); err != nil {
		c.log.Warn("shared cache set failed", map[string]any{"key": key.String(), "error": err})
	}
}

// Invalidate marca stale todas las entries que matchean y desacopla los fetch en vuelo.
// Devuelve cuántas entries se invalidaron.
func (c *Cache) Invalidate(ctx context.Context, matches ...Match) int {
	if len(matches) == 0 {
		return 0
	}

	c.mu.Lock()
	n := 0
	perEntity := map[string]int{}
	for k, e := range c.entries {
		for _, m := range matches {
			if m.matches(k) {
				e.invalidated = true
				e.gen++
				n++
				perEntity[k.Entity]++
				break
			}
		}
	}

	var prefixes []string
	if c.shared != nil {
		seen := map[string]bool{}
		for _, m := range matches {
			if !c.policyLocked(m.Entity).Shared {
				continue
			}
			prefix := m.Entity + ":"
			if m.key != nil {
				prefix = m.key.String()
			}
			if !seen[prefix] {
				seen[prefix] = true
				prefixes = append(prefixes, prefix)
			}
		}
	}
	c.mu.Unlock()

	for _, p := range prefixes {
		if err := c.shared.DeletePrefix(ctx, p); err != nil {
			c.log.Warn("shared cache invalidate failed", map[string]any{"prefix": p, "error": err})
		}
	}
	for entity, count := range perEntity {
		c.obs.Invalidated(entity, count)
	}
	if n > 0 {
		c.log.Debug("entries invalidated", map[string]any{"count": n})
	}
	return n
}

// Snapshot es la vista de una entry para quien renderiza: valor, loading y error.
type Snapshot struct {
	Status    Status
	Value     any
	HasValue  bool
	FetchedAt time.Time
	Err       error
	Loading   bool
	Waiters   int
}

func (c *Cache) Snapshot(key Key) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Snapshot{Status: StatusAbsent}
	}

	s := Snapshot{
		Value:     e.value,
		HasValue:  e.hasValue,
		FetchedAt: e.fetchedAt,
		Err:       e.err,
		Loading:   e.inflight > 0,
		Waiters:   e.waiters,
	}
	switch {
	case e.inflight > 0:
		s.Status = StatusLoading
	case c.freshLocked(e, c.policyLocked(key.Entity), c.now()):
		s.Status = StatusFresh
	case e.err != nil && !e.hasValue:
		s.Status = StatusFailed
	case e.hasValue:
		s.Status = StatusStale
	default:
		s.Status = StatusAbsent
	}
	return s
}

// Peek devuelve el último valor conocido sin disparar fetch.
func Peek[T any](c *Cache, key Key) (T, Snapshot) {
	var zero T
	s := c.Snapshot(key)
	if !s.HasValue {
		return zero, s
	}
	v, ok := s.Value.(T)
	if !ok {
		return zero, s
	}
	return v, s
}

// Pending indica si hay alguna ejecución en curso de la mutación name.
func (c *Cache) Pending(name string) bool {
	return c.counter(name).Load() > 0
}

func (c *Cache) counter(name string) *atomic.Int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctr, ok := c.pending[name]
	if !ok {
		ctr = &atomic.Int64{}
		c.pending[name] = ctr
	}
	return ctr
}
