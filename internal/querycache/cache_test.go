package querycache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached")
}

func TestKey_ComparedByValue(t *testing.T) {
	a := NewKey("pets", map[string]string{"search": "rex", "category": "dogs"})
	b := NewKey("pets", map[string]string{"category": "dogs", "search": "rex"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, NewKey("pets", map[string]string{"category": "cats"}))
	assert.NotEqual(t, NewKey("userPets", "u1"), NewKey("userProfile", "u1"))

	assert.True(t, Entity("pets").matches(a))
	assert.True(t, Exact(b).matches(a))
	assert.False(t, Exact(NewKey("pets")).matches(a))
}

func TestFetch_ConcurrentIdenticalReadsShareOneFetch(t *testing.T) {
	c := New(Config{})
	key := NewKey("pets", "dogs")

	var calls atomic.Int32
	release := make(chan struct{})
	fn := func(ctx context.Context) ([]string, error) {
		calls.Add(1)
		<-release
		return []string{"rex"}, nil
	}

	var wg sync.WaitGroup
	results := make([][]string, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := Fetch(context.Background(), c, key, fn)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	waitFor(t, func() bool { return c.Snapshot(key).Waiters == 2 })
	waitFor(t, func() bool { return c.Snapshot(key).Status == StatusLoading })
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, []string{"rex"}, results[0])
	assert.Equal(t, []string{"rex"}, results[1])
	assert.Equal(t, StatusFresh, c.Snapshot(key).Status)

	// dentro de la ventana de frescura no se vuelve a pedir
	_, err := Fetch(context.Background(), c, key, fn)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_InvalidateForcesRefetch(t *testing.T) {
	c := New(Config{})
	ctx := context.Background()
	mine := NewKey("userPets", "u1")
	other := NewKey("userPets", "u2")

	var calls atomic.Int32
	fn := func(ctx context.Context) (int, error) { return int(calls.Add(1)), nil }

	_, _ = Fetch(ctx, c, mine, fn)
	_, _ = Fetch(ctx, c, other, fn)
	require.Equal(t, int32(2), calls.Load())

	n := c.Invalidate(ctx, Exact(mine))
	assert.Equal(t, 1, n)
	assert.Equal(t, StatusStale, c.Snapshot(mine).Status)
	assert.Equal(t, StatusFresh, c.Snapshot(other).Status)

	v, err := Fetch(ctx, c, mine, fn)
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	v, err = Fetch(ctx, c, other, fn)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	assert.Equal(t, 2, c.Invalidate(ctx, Entity("userPets")))
}

func TestFetch_InvalidateDuringFlightNeverMarksFresh(t *testing.T) {
	c := New(Config{})
	ctx := context.Background()
	key := NewKey("userPets", "u1")

	release := make(chan struct{})
	var calls atomic.Int32
	fn := func(ctx context.Context) (string, error) {
		if calls.Add(1) == 1 {
			<-release
			return "old", nil
		}
		return "new", nil
	}

	done := make(chan string)
	go func() {
		v, _ := Fetch(ctx, c, key, fn)
		done <- v
	}()
	waitFor(t, func() bool { return c.Snapshot(key).Loading })

	c.Invalidate(ctx, Exact(key))
	close(release)
	assert.Equal(t, "old", <-done)
	assert.Equal(t, StatusStale, c.Snapshot(key).Status)

	v, err := Fetch(ctx, c, key, fn)
	require.NoError(t, err)
	assert.Equal(t, "new", v)
	assert.Equal(t, StatusFresh, c.Snapshot(key).Status)
}

func TestFetch_FailureKeepsPreviousValueAndRetries(t *testing.T) {
	c := New(Config{Retry: 1})
	ctx := context.Background()
	key := NewKey("userProfile", "u1")
	boom := errors.New("boom")

	var calls atomic.Int32
	fail := false
	fn := func(ctx context.Context) (string, error) {
		calls.Add(1)
		if fail {
			return "", boom
		}
		return "ana", nil
	}

	_, err := Fetch(ctx, c, key, fn)
	require.NoError(t, err)

	c.Invalidate(ctx, Exact(key))
	fail = true
	v, err := Fetch(ctx, c, key, fn)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "ana", v)
	assert.Equal(t, int32(3), calls.Load(), "one initial fetch plus one retry")

	snap := c.Snapshot(key)
	assert.Equal(t, StatusStale, snap.Status)
	assert.ErrorIs(t, snap.Err, boom)

	// el fallo no se cachea: la siguiente lectura vuelve a pedir
	fail = false
	v, err = Fetch(ctx, c, key, fn)
	require.NoError(t, err)
	assert.Equal(t, "ana", v)
	assert.Nil(t, c.Snapshot(key).Err)
}

func TestFetch_FailureWithoutPriorValue(t *testing.T) {
	c := New(Config{Retry: 0})
	key := NewKey("pets")
	boom := errors.New("boom")

	v, err := Fetch(context.Background(), c, key, func(ctx context.Context) ([]string, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, v)
	assert.Equal(t, StatusFailed, c.Snapshot(key).Status)
}

func TestFetch_TransientFailureIsRetriedTransparently(t *testing.T) {
	c := New(Config{Retry: 1, RetryDelay: time.Millisecond})
	var calls atomic.Int32
	v, err := Fetch(context.Background(), c, NewKey("vaccines"), func(ctx context.Context) (string, error) {
		if calls.Add(1) == 1 {
			return "", errors.New("flaky")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetch_StaleTimePerEntity(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(Config{}, WithClock(func() time.Time { return now }))
	c.SetPolicy("userPets", Policy{StaleTime: 0})
	c.SetPolicy("vaccines", Policy{StaleTime: time.Hour})
	ctx := context.Background()

	var calls atomic.Int32
	fn := func(ctx context.Context) (int, error) { return int(calls.Add(1)), nil }

	_, _ = Fetch(ctx, c, NewKey("userPets", "u1"), fn)
	_, _ = Fetch(ctx, c, NewKey("userPets", "u1"), fn)
	assert.Equal(t, int32(2), calls.Load(), "zero freshness always refetches")

	_, _ = Fetch(ctx, c, NewKey("vaccines"), fn)
	now = now.Add(59 * time.Minute)
	_, _ = Fetch(ctx, c, NewKey("vaccines"), fn)
	assert.Equal(t, int32(3), calls.Load())

	now = now.Add(2 * time.Minute)
	_, _ = Fetch(ctx, c, NewKey("vaccines"), fn)
	assert.Equal(t, int32(4), calls.Load())

	_, _ = Fetch(ctx, c, NewKey("pets"), fn)
	now = now.Add(4 * time.Minute)
	_, _ = Fetch(ctx, c, NewKey("pets"), fn)
	assert.Equal(t, int32(5), calls.Load(), "default freshness is five minutes")
}

func TestFetch_CallerCancellationDoesNotAffectOthers(t *testing.T) {
	c := New(Config{})
	key := NewKey("services")
	release := make(chan struct{})
	fn := func(ctx context.Context) (string, error) {
		<-release
		return "ok", ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error)
	go func() {
		_, err := Fetch(ctx, c, key, fn)
		errCh <- err
	}()
	valCh := make(chan string)
	go func() {
		v, _ := Fetch(context.Background(), c, key, fn)
		valCh <- v
	}()

	waitFor(t, func() bool { return c.Snapshot(key).Waiters == 2 })
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(release)
	assert.Equal(t, "ok", <-valCh)
}

type fakeShared struct {
	mu      sync.Mutex
	data    map[string][]byte
	deleted []string
}

func newFakeShared() *fakeShared { return &fakeShared{data: map[string][]byte{}} }

func (f *fakeShared) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.data[key]
	return b, ok, nil
}

func (f *fakeShared) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeShared) DeletePrefix(ctx context.Context, prefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, prefix)
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			delete(f.data, k)
		}
	}
	return nil
}

func TestFetch_SharedStoreAcrossCaches(t *testing.T) {
	shared := newFakeShared()
	policy := Policy{StaleTime: 24 * time.Hour, Shared: true}
	ctx := context.Background()
	key := NewKey("brazilianMunicipalities")

	var calls atomic.Int32
	fn := func(ctx context.Context) ([]string, error) {
		calls.Add(1)
		return []string{"Recife - PE"}, nil
	}

	c1 := New(Config{}, WithSharedStore(shared))
	c1.SetPolicy("brazilianMunicipalities", policy)
	_, err := Fetch(ctx, c1, key, fn)
	require.NoError(t, err)

	c2 := New(Config{}, WithSharedStore(shared))
	c2.SetPolicy("brazilianMunicipalities", policy)
	v, err := Fetch(ctx, c2, key, fn)
	require.NoError(t, err)
	assert.Equal(t, []string{"Recife - PE"}, v)
	assert.Equal(t, int32(1), calls.Load())

	c2.Invalidate(ctx, Entity("brazilianMunicipalities"))
	assert.Equal(t, []string{"brazilianMunicipalities:"}, shared.deleted)
	assert.Empty(t, shared.data)

	// entidades no compartidas no tocan el store
	_, _ = Fetch(ctx, c2, NewKey("userPets", "u1"), fn)
	assert.Empty(t, shared.data)
}

type countingObserver struct {
	mu                         sync.Mutex
	hits, misses, fetches, bad int
	invalidated                map[string]int
}

func (o *countingObserver) Hit(string)  { o.mu.Lock(); o.hits++; o.mu.Unlock() }
func (o *countingObserver) Miss(string) { o.mu.Lock(); o.misses++; o.mu.Unlock() }
func (o *countingObserver) Fetch(string, time.Duration) {
	o.mu.Lock()
	o.fetches++
	o.mu.Unlock()
}
func (o *countingObserver) FetchFailed(string) { o.mu.Lock(); o.bad++; o.mu.Unlock() }
func (o *countingObserver) Invalidated(entity string, n int) {
	o.mu.Lock()
	o.invalidated[entity] += n
	o.mu.Unlock()
}

func TestCache_ObserverEvents(t *testing.T) {
	obs := &countingObserver{invalidated: map[string]int{}}
	c := New(Config{}, WithObserver(obs))
	ctx := context.Background()
	fn := func(ctx context.Context) (int, error) { return 1, nil }

	_, _ = Fetch(ctx, c, NewKey("pets"), fn)
	_, _ = Fetch(ctx, c, NewKey("pets"), fn)
	c.Invalidate(ctx, Entity("pets"))

	assert.Equal(t, 1, obs.hits)
	assert.Equal(t, 1, obs.misses)
	assert.Equal(t, 1, obs.fetches)
	assert.Equal(t, 1, obs.invalidated["pets"])
}

// gateObserver frena el primer Miss armado hasta que se libere gate.
type gateObserver struct {
	nopObserver
	armed   atomic.Bool
	reached chan struct{}
	gate    chan struct{}
}

func (o *gateObserver) Miss(string) {
	if o.armed.CompareAndSwap(true, false) {
		close(o.reached)
		<-o.gate
	}
}

func TestFetch_ReadBetweenMissAndJoinReusesSettledValue(t *testing.T) {
	obs := &gateObserver{reached: make(chan struct{}), gate: make(chan struct{})}
	c := New(Config{}, WithObserver(obs))
	ctx := context.Background()
	key := NewKey("pets", map[string]string{"category": "dogs"})

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	fn := func(ctx context.Context) ([]string, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
		}
		return []string{"rex"}, nil
	}

	aDone := make(chan struct{})
	go func() {
		defer close(aDone)
		v, err := Fetch(ctx, c, key, fn)
		assert.NoError(t, err)
		assert.Equal(t, []string{"rex"}, v)
	}()
	<-started

	obs.armed.Store(true)
	bDone := make(chan struct{})
	var got []string
	go func() {
		defer close(bDone)
		v, err := Fetch(ctx, c, key, fn)
		assert.NoError(t, err)
		got = v
	}()
	<-obs.reached

	close(release)
	<-aDone
	close(obs.gate)
	<-bDone

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, []string{"rex"}, got)
	assert.Equal(t, StatusFresh, c.Snapshot(key).Status)
}
