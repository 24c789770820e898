package locations

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	ports "pet-marketplace/internal/ports/locations"
	"pet-marketplace/internal/querycache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	items []ports.Municipality
	err   error
	calls atomic.Int32
}

func (f *fakeProvider) Municipalities(ctx context.Context) ([]ports.Municipality, error) {
	f.calls.Add(1)
	return f.items, f.err
}

func TestMunicipalities_SortedAndLabeled(t *testing.T) {
	p := &fakeProvider{items: []ports.Municipality{
		{ID: 1, Name: "Natal", UF: "RN"},
		{ID: 2, Name: "Mossoró", UF: "RN"},
		{ID: 3, Name: "Salvador", UF: "BA"},
		{ID: 4, Name: "Sem UF"},
	}}
	svc := NewService(p, querycache.New(querycache.Config{}), nil)

	out, err := svc.Municipalities(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "Salvador - BA", out[0].Label)
	assert.Equal(t, "Mossoró - RN", out[1].Value)
	assert.Equal(t, "Natal - RN", out[2].Label)

	filtered, err := svc.Municipalities(context.Background(), "  NAT ")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "Natal - RN", filtered[0].Label)
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestMunicipalities_ErrorNotCached(t *testing.T) {
	p := &fakeProvider{err: errors.New("down")}
	svc := NewService(p, querycache.New(querycache.Config{}), nil)

	_, err := svc.Municipalities(context.Background(), "")
	require.Error(t, err)

	p.err = nil
	p.items = []ports.Municipality{{Name: "Natal", UF: "RN"}}
	out, err := svc.Municipalities(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, int32(2), p.calls.Load())
}
