package redis

import (
	"context"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewClient_FailsWhenUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := NewClient(ctx, Config{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
	assert.Nil(t, c)
}

func TestScanPattern_EscapesCanonicalKeys(t *testing.T) {
	prefix := `pet-marketplace:brazilianMunicipalities:["sp"]`
	pattern := scanPattern(prefix)
	assert.Equal(t, `pet-marketplace:brazilianMunicipalities:\["sp"\]*`, pattern)

	ok, err := path.Match(pattern, prefix)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, _ = path.Match(pattern, `pet-marketplace:brazilianMunicipalities:s`)
	assert.False(t, ok)

	assert.Equal(t, `a\*b\?*`, scanPattern("a*b?"))
}
