package s3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorage_PublicURL_UsesEndpoint(t *testing.T) {
	s, err := New(Config{Endpoint: "localhost:9000", AccessKey: "k", SecretKey: "s"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9000/pets/abc.png", s.PublicURL("pets", "abc.png"))
}

func TestStorage_PublicURL_UsesConfiguredBase(t *testing.T) {
	s, err := New(Config{
		Endpoint:      "minio:9000",
		UseSSL:        true,
		PublicBaseURL: "https://cdn.example.com/",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/profiles/u1.jpg", s.PublicURL("profiles", "u1.jpg"))
}
