package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volleyworks/volley/internal/config"
)

func TestNew(t *testing.T) {
	b := New(config.PostgresConfig{Host: "localhost"}, nil)
	require.NotNil(t, b)
	assert.Nil(t, b.Backend)
	assert.NoError(t, b.Close())
}

func TestInit_Unreachable(t *testing.T) {
	b := New(config.PostgresConfig{
		Host:     "127.0.0.1",
		Port:     "1",
		Username: "volley",
		Password: "volley",
		Database: "volley",
	}, nil)

	err := b.Init()
	require.Error(t, err)
	assert.Nil(t, b.Backend)
	assert.NoError(t, b.Close())
}
