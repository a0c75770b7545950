package objectstore

import (
	"context"
	"testing"

	_ "gocloud.dev/blob/memblob"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sal-openlab/datafusion-server/internal/config"
	"github.com/sal-openlab/datafusion-server/internal/mlog"
)

func TestNewRegistryLookupAndCount(t *testing.T) {
	cfgs := []config.ObjectStoreConfig{
		{Scheme: "mem", Authority: "bucket-a", URL: "mem://"},
		{Scheme: "mem", Authority: "bucket-b", URL: "mem://"},
	}

	reg, err := NewRegistry(context.Background(), cfgs, mlog.Noop{})
	require.NoError(t, err)
	defer func() { _ = reg.Close() }()

	assert.Equal(t, 2, reg.Count())

	b, ok := reg.Lookup("mem", "bucket-a")
	assert.True(t, ok)
	assert.NotNil(t, b)

	_, ok = reg.Lookup("mem", "unknown-authority")
	assert.False(t, ok)
}

func TestNewRegistrySkipsDuplicateKeys(t *testing.T) {
	cfgs := []config.ObjectStoreConfig{
		{Scheme: "mem", Authority: "bucket-a", URL: "mem://"},
		{Scheme: "mem", Authority: "bucket-a", URL: "mem://"},
	}

	reg, err := NewRegistry(context.Background(), cfgs, mlog.Noop{})
	require.NoError(t, err)
	defer func() { _ = reg.Close() }()

	assert.Equal(t, 1, reg.Count())
}

func TestNewRegistryPropagatesOpenError(t *testing.T) {
	cfgs := []config.ObjectStoreConfig{
		{Scheme: "s3", Authority: "broken", URL: "not-a-valid-url://??"},
	}

	_, err := NewRegistry(context.Background(), cfgs, mlog.Noop{})
	assert.Error(t, err)
}
