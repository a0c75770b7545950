package plugin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sal-openlab/datafusion-server/internal/mlog"
)

type fakeExtension struct {
	fetchResp FetchResponse
	fetchErr  error
}

func (f *fakeExtension) FetchDataSource(ctx context.Context, req FetchRequest) (FetchResponse, error) {
	return f.fetchResp, f.fetchErr
}

func (f *fakeExtension) Process(ctx context.Context, req ProcessRequest) (ProcessResponse, error) {
	return ProcessResponse{}, nil
}

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry(mlog.Noop{})
	ext := &fakeExtension{}

	r.Register("myscheme", ext)

	got, err := r.Lookup("myscheme")
	require.NoError(t, err)
	assert.Same(t, ext, got)
}

func TestLookupUnregisteredReturnsError(t *testing.T) {
	r := NewRegistry(mlog.Noop{})

	_, err := r.Lookup("missing")
	assert.Error(t, err)
}

func TestHasSchemeReflectsRegisteredExtensions(t *testing.T) {
	r := NewRegistry(mlog.Noop{})
	assert.False(t, r.HasScheme("s3"))

	r.Register("s3", &fakeExtension{})
	assert.True(t, r.HasScheme("s3"))
}

func TestCountReflectsLoadedClientsOnly(t *testing.T) {
	r := NewRegistry(mlog.Noop{})
	r.Register("s3", &fakeExtension{})

	assert.Equal(t, 0, r.Count())
}

func TestCloseWithNoClientsIsNoop(t *testing.T) {
	r := NewRegistry(mlog.Noop{})
	r.Close()
}
