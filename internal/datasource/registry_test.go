package datasource

import (
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sal-openlab/datafusion-server/internal/location"
)

type fakeReader struct {
	name string
}

func (f *fakeReader) Read(ctx context.Context, ds DataSource) ([]arrow.Record, error) {
	return nil, nil
}

func TestResolveDispatchesByFormatAndOrigin(t *testing.T) {
	reg := NewRegistry()
	csvLocal := &fakeReader{name: "csv-local"}
	csvRemote := &fakeReader{name: "csv-remote"}

	reg.Register(location.CSV, csvLocal, OriginLocal)
	reg.Register(location.CSV, csvRemote, OriginRemote)

	got, err := reg.Resolve(DataSource{Format: location.CSV, Location: location.Location{Scheme: location.File}})
	require.NoError(t, err)
	assert.Same(t, csvLocal, got)

	got, err = reg.Resolve(DataSource{Format: location.CSV, Location: location.Location{Scheme: location.HTTPS}})
	require.NoError(t, err)
	assert.Same(t, csvRemote, got)
}

func TestResolveReturnsErrorForUnregisteredPair(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Resolve(DataSource{Format: location.Parquet, Location: location.Location{Scheme: location.File}})
	assert.Error(t, err)
}

func TestResolveRoutesPluginOriginToPluginReader(t *testing.T) {
	reg := NewRegistry()
	pr := &fakeReader{name: "plugin"}
	reg.RegisterPlugin(pr)

	got, err := reg.Resolve(DataSource{Location: location.Location{IsPlugin: true, PluginTag: "custom"}})
	require.NoError(t, err)
	assert.Same(t, pr, got)
}

func TestResolvePluginOriginWithoutRegisteredPluginReaderErrors(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Resolve(DataSource{Location: location.Location{IsPlugin: true, PluginTag: "custom"}})
	assert.Error(t, err)
}

func TestResolveAllowsArrowStreamOverFlightScheme(t *testing.T) {
	reg := NewRegistry()
	flightReader := &fakeReader{name: "flight"}
	reg.Register(location.ArrowStream, flightReader, OriginRemote)

	got, err := reg.Resolve(DataSource{Format: location.ArrowStream, Location: location.Location{Scheme: location.GRPC}})
	require.NoError(t, err)
	assert.Same(t, flightReader, got)
}

func TestResolveRejectsArrowStreamOverNonFlightOrigin(t *testing.T) {
	reg := NewRegistry()
	reg.Register(location.ArrowStream, &fakeReader{}, OriginLocal)

	_, err := reg.Resolve(DataSource{Format: location.ArrowStream, Location: location.Location{Scheme: location.File}})
	assert.Error(t, err)
}

func TestClassifyDistinguishesOriginClasses(t *testing.T) {
	assert.Equal(t, originPlugin, classify(location.Location{IsPlugin: true}))
	assert.Equal(t, originRemote, classify(location.Location{Scheme: location.HTTPS}))
	assert.Equal(t, originObjectStore, classify(location.Location{Scheme: location.S3}))
	assert.Equal(t, originLocal, classify(location.Location{Scheme: location.File}))
}
