// Command datafusion-server runs the HTTP (and optional Arrow
// Flight gRPC) surface over the embedded query engine, wiring every
// internal package the way the teacher's cmd/app binaries assemble
// their own bootstrap.
package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"

	"github.com/sal-openlab/datafusion-server/internal/config"
	"github.com/sal-openlab/datafusion-server/internal/datasource"
	"github.com/sal-openlab/datafusion-server/internal/datasource/arrowreader"
	"github.com/sal-openlab/datafusion-server/internal/datasource/avroreader"
	"github.com/sal-openlab/datafusion-server/internal/datasource/csvreader"
	"github.com/sal-openlab/datafusion-server/internal/datasource/deltareader"
	"github.com/sal-openlab/datafusion-server/internal/datasource/flightreader"
	"github.com/sal-openlab/datafusion-server/internal/datasource/jsonreader"
	"github.com/sal-openlab/datafusion-server/internal/datasource/ndjsonreader"
	"github.com/sal-openlab/datafusion-server/internal/datasource/parquetreader"
	"github.com/sal-openlab/datafusion-server/internal/datasource/pluginreader"
	"github.com/sal-openlab/datafusion-server/internal/datasource/sourceopen"
	"github.com/sal-openlab/datafusion-server/internal/engine"
	"github.com/sal-openlab/datafusion-server/internal/externaldb"
	"github.com/sal-openlab/datafusion-server/internal/flightrpc"
	"github.com/sal-openlab/datafusion-server/internal/httpapi"
	"github.com/sal-openlab/datafusion-server/internal/location"
	"github.com/sal-openlab/datafusion-server/internal/mlog"
	"github.com/sal-openlab/datafusion-server/internal/objectstore"
	"github.com/sal-openlab/datafusion-server/internal/plugin"
	"github.com/sal-openlab/datafusion-server/internal/session"
)

func main() {
	v := viper.New()
	root := &cobra.Command{
		Use:           "datafusion-server",
		Short:         "Arrow-native query service over CSV, JSON, Parquet, Avro, Delta Lake and external databases",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			return run(cfg)
		},
	}

	config.BindFlags(root.Flags(), v)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	logger, err := mlog.NewZapLogger(cfg.LogLevel, cfg.EnvName)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := objectstore.NewRegistry(ctx, cfg.ObjectStores, logger)
	if err != nil {
		return fmt.Errorf("build object-store registry: %w", err)
	}
	defer func() {
		if err := stores.Close(); err != nil {
			logger.Warnf("close object-store registry: %s", err)
		}
	}()

	externalDBs, err := externaldb.NewResolver(cfg.ExternalDBs, cfg.RedisAddr, cfg.RedisSchemaTTL, logger)
	if err != nil {
		return fmt.Errorf("build external-db resolver: %w", err)
	}
	defer func() {
		if err := externalDBs.Close(); err != nil {
			logger.Warnf("close external-db resolver: %s", err)
		}
	}()

	plugins := plugin.NewRegistry(logger)
	if err := plugins.Load(cfg.Plugins); err != nil {
		return fmt.Errorf("load plugins: %w", err)
	}
	defer plugins.Close()

	registry := buildDataSourceRegistry(stores, plugins)

	sessions := session.NewManager(
		func() (engine.Session, error) { return engine.NewDuckDBSession() },
		registry,
		cfg.SessionDefaultKeepAlive,
		cfg.SessionReapInterval,
		logger,
		externalDBs,
	)
	defer sessions.Close()

	app := httpapi.NewApp(httpapi.Deps{
		Config:    &cfg,
		Logger:    logger,
		Sessions:  sessions,
		Stores:    stores,
		ExternalD: externalDBs,
		Plugins:   plugins,
		StartedAt: time.Now(),
	})

	errCh := make(chan error, 2)

	go func() {
		logger.Infof("http surface listening on %s", cfg.ServerAddress)

		if err := app.Listen(cfg.ServerAddress); err != nil {
			errCh <- fmt.Errorf("http surface: %w", err)
		}
	}()

	var flightServer *grpc.Server

	if cfg.FlightAddress != "" {
		lis, err := net.Listen("tcp", cfg.FlightAddress)
		if err != nil {
			return fmt.Errorf("bind flight address %s: %w", cfg.FlightAddress, err)
		}

		flightServer = flightrpc.NewServer(sessions)

		go func() {
			logger.Infof("flight surface listening on %s", cfg.FlightAddress)

			if err := flightServer.Serve(lis); err != nil {
				errCh <- fmt.Errorf("flight surface: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Errorf("server error: %s", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warnf("shutdown http surface: %s", err)
	}

	if flightServer != nil {
		flightServer.GracefulStop()
	}

	return nil
}

// buildDataSourceRegistry populates C3's (format, scheme-class)
// dispatch table, matching every reader built under
// internal/datasource to the origins it can actually serve.
func buildDataSourceRegistry(stores *objectstore.Registry, plugins *plugin.Registry) *datasource.Registry {
	registry := datasource.NewRegistry()

	registry.Register(location.CSV, csvreader.New(), datasource.OriginLocal)
	registry.Register(location.CSV, &csvreader.Reader{Open: sourceopen.HTTP}, datasource.OriginRemote)
	registry.Register(location.CSV, &csvreader.Reader{Open: sourceopen.ObjectStore(stores)}, datasource.OriginObjectStore)

	registry.Register(location.JSON, jsonreader.New(), datasource.OriginLocal)
	registry.Register(location.JSON, &jsonreader.Reader{Open: sourceopen.HTTP}, datasource.OriginRemote)
	registry.Register(location.JSON, &jsonreader.Reader{Open: sourceopen.ObjectStore(stores)}, datasource.OriginObjectStore)

	registry.Register(location.NDJSON, ndjsonreader.New(), datasource.OriginLocal)
	registry.Register(location.NDJSON, &ndjsonreader.Reader{Open: sourceopen.HTTP}, datasource.OriginRemote)
	registry.Register(location.NDJSON, &ndjsonreader.Reader{Open: sourceopen.ObjectStore(stores)}, datasource.OriginObjectStore)

	// Parquet and Avro decode through a library that reads directly off
	// an *os.File (footer/container access needs io.ReaderAt), so only
	// the local-file origin is wired; a remote or object-store
	// Parquet/Avro source would need to be staged to disk first, which
	// spec.md does not ask for.
	registry.Register(location.Parquet, parquetreader.New(), datasource.OriginLocal)
	registry.Register(location.Avro, avroreader.New(), datasource.OriginLocal)

	registry.Register(location.Deltalake, deltareader.New(stores), datasource.OriginObjectStore)

	registry.Register(location.ArrowStream, flightreader.New(), datasource.OriginRemote)

	registry.RegisterPlugin(pluginreader.New(plugins, bufferDecoders()))

	return registry
}

// bufferDecoders adapts the file-backed CSV/JSON/NDJSON/Arrow readers
// into pluginreader.BufferDecoder, so a plugin-declared payload is
// decoded with the same logic a first-class source of that format
// uses, rather than a duplicate parser.
func bufferDecoders() map[location.Format]pluginreader.BufferDecoder {
	open := func(data []byte) func(datasource.DataSource) (io.ReadCloser, error) {
		return func(datasource.DataSource) (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		}
	}

	return map[location.Format]pluginreader.BufferDecoder{
		location.CSV: func(data []byte, ds datasource.DataSource) ([]arrow.Record, error) {
			return (&csvreader.Reader{Open: open(data)}).Read(context.Background(), ds)
		},
		location.JSON: func(data []byte, ds datasource.DataSource) ([]arrow.Record, error) {
			return (&jsonreader.Reader{Open: open(data)}).Read(context.Background(), ds)
		},
		location.NDJSON: func(data []byte, ds datasource.DataSource) ([]arrow.Record, error) {
			return (&ndjsonreader.Reader{Open: open(data)}).Read(context.Background(), ds)
		},
		location.ArrowStream: func(data []byte, _ datasource.DataSource) ([]arrow.Record, error) {
			return arrowreader.DecodeBuffer(data)
		},
	}
}
