// Package server initializes and runs the authentication server. It selects
// the credential backend, runs schema migrations for the relational one,
// wires the session authority, dispatcher and audit sink together, and
// handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/authgate/internal/logging"
	"github.com/dmitrijs2005/authgate/internal/server/audit"
	"github.com/dmitrijs2005/authgate/internal/server/config"
	"github.com/dmitrijs2005/authgate/internal/server/credstore"
	"github.com/dmitrijs2005/authgate/internal/server/dispatch"
	"github.com/dmitrijs2005/authgate/internal/server/migrations"
	"github.com/dmitrijs2005/authgate/internal/server/sessions"
	"github.com/dmitrijs2005/authgate/internal/server/snapshot"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	gs "github.com/dmitrijs2005/authgate/internal/server/grpc"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	db        *sql.DB
	store     credstore.Store
	authority sessions.Authority
	sink      *audit.Sink
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	app := &App{config: c, logger: logger}

	switch c.Backend {
	case config.BackendPostgres:
		if err := app.initPostgres(ctx, c); err != nil {
			return nil, err
		}
	case config.BackendMemory:
		if err := app.initMemory(ctx, c); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown backend: %s", c.Backend)
	}

	app.sink = audit.NewSink(audit.NewLogListener(logger))

	return app, nil
}

func (app *App) initPostgres(ctx context.Context, c *config.Config) error {
	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		return fmt.Errorf("db migration error: %w", err)
	}

	store := credstore.NewPostgres(db, app.logger)

	app.db = db
	app.store = store
	app.authority = sessions.NewPostgres(db, store, app.logger)
	return nil
}

func (app *App) initMemory(ctx context.Context, c *config.Config) error {
	snap, err := newSnapshot(ctx, c)
	if err != nil {
		return err
	}

	store, err := credstore.NewMemory(ctx, snap, app.logger)
	if err != nil {
		return fmt.Errorf("auth list load error: %w", err)
	}

	app.store = store
	app.authority = sessions.NewMemory(store, app.logger)
	return nil
}

func newSnapshot(ctx context.Context, c *config.Config) (snapshot.Store, error) {
	switch c.Snapshot {
	case config.SnapshotNone:
		return nil, nil
	case config.SnapshotFile:
		return snapshot.NewSealed(snapshot.NewFile(c.AuthListPath), []byte(c.SecretKey)), nil
	case config.SnapshotS3:
		s3, err := snapshot.NewS3(ctx, snapshot.S3Config{
			RootUser:     c.S3RootUser,
			RootPassword: c.S3RootPassword,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			ObjectKey:    c.S3ObjectKey,
		})
		if err != nil {
			return nil, err
		}
		return snapshot.NewSealed(s3, []byte(c.SecretKey)), nil
	default:
		return nil, fmt.Errorf("unknown snapshot source: %s", c.Snapshot)
	}
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	handler := dispatch.New(app.authority, app.store, app.logger)

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.authority, handler, app.sink,
		app.config.SecretKey, app.config.SessionTokenValidityDuration, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.store.Save(context.WithoutCancel(ctx)); err != nil {
		app.logger.Error(ctx, "auth list save failed", "error", err)
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error(ctx, "db close failed", "error", err)
		}
	}
}
