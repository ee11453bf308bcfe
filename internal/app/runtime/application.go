// Package runtime wires configuration, storage, services, and the HTTP
// server into a runnable gateway.
package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	_ "github.com/lib/pq"

	"github.com/itemgrid/itemgrid/internal/app"
	"github.com/itemgrid/itemgrid/internal/app/httpapi"
	"github.com/itemgrid/itemgrid/internal/app/metrics"
	"github.com/itemgrid/itemgrid/internal/app/storage"
	"github.com/itemgrid/itemgrid/internal/app/storage/memory"
	"github.com/itemgrid/itemgrid/internal/app/storage/postgres"
	"github.com/itemgrid/itemgrid/internal/app/storage/redisstore"
	"github.com/itemgrid/itemgrid/internal/app/storage/s3store"
	"github.com/itemgrid/itemgrid/internal/config"
	"github.com/itemgrid/itemgrid/internal/middleware"
	"github.com/itemgrid/itemgrid/internal/platform/migrations"
	"github.com/itemgrid/itemgrid/pkg/logger"
)

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg     *config.Config
	log     *logger.Logger
	app     *app.Application
	handler http.Handler
	httpSrv *http.Server
	db      *sql.DB
	redis   *redis.Client
	errCh   chan error
}

// httpService adapts the HTTP server to the lifecycle manager. Start returns
// immediately; listen errors surface on errCh for Run to observe.
type httpService struct {
	srv   *http.Server
	log   *logger.Logger
	errCh chan error
}

func (s *httpService) Name() string { return "http" }

func (s *httpService) Start(_ context.Context) error {
	go func() {
		s.log.Infof("HTTP server listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.errCh <- err
		}
	}()
	return nil
}

func (s *httpService) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// NewApplication constructs a new application instance with default wiring.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewApplicationWithConfig(cfg)
}

// NewApplicationWithConfig constructs an application from an explicit config.
func NewApplicationWithConfig(cfg *config.Config) (*Application, error) {
	logCfg := logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	}
	log := logger.New(logCfg)

	store, db, redisClient, err := buildStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("configure store: %w", err)
	}
	cleanup := func() {
		if db != nil {
			db.Close()
		}
		if redisClient != nil {
			redisClient.Close()
		}
	}

	application, err := app.New(app.Stores{Items: store}, log)
	if err != nil {
		cleanup()
		return nil, err
	}

	var apiHandler http.Handler
	if cfg.Audit.LogFile != "" {
		apiHandler, err = httpapi.NewHandlerWithAudit(application, cfg.Audit.LogFile)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("configure audit log: %w", err)
		}
	} else {
		apiHandler = httpapi.NewHandler(application)
	}

	handler := metrics.InstrumentHandler(apiHandler)

	if cfg.Auth.Enabled {
		publicKey, err := loadPublicKey(cfg.Auth.PublicKeyFile)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("load auth public key: %w", err)
		}
		auth := middleware.NewAuthMiddleware(publicKey, log, []string{"/healthz", "/metrics", "/openapi.json"})
		handler = auth.Handler(handler)
	}

	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log)
		limiter.StartCleanup(time.Minute)
		handler = limiter.Handler(handler)
	}

	handler = middleware.NewCORSMiddleware(cfg.CORS.AllowedOrigins).Handler(handler)
	handler = middleware.NewTracingMiddleware(log).Handler(handler)

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	if err := application.Attach(&httpService{srv: httpSrv, log: log, errCh: errCh}); err != nil {
		cleanup()
		return nil, err
	}

	return &Application{
		cfg:     cfg,
		log:     log,
		app:     application,
		handler: handler,
		httpSrv: httpSrv,
		db:      db,
		redis:   redisClient,
		errCh:   errCh,
	}, nil
}

// App exposes the underlying application.
func (a *Application) App() *app.Application { return a.app }

// Handler exposes the fully wired HTTP handler, middleware included.
func (a *Application) Handler() http.Handler { return a.handler }

// Run starts the managed services, including the HTTP listener, and blocks
// until the context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-a.errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server and managed services, then
// closes the storage connections.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err := a.app.Stop(shutdownCtx)

	if a.db != nil {
		if cerr := a.db.Close(); cerr != nil {
			a.log.WithError(cerr).Warn("error closing database connection")
		}
	}
	if a.redis != nil {
		if cerr := a.redis.Close(); cerr != nil {
			a.log.WithError(cerr).Warn("error closing redis connection")
		}
	}

	return err
}

func buildStore(cfg *config.Config) (storage.ItemStore, *sql.DB, *redis.Client, error) {
	switch cfg.Storage.Driver {
	case "", config.DriverMemory:
		return memory.New(), nil, nil, nil

	case config.DriverPostgres:
		db, err := openDatabase(cfg.Database)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := migrations.Apply(context.Background(), db); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("apply migrations: %w", err)
		}
		return postgres.New(db), db, nil, nil

	case config.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return redisstore.New(client), nil, client, nil

	case config.DriverS3:
		store, err := s3store.New(s3store.Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		return store, nil, nil, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.Driver == "" {
		return nil, fmt.Errorf("database driver not configured")
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn not configured")
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func loadPublicKey(path string) (interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("parse RSA public key: %w", err)
	}
	return key, nil
}
