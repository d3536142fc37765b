package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ignite/paybench/internal/api"
	"github.com/ignite/paybench/internal/config"
	"github.com/ignite/paybench/internal/inbox"
	"github.com/ignite/paybench/internal/pkg/distlock"
	"github.com/ignite/paybench/internal/pkg/logger"
	"github.com/ignite/paybench/internal/pkg/metrics"
	"github.com/ignite/paybench/internal/repository/postgres"
	"github.com/ignite/paybench/internal/repository/redisstore"
	"github.com/ignite/paybench/internal/resolve"
	"github.com/ignite/paybench/internal/service/ingest"
	"github.com/ignite/paybench/internal/service/upload"
	"github.com/ignite/paybench/internal/taxonomy"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"
)

// checkPortAvailable fails fast when something else already listens on the
// target address.
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("address %s is already in use: %v", addr, err)
	}
	ln.Close()
	return nil
}

func extractHost(dsn string) string {
	at := strings.Index(dsn, "@")
	if at < 0 {
		return "(unknown)"
	}
	rest := dsn[at+1:]
	if slash := strings.Index(rest, "/"); slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}

func main() {
	cfgPath := os.Getenv("PAYBENCH_CONFIG")
	if cfgPath == "" {
		if _, err := os.Stat("config/config.yaml"); err == nil {
			cfgPath = "config/config.yaml"
		}
	}
	cfg, err := config.LoadFromEnv(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger.SetLevel(level)
	logger.SetRedactPII(cfg.Logging.Redact)
	lg := logger.Default().With("server")

	addr := cfg.Server.Addr()
	if err := checkPortAvailable(addr); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Reference data
	var ix *taxonomy.Index
	if cfg.Taxonomy.Path != "" {
		ix, err = taxonomy.LoadFile(cfg.Taxonomy.Path)
	} else {
		ix, err = taxonomy.Default()
	}
	if err != nil {
		log.Fatalf("Failed to load taxonomy: %v", err)
	}
	res := resolve.New(ix)

	// Database
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	lg.Info("connecting to database", "host", extractHost(cfg.Database.URL))
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(30 * time.Second)

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	err = db.PingContext(pingCtx)
	pingCancel()
	if err != nil {
		log.Fatalf("Database ping failed: %v", err)
	}

	// Sessions and locks: Redis when configured, otherwise in process with
	// Postgres advisory locks.
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Invalid REDIS_URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		err = redisClient.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			lg.Warn("redis unreachable, keeping sessions in process", "error", err)
			redisClient.Close()
			redisClient = nil
		}
	}

	var (
		sessions ingest.SessionStore
		progress ingest.ProgressStore
	)
	if redisClient != nil {
		store := redisstore.New(redisClient, cfg.Ingest.SessionTTL())
		sessions, progress = store, store
		lg.Info("sessions stored in redis", "ttl", cfg.Ingest.SessionTTL().String())
	} else {
		store := ingest.NewMemoryStore()
		sessions, progress = store, store
		lg.Warn("redis not configured, sessions do not survive a restart")
	}
	locks := distlock.NewFactory(redisClient, db, cfg.Ingest.LockTTL())

	m := metrics.NewManager()
	repo := postgres.NewUploadRepo(db)
	uploader := upload.NewService(repo, upload.WithMetrics(m))
	svc := ingest.NewService(res, sessions, uploader,
		ingest.WithLocks(locks),
		ingest.WithLockTTL(cfg.Ingest.LockTTL()),
		ingest.WithProgress(progress),
		ingest.WithMetrics(m),
	)

	// Inbox
	var (
		box      *inbox.Inbox
		s3Client *s3.Client
	)
	if cfg.Inbox.Enabled {
		s3Client, err = inbox.NewS3Client(ctx, cfg.Inbox.Region, cfg.Inbox.AWSProfile)
		if err != nil {
			log.Fatalf("Failed to create S3 client: %v", err)
		}
		box = inbox.New(s3Client, svc, inbox.Config{
			Bucket:   cfg.Inbox.Bucket,
			Prefix:   cfg.Inbox.Prefix,
			Interval: cfg.Inbox.Interval(),
			MaxRows:  cfg.Ingest.MaxRows,
		}, inbox.WithLocks(locks), inbox.WithMetrics(m))
		box.Start()
		lg.Info("inbox started", "bucket", cfg.Inbox.Bucket, "prefix", cfg.Inbox.Prefix, "interval", cfg.Inbox.Interval().String())
	}

	server := api.NewServer(cfg.Server, api.Routes{
		Imports:        api.NewImportHandlers(svc, repo, int64(cfg.Server.MaxUploadMB)<<20, cfg.Ingest.MaxRows, nil),
		Reference:      api.NewReferenceHandlers(ix, svc.Schemas()),
		Health:         api.NewHealthChecker(db, redisClient, s3Client, cfg.Inbox.Bucket),
		Metrics:        m.Handler(),
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		lg.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	lg.Info("shutting down")

	if box != nil {
		box.Stop()
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		lg.Error("server shutdown", "error", err)
	}
	if redisClient != nil {
		redisClient.Close()
	}
	lg.Info("server stopped")
}
