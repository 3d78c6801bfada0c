// Command core runs the catalog replication daemon: it loads a YAML
// configuration, opens the local ledger database, builds one
// scheduler.FilterJob per configured filter, and runs them on an
// interval until terminated.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/catalogsync/replicator/internal/adapter/local"
	"github.com/catalogsync/replicator/internal/adapter/rest"
	"github.com/catalogsync/replicator/internal/config"
	"github.com/catalogsync/replicator/internal/db"
	"github.com/catalogsync/replicator/internal/errors"
	"github.com/catalogsync/replicator/internal/logging"
	"github.com/catalogsync/replicator/internal/models"
	"github.com/catalogsync/replicator/internal/observer"
	"github.com/catalogsync/replicator/internal/observer/wshub"
	"github.com/catalogsync/replicator/internal/resource"
	"github.com/catalogsync/replicator/internal/resource/cas"
	"github.com/catalogsync/replicator/internal/resource/providers"
	"github.com/catalogsync/replicator/internal/scheduler"
	coresync "github.com/catalogsync/replicator/internal/sync"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the replicator YAML config")
	wsAddr := flag.String("ws-addr", "", "address to serve the observation WebSocket on (disabled if empty)")
	flag.Parse()

	logging.Init(os.Stdout, logging.LevelInfo)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Error("failed to load config", err)
		os.Exit(1)
	}

	database, err := db.Open(cfg.DataDir)
	if err != nil {
		logging.Error("failed to open database", err)
		os.Exit(1)
	}
	defer database.Close()

	migrator := db.NewMigrator(database.DB, db.MigrationsFS, db.MigrationsDir)
	if err := migrator.Initialize(); err != nil {
		logging.Error("failed to initialize migration bookkeeping", err)
		os.Exit(1)
	}
	if err := migrator.Up(); err != nil {
		logging.Error("failed to apply migrations", err)
		os.Exit(1)
	}

	repo := db.NewRepository(database.DB)

	hub := wshub.NewHub()
	var observers []coresync.Observer
	observers = append(observers, observer.NewLoggingObserver(), hub)

	jobs := make([]scheduler.FilterJob, 0, len(cfg.Filters))
	for _, fc := range cfg.Filters {
		source, err := buildAdapter(fc.Source)
		if err != nil {
			logging.Error("failed to build source adapter", err, map[string]interface{}{"filter": fc.ID})
			os.Exit(1)
		}
		dest, err := buildAdapter(fc.Dest)
		if err != nil {
			logging.Error("failed to build destination adapter", err, map[string]interface{}{"filter": fc.ID})
			os.Exit(1)
		}

		jobs = append(jobs, scheduler.FilterJob{
			Filter:      models.Filter{ID: fc.ID, Name: fc.Name, Query: fc.Query},
			Source:      source,
			Destination: dest,
			Observers:   observers,
		})
	}

	sched := scheduler.NewScheduler(repo, jobs, cfg.PollInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched.Start(ctx)
	defer sched.Stop()

	var wsServer *http.Server
	if *wsAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/ws", hub.HandleWebSocket())
		wsServer = &http.Server{Addr: *wsAddr, Handler: mux}
		go func() {
			logging.Info("observation websocket listening", map[string]interface{}{"addr": *wsAddr})
			if err := wsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Error("websocket server exited", err)
			}
		}()
	}

	logging.Info("replicator started", map[string]interface{}{
		"filters":      len(jobs),
		"pollInterval": cfg.PollInterval.String(),
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logging.Info("shutting down", nil)
	cancel()
	sched.Stop()
	if wsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		wsServer.Shutdown(shutdownCtx)
	}
}

// buildAdapter constructs a NodeAdapter from a node config: an empty
// baseUrl selects the in-memory adapter (for demos and offline runs),
// anything else builds a REST adapter against baseUrl.
func buildAdapter(nc config.NodeConfig) (coresync.NodeAdapter, error) {
	backend, err := buildBackend(nc.Resource)
	if err != nil {
		return nil, err
	}

	if nc.BaseURL == "" {
		return local.New(nc.SystemName, backend), nil
	}

	return rest.New(rest.Config{
		SystemName: nc.SystemName,
		BaseURL:    nc.BaseURL,
		APIKey:     nc.APIKey,
		Backend:    backend,
	}), nil
}

// buildBackend maps a ResourceConfig's provider to a concrete
// resource.Backend, reusing the teacher's S3-compatible client for
// every cloud provider and the content-addressed store for "local".
func buildBackend(rc config.ResourceConfig) (resource.Backend, error) {
	switch rc.Provider {
	case "", "local":
		dir := rc.LocalDir
		if dir == "" {
			dir = "./resources"
		}
		backend, err := cas.NewLocalBackend(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to build local resource backend: %w", err)
		}
		return backend, nil

	case "aws":
		client := providers.NewAWSClient(&providers.AWSConfig{
			BucketName: rc.Bucket,
			AccessKey:  rc.AccessKey,
			SecretKey:  rc.SecretKey,
			Region:     rc.Region,
		})
		return resource.NewS3Backend(client), nil

	case "minio":
		client := providers.NewMinIOClient(&providers.MinIOConfig{
			Endpoint:   rc.Endpoint,
			BucketName: rc.Bucket,
			AccessKey:  rc.AccessKey,
			SecretKey:  rc.SecretKey,
			UseSSL:     rc.UseSSL,
		})
		return resource.NewS3Backend(client), nil

	case "r2":
		client := providers.NewR2Client(&providers.R2Config{
			AccountID:  rc.AccountID,
			BucketName: rc.Bucket,
			AccessKey:  rc.AccessKey,
			SecretKey:  rc.SecretKey,
		})
		return resource.NewS3Backend(client), nil

	default:
		return nil, errors.New(errors.ErrConfigInvalid, fmt.Sprintf("unknown resource provider %q", rc.Provider))
	}
}
