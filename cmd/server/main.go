// Command server is the sync engine's entry point: it wires the twelve
// EPL components together, starts the scheduler and queue workers, and
// serves the administrative HTTP surface until an interrupt signal
// requests a graceful shutdown.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitrixepl/engine/internal/api"
	"github.com/bitrixepl/engine/internal/bitrix"
	"github.com/bitrixepl/engine/internal/cache"
	"github.com/bitrixepl/engine/internal/config"
	"github.com/bitrixepl/engine/internal/observability"
	"github.com/bitrixepl/engine/internal/queue"
	"github.com/bitrixepl/engine/internal/reference"
	"github.com/bitrixepl/engine/internal/scheduler"
	"github.com/bitrixepl/engine/internal/syncstore"
	"github.com/bitrixepl/engine/internal/syncsvc"
	"github.com/bitrixepl/engine/internal/warehouse"
	"github.com/bitrixepl/engine/internal/warehouse/schema"
	"github.com/bitrixepl/engine/internal/warehouse/upsert"
	"github.com/bitrixepl/engine/internal/webhook"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}

	logger := observability.NewLogger(&cfg.Observability)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopWatch := config.WatchEnvFile(ctx, func() {
		log.Printf(".env changed, re-read (note: LOG_LEVEL/LOG_FORMAT require a restart to take effect)")
	})
	defer stopWatch()

	wh, err := warehouse.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("open warehouse: %v", err)
	}
	defer wh.Close()

	schemaCache := cache.NewSchemaCatalogCache(cfg.Database.ConnMaxLifetime)
	builder := schema.New(wh, schemaCache, logger)
	writer := upsert.New(wh, builder, logger)
	store := syncstore.New(wh)

	if err := store.EnsureAdminTables(ctx); err != nil {
		log.Fatalf("ensure admin tables: %v", err)
	}

	client := bitrix.New(cfg.Bitrix.WebhookURL, cfg.Bitrix.Timeout, logger)

	syncSvc := syncsvc.New(client, wh, builder, writer, store, logger)
	refSvc := reference.New(client, builder, writer, logger)

	q := queue.New(logger)
	registerQueueHandlers(q, syncSvc, refSvc)

	sched := scheduler.New(store, q, logger)
	dispatcher := webhook.New(q)

	q.Start(ctx)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("start scheduler: %v", err)
	}

	server := api.NewServer(
		api.Config{
			Host:          cfg.Server.Host,
			Port:          cfg.Server.Port,
			ReadTimeout:   cfg.Server.ReadTimeout,
			WriteTimeout:  cfg.Server.WriteTimeout,
			IdleTimeout:   cfg.Server.IdleTimeout,
			ShutdownGrace: cfg.Server.ShutdownGrace,
		},
		store, q, sched, refSvc, dispatcher, syncSvc, client, wh, builder, logger,
		cfg.Bitrix.HandlerURL,
	)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("admin server failed to start: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("admin server shutdown failed: %v", err)
	}

	sched.Stop()
	q.Stop()
	cancel()

	logger.LogShutdown("server_shutdown_complete")
}

// registerQueueHandlers wires each task_type the queue dispatches to its
// executing component (spec.md §4.H's dispatch table).
func registerQueueHandlers(q *queue.Queue, syncSvc *syncsvc.Service, refSvc *reference.Service) {
	q.RegisterHandler(queue.TaskFull, func(ctx context.Context, task queue.Task) error {
		entityType, ok := syncsvc.EntityTypeFromKey(task.EntityType)
		if !ok {
			return nil
		}
		_, err := syncSvc.FullSync(ctx, entityType, nil)
		return err
	})

	q.RegisterHandler(queue.TaskIncremental, func(ctx context.Context, task queue.Task) error {
		entityType, ok := syncsvc.EntityTypeFromKey(task.EntityType)
		if !ok {
			return nil
		}
		_, err := syncSvc.IncrementalSync(ctx, entityType)
		return err
	})

	q.RegisterHandler(queue.TaskWebhook, func(ctx context.Context, task queue.Task) error {
		entityType, ok := syncsvc.EntityTypeFromKey(task.EntityType)
		if !ok {
			return nil
		}
		id, _ := task.Payload["id"].(string)
		_, err := syncSvc.SyncEntityByID(ctx, entityType, id)
		return err
	})

	q.RegisterHandler(queue.TaskWebhookDelete, func(ctx context.Context, task queue.Task) error {
		entityType, ok := syncsvc.EntityTypeFromKey(task.EntityType)
		if !ok {
			return nil
		}
		id, _ := task.Payload["id"].(string)
		_, err := syncSvc.DeleteEntityByID(ctx, entityType, id)
		return err
	})

	q.RegisterHandler(queue.TaskReference, func(ctx context.Context, task queue.Task) error {
		_, err := refSvc.SyncOne(ctx, task.EntityType)
		return err
	})

	q.RegisterHandler(queue.TaskReferenceAll, func(ctx context.Context, task queue.Task) error {
		_, err := refSvc.SyncAll(ctx)
		return err
	})
}
