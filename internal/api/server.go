// Package api is the Administrative HTTP layer (spec.md §6.3): it
// exposes the twelve endpoints an external collaborator uses to drive
// and inspect the sync engine, translating each into a call against the
// sync-config store, queue, scheduler, reference service, sync service
// or webhook dispatcher.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/bitrixepl/engine/internal/bitrix"
	"github.com/bitrixepl/engine/internal/observability"
	"github.com/bitrixepl/engine/internal/queue"
	"github.com/bitrixepl/engine/internal/reference"
	"github.com/bitrixepl/engine/internal/scheduler"
	"github.com/bitrixepl/engine/internal/syncstore"
	"github.com/bitrixepl/engine/internal/syncsvc"
	"github.com/bitrixepl/engine/internal/warehouse"
	"github.com/bitrixepl/engine/internal/warehouse/schema"
	"github.com/bitrixepl/engine/internal/webhook"
)

// Server is the admin HTTP surface: one field per injected dependency,
// no business logic beyond request decoding and status-code mapping.
type Server struct {
	store      *syncstore.Store
	queue      *queue.Queue
	scheduler  *scheduler.Scheduler
	reference  *reference.Service
	dispatcher *webhook.Dispatcher
	syncsvc    *syncsvc.Service
	bitrix     *bitrix.Client
	wh         *warehouse.Warehouse
	builder    *schema.Builder
	logger     *observability.Logger

	webhookRegisterURL string

	httpServer *http.Server
}

// Config carries the admin server's network settings (spec.md §6.5
// HOST/PORT plus read/write/idle/shutdown timeouts).
type Config struct {
	Host          string
	Port          int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	ShutdownGrace time.Duration
}

// NewServer constructs a Server. webhookRegisterURL is the handler URL
// bound to Bitrix events by POST /webhooks/register.
func NewServer(
	cfg Config,
	store *syncstore.Store,
	q *queue.Queue,
	sched *scheduler.Scheduler,
	refSvc *reference.Service,
	dispatcher *webhook.Dispatcher,
	syncSvc *syncsvc.Service,
	bitrixClient *bitrix.Client,
	wh *warehouse.Warehouse,
	builder *schema.Builder,
	logger *observability.Logger,
	webhookRegisterURL string,
) *Server {
	s := &Server{
		store:              store,
		queue:              q,
		scheduler:          sched,
		reference:          refSvc,
		dispatcher:         dispatcher,
		syncsvc:            syncSvc,
		bitrix:             bitrixClient,
		wh:                 wh,
		builder:            builder,
		logger:             logger,
		webhookRegisterURL: webhookRegisterURL,
	}

	s.httpServer = &http.Server{
		Addr:         fmtHostPort(cfg.Host, cfg.Port),
		Handler:      s.setupMiddleware(s.setupRoutes()),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// setupRoutes registers every admin route using Go 1.22's method+path
// ServeMux patterns.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	mux.HandleFunc("GET /sync/config", s.listSyncConfigHandler)
	mux.HandleFunc("PUT /sync/config", s.upsertSyncConfigHandler)
	mux.HandleFunc("POST /sync/start/{entity}", s.startSyncHandler)
	mux.HandleFunc("GET /sync/status", s.syncStatusHandler)
	mux.HandleFunc("GET /sync/history", s.syncHistoryHandler)
	mux.HandleFunc("GET /sync/stats", s.syncStatsHandler)

	mux.HandleFunc("POST /references/sync/{name}", s.syncOneReferenceHandler)
	mux.HandleFunc("POST /references/sync-all", s.syncAllReferencesHandler)
	mux.HandleFunc("GET /references/status", s.referenceStatusHandler)

	mux.HandleFunc("POST /webhooks/bitrix", s.webhookIntakeHandler)
	mux.HandleFunc("POST /webhooks/register", s.registerWebhooksHandler)
	mux.HandleFunc("DELETE /webhooks/unregister", s.unregisterWebhooksHandler)

	return mux
}

// setupMiddleware wraps handler with request logging and then wraps that
// with panic recovery, so recovery is the outermost layer.
func (s *Server) setupMiddleware(handler http.Handler) http.Handler {
	handler = s.requestLoggingMiddleware(handler)
	handler = s.recoveryMiddleware(handler)
	return handler
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	snap := observability.CollectResources()

	if err := s.wh.Ping(r.Context()); err != nil {
		s.logger.LogHealthCheckWithResources("warehouse", "unhealthy", snap, map[string]interface{}{"error": err.Error()})
		writeJSONStatus(w, http.StatusServiceUnavailable, map[string]any{"status": "unhealthy", "resources": snap})
		return
	}
	s.logger.LogHealthCheckWithResources("warehouse", "healthy", snap, nil)
	writeJSONStatus(w, http.StatusOK, map[string]any{"status": "healthy", "resources": snap})
}

// Start begins serving and blocks until the server stops.
func (s *Server) Start() error {
	s.logger.LogStartup("1.0.0", "", "")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests up to ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.LogShutdown("admin_http_server")
	return s.httpServer.Shutdown(ctx)
}

func fmtHostPort(host string, port int) string {
	if host == "" {
		host = "0.0.0.0"
	}
	return host + ":" + strconv.Itoa(port)
}
