package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/CosmoTheDev/slacknotify/internal/config"
	"github.com/CosmoTheDev/slacknotify/internal/database"
	"github.com/CosmoTheDev/slacknotify/internal/notify"
	"github.com/CosmoTheDev/slacknotify/internal/rules"
	"github.com/CosmoTheDev/slacknotify/internal/store"
	"github.com/CosmoTheDev/slacknotify/models"
)

// Gateway is the long-running daemon that plays host to the notifier:
//   - it stores reported events and groups them
//   - it runs the generic notify path for every new event
//   - it fires notify-room rule actions on request, inline or deferred
//   - it streams delivery outcomes over GET /events (Server-Sent Events)
type Gateway struct {
	cfg         *config.Config
	db          database.DB
	store       *store.Store
	plugin      *notify.Plugin
	runner      *TaskRunner
	broadcaster *Broadcaster

	mu        sync.RWMutex
	status    Status
	startedAt time.Time
}

// New creates a Gateway. Call Start() to begin serving.
func New(cfg *config.Config, db database.DB) *Gateway {
	st := store.New(db, cfg.Gateway.BaseURL)
	return newGateway(cfg, db, st, notify.NewPlugin(st, notify.NewDispatcher(cfg.Slack)))
}

func newGateway(cfg *config.Config, db database.DB, st *store.Store, plugin *notify.Plugin) *Gateway {
	gw := &Gateway{
		cfg:         cfg,
		db:          db,
		store:       st,
		plugin:      plugin,
		broadcaster: newBroadcaster(),
		startedAt:   time.Now(),
	}
	gw.runner = newTaskRunner(cfg.Gateway.Workers, cfg.Gateway.QueueSize, func(t *rules.Task, res *notify.Result, err error) {
		gw.recordDelivery("rule.notify_room", t.Event, res, err)
	})
	return gw
}

// Start runs the gateway until ctx is cancelled. It starts the deferred task
// workers and then binds the HTTP server (blocks until shutdown).
func (gw *Gateway) Start(ctx context.Context) error {
	port := gw.cfg.Gateway.Port
	if port == 0 {
		port = config.DefaultGatewayPort
	}
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	gw.runner.Start(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           buildHandler(gw),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("gateway: listening", "addr", "http://"+addr)
	gw.broadcaster.send(SSEEvent{
		Type:    "gateway.started",
		Payload: map[string]string{"addr": "http://" + addr},
	})

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	gw.runner.Wait()
	return nil
}

// recordDelivery updates counters, logs transport failures and broadcasts the
// outcome of one notification attempt.
func (gw *Gateway) recordDelivery(source string, evt *models.Event, res *notify.Result, err error) DeliveryReport {
	report := deliveryReport(res, err)

	gw.mu.Lock()
	switch report.Status {
	case DeliverySent:
		gw.status.Sent++
		gw.status.LastSentAt = time.Now().UTC().Format(time.RFC3339)
	case DeliverySkipped:
		gw.status.Skipped++
	default:
		gw.status.Failed++
	}
	gw.mu.Unlock()

	attrs := []any{"source", source, "project", evt.Project.Slug, "event_id", evt.EventID, "status", report.Status}
	switch report.Status {
	case DeliveryFailed:
		slog.Warn("gateway: notification failed", append(attrs, "error", err)...)
	case DeliveryRejected:
		slog.Warn("gateway: webhook rejected notification", append(attrs, "status_code", report.StatusCode)...)
	default:
		slog.Info("gateway: notification processed", attrs...)
	}

	gw.broadcaster.send(SSEEvent{
		Type: "notification." + report.Status,
		Payload: map[string]any{
			"source":   source,
			"project":  evt.Project.Slug,
			"event_id": evt.EventID,
			"delivery": report,
		},
	})
	return report
}

func deliveryReport(res *notify.Result, err error) DeliveryReport {
	switch {
	case err != nil:
		return DeliveryReport{Status: DeliveryFailed, Error: err.Error()}
	case res == nil:
		return DeliveryReport{Status: DeliverySkipped}
	case !res.OK():
		return DeliveryReport{Status: DeliveryRejected, StatusCode: res.StatusCode}
	default:
		return DeliveryReport{Status: DeliverySent, StatusCode: res.StatusCode}
	}
}

func (gw *Gateway) currentStatus() Status {
	gw.mu.RLock()
	defer gw.mu.RUnlock()
	s := gw.status
	s.Workers = gw.runner.workers
	s.QueuedTasks = gw.runner.Pending()
	s.UptimeSeconds = int64(time.Since(gw.startedAt).Seconds())
	return s
}
