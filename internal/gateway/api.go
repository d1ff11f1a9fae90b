package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/CosmoTheDev/slacknotify/internal/notify"
	"github.com/CosmoTheDev/slacknotify/internal/rules"
	"github.com/CosmoTheDev/slacknotify/internal/store"
	"github.com/CosmoTheDev/slacknotify/models"
)

// settableOptions lists the per-project options the API may change.
var settableOptions = map[string]bool{
	notify.OptionWebhook: true,
	notify.OptionEnabled: true,
}

func buildHandler(gw *Gateway) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", gw.handleRoot)
	mux.HandleFunc("GET /health", gw.handleHealth)
	mux.HandleFunc("GET /api/status", gw.handleStatus)

	// Projects and their notification options
	mux.HandleFunc("GET /api/projects", gw.handleListProjects)
	mux.HandleFunc("POST /api/projects", gw.handleCreateProject)
	mux.HandleFunc("GET /api/projects/{slug}", gw.handleGetProject)
	mux.HandleFunc("GET /api/projects/{slug}/options", gw.handleGetOptions)
	mux.HandleFunc("PUT /api/projects/{slug}/options", gw.handlePutOptions)

	// Event intake and notification triggers
	mux.HandleFunc("POST /api/projects/{slug}/events", gw.handleIngestEvent)
	mux.HandleFunc("POST /api/projects/{slug}/rules/notify-room", gw.handleNotifyRoom)
	mux.HandleFunc("POST /api/projects/{slug}/test", gw.handleTestNotification)

	// Live stream
	mux.HandleFunc("GET /events", gw.handleEvents)

	return mux
}

func (gw *Gateway) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":   "slacknotify gateway",
		"status": "running",
		"endpoints": []string{
			"GET  /health",
			"GET  /api/status",
			"GET  /api/projects",
			"POST /api/projects",
			"GET  /api/projects/{slug}",
			"GET  /api/projects/{slug}/options",
			"PUT  /api/projects/{slug}/options",
			"POST /api/projects/{slug}/events",
			"POST /api/projects/{slug}/rules/notify-room",
			"POST /api/projects/{slug}/test",
			"GET  /events",
		},
	})
}

func (gw *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := gw.db.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (gw *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, gw.currentStatus())
}

func (gw *Gateway) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := gw.store.ListProjects(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

func (gw *Gateway) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Slug = strings.TrimSpace(req.Slug)
	if req.Slug == "" {
		writeError(w, http.StatusBadRequest, "slug is required")
		return
	}
	webhook := strings.TrimSpace(req.Webhook)
	if webhook == "" {
		webhook = gw.cfg.Slack.DefaultWebhook
	}
	if webhook != "" {
		if err := notify.ValidateWebhook(webhook); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	ctx := r.Context()
	if _, err := gw.store.ProjectBySlug(ctx, req.Slug); err == nil {
		writeError(w, http.StatusConflict, fmt.Sprintf("project %q already exists", req.Slug))
		return
	}

	var teamID int64
	if team := strings.TrimSpace(req.Team); team != "" {
		t, err := gw.store.EnsureTeam(ctx, team, team)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		teamID = t.ID
	}
	p, err := gw.store.CreateProject(ctx, req.Slug, req.Name, teamID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if webhook != "" {
		if err := gw.store.SetOption(ctx, p.ID, notify.OptionWebhook, webhook); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	slog.Info("gateway: project created", "slug", p.Slug, "team_id", p.TeamID)
	writeJSON(w, http.StatusCreated, p)
}

func (gw *Gateway) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p := gw.projectFromPath(w, r)
	if p == nil {
		return
	}
	configured, err := gw.plugin.IsConfigured(r.Context(), p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	enabled, err := gw.plugin.IsEnabled(r.Context(), p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"project":    p,
		"configured": configured,
		"enabled":    enabled,
	})
}

func (gw *Gateway) handleGetOptions(w http.ResponseWriter, r *http.Request) {
	p := gw.projectFromPath(w, r)
	if p == nil {
		return
	}
	opts, err := gw.store.Options(r.Context(), p.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

// handlePutOptions applies a partial update; an empty value removes the option.
func (gw *Gateway) handlePutOptions(w http.ResponseWriter, r *http.Request) {
	p := gw.projectFromPath(w, r)
	if p == nil {
		return
	}
	var req map[string]string
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	keys := make([]string, 0, len(req))
	for k, v := range req {
		if !settableOptions[k] {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown option %q", k))
			return
		}
		if k == notify.OptionWebhook && strings.TrimSpace(v) != "" {
			if err := notify.ValidateWebhook(v); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ctx := r.Context()
	for _, k := range keys {
		v := strings.TrimSpace(req[k])
		var err error
		if v == "" {
			err = gw.store.DeleteOption(ctx, p.ID, k)
		} else {
			err = gw.store.SetOption(ctx, p.ID, k, v)
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	gw.handleGetOptions(w, r)
}

// handleIngestEvent stores an event and runs the generic notify path for it.
// The event is accepted even when delivery fails; the outcome is reported in
// the response body.
func (gw *Gateway) handleIngestEvent(w http.ResponseWriter, r *http.Request) {
	p := gw.projectFromPath(w, r)
	if p == nil {
		return
	}
	var in store.EventInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(in.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	ctx := r.Context()
	evt, err := gw.store.RecordEvent(ctx, p, in)
	if errors.Is(err, store.ErrDuplicateEvent) {
		writeError(w, http.StatusConflict, fmt.Sprintf("event %q already recorded", in.EventID))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	gw.broadcaster.send(SSEEvent{Type: "event.received", Payload: map[string]any{
		"project":    p.Slug,
		"event_id":   evt.EventID,
		"group_id":   evt.Group.ID,
		"times_seen": evt.Group.TimesSeen,
	}})

	res, err := gw.notifyProject(ctx, evt)
	report := gw.recordDelivery("notify", evt, res, err)

	writeJSON(w, http.StatusCreated, ingestResponse{
		EventID:  evt.EventID,
		GroupID:  evt.Group.ID,
		GroupURL: evt.Group.URL,
		Delivery: report,
	})
}

// notifyProject runs the generic notify path unless the project has
// notifications switched off.
func (gw *Gateway) notifyProject(ctx context.Context, evt *models.Event) (*notify.Result, error) {
	enabled, err := gw.plugin.IsEnabled(ctx, evt.Project)
	if err != nil || !enabled {
		return nil, err
	}
	return gw.plugin.NotifyUsers(ctx, evt)
}

// handleNotifyRoom fires the notify-room rule action for a stored event.
// Deferred requests are queued on the task runner and answered with 202.
func (gw *Gateway) handleNotifyRoom(w http.ResponseWriter, r *http.Request) {
	p := gw.projectFromPath(w, r)
	if p == nil {
		return
	}
	var req notifyRoomRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.EventID) == "" {
		writeError(w, http.StatusBadRequest, "event_id is required")
		return
	}

	ctx := r.Context()
	evt, err := gw.store.Event(ctx, p, req.EventID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("event %q not found", req.EventID))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	action := rules.NewNotifyRoomAction(gw.plugin, req.Room, req.Label)
	if !req.Deferred {
		res, err := action.After(ctx, evt)
		writeJSON(w, http.StatusOK, notifyRoomResponse{
			Action:   action.Describe(),
			Delivery: gw.recordDelivery("rule.notify_room", evt, res, err),
		})
		return
	}

	task, err := action.Defer(ctx, evt)
	if err != nil {
		writeJSON(w, http.StatusOK, notifyRoomResponse{
			Action:   action.Describe(),
			Delivery: gw.recordDelivery("rule.notify_room", evt, nil, err),
		})
		return
	}
	if task == nil {
		writeJSON(w, http.StatusOK, notifyRoomResponse{
			Action:   action.Describe(),
			Delivery: gw.recordDelivery("rule.notify_room", evt, nil, nil),
		})
		return
	}
	if err := gw.runner.Enqueue(task); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	gw.broadcaster.send(SSEEvent{Type: "task.queued", Payload: map[string]any{"task": task.String()}})
	writeJSON(w, http.StatusAccepted, notifyRoomResponse{
		Action:   action.Describe(),
		Delivery: DeliveryReport{Status: DeliveryQueued},
	})
}

// handleTestNotification posts a synthetic event so users can check their
// webhook without waiting for a real error.
func (gw *Gateway) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	p := gw.projectFromPath(w, r)
	if p == nil {
		return
	}
	ctx := r.Context()
	configured, err := gw.plugin.IsConfigured(ctx, p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !configured {
		writeError(w, http.StatusBadRequest, "webhook is not configured for this project")
		return
	}

	evt := TestEvent(p, gw.cfg.Gateway.BaseURL)
	if p.TeamID != 0 {
		if team, err := gw.store.Team(ctx, p.TeamID); err == nil {
			evt.Team = team
		}
	}
	res, err := gw.plugin.SendEvent(ctx, evt, "Test", "")
	report := gw.recordDelivery("test", evt, res, err)
	status := http.StatusOK
	if report.Status == DeliveryFailed || report.Status == DeliveryRejected {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, report)
}

// TestEvent builds the unsaved event used for test notifications.
func TestEvent(p *models.Project, baseURL string) *models.Event {
	return &models.Event{
		EventID: "test",
		Message: "This is an example notification from slacknotify.",
		Level:   models.LevelInfo,
		Group: &models.Group{
			Message:   "This is an example notification from slacknotify.",
			Culprit:   "slacknotify.test",
			Level:     models.LevelInfo,
			TimesSeen: 1,
			URL:       fmt.Sprintf("%s/%s/", strings.TrimRight(baseURL, "/"), p.Slug),
		},
		Project: p,
	}
}
