package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/CosmoTheDev/slacknotify/models"
)

// Per-project option keys.
const (
	OptionWebhook = "webhook"
	OptionEnabled = "enabled"
)

// ValidateWebhook accepts absolute http(s) URLs only. Surrounding whitespace
// is ignored, matching how the option is read back.
func ValidateWebhook(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("webhook must be an absolute http(s) URL")
	}
	return nil
}

// Prefixes used by the generic notify path.
const (
	PrefixNewEvent   = "New event"
	PrefixRegression = "Regression"
)

// OptionStore reads per-project configuration values.
type OptionStore interface {
	Option(ctx context.Context, projectID int64, key string) (string, bool, error)
}

// Plugin ties project configuration to the formatter and dispatcher.
type Plugin struct {
	options    OptionStore
	dispatcher *Dispatcher
}

// NewPlugin returns a Plugin reading options from store and sending through d.
func NewPlugin(store OptionStore, d *Dispatcher) *Plugin {
	return &Plugin{options: store, dispatcher: d}
}

// Webhook returns the project's webhook URL, or "" when unset or blank.
func (p *Plugin) Webhook(ctx context.Context, project *models.Project) (string, error) {
	v, _, err := p.options.Option(ctx, project.ID, OptionWebhook)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(v), nil
}

// IsConfigured reports whether project has a webhook URL.
func (p *Plugin) IsConfigured(ctx context.Context, project *models.Project) (bool, error) {
	hook, err := p.Webhook(ctx, project)
	return hook != "", err
}

// IsEnabled reports whether notifications are switched on for project.
// Projects are enabled unless the option says otherwise.
func (p *Plugin) IsEnabled(ctx context.Context, project *models.Project) (bool, error) {
	v, ok, err := p.options.Option(ctx, project.ID, OptionEnabled)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "false", "0", "no", "off":
		return false, nil
	}
	return true, nil
}

// SendEvent formats evt with prefix and posts it to the project's webhook,
// overriding the destination channel when room is set. It returns a nil
// Result and nil error when no webhook is configured.
func (p *Plugin) SendEvent(ctx context.Context, evt *models.Event, prefix, room string) (*Result, error) {
	hook, err := p.Webhook(ctx, evt.Project)
	if err != nil {
		return nil, fmt.Errorf("reading webhook option: %w", err)
	}
	if hook == "" {
		slog.Debug("notify: webhook not configured, skipping", "project", evt.Project.Slug)
		return nil, nil
	}
	return p.dispatcher.Dispatch(ctx, hook, Format(evt, prefix), room)
}

// NotifyUsers is the generic "notify this project" path: it picks the prefix
// from the group's occurrence count and posts to the webhook's default channel.
func (p *Plugin) NotifyUsers(ctx context.Context, evt *models.Event) (*Result, error) {
	ok, err := p.IsConfigured(ctx, evt.Project)
	if err != nil {
		return nil, fmt.Errorf("reading webhook option: %w", err)
	}
	if !ok {
		slog.Debug("notify: project not configured, skipping", "project", evt.Project.Slug)
		return nil, nil
	}
	return p.SendEvent(ctx, evt, NotifyPrefix(evt.Group), "")
}

// NotifyPrefix returns "New event" for a group's first occurrence and
// "Regression" afterwards.
func NotifyPrefix(g *models.Group) string {
	if g.TimesSeen == 1 {
		return PrefixNewEvent
	}
	return PrefixRegression
}
