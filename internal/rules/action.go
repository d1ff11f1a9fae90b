// Package rules holds the rule-engine actions that send chat notifications.
package rules

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/CosmoTheDev/slacknotify/internal/notify"
	"github.com/CosmoTheDev/slacknotify/models"
)

// DefaultLabel prefixes notifications from rule actions without a label.
const DefaultLabel = "Rule Triggered"

// Notifier is what an action needs from the notification plugin.
// *notify.Plugin satisfies it.
type Notifier interface {
	IsEnabled(ctx context.Context, project *models.Project) (bool, error)
	SendEvent(ctx context.Context, evt *models.Event, prefix, room string) (*notify.Result, error)
}

// NotifyRoomAction posts an event to a specific chat room when a rule fires.
type NotifyRoomAction struct {
	Room  string `json:"room"`
	Label string `json:"label"`

	notifier Notifier
}

// NewNotifyRoomAction binds room and label to n.
func NewNotifyRoomAction(n Notifier, room, label string) *NotifyRoomAction {
	return &NotifyRoomAction{Room: room, Label: label, notifier: n}
}

// Describe renders the action the way a rule editor lists it.
func (a *NotifyRoomAction) Describe() string {
	return fmt.Sprintf("Send a notification to a Slack %s labeled %s", a.Room, a.Prefix())
}

// Prefix is the label, or DefaultLabel when none is set.
func (a *NotifyRoomAction) Prefix() string {
	if l := strings.TrimSpace(a.Label); l != "" {
		return l
	}
	return DefaultLabel
}

// After sends the notification immediately. It is a silent no-op when no
// room is set or notifications are disabled for the event's project.
func (a *NotifyRoomAction) After(ctx context.Context, evt *models.Event) (*notify.Result, error) {
	task, err := a.Defer(ctx, evt)
	if err != nil || task == nil {
		return nil, err
	}
	return task.Run(ctx)
}

// Defer performs the same checks as After but returns the send as a Task for
// the caller to run later. A nil Task means there is nothing to send.
func (a *NotifyRoomAction) Defer(ctx context.Context, evt *models.Event) (*Task, error) {
	room := strings.TrimSpace(a.Room)
	if room == "" {
		slog.Debug("rules: notify action has no room, skipping", "project", evt.Project.Slug)
		return nil, nil
	}
	enabled, err := a.notifier.IsEnabled(ctx, evt.Project)
	if err != nil {
		return nil, fmt.Errorf("checking notifications enabled: %w", err)
	}
	if !enabled {
		slog.Debug("rules: notifications disabled for project, skipping", "project", evt.Project.Slug)
		return nil, nil
	}
	return &Task{
		Event:    evt,
		Prefix:   a.Prefix(),
		Room:     room,
		notifier: a.notifier,
	}, nil
}
