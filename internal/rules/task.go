package rules

import (
	"context"
	"fmt"

	"github.com/CosmoTheDev/slacknotify/internal/notify"
	"github.com/CosmoTheDev/slacknotify/models"
)

// Task is a notification that has passed its preconditions and is waiting to
// be sent. Whoever holds it decides when Run is called.
type Task struct {
	Event  *models.Event
	Prefix string
	Room   string

	notifier Notifier
}

// Run sends the notification.
func (t *Task) Run(ctx context.Context) (*notify.Result, error) {
	return t.notifier.SendEvent(ctx, t.Event, t.Prefix, t.Room)
}

func (t *Task) String() string {
	return fmt.Sprintf("notify %s event %s to %s", t.Event.Project.Slug, t.Event.EventID, t.Room)
}
