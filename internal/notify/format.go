package notify

import (
	"fmt"

	"github.com/CosmoTheDev/slacknotify/models"
)

// DefaultPrefix is used when a caller does not say why the notification fired.
const DefaultPrefix = "Event"

// Message is the formatted notification for one event. It is built once and
// never mutated.
type Message struct {
	// Text is the headline linking to the group.
	Text string
	// Title is the group's short message.
	Title string
	// Detail is the group's title or culprit; empty when it would repeat Title.
	Detail string
	// Color is a hex RGB value without the leading '#'.
	Color string
}

// Format builds the notification for evt. evt must carry its Group and
// Project; a missing Team renders as an empty name.
func Format(evt *models.Event, prefix string) Message {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	group := evt.Group

	var teamName string
	if evt.Team != nil {
		teamName = evt.Team.Name
	}

	title := group.ShortMessage()
	detail := group.DisplayTitle()
	// Without a culprit the two can be identical.
	if title == detail {
		detail = ""
	}

	return Message{
		Text:   fmt.Sprintf("%s on <%s|%s %s>", prefix, group.URL, teamName, evt.Project.Name),
		Title:  title,
		Detail: detail,
		Color:  group.Level.Color(),
	}
}
