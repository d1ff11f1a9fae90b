package cmd

import (
	"fmt"

	"github.com/CosmoTheDev/slacknotify/internal/notify"
	"github.com/charmbracelet/lipgloss"
)

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#7C3AED")).
	MarginBottom(1)

var successStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#10B981"))

var warnStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#F59E0B"))

var failStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#EF4444"))

var dimStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#6B7280"))

// levelStyle matches the attachment color Slack will show for msg.
func levelStyle(msg notify.Message) lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#" + msg.Color))
}

// describeDelivery renders the outcome of one notification attempt.
func describeDelivery(res *notify.Result, err error) string {
	switch {
	case err != nil:
		return failStyle.Render(fmt.Sprintf("failed: %s", err))
	case res == nil:
		return dimStyle.Render("skipped (no webhook, no room or notifications disabled)")
	case res.OK():
		return successStyle.Render(fmt.Sprintf("sent (%s)", res.Status))
	default:
		return warnStyle.Render(fmt.Sprintf("rejected by Slack (%s)", res.Status))
	}
}
