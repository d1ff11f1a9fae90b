package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/CosmoTheDev/slacknotify/internal/notify"
	"github.com/CosmoTheDev/slacknotify/internal/rules"
	"github.com/CosmoTheDev/slacknotify/internal/store"
	"github.com/spf13/cobra"
)

var (
	fireRoom  string
	fireLabel string
)

var fireCmd = &cobra.Command{
	Use:   "fire <project> <event-id>",
	Short: "Run the notify-room rule action for a stored event",
	Long: `Loads a previously recorded event and fires the notify-room action for
it, posting to --room with --label as the message prefix.

The action is skipped without error when --room is empty or notifications
are disabled for the project.`,
	Args: cobra.ExactArgs(2),
	RunE: runFire,
}

func init() {
	fireCmd.Flags().StringVar(&fireRoom, "room", "", "Slack channel to post to, e.g. #ops")
	fireCmd.Flags().StringVar(&fireLabel, "label", "", "message prefix (default \""+rules.DefaultLabel+"\")")
}

func runFire(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg, db, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	st := store.New(db, cfg.Gateway.BaseURL)
	p, err := st.ProjectBySlug(ctx, args[0])
	if err != nil {
		return fmt.Errorf("project %q: %w", args[0], err)
	}
	evt, err := st.Event(ctx, p, args[1])
	if err != nil {
		return fmt.Errorf("event %q: %w", args[1], err)
	}

	plugin := notify.NewPlugin(st, notify.NewDispatcher(cfg.Slack))
	action := rules.NewNotifyRoomAction(plugin, fireRoom, fireLabel)
	fmt.Println(dimStyle.Render(action.Describe()))

	res, err := action.After(ctx, evt)
	if err != nil {
		slog.Warn("fire: delivery failed", "project", p.Slug, "event_id", evt.EventID, "error", err)
	}
	fmt.Println(describeDelivery(res, err))
	return nil
}
