package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/CosmoTheDev/slacknotify/internal/fixture"
	"github.com/CosmoTheDev/slacknotify/internal/notify"
	"github.com/CosmoTheDev/slacknotify/internal/rules"
	"github.com/CosmoTheDev/slacknotify/internal/store"
	"github.com/spf13/cobra"
)

var (
	sendProject string
	sendDryRun  bool
)

var sendCmd = &cobra.Command{
	Use:   "send <fixture.yaml>",
	Short: "Record events from a YAML fixture and send their notifications",
	Long: `Reads events from a YAML fixture, records each one under the project,
and runs the notification path for it.

Without a rule block every event goes through the generic path: the
project's webhook receives "New event" or "Regression" notifications.
With a rule block each event fires the notify-room action instead.

Example fixture:
  project: billing
  rule:
    room: "#ops"
    label: Checkout errors
  events:
    - message: NullPointerException
      title: checkout.process
      level: error`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVar(&sendProject, "project", "", "project slug (overrides the fixture)")
	sendCmd.Flags().BoolVar(&sendDryRun, "dry-run", false, "record and print the messages without posting")
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	fx, err := fixture.Load(args[0])
	if err != nil {
		return err
	}
	slug := fx.Project
	if sendProject != "" {
		slug = sendProject
	}
	if slug == "" {
		return fmt.Errorf("no project given: set 'project' in the fixture or pass --project")
	}

	cfg, db, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	st := store.New(db, cfg.Gateway.BaseURL)
	p, err := st.ProjectBySlug(ctx, slug)
	if err != nil {
		return fmt.Errorf("project %q: %w", slug, err)
	}
	plugin := notify.NewPlugin(st, notify.NewDispatcher(cfg.Slack))

	enabled, err := plugin.IsEnabled(ctx, p)
	if err != nil {
		return err
	}

	var action *rules.NotifyRoomAction
	if fx.Rule != nil {
		action = rules.NewNotifyRoomAction(plugin, fx.Rule.Room, fx.Rule.Label)
		fmt.Println(dimStyle.Render(action.Describe()))
	}

	for _, in := range fx.Events {
		evt, err := st.RecordEvent(ctx, p, in)
		if errors.Is(err, store.ErrDuplicateEvent) {
			fmt.Println(warnStyle.Render(fmt.Sprintf("● event %s already recorded, skipping", in.EventID)))
			continue
		}
		if err != nil {
			return err
		}
		prefix := notify.NotifyPrefix(evt.Group)
		if action != nil {
			prefix = action.Prefix()
		}
		msg := notify.Format(evt, prefix)
		fmt.Printf("%s %s\n", levelStyle(msg).Render("●"), msg.Title)
		fmt.Println(dimStyle.Render("  " + msg.Text))

		if sendDryRun {
			continue
		}
		var res *notify.Result
		switch {
		case action != nil:
			res, err = action.After(ctx, evt)
		case enabled:
			res, err = plugin.NotifyUsers(ctx, evt)
		}
		if err != nil {
			slog.Warn("send: delivery failed", "project", p.Slug, "event_id", evt.EventID, "error", err)
		}
		fmt.Printf("  %s\n", describeDelivery(res, err))
	}
	return nil
}
