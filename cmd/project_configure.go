package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/CosmoTheDev/slacknotify/internal/notify"
	"github.com/CosmoTheDev/slacknotify/internal/store"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var projectConfigureCmd = &cobra.Command{
	Use:   "configure <slug>",
	Short: "Interactively set a project's webhook and enabled flag",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectConfigure,
}

func runProjectConfigure(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	_, db, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	st := store.New(db, "")
	p, err := st.ProjectBySlug(ctx, args[0])
	if err != nil {
		return err
	}
	plugin := notify.NewPlugin(st, nil)
	webhook, err := plugin.Webhook(ctx, p)
	if err != nil {
		return err
	}
	enabled, err := plugin.IsEnabled(ctx, p)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(headerStyle.Render("  slacknotify · " + p.Slug))

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Slack incoming webhook URL").
				Description("Create one under Slack → Apps → Incoming Webhooks. Leave blank to stop notifying.").
				Placeholder("https://hooks.slack.com/services/...").
				EchoMode(huh.EchoModePassword).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return nil
					}
					return notify.ValidateWebhook(strings.TrimSpace(s))
				}).
				Value(&webhook),
			huh.NewConfirm().
				Title("Send notifications for this project?").
				Value(&enabled),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	webhook = strings.TrimSpace(webhook)
	if webhook == "" {
		err = st.DeleteOption(ctx, p.ID, notify.OptionWebhook)
	} else {
		err = st.SetOption(ctx, p.ID, notify.OptionWebhook, webhook)
	}
	if err != nil {
		return err
	}
	if err := st.SetOption(ctx, p.ID, notify.OptionEnabled, fmt.Sprintf("%t", enabled)); err != nil {
		return err
	}
	fmt.Println(successStyle.Render("  ✓ Project options saved"))
	return nil
}
