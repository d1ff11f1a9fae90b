package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/CosmoTheDev/slacknotify/internal/notify"
	"github.com/CosmoTheDev/slacknotify/internal/store"
	"github.com/spf13/cobra"
)

var (
	projectName    string
	projectTeam    string
	projectWebhook string
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects and their Slack notification options",
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects and whether notifications are configured",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		_, db, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		st := store.New(db, "")
		plugin := notify.NewPlugin(st, nil)
		projects, err := st.ListProjects(ctx)
		if err != nil {
			return err
		}
		if len(projects) == 0 {
			fmt.Println(dimStyle.Render("No projects yet. Add one with 'slacknotify project add <slug>'."))
			return nil
		}
		for i := range projects {
			p := &projects[i]
			configured, err := plugin.IsConfigured(ctx, p)
			if err != nil {
				return err
			}
			enabled, err := plugin.IsEnabled(ctx, p)
			if err != nil {
				return err
			}
			state := warnStyle.Render("no webhook")
			switch {
			case configured && enabled:
				state = successStyle.Render("configured")
			case configured:
				state = dimStyle.Render("disabled")
			}
			fmt.Printf("  %-24s %-28s %s\n", p.Slug, p.Name, state)
		}
		return nil
	},
}

var projectAddCmd = &cobra.Command{
	Use:   "add <slug>",
	Short: "Create a project, optionally with a webhook and owning team",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		cfg, db, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		slug := strings.TrimSpace(args[0])
		webhook := strings.TrimSpace(projectWebhook)
		if webhook == "" {
			webhook = cfg.Slack.DefaultWebhook
		}
		if webhook != "" {
			if err := notify.ValidateWebhook(webhook); err != nil {
				return err
			}
		}

		st := store.New(db, cfg.Gateway.BaseURL)
		if _, err := st.ProjectBySlug(ctx, slug); err == nil {
			return fmt.Errorf("project %q already exists", slug)
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		var teamID int64
		if team := strings.TrimSpace(projectTeam); team != "" {
			t, err := st.EnsureTeam(ctx, team, team)
			if err != nil {
				return err
			}
			teamID = t.ID
		}
		p, err := st.CreateProject(ctx, slug, projectName, teamID)
		if err != nil {
			return err
		}
		if webhook != "" {
			if err := st.SetOption(ctx, p.ID, notify.OptionWebhook, webhook); err != nil {
				return err
			}
		}
		fmt.Println(successStyle.Render(fmt.Sprintf("Added project %s", p.Slug)))
		if webhook == "" {
			fmt.Println(dimStyle.Render("No webhook set; run 'slacknotify project configure " + p.Slug + "' to add one."))
		}
		return nil
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show <slug>",
	Short: "Show a project's notification options",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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
		opts, err := st.Options(ctx, p.ID)
		if err != nil {
			return err
		}
		fmt.Println(headerStyle.Render("  " + p.Slug))
		fmt.Printf("  Name    : %s\n", p.Name)
		if p.TeamID != 0 {
			if team, err := st.Team(ctx, p.TeamID); err == nil {
				fmt.Printf("  Team    : %s\n", team.Name)
			}
		}
		fmt.Printf("  Webhook : %s\n", orNone(redactWebhook(opts[notify.OptionWebhook])))
		fmt.Printf("  Enabled : %s\n", orNone(opts[notify.OptionEnabled]))
		return nil
	},
}

var projectSetCmd = &cobra.Command{
	Use:   "set <slug> <webhook|enabled> [value]",
	Short: "Set or clear a notification option (omit value to clear)",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[1]
		if key != notify.OptionWebhook && key != notify.OptionEnabled {
			return fmt.Errorf("unknown option %q (valid: %s, %s)", key, notify.OptionWebhook, notify.OptionEnabled)
		}
		value := ""
		if len(args) == 3 {
			value = strings.TrimSpace(args[2])
		}
		if key == notify.OptionWebhook && value != "" {
			if err := notify.ValidateWebhook(value); err != nil {
				return err
			}
		}

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
		if value == "" {
			if err := st.DeleteOption(ctx, p.ID, key); err != nil {
				return err
			}
			fmt.Println(successStyle.Render(fmt.Sprintf("Cleared %s for %s", key, p.Slug)))
			return nil
		}
		if err := st.SetOption(ctx, p.ID, key, value); err != nil {
			return err
		}
		fmt.Println(successStyle.Render(fmt.Sprintf("Set %s for %s", key, p.Slug)))
		return nil
	},
}

func init() {
	projectAddCmd.Flags().StringVar(&projectName, "name", "", "display name (defaults to the slug)")
	projectAddCmd.Flags().StringVar(&projectTeam, "team", "", "owning team slug, created if missing")
	projectAddCmd.Flags().StringVar(&projectWebhook, "webhook", "", "Slack incoming webhook URL")

	projectCmd.AddCommand(projectListCmd, projectAddCmd, projectShowCmd, projectSetCmd, projectConfigureCmd)
}

// redactWebhook keeps the host so users can tell webhooks apart.
func redactWebhook(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Scheme + "://" + u.Host + "/***"
}

func orNone(s string) string {
	if s == "" {
		return dimStyle.Render("(not set)")
	}
	return s
}
