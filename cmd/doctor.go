package cmd

import (
	"context"
	"fmt"

	"github.com/CosmoTheDev/slacknotify/internal/config"
	"github.com/CosmoTheDev/slacknotify/internal/database"
	"github.com/CosmoTheDev/slacknotify/internal/notify"
	"github.com/CosmoTheDev/slacknotify/internal/store"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Verify the database and per-project webhook configuration",
	Long: `Checks that the database can be reached and migrated, then reports for
every project whether a webhook is configured and notifications are enabled.`,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	allOK := true

	fmt.Println("=== slacknotify doctor ===")
	fmt.Println()

	fmt.Print("Database ................. ")
	db, err := database.New(cfg.Database)
	if err != nil {
		fmt.Println(failStyle.Render(fmt.Sprintf("FAIL (%s)", err)))
		return nil
	}
	defer db.Close()
	if err := db.Ping(ctx); err != nil {
		fmt.Println(failStyle.Render(fmt.Sprintf("FAIL (%s)", err)))
		return nil
	}
	if err := db.Migrate(ctx); err != nil {
		fmt.Println(failStyle.Render(fmt.Sprintf("FAIL (migrations: %s)", err)))
		return nil
	}
	target := cfg.Database.Path
	if db.Driver() == "mysql" {
		target = "dsn"
	}
	fmt.Printf("OK (%s: %s)\n", db.Driver(), target)

	fmt.Print("Default webhook .......... ")
	if cfg.Slack.DefaultWebhook == "" {
		fmt.Println(dimStyle.Render("not set (optional)"))
	} else if err := notify.ValidateWebhook(cfg.Slack.DefaultWebhook); err != nil {
		fmt.Println(warnStyle.Render(fmt.Sprintf("WARN (%s)", err)))
		allOK = false
	} else {
		fmt.Printf("OK (%s)\n", redactWebhook(cfg.Slack.DefaultWebhook))
	}

	st := store.New(db, cfg.Gateway.BaseURL)
	plugin := notify.NewPlugin(st, nil)
	projects, err := st.ListProjects(ctx)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Projects:")
	if len(projects) == 0 {
		fmt.Println(dimStyle.Render("  none (add one with 'slacknotify project add <slug>')"))
	}
	for i := range projects {
		p := &projects[i]
		fmt.Printf("  %-22s ... ", p.Slug)
		webhook, err := plugin.Webhook(ctx, p)
		if err != nil {
			fmt.Println(failStyle.Render(fmt.Sprintf("FAIL (%s)", err)))
			allOK = false
			continue
		}
		enabled, err := plugin.IsEnabled(ctx, p)
		if err != nil {
			fmt.Println(failStyle.Render(fmt.Sprintf("FAIL (%s)", err)))
			allOK = false
			continue
		}
		switch {
		case webhook == "":
			fmt.Println(warnStyle.Render("WARN (no webhook configured)"))
			allOK = false
		case notify.ValidateWebhook(webhook) != nil:
			fmt.Println(warnStyle.Render("WARN (webhook is not an http(s) URL)"))
			allOK = false
		case !enabled:
			fmt.Println(dimStyle.Render("disabled"))
		default:
			fmt.Printf("OK (%s)\n", redactWebhook(webhook))
		}
	}

	fmt.Println()
	if allOK {
		fmt.Println(successStyle.Render("All checks passed, slacknotify is ready!"))
	} else {
		fmt.Println(warnStyle.Render("Some checks failed. Run 'slacknotify project configure <slug>' to fix."))
	}
	return nil
}
