package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/core"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(configCheckCmd(), configInitCmd())
	return cmd
}

func configCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration and load all modules",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			appCtx := core.NewAppContext(logger, cfg.DataDir)
			appCtx = appCtx.WithModuleConfigs(cfg.Modules)

			application := core.NewApp(appCtx)
			ids := config.Resolve(cfg)
			if err := application.LoadModules(ids); err != nil {
				return err
			}
			defer application.Stop()

			fmt.Printf("Configuration OK (%d modules)\n", len(ids))
			for _, id := range ids {
				fmt.Printf("  %s\n", id)
			}
			return nil
		},
	}
}

func configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively create a starter configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, _ := cmd.Flags().GetString("output")

			answers := struct {
				bind         string
				openaiModel  string
				openaiKey    string
				authBaseURL  string
				authAPIKey   string
				tavilyKey    string
				enableSearch bool
			}{
				bind:        "127.0.0.1:8080",
				openaiModel: "gpt-4o-mini",
			}

			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("Listen address").
						Value(&answers.bind),
					huh.NewInput().
						Title("OpenAI model").
						Value(&answers.openaiModel),
					huh.NewInput().
						Title("OpenAI API key (leave empty to configure later)").
						EchoMode(huh.EchoModePassword).
						Value(&answers.openaiKey),
				),
				huh.NewGroup(
					huh.NewInput().
						Title("Identity provider base URL").
						Placeholder("https://your-project.supabase.co").
						Value(&answers.authBaseURL),
					huh.NewInput().
						Title("Identity provider API key").
						EchoMode(huh.EchoModePassword).
						Value(&answers.authAPIKey),
				),
				huh.NewGroup(
					huh.NewConfirm().
						Title("Enable web search?").
						Value(&answers.enableSearch),
					huh.NewInput().
						Title("Tavily API key").
						EchoMode(huh.EchoModePassword).
						Value(&answers.tavilyKey),
				),
			)
			if err := form.Run(); err != nil {
				return err
			}

			content := renderConfig(
				answers.bind,
				answers.openaiModel,
				answers.openaiKey,
				answers.authBaseURL,
				answers.authAPIKey,
				answers.tavilyKey,
				answers.enableSearch,
			)

			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return err
			}
			if _, err := os.Stat(out); err == nil {
				return fmt.Errorf("%s already exists, refusing to overwrite", out)
			}
			if err := os.WriteFile(out, []byte(content), 0o600); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "parley.yaml", "Where to write the configuration")
	return cmd
}

func renderConfig(bind, model, openaiKey, authURL, authKey, tavilyKey string, search bool) string {
	toolSources := ""
	searchModule := ""
	if search {
		toolSources = "\n    tool_sources:\n      - tools.websearch"
		searchModule = fmt.Sprintf("\n  tools.websearch:\n    api_key: %q\n", tavilyKey)
	}
	return fmt.Sprintf(`version: "1"

modules:
  gateway.http:
    bind: %q%s
  provider.openai:
    model: %q
    api_key: %q
  store.sqlite: {}
  auth.remote:
    base_url: %q
    api_key: %q
%s`, bind, toolSources, model, openaiKey, authURL, authKey, searchModule)
}
