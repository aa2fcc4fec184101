package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

const configTemplate = `version: "1"

modules:
  channel.telegram:
    token_env: TELEGRAM_BOT_TOKEN
    mode: polling
    streaming: true
%s
  provider.gemini:
    api_key_env: GEMINI_API_KEY
    model: %q

  memory.sqlite: {}

  gateway.http:
    bind: "127.0.0.1:8080"

relay:
  workers: 4
`

// initCmd runs an interactive form and writes a starter configuration.
func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively create a starter configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, _ := cmd.Flags().GetString("output")

			var (
				botToken     string
				geminiKey    string
				model        = "gemini-1.5-flash"
				allowedUsers string
			)

			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("Telegram bot token").
						Description("From @BotFather. Stored in the TELEGRAM_BOT_TOKEN environment variable, not in the file.").
						EchoMode(huh.EchoModePassword).
						Value(&botToken),
					huh.NewInput().
						Title("Gemini API key").
						Description("Stored in the GEMINI_API_KEY environment variable, not in the file.").
						EchoMode(huh.EchoModePassword).
						Value(&geminiKey),
				),
				huh.NewGroup(
					huh.NewSelect[string]().
						Title("Gemini model").
						Options(
							huh.NewOption("gemini-1.5-flash (fast, default)", "gemini-1.5-flash"),
							huh.NewOption("gemini-1.5-pro (higher quality)", "gemini-1.5-pro"),
							huh.NewOption("gemini-2.0-flash", "gemini-2.0-flash"),
						).
						Value(&model),
					huh.NewInput().
						Title("Allowed users").
						Description("Comma-separated Telegram usernames or user IDs. Empty denies everyone.").
						Value(&allowedUsers),
				),
			)

			if err := form.Run(); err != nil {
				return err
			}

			if out == "" {
				out = defaultConfigOutput()
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o700); err != nil {
				return fmt.Errorf("creating config directory: %w", err)
			}
			if _, err := os.Stat(out); err == nil {
				return fmt.Errorf("refusing to overwrite existing config: %s", out)
			}

			cfg := fmt.Sprintf(configTemplate, allowedUsersYAML(allowedUsers), model)
			if err := os.WriteFile(out, []byte(cfg), 0o600); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}

			fmt.Printf("Wrote %s\n\nNext steps:\n", out)
			fmt.Println("  export TELEGRAM_BOT_TOKEN=" + placeholder(botToken))
			fmt.Println("  export GEMINI_API_KEY=" + placeholder(geminiKey))
			fmt.Println("  gemgram start")
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Where to write the config file")
	return cmd
}

// allowedUsersYAML renders the allowed_users list block, indented for the
// channel.telegram section. An empty input produces an empty list, which
// denies everyone.
func allowedUsersYAML(raw string) string {
	var b strings.Builder
	b.WriteString("    allowed_users:")
	users := strings.Split(raw, ",")
	wrote := false
	for _, u := range users {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		fmt.Fprintf(&b, "\n      - %q", u)
		wrote = true
	}
	if !wrote {
		b.WriteString(" []")
	}
	b.WriteString("\n")
	return b.String()
}

// placeholder echoes the secret back only if the user provided one.
func placeholder(secret string) string {
	if secret == "" {
		return "<your-token>"
	}
	return secret
}

func defaultConfigOutput() string {
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		return filepath.Join(xdg, "gemgram", "gemgram.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "gemgram", "gemgram.yaml")
}
