package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kirillkom/mail-triage/internal/bootstrap"
	"github.com/kirillkom/mail-triage/internal/config"
	"github.com/kirillkom/mail-triage/internal/observability/logging"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "triage",
		Short:         "Classify Portuguese support emails and propose replies",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(mcpCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(eventsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the pipeline. Logs always go to
// stderr so stdout carries only command output.
func setup(ctx context.Context, service string) (*bootstrap.App, error) {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, service, cfg.LogLevel))
	return bootstrap.New(ctx, cfg, nil)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func classifyCmd() *cobra.Command {
	var text, file string

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify one email and print the result as JSON",
		Long: `Classify one email given as text, as a .txt or .pdf file, or as a raw
.eml message. Without --text or --file the email is read from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			input, err := readClassifyInput(text, file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			app, err := setup(ctx, "cli")
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.Triage.Triage(ctx, input)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Email body")
	cmd.Flags().StringVar(&file, "file", "", "Path to a .txt, .pdf or .eml file")

	return cmd
}

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the classify_email tool over MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			app, err := setup(ctx, "mcp")
			if err != nil {
				return err
			}
			defer app.Close()
			return runMCP(app)
		},
	}
}

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent triage records from the audit store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			app, err := setup(ctx, "cli")
			if err != nil {
				return err
			}
			defer app.Close()
			if app.Records == nil {
				return fmt.Errorf("history requires POSTGRES_DSN")
			}

			records, err := app.Records.ListRecent(ctx, limit)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), records)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of records to show")

	return cmd
}

func eventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Follow triage events from the message bus",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			app, err := setup(ctx, "cli")
			if err != nil {
				return err
			}
			defer app.Close()
			if app.Bus == nil {
				return fmt.Errorf("events requires NATS_URL")
			}

			return followEvents(ctx, app.Bus, cmd.OutOrStdout())
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
