package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/noah-isme/edubot-api/internal/service"
)

var (
	apiURL    string
	token     string
	sessionID string
	timeout   time.Duration
	verbose   bool

	reportFormat string
	reportOut    string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "edubot-cli",
	Short: "Terminal client for the EduBot academic assistant",
	Long: `edubot-cli talks to a running edubot-api server.

Run without arguments to start an interactive conversation. Set EDUBOT_TOKEN
to sign in so grade questions are answered with your own enrollments.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runChat,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long: `Reads one message per line. Type /reset to clear the conversation,
/status to check the assistant and /exit to quit.`,
	RunE: runChat,
}

var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Send a single message and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the hosted model is available",
	RunE:  runStatus,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Download the academic report (requires EDUBOT_TOKEN)",
	RunE:  runReport,
}

var classifyCmd = &cobra.Command{
	Use:   "classify [message]",
	Short: "Classify a message locally with the keyword rules",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClassify,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", envOr("EDUBOT_API_URL", "http://localhost:8080/api/v1"), "edubot-api base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("EDUBOT_TOKEN"), "bearer token issued by the student portal")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "", "session id to resume")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 60*time.Second, "request timeout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	reportCmd.Flags().StringVar(&reportFormat, "format", service.ReportFormatPDF, "csv or pdf")
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "output file (default calificaciones.<format>)")

	rootCmd.AddCommand(chatCmd, askCmd, statusCmd, reportCmd, classifyCmd)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func newClient() *apiClient {
	return newAPIClient(apiURL, token, sessionID, timeout)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return chatLoop(ctx, newClient(), cmd.InOrStdin(), cmd.OutOrStdout())
}

func chatLoop(ctx context.Context, client *apiClient, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "EduBot listo. Escribe /exit para salir.")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/reset":
			if err := client.Reset(ctx); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			fmt.Fprintln(out, "Conversación reiniciada.")
			continue
		case "/status":
			status, err := client.Status(ctx)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			printStatus(out, status.Available, status.Mode, status.Provider, status.Details)
			continue
		}

		reply, err := client.Chat(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Debug("chat request failed", zap.Error(err))
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		fmt.Fprintln(out, reply.Reply)
	}
}

func runAsk(cmd *cobra.Command, args []string) error {
	client := newClient()
	reply, err := client.Chat(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, reply.Reply)
	logger.Debug("reply", zap.String("intent", reply.Intent), zap.String("path", reply.Path), zap.String("session_id", reply.SessionID))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	status, err := newClient().Status(cmd.Context())
	if err != nil {
		return err
	}
	printStatus(cmd.OutOrStdout(), status.Available, status.Mode, status.Provider, status.Details)
	return nil
}

func printStatus(out io.Writer, available bool, mode, provider, details string) {
	fmt.Fprintf(out, "available: %t\nmode: %s\nprovider: %s\n", available, mode, provider)
	if details != "" {
		fmt.Fprintf(out, "details: %s\n", details)
	}
}

func runReport(cmd *cobra.Command, args []string) error {
	format := strings.ToLower(reportFormat)
	if format != service.ReportFormatCSV && format != service.ReportFormatPDF {
		return fmt.Errorf("unknown format %q", reportFormat)
	}
	if token == "" {
		return fmt.Errorf("a token is required, set EDUBOT_TOKEN or --token")
	}
	payload, err := newClient().Report(cmd.Context(), format)
	if err != nil {
		return err
	}
	path := reportOut
	if path == "" {
		path = "calificaciones." + format
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "report saved to %s (%d bytes)\n", path, len(payload))
	return nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	message := strings.Join(args, " ")
	classifier := service.NewIntentClassifier(nil, logger)
	fmt.Fprintf(cmd.OutOrStdout(), "intent: %s\ngrade_related: %t\n", classifier.Classify(message), classifier.IsGradeRelated(message))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
