// Command ingest runs the student-record upload pipeline against local files.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lekhnak/uc-pathways-hub-sub000/internal/ingest"
	"github.com/lekhnak/uc-pathways-hub-sub000/internal/logging"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
	exitPartial = 3
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

type globalOptions struct {
	logLevel  string
	logFormat string
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(execute(ctx, newRootCmd(), os.Args[1:]))
}

func execute(ctx context.Context, root *cobra.Command, args []string) int {
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.code != exitPartial {
			fmt.Fprintln(root.ErrOrStderr(), "error:", ingest.FormatUserError(ee.err))
		}
		return ee.code
	}
	fmt.Fprintln(root.ErrOrStderr(), "error:", err)
	return exitUsage
}

func newRootCmd() *cobra.Command {
	var opts globalOptions

	root := &cobra.Command{
		Use:           "ingest",
		Short:         "Bulk-import student applications from CSV or Excel files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup(cmd.ErrOrStderr(), opts.logLevel, opts.logFormat)
		},
	}

	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", envOr("LOG_LEVEL", "warn"), "Log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", envOr("LOG_FORMAT", "text"), "Log format: text or json")

	root.AddCommand(
		newParseCmd(),
		newProcessCmd(),
		newLogsCmd(),
		newMigrateCmd(),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
