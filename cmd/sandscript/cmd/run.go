package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nfrund/sandscript/internal/bridge"
	"github.com/nfrund/sandscript/internal/format"
	"github.com/nfrund/sandscript/internal/logging"
	"github.com/nfrund/sandscript/internal/sandbox"
	"github.com/nfrund/sandscript/internal/session"
)

var (
	runTrustLevel   string
	runOutputFormat string
	runTimeout      time.Duration
	runSessionID    string
)

var runCmd = &cobra.Command{
	Use:   "run <script-file>",
	Short: "Execute a single script file locally",
	Long: `Run executes one script file in a local sandbox without starting the
HTTP service. Session state lives in memory for the duration of the run.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logging.New()

		script, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read script file: %w", err)
		}

		level, err := sandbox.ParseTrustLevel(runTrustLevel)
		if err != nil {
			return err
		}
		outputFormat, err := format.ParseFormat(runOutputFormat)
		if err != nil {
			return err
		}

		pool := sandbox.NewPool(sandbox.DefaultPoolConfig())
		runtime := sandbox.NewRuntime(sandbox.DefaultRuntimeConfig(), sandbox.Dependencies{
			Pool:     pool,
			Sessions: session.NewMemoryStore(),
			Tools:    bridge.NewFuncRegistry(),
		})
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = runtime.Shutdown(shutdownCtx)
		}()

		res := runtime.Execute(cmd.Context(), sandbox.Request{
			Script:       string(script),
			SessionID:    runSessionID,
			TrustLevel:   level,
			Timeout:      runTimeout,
			OutputFormat: outputFormat,
		})

		if !res.Success {
			// Returning lets the deferred shutdown drain the pool; Execute
			// turns the error into a nonzero process exit.
			fmt.Fprintln(os.Stderr, res.ErrorMessage)
			cmd.SilenceUsage = true
			return fmt.Errorf("script failed with exit code %d", res.ExitCode)
		}
		if res.Formatted != nil {
			fmt.Println(res.Formatted.Content)
		} else {
			fmt.Println(res.Result)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runTrustLevel, "trust", "Standard", "trust level (Minimal, Standard, Elevated, Maximum)")
	runCmd.Flags().StringVar(&runOutputFormat, "format", "plain", "output format (plain, json, xml, yaml, table, csv, markdown)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 30*time.Second, "execution timeout")
	runCmd.Flags().StringVar(&runSessionID, "session", "", "session identifier")
	rootCmd.AddCommand(runCmd)
}
