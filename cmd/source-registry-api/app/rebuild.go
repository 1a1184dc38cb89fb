package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	registryapp "github.com/newsnow-ops/source-registry-server/internal/app"
	"github.com/newsnow-ops/source-registry-server/internal/config"
	"github.com/newsnow-ops/source-registry-server/internal/status"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Run the rebuild command and wait for it",
	Long: `Run the configured build-and-restart command once and wait for it to exit.
The outcome is recorded in the rebuild status shared with the server. When the
server (or another CLI) is already running the command, this one waits for it to
finish and then runs once more.`,
	RunE: runRebuildCmd,
}

func init() {
	rebuildCmd.Flags().Duration("wait", defaultRebuildWait, "How long to wait for the rebuild command")
}

func runRebuildCmd(cmd *cobra.Command, _ []string) error {
	wait, _ := cmd.Flags().GetDuration("wait")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return runRebuild(cmd.Context(), cmd.OutOrStdout(), cfg, wait)
}

func runRebuild(
	ctx context.Context,
	out io.Writer,
	cfg *config.Config,
	wait time.Duration,
	appOpts ...registryapp.SourceRegistryAppOptions,
) error {
	components, err := registryapp.NewComponents(append([]registryapp.SourceRegistryAppOptions{
		registryapp.WithConfig(cfg),
	}, appOpts...)...)
	if err != nil {
		return err
	}

	if err := components.Dispatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start rebuild dispatcher: %w", err)
	}
	defer func() { _ = components.Dispatcher.Stop(ctx) }()

	ack, err := components.Service.RequestRebuild(ctx)
	if err != nil {
		return fmt.Errorf("failed to request rebuild: %w", err)
	}
	if err := printJSON(out, ack); err != nil {
		return err
	}
	if ack.Coalesced {
		slog.InfoContext(ctx, "A rebuild is already running; this request runs after it", "request_id", ack.RequestID)
	}

	st, err := waitForRebuild(ctx, components, wait)
	if err != nil {
		return err
	}
	return printJSON(out, st)
}

// waitForRebuild waits for the dispatcher to go idle and returns the final status.
// A failed run is reported as an error so that the exit code reflects it.
func waitForRebuild(
	ctx context.Context,
	components *registryapp.AppComponents,
	wait time.Duration,
) (*status.RebuildStatus, error) {
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	if err := components.Dispatcher.Drain(waitCtx); err != nil {
		return nil, fmt.Errorf("rebuild did not finish within %s: %w", wait, err)
	}

	st, err := components.Service.GetRebuildStatus(ctx)
	if err != nil {
		return nil, err
	}
	if st.Phase == status.RebuildPhaseFailed {
		return st, fmt.Errorf("rebuild failed: %s", st.Message)
	}
	return st, nil
}
