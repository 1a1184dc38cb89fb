package app

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/cobra"

	registryapp "github.com/newsnow-ops/source-registry-server/internal/app"
	"github.com/newsnow-ops/source-registry-server/internal/audit"
	"github.com/newsnow-ops/source-registry-server/internal/config"
)

// errInconsistent is returned by check when orphans or stray modules remain
var errInconsistent = errors.New("registry is inconsistent")

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the registry for orphans and stray modules",
	Long: `Compare the registry document with the extraction modules and print the report.
Exits with an error when a source has no module or a module has no source.`,
	RunE: runCheckCmd,
}

func init() {
	checkCmd.Flags().Bool("rollback", false, "Discard orphans left behind by an incomplete registration")
}

func runCheckCmd(cmd *cobra.Command, _ []string) error {
	rollback, _ := cmd.Flags().GetBool("rollback")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return runCheck(cmd.Context(), cmd.OutOrStdout(), cfg, rollback)
}

func runCheck(
	ctx context.Context,
	out io.Writer,
	cfg *config.Config,
	rollback bool,
	appOpts ...registryapp.SourceRegistryAppOptions,
) error {
	components, err := registryapp.NewComponents(append([]registryapp.SourceRegistryAppOptions{
		registryapp.WithConfig(cfg),
	}, appOpts...)...)
	if err != nil {
		return err
	}

	report, err := audit.New(components.Registry, audit.WithRollbackOrphans(rollback)).RunOnce(ctx)
	if err != nil {
		return err
	}
	if err := printJSON(out, report); err != nil {
		return err
	}

	if !report.Healthy() {
		return errInconsistent
	}
	return nil
}
