package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	v1 "github.com/newsnow-ops/source-registry-server/internal/api/v1"
	registryapp "github.com/newsnow-ops/source-registry-server/internal/app"
	"github.com/newsnow-ops/source-registry-server/internal/config"
	"github.com/newsnow-ops/source-registry-server/internal/service"
)

var repairCmd = &cobra.Command{
	Use:   "repair <id>",
	Short: "Repair an orphaned source",
	Long: `Resolve a source whose configuration was saved without its extraction module.
Either write the missing module (--code-file) or remove the configuration entry (--discard).`,
	Args: cobra.ExactArgs(1),
	RunE: runRepairCmd,
}

func init() {
	repairCmd.Flags().String("code-file", "", "Extraction module to write")
	repairCmd.Flags().Bool("discard", false, "Remove the configuration entry instead")
	repairCmd.MarkFlagsMutuallyExclusive("code-file", "discard")
	repairCmd.MarkFlagsOneRequired("code-file", "discard")
}

func runRepairCmd(cmd *cobra.Command, args []string) error {
	codeFile, _ := cmd.Flags().GetString("code-file")
	discard, _ := cmd.Flags().GetBool("discard")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return runRepair(cmd.Context(), cmd.OutOrStdout(), cfg, args[0], codeFile, discard)
}

func runRepair(
	ctx context.Context,
	out io.Writer,
	cfg *config.Config,
	id string,
	codeFile string,
	discard bool,
	appOpts ...registryapp.SourceRegistryAppOptions,
) error {
	components, err := registryapp.NewComponents(append([]registryapp.SourceRegistryAppOptions{
		registryapp.WithConfig(cfg),
	}, appOpts...)...)
	if err != nil {
		return err
	}

	if discard {
		if err := components.Service.DiscardSource(ctx, id); err != nil {
			return fmt.Errorf("failed to discard source %q: %w", id, err)
		}
		return printJSON(out, v1.MessageResponse{
			Success: true,
			Message: fmt.Sprintf("Configuration of orphaned source %q was removed.", id),
		})
	}

	code, err := os.ReadFile(filepath.Clean(codeFile))
	if err != nil {
		return fmt.Errorf("failed to read extraction module: %w", err)
	}
	if err := components.Service.RepairSource(ctx, &service.RepairSourceRequest{ID: id, Code: string(code)}); err != nil {
		return fmt.Errorf("failed to repair source %q: %w", id, err)
	}
	return printJSON(out, v1.MessageResponse{
		Success: true,
		Message: fmt.Sprintf("Module of source %q was written. Request a rebuild to activate it.", id),
	})
}
