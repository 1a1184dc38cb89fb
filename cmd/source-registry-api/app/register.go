package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	registryapp "github.com/newsnow-ops/source-registry-server/internal/app"
	"github.com/newsnow-ops/source-registry-server/internal/config"
	"github.com/newsnow-ops/source-registry-server/internal/service"
)

const defaultRebuildWait = 10 * time.Minute

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a source from local files",
	Long: `Register a source without going through the HTTP API.

The source configuration may be written in YAML or JSON; it is stored as JSON in the
registry document. The extraction module is copied verbatim. The command takes the
same registry lock as the server, so both may run at the same time.`,
	Example: `  source-registry-api register --id techblog --config-file techblog.yaml --code-file techblog.ts --rebuild`,
	RunE:    runRegisterCmd,
}

func init() {
	registerCmd.Flags().String("id", "", "Source identifier")
	registerCmd.Flags().String("config-file", "", "Source configuration file (YAML or JSON)")
	registerCmd.Flags().String("code-file", "", "Extraction module file")
	registerCmd.Flags().Bool("rebuild", false, "Run the rebuild command after a successful registration")
	registerCmd.Flags().Duration("wait", defaultRebuildWait, "How long to wait for the rebuild command")

	for _, name := range []string{"id", "config-file", "code-file"} {
		if err := registerCmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
}

// registerOptions holds the register command inputs
type registerOptions struct {
	id         string
	configFile string
	codeFile   string
	rebuild    bool
	wait       time.Duration
}

func runRegisterCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	opts := registerOptions{}
	opts.id, _ = flags.GetString("id")
	opts.configFile, _ = flags.GetString("config-file")
	opts.codeFile, _ = flags.GetString("code-file")
	opts.rebuild, _ = flags.GetBool("rebuild")
	opts.wait, _ = flags.GetDuration("wait")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return runRegister(cmd.Context(), cmd.OutOrStdout(), cfg, opts)
}

func runRegister(
	ctx context.Context,
	out io.Writer,
	cfg *config.Config,
	opts registerOptions,
	appOpts ...registryapp.SourceRegistryAppOptions,
) error {
	sourceConfig, err := readSourceConfig(opts.configFile)
	if err != nil {
		return err
	}
	code, err := os.ReadFile(filepath.Clean(opts.codeFile))
	if err != nil {
		return fmt.Errorf("failed to read extraction module: %w", err)
	}

	components, err := registryapp.NewComponents(append([]registryapp.SourceRegistryAppOptions{
		registryapp.WithConfig(cfg),
	}, appOpts...)...)
	if err != nil {
		return err
	}

	if opts.rebuild {
		if err := components.Dispatcher.Start(ctx); err != nil {
			return fmt.Errorf("failed to start rebuild dispatcher: %w", err)
		}
		defer func() { _ = components.Dispatcher.Stop(ctx) }()
	}

	result, err := components.Service.RegisterSource(ctx, &service.RegisterSourceRequest{
		ID:      opts.id,
		Config:  sourceConfig,
		Code:    string(code),
		Rebuild: opts.rebuild,
	})
	if err != nil {
		return fmt.Errorf("failed to register source %q: %w", opts.id, err)
	}

	if err := printJSON(out, result); err != nil {
		return err
	}

	if result.Rebuild == nil {
		return nil
	}
	st, err := waitForRebuild(ctx, components, opts.wait)
	if err != nil {
		return err
	}
	return printJSON(out, st)
}

// readSourceConfig reads a YAML or JSON source configuration and returns it as JSON
func readSourceConfig(path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read source configuration: %w", err)
	}

	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source configuration: %w", err)
	}
	return jsonData, nil
}
