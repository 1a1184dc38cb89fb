package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	registryapp "github.com/newsnow-ops/source-registry-server/internal/app"
	"github.com/newsnow-ops/source-registry-server/internal/config"
	"github.com/newsnow-ops/source-registry-server/internal/rebuild"
	rebuildmocks "github.com/newsnow-ops/source-registry-server/internal/rebuild/mocks"
	"github.com/newsnow-ops/source-registry-server/internal/registry"
)

type cliFixture struct {
	root   string
	cfg    *config.Config
	runner *rebuildmocks.MockCommandRunner
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()

	root := t.TempDir()
	return &cliFixture{
		root: root,
		cfg: &config.Config{
			StateDir: filepath.Join(root, "state"),
			Registry: config.RegistryConfig{
				DocumentPath: filepath.Join(root, "shared", "sources.json"),
				ModulesDir:   filepath.Join(root, "server", "sources"),
			},
			Rebuild: config.RebuildConfig{
				Command: []string{"pnpm", "run", "build"},
			},
		},
		runner: rebuildmocks.NewMockCommandRunner(gomock.NewController(t)),
	}
}

func (f *cliFixture) writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(f.root, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func (f *cliFixture) appOpts() []registryapp.SourceRegistryAppOptions {
	return []registryapp.SourceRegistryAppOptions{registryapp.WithCommandRunner(f.runner)}
}

func (f *cliFixture) register(t *testing.T, id string, rebuildAfter bool) (*bytes.Buffer, error) {
	t.Helper()

	var out bytes.Buffer
	err := runRegister(context.Background(), &out, f.cfg, registerOptions{
		id:         id,
		configFile: f.writeFile(t, id+".yaml", "name: Tech Blog\nhome: https://blog.example\ninterval: 600000\n"),
		codeFile:   f.writeFile(t, id+".ts", "export default defineSource(async () => [])"),
		rebuild:    rebuildAfter,
		wait:       5 * time.Second,
	}, f.appOpts()...)
	return &out, err
}

func TestRunRegister_YAMLConfig(t *testing.T) {
	t.Parallel()

	f := newCLIFixture(t)
	out, err := f.register(t, "techblog", false)
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"id": "techblog"`)

	data, err := os.ReadFile(f.cfg.GetDocumentPath())
	require.NoError(t, err)
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.JSONEq(t, `{"name":"Tech Blog","home":"https://blog.example","interval":600000}`, string(doc["techblog"]))

	code, err := os.ReadFile(filepath.Join(f.cfg.GetModulesDir(), "techblog.ts"))
	require.NoError(t, err)
	assert.Equal(t, "export default defineSource(async () => [])", string(code))
}

func TestRunRegister_Duplicate(t *testing.T) {
	t.Parallel()

	f := newCLIFixture(t)
	_, err := f.register(t, "techblog", false)
	require.NoError(t, err)

	_, err = f.register(t, "techblog", false)
	require.ErrorIs(t, err, registry.ErrDuplicateIdentifier)
}

func TestRunRegister_WithRebuild(t *testing.T) {
	t.Parallel()

	f := newCLIFixture(t)
	f.runner.EXPECT().Run(gomock.Any()).Return(&rebuild.Result{ExitCode: 0, Duration: time.Millisecond})

	out, err := f.register(t, "techblog", true)
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"phase": "Complete"`)
}

func TestRunRegister_MissingFiles(t *testing.T) {
	t.Parallel()

	f := newCLIFixture(t)
	err := runRegister(context.Background(), &bytes.Buffer{}, f.cfg, registerOptions{
		id:         "techblog",
		configFile: filepath.Join(f.root, "missing.yaml"),
		codeFile:   filepath.Join(f.root, "missing.ts"),
	}, f.appOpts()...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source configuration")
}

func TestRunRebuild(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		result  *rebuild.Result
		wantErr string
	}{
		{
			name:   "command succeeds",
			result: &rebuild.Result{ExitCode: 0},
		},
		{
			name:    "command fails",
			result:  &rebuild.Result{ExitCode: 1, Stderr: "ERR_PNPM_NO_SCRIPT", Err: errors.New("exit status 1")},
			wantErr: "rebuild failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newCLIFixture(t)
			f.runner.EXPECT().Run(gomock.Any()).Return(tt.result)

			var out bytes.Buffer
			err := runRebuild(context.Background(), &out, f.cfg, 5*time.Second, f.appOpts()...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, out.String(), `"requestId"`)
		})
	}
}

func TestRunRebuild_Disabled(t *testing.T) {
	t.Parallel()

	f := newCLIFixture(t)
	f.cfg.Rebuild.Command = nil

	err := runRebuild(context.Background(), &bytes.Buffer{}, f.cfg, time.Second, f.appOpts()...)
	require.ErrorIs(t, err, rebuild.ErrRebuildDisabled)
}

func TestRunCheckAndRepair(t *testing.T) {
	t.Parallel()

	f := newCLIFixture(t)
	_, err := f.register(t, "techblog", false)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runCheck(context.Background(), &out, f.cfg, false, f.appOpts()...))
	assert.Contains(t, out.String(), `"sources": 1`)

	// The module disappears: the source becomes an orphan
	modulePath := filepath.Join(f.cfg.GetModulesDir(), "techblog.ts")
	require.NoError(t, os.Remove(modulePath))

	out.Reset()
	err = runCheck(context.Background(), &out, f.cfg, false, f.appOpts()...)
	require.ErrorIs(t, err, errInconsistent)
	assert.Contains(t, out.String(), "techblog")

	codeFile := f.writeFile(t, "fixed.ts", "export default {}")
	out.Reset()
	require.NoError(t, runRepair(context.Background(), &out, f.cfg, "techblog", codeFile, false, f.appOpts()...))
	assert.Contains(t, out.String(), "was written")

	code, err := os.ReadFile(modulePath)
	require.NoError(t, err)
	assert.Equal(t, "export default {}", string(code))

	require.NoError(t, runCheck(context.Background(), &bytes.Buffer{}, f.cfg, false, f.appOpts()...))
}

func TestRunRepair_Discard(t *testing.T) {
	t.Parallel()

	f := newCLIFixture(t)
	_, err := f.register(t, "techblog", false)
	require.NoError(t, err)

	// A registered source with its module is not an orphan
	err = runRepair(context.Background(), &bytes.Buffer{}, f.cfg, "techblog", "", true, f.appOpts()...)
	require.ErrorIs(t, err, registry.ErrNotOrphaned)

	require.NoError(t, os.Remove(filepath.Join(f.cfg.GetModulesDir(), "techblog.ts")))

	var out bytes.Buffer
	require.NoError(t, runRepair(context.Background(), &out, f.cfg, "techblog", "", true, f.appOpts()...))
	assert.Contains(t, out.String(), "was removed")

	err = runRepair(context.Background(), &bytes.Buffer{}, f.cfg, "techblog", "", true, f.appOpts()...)
	require.ErrorIs(t, err, registry.ErrSourceNotFound)
}

func TestReadSourceConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{name: "json", content: `{"name": "Tech Blog"}`, want: `{"name":"Tech Blog"}`},
		{name: "yaml", content: "name: Tech Blog\ntags: [tech]\n", want: `{"name":"Tech Blog","tags":["tech"]}`},
		{name: "invalid", content: "name: [unclosed", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(dir, tt.name+".src")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0600))

			got, err := readSourceConfig(path)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}
