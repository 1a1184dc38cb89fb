package helpers

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/onsi/gomega"
	"gopkg.in/yaml.v3"

	"github.com/newsnow-ops/source-registry-server/internal/config"
)

// SourceRequest is the body of a registration request
type SourceRequest struct {
	ID      string          `json:"id,omitempty"`
	Config  json.RawMessage `json:"config,omitempty"`
	Code    string          `json:"code,omitempty"`
	Rebuild bool            `json:"rebuild,omitempty"`
}

// NewSourceRequest builds a complete registration request for id
func NewSourceRequest(id string) *SourceRequest {
	cfg, err := json.Marshal(map[string]any{
		"name":     strings.ToUpper(id[:1]) + id[1:],
		"home":     fmt.Sprintf("https://%s.example", id),
		"interval": 600000,
	})
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	return &SourceRequest{
		ID:     id,
		Config: cfg,
		Code:   fmt.Sprintf("export default defineSource(async () => fetch%q)", id),
	}
}

// Layout describes where a test server keeps its artifacts
type Layout struct {
	Root         string
	DocumentPath string
	ModulesDir   string
	StateDir     string

	// RebuildLog receives one line per rebuild run
	RebuildLog string
}

// NewLayout creates the layout under root
func NewLayout(root string) *Layout {
	return &Layout{
		Root:         root,
		DocumentPath: filepath.Join(root, "shared", "sources.json"),
		ModulesDir:   filepath.Join(root, "server", "sources"),
		StateDir:     filepath.Join(root, "data"),
		RebuildLog:   filepath.Join(root, "rebuild.log"),
	}
}

// WriteConfigYAML writes a server configuration for layout. script is run with
// sh -c as the rebuild command; an empty script disables rebuilds.
func WriteConfigYAML(layout *Layout, script string) string {
	watch := false
	cfg := config.Config{
		StateDir: layout.StateDir,
		Registry: config.RegistryConfig{
			DocumentPath: layout.DocumentPath,
			ModulesDir:   layout.ModulesDir,
			LockTimeout:  "5s",
		},
		Audit: config.AuditConfig{
			Interval: "1h",
			Watch:    &watch,
		},
	}
	if script != "" {
		cfg.Rebuild = config.RebuildConfig{
			Command: []string{"sh", "-c", script},
			WorkDir: layout.Root,
		}
	}

	data, err := yaml.Marshal(&cfg)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	path := filepath.Join(layout.Root, "config.yaml")
	gomega.Expect(os.WriteFile(path, data, 0600)).To(gomega.Succeed())
	return path
}

// ReadDocument returns the registry document, or nil when it does not exist
func ReadDocument(layout *Layout) map[string]json.RawMessage {
	data, err := os.ReadFile(layout.DocumentPath)
	if os.IsNotExist(err) {
		return nil
	}
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	var doc map[string]json.RawMessage
	gomega.Expect(json.Unmarshal(data, &doc)).To(gomega.Succeed())
	return doc
}

// RebuildRuns returns how many times the rebuild command wrote to the log
func RebuildRuns(layout *Layout) int {
	data, err := os.ReadFile(layout.RebuildLog)
	if os.IsNotExist(err) {
		return 0
	}
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return strings.Count(string(data), "\n")
}
