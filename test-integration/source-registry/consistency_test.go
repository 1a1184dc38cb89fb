package integration

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/newsnow-ops/source-registry-server/test-integration/source-registry/helpers"
)

type consistencyReport struct {
	Sources      int      `json:"sources"`
	Orphans      []string `json:"orphans"`
	StrayModules []string `json:"strayModules"`
}

var _ = Describe("Registry Consistency", Label("consistency"), func() {
	var (
		tempDir      string
		layout       *helpers.Layout
		serverHelper *helpers.ServerTestHelper
	)

	BeforeEach(func() {
		tempDir = createTempDir("source-registry-consistency-")
		layout = helpers.NewLayout(tempDir)

		// One orphan (no module) and one stray module (no configuration)
		Expect(os.MkdirAll(filepath.Dir(layout.DocumentPath), 0750)).To(Succeed())
		Expect(os.WriteFile(layout.DocumentPath, []byte(`{"orphan": {"name": "Orphan"}}`), 0600)).To(Succeed())
		Expect(os.MkdirAll(layout.ModulesDir, 0750)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(layout.ModulesDir, "stray.ts"), []byte("export default {}"), 0600)).To(Succeed())

		configFile := helpers.WriteConfigYAML(layout, "")

		var err error
		serverHelper, err = helpers.NewServerTestHelper(ctx, configFile)
		Expect(err).NotTo(HaveOccurred())
		Expect(serverHelper.StartServer()).To(Succeed())
		serverHelper.WaitForServerReady(10 * time.Second)
	})

	AfterEach(func() {
		Expect(serverHelper.StopServer()).To(Succeed())
		cleanupTempDir(tempDir)
	})

	getReport := func() consistencyReport {
		resp, err := serverHelper.GetConsistency()
		Expect(err).NotTo(HaveOccurred())
		var report consistencyReport
		helpers.DecodeResponse(resp, http.StatusOK, &report)
		return report
	}

	It("should report orphans and stray modules", func() {
		report := getReport()
		Expect(report.Sources).To(Equal(1))
		Expect(report.Orphans).To(ConsistOf("orphan"))
		Expect(report.StrayModules).To(ConsistOf("stray"))
	})

	It("should repair an orphan by writing its module", func() {
		resp, err := serverHelper.RepairSource("orphan", "export default defineSource(async () => [])")
		Expect(err).NotTo(HaveOccurred())
		helpers.DecodeResponse(resp, http.StatusOK, nil)

		Expect(getReport().Orphans).To(BeEmpty())
		_, err = os.Stat(filepath.Join(layout.ModulesDir, "orphan.ts"))
		Expect(err).NotTo(HaveOccurred())
	})

	It("should discard an orphan's configuration entry", func() {
		resp, err := serverHelper.DiscardSource("orphan")
		Expect(err).NotTo(HaveOccurred())
		helpers.DecodeResponse(resp, http.StatusOK, nil)

		report := getReport()
		Expect(report.Sources).To(Equal(0))
		Expect(report.Orphans).To(BeEmpty())
	})

	It("should refuse to repair a source that does not exist", func() {
		resp, err := serverHelper.RepairSource("missing", "export default {}")
		Expect(err).NotTo(HaveOccurred())
		helpers.DecodeResponse(resp, http.StatusNotFound, nil)
	})

	It("should reject rebuilds when no command is configured", func() {
		resp, err := serverHelper.Reboot()
		Expect(err).NotTo(HaveOccurred())
		helpers.DecodeResponse(resp, http.StatusServiceUnavailable, nil)
	})
})
