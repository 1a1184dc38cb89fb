package integration

import (
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/newsnow-ops/source-registry-server/test-integration/source-registry/helpers"
)

type rebuildStatus struct {
	Phase        string `json:"phase"`
	Message      string `json:"message"`
	RunCount     int    `json:"runCount"`
	FailureCount int    `json:"failureCount"`
}

var _ = Describe("Rebuild Dispatch", Label("rebuild"), func() {
	var (
		tempDir      string
		layout       *helpers.Layout
		serverHelper *helpers.ServerTestHelper
	)

	startServer := func(script string) {
		configFile := helpers.WriteConfigYAML(layout, script)

		var err error
		serverHelper, err = helpers.NewServerTestHelper(ctx, configFile)
		Expect(err).NotTo(HaveOccurred())
		Expect(serverHelper.StartServer()).To(Succeed())
		serverHelper.WaitForServerReady(10 * time.Second)
	}

	getStatus := func() rebuildStatus {
		resp, err := serverHelper.GetRebuildStatus()
		Expect(err).NotTo(HaveOccurred())
		var st rebuildStatus
		helpers.DecodeResponse(resp, http.StatusOK, &st)
		return st
	}

	BeforeEach(func() {
		tempDir = createTempDir("source-registry-rebuild-")
		layout = helpers.NewLayout(tempDir)
		serverHelper = nil
	})

	AfterEach(func() {
		if serverHelper != nil {
			Expect(serverHelper.StopServer()).To(Succeed())
		}
		cleanupTempDir(tempDir)
	})

	It("should acknowledge at once and collapse requests made during a run", func() {
		startServer("sleep 1; echo run >> " + layout.RebuildLog)

		start := time.Now()
		for i := 0; i < 4; i++ {
			resp, err := serverHelper.Reboot()
			Expect(err).NotTo(HaveOccurred())
			helpers.DecodeResponse(resp, http.StatusAccepted, nil)
		}
		Expect(time.Since(start)).To(BeNumerically("<", time.Second))

		// Leave room for the first run and at most one follow-up run
		time.Sleep(2500 * time.Millisecond)
		Eventually(func() string { return getStatus().Phase }, 10*time.Second, 100*time.Millisecond).
			Should(Equal("Complete"))

		runs := helpers.RebuildRuns(layout)
		Expect(runs).To(BeNumerically(">=", 1))
		Expect(runs).To(BeNumerically("<=", 2))
		Expect(getStatus().RunCount).To(Equal(runs))
	})

	It("should record a failing command in the rebuild status", func() {
		startServer("echo missing script >&2; exit 3")

		resp, err := serverHelper.Reboot()
		Expect(err).NotTo(HaveOccurred())
		helpers.DecodeResponse(resp, http.StatusAccepted, nil)

		Eventually(func() rebuildStatus { return getStatus() }, 5*time.Second, 100*time.Millisecond).
			Should(SatisfyAll(
				HaveField("Phase", "Failed"),
				HaveField("FailureCount", 1),
			))
	})
})
