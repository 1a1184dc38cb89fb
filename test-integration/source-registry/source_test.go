package integration

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/newsnow-ops/source-registry-server/test-integration/source-registry/helpers"
)

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

var _ = Describe("Source Registration", Label("sources"), func() {
	var (
		tempDir      string
		layout       *helpers.Layout
		serverHelper *helpers.ServerTestHelper
	)

	BeforeEach(func() {
		tempDir = createTempDir("source-registry-")
		layout = helpers.NewLayout(tempDir)

		// The aggregation service already knows one source
		Expect(os.MkdirAll(filepath.Dir(layout.DocumentPath), 0750)).To(Succeed())
		Expect(os.WriteFile(layout.DocumentPath, []byte(`{"hackernews": {"name": "Hacker News"}}`), 0600)).To(Succeed())
		Expect(os.MkdirAll(layout.ModulesDir, 0750)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(layout.ModulesDir, "hackernews.ts"), []byte("export default {}"), 0600)).To(Succeed())

		configFile := helpers.WriteConfigYAML(layout, "echo run >> "+layout.RebuildLog)

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

	Context("Registering a new source", func() {
		It("should write the configuration and the module, then rebuild on request", func() {
			req := helpers.NewSourceRequest("techblog")
			resp, err := serverHelper.CreateSource(req)
			Expect(err).NotTo(HaveOccurred())

			var created envelope
			helpers.DecodeResponse(resp, http.StatusCreated, &created)
			Expect(created.Success).To(BeTrue())
			Expect(created.Message).To(ContainSubstring("techblog"))

			doc := helpers.ReadDocument(layout)
			Expect(doc).To(HaveLen(2))
			Expect(doc).To(HaveKey("hackernews"))
			Expect(string(doc["techblog"])).To(MatchJSON(req.Config))

			code, err := os.ReadFile(filepath.Join(layout.ModulesDir, "techblog.ts"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(code)).To(Equal(req.Code))

			// Registration alone never runs the rebuild command
			Consistently(func() int { return helpers.RebuildRuns(layout) }, 300*time.Millisecond).Should(Equal(0))

			resp, err = serverHelper.Reboot()
			Expect(err).NotTo(HaveOccurred())
			var ack struct {
				Success   bool   `json:"success"`
				RequestID string `json:"requestId"`
			}
			helpers.DecodeResponse(resp, http.StatusAccepted, &ack)
			Expect(ack.Success).To(BeTrue())
			Expect(ack.RequestID).NotTo(BeEmpty())

			Eventually(func() int { return helpers.RebuildRuns(layout) }, 5*time.Second).Should(Equal(1))
			Eventually(func() string {
				resp, err := serverHelper.GetRebuildStatus()
				Expect(err).NotTo(HaveOccurred())
				var st struct {
					Phase     string `json:"phase"`
					RequestID string `json:"requestId"`
				}
				helpers.DecodeResponse(resp, http.StatusOK, &st)
				return st.Phase + "/" + st.RequestID
			}, 5*time.Second).Should(Equal("Complete/" + ack.RequestID))
		})

		It("should rebuild in the same request when asked to", func() {
			req := helpers.NewSourceRequest("techblog")
			req.Rebuild = true
			resp, err := serverHelper.CreateSourceV1(req)
			Expect(err).NotTo(HaveOccurred())
			helpers.DecodeResponse(resp, http.StatusCreated, nil)

			Eventually(func() int { return helpers.RebuildRuns(layout) }, 5*time.Second).Should(Equal(1))
		})

		It("should reject a duplicate identifier and leave the registry untouched", func() {
			before, err := os.ReadFile(layout.DocumentPath)
			Expect(err).NotTo(HaveOccurred())

			req := helpers.NewSourceRequest("hackernews")
			resp, err := serverHelper.CreateSource(req)
			Expect(err).NotTo(HaveOccurred())

			var failed envelope
			helpers.DecodeResponse(resp, http.StatusConflict, &failed)
			Expect(failed.Success).To(BeFalse())
			Expect(failed.Error).To(ContainSubstring("already exists"))

			after, err := os.ReadFile(layout.DocumentPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(after).To(Equal(before))

			code, err := os.ReadFile(filepath.Join(layout.ModulesDir, "hackernews.ts"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(code)).To(Equal("export default {}"))
		})

		It("should reject a request without code and write nothing", func() {
			req := helpers.NewSourceRequest("techblog")
			req.Code = ""
			resp, err := serverHelper.CreateSource(req)
			Expect(err).NotTo(HaveOccurred())

			var failed envelope
			helpers.DecodeResponse(resp, http.StatusBadRequest, &failed)
			Expect(failed.Error).To(ContainSubstring("missing required fields"))

			Expect(helpers.ReadDocument(layout)).NotTo(HaveKey("techblog"))
			_, err = os.Stat(filepath.Join(layout.ModulesDir, "techblog.ts"))
			Expect(os.IsNotExist(err)).To(BeTrue())
		})

		It("should reject identifiers that escape the modules directory", func() {
			req := helpers.NewSourceRequest("techblog")
			req.ID = "../../etc/passwd"
			resp, err := serverHelper.CreateSource(req)
			Expect(err).NotTo(HaveOccurred())
			helpers.DecodeResponse(resp, http.StatusBadRequest, nil)

			Expect(helpers.ReadDocument(layout)).To(HaveLen(1))
		})

		It("should answer other methods with Method Not Allowed", func() {
			resp, err := serverHelper.Do(http.MethodGet, "/api/create-source", nil)
			Expect(err).NotTo(HaveOccurred())

			var failed envelope
			helpers.DecodeResponse(resp, http.StatusMethodNotAllowed, &failed)
			Expect(failed).To(Equal(envelope{Success: false, Error: "Method Not Allowed"}))
		})

		It("should let exactly one of many concurrent registrations of one identifier win", func() {
			const attempts = 8

			var wg sync.WaitGroup
			statuses := make(chan int, attempts)
			for i := 0; i < attempts; i++ {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()

					req := helpers.NewSourceRequest("techblog")
					req.Code = strings.Repeat("/", i) + req.Code
					resp, err := serverHelper.CreateSource(req)
					Expect(err).NotTo(HaveOccurred())
					_ = resp.Body.Close()
					statuses <- resp.StatusCode
				}(i)
			}
			wg.Wait()
			close(statuses)

			counts := map[int]int{}
			for code := range statuses {
				counts[code]++
			}
			Expect(counts[http.StatusCreated]).To(Equal(1))
			Expect(counts[http.StatusConflict]).To(Equal(attempts - 1))
			Expect(helpers.ReadDocument(layout)).To(HaveLen(2))
		})
	})

	Context("Listing sources", func() {
		It("should list every source with its module state", func() {
			resp, err := serverHelper.CreateSource(helpers.NewSourceRequest("techblog"))
			Expect(err).NotTo(HaveOccurred())
			helpers.DecodeResponse(resp, http.StatusCreated, nil)

			resp, err = serverHelper.ListSources()
			Expect(err).NotTo(HaveOccurred())

			var list struct {
				Sources []struct {
					ID            string          `json:"id"`
					Config        json.RawMessage `json:"config"`
					ModulePresent bool            `json:"modulePresent"`
				} `json:"sources"`
				Count int `json:"count"`
			}
			helpers.DecodeResponse(resp, http.StatusOK, &list)
			Expect(list.Count).To(Equal(2))
			Expect(list.Sources[0].ID).To(Equal("hackernews"))
			Expect(list.Sources[1].ID).To(Equal("techblog"))
			Expect(list.Sources[1].ModulePresent).To(BeTrue())
		})
	})
})
