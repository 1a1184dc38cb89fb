package helpers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/onsi/gomega"
)

// CreateSource posts req to the original /api/create-source endpoint
func (s *ServerTestHelper) CreateSource(req *SourceRequest) (*http.Response, error) {
	return s.postJSON("/api/create-source", req)
}

// CreateSourceV1 posts req to /v1/sources
func (s *ServerTestHelper) CreateSourceV1(req *SourceRequest) (*http.Response, error) {
	return s.postJSON("/v1/sources", req)
}

// Reboot posts to the original /api/reboot endpoint
func (s *ServerTestHelper) Reboot() (*http.Response, error) {
	return s.httpClient.Post(s.baseURL+"/api/reboot", "application/json", nil)
}

// ListSources makes a GET request to /v1/sources
func (s *ServerTestHelper) ListSources() (*http.Response, error) {
	return s.httpClient.Get(s.baseURL + "/v1/sources")
}

// GetConsistency makes a GET request to /v1/consistency
func (s *ServerTestHelper) GetConsistency() (*http.Response, error) {
	return s.httpClient.Get(s.baseURL + "/v1/consistency")
}

// GetRebuildStatus makes a GET request to /v1/rebuild/status
func (s *ServerTestHelper) GetRebuildStatus() (*http.Response, error) {
	return s.httpClient.Get(s.baseURL + "/v1/rebuild/status")
}

// RepairSource posts code to /v1/sources/{id}/module
func (s *ServerTestHelper) RepairSource(id, code string) (*http.Response, error) {
	return s.postJSON("/v1/sources/"+url.PathEscape(id)+"/module", map[string]string{"code": code})
}

// DiscardSource makes a DELETE request to /v1/sources/{id}
func (s *ServerTestHelper) DiscardSource(id string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(s.ctx, http.MethodDelete, s.baseURL+"/v1/sources/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	return s.httpClient.Do(req)
}

// Do sends an arbitrary request to path
func (s *ServerTestHelper) Do(method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(s.ctx, method, s.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.httpClient.Do(req)
}

func (s *ServerTestHelper) postJSON(path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return s.httpClient.Post(s.baseURL+path, "application/json", bytes.NewReader(data))
}

// DecodeResponse asserts the status code of resp and decodes its JSON body into v
func DecodeResponse(resp *http.Response, expectedStatus int, v any) {
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	gomega.Expect(resp.StatusCode).To(gomega.Equal(expectedStatus), "body: %s", string(body))

	if v != nil {
		gomega.Expect(json.Unmarshal(body, v)).To(gomega.Succeed(), "body: %s", string(body))
	}
}
