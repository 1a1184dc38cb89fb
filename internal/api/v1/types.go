package v1

import (
	"encoding/json"
	"time"

	"github.com/newsnow-ops/source-registry-server/internal/rebuild"
	"github.com/newsnow-ops/source-registry-server/internal/registry"
)

// CreateSourceRequest is the body of a registration request
type CreateSourceRequest struct {
	ID      string          `json:"id" example:"techblog"`
	Config  json.RawMessage `json:"config" swaggertype:"object"`
	Code    string          `json:"code"`
	Rebuild bool            `json:"rebuild,omitempty"`
}

// CreateSourceResponse is returned when a source was registered
type CreateSourceResponse struct {
	Success      bool         `json:"success"`
	Message      string       `json:"message"`
	ID           string       `json:"id"`
	Rebuild      *rebuild.Ack `json:"rebuild,omitempty"`
	RebuildError string       `json:"rebuildError,omitempty"`
}

// RepairSourceRequest is the body of a repair request
type RepairSourceRequest struct {
	Code string `json:"code"`
}

// RebuildResponse acknowledges a rebuild request. It does not report the outcome of the rebuild.
type RebuildResponse struct {
	Success     bool      `json:"success"`
	Message     string    `json:"message"`
	RequestID   string    `json:"requestId"`
	RequestedAt time.Time `json:"requestedAt"`
	Command     string    `json:"command,omitempty"`
	Coalesced   bool      `json:"coalesced"`
}

// SourceListResponse lists the registered sources
type SourceListResponse struct {
	Sources []*registry.Entry `json:"sources"`
	Count   int               `json:"count"`
}

// MessageResponse is a plain success envelope
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
