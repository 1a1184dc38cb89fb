package service

import (
	"encoding/json"

	"github.com/newsnow-ops/source-registry-server/internal/rebuild"
)

// RegisterSourceRequest is the input of RegisterSource
type RegisterSourceRequest struct {
	// ID is the unique source identifier, also the module file name stem
	ID string `json:"id"`

	// Config is the source configuration record, stored verbatim
	Config json.RawMessage `json:"config"`

	// Code is the extraction module text
	Code string `json:"code"`

	// Rebuild requests a rebuild once the source is registered
	Rebuild bool `json:"rebuild,omitempty"`
}

// RegisterSourceResult is the outcome of a successful registration
type RegisterSourceResult struct {
	// ID of the registered source
	ID string `json:"id"`

	// Message is a human readable summary
	Message string `json:"message"`

	// Rebuild acknowledges the rebuild request, if one was made and accepted
	Rebuild *rebuild.Ack `json:"rebuild,omitempty"`

	// RebuildError explains why a requested rebuild was not triggered
	RebuildError string `json:"rebuildError,omitempty"`
}

// RepairSourceRequest is the input of RepairSource
type RepairSourceRequest struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}
