// Package integration provides integration tests for the Source Registry API Server.
// These tests run the complete server over a temporary registry layout and a real
// rebuild command, and exercise registration, rebuild, consistency and repair.
package integration
