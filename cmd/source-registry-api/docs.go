// Package docs provides OpenAPI documentation for the Source Registry API
//
//	@title			Source Registry API
//	@version		0.1
//	@description	API for registering news sources and triggering the rebuild of the aggregation service.
//	@description	A source is a configuration entry in the shared registry document plus an extraction
//	@description	module compiled into the aggregation service. New sources become active after a rebuild.
//
//	@license.name	MIT
//
//	@tag.name	sources
//	@tag.description	Source registration, inspection and repair
//
//	@tag.name	rebuild
//	@tag.description	Build-and-restart of the aggregation service
//
//	@tag.name	system
//	@tag.description	Health, readiness and version
package main
