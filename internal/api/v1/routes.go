// Package v1 provides the source registration and rebuild endpoints.
package v1

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/newsnow-ops/source-registry-server/internal/api/common"
	"github.com/newsnow-ops/source-registry-server/internal/filtering"
	"github.com/newsnow-ops/source-registry-server/internal/rebuild"
	"github.com/newsnow-ops/source-registry-server/internal/registry"
	"github.com/newsnow-ops/source-registry-server/internal/service"
)

const (
	// DefaultMaxBodyBytes caps request bodies when no limit is configured
	DefaultMaxBodyBytes = 2 << 20

	// retryAfterSeconds is sent with 503 responses caused by a busy registry
	retryAfterSeconds = "1"

	rebuildTriggeredMessage = "Rebuild and restart command triggered. " +
		"New sources become active once the service has restarted."
)

// Option configures the routes
type Option func(*Routes)

// WithMaxBodyBytes caps the size of request bodies
func WithMaxBodyBytes(n int64) Option {
	return func(routes *Routes) {
		if n > 0 {
			routes.maxBodyBytes = n
		}
	}
}

// Routes handles HTTP requests for source registration and rebuilds
type Routes struct {
	service      service.SourceService
	filter       filtering.FilterService
	maxBodyBytes int64
}

// NewRoutes creates a new Routes instance with the given service
func NewRoutes(svc service.SourceService, opts ...Option) *Routes {
	routes := &Routes{
		service:      svc,
		filter:       filtering.NewDefaultFilterService(),
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(routes)
	}
	return routes
}

// Router creates the router for the /v1 endpoints
func Router(svc service.SourceService, opts ...Option) http.Handler {
	routes := NewRoutes(svc, opts...)

	r := chi.NewRouter()
	r.MethodNotAllowed(common.MethodNotAllowedHandler)
	r.NotFound(common.NotFoundHandler)

	r.Route("/sources", func(r chi.Router) {
		r.Get("/", routes.listSources)
		r.Post("/", routes.createSource)
		r.Get("/{id}", routes.getSource)
		r.Delete("/{id}", routes.discardSource)
		r.Post("/{id}/module", routes.repairSource)
	})
	r.Get("/consistency", routes.checkConsistency)
	r.Post("/rebuild", routes.rebuild)
	r.Get("/rebuild/status", routes.rebuildStatus)

	return r
}

// LegacyRouter creates the router for the original /api endpoints
func LegacyRouter(svc service.SourceService, opts ...Option) http.Handler {
	routes := NewRoutes(svc, opts...)

	r := chi.NewRouter()
	r.MethodNotAllowed(common.MethodNotAllowedHandler)
	r.NotFound(common.NotFoundHandler)

	r.Post("/create-source", routes.createSource)
	r.Post("/reboot", routes.rebuild)

	return r
}

// createSource handles POST /v1/sources and POST /api/create-source
//
// @Summary		Register a source
// @Description	Persist the configuration and the extraction module of a new source
// @Tags			sources
// @Accept			json
// @Produce		json
// @Param			request	body		CreateSourceRequest	true	"Source to register"
// @Success		201		{object}	CreateSourceResponse
// @Failure		400		{object}	common.ErrorResponse
// @Failure		409		{object}	common.ErrorResponse
// @Failure		413		{object}	common.ErrorResponse
// @Failure		500		{object}	common.ErrorResponse
// @Failure		503		{object}	common.ErrorResponse
// @Router			/v1/sources [post]
func (routes *Routes) createSource(w http.ResponseWriter, r *http.Request) {
	var req CreateSourceRequest
	if err := common.DecodeJSONBody(w, r, routes.maxBodyBytes, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	result, err := routes.service.RegisterSource(r.Context(), &service.RegisterSourceRequest{
		ID:      req.ID,
		Config:  req.Config,
		Code:    req.Code,
		Rebuild: req.Rebuild,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	common.WriteJSONResponse(w, CreateSourceResponse{
		Success:      true,
		Message:      result.Message,
		ID:           result.ID,
		Rebuild:      result.Rebuild,
		RebuildError: result.RebuildError,
	}, http.StatusCreated)
}

// rebuild handles POST /v1/rebuild and POST /api/reboot
//
// @Summary		Trigger a rebuild
// @Description	Launch the build-and-restart command without waiting for it
// @Tags			rebuild
// @Produce		json
// @Success		202	{object}	RebuildResponse
// @Failure		503	{object}	common.ErrorResponse
// @Router			/v1/rebuild [post]
func (routes *Routes) rebuild(w http.ResponseWriter, r *http.Request) {
	ack, err := routes.service.RequestRebuild(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	common.WriteJSONResponse(w, RebuildResponse{
		Success:     true,
		Message:     rebuildTriggeredMessage,
		RequestID:   ack.RequestID,
		RequestedAt: ack.RequestedAt,
		Command:     ack.Command,
		Coalesced:   ack.Coalesced,
	}, http.StatusAccepted)
}

// listSources handles GET /v1/sources
//
// @Summary		List sources
// @Description	List sources, optionally filtered by identifier pattern and by tag
// @Tags			sources
// @Produce		json
// @Param			include		query		string	false	"Comma-separated identifier glob patterns to include"
// @Param			exclude		query		string	false	"Comma-separated identifier glob patterns to exclude"
// @Param			tag			query		string	false	"Comma-separated tags to include"
// @Param			excludeTag	query		string	false	"Comma-separated tags to exclude"
// @Success		200			{object}	SourceListResponse
// @Failure		400			{object}	common.ErrorResponse
// @Failure		500			{object}	common.ErrorResponse
// @Router			/v1/sources [get]
func (routes *Routes) listSources(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	criteria := &filtering.Criteria{
		IncludeIDs:  queryList(query["include"]),
		ExcludeIDs:  queryList(query["exclude"]),
		IncludeTags: queryList(query["tag"]),
		ExcludeTags: queryList(query["excludeTag"]),
	}
	if err := criteria.Validate(); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	entries, err := routes.service.ListSources(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	entries = routes.filter.Apply(r.Context(), entries, criteria)

	common.WriteJSONResponse(w, SourceListResponse{
		Sources: entries,
		Count:   len(entries),
	}, http.StatusOK)
}

// getSource handles GET /v1/sources/{id}
//
// @Summary		Get a source
// @Tags			sources
// @Produce		json
// @Param			id	path		string	true	"Source identifier"
// @Success		200	{object}	registry.Entry
// @Failure		400	{object}	common.ErrorResponse
// @Failure		404	{object}	common.ErrorResponse
// @Router			/v1/sources/{id} [get]
func (routes *Routes) getSource(w http.ResponseWriter, r *http.Request) {
	id, err := common.GetURLParam(r, "id")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	entry, err := routes.service.GetSource(r.Context(), id)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	common.WriteJSONResponse(w, entry, http.StatusOK)
}

// repairSource handles POST /v1/sources/{id}/module
//
// @Summary		Repair a source
// @Description	Write the missing extraction module of a source whose configuration was saved alone
// @Tags			sources
// @Accept			json
// @Produce		json
// @Param			id		path		string				true	"Source identifier"
// @Param			request	body		RepairSourceRequest	true	"Extraction module"
// @Success		200		{object}	MessageResponse
// @Failure		400		{object}	common.ErrorResponse
// @Failure		404		{object}	common.ErrorResponse
// @Failure		409		{object}	common.ErrorResponse
// @Router			/v1/sources/{id}/module [post]
func (routes *Routes) repairSource(w http.ResponseWriter, r *http.Request) {
	id, err := common.GetURLParam(r, "id")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req RepairSourceRequest
	if err := common.DecodeJSONBody(w, r, routes.maxBodyBytes, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	if err := routes.service.RepairSource(r.Context(), &service.RepairSourceRequest{ID: id, Code: req.Code}); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	common.WriteJSONResponse(w, MessageResponse{
		Success: true,
		Message: "Module of source \"" + id + "\" was written. Request a rebuild to activate it.",
	}, http.StatusOK)
}

// discardSource handles DELETE /v1/sources/{id}
//
// @Summary		Discard an orphaned source
// @Description	Remove the configuration entry of a source whose module is missing
// @Tags			sources
// @Produce		json
// @Param			id	path		string	true	"Source identifier"
// @Success		200	{object}	MessageResponse
// @Failure		404	{object}	common.ErrorResponse
// @Failure		409	{object}	common.ErrorResponse
// @Router			/v1/sources/{id} [delete]
func (routes *Routes) discardSource(w http.ResponseWriter, r *http.Request) {
	id, err := common.GetURLParam(r, "id")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := routes.service.DiscardSource(r.Context(), id); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	common.WriteJSONResponse(w, MessageResponse{
		Success: true,
		Message: "Configuration of orphaned source \"" + id + "\" was removed.",
	}, http.StatusOK)
}

// checkConsistency handles GET /v1/consistency
//
// @Summary		Check registry consistency
// @Tags			sources
// @Produce		json
// @Success		200	{object}	registry.Report
// @Failure		500	{object}	common.ErrorResponse
// @Router			/v1/consistency [get]
func (routes *Routes) checkConsistency(w http.ResponseWriter, r *http.Request) {
	report, err := routes.service.CheckConsistency(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	common.WriteJSONResponse(w, report, http.StatusOK)
}

// rebuildStatus handles GET /v1/rebuild/status
//
// @Summary		Rebuild status
// @Description	Last known state of the rebuild command
// @Tags			rebuild
// @Produce		json
// @Success		200	{object}	status.RebuildStatus
// @Failure		503	{object}	common.ErrorResponse
// @Router			/v1/rebuild/status [get]
func (routes *Routes) rebuildStatus(w http.ResponseWriter, r *http.Request) {
	st, err := routes.service.GetRebuildStatus(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	common.WriteJSONResponse(w, st, http.StatusOK)
}

// queryList splits repeated and comma-separated query values, dropping blanks
func queryList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

func writeDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, common.ErrBodyTooLarge) {
		common.WriteErrorResponse(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
}

// writeServiceError maps service and registry errors to HTTP responses
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, registry.ErrSourceNotFound):
		common.WriteErrorResponse(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, registry.ErrDuplicateIdentifier), errors.Is(err, registry.ErrNotOrphaned):
		common.WriteErrorResponse(w, err.Error(), http.StatusConflict)
	case errors.Is(err, registry.ErrRegistryBusy):
		w.Header().Set("Retry-After", retryAfterSeconds)
		common.WriteErrorResponse(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, rebuild.ErrRebuildDisabled), errors.Is(err, rebuild.ErrDispatcherStopped):
		common.WriteErrorResponse(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, registry.ErrPartialRegistration),
		errors.Is(err, registry.ErrConfigCorrupt),
		errors.Is(err, registry.ErrIOFailure):
		slog.ErrorContext(ctx, "Registry operation failed", "error", err)
		common.WriteErrorResponse(w, err.Error(), http.StatusInternalServerError)
	default:
		slog.ErrorContext(ctx, "Unexpected error", "error", err)
		common.WriteErrorResponse(w, "internal server error", http.StatusInternalServerError)
	}
}
