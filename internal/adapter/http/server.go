// Package http exposes the hub over HTTP: signal queries, record CRUD, a
// server-sent-events stream of mutation events, and the usual health,
// readiness, and metrics endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/disaster-signal-hub/internal/aggregator"
	"github.com/couchcryptid/disaster-signal-hub/internal/broadcast"
	"github.com/couchcryptid/disaster-signal-hub/internal/domain"
	"github.com/couchcryptid/disaster-signal-hub/internal/recordstore"
)

// Server routes hub traffic.
type Server struct {
	httpServer *http.Server
	aggregator *aggregator.Aggregator
	records    *recordstore.Store
	bus        *broadcast.Broadcaster
	logger     *slog.Logger
}

// NewServer creates the hub's HTTP server.
func NewServer(addr string, agg *aggregator.Aggregator, records *recordstore.Store, bus *broadcast.Broadcaster, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     mux,
			ReadTimeout: 10 * time.Second,
			IdleTimeout: 60 * time.Second,
		},
		aggregator: agg,
		records:    records,
		bus:        bus,
		logger:     logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /signals/{provider}", s.handleSignals)
	mux.HandleFunc("GET /events", s.handleEvents)

	mux.HandleFunc("POST /disasters", s.handleCreateDisaster)
	mux.HandleFunc("GET /disasters", s.handleListDisasters)
	mux.HandleFunc("GET /disasters/{id}", s.handleGetDisaster)
	mux.HandleFunc("PATCH /disasters/{id}", s.handleUpdateDisaster)
	mux.HandleFunc("DELETE /disasters/{id}", s.handleDeleteDisaster)

	mux.HandleFunc("POST /reports", s.handleCreateReport)
	mux.HandleFunc("GET /reports", s.handleListReports)
	mux.HandleFunc("GET /reports/{id}", s.handleGetReport)
	mux.HandleFunc("PATCH /reports/{id}", s.handleUpdateReport)
	mux.HandleFunc("DELETE /reports/{id}", s.handleDeleteReport)

	mux.HandleFunc("POST /resources", s.handleCreateResource)
	mux.HandleFunc("GET /resources", s.handleListResources)
	mux.HandleFunc("PATCH /resources/{id}", s.handleUpdateResource)
	mux.HandleFunc("DELETE /resources/{id}", s.handleDeleteResource)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.aggregator.Ready(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleSignals runs one provider request. Query parameters become provider
// parameters verbatim.
func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	providerID := r.PathValue("provider")

	params := make(map[string]string)
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	result, err := s.aggregator.Request(r.Context(), providerID, params)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleEvents streams mutation events as server-sent events until the
// client disconnects or the broadcaster closes.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub, err := s.bus.Subscribe()
	if err != nil {
		http.Error(w, "event stream unavailable", http.StatusServiceUnavailable)
		return
	}
	defer func() {
		if err := s.bus.Unsubscribe(sub.ID); err != nil && !errors.Is(err, broadcast.ErrUnknownSubscriber) {
			s.logger.Warn("unsubscribe failed", "error", err)
		}
	}()

	// SSE connections outlive any sane write deadline.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				s.logger.Error("encode event", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %s/%d\nevent: %s\ndata: %s\n\n",
				event.EntityType, event.Sequence, event.EntityType, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// Disaster handlers.

func (s *Server) handleCreateDisaster(w http.ResponseWriter, r *http.Request) {
	var req domain.Disaster
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}
	if req.Title == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("title is required"))
		return
	}

	disaster, err := s.records.CreateDisaster(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, disaster)
}

func (s *Server) handleListDisasters(w http.ResponseWriter, r *http.Request) {
	disasters, err := s.records.ListDisasters(r.Context(), r.URL.Query().Get("tag"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, disasters)
}

func (s *Server) handleGetDisaster(w http.ResponseWriter, r *http.Request) {
	disaster, err := s.records.GetDisaster(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, disaster)
}

func (s *Server) handleUpdateDisaster(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title        *string   `json:"title"`
		LocationName *string   `json:"location_name"`
		Description  *string   `json:"description"`
		Tags         *[]string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}

	disaster, err := s.records.UpdateDisaster(r.Context(), r.PathValue("id"), recordstore.DisasterPatch{
		Title:        req.Title,
		LocationName: req.LocationName,
		Description:  req.Description,
		Tags:         req.Tags,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, disaster)
}

func (s *Server) handleDeleteDisaster(w http.ResponseWriter, r *http.Request) {
	if err := s.records.DeleteDisaster(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Report handlers.

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var req domain.Report
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}

	report, err := s.records.CreateReport(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.records.ListReports(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.records.GetReport(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleUpdateReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content  *string `json:"content"`
		ImageURL *string `json:"image_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}

	report, err := s.records.UpdateReport(r.Context(), r.PathValue("id"), recordstore.ReportPatch{
		Content:  req.Content,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	if err := s.records.DeleteReport(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Resource handlers.

func (s *Server) handleCreateResource(w http.ResponseWriter, r *http.Request) {
	var req domain.Resource
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}

	resource, err := s.records.CreateResource(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resource)
}

func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request) {
	resources, err := s.records.ListResources(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resources)
}

func (s *Server) handleUpdateResource(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        *string  `json:"name"`
		Type        *string  `json:"type"`
		Description *string  `json:"description"`
		Lat         *float64 `json:"lat"`
		Lon         *float64 `json:"lon"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}

	resource, err := s.records.UpdateResource(r.Context(), r.PathValue("id"), recordstore.ResourcePatch{
		Name:        req.Name,
		Type:        req.Type,
		Description: req.Description,
		Lat:         req.Lat,
		Lon:         req.Lon,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resource)
}

func (s *Server) handleDeleteResource(w http.ResponseWriter, r *http.Request) {
	if err := s.records.DeleteResource(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps domain errors onto HTTP statuses. Transient upstream
// failures come back 503 so clients know retrying can help.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		writeJSON(w, http.StatusBadRequest, errorBody(validation.Error()))
		return
	}
	if errors.Is(err, recordstore.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		writeJSON(w, http.StatusGatewayTimeout, errorBody("upstream timed out"))
		return
	}

	var upstream *domain.UpstreamError
	if errors.As(err, &upstream) {
		status := http.StatusBadGateway
		if upstream.Transient() {
			status = http.StatusServiceUnavailable
		}
		s.logger.Warn("upstream failure", "provider", upstream.Provider, "status", upstream.Status)
		writeJSON(w, status, errorBody(upstream.Error()))
		return
	}

	s.logger.Error("request failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
