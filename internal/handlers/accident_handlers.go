package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"accidentes-platform/internal/auth"
	"accidentes-platform/internal/repository"
	"accidentes-platform/internal/services"
	"accidentes-platform/pkg/logging"
	"accidentes-platform/pkg/metrics"
)

const (
	defaultLimit = 20
	maxLimit     = 100

	// Lifetime of tokens minted by the dev-only endpoint.
	devTokenTTL = 120 * time.Minute
)

// AccidentHandler handles the accident API endpoints
type AccidentHandler struct {
	accidentService *services.AccidentService
	refreshService  *services.RefreshService
	auth            *auth.Manager
	logger          *logging.StructuredLogger
	metrics         *metrics.Collector
	devTokenEnabled bool
}

// NewAccidentHandler creates a new accident handler
func NewAccidentHandler(
	accidentService *services.AccidentService,
	refreshService *services.RefreshService,
	authManager *auth.Manager,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
	devTokenEnabled bool,
) *AccidentHandler {
	return &AccidentHandler{
		accidentService: accidentService,
		refreshService:  refreshService,
		auth:            authManager,
		logger:          logger,
		metrics:         metricsCollector,
		devTokenEnabled: devTokenEnabled,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// SearchResponse is the envelope of every list/search endpoint
type SearchResponse struct {
	Total int         `json:"total"`
	Items interface{} `json:"items"`
}

// RefreshResponse is the body of a successful admin refresh
type RefreshResponse struct {
	Status   string `json:"status"`
	Inserted int    `json:"inserted"`
}

// TokenResponse is the body of the dev token endpoint
type TokenResponse struct {
	Token string `json:"token"`
}

// ListRecords handles GET /records
func (h *AccidentHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/records").Observe(duration.Seconds())
	}()

	page, ok := h.parsePage(w, r)
	if !ok {
		return
	}

	accidents, total, err := h.accidentService.List(ctx, page)
	if err != nil {
		h.logger.Error(ctx, "[API_LIST_ERROR] Failed to list records", logging.Fields{
			"limit":  page.Limit,
			"offset": page.Offset,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/records")
		h.sendError(w, r, "failed to retrieve records", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/records", "GET", "200")
	h.sendJSON(w, SearchResponse{Total: total, Items: accidents}, http.StatusOK)
}

// GetRecord handles GET /records/{id}
func (h *AccidentHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.sendError(w, r, "invalid record id", http.StatusBadRequest)
		return
	}

	rec, err := h.accidentService.Get(ctx, id)
	if err != nil {
		var notFound *repository.NotFoundError
		if errors.As(err, &notFound) {
			h.sendError(w, r, "record not found", http.StatusNotFound)
			return
		}
		h.logger.Error(ctx, "[API_GET_ERROR] Failed to get record", logging.Fields{
			"accidente_id": id,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/records/{id}")
		h.sendError(w, r, "failed to retrieve record", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/records/{id}", "GET", "200")
	h.sendJSON(w, rec, http.StatusOK)
}

// SearchRecords handles GET /search
func (h *AccidentHandler) SearchRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/search").Observe(duration.Seconds())
	}()

	page, ok := h.parsePage(w, r)
	if !ok {
		return
	}

	filter := repository.SearchFilter{}
	query := r.URL.Query()

	if q := query.Get("q"); q != "" {
		filter.Q = &q
	}

	if v := query.Get("id_entidad"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			h.sendError(w, r, "invalid id_entidad, expected integer", http.StatusBadRequest)
			return
		}
		filter.IDEntidad = &id
	}

	if v := query.Get("id_municipio"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			h.sendError(w, r, "invalid id_municipio, expected integer", http.StatusBadRequest)
			return
		}
		filter.IDMunicipio = &id
	}

	if v := query.Get("clasacc"); v != "" {
		filter.ClasAcc = &v
	}

	if v := query.Get("desde"); v != "" {
		t, err := parseDateParam(v)
		if err != nil {
			h.sendError(w, r, "invalid desde, expected YYYY-MM-DD or RFC3339", http.StatusBadRequest)
			return
		}
		filter.Desde = &t
	}

	if v := query.Get("hasta"); v != "" {
		t, err := parseDateParam(v)
		if err != nil {
			h.sendError(w, r, "invalid hasta, expected YYYY-MM-DD or RFC3339", http.StatusBadRequest)
			return
		}
		filter.Hasta = &t
	}

	accidents, total, err := h.accidentService.Search(ctx, filter, page)
	if err != nil {
		h.logger.Error(ctx, "[API_SEARCH_ERROR] Failed to search records", logging.Fields{
			"limit":  page.Limit,
			"offset": page.Offset,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/search")
		h.sendError(w, r, "failed to search records", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/search", "GET", "200")
	h.sendJSON(w, SearchResponse{Total: total, Items: accidents}, http.StatusOK)
}

// RefreshETL handles POST /admin/refresh-etl
func (h *AccidentHandler) RefreshETL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/admin/refresh-etl").Observe(duration.Seconds())
	}()

	inserted, err := h.refreshService.Refresh(ctx)
	if err != nil {
		if errors.Is(err, services.ErrRefreshInProgress) {
			h.sendError(w, r, "a refresh is already running", http.StatusConflict)
			return
		}
		h.logger.Error(ctx, "[API_REFRESH_ERROR] Pipeline run failed", logging.Fields{}, err)
		h.metrics.RecordAPIError("pipeline_error", "/admin/refresh-etl")
		h.sendError(w, r, "pipeline run failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/admin/refresh-etl", "POST", "200")
	h.sendJSON(w, RefreshResponse{Status: "ok", Inserted: inserted}, http.StatusOK)
}

// DevToken handles GET /auth/dev-token. Local testing only; the route is not
// registered unless explicitly enabled.
func (h *AccidentHandler) DevToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.auth.Issue("etl_admin", devTokenTTL)
	if err != nil {
		h.logger.Error(r.Context(), "[API_TOKEN_ERROR] Failed to issue dev token", logging.Fields{}, err)
		h.sendError(w, r, "failed to issue token", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/auth/dev-token", "GET", "200")
	h.sendJSON(w, TokenResponse{Token: token}, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *AccidentHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.accidentService.HealthCheck(ctx); err != nil {
		h.sendJSON(w, map[string]string{
			"status":    "unhealthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}, http.StatusServiceUnavailable)
		return
	}

	h.sendJSON(w, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}, http.StatusOK)
}

// requireAuth wraps a handler with bearer token verification. Failures are
// 401 with no side effects.
func (h *AccidentHandler) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.ParseBearer(r.Header.Get("Authorization"))
		if err != nil {
			h.rejectAuth(w, r, err)
			return
		}

		subject, err := h.auth.Verify(token)
		if err != nil {
			h.rejectAuth(w, r, err)
			return
		}

		h.logger.Debug(r.Context(), "[AUTH_OK] Token accepted", logging.Fields{
			"subject": subject,
		})

		next(w, r)
	}
}

func (h *AccidentHandler) rejectAuth(w http.ResponseWriter, r *http.Request, err error) {
	h.metrics.AuthFailuresTotal.Inc()
	h.logger.Warn(r.Context(), "[AUTH_REJECTED] Request rejected", logging.Fields{
		"path":   r.URL.Path,
		"reason": err.Error(),
	})
	h.sendError(w, r, err.Error(), http.StatusUnauthorized)
}

// parsePage validates limit/offset/order. Invalid explicit values are a 400;
// absent values take the documented defaults.
func (h *AccidentHandler) parsePage(w http.ResponseWriter, r *http.Request) (repository.Page, bool) {
	page := repository.Page{
		Limit:  defaultLimit,
		Offset: 0,
		Order:  repository.OrderFechaDesc,
	}

	query := r.URL.Query()

	if v := query.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > maxLimit {
			h.sendError(w, r, "invalid limit, expected integer between 1 and 100", http.StatusBadRequest)
			return page, false
		}
		page.Limit = limit
	}

	if v := query.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			h.sendError(w, r, "invalid offset, expected integer >= 0", http.StatusBadRequest)
			return page, false
		}
		page.Offset = offset
	}

	if v := query.Get("order"); v != "" {
		if v != repository.OrderFechaAsc && v != repository.OrderFechaDesc {
			h.sendError(w, r, "invalid order, expected fecha_asc or fecha_desc", http.StatusBadRequest)
			return page, false
		}
		page.Order = v
	}

	return page, true
}

// parseDateParam accepts a date or a full timestamp for the fecha range
// filters.
func parseDateParam(v string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}

// sendJSON sends a JSON response
func (h *AccidentHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *AccidentHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIRequest(r.URL.Path, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all accident API routes
func (h *AccidentHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/records", h.ListRecords).Methods("GET")
	router.HandleFunc("/records/{id}", h.GetRecord).Methods("GET")
	router.HandleFunc("/search", h.SearchRecords).Methods("GET")
	router.HandleFunc("/admin/refresh-etl", h.requireAuth(h.RefreshETL)).Methods("POST")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	if h.devTokenEnabled {
		router.HandleFunc("/auth/dev-token", h.DevToken).Methods("GET")
	}
}
