package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/core/domain"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/ports"
)

// HTTPHandler serves the admin API: link management and reporting.
type HTTPHandler struct {
	links   ports.LinkService
	stats   ports.StatsService
	baseURL string
	logger  logrus.FieldLogger
}

func NewHTTPHandler(links ports.LinkService, stats ports.StatsService, baseURL string, logger logrus.FieldLogger) *HTTPHandler {
	return &HTTPHandler{
		links:   links,
		stats:   stats,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// CreateLinkRequest payload
type CreateLinkRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	TargetURL   string `json:"target_url"`
	Code        string `json:"code,omitempty"`
}

// UpdateLinkRequest payload. Absent fields are left unchanged.
type UpdateLinkRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	TargetURL   *string `json:"target_url,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

type linkResponse struct {
	*domain.TrackingLink
	ConversionRate float64 `json:"conversion_rate"`
	TrackingURL    string  `json:"tracking_url"`
}

func (h *HTTPHandler) present(link *domain.TrackingLink) linkResponse {
	return linkResponse{
		TrackingLink:   link,
		ConversionRate: link.ConversionRate(),
		TrackingURL:    h.baseURL + "/t/" + link.Code,
	}
}

// Create Link
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	link, err := h.links.Create(r.Context(), domain.CreateLinkInput{
		Name:        req.Name,
		Description: req.Description,
		TargetURL:   req.TargetURL,
		Code:        req.Code,
	})
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"link_id": link.ID,
		"code":    link.Code,
		"admin":   UserFromContext(r.Context()),
	}).Info("tracking link created")
	writeJSON(w, http.StatusCreated, h.present(link))
}

// List Links, optionally filtered by ?active=true|false
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter domain.LinkFilter
	if raw := r.URL.Query().Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "active must be true or false")
			return
		}
		filter.Active = &active
	}

	links, err := h.links.List(r.Context(), filter)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}

	data := make([]linkResponse, 0, len(links))
	for i := range links {
		data = append(data, h.present(&links[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  data,
		"total": len(data),
	})
}

// Get Link by its tracking code
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	link, err := h.links.GetByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present(link))
}

// Update Link
func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req UpdateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	link, err := h.links.Update(r.Context(), id, domain.LinkPatch{
		Name:        req.Name,
		Description: req.Description,
		TargetURL:   req.TargetURL,
		Active:      req.Active,
	})
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present(link))
}

// Delete Link together with its event history
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.links.Delete(r.Context(), id); err != nil {
		fail(w, r, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"link_id": id,
		"admin":   UserFromContext(r.Context()),
	}).Info("tracking link deleted")
	w.WriteHeader(http.StatusNoContent)
}

// Stats for a Link. Without ?period the lifetime counters are returned.
func (h *HTTPHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var (
		stats *domain.LinkStats
		err   error
	)
	if raw := r.URL.Query().Get("period"); raw != "" {
		var window domain.Window
		window, err = domain.ParseWindow(raw)
		if err == nil {
			stats, err = h.stats.WindowedStats(r.Context(), id, window)
		}
	} else {
		stats, err = h.stats.LifetimeStats(r.Context(), id)
	}
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Events returns one page of a link's timeline, newest first.
func (h *HTTPHandler) Events(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	page, err := h.stats.RecentEvents(r.Context(), id, limit, q.Get("cursor"))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Dashboard rolls all links up. ?period defaults to all time.
func (h *HTTPHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	period := domain.PeriodAll
	if raw := r.URL.Query().Get("period"); raw != "" {
		p, err := domain.ParsePeriod(raw)
		if err != nil {
			fail(w, r, h.logger, err)
			return
		}
		period = p
	}

	totals, err := h.stats.DashboardTotals(r.Context(), period)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid id %q", r.PathValue("id")))
		return 0, false
	}
	return id, true
}
