package handler

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/core/domain"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/ports"
)

const (
	// correlationCookie remembers a visitor between the click and sign-in.
	correlationCookie = "trk_ck"
	correlationParam  = "ck"
	maxCorrelationKey = 128
	correlationMaxAge = 90 * 24 * time.Hour

	hookSecretHeader = "X-Hook-Secret"
)

// TrackingHandler serves the visitor side: the redirect endpoint and the
// login hook that external sign-in flows call.
type TrackingHandler struct {
	service      ports.TrackingService
	fallbackURL  string
	hookSecret   string
	isProduction bool
	logger       logrus.FieldLogger
}

func NewTrackingHandler(service ports.TrackingService, fallbackURL, hookSecret string, isProduction bool, logger logrus.FieldLogger) *TrackingHandler {
	return &TrackingHandler{
		service:      service,
		fallbackURL:  fallbackURL,
		hookSecret:   hookSecret,
		isProduction: isProduction,
		logger:       logger,
	}
}

// Redirect resolves the code, records the click and sends the visitor on.
// Unknown and inactive links look the same from outside.
func (h *TrackingHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	key, fromCookie := correlationKey(r)

	res, err := h.service.Resolve(r.Context(), code, key, clientMeta(r))
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrInactive) {
			h.logger.WithError(err).WithField("code", code).Error("link lookup failed")
		}
		if h.fallbackURL != "" {
			http.Redirect(w, r, h.fallbackURL, http.StatusFound)
			return
		}
		writeError(w, http.StatusNotFound, "link not found")
		return
	}

	if !fromCookie {
		http.SetCookie(w, &http.Cookie{
			Name:     correlationCookie,
			Value:    key,
			Path:     "/",
			MaxAge:   int(correlationMaxAge.Seconds()),
			HttpOnly: true,
			Secure:   h.isProduction,
			SameSite: http.SameSiteLaxMode,
		})
	}
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, res.TargetURL, http.StatusFound)
}

// LoginHookRequest payload
type LoginHookRequest struct {
	CorrelationKey string `json:"correlation_key"`
	ActorID        string `json:"actor_id"`
}

// LoginHook attributes a sign-in that happened outside this service.
func (h *TrackingHandler) LoginHook(w http.ResponseWriter, r *http.Request) {
	given := r.Header.Get(hookSecretHeader)
	if h.hookSecret == "" || subtle.ConstantTimeCompare([]byte(given), []byte(h.hookSecret)) != 1 {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req LoginHookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	n, err := h.service.AttributeLogin(r.Context(), req.CorrelationKey, req.ActorID, clientMeta(r))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"attributed": n})
}

// correlationKey prefers an explicit ?ck= over the cookie and mints a new
// key when neither is usable. The bool reports whether the cookie already
// holds the returned key.
func correlationKey(r *http.Request) (string, bool) {
	var cookieKey string
	if c, err := r.Cookie(correlationCookie); err == nil && validKey(c.Value) {
		cookieKey = c.Value
	}
	if q := r.URL.Query().Get(correlationParam); validKey(q) {
		return q, q == cookieKey
	}
	if cookieKey != "" {
		return cookieKey, true
	}
	return uuid.NewString(), false
}

func validKey(k string) bool {
	return k != "" && len(k) <= maxCorrelationKey
}

func clientMeta(r *http.Request) domain.ClientMeta {
	return domain.ClientMeta{
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}
}
