package handler

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/config"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/core/domain"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/ports"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	sessionLifetime   = 24 * time.Hour
)

// AuthHandler runs the Google sign-in flow. Every successful sign-in is
// offered to the tracking service so visitors who arrived via a tracking
// link are attributed.
type AuthHandler struct {
	oauthConfig  *oauth2.Config
	userInfoURL  string
	jwtSecret    []byte
	frontendURL  string
	adminEmails  []string
	isProduction bool

	tracking ports.TrackingService
	actors   ports.ActorRepository
	logger   logrus.FieldLogger
	now      func() time.Time
}

type GoogleUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func NewAuthHandler(cfg *config.Config, tracking ports.TrackingService, actors ports.ActorRepository, logger logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		userInfoURL:  googleUserInfoURL,
		jwtSecret:    []byte(cfg.JWTSecret),
		frontendURL:  cfg.FrontendURL,
		adminEmails:  cfg.AdminEmails,
		isProduction: cfg.IsProduction(),
		tracking:     tracking,
		actors:       actors,
		logger:       logger,
		now:          time.Now,
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := h.generateStateOauthCookie(w)
	if err != nil {
		h.logger.WithError(err).Error("failed generating oauth state")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	http.Redirect(w, r, h.oauthConfig.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	oauthState, err := r.Cookie("oauthstate")
	if err != nil {
		h.logger.WithError(err).Warn("callback without oauthstate cookie")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	if r.FormValue("state") != oauthState.Value {
		h.logger.Warn("callback with mismatched oauth state")
		writeError(w, http.StatusBadRequest, "invalid oauth google state")
		return
	}

	ctx := r.Context()
	token, err := h.oauthConfig.Exchange(ctx, r.FormValue("code"))
	if err != nil {
		h.logger.WithError(err).Error("oauth code exchange failed")
		writeError(w, http.StatusBadGateway, "code exchange failed")
		return
	}

	user, err := h.fetchUser(r, token)
	if err != nil {
		h.logger.WithError(err).Error("failed getting user info")
		writeError(w, http.StatusBadGateway, "failed getting user info")
		return
	}
	log := h.logger.WithField("email", user.Email)

	if err := h.actors.UpsertActor(ctx, &domain.Actor{
		ID:          user.Email,
		Name:        user.Name,
		PictureURL:  user.Picture,
		LastLoginAt: h.now().UTC(),
	}); err != nil {
		log.WithError(err).Warn("actor profile not saved")
	}

	if c, err := r.Cookie(correlationCookie); err == nil && validKey(c.Value) {
		n, err := h.tracking.AttributeLogin(ctx, c.Value, user.Email, clientMeta(r))
		if err != nil {
			log.WithError(err).Warn("login attribution failed")
		} else if n > 0 {
			log.WithField("links", n).Info("login attributed")
		}
	}

	role := RoleUser
	if slices.Contains(h.adminEmails, user.Email) {
		role = RoleAdmin
	}

	expirationTime := h.now().Add(sessionLifetime)
	tokenString, err := h.issueToken(user.Email, role, expirationTime)
	if err != nil {
		log.WithError(err).Error("failed signing JWT")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    tokenString,
		Expires:  expirationTime,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})

	log.WithField("role", role).Info("Login successful")
	http.Redirect(w, r, h.frontendURL, http.StatusTemporaryRedirect)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    "",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.frontendURL+"/login", http.StatusTemporaryRedirect)
}

func (h *AuthHandler) fetchUser(r *http.Request, token *oauth2.Token) (*GoogleUser, error) {
	resp, err := h.oauthConfig.Client(r.Context(), token).Get(h.userInfoURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned %s", resp.Status)
	}

	var user GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}
	if user.Email == "" {
		return nil, fmt.Errorf("user info carries no email")
	}
	return &user, nil
}

func (h *AuthHandler) issueToken(email, role string, expiresAt time.Time) (string, error) {
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(h.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.jwtSecret)
}

func (h *AuthHandler) generateStateOauthCookie(w http.ResponseWriter) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := base64.URLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     "oauthstate",
		Value:    state,
		Expires:  h.now().Add(20 * time.Minute),
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
	return state, nil
}
