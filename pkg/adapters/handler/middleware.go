package handler

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/handlers"
	"github.com/sirupsen/logrus"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/config"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"

	authCookie = "auth_token"
)

// Claims is the session token issued after Google sign-in.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type contextKey string

const userEmailKey contextKey = "user_email"

// UserFromContext returns the email of the signed-in admin, if any.
func UserFromContext(ctx context.Context) string {
	email, _ := ctx.Value(userEmailKey).(string)
	return email
}

type Middleware struct {
	jwtSecret []byte
}

func NewMiddleware(cfg *config.Config) *Middleware {
	return &Middleware{
		jwtSecret: []byte(cfg.JWTSecret),
	}
}

// AuthMiddleware verifies the JWT from the auth cookie or a Bearer header and
// lets admins through.
func (m *Middleware) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r)
		if tokenString == "" {
			if cookie, err := r.Cookie(authCookie); err == nil {
				tokenString = cookie.Value
			}
		}

		claims, err := m.parse(tokenString)
		if err != nil {
			if isAPIRequest(r) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
			} else {
				http.Redirect(w, r, "/auth/google/login", http.StatusTemporaryRedirect)
			}
			return
		}

		if claims.Role != RoleAdmin {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}

		ctx := context.WithValue(r.Context(), userEmailKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) parse(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, jwt.ErrTokenMalformed
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return m.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func isAPIRequest(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}

// RequestLogger writes one structured line per request. Failed requests are
// logged at error level.
func RequestLogger(logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return handlers.CustomLoggingHandler(io.Discard, next, func(_ io.Writer, p handlers.LogFormatterParams) {
			entry := logger.WithFields(logrus.Fields{
				"method":     p.Request.Method,
				"path":       p.URL.Path,
				"status":     p.StatusCode,
				"size":       p.Size,
				"duration":   time.Since(p.TimeStamp).String(),
				"client_ip":  clientIP(p.Request),
				"user_agent": p.Request.UserAgent(),
			})
			if p.StatusCode >= http.StatusBadRequest {
				entry.Error("Request failed")
				return
			}
			entry.Info("Request processed")
		})
	}
}

// clientIP reads RemoteAddr, which ProxyHeaders has already rewritten from
// X-Forwarded-For when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
